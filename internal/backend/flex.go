// ABOUTME: Lenient scalar types for API fields whose JSON type varies between endpoints.
// ABOUTME: Ids may be numbers or strings, booleans and counts may arrive quoted.

package backend

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

var jsonNull = []byte("null")

// FlexString decodes from a JSON string or number. null decodes to "".
type FlexString string

func (s *FlexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, jsonNull) {
		*s = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return err
		}
		*s = FlexString(str)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*s = FlexString(n.String())
	return nil
}

func (s FlexString) String() string { return string(s) }

// FlexInt decodes from a JSON number or numeric string. null and "" decode to 0.
type FlexInt int

func (i *FlexInt) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, jsonNull) {
		*i = 0
		return nil
	}
	raw := string(data)
	if len(data) > 0 && data[0] == '"' {
		if err := json.Unmarshal(data, &raw); err != nil {
			return err
		}
		raw = strings.TrimSpace(raw)
		if raw == "" {
			*i = 0
			return nil
		}
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return err
	}
	*i = FlexInt(f)
	return nil
}

// FlexBool decodes from a JSON bool, a 0/1 number or a string such as
// "True", "yes" or "off". Unrecognised strings decode to false.
type FlexBool bool

func (b *FlexBool) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*b = FlexBool(parseBoolString(s))
		return nil
	}
	switch string(data) {
	case "null", "false":
		*b = false
		return nil
	case "true":
		*b = true
		return nil
	}
	f, err := strconv.ParseFloat(string(data), 64)
	if err != nil {
		return fmt.Errorf("flex bool: cannot decode %s", data)
	}
	*b = f != 0
	return nil
}

func parseBoolString(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	switch s {
	case "yes", "y", "on":
		return true
	case "no", "n", "off", "":
		return false
	}
	v, err := strconv.ParseBool(s)
	return err == nil && v
}
