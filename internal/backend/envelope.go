// ABOUTME: Envelope normalization for the services API's inconsistent response shapes.
// ABOUTME: Finds the list, object and pagination data in a payload and decodes it into types.

package backend

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/tidwall/gjson"
)

// Pagination is the paging metadata of a list response.
type Pagination struct {
	Total    int `json:"total"`
	Page     int `json:"page"`
	PageSize int `json:"page_size"`
}

// List returns the JSON array carried by payload, looking in order at the bare
// payload, data, data.<plural>, data.items, data.results, <plural>, items and
// results. It returns an empty result when none of them is an array.
func List(payload []byte, plural string) gjson.Result {
	root := gjson.ParseBytes(payload)
	if root.IsArray() {
		return root
	}
	if !root.IsObject() {
		return gjson.Result{}
	}

	paths := []string{"data"}
	if plural != "" {
		paths = append(paths, "data."+plural)
	}
	paths = append(paths, "data.items", "data.results")
	if plural != "" {
		paths = append(paths, plural)
	}
	paths = append(paths, "items", "results")

	for _, p := range paths {
		if r := root.Get(p); r.IsArray() {
			return r
		}
	}
	return gjson.Result{}
}

// Object returns the JSON object carried by payload: data when it is an
// object, otherwise the payload itself. A bare array yields its first element.
func Object(payload []byte) gjson.Result {
	root := gjson.ParseBytes(payload)
	switch {
	case root.IsArray():
		first := root.Get("0")
		if first.IsObject() {
			return first
		}
		return gjson.Result{}
	case root.IsObject():
		if data := root.Get("data"); data.IsObject() {
			return data
		}
		return root
	}
	return gjson.Result{}
}

// Page extracts pagination metadata, falling back to n for totals and sizes.
func Page(payload []byte, n int) Pagination {
	root := gjson.ParseBytes(payload)
	return Pagination{
		Total:    firstInt(root, n, false, "meta.total_count", "meta.total", "total"),
		Page:     firstInt(root, 1, true, "meta.pagination.page", "meta.page", "page"),
		PageSize: firstInt(root, n, true, "meta.pagination.limit", "meta.limit", "page_size"),
	}
}

// firstInt returns the first path holding an integer. Zero is skipped when positive is set.
func firstInt(root gjson.Result, fallback int, positive bool, paths ...string) int {
	for _, p := range paths {
		r := root.Get(p)
		var v int
		switch r.Type {
		case gjson.Number:
			v = int(r.Int())
		case gjson.String:
			parsed, err := strconv.Atoi(strings.TrimSpace(r.Str))
			if err != nil {
				continue
			}
			v = parsed
		default:
			continue
		}
		if v < 0 || (positive && v == 0) {
			continue
		}
		return v
	}
	return fallback
}

// decodeList decodes the list carried by payload into a slice of T.
func decodeList[T any](payload []byte, plural string) ([]T, error) {
	list := List(payload, plural)
	if !list.Exists() {
		return []T{}, nil
	}
	out := make([]T, 0, len(list.Array()))
	if err := json.Unmarshal(snakeKeys(list), &out); err != nil {
		return nil, fmt.Errorf("decoding %s list: %w", plural, err)
	}
	return out, nil
}

// decodeObject decodes the object carried by payload into T. It returns
// ErrEmptyResponse when there is no object.
func decodeObject[T any](payload []byte) (T, error) {
	var out T
	obj := Object(payload)
	if !obj.Exists() {
		return out, ErrEmptyResponse
	}
	if err := json.Unmarshal(snakeKeys(obj), &out); err != nil {
		return out, fmt.Errorf("decoding object: %w", err)
	}
	return out, nil
}

// snakeKeys re-encodes r with every object key converted to snake_case, so
// camelCase variants of a field decode into the same struct tag.
func snakeKeys(r gjson.Result) []byte {
	if !strings.ContainsFunc(r.Raw, unicode.IsUpper) {
		return []byte(r.Raw)
	}
	var v any
	dec := json.NewDecoder(strings.NewReader(r.Raw))
	dec.UseNumber()
	if err := dec.Decode(&v); err != nil {
		return []byte(r.Raw)
	}
	out, err := json.Marshal(rekey(v))
	if err != nil {
		return []byte(r.Raw)
	}
	return out
}

func rekey(v any) any {
	switch t := v.(type) {
	case map[string]any:
		m := make(map[string]any, len(t))
		for k, val := range t {
			snake := toSnake(k)
			// An explicit snake_case key wins over its camelCase twin.
			if _, exists := t[snake]; exists && snake != k {
				continue
			}
			m[snake] = rekey(val)
		}
		return m
	case []any:
		for i := range t {
			t[i] = rekey(t[i])
		}
		return t
	}
	return v
}

func toSnake(s string) string {
	if !strings.ContainsFunc(s, unicode.IsUpper) {
		return s
	}
	var b strings.Builder
	for i, r := range s {
		if unicode.IsUpper(r) {
			if i > 0 {
				b.WriteByte('_')
			}
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
