// ABOUTME: Service form validation, slug derivation and bulk import parsing
// ABOUTME: Bulk files may be JSON or YAML; item errors carry the item index

package validate

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
	"gopkg.in/yaml.v3"

	"github.com/2389/guday-portal/internal/backend"
)

// Service statuses accepted from the edit form.
const (
	StatusDraft     = "draft"
	StatusPublished = "published"
)

// Slugify lower-cases s, strips accents and joins alphanumeric runs with "-".
func Slugify(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}

	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(folded) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if dash && b.Len() > 0 {
				b.WriteByte('-')
			}
			b.WriteRune(r)
			dash = false
			continue
		}
		dash = true
	}
	return b.String()
}

// ProcedureID generates a procedure id for a new service.
func ProcedureID(now time.Time) string {
	return fmt.Sprintf("proc_%d", now.UnixMilli())
}

// NormalizeService fills service defaults and validates it, recording
// errors under prefix.
func NormalizeService(req *backend.ServiceRequest, now time.Time, errs *Errors, prefix string) {
	req.Title = strings.TrimSpace(req.Title)
	req.Overview = strings.TrimSpace(req.Overview)
	req.Slug = strings.TrimSpace(req.Slug)
	req.Status = strings.ToLower(strings.TrimSpace(req.Status))

	if req.Title == "" {
		errs.Add(prefix+"title", msgPrefix(prefix)+"Title is required.")
	}
	if req.Overview == "" {
		errs.Add(prefix+"overview", msgPrefix(prefix)+"Overview is required.")
	}

	if req.Slug == "" {
		req.Slug = Slugify(req.Title)
	}
	if req.ProcedureID == "" {
		req.ProcedureID = ProcedureID(now)
	}
	if req.TargetAudience == "" {
		req.TargetAudience = "individuals"
	}
	if req.EstimatedDuration == "" {
		req.EstimatedDuration = "Varies"
	}
	if req.ProcessingTime == "" {
		req.ProcessingTime = "Varies"
	}
	if req.Language == "" {
		req.Language = "en"
	}
	switch req.Status {
	case "":
		req.Status = StatusDraft
	case StatusDraft, StatusPublished:
	default:
		errs.Add(prefix+"status", msgPrefix(prefix)+"Status must be draft or published.")
	}
}

func msgPrefix(prefix string) string {
	if prefix == "" {
		return ""
	}
	return strings.TrimSuffix(prefix, ".") + ": "
}

// Service validates the service edit form.
func Service(form url.Values, now time.Time) (backend.ServiceRequest, error) {
	req := backend.ServiceRequest{
		ProcedureID:         field(form, "procedure_id"),
		Slug:                field(form, "slug"),
		Title:               field(form, "title"),
		Overview:            field(form, "overview"),
		ShortDescription:    field(form, "short_description"),
		Language:            field(form, "language"),
		CategoryID:          field(form, "category_id"),
		SubCategoryID:       field(form, "sub_category_id"),
		TargetAudience:      field(form, "target_audience"),
		EstimatedDuration:   field(form, "estimated_duration"),
		ProcessingTime:      field(form, "processing_time"),
		IsOnlineAvailable:   checkbox(form, "is_online_available"),
		RequiresAppointment: checkbox(form, "requires_appointment"),
		Fees:                field(form, "fees"),
		Keywords:            ParseKeywords(form.Get("keywords")),
		Status:              field(form, "status"),
	}
	var errs Errors
	NormalizeService(&req, now, &errs, "")
	return req, errs.Err()
}

type bulkDocument struct {
	Items []backend.ServiceRequest `json:"items" yaml:"items"`
}

// BulkImport parses a JSON or YAML import document. The document is either
// {"items": [...]} or a bare list of services. Every item is normalised;
// a document with no items is an error.
func BulkImport(data []byte, now time.Time) ([]backend.ServiceRequest, error) {
	items, err := decodeBulk(data)
	if err != nil {
		return nil, err
	}

	var errs Errors
	if len(items) == 0 {
		errs.Add("items", "Import file contains no services.")
		return nil, errs.Err()
	}
	for i := range items {
		prefix := fmt.Sprintf("items[%d].", i)
		NormalizeService(&items[i], now, &errs, prefix)
		// Items in one import must not share a generated procedure id.
		if items[i].ProcedureID == ProcedureID(now) {
			items[i].ProcedureID = fmt.Sprintf("%s_%d", items[i].ProcedureID, i+1)
		}
	}
	return items, errs.Err()
}

func decodeBulk(data []byte) ([]backend.ServiceRequest, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("import file is empty")
	}

	if trimmed[0] == '{' || trimmed[0] == '[' {
		if trimmed[0] == '[' {
			var items []backend.ServiceRequest
			if err := json.Unmarshal(trimmed, &items); err != nil {
				return nil, fmt.Errorf("parsing import JSON: %w", err)
			}
			return items, nil
		}
		var doc bulkDocument
		if err := json.Unmarshal(trimmed, &doc); err != nil {
			return nil, fmt.Errorf("parsing import JSON: %w", err)
		}
		return doc.Items, nil
	}

	var node yaml.Node
	if err := yaml.Unmarshal(trimmed, &node); err != nil {
		return nil, fmt.Errorf("parsing import YAML: %w", err)
	}
	if len(node.Content) > 0 && node.Content[0].Kind == yaml.SequenceNode {
		var items []backend.ServiceRequest
		if err := node.Decode(&items); err != nil {
			return nil, fmt.Errorf("parsing import YAML: %w", err)
		}
		return items, nil
	}
	var doc bulkDocument
	if err := node.Decode(&doc); err != nil {
		return nil, fmt.Errorf("parsing import YAML: %w", err)
	}
	return doc.Items, nil
}
