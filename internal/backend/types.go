// ABOUTME: Typed views of services API resources and request bodies.
// ABOUTME: Field tags are snake_case; camelCase payloads are rekeyed before decoding.

package backend

import (
	"bytes"
	"encoding/json"
	"strings"
)

// Category is a service category. Public and admin endpoints share the shape;
// admin responses fill in the ordering and parent fields.
type Category struct {
	ID           FlexString `json:"id"`
	Name         string     `json:"name"`
	Slug         string     `json:"slug"`
	Description  string     `json:"description"`
	Icon         string     `json:"icon"`
	IconURL      string     `json:"icon_url"`
	ParentID     FlexString `json:"parent_id"`
	DisplayOrder FlexInt    `json:"display_order"`
	ServiceCount FlexInt    `json:"service_count"`
	Children     []Category `json:"children"`
	CreatedAt    string     `json:"created_at"`
	UpdatedAt    string     `json:"updated_at"`
}

// Service is a government service as listed publicly or managed by admins.
type Service struct {
	ID                  FlexString `json:"id"`
	ProcedureID         string     `json:"procedure_id"`
	Slug                string     `json:"slug"`
	Title               string     `json:"title"`
	Overview            string     `json:"overview"`
	ShortDescription    string     `json:"short_description"`
	Language            string     `json:"language"`
	CategoryID          FlexString `json:"category_id"`
	SubCategoryID       FlexString `json:"sub_category_id"`
	CategoryName        string     `json:"category_name"`
	SubCategoryName     string     `json:"sub_category_name"`
	TargetAudience      string     `json:"target_audience"`
	EstimatedDuration   string     `json:"estimated_duration"`
	ProcessingTime      string     `json:"processing_time"`
	IsOnlineAvailable   FlexBool   `json:"is_online_available"`
	RequiresAppointment FlexBool   `json:"requires_appointment"`
	Fees                string     `json:"fees"`
	Keywords            []string   `json:"keywords"`
	StepCount           FlexInt    `json:"step_count"`
	AverageRating       float64    `json:"average_rating"`
	ViewCount           FlexInt    `json:"view_count"`
	Status              string     `json:"status"`
	CreatedAt           string     `json:"created_at"`
	UpdatedAt           string     `json:"updated_at"`
	PublishedAt         string     `json:"published_at"`
}

// ServiceDetail is the base record of a single service page.
type ServiceDetail struct {
	Service
	Category                *Category     `json:"category"`
	SubCategory             *Category     `json:"sub_category"`
	TotalSteps              FlexInt       `json:"total_steps"`
	EligibilityRequirements []Eligibility `json:"eligibility_requirements"`
}

// Eligibility is one eligibility requirement. The API sends either an object
// or a bare string.
type Eligibility struct {
	ID          FlexString `json:"id"`
	Order       FlexInt    `json:"order"`
	Description string     `json:"description"`
	IsMandatory FlexBool   `json:"is_mandatory"`
}

func (e *Eligibility) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*e = Eligibility{Description: strings.TrimSpace(s), IsMandatory: true}
		return nil
	}
	type plain Eligibility
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*e = Eligibility(p)
	return nil
}

// Step is one procedure step of a service.
type Step struct {
	ID                       FlexString            `json:"id"`
	ServiceID                FlexString            `json:"service_id"`
	StepNumber               FlexInt               `json:"step_number"`
	StepType                 string                `json:"step_type"`
	Title                    string                `json:"title"`
	Instruction              string                `json:"instruction"`
	DetailedInstructions     string                `json:"detailed_instructions"`
	EstimatedDuration        string                `json:"estimated_duration"`
	IsOnlineAvailable        FlexBool              `json:"is_online_available"`
	RequiresPhysicalPresence FlexBool              `json:"requires_physical_presence"`
	Actions                  []StepAction          `json:"actions"`
	DocumentRequirements     []DocumentRequirement `json:"document_requirements"`
	LegalReferences          []LegalReference      `json:"legal_references"`
	CreatedAt                string                `json:"created_at"`
}

// StepAction is a checklist item within a step.
type StepAction struct {
	ID           FlexString `json:"id"`
	ActionNumber FlexInt    `json:"action_number"`
	Description  string     `json:"description"`
	IsRequired   FlexBool   `json:"is_required"`
}

// DocumentRequirement is a document a citizen must bring.
type DocumentRequirement struct {
	ID              FlexString `json:"id"`
	Name            string     `json:"name"`
	Description     string     `json:"description"`
	DocumentType    string     `json:"document_type"`
	RequirementType string     `json:"requirement_type"`
	Quantity        FlexInt    `json:"quantity"`
	SampleURL       string     `json:"sample_url"`
	TemplateURL     string     `json:"template_url"`
	Notes           string     `json:"notes"`
}

// LegalReference cites the law behind a step.
type LegalReference struct {
	ID                   FlexString `json:"id"`
	DocumentType         string     `json:"document_type"`
	DocumentNumber       string     `json:"document_number"`
	Title                string     `json:"title"`
	ArticleNumber        string     `json:"article_number"`
	RelevanceDescription string     `json:"relevance_description"`
}

// FAQ is a frequently asked question about a service.
type FAQ struct {
	ID       FlexString `json:"id"`
	Question string     `json:"question"`
	Answer   string     `json:"answer"`
}

// Agent is a support agent account.
type Agent struct {
	ID         FlexString `json:"id"`
	Username   string     `json:"username"`
	Email      string     `json:"email"`
	IsActive   FlexBool   `json:"is_active"`
	CategoryID FlexString `json:"category_id"`
	AvatarURL  string     `json:"avatar_url"`
}

// User is a system (back-office) user.
type User struct {
	ID         FlexString `json:"id"`
	Username   string     `json:"username"`
	Email      string     `json:"email"`
	IsActive   FlexBool   `json:"is_active"`
	FullName   string     `json:"full_name"`
	CategoryID FlexString `json:"category_id"`
	Roles      Roles      `json:"roles"`
}

// Roles is a list of role names. The API sends either strings or {id, name} objects.
type Roles []string

func (r *Roles) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		if bytes.Equal(bytes.TrimSpace(data), jsonNull) {
			*r = nil
			return nil
		}
		return err
	}
	out := make(Roles, 0, len(raw))
	for _, item := range raw {
		var name string
		if err := json.Unmarshal(item, &name); err == nil {
			out = append(out, name)
			continue
		}
		var obj struct {
			ID   FlexString `json:"id"`
			Name string     `json:"name"`
		}
		if err := json.Unmarshal(item, &obj); err != nil {
			return err
		}
		if obj.Name != "" {
			out = append(out, obj.Name)
		} else if obj.ID != "" {
			out = append(out, obj.ID.String())
		}
	}
	*r = out
	return nil
}

// Ticket is a citizen support ticket.
type Ticket struct {
	ID              FlexString `json:"id"`
	Status          string     `json:"status"`
	UserTelegramID  FlexString `json:"user_telegram_id"`
	AgentTelegramID FlexString `json:"agent_telegram_id"`
	CategoryID      FlexString `json:"category_id"`
	CreatedAt       string     `json:"created_at"`
	UpdatedAt       string     `json:"updated_at"`
	LastMessage     string     `json:"last_message"`
}

// AdminProfile is the signed-in administrator.
type AdminProfile struct {
	ID          FlexString `json:"id"`
	Username    string     `json:"username"`
	Email       string     `json:"email"`
	FullName    string     `json:"full_name"`
	IsSuperuser FlexBool   `json:"is_superuser"`
	IsActive    FlexBool   `json:"is_active"`
	CreatedAt   string     `json:"created_at"`
}

// LoginResult is a successful login.
type LoginResult struct {
	Token     string
	TokenType string
	Username  string
}

// OTPResult is a one-time password issued for an agent or user.
type OTPResult struct {
	Code      string
	ExpiresAt string
	Raw       json.RawMessage
}

// ServicePage is one page of services.
type ServicePage struct {
	Items []Service
	Pagination
}

// CategoryPage is one page of categories.
type CategoryPage struct {
	Items []Category
	Pagination
}

// SearchResult is the result of a public search.
type SearchResult struct {
	Items []Service
	Total int
	Query string
}

// BulkImportResult reports a bulk service import.
type BulkImportResult struct {
	Imported int      `json:"imported"`
	Failed   int      `json:"failed"`
	Errors   []string `json:"errors"`
}

// Credentials is a username/password login body.
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// ServiceRequest creates or replaces a service.
type ServiceRequest struct {
	ProcedureID         string   `json:"procedure_id" yaml:"procedure_id"`
	Slug                string   `json:"slug" yaml:"slug"`
	Title               string   `json:"title" yaml:"title"`
	Overview            string   `json:"overview" yaml:"overview"`
	ShortDescription    string   `json:"short_description,omitempty" yaml:"short_description"`
	Language            string   `json:"language,omitempty" yaml:"language"`
	CategoryID          string   `json:"category_id" yaml:"category_id"`
	SubCategoryID       string   `json:"sub_category_id,omitempty" yaml:"sub_category_id"`
	TargetAudience      string   `json:"target_audience" yaml:"target_audience"`
	EstimatedDuration   string   `json:"estimated_duration" yaml:"estimated_duration"`
	ProcessingTime      string   `json:"processing_time" yaml:"processing_time"`
	IsOnlineAvailable   bool     `json:"is_online_available" yaml:"is_online_available"`
	RequiresAppointment bool     `json:"requires_appointment" yaml:"requires_appointment"`
	Fees                string   `json:"fees,omitempty" yaml:"fees"`
	Keywords            []string `json:"keywords,omitempty" yaml:"keywords"`
	Status              string   `json:"status,omitempty" yaml:"status"`
}

// StepRequest creates or replaces a service step.
type StepRequest struct {
	StepNumber               int    `json:"step_number"`
	StepType                 string `json:"step_type"`
	Title                    string `json:"title,omitempty"`
	Instruction              string `json:"instruction"`
	DetailedInstructions     string `json:"detailed_instructions,omitempty"`
	EstimatedDuration        string `json:"estimated_duration,omitempty"`
	IsOnlineAvailable        bool   `json:"is_online_available"`
	RequiresPhysicalPresence bool   `json:"requires_physical_presence"`
}

// CategoryRequest creates or updates a category. A nil ParentID is sent as null.
type CategoryRequest struct {
	Name         string  `json:"name"`
	Slug         string  `json:"slug"`
	Description  *string `json:"description,omitempty"`
	ParentID     *string `json:"parent_id"`
	IconURL      *string `json:"icon_url,omitempty"`
	DisplayOrder int     `json:"display_order"`
}

// AgentRequest creates an agent.
type AgentRequest struct {
	Username   string `json:"username"`
	Email      string `json:"email"`
	Password   string `json:"password"`
	CategoryID string `json:"category_id,omitempty"`
}

// AgentUpdate partially updates an agent.
type AgentUpdate struct {
	Username *string `json:"username,omitempty"`
	Email    *string `json:"email,omitempty"`
	IsActive *bool   `json:"is_active,omitempty"`
}

// UserRequest creates a system user.
type UserRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	IsActive *bool  `json:"is_active,omitempty"`
}

// Sender types accepted by the ticket messages endpoint.
const (
	SenderUser   = "user"
	SenderAgent  = "agent"
	SenderSystem = "system"
)

// TicketMessage is a message posted to a ticket.
type TicketMessage struct {
	SenderType  string `json:"sender_type"`
	MessageText string `json:"message_text"`
}
