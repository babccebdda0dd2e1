// ABOUTME: Form validation for portal and admin back-office submissions
// ABOUTME: Turns posted url.Values into backend request bodies or ordered field errors

package validate

import (
	"net/mail"
	"net/url"
	"strconv"
	"strings"

	"github.com/2389/guday-portal/internal/backend"
)

// MinPasswordLength is the shortest password accepted for agents and users.
const MinPasswordLength = 6

// Errors is an ordered set of field errors. The first error recorded for a
// field wins.
type Errors struct {
	fields []string
	msgs   map[string]string
}

// Add records msg for field unless the field already has an error.
func (e *Errors) Add(field, msg string) {
	if e.msgs == nil {
		e.msgs = make(map[string]string)
	}
	if _, ok := e.msgs[field]; ok {
		return
	}
	e.fields = append(e.fields, field)
	e.msgs[field] = msg
}

// Has reports whether field has an error.
func (e *Errors) Has(field string) bool {
	_, ok := e.msgs[field]
	return ok
}

// Get returns the error for field, or "".
func (e *Errors) Get(field string) string {
	return e.msgs[field]
}

// Len returns the number of fields with errors.
func (e *Errors) Len() int {
	return len(e.fields)
}

// Messages returns every message in the order they were recorded.
func (e *Errors) Messages() []string {
	out := make([]string, len(e.fields))
	for i, f := range e.fields {
		out[i] = e.msgs[f]
	}
	return out
}

// Error returns the first message.
func (e *Errors) Error() string {
	if len(e.fields) == 0 {
		return ""
	}
	return e.msgs[e.fields[0]]
}

// Err returns e as an error, or nil when there are no errors.
func (e *Errors) Err() error {
	if e == nil || len(e.fields) == 0 {
		return nil
	}
	return e
}

func field(form url.Values, name string) string {
	return strings.TrimSpace(form.Get(name))
}

// checkbox reads an HTML checkbox or a boolean-ish select value.
func checkbox(form url.Values, name string) bool {
	switch strings.ToLower(field(form, name)) {
	case "on", "true", "1", "yes":
		return true
	}
	return false
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// ParseIDList splits a comma-separated id list, trimming and dropping empties.
func ParseIDList(raw string) []string {
	ids := []string{}
	for _, part := range strings.Split(raw, ",") {
		if id := strings.TrimSpace(part); id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}

// ParseKeywords splits a comma-separated keyword list.
func ParseKeywords(raw string) []string {
	kws := ParseIDList(raw)
	if len(kws) == 0 {
		return nil
	}
	return kws
}

// Login validates citizen and admin login forms. The password is not trimmed.
func Login(form url.Values) (backend.Credentials, error) {
	creds := backend.Credentials{
		Username: field(form, "username"),
		Password: form.Get("password"),
	}
	var errs Errors
	if creds.Username == "" || strings.TrimSpace(creds.Password) == "" {
		errs.Add("form", "Please enter your username and password.")
	}
	return creds, errs.Err()
}

// accountFields validates the fields shared by agents and system users.
func accountFields(form url.Values, errs *Errors) (username, email, password string) {
	username = field(form, "username")
	email = field(form, "email")
	password = form.Get("password")

	if username == "" {
		errs.Add("username", "Username is required.")
	}
	if email == "" {
		errs.Add("email", "Email is required.")
	} else if !validEmail(email) {
		errs.Add("email", "Email address is not valid.")
	}
	switch {
	case strings.TrimSpace(password) == "":
		errs.Add("password", "Password is required.")
	case len(password) < MinPasswordLength:
		errs.Add("password", "Password must be at least 6 characters.")
	case password != form.Get("confirm_password"):
		errs.Add("confirm_password", "Passwords do not match.")
	}
	return username, email, password
}

func validEmail(s string) bool {
	addr, err := mail.ParseAddress(s)
	return err == nil && addr.Address == s
}

// Agent validates the new agent form.
func Agent(form url.Values) (backend.AgentRequest, error) {
	var errs Errors
	username, email, password := accountFields(form, &errs)
	return backend.AgentRequest{
		Username:   username,
		Email:      email,
		Password:   password,
		CategoryID: field(form, "category_id"),
	}, errs.Err()
}

// AgentUpdate validates the edit agent form. Blank fields are left unchanged.
func AgentUpdate(form url.Values) (backend.AgentUpdate, error) {
	var errs Errors
	var upd backend.AgentUpdate

	upd.Username = optional(field(form, "username"))
	if email := field(form, "email"); email != "" {
		if !validEmail(email) {
			errs.Add("email", "Email address is not valid.")
		}
		upd.Email = &email
	}
	if form.Has("is_active") {
		active := checkbox(form, "is_active")
		upd.IsActive = &active
	}
	if upd.Username == nil && upd.Email == nil && upd.IsActive == nil {
		errs.Add("form", "Nothing to update.")
	}
	return upd, errs.Err()
}

// UserForm is a validated new system user plus its follow-up assignments.
type UserForm struct {
	Request    backend.UserRequest
	RoleIDs    []string
	CategoryID string
}

// User validates the new system user form.
func User(form url.Values) (UserForm, error) {
	var errs Errors
	username, email, password := accountFields(form, &errs)
	active := !form.Has("is_active") || checkbox(form, "is_active")
	return UserForm{
		Request: backend.UserRequest{
			Username: username,
			Email:    email,
			Password: password,
			IsActive: &active,
		},
		RoleIDs:    ParseIDList(form.Get("role_ids")),
		CategoryID: field(form, "category_id"),
	}, errs.Err()
}

// Category validates the category form. A blank parent id is sent as null.
func Category(form url.Values) (backend.CategoryRequest, error) {
	var errs Errors
	req := backend.CategoryRequest{
		Name:        field(form, "name"),
		Slug:        field(form, "slug"),
		Description: optional(field(form, "description")),
		ParentID:    optional(field(form, "parent_id")),
		IconURL:     optional(field(form, "icon_url")),
	}

	if req.Name == "" {
		errs.Add("name", "Name is required.")
	}
	if req.Slug == "" {
		errs.Add("slug", "Slug is required.")
	}
	if raw := field(form, "display_order"); raw != "" {
		n, err := strconv.Atoi(raw)
		switch {
		case err != nil:
			errs.Add("display_order", "Display order must be a number.")
		case n < 0:
			errs.Add("display_order", "Display order must be 0 or greater.")
		default:
			req.DisplayOrder = n
		}
	}
	if req.IconURL != nil && !absoluteHTTP(*req.IconURL) {
		errs.Add("icon_url", "Icon URL must be an absolute http(s) URL.")
	}
	return req, errs.Err()
}

func absoluteHTTP(raw string) bool {
	u, err := url.Parse(raw)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// Step validates a service step form. The step type defaults to "action".
func Step(form url.Values) (backend.StepRequest, error) {
	var errs Errors
	req := backend.StepRequest{
		StepType:                 field(form, "step_type"),
		Title:                    field(form, "title"),
		Instruction:              field(form, "instruction"),
		DetailedInstructions:     field(form, "detailed_instructions"),
		EstimatedDuration:        field(form, "estimated_duration"),
		IsOnlineAvailable:        checkbox(form, "is_online_available"),
		RequiresPhysicalPresence: checkbox(form, "requires_physical_presence"),
	}
	if req.StepType == "" {
		req.StepType = "action"
	}

	n, err := strconv.Atoi(field(form, "step_number"))
	if err != nil || n < 1 {
		errs.Add("step_number", "Step number must be 1 or greater.")
	}
	req.StepNumber = n

	if req.Instruction == "" {
		errs.Add("instruction", "Instruction is required.")
	}
	return req, errs.Err()
}

// TicketMessage validates an agent reply to a ticket.
func TicketMessage(form url.Values) (backend.TicketMessage, error) {
	var errs Errors
	msg := backend.TicketMessage{
		SenderType:  backend.SenderAgent,
		MessageText: field(form, "message_text"),
	}
	if msg.MessageText == "" {
		errs.Add("message_text", "Message text is required.")
	}
	return msg, errs.Err()
}
