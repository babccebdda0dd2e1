// ABOUTME: Audit log entity and store methods for tracking admin back-office mutations
// ABOUTME: Records who did what to which backend resource, and whether it succeeded

package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// AuditAction represents an auditable action.
type AuditAction string

const (
	AuditLogin           AuditAction = "login"
	AuditLoginFailed     AuditAction = "login_failed"
	AuditLogout          AuditAction = "logout"
	AuditCreateService   AuditAction = "create_service"
	AuditUpdateService   AuditAction = "update_service"
	AuditDeleteService   AuditAction = "delete_service"
	AuditPublishService  AuditAction = "publish_service"
	AuditArchiveService  AuditAction = "archive_service"
	AuditImportServices  AuditAction = "import_services"
	AuditCreateStep      AuditAction = "create_step"
	AuditUpdateStep      AuditAction = "update_step"
	AuditDeleteStep      AuditAction = "delete_step"
	AuditCreateCategory  AuditAction = "create_category"
	AuditUpdateCategory  AuditAction = "update_category"
	AuditDeleteCategory  AuditAction = "delete_category"
	AuditCreateAgent     AuditAction = "create_agent"
	AuditUpdateAgent     AuditAction = "update_agent"
	AuditDeactivateAgent AuditAction = "deactivate_agent"
	AuditAssignAgent     AuditAction = "assign_agent_category"
	AuditAgentOTP        AuditAction = "generate_agent_otp"
	AuditCreateUser      AuditAction = "create_user"
	AuditAssignUserRoles AuditAction = "assign_user_roles"
	AuditAssignUserCat   AuditAction = "assign_user_category"
	AuditUserOTP         AuditAction = "generate_user_otp"
	AuditClaimTicket     AuditAction = "claim_ticket"
	AuditCloseTicket     AuditAction = "close_ticket"
	AuditSendTicketReply AuditAction = "send_ticket_message"
)

// ValidAuditActions lists all valid audit actions.
var ValidAuditActions = []AuditAction{
	AuditLogin,
	AuditLoginFailed,
	AuditLogout,
	AuditCreateService,
	AuditUpdateService,
	AuditDeleteService,
	AuditPublishService,
	AuditArchiveService,
	AuditImportServices,
	AuditCreateStep,
	AuditUpdateStep,
	AuditDeleteStep,
	AuditCreateCategory,
	AuditUpdateCategory,
	AuditDeleteCategory,
	AuditCreateAgent,
	AuditUpdateAgent,
	AuditDeactivateAgent,
	AuditAssignAgent,
	AuditAgentOTP,
	AuditCreateUser,
	AuditAssignUserRoles,
	AuditAssignUserCat,
	AuditUserOTP,
	AuditClaimTicket,
	AuditCloseTicket,
	AuditSendTicketReply,
}

// Outcomes recorded on audit entries.
const (
	OutcomeOK    = "ok"
	OutcomeError = "error"
)

// AuditEntry represents a single audit log entry.
type AuditEntry struct {
	ID         string         // UUID v4
	Actor      string         // admin username
	Action     AuditAction    // what action was performed
	TargetType string         // "service", "category", "agent", ...
	TargetID   string         // ID of the affected resource
	Timestamp  time.Time      // when it happened
	Detail     map[string]any // additional context
	Outcome    string         // OutcomeOK or OutcomeError
}

// AuditFilter specifies filtering options for listing audit entries.
type AuditFilter struct {
	Since      *time.Time   // entries after this time
	Actor      *string      // filter by actor
	Action     *AuditAction // filter by action type
	TargetType *string      // filter by target type
	Limit      int          // max results (default 100, max 1000)
}

// AuditStore persists the audit log.
type AuditStore interface {
	AppendAuditLog(ctx context.Context, e *AuditEntry) error
	ListAuditLog(ctx context.Context, f AuditFilter) ([]AuditEntry, error)
}

// AppendAuditLog appends a new entry to the audit log.
// Generates ID, Timestamp and Outcome if not set.
func (s *SQLiteStore) AppendAuditLog(ctx context.Context, e *AuditEntry) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = s.now().UTC()
	}
	if e.Outcome == "" {
		e.Outcome = OutcomeOK
	}

	var detailJSON *string
	if e.Detail != nil {
		data, err := json.Marshal(e.Detail)
		if err != nil {
			return fmt.Errorf("marshaling audit detail: %w", err)
		}
		str := string(data)
		detailJSON = &str
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_log (audit_id, actor, action, target_type, target_id, ts, detail_json, outcome)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		e.ID,
		e.Actor,
		string(e.Action),
		e.TargetType,
		e.TargetID,
		formatTime(e.Timestamp),
		detailJSON,
		e.Outcome,
	)
	if err != nil {
		return fmt.Errorf("inserting audit entry: %w", err)
	}

	s.logger.Debug("appended audit log",
		"id", e.ID,
		"actor", e.Actor,
		"action", e.Action,
		"target", e.TargetType+"/"+e.TargetID,
		"outcome", e.Outcome,
	)
	return nil
}

// normalizeAuditLimit applies default (100) and cap (1000) to audit limit.
func normalizeAuditLimit(limit int) int {
	switch {
	case limit <= 0:
		return 100
	case limit > 1000:
		return 1000
	default:
		return limit
	}
}

// scanAuditEntry scans a row into an AuditEntry.
func scanAuditEntry(scanner interface{ Scan(dest ...any) error }) (AuditEntry, error) {
	var e AuditEntry
	var actionStr, tsStr string
	var detailJSON *string

	if err := scanner.Scan(
		&e.ID,
		&e.Actor,
		&actionStr,
		&e.TargetType,
		&e.TargetID,
		&tsStr,
		&detailJSON,
		&e.Outcome,
	); err != nil {
		return e, fmt.Errorf("scanning audit entry: %w", err)
	}

	e.Action = AuditAction(actionStr)
	var err error
	e.Timestamp, err = time.Parse(time.RFC3339, tsStr)
	if err != nil {
		return e, fmt.Errorf("parsing timestamp: %w", err)
	}

	if detailJSON != nil {
		if err := json.Unmarshal([]byte(*detailJSON), &e.Detail); err != nil {
			return e, fmt.Errorf("unmarshaling detail: %w", err)
		}
	}
	return e, nil
}

const auditLogQuery = `
	SELECT audit_id, actor, action, target_type, target_id, ts, detail_json, outcome
	FROM audit_log
	WHERE (? IS NULL OR ts >= ?)
	  AND (? IS NULL OR actor = ?)
	  AND (? IS NULL OR action = ?)
	  AND (? IS NULL OR target_type = ?)
	ORDER BY ts DESC, rowid DESC
	LIMIT ?
`

// ListAuditLog returns audit entries matching the filter criteria.
// Results are returned newest first (DESC by timestamp).
func (s *SQLiteStore) ListAuditLog(ctx context.Context, f AuditFilter) ([]AuditEntry, error) {
	limit := normalizeAuditLimit(f.Limit)

	var since, action *string
	if f.Since != nil {
		str := formatTime(*f.Since)
		since = &str
	}
	if f.Action != nil {
		str := string(*f.Action)
		action = &str
	}

	rows, err := s.db.QueryContext(ctx, auditLogQuery,
		since, since,
		f.Actor, f.Actor,
		action, action,
		f.TargetType, f.TargetType,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying audit log: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []AuditEntry
	for rows.Next() {
		e, err := scanAuditEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating audit entries: %w", err)
	}

	if entries == nil {
		entries = []AuditEntry{}
	}
	return entries, nil
}
