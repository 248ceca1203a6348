package domain

import (
	"time"

	"github.com/google/uuid"
)

// AuditAction represents the type of audited action.
type AuditAction string

const (
	AuditActionBalanceQuery AuditAction = "BALANCE_QUERY"
	AuditActionTransfer     AuditAction = "TRANSFER"
	AuditActionOTPIssue     AuditAction = "OTP_ISSUE"
	AuditActionOTPConfirm   AuditAction = "OTP_CONFIRM"
)

// AuditLog records a single audited action in the system.
type AuditLog struct {
	ID           uuid.UUID   `json:"id"`
	Username     *string     `json:"username,omitempty"`
	Action       AuditAction `json:"action"`
	ResourceType string      `json:"resource_type"`
	ResourceID   string      `json:"resource_id,omitempty"`
	Details      string      `json:"details,omitempty"` // JSON string
	IPAddress    string      `json:"ip_address"`        // client IP, or "telegram"
	CreatedAt    time.Time   `json:"created_at"`
}
