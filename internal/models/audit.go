package models

import (
	"encoding/json"
	"time"
)

// Audit actions recorded in the audit_logs collection.
const (
	AuditActionLogin          = "LOGIN"
	AuditActionCapacityUpdate = "SUPERVISOR_CAPACITY_UPDATE"
	AuditActionAdminPair      = "ADMIN_PAIR_STUDENTS"
	AuditActionAdminUnpair    = "ADMIN_UNPAIR_STUDENTS"
)

// AuditLog represents an audit trail record.
type AuditLog struct {
	ID         string          `json:"id"`
	UserID     *string         `json:"userId,omitempty"`
	Action     string          `json:"action"`
	Resource   string          `json:"resource"`
	ResourceID *string         `json:"resourceId,omitempty"`
	OldValues  json.RawMessage `json:"oldValues,omitempty"`
	NewValues  json.RawMessage `json:"newValues,omitempty"`
	Reason     string          `json:"reason,omitempty"`
	IPAddress  string          `json:"ipAddress,omitempty"`
	UserAgent  string          `json:"userAgent,omitempty"`
	CreatedAt  time.Time       `json:"createdAt"`
}
