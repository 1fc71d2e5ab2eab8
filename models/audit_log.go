package models

import "time"

type AuditAction string

const (
	AuditActionCheckout AuditAction = "checkout"
	AuditActionClear    AuditAction = "clear"
	AuditActionRelease  AuditAction = "release"
)

// AuditLog lives in an optional table; writes are skipped when it is absent.
type AuditLog struct {
	ID          uint        `gorm:"primaryKey" json:"id"`
	CreatedAt   time.Time   `json:"created_at"`
	UserName    string      `gorm:"size:100" json:"user_name"`
	EntityType  string      `gorm:"size:50;index" json:"entity_type"`
	EntityID    uint        `gorm:"index" json:"entity_id"`
	Action      AuditAction `gorm:"size:20" json:"action"`
	Description string      `gorm:"size:255" json:"description"`
	BeforeData  string      `gorm:"type:text" json:"before_data"`
	AfterData   string      `gorm:"type:text" json:"after_data"`
}
