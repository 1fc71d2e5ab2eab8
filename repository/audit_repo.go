package repository

import (
	"context"
	"encoding/json"

	"github.com/yeremiapane/restaurant-pos/models"
)

// AuditEntry describes one audited change. Before and After are encoded as
// JSON.
type AuditEntry struct {
	Actor       string
	EntityType  string
	EntityID    uint
	Action      models.AuditAction
	Description string
	Before      interface{}
	After       interface{}
}

func toAuditLog(e AuditEntry) models.AuditLog {
	row := models.AuditLog{
		UserName:    e.Actor,
		EntityType:  e.EntityType,
		EntityID:    e.EntityID,
		Action:      e.Action,
		Description: e.Description,
	}
	if e.Before != nil {
		if b, err := json.Marshal(e.Before); err == nil {
			row.BeforeData = string(b)
		}
	}
	if e.After != nil {
		if b, err := json.Marshal(e.After); err == nil {
			row.AfterData = string(b)
		}
	}
	return row
}

type AuditRepository struct {
	base
	caps *Capabilities
}

// Write stores the entry, or does nothing when the audit table is absent.
func (r *AuditRepository) Write(ctx context.Context, e AuditEntry) error {
	if !r.caps.Supported(FeatureAuditLog) {
		return nil
	}
	db, cancel := r.conn(ctx)
	defer cancel()

	row := toAuditLog(e)
	err := db.Create(&row).Error
	if err != nil && IsSchemaMissing(err) {
		r.caps.Downgrade(FeatureAuditLog, err)
		return nil
	}
	return wrap("write audit log", err)
}
