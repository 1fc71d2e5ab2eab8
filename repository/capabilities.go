package repository

import (
	"sync/atomic"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/yeremiapane/restaurant-pos/metrics"
	"github.com/yeremiapane/restaurant-pos/models"
	"github.com/yeremiapane/restaurant-pos/utils"
)

// Feature names an optional part of the schema.
type Feature string

const (
	FeatureExpenseDescription Feature = "expenses.description"
	FeatureAuditLog           Feature = "audit_logs"
)

var optionalFeatures = []Feature{FeatureExpenseDescription, FeatureAuditLog}

// Capabilities records which optional schema features are usable. A feature
// starts supported and can only be downgraded, once, for the process lifetime.
type Capabilities struct {
	downgraded map[Feature]*atomic.Bool
}

func NewCapabilities() *Capabilities {
	c := &Capabilities{downgraded: make(map[Feature]*atomic.Bool, len(optionalFeatures))}
	for _, f := range optionalFeatures {
		c.downgraded[f] = new(atomic.Bool)
	}
	return c
}

// Supported reports whether the full code path for f may be used.
func (c *Capabilities) Supported(f Feature) bool {
	flag, ok := c.downgraded[f]
	if !ok {
		return false
	}
	return !flag.Load()
}

// Downgrade switches f to the reduced code path. It returns true only for the
// call that performed the switch.
func (c *Capabilities) Downgrade(f Feature, cause error) bool {
	flag, ok := c.downgraded[f]
	if !ok || !flag.CompareAndSwap(false, true) {
		return false
	}
	fields := logrus.Fields{"feature": string(f)}
	if cause != nil {
		fields["cause"] = cause.Error()
	}
	utils.InfoLogger.WithFields(fields).Warn("Optional schema feature unavailable, using reduced code path")
	metrics.SchemaDowngrades.WithLabelValues(string(f)).Inc()
	return true
}

// Probe checks the optional columns and tables once at startup.
func (c *Capabilities) Probe(db *gorm.DB) {
	m := db.Migrator()
	if !m.HasTable(&models.AuditLog{}) {
		c.Downgrade(FeatureAuditLog, nil)
	}
	if !m.HasColumn(&models.Expense{}, "Description") {
		c.Downgrade(FeatureExpenseDescription, nil)
	}
}
