package repository

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/yeremiapane/restaurant-pos/metrics"
	"github.com/yeremiapane/restaurant-pos/utils"
)

// EnumInspector reads the values a column accepts. constrained is false when
// the column takes any string.
type EnumInspector interface {
	AllowedValues(ctx context.Context, table, column string) (values []string, constrained bool, err error)
}

// SchemaInspector reads enum and CHECK constraints from the live schema.
type SchemaInspector struct {
	db *gorm.DB
}

func NewSchemaInspector(db *gorm.DB) *SchemaInspector {
	return &SchemaInspector{db: db}
}

var quotedValue = regexp.MustCompile(`'((?:[^']|'')*)'`)

func parseQuotedList(s string) []string {
	var out []string
	for _, m := range quotedValue.FindAllStringSubmatch(s, -1) {
		out = append(out, strings.ReplaceAll(m[1], "''", "'"))
	}
	return out
}

func (s *SchemaInspector) AllowedValues(ctx context.Context, table, column string) ([]string, bool, error) {
	db := s.db.WithContext(ctx)
	switch s.db.Dialector.Name() {
	case "mysql":
		var columnType string
		err := db.Raw(
			"SELECT COLUMN_TYPE FROM information_schema.COLUMNS WHERE TABLE_SCHEMA = DATABASE() AND TABLE_NAME = ? AND COLUMN_NAME = ?",
			table, column,
		).Row().Scan(&columnType)
		if err != nil {
			return nil, false, fmt.Errorf("failed to read column type of %s.%s: %w", table, column, err)
		}
		if !strings.HasPrefix(strings.ToLower(columnType), "enum(") {
			return nil, false, nil
		}
		return parseQuotedList(columnType), true, nil

	case "postgres":
		var labels []string
		err := db.Raw(`SELECT e.enumlabel
			FROM pg_attribute a
			JOIN pg_class c ON c.oid = a.attrelid
			JOIN pg_enum e ON e.enumtypid = a.atttypid
			WHERE c.relname = ? AND a.attname = ?
			ORDER BY e.enumsortorder`, table, column).Scan(&labels).Error
		if err != nil {
			return nil, false, fmt.Errorf("failed to read enum labels of %s.%s: %w", table, column, err)
		}
		return labels, len(labels) > 0, nil

	case "sqlite":
		var ddl string
		err := db.Raw("SELECT sql FROM sqlite_master WHERE type = 'table' AND name = ?", table).Row().Scan(&ddl)
		if err != nil {
			return nil, false, fmt.Errorf("failed to read definition of %s: %w", table, err)
		}
		check := regexp.MustCompile("(?is)CHECK\\s*\\(\\s*[\"`]?" + regexp.QuoteMeta(column) + "[\"`]?\\s+IN\\s*\\(([^)]*)\\)")
		m := check.FindStringSubmatch(ddl)
		if m == nil {
			return nil, false, nil
		}
		return parseQuotedList(m[1]), true, nil
	}
	return nil, false, nil
}

// StatusMapper turns logical order statuses into values the orders.status
// column accepts. The schema is read once; every resolved mapping is cached.
type StatusMapper struct {
	inspector EnumInspector
	table     string
	column    string
	fallbacks map[string][]string
	timeout   time.Duration

	mu          sync.Mutex
	loaded      bool
	constrained bool
	allowed     map[string]string // upper-cased value -> stored spelling
	ordered     []string
	cache       map[string]string
	reverse     map[string]string
}

func NewStatusMapper(inspector EnumInspector, fallbacks map[string][]string, timeout time.Duration) *StatusMapper {
	fb := make(map[string][]string, len(fallbacks))
	for k, v := range fallbacks {
		fb[strings.ToUpper(k)] = v
	}
	return &StatusMapper{
		inspector: inspector,
		table:     "orders",
		column:    "status",
		fallbacks: fb,
		timeout:   timeout,
		cache:     make(map[string]string),
		reverse:   make(map[string]string),
	}
}

// Load reads the allowed values now. Calling it at startup keeps the schema
// query out of later write transactions.
func (m *StatusMapper) Load(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.load(ctx)
}

func (m *StatusMapper) load(ctx context.Context) error {
	if m.loaded {
		return nil
	}
	if m.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.timeout)
		defer cancel()
	}
	values, constrained, err := m.inspector.AllowedValues(ctx, m.table, m.column)
	if err != nil {
		return err
	}
	m.loaded = true
	m.constrained = constrained && len(values) > 0
	m.allowed = make(map[string]string, len(values))
	m.ordered = values
	for _, v := range values {
		m.allowed[strings.ToUpper(v)] = v
	}
	return nil
}

// Resolve returns the value to store for the logical status.
func (m *StatusMapper) Resolve(ctx context.Context, logical string) string {
	key := strings.ToUpper(logical)

	m.mu.Lock()
	defer m.mu.Unlock()

	if stored, ok := m.cache[key]; ok {
		return stored
	}
	if err := m.load(ctx); err != nil {
		// Written unchanged this time; the next write inspects again.
		utils.ErrorLogger.Printf("Failed to inspect %s.%s: %v", m.table, m.column, err)
		return logical
	}
	if !m.constrained {
		m.remember(key, logical)
		return logical
	}
	if stored, ok := m.allowed[key]; ok {
		m.remember(key, stored)
		return stored
	}

	stored := ""
	for _, candidate := range m.fallbacks[key] {
		if v, ok := m.allowed[strings.ToUpper(candidate)]; ok {
			stored = v
			break
		}
	}
	if stored == "" {
		stored = m.ordered[0]
	}
	utils.InfoLogger.WithFields(logrus.Fields{
		"status":   logical,
		"fallback": stored,
		"column":   m.table + "." + m.column,
	}).Warn("Order status not supported by schema, storing fallback")
	metrics.StatusFallbacks.WithLabelValues(key, stored).Inc()
	m.remember(key, stored)
	return stored
}

func (m *StatusMapper) remember(logical, stored string) {
	m.cache[logical] = stored
	if _, taken := m.reverse[strings.ToUpper(stored)]; !taken || logical == strings.ToUpper(stored) {
		m.reverse[strings.ToUpper(stored)] = logical
	}
}

// ToLogical maps a stored value back to the logical status it was written for.
// When several statuses share one fallback the stored value's own name wins.
func (m *StatusMapper) ToLogical(stored string) string {
	key := strings.ToUpper(stored)
	m.mu.Lock()
	defer m.mu.Unlock()
	if logical, ok := m.reverse[key]; ok {
		return logical
	}
	return key
}
