package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/yeremiapane/restaurant-pos/models"
	"github.com/yeremiapane/restaurant-pos/utils"
)

type Config struct {
	Port    string
	GinMode string

	DBDriver        string
	DBDSN           string
	DBTimeout       time.Duration
	DBMaxOpenConns  int
	DBMaxIdleConns  int
	DBConnLifetime  time.Duration
	DBAutoMigrate   bool
	CheckoutRetries int

	TableReleaseRetries  int
	TableReleaseInterval time.Duration

	DefaultActor    string
	HistoryCapacity int
	CurrencySymbol  string
	LogLevel        string
	RateLimitRPS    int
	CORSOrigin      string

	// dining tables created at startup when missing
	TableLayout []models.Table

	// logical status -> ordered fallbacks tried when the schema lacks the status
	StatusFallbacks map[string][]string
}

// DefaultStatusFallbacks is used when STATUS_FALLBACKS is unset.
var DefaultStatusFallbacks = map[string][]string{
	"READY":     {"IN_PROGRESS", "PENDING"},
	"SERVED":    {"READY", "IN_PROGRESS", "PENDING"},
	"COMPLETED": {"PAID", "CLOSED"},
	"CANCELLED": {"CANCELED", "VOID"},
}

// Load reads .env (when present) and the process environment.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		utils.InfoLogger.Println("Warning: .env file not found, using environment variables")
	}

	cfg := &Config{
		Port:                 getEnv("PORT", "8080"),
		GinMode:              getEnv("GIN_MODE", "debug"),
		DBDriver:             strings.ToLower(getEnv("DB_DRIVER", "sqlite")),
		DBDSN:                getEnv("DB_DSN", "restaurant.db"),
		DBTimeout:            getDuration("DB_TIMEOUT", 5*time.Second),
		DBMaxOpenConns:       getInt("DB_MAX_OPEN_CONNS", 20),
		DBMaxIdleConns:       getInt("DB_MAX_IDLE_CONNS", 5),
		DBConnLifetime:       getDuration("DB_CONN_LIFETIME", time.Hour),
		DBAutoMigrate:        getBool("DB_AUTO_MIGRATE", true),
		CheckoutRetries:      getInt("CHECKOUT_RETRIES", 3),
		TableReleaseRetries:  getInt("TABLE_RELEASE_RETRIES", 5),
		TableReleaseInterval: getDuration("TABLE_RELEASE_INTERVAL", 30*time.Second),
		DefaultActor:         getEnv("DEFAULT_ACTOR", "system"),
		HistoryCapacity:      getInt("HISTORY_CAPACITY", 50),
		CurrencySymbol:       getEnv("CURRENCY_SYMBOL", "₺"),
		LogLevel:             getEnv("LOG_LEVEL", "info"),
		RateLimitRPS:         getInt("RATE_LIMIT_RPS", 50),
		CORSOrigin:           getEnv("CORS_ORIGIN", "*"),
		StatusFallbacks:      DefaultStatusFallbacks,
	}

	if raw := os.Getenv("STATUS_FALLBACKS"); raw != "" {
		fallbacks, err := ParseStatusFallbacks(raw)
		if err != nil {
			utils.ErrorLogger.Printf("Ignoring STATUS_FALLBACKS: %v", err)
		} else {
			cfg.StatusFallbacks = fallbacks
		}
	}

	if raw := os.Getenv("TABLE_LAYOUT"); raw != "" {
		layout, err := ParseTableLayout(raw)
		if err != nil {
			utils.ErrorLogger.Printf("Ignoring TABLE_LAYOUT: %v", err)
		} else {
			cfg.TableLayout = layout
		}
	}

	if cfg.DBDriver == "sqlite" && cfg.DBDSN == "restaurant.db" {
		utils.InfoLogger.Println("[WARN] DB_DSN not set, using local sqlite file restaurant.db")
	}
	return cfg
}

// ParseStatusFallbacks parses "READY=IN_PROGRESS|PENDING;SERVED=READY".
func ParseStatusFallbacks(raw string) (map[string][]string, error) {
	out := make(map[string][]string)
	for _, entry := range strings.Split(raw, ";") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		key, value, ok := strings.Cut(entry, "=")
		if !ok || strings.TrimSpace(key) == "" {
			return nil, fmt.Errorf("malformed entry %q", entry)
		}
		var chain []string
		for _, s := range strings.Split(value, "|") {
			if s = strings.ToUpper(strings.TrimSpace(s)); s != "" {
				chain = append(chain, s)
			}
		}
		if len(chain) == 0 {
			return nil, fmt.Errorf("entry %q has no fallback", entry)
		}
		out[strings.ToUpper(strings.TrimSpace(key))] = chain
	}
	return out, nil
}

// ParseTableLayout parses "Main/Salon=1-10;Garden/Terrace=11-14". Each entry
// is building/section followed by a table number or an inclusive range.
func ParseTableLayout(raw string) ([]models.Table, error) {
	var out []models.Table
	seen := make(map[int]bool)
	for _, entry := range strings.Split(raw, ";") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		place, numbers, ok := strings.Cut(entry, "=")
		if !ok {
			return nil, fmt.Errorf("malformed entry %q", entry)
		}
		building, section, _ := strings.Cut(place, "/")
		first, last, isRange := strings.Cut(numbers, "-")
		from, err := strconv.Atoi(strings.TrimSpace(first))
		if err != nil {
			return nil, fmt.Errorf("entry %q: bad table number", entry)
		}
		to := from
		if isRange {
			if to, err = strconv.Atoi(strings.TrimSpace(last)); err != nil {
				return nil, fmt.Errorf("entry %q: bad table number", entry)
			}
		}
		if from <= 0 || to < from {
			return nil, fmt.Errorf("entry %q: bad range", entry)
		}
		for n := from; n <= to; n++ {
			if seen[n] {
				return nil, fmt.Errorf("table %d listed twice", n)
			}
			seen[n] = true
			out = append(out, models.Table{
				TableNumber: n,
				Building:    strings.TrimSpace(building),
				Section:     strings.TrimSpace(section),
			})
		}
	}
	return out, nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		utils.ErrorLogger.Printf("Invalid %s=%q, using %d", key, v, def)
		return def
	}
	return n
}

func getBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		utils.ErrorLogger.Printf("Invalid %s=%q, using %t", key, v, def)
		return def
	}
	return b
}

func getDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		utils.ErrorLogger.Printf("Invalid %s=%q, using %s", key, v, def)
		return def
	}
	return d
}
