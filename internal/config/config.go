package config

import (
	"os"
	"strconv"
	"strings"
)

type LedgerDriver string

const (
	LedgerMemory   LedgerDriver = "memory"
	LedgerSQLite   LedgerDriver = "sqlite"
	LedgerPostgres LedgerDriver = "postgres"
	LedgerBadger   LedgerDriver = "badger"
)

type Config struct {
	HTTPAddr string

	LedgerDriver LedgerDriver
	LedgerDSN    string // sqlite/postgres
	BadgerDir    string // empty = in-memory

	AuthSecret  string
	TokenTTLMin int
	CORSOrigins []string

	LogLevel string
	LogJSON  bool

	// DefaultsFile is the YAML file with per-test-set randomization defaults.
	DefaultsFile string
	// PreviewSamples is how many orderings a preview request returns by default.
	PreviewSamples int
}

func FromEnv() Config {
	return Config{
		HTTPAddr:       envOr("HTTP_ADDR", ":8080"),
		LedgerDriver:   LedgerDriver(strings.ToLower(envOr("LEDGER_DRIVER", string(LedgerSQLite)))),
		LedgerDSN:      envOr("LEDGER_DSN", ""),
		BadgerDir:      envOr("BADGER_DIR", ""),
		AuthSecret:     envOr("AUTH_HMAC_SECRET", "dev-secret-change-me"),
		TokenTTLMin:    envInt("TOKEN_TTL_MIN", 120),
		CORSOrigins:    csvOr("CORS_ORIGINS", "http://localhost:3000,http://localhost:3010"),
		LogLevel:       envOr("LOG_LEVEL", "info"),
		LogJSON:        envBool("LOG_JSON", false),
		DefaultsFile:   envOr("DEFAULTS_FILE", ""),
		PreviewSamples: envInt("PREVIEW_SAMPLES", 3),
	}
}

func envOr(k, def string) string {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	return v
}
func envBool(k string, def bool) bool {
	switch os.Getenv(k) {
	case "1", "true", "TRUE", "yes", "YES":
		return true
	case "0", "false", "FALSE", "no", "NO":
		return false
	default:
		return def
	}
}
func envInt(k string, def int) int {
	n, err := strconv.Atoi(strings.TrimSpace(os.Getenv(k)))
	if err != nil {
		return def
	}
	return n
}
func csvOr(k, def string) []string {
	v := envOr(k, def)
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
