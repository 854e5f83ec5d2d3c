// Package config reads service settings from the environment.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Server captures HTTP server level configuration.
type Server struct {
	Port            int
	DBPath          string
	CORSOrigins     []string
	RefreshInterval time.Duration
	// SeedBundles are bundle files (JSON or YAML) loaded at startup in
	// addition to the embedded sample.
	SeedBundles []string
	// SeedSample controls whether the embedded sample bundle is stored on
	// startup.
	SeedSample bool
}

// Defaults used when a variable is unset or unparseable.
const (
	DefaultPort            = 8080
	DefaultDBPath          = "./data/ledger.db"
	DefaultRefreshInterval = time.Minute
)

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() Server {
	return Server{
		Port:            intEnv("PORT", DefaultPort),
		DBPath:          stringEnv("DB_PATH", DefaultDBPath),
		CORSOrigins:     listEnv("CORS_ORIGINS", []string{"*"}),
		RefreshInterval: durationEnv("REFRESH_INTERVAL", DefaultRefreshInterval),
		SeedBundles:     listEnv("SEED_BUNDLES", nil),
		SeedSample:      os.Getenv("SEED_SAMPLE") != "false",
	}
}

// Addr is the listen address for Port.
func (s Server) Addr() string {
	return ":" + strconv.Itoa(s.Port)
}

func stringEnv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func intEnv(key string, def int) int {
	n, err := strconv.Atoi(strings.TrimSpace(os.Getenv(key)))
	if err != nil || n <= 0 {
		return def
	}
	return n
}

// durationEnv accepts Go durations ("90s") or bare seconds ("90"). Zero
// disables the background refresher.
func durationEnv(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	if d, err := time.ParseDuration(v); err == nil && d >= 0 {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil && n >= 0 {
		return time.Duration(n) * time.Second
	}
	return def
}

func listEnv(key string, def []string) []string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
