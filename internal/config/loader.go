package config

import (
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/example/erp-automation/internal/logging"
)

// EnvConfigFile names the optional YAML file read before the environment.
const EnvConfigFile = "ERP_CONFIG_FILE"

const jobSpecPrefix = "ERP_JOB_"

// Config captures the settings of the automation service.
type Config struct {
	HTTPPort        int
	DBDriver        string
	DBDSN           string
	JWTSecret       string
	APIKeyHash      string
	Location        *time.Location
	SecondaryOffset time.Duration
	LogFormat       string
	LogLevel        slog.Level
	SystemUser      string
	NotifyEnabled   bool
	NotifyRate      int
	NotifyWebhook   string
	JobTimeout      time.Duration
	ShutdownTimeout time.Duration
	// JobSpecs overrides cron specs keyed by job name, e.g. "rollover-hourly".
	JobSpecs map[string]string
}

// Load reads ERP_CONFIG_FILE when set, then the process environment.
// Environment values win over file values.
func Load() (Config, error) {
	file := map[string]string{}
	if path := strings.TrimSpace(os.Getenv(EnvConfigFile)); path != "" {
		values, err := readFile(path)
		if err != nil {
			return Config{}, err
		}
		file = values
	}

	env := map[string]string{}
	for _, kv := range os.Environ() {
		if key, value, ok := strings.Cut(kv, "="); ok && strings.HasPrefix(key, "ERP_") {
			env[key] = value
		}
	}
	return parse(func(key string) string {
		if v, ok := env[key]; ok {
			return strings.TrimSpace(v)
		}
		return strings.TrimSpace(file[key])
	}, mergeKeys(file, env))
}

func mergeKeys(maps ...map[string]string) []string {
	seen := map[string]struct{}{}
	for _, m := range maps {
		for k := range m {
			seen[k] = struct{}{}
		}
	}
	keys := make([]string, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func parse(get func(string) string, keys []string) (Config, error) {
	cfg := Config{
		HTTPPort:        8080,
		DBDriver:        "sqlite",
		DBDSN:           "file:erp.db",
		Location:        time.UTC,
		SecondaryOffset: time.Hour,
		LogFormat:       "json",
		LogLevel:        slog.LevelInfo,
		SystemUser:      "Administrator",
		NotifyEnabled:   true,
		NotifyRate:      5,
		JobTimeout:      10 * time.Minute,
		ShutdownTimeout: 15 * time.Second,
		JobSpecs:        map[string]string{},
	}

	missing := make([]string, 0, 1)
	invalid := make([]string, 0, 2)

	if v := get("ERP_HTTP_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil || port <= 0 || port > 65535 {
			invalid = append(invalid, "ERP_HTTP_PORT")
		} else {
			cfg.HTTPPort = port
		}
	}

	if v := get("ERP_DB_DRIVER"); v != "" {
		switch strings.ToLower(v) {
		case "sqlite", "postgres":
			cfg.DBDriver = strings.ToLower(v)
		default:
			invalid = append(invalid, "ERP_DB_DRIVER")
		}
	}
	if v := get("ERP_DB_DSN"); v != "" {
		cfg.DBDSN = v
	}

	if v := get("ERP_JWT_SECRET"); v == "" {
		missing = append(missing, "ERP_JWT_SECRET")
	} else {
		cfg.JWTSecret = v
	}
	if v := get("ERP_API_KEY_HASH"); v != "" {
		if !strings.HasPrefix(v, "$argon2id$") {
			invalid = append(invalid, "ERP_API_KEY_HASH")
		} else {
			cfg.APIKeyHash = v
		}
	}

	if v := get("ERP_TIMEZONE"); v != "" {
		loc, err := time.LoadLocation(v)
		if err != nil {
			invalid = append(invalid, "ERP_TIMEZONE")
		} else {
			cfg.Location = loc
		}
	}
	if v := get("ERP_SECONDARY_OFFSET"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= -24*time.Hour || d >= 24*time.Hour {
			invalid = append(invalid, "ERP_SECONDARY_OFFSET")
		} else {
			cfg.SecondaryOffset = d
		}
	}

	if v := get("ERP_LOG_FORMAT"); v != "" {
		switch strings.ToLower(v) {
		case "json", "text":
			cfg.LogFormat = strings.ToLower(v)
		default:
			invalid = append(invalid, "ERP_LOG_FORMAT")
		}
	}
	if v := get("ERP_LOG_LEVEL"); v != "" {
		level, err := logging.ParseLevel(v)
		if err != nil {
			invalid = append(invalid, "ERP_LOG_LEVEL")
		} else {
			cfg.LogLevel = level
		}
	}

	if v := get("ERP_SYSTEM_USER"); v != "" {
		cfg.SystemUser = v
	}

	if v := get("ERP_NOTIFY_ENABLED"); v != "" {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			invalid = append(invalid, "ERP_NOTIFY_ENABLED")
		} else {
			cfg.NotifyEnabled = enabled
		}
	}
	if v := get("ERP_NOTIFY_RATE"); v != "" {
		rate, err := strconv.Atoi(v)
		if err != nil || rate <= 0 {
			invalid = append(invalid, "ERP_NOTIFY_RATE")
		} else {
			cfg.NotifyRate = rate
		}
	}
	if v := get("ERP_NOTIFY_WEBHOOK_URL"); v != "" {
		if !strings.HasPrefix(v, "http://") && !strings.HasPrefix(v, "https://") {
			invalid = append(invalid, "ERP_NOTIFY_WEBHOOK_URL")
		} else {
			cfg.NotifyWebhook = v
		}
	}

	for key, target := range map[string]*time.Duration{
		"ERP_JOB_TIMEOUT":      &cfg.JobTimeout,
		"ERP_SHUTDOWN_TIMEOUT": &cfg.ShutdownTimeout,
	} {
		v := get(key)
		if v == "" {
			continue
		}
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			invalid = append(invalid, key)
			continue
		}
		*target = d
	}

	for _, key := range keys {
		if !strings.HasPrefix(key, jobSpecPrefix) || key == "ERP_JOB_TIMEOUT" {
			continue
		}
		if v := get(key); v != "" {
			name := strings.ToLower(strings.ReplaceAll(strings.TrimPrefix(key, jobSpecPrefix), "_", "-"))
			cfg.JobSpecs[name] = v
		}
	}

	if len(missing) > 0 {
		return Config{}, fmt.Errorf("missing required environment variables: %s", strings.Join(missing, ", "))
	}
	if len(invalid) > 0 {
		sort.Strings(invalid)
		return Config{}, fmt.Errorf("invalid environment values: %s", strings.Join(invalid, ", "))
	}

	return cfg, nil
}
