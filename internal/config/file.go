package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	yaml "go.yaml.in/yaml/v3"
)

// fileConfig is the YAML layout of ERP_CONFIG_FILE. Unknown keys are rejected.
type fileConfig struct {
	HTTPPort int `yaml:"http_port"`
	Database struct {
		Driver string `yaml:"driver"`
		DSN    string `yaml:"dsn"`
	} `yaml:"database"`
	Auth struct {
		JWTSecret  string `yaml:"jwt_secret"`
		APIKeyHash string `yaml:"api_key_hash"`
	} `yaml:"auth"`
	Timezone        string `yaml:"timezone"`
	SecondaryOffset string `yaml:"secondary_offset"`
	Log             struct {
		Format string `yaml:"format"`
		Level  string `yaml:"level"`
	} `yaml:"log"`
	SystemUser string `yaml:"system_user"`
	Notify     struct {
		Enabled    *bool  `yaml:"enabled"`
		RatePerSec int    `yaml:"rate_per_sec"`
		WebhookURL string `yaml:"webhook_url"`
	} `yaml:"notify"`
	JobTimeout      string            `yaml:"job_timeout"`
	ShutdownTimeout string            `yaml:"shutdown_timeout"`
	Jobs            map[string]string `yaml:"jobs"`
}

// readFile decodes path and flattens it into environment variable names so
// file and environment share one parser.
func readFile(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var fc fileConfig
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&fc); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse config file %s: %w", path, err)
	}

	out := map[string]string{}
	set := func(key, value string) {
		if strings.TrimSpace(value) != "" {
			out[key] = value
		}
	}
	if fc.HTTPPort != 0 {
		out["ERP_HTTP_PORT"] = strconv.Itoa(fc.HTTPPort)
	}
	set("ERP_DB_DRIVER", fc.Database.Driver)
	set("ERP_DB_DSN", fc.Database.DSN)
	set("ERP_JWT_SECRET", fc.Auth.JWTSecret)
	set("ERP_API_KEY_HASH", fc.Auth.APIKeyHash)
	set("ERP_TIMEZONE", fc.Timezone)
	set("ERP_SECONDARY_OFFSET", fc.SecondaryOffset)
	set("ERP_LOG_FORMAT", fc.Log.Format)
	set("ERP_LOG_LEVEL", fc.Log.Level)
	set("ERP_SYSTEM_USER", fc.SystemUser)
	if fc.Notify.Enabled != nil {
		out["ERP_NOTIFY_ENABLED"] = strconv.FormatBool(*fc.Notify.Enabled)
	}
	if fc.Notify.RatePerSec != 0 {
		out["ERP_NOTIFY_RATE"] = strconv.Itoa(fc.Notify.RatePerSec)
	}
	set("ERP_NOTIFY_WEBHOOK_URL", fc.Notify.WebhookURL)
	set("ERP_JOB_TIMEOUT", fc.JobTimeout)
	set("ERP_SHUTDOWN_TIMEOUT", fc.ShutdownTimeout)
	for name, spec := range fc.Jobs {
		set(jobSpecPrefix+strings.ToUpper(strings.ReplaceAll(name, "-", "_")), spec)
	}
	return out, nil
}
