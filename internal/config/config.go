// Copyright (c) 2026 John Earle
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package config loads configuration from config.yaml and environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// MailboxConfig holds OAuth2 credentials for the watched mailbox.
type MailboxConfig struct {
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	RefreshToken string `yaml:"refresh_token"`
	User         string `yaml:"user"` // mailbox address; "me" when absent
}

// Config holds all configuration for the agent.
type Config struct {
	Mailbox MailboxConfig

	// Ingestion cycle
	ListLimit    int
	PollInterval time.Duration

	// Classifier
	ClassifierURL     string
	ClassifierTimeout time.Duration
	VerdictCacheTTL   time.Duration

	// OCR (opt-in: enrichment is skipped when the key is empty)
	OCREndpoint string
	OCRAPIKey   string

	// Stores
	RedisURL    string
	DatabaseURL string // empty disables the Postgres archive

	// Annotation pipeline
	ScanDebounce time.Duration
	ScanFallback time.Duration
	NotifyQueue  string

	// Server
	Port int
}

// rawConfig mirrors the YAML structure for unmarshalling.
type rawConfig struct {
	Mailbox struct {
		ClientID     string `yaml:"client_id"`
		ClientSecret string `yaml:"client_secret"`
		RefreshToken string `yaml:"refresh_token"`
		User         string `yaml:"user"`
	} `yaml:"mailbox"`
	Classifier struct {
		URL string `yaml:"url"`
	} `yaml:"classifier"`
	OCR struct {
		Endpoint string `yaml:"endpoint"`
		APIKey   string `yaml:"api_key"`
	} `yaml:"ocr"`
	Redis struct {
		URL    string `yaml:"url"`
		Queues struct {
			Notifications string `yaml:"notifications"`
		} `yaml:"queues"`
	} `yaml:"redis"`
	Database struct {
		URL string `yaml:"url"`
	} `yaml:"database"`
}

// Load reads configuration from config.yaml (with env var expansion) and
// environment variables for non-YAML settings.
func Load() (*Config, error) {
	configPath := envOrDefault("CONFIG_PATH", "/app/config/config.yaml")

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("read config file %s: %w", configPath, err)
	}

	// Expand ${VAR} references in the YAML
	expanded := os.ExpandEnv(string(data))

	var raw rawConfig
	if err := yaml.Unmarshal([]byte(expanded), &raw); err != nil {
		return nil, fmt.Errorf("parse config YAML: %w", err)
	}

	cfg := &Config{
		Mailbox: MailboxConfig{
			ClientID:     raw.Mailbox.ClientID,
			ClientSecret: raw.Mailbox.ClientSecret,
			RefreshToken: raw.Mailbox.RefreshToken,
			User:         firstNonEmpty(raw.Mailbox.User, "me"),
		},
		ListLimit:         envOrDefaultInt("LIST_LIMIT", 20),
		PollInterval:      envOrDefaultDuration("POLL_INTERVAL", 90*time.Second),
		ClassifierURL:     firstNonEmpty(raw.Classifier.URL, os.Getenv("CLASSIFIER_URL")),
		ClassifierTimeout: envOrDefaultDuration("CLASSIFIER_TIMEOUT", 20*time.Second),
		VerdictCacheTTL:   envOrDefaultDuration("VERDICT_CACHE_TTL", 24*time.Hour),
		OCREndpoint:       firstNonEmpty(raw.OCR.Endpoint, envOrDefault("OCR_ENDPOINT", "https://api.ocr.space/parse/image")),
		OCRAPIKey:         firstNonEmpty(raw.OCR.APIKey, os.Getenv("OCR_API_KEY")),
		RedisURL:          firstNonEmpty(raw.Redis.URL, envOrDefault("REDIS_URL", "redis://localhost:6379/0")),
		DatabaseURL:       firstNonEmpty(raw.Database.URL, os.Getenv("DATABASE_URL")),
		ScanDebounce:      envOrDefaultDuration("SCAN_DEBOUNCE", 400*time.Millisecond),
		ScanFallback:      envOrDefaultDuration("SCAN_FALLBACK_INTERVAL", 30*time.Second),
		NotifyQueue:       firstNonEmpty(raw.Redis.Queues.Notifications, envOrDefault("NOTIFY_QUEUE", "mailguard:notifications")),
		Port:              envOrDefaultInt("PORT", 8080),
	}

	if cfg.Mailbox.ClientID == "" || cfg.Mailbox.ClientSecret == "" || cfg.Mailbox.RefreshToken == "" {
		return nil, fmt.Errorf("mailbox credentials missing — check config.yaml and environment variables")
	}

	if cfg.ClassifierURL == "" {
		return nil, fmt.Errorf("classifier URL missing — set classifier.url or CLASSIFIER_URL")
	}

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envOrDefaultInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envOrDefaultDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
