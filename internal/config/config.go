package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	ferrors "git.home.luguber.info/inful/docsync/internal/foundation/errors"
)

// CurrentVersion is the only configuration version this build understands.
const CurrentVersion = "1"

// Config is the complete docsync configuration.
type Config struct {
	Version     string          `yaml:"version"`
	Docs        RepoConfig      `yaml:"docs"`
	Wiki        RepoConfig      `yaml:"wiki"`
	Bot         BotConfig       `yaml:"bot"`
	Migration   MigrationConfig `yaml:"migration"`
	Renderer    RendererConfig  `yaml:"renderer"`
	Git         GitConfig       `yaml:"git"`
	Pipeline    PipelineConfig  `yaml:"pipeline"`
	MappingFile string          `yaml:"mapping_file,omitempty"`
	Server      ServerConfig    `yaml:"server"`
	Schedule    ScheduleConfig  `yaml:"schedule"`
	History     HistoryConfig   `yaml:"history"`
	Notify      NotifyConfig    `yaml:"notify"`
	Logging     LoggingConfig   `yaml:"logging"`
}

// RepoConfig identifies one upstream repository and where its working copy lives.
type RepoConfig struct {
	Owner     string `yaml:"owner"`
	Name      string `yaml:"name"`
	LocalPath string `yaml:"local_path,omitempty"`
	RemoteURL string `yaml:"remote_url,omitempty"` // overrides the URL derived from base_url
	BaseURL   string `yaml:"base_url,omitempty"`
}

// FullName returns "owner/name", or "" when either part is missing.
func (r RepoConfig) FullName() string {
	if r.Owner == "" || r.Name == "" {
		return ""
	}
	return r.Owner + "/" + r.Name
}

// Configured reports whether the repository has an owner and a name.
func (r RepoConfig) Configured() bool { return r.FullName() != "" }

// CloneURL is the HTTPS URL of the repository itself.
func (r RepoConfig) CloneURL() string {
	if r.RemoteURL != "" {
		return r.RemoteURL
	}
	return strings.TrimSuffix(r.BaseURL, "/") + "/" + r.FullName() + ".git"
}

// WikiCloneURL is the URL of the wiki attached to the repository.
func (r RepoConfig) WikiCloneURL() string {
	if r.RemoteURL != "" {
		return r.RemoteURL
	}
	return strings.TrimSuffix(r.BaseURL, "/") + "/" + r.FullName() + ".wiki.git"
}

// Matches reports whether fullName names this repository (case-insensitive).
func (r RepoConfig) Matches(fullName string) bool {
	return r.Configured() && strings.EqualFold(r.FullName(), fullName)
}

// BotConfig is the identity used for commits and the credential pair used for pushes
// and renderer API calls.
type BotConfig struct {
	Name     string `yaml:"name"`
	Email    string `yaml:"email"`
	Username string `yaml:"username"`
	Token    string `yaml:"token"`
}

type MigrationConfig struct {
	Enabled      bool `yaml:"enabled"`
	CleanOnStart bool `yaml:"clean_on_start"`
}

type RendererConfig struct {
	Kind       RendererKind `yaml:"kind"`
	APIURL     string       `yaml:"api_url,omitempty"` // GitHub Enterprise API base
	Throttle   Duration     `yaml:"throttle"`
	RetryDelay Duration     `yaml:"retry_delay"`
	Timeout    Duration     `yaml:"timeout"`
}

type GitConfig struct {
	Timeout     Duration `yaml:"timeout"`
	PushTimeout Duration `yaml:"push_timeout"`
}

type PipelineConfig struct {
	Workers         int    `yaml:"workers"`
	QueueSize       int    `yaml:"queue_size"`
	ReposDir        string `yaml:"repos_dir"`
	AllowOtherRepos bool   `yaml:"allow_other_repos"`
}

type ServerConfig struct {
	Address       string `yaml:"address"`
	WebhookSecret string `yaml:"webhook_secret,omitempty"`
}

// ScheduleConfig controls the periodic resync. A zero interval disables it.
type ScheduleConfig struct {
	ResyncInterval Duration `yaml:"resync_interval"`
}

// HistoryConfig locates the run history database. An empty path keeps history in memory.
type HistoryConfig struct {
	Path string `yaml:"path"`
}

type NotifyConfig struct {
	Enabled bool   `yaml:"enabled"`
	NATSURL string `yaml:"nats_url,omitempty"`
	Subject string `yaml:"subject,omitempty"`
}

type LoggingConfig struct {
	Level  LogLevel  `yaml:"level"`
	Format LogFormat `yaml:"format"`
}

// Load reads, expands, defaults and validates the configuration at path.
// A relative mapping_file is resolved against the directory holding path.
func Load(path string) (*Config, error) {
	loadEnvFiles(filepath.Dir(path))

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("configuration file not found: %s", path)
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, err
	}
	if cfg.MappingFile != "" && !filepath.IsAbs(cfg.MappingFile) {
		cfg.MappingFile = filepath.Join(filepath.Dir(path), cfg.MappingFile)
	}
	return cfg, nil
}

// Parse is Load without the file system: it expands ${VAR} references,
// decodes the YAML, applies defaults and validates.
func Parse(data []byte) (*Config, error) {
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if cfg.Version != "" && cfg.Version != CurrentVersion {
		return nil, ferrors.ConfigError(fmt.Sprintf("unsupported configuration version: %s (expected %s)", cfg.Version, CurrentVersion)).
			WithContext("version", cfg.Version).
			Build()
	}

	applyDefaults(&cfg)
	if err := Validate(&cfg); err != nil {
		return nil, ferrors.ConfigError("configuration validation failed").WithCause(err).Build()
	}
	return &cfg, nil
}

// Init writes an example configuration file to path.
func Init(path string, force bool) error {
	if _, err := os.Stat(path); err == nil && !force {
		return fmt.Errorf("configuration file already exists: %s (use --force to overwrite)", path)
	}

	example := Config{
		Version: CurrentVersion,
		Docs:    RepoConfig{Owner: "your-org", Name: "docs", LocalPath: "./repos/your-org/docs"},
		Wiki:    RepoConfig{Owner: "your-org", Name: "project", LocalPath: "./repos/your-org/project.wiki"},
		Bot: BotConfig{
			Name:     DefaultBotName,
			Email:    DefaultBotEmail,
			Username: "${DOCSYNC_GIT_USERNAME}",
			Token:    "${DOCSYNC_GIT_TOKEN}",
		},
		Migration: MigrationConfig{Enabled: false, CleanOnStart: false},
		Renderer: RendererConfig{
			Kind:       RendererGitHub,
			Throttle:   Duration(time.Second),
			RetryDelay: Duration(5 * time.Second),
			Timeout:    Duration(30 * time.Second),
		},
		Git:         GitConfig{Timeout: Duration(5 * time.Minute), PushTimeout: Duration(2 * time.Minute)},
		Pipeline:    PipelineConfig{Workers: 2, QueueSize: 100, ReposDir: "./repos"},
		MappingFile: "./" + DefaultMappingFile,
		Server:      ServerConfig{Address: ":8080", WebhookSecret: "${DOCSYNC_WEBHOOK_SECRET}"},
		Schedule:    ScheduleConfig{ResyncInterval: Duration(time.Hour)},
		History:     HistoryConfig{Path: "./docsync-history.db"},
		Notify:      NotifyConfig{Enabled: false, NATSURL: "nats://127.0.0.1:4222", Subject: DefaultNotifySubject},
		Logging:     LoggingConfig{Level: LogLevelInfo, Format: LogFormatText},
	}

	data, err := yaml.Marshal(&example)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
