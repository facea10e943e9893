package config

import (
	"path/filepath"
	"time"
)

const (
	DefaultBotName       = "ServiceStackDocsBot"
	DefaultBotEmail      = "docsbot@servicestack.net"
	DefaultBaseURL       = "https://github.com"
	DefaultNotifySubject = "docsync.published"
	DefaultMappingFile   = "mappings.yaml"
)

// applyDefaults fills every unset field. Enumerations are normalized first so
// the canonical values drive later checks.
func applyDefaults(cfg *Config) {
	if cfg.Version == "" {
		cfg.Version = CurrentVersion
	}

	if cfg.Pipeline.ReposDir == "" {
		cfg.Pipeline.ReposDir = "./repos"
	}
	if cfg.Pipeline.Workers <= 0 {
		cfg.Pipeline.Workers = 2
	}
	if cfg.Pipeline.QueueSize <= 0 {
		cfg.Pipeline.QueueSize = 100
	}

	defaultRepo(&cfg.Docs, cfg.Pipeline.ReposDir, "")
	defaultRepo(&cfg.Wiki, cfg.Pipeline.ReposDir, ".wiki")

	if cfg.Bot.Name == "" {
		cfg.Bot.Name = DefaultBotName
	}
	if cfg.Bot.Email == "" {
		cfg.Bot.Email = DefaultBotEmail
	}

	cfg.Renderer.Kind = NormalizeRendererKind(string(cfg.Renderer.Kind))
	if cfg.Renderer.Throttle == 0 {
		cfg.Renderer.Throttle = Duration(time.Second)
	}
	if cfg.Renderer.RetryDelay == 0 {
		cfg.Renderer.RetryDelay = Duration(5 * time.Second)
	}
	if cfg.Renderer.Timeout == 0 {
		cfg.Renderer.Timeout = Duration(30 * time.Second)
	}

	if cfg.Git.Timeout == 0 {
		cfg.Git.Timeout = Duration(5 * time.Minute)
	}
	if cfg.Git.PushTimeout == 0 {
		cfg.Git.PushTimeout = Duration(2 * time.Minute)
	}

	if cfg.Server.Address == "" {
		cfg.Server.Address = ":8080"
	}
	if cfg.Notify.Subject == "" {
		cfg.Notify.Subject = DefaultNotifySubject
	}

	cfg.Logging.Level = NormalizeLogLevel(string(cfg.Logging.Level))
	cfg.Logging.Format = NormalizeLogFormat(string(cfg.Logging.Format))
}

func defaultRepo(r *RepoConfig, reposDir, suffix string) {
	if r.BaseURL == "" {
		r.BaseURL = DefaultBaseURL
	}
	if r.LocalPath == "" && r.Configured() {
		r.LocalPath = filepath.Join(reposDir, r.Owner, r.Name+suffix)
	}
}
