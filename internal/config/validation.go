package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate checks a defaulted configuration and reports every problem at once.
func Validate(cfg *Config) error {
	var errs []error

	if !cfg.Docs.Configured() {
		errs = append(errs, errors.New("docs.owner and docs.name are required"))
	}
	if strings.Contains(cfg.Docs.Owner, "/") || strings.Contains(cfg.Docs.Name, "/") {
		errs = append(errs, errors.New("docs.owner and docs.name must not contain '/'"))
	}
	if cfg.Migration.Enabled && !cfg.Wiki.Configured() {
		errs = append(errs, errors.New("migration.enabled requires wiki.owner and wiki.name"))
	}
	if cfg.Wiki.Configured() && cfg.Docs.LocalPath == cfg.Wiki.LocalPath {
		errs = append(errs, errors.New("docs.local_path and wiki.local_path must differ"))
	}
	if cfg.Bot.Email == "" || !strings.Contains(cfg.Bot.Email, "@") {
		errs = append(errs, fmt.Errorf("bot.email %q is not an email address", cfg.Bot.Email))
	}
	if (cfg.Bot.Username == "") != (cfg.Bot.Token == "") {
		errs = append(errs, errors.New("bot.username and bot.token must be set together"))
	}

	if _, err := rendererKinds.NormalizeWithValidation(string(cfg.Renderer.Kind)); err != nil {
		errs = append(errs, err)
	}
	for _, d := range []struct {
		name  string
		value Duration
	}{
		{"renderer.throttle", cfg.Renderer.Throttle},
		{"renderer.retry_delay", cfg.Renderer.RetryDelay},
		{"renderer.timeout", cfg.Renderer.Timeout},
		{"git.timeout", cfg.Git.Timeout},
		{"git.push_timeout", cfg.Git.PushTimeout},
		{"schedule.resync_interval", cfg.Schedule.ResyncInterval},
	} {
		if d.value < 0 {
			errs = append(errs, fmt.Errorf("%s must not be negative", d.name))
		}
	}

	if cfg.Notify.Enabled && cfg.Notify.NATSURL == "" {
		errs = append(errs, errors.New("notify.nats_url is required when notify.enabled is true"))
	}

	return errors.Join(errs...)
}
