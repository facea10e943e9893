package config

import (
	"log/slog"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
)

// loadEnvFiles loads .env and .env.local from the working directory and from
// dir (the directory holding the config file). Variables already present in
// the process environment win.
func loadEnvFiles(dir string) {
	seen := make(map[string]bool)
	for _, base := range []string{".", dir} {
		for _, name := range []string{".env", ".env.local"} {
			p := filepath.Clean(filepath.Join(base, name))
			if seen[p] {
				continue
			}
			seen[p] = true
			if _, err := os.Stat(p); err != nil {
				continue
			}
			if err := godotenv.Load(p); err != nil {
				slog.Warn("Failed to load env file", slog.String("path", p), slog.String("error", err.Error()))
				continue
			}
			slog.Debug("Loaded environment file", slog.String("path", p))
		}
	}
}
