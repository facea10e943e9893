package commands

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"git.home.luguber.info/inful/docsync/internal/config"
	"git.home.luguber.info/inful/docsync/internal/mirror"
)

// InitCmd implements the 'init' command.
type InitCmd struct {
	Force bool `help:"Overwrite existing configuration and mapping files"`
}

func (i *InitCmd) Run(_ *Global, root *CLI) error {
	return RunInit(os.Stdout, root.Config, i.Force)
}

// exampleRules publish the wiki home page as the docs index.
var exampleRules = []mirror.Rule{{Source: "wiki/Home.md", Destination: "index.md"}}

// RunInit writes the example configuration to configPath, and the mapping
// file it names next to it, reporting progress on out.
func RunInit(out io.Writer, configPath string, force bool) error {
	_, _ = fmt.Fprintf(out, "Writing configuration to %s\n", configPath)
	if err := config.Init(configPath, force); err != nil {
		_, _ = fmt.Fprintln(out, "Initialization failed")
		return err
	}

	mappingPath := filepath.Join(filepath.Dir(configPath), config.DefaultMappingFile)
	if _, err := os.Stat(mappingPath); err == nil && !force {
		_, _ = fmt.Fprintf(out, "Keeping existing mappings at %s\n", mappingPath)
	} else {
		_, _ = fmt.Fprintf(out, "Writing mappings to %s\n", mappingPath)
		data, err := mirror.MarshalRules(exampleRules)
		if err != nil {
			return fmt.Errorf("failed to marshal mappings: %w", err)
		}
		if err := os.WriteFile(mappingPath, data, 0o600); err != nil {
			_, _ = fmt.Fprintln(out, "Initialization failed")
			return fmt.Errorf("failed to write mapping file: %w", err)
		}
	}

	_, _ = fmt.Fprintln(out, "initialized successfully")
	return nil
}
