package main

import (
	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/docsync/cmd/docsync/commands"
	"git.home.luguber.info/inful/docsync/internal/version"
)

func main() {
	cli := &commands.CLI{}
	ctx := kong.Parse(cli,
		kong.Name("docsync"),
		kong.Description("Keep a documentation repository in sync with its wiki and publish rendered HTML."),
		kong.UsageOnError(),
		kong.Vars{"version": version.String()},
	)
	err := ctx.Run(&commands.Global{}, cli)
	ctx.FatalIfErrorf(err)
}
