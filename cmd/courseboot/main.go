package main

import (
	"fmt"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/courseboot/cmd/courseboot/commands"
	"git.home.luguber.info/inful/courseboot/internal/foundation"
	"git.home.luguber.info/inful/courseboot/internal/version"
)

func main() {
	cli := &commands.CLI{}
	ctx := kong.Parse(cli,
		kong.Name("courseboot"),
		kong.Description("Container entrypoint and process supervisor for the courseware platform."),
		kong.Vars{
			"version": fmt.Sprintf("courseboot %s (commit %s, built %s)",
				version.Version, version.GitCommit, version.BuildTime),
		},
	)

	if err := ctx.Run(&commands.Global{}); err != nil {
		foundation.NewCLIErrorAdapter(cli.Verbose, nil).HandleError(err)
	}
}
