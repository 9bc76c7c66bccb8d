package main

import (
	"fmt"
	"os"

	"github.com/alecthomas/kong"
	"github.com/shibukawa/snape2e"
)

// Context represents the global context for commands
type Context struct {
	Config  string
	Verbose bool
	Quiet   bool
}

// CLI represents the command-line interface
var CLI struct {
	Config  string     `help:"Configuration file path" default:"snape2e.yaml"`
	Verbose bool       `help:"Enable verbose output" short:"v"`
	Quiet   bool       `help:"Suppress output" short:"q"`
	Run     RunCmd     `cmd:"" help:"Run a scenario plan against the browser"`
	Capture CaptureCmd `cmd:"" help:"Capture the dataset of one scenario phase"`
	Resolve ResolveCmd `cmd:"" help:"Resolve test data against captured datasets"`
	Version VersionCmd `cmd:"" help:"Show version information"`
}

// VersionCmd represents the version command
type VersionCmd struct{}

// Run executes the version command
func (cmd *VersionCmd) Run() error {
	fmt.Printf("snape2e %s\n", snape2e.Version)
	return nil
}

func main() {
	ctx := kong.Parse(&CLI,
		kong.Name("snape2e"),
		kong.Description("Data-driven end-to-end scenario runner"),
	)

	appCtx := &Context{
		Config:  CLI.Config,
		Verbose: CLI.Verbose,
		Quiet:   CLI.Quiet,
	}

	err := ctx.Run(appCtx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
