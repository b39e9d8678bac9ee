package main

import (
	"io"
	"os"

	"github.com/AlecAivazis/survey/v2/terminal"
	"github.com/spf13/cobra"
)

const defaultEnvFile = ".env"

// Options wires the command tree to its terminal.
type Options struct {
	EnvFile string
	Stdio   terminal.Stdio
	Out     io.Writer
}

func DefaultOptions() Options {
	return Options{
		EnvFile: defaultEnvFile,
		Stdio:   terminal.Stdio{In: os.Stdin, Out: os.Stdout, Err: os.Stderr},
		Out:     os.Stdout,
	}
}

func NewRootCommand(opts Options) *cobra.Command {
	if opts.Out == nil {
		opts.Out = os.Stdout
	}

	root := &cobra.Command{
		Use:           "dispatch",
		Short:         "Interactive, resumable batch mail dispatcher",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.EnvFile, "env-file", opts.EnvFile, "dotenv file merged into the environment")

	run := newRunCommand(&opts)
	root.RunE = run.RunE
	root.AddCommand(run)
	root.AddCommand(newStatusCommand(&opts))
	root.AddCommand(newHistoryCommand(&opts))

	return root
}
