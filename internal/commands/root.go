// Package commands assembles the pmtrd cobra command tree: the root
// daemon command plus the hidden watch/relay reexec subcommands.
package commands

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/joshuarubin/pmtrd/internal/buildinfo"
	"github.com/joshuarubin/pmtrd/internal/config"
	"github.com/joshuarubin/pmtrd/internal/logging"
	"github.com/joshuarubin/pmtrd/internal/supervisor"
)

type rootFlags struct {
	verbose     int
	foreground  bool
	configPath  string
	syntaxCheck bool
	pidFile     string
	mirrorLog   bool
}

// Root builds the pmtrd root command.
func Root() *cobra.Command {
	var f rootFlags

	cmd := &cobra.Command{
		Use:   "pmtrd",
		Short: "A process supervisor daemon",

		SilenceUsage:  true,
		SilenceErrors: true,

		RunE: func(cmd *cobra.Command, _ []string) error {
			return f.run(cmd.Context())
		},
	}

	cmd.Flags().CountVarP(&f.verbose, "verbose", "v", "increase log verbosity (repeatable)")
	cmd.Flags().BoolVarP(&f.foreground, "foreground", "F", false, "mirror log output to stderr (pmtrd never daemonizes; it runs in the foreground with or without this flag)")
	cmd.Flags().StringVarP(&f.configPath, "config", "c", buildinfo.DefaultConfigPath, "config file path")
	cmd.Flags().BoolVarP(&f.syntaxCheck, "syntax-check", "t", false, "check config syntax and exit; implies -F")
	cmd.Flags().StringVarP(&f.pidFile, "pidfile", "p", "", "write pid to the given path")
	cmd.Flags().BoolVarP(&f.mirrorLog, "mirror-log", "I", false, "mirror log output to stderr")

	cmd.AddCommand(Watch())
	cmd.AddCommand(Relay())

	return cmd
}

func (f *rootFlags) run(ctx context.Context) error {
	if f.syntaxCheck {
		f.foreground = true
		if _, err := config.Load(f.configPath, true); err != nil {
			fmt.Fprintln(os.Stderr, err)
			return err
		}
		return nil
	}

	logger := logging.New(f.verbose, f.mirrorLog || f.foreground)

	if f.pidFile != "" {
		if err := os.WriteFile(f.pidFile, []byte(strconv.Itoa(os.Getpid())+"\n"), 0o644); err != nil {
			return fmt.Errorf("writing pidfile: %w", err)
		}
		defer os.Remove(f.pidFile)
	}

	sup := supervisor.New(logger, f.configPath, true)
	return sup.Run(ctx)
}
