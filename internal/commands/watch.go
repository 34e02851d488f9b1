package commands

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/joshuarubin/pmtrd/internal/logging"
	"github.com/joshuarubin/pmtrd/internal/supervisor"
	"github.com/joshuarubin/pmtrd/internal/watch"
)

// Watch builds the hidden `pmtrd watch` reexec subcommand.
func Watch() *cobra.Command {
	var configPath string
	var deps []string
	var ppid int

	cmd := &cobra.Command{
		Use:    "watch",
		Hidden: true,

		RunE: func(cmd *cobra.Command, _ []string) error {
			logger := logging.New(0, true)
			if err := watch.Run(logger, configPath, deps, ppid); err != nil {
				logger.Warn("watch set could not be established, retrying later", "err", err)
				time.Sleep(supervisor.ShortDelay)
				return err
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "config file path to watch")
	cmd.Flags().StringArrayVar(&deps, "dep", nil, "dependency file path to watch (repeatable)")
	cmd.Flags().IntVar(&ppid, "ppid", 0, "parent pid to signal on change")

	return cmd
}
