package commands

import (
	"github.com/spf13/cobra"

	"github.com/joshuarubin/pmtrd/internal/logging"
	"github.com/joshuarubin/pmtrd/internal/relay"
)

// Relay builds the hidden `pmtrd relay` reexec subcommand: the optional
// abstract-socket log relay that lets jobs route "out syslog"/"err
// syslog" through a single tagged stream.
func Relay() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:    "relay",
		Hidden: true,

		RunE: func(cmd *cobra.Command, _ []string) error {
			logger := logging.New(0, true)
			r, err := relay.Listen(logger, addr)
			if err != nil {
				return err
			}
			defer r.Close()
			return r.Serve()
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "unix socket address to listen on")

	return cmd
}
