// Command pmtrmon is the supplemented reimplementation of the external
// pmtr-mon utility's contract: send an enable/disable datagram to a
// pmtrd listen socket, or listen on a UDP address and print the status
// reports pmtrd broadcasts to it.
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	root := &cobra.Command{
		Use:   "pmtrmon",
		Short: "Send control commands to, or watch status reports from, a pmtrd instance",

		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(sendCmd())
	root.AddCommand(watchCmd())

	_, err := root.ExecuteContextC(context.Background())
	return err
}

func sendCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "send <enable|disable> <job>...",
		Short: "Send an enable/disable control datagram to a pmtrd listen socket",
		Args:  cobra.MinimumNArgs(2),

		RunE: func(cmd *cobra.Command, args []string) error {
			mode := args[0]
			if mode != "enable" && mode != "disable" {
				return fmt.Errorf("mode must be enable or disable, got %q", mode)
			}

			payload := mode + " " + strings.Join(args[1:], " ") + "\n"

			raddr, err := net.ResolveUDPAddr("udp", addr)
			if err != nil {
				return fmt.Errorf("resolving %s: %w", addr, err)
			}
			conn, err := net.DialUDP("udp", nil, raddr)
			if err != nil {
				return fmt.Errorf("dialing %s: %w", addr, err)
			}
			defer conn.Close()

			if _, err := conn.Write([]byte(payload)); err != nil {
				return fmt.Errorf("writing to %s: %w", addr, err)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&addr, "addr", "a", "127.0.0.1:9999", "pmtrd listen socket address")

	return cmd
}

func watchCmd() *cobra.Command {
	var addr string
	var count int

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Listen on a UDP address and print incoming pmtrd status reports",

		RunE: func(cmd *cobra.Command, _ []string) error {
			laddr, err := net.ResolveUDPAddr("udp", addr)
			if err != nil {
				return fmt.Errorf("resolving %s: %w", addr, err)
			}
			conn, err := net.ListenUDP("udp", laddr)
			if err != nil {
				return fmt.Errorf("listening on %s: %w", addr, err)
			}
			defer conn.Close()

			buf := make([]byte, 65536)
			for i := 0; count <= 0 || i < count; i++ {
				n, from, err := conn.ReadFromUDP(buf)
				if err != nil {
					if errors.Is(err, net.ErrClosed) {
						return nil
					}
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "-- report from %s --\n", from)
				scanner := bufio.NewScanner(strings.NewReader(string(buf[:n])))
				for scanner.Scan() {
					fmt.Fprintln(cmd.OutOrStdout(), scanner.Text())
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&addr, "addr", "a", ":9999", "address to listen on for status reports")
	cmd.Flags().IntVarP(&count, "count", "n", 0, "number of reports to print before exiting (0 = unbounded)")

	return cmd
}
