// Package relay implements the optional log relay: an abstract-socket
// unix listener that accepts one connection per job stdio stream and
// forwards each line to the daemon's own log, tagged with the job name
// and stream. Grounded on cirello-io-runner's prefixedPrinter
// (bufio.Scanner-based line-prefix forwarder), adapted from a pipe-per-
// subprocess shape to a listener accepting connections from unrelated
// processes over a unix socket.
package relay

import (
	"bufio"
	"fmt"
	"log/slog"
	"net"
	"strings"
)

// Relay accepts connections on an abstract unix socket and line-forwards
// each one to logger, tagged by the job name/stream the connecting
// process announces in its handshake.
type Relay struct {
	logger *slog.Logger
	ln     net.Listener
}

// Listen binds addr (an abstract-namespace address such as
// "@pmtrd-relay-1234" on Linux) and returns a Relay ready to Serve.
func Listen(logger *slog.Logger, addr string) (*Relay, error) {
	ln, err := net.Listen("unix", addr)
	if err != nil {
		return nil, fmt.Errorf("relay listen on %s: %w", addr, err)
	}
	return &Relay{logger: logger, ln: ln}, nil
}

// Close stops accepting new connections.
func (r *Relay) Close() error {
	return r.ln.Close()
}

// Serve accepts connections until the listener is closed. Each
// connection is handled in its own goroutine and never blocks another.
func (r *Relay) Serve() error {
	for {
		conn, err := r.ln.Accept()
		if err != nil {
			return err
		}
		go r.handle(conn)
	}
}

// handle reads the handshake line ("JOB <name> <stream>"), then forwards
// every subsequent line to the log, prefixed by name/stream.
func (r *Relay) handle(conn net.Conn) {
	defer conn.Close()

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 4096), 1<<20)

	if !scanner.Scan() {
		return
	}

	name, stream := parseHandshake(scanner.Text())

	for scanner.Scan() {
		r.logger.Info(scanner.Text(), "job", name, "stream", stream)
	}

	if err := scanner.Err(); err != nil {
		r.logger.Warn("relay connection read error", "job", name, "err", err)
	}
}

func parseHandshake(line string) (name, stream string) {
	fields := strings.Fields(line)
	if len(fields) == 3 && fields[0] == "JOB" {
		return fields[1], fields[2]
	}
	return "unknown", "unknown"
}
