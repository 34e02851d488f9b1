package relay

import (
	"bufio"
	"io"
	"log/slog"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRelayForwardsHandshakeTaggedLines(t *testing.T) {
	t.Parallel()

	pr, pw := io.Pipe()
	logger := slog.New(slog.NewTextHandler(pw, nil))
	addr := filepath.Join(t.TempDir(), "relay.sock")

	r, err := Listen(logger, addr)
	require.NoError(t, err)
	defer r.Close()

	go func() { _ = r.Serve() }()

	conn, err := net.Dial("unix", addr)
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Write([]byte("JOB web out\nhello\nworld\n"))
	require.NoError(t, err)

	// end the scan below if the relay never logs the lines.
	timer := time.AfterFunc(2*time.Second, func() { _ = pw.Close() })
	defer timer.Stop()

	lines := bufio.NewScanner(pr)
	for _, want := range []string{"msg=hello job=web stream=out", "msg=world job=web stream=out"} {
		require.True(t, lines.Scan(), "relay did not log %q", want)
		require.Contains(t, lines.Text(), want)
	}
}

func TestParseHandshake(t *testing.T) {
	t.Parallel()

	name, stream := parseHandshake("JOB web out")
	require.Equal(t, "web", name)
	require.Equal(t, "out", stream)

	name, stream = parseHandshake("garbage")
	require.Equal(t, "unknown", name)
	require.Equal(t, "unknown", stream)
}
