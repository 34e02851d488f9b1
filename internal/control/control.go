// Package control implements the UDP remote-control surface: the listen
// socket's incoming enable/disable protocol, and the report sockets'
// periodic status broadcast. It owns only I/O and wire parsing; applying
// an enable/disable to the job table is the supervisor's job, since only
// the supervisor's single goroutine may touch job state.
package control

import (
	"bytes"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/joshuarubin/pmtrd/internal/config"
	"github.com/joshuarubin/pmtrd/internal/job"
)

// Mode is the verb of one incoming control command.
type Mode int

const (
	// ModeEnable clears a job's disabled flag.
	ModeEnable Mode = iota
	// ModeDisable sets a job's disabled flag.
	ModeDisable
)

// Command is one parsed (mode, name) pair from an incoming datagram.
type Command struct {
	Mode Mode
	Name string
}

// ParseDatagram parses the incoming control grammar:
//
//	<mode> <name>[ <name>...] [<mode> <name>...]
//
// where <mode> is the literal word "enable" or "disable". Unknown names
// are passed through for the caller to log; an unrecognized mode before
// any valid mode discards the whole datagram, per spec.
func ParseDatagram(data []byte) ([]Command, error) {
	fields := strings.Fields(string(data))
	if len(fields) == 0 {
		return nil, fmt.Errorf("empty control datagram")
	}

	var cmds []Command
	var mode Mode
	haveMode := false

	for _, f := range fields {
		switch f {
		case "enable":
			mode, haveMode = ModeEnable, true
		case "disable":
			mode, haveMode = ModeDisable, true
		default:
			if !haveMode {
				return nil, fmt.Errorf("control datagram missing leading mode")
			}
			cmds = append(cmds, Command{Mode: mode, Name: f})
		}
	}

	return cmds, nil
}

// Datagram is one received control-socket packet.
type Datagram struct {
	Data []byte
}

type reportDest struct {
	conn  *net.UDPConn
	iface string
}

// Socket owns the listen and report UDP sockets. Rebuilt wholesale on
// every Configure call, matching the reconciler's "close all listen/
// report sockets, reopen per the new config" contract.
type Socket struct {
	logger *slog.Logger

	mu          sync.Mutex
	listenConns []*net.UDPConn
	reportConns []reportDest

	// Incoming carries one Datagram per received control packet. Buffered
	// (64 datagrams), so a reader goroutine blocks only when that many are
	// waiting for the supervisor's loop.
	Incoming chan Datagram
}

// NewSocket returns an empty Socket.
func NewSocket(logger *slog.Logger) *Socket {
	return &Socket{
		logger:   logger,
		Incoming: make(chan Datagram, 64),
	}
}

// Configure closes every existing listen/report socket and opens fresh
// ones for the given specs, per §4.6.1–§4.6.2. Called outside
// syntax-check mode only.
func (s *Socket) Configure(listen []config.ListenSpec, report []config.ReportSpec) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closeLocked()

	for _, spec := range listen {
		addr, err := net.ResolveUDPAddr("udp", spec.Addr)
		if err != nil {
			return fmt.Errorf("listen on %s: %w", spec.Addr, err)
		}
		conn, err := net.ListenUDP("udp", addr)
		if err != nil {
			return fmt.Errorf("listen on %s: %w", spec.Addr, err)
		}
		s.listenConns = append(s.listenConns, conn)
		go s.readLoop(conn)
	}

	for _, spec := range report {
		raddr, err := net.ResolveUDPAddr("udp", spec.Addr)
		if err != nil {
			return fmt.Errorf("report to %s: %w", spec.Addr, err)
		}

		var laddr *net.UDPAddr
		if spec.Iface != "" {
			laddr, err = ifacePrimaryAddr(spec.Iface)
			if err != nil {
				return fmt.Errorf("report to %s@%s: %w", spec.Addr, spec.Iface, err)
			}
		}

		conn, err := net.DialUDP("udp", laddr, raddr)
		if err != nil {
			return fmt.Errorf("report to %s: %w", spec.Addr, err)
		}
		s.reportConns = append(s.reportConns, reportDest{conn: conn, iface: spec.Iface})
	}

	return nil
}

func (s *Socket) closeLocked() {
	for _, c := range s.listenConns {
		_ = c.Close()
	}
	s.listenConns = nil
	for _, r := range s.reportConns {
		_ = r.conn.Close()
	}
	s.reportConns = nil
}

// Close tears down every socket. Used at shutdown.
func (s *Socket) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closeLocked()
}

func (s *Socket) readLoop(conn *net.UDPConn) {
	buf := make([]byte, 65536)
	for {
		n, _, err := conn.ReadFromUDP(buf)
		if err != nil {
			return
		}
		data := make([]byte, n)
		copy(data, buf[:n])
		s.Incoming <- Datagram{Data: data}
	}
}

func ifacePrimaryAddr(name string) (*net.UDPAddr, error) {
	iface, err := net.InterfaceByName(name)
	if err != nil {
		return nil, err
	}
	addrs, err := iface.Addrs()
	if err != nil {
		return nil, err
	}
	for _, a := range addrs {
		if ipnet, ok := a.(*net.IPNet); ok && ipnet.IP.To4() != nil {
			return &net.UDPAddr{IP: ipnet.IP}, nil
		}
	}
	return nil, fmt.Errorf("interface %s has no IPv4 address", name)
}

// Report builds and writes a status report to every report destination,
// tagged with a google/uuid report_id correlating the broadcast across
// peers and the daemon's own log line.
func (s *Socket) Report(jobs []*job.Job) {
	s.mu.Lock()
	conns := append([]reportDest(nil), s.reportConns...)
	s.mu.Unlock()

	if len(conns) == 0 {
		return
	}

	id := uuid.New()

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "report %s\n", id)
	for _, j := range jobs {
		state := "e"
		if j.Def.Disabled {
			state = "d"
		}
		uptime := 0
		if j.Ins.Running() {
			uptime = int(time.Since(j.Ins.StartedAt).Seconds())
		}
		exe := ""
		if len(j.Def.Argv) > 0 {
			exe = j.Def.Argv[0]
		}
		fmt.Fprintf(&buf, "%s %s %d %d %s\n", j.Def.Name, state, uptime, j.Ins.PID, exe)
	}

	s.logger.Info("sending status report", "report_id", id)

	for _, r := range conns {
		n, err := r.conn.Write(buf.Bytes())
		if err != nil {
			if strings.Contains(err.Error(), "connection refused") {
				continue
			}
			s.logger.Error("report write failed", "addr", r.conn.RemoteAddr(), "err", err)
			continue
		}
		if n != buf.Len() {
			s.logger.Warn("short report write", "addr", r.conn.RemoteAddr(), "wrote", n, "want", buf.Len())
		}
	}
}
