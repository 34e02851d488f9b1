package config

import (
	"fmt"
	"net"
	"os"
	"os/user"

	"github.com/joshuarubin/pmtrd/internal/job"
)

// Load reads path and produces a fully populated Config, or a *Error
// diagnostic. In syntaxCheck mode, side effects that would touch the
// outside world are skipped: DNS lookup for report destinations, user-name
// validation, and dependency-file hashing. Load opens no sockets in either
// mode; the listen/report sockets are opened by control.Socket.Configure.
func Load(path string, syntaxCheck bool) (*Config, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, &Error{File: path, Msg: fmt.Sprintf("reading config: %s", err)}
	}

	cfg, err := Parse(path, buf)
	if err != nil {
		return nil, err
	}

	if syntaxCheck {
		return cfg, nil
	}

	for _, spec := range cfg.Report {
		host, _, err := net.SplitHostPort(spec.Addr)
		if err != nil {
			return nil, &Error{File: path, Msg: fmt.Sprintf("report to %s: %s", spec.Addr, err)}
		}
		if _, err := net.LookupHost(host); err != nil {
			return nil, &Error{File: path, Msg: fmt.Sprintf("resolving report host %q: %s", host, err)}
		}
	}

	for _, def := range cfg.Jobs {
		if def.User == "" {
			continue
		}
		if _, err := user.Lookup(def.User); err != nil {
			return nil, &Error{File: path, Msg: fmt.Sprintf("job %q: unknown user %q: %s", def.Name, def.User, err)}
		}
	}

	for _, def := range cfg.Jobs {
		if len(def.Deps) == 0 {
			continue
		}
		hash, err := job.HashDeps(def.Dir, def.Deps)
		if err != nil {
			// A dependency file that can't be read disables the job outright,
			// per the dependency-hasher contract; Rescan notices the flip via
			// Definition.Equal and signals a running instance to stop.
			def.Disabled = true
			continue
		}
		def.DepsHash = hash
	}

	return cfg, nil
}

// BuildJobs converts a Config's parsed definitions into a fresh job.Table,
// each entry paired with a brand-new Instance (PID 0, Respawn true). This is
// used for the initial load; the reconciler handles splicing runtime state
// across a rescan itself.
func BuildJobs(cfg *Config) *job.Table {
	tbl := job.NewTable()
	for _, def := range cfg.Jobs {
		tbl.Add(&job.Job{Def: def, Ins: job.NewInstance()})
	}
	tbl.SortByOrder()
	return tbl
}
