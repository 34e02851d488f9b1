// Package job holds the declarative and runtime halves of a supervised
// process: Definition (compared for equality across a rescan) and Instance
// (the live pid/timers/termination state spliced across rescans).
package job

import (
	"sort"
	"time"
)

// NoRestartExitCode is the exit code a child can use to tell the supervisor
// not to respawn it. Historically 33 in the upstream C implementation this
// daemon replaces.
const NoRestartExitCode = 33

// Terminate is the termination state machine carried on an Instance.
//
//	TerminateNone      (0): not terminating.
//	TerminateRequested (1): a stop has been requested; signalJob will send
//	                        SIGTERM and move to a deadline.
//	>1: the absolute unix time (seconds) at which SIGKILL must be sent.
type Terminate int64

// TerminateNone indicates no termination is in progress.
const TerminateNone Terminate = 0

// TerminateRequested indicates a graceful stop has been requested but no
// signal has been sent yet.
const TerminateRequested Terminate = 1

// Deadline reports whether t represents an armed SIGKILL deadline, and the
// time it falls at.
func (t Terminate) Deadline() (time.Time, bool) {
	if t <= TerminateRequested {
		return time.Time{}, false
	}
	return time.Unix(int64(t), 0), true
}

// Rlimit is one (resource, soft=hard=value) entry from a job's `ulimit`
// declarations. Value is -1 to represent "infinity" (RLIM_INFINITY), which
// is rejected for NOFILE at parse time.
type Rlimit struct {
	Resource RlimitResource
	Value    int64
}

// RlimitResource identifies a POSIX rlimit resource.
type RlimitResource int

// Resource identifiers recognized by the `ulimit` config keyword, declared
// in the alphabetical order of their flag letters (see RlimitLabels).
const (
	RlimitCore RlimitResource = iota
	RlimitData
	RlimitNice
	RlimitFSize
	RlimitSigPending
	RlimitMemLock
	RlimitRSS
	RlimitNoFile
	RlimitMsgQueue
	RlimitRTPrio
	RlimitStack
	RlimitCPU
	RlimitNProc
	RlimitAS
)

// RlimitLabel describes one recognized ulimit resource: its conventional
// flag (as in `ulimit -n`), its long name, and the resource id.
type RlimitLabel struct {
	Flag     string
	Name     string
	Resource RlimitResource
}

// RlimitLabels is the full table of resources recognized by the `ulimit`
// config keyword, in the same order as the upstream rlimit_labels table.
var RlimitLabels = []RlimitLabel{
	{"-c", "RLIMIT_CORE", RlimitCore},
	{"-d", "RLIMIT_DATA", RlimitData},
	{"-e", "RLIMIT_NICE", RlimitNice},
	{"-f", "RLIMIT_FSIZE", RlimitFSize},
	{"-i", "RLIMIT_SIGPENDING", RlimitSigPending},
	{"-l", "RLIMIT_MEMLOCK", RlimitMemLock},
	{"-m", "RLIMIT_RSS", RlimitRSS},
	{"-n", "RLIMIT_NOFILE", RlimitNoFile},
	{"-q", "RLIMIT_MSGQUEUE", RlimitMsgQueue},
	{"-r", "RLIMIT_RTPRIO", RlimitRTPrio},
	{"-s", "RLIMIT_STACK", RlimitStack},
	{"-t", "RLIMIT_CPU", RlimitCPU},
	{"-u", "RLIMIT_NPROC", RlimitNProc},
	{"-v", "RLIMIT_AS", RlimitAS},
}

// LookupRlimit finds the RlimitLabel matching name, which may be either the
// short flag (e.g. "-n") or the long name (e.g. "RLIMIT_NOFILE").
func LookupRlimit(name string) (RlimitLabel, bool) {
	for _, l := range RlimitLabels {
		if l.Flag == name || l.Name == name {
			return l, true
		}
	}
	return RlimitLabel{}, false
}

// Infinity is the sentinel Rlimit.Value meaning RLIM_INFINITY.
const Infinity int64 = -1

// CPUSet is the set of logical CPU indices a job is pinned to. An empty set
// means "inherit the parent's affinity".
type CPUSet map[int]struct{}

// NewCPUSet returns a CPUSet containing cpus.
func NewCPUSet(cpus ...int) CPUSet {
	s := make(CPUSet, len(cpus))
	for _, c := range cpus {
		s[c] = struct{}{}
	}
	return s
}

// Equal reports whether a and b contain exactly the same cpu indices.
func (a CPUSet) Equal(b CPUSet) bool {
	if len(a) != len(b) {
		return false
	}
	for c := range a {
		if _, ok := b[c]; !ok {
			return false
		}
	}
	return true
}

// Clone returns a deep copy of a.
func (a CPUSet) Clone() CPUSet {
	b := make(CPUSet, len(a))
	for c := range a {
		b[c] = struct{}{}
	}
	return b
}

// Sorted returns the cpu indices in ascending order.
func (a CPUSet) Sorted() []int {
	out := make([]int, 0, len(a))
	for c := range a {
		out = append(out, c)
	}
	sort.Ints(out)
	return out
}

// Definition is the declarative, diffable portion of a job. Two Definitions
// with the same Name are compared field-by-field via Equal; the result is
// the sole input to the rescan-diff policy in the reconciler.
type Definition struct {
	Name string

	// Argv is the argument vector; Argv[0] is the executable path.
	Argv []string

	// Env is an ordered list of KEY=VALUE strings.
	Env []string

	Dir string

	// In, Out, Err are optional stdio redirection targets. The literal
	// value "syslog" routes Out/Err through the log relay.
	In  string
	Out string
	Err string

	// User is an optional login name resolved to uid/gid/groups at spawn
	// time, never at load time.
	User string

	Order int
	Nice  int

	Disabled bool
	Wait     bool
	Once     bool

	// BounceInterval is in seconds; 0 means never bounce.
	BounceInterval int

	CPUSet CPUSet

	Rlimits []Rlimit

	// Deps is the ordered list of dependency file paths, resolved
	// relative to Dir.
	Deps []string

	// DepsHash is the Bernstein-style running hash of the concatenated
	// contents of Deps. Part of equality.
	DepsHash uint64
}

// New returns a Definition populated with defaults: Respawn=true (on the
// paired Instance), no uid, empty cpuset.
func New(name string) *Definition {
	return &Definition{
		Name:   name,
		CPUSet: CPUSet{},
	}
}

// Equal reports whether d and o are identical in every declarative field.
// Runtime fields live on Instance and are never part of this comparison.
func (d *Definition) Equal(o *Definition) bool {
	if d == nil || o == nil {
		return d == o
	}

	switch {
	case d.Name != o.Name,
		d.Dir != o.Dir,
		d.In != o.In,
		d.Out != o.Out,
		d.Err != o.Err,
		d.User != o.User,
		d.Order != o.Order,
		d.Nice != o.Nice,
		d.Disabled != o.Disabled,
		d.Wait != o.Wait,
		d.Once != o.Once,
		d.BounceInterval != o.BounceInterval,
		d.DepsHash != o.DepsHash:
		return false
	}

	if !stringsEqual(d.Argv, o.Argv) {
		return false
	}
	if !stringsEqual(d.Env, o.Env) {
		return false
	}
	if !stringsEqual(d.Deps, o.Deps) {
		return false
	}
	if !d.CPUSet.Equal(o.CPUSet) {
		return false
	}
	if len(d.Rlimits) != len(o.Rlimits) {
		return false
	}
	for i, r := range d.Rlimits {
		if r != o.Rlimits[i] {
			return false
		}
	}

	return true
}

func stringsEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i, v := range a {
		if v != b[i] {
			return false
		}
	}
	return true
}

// Clone returns a deep copy of d, duplicating every owned slice and map so
// that splicing runtime state across Definitions during a rescan never
// aliases another Definition's storage.
func (d *Definition) Clone() *Definition {
	if d == nil {
		return nil
	}

	c := *d
	c.Argv = append([]string(nil), d.Argv...)
	c.Env = append([]string(nil), d.Env...)
	c.Deps = append([]string(nil), d.Deps...)
	c.Rlimits = append([]Rlimit(nil), d.Rlimits...)
	c.CPUSet = d.CPUSet.Clone()
	return &c
}

// Instance is the mutable, runtime half of a job record.
type Instance struct {
	PID int

	// StartedAt is set on spawn.
	StartedAt time.Time

	// StartAt is the earliest time at which a respawn is permitted,
	// enforced by the crashloop throttle.
	StartAt time.Time

	Terminate Terminate

	// Respawn is cleared when the job should not be restarted: after a
	// once-job's first exit, after a no-restart-sentinel exit, or when the
	// job was removed from config during a rescan.
	Respawn bool

	// DeleteWhenCollected removes the record entirely on reap instead of
	// leaving it idle.
	DeleteWhenCollected bool
}

// NewInstance returns an Instance ready for a fresh job: not running,
// eligible to respawn immediately.
func NewInstance() *Instance {
	return &Instance{Respawn: true}
}

// Running reports whether the instance currently has a live pid.
func (in *Instance) Running() bool {
	return in.PID != 0
}

// Job pairs a Definition with its live Instance under one name.
type Job struct {
	Def *Definition
	Ins *Instance
}
