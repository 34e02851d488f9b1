package job

import "sort"

// Table is the ordered collection of jobs, keyed by name. Order is the sort
// order established at load time (ascending by Definition.Order, ties
// broken by original file order); lookup by name is a linear scan, which
// matches the upstream implementation's behavior and is acceptable at the
// expected scale of a handful to a few hundred jobs per host.
type Table struct {
	jobs []*Job
}

// NewTable returns an empty Table.
func NewTable() *Table {
	return &Table{}
}

// Add appends j to the table.
func (t *Table) Add(j *Job) {
	t.jobs = append(t.jobs, j)
}

// Remove deletes the job named name from the table, if present.
func (t *Table) Remove(name string) {
	for i, j := range t.jobs {
		if j.Def.Name == name {
			t.jobs = append(t.jobs[:i], t.jobs[i+1:]...)
			return
		}
	}
}

// ByName returns the job named name, or nil if not present.
func (t *Table) ByName(name string) *Job {
	for _, j := range t.jobs {
		if j.Def.Name == name {
			return j
		}
	}
	return nil
}

// ByPID returns the job currently running as pid, or nil if none.
func (t *Table) ByPID(pid int) *Job {
	if pid == 0 {
		return nil
	}
	for _, j := range t.jobs {
		if j.Ins.PID == pid {
			return j
		}
	}
	return nil
}

// All returns the jobs in table order. The returned slice is owned by the
// caller but aliases the table's Job pointers.
func (t *Table) All() []*Job {
	return append([]*Job(nil), t.jobs...)
}

// Len returns the number of jobs in the table.
func (t *Table) Len() int {
	return len(t.jobs)
}

// SortByOrder sorts the table ascending by Definition.Order, stably
// preserving relative order for ties. This is the iteration order used for
// both spawning and diffing, per the load contract.
func (t *Table) SortByOrder() {
	sort.SliceStable(t.jobs, func(i, k int) bool {
		return t.jobs[i].Def.Order < t.jobs[k].Def.Order
	})
}
