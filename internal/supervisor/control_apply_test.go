package supervisor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joshuarubin/pmtrd/internal/control"
	"github.com/joshuarubin/pmtrd/internal/job"
)

func TestServiceSocketDisableRunningJobRequestsTermination(t *testing.T) {
	s := testSupervisor()
	j := trueJob("web")
	s.jobs.Add(j)
	s.spawn(j)
	defer s.collectJobs()

	s.serviceSocket(control.Datagram{Data: []byte("disable web\n")})

	assert.True(t, j.Def.Disabled)
	assert.Equal(t, job.TerminateRequested, j.Ins.Terminate)

	waitExit(s, j)
}

func TestServiceSocketEnableDisableIsIdempotent(t *testing.T) {
	s := testSupervisor()
	j := trueJob("web")
	j.Def.Disabled = true
	s.jobs.Add(j)

	s.serviceSocket(control.Datagram{Data: []byte("disable web\n")})
	assert.True(t, j.Def.Disabled, "disabling an already-disabled job is a no-op, not an error")

	s.serviceSocket(control.Datagram{Data: []byte("enable web\n")})
	assert.False(t, j.Def.Disabled)

	s.serviceSocket(control.Datagram{Data: []byte("enable web\n")})
	assert.False(t, j.Def.Disabled, "enabling an already-enabled job is a no-op")
}

func TestServiceSocketIgnoresUnknownJob(t *testing.T) {
	s := testSupervisor()
	j := trueJob("web")
	s.jobs.Add(j)

	require.NotPanics(t, func() {
		s.serviceSocket(control.Datagram{Data: []byte("disable ghost\n")})
	})
	assert.False(t, j.Def.Disabled)
}

func TestServiceSocketDiscardsMalformedDatagram(t *testing.T) {
	s := testSupervisor()
	j := trueJob("web")
	s.jobs.Add(j)

	s.serviceSocket(control.Datagram{Data: []byte("web\n")})
	assert.False(t, j.Def.Disabled, "a datagram missing its leading mode must be discarded entirely")
}
