package supervisor

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joshuarubin/pmtrd/internal/control"
	"github.com/joshuarubin/pmtrd/internal/job"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "pmtrd.conf")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestRescanPreservesIdentityWhenUnchanged(t *testing.T) {
	path := writeConfig(t, `job { name web  cmd /bin/true }`)

	s := testSupervisor()
	s.configPath = path
	s.control = control.NewSocket(s.logger)

	require.NoError(t, s.Rescan())
	before := s.jobs.ByName("web")
	require.NotNil(t, before)
	before.Ins.PID = 4242

	require.NoError(t, s.Rescan())
	after := s.jobs.ByName("web")
	require.NotNil(t, after)
	assert.Equal(t, 4242, after.Ins.PID, "an unchanged definition must preserve its running instance across a rescan")
}

func TestRescanRestartsJobWhoseDefinitionChanged(t *testing.T) {
	path := writeConfig(t, `job { name web  cmd /bin/true }`)

	s := testSupervisor()
	s.configPath = path
	s.control = control.NewSocket(s.logger)

	require.NoError(t, s.Rescan())
	j := s.jobs.ByName("web")
	j.Ins.PID = 4242

	require.NoError(t, os.WriteFile(path, []byte(`job { name web  cmd /bin/false }`), 0o644))
	require.NoError(t, s.Rescan())

	after := s.jobs.ByName("web")
	require.NotNil(t, after)
	assert.Equal(t, 4242, after.Ins.PID, "the old pid is retained only so it can be signalled to stop")
	assert.Equal(t, job.TerminateRequested, after.Ins.Terminate, "a changed definition with a running pid must be marked for termination")
	assert.True(t, after.Ins.Respawn)
}

func TestRescanTombstonesDeletedRunningJob(t *testing.T) {
	path := writeConfig(t, `job { name web  cmd /bin/true }`)

	s := testSupervisor()
	s.configPath = path
	s.control = control.NewSocket(s.logger)

	require.NoError(t, s.Rescan())
	j := s.jobs.ByName("web")
	j.Ins.PID = 4242

	require.NoError(t, os.WriteFile(path, []byte(``), 0o644))
	require.NoError(t, s.Rescan())

	assert.Nil(t, s.jobs.ByName("web"))
	tomb := s.jobs.ByName("web(deleted)")
	require.NotNil(t, tomb, "a deleted job that is still running must be kept as a tombstone")
	assert.Equal(t, job.TerminateRequested, tomb.Ins.Terminate)
	assert.True(t, tomb.Ins.DeleteWhenCollected)
	assert.False(t, tomb.Ins.Respawn)
}

func TestRescanDropsDeletedIdleJobOutright(t *testing.T) {
	path := writeConfig(t, `job { name web  cmd /bin/true }`)

	s := testSupervisor()
	s.configPath = path
	s.control = control.NewSocket(s.logger)

	require.NoError(t, s.Rescan())

	require.NoError(t, os.WriteFile(path, []byte(``), 0o644))
	require.NoError(t, s.Rescan())

	assert.Equal(t, 0, s.jobs.Len(), "a deleted job that was never running needs no tombstone")
}

func TestRescanKeepsPreviousStateOnLoadError(t *testing.T) {
	path := writeConfig(t, `job { name web  cmd /bin/true }`)

	s := testSupervisor()
	s.configPath = path
	s.control = control.NewSocket(s.logger)

	require.NoError(t, s.Rescan())
	require.NotNil(t, s.jobs.ByName("web"))

	require.NoError(t, os.WriteFile(path, []byte(`job { `), 0o644))
	assert.Error(t, s.Rescan())
	assert.NotNil(t, s.jobs.ByName("web"), "a failed rescan must leave the previous job table untouched")
}

func TestRescanOneLineWaitAndOnceBootstrapJobs(t *testing.T) {
	path := writeConfig(t, `
job { name mk   order 0   wait   once   cmd /bin/true }
job { name run  order 10  cmd /bin/sleep 60 }
`)

	s := testSupervisor()
	s.configPath = path
	s.control = control.NewSocket(s.logger)

	require.NoError(t, s.Rescan())

	mk := s.jobs.ByName("mk")
	require.NotNil(t, mk)
	assert.True(t, mk.Def.Wait)
	assert.True(t, mk.Def.Once)
	assert.Equal(t, 0, mk.Def.Order)

	run := s.jobs.ByName("run")
	require.NotNil(t, run)
	assert.Equal(t, 10, run.Def.Order)

	all := s.jobs.All()
	require.Len(t, all, 2)
	assert.Equal(t, "mk", all[0].Def.Name, "jobs must be sorted ascending by order")
}
