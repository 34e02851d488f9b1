package supervisor

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joshuarubin/pmtrd/internal/config"
)

func TestAlarmWithinArmsAndCoercesNonPositive(t *testing.T) {
	s := testSupervisor()

	s.alarmWithin(time.Hour)
	require.NotNil(t, s.timer)
	first := s.nextAlarm

	s.alarmWithin(time.Minute)
	nearer := s.nextAlarm
	assert.True(t, nearer.Before(first), "a nearer request must move the alarm closer")

	s.alarmWithin(time.Hour)
	assert.Equal(t, nearer, s.nextAlarm, "a farther request must not push an already-armed, nearer alarm back out")

	s.nextAlarm = time.Time{}
	s.alarmWithin(0)
	assert.False(t, s.nextAlarm.IsZero(), "a non-positive duration still arms an alarm")
}

// TestDoJobsRunsWaitOnceBootstrapSynchronously exercises the full
// load->doJobs path for scenario 3 of the supervision contract directly,
// without going through Run/spawnWatcher (which reexecs the running
// binary and is exercised separately by internal/watch's own tests).
func TestDoJobsRunsWaitOnceBootstrapSynchronously(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "pmtrd.conf")
	marker := filepath.Join(dir, "ran")

	cfg := "job { name once  order 0  wait  once  out /dev/null  err /dev/null  cmd /bin/sh -c \"touch " + marker + "\" }\n" +
		"job { name bg    order 10  out /dev/null  err /dev/null  cmd /bin/sleep 60 }\n"
	require.NoError(t, os.WriteFile(cfgPath, []byte(cfg), 0o644))

	loaded, err := config.Load(cfgPath, false)
	require.NoError(t, err)

	s := testSupervisor()
	s.configPath = cfgPath
	s.jobs = config.BuildJobs(loaded)

	s.doJobs()

	_, statErr := os.Stat(marker)
	assert.NoError(t, statErr, "the wait/once job at order 0 must complete before doJobs returns")

	once := s.jobs.ByName("once")
	require.NotNil(t, once)
	assert.False(t, once.Ins.Running())
	assert.False(t, once.Ins.Respawn)

	bg := s.jobs.ByName("bg")
	require.NotNil(t, bg)
	assert.True(t, bg.Ins.Running(), "the order-10 background job must have been spawned after the bootstrap job completed")

	bg.Ins.Terminate = 0
	s.termJobs()
	s.doJobs()
	require.Eventually(t, func() bool {
		s.collectJobs()
		return !bg.Ins.Running()
	}, 2*time.Second, 10*time.Millisecond)
}
