package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joshuarubin/pmtrd/internal/job"
)

func TestLoadComputesDepsHash(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	depPath := filepath.Join(dir, "web.conf")
	require.NoError(t, os.WriteFile(depPath, []byte("v1"), 0o644))

	cfgPath := writeConfig(t, "job { name web  cmd /bin/true  depends { "+depPath+" } }")

	cfg, err := Load(cfgPath, false)
	require.NoError(t, err)
	require.Len(t, cfg.Jobs, 1)

	want, err := job.HashDeps("", []string{depPath})
	require.NoError(t, err)
	assert.Equal(t, want, cfg.Jobs[0].DepsHash)
	assert.NotZero(t, cfg.Jobs[0].DepsHash)
	assert.False(t, cfg.Jobs[0].Disabled)
}

func TestLoadRecomputesDepsHashWhenDependencyContentChanges(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	depPath := filepath.Join(dir, "web.conf")
	require.NoError(t, os.WriteFile(depPath, []byte("v1"), 0o644))

	cfgPath := writeConfig(t, "job { name web  cmd /bin/true  depends { "+depPath+" } }")

	before, err := Load(cfgPath, false)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(depPath, []byte("v2"), 0o644))

	after, err := Load(cfgPath, false)
	require.NoError(t, err)

	assert.NotEqual(t, before.Jobs[0].DepsHash, after.Jobs[0].DepsHash, "editing a dependency file's content must change DepsHash across reloads")
}

func TestLoadDisablesJobWithUnreadableDependency(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	missing := filepath.Join(dir, "missing.conf")

	cfgPath := writeConfig(t, "job { name web  cmd /bin/true  depends { "+missing+" } }")

	cfg, err := Load(cfgPath, false)
	require.NoError(t, err, "an unreadable dependency disables the job, it does not fail the load")
	require.Len(t, cfg.Jobs, 1)
	assert.True(t, cfg.Jobs[0].Disabled)
	assert.Zero(t, cfg.Jobs[0].DepsHash)
}

func TestLoadSkipsDepsHashingInSyntaxCheckMode(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	missing := filepath.Join(dir, "missing.conf")

	cfgPath := writeConfig(t, "job { name web  cmd /bin/true  depends { "+missing+" } }")

	cfg, err := Load(cfgPath, true)
	require.NoError(t, err, "syntax-check mode must not touch the filesystem for dependency files")
	assert.False(t, cfg.Jobs[0].Disabled)
}
