package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadCreatesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "xaddonmgr.yaml")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 10, cfg.BackupRetain)

	_, err = os.Stat(path)
	require.NoError(t, err)
}

func TestLoadMergesExisting(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "xaddonmgr.yaml")
	require.NoError(t, os.WriteFile(path, []byte("backup_retain: 3\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 3, cfg.BackupRetain)
	require.Equal(t, "localhost:1982", cfg.Server.Address)
}

func TestResolveConfigDirHashesInstallRoot(t *testing.T) {
	cfgA := &Config{InstallRoot: "/sim/A"}
	cfgB := &Config{InstallRoot: "/sim/B"}

	dirA, err := ResolveConfigDir(cfgA)
	require.NoError(t, err)
	dirB, err := ResolveConfigDir(cfgB)
	require.NoError(t, err)

	require.NotEqual(t, dirA, dirB)
}

func TestResolveConfigDirEnvOverride(t *testing.T) {
	t.Setenv(envOverrideVar, "/tmp/custom-config")
	dir, err := ResolveConfigDir(&Config{InstallRoot: "/sim/A"})
	require.NoError(t, err)
	require.Equal(t, "/tmp/custom-config", dir)
}
