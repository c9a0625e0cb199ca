package netplan

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func sampleParams() Params {
	return Params{
		Interface:  "eth0",
		Address:    "192.168.1.20",
		PrefixLen:  24,
		Gateway:    "192.168.1.1",
		DNSServers: []string{"192.168.1.1", "8.8.8.8"},
	}
}

func TestRender(t *testing.T) {
	data, err := Render(sampleParams())
	require.NoError(t, err)

	var doc Document
	require.NoError(t, yaml.Unmarshal(data, &doc))

	assert.Equal(t, 2, doc.Network.Version)
	eth, ok := doc.Network.Ethernets["eth0"]
	require.True(t, ok, "document must be keyed by the interface name")
	assert.False(t, eth.DHCP4)
	assert.Equal(t, []string{"192.168.1.20/24"}, eth.Addresses)
	require.Len(t, eth.Routes, 1)
	assert.Equal(t, "default", eth.Routes[0].To)
	assert.Equal(t, "192.168.1.1", eth.Routes[0].Via)
	assert.Equal(t, []string{"192.168.1.1", "8.8.8.8"}, eth.Nameservers.Addresses)
}

func TestRender_DNSOrderPreserved(t *testing.T) {
	p := sampleParams()
	p.DNSServers = []string{"10.0.0.53", "8.8.8.8"}

	data, err := Render(p)
	require.NoError(t, err)

	text := string(data)
	assert.Less(t, strings.Index(text, "10.0.0.53"), strings.Index(text, "8.8.8.8"),
		"discovered resolver must come before the public fallback")
}

func TestWrite_OwnerOnlyPermissions(t *testing.T) {
	dir := t.TempDir()

	path, err := Write(dir, []byte("network:\n  version: 2\n"))
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, FileName), path)
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestBackup(t *testing.T) {
	origNow := now
	defer func() { now = origNow }()
	now = func() time.Time { return time.Unix(1700000000, 0) }

	src := filepath.Join(t.TempDir(), "netplan")
	require.NoError(t, os.MkdirAll(src, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(src, "50-cloud-init.yaml"), []byte("network: {}\n"), 0o600))

	backupPath, err := Backup(src)
	require.NoError(t, err)

	assert.Equal(t, src+".backup.1700000000", backupPath)
	copied, err := os.ReadFile(filepath.Join(backupPath, "50-cloud-init.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "network: {}\n", string(copied))

	// Original untouched.
	_, err = os.Stat(filepath.Join(src, "50-cloud-init.yaml"))
	assert.NoError(t, err)
}

func TestBackup_MissingDirIsNotAnError(t *testing.T) {
	backupPath, err := Backup(filepath.Join(t.TempDir(), "does-not-exist"))

	require.NoError(t, err)
	assert.Empty(t, backupPath)
}

type fakeRunner struct {
	calls []string
	err   error
}

func (f *fakeRunner) Run(_ context.Context, name string, args ...string) ([]byte, error) {
	f.calls = append(f.calls, name+" "+strings.Join(args, " "))
	return nil, f.err
}

func TestApply(t *testing.T) {
	run := &fakeRunner{}

	require.NoError(t, Apply(context.Background(), run))
	assert.Equal(t, []string{"netplan apply"}, run.calls)
}

func TestProbeConnectivity(t *testing.T) {
	run := &fakeRunner{}

	require.NoError(t, ProbeConnectivity(context.Background(), run))
	assert.Equal(t, []string{"ping -c 1 -W 3 8.8.8.8"}, run.calls)
}
