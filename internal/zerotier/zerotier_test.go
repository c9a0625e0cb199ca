package zerotier

import (
	"context"
	"fmt"
	"io/fs"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRunner struct {
	calls   []string
	outputs map[string]string
	errs    map[string]error
}

func newFakeRunner() *fakeRunner {
	return &fakeRunner{outputs: map[string]string{}, errs: map[string]error{}}
}

func (f *fakeRunner) Run(_ context.Context, name string, args ...string) ([]byte, error) {
	line := name + " " + strings.Join(args, " ")
	f.calls = append(f.calls, line)
	return []byte(f.outputs[line]), f.errs[line]
}

func withFakes(t *testing.T) {
	t.Helper()
	origLook, origWrite, origRemoveAll, origRemove, origSleep := lookPath, writeFile, removeAll, remove, sleep
	t.Cleanup(func() {
		lookPath, writeFile, removeAll, remove, sleep = origLook, origWrite, origRemoveAll, origRemove, origSleep
	})
	writeFile = func(string, []byte, fs.FileMode) error { return nil }
	removeAll = func(string) error { return nil }
	remove = func(string) error { return nil }
	sleep = func(time.Duration) {}
}

func TestEnsureInstalled_HealthyInstallIsNoOp(t *testing.T) {
	withFakes(t)
	lookPath = func(string) (string, error) { return "/usr/sbin/zerotier-cli", nil }

	run := newFakeRunner()
	run.outputs["zerotier-cli info"] = "200 info d5bef5eeca 1.12.2 ONLINE"

	p := New(run)
	reinstalled, err := p.EnsureInstalled(context.Background())

	require.NoError(t, err)
	assert.False(t, reinstalled)
	assert.Equal(t, []string{"zerotier-cli info"}, run.calls)
}

func TestEnsureInstalled_BrokenInstallIsHealed(t *testing.T) {
	withFakes(t)
	lookPath = func(string) (string, error) { return "/usr/sbin/zerotier-cli", nil }

	var removed []string
	removeAll = func(path string) error {
		removed = append(removed, path)
		return nil
	}
	remove = func(path string) error {
		removed = append(removed, path)
		return nil
	}

	run := newFakeRunner()
	run.errs["zerotier-cli info"] = fmt.Errorf("connection failed")

	p := New(run)
	reinstalled, err := p.EnsureInstalled(context.Background())

	require.NoError(t, err)
	assert.True(t, reinstalled)
	assert.Contains(t, run.calls, "systemctl stop zerotier-one")
	assert.Contains(t, run.calls, "systemctl disable zerotier-one")
	assert.Contains(t, run.calls, "apt-get purge -y zerotier-one")
	assert.Contains(t, removed, DataDir)
	assert.Contains(t, removed, AptSourcePath)
	assert.Contains(t, removed, KeyringPath)
	// Clean install via the bootstrap strategy follows the purge.
	assert.Contains(t, run.calls, "bash -c curl -s https://install.zerotier.com | bash")
}

func TestEnsureInstalled_FreshInstall(t *testing.T) {
	withFakes(t)
	lookPath = func(string) (string, error) { return "", fmt.Errorf("not found") }

	run := newFakeRunner()

	p := New(run)
	reinstalled, err := p.EnsureInstalled(context.Background())

	require.NoError(t, err)
	assert.False(t, reinstalled)
	assert.Equal(t, []string{"bash -c curl -s https://install.zerotier.com | bash"}, run.calls)
}

func TestInstall_FallsBackToAptRepo(t *testing.T) {
	withFakes(t)
	lookPath = func(string) (string, error) { return "", fmt.Errorf("not found") }

	var wroteSource string
	writeFile = func(path string, data []byte, _ fs.FileMode) error {
		if path == AptSourcePath {
			wroteSource = string(data)
		}
		return nil
	}

	run := newFakeRunner()
	run.errs["bash -c curl -s https://install.zerotier.com | bash"] = fmt.Errorf("script unreachable")
	run.outputs["dpkg --print-architecture"] = "amd64\n"

	p := New(run)
	p.Codename = "jammy"
	_, err := p.EnsureInstalled(context.Background())

	require.NoError(t, err)
	assert.Contains(t, wroteSource, "arch=amd64")
	assert.Contains(t, wroteSource, "signed-by="+KeyringPath)
	assert.Contains(t, wroteSource, "debian/jammy jammy main")
	assert.Contains(t, run.calls, "apt-get update")
	assert.Contains(t, run.calls, "apt-get install -y zerotier-one")
}

func TestInstall_AllStrategiesFailAggregatesErrors(t *testing.T) {
	withFakes(t)
	lookPath = func(string) (string, error) { return "", fmt.Errorf("not found") }

	run := newFakeRunner()
	run.errs["bash -c curl -s https://install.zerotier.com | bash"] = fmt.Errorf("script unreachable")

	p := New(run) // no codename set, apt strategy fails too
	_, err := p.EnsureInstalled(context.Background())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "all install strategies failed")
	assert.Contains(t, err.Error(), "vendor bootstrap script")
	assert.Contains(t, err.Error(), "manual apt repository")
}

func TestStartService(t *testing.T) {
	withFakes(t)
	run := newFakeRunner()

	err := New(run).StartService(context.Background())

	require.NoError(t, err)
	assert.Equal(t, []string{
		"systemctl daemon-reload",
		"systemctl enable zerotier-one",
		"systemctl start zerotier-one",
	}, run.calls)
}

func TestStartService_FailureIncludesDiagnostics(t *testing.T) {
	withFakes(t)
	run := newFakeRunner()
	run.errs["systemctl start zerotier-one"] = fmt.Errorf("exit status 1")
	run.outputs["systemctl status zerotier-one --no-pager"] = "zerotier-one.service: failed"
	run.outputs["journalctl -u zerotier-one -n 20 --no-pager"] = "fatal: cannot bind port"

	err := New(run).StartService(context.Background())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "zerotier-one.service: failed")
	assert.Contains(t, err.Error(), "cannot bind port")
}

func TestWaitReady_ActiveImmediately(t *testing.T) {
	withFakes(t)
	run := newFakeRunner()
	run.outputs["systemctl is-active zerotier-one"] = "active\n"

	err := New(run).WaitReady(context.Background())

	require.NoError(t, err)
	assert.Len(t, run.calls, 1)
}

func TestNodeID(t *testing.T) {
	withFakes(t)
	run := newFakeRunner()
	run.outputs["zerotier-cli info"] = "200 info d5bef5eeca 1.12.2 ONLINE\n"

	id, err := New(run).NodeID(context.Background())

	require.NoError(t, err)
	assert.Equal(t, "d5bef5eeca", id)
}

func TestNodeID_Malformed(t *testing.T) {
	withFakes(t)
	run := newFakeRunner()
	run.outputs["zerotier-cli info"] = "garbage"

	_, err := New(run).NodeID(context.Background())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected info output")
}

func TestJoin(t *testing.T) {
	withFakes(t)
	run := newFakeRunner()

	err := New(run).Join(context.Background(), "8056c2e21c000001")

	require.NoError(t, err)
	assert.Equal(t, []string{"zerotier-cli join 8056c2e21c000001"}, run.calls)
}

func TestJoin_Failure(t *testing.T) {
	withFakes(t)
	run := newFakeRunner()
	run.errs["zerotier-cli join 8056c2e21c000001"] = fmt.Errorf("invalid network id")

	err := New(run).Join(context.Background(), "8056c2e21c000001")

	require.Error(t, err)
}

func TestNetworkState_WaitsThenClassifies(t *testing.T) {
	withFakes(t)
	var slept time.Duration
	sleep = func(d time.Duration) { slept = d }

	run := newFakeRunner()
	run.outputs["zerotier-cli listnetworks"] = listNetworksOK

	state, err := New(run).NetworkState(context.Background(), "8056c2e21c000001")

	require.NoError(t, err)
	assert.Equal(t, 5*time.Second, slept)
	assert.Equal(t, StatusConnected, state.Status)
	assert.Equal(t, "10.147.17.20/24", state.AssignedIP)
}

func TestCodenameFor(t *testing.T) {
	assert.Equal(t, "focal", CodenameFor("20.04"))
	assert.Equal(t, "jammy", CodenameFor("22.04"))
	assert.Equal(t, "noble", CodenameFor("24.04"))
	assert.Empty(t, CodenameFor("18.04"))
}
