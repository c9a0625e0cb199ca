package account

import (
	"context"
	"os"
	osuser "os/user"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/homefleet/nodeprep/internal/util/keygen"
)

type fakeRunner struct {
	calls []string
	err   error
}

func (f *fakeRunner) Run(_ context.Context, name string, args ...string) ([]byte, error) {
	f.calls = append(f.calls, name+" "+strings.Join(args, " "))
	return nil, f.err
}

func withFakeUser(t *testing.T) {
	t.Helper()
	origLookup, origChown := lookupUser, chown
	t.Cleanup(func() { lookupUser, chown = origLookup, origChown })
	lookupUser = func(username string) (*osuser.User, error) {
		return &osuser.User{
			Uid:      "1000",
			Gid:      "1000",
			Username: username,
			HomeDir:  "/home/" + username,
		}, nil
	}
	chown = func(string, int, int) error { return nil }
}

func TestEnsureAdminGroup(t *testing.T) {
	run := &fakeRunner{}

	err := EnsureAdminGroup(context.Background(), run, "alice")

	require.NoError(t, err)
	assert.Equal(t, []string{"usermod -aG sudo alice"}, run.calls)
}

func TestSudoersPolicy(t *testing.T) {
	assert.Equal(t, "alice ALL=(ALL) NOPASSWD:ALL\n", SudoersPolicy("alice"))
}

func TestWriteSudoersDropIn(t *testing.T) {
	origDir := sudoersDir
	defer func() { sudoersDir = origDir }()
	sudoersDir = t.TempDir()

	path, err := WriteSudoersDropIn("alice")
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(sudoersDir, "alice"), path)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "alice ALL=(ALL) NOPASSWD:ALL\n", string(data))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o440), info.Mode().Perm())
}

func TestWriteSudoersDropIn_RewriteIsIdempotent(t *testing.T) {
	origDir := sudoersDir
	defer func() { sudoersDir = origDir }()
	sudoersDir = t.TempDir()

	_, err := WriteSudoersDropIn("alice")
	require.NoError(t, err)
	path, err := WriteSudoersDropIn("alice")
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "alice ALL=(ALL) NOPASSWD:ALL\n", string(data), "content unchanged after rewrite")
}

func TestEnsureSSHDir(t *testing.T) {
	withFakeUser(t)
	home := t.TempDir()

	dir, err := EnsureSSHDir("alice", home)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(home, ".ssh"), dir)
	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
	assert.Equal(t, os.FileMode(0o700), info.Mode().Perm())
}

func TestEnsureKeyPair_GeneratesOnce(t *testing.T) {
	withFakeUser(t)
	sshDir := t.TempDir()

	path, generated, err := EnsureKeyPair("alice", "node01", sshDir)
	require.NoError(t, err)
	assert.True(t, generated)
	assert.Equal(t, filepath.Join(sshDir, "id_ed25519"), path)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	pubInfo, err := os.Stat(filepath.Join(sshDir, "id_ed25519.pub"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o644), pubInfo.Mode().Perm())
}

func TestEnsureKeyPair_NeverOverwritesExistingKey(t *testing.T) {
	withFakeUser(t)
	sshDir := t.TempDir()

	privatePath := filepath.Join(sshDir, "id_ed25519")
	require.NoError(t, os.WriteFile(privatePath, []byte("EXISTING KEY\n"), 0o600))

	origGenerate := generateKey
	defer func() { generateKey = origGenerate }()
	generateCalls := 0
	generateKey = func(comment string) (*keygen.KeyPair, error) {
		generateCalls++
		return &keygen.KeyPair{PrivateKey: []byte("new"), PublicKey: []byte("new")}, nil
	}

	path, generated, err := EnsureKeyPair("alice", "node01", sshDir)

	require.NoError(t, err)
	assert.False(t, generated)
	assert.Equal(t, privatePath, path)
	assert.Zero(t, generateCalls, "generation must be skipped when a key exists")

	data, err := os.ReadFile(privatePath)
	require.NoError(t, err)
	assert.Equal(t, "EXISTING KEY\n", string(data))
}

func TestEnsureKeyPair_CommentIncludesUserAndHost(t *testing.T) {
	withFakeUser(t)
	sshDir := t.TempDir()

	origGenerate := generateKey
	defer func() { generateKey = origGenerate }()
	var gotComment string
	generateKey = func(comment string) (*keygen.KeyPair, error) {
		gotComment = comment
		return &keygen.KeyPair{PrivateKey: []byte("k"), PublicKey: []byte("p")}, nil
	}

	_, _, err := EnsureKeyPair("alice", "node01", sshDir)

	require.NoError(t, err)
	assert.Equal(t, "alice@node01", gotComment)
}
