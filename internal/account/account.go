// Package account grants the detected system user passwordless automation
// access: administrative group membership, a scoped sudoers drop-in, and a
// generated SSH key pair. Every operation is idempotent; in particular an
// existing private key is never overwritten.
package account

import (
	"context"
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"strconv"

	"github.com/homefleet/nodeprep/internal/system"
	"github.com/homefleet/nodeprep/internal/util/keygen"
)

const (
	// AdminGroup is the privileged group on Ubuntu.
	AdminGroup = "sudo"
	// SudoersDir holds per-user sudo policy drop-ins.
	SudoersDir = "/etc/sudoers.d"

	privateKeyName = "id_ed25519"
	publicKeyName  = "id_ed25519.pub"
)

// Function variables swapped in tests.
var (
	lookupUser  = user.Lookup
	chown       = os.Chown
	generateKey = keygen.GenerateEd25519KeyPair
	sudoersDir  = SudoersDir
)

// EnsureAdminGroup adds the user to the administrative group. usermod -aG
// on an existing member is a no-op.
func EnsureAdminGroup(ctx context.Context, run system.Runner, username string) error {
	if _, err := run.Run(ctx, "usermod", "-aG", AdminGroup, username); err != nil {
		return fmt.Errorf("add %s to group %s: %w", username, AdminGroup, err)
	}
	return nil
}

// SudoersPolicy returns the passwordless policy line for the user.
func SudoersPolicy(username string) string {
	return fmt.Sprintf("%s ALL=(ALL) NOPASSWD:ALL\n", username)
}

// WriteSudoersDropIn writes the per-user passwordless policy with the mode
// sudo requires (owner and group readable only). Rewriting an identical
// file is harmless, keeping the step idempotent.
func WriteSudoersDropIn(username string) (string, error) {
	path := filepath.Join(sudoersDir, username)
	if err := os.WriteFile(path, []byte(SudoersPolicy(username)), 0o440); err != nil {
		return "", fmt.Errorf("write sudoers policy for %s: %w", username, err)
	}
	return path, nil
}

// ids resolves the numeric uid/gid of a user for chown calls.
func ids(username string) (uid, gid int, err error) {
	u, err := lookupUser(username)
	if err != nil {
		return 0, 0, fmt.Errorf("look up user %s: %w", username, err)
	}
	uid, err = strconv.Atoi(u.Uid)
	if err != nil {
		return 0, 0, fmt.Errorf("parse uid %q: %w", u.Uid, err)
	}
	gid, err = strconv.Atoi(u.Gid)
	if err != nil {
		return 0, 0, fmt.Errorf("parse gid %q: %w", u.Gid, err)
	}
	return uid, gid, nil
}

// EnsureSSHDir creates the user's ~/.ssh with owner-only access and hands
// ownership to the user. Returns the directory path.
func EnsureSSHDir(username, home string) (string, error) {
	dir := filepath.Join(home, ".ssh")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("create %s: %w", dir, err)
	}
	if err := os.Chmod(dir, 0o700); err != nil {
		return "", fmt.Errorf("restrict %s: %w", dir, err)
	}
	uid, gid, err := ids(username)
	if err != nil {
		return "", err
	}
	if err := chown(dir, uid, gid); err != nil {
		return "", fmt.Errorf("chown %s: %w", dir, err)
	}
	return dir, nil
}

// EnsureKeyPair generates an Ed25519 key pair under sshDir unless a private
// key already exists there. Returns the private key path and whether a new
// pair was generated.
func EnsureKeyPair(username, hostname, sshDir string) (path string, generated bool, err error) {
	privatePath := filepath.Join(sshDir, privateKeyName)
	if _, err := os.Stat(privatePath); err == nil {
		return privatePath, false, nil
	} else if !os.IsNotExist(err) {
		return "", false, fmt.Errorf("stat %s: %w", privatePath, err)
	}

	pair, err := generateKey(fmt.Sprintf("%s@%s", username, hostname))
	if err != nil {
		return "", false, fmt.Errorf("generate key pair: %w", err)
	}

	publicPath := filepath.Join(sshDir, publicKeyName)
	if err := os.WriteFile(privatePath, pair.PrivateKey, 0o600); err != nil {
		return "", false, fmt.Errorf("write private key: %w", err)
	}
	if err := os.WriteFile(publicPath, pair.PublicKey, 0o644); err != nil {
		return "", false, fmt.Errorf("write public key: %w", err)
	}

	uid, gid, err := ids(username)
	if err != nil {
		return "", false, err
	}
	for _, p := range []string{privatePath, publicPath} {
		if err := chown(p, uid, gid); err != nil {
			return "", false, fmt.Errorf("chown %s: %w", p, err)
		}
	}
	return privatePath, true, nil
}

// HomeDir returns the user's home directory from the account database.
func HomeDir(username string) (string, error) {
	u, err := lookupUser(username)
	if err != nil {
		return "", fmt.Errorf("look up user %s: %w", username, err)
	}
	return u.HomeDir, nil
}
