// Package keygen generates Ed25519 key pairs for SSH authentication.
//
// Keys are produced in OpenSSH PEM format (private) and OpenSSH
// authorized_keys format (public), matching what ssh-keygen -t ed25519
// would write.
package keygen

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/pem"
	"fmt"

	"golang.org/x/crypto/ssh"
)

// KeyPair holds an Ed25519 key pair in ready-to-use formats.
type KeyPair struct {
	// PrivateKey is the private key in OpenSSH PEM format.
	PrivateKey []byte
	// PublicKey is the public key in OpenSSH authorized_keys format.
	PublicKey []byte
}

// GenerateEd25519KeyPair generates a new Ed25519 key pair. The comment is
// embedded in the private key and appended to the public key line, the way
// ssh-keygen records user@host.
func GenerateEd25519KeyPair(comment string) (*KeyPair, error) {
	publicKey, privateKey, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to generate Ed25519 key: %w", err)
	}

	privBlock, err := ssh.MarshalPrivateKey(privateKey, comment)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal private key: %w", err)
	}
	privateKeyPEM := pem.EncodeToMemory(privBlock)

	sshPublicKey, err := ssh.NewPublicKey(publicKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create SSH public key: %w", err)
	}
	pubKeyBytes := ssh.MarshalAuthorizedKey(sshPublicKey)
	if comment != "" {
		// MarshalAuthorizedKey ends with a newline; insert the comment before it.
		pubKeyBytes = append(pubKeyBytes[:len(pubKeyBytes)-1], []byte(" "+comment+"\n")...)
	}

	return &KeyPair{
		PrivateKey: privateKeyPEM,
		PublicKey:  pubKeyBytes,
	}, nil
}
