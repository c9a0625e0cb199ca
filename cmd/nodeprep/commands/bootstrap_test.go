package commands

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBootstrap_Flags(t *testing.T) {
	cmd := Bootstrap()

	require.NotNil(t, cmd)
	assert.Equal(t, "bootstrap", cmd.Use)

	noZeroTier := cmd.Flags().Lookup("no-zerotier")
	require.NotNil(t, noZeroTier)
	assert.Equal(t, "false", noZeroTier.DefValue, "overlay provisioning is on by default")

	config := cmd.Flags().Lookup("config")
	require.NotNil(t, config)
	assert.Equal(t, "/etc/ansible-node.conf", config.DefValue)
}

func TestVerify_Flags(t *testing.T) {
	cmd := Verify()

	require.NotNil(t, cmd)
	assert.Equal(t, "verify", cmd.Use)
	require.NotNil(t, cmd.Flags().Lookup("json"))
	require.NotNil(t, cmd.Flags().Lookup("config"))
}

func TestPeers_Flags(t *testing.T) {
	cmd := Peers()

	require.NotNil(t, cmd)
	require.NotNil(t, cmd.Flags().Lookup("timeout"))
	assert.Equal(t, "3s", cmd.Flags().Lookup("timeout").DefValue)
}

func TestVersionCommand(t *testing.T) {
	cmd := Version()

	require.NotNil(t, cmd)
	assert.Equal(t, "version", cmd.Use)
	assert.NotNil(t, cmd.Run)
}
