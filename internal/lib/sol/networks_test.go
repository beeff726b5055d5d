package sol

import (
	"testing"

	"github.com/gagliardetto/solana-go/rpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetNetworkConfigDefaults(t *testing.T) {
	cfg := GetNetworkConfig("mainnet")
	assert.Equal(t, rpc.MainNetBeta_RPC, cfg.NodeURL)
	assert.Equal(t, "https://api.hatm.io", cfg.RemoteAPIUrl)
	assert.False(t, cfg.StakingProgramID.IsZero())
	assert.False(t, cfg.TokenMint.IsZero())

	assert.Equal(t, rpc.DevNet_RPC, GetNetworkConfig("devnet").NodeURL)
	assert.Equal(t, rpc.LocalNet_RPC, GetNetworkConfig("localnet").NodeURL)
}

func TestGetNetworkConfigEnvOverrides(t *testing.T) {
	t.Setenv("SOLANA_RPC_URL", "http://rpc.example.test:8899")
	t.Setenv("HATM_API_URL", "http://api.example.test")
	t.Setenv("HATM_PROGRAM_ID", "So11111111111111111111111111111111111111112")

	cfg := GetNetworkConfig("devnet")
	assert.Equal(t, "http://rpc.example.test:8899", cfg.NodeURL)
	assert.Equal(t, "http://api.example.test", cfg.RemoteAPIUrl)
	assert.Equal(t, "So11111111111111111111111111111111111111112", cfg.StakingProgramID.String())
}

func TestConfigStringRedactsAPIKey(t *testing.T) {
	cfg := NetworkConfig{RemoteAPIKey: "super-secret"}
	require.NotContains(t, cfg.String(), "super-secret")
}
