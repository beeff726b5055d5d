package sol

import (
	"fmt"
	"os"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"

	"github.com/hatmlabs/hatm-staker/internal/lib/misc"
)

type NetworkConfig struct {
	NodeURL string

	// Remote staking API used when local construction/submission can't complete
	RemoteAPIUrl string
	RemoteAPIKey string

	StakingProgramID solana.PublicKey
	TokenMint        solana.PublicKey
}

func (n NetworkConfig) String() string {
	return fmt.Sprintf("NodeURL: %s, RemoteAPIUrl: %s, RemoteAPIKey: (length:%d), StakingProgramID: %s, TokenMint: %s",
		n.NodeURL, n.RemoteAPIUrl, len(n.RemoteAPIKey), n.StakingProgramID, n.TokenMint)
}

func GetNetworkConfig(network string) NetworkConfig {
	cfg := getDefaults(network)

	if nodeURL := misc.GetSecret("SOLANA_RPC_URL"); nodeURL != "" {
		cfg.NodeURL = nodeURL
	}
	if apiURL := os.Getenv("HATM_API_URL"); apiURL != "" {
		cfg.RemoteAPIUrl = apiURL
	}
	if apiKey := misc.GetSecret("HATM_API_KEY"); apiKey != "" {
		cfg.RemoteAPIKey = apiKey
	}
	if programID := os.Getenv("HATM_PROGRAM_ID"); programID != "" {
		if pk, err := solana.PublicKeyFromBase58(programID); err == nil {
			cfg.StakingProgramID = pk
		}
	}
	if mint := os.Getenv("HATM_TOKEN_MINT"); mint != "" {
		if pk, err := solana.PublicKeyFromBase58(mint); err == nil {
			cfg.TokenMint = pk
		}
	}
	return cfg
}

func getDefaults(network string) NetworkConfig {
	cfg := NetworkConfig{
		StakingProgramID: solana.MustPublicKeyFromBase58("EnGhdovdYhHk4nsHEJr6gmV5cYfrx53ky19RD56eRRGm"),
		TokenMint:        solana.MustPublicKeyFromBase58("59TF7G5NqMdqjHvpsBPojuhvksHiHVUkaNkaiVvozDrk"),
	}
	switch network {
	case "mainnet":
		cfg.NodeURL = rpc.MainNetBeta_RPC
		cfg.RemoteAPIUrl = "https://api.hatm.io"
	case "devnet":
		cfg.NodeURL = rpc.DevNet_RPC
		cfg.RemoteAPIUrl = "https://api.devnet.hatm.io"
	case "localnet":
		cfg.NodeURL = rpc.LocalNet_RPC
		cfg.RemoteAPIUrl = "http://localhost:3001"
	}
	return cfg
}
