package staking

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"golang.org/x/oauth2"

	"github.com/hatmlabs/hatm-staker/internal/lib/misc"
	"github.com/hatmlabs/hatm-staker/internal/lib/sol"
)

const remoteRequestTimeout = 15 * time.Second

// RemoteClient talks to the hosted HATM staking API. It serves two roles:
// the fallback path when local submission is exhausted, and the construction
// path for degraded intents whose instructions couldn't be assembled
// locally.
type RemoteClient struct {
	log     *slog.Logger
	baseURL string
	http    *http.Client
}

// NewRemoteClient returns nil when no remote API is configured - callers
// treat a nil client as "no fallback available".
func NewRemoteClient(logger *slog.Logger, cfg sol.NetworkConfig) *RemoteClient {
	if cfg.RemoteAPIUrl == "" {
		return nil
	}
	httpClient := &http.Client{Timeout: remoteRequestTimeout}
	if cfg.RemoteAPIKey != "" {
		httpClient = oauth2.NewClient(
			context.WithValue(context.Background(), oauth2.HTTPClient, httpClient),
			oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.RemoteAPIKey}),
		)
		httpClient.Timeout = remoteRequestTimeout
	}
	return &RemoteClient{
		log:     logger,
		baseURL: strings.TrimRight(cfg.RemoteAPIUrl, "/"),
		http:    httpClient,
	}
}

// remoteEnvelope is the fixed response shape every API endpoint uses.
type remoteEnvelope struct {
	Success         bool            `json:"success"`
	Error           string          `json:"error"`
	Transaction     string          `json:"transaction"`
	ResultSignature string          `json:"resultSignature"`
	Data            json.RawMessage `json:"data"`
}

// RemoteOutcome is what a successful remote call produced - exactly one of
// the two fields is set.
type RemoteOutcome struct {
	// Transaction is a server-built transaction awaiting a local signature.
	Transaction *solana.Transaction
	// Signature is set when the remote executed the operation itself.
	Signature solana.Signature
}

var remoteOpPaths = map[IntentKind]string{
	KindStake:            "/stake",
	KindUnstake:          "/unstake",
	KindClaim:            "/claim-rewards",
	KindCompound:         "/compound-rewards",
	KindRegisterReferral: "/register-user",
	KindPurchaseStake:    "/purchase-and-stake",
}

// PerformOperation asks the remote service to carry out (or construct) the
// given operation. Server responses that claim success but carry an
// undecodable transaction fail loudly - a remote-built transaction we can't
// parse is not something to sign blind.
func (r *RemoteClient) PerformOperation(ctx context.Context, intent *TransactionIntent) (RemoteOutcome, error) {
	path, ok := remoteOpPaths[intent.Kind]
	if !ok {
		return RemoteOutcome{}, fmt.Errorf("no remote endpoint for operation %s", intent.Kind)
	}
	payload := map[string]any{
		"walletAddress": intent.Owner.String(),
	}
	if intent.Amount != 0 {
		payload["amount"] = intent.Amount
	}
	env, err := r.post(ctx, string(intent.Kind), path, payload)
	if err != nil {
		return RemoteOutcome{}, err
	}

	if env.ResultSignature != "" {
		sig, err := solana.SignatureFromBase58(env.ResultSignature)
		if err != nil {
			return RemoteOutcome{}, &RemoteFallbackError{
				Op: string(intent.Kind), Err: fmt.Errorf("unparseable resultSignature %q: %w", env.ResultSignature, err),
			}
		}
		return RemoteOutcome{Signature: sig}, nil
	}
	if env.Transaction == "" {
		return RemoteOutcome{}, &RemoteFallbackError{
			Op: string(intent.Kind), Err: fmt.Errorf("success response carried neither transaction nor resultSignature"),
		}
	}
	rawTx, err := base64.StdEncoding.DecodeString(env.Transaction)
	if err != nil {
		return RemoteOutcome{}, &RemoteFallbackError{
			Op: string(intent.Kind), Err: fmt.Errorf("transaction field is not valid base64: %w", err),
		}
	}
	tx, err := solana.TransactionFromDecoder(bin.NewBinDecoder(rawTx))
	if err != nil {
		return RemoteOutcome{}, &RemoteFallbackError{
			Op: string(intent.Kind), Err: fmt.Errorf("transaction field did not decode as a transaction: %w", err),
		}
	}
	return RemoteOutcome{Transaction: tx}, nil
}

// StakingInfo fetches the remote view of a wallet's staking state. The
// response data is dynamic JSON - numeric fields come back in whatever
// shape the server's stack produced, so decoding runs through the same
// tolerant decoder as everything else.
func (r *RemoteClient) StakingInfo(ctx context.Context, dec *Decoder, owner solana.PublicKey) (StakeRecord, error) {
	env, err := r.get(ctx, "staking-info", "/staking-info/"+owner.String())
	if err != nil {
		return StakeRecord{}, err
	}
	var fields map[string]any
	if err := json.Unmarshal(env.Data, &fields); err != nil {
		return StakeRecord{}, &RemoteFallbackError{Op: "staking-info", Err: fmt.Errorf("decoding response data: %w", err)}
	}
	return dec.DecodeStakeRecord(fields)
}

// TokenBalance fetches a wallet's HATM token balance in base units.
func (r *RemoteClient) TokenBalance(ctx context.Context, dec *Decoder, owner solana.PublicKey) (uint64, error) {
	env, err := r.get(ctx, "token-balance", "/token-balance/"+owner.String())
	if err != nil {
		return 0, err
	}
	var fields map[string]any
	if err := json.Unmarshal(env.Data, &fields); err != nil {
		return 0, &RemoteFallbackError{Op: "token-balance", Err: fmt.Errorf("decoding response data: %w", err)}
	}
	balance := dec.DecodeNumeric(fields["balance"])
	amount, ok := balance.Uint64()
	if !ok {
		return 0, fmt.Errorf("token balance %s overflows uint64", balance)
	}
	return amount, nil
}

func (r *RemoteClient) post(ctx context.Context, op, path string, payload any) (*remoteEnvelope, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encoding %s request: %w", op, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building %s request: %w", op, err)
	}
	req.Header.Set("Content-Type", "application/json")
	return r.do(op, req)
}

func (r *RemoteClient) get(ctx context.Context, op, path string) (*remoteEnvelope, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("building %s request: %w", op, err)
	}
	return r.do(op, req)
}

func (r *RemoteClient) do(op string, req *http.Request) (*remoteEnvelope, error) {
	resp, err := r.http.Do(req)
	if err != nil {
		return nil, &RemoteFallbackError{Op: op, Err: err}
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, &RemoteFallbackError{Op: op, Status: resp.StatusCode, Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		// Server error details go back verbatim - diagnosing remote failures
		// from a paraphrase is miserable.
		return nil, &RemoteFallbackError{Op: op, Status: resp.StatusCode, Body: string(body)}
	}
	var env remoteEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, &RemoteFallbackError{Op: op, Status: resp.StatusCode, Body: string(body), Err: err}
	}
	if !env.Success {
		return nil, &RemoteFallbackError{Op: op, Status: resp.StatusCode, Body: env.Error}
	}
	misc.Debugf(r.log, "remote %s call succeeded", op)
	return &env, nil
}
