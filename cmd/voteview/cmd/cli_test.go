package cmd

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/oneconcern/voteview/pkg/bootstrap"
	"github.com/oneconcern/voteview/pkg/cliconfig"
	"github.com/oneconcern/voteview/pkg/rpc"
	"github.com/oneconcern/voteview/pkg/solana"
	"github.com/oneconcern/voteview/pkg/viewer"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeCloner populates the target instead of fetching a remote
type fakeCloner struct {
	backend   string
	checkouts []bootstrap.Checkout
	fail      error
}

func (c *fakeCloner) Clone(_ context.Context, checkout bootstrap.Checkout, target string) error {
	c.checkouts = append(c.checkouts, checkout)
	if err := os.MkdirAll(filepath.Join(target, "sdk"), 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(target, "sdk", "Cargo.toml"), []byte("[package]\n"), 0o644); err != nil {
		return err
	}
	return c.fail
}

func (c *fakeCloner) String() string { return "fake" }

func patchCloner(c *fakeCloner) {
	newCloner = func(backend string, _ io.Writer) (bootstrap.Cloner, error) {
		c.backend = backend
		return c, nil
	}
}

func TestBootstrap(t *testing.T) {
	exitMocks := setupTests(t)
	cloner := &fakeCloner{}
	patchCloner(cloner)
	base := t.TempDir()
	target := filepath.Join(base, bootstrap.DefaultDir)

	out := runCommand(t, "bootstrap", "--base-dir", base, "--backend", "exec", "--depth", "1")
	require.Zero(t, exitMocks.fatalCalls(), exitMocks.messages)
	assert.Contains(t, out, "cloned "+bootstrap.DefaultURL+" (v1.10) into "+target)
	require.Len(t, cloner.checkouts, 1)
	assert.Equal(t, "exec", cloner.backend)
	assert.Equal(t, 1, cloner.checkouts[0].Depth)
	assert.Equal(t, bootstrap.DefaultBranch, cloner.checkouts[0].Branch)
	assert.DirExists(t, target)

	out = runCommand(t, "bootstrap", "--base-dir", base)
	require.Zero(t, exitMocks.fatalCalls(), exitMocks.messages)
	assert.Contains(t, out, target+" already exists, skipping clone")
	assert.Len(t, cloner.checkouts, 1, "no clone attempt when the checkout is present")
}

func TestBootstrap_CloneFailure(t *testing.T) {
	exitMocks := setupTests(t)
	cloner := &fakeCloner{fail: assert.AnError}
	patchCloner(cloner)
	base := t.TempDir()

	runCommand(t, "bootstrap", "--base-dir", base)
	require.Equal(t, 1, exitMocks.fatalCalls())
	assert.Contains(t, exitMocks.messages[0], "clone failed")
	assert.NoDirExists(t, filepath.Join(base, bootstrap.DefaultDir), "partial checkout is removed")
}

func TestBootstrap_Config(t *testing.T) {
	exitMocks := setupTests(t)
	cloner := &fakeCloner{}
	patchCloner(cloner)
	base := t.TempDir()

	configFile := filepath.Join(t.TempDir(), "voteview.yaml")
	require.NoError(t, os.WriteFile(configFile, []byte(`bootstrap:
  url: https://example.com/solana.git
  branch: v1.9
  dir: solana-src
  base_dir: `+base+`
`), 0o600))
	t.Setenv(envConfigLocation, configFile)
	t.Setenv("VOTEVIEW_BOOTSTRAP_BACKEND", "exec")

	out := runCommand(t, "bootstrap", "--branch", "v1.10.40")
	require.Zero(t, exitMocks.fatalCalls(), exitMocks.messages)
	assert.Contains(t, out, "into "+filepath.Join(base, "solana-src"))

	require.Len(t, cloner.checkouts, 1)
	assert.Equal(t, "https://example.com/solana.git", cloner.checkouts[0].URL)
	assert.Equal(t, "v1.10.40", cloner.checkouts[0].Branch, "flags override the configuration")
	assert.Equal(t, "exec", cloner.backend)
}

func TestBootstrap_UnknownBackend(t *testing.T) {
	exitMocks := setupTests(t)
	runCommand(t, "bootstrap", "--base-dir", t.TempDir(), "--backend", "svn")
	require.Equal(t, 1, exitMocks.fatalCalls())
	assert.Contains(t, exitMocks.messages[0], "unknown clone backend")
}

func TestConfigSetGet(t *testing.T) {
	exitMocks := setupTests(t)
	path := filepath.Join(t.TempDir(), "solana", "cli", "config.yml")

	runCommand(t, "config", "set", "--config", path, "--url", "d", "--keypair", "/keys/id.json", "--commitment", "finalized")
	require.Zero(t, exitMocks.fatalCalls(), exitMocks.messages)

	cfg := cliconfig.Load(afero.NewOsFs(), path)
	assert.Equal(t, "https://api.devnet.solana.com", cfg.JSONRPCURL)
	assert.Equal(t, "/keys/id.json", cfg.KeypairPath)
	assert.Equal(t, "finalized", cfg.Commitment)

	out := runCommand(t, "config", "get", "--config", path)
	require.Zero(t, exitMocks.fatalCalls(), exitMocks.messages)
	assert.Contains(t, out, "https://api.devnet.solana.com")
	assert.Contains(t, out, "wss://api.devnet.solana.com")
	assert.Contains(t, out, "/keys/id.json")
	assert.Contains(t, out, bootstrap.DefaultDir)

	out = runCommand(t, "config", "get", "--config", path, "--url", "http://localhost:8899")
	require.Zero(t, exitMocks.fatalCalls(), exitMocks.messages)
	assert.Contains(t, out, "ws://localhost:8900")
}

func TestConfigSet_Invalid(t *testing.T) {
	exitMocks := setupTests(t)
	path := filepath.Join(t.TempDir(), "config.yml")

	runCommand(t, "config", "set", "--config", path, "--commitment", "eventually")
	runCommand(t, "config", "set", "--config", path, "--url", "ftp://cluster")
	assert.Equal(t, 2, exitMocks.fatalCalls())
	assert.NoFileExists(t, path)
}

func TestVersion(t *testing.T) {
	exitMocks := setupTests(t)
	out := runCommand(t, "version")
	require.Zero(t, exitMocks.fatalCalls())
	assert.Contains(t, out, "Version: dev")
}

func TestCompletion(t *testing.T) {
	exitMocks := setupTests(t)
	out := runCommand(t, "completion", "bash")
	require.Zero(t, exitMocks.fatalCalls())
	assert.Contains(t, out, "voteview")
}

// cluster serves canned vote transactions
type cluster struct {
	account solana.Pubkey
	infos   []rpc.SignatureInfo
	txs     map[solana.Signature]*solana.Transaction
	blocks  []solana.Slot
	limit   int
}

func (c *cluster) GetSignaturesForAddress(_ context.Context, address solana.Pubkey, limit int, _ *solana.Signature) ([]rpc.SignatureInfo, error) {
	c.limit = limit
	if address != c.account {
		return nil, nil
	}
	return c.infos, nil
}

func (c *cluster) GetTransaction(_ context.Context, sig solana.Signature) (*rpc.ConfirmedTransaction, error) {
	tx, ok := c.txs[sig]
	if !ok {
		return nil, rpc.ErrNotFound
	}
	return &rpc.ConfirmedTransaction{Transaction: tx}, nil
}

func (c *cluster) GetBlocks(_ context.Context, _, _ solana.Slot) ([]solana.Slot, error) {
	return c.blocks, nil
}

func writeKeypair(t *testing.T) (string, solana.Pubkey) {
	raw := make([]int, 64)
	var pub solana.Pubkey
	for i := range raw {
		raw[i] = i
		if i >= 32 {
			pub[i-32] = byte(i)
		}
	}
	b, err := json.Marshal(raw)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "id.json")
	require.NoError(t, os.WriteFile(path, b, 0o600))
	return path, pub
}

func TestVoteViewer(t *testing.T) {
	exitMocks := setupTests(t)
	keypair, account := writeKeypair(t)

	c := &cluster{
		account: account,
		txs:     map[solana.Signature]*solana.Transaction{},
		blocks:  []solana.Slot{10, 11, 12},
	}
	for i, landed := range []solana.Slot{12, 13} {
		sig := solana.Signature{byte(i + 1)}
		c.infos = append(c.infos, rpc.SignatureInfo{Signature: sig, Slot: landed})
		c.txs[sig] = solana.NewVoteTransaction(sig, solana.Pubkey{0x55}, account, solana.VoteIx,
			solana.Vote{Slots: []solana.Slot{landed - 2, landed - 1}})
	}
	var endpoint string
	newLedger = func(url string, _ ...rpc.Option) viewer.Ledger {
		endpoint = url
		return c
	}

	missing := filepath.Join(t.TempDir(), "config.yml")
	out := runCommand(t, "vv", "--config", missing, "--keypair", keypair, "--url", "t", "--limit", "5")
	require.Zero(t, exitMocks.fatalCalls(), exitMocks.messages)

	assert.Equal(t, "https://api.testnet.solana.com", endpoint)
	assert.Equal(t, 5, c.limit)
	assert.Contains(t, out, "2 transactions to process:")
	assert.Contains(t, out, "  "+c.infos[0].Signature.String()+"\n")
	assert.Contains(t, out, "Slot Range: 10..13")
	assert.Contains(t, out, "3 of 4 confirmed")
}

func TestVoteViewer_LimitShorthand(t *testing.T) {
	exitMocks := setupTests(t)
	c := &cluster{account: solana.Pubkey{1}}
	newLedger = func(string, ...rpc.Option) viewer.Ledger { return c }
	missing := filepath.Join(t.TempDir(), "config.yml")

	out := runCommand(t, "vv", "--config", missing, "-l", "7", c.account.String())
	require.Zero(t, exitMocks.fatalCalls(), exitMocks.messages)
	assert.Equal(t, 7, c.limit)
	assert.Contains(t, out, "0 transactions to process:")
}

func TestVoteViewer_Errors(t *testing.T) {
	exitMocks := setupTests(t)
	newLedger = func(string, ...rpc.Option) viewer.Ledger { return &cluster{} }
	missing := filepath.Join(t.TempDir(), "config.yml")

	runCommand(t, "vv", "--config", missing, "--keypair", filepath.Join(t.TempDir(), "none.json"))
	runCommand(t, "vv", "--config", missing, "not-a-pubkey")
	runCommand(t, "vv", "--config", missing, "--before", "0OIl", solana.Pubkey{1}.String())
	assert.Equal(t, 3, exitMocks.fatalCalls())
}
