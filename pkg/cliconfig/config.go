// Package cliconfig reads and writes the Solana CLI configuration file.
package cliconfig

import (
	"encoding/json"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/imdario/mergo"
	"github.com/oneconcern/voteview/pkg/errors"
	"github.com/oneconcern/voteview/pkg/solana"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v2"
)

const (
	// DefaultRPCURL is the cluster used when nothing is configured
	DefaultRPCURL = "https://api.mainnet-beta.solana.com"

	// DefaultCommitment is the commitment level requested from the cluster
	DefaultCommitment = "confirmed"
)

var (
	// ErrInvalidURL is returned for values that are neither a URL nor a moniker
	ErrInvalidURL = errors.New("invalid cluster URL")

	// ErrInvalidKeypair is returned when a keypair file cannot be used
	ErrInvalidKeypair = errors.New("invalid keypair file")
)

var monikers = map[string]string{
	"m":            "https://api.mainnet-beta.solana.com",
	"mainnet-beta": "https://api.mainnet-beta.solana.com",
	"t":            "https://api.testnet.solana.com",
	"testnet":      "https://api.testnet.solana.com",
	"d":            "https://api.devnet.solana.com",
	"devnet":       "https://api.devnet.solana.com",
	"l":            "http://localhost:8899",
	"localhost":    "http://localhost:8899",
}

// Config mirrors the fields of ~/.config/solana/cli/config.yml used here
type Config struct {
	JSONRPCURL    string            `yaml:"json_rpc_url"`
	WebsocketURL  string            `yaml:"websocket_url"`
	KeypairPath   string            `yaml:"keypair_path"`
	AddressLabels map[string]string `yaml:"address_labels,omitempty"`
	Commitment    string            `yaml:"commitment"`
}

// DefaultPath is the location the Solana CLI uses for its config
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "solana", "cli", "config.yml")
}

// Default configuration
func Default() Config {
	keypair := ""
	if home, err := os.UserHomeDir(); err == nil {
		keypair = filepath.Join(home, ".config", "solana", "id.json")
	}
	return Config{
		JSONRPCURL:  DefaultRPCURL,
		KeypairPath: keypair,
		Commitment:  DefaultCommitment,
	}
}

// Load reads a config file. A missing or unreadable file yields the defaults,
// and fields absent from the file keep their default value.
func Load(fs afero.Fs, path string) Config {
	cfg := Default()
	if path == "" {
		return cfg
	}
	b, err := afero.ReadFile(fs, path)
	if err != nil {
		return cfg
	}
	var onDisk Config
	if err = yaml.Unmarshal(b, &onDisk); err != nil {
		return cfg
	}
	if err = mergo.Merge(&onDisk, cfg); err != nil {
		return cfg
	}
	return onDisk
}

// Save writes the config as yaml, creating parent directories
func Save(fs afero.Fs, path string, cfg Config) error {
	b, err := yaml.Marshal(cfg)
	if err != nil {
		return errors.New("serialize config to yaml").Wrap(err)
	}
	if err = fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.New("create config directory").Wrap(err)
	}
	if err = afero.WriteFile(fs, path, b, 0o644); err != nil {
		return errors.New("write config file " + path).Wrap(err)
	}
	return nil
}

// NormalizeURL expands a cluster moniker. Other values are returned unchanged.
func NormalizeURL(urlOrMoniker string) string {
	if u, ok := monikers[urlOrMoniker]; ok {
		return u
	}
	return urlOrMoniker
}

// ValidateURL accepts monikers and http(s) URLs with a host
func ValidateURL(urlOrMoniker string) error {
	if _, ok := monikers[urlOrMoniker]; ok {
		return nil
	}
	u, err := url.Parse(urlOrMoniker)
	if err != nil {
		return ErrInvalidURL.Wrapf(err, "%q", urlOrMoniker)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return ErrInvalidURL.Wrapf(nil, "%q: expected an http or https scheme, or one of m, t, d, l", urlOrMoniker)
	}
	if u.Host == "" {
		return ErrInvalidURL.Wrapf(nil, "%q: missing host", urlOrMoniker)
	}
	return nil
}

// WebsocketURL derives the pubsub endpoint of a JSON RPC URL: the scheme
// becomes ws or wss, and an explicit port is incremented by one.
func WebsocketURL(rpcURL string) (string, error) {
	u, err := url.Parse(rpcURL)
	if err != nil {
		return "", ErrInvalidURL.Wrapf(err, "%q", rpcURL)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	case "http":
		u.Scheme = "ws"
	default:
		return "", ErrInvalidURL.Wrapf(nil, "%q: unsupported scheme", rpcURL)
	}
	if p := u.Port(); p != "" {
		port, err := strconv.Atoi(p)
		if err != nil {
			return "", ErrInvalidURL.Wrapf(err, "%q: bad port", rpcURL)
		}
		u.Host = strings.TrimSuffix(u.Host, ":"+p) + ":" + strconv.Itoa(port+1)
	}
	return u.String(), nil
}

// ReadPubkey returns the public half of a keypair file: a JSON array of 64 bytes
func ReadPubkey(fs afero.Fs, path string) (solana.Pubkey, error) {
	b, err := afero.ReadFile(fs, path)
	if err != nil {
		return solana.Pubkey{}, ErrInvalidKeypair.Wrapf(err, "%s", path)
	}
	var raw []byte
	var ints []int
	if err = json.Unmarshal(b, &ints); err != nil {
		return solana.Pubkey{}, ErrInvalidKeypair.Wrapf(err, "%s", path)
	}
	if len(ints) != 64 {
		return solana.Pubkey{}, ErrInvalidKeypair.Wrapf(nil, "%s: %d bytes, expected 64", path, len(ints))
	}
	for _, v := range ints {
		if v < 0 || v > 255 {
			return solana.Pubkey{}, ErrInvalidKeypair.Wrapf(nil, "%s: value %d out of byte range", path, v)
		}
		raw = append(raw, byte(v))
	}
	var p solana.Pubkey
	copy(p[:], raw[32:])
	return p, nil
}
