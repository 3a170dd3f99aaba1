// Copyright © 2018 One Concern

package cmd

import (
	"strings"

	"github.com/oneconcern/voteview/pkg/bootstrap"
	"github.com/oneconcern/voteview/pkg/cliconfig"
	"github.com/oneconcern/voteview/pkg/dlogger"
	"github.com/oneconcern/voteview/pkg/solana"
	"github.com/oneconcern/voteview/pkg/viewer"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const (
	remoteFlag  = "remote"
	branchFlag  = "branch"
	dirFlag     = "dir"
	baseDirFlag = "base-dir"
	depthFlag   = "depth"
	backendFlag = "backend"
)

type flagsT struct {
	root struct {
		configFile string
		url        string
		keypair    string
		verbose    bool
		logLevel   string
		cpuProf    bool
		trace      bool
	}
	bootstrap struct {
		checkout bootstrap.Checkout
		backend  string
	}
	vv struct {
		limit       int
		before      string
		concurrency int
		rps         float64
	}
	votes struct {
		keepGoing   bool
		metricsAddr string
		slotWindow  int
	}
	config struct {
		commitment   string
		websocketURL string
	}
}

var (
	voteviewFlags = flagsT{}

	// appFs is the filesystem used to read and write configuration and checkouts
	appFs = afero.NewOsFs()
)

func addConfigFileFlag(cmd *cobra.Command) string {
	c := "config"
	cmd.PersistentFlags().StringVarP(&voteviewFlags.root.configFile, c, "C", cliconfig.DefaultPath(), "Configuration file to use")
	return c
}

func addURLFlag(cmd *cobra.Command) string {
	u := "url"
	cmd.PersistentFlags().StringVarP(&voteviewFlags.root.url, u, "u", "",
		"URL for Solana's JSON RPC or moniker (or their first letter): [mainnet-beta, testnet, devnet, localhost]")
	return u
}

func addKeypairFlag(cmd *cobra.Command) string {
	k := "keypair"
	cmd.PersistentFlags().StringVar(&voteviewFlags.root.keypair, k, "", "Filepath of a keypair")
	return k
}

func addVerboseFlag(cmd *cobra.Command) string {
	v := "verbose"
	cmd.PersistentFlags().BoolVarP(&voteviewFlags.root.verbose, v, "v", false, "Show additional information, same as --loglevel debug")
	return v
}

func addLogLevel(cmd *cobra.Command) string {
	loglevel := "loglevel"
	cmd.PersistentFlags().StringVar(&voteviewFlags.root.logLevel, loglevel, dlogger.LogLevelWarn,
		"The logging level. Levels by increasing order of verbosity: "+strings.Join(dlogger.Levels(), ", "))
	return loglevel
}

func addCPUProfFlag(cmd *cobra.Command) string {
	c := "cpuprof"
	cmd.PersistentFlags().BoolVar(&voteviewFlags.root.cpuProf, c, false, "Toggle runtime profiling, written to cpu.prof")
	return c
}

func addTraceFlag(cmd *cobra.Command) string {
	c := "trace"
	cmd.PersistentFlags().BoolVar(&voteviewFlags.root.trace, c, false, "Export OpenTelemetry traces of RPC calls, as configured by OTEL_* environment variables")
	return c
}

func addRemoteURLFlag(cmd *cobra.Command) string {
	c := remoteFlag
	cmd.Flags().StringVar(&voteviewFlags.bootstrap.checkout.URL, c, bootstrap.DefaultURL, "The repository to clone")
	return c
}

func addBranchFlag(cmd *cobra.Command) string {
	c := branchFlag
	cmd.Flags().StringVar(&voteviewFlags.bootstrap.checkout.Branch, c, bootstrap.DefaultBranch, "The branch or tag to check out")
	return c
}

func addDirFlag(cmd *cobra.Command) string {
	c := dirFlag
	cmd.Flags().StringVar(&voteviewFlags.bootstrap.checkout.Dir, c, bootstrap.DefaultDir, "The directory to clone into, relative to --base-dir")
	return c
}

func addBaseDirFlag(cmd *cobra.Command) string {
	c := baseDirFlag
	cmd.Flags().StringVar(&voteviewFlags.bootstrap.checkout.BaseDir, c, "",
		"The directory holding the checkout. Defaults to the directory of the voteview executable")
	return c
}

func addDepthFlag(cmd *cobra.Command) string {
	c := depthFlag
	cmd.Flags().IntVar(&voteviewFlags.bootstrap.checkout.Depth, c, 0, "Limit the fetched history to this many commits (0 fetches everything)")
	return c
}

func addBackendFlag(cmd *cobra.Command) string {
	c := backendFlag
	cmd.Flags().StringVar(&voteviewFlags.bootstrap.backend, c, string(bootstrap.BackendGoGit),
		"How to clone: "+strings.Join(bootstrap.Backends(), " or "))
	return c
}

func addLimitFlag(cmd *cobra.Command) string {
	c := "limit"
	cmd.Flags().IntVarP(&voteviewFlags.vv.limit, c, "l", viewer.DefaultLimit, "Number of transactions to process")
	return c
}

func addBeforeFlag(cmd *cobra.Command) string {
	c := "before"
	cmd.Flags().StringVar(&voteviewFlags.vv.before, c, "", "Start searching backwards from this transaction signature")
	return c
}

func addConcurrencyFlag(cmd *cobra.Command) string {
	c := "concurrency"
	cmd.Flags().IntVar(&voteviewFlags.vv.concurrency, c, 4, "Number of transactions fetched in parallel")
	return c
}

func addRateLimitFlag(cmd *cobra.Command) string {
	c := "rps"
	cmd.Flags().Float64Var(&voteviewFlags.vv.rps, c, 0, "Maximum number of RPC requests per second (0 is unlimited)")
	return c
}

func addKeepGoingFlag(cmd *cobra.Command) string {
	c := "keep-going"
	cmd.Flags().BoolVar(&voteviewFlags.votes.keepGoing, c, false, "Report lockout violations and carry on")
	return c
}

func addMetricsAddrFlag(cmd *cobra.Command) string {
	c := "metrics-addr"
	cmd.Flags().StringVar(&voteviewFlags.votes.metricsAddr, c, "", "Serve prometheus metrics on this address (e.g. :9090)")
	return c
}

func addSlotWindowFlag(cmd *cobra.Command) string {
	c := "slot-window"
	cmd.Flags().IntVar(&voteviewFlags.votes.slotWindow, c, 1000, "Number of recent slots remembered to resolve vote ancestry")
	return c
}

func addCommitmentFlag(cmd *cobra.Command) string {
	c := "commitment"
	cmd.Flags().StringVar(&voteviewFlags.config.commitment, c, "", "Commitment level: processed, confirmed or finalized")
	return c
}

func addWebsocketURLFlag(cmd *cobra.Command) string {
	c := "ws"
	cmd.Flags().StringVar(&voteviewFlags.config.websocketURL, c, "", "Websocket URL for the cluster. Computed from the JSON RPC URL when empty")
	return c
}

// cliOptionInputs resolves the settings shared by commands from flags and configuration files
type cliOptionInputs struct {
	config *CLIConfig
	flags  *flagsT
	fs     afero.Fs
}

func newCliOptionInputs(config *CLIConfig, flags *flagsT) *cliOptionInputs {
	return &cliOptionInputs{
		config: config,
		flags:  flags,
		fs:     appFs,
	}
}

func (in *cliOptionInputs) getLogger() (*zap.Logger, error) {
	level := in.flags.root.logLevel
	if in.flags.root.verbose {
		level = dlogger.LogLevelDebug
	}
	return dlogger.GetLogger(level)
}

// solanaConfig loads the Solana CLI configuration, then applies the --url and --keypair overrides
func (in *cliOptionInputs) solanaConfig() (cliconfig.Config, error) {
	cfg := cliconfig.Load(in.fs, in.flags.root.configFile)

	if in.flags.root.url != "" {
		if err := cliconfig.ValidateURL(in.flags.root.url); err != nil {
			return cfg, err
		}
		cfg.JSONRPCURL = cliconfig.NormalizeURL(in.flags.root.url)
		// an explicit cluster invalidates the configured websocket
		cfg.WebsocketURL = ""
	}
	if cfg.WebsocketURL == "" {
		ws, err := cliconfig.WebsocketURL(cfg.JSONRPCURL)
		if err != nil {
			return cfg, err
		}
		cfg.WebsocketURL = ws
	}
	if in.flags.root.keypair != "" {
		cfg.KeypairPath = in.flags.root.keypair
	}
	return cfg, nil
}

// voteAccount is the address given as argument, or the public key of the configured keypair
func (in *cliOptionInputs) voteAccount(args []string, cfg cliconfig.Config) (solana.Pubkey, error) {
	if len(args) > 0 {
		return solana.ParsePubkey(args[0])
	}
	return cliconfig.ReadPubkey(in.fs, cfg.KeypairPath)
}

// checkout merges the bootstrap flags that were explicitly set over the configured checkout
func (in *cliOptionInputs) checkout(cmd *cobra.Command) (bootstrap.Checkout, string) {
	checkout := in.config.Bootstrap.Checkout
	backend := in.config.Bootstrap.Backend
	f := cmd.Flags()
	set := in.flags.bootstrap.checkout

	if f.Changed(remoteFlag) {
		checkout.URL = set.URL
	}
	if f.Changed(branchFlag) {
		checkout.Branch = set.Branch
	}
	if f.Changed(dirFlag) {
		checkout.Dir = set.Dir
	}
	if f.Changed(baseDirFlag) {
		checkout.BaseDir = set.BaseDir
	}
	if f.Changed(depthFlag) {
		checkout.Depth = set.Depth
	}
	if f.Changed(backendFlag) {
		backend = in.flags.bootstrap.backend
	}
	return checkout, backend
}
