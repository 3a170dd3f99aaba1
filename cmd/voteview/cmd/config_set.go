package cmd

import (
	"fmt"

	"github.com/oneconcern/voteview/pkg/cliconfig"
	"github.com/oneconcern/voteview/pkg/errors"
	"github.com/spf13/cobra"
)

var errInvalidCommitment = errors.New("invalid commitment level")

var configSet = &cobra.Command{
	Use:   "set",
	Short: "Update the cluster configuration file",
	Long: `Writes the Solana CLI configuration file, creating it when missing.

Only the settings given on the command line are changed: --url, --ws, --keypair and --commitment.

By default, this configuration file is ` + cliconfig.DefaultPath() + `. Use --config to change this target.
`,
	Example: `# Use devnet
% voteview config set --url d

# Use a local test validator and a dedicated keypair
% voteview config set --url http://localhost:8899 --keypair ~/validator-keypair.json`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		path := voteviewFlags.root.configFile
		cfg := cliconfig.Load(appFs, path)

		if url := voteviewFlags.root.url; url != "" {
			if err := cliconfig.ValidateURL(url); err != nil {
				wrapFatalln("set json_rpc_url", err)
				return
			}
			cfg.JSONRPCURL = cliconfig.NormalizeURL(url)
			cfg.WebsocketURL = ""
		}
		if ws := voteviewFlags.config.websocketURL; ws != "" {
			cfg.WebsocketURL = ws
		}
		if keypair := voteviewFlags.root.keypair; keypair != "" {
			cfg.KeypairPath = keypair
		}
		if commitment := voteviewFlags.config.commitment; commitment != "" {
			switch commitment {
			case "processed", "confirmed", "finalized":
				cfg.Commitment = commitment
			default:
				wrapFatalln("set commitment", errInvalidCommitment.Wrapf(nil, "%q", commitment))
				return
			}
		}

		if err := cliconfig.Save(appFs, path, cfg); err != nil {
			wrapFatalln("error writing config file "+path, err)
			return
		}

		// show computed values, as config get would
		if cfg.WebsocketURL == "" {
			cfg.WebsocketURL, _ = cliconfig.WebsocketURL(cfg.JSONRPCURL)
		}
		_, _ = fmt.Fprintln(cmd.OutOrStdout(), configTable(path, cfg, nil))
	},
}

func init() {
	addCommitmentFlag(configSet)
	addWebsocketURLFlag(configSet)
	configCmd.AddCommand(configSet)
}
