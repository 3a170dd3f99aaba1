package cmd

import (
	"fmt"
	"strconv"

	"github.com/gosuri/uitable"
	"github.com/oneconcern/voteview/pkg/cliconfig"
	"github.com/spf13/cobra"
)

var configGet = &cobra.Command{
	Use:   "get",
	Short: "Show the resolved configuration",
	Long: `Shows the cluster settings, after applying command line overrides,
and the settings used by the bootstrap command.`,
	Example: `% voteview config get
Config File:    /home/validator/.config/solana/cli/config.yml
RPC URL:        https://api.mainnet-beta.solana.com
WebSocket URL:  wss://api.mainnet-beta.solana.com
Keypair Path:   /home/validator/.config/solana/id.json
Commitment:     confirmed
...`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		inputs := newCliOptionInputs(config, &voteviewFlags)
		cfg, err := inputs.solanaConfig()
		if err != nil {
			wrapFatalln("resolve cluster configuration", err)
			return
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), configTable(voteviewFlags.root.configFile, cfg, config))
		if err != nil {
			wrapFatalln("print configuration", err)
			return
		}
	},
}

func configTable(path string, cfg cliconfig.Config, local *CLIConfig) *uitable.Table {
	table := uitable.New()
	table.AddRow("Config File:", path)
	table.AddRow("RPC URL:", cfg.JSONRPCURL)
	table.AddRow("WebSocket URL:", cfg.WebsocketURL)
	table.AddRow("Keypair Path:", cfg.KeypairPath)
	table.AddRow("Commitment:", cfg.Commitment)
	if local != nil {
		b := local.Bootstrap
		table.AddRow("Bootstrap Remote:", b.URL)
		table.AddRow("Bootstrap Branch:", b.Branch)
		table.AddRow("Bootstrap Dir:", b.Dir)
		if b.BaseDir != "" {
			table.AddRow("Bootstrap Base Dir:", b.BaseDir)
		}
		table.AddRow("Bootstrap Depth:", strconv.Itoa(b.Depth))
		table.AddRow("Bootstrap Backend:", b.Backend)
	}
	return table
}

func init() {
	configCmd.AddCommand(configGet)
}
