package cmd

import (
	"github.com/oneconcern/voteview/pkg/bootstrap"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// CLIConfig describes the voteview configuration.
type CLIConfig struct {
	Bootstrap BootstrapConfig `json:"bootstrap" yaml:"bootstrap" mapstructure:"bootstrap"`
}

// BootstrapConfig holds the defaults of the bootstrap command
type BootstrapConfig struct {
	bootstrap.Checkout `yaml:",inline" mapstructure:",squash"`
	Backend            string `json:"backend" yaml:"backend" mapstructure:"backend"`
}

func newConfig() (*CLIConfig, error) {
	var config CLIConfig
	err := viper.Unmarshal(&config)
	if err != nil {
		return nil, err
	}
	return &config, nil
}

// configCmd represents the config related commands
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Commands to manage the cluster configuration",
	Long: `Commands to manage the Solana CLI configuration used by voteview.

The configuration holds the cluster to talk to, the keypair identifying the
default vote account, and the commitment level of RPC queries. It is shared
with the solana command line tool.`,
}

func init() {
	rootCmd.AddCommand(configCmd)
}
