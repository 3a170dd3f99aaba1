// Copyright © 2018 One Concern

package cmd

import (
	"context"
	"fmt"
	"log"
	"os"
	"runtime/pprof"
	"strings"
	"time"

	"github.com/oneconcern/voteview/pkg/bootstrap"
	"github.com/oneconcern/voteview/pkg/dlogger"
	"github.com/oneconcern/voteview/pkg/tracing"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const envConfigLocation = "VOTEVIEW_CONFIG"

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "voteview",
	Short: "Voteview inspects how Solana validators vote",
	Long: `Voteview inspects how Solana validators vote.

It fetches the Solana v1.10 sources next to the tool, lays out the recent vote
transactions of a vote account slot by slot, and follows the vote stream of a
cluster to replay every validator's tower and report lockout violations.

Cluster settings are read from the Solana CLI configuration file. Settings of
voteview itself live in voteview.yaml and may be overridden by VOTEVIEW_*
environment variables.
`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if voteviewFlags.root.cpuProf {
			f, err := os.Create("cpu.prof")
			if err != nil {
				wrapFatalln("create cpu profile", err)
				return
			}
			_ = pprof.StartCPUProfile(f)
		}
		if voteviewFlags.root.verbose {
			log.Printf("Using Solana config file: %s", voteviewFlags.root.configFile)
		}
		if voteviewFlags.root.trace {
			logger, err := dlogger.GetLogger(voteviewFlags.root.logLevel)
			if err != nil {
				wrapFatalln("failed to set log level", err)
				return
			}
			traceShutdown, err = tracing.Init(context.Background(), "voteview", logger)
			if err != nil {
				wrapFatalln("failed to initialize tracing", err)
				return
			}
		}
	},
	// upstream api note:  *PostRun functions aren't called in case of a panic() in Run
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if voteviewFlags.root.cpuProf {
			pprof.StopCPUProfile()
		}
		if traceShutdown != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := traceShutdown(ctx); err != nil {
				log.Printf("flush traces: %v", err)
			}
			traceShutdown = nil
		}
	},
}

var (
	config        *CLIConfig
	traceShutdown tracing.ShutdownFunc
)

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		osExit(1)
	}
}

func init() {
	log.SetFlags(0)
	cobra.OnInitialize(initConfig)

	addConfigFileFlag(rootCmd)
	addURLFlag(rootCmd)
	addKeypairFlag(rootCmd)
	addVerboseFlag(rootCmd)
	addLogLevel(rootCmd)
	addCPUProfFlag(rootCmd)
	addTraceFlag(rootCmd)
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	defaults := bootstrap.DefaultCheckout()
	viper.SetDefault("bootstrap.url", defaults.URL)
	viper.SetDefault("bootstrap.branch", defaults.Branch)
	viper.SetDefault("bootstrap.dir", defaults.Dir)
	viper.SetDefault("bootstrap.base_dir", defaults.BaseDir)
	viper.SetDefault("bootstrap.depth", defaults.Depth)
	viper.SetDefault("bootstrap.backend", string(bootstrap.BackendGoGit))

	if os.Getenv(envConfigLocation) != "" {
		viper.SetConfigFile(os.Getenv(envConfigLocation))
	} else {
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME/.voteview")
		viper.SetConfigName("voteview")
	}

	viper.SetEnvPrefix("voteview")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv() // read in environment variables that match

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err == nil && voteviewFlags.root.verbose {
		log.Println("Using config file:", viper.ConfigFileUsed())
	}
	var err error
	config, err = newConfig()
	if err != nil {
		logFatalln(err)
	}
}
