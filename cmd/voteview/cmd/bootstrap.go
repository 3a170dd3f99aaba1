// Copyright © 2018 One Concern

package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/oneconcern/voteview/pkg/bootstrap"
	"github.com/spf13/cobra"
)

// used to patch over the clone backend during test
var newCloner = bootstrap.NewCloner

var bootstrapCmd = &cobra.Command{
	Use:   "bootstrap",
	Short: "Fetch the Solana v1.10 sources next to voteview",
	Long: `Clones the Solana repository into a directory next to the voteview executable,
unless that directory already exists.

Running bootstrap again is a no-op. A failed clone leaves nothing behind, and
exits with a non-zero status.

Defaults may be set in voteview.yaml under the bootstrap key, or with
VOTEVIEW_BOOTSTRAP_* environment variables.`,
	Example: `% voteview bootstrap
cloned https://github.com/solana-labs/solana.git (v1.10) into /opt/voteview/solana-v1.10 (1.2GB)

% voteview bootstrap
/opt/voteview/solana-v1.10 already exists, skipping clone

# shallow clone with the git binary, in the current directory
% voteview bootstrap --backend exec --depth 1 --base-dir .`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		inputs := newCliOptionInputs(config, &voteviewFlags)
		logger, err := inputs.getLogger()
		if err != nil {
			wrapFatalln("failed to set log level", err)
			return
		}
		checkout, backend := inputs.checkout(cmd)

		cloner, err := newCloner(backend, cmd.ErrOrStderr())
		if err != nil {
			wrapFatalln("select clone backend", err)
			return
		}

		result, err := bootstrap.Ensure(ctx, checkout,
			bootstrap.WithFs(inputs.fs),
			bootstrap.WithCloner(cloner),
			bootstrap.WithLogger(logger),
		)
		if err != nil {
			wrapFatalln("bootstrap", err)
			return
		}

		out := cmd.OutOrStdout()
		switch result.Outcome {
		case bootstrap.Skipped:
			fmt.Fprintf(out, "%s already exists, skipping clone\n", result.Target)
		default:
			fmt.Fprintf(out, "cloned %s (%s) into %s (%s)\n", checkout.URL, checkout.Branch, result.Target, result.HumanSize())
		}
	},
}

func init() {
	addRemoteURLFlag(bootstrapCmd)
	addBranchFlag(bootstrapCmd)
	addDirFlag(bootstrapCmd)
	addBaseDirFlag(bootstrapCmd)
	addDepthFlag(bootstrapCmd)
	addBackendFlag(bootstrapCmd)
	rootCmd.AddCommand(bootstrapCmd)
}
