// Copyright © 2018 One Concern

package cmd

import (
	"context"
	"fmt"

	"github.com/oneconcern/voteview/pkg/rpc"
	"github.com/oneconcern/voteview/pkg/solana"
	"github.com/oneconcern/voteview/pkg/tracing"
	"github.com/oneconcern/voteview/pkg/viewer"
	"github.com/spf13/cobra"
)

// used to patch over the cluster during test
var newLedger = func(endpoint string, opts ...rpc.Option) viewer.Ledger {
	return rpc.New(endpoint, opts...)
}

var vvCmd = &cobra.Command{
	Use:   "vv [ADDRESS]",
	Short: "Vote viewer",
	Long: `Lays out the recent vote transactions of a vote account, one row per slot.

Each column is a vote transaction. It spans from the first slot it votes on
down to the slot it landed in:
	+ a voted slot
	xx a slot skipped over by the votes of the transaction
	^^ a slot between the last vote and the landing slot
	= the landing slot

A '!' flags failed transactions. Rows are labelled SKIP when the cluster did not
confirm the slot, and MISS when a confirmed slot below the latest vote got no
successful vote.

ADDRESS defaults to the public key of the configured keypair.`,
	Example: `% voteview vv --url m --limit 20 Certusm1sa411sMpV9FPqU5dXAYhmmhygvxJ23S6hJ24`,
	Args:    cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx, span := tracing.Start(context.Background(), "vv")
		defer span.End()

		inputs := newCliOptionInputs(config, &voteviewFlags)
		logger, err := inputs.getLogger()
		if err != nil {
			wrapFatalln("failed to set log level", err)
			return
		}
		cfg, err := inputs.solanaConfig()
		if err != nil {
			wrapFatalln("resolve cluster configuration", err)
			return
		}
		account, err := inputs.voteAccount(args, cfg)
		if err != nil {
			wrapFatalln("resolve vote account address", err)
			return
		}
		var before *solana.Signature
		if voteviewFlags.vv.before != "" {
			sig, e := solana.ParseSignature(voteviewFlags.vv.before)
			if e != nil {
				wrapFatalln("invalid --before signature", e)
				return
			}
			before = &sig
		}

		out := cmd.OutOrStdout()
		if voteviewFlags.root.verbose {
			fmt.Fprintf(out, "JSON RPC URL: %s\n", cfg.JSONRPCURL)
		}

		ledger := newLedger(cfg.JSONRPCURL,
			rpc.Commitment(cfg.Commitment),
			rpc.RateLimit(voteviewFlags.vv.rps),
			rpc.Logger(logger),
		)
		v := viewer.New(ledger,
			viewer.Limit(voteviewFlags.vv.limit),
			viewer.Before(before),
			viewer.Concurrency(voteviewFlags.vv.concurrency),
			viewer.Logger(logger),
			viewer.Progress(func(info rpc.SignatureInfo) {
				fmt.Fprintf(out, "  %s\n", info.Signature)
			}),
		)

		infos, err := v.Signatures(ctx, account)
		if err != nil {
			wrapFatalln("failed to list vote transactions", err)
			return
		}
		fmt.Fprintf(out, "%d transactions to process:\n", len(infos))

		table, err := v.ViewSignatures(ctx, infos)
		if err != nil {
			wrapFatalln("failed to build vote table", err)
			return
		}
		if err = viewer.Render(out, table); err != nil {
			wrapFatalln("failed to render vote table", err)
			return
		}
	},
}

func init() {
	addLimitFlag(vvCmd)
	addBeforeFlag(vvCmd)
	addConcurrencyFlag(vvCmd)
	addRateLimitFlag(vvCmd)
	rootCmd.AddCommand(vvCmd)
}
