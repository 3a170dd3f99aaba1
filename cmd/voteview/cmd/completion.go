// Copyright © 2018 One Concern

package cmd

import (
	"github.com/spf13/cobra"
)

const bash = "bash"
const zsh = "zsh"

// completionCmd represents the completion command
var completionCmd = &cobra.Command{
	Use:   "completion SHELL",
	Short: "generate completions for the voteview command",
	Long: `Generate completions for your shell

	For bash add the following line to your ~/.bashrc

		eval "$(voteview completion bash)"

	For zsh add generate a file:

		voteview completion zsh > /usr/local/share/zsh/site-functions/_voteview

	`,
	ValidArgs: []string{bash, zsh},
	Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),

	Run: func(cmd *cobra.Command, args []string) {
		var err error
		switch args[0] {
		case bash:
			err = rootCmd.GenBashCompletion(cmd.OutOrStdout())
		case zsh:
			err = rootCmd.GenZshCompletion(cmd.OutOrStdout())
		}
		if err != nil {
			wrapFatalln("failed to generate "+args[0]+" completion", err)
			return
		}
	},
}

func init() {
	completionCmd.Hidden = true
	rootCmd.AddCommand(completionCmd)
}
