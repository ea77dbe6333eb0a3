package cmd

import (
	"github.com/spf13/cobra"
)

var completionCmd = &cobra.Command{
	Use:   "completion [bash|zsh|fish|powershell]",
	Short: "Generate shell completion scripts",
	Long: `Generate shell completion scripts for hitmatch.

To load completions:

Bash:
  $ source <(hitmatch completion bash)

  # To load completions for each session, execute once:
  # Linux:
  $ hitmatch completion bash > /etc/bash_completion.d/hitmatch
  # macOS:
  $ hitmatch completion bash > $(brew --prefix)/etc/bash_completion.d/hitmatch

Zsh:
  # If shell completion is not already enabled in your environment,
  # you will need to enable it. Execute the following once:
  $ echo "autoload -U compinit; compinit" >> ~/.zshrc

  # To load completions for each session, execute once:
  $ hitmatch completion zsh > "${fpath[1]}/_hitmatch"

  # You will need to start a new shell for this setup to take effect.

Fish:
  $ hitmatch completion fish | source

  # To load completions for each session, execute once:
  $ hitmatch completion fish > ~/.config/fish/completions/hitmatch.fish

PowerShell:
  PS> hitmatch completion powershell | Out-String | Invoke-Expression

  # To load completions for every new session, run:
  PS> hitmatch completion powershell > hitmatch.ps1
  # and source this file from your PowerShell profile.
`,
	DisableFlagsInUseLine: true,
	ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
	Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	RunE: func(cmd *cobra.Command, args []string) error {
		w := cmd.OutOrStdout()
		switch args[0] {
		case "bash":
			return cmd.Root().GenBashCompletion(w)
		case "zsh":
			return cmd.Root().GenZshCompletion(w)
		case "fish":
			return cmd.Root().GenFishCompletion(w, true)
		case "powershell":
			return cmd.Root().GenPowerShellCompletionWithDesc(w)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(completionCmd)
}
