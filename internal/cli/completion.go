package cli

import (
	"github.com/spf13/cobra"
)

// completionCommand creates the completion command for generating shell completions.
func (c *CLI) completionCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "completion [bash|zsh|fish|powershell]",
		Short: "Generate shell completion scripts",
		Long: `Generate shell completion scripts for cargo-upgrade.

To load completions:

Bash:
  $ source <(cargo-upgrade completion bash)

  # To load completions for each session, execute once:
  # Linux:
  $ cargo-upgrade completion bash > /etc/bash_completion.d/cargo-upgrade
  # macOS:
  $ cargo-upgrade completion bash > $(brew --prefix)/etc/bash_completion.d/cargo-upgrade

Zsh:
  # If shell completion is not already enabled in your environment,
  # you will need to enable it. You can execute the following once:
  $ echo "autoload -U compinit; compinit" >> ~/.zshrc

  # To load completions for each session, execute once:
  $ cargo-upgrade completion zsh > "${fpath[1]}/_cargo-upgrade"

  # You will need to start a new shell for this setup to take effect.

Fish:
  $ cargo-upgrade completion fish | source

  # To load completions for each session, execute once:
  $ cargo-upgrade completion fish > ~/.config/fish/completions/cargo-upgrade.fish

PowerShell:
  PS> cargo-upgrade completion powershell | Out-String | Invoke-Expression

  # To load completions for every new session, run:
  PS> cargo-upgrade completion powershell > cargo-upgrade.ps1
  # and source this file from your PowerShell profile.
`,
		DisableFlagsInUseLine: true,
		ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
		Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			switch args[0] {
			case "bash":
				return cmd.Root().GenBashCompletionV2(c.out, true)
			case "zsh":
				return cmd.Root().GenZshCompletion(c.out)
			case "fish":
				return cmd.Root().GenFishCompletion(c.out, true)
			case "powershell":
				return cmd.Root().GenPowerShellCompletionWithDesc(c.out)
			}
			return nil
		},
	}

	return cmd
}
