package commands

import (
	"github.com/spf13/cobra"
	"github.com/systmms/envmanage/internal/config"
)

// NewCompletionCommand creates the command that prints shell completion scripts
func NewCompletionCommand(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "completion [bash|zsh|fish|powershell]",
		Short: "Generate shell completion scripts",
		Long: `Generate a shell completion script for envmanage.

Completions cover the subcommands and their flags, including the global
--product, --env, --profile and --format flags.

Bash (requires the bash-completion package):
  # current shell
  $ source <(envmanage completion bash)

  # every new shell, for the current user
  $ mkdir -p ~/.local/share/bash-completion/completions
  $ envmanage completion bash > ~/.local/share/bash-completion/completions/envmanage

  # every new shell, system wide
  $ envmanage completion bash | sudo tee /etc/bash_completion.d/envmanage > /dev/null

Zsh:
  $ mkdir -p ~/.zsh/completions
  $ envmanage completion zsh > ~/.zsh/completions/_envmanage

  # then add to ~/.zshrc, before compinit runs:
  fpath=(~/.zsh/completions $fpath)
  autoload -U compinit && compinit

Fish:
  $ envmanage completion fish > ~/.config/fish/completions/envmanage.fish

PowerShell:
  PS> envmanage completion powershell | Out-String | Invoke-Expression

  # to load on every start, add the line above to $PROFILE
`,
		DisableFlagsInUseLine: true,
		ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
		Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			cfg.Logger.Debug("Generating %s completion", args[0])

			switch args[0] {
			case "bash":
				return cmd.Root().GenBashCompletionV2(out, true)
			case "zsh":
				return cmd.Root().GenZshCompletion(out)
			case "fish":
				return cmd.Root().GenFishCompletion(out, true)
			case "powershell":
				return cmd.Root().GenPowerShellCompletionWithDesc(out)
			}
			return nil
		},
	}

	return cmd
}
