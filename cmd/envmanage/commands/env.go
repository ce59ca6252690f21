package commands

import (
	"github.com/spf13/cobra"
	"github.com/systmms/envmanage/internal/config"
	"github.com/systmms/envmanage/internal/output"
)

func NewShowEnvCommand(cfg *config.Config, options *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "show-env",
		Short: "Display information on the environment's instances and autoscaling groups",
		Long: `Show the EC2 instances and Auto Scaling groups tagged with the current
Environment and Product.

Instances in every state are listed. With --format json the result is an
object with "instances" and "asgs" keys.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClient(cmd.Context(), cfg, options)
			if err != nil {
				return err
			}

			instances, err := client.ListInstances(cmd.Context())
			if !tolerate(cfg, err) {
				return err
			}

			groups, err := client.ListGroups(cmd.Context())
			if !tolerate(cfg, err) {
				return err
			}

			printer := newPrinter(cmd, cfg)
			printer.Banner(client.Scope())
			return printer.Environment(output.Environment{
				Instances: instances,
				Groups:    groups,
			})
		},
	}
}
