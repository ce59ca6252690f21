package commands

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/systmms/envmanage/internal/awsenv"
	"github.com/systmms/envmanage/internal/config"
)

func NewScaleUpCommand(cfg *config.Config, options *Options) *cobra.Command {
	return newScaleCommand(cfg, options, "scale-up", "Scale an environment up", awsenv.Capacity{Min: 1, Max: 1, Desired: 1})
}

func NewScaleDownCommand(cfg *config.Config, options *Options) *cobra.Command {
	return newScaleCommand(cfg, options, "scale-down", "Scale an environment down", awsenv.Capacity{})
}

// newScaleCommand builds scale-up and scale-down, which differ only in
// their default sizes.
func newScaleCommand(cfg *config.Config, options *Options, use, short string, defaults awsenv.Capacity) *cobra.Command {
	var (
		group    string
		capacity awsenv.Capacity
		force    bool
	)

	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Long: fmt.Sprintf(`%s.

Sets the min, max and desired size of an Auto Scaling group in one update.
The group must carry Environment and Product tags matching the current
environment; --force skips that check.

Defaults: min=%d max=%d desired=%d`, short, defaults.Min, defaults.Max, defaults.Desired),
		Example: fmt.Sprintf(`  envmanage %s -a shop-dev-web
  envmanage %s -a shop-dev-web --min 1 --max 4 -d 2`, use, use),
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClient(cmd.Context(), cfg, options)
			if err != nil {
				return err
			}

			if err := client.ScaleGroup(cmd.Context(), group, capacity, awsenv.ScaleOptions{SkipScopeCheck: force}); err != nil {
				return err
			}

			cfg.Logger.Info("Scaled %s to min=%d max=%d desired=%d", group, capacity.Min, capacity.Max, capacity.Desired)
			return nil
		},
	}

	cmd.Flags().StringVarP(&group, "asg", "a", "", "The name of the autoscaling group to scale (required)")
	cmd.Flags().Int32Var(&capacity.Min, "min", defaults.Min, "The min value for the autoscaling group")
	cmd.Flags().Int32Var(&capacity.Max, "max", defaults.Max, "The max value for the autoscaling group")
	cmd.Flags().Int32VarP(&capacity.Desired, "desired", "d", defaults.Desired, "The desired value for the autoscaling group")
	cmd.Flags().BoolVar(&force, "force", false, "Scale the group even if it is not tagged for this environment")
	_ = cmd.MarkFlagRequired("asg")

	return cmd
}
