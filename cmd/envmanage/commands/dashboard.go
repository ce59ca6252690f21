package commands

import (
	"github.com/spf13/cobra"
	"github.com/systmms/envmanage/internal/config"
	"github.com/systmms/envmanage/internal/dashboard"
)

func NewShowDashboardCommand(cfg *config.Config, options *Options) *cobra.Command {
	var (
		tokenSource string
		port        int
	)

	cmd := &cobra.Command{
		Use:   "show-dashboard",
		Short: "Show the Kubernetes dashboard for this environment",
		Long: `Open the Kubernetes dashboard of the environment's cluster.

Requires --kubeconfig or $KUBECONFIG pointing at the environment's
kubeconfig file. The eks-admin service account token is printed for the
dashboard login page, the dashboard is opened in the browser and
'kubectl proxy' runs in the foreground until interrupted with Ctrl-C.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			source, err := config.ParseTokenSource(tokenSource)
			if err != nil {
				return err
			}

			opts := []dashboard.Option{
				dashboard.WithLogger(cfg.Logger),
				dashboard.WithPort(port),
				dashboard.WithOutput(cmd.OutOrStdout(), cmd.ErrOrStderr()),
			}
			if source == config.TokenSourceAPI {
				opts = append(opts, dashboard.WithTokenFetcher(dashboard.NewAPITokenFetcher(nil)))
			}
			opts = append(opts, options.TunnelOptions...)

			tunnel, err := dashboard.New(cfg.Kubeconfig, opts...)
			if err != nil {
				return err
			}

			cfg.Logger.Debug("Opening dashboard with kubeconfig %s", cfg.Kubeconfig)
			return tunnel.Open(cmd.Context())
		},
	}

	cmd.Flags().StringVar(&tokenSource, "token-source", string(config.TokenSourceKubectl), "How to read the dashboard token: kubectl or api")
	cmd.Flags().IntVar(&port, "port", dashboard.DefaultPort, "Local port for kubectl proxy")

	return cmd
}
