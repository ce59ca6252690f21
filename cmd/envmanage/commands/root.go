package commands

import (
	"context"

	"github.com/spf13/cobra"
	"github.com/systmms/envmanage/internal/awsenv"
	"github.com/systmms/envmanage/internal/config"
	"github.com/systmms/envmanage/internal/dashboard"
	dserrors "github.com/systmms/envmanage/internal/errors"
	"github.com/systmms/envmanage/internal/logging"
	"github.com/systmms/envmanage/internal/output"
)

// Options carries the collaborators commands build on top of the resolved
// config. The zero value uses the real AWS clients and kubectl.
type Options struct {
	ClientOptions []awsenv.Option
	TunnelOptions []dashboard.Option
}

// Option is a functional option for configuring the command tree
type Option func(*Options)

// WithClientOptions appends options applied to every AWS resource client
func WithClientOptions(opts ...awsenv.Option) Option {
	return func(o *Options) {
		o.ClientOptions = append(o.ClientOptions, opts...)
	}
}

// WithTunnelOptions appends options applied to the dashboard tunnel
func WithTunnelOptions(opts ...dashboard.Option) Option {
	return func(o *Options) {
		o.TunnelOptions = append(o.TunnelOptions, opts...)
	}
}

// NewRootCommand builds the envmanage command tree
func NewRootCommand(version string, opts ...Option) *cobra.Command {
	cfg := &config.Config{}
	options := &Options{}
	for _, opt := range opts {
		opt(options)
	}

	rootCmd := &cobra.Command{
		Use:   "envmanage",
		Short: "Manage the secrets and infrastructure of a product environment",
		Long: `envmanage works on one product/environment at a time.

Secrets live in SSM Parameter Store under /<product>/<env>/. Instances and
Auto Scaling groups belong to the environment when their Environment and
Product tags match.

The product and environment default to $PRODUCT and $ENV.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			loaded, err := config.Load(cmd.Flags())
			if err != nil {
				return err
			}
			loaded.Logger = logging.NewWithWriter(cmd.ErrOrStderr(), loaded.Debug, loaded.NoColor)
			*cfg = *loaded
			return nil
		},
	}

	config.RegisterFlags(rootCmd.PersistentFlags())

	rootCmd.AddCommand(
		NewListSecretsCommand(cfg, options),
		NewShowSecretCommand(cfg, options),
		NewSetSecretCommand(cfg, options),
		NewDeleteSecretCommand(cfg, options),
		NewShowDashboardCommand(cfg, options),
		NewScaleUpCommand(cfg, options),
		NewScaleDownCommand(cfg, options),
		NewShowEnvCommand(cfg, options),
		NewCompletionCommand(cfg),
	)

	return rootCmd
}

// newClient builds the resource client for the configured scope
func newClient(ctx context.Context, cfg *config.Config, options *Options) (*awsenv.Client, error) {
	opts := append([]awsenv.Option{awsenv.WithLogger(cfg.Logger)}, options.ClientOptions...)
	return awsenv.New(ctx, cfg.Scope, awsenv.Settings{
		Region:  cfg.Region,
		Profile: cfg.Profile,
		RoleARN: cfg.RoleARN,
	}, opts...)
}

func newPrinter(cmd *cobra.Command, cfg *config.Config) *output.Printer {
	return output.New(cmd.OutOrStdout(), cfg.Format, cfg.NoColor)
}

// tolerate reports whether err can be logged and the command continued.
// Only service errors qualify, and only with --best-effort.
func tolerate(cfg *config.Config, err error) bool {
	if err == nil {
		return true
	}
	if !cfg.BestEffort || !dserrors.IsServiceError(err) {
		return false
	}
	cfg.Logger.Warn("%v", err)
	return true
}
