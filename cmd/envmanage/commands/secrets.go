package commands

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/systmms/envmanage/internal/awsenv"
	"github.com/systmms/envmanage/internal/config"
	dserrors "github.com/systmms/envmanage/internal/errors"
	"github.com/systmms/envmanage/internal/logging"
)

func NewListSecretsCommand(cfg *config.Config, options *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "list-secrets",
		Short: "Show a list of all secrets for an environment",
		Long: `List every secret stored under /<product>/<env>/ with its type.

Values are not printed in text mode. With --format json or yaml the full
records, values included, are written.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClient(cmd.Context(), cfg, options)
			if err != nil {
				return err
			}

			secrets, err := client.ListSecrets(cmd.Context())
			if !tolerate(cfg, err) {
				return err
			}

			printer := newPrinter(cmd, cfg)
			printer.Banner(client.Scope())
			return printer.Secrets(secrets)
		},
	}
}

func NewShowSecretCommand(cfg *config.Config, options *Options) *cobra.Command {
	var name string

	cmd := &cobra.Command{
		Use:   "show-secret",
		Short: "Display a secret's value",
		Example: `  envmanage -p shop -e dev show-secret -n db_password
  envmanage show-secret -n db_password --format json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClient(cmd.Context(), cfg, options)
			if err != nil {
				return err
			}

			secret, err := client.GetSecret(cmd.Context(), name)
			if errors.Is(err, awsenv.ErrSecretNotFound) {
				return dserrors.UserError{
					Message:    fmt.Sprintf("Secret '%s' not found in %s", name, client.Scope()),
					Suggestion: "Run 'envmanage list-secrets' to see the available secrets",
					Err:        err,
				}
			}
			if err != nil {
				return err
			}

			printer := newPrinter(cmd, cfg)
			printer.Banner(client.Scope())
			return printer.Secret(secret)
		},
	}

	cmd.Flags().StringVarP(&name, "name", "n", "", "The name of the secret to display (required)")
	_ = cmd.MarkFlagRequired("name")

	return cmd
}

func NewSetSecretCommand(cfg *config.Config, options *Options) *cobra.Command {
	var (
		name      string
		value     string
		encrypt   bool
		noEncrypt bool
	)

	cmd := &cobra.Command{
		Use:   "set-secret",
		Short: "Set a secret's value",
		Long: `Create or overwrite a secret under /<product>/<env>/.

Secrets are stored encrypted (SecureString) unless --no-encrypt is given.
Overwriting also changes the type to the one requested.`,
		Example: `  envmanage set-secret -n db_password -v s3cr3t
  envmanage set-secret -n log_level -v debug --no-encrypt`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if noEncrypt {
				encrypt = false
			}

			client, err := newClient(cmd.Context(), cfg, options)
			if err != nil {
				return err
			}

			if err := client.SetSecret(cmd.Context(), name, value, encrypt); err != nil {
				return redactValue(err, value)
			}

			kind := awsenv.KindPlain
			if encrypt {
				kind = awsenv.KindEncrypted
			}
			cfg.Logger.Info("Set %s (%s)", client.Scope().FullName(name), kind)
			cfg.Logger.Debug("Value: %v", logging.Secret(value))
			return nil
		},
	}

	cmd.Flags().StringVarP(&name, "name", "n", "", "The name of the secret to set (required)")
	cmd.Flags().StringVarP(&value, "value", "v", "", "The value to set the secret to (required)")
	cmd.Flags().BoolVar(&encrypt, "encrypt", true, "Store the secret encrypted")
	cmd.Flags().BoolVar(&noEncrypt, "no-encrypt", false, "Store the secret as plain text")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("value")
	cmd.MarkFlagsMutuallyExclusive("encrypt", "no-encrypt")

	return cmd
}

func NewDeleteSecretCommand(cfg *config.Config, options *Options) *cobra.Command {
	var name string

	cmd := &cobra.Command{
		Use:   "delete-secret",
		Short: "Delete a secret",
		Long: `Delete a secret from /<product>/<env>/. There is no confirmation prompt.

Deleting a secret that does not exist succeeds.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClient(cmd.Context(), cfg, options)
			if err != nil {
				return err
			}

			if err := client.DeleteSecret(cmd.Context(), name); err != nil {
				return err
			}

			cfg.Logger.Info("Deleted %s", client.Scope().FullName(name))
			return nil
		},
	}

	cmd.Flags().StringVarP(&name, "name", "n", "", "The name of the secret to delete (required)")
	_ = cmd.MarkFlagRequired("name")

	return cmd
}

// redactValue keeps value out of error messages. Errors that do not
// mention it are returned unchanged.
func redactValue(err error, value string) error {
	msg := err.Error()
	redacted := logging.Redact(msg, []string{value})
	if redacted == msg {
		return err
	}
	return errors.New(redacted)
}
