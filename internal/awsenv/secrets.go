package awsenv

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/aws/aws-sdk-go-v2/service/ssm/types"
	dserrors "github.com/systmms/envmanage/internal/errors"
	"github.com/systmms/envmanage/internal/logging"
)

// ErrSecretNotFound is returned by GetSecret when the parameter store reports
// that the parameter does not exist.
var ErrSecretNotFound = errors.New("secret not found")

// Kind is the parameter store type a secret is stored as. Types other than
// the two set-secret writes, such as StringList, are reported unchanged.
type Kind string

const (
	KindPlain     Kind = Kind(types.ParameterTypeString)
	KindEncrypted Kind = Kind(types.ParameterTypeSecureString)
)

// Secret is a parameter store entry inside the scope
type Secret struct {
	Name    string `json:"name" yaml:"name"`
	Kind    Kind   `json:"type" yaml:"type"`
	Value   string `json:"value" yaml:"value"`
	Version int64  `json:"version" yaml:"version"`
	ARN     string `json:"arn" yaml:"arn"`
}

// Encrypted reports whether the secret is stored as a SecureString
func (s Secret) Encrypted() bool {
	return s.Kind == KindEncrypted
}

// GetSecret reads a single secret with decryption. A parameter that does not
// exist yields ErrSecretNotFound; any other failure is a service error.
func (c *Client) GetSecret(ctx context.Context, name string) (Secret, error) {
	fullName := c.scope.FullName(name)
	c.logger.Debug("Fetching parameter from SSM: %s", fullName)

	result, err := c.ssm.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           aws.String(fullName),
		WithDecryption: aws.Bool(true),
	})
	if err != nil {
		if isParameterNotFoundError(err) {
			return Secret{}, fmt.Errorf("%w: %s", ErrSecretNotFound, fullName)
		}
		return Secret{}, dserrors.ProviderError("ssm", "GetParameter", err)
	}

	if result.Parameter == nil {
		return Secret{}, fmt.Errorf("%w: %s", ErrSecretNotFound, fullName)
	}

	return c.toSecret(*result.Parameter), nil
}

// ListSecrets returns every secret under the scope path, following the
// pagination token until the store reports no more pages. When a page fails
// the secrets gathered so far are returned together with the error.
func (c *Client) ListSecrets(ctx context.Context) ([]Secret, error) {
	path := c.scope.Path()
	c.logger.Debug("Listing parameters under %s", path)

	paginator := ssm.NewGetParametersByPathPaginator(c.ssm, &ssm.GetParametersByPathInput{
		Path:           aws.String(path),
		Recursive:      aws.Bool(true),
		WithDecryption: aws.Bool(true),
	})

	secrets := []Secret{}
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return secrets, dserrors.ProviderError("ssm", "GetParametersByPath", err)
		}
		for _, parameter := range page.Parameters {
			secrets = append(secrets, c.toSecret(parameter))
		}
	}

	c.logger.Debug("Found %d parameters under %s", len(secrets), path)
	return secrets, nil
}

// SetSecret upserts a secret. The encrypted flag decides the stored type on
// every write, so a later write can change a secret's protection class.
func (c *Client) SetSecret(ctx context.Context, name, value string, encrypted bool) error {
	if name == "" {
		return dserrors.UserError{
			Message:    "Secret name is required",
			Suggestion: "Use --name <secret-name>",
		}
	}

	paramType := types.ParameterTypeString
	if encrypted {
		paramType = types.ParameterTypeSecureString
	}

	fullName := c.scope.FullName(name)
	c.logger.Debug("Writing %s parameter %s = %s", paramType, fullName, logging.Secret(value))

	_, err := c.ssm.PutParameter(ctx, &ssm.PutParameterInput{
		Name:      aws.String(fullName),
		Value:     aws.String(value),
		Type:      paramType,
		Overwrite: aws.Bool(true),
	})
	if err != nil {
		return dserrors.ProviderError("ssm", "PutParameter", err)
	}
	return nil
}

// DeleteSecret removes a secret. Deleting a secret that does not exist is
// not an error.
func (c *Client) DeleteSecret(ctx context.Context, name string) error {
	fullName := c.scope.FullName(name)
	c.logger.Debug("Deleting parameter %s", fullName)

	_, err := c.ssm.DeleteParameter(ctx, &ssm.DeleteParameterInput{
		Name: aws.String(fullName),
	})
	if err != nil {
		if isParameterNotFoundError(err) {
			c.logger.Debug("Parameter %s did not exist", fullName)
			return nil
		}
		return dserrors.ProviderError("ssm", "DeleteParameter", err)
	}
	return nil
}

func (c *Client) toSecret(parameter types.Parameter) Secret {
	return Secret{
		Name:    c.scope.RelativeName(aws.ToString(parameter.Name)),
		Kind:    Kind(parameter.Type),
		Value:   aws.ToString(parameter.Value),
		Version: parameter.Version,
		ARN:     aws.ToString(parameter.ARN),
	}
}

// isParameterNotFoundError checks if the error is a parameter not found error
func isParameterNotFoundError(err error) bool {
	var notFound *types.ParameterNotFound
	if errors.As(err, &notFound) {
		return true
	}
	return dserrors.ErrorCode(err) == "ParameterNotFound"
}
