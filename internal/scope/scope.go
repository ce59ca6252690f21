// Package scope implements the product/environment namespace that every
// envmanage command operates in.
//
// Secrets live under the parameter store path /{product}/{environment}/ and
// cloud resources belong to a scope when they carry both an Environment and a
// Product tag matching it.
package scope

import (
	"fmt"
	"strings"

	dserrors "github.com/systmms/envmanage/internal/errors"
)

// Tag keys used to decide scope membership.
const (
	EnvironmentTag = "Environment"
	ProductTag     = "Product"
)

// Scope is the (product, environment) pair resolved once at startup.
type Scope struct {
	Product     string `json:"product" yaml:"product"`
	Environment string `json:"environment" yaml:"environment"`
}

// New returns the scope for product and environment.
func New(product, environment string) Scope {
	return Scope{Product: product, Environment: environment}
}

// Validate reports a user error when either half of the scope is missing or
// is not a single path segment.
func (s Scope) Validate() error {
	if err := validatePart("Product", s.Product, "--product", "$PRODUCT"); err != nil {
		return err
	}
	return validatePart("Environment", s.Environment, "--env", "$ENV")
}

func validatePart(label, value, flag, envVar string) error {
	if value == "" {
		return dserrors.UserError{
			Message:    label + " is required",
			Suggestion: "Use " + flag + " <name> or set " + envVar,
		}
	}
	if strings.Contains(value, "/") || strings.TrimSpace(value) != value {
		return dserrors.UserError{
			Message:    fmt.Sprintf("%s '%s' is not a valid name", label, value),
			Details:    "Names must not contain '/' or leading or trailing whitespace",
			Suggestion: "Use " + flag + " <name> or set " + envVar + " to a single path segment such as 'dev'",
		}
	}
	return nil
}

// Path returns the parameter store prefix for the scope, e.g. "/shop/dev/".
func (s Scope) Path() string {
	return "/" + s.Product + "/" + s.Environment + "/"
}

// FullName maps a scope-relative secret name to its namespaced path.
func (s Scope) FullName(name string) string {
	return s.Path() + name
}

// RelativeName strips the scope prefix from a namespaced path. Names outside
// the scope are returned unchanged.
func (s Scope) RelativeName(fullName string) string {
	return strings.TrimPrefix(fullName, s.Path())
}

// Owns reports whether a resource with the given tags belongs to the scope.
// Both the Environment and the Product tag must match exactly.
func (s Scope) Owns(tags map[string]string) bool {
	env, hasEnv := tags[EnvironmentTag]
	product, hasProduct := tags[ProductTag]
	return hasEnv && hasProduct && env == s.Environment && product == s.Product
}

// String renders the scope as product/environment.
func (s Scope) String() string {
	return s.Product + "/" + s.Environment
}
