package scope_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	dserrors "github.com/systmms/envmanage/internal/errors"
	"github.com/systmms/envmanage/internal/scope"
)

func TestPathConvention(t *testing.T) {
	t.Parallel()

	s := scope.New("shop", "dev")
	assert.Equal(t, "/shop/dev/", s.Path())
	assert.Equal(t, "/shop/dev/db_password", s.FullName("db_password"))
	assert.Equal(t, "db_password", s.RelativeName("/shop/dev/db_password"))
	assert.Equal(t, "shop/dev", s.String())
}

func TestRelativeNameRoundTrip(t *testing.T) {
	t.Parallel()

	scopes := []scope.Scope{
		scope.New("shop", "dev"),
		scope.New("billing", "production"),
		scope.New("a", "b"),
	}
	names := []string{"db_password", "API_KEY", "x", "", "with.dots-and_dashes", "spaces are fine"}

	for _, s := range scopes {
		for _, name := range names {
			assert.Equal(t, name, s.RelativeName(s.FullName(name)), "scope %s name %q", s, name)
		}
	}
}

func TestRelativeNameOutsideScope(t *testing.T) {
	t.Parallel()

	s := scope.New("shop", "dev")
	assert.Equal(t, "/shop/prod/db", s.RelativeName("/shop/prod/db"))
	assert.Equal(t, "plain", s.RelativeName("plain"))
}

func TestOwns(t *testing.T) {
	t.Parallel()

	s := scope.New("shop", "dev")
	tests := []struct {
		name string
		tags map[string]string
		want bool
	}{
		{name: "both tags match", tags: map[string]string{"Environment": "dev", "Product": "shop", "Name": "web"}, want: true},
		{name: "only environment matches", tags: map[string]string{"Environment": "dev"}, want: false},
		{name: "only product matches", tags: map[string]string{"Product": "shop"}, want: false},
		{name: "product differs", tags: map[string]string{"Environment": "dev", "Product": "billing"}, want: false},
		{name: "different environment", tags: map[string]string{"Environment": "prod", "Product": "shop"}, want: false},
		{name: "no tags", tags: nil, want: false},
		{name: "case sensitive keys", tags: map[string]string{"environment": "dev", "product": "shop"}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, s.Owns(tt.tags))
		})
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	require.NoError(t, scope.New("shop", "dev").Validate())

	err := scope.New("", "dev").Validate()
	var ue dserrors.UserError
	require.ErrorAs(t, err, &ue)
	assert.Contains(t, ue.Suggestion, "$PRODUCT")

	err = scope.New("shop", "").Validate()
	require.ErrorAs(t, err, &ue)
	assert.Contains(t, ue.Suggestion, "$ENV")
}

func TestValidateRejectsMultiSegmentNames(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		scope      scope.Scope
		wantEnvVar string
	}{
		{name: "product reaching into another scope", scope: scope.New("shop/dev", "foo"), wantEnvVar: "$PRODUCT"},
		{name: "environment with slash", scope: scope.New("shop", "dev/secret"), wantEnvVar: "$ENV"},
		{name: "leading slash", scope: scope.New("/shop", "dev"), wantEnvVar: "$PRODUCT"},
		{name: "surrounding whitespace", scope: scope.New("shop", " dev"), wantEnvVar: "$ENV"},
		{name: "whitespace only", scope: scope.New("  ", "dev"), wantEnvVar: "$PRODUCT"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.scope.Validate()

			var ue dserrors.UserError
			require.ErrorAs(t, err, &ue)
			assert.Contains(t, ue.Message, "is not a valid name")
			assert.Contains(t, ue.Suggestion, tt.wantEnvVar)
		})
	}
}
