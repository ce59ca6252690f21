package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	dserrors "github.com/systmms/envmanage/internal/errors"
	"github.com/systmms/envmanage/internal/logging"
	"github.com/systmms/envmanage/internal/scope"
)

// Keys shared by flags, environment variables and the config file
const (
	KeyProduct    = "product"
	KeyEnv        = "env"
	KeyProfile    = "profile"
	KeyRegion     = "region"
	KeyFormat     = "format"
	KeyKubeconfig = "kubeconfig"
	KeyRoleARN    = "role-arn"
	KeyBestEffort = "best-effort"
	KeyConfig     = "config"
	KeyDebug      = "debug"
	KeyNoColor    = "no-color"
)

// envVars maps each key to the environment variable it falls back to.
var envVars = map[string]string{
	KeyProduct:    "PRODUCT",
	KeyEnv:        "ENV",
	KeyProfile:    "AWS_PROFILE",
	KeyRegion:     "AWS_REGION",
	KeyFormat:     "ENVMANAGE_FORMAT",
	KeyKubeconfig: "KUBECONFIG",
	KeyRoleARN:    "ENVMANAGE_ROLE_ARN",
	KeyBestEffort: "ENVMANAGE_BEST_EFFORT",
	KeyConfig:     "ENVMANAGE_CONFIG",
}

// Format selects how command results are written
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// ParseFormat validates a --format value
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return FormatText, nil
	case FormatText, FormatJSON, FormatYAML:
		return f, nil
	}
	return "", dserrors.ConfigError{
		Field:      KeyFormat,
		Value:      s,
		Message:    "unsupported output format",
		Suggestion: "Use one of: text, json, yaml",
	}
}

// TokenSource selects how the dashboard token is read from the cluster
type TokenSource string

const (
	TokenSourceKubectl TokenSource = "kubectl"
	TokenSourceAPI     TokenSource = "api"
)

// ParseTokenSource validates a --token-source value
func ParseTokenSource(s string) (TokenSource, error) {
	switch ts := TokenSource(strings.ToLower(strings.TrimSpace(s))); ts {
	case "":
		return TokenSourceKubectl, nil
	case TokenSourceKubectl, TokenSourceAPI:
		return ts, nil
	}
	return "", dserrors.ConfigError{
		Field:      "token-source",
		Value:      s,
		Message:    "unsupported token source",
		Suggestion: "Use one of: kubectl, api",
	}
}

// Config holds the runtime configuration, resolved once per invocation
type Config struct {
	Scope      scope.Scope
	Profile    string
	Region     string
	RoleARN    string
	Kubeconfig string
	Format     Format
	BestEffort bool
	Debug      bool
	NoColor    bool

	// Path is the config file that was read, empty when none was
	Path   string
	Logger *logging.Logger
}

// DefaultPath returns ~/.config/envmanage/config.yaml, or "" when the home
// directory cannot be determined.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "envmanage", "config.yaml")
}

// RegisterFlags adds the global flags to fs. Values left unset fall back to
// the environment variables listed in the help text.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.StringP(KeyProduct, "p", "", "Product name ($PRODUCT)")
	fs.StringP(KeyEnv, "e", "", "Environment name ($ENV)")
	fs.StringP(KeyProfile, "b", "", "AWS profile ($AWS_PROFILE)")
	fs.StringP(KeyRegion, "r", "", "AWS region ($AWS_REGION)")
	fs.StringP(KeyFormat, "f", string(FormatText), "Output format: text, json, yaml ($ENVMANAGE_FORMAT)")
	fs.String(KeyKubeconfig, "", "Kubeconfig for the environment's cluster ($KUBECONFIG)")
	fs.String(KeyRoleARN, "", "IAM role to assume for AWS calls ($ENVMANAGE_ROLE_ARN)")
	fs.Bool(KeyBestEffort, false, "Report AWS errors as warnings and print partial results ($ENVMANAGE_BEST_EFFORT)")
	fs.String(KeyConfig, "", "Config file (default ~/.config/envmanage/config.yaml) ($ENVMANAGE_CONFIG)")
	fs.Bool(KeyDebug, false, "Enable debug logging")
	fs.Bool(KeyNoColor, false, "Disable colored output")
}

// Load resolves the configuration from flags, then environment variables,
// then the config file. The scope is not validated here; commands that need
// it call Scope.Validate so that scope-free commands still run.
func Load(flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	v.SetDefault(KeyFormat, string(FormatText))

	for key, env := range envVars {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", env, err)
		}
	}

	if flags != nil {
		var bindErr error
		flags.VisitAll(func(f *pflag.Flag) {
			if _, known := envVars[f.Name]; known || f.Name == KeyDebug || f.Name == KeyNoColor {
				if err := v.BindPFlag(f.Name, f); err != nil && bindErr == nil {
					bindErr = err
				}
			}
		})
		if bindErr != nil {
			return nil, fmt.Errorf("failed to bind flags: %w", bindErr)
		}
	}

	path, err := readConfigFile(v)
	if err != nil {
		return nil, err
	}

	format, err := ParseFormat(v.GetString(KeyFormat))
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Scope:      scope.New(v.GetString(KeyProduct), v.GetString(KeyEnv)),
		Profile:    v.GetString(KeyProfile),
		Region:     v.GetString(KeyRegion),
		RoleARN:    v.GetString(KeyRoleARN),
		Kubeconfig: expandHome(v.GetString(KeyKubeconfig)),
		Format:     format,
		BestEffort: v.GetBool(KeyBestEffort),
		Debug:      v.GetBool(KeyDebug),
		NoColor:    v.GetBool(KeyNoColor),
		Path:       path,
	}
	cfg.Logger = logging.New(cfg.Debug, cfg.NoColor)

	if path != "" {
		cfg.Logger.Debug("Loaded config file %s", path)
	}
	return cfg, nil
}

// readConfigFile reads the explicitly requested config file, or the default
// one if it exists. An explicit path that cannot be read is an error.
func readConfigFile(v *viper.Viper) (string, error) {
	explicit := v.GetString(KeyConfig)
	path := explicit
	if path == "" {
		path = DefaultPath()
		if path == "" {
			return "", nil
		}
		if _, err := os.Stat(path); err != nil {
			return "", nil
		}
	}
	path = expandHome(path)

	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) || os.IsNotExist(err) || errors.Is(err, os.ErrNotExist) {
			return "", dserrors.ConfigError{
				Field:      KeyConfig,
				Value:      explicit,
				Message:    "configuration file not found",
				Suggestion: "Check the --config path or unset $ENVMANAGE_CONFIG",
			}
		}
		return "", dserrors.ConfigError{
			Field:      KeyConfig,
			Value:      path,
			Message:    fmt.Sprintf("invalid YAML syntax: %v", err),
			Suggestion: "Check the file for indentation or quoting mistakes",
		}
	}
	return path, nil
}

func expandHome(path string) string {
	if !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[2:])
}
