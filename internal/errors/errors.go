package errors

import (
	"errors"
	"fmt"
	"strings"

	"github.com/aws/smithy-go"
)

// UserError represents an error that should be shown to the user with helpful context
type UserError struct {
	Message    string
	Suggestion string
	Details    string
	Err        error
}

func (e UserError) Error() string {
	var parts []string

	if e.Message != "" {
		parts = append(parts, e.Message)
	} else if e.Err != nil {
		parts = append(parts, e.Err.Error())
	}

	if e.Details != "" {
		parts = append(parts, "\n  Details: "+e.Details)
	}

	if e.Suggestion != "" {
		parts = append(parts, "\n  💡 Try: "+e.Suggestion)
	}

	return strings.Join(parts, "")
}

func (e UserError) Unwrap() error {
	return e.Err
}

// ConfigError represents a configuration error with helpful context
type ConfigError struct {
	Field      string
	Value      interface{}
	Message    string
	Suggestion string
}

func (e ConfigError) Error() string {
	msg := "Configuration error"
	if e.Field != "" {
		msg += fmt.Sprintf(" in field '%s'", e.Field)
	}
	if e.Value != nil {
		msg += fmt.Sprintf(" (value: %v)", e.Value)
	}
	msg += ": " + e.Message

	if e.Suggestion != "" {
		msg += "\n  💡 " + e.Suggestion
	}

	return msg
}

// CommandError represents a command execution error
type CommandError struct {
	Command    string
	ExitCode   int
	Message    string
	Suggestion string
}

func (e CommandError) Error() string {
	msg := fmt.Sprintf("Command '%s' failed", e.Command)
	if e.ExitCode != 0 {
		msg += fmt.Sprintf(" (exit code: %d)", e.ExitCode)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}

	if e.Suggestion != "" {
		msg += "\n  💡 " + e.Suggestion
	}

	return msg
}

// ServiceError is a failure reported by an AWS service or the cluster,
// as opposed to a mistake in how the tool was invoked.
type ServiceError struct {
	Service    string
	Operation  string
	Suggestion string
	Err        error
}

func (e ServiceError) Error() string {
	msg := fmt.Sprintf("%s error during %s: %v", e.Service, e.Operation, e.Err)
	if e.Suggestion != "" {
		msg += "\n  💡 Try: " + e.Suggestion
	}
	return msg
}

func (e ServiceError) Unwrap() error {
	return e.Err
}

// ProviderError enhances AWS service errors with context
func ProviderError(service string, operation string, err error) error {
	return ServiceError{
		Service:    service,
		Operation:  operation,
		Suggestion: getProviderSuggestion(service, err),
		Err:        err,
	}
}

// IsServiceError reports whether err is, or wraps, a ServiceError.
func IsServiceError(err error) bool {
	var se ServiceError
	return errors.As(err, &se)
}

// ErrorCode returns the AWS API error code carried by err, or "" when err
// did not come from an AWS API call.
func ErrorCode(err error) string {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorCode()
	}
	return ""
}

// getProviderSuggestion returns helpful suggestions based on service and error
func getProviderSuggestion(service string, err error) string {
	code := ErrorCode(err)
	errStr := err.Error()

	switch {
	case code == "AccessDenied", code == "AccessDeniedException", code == "UnauthorizedOperation":
		switch service {
		case "ssm":
			return "Check IAM permissions: ssm:GetParameter, ssm:GetParametersByPath, ssm:PutParameter, ssm:DeleteParameter and kms:Decrypt"
		case "autoscaling":
			return "Check IAM permissions: autoscaling:DescribeAutoScalingGroups and autoscaling:UpdateAutoScalingGroup"
		case "ec2":
			return "Check IAM permissions: ec2:DescribeInstances"
		}
		return "Check the IAM permissions of the active AWS profile"
	case code == "ExpiredToken", code == "ExpiredTokenException", code == "InvalidClientTokenId",
		code == "UnrecognizedClientException":
		return "Refresh your AWS credentials (e.g. 'aws sso login') or set AWS_PROFILE"
	case code == "ThrottlingException", code == "Throttling", code == "RequestLimitExceeded":
		return "AWS rate limit exceeded. Wait a moment and try again"
	case code == "InvalidKeyId":
		return "The KMS key for this SecureString parameter may not exist or you lack kms:Decrypt permission"
	case code == "ValidationError" && service == "autoscaling":
		return "Check the group name and that min <= desired <= max"
	}

	if strings.Contains(errStr, "failed to retrieve credentials") || strings.Contains(errStr, "no EC2 IMDS role found") {
		return "Configure AWS credentials: 'aws configure' or set AWS_PROFILE"
	}
	if strings.Contains(errStr, "region") {
		return "Set the AWS region with --region or $AWS_REGION"
	}
	if strings.Contains(errStr, "timeout") {
		return "The operation timed out. Check your network connection and try again"
	}
	if strings.Contains(errStr, "connection refused") || strings.Contains(errStr, "no such host") {
		return "Unable to connect. Check your network and AWS endpoint configuration"
	}

	return ""
}

// WrapCommandNotFound wraps command not found errors with helpful suggestions
func WrapCommandNotFound(command string, err error) error {
	suggestions := map[string]string{
		"kubectl": "Install kubectl from https://kubernetes.io/docs/tasks/tools/",
		"aws":     "Install the AWS CLI from https://aws.amazon.com/cli/",
	}

	suggestion := suggestions[command]
	if suggestion == "" {
		suggestion = fmt.Sprintf("Make sure '%s' is installed and in your PATH", command)
	}

	return CommandError{
		Command:    command,
		Message:    "command not found",
		Suggestion: suggestion,
	}
}
