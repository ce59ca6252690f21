// Package awsenv is the resource client for one product/environment scope.
//
// It wraps the SSM Parameter Store, EC2 Auto Scaling and EC2 APIs behind a
// small synchronous surface. Pagination and scope membership filtering happen
// here so that the command layer only ever sees complete, scoped results.
package awsenv

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials/stscreds"
	"github.com/aws/aws-sdk-go-v2/service/autoscaling"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	dserrors "github.com/systmms/envmanage/internal/errors"
	"github.com/systmms/envmanage/internal/logging"
	"github.com/systmms/envmanage/internal/scope"
)

// SSMAPI defines the Parameter Store operations used by the client.
// This allows for mocking in tests
type SSMAPI interface {
	GetParameter(ctx context.Context, params *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
	GetParametersByPath(ctx context.Context, params *ssm.GetParametersByPathInput, optFns ...func(*ssm.Options)) (*ssm.GetParametersByPathOutput, error)
	PutParameter(ctx context.Context, params *ssm.PutParameterInput, optFns ...func(*ssm.Options)) (*ssm.PutParameterOutput, error)
	DeleteParameter(ctx context.Context, params *ssm.DeleteParameterInput, optFns ...func(*ssm.Options)) (*ssm.DeleteParameterOutput, error)
}

// AutoScalingAPI defines the EC2 Auto Scaling operations used by the client.
type AutoScalingAPI interface {
	DescribeAutoScalingGroups(ctx context.Context, params *autoscaling.DescribeAutoScalingGroupsInput, optFns ...func(*autoscaling.Options)) (*autoscaling.DescribeAutoScalingGroupsOutput, error)
	UpdateAutoScalingGroup(ctx context.Context, params *autoscaling.UpdateAutoScalingGroupInput, optFns ...func(*autoscaling.Options)) (*autoscaling.UpdateAutoScalingGroupOutput, error)
}

// EC2API defines the EC2 inventory operations used by the client.
type EC2API interface {
	DescribeInstances(ctx context.Context, params *ec2.DescribeInstancesInput, optFns ...func(*ec2.Options)) (*ec2.DescribeInstancesOutput, error)
}

// Settings holds the AWS connection settings
type Settings struct {
	Region  string
	Profile string
	// RoleARN, when set, is assumed through STS before any call is made.
	RoleARN string
}

// Client is the scoped resource client
type Client struct {
	scope       scope.Scope
	logger      *logging.Logger
	ssm         SSMAPI
	autoscaling AutoScalingAPI
	ec2         EC2API
}

// Option is a functional option for configuring the client
type Option func(*Client)

// WithSSMClient sets a custom SSM client (for testing)
func WithSSMClient(client SSMAPI) Option {
	return func(c *Client) {
		c.ssm = client
	}
}

// WithAutoScalingClient sets a custom Auto Scaling client (for testing)
func WithAutoScalingClient(client AutoScalingAPI) Option {
	return func(c *Client) {
		c.autoscaling = client
	}
}

// WithEC2Client sets a custom EC2 client (for testing)
func WithEC2Client(client EC2API) Option {
	return func(c *Client) {
		c.ec2 = client
	}
}

// WithLogger sets the logger used for debug output
func WithLogger(logger *logging.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// New creates a client bound to s. AWS service clients that were not
// injected through options are built from the shared AWS configuration.
func New(ctx context.Context, s scope.Scope, settings Settings, opts ...Option) (*Client, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}

	c := &Client{
		scope: s,
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.logger == nil {
		c.logger = logging.New(false, false)
	}

	if c.ssm == nil || c.autoscaling == nil || c.ec2 == nil {
		cfg, err := loadAWSConfig(ctx, settings)
		if err != nil {
			return nil, err
		}
		if c.ssm == nil {
			c.ssm = ssm.NewFromConfig(cfg)
		}
		if c.autoscaling == nil {
			c.autoscaling = autoscaling.NewFromConfig(cfg)
		}
		if c.ec2 == nil {
			c.ec2 = ec2.NewFromConfig(cfg)
		}
	}

	return c, nil
}

// Scope returns the scope the client operates in
func (c *Client) Scope() scope.Scope {
	return c.scope
}

// loadAWSConfig loads the shared AWS configuration for the given settings
func loadAWSConfig(ctx context.Context, settings Settings) (aws.Config, error) {
	var configOpts []func(*awsconfig.LoadOptions) error

	if settings.Region != "" {
		configOpts = append(configOpts, awsconfig.WithRegion(settings.Region))
	}

	if settings.Profile != "" {
		configOpts = append(configOpts, awsconfig.WithSharedConfigProfile(settings.Profile))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, configOpts...)
	if err != nil {
		return aws.Config{}, dserrors.UserError{
			Message:    "Failed to load AWS configuration",
			Details:    err.Error(),
			Suggestion: "Check --profile/$AWS_PROFILE and --region/$AWS_REGION",
			Err:        err,
		}
	}

	if settings.RoleARN != "" {
		provider := stscreds.NewAssumeRoleProvider(sts.NewFromConfig(cfg), settings.RoleARN,
			func(o *stscreds.AssumeRoleOptions) {
				o.RoleSessionName = "envmanage"
			})
		cfg.Credentials = aws.NewCredentialsCache(provider)
	}

	return cfg, nil
}
