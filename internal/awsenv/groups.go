package awsenv

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/autoscaling"
	"github.com/aws/aws-sdk-go-v2/service/autoscaling/types"
	dserrors "github.com/systmms/envmanage/internal/errors"
)

// AutoscalingGroup is an Auto Scaling group that belongs to the scope
type AutoscalingGroup struct {
	Name              string   `json:"name" yaml:"name"`
	Min               int32    `json:"min" yaml:"min"`
	Max               int32    `json:"max" yaml:"max"`
	Desired           int32    `json:"desired" yaml:"desired"`
	AvailabilityZones []string `json:"azs" yaml:"azs"`
	Instances         int      `json:"instances" yaml:"instances"`
	Status            string   `json:"status,omitempty" yaml:"status,omitempty"`
}

// Capacity is the size triple applied by ScaleGroup
type Capacity struct {
	Min     int32
	Max     int32
	Desired int32
}

// Validate checks that the sizes are non-negative and min <= desired <= max
func (c Capacity) Validate() error {
	if c.Min < 0 || c.Max < 0 || c.Desired < 0 {
		return dserrors.UserError{
			Message:    fmt.Sprintf("Invalid capacity min=%d max=%d desired=%d", c.Min, c.Max, c.Desired),
			Suggestion: "Sizes must be zero or greater",
		}
	}
	if c.Min > c.Max || c.Desired < c.Min || c.Desired > c.Max {
		return dserrors.UserError{
			Message:    fmt.Sprintf("Invalid capacity min=%d max=%d desired=%d", c.Min, c.Max, c.Desired),
			Suggestion: "Use values where min <= desired <= max",
		}
	}
	return nil
}

// ScaleOptions controls ScaleGroup
type ScaleOptions struct {
	// SkipScopeCheck trusts the caller that the group belongs to the scope.
	SkipScopeCheck bool
}

// ScaleGroup sets min, max and desired capacity of an Auto Scaling group in a
// single update. Unless opts.SkipScopeCheck is set, the group is looked up
// first and must carry the scope's Environment and Product tags.
func (c *Client) ScaleGroup(ctx context.Context, name string, capacity Capacity, opts ScaleOptions) error {
	if name == "" {
		return dserrors.UserError{
			Message:    "Autoscaling group name is required",
			Suggestion: "Use --asg <group-name>. 'envmanage show-env' lists the groups in this environment",
		}
	}
	if err := capacity.Validate(); err != nil {
		return err
	}

	if !opts.SkipScopeCheck {
		if err := c.checkGroupInScope(ctx, name); err != nil {
			return err
		}
	}

	c.logger.Debug("Scaling %s to min=%d max=%d desired=%d", name, capacity.Min, capacity.Max, capacity.Desired)

	_, err := c.autoscaling.UpdateAutoScalingGroup(ctx, &autoscaling.UpdateAutoScalingGroupInput{
		AutoScalingGroupName: aws.String(name),
		MinSize:              aws.Int32(capacity.Min),
		MaxSize:              aws.Int32(capacity.Max),
		DesiredCapacity:      aws.Int32(capacity.Desired),
	})
	if err != nil {
		return dserrors.ProviderError("autoscaling", "UpdateAutoScalingGroup", err)
	}
	return nil
}

func (c *Client) checkGroupInScope(ctx context.Context, name string) error {
	result, err := c.autoscaling.DescribeAutoScalingGroups(ctx, &autoscaling.DescribeAutoScalingGroupsInput{
		AutoScalingGroupNames: []string{name},
	})
	if err != nil {
		return dserrors.ProviderError("autoscaling", "DescribeAutoScalingGroups", err)
	}

	for _, group := range result.AutoScalingGroups {
		if aws.ToString(group.AutoScalingGroupName) != name {
			continue
		}
		if c.scope.Owns(groupTags(group.Tags)) {
			return nil
		}
		return dserrors.UserError{
			Message: fmt.Sprintf("Autoscaling group '%s' does not belong to %s", name, c.scope),
			Details: fmt.Sprintf("The group must be tagged Environment=%s and Product=%s",
				c.scope.Environment, c.scope.Product),
			Suggestion: "Check --product/--env, or pass --force to scale it anyway",
		}
	}

	return dserrors.UserError{
		Message:    fmt.Sprintf("Autoscaling group '%s' not found", name),
		Suggestion: "Run 'envmanage show-env' to list the groups in this environment",
	}
}

// ListGroups pages through every Auto Scaling group visible to the
// credentials and keeps those owned by the scope. When a page fails the
// groups gathered so far are returned together with the error.
func (c *Client) ListGroups(ctx context.Context) ([]AutoscalingGroup, error) {
	paginator := autoscaling.NewDescribeAutoScalingGroupsPaginator(c.autoscaling, &autoscaling.DescribeAutoScalingGroupsInput{})

	groups := []AutoscalingGroup{}
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return groups, dserrors.ProviderError("autoscaling", "DescribeAutoScalingGroups", err)
		}
		for _, group := range page.AutoScalingGroups {
			if !c.scope.Owns(groupTags(group.Tags)) {
				continue
			}
			groups = append(groups, toGroup(group))
		}
	}

	c.logger.Debug("Found %d autoscaling groups in %s", len(groups), c.scope)
	return groups, nil
}

func toGroup(group types.AutoScalingGroup) AutoscalingGroup {
	azs := group.AvailabilityZones
	if azs == nil {
		azs = []string{}
	}
	return AutoscalingGroup{
		Name:              aws.ToString(group.AutoScalingGroupName),
		Min:               aws.ToInt32(group.MinSize),
		Max:               aws.ToInt32(group.MaxSize),
		Desired:           aws.ToInt32(group.DesiredCapacity),
		AvailabilityZones: azs,
		Instances:         len(group.Instances),
		Status:            aws.ToString(group.Status),
	}
}

func groupTags(tags []types.TagDescription) map[string]string {
	m := make(map[string]string, len(tags))
	for _, tag := range tags {
		m[aws.ToString(tag.Key)] = aws.ToString(tag.Value)
	}
	return m
}
