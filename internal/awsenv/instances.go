package awsenv

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"
	dserrors "github.com/systmms/envmanage/internal/errors"
	"github.com/systmms/envmanage/internal/scope"
)

// Instance is an EC2 instance that belongs to the scope
type Instance struct {
	Name       string    `json:"name" yaml:"name"`
	ID         string    `json:"id" yaml:"id"`
	PrivateIP  string    `json:"private_ip" yaml:"private_ip"`
	Type       string    `json:"type" yaml:"type"`
	LaunchTime time.Time `json:"launch" yaml:"launch"`
	State      string    `json:"state" yaml:"state"`
}

// ListInstances returns the instances tagged for the scope, in every state.
// The tag filter is applied server side and then re-checked locally with the
// same predicate ListGroups uses.
func (c *Client) ListInstances(ctx context.Context) ([]Instance, error) {
	paginator := ec2.NewDescribeInstancesPaginator(c.ec2, &ec2.DescribeInstancesInput{
		Filters: []types.Filter{
			{
				Name:   aws.String("tag:" + scope.EnvironmentTag),
				Values: []string{c.scope.Environment},
			},
			{
				Name:   aws.String("tag:" + scope.ProductTag),
				Values: []string{c.scope.Product},
			},
		},
	})

	instances := []Instance{}
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return instances, dserrors.ProviderError("ec2", "DescribeInstances", err)
		}
		for _, reservation := range page.Reservations {
			for _, instance := range reservation.Instances {
				tags := instanceTags(instance.Tags)
				if !c.scope.Owns(tags) {
					continue
				}
				instances = append(instances, toInstance(instance, tags))
			}
		}
	}

	c.logger.Debug("Found %d instances in %s", len(instances), c.scope)
	return instances, nil
}

func toInstance(instance types.Instance, tags map[string]string) Instance {
	var state string
	if instance.State != nil {
		state = string(instance.State.Name)
	}
	return Instance{
		Name:       tags["Name"],
		ID:         aws.ToString(instance.InstanceId),
		PrivateIP:  aws.ToString(instance.PrivateIpAddress),
		Type:       string(instance.InstanceType),
		LaunchTime: aws.ToTime(instance.LaunchTime),
		State:      state,
	}
}

func instanceTags(tags []types.Tag) map[string]string {
	m := make(map[string]string, len(tags))
	for _, tag := range tags {
		m[aws.ToString(tag.Key)] = aws.ToString(tag.Value)
	}
	return m
}
