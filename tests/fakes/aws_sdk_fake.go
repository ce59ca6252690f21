package fakes

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/autoscaling"
	asgtypes "github.com/aws/aws-sdk-go-v2/service/autoscaling/types"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	ssmtypes "github.com/aws/aws-sdk-go-v2/service/ssm/types"
)

// FakeSSMClient is an in-memory Parameter Store
type FakeSSMClient struct {
	mu sync.Mutex

	// Parameters maps parameter names to their data
	Parameters map[string]*ParameterData
	// Errors maps parameter names to errors to return
	Errors map[string]error
	// PageSize is the number of parameters returned per GetParametersByPath page
	PageSize int

	// GetParametersByPathCalls counts GetParametersByPath invocations
	GetParametersByPathCalls int
	// PutParameterCalls records every PutParameter input
	PutParameterCalls []ssm.PutParameterInput

	// GetParameterFunc allows custom behavior for GetParameter
	GetParameterFunc func(ctx context.Context, params *ssm.GetParameterInput) (*ssm.GetParameterOutput, error)
	// GetParametersByPathFunc allows custom behavior for GetParametersByPath
	GetParametersByPathFunc func(ctx context.Context, params *ssm.GetParametersByPathInput) (*ssm.GetParametersByPathOutput, error)
	// PutParameterFunc allows custom behavior for PutParameter
	PutParameterFunc func(ctx context.Context, params *ssm.PutParameterInput) (*ssm.PutParameterOutput, error)
	// DeleteParameterFunc allows custom behavior for DeleteParameter
	DeleteParameterFunc func(ctx context.Context, params *ssm.DeleteParameterInput) (*ssm.DeleteParameterOutput, error)
}

// ParameterData holds the data for a mock SSM parameter
type ParameterData struct {
	Name             *string
	Type             ssmtypes.ParameterType
	Value            *string
	Version          int64
	LastModifiedDate *time.Time
	ARN              *string
}

// NewFakeSSMClient creates a new mock SSM client
func NewFakeSSMClient() *FakeSSMClient {
	return &FakeSSMClient{
		Parameters: make(map[string]*ParameterData),
		Errors:     make(map[string]error),
		PageSize:   10,
	}
}

// AddStringParameter adds a String parameter to the mock client
func (f *FakeSSMClient) AddStringParameter(name, value string) {
	f.addParameter(name, value, ssmtypes.ParameterTypeString)
}

// AddSecureStringParameter adds a SecureString parameter to the mock client
func (f *FakeSSMClient) AddSecureStringParameter(name, value string) {
	f.addParameter(name, value, ssmtypes.ParameterTypeSecureString)
}

// AddStringListParameter adds a StringList parameter to the mock client
func (f *FakeSSMClient) AddStringListParameter(name, value string) {
	f.addParameter(name, value, ssmtypes.ParameterTypeStringList)
}

func (f *FakeSSMClient) addParameter(name, value string, paramType ssmtypes.ParameterType) {
	f.mu.Lock()
	defer f.mu.Unlock()

	now := time.Now()
	f.Parameters[name] = &ParameterData{
		Name:             aws.String(name),
		Type:             paramType,
		Value:            aws.String(value),
		Version:          1,
		LastModifiedDate: &now,
		ARN:              aws.String(parameterARN(name)),
	}
}

// AddError configures the mock to return an error for a specific parameter
func (f *FakeSSMClient) AddError(name string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Errors[name] = err
}

// GetParameter mocks the GetParameter operation
func (f *FakeSSMClient) GetParameter(ctx context.Context, params *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error) {
	if f.GetParameterFunc != nil {
		return f.GetParameterFunc(ctx, params)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	paramName := aws.ToString(params.Name)

	if err, exists := f.Errors[paramName]; exists {
		return nil, err
	}

	data, exists := f.Parameters[paramName]
	if !exists {
		return nil, &ssmtypes.ParameterNotFound{
			Message: aws.String(fmt.Sprintf("Parameter %s not found", paramName)),
		}
	}

	p := data.toParameter()
	return &ssm.GetParameterOutput{Parameter: &p}, nil
}

// GetParametersByPath mocks the GetParametersByPath operation. Parameters are
// returned in name order, PageSize at a time, with NextToken holding the offset
// of the next page.
func (f *FakeSSMClient) GetParametersByPath(ctx context.Context, params *ssm.GetParametersByPathInput, optFns ...func(*ssm.Options)) (*ssm.GetParametersByPathOutput, error) {
	f.mu.Lock()
	f.GetParametersByPathCalls++
	f.mu.Unlock()

	if f.GetParametersByPathFunc != nil {
		return f.GetParametersByPathFunc(ctx, params)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	path := aws.ToString(params.Path)
	if err, exists := f.Errors[path]; exists {
		return nil, err
	}

	var names []string
	for name := range f.Parameters {
		if !strings.HasPrefix(name, path) {
			continue
		}
		rest := strings.TrimPrefix(name, path)
		if !aws.ToBool(params.Recursive) && strings.Contains(rest, "/") {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)

	offset, err := tokenOffset(params.NextToken)
	if err != nil {
		return nil, &ssmtypes.InvalidNextToken{Message: aws.String(err.Error())}
	}

	pageSize := f.PageSize
	if pageSize <= 0 {
		pageSize = 10
	}
	start, end, next := pageBounds(offset, pageSize, len(names))

	out := &ssm.GetParametersByPathOutput{NextToken: next}
	for _, name := range names[start:end] {
		out.Parameters = append(out.Parameters, f.Parameters[name].toParameter())
	}
	return out, nil
}

// PutParameter mocks the PutParameter operation
func (f *FakeSSMClient) PutParameter(ctx context.Context, params *ssm.PutParameterInput, optFns ...func(*ssm.Options)) (*ssm.PutParameterOutput, error) {
	f.mu.Lock()
	f.PutParameterCalls = append(f.PutParameterCalls, *params)
	f.mu.Unlock()

	if f.PutParameterFunc != nil {
		return f.PutParameterFunc(ctx, params)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	paramName := aws.ToString(params.Name)
	if err, exists := f.Errors[paramName]; exists {
		return nil, err
	}

	now := time.Now()
	data, exists := f.Parameters[paramName]
	if exists {
		if !aws.ToBool(params.Overwrite) {
			return nil, &ssmtypes.ParameterAlreadyExists{
				Message: aws.String(fmt.Sprintf("Parameter %s already exists", paramName)),
			}
		}
		data.Version++
	} else {
		data = &ParameterData{
			Name:    aws.String(paramName),
			Version: 1,
			ARN:     aws.String(parameterARN(paramName)),
		}
		f.Parameters[paramName] = data
	}

	paramType := params.Type
	if paramType == "" {
		paramType = ssmtypes.ParameterTypeString
	}
	data.Type = paramType
	data.Value = aws.String(aws.ToString(params.Value))
	data.LastModifiedDate = &now

	return &ssm.PutParameterOutput{Version: data.Version}, nil
}

// DeleteParameter mocks the DeleteParameter operation
func (f *FakeSSMClient) DeleteParameter(ctx context.Context, params *ssm.DeleteParameterInput, optFns ...func(*ssm.Options)) (*ssm.DeleteParameterOutput, error) {
	if f.DeleteParameterFunc != nil {
		return f.DeleteParameterFunc(ctx, params)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	paramName := aws.ToString(params.Name)
	if err, exists := f.Errors[paramName]; exists {
		return nil, err
	}

	if _, exists := f.Parameters[paramName]; !exists {
		return nil, &ssmtypes.ParameterNotFound{
			Message: aws.String(fmt.Sprintf("Parameter %s not found", paramName)),
		}
	}
	delete(f.Parameters, paramName)
	return &ssm.DeleteParameterOutput{}, nil
}

func (d *ParameterData) toParameter() ssmtypes.Parameter {
	return ssmtypes.Parameter{
		Name:             d.Name,
		Type:             d.Type,
		Value:            d.Value,
		Version:          d.Version,
		LastModifiedDate: d.LastModifiedDate,
		ARN:              d.ARN,
	}
}

func parameterARN(name string) string {
	return fmt.Sprintf("arn:aws:ssm:us-east-1:123456789012:parameter%s", name)
}

// FakeAutoScalingClient is an in-memory EC2 Auto Scaling service
type FakeAutoScalingClient struct {
	mu sync.Mutex

	// Groups are returned by DescribeAutoScalingGroups in order
	Groups []asgtypes.AutoScalingGroup
	// PageSize is the number of groups returned per page
	PageSize int

	// DescribeCalls records every DescribeAutoScalingGroups input
	DescribeCalls []autoscaling.DescribeAutoScalingGroupsInput
	// UpdateCalls records every UpdateAutoScalingGroup input
	UpdateCalls []autoscaling.UpdateAutoScalingGroupInput

	// DescribeAutoScalingGroupsFunc allows custom behavior for DescribeAutoScalingGroups
	DescribeAutoScalingGroupsFunc func(ctx context.Context, params *autoscaling.DescribeAutoScalingGroupsInput) (*autoscaling.DescribeAutoScalingGroupsOutput, error)
	// UpdateAutoScalingGroupFunc allows custom behavior for UpdateAutoScalingGroup
	UpdateAutoScalingGroupFunc func(ctx context.Context, params *autoscaling.UpdateAutoScalingGroupInput) (*autoscaling.UpdateAutoScalingGroupOutput, error)
}

// NewFakeAutoScalingClient creates a new mock Auto Scaling client
func NewFakeAutoScalingClient() *FakeAutoScalingClient {
	return &FakeAutoScalingClient{PageSize: 50}
}

// AddGroup adds a group with the given size and tags
func (f *FakeAutoScalingClient) AddGroup(name string, min, max, desired int32, tags map[string]string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	keys := make([]string, 0, len(tags))
	for k := range tags {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var tagList []asgtypes.TagDescription
	for _, k := range keys {
		tagList = append(tagList, asgtypes.TagDescription{
			Key:               aws.String(k),
			Value:             aws.String(tags[k]),
			ResourceId:        aws.String(name),
			ResourceType:      aws.String("auto-scaling-group"),
			PropagateAtLaunch: aws.Bool(true),
		})
	}

	f.Groups = append(f.Groups, asgtypes.AutoScalingGroup{
		AutoScalingGroupName: aws.String(name),
		MinSize:              aws.Int32(min),
		MaxSize:              aws.Int32(max),
		DesiredCapacity:      aws.Int32(desired),
		AvailabilityZones:    []string{"us-east-1a", "us-east-1b"},
		Tags:                 tagList,
	})
}

// DescribeAutoScalingGroups mocks the DescribeAutoScalingGroups operation
func (f *FakeAutoScalingClient) DescribeAutoScalingGroups(ctx context.Context, params *autoscaling.DescribeAutoScalingGroupsInput, optFns ...func(*autoscaling.Options)) (*autoscaling.DescribeAutoScalingGroupsOutput, error) {
	f.mu.Lock()
	f.DescribeCalls = append(f.DescribeCalls, *params)
	f.mu.Unlock()

	if f.DescribeAutoScalingGroupsFunc != nil {
		return f.DescribeAutoScalingGroupsFunc(ctx, params)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	var groups []asgtypes.AutoScalingGroup
	for _, g := range f.Groups {
		if len(params.AutoScalingGroupNames) > 0 && !contains(params.AutoScalingGroupNames, aws.ToString(g.AutoScalingGroupName)) {
			continue
		}
		groups = append(groups, g)
	}

	offset, err := tokenOffset(params.NextToken)
	if err != nil {
		return nil, err
	}
	start, end, next := pageBounds(offset, f.PageSize, len(groups))

	return &autoscaling.DescribeAutoScalingGroupsOutput{
		AutoScalingGroups: groups[start:end],
		NextToken:         next,
	}, nil
}

// UpdateAutoScalingGroup mocks the UpdateAutoScalingGroup operation. Only the
// fields set on the input are applied.
func (f *FakeAutoScalingClient) UpdateAutoScalingGroup(ctx context.Context, params *autoscaling.UpdateAutoScalingGroupInput, optFns ...func(*autoscaling.Options)) (*autoscaling.UpdateAutoScalingGroupOutput, error) {
	f.mu.Lock()
	f.UpdateCalls = append(f.UpdateCalls, *params)
	f.mu.Unlock()

	if f.UpdateAutoScalingGroupFunc != nil {
		return f.UpdateAutoScalingGroupFunc(ctx, params)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	for i := range f.Groups {
		g := &f.Groups[i]
		if aws.ToString(g.AutoScalingGroupName) != aws.ToString(params.AutoScalingGroupName) {
			continue
		}
		if params.MinSize != nil {
			g.MinSize = params.MinSize
		}
		if params.MaxSize != nil {
			g.MaxSize = params.MaxSize
		}
		if params.DesiredCapacity != nil {
			g.DesiredCapacity = params.DesiredCapacity
		}
		return &autoscaling.UpdateAutoScalingGroupOutput{}, nil
	}

	return nil, fmt.Errorf("ValidationError: AutoScalingGroup name not found - %s", aws.ToString(params.AutoScalingGroupName))
}

// FakeEC2Client is an in-memory EC2 inventory
type FakeEC2Client struct {
	mu sync.Mutex

	// Instances are returned by DescribeInstances, one reservation each
	Instances []ec2types.Instance
	// PageSize is the number of reservations returned per page
	PageSize int

	// DescribeCalls records every DescribeInstances input
	DescribeCalls []ec2.DescribeInstancesInput

	// DescribeInstancesFunc allows custom behavior for DescribeInstances
	DescribeInstancesFunc func(ctx context.Context, params *ec2.DescribeInstancesInput) (*ec2.DescribeInstancesOutput, error)
}

// NewFakeEC2Client creates a new mock EC2 client
func NewFakeEC2Client() *FakeEC2Client {
	return &FakeEC2Client{PageSize: 50}
}

// AddInstance adds a running instance with the given tags
func (f *FakeEC2Client) AddInstance(id, privateIP string, launch time.Time, tags map[string]string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	keys := make([]string, 0, len(tags))
	for k := range tags {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var tagList []ec2types.Tag
	for _, k := range keys {
		tagList = append(tagList, ec2types.Tag{Key: aws.String(k), Value: aws.String(tags[k])})
	}

	f.Instances = append(f.Instances, ec2types.Instance{
		InstanceId:       aws.String(id),
		PrivateIpAddress: aws.String(privateIP),
		InstanceType:     ec2types.InstanceTypeT3Medium,
		LaunchTime:       aws.Time(launch),
		State:            &ec2types.InstanceState{Name: ec2types.InstanceStateNameRunning},
		Tags:             tagList,
	})
}

// DescribeInstances mocks the DescribeInstances operation. Only "tag:<key>"
// filters are honored.
func (f *FakeEC2Client) DescribeInstances(ctx context.Context, params *ec2.DescribeInstancesInput, optFns ...func(*ec2.Options)) (*ec2.DescribeInstancesOutput, error) {
	f.mu.Lock()
	f.DescribeCalls = append(f.DescribeCalls, *params)
	f.mu.Unlock()

	if f.DescribeInstancesFunc != nil {
		return f.DescribeInstancesFunc(ctx, params)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	var reservations []ec2types.Reservation
	for _, instance := range f.Instances {
		if !matchesTagFilters(instance.Tags, params.Filters) {
			continue
		}
		reservations = append(reservations, ec2types.Reservation{
			Instances: []ec2types.Instance{instance},
		})
	}

	offset, err := tokenOffset(params.NextToken)
	if err != nil {
		return nil, err
	}
	start, end, next := pageBounds(offset, f.PageSize, len(reservations))

	return &ec2.DescribeInstancesOutput{
		Reservations: reservations[start:end],
		NextToken:    next,
	}, nil
}

func matchesTagFilters(tags []ec2types.Tag, filters []ec2types.Filter) bool {
	for _, filter := range filters {
		key, ok := strings.CutPrefix(aws.ToString(filter.Name), "tag:")
		if !ok {
			continue
		}
		matched := false
		for _, tag := range tags {
			if aws.ToString(tag.Key) == key && contains(filter.Values, aws.ToString(tag.Value)) {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}
	return true
}

func tokenOffset(token *string) (int, error) {
	if aws.ToString(token) == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(*token)
	if err != nil {
		return 0, fmt.Errorf("invalid next token %q", *token)
	}
	return n, nil
}

func pageBounds(offset, pageSize, total int) (int, int, *string) {
	if pageSize <= 0 {
		pageSize = 50
	}
	if offset > total {
		offset = total
	}
	end := offset + pageSize
	if end >= total {
		return offset, total, nil
	}
	return offset, end, aws.String(strconv.Itoa(end))
}

func contains(values []string, v string) bool {
	for _, s := range values {
		if s == v {
			return true
		}
	}
	return false
}
