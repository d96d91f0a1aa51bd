// Package aws retrieves running instances, reservations, reservation
// offerings and on-demand prices from AWS.
package aws

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials/stscreds"
	"github.com/aws/aws-sdk-go-v2/feature/ec2/imds"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/pricing"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/go-logr/logr"

	"github.com/guimove/ricover/internal/model"
)

const (
	credentialCheckTimeout = 3 * time.Second

	// pricingRegion is the only region serving the Pricing API for EC2.
	pricingRegion = "us-east-1"
)

var ErrAWSCredentials = errors.New("AWS credentials not found; set AWS_PROFILE, run 'aws sso login', or configure ~/.aws/credentials")

// ec2API is a minimal interface for the EC2 calls we need.
type ec2API interface {
	DescribeInstances(ctx context.Context, params *ec2.DescribeInstancesInput, optFns ...func(*ec2.Options)) (*ec2.DescribeInstancesOutput, error)
	DescribeReservedInstances(ctx context.Context, params *ec2.DescribeReservedInstancesInput, optFns ...func(*ec2.Options)) (*ec2.DescribeReservedInstancesOutput, error)
	DescribeReservedInstancesOfferings(ctx context.Context, params *ec2.DescribeReservedInstancesOfferingsInput, optFns ...func(*ec2.Options)) (*ec2.DescribeReservedInstancesOfferingsOutput, error)
}

// pricingAPI is a minimal interface for the Pricing API calls we need.
type pricingAPI interface {
	GetProducts(ctx context.Context, params *pricing.GetProductsInput, optFns ...func(*pricing.Options)) (*pricing.GetProductsOutput, error)
}

// stsAPI is a minimal interface for the STS calls we need.
type stsAPI interface {
	GetCallerIdentity(ctx context.Context, params *sts.GetCallerIdentityInput, optFns ...func(*sts.Options)) (*sts.GetCallerIdentityOutput, error)
}

// Options configures a Provider.
type Options struct {
	Profile       string
	Region        string
	AssumeRoleARN string
	CacheDir      string
	CacheTTL      time.Duration
	Log           logr.Logger
}

// Provider talks to AWS on behalf of one account/region scope.
type Provider struct {
	ec2Client     ec2API
	pricingClient pricingAPI
	scope         model.Scope
	cache         *FileCache
	log           logr.Logger
}

// NewProvider creates a provider from the shared AWS config chain, using
// opts.Profile when set. IMDS (EC2 metadata) is disabled to avoid long
// timeouts when running locally. When opts.AssumeRoleARN is set, every call
// runs under that role.
func NewProvider(ctx context.Context, opts Options) (*Provider, error) {
	loadOpts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(opts.Region),
		awsconfig.WithEC2IMDSClientEnableState(imds.ClientDisabled),
	}
	if opts.Profile != "" {
		loadOpts = append(loadOpts, awsconfig.WithSharedConfigProfile(opts.Profile))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAWSCredentials, err)
	}

	if opts.AssumeRoleARN != "" {
		session := "ricover"
		if opts.Profile != "" {
			session += "-" + opts.Profile
		}
		provider := stscreds.NewAssumeRoleProvider(sts.NewFromConfig(cfg), opts.AssumeRoleARN,
			func(o *stscreds.AssumeRoleOptions) { o.RoleSessionName = session })
		cfg.Credentials = aws.NewCredentialsCache(provider)
	}

	// Verify credentials are available before making any API calls
	credCtx, cancel := context.WithTimeout(ctx, credentialCheckTimeout)
	defer cancel()
	if _, err := cfg.Credentials.Retrieve(credCtx); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAWSCredentials, err)
	}

	account, err := callerAccount(ctx, sts.NewFromConfig(cfg))
	if err != nil {
		return nil, err
	}

	pricingCfg := cfg.Copy()
	pricingCfg.Region = pricingRegion

	var cache *FileCache
	if opts.CacheDir != "" {
		cache = NewFileCache(opts.CacheDir, opts.CacheTTL)
	}

	return &Provider{
		ec2Client:     ec2.NewFromConfig(cfg),
		pricingClient: pricing.NewFromConfig(pricingCfg),
		scope:         model.Scope{Account: account, Profile: opts.Profile, Region: opts.Region},
		cache:         cache,
		log:           opts.Log,
	}, nil
}

func callerAccount(ctx context.Context, client stsAPI) (string, error) {
	out, err := client.GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
	if err != nil {
		return "", fmt.Errorf("resolving caller identity: %w", err)
	}
	return aws.ToString(out.Account), nil
}

// Scope returns the account/region the provider is bound to.
func (p *Provider) Scope() model.Scope {
	return p.scope
}

// Region returns the AWS region.
func (p *Provider) Region() string {
	return p.scope.Region
}
