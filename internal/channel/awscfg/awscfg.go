// Package awscfg loads the AWS SDK configuration shared by the SNS and SQS channels.
package awscfg

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/pkg/errors"
)

// DefaultRegion matches the region the load test topics were provisioned in.
const DefaultRegion = "us-east-1"

// Config selects the region and the shared-credentials profile to sign requests with.
type Config struct {
	Region          string
	Profile         string
	CredentialsFile string
}

// Load resolves an aws.Config. Profile and CredentialsFile are optional; when unset the SDK's
// default chain (environment, shared files, instance role) applies.
func Load(ctx context.Context, cfg Config) (aws.Config, error) {
	region := cfg.Region
	if region == "" {
		region = DefaultRegion
	}
	opts := []func(*config.LoadOptions) error{config.WithRegion(region)}
	if cfg.Profile != "" {
		opts = append(opts, config.WithSharedConfigProfile(cfg.Profile))
	}
	if cfg.CredentialsFile != "" {
		opts = append(opts, config.WithSharedCredentialsFiles([]string{cfg.CredentialsFile}))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, errors.Wrap(err, "loading aws config")
	}
	return awsCfg, nil
}
