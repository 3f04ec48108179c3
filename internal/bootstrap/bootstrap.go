package bootstrap

import (
	"context"
	"fmt"
)

// Bootstrap creates all required infrastructure (document bucket + SES sender identity)
// If CleanResources is true, deletes existing resources first to ensure clean state
// If CleanResources is false, creates resources only if they don't exist (preserves data)
func Bootstrap(ctx context.Context, cfg Config) (*Resources, error) {
	// Validate config
	if cfg.S3Client == nil {
		return nil, fmt.Errorf("S3Client is required")
	}
	if cfg.Environment == "" {
		cfg.Environment = "dev" // Default environment
	}
	if cfg.Region == "" {
		cfg.Region = "us-east-1"
	}

	resources := &Resources{}

	bucket, err := CreateBucket(ctx, cfg.S3Client, cfg.Environment, cfg.Region, cfg.CleanResources)
	if err != nil {
		return nil, fmt.Errorf("failed to create document bucket: %w", err)
	}
	resources.Bucket = bucket

	if cfg.SESClient != nil && cfg.Sender != "" {
		if err := CreateSenderIdentity(ctx, cfg.SESClient, cfg.Sender); err != nil {
			return nil, fmt.Errorf("failed to create SES identity: %w", err)
		}
		resources.Sender = cfg.Sender
	}

	return resources, nil
}

// Cleanup deletes all resources created by Bootstrap
func Cleanup(ctx context.Context, cfg Config, res *Resources) error {
	if err := DeleteBucket(ctx, cfg.S3Client, res.Bucket); err != nil {
		return fmt.Errorf("failed to delete bucket: %w", err)
	}

	if cfg.SESClient != nil && res.Sender != "" {
		if err := DeleteSenderIdentity(ctx, cfg.SESClient, res.Sender); err != nil {
			return fmt.Errorf("failed to delete SES identity: %w", err)
		}
	}

	return nil
}
