package bootstrap

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
)

// S3API is the subset of the S3 client used to manage the document bucket.
type S3API interface {
	CreateBucket(ctx context.Context, params *s3.CreateBucketInput, optFns ...func(*s3.Options)) (*s3.CreateBucketOutput, error)
	HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	DeleteObjects(ctx context.Context, params *s3.DeleteObjectsInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectsOutput, error)
	DeleteBucket(ctx context.Context, params *s3.DeleteBucketInput, optFns ...func(*s3.Options)) (*s3.DeleteBucketOutput, error)
}

// SESAPI is the subset of the SES v2 client used to register the sender identity.
type SESAPI interface {
	CreateEmailIdentity(ctx context.Context, params *sesv2.CreateEmailIdentityInput, optFns ...func(*sesv2.Options)) (*sesv2.CreateEmailIdentityOutput, error)
	DeleteEmailIdentity(ctx context.Context, params *sesv2.DeleteEmailIdentityInput, optFns ...func(*sesv2.Options)) (*sesv2.DeleteEmailIdentityOutput, error)
}

// Config holds configuration for bootstrapping LocalStack infrastructure
type Config struct {
	// AWS SDK clients
	S3Client  S3API
	SESClient SESAPI // optional, skipped when nil

	// Resource naming
	Environment string // e.g., "dev", "test" - used as prefix for resource names
	Region      string
	Sender      string // SES sender identity, an email address or domain

	// CleanResources controls whether to delete existing resources before creating
	// Set to false to preserve data across restarts (useful for development with live reload)
	CleanResources bool
}

// Resources holds identifiers for created infrastructure resources
type Resources struct {
	Bucket string
	Sender string
}
