package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

const bucketWaitTimeout = 30 * time.Second

// BucketName returns the document bucket name for env.
func BucketName(env string) string {
	return fmt.Sprintf("%s-cascadesign-documents", env)
}

// CreateBucket creates the document bucket for env and returns its name.
// If cleanResources is true, an existing bucket is emptied and recreated.
func CreateBucket(ctx context.Context, client S3API, env, region string, cleanResources bool) (string, error) {
	bucket := BucketName(env)

	if cleanResources {
		if err := DeleteBucket(ctx, client, bucket); err != nil {
			return "", fmt.Errorf("failed to delete existing bucket %s: %w", bucket, err)
		}
	}

	input := &s3.CreateBucketInput{Bucket: aws.String(bucket)}
	// us-east-1 rejects an explicit location constraint
	if region != "us-east-1" {
		input.CreateBucketConfiguration = &types.CreateBucketConfiguration{
			LocationConstraint: types.BucketLocationConstraint(region),
		}
	}

	if _, err := client.CreateBucket(ctx, input); err != nil {
		var owned *types.BucketAlreadyOwnedByYou
		if !errors.As(err, &owned) {
			return "", fmt.Errorf("failed to create bucket %s: %w", bucket, err)
		}
		return bucket, nil
	}

	waiter := s3.NewBucketExistsWaiter(client)
	if err := waiter.Wait(ctx, &s3.HeadBucketInput{Bucket: aws.String(bucket)}, bucketWaitTimeout); err != nil {
		return "", fmt.Errorf("bucket %s did not become available: %w", bucket, err)
	}

	return bucket, nil
}

// DeleteBucket empties and removes bucket. A missing bucket is not an error.
func DeleteBucket(ctx context.Context, client S3API, bucket string) error {
	paginator := s3.NewListObjectsV2Paginator(client, &s3.ListObjectsV2Input{Bucket: aws.String(bucket)})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			if isNoSuchBucket(err) {
				return nil
			}
			return err
		}
		if len(page.Contents) == 0 {
			continue
		}

		objects := make([]types.ObjectIdentifier, 0, len(page.Contents))
		for _, obj := range page.Contents {
			objects = append(objects, types.ObjectIdentifier{Key: obj.Key})
		}
		if _, err := client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
			Bucket: aws.String(bucket),
			Delete: &types.Delete{Objects: objects, Quiet: aws.Bool(true)},
		}); err != nil {
			return fmt.Errorf("failed to empty bucket %s: %w", bucket, err)
		}
	}

	if _, err := client.DeleteBucket(ctx, &s3.DeleteBucketInput{Bucket: aws.String(bucket)}); err != nil {
		if isNoSuchBucket(err) {
			return nil
		}
		return err
	}
	return nil
}

func isNoSuchBucket(err error) bool {
	var nsb *types.NoSuchBucket
	return errors.As(err, &nsb)
}
