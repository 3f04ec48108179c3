package bootstrap

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	sestypes "github.com/aws/aws-sdk-go-v2/service/sesv2/types"
	"github.com/stretchr/testify/require"
)

type fakeS3 struct {
	buckets map[string][]string
	created []*s3.CreateBucketInput
	deleted []string
}

func newFakeS3() *fakeS3 {
	return &fakeS3{buckets: map[string][]string{}}
}

func (f *fakeS3) CreateBucket(ctx context.Context, in *s3.CreateBucketInput, _ ...func(*s3.Options)) (*s3.CreateBucketOutput, error) {
	f.created = append(f.created, in)
	if _, ok := f.buckets[*in.Bucket]; ok {
		return nil, &s3types.BucketAlreadyOwnedByYou{}
	}
	f.buckets[*in.Bucket] = nil
	return &s3.CreateBucketOutput{}, nil
}

func (f *fakeS3) HeadBucket(ctx context.Context, in *s3.HeadBucketInput, _ ...func(*s3.Options)) (*s3.HeadBucketOutput, error) {
	if _, ok := f.buckets[*in.Bucket]; !ok {
		return nil, &s3types.NotFound{}
	}
	return &s3.HeadBucketOutput{}, nil
}

func (f *fakeS3) ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	keys, ok := f.buckets[*in.Bucket]
	if !ok {
		return nil, &s3types.NoSuchBucket{}
	}
	out := &s3.ListObjectsV2Output{}
	for _, k := range keys {
		out.Contents = append(out.Contents, s3types.Object{Key: aws.String(k)})
	}
	return out, nil
}

func (f *fakeS3) DeleteObjects(ctx context.Context, in *s3.DeleteObjectsInput, _ ...func(*s3.Options)) (*s3.DeleteObjectsOutput, error) {
	f.buckets[*in.Bucket] = nil
	return &s3.DeleteObjectsOutput{}, nil
}

func (f *fakeS3) DeleteBucket(ctx context.Context, in *s3.DeleteBucketInput, _ ...func(*s3.Options)) (*s3.DeleteBucketOutput, error) {
	if _, ok := f.buckets[*in.Bucket]; !ok {
		return nil, &s3types.NoSuchBucket{}
	}
	if len(f.buckets[*in.Bucket]) > 0 {
		return nil, errors.New("BucketNotEmpty")
	}
	delete(f.buckets, *in.Bucket)
	f.deleted = append(f.deleted, *in.Bucket)
	return &s3.DeleteBucketOutput{}, nil
}

type fakeSES struct {
	identities map[string]bool
}

func (f *fakeSES) CreateEmailIdentity(ctx context.Context, in *sesv2.CreateEmailIdentityInput, _ ...func(*sesv2.Options)) (*sesv2.CreateEmailIdentityOutput, error) {
	if f.identities[*in.EmailIdentity] {
		return nil, &sestypes.AlreadyExistsException{}
	}
	f.identities[*in.EmailIdentity] = true
	return &sesv2.CreateEmailIdentityOutput{}, nil
}

func (f *fakeSES) DeleteEmailIdentity(ctx context.Context, in *sesv2.DeleteEmailIdentityInput, _ ...func(*sesv2.Options)) (*sesv2.DeleteEmailIdentityOutput, error) {
	if !f.identities[*in.EmailIdentity] {
		return nil, &sestypes.NotFoundException{}
	}
	delete(f.identities, *in.EmailIdentity)
	return &sesv2.DeleteEmailIdentityOutput{}, nil
}

func TestBootstrap(t *testing.T) {
	ctx := context.Background()
	s3c := newFakeS3()
	ses := &fakeSES{identities: map[string]bool{}}

	cfg := Config{S3Client: s3c, SESClient: ses, Sender: "noreply@eduzen.example"}

	res, err := Bootstrap(ctx, cfg)
	require.NoError(t, err)
	require.Equal(t, "dev-cascadesign-documents", res.Bucket)
	require.Equal(t, "noreply@eduzen.example", res.Sender)
	require.True(t, ses.identities["noreply@eduzen.example"])
	require.Nil(t, s3c.created[0].CreateBucketConfiguration, "us-east-1 takes no location constraint")

	t.Run("rerun preserves data", func(t *testing.T) {
		s3c.buckets[res.Bucket] = []string{"org/documents/a.pdf"}

		again, err := Bootstrap(ctx, cfg)
		require.NoError(t, err)
		require.Equal(t, res.Bucket, again.Bucket)
		require.Equal(t, []string{"org/documents/a.pdf"}, s3c.buckets[res.Bucket])
	})

	t.Run("clean run empties the bucket", func(t *testing.T) {
		clean := cfg
		clean.CleanResources = true

		_, err := Bootstrap(ctx, clean)
		require.NoError(t, err)
		require.Empty(t, s3c.buckets[res.Bucket])
		require.Contains(t, s3c.deleted, res.Bucket)
	})

	require.NoError(t, Cleanup(ctx, cfg, res))
	require.NotContains(t, s3c.buckets, res.Bucket)
	require.Empty(t, ses.identities)

	// cleanup is idempotent
	require.NoError(t, Cleanup(ctx, cfg, res))
}

func TestBootstrap_Region(t *testing.T) {
	s3c := newFakeS3()

	res, err := Bootstrap(context.Background(), Config{S3Client: s3c, Environment: "test", Region: "eu-west-3"})
	require.NoError(t, err)
	require.Equal(t, "test-cascadesign-documents", res.Bucket)
	require.Empty(t, res.Sender)
	require.Equal(t, s3types.BucketLocationConstraint("eu-west-3"), s3c.created[0].CreateBucketConfiguration.LocationConstraint)
}

func TestBootstrap_RequiresS3(t *testing.T) {
	_, err := Bootstrap(context.Background(), Config{})
	require.Error(t, err)
}
