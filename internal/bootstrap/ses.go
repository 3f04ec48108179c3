package bootstrap

import (
	"context"
	"errors"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"
)

// CreateSenderIdentity registers sender with SES. LocalStack verifies identities
// immediately; an existing identity is kept.
func CreateSenderIdentity(ctx context.Context, client SESAPI, sender string) error {
	_, err := client.CreateEmailIdentity(ctx, &sesv2.CreateEmailIdentityInput{
		EmailIdentity: aws.String(sender),
	})
	if err != nil {
		var exists *types.AlreadyExistsException
		if errors.As(err, &exists) {
			return nil
		}
		return err
	}
	return nil
}

// DeleteSenderIdentity removes sender. A missing identity is not an error.
func DeleteSenderIdentity(ctx context.Context, client SESAPI, sender string) error {
	_, err := client.DeleteEmailIdentity(ctx, &sesv2.DeleteEmailIdentityInput{
		EmailIdentity: aws.String(sender),
	})
	if err != nil {
		var missing *types.NotFoundException
		if errors.As(err, &missing) {
			return nil
		}
		return err
	}
	return nil
}
