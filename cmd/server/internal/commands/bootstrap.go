package commands

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"

	"github.com/eduzen/cascadesign/internal/bootstrap"
	"github.com/eduzen/cascadesign/internal/logger"
)

// BootstrapCmd creates the document bucket and SES sender identity, usually against LocalStack.
type BootstrapCmd struct {
	Environment string   `help:"environment name used to prefix resources" default:"dev" env:"CASCADE_ENVIRONMENT"`
	Sender      string   `help:"SES sender identity, an email address or domain" default:"noreply@eduzen.fr" env:"CASCADE_SES_SENDER"`
	SkipSES     bool     `help:"skip the SES sender identity"`
	Clean       bool     `help:"delete existing resources before creating them"`
	AWS         AWSFlags `embed:"" prefix:"aws-"`
}

func (c *BootstrapCmd) Run(ctx context.Context, globals *Globals) error {
	log := logger.Setup(globals.Debug)

	awsCfg, err := c.AWS.load(ctx)
	if err != nil {
		return fmt.Errorf("failed to load AWS config: %w", err)
	}

	cfg := bootstrap.Config{
		S3Client: s3.NewFromConfig(awsCfg, func(o *s3.Options) {
			o.UsePathStyle = c.AWS.EndpointURL != ""
		}),
		Environment:    c.Environment,
		Region:         c.AWS.Region,
		Sender:         c.Sender,
		CleanResources: c.Clean,
	}
	if !c.SkipSES {
		cfg.SESClient = sesv2.NewFromConfig(awsCfg)
	}

	res, err := bootstrap.Bootstrap(ctx, cfg)
	if err != nil {
		return err
	}

	log.Info().
		Str("bucket", res.Bucket).
		Str("sender", res.Sender).
		Msg("Infrastructure ready, start the server with --blob-type=s3 --s3-bucket=" + res.Bucket)
	return nil
}
