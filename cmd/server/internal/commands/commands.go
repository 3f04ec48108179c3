package commands

import (
	"context"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
)

type Globals struct {
	Debug   bool
	Version string
}

func configureHTTPServer(addr string, handler http.Handler) *http.Server {
	// Create HTTP server
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       time.Minute,
		WriteTimeout:      2 * time.Minute,
		IdleTimeout:       5 * time.Minute,
		MaxHeaderBytes:    8 * 1024, // 8KiB
	}
}

// AWSFlags select the AWS region and optional LocalStack endpoint.
type AWSFlags struct {
	Region      string `help:"AWS region" default:"eu-west-3" env:"CASCADE_AWS_REGION"`
	EndpointURL string `help:"endpoint URL override for all AWS services (LocalStack)" default:"" env:"CASCADE_AWS_ENDPOINT_URL"`
}

func (f *AWSFlags) load(ctx context.Context) (aws.Config, error) {
	opts := []func(*config.LoadOptions) error{config.WithRegion(f.Region)}
	if f.EndpointURL != "" {
		opts = append(opts,
			config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider("test", "test", "test")),
			config.WithBaseEndpoint(f.EndpointURL),
		)
	}
	return config.LoadDefaultConfig(ctx, opts...)
}
