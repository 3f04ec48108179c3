package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/mail"
	"os"
	"os/signal"
	"syscall"
	"time"

	"connectrpc.com/connect"
	"connectrpc.com/otelconnect"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
	"golang.org/x/sync/errgroup"

	"github.com/eduzen/cascadesign/internal/auth"
	"github.com/eduzen/cascadesign/internal/blob"
	"github.com/eduzen/cascadesign/internal/logger"
	"github.com/eduzen/cascadesign/internal/notify"
	"github.com/eduzen/cascadesign/internal/pki"
	"github.com/eduzen/cascadesign/internal/sealer"
	"github.com/eduzen/cascadesign/internal/server"
	"github.com/eduzen/cascadesign/internal/signing"
	"github.com/eduzen/cascadesign/internal/ssmcerts"
	"github.com/eduzen/cascadesign/internal/store"
	memorystore "github.com/eduzen/cascadesign/internal/store/memory"
	postgresstore "github.com/eduzen/cascadesign/internal/store/postgres"
	"github.com/eduzen/cascadesign/internal/telemetry"
	"github.com/eduzen/cascadesign/internal/tokens"
)

const minSecretLen = 32

type ServerCmd struct {
	// Server configuration
	Listen  string `help:"HTTP server listen address" default:"0.0.0.0:8080" env:"CASCADE_LISTEN"`
	BaseURL string `help:"public URL serving the signer links" default:"http://localhost:8080" env:"CASCADE_BASE_URL"`

	// CORS and cross-origin configuration
	CORSOrigins    []string `help:"allowed CORS origins for member API requests" default:"http://localhost:3000" env:"CASCADE_CORS_ORIGINS"`
	TrustedOrigins []string `help:"extra origins allowed to submit signatures" env:"CASCADE_TRUSTED_ORIGINS"`

	// Secrets
	TokenSecret    string `help:"HMAC secret binding signer links to their process" env:"CASCADE_TOKEN_SECRET"`
	EvidenceSecret string `help:"HMAC secret for evidence integrity hashes" env:"CASCADE_EVIDENCE_SECRET"`
	BlobSecret     string `help:"HMAC secret signing read URLs of the in-memory blob store" env:"CASCADE_BLOB_SECRET"`

	// Member authentication
	JWTPublicKey string `help:"PEM public key verifying member tokens" env:"CASCADE_JWT_PUBLIC_KEY"`
	JWTIssuer    string `help:"expected issuer of member tokens" default:"cascadesign" env:"CASCADE_JWT_ISSUER"`

	// Development and operational modes
	Development bool    `help:"development mode: in-memory stores, local blobs, logged emails, generated keys" default:"false" env:"CASCADE_DEVELOPMENT"`
	DevDocument string  `help:"PDF seeded as a document in development mode" env:"CASCADE_DEV_DOCUMENT"`
	Environment string  `help:"deployment environment reported in telemetry" default:"dev" env:"CASCADE_ENVIRONMENT"`
	Tracing     bool    `help:"enable tracing" default:"false" env:"CASCADE_TRACING"`
	SampleRatio float64 `help:"trace sample ratio" default:"0.1" env:"CASCADE_TRACE_SAMPLE_RATIO"`

	DispatchInterval time.Duration `help:"interval of the notification outbox sweep" default:"30s" env:"CASCADE_DISPATCH_INTERVAL"`
	ExpirySchedule   string        `help:"cron schedule expiring overdue processes" default:"@every 5m" env:"CASCADE_EXPIRY_SCHEDULE"`

	// Store configuration
	StoreType     string             `help:"store type (memory or postgres)" default:"memory" env:"CASCADE_STORE_TYPE" enum:"memory,postgres"`
	PostgresStore PostgresStoreFlags `embed:"" prefix:"postgres-"`

	// Blob configuration
	BlobType string   `help:"blob store type (memory or s3)" default:"memory" env:"CASCADE_BLOB_TYPE" enum:"memory,s3"`
	S3       S3Flags  `embed:"" prefix:"s3-"`
	AWS      AWSFlags `embed:"" prefix:"aws-"`

	Mail MailFlags `embed:"" prefix:"mail-"`
	Seal SealFlags `embed:"" prefix:"seal-"`
	TLS  TLSFlags  `embed:"" prefix:"tls-"`

	devSigningKey string
}

type PostgresStoreFlags struct {
	ConnString string `help:"PostgreSQL connection string" env:"POSTGRES_CONNECTION_STRING"`

	MaxConns         int32         `help:"maximum number of connections in pool" default:"20"`
	MinConns         int32         `help:"minimum number of connections in pool" default:"2"`
	MaxConnLifetime  time.Duration `help:"maximum connection lifetime" default:"1h"`
	MaxConnIdleTime  time.Duration `help:"maximum connection idle time" default:"30m"`
	StatementTimeout time.Duration `help:"statement timeout, 0 keeps the server default" default:"30s"`

	AutoMigrate bool `help:"run database migrations on startup" default:"false" env:"CASCADE_POSTGRES_AUTO_MIGRATE"`
}

func (s *PostgresStoreFlags) validate() error {
	if s.ConnString == "" {
		return errors.New("PostgreSQL connection string is required (--postgres-conn-string or POSTGRES_CONNECTION_STRING)")
	}
	return nil
}

func (s *PostgresStoreFlags) poolConfig() *postgresstore.PoolConfig {
	return &postgresstore.PoolConfig{
		ConnString:       s.ConnString,
		MaxConns:         s.MaxConns,
		MinConns:         s.MinConns,
		MaxConnLifetime:  s.MaxConnLifetime,
		MaxConnIdleTime:  s.MaxConnIdleTime,
		StatementTimeout: s.StatementTimeout,
		AutoMigrate:      s.AutoMigrate,
	}
}

type S3Flags struct {
	Bucket string `help:"S3 bucket holding documents and sealed PDFs" env:"CASCADE_S3_BUCKET"`
}

type MailFlags struct {
	Transport   string `help:"mail transport (log, ses or sendgrid)" default:"log" env:"CASCADE_MAIL_TRANSPORT" enum:"log,ses,sendgrid"`
	From        string `help:"sender address" default:"EDUZEN <noreply@eduzen.fr>" env:"CASCADE_MAIL_FROM"`
	SendGridKey string `help:"SendGrid API key" env:"SENDGRID_API_KEY"`
}

func (m *MailFlags) validate() error {
	if _, err := mail.ParseAddress(m.From); err != nil {
		return fmt.Errorf("invalid sender address %q: %w", m.From, err)
	}
	if m.Transport == "sendgrid" && m.SendGridKey == "" {
		return errors.New("SendGrid API key is required (--mail-send-grid-key or SENDGRID_API_KEY)")
	}
	return nil
}

type SealFlags struct {
	Cert    string `help:"path to the seal certificate PEM" env:"CASCADE_SEAL_CERT"`
	Key     string `help:"path to the seal key PEM" env:"CASCADE_SEAL_KEY"`
	CertSSM string `help:"SSM parameter holding the seal certificate PEM" env:"CASCADE_SEAL_CERT_SSM"`
	KeySSM  string `help:"SSM parameter holding the seal key PEM" env:"CASCADE_SEAL_KEY_SSM"`
}

func (s *SealFlags) source() ssmcerts.Config {
	return ssmcerts.Config{CertPath: s.Cert, KeyPath: s.Key, CertSSM: s.CertSSM, KeySSM: s.KeySSM}
}

type TLSFlags struct {
	Cert    string `help:"path to TLS cert file" env:"CASCADE_TLS_CERT"`
	Key     string `help:"path to TLS key file" env:"CASCADE_TLS_KEY"`
	CertSSM string `help:"SSM parameter holding the TLS certificate PEM" env:"CASCADE_TLS_CERT_SSM"`
	KeySSM  string `help:"SSM parameter holding the TLS key PEM" env:"CASCADE_TLS_KEY_SSM"`
}

func (t *TLSFlags) source() ssmcerts.Config {
	return ssmcerts.Config{CertPath: t.Cert, KeyPath: t.Key, CertSSM: t.CertSSM, KeySSM: t.KeySSM}
}

func (c *ServerCmd) Validate() error {
	if c.Development {
		return nil
	}
	if len(c.TokenSecret) < minSecretLen {
		return fmt.Errorf("token secret must be at least %d bytes (--token-secret or CASCADE_TOKEN_SECRET)", minSecretLen)
	}
	if len(c.EvidenceSecret) < minSecretLen {
		return fmt.Errorf("evidence secret must be at least %d bytes (--evidence-secret or CASCADE_EVIDENCE_SECRET)", minSecretLen)
	}
	if c.JWTPublicKey == "" {
		return errors.New("member token public key is required (--jwt-public-key or CASCADE_JWT_PUBLIC_KEY)")
	}
	if !c.Seal.source().Configured() {
		return errors.New("seal certificate is required (--seal-cert/--seal-key or --seal-cert-ssm/--seal-key-ssm)")
	}
	if c.BlobType == "s3" && c.S3.Bucket == "" {
		return errors.New("S3 bucket is required (--s3-bucket or CASCADE_S3_BUCKET)")
	}
	if c.BlobType == "memory" {
		if len(c.BlobSecret) < minSecretLen {
			return fmt.Errorf("blob secret must be at least %d bytes (--blob-secret or CASCADE_BLOB_SECRET)", minSecretLen)
		}
		if c.BlobSecret == c.TokenSecret || c.BlobSecret == c.EvidenceSecret {
			return errors.New("blob secret must differ from the token and evidence secrets")
		}
	}
	return c.Mail.validate()
}

// stores groups the persistence backends selected by flags.
type stores struct {
	orgs      store.OrganizationStore
	documents store.DocumentStore
	templates store.TemplateStore
	processes store.ProcessStore
	outbox    store.OutboxStore
	close     func()
}

func (c *ServerCmd) Run(globals *Globals) error {
	log := logger.Setup(globals.Debug || c.Development)
	zlog.Logger = log
	zerolog.DefaultContextLogger = &log

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info().Str("version", globals.Version).Bool("development", c.Development).Msg("Starting server")

	// Setup telemetry if enabled
	var interceptors []connect.Interceptor
	if c.Tracing {
		log.Info().Msg("Tracing is enabled")
		shutdown, err := telemetry.InitTelemetry(ctx, telemetry.Config{
			ServiceName: "cascadesign-server",
			Version:     globals.Version,
			Environment: c.Environment,
			SampleRatio: c.SampleRatio,
		})
		if err != nil {
			log.Warn().Err(err).Msg("Failed to initialize telemetry, continuing without metrics")
			shutdown = func(context.Context) error { return nil }
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdown(shutdownCtx); err != nil {
				log.Error().Err(err).Msg("Failed to shutdown telemetry")
			}
		}()
		otelInterceptor, err := otelconnect.NewInterceptor()
		if err != nil {
			return fmt.Errorf("failed to create OTEL interceptor: %w", err)
		}
		interceptors = append(interceptors, otelInterceptor)
	}

	if c.Development {
		if err := c.developmentDefaults(log); err != nil {
			return err
		}
	}

	var awsConfig *aws.Config
	loadAWS := func() (aws.Config, error) {
		if awsConfig == nil {
			cfg, err := c.AWS.load(ctx)
			if err != nil {
				return aws.Config{}, fmt.Errorf("failed to load AWS config: %w", err)
			}
			awsConfig = &cfg
		}
		return *awsConfig, nil
	}

	st, err := c.createStores(ctx)
	if err != nil {
		return err
	}
	defer st.close()

	var (
		blobs       blob.Store
		blobHandler http.Handler
	)
	switch c.BlobType {
	case "s3":
		cfg, err := loadAWS()
		if err != nil {
			return err
		}
		client := s3.NewFromConfig(cfg, func(o *s3.Options) {
			o.UsePathStyle = c.AWS.EndpointURL != ""
		})
		blobs = blob.NewS3Store(client, c.S3.Bucket)
		log.Info().Str("bucket", c.S3.Bucket).Msg("Using S3 blob store")
	default:
		memBlobs := blob.NewMemoryStore(c.BaseURL, []byte(c.BlobSecret))
		blobs, blobHandler = memBlobs, memBlobs.Handler()
		log.Info().Msg("Using in-memory blob store")
	}

	mailer, err := c.createMailer(loadAWS)
	if err != nil {
		return err
	}

	creds, err := c.loadSeal(ctx, loadAWS)
	if err != nil {
		return err
	}

	issuer, err := tokens.NewIssuer([]byte(c.TokenSecret))
	if err != nil {
		return err
	}

	dispatcher := notify.NewDispatcher(mailer, st.outbox, st.processes, st.documents, st.orgs, blobs, notify.Config{
		BaseURL:  c.BaseURL,
		Interval: c.DispatchInterval,
	})

	orchestrator, err := signing.New(signing.Deps{
		Organizations: st.orgs,
		Documents:     st.documents,
		Templates:     st.templates,
		Processes:     st.processes,
		Outbox:        st.outbox,
		Blobs:         blobs,
		Sealer:        sealer.New(creds),
		Tokens:        issuer,
		Notifier:      dispatcher,
	}, []byte(c.EvidenceSecret))
	if err != nil {
		return err
	}

	scheduler, err := signing.NewExpiryScheduler(orchestrator, c.ExpirySchedule)
	if err != nil {
		return err
	}

	if c.Development {
		if err := c.seedDevelopment(ctx, log, st, blobs); err != nil {
			return err
		}
	}

	verifier, err := auth.NewVerifierFromPEM(c.JWTPublicKey, c.JWTIssuer)
	if err != nil {
		return fmt.Errorf("failed to load member token key: %w", err)
	}

	srv := server.NewServer(orchestrator, server.Config{
		Authenticate:   verifier.Middleware(),
		CORSOrigins:    c.CORSOrigins,
		TrustedOrigins: c.TrustedOrigins,
		Blobs:          blobHandler,
		Interceptors:   interceptors,
	})
	handler, err := srv.Handler(log)
	if err != nil {
		return err
	}

	httpServer := configureHTTPServer(c.Listen, handler)

	var tlsConfigured bool
	if c.TLS.source().Configured() {
		var ssmClient ssmcerts.ParameterAPI
		if c.TLS.CertSSM != "" {
			cfg, err := loadAWS()
			if err != nil {
				return err
			}
			ssmClient = ssm.NewFromConfig(cfg)
		}
		material, err := ssmcerts.Load(ctx, ssmClient, c.TLS.source())
		if err != nil {
			return fmt.Errorf("failed to load TLS certificate: %w", err)
		}
		if httpServer.TLSConfig, err = material.TLSConfig(); err != nil {
			return err
		}
		tlsConfigured = true
	} else {
		// HTTP/2 without TLS for connect clients behind a terminating proxy
		httpServer.Handler = h2c.NewHandler(handler, &http2.Server{})
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return dispatcher.Run(gctx) })
	g.Go(func() error { return scheduler.Run(gctx) })
	g.Go(func() error {
		log.Info().Str("addr", c.Listen).Bool("tls", tlsConfigured).Msg("Starting HTTP server")
		var err error
		if tlsConfigured {
			err = httpServer.ListenAndServeTLS("", "")
		} else {
			err = httpServer.ListenAndServe()
		}
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		log.Info().Msg("Shutting down HTTP server")
		return httpServer.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// developmentDefaults fills secrets and keys so the server starts with no configuration.
func (c *ServerCmd) developmentDefaults(log zerolog.Logger) error {
	log.Warn().Msg("Development mode enabled, never use it in production")

	if c.TokenSecret == "" {
		c.TokenSecret = "dev-mode-token-secret-minimum-32-characters"
	}
	if c.EvidenceSecret == "" {
		c.EvidenceSecret = "dev-mode-evidence-secret-minimum-32-chars"
	}
	if c.BlobSecret == "" {
		c.BlobSecret = "dev-mode-blob-url-secret-minimum-32-chars"
	}

	if c.JWTPublicKey == "" {
		privPEM, pubPEM, err := auth.GenerateSigningKey()
		if err != nil {
			return err
		}
		c.JWTPublicKey = pubPEM
		c.devSigningKey = privPEM

		keyFile, err := os.CreateTemp("", "cascadesign-dev-key-*.pem")
		if err != nil {
			return err
		}
		defer keyFile.Close()
		if _, err := keyFile.WriteString(privPEM); err != nil {
			return err
		}
		log.Info().
			Str("signing_key", keyFile.Name()).
			Msg("Generated member token key, mint tokens with: cascadectl token --signing-key " + keyFile.Name())
	}

	return nil
}

func (c *ServerCmd) createStores(ctx context.Context) (*stores, error) {
	switch c.StoreType {
	case "postgres":
		if err := c.PostgresStore.validate(); err != nil {
			return nil, fmt.Errorf("failed to validate postgres flags: %w", err)
		}
		pool, err := postgresstore.NewPool(ctx, c.PostgresStore.poolConfig())
		if err != nil {
			return nil, fmt.Errorf("failed to create store pool: %w", err)
		}
		documents := postgresstore.NewDocumentStore(pool)
		processes := postgresstore.NewProcessStore(pool)
		zlog.Info().Msg("Using PostgreSQL stores")
		return &stores{
			orgs:      postgresstore.NewOrganizationStore(pool),
			documents: documents,
			templates: documents,
			processes: processes,
			outbox:    processes,
			close:     pool.Close,
		}, nil

	default:
		documents := memorystore.NewDocumentStore()
		processes := memorystore.NewProcessStore(documents)
		zlog.Info().Msg("Using in-memory stores")
		return &stores{
			orgs:      memorystore.NewOrganizationStore(),
			documents: documents,
			templates: documents,
			processes: processes,
			outbox:    processes,
			close:     func() {},
		}, nil
	}
}

func (c *ServerCmd) createMailer(loadAWS func() (aws.Config, error)) (notify.Mailer, error) {
	from, err := mail.ParseAddress(c.Mail.From)
	if err != nil {
		return nil, fmt.Errorf("invalid sender address: %w", err)
	}

	switch c.Mail.Transport {
	case "ses":
		cfg, err := loadAWS()
		if err != nil {
			return nil, err
		}
		zlog.Info().Str("from", from.Address).Msg("Sending emails with SES")
		return notify.NewSESMailer(sesv2.NewFromConfig(cfg), *from), nil
	case "sendgrid":
		zlog.Info().Str("from", from.Address).Msg("Sending emails with SendGrid")
		return notify.NewSendGridMailer(c.Mail.SendGridKey, "", *from), nil
	default:
		zlog.Warn().Msg("Emails are logged, not sent")
		return notify.LogMailer{}, nil
	}
}

func (c *ServerCmd) loadSeal(ctx context.Context, loadAWS func() (aws.Config, error)) (*pki.SealCredentials, error) {
	src := c.Seal.source()
	if !src.Configured() {
		zlog.Warn().Msg("No seal certificate configured, using a self-signed development seal")
		return pki.SelfSigned("EDUZEN Development Seal", "EDUZEN", 365*24*time.Hour)
	}

	var client ssmcerts.ParameterAPI
	if src.CertSSM != "" {
		cfg, err := loadAWS()
		if err != nil {
			return nil, err
		}
		client = ssm.NewFromConfig(cfg)
	}

	material, err := ssmcerts.Load(ctx, client, src)
	if err != nil {
		return nil, fmt.Errorf("failed to load seal certificate: %w", err)
	}
	creds, err := pki.ParseSealer(material.Cert, material.Key)
	if err != nil {
		return nil, err
	}

	zlog.Info().
		Str("subject", creds.Certificate.Subject.String()).
		Time("not_after", creds.Certificate.NotAfter).
		Msg("Loaded seal certificate")
	return creds, nil
}
