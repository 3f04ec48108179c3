package server

import (
	"net/http"

	"connectrpc.com/connect"
	connectcors "connectrpc.com/cors"
	"filippo.io/csrf"
	"github.com/klauspost/compress/gzhttp"
	"github.com/rs/cors"
	"github.com/rs/zerolog"

	"github.com/eduzen/cascadesign/api/cascade/v1/cascadev1connect"
	httpmiddleware "github.com/eduzen/cascadesign/internal/http"
	"github.com/eduzen/cascadesign/internal/logger"
	"github.com/eduzen/cascadesign/internal/signing"
)

// Config wires the HTTP surface around the orchestrator.
type Config struct {
	// Authenticate verifies member credentials on the member API.
	Authenticate func(http.Handler) http.Handler

	CORSOrigins []string

	// TrustedOrigins are extra origins allowed to post to the signer routes.
	TrustedOrigins []string

	// Blobs serves local blob URLs in development, mounted under /blobs/.
	Blobs http.Handler

	Interceptors []connect.Interceptor
}

// Server serves the member API and the signer routes.
type Server struct {
	processes *ProcessServiceServer
	signer    *SignerHandlers
	cfg       Config
}

// NewServer creates a server backed by orchestrator.
func NewServer(orchestrator *signing.Orchestrator, cfg Config) *Server {
	return &Server{
		processes: NewProcessServiceServer(orchestrator),
		signer:    NewSignerHandlers(orchestrator),
		cfg:       cfg,
	}
}

// Handler returns the HTTP handler for the server
func (s *Server) Handler(log zerolog.Logger) (http.Handler, error) {
	mux := http.NewServeMux()

	// Health check endpoint for load balancer
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	interceptors := append([]connect.Interceptor{logger.NewConnectRequests(log)}, s.cfg.Interceptors...)
	processPath, processHandler := cascadev1connect.NewProcessServiceHandler(
		s.processes,
		connect.WithInterceptors(interceptors...),
	)
	authenticate := s.cfg.Authenticate
	if authenticate == nil {
		authenticate = func(next http.Handler) http.Handler { return next }
	}
	mux.Handle(processPath, withCORS(s.cfg.CORSOrigins, authenticate(processHandler)))

	signerMux := http.NewServeMux()
	s.signer.Register(signerMux)

	protection := csrf.New()
	for _, origin := range s.cfg.TrustedOrigins {
		if err := protection.AddTrustedOrigin(origin); err != nil {
			return nil, err
		}
	}
	signerHandler := httpmiddleware.RequestMetadataMiddleware()(signerMux)
	signerHandler = gzhttp.GzipHandler(protection.Handler(signerHandler))
	mux.Handle("/sign/", logger.HTTPRequests(log, signerHandler))

	if s.cfg.Blobs != nil {
		mux.Handle("/blobs/", logger.HTTPRequests(log, s.cfg.Blobs))
	}

	return mux, nil
}

// withCORS adds CORS support to a Connect HTTP handler.
func withCORS(allowedOrigins []string, h http.Handler) http.Handler {
	middleware := cors.New(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: connectcors.AllowedMethods(),
		AllowedHeaders: append(connectcors.AllowedHeaders(), "Authorization"),
		ExposedHeaders: connectcors.ExposedHeaders(),
	})
	return middleware.Handler(h)
}
