package logger

import (
	"context"
	"net/http"
	"os"
	"strings"
	"time"

	"connectrpc.com/connect"
	"github.com/rs/zerolog"

	"github.com/eduzen/cascadesign/internal/auth"
)

// Setup returns the process logger: JSON in production, console output at debug
// level in development.
func Setup(dev bool) zerolog.Logger {
	var logger zerolog.Logger
	level := zerolog.InfoLevel
	if dev {
		level = zerolog.DebugLevel
	}

	logger = zerolog.New(os.Stderr).Level(level).With().Timestamp().Caller().Logger()

	if dev {
		logger = logger.Output(zerolog.ConsoleWriter{Out: os.Stderr, FormatTimestamp: func(i any) string {
			return time.Now().Format(time.RFC3339)
		}}).Level(level).With().Stack().Logger()
	}

	return logger
}

var _ connect.Interceptor = (*ConnectRequests)(nil)

// ConnectRequests logs every member API call and attaches a request logger to the context.
type ConnectRequests struct {
	logger zerolog.Logger
}

func NewConnectRequests(logger zerolog.Logger) *ConnectRequests {
	return &ConnectRequests{logger: logger}
}

func (c *ConnectRequests) WrapUnary(next connect.UnaryFunc) connect.UnaryFunc {
	return connect.UnaryFunc(func(
		ctx context.Context,
		req connect.AnyRequest,
	) (connect.AnyResponse, error) {
		started := time.Now()

		fields := c.logger.With().
			Str("procedure", req.Spec().Procedure).
			Str("protocol", req.Peer().Protocol).
			Str("addr", req.Peer().Addr)
		if member := auth.MemberFromContext(ctx); member != nil {
			fields = fields.
				Str("org_id", member.OrgID.String()).
				Str("member_id", member.MemberID.String())
		}
		ctx = fields.Logger().WithContext(ctx)

		resp, err := next(ctx, req)

		if err != nil {
			event := zerolog.Ctx(ctx).Error()
			if code := connect.CodeOf(err); code != connect.CodeInternal && code != connect.CodeUnknown {
				event = zerolog.Ctx(ctx).Warn()
			}
			event.Err(err).
				Str("code", connect.CodeOf(err).String()).
				Dur("duration", time.Since(started)).
				Msg("rpc call")

			return resp, err
		}

		zerolog.Ctx(ctx).Info().
			Dur("duration", time.Since(started)).
			Msg("rpc call")

		return resp, err
	})
}

// The member API is unary only, streams pass through.
func (c *ConnectRequests) WrapStreamingClient(next connect.StreamingClientFunc) connect.StreamingClientFunc {
	return next
}

func (c *ConnectRequests) WrapStreamingHandler(next connect.StreamingHandlerFunc) connect.StreamingHandlerFunc {
	return next
}

// HTTPRequests is middleware logging plain HTTP requests, used for the signer routes.
func HTTPRequests(logger zerolog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		ctx := logger.With().
			Str("method", r.Method).
			Str("path", redactPath(r.URL.Path)).
			Str("addr", r.RemoteAddr).
			Logger().WithContext(r.Context())

		next.ServeHTTP(rec, r.WithContext(ctx))

		event := zerolog.Ctx(ctx).Info()
		if rec.status >= http.StatusInternalServerError {
			event = zerolog.Ctx(ctx).Error()
		}
		event.
			Int("status", rec.status).
			Dur("duration", time.Since(started)).
			Msg("http request")
	})
}

// redactPath hides signer tokens, which are bearer credentials.
func redactPath(path string) string {
	rest, ok := strings.CutPrefix(path, "/sign/")
	if !ok || rest == "" {
		return path
	}
	if _, tail, found := strings.Cut(rest, "/"); found {
		return "/sign/{token}/" + tail
	}
	return "/sign/{token}"
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}
