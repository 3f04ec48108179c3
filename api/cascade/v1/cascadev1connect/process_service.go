// Package cascadev1connect binds the cascade.v1 messages to connect handlers and clients.
package cascadev1connect

import (
	"context"
	"net/http"
	"strings"

	"connectrpc.com/connect"
	cascadev1 "github.com/eduzen/cascadesign/api/cascade/v1"
)

// ProcessServiceName is the fully-qualified name of the ProcessService service.
const ProcessServiceName = "cascade.v1.ProcessService"

// Procedure paths, relative to the server root.
const (
	ProcessServiceCreateProcessProcedure    = "/cascade.v1.ProcessService/CreateProcess"
	ProcessServiceGetProcessProcedure       = "/cascade.v1.ProcessService/GetProcess"
	ProcessServiceResendInvitationProcedure = "/cascade.v1.ProcessService/ResendInvitation"
	ProcessServiceCancelProcessProcedure    = "/cascade.v1.ProcessService/CancelProcess"
)

// ProcessServiceHandler is implemented by the member API server.
type ProcessServiceHandler interface {
	CreateProcess(context.Context, *connect.Request[cascadev1.CreateProcessRequest]) (*connect.Response[cascadev1.CreateProcessResponse], error)
	GetProcess(context.Context, *connect.Request[cascadev1.GetProcessRequest]) (*connect.Response[cascadev1.GetProcessResponse], error)
	ResendInvitation(context.Context, *connect.Request[cascadev1.ResendInvitationRequest]) (*connect.Response[cascadev1.ResendInvitationResponse], error)
	CancelProcess(context.Context, *connect.Request[cascadev1.CancelProcessRequest]) (*connect.Response[cascadev1.CancelProcessResponse], error)
}

// NewProcessServiceHandler builds an HTTP handler from the service implementation.
// It returns the path on which to mount the handler and the handler itself.
func NewProcessServiceHandler(svc ProcessServiceHandler, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = append([]connect.HandlerOption{connect.WithCodec(cascadev1.Codec{})}, opts...)

	createProcess := connect.NewUnaryHandler(ProcessServiceCreateProcessProcedure, svc.CreateProcess, opts...)
	getProcess := connect.NewUnaryHandler(ProcessServiceGetProcessProcedure, svc.GetProcess, opts...)
	resendInvitation := connect.NewUnaryHandler(ProcessServiceResendInvitationProcedure, svc.ResendInvitation, opts...)
	cancelProcess := connect.NewUnaryHandler(ProcessServiceCancelProcessProcedure, svc.CancelProcess, opts...)

	return "/" + ProcessServiceName + "/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case ProcessServiceCreateProcessProcedure:
			createProcess.ServeHTTP(w, r)
		case ProcessServiceGetProcessProcedure:
			getProcess.ServeHTTP(w, r)
		case ProcessServiceResendInvitationProcedure:
			resendInvitation.ServeHTTP(w, r)
		case ProcessServiceCancelProcessProcedure:
			cancelProcess.ServeHTTP(w, r)
		default:
			http.NotFound(w, r)
		}
	})
}

// ProcessServiceClient is a client for the cascade.v1.ProcessService service.
type ProcessServiceClient interface {
	CreateProcess(context.Context, *connect.Request[cascadev1.CreateProcessRequest]) (*connect.Response[cascadev1.CreateProcessResponse], error)
	GetProcess(context.Context, *connect.Request[cascadev1.GetProcessRequest]) (*connect.Response[cascadev1.GetProcessResponse], error)
	ResendInvitation(context.Context, *connect.Request[cascadev1.ResendInvitationRequest]) (*connect.Response[cascadev1.ResendInvitationResponse], error)
	CancelProcess(context.Context, *connect.Request[cascadev1.CancelProcessRequest]) (*connect.Response[cascadev1.CancelProcessResponse], error)
}

// NewProcessServiceClient constructs a client for the service at baseURL.
func NewProcessServiceClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) ProcessServiceClient {
	baseURL = strings.TrimRight(baseURL, "/")
	opts = append([]connect.ClientOption{connect.WithCodec(cascadev1.Codec{})}, opts...)
	return &processServiceClient{
		createProcess:    connect.NewClient[cascadev1.CreateProcessRequest, cascadev1.CreateProcessResponse](httpClient, baseURL+ProcessServiceCreateProcessProcedure, opts...),
		getProcess:       connect.NewClient[cascadev1.GetProcessRequest, cascadev1.GetProcessResponse](httpClient, baseURL+ProcessServiceGetProcessProcedure, opts...),
		resendInvitation: connect.NewClient[cascadev1.ResendInvitationRequest, cascadev1.ResendInvitationResponse](httpClient, baseURL+ProcessServiceResendInvitationProcedure, opts...),
		cancelProcess:    connect.NewClient[cascadev1.CancelProcessRequest, cascadev1.CancelProcessResponse](httpClient, baseURL+ProcessServiceCancelProcessProcedure, opts...),
	}
}

type processServiceClient struct {
	createProcess    *connect.Client[cascadev1.CreateProcessRequest, cascadev1.CreateProcessResponse]
	getProcess       *connect.Client[cascadev1.GetProcessRequest, cascadev1.GetProcessResponse]
	resendInvitation *connect.Client[cascadev1.ResendInvitationRequest, cascadev1.ResendInvitationResponse]
	cancelProcess    *connect.Client[cascadev1.CancelProcessRequest, cascadev1.CancelProcessResponse]
}

func (c *processServiceClient) CreateProcess(ctx context.Context, req *connect.Request[cascadev1.CreateProcessRequest]) (*connect.Response[cascadev1.CreateProcessResponse], error) {
	return c.createProcess.CallUnary(ctx, req)
}

func (c *processServiceClient) GetProcess(ctx context.Context, req *connect.Request[cascadev1.GetProcessRequest]) (*connect.Response[cascadev1.GetProcessResponse], error) {
	return c.getProcess.CallUnary(ctx, req)
}

func (c *processServiceClient) ResendInvitation(ctx context.Context, req *connect.Request[cascadev1.ResendInvitationRequest]) (*connect.Response[cascadev1.ResendInvitationResponse], error) {
	return c.resendInvitation.CallUnary(ctx, req)
}

func (c *processServiceClient) CancelProcess(ctx context.Context, req *connect.Request[cascadev1.CancelProcessRequest]) (*connect.Response[cascadev1.CancelProcessResponse], error) {
	return c.cancelProcess.CallUnary(ctx, req)
}
