package client

import (
	"net/http"
	"time"

	"connectrpc.com/connect"

	"github.com/eduzen/cascadesign/api/cascade/v1/cascadev1connect"
)

// Config holds common client configuration
type Config struct {
	ServerURL string
	Timeout   time.Duration
	Debug     bool
}

// Clients holds the member API clients
type Clients struct {
	Processes cascadev1connect.ProcessServiceClient
}

// NewClients creates new member API clients with the given configuration
func NewClients(config Config, opts ...connect.ClientOption) *Clients {
	httpClient := &http.Client{
		Timeout: config.Timeout,
	}

	return &Clients{
		Processes: cascadev1connect.NewProcessServiceClient(httpClient, config.ServerURL, opts...),
	}
}

// DefaultConfig returns a default client configuration
func DefaultConfig() Config {
	return Config{
		ServerURL: "http://localhost:8080",
		Timeout:   2 * time.Minute,
		Debug:     false,
	}
}
