package commands

import (
	"context"
	"fmt"
	"os"
	"time"

	"connectrpc.com/connect"
	"gopkg.in/yaml.v3"

	cascadev1 "github.com/eduzen/cascadesign/api/cascade/v1"
)

// ProcessConfig is the YAML description of a signing process. Signatories
// sign in the order they are listed.
type ProcessConfig struct {
	DocumentID  string            `yaml:"document"`
	Title       string            `yaml:"title"`
	ExpiresIn   time.Duration     `yaml:"expiresIn"`
	Signatories []SignatoryConfig `yaml:"signatories"`
}

type SignatoryConfig struct {
	Name  string `yaml:"name"`
	Email string `yaml:"email"`
	Zone  string `yaml:"zone"`
}

type CreateCmd struct {
	ClientFlags `embed:""`

	Config    string        `arg:"" help:"YAML process file" type:"existingfile"`
	Document  string        `help:"document ID, overrides the file"`
	ExpiresIn time.Duration `help:"lifetime of the process, overrides the file"`
	Watch     bool          `help:"watch the process after creating it" default:"false"`
}

func (c *CreateCmd) Run(ctx context.Context, globals *Globals) error {
	cfg, err := loadProcessConfig(c.Config)
	if err != nil {
		return fmt.Errorf("failed to load process file: %w", err)
	}
	if c.Document != "" {
		cfg.DocumentID = c.Document
	}
	if c.ExpiresIn > 0 {
		cfg.ExpiresIn = c.ExpiresIn
	}

	clients, err := c.clients(globals)
	if err != nil {
		return err
	}

	resp, err := clients.Processes.CreateProcess(ctx, connect.NewRequest(cfg.request(time.Now())))
	if err != nil {
		return fmt.Errorf("failed to create process: %w", err)
	}

	fmt.Printf("Process created with ID: %s\n", resp.Msg.Process.ProcessID)
	if !resp.Msg.FirstEmailSent {
		fmt.Println("Warning: the first invitation was not sent yet, it will be retried in the background")
	}
	fmt.Println()
	printProcess(os.Stdout, resp.Msg.Process)

	if c.Watch {
		return watchProcess(ctx, clients, resp.Msg.Process.ProcessID, false)
	}
	return nil
}

func loadProcessConfig(path string) (*ProcessConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg ProcessConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (cfg *ProcessConfig) request(now time.Time) *cascadev1.CreateProcessRequest {
	req := &cascadev1.CreateProcessRequest{
		DocumentID: cfg.DocumentID,
		Title:      cfg.Title,
	}
	if cfg.ExpiresIn > 0 {
		expires := now.Add(cfg.ExpiresIn).UTC()
		req.ExpiresAt = &expires
	}
	for i, s := range cfg.Signatories {
		req.Signatories = append(req.Signatories, cascadev1.SignatoryInput{
			Email:      s.Email,
			Name:       s.Name,
			OrderIndex: i,
			ZoneID:     s.Zone,
		})
	}
	return req
}
