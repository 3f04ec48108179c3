package commands

import (
	"context"
	"fmt"
	"os"

	"connectrpc.com/connect"

	cascadev1 "github.com/eduzen/cascadesign/api/cascade/v1"
)

type ResendCmd struct {
	ClientFlags `embed:""`

	ProcessID string `arg:"" help:"process ID"`
}

func (r *ResendCmd) Run(ctx context.Context, globals *Globals) error {
	clients, err := r.clients(globals)
	if err != nil {
		return err
	}

	resp, err := clients.Processes.ResendInvitation(ctx, connect.NewRequest(&cascadev1.ResendInvitationRequest{
		ProcessID: r.ProcessID,
	}))
	if err != nil {
		return fmt.Errorf("failed to resend invitation: %w", err)
	}

	if resp.Msg.Sent {
		fmt.Println("Invitation sent to the current signatory")
	} else {
		fmt.Println("Invitation queued, it will be retried in the background")
	}
	return nil
}

type CancelCmd struct {
	ClientFlags `embed:""`

	ProcessID string `arg:"" help:"process ID"`
}

func (c *CancelCmd) Run(ctx context.Context, globals *Globals) error {
	clients, err := c.clients(globals)
	if err != nil {
		return err
	}

	resp, err := clients.Processes.CancelProcess(ctx, connect.NewRequest(&cascadev1.CancelProcessRequest{
		ProcessID: c.ProcessID,
	}))
	if err != nil {
		return fmt.Errorf("failed to cancel process: %w", err)
	}

	fmt.Println("Process cancelled")
	fmt.Println()
	printProcess(os.Stdout, resp.Msg.Process)
	return nil
}
