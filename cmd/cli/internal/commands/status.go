package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"connectrpc.com/connect"

	cascadev1 "github.com/eduzen/cascadesign/api/cascade/v1"
	"github.com/eduzen/cascadesign/internal/client"
)

type StatusCmd struct {
	ClientFlags `embed:""`

	ProcessID string `arg:"" help:"process ID"`
	Evidence  bool   `help:"include signature evidence" default:"false"`
	Watch     bool   `help:"Watch for changes (refresh every 5 seconds)" default:"false"`
}

func (s *StatusCmd) Run(ctx context.Context, globals *Globals) error {
	clients, err := s.clients(globals)
	if err != nil {
		return err
	}

	if s.Watch {
		return watchProcess(ctx, clients, s.ProcessID, s.Evidence)
	}
	return showProcess(ctx, clients, s.ProcessID, s.Evidence)
}

func showProcess(ctx context.Context, clients *client.Clients, processID string, evidence bool) error {
	resp, err := clients.Processes.GetProcess(ctx, connect.NewRequest(&cascadev1.GetProcessRequest{
		ProcessID:       processID,
		IncludeEvidence: evidence,
	}))
	if err != nil {
		return fmt.Errorf("failed to get process: %w", err)
	}

	printProcess(os.Stdout, resp.Msg.Process)
	if evidence {
		fmt.Println()
		printEvidence(os.Stdout, resp.Msg.Evidence)
	}
	return nil
}

func watchProcess(ctx context.Context, clients *client.Clients, processID string, evidence bool) error {
	fmt.Println("Watching process (press Ctrl+C to stop)...")
	fmt.Println()

	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	if err := showProcess(ctx, clients, processID, evidence); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			fmt.Print("\033[2J\033[H") // Clear screen and move cursor to top
			fmt.Printf("Process (updated at %s)\n", time.Now().Format("15:04:05"))
			fmt.Println()

			if err := showProcess(ctx, clients, processID, evidence); err != nil {
				fmt.Printf("Error updating process: %v\n", err)
			}
		}
	}
}

func printProcess(w io.Writer, p *cascadev1.Process) {
	fmt.Fprintf(w, "Process:   %s\n", p.ProcessID)
	fmt.Fprintf(w, "Document:  %s\n", p.DocumentID)
	if p.Title != "" {
		fmt.Fprintf(w, "Title:     %s\n", p.Title)
	}
	fmt.Fprintf(w, "Status:    %s (%d/%d signed)\n", strings.ToUpper(p.Status), signedCount(p), p.TotalSignatories)
	if p.ExpiresAt != nil {
		fmt.Fprintf(w, "Expires:   %s\n", p.ExpiresAt.Format("2006-01-02 15:04:05"))
	}
	fmt.Fprintln(w)

	fmt.Fprintf(w, "%-3s %-30s %-35s %-20s\n", "#", "Name", "Email", "Signed At")
	fmt.Fprintln(w, strings.Repeat("─", 90))

	for _, s := range p.Signatories {
		signedAt := "-"
		switch {
		case s.SignedAt != nil:
			signedAt = s.SignedAt.Format("2006-01-02 15:04:05")
		case s.OrderIndex == p.CurrentPosition && !terminal(p.Status):
			signedAt = "waiting"
		}

		fmt.Fprintf(w, "%-3d %-30s %-35s %-20s\n",
			s.OrderIndex+1,
			truncate(s.Name, 30),
			truncate(s.Email, 35),
			signedAt)
	}
}

func printEvidence(w io.Writer, evidence []*cascadev1.Evidence) {
	if len(evidence) == 0 {
		fmt.Fprintln(w, "No evidence recorded.")
		return
	}

	fmt.Fprintf(w, "%-3s %-30s %-16s %-20s %-16s\n", "#", "Signer", "IP", "Recorded At", "PDF Hash")
	fmt.Fprintln(w, strings.Repeat("─", 90))
	for _, e := range evidence {
		fmt.Fprintf(w, "%-3d %-30s %-16s %-20s %-16s\n",
			e.Position+1,
			truncate(e.SignerEmail, 30),
			e.IP,
			e.CreatedAt.Format("2006-01-02 15:04:05"),
			truncate(e.PDFHash, 16))
	}
}

func signedCount(p *cascadev1.Process) int {
	n := 0
	for _, s := range p.Signatories {
		if s.SignedAt != nil {
			n++
		}
	}
	return n
}

func terminal(status string) bool {
	switch status {
	case "completed", "cancelled", "expired":
		return true
	}
	return false
}

func truncate(s string, n int) string {
	if len(s) > n {
		return s[:n-3] + "..."
	}
	return s
}
