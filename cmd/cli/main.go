package main

import (
	"context"
	"os"
	"os/signal"

	"github.com/alecthomas/kong"

	"github.com/eduzen/cascadesign/cmd/cli/internal/commands"
)

var (
	version = "dev"
	cli     struct {
		Create  commands.CreateCmd `cmd:"" help:"Start a signing process from a YAML file"`
		Status  commands.StatusCmd `cmd:"" help:"Show the progress of a signing process"`
		Resend  commands.ResendCmd `cmd:"" help:"Resend the invitation of the current signatory"`
		Cancel  commands.CancelCmd `cmd:"" help:"Cancel a signing process"`
		Token   commands.TokenCmd  `cmd:"" help:"Generate a member token"`
		Keygen  commands.KeygenCmd `cmd:"" help:"Generate a member token key pair"`
		Debug   bool               `help:"Enable debug mode."`
		Version kong.VersionFlag
	}
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	cmd := kong.Parse(&cli,
		kong.Name("cascadectl"),
		kong.Vars{
			"version": version,
		},
		kong.BindTo(ctx, (*context.Context)(nil)))
	err := cmd.Run(&commands.Globals{Debug: cli.Debug, Version: version})
	cmd.FatalIfErrorf(err)
}
