package main

import (
	"context"
	"errors"
	"io/fs"

	"github.com/alecthomas/kong"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/eduzen/cascadesign/cmd/server/internal/commands"
)

var (
	version = "dev"
	cli     struct {
		Debug     bool                  `help:"Enable debug mode."`
		Version   kong.VersionFlag
		Server    commands.ServerCmd    `cmd:"" help:"Start the signing server"`
		Migrate   commands.MigrateCmd   `cmd:"" help:"Apply PostgreSQL migrations"`
		Bootstrap commands.BootstrapCmd `cmd:"" help:"Create the S3 bucket and SES identity (LocalStack)"`
	}
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Fatal().Err(err).Msg("failed to load .env")
	}

	ctx := context.Background()
	cmd := kong.Parse(&cli,
		kong.Vars{
			"version": version,
		},
		kong.BindTo(ctx, (*context.Context)(nil)))
	err := cmd.Run(&commands.Globals{Debug: cli.Debug, Version: version})
	cmd.FatalIfErrorf(err)
}
