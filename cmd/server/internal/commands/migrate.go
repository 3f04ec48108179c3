package commands

import (
	"context"
	"fmt"

	"github.com/eduzen/cascadesign/internal/logger"
	postgresstore "github.com/eduzen/cascadesign/internal/store/postgres"
)

type MigrateCmd struct {
	PostgresStore PostgresStoreFlags `embed:"" prefix:"postgres-"`
}

func (c *MigrateCmd) Run(ctx context.Context, globals *Globals) error {
	log := logger.Setup(globals.Debug)

	if err := c.PostgresStore.validate(); err != nil {
		return err
	}

	cfg := c.PostgresStore.poolConfig()
	cfg.AutoMigrate = false

	pool, err := postgresstore.NewPool(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}
	defer pool.Close()

	if err := postgresstore.RunMigrations(ctx, pool); err != nil {
		return err
	}

	log.Info().Msg("Database is up to date")
	return nil
}
