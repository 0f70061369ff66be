package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/threadx/internal/shared"
	"github.com/urfave/cli/v3"
)

// SetupConfig writes the embedded config template to the --config path.
func (r *Runner) SetupConfig(ctx context.Context, cmd *cli.Command) error {
	path := r.configPath
	if path == "" {
		path = "config.toml"
	}

	if err := shared.CreateConfigFile(path); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrInvalidArgument, err)
	}
	r.logger.Info("config file created", "path", path)

	r.writePlain("✓ Config written to %s\n", path)
	r.writePlainln("Next steps:")
	r.writePlain("1. Set credentials.x.client_id (or THREADX_CLIENT_ID)\n")
	r.writePlain("2. Run 'threadx setup database'\n")
	return r.writePlain("3. Run 'threadx auth login'\n")
}

// SetupDatabase initializes the database and runs migrations.
func (r *Runner) SetupDatabase(ctx context.Context, cmd *cli.Command) error {
	r.logger.Info("initializing database", "path", r.config.Database.Path)

	db, err := r.database()
	if err != nil {
		return err
	}
	version, err := shared.SchemaVersion(db)
	if err != nil {
		return err
	}

	r.logger.Infof("setup complete for database: %v", r.config.Database.Path)
	return r.writePlain("✓ Database ready at %s (schema version %d)\n", r.config.Database.Path, version)
}
