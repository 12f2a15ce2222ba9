package main

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/renovo/backend/internal/database"
	"github.com/renovo/backend/internal/jobs"
)

var migrateCmd = &cli.Command{
	Name:  "migrate",
	Usage: "apply database and job queue migrations",
	Action: func(cctx *cli.Context) error {
		e, err := openEnv(cctx)
		if err != nil {
			return err
		}
		defer e.Close()

		if err := database.Migrate(cctx.Context, e.pool); err != nil {
			return err
		}
		if err := jobs.Migrate(cctx.Context, e.pool); err != nil {
			return err
		}
		fmt.Fprintln(cctx.App.Writer, "migrations applied")
		return nil
	},
}
