package main

import (
	"log"
	"os"

	"github.com/urfave/cli/v2"
)

var configFlag = &cli.StringFlag{
	Name:      "config",
	Usage:     "path to a YAML config file",
	EnvVars:   []string{"RENOVO_CONFIG"},
	TakesFile: true,
}

func main() {
	app := &cli.App{
		Name:  "renoctl",
		Usage: "operator tooling for the renovation marketplace",
		Description: `renoctl talks to the marketplace database directly. It reads the same
   configuration as the API server (RENOVO_CONFIG and RENOVO_* variables).

   renoctl migrate applies the schema and the job queue tables.

   renoctl admin create provisions an administrator account. Admins cannot
   self-register through the API.

   renoctl contractor verify approves or rejects a pending contractor.

   renoctl ledger reconcile compares stored balances with the transaction
   history and reports any drift.

   renoctl credit-cost prints the unlock price table.
`,
		Flags: []cli.Flag{configFlag},
		Commands: []*cli.Command{
			migrateCmd,
			adminCmd,
			contractorCmd,
			ledgerCmd,
			creditCostCmd,
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
