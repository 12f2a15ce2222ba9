package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/urfave/cli/v2"

	"github.com/renovo/backend/internal/ledger"
	"github.com/renovo/backend/internal/repository"
)

var ledgerCmd = &cli.Command{
	Name:  "ledger",
	Usage: "credit ledger maintenance",
	Subcommands: []*cli.Command{
		ledgerReconcileCmd,
	},
}

var ledgerReconcileCmd = &cli.Command{
	Name:  "reconcile",
	Usage: "compare stored balances with transaction history",
	Description: `Without --uid every contractor is checked. The command exits with status 2
   if any balance has drifted from its ledger.`,
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "uid", Usage: "check a single contractor"},
	},
	Action: func(cctx *cli.Context) error {
		var targets []uuid.UUID
		if raw := cctx.String("uid"); raw != "" {
			uid, err := uuid.Parse(raw)
			if err != nil {
				return fmt.Errorf("invalid uid: %w", err)
			}
			targets = append(targets, uid)
		}

		e, err := openEnv(cctx)
		if err != nil {
			return err
		}
		defer e.Close()

		if len(targets) == 0 {
			if targets, err = e.users.ListContractorIDs(cctx.Context); err != nil {
				return err
			}
		}

		svc := ledger.NewService(e.pool, e.users,
			repository.NewProjectRepo(e.pool),
			repository.NewUnlockRepo(e.pool),
			repository.NewCreditRepo(e.pool),
			e.hub, e.log)

		drifted := 0
		for _, uid := range targets {
			rec, err := svc.Reconcile(cctx.Context, uid)
			if err != nil {
				return fmt.Errorf("reconcile %s: %w", uid, err)
			}
			if rec.Balanced() {
				fmt.Fprintf(cctx.App.Writer, "%s  balance=%d entries=%d  %s\n", uid, rec.Balance, rec.Entries, color.GreenString("ok"))
				continue
			}
			drifted++
			fmt.Fprintf(cctx.App.Writer, "%s  balance=%d ledger=%d  %s\n", uid, rec.Balance, rec.LedgerSum,
				color.HiRedString("drift %+d", rec.Drift))
		}
		if drifted > 0 {
			return cli.Exit(fmt.Sprintf("%d of %d contractors drifted", drifted, len(targets)), 2)
		}
		return nil
	},
}
