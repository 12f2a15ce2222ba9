package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/urfave/cli/v2"

	"github.com/renovo/backend/internal/admin"
	"github.com/renovo/backend/internal/auth"
	"github.com/renovo/backend/internal/jobs"
	"github.com/renovo/backend/internal/models"
)

var adminCmd = &cli.Command{
	Name:  "admin",
	Usage: "manage administrator accounts",
	Subcommands: []*cli.Command{
		adminCreateCmd,
	},
}

var adminCreateOpts struct {
	email    string
	password string
	name     string
}

var adminCreateCmd = &cli.Command{
	Name:  "create",
	Usage: "create an administrator",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "email", Required: true, Destination: &adminCreateOpts.email},
		&cli.StringFlag{Name: "password", Required: true, EnvVars: []string{"RENOVO_ADMIN_PASSWORD"}, Destination: &adminCreateOpts.password},
		&cli.StringFlag{Name: "name", Value: "Administrator", Destination: &adminCreateOpts.name},
	},
	Action: func(cctx *cli.Context) error {
		e, err := openEnv(cctx)
		if err != nil {
			return err
		}
		defer e.Close()

		svc := auth.NewService(e.users, e.hub, e.cfg.Auth, e.log)
		u, err := svc.CreateAdmin(cctx.Context, adminCreateOpts.email, adminCreateOpts.password, adminCreateOpts.name)
		if err != nil {
			return err
		}
		fmt.Fprintf(cctx.App.Writer, "created admin %s (%s)\n", u.Email, u.UID)
		return nil
	},
}

var contractorCmd = &cli.Command{
	Name:  "contractor",
	Usage: "contractor account operations",
	Subcommands: []*cli.Command{
		contractorVerifyCmd,
	},
}

var verifyOpts struct {
	uid    string
	status string
	notes  string
}

var contractorVerifyCmd = &cli.Command{
	Name:  "verify",
	Usage: "approve or reject a contractor",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "uid", Required: true, Destination: &verifyOpts.uid},
		&cli.StringFlag{Name: "status", Value: models.VerificationApproved, Usage: "approved or rejected", Destination: &verifyOpts.status},
		&cli.StringFlag{Name: "notes", Destination: &verifyOpts.notes},
	},
	Action: func(cctx *cli.Context) error {
		uid, err := uuid.Parse(verifyOpts.uid)
		if err != nil {
			return fmt.Errorf("invalid uid: %w", err)
		}
		e, err := openEnv(cctx)
		if err != nil {
			return err
		}
		defer e.Close()

		// Reconcile jobs are picked up by the API process; without a running
		// queue client the enqueuer is a no-op.
		svc := admin.NewService(e.users, jobs.NewEnqueuer(nil), e.hub, e.log)
		operator := models.Actor{Role: models.RoleAdmin}
		u, err := svc.SetVerification(cctx.Context, operator, uid, verifyOpts.status, verifyOpts.notes)
		if err != nil {
			return err
		}
		line := fmt.Sprintf("%s is now %s", u.DisplayName(), u.VerificationStatus)
		if u.VerificationStatus == models.VerificationApproved {
			line = color.GreenString(line)
		} else {
			line = color.YellowString(line)
		}
		fmt.Fprintln(cctx.App.Writer, line)
		return nil
	},
}
