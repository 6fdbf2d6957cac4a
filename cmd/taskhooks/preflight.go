package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/forgo/taskhooks/internal/fixture"
	"github.com/forgo/taskhooks/internal/model"
	"github.com/forgo/taskhooks/internal/taskapi"
)

// ErrSetupFailed is returned by preflight when no token could be obtained
var ErrSetupFailed = errors.New("setup failed")

func newPreflightCmd(a *app) *cobra.Command {
	var keep bool

	cmd := &cobra.Command{
		Use:   "preflight",
		Short: "Run setup and teardown once against the task service",
		Long: `preflight provisions an account, logs in and seeds a task exactly as a
contract run would, then deletes the task and logs out. It exits non-zero
when setup could not obtain a token.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return a.preflight(ctx, keep)
		},
	}

	cmd.Flags().BoolVar(&keep, "keep", false, "keep the seeded task and session token")

	return cmd
}

func (a *app) preflight(ctx context.Context, keep bool) error {
	client := taskapi.New(a.cfg.Service, a.logger)
	ctrl := fixture.New(fixture.ConfigFrom(a.cfg, client, a.logger))
	session := model.NewSession()

	setup := ctrl.Setup(ctx, session)
	if keep {
		a.logger.Info("keeping seeded data",
			slog.String("email", session.Email),
			slog.String("task_id", session.TaskID.String()),
		)
	} else {
		ctrl.Teardown(ctx, session)
		if session.Authenticated() {
			if err := client.Logout(ctx, session.Token); err != nil {
				a.logger.Warn("logout failed", slog.String("error", err.Error()))
			}
		}
	}

	if setup.Outcome == fixture.OutcomeFailed {
		return fmt.Errorf("%w against %s", ErrSetupFailed, client.BaseURL())
	}
	a.logger.Info("preflight finished", slog.String("outcome", string(setup.Outcome)))
	return nil
}
