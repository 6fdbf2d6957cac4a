package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/forgo/taskhooks/internal/fixture"
	"github.com/forgo/taskhooks/internal/hookserver"
	"github.com/forgo/taskhooks/internal/model"
	"github.com/forgo/taskhooks/internal/taskapi"
)

func newServeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve [hookfiles...]",
		Short: "Run the hook worker for a contract run",
		Long: `serve listens for the contract runner on HOOKS_HOST:HOOKS_PORT and runs the
fixture hooks for every transaction until interrupted. Hookfile arguments
passed by the runner are accepted and logged.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return a.serve(ctx, args)
		},
	}

	cmd.Flags().String("host", "", "hook server host (overrides HOOKS_HOST)")
	cmd.Flags().Int("port", 0, "hook server port (overrides HOOKS_PORT)")
	cmd.Flags().String("path-match", "", "protected path matching: substring or segment")

	return cmd
}

func (a *app) serve(ctx context.Context, hookfiles []string) error {
	a.logger.Info("starting hook worker",
		slog.String("addr", a.cfg.HooksAddr()),
		slog.String("base_url", a.cfg.Service.BaseURL),
		slog.String("path_match", a.cfg.Hooks.PathMatch),
		slog.Any("hookfiles", hookfiles),
		slog.String("version", version),
	)

	client := taskapi.New(a.cfg.Service, a.logger)
	ctrl := fixture.New(fixture.ConfigFrom(a.cfg, client, a.logger))
	session := model.NewSession()

	reg := hookserver.NewRegistry()
	fixture.Register(reg, ctrl, session)

	srv := hookserver.New(a.cfg.HooksAddr(), reg, a.logger)
	if err := srv.ListenAndServe(ctx); err != nil {
		a.logger.Error("hook server error", slog.String("error", err.Error()))
		return err
	}

	a.logger.Info("hook worker exited")
	return nil
}
