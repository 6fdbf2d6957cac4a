package fixture

import (
	"context"
	"log/slog"

	"github.com/forgo/taskhooks/internal/hookserver"
	"github.com/forgo/taskhooks/internal/model"
)

// Register binds c to the runner lifecycle using s as the run's session:
// beforeAll runs Setup, beforeEach logs and injects auth, each named rule runs
// as a before hook and afterAll runs Teardown. The hooks never return errors;
// problems are logged and the suite carries on.
func Register(reg *hookserver.Registry, c *Controller, s *model.Session) {
	reg.BeforeAll(func(ctx context.Context, txs []*model.Transaction) error {
		c.logger.Info("starting API tests", slog.Int("transactions", len(txs)))
		c.Setup(ctx, s)
		return nil
	})

	reg.BeforeEach(func(_ context.Context, tx *model.Transaction) error {
		c.LogTransaction(s, tx)
		c.InjectAuth(s, tx)
		return nil
	})

	for _, name := range c.RuleNames() {
		reg.Before(name, func(_ context.Context, tx *model.Transaction) error {
			if _, err := c.ApplyNamed(s, tx); err != nil {
				c.logger.Error("fixture failed", slog.String("hook", tx.Name), slog.String("error", err.Error()))
			}
			return nil
		})
	}

	reg.AfterAll(func(ctx context.Context, _ []*model.Transaction) error {
		c.logger.Info("API tests completed")
		c.Teardown(ctx, s)
		return nil
	})
}
