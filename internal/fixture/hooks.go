package fixture

import (
	"log/slog"

	"github.com/forgo/taskhooks/internal/model"
)

// LogTransaction logs the transaction about to run. It does not modify tx.
func (c *Controller) LogTransaction(s *model.Session, tx *model.Transaction) {
	c.logger.Info("transaction",
		slog.String("method", tx.Request.Method),
		slog.String("path", tx.FullPath),
		slog.Int("expected_status", int(tx.Expected.StatusCode)),
		slog.String("hook", tx.Name),
		slog.String("session", s.State()),
	)
}

// InjectAuth sets the session bearer token on protected paths. It reports
// whether the header was set. Transactions whose rule supplies its own
// Authorization are left alone so that rule wins in either hook order.
func (c *Controller) InjectAuth(s *model.Session, tx *model.Transaction) bool {
	if !s.Authenticated() {
		return false
	}
	if !c.matcher.Protected(tx.FullPath) {
		return false
	}
	if r, ok := c.rules[tx.Name]; ok && r.Authorization != "" {
		return false
	}
	tx.Request.SetHeader("Authorization", s.BearerToken())
	return true
}

// ApplyNamed applies the rule registered for tx.Name: body first, then
// Authorization, then the seeded task path. It reports whether a rule exists.
func (c *Controller) ApplyNamed(s *model.Session, tx *model.Transaction) (bool, error) {
	r, ok := c.rules[tx.Name]
	if !ok {
		return false, nil
	}

	if r.Body != nil {
		if err := tx.Request.SetJSONBody(r.Body(s, c.nextAccountToken())); err != nil {
			return true, err
		}
	}
	if r.Authorization != "" {
		tx.Request.SetHeader("Authorization", r.Authorization)
	}
	if r.UseSeededTask && s.HasSeededTask() {
		seeded := c.seededPath(s)
		tx.FullPath = replacePlaceholder(tx.FullPath, c.placeholder, seeded)
		tx.Request.URI = replacePlaceholder(tx.Request.URI, c.placeholder, seeded)
	}

	if r.Note != "" {
		c.logger.Debug("fixture applied", slog.String("hook", tx.Name), slog.String("note", r.Note))
	}
	return true, nil
}

// seededPath is the placeholder path with its last segment replaced by the seeded id
func (c *Controller) seededPath(s *model.Session) string {
	p := c.placeholder
	for i := len(p) - 1; i >= 0; i-- {
		if p[i] == '/' {
			return p[:i+1] + s.TaskID.String()
		}
	}
	return s.TaskID.String()
}
