package fixture

import (
	"context"
	"log/slog"

	"github.com/forgo/taskhooks/internal/model"
	"github.com/forgo/taskhooks/pkg/jwt"
)

// Setup provisions a fresh account, logs in and creates one task, recording
// the results on s. It is best effort: failures are reported, never returned.
// Setup's outcome is failed whenever no token was obtained.
func (c *Controller) Setup(ctx context.Context, s *model.Session) *Report {
	rep := newReport("setup", c.now())

	tok := c.nextAccountToken()
	s.Username = c.account.Prefix + tok
	s.Email = c.account.Prefix + tok + "@" + c.account.EmailDomain
	s.Password = c.account.Password

	c.logger.Info("setting up test environment", slog.String("username", s.Username), slog.String("email", s.Email))

	rep.add(c.register(ctx, s))
	rep.add(c.login(ctx, s))
	rep.add(c.createTask(ctx, s))

	rep.finish(c.now())
	if !s.Authenticated() {
		rep.Outcome = OutcomeFailed
	}
	c.logger.Log(ctx, rep.level(), "setup finished",
		slog.Any("report", rep),
		slog.String("session", s.State()),
		slog.String("task_id", s.TaskID.String()),
	)
	return rep
}

func (c *Controller) register(ctx context.Context, s *model.Session) Step {
	start := c.now()
	step := Step{Name: "register"}

	_, err := c.client.Register(ctx, model.RegisterRequest{
		Username: s.Username,
		Email:    s.Email,
		Password: s.Password,
	})
	step.Duration = c.now().Sub(start)

	switch apiErr, isAPI := model.AsAPIError(err); {
	case err == nil:
		step.Outcome = OutcomeSuccess
	case isAPI && apiErr.IsClientError():
		step.Outcome = OutcomeSuccess
		step.Reason = "account already exists"
		c.logger.Info("account already exists, continuing", slog.String("email", s.Email))
	default:
		step.Outcome = OutcomeFailed
		step.Err = err
		c.logger.Error("registration failed", slog.String("email", s.Email), slog.String("error", err.Error()))
	}
	return step
}

func (c *Controller) login(ctx context.Context, s *model.Session) Step {
	start := c.now()
	step := Step{Name: "login"}

	resp, err := c.client.Login(ctx, model.LoginRequest{Email: s.Email, Password: s.Password})
	step.Duration = c.now().Sub(start)
	if err != nil {
		step.Outcome = OutcomeFailed
		step.Err = err
		c.logger.Error("authentication failed", slog.String("email", s.Email), slog.String("error", err.Error()))
		return step
	}

	s.Token = resp.Token
	s.UserID = resp.User.ID
	step.Outcome = OutcomeSuccess
	c.inspectToken(s)

	c.logger.Info("authentication successful, token obtained", slog.String("user_id", s.UserID.String()))
	return step
}

// inspectToken records the token expiry when the token is a JWT
func (c *Controller) inspectToken(s *model.Session) {
	claims, err := jwt.Inspect(s.Token)
	if err != nil {
		c.logger.Debug("token is opaque, expiry unknown")
		return
	}
	if s.UserID == "" && claims.UserID != "" {
		s.UserID = model.ResourceID(claims.UserID)
	}
	s.TokenExpiresAt = claims.Expiry()
	if !s.TokenExpiresAt.IsZero() && !s.TokenExpiresAt.After(c.now()) {
		c.logger.Warn("token is already expired", slog.Time("expires_at", s.TokenExpiresAt))
	}
}

func (c *Controller) createTask(ctx context.Context, s *model.Session) Step {
	step := Step{Name: "create_task"}
	if !s.Authenticated() {
		step.Outcome = OutcomeSkipped
		step.Reason = "no token"
		return step
	}

	start := c.now()
	task, err := c.client.CreateTask(ctx, s.Token, c.seedTask)
	step.Duration = c.now().Sub(start)
	if err != nil {
		step.Outcome = OutcomeFailed
		step.Err = err
		c.logger.Error("failed to create test task", slog.String("error", err.Error()))
		return step
	}
	if task.ID == "" {
		step.Outcome = OutcomeFailed
		step.Reason = "response carried no task id"
		return step
	}

	s.TaskID = task.ID
	step.Outcome = OutcomeSuccess
	c.logger.Info("test task created", slog.String("task_id", s.TaskID.String()))
	return step
}

// Teardown deletes the task created by Setup. It never fails; a task that is
// already gone counts as deleted.
func (c *Controller) Teardown(ctx context.Context, s *model.Session) *Report {
	rep := newReport("teardown", c.now())
	c.logger.Info("cleaning up test environment")

	rep.add(c.deleteTask(ctx, s))

	rep.finish(c.now())
	c.logger.Log(ctx, rep.level(), "cleanup completed", slog.Any("report", rep))
	return rep
}

func (c *Controller) deleteTask(ctx context.Context, s *model.Session) Step {
	step := Step{Name: "delete_task"}
	switch {
	case !s.HasSeededTask():
		step.Outcome = OutcomeSkipped
		step.Reason = "no seeded task"
		return step
	case !s.Authenticated():
		step.Outcome = OutcomeSkipped
		step.Reason = "no token"
		return step
	}

	start := c.now()
	err := c.client.DeleteTask(ctx, s.Token, s.TaskID)
	step.Duration = c.now().Sub(start)

	if apiErr, ok := model.AsAPIError(err); ok && apiErr.IsNotFound() {
		step.Outcome = OutcomeSuccess
		step.Reason = "already deleted"
		return step
	}
	if err != nil {
		step.Outcome = OutcomeFailed
		step.Err = err
		return step
	}
	step.Outcome = OutcomeSuccess
	return step
}
