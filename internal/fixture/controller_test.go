package fixture

import (
	"bytes"
	"context"
	"net/http"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forgo/taskhooks/internal/config"
	"github.com/forgo/taskhooks/internal/logging"
	"github.com/forgo/taskhooks/internal/model"
	"github.com/forgo/taskhooks/internal/taskapi"
	"github.com/forgo/taskhooks/internal/testing/helpers"
	"github.com/forgo/taskhooks/internal/testing/taskstub"
)

// ============================================================================
// Test Helpers
// ============================================================================

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return fixedNow }

func newController(t *testing.T, stub *taskstub.Server) *Controller {
	t.Helper()
	client := taskapi.New(config.ServiceConfig{BaseURL: stub.URL, Timeout: 5 * time.Second}, logging.Discard())
	return New(Config{Client: client, Logger: logging.Discard()})
}

// setupSession runs Setup against a fresh stub and requires a seeded task
func setupSession(t *testing.T) (*Controller, *model.Session, *taskstub.Server) {
	t.Helper()
	stub := taskstub.New(t)
	c := newController(t, stub)
	s := model.NewSession()

	rep := c.Setup(context.Background(), s)
	require.Equal(t, OutcomeSuccess, rep.Outcome, "setup report: %+v", rep.Steps)
	require.True(t, s.HasSeededTask())
	return c, s, stub
}

// ============================================================================
// Setup Tests
// ============================================================================

func TestSetup_ProvisionsSession(t *testing.T) {
	_, s, stub := setupSession(t)

	assert.True(t, s.Authenticated())
	assert.Equal(t, model.ResourceID("1"), s.UserID)
	assert.Equal(t, model.ResourceID("1"), s.TaskID)
	assert.Regexp(t, `^dredd_test_\d+$`, s.Username)
	assert.Equal(t, s.Username+"@test.com", s.Email)
	assert.Equal(t, "test123456", s.Password)
	assert.False(t, s.TokenExpiresAt.IsZero(), "JWT expiry should be recorded")
	assert.True(t, stub.HasTask("1"))
	assert.Equal(t, 1, stub.UserCount())
}

func TestSetup_ConsecutiveRunsNeverCollide(t *testing.T) {
	stub := taskstub.New(t)
	client := taskapi.New(config.ServiceConfig{BaseURL: stub.URL, Timeout: 5 * time.Second}, nil)
	// a clock that never advances still yields distinct accounts
	c := New(Config{Client: client, Logger: logging.Discard(), Clock: fixedClock})

	first, second := model.NewSession(), model.NewSession()
	rep1 := c.Setup(context.Background(), first)
	rep2 := c.Setup(context.Background(), second)

	assert.NotEqual(t, first.Username, second.Username)
	assert.NotEqual(t, first.Email, second.Email)
	assert.Equal(t, OutcomeSuccess, rep1.Outcome)
	assert.Equal(t, OutcomeSuccess, rep2.Outcome)
	assert.Equal(t, 2, stub.UserCount())
}

func TestNextAccountToken_StrictlyIncreasing(t *testing.T) {
	c := New(Config{Clock: fixedClock, Logger: logging.Discard()})

	seen := make(map[string]bool)
	var mu sync.Mutex
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tok := c.nextAccountToken()
			mu.Lock()
			seen[tok] = true
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Len(t, seen, 50)
	assert.Equal(t, strconv.FormatInt(fixedNow.UnixMilli()+50, 10), c.nextAccountToken())
}

func TestSetup_ExistingAccountIsTolerated(t *testing.T) {
	tok := strconv.FormatInt(fixedNow.UnixMilli(), 10)
	stub := taskstub.New(t, taskstub.WithUser("dredd_test_"+tok, "dredd_test_"+tok+"@test.com", "test123456"))
	client := taskapi.New(config.ServiceConfig{BaseURL: stub.URL, Timeout: 5 * time.Second}, nil)
	c := New(Config{Client: client, Logger: logging.Discard(), Clock: fixedClock})
	s := model.NewSession()

	rep := c.Setup(context.Background(), s)

	step, ok := rep.Step("register")
	require.True(t, ok)
	assert.Equal(t, OutcomeSuccess, step.Outcome)
	assert.Equal(t, "account already exists", step.Reason)
	assert.Equal(t, OutcomeSuccess, rep.Outcome)
	assert.True(t, s.Authenticated())
	assert.True(t, s.HasSeededTask())
}

func TestSetup_RegisterServerErrorStillAttemptsLogin(t *testing.T) {
	stub := taskstub.New(t)
	stub.FailNext(http.MethodPost, "/register", http.StatusInternalServerError)
	c := newController(t, stub)
	s := model.NewSession()

	rep := c.Setup(context.Background(), s)

	assert.Len(t, stub.RequestsTo(http.MethodPost, "/login"), 1)
	assert.Empty(t, stub.RequestsTo(http.MethodPost, "/tasks"))
	assert.Equal(t, OutcomeFailed, rep.Outcome)
	assert.False(t, s.Authenticated())

	step, _ := rep.Step("create_task")
	assert.Equal(t, OutcomeSkipped, step.Outcome)
	assert.Equal(t, "no token", step.Reason)
}

func TestSetup_CreateTaskFailureIsPartial(t *testing.T) {
	stub := taskstub.New(t)
	stub.FailNext(http.MethodPost, "/tasks", http.StatusInternalServerError)
	c := newController(t, stub)
	s := model.NewSession()

	rep := c.Setup(context.Background(), s)

	assert.Equal(t, OutcomePartial, rep.Outcome)
	assert.True(t, s.Authenticated())
	assert.False(t, s.HasSeededTask())
	step, _ := rep.Step("create_task")
	assert.Equal(t, OutcomeFailed, step.Outcome)
	assert.Error(t, step.Err)
}

func TestSetup_ServiceDown(t *testing.T) {
	stub := taskstub.New(t)
	stub.Close()
	c := newController(t, stub)
	s := model.NewSession()

	rep := c.Setup(context.Background(), s)

	assert.Equal(t, OutcomeFailed, rep.Outcome)
	assert.False(t, s.Authenticated())
	step, _ := rep.Step("register")
	assert.ErrorIs(t, step.Err, model.ErrServiceUnavailable)
}

func TestSetup_OpaqueTokenHasNoExpiry(t *testing.T) {
	stub := taskstub.New(t, taskstub.WithOpaqueTokens())
	c := newController(t, stub)
	s := model.NewSession()

	rep := c.Setup(context.Background(), s)

	assert.Equal(t, OutcomeSuccess, rep.Outcome)
	assert.True(t, s.TokenExpiresAt.IsZero())
}

func TestSetup_ExpiredTokenIsLogged(t *testing.T) {
	stub := taskstub.New(t, taskstub.WithTokenTTL(-time.Hour))
	client := taskapi.New(config.ServiceConfig{BaseURL: stub.URL, Timeout: 5 * time.Second}, nil)
	var buf bytes.Buffer
	logger, err := logging.New(&buf, "json", "debug")
	require.NoError(t, err)
	c := New(Config{Client: client, Logger: logger})
	s := model.NewSession()

	rep := c.Setup(context.Background(), s)

	assert.True(t, s.Authenticated())
	assert.True(t, s.TokenExpiresAt.Before(time.Now()))
	assert.Contains(t, buf.String(), "token is already expired")
	// the stub rejects the expired token, so no task was seeded
	assert.Equal(t, OutcomePartial, rep.Outcome)
}

func TestSetup_LogsReport(t *testing.T) {
	stub := taskstub.New(t)
	client := taskapi.New(config.ServiceConfig{BaseURL: stub.URL, Timeout: 5 * time.Second}, nil)
	var buf bytes.Buffer
	logger, err := logging.New(&buf, "json", "info")
	require.NoError(t, err)
	c := New(Config{Client: client, Logger: logger})

	c.Setup(context.Background(), model.NewSession())

	out := buf.String()
	assert.Contains(t, out, `"msg":"setup finished"`)
	assert.Contains(t, out, `"phase":"setup"`)
	assert.Contains(t, out, `"outcome":"success"`)
	assert.Contains(t, out, `"session":"authenticated"`)
}

// ============================================================================
// Per-transaction Tests
// ============================================================================

func TestLogTransaction_DoesNotMutate(t *testing.T) {
	var buf bytes.Buffer
	logger, err := logging.New(&buf, "json", "info")
	require.NoError(t, err)
	c := New(Config{Logger: logger})
	b := helpers.FromName(t, NameGetTaskOK, http.MethodGet)
	tx := b.Build()
	before, err := tx.MarshalJSON()
	require.NoError(t, err)

	c.LogTransaction(model.NewSession(), tx)

	after, err := tx.MarshalJSON()
	require.NoError(t, err)
	assert.JSONEq(t, string(before), string(after))
	assert.Contains(t, buf.String(), `"path":"/tasks/1"`)
	assert.Contains(t, buf.String(), `"expected_status":200`)
	assert.Contains(t, buf.String(), "Get task by ID")
}

func TestInjectAuth_ProtectedPath(t *testing.T) {
	c, s, _ := setupSession(t)
	tx := helpers.NewTransaction(t, "/tasks > Get user tasks > 200 > application/json", http.MethodGet, "/tasks").Build()

	assert.True(t, c.InjectAuth(s, tx))
	helpers.AssertAuthorization(t, tx, "Bearer "+s.Token)
}

func TestInjectAuth_ReplacesExistingHeaderCaseInsensitively(t *testing.T) {
	c, s, _ := setupSession(t)
	tx := helpers.NewTransaction(t, "/logout > Logout user > 200 > application/json", http.MethodPost, "/logout").
		WithHeader("authorization", "Bearer stale").
		Build()

	c.InjectAuth(s, tx)

	assert.Equal(t, map[string]string{
		"Content-Type":  "application/json",
		"Authorization": "Bearer " + s.Token,
	}, tx.Request.Headers)
}

func TestInjectAuth_LeavesPublicAndUnprotectedPathsAlone(t *testing.T) {
	c, s, _ := setupSession(t)

	for _, path := range []string{"/tasks/public/1", "/login", "/register"} {
		tx := helpers.NewTransaction(t, path, http.MethodGet, path).Build()

		assert.False(t, c.InjectAuth(s, tx), path)
		assert.Empty(t, tx.Request.Header("Authorization"), path)
	}
}

func TestInjectAuth_Unauthenticated(t *testing.T) {
	c := New(Config{Logger: logging.Discard()})
	tx := helpers.NewTransaction(t, "list", http.MethodGet, "/tasks").Build()

	assert.False(t, c.InjectAuth(model.NewSession(), tx))
	assert.Empty(t, tx.Request.Header("Authorization"))
}

func TestUnauthorizedRules_IndependentOfHookOrder(t *testing.T) {
	c, s, _ := setupSession(t)

	for _, name := range []string{
		NameLogoutUnauthorized, NameListTasksUnauthorized, NameCreateTaskUnauthorized,
		NameGetTaskUnauthorized, NameUpdateTaskUnauthorized, NameDeleteTaskUnauthorized,
	} {
		t.Run(name, func(t *testing.T) {
			authFirst := helpers.FromName(t, name, http.MethodGet).Build()
			c.InjectAuth(s, authFirst)
			_, err := c.ApplyNamed(s, authFirst)
			require.NoError(t, err)

			ruleFirst := helpers.FromName(t, name, http.MethodGet).Build()
			_, err = c.ApplyNamed(s, ruleFirst)
			require.NoError(t, err)
			c.InjectAuth(s, ruleFirst)

			helpers.AssertAuthorization(t, authFirst, DefaultInvalidToken)
			helpers.AssertAuthorization(t, ruleFirst, DefaultInvalidToken)
		})
	}
}

func TestApplyNamed_RewritesSeededTaskPath(t *testing.T) {
	c, s, _ := setupSession(t)
	s.TaskID = "42"

	tx := helpers.FromName(t, NameGetTaskOK, http.MethodGet).WithURI("/tasks/1?expand=user").Build()
	applied, err := c.ApplyNamed(s, tx)

	require.NoError(t, err)
	assert.True(t, applied)
	assert.Equal(t, "/tasks/42", tx.FullPath)
	assert.Equal(t, "/tasks/42?expand=user", tx.Request.URI)

	// applying again changes nothing
	_, err = c.ApplyNamed(s, tx)
	require.NoError(t, err)
	assert.Equal(t, "/tasks/42", tx.FullPath)
	assert.Equal(t, "/tasks/42?expand=user", tx.Request.URI)
}

func TestApplyNamed_WithoutSeededTaskKeepsPath(t *testing.T) {
	c := New(Config{Logger: logging.Discard()})
	s := &model.Session{Token: "abc"}

	for _, name := range []string{NameGetTaskOK, NameUpdateTaskOK, NameDeleteTaskOK} {
		tx := helpers.FromName(t, name, http.MethodGet).Build()
		_, err := c.ApplyNamed(s, tx)

		require.NoError(t, err)
		assert.Equal(t, "/tasks/1", tx.FullPath, name)
		assert.Equal(t, "/tasks/1", tx.Request.URI, name)
	}
}

func TestApplyNamed_NotFoundRulesLeaveTransactionUntouched(t *testing.T) {
	c, s, _ := setupSession(t)
	s.TaskID = "42"

	for _, name := range []string{NameGetTaskNotFound, NameUpdateTaskNotFound, NameDeleteTaskNotFound} {
		b := helpers.FromName(t, name, http.MethodGet).WithBody(`{"title":"x"}`)
		tx := b.Build()

		applied, err := c.ApplyNamed(s, tx)

		require.NoError(t, err)
		assert.True(t, applied, name)
		got, err := tx.MarshalJSON()
		require.NoError(t, err)
		assert.JSONEq(t, string(b.Raw()), string(got), name)
		assert.Equal(t, "/tasks/1", tx.FullPath, name)
		assert.Equal(t, "/tasks/1", tx.Request.URI, name)
	}
}

func TestApplyNamed_Bodies(t *testing.T) {
	c, s, _ := setupSession(t)

	login := helpers.FromName(t, NameLoginOK, http.MethodPost).Build()
	_, err := c.ApplyNamed(s, login)
	require.NoError(t, err)
	helpers.AssertJSONBody(t, login, map[string]any{"email": s.Email, "password": s.Password})

	badLogin := helpers.FromName(t, NameLoginUnauthorized, http.MethodPost).Build()
	_, err = c.ApplyNamed(s, badLogin)
	require.NoError(t, err)
	helpers.AssertJSONBody(t, badLogin, map[string]any{"email": "nonexistent@test.com", "password": "wrong_password"})

	badRegister := helpers.FromName(t, NameRegisterBadRequest, http.MethodPost).Build()
	_, err = c.ApplyNamed(s, badRegister)
	require.NoError(t, err)
	helpers.AssertJSONBody(t, badRegister, map[string]any{"username": "", "email": "invalid-email", "password": "123"})

	update := helpers.FromName(t, NameUpdateTaskBadRequest, http.MethodPut).Build()
	_, err = c.ApplyNamed(s, update)
	require.NoError(t, err)
	helpers.AssertJSONBody(t, update, map[string]any{"title": ""})
	assert.Equal(t, "/tasks/"+s.TaskID.String(), update.FullPath)
}

func TestApplyNamed_RegisterUsesFreshIdentity(t *testing.T) {
	c, s, _ := setupSession(t)

	first := helpers.FromName(t, NameRegisterCreated, http.MethodPost).Build()
	second := helpers.FromName(t, NameRegisterCreated, http.MethodPost).Build()
	_, err := c.ApplyNamed(s, first)
	require.NoError(t, err)
	_, err = c.ApplyNamed(s, second)
	require.NoError(t, err)

	assert.NotEqual(t, first.Request.Body, second.Request.Body)
	assert.Contains(t, first.Request.Body, `"password":"password123"`)
	assert.NotContains(t, first.Request.Body, s.Username)
}

func TestApplyNamed_UnknownName(t *testing.T) {
	c := New(Config{Logger: logging.Discard()})
	tx := helpers.NewTransaction(t, "/health > Health > 200 > application/json", http.MethodGet, "/health").Build()

	applied, err := c.ApplyNamed(model.NewSession(), tx)

	require.NoError(t, err)
	assert.False(t, applied)
}

// ============================================================================
// Teardown Tests
// ============================================================================

func TestTeardown_DeletesSeededTask(t *testing.T) {
	c, s, stub := setupSession(t)

	rep := c.Teardown(context.Background(), s)

	assert.Equal(t, OutcomeSuccess, rep.Outcome)
	assert.False(t, stub.HasTask(s.TaskID.String()))
	reqs := stub.RequestsTo(http.MethodDelete, "/tasks/"+s.TaskID.String())
	require.Len(t, reqs, 1)
	assert.Equal(t, "Bearer "+s.Token, reqs[0].Authorization)
}

func TestTeardown_NothingSeeded(t *testing.T) {
	stub := taskstub.New(t)
	c := newController(t, stub)

	for name, s := range map[string]*model.Session{
		"empty":         model.NewSession(),
		"token only":    {Token: "abc"},
		"task only":     {TaskID: "7"},
		"nil-safe zero": {},
	} {
		t.Run(name, func(t *testing.T) {
			rep := c.Teardown(context.Background(), s)

			assert.Equal(t, OutcomeSkipped, rep.Outcome)
		})
	}
	assert.Empty(t, stub.Requests())
}

func TestTeardown_AlreadyDeletedCountsAsSuccess(t *testing.T) {
	c, s, stub := setupSession(t)
	stub.FailNext(http.MethodDelete, "/tasks/*", http.StatusNotFound)

	rep := c.Teardown(context.Background(), s)

	assert.Equal(t, OutcomeSuccess, rep.Outcome)
	step, _ := rep.Step("delete_task")
	assert.Equal(t, "already deleted", step.Reason)
}

func TestTeardown_ServerErrorIsReportedNotRaised(t *testing.T) {
	c, s, stub := setupSession(t)
	stub.FailNext(http.MethodDelete, "/tasks/*", http.StatusInternalServerError)

	rep := c.Teardown(context.Background(), s)

	assert.Equal(t, OutcomeFailed, rep.Outcome)
	step, _ := rep.Step("delete_task")
	apiErr, ok := model.AsAPIError(step.Err)
	require.True(t, ok)
	assert.Equal(t, http.StatusInternalServerError, apiErr.StatusCode)
}

// ============================================================================
// Report Tests
// ============================================================================

func TestReport_Outcome(t *testing.T) {
	tests := []struct {
		name  string
		steps []Outcome
		want  Outcome
	}{
		{"no steps", nil, OutcomeSkipped},
		{"all skipped", []Outcome{OutcomeSkipped}, OutcomeSkipped},
		{"all success", []Outcome{OutcomeSuccess, OutcomeSuccess}, OutcomeSuccess},
		{"mixed", []Outcome{OutcomeSuccess, OutcomeFailed}, OutcomePartial},
		{"success and skipped", []Outcome{OutcomeSuccess, OutcomeSkipped}, OutcomePartial},
		{"all failed", []Outcome{OutcomeFailed, OutcomeSkipped}, OutcomeFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rep := newReport("test", fixedNow)
			for i, o := range tt.steps {
				rep.add(Step{Name: strconv.Itoa(i), Outcome: o})
			}
			rep.finish(fixedNow.Add(time.Second))

			assert.Equal(t, tt.want, rep.Outcome)
			assert.Equal(t, time.Second, rep.Duration)
		})
	}
}
