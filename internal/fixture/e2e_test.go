package fixture

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forgo/taskhooks/internal/hookserver"
	"github.com/forgo/taskhooks/internal/model"
	"github.com/forgo/taskhooks/internal/testing/helpers"
	"github.com/forgo/taskhooks/internal/testing/taskstub"
)

// ============================================================================
// Full Suite Against the Stub Service
// ============================================================================

// runSuite plays the runner: beforeAll, then beforeEach and before for every
// transaction followed by the real HTTP exchange, then afterAll. It returns
// the status each transaction got, keyed by name.
func runSuite(t *testing.T, stub *taskstub.Server, c *Controller, s *model.Session) map[string]int {
	t.Helper()

	reg := hookserver.NewRegistry()
	Register(reg, c, s)

	suite := helpers.TaskAPISuite(t)
	dispatch(t, reg, hookserver.EventBeforeAll, helpers.RawList(t, suite...))
	require.True(t, s.HasSeededTask(), "setup should seed a task")

	got := make(map[string]int, len(suite))
	for _, b := range suite {
		data := dispatch(t, reg, hookserver.EventBeforeEach, b.Raw())
		tx := helpers.DecodeTransaction(t, data)
		got[tx.Name] = helpers.Execute(t, stub.URL, tx)
		dispatch(t, reg, hookserver.EventAfterEach, data)
	}

	dispatch(t, reg, hookserver.EventAfterAll, helpers.RawList(t, suite...))
	return got
}

func TestSuite_EveryTransactionGetsItsExpectedStatus(t *testing.T) {
	// task ids start high so the placeholder /tasks/1 never names a real task
	stub := taskstub.New(t, taskstub.WithFirstTaskID(100))
	c := newController(t, stub)
	s := model.NewSession()

	got := runSuite(t, stub, c, s)

	for _, b := range helpers.TaskAPISuite(t) {
		tx := b.Build()
		assert.Equal(t, int(tx.Expected.StatusCode), got[tx.Name], tx.Name)
	}
	assert.Equal(t, model.ResourceID("100"), s.TaskID)
}

func TestSuite_SeededTaskIsGoneAfterRun(t *testing.T) {
	stub := taskstub.New(t, taskstub.WithFirstTaskID(100))
	c := newController(t, stub)
	s := model.NewSession()

	runSuite(t, stub, c, s)

	assert.False(t, stub.HasTask(s.TaskID.String()))
	// the 401 case, the suite's own delete and teardown
	assert.Len(t, stub.RequestsTo(http.MethodDelete, "/tasks/100"), 3)
}

func TestSuite_UnauthorizedCasesNeverCarryTheSessionToken(t *testing.T) {
	stub := taskstub.New(t, taskstub.WithFirstTaskID(100))
	c := newController(t, stub)
	s := model.NewSession()

	runSuite(t, stub, c, s)

	var unauthorized int
	for _, r := range stub.Requests() {
		if r.Authorization == DefaultInvalidToken {
			unauthorized++
		}
	}
	// list, create, get, update, delete and logout each have a 401 case
	assert.Equal(t, 6, unauthorized)
}
