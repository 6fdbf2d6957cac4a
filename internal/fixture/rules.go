package fixture

import (
	"strings"

	"github.com/forgo/taskhooks/internal/model"
)

// BodyFunc builds a replacement request body. unique is a fresh account
// token for rules that need a never-before-seen identity.
type BodyFunc func(s *model.Session, unique string) any

// Rule overrides parts of one named transaction
type Rule struct {
	// Body replaces the request body with its JSON encoding when set
	Body BodyFunc
	// Authorization replaces the Authorization header when non-empty
	Authorization string
	// UseSeededTask rewrites the placeholder task path to the seeded task id
	UseSeededTask bool
	// Note is logged when the rule is applied
	Note string
}

// Transaction names used by the contract suite, as "route > summary > status > content type"
const (
	NameRegisterCreated    = "/register > Register a new user > 201 > application/json"
	NameRegisterBadRequest = "/register > Register a new user > 400 > application/json"
	NameLoginOK            = "/login > Login user > 200 > application/json"
	NameLoginUnauthorized  = "/login > Login user > 401 > application/json"
	NameLogoutUnauthorized = "/logout > Logout user > 401 > application/json"

	NameListTasksUnauthorized  = "/tasks > Get user tasks > 401 > application/json"
	NameCreateTaskUnauthorized = "/tasks > Create new task > 401 > application/json"
	NameCreateTaskBadRequest   = "/tasks > Create new task > 400 > application/json"

	NameGetTaskOK           = "/tasks/{id} > Get task by ID > 200 > application/json"
	NameGetTaskUnauthorized = "/tasks/{id} > Get task by ID > 401 > application/json"
	NameGetTaskNotFound     = "/tasks/{id} > Get task by ID > 404 > application/json"

	NameUpdateTaskOK           = "/tasks/{id} > Update task > 200 > application/json"
	NameUpdateTaskBadRequest   = "/tasks/{id} > Update task > 400 > application/json"
	NameUpdateTaskUnauthorized = "/tasks/{id} > Update task > 401 > application/json"
	NameUpdateTaskNotFound     = "/tasks/{id} > Update task > 404 > application/json"

	NameDeleteTaskOK           = "/tasks/{id} > Delete task > 200 > application/json"
	NameDeleteTaskUnauthorized = "/tasks/{id} > Delete task > 401 > application/json"
	NameDeleteTaskNotFound     = "/tasks/{id} > Delete task > 404 > application/json"
)

// DefaultRules returns the rule table for the task-management contract.
// invalidToken is the full Authorization value sent by 401 cases.
func DefaultRules(invalidToken string) map[string]Rule {
	emptyTitle := func(*model.Session, string) any {
		return model.TaskInput{Title: ""}
	}

	return map[string]Rule{
		NameRegisterCreated: {
			Body: func(_ *model.Session, unique string) any {
				return model.RegisterRequest{
					Username: "test_user_" + unique,
					Email:    "test_" + unique + "@example.com",
					Password: "password123",
				}
			},
			Note: "fresh user",
		},
		NameRegisterBadRequest: {
			Body: func(*model.Session, string) any {
				return model.RegisterRequest{Username: "", Email: "invalid-email", Password: "123"}
			},
			Note: "empty username, bad email, short password",
		},
		NameLoginOK: {
			Body: func(s *model.Session, _ string) any {
				return model.LoginRequest{Email: s.Email, Password: s.Password}
			},
			Note: "setup account credentials",
		},
		NameLoginUnauthorized: {
			Body: func(*model.Session, string) any {
				return model.LoginRequest{Email: "nonexistent@test.com", Password: "wrong_password"}
			},
			Note: "unknown account",
		},
		NameLogoutUnauthorized: {Authorization: invalidToken},

		NameListTasksUnauthorized:  {Authorization: invalidToken},
		NameCreateTaskUnauthorized: {Authorization: invalidToken},
		NameCreateTaskBadRequest:   {Body: emptyTitle, Note: "empty title"},

		NameGetTaskOK:           {UseSeededTask: true},
		NameGetTaskUnauthorized: {Authorization: invalidToken, UseSeededTask: true},
		NameGetTaskNotFound:     {Note: "keeps placeholder id"},

		NameUpdateTaskOK:           {UseSeededTask: true},
		NameUpdateTaskBadRequest:   {Body: emptyTitle, UseSeededTask: true, Note: "empty title"},
		NameUpdateTaskUnauthorized: {Authorization: invalidToken, UseSeededTask: true},
		NameUpdateTaskNotFound:     {Note: "keeps placeholder id"},

		NameDeleteTaskOK:           {UseSeededTask: true},
		NameDeleteTaskUnauthorized: {Authorization: invalidToken, UseSeededTask: true},
		NameDeleteTaskNotFound:     {Note: "keeps placeholder id"},
	}
}

// replacePlaceholder replaces the first occurrence of placeholder in path that
// ends a segment (followed by end of string, '/', '?' or '#') with
// replacement. "/tasks/1" never matches inside "/tasks/15", so applying the
// same rewrite twice is a no-op.
func replacePlaceholder(path, placeholder, replacement string) string {
	if placeholder == "" {
		return path
	}
	for from := 0; ; {
		i := strings.Index(path[from:], placeholder)
		if i < 0 {
			return path
		}
		start := from + i
		end := start + len(placeholder)
		if end == len(path) || strings.IndexByte("/?#", path[end]) >= 0 {
			return path[:start] + replacement + path[end:]
		}
		from = start + 1
	}
}
