// Package taskstub provides an in-process fake of the task-management service
// for tests.
//
// The stub serves the endpoints the fixture hooks consume:
//
//	POST /register, POST /login, POST /logout
//	GET|POST /tasks, GET|PUT|DELETE /tasks/{id}
//
// Request bodies are checked with validator tags, so empty titles, bad emails
// and short passwords answer 400 with {"error": "..."} like the real service.
// Tokens are RS256 JWTs carrying a user_id and a jti; logout revokes the jti.
//
// Usage:
//
//	stub := taskstub.New(t, taskstub.WithUser("alice", "alice@test.com", "secret123"))
//	stub.FailNext(http.MethodPost, "/tasks", http.StatusInternalServerError)
//	client := taskapi.New(config.ServiceConfig{BaseURL: stub.URL, Timeout: time.Second}, nil)
package taskstub
