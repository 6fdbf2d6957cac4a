// Package fixture prepares the task-management service for a contract run and
// adjusts each transaction before the runner sends it.
//
// A run has one Session. Setup registers a fresh account, logs in and creates
// one task; the results land on the Session. Before every transaction the
// Controller logs it, adds the session bearer token to protected paths and
// applies the named Rule for that transaction, if any. Teardown deletes the
// seeded task.
//
// Suite-level phases return a Report instead of an error. A degraded setup
// (no token, no task) is logged at warn level and the suite still runs.
//
//	ctrl := fixture.New(fixture.ConfigFrom(cfg, client, logger))
//	session := model.NewSession()
//	fixture.Register(registry, ctrl, session)
//
// # Rules
//
// Rules are keyed by the runner's transaction name, for example
// "/tasks/{id} > Get task by ID > 200 > application/json". A rule may replace
// the body, force an Authorization value or point the request at the seeded
// task. Rules that set Authorization always win over token injection, in
// either hook order.
package fixture
