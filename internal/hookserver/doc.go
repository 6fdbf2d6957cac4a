// Package hookserver implements the hooks-handler side of the contract
// runner's language-agnostic hooks protocol.
//
// The runner connects over TCP (127.0.0.1:61321 by default) and sends one
// JSON message per line:
//
//	{"uuid": "...", "event": "beforeEach", "data": {...transaction...}}
//
// The server runs the hooks registered for the event and answers with the
// same uuid and event and the modified data. beforeAll and afterAll carry an
// array of transactions; every other event carries one. Named hooks are
// looked up by the transaction name and run as part of beforeEach,
// beforeEachValidation and afterEach.
//
// Hook errors are logged; the reply is sent regardless so the runner never
// stalls. Messages are handled one at a time in arrival order.
//
//	reg := hookserver.NewRegistry()
//	reg.BeforeEach(func(ctx context.Context, tx *model.Transaction) error { ... })
//	srv := hookserver.New(cfg.HooksAddr(), reg, logger)
//	err := srv.ListenAndServe(ctx)
package hookserver
