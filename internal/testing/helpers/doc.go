// Package helpers provides test utilities for the hook worker.
//
// # Transaction Builders
//
// Build runner transactions with the fields a real runner sends:
//
//	tx := helpers.NewTransaction(t, name, "GET", "/tasks/1").
//	    WithExpectedStatus(200).
//	    Build()
//	tx := helpers.FromName(t, "/tasks/{id} > Get task by ID > 404 > application/json", "GET").Build()
//
// Raw and RawList return the JSON payloads for protocol tests.
//
// # Hooks Protocol Client
//
// Drive a hook server the way the runner does:
//
//	client := helpers.DialHooks(t, addr)
//	reply := client.Send(hookserver.EventBeforeEach, builder.Raw())
//
// # Assertion Helpers
//
//	helpers.AssertAuthorization(t, tx, "Bearer invalid_token_here")
//	helpers.AssertJSONBody(t, tx, map[string]any{"title": ""})
package helpers
