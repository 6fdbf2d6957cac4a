// Package model defines the data exchanged between the contract-testing
// runner, the hook worker and the task-management service.
//
// # Runner Data
//
//   - Transaction: one planned request/response exchange. Hooks mutate its
//     request headers, body and resolved path; all other fields are passed
//     back to the runner untouched.
//   - Session: the bearer token, user id and seeded task id captured before
//     the suite runs.
//
// # Service Payloads
//
// RegisterRequest, LoginRequest, LoginResponse, TaskInput, Task and User
// mirror the JSON bodies of the task service. Ids decode from JSON numbers
// or strings into ResourceID.
//
// # Errors
//
// Non-2xx service responses become *APIError; transport failures wrap
// ErrServiceUnavailable:
//
//	if apiErr, ok := model.AsAPIError(err); ok && apiErr.IsClientError() {
//	    // 4xx from the service
//	}
package model
