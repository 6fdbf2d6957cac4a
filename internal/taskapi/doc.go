// Package taskapi is a small HTTP client for the task-management service the
// contract suite runs against.
//
// Only the calls the fixture hooks need are implemented: Register, Login,
// CreateTask, DeleteTask and Logout. Every call takes a context. A non-2xx
// answer comes back as *model.APIError carrying the service's error message;
// a transport failure wraps model.ErrServiceUnavailable:
//
//	_, err := client.Register(ctx, req)
//	if apiErr, ok := model.AsAPIError(err); ok && apiErr.IsClientError() {
//	    // account already exists
//	}
package taskapi
