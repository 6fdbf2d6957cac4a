// Package config manages configuration for the taskhooks worker.
//
// Configuration is read from environment variables, optionally overlaid by a
// YAML file named in TASKHOOKS_CONFIG (or passed with --config), and finally
// by command line flags.
//
// # Configuration Groups
//
//   - ServiceConfig: the task-management service under test (base URL, timeout)
//   - HooksConfig: hook server address and fixture rules (protected paths,
//     invalid token, placeholder path)
//   - AccountConfig: the account provisioned before the suite runs
//   - LogConfig: log level and format
//
// # Environment Variables
//
//	TASKAPI_BASE_URL       - service base URL (default: http://127.0.0.1:8080)
//	TASKAPI_TIMEOUT        - HTTP timeout (default: 30s)
//	HOOKS_HOST, HOOKS_PORT - hook server address (default: 127.0.0.1:61321)
//	HOOKS_PATH_MATCH       - substring or segment (default: substring)
//	ACCOUNT_PASSWORD       - password for the setup account
//	LOG_LEVEL, LOG_FORMAT  - debug|info|warn|error, json|text
//
// # YAML File
//
//	service:
//	  base_url: http://127.0.0.1:8080
//	  timeout: 30s
//	hooks:
//	  protected_paths: [/tasks, /logout]
//
// Call Validate after loading; it reports every problem at once.
package config
