// Package command provides the stashkv CLI commands.
//
// Commands are defined with urfave/cli/v2:
//
//   - root.go: App, global flags, configuration loading
//   - stack.go: backend, service and hook wiring shared by all commands
//   - kv.go: get, set, rm, keys, len, clear, meta
//   - expiry.go: sweep, status
//   - watch.go: foreground scheduler with metrics endpoint and config reload
//   - config.go, version.go: effective configuration and build information
//
// Each command loads the configuration, opens a Stack for the selected
// namespace, runs one operation and closes the stack again.
package command
