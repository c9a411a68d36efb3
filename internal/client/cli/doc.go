// Package cli provides the interactive ExpertEase command-line client.
//
// It wires configuration, the local session store, the marketplace API
// client and the session controller, then runs a REPL. Paths opened with
// "open" are checked by the route guards: a protected path asks for the
// matching login and continues to the original destination afterwards.
//
// Key features:
//   - Signup followed by six-digit email verification with resend cooldown
//   - User login (username/password) and worker login (email only)
//   - Session restore at startup, forced logout on a rejected token
//   - Background connectivity watcher
//
// The REPL is started via App.Run(ctx), which blocks until the user exits.
package cli
