package cli

import (
	"bufio"
	"context"
	"fmt"
	"strings"
)

// printlnFn is a test seam for user-facing output. In tests, replace it with a stub.
var printlnFn = fmt.Println

// execIface defines the minimal command surface the REPL needs to operate.
// The real App type satisfies this interface; tests can provide a lightweight stub.
type execIface interface {
	isLoggedIn() bool
	Signup(ctx context.Context) error
	Verify(ctx context.Context, email string) error
	Login(ctx context.Context) error
	WorkerSignup(ctx context.Context) error
	WorkerLogin(ctx context.Context) error
	Logout(ctx context.Context) error
	Whoami(ctx context.Context) error
	Open(ctx context.Context, path string) error
}

// runREPL starts a simple read–eval–print loop for the ExpertEase CLI.
//
// It reads a line from in, parses the first token as the command, and
// dispatches to methods on 'a'. Unknown commands are reported back to the
// user. The loop exits on EOF, when ctx is done, or when the user types
// "exit" or "quit".
//
// Commands
//
//	help                 show available commands
//	signup               create a user account, then verify the email
//	verify [email]       enter the verification code for a signup
//	login                user login
//	workersignup         register as a service worker, then log in
//	workerlogin          worker login by email
//	open <path>          navigate; protected paths ask for login first
//	whoami               show the active sessions
//	logout               end every session
//	exit | quit          leave the program
//
// Errors returned by command handlers are ignored here; handlers report
// them to the user themselves.
func runREPL(ctx context.Context, a execIface, statusFn func() string, in *bufio.Reader) {
	for {
		if ctx.Err() != nil {
			return
		}
		printlnFn(fmt.Sprintf("ee %s > ", statusFn()))
		line, ok := readLine(in)
		if !ok {
			return
		}
		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}
		cmd, args := parts[0], parts[1:]

		switch cmd {
		case "help":
			if a.isLoggedIn() {
				printlnFn("Available commands: open <path>, whoami, login, workerlogin, logout, exit")
			} else {
				printlnFn("Available commands: signup, verify [email], login, workersignup, workerlogin, open <path>, exit")
			}

		case "signup", "register":
			_ = a.Signup(ctx)

		case "verify":
			email := ""
			if len(args) > 0 {
				email = args[0]
			}
			_ = a.Verify(ctx, email)

		case "login":
			_ = a.Login(ctx)

		case "workersignup":
			_ = a.WorkerSignup(ctx)

		case "workerlogin":
			_ = a.WorkerLogin(ctx)

		case "open", "cd":
			if len(args) == 0 {
				printlnFn("Usage: open <path>")
				continue
			}
			_ = a.Open(ctx, args[0])

		case "whoami":
			_ = a.Whoami(ctx)

		case "logout":
			_ = a.Logout(ctx)

		case "exit", "quit":
			printlnFn("Bye!")
			return

		default:
			printlnFn("Unknown command:", cmd)
		}
	}
}
