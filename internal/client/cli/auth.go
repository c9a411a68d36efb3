package cli

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/dmitrijs2005/expertease/internal/client/client"
	"github.com/dmitrijs2005/expertease/internal/client/guard"
	"github.com/dmitrijs2005/expertease/internal/client/session"
	"github.com/dmitrijs2005/expertease/internal/client/tokeninfo"
	"github.com/dmitrijs2005/expertease/internal/common"
)

// getSimpleText and getPassword are indirections used to facilitate testing.
// They point to interactive input helpers and can be swapped in tests.
var getSimpleText = GetSimpleText
var getPassword = GetPassword

// Signup prompts for the account fields, registers the user and, on
// success, continues straight into email verification.
func (a *App) Signup(ctx context.Context) error {
	name, err := getSimpleText(a.reader, "Full name", a.out)
	if err != nil {
		return err
	}
	username, err := getSimpleText(a.reader, "Username", a.out)
	if err != nil {
		return err
	}
	email, err := getSimpleText(a.reader, "Email", a.out)
	if err != nil {
		return err
	}
	password, err := getPassword(a.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	req := client.SignupRequest{Name: name, Username: username, Email: email, Password: string(password)}
	if err := a.creds.Signup(ctx, req); err != nil {
		a.fail(ctx, err)
		return err
	}

	a.mu.Lock()
	a.pendingEmail = email
	a.mu.Unlock()

	a.say("Signup successful! We sent a 6-digit code to %s.", email)
	return a.Verify(ctx, email)
}

// Login prompts for username and password and opens a user session. On
// success the user lands on the services page.
func (a *App) Login(ctx context.Context) error {
	if err := a.loginUser(ctx); err != nil {
		return err
	}
	a.navigate(guard.UserGuard().Destination(""))
	return nil
}

func (a *App) loginUser(ctx context.Context) error {
	username, err := getSimpleText(a.reader, "Username", a.out)
	if err != nil {
		return err
	}
	password, err := getPassword(a.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	us, err := a.session.Login(ctx, username, string(password))
	if err != nil {
		a.fail(ctx, err)
		return err
	}
	a.say("Welcome, %s!", us.DisplayName)
	return nil
}

// WorkerSignup registers a service worker and then hands off to worker
// login. New workers usually need approval first, in which case the login
// reports it.
func (a *App) WorkerSignup(ctx context.Context) error {
	var req client.WorkerSignupRequest
	err := a.promptAll([]promptField{
		{"Full name", &req.FullName},
		{"Email", &req.Email},
		{"Phone", &req.Phone},
		{"Service (default healthcare)", &req.Service},
	})
	if err != nil {
		return err
	}
	if s := strings.TrimSpace(req.Service); s == "" || strings.EqualFold(s, client.ServiceHealthcare) {
		err := a.promptAll([]promptField{
			{"Specialization", &req.Specialization},
			{"Years of experience", &req.Experience},
			{"Clinic location", &req.ClinicLocation},
			{"License number", &req.LicenseNumber},
		})
		if err != nil {
			return err
		}
	}

	res, err := a.creds.WorkerSignup(ctx, req)
	if err != nil {
		a.fail(ctx, err)
		return err
	}
	a.say("Registration successful! Your worker ID is %s.", res.WorkerID)
	return a.WorkerLogin(ctx)
}

type promptField struct {
	prompt string
	dst    *string
}

func (a *App) promptAll(fields []promptField) error {
	for _, f := range fields {
		v, err := getSimpleText(a.reader, f.prompt, a.out)
		if err != nil {
			return err
		}
		*f.dst = v
	}
	return nil
}

// WorkerLogin prompts for the registered worker email.
func (a *App) WorkerLogin(ctx context.Context) error {
	if err := a.loginWorker(ctx); err != nil {
		return err
	}
	a.navigate(guard.WorkerGuard().Destination(""))
	return nil
}

func (a *App) loginWorker(ctx context.Context) error {
	email, err := getSimpleText(a.reader, "Worker email", a.out)
	if err != nil {
		return err
	}

	ws, err := a.session.WorkerLogin(ctx, email)
	if err != nil {
		a.fail(ctx, err)
		return err
	}
	a.say("Signed in as worker %s.", ws.Email)
	return nil
}

// Logout ends both sessions.
func (a *App) Logout(ctx context.Context) error {
	a.mu.Lock()
	a.loggingOut = true
	a.mu.Unlock()

	a.session.Logout(ctx)

	a.mu.Lock()
	a.loggingOut = false
	a.location = "/"
	a.mu.Unlock()

	a.say("Logged out.")
	return nil
}

// Whoami prints the active sessions. Token claims are decoded for
// display only.
func (a *App) Whoami(ctx context.Context) error {
	if st := a.session.State(); st != session.StateResolved {
		a.say("Session is %s, try again shortly.", st)
		return nil
	}
	snap := a.session.Snapshot()
	if snap.User == nil && snap.Worker == nil {
		a.say("Not logged in.")
		return nil
	}

	if u := snap.User; u != nil {
		a.say("User: %s (id %s)", u.DisplayName, u.UserID)
		if info, err := tokeninfo.Inspect(u.Token); err == nil && !info.ExpiresAt.IsZero() {
			a.say("  token expires %s", info.ExpiresAt.Local().Format(time.RFC1123))
		}
	}
	if w := snap.Worker; w != nil {
		a.say("Worker: %s (id %s)", w.Email, w.WorkerID)
		if w.Service != "" {
			a.say("  service: %s", w.Service)
		}
		if w.Specialization != "" {
			a.say("  specialization: %s", w.Specialization)
		}
	}
	return nil
}

// fail prints the user-facing text of err. A backend that could not be
// reached also switches the prompt to offline until the watcher sees it
// again.
func (a *App) fail(ctx context.Context, err error) {
	switch {
	case errors.Is(err, session.ErrOperationInProgress), errors.Is(err, session.ErrSessionReset):
		a.say("Error: %s", err)
		return
	case client.IsNetwork(err):
		a.setMode(ctx, ModeOffline)
	}
	a.say("Error: %s", client.MessageOf(err))
}
