package cli

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/dmitrijs2005/expertease/internal/client/client"
	"github.com/dmitrijs2005/expertease/internal/client/otp"
)

// newFlow is a test seam for otp.NewFlow.
var newFlow = otp.NewFlow

// Verify runs the email verification screen for email, or for the last
// signup when email is empty. It returns when the code is accepted, the
// user leaves or input ends. An accepted code hands off to login.
func (a *App) Verify(ctx context.Context, email string) error {
	if email == "" {
		a.mu.Lock()
		email = a.pendingEmail
		a.mu.Unlock()
	}

	opts := []otp.Option{otp.WithLogger(a.logger)}
	if a.config != nil && a.config.ResendCooldown > 0 {
		opts = append(opts, otp.WithCooldown(a.config.ResendCooldown))
	}
	flow, err := newFlow(email, a.creds, opts...)
	if errors.Is(err, otp.ErrEmailRequired) {
		a.say("No email to verify. Please sign up first.")
		return err
	}
	if err != nil {
		return err
	}

	flowCtx, cancel := context.WithCancel(ctx)
	defer func() {
		cancel()
		flow.Close()
	}()
	flow.Start(flowCtx)

	a.say("Enter the 6-digit code sent to %s. Type 'help' for verify commands.", email)

	verified, err := a.verifyLoop(ctx, flow)
	if err != nil || !verified {
		return err
	}

	a.mu.Lock()
	a.pendingEmail = ""
	a.mu.Unlock()

	a.say("Email verified! You can now log in.")
	return a.Login(ctx)
}

func (a *App) verifyLoop(ctx context.Context, flow *otp.Flow) (bool, error) {
	for {
		fmt.Fprint(a.out, "verify "+renderCode(flow.Snapshot())+" > ")
		line, ok := readLine(a.reader)
		if !ok {
			return false, nil
		}
		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}

		switch parts[0] {
		case "help":
			a.say("Verify commands: code <digits>, digit <d>, back, focus <n>, submit, resend, status, leave")

		case "code", "paste":
			if len(parts) < 2 {
				a.say("Usage: code <digits>")
				continue
			}
			if flow.Paste(strings.Join(parts[1:], "")) == 0 {
				a.say("No digits found.")
			}

		case "digit":
			snap := flow.Snapshot()
			if len(parts) != 2 || len(parts[1]) != 1 || !flow.Input(snap.Focus, rune(parts[1][0])) {
				a.say("Usage: digit <0-9>")
			}

		case "back":
			flow.Backspace(flow.Snapshot().Focus)

		case "focus":
			n, err := strconv.Atoi(strings.Join(parts[1:], ""))
			if err != nil || n < 1 || n > otp.CodeLength {
				a.say("Usage: focus <1-%d>", otp.CodeLength)
				continue
			}
			flow.SetFocus(n - 1)

		case "submit":
			err := flow.Submit(ctx)
			switch {
			case err == nil:
				return true, nil
			case errors.Is(err, otp.ErrIncompleteCode):
				a.say("Please enter all %d digits.", otp.CodeLength)
			default:
				a.fail(ctx, err)
			}

		case "resend":
			err := flow.Resend(ctx)
			switch {
			case err == nil:
				a.say("A new code has been sent to %s.", flow.Email())
			case errors.Is(err, otp.ErrNotReady):
				a.say("You can resend in %d seconds.", flow.Snapshot().ResendRemaining)
			default:
				a.fail(ctx, err)
			}

		case "status":
			a.printFlowStatus(flow.Snapshot())

		case "leave", "exit", "quit":
			return false, nil

		default:
			a.say("Unknown verify command: %s", parts[0])
		}
	}
}

func (a *App) printFlowStatus(p otp.PendingVerification) {
	a.say("Email: %s", p.Email)
	a.say("Code: %s", renderCode(p))
	a.say("Attempt: %s", p.Attempt)
	if p.Failure != nil {
		a.say("Last error: %s", client.MessageOf(p.Failure))
	}
	if p.ResendReady() {
		a.say("Resend: available")
	} else {
		a.say("Resend: in %ds", p.ResendRemaining)
	}
}

// renderCode draws the cells, bracketing the focused one: "1 2 [_] _ _ _".
func renderCode(p otp.PendingVerification) string {
	cells := make([]string, len(p.Cells))
	for i, c := range p.Cells {
		if c == "" {
			c = "_"
		}
		if i == p.Focus {
			c = "[" + c + "]"
		}
		cells[i] = c
	}
	return strings.Join(cells, " ")
}
