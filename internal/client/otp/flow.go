// Package otp drives the email verification step that follows signup:
// six-digit code entry, submission and the resend cooldown.
package otp

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/expertease/internal/logging"
)

var (
	ErrEmailRequired  = errors.New("email is required to verify")
	ErrIncompleteCode = errors.New("please enter all 6 digits")
	ErrNotReady       = errors.New("resend is not available yet")
	ErrBusy           = errors.New("verification is already being submitted")
	ErrFinished       = errors.New("verification already completed")
)

// Verifier is the part of the credential service the flow calls.
type Verifier interface {
	VerifyOTP(ctx context.Context, email, code string) error
	ResendOTP(ctx context.Context, email string) error
}

type AttemptState int

const (
	AttemptIdle AttemptState = iota
	AttemptSubmitting
	AttemptFailed
	AttemptSucceeded
)

func (s AttemptState) String() string {
	switch s {
	case AttemptIdle:
		return "idle"
	case AttemptSubmitting:
		return "submitting"
	case AttemptFailed:
		return "failed"
	case AttemptSucceeded:
		return "succeeded"
	default:
		return fmt.Sprintf("AttemptState(%d)", int(s))
	}
}

// PendingVerification is a copy of the flow state.
type PendingVerification struct {
	Email   string
	Cells   [CodeLength]string
	Focus   int
	Attempt AttemptState
	// Failure is set while Attempt is AttemptFailed.
	Failure error
	// ResendRemaining is 0 once resend is allowed.
	ResendRemaining int
}

func (p PendingVerification) Code() string { return strings.Join(p.Cells[:], "") }

func (p PendingVerification) ResendReady() bool { return p.ResendRemaining == 0 }

type Option func(*Flow)

// WithCooldown sets the resend cooldown. Default 60s.
func WithCooldown(d time.Duration) Option {
	return func(f *Flow) { f.timer = NewResendTimer(d) }
}

// WithTickInterval sets how often the countdown advances by one. Tests
// shorten it; the default is one second.
func WithTickInterval(d time.Duration) Option {
	return func(f *Flow) { f.tickEvery = d }
}

func WithLogger(l logging.Logger) Option {
	return func(f *Flow) { f.logger = l }
}

// OnSuccess registers the hand-off called once the code is accepted.
func OnSuccess(fn func(email string)) Option {
	return func(f *Flow) { f.onSuccess = fn }
}

// OnChange is called with a fresh snapshot after every state change,
// including countdown ticks.
func OnChange(fn func(PendingVerification)) Option {
	return func(f *Flow) { f.onChange = fn }
}

// Flow is one verification screen. Codes are kept after a failed
// submission so a single wrong digit can be corrected in place.
type Flow struct {
	email     string
	verifier  Verifier
	logger    logging.Logger
	tickEvery time.Duration
	onSuccess func(email string)
	onChange  func(PendingVerification)

	mu        sync.Mutex
	buf       CodeBuffer
	attempt   AttemptState
	failure   error
	timer     *ResendTimer
	resending bool

	closed bool
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewFlow(email string, v Verifier, opts ...Option) (*Flow, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return nil, ErrEmailRequired
	}
	f := &Flow{
		email:     email,
		verifier:  v,
		logger:    logging.Nop{},
		tickEvery: time.Second,
		timer:     NewResendTimer(DefaultCooldown),
	}
	for _, opt := range opts {
		opt(f)
	}
	f.logger = f.logger.With("component", "otp", "email", email)
	return f, nil
}

func (f *Flow) Email() string { return f.email }

// Start runs the resend countdown in the background until ctx is done,
// Close is called or verification succeeds. It does nothing once the flow
// has been closed.
func (f *Flow) Start(ctx context.Context) {
	f.mu.Lock()
	if f.cancel != nil || f.closed {
		f.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	f.cancel = cancel
	f.wg.Add(1)
	f.mu.Unlock()

	go func() {
		defer f.wg.Done()
		f.runTimer(ctx)
	}()
}

func (f *Flow) runTimer(ctx context.Context) {
	ticker := time.NewTicker(f.tickEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			f.Tick()
		case <-ctx.Done():
			return
		}
	}
}

// Close stops the countdown and waits for it to exit. Safe to call more
// than once.
func (f *Flow) Close() {
	f.mu.Lock()
	f.closed = true
	cancel := f.cancel
	f.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	f.wg.Wait()
}

// Tick advances the resend countdown by one second.
func (f *Flow) Tick() {
	f.mu.Lock()
	if f.timer.Ready() {
		f.mu.Unlock()
		return
	}
	if f.timer.Tick() {
		f.logger.Debug(context.Background(), "resend available")
	}
	f.mu.Unlock()
	f.changed()
}

// Input types digit d into cell i.
func (f *Flow) Input(i int, d rune) bool {
	return f.edit(func(b *CodeBuffer) bool { return b.Input(i, d) })
}

func (f *Flow) Backspace(i int) {
	f.edit(func(b *CodeBuffer) bool { b.Backspace(i); return true })
}

// Paste distributes pasted text over the cells.
func (f *Flow) Paste(s string) int {
	var n int
	f.edit(func(b *CodeBuffer) bool { n = b.Paste(s); return n > 0 })
	return n
}

func (f *Flow) SetFocus(i int) {
	f.edit(func(b *CodeBuffer) bool { b.SetFocus(i); return true })
}

// edit applies fn unless a submission is running or the flow is done.
// Any accepted edit clears a previous failure.
func (f *Flow) edit(fn func(*CodeBuffer) bool) bool {
	f.mu.Lock()
	if f.attempt == AttemptSubmitting || f.attempt == AttemptSucceeded {
		f.mu.Unlock()
		return false
	}
	ok := fn(&f.buf)
	if ok && f.attempt == AttemptFailed {
		f.attempt = AttemptIdle
		f.failure = nil
	}
	f.mu.Unlock()
	if ok {
		f.changed()
	}
	return ok
}

// Submit sends the code. An incomplete code fails locally without a
// server call. On success the countdown stops and the OnSuccess hand-off
// runs.
func (f *Flow) Submit(ctx context.Context) error {
	f.mu.Lock()
	switch f.attempt {
	case AttemptSubmitting:
		f.mu.Unlock()
		return ErrBusy
	case AttemptSucceeded:
		f.mu.Unlock()
		return ErrFinished
	}
	if !f.buf.Complete() {
		f.mu.Unlock()
		return ErrIncompleteCode
	}
	code := f.buf.Value()
	f.attempt = AttemptSubmitting
	f.failure = nil
	f.mu.Unlock()
	f.changed()

	err := f.verifier.VerifyOTP(ctx, f.email, code)

	f.mu.Lock()
	if err != nil {
		f.attempt = AttemptFailed
		f.failure = err
	} else {
		f.attempt = AttemptSucceeded
	}
	f.mu.Unlock()
	f.changed()

	if err != nil {
		f.logger.Info(ctx, "verification failed", "error", err)
		return err
	}

	f.logger.Info(ctx, "email verified")
	f.Close()
	if f.onSuccess != nil {
		f.onSuccess(f.email)
	}
	return nil
}

// Resend asks the server for a new code. While cooling it returns
// ErrNotReady without calling the server. A successful resend restarts the
// cooldown; a failed one leaves resend available.
func (f *Flow) Resend(ctx context.Context) error {
	f.mu.Lock()
	if f.attempt == AttemptSucceeded {
		f.mu.Unlock()
		return ErrFinished
	}
	if !f.timer.Ready() || f.resending {
		f.mu.Unlock()
		return ErrNotReady
	}
	f.resending = true
	f.mu.Unlock()

	err := f.verifier.ResendOTP(ctx, f.email)

	f.mu.Lock()
	f.resending = false
	if err == nil {
		f.timer.Reset()
	}
	f.mu.Unlock()

	if err != nil {
		f.logger.Info(ctx, "resend failed", "error", err)
		return err
	}
	f.logger.Info(ctx, "verification code resent")
	f.changed()
	return nil
}

func (f *Flow) Snapshot() PendingVerification {
	f.mu.Lock()
	defer f.mu.Unlock()
	return PendingVerification{
		Email:           f.email,
		Cells:           f.buf.Cells(),
		Focus:           f.buf.Focus(),
		Attempt:         f.attempt,
		Failure:         f.failure,
		ResendRemaining: f.timer.Remaining(),
	}
}

func (f *Flow) changed() {
	if f.onChange != nil {
		f.onChange(f.Snapshot())
	}
}
