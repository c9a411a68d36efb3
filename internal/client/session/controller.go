// Package session owns the client's authenticated identities: the user
// session (password login, bearer token) and the worker session
// (passwordless, email identified). Both are persisted through a Store
// and restored at startup.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/dmitrijs2005/expertease/internal/client/client"
	"github.com/dmitrijs2005/expertease/internal/client/services"
	"github.com/dmitrijs2005/expertease/internal/logging"
	"golang.org/x/sync/errgroup"
)

var (
	// ErrOperationInProgress is returned when a login or restore is
	// attempted while another one has not finished yet.
	ErrOperationInProgress = errors.New("another session operation is in progress")

	// ErrSessionReset is returned by a login that completed after a
	// logout; its result is discarded.
	ErrSessionReset = errors.New("session was reset during login")
)

type State int

const (
	StateUnknown State = iota
	StateRestoring
	StateResolved
)

func (s State) String() string {
	switch s {
	case StateUnknown:
		return "unknown"
	case StateRestoring:
		return "restoring"
	case StateResolved:
		return "resolved"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

type UserSession struct {
	UserID      client.ID
	DisplayName string
	Token       string
}

// WorkerSession is rebuilt at startup from the persisted id and email
// without asking the server; the backend offers no way to revalidate it.
type WorkerSession struct {
	WorkerID       client.ID
	Email          string
	Service        string
	Specialization string
}

// Snapshot is a copy of the session state. Guards must not decide
// anything while IsRestoring is set.
type Snapshot struct {
	User        *UserSession
	Worker      *WorkerSession
	IsRestoring bool
}

// UnauthorizedNotifier delivers the transport's unauthorized signal.
// *client.HTTPClient implements it.
type UnauthorizedNotifier interface {
	OnUnauthorized(fn func(ctx context.Context)) func()
}

// Controller is the single owner of session state.
type Controller struct {
	creds  services.CredentialService
	store  Store
	logger logging.Logger

	busy atomic.Bool

	mu     sync.RWMutex
	state  State
	epoch  uint64
	user   *UserSession
	worker *WorkerSession

	subMu   sync.Mutex
	nextSub int
	subs    map[int]func(Snapshot)
}

func NewController(creds services.CredentialService, store Store, logger logging.Logger) *Controller {
	if logger == nil {
		logger = logging.Nop{}
	}
	return &Controller{
		creds:  creds,
		store:  store,
		logger: logger.With("component", "session"),
		subs:   make(map[int]func(Snapshot)),
	}
}

func (c *Controller) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Snapshot returns the current state. It reports IsRestoring until the
// first Restore has completed.
func (c *Controller) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snapshotLocked()
}

func (c *Controller) snapshotLocked() Snapshot {
	s := Snapshot{IsRestoring: c.state != StateResolved}
	if c.user != nil {
		u := *c.user
		s.User = &u
	}
	if c.worker != nil {
		w := *c.worker
		s.Worker = &w
	}
	return s
}

// Subscribe calls fn with a fresh snapshot after every state change. The
// returned func unsubscribes.
func (c *Controller) Subscribe(fn func(Snapshot)) func() {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = fn
	return func() {
		c.subMu.Lock()
		delete(c.subs, id)
		c.subMu.Unlock()
	}
}

func (c *Controller) notify() {
	snap := c.Snapshot()

	c.subMu.Lock()
	fns := make([]func(Snapshot), 0, len(c.subs))
	for _, fn := range c.subs {
		fns = append(fns, fn)
	}
	c.subMu.Unlock()

	for _, fn := range fns {
		fn(snap)
	}
}

// AttachUnauthorized makes the controller drop the user session whenever
// n raises the unauthorized signal. The returned func detaches it.
func (c *Controller) AttachUnauthorized(n UnauthorizedNotifier) func() {
	return n.OnUnauthorized(c.HandleUnauthorized)
}

// Restore rebuilds the session from the store. The stored token is checked
// against the server and dropped if rejected; the worker pair is trusted as
// is. Both checks run concurrently and Restore returns once both are done.
// A failed check is never reported: it just leaves that role logged out.
func (c *Controller) Restore(ctx context.Context) error {
	if !c.busy.CompareAndSwap(false, true) {
		return ErrOperationInProgress
	}
	defer c.busy.Store(false)

	c.mu.Lock()
	c.state = StateRestoring
	epoch := c.epoch
	c.mu.Unlock()
	c.notify()

	var (
		user   *UserSession
		worker *WorkerSession
	)

	var g errgroup.Group
	g.Go(func() error {
		user = c.restoreUser(ctx)
		return nil
	})
	g.Go(func() error {
		worker = c.restoreWorker(ctx)
		return nil
	})
	_ = g.Wait()

	c.mu.Lock()
	if c.epoch == epoch {
		c.user = user
		c.worker = worker
	}
	c.state = StateResolved
	c.mu.Unlock()

	c.logger.Info(ctx, "session restored", "user", user != nil, "worker", worker != nil)
	c.notify()
	return nil
}

func (c *Controller) restoreUser(ctx context.Context) *UserSession {
	token, ok := c.store.Get(ctx, KeyToken)
	if !ok || token == "" {
		return nil
	}

	profile, err := c.creds.FetchUserProfile(ctx, token)
	if err != nil {
		c.logger.Info(ctx, "stored token rejected, clearing user session", "error", err)
		if err := c.store.Remove(ctx, KeyToken, KeyUserID); err != nil {
			c.logger.Warn(ctx, "failed to clear stored token", "error", err)
		}
		return nil
	}

	id := profile.UserID
	if id == "" {
		stored, _ := c.store.Get(ctx, KeyUserID)
		id = client.ID(stored)
	}
	return &UserSession{UserID: id, DisplayName: profile.DisplayName(), Token: token}
}

func (c *Controller) restoreWorker(ctx context.Context) *WorkerSession {
	id, okID := c.store.Get(ctx, KeyWorkerID)
	email, okEmail := c.store.Get(ctx, KeyWorkerEmail)
	if !okID || !okEmail || id == "" || email == "" {
		return nil
	}
	return &WorkerSession{WorkerID: client.ID(id), Email: email}
}

// Login authenticates a user. It succeeds only when both the token
// issuance and the profile fetch succeed; the token is persisted last, so
// any failure leaves state and store untouched.
func (c *Controller) Login(ctx context.Context, username, password string) (UserSession, error) {
	if !c.busy.CompareAndSwap(false, true) {
		return UserSession{}, ErrOperationInProgress
	}
	defer c.busy.Store(false)

	epoch := c.currentEpoch()

	res, err := c.creds.LoginUser(ctx, username, password)
	if err != nil {
		c.logger.Info(ctx, "user login failed", "username", username, "error", err)
		return UserSession{}, err
	}

	profile, err := c.creds.FetchUserProfile(ctx, res.Token)
	if err != nil {
		c.logger.Warn(ctx, "profile fetch after login failed", "username", username, "error", err)
		return UserSession{}, err
	}

	us := UserSession{UserID: res.UserID, DisplayName: profile.DisplayName(), Token: res.Token}

	c.mu.Lock()
	if c.epoch != epoch {
		c.mu.Unlock()
		return UserSession{}, ErrSessionReset
	}
	err = persistAll(ctx, c.store, map[string]string{
		KeyToken:  res.Token,
		KeyUserID: res.UserID.String(),
	})
	if err != nil {
		c.mu.Unlock()
		c.logger.Error(ctx, "failed to persist user session", "error", err)
		return UserSession{}, fmt.Errorf("persist user session: %w", err)
	}
	c.user = &us
	c.mu.Unlock()

	c.logger.Info(ctx, "user logged in", "username", username, "user_id", us.UserID)
	c.notify()
	return us, nil
}

// WorkerLogin authenticates a worker by registered email.
func (c *Controller) WorkerLogin(ctx context.Context, email string) (WorkerSession, error) {
	if !c.busy.CompareAndSwap(false, true) {
		return WorkerSession{}, ErrOperationInProgress
	}
	defer c.busy.Store(false)

	epoch := c.currentEpoch()

	res, err := c.creds.LoginWorker(ctx, email)
	if err != nil {
		c.logger.Info(ctx, "worker login failed", "email", email, "error", err)
		return WorkerSession{}, err
	}

	ws := WorkerSession{
		WorkerID:       res.WorkerID,
		Email:          email,
		Service:        res.Service,
		Specialization: res.Specialization,
	}

	c.mu.Lock()
	if c.epoch != epoch {
		c.mu.Unlock()
		return WorkerSession{}, ErrSessionReset
	}
	err = persistAll(ctx, c.store, map[string]string{
		KeyWorkerID:    res.WorkerID.String(),
		KeyWorkerEmail: email,
	})
	if err != nil {
		c.mu.Unlock()
		c.logger.Error(ctx, "failed to persist worker session", "error", err)
		return WorkerSession{}, fmt.Errorf("persist worker session: %w", err)
	}
	c.worker = &ws
	c.mu.Unlock()

	c.logger.Info(ctx, "worker logged in", "email", email, "worker_id", ws.WorkerID)
	c.notify()
	return ws, nil
}

// Logout drops both sessions and every persisted key. It is safe to call
// any number of times. A login still in flight is discarded when it
// returns.
func (c *Controller) Logout(ctx context.Context) {
	c.mu.Lock()
	c.epoch++
	c.user = nil
	c.worker = nil
	if err := c.store.Remove(ctx, AllKeys...); err != nil {
		c.logger.Error(ctx, "failed to clear persisted session", "error", err)
	}
	c.mu.Unlock()

	c.logger.Info(ctx, "logged out")
	c.notify()
}

// HandleUnauthorized reacts to a rejected token: the user session and its
// persisted keys are cleared. The worker session is left alone.
func (c *Controller) HandleUnauthorized(ctx context.Context) {
	c.mu.Lock()
	had := c.user != nil
	c.user = nil
	if err := c.store.Remove(ctx, KeyToken, KeyUserID); err != nil {
		c.logger.Error(ctx, "failed to clear rejected token", "error", err)
	}
	c.mu.Unlock()

	if had {
		c.logger.Info(ctx, "token rejected by server, user session cleared")
		c.notify()
	}
}

func (c *Controller) currentEpoch() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.epoch
}
