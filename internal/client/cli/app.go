package cli

import (
	"bufio"
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/expertease/internal/client/client"
	"github.com/dmitrijs2005/expertease/internal/client/config"
	"github.com/dmitrijs2005/expertease/internal/client/guard"
	"github.com/dmitrijs2005/expertease/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/expertease/internal/client/services"
	"github.com/dmitrijs2005/expertease/internal/client/session"
	"github.com/dmitrijs2005/expertease/internal/logging"

	_ "modernc.org/sqlite"
)

type Mode string

const (
	ModeOffline Mode = "offline"
	ModeOnline  Mode = "online"
)

type pinger interface {
	Ping(ctx context.Context) error
}

type App struct {
	config  *config.Config
	logger  logging.Logger
	api     pinger
	creds   services.CredentialService
	session *session.Controller
	reader  *bufio.Reader
	out     io.Writer

	mu       sync.Mutex
	Mode     Mode
	location string
	// pendingEmail is the address of the last signup, used by verify.
	pendingEmail string
	// loggingOut is set while Logout runs so the session watcher can
	// tell an explicit logout from a rejected token.
	loggingOut bool

	closers []func()
}

// NewApp wires the local session store, the HTTP client and the session
// controller according to c. When the store cannot be opened the session
// is kept in memory for this run and is lost on exit.
func NewApp(ctx context.Context, c *config.Config, logger logging.Logger) *App {
	if logger == nil {
		logger = logging.Nop{}
	}

	var (
		store   session.Store
		closeFn func()
	)
	db, err := client.InitDatabase(ctx, c.StorePath)
	if err != nil {
		logger.Warn(ctx, "session store unavailable, keeping session in memory", "path", c.StorePath, "error", err)
		store = session.NewMemoryStore()
	} else {
		store = session.NewKVStore(metadata.NewSQLiteRepository(db), logger)
		closeFn = func() { closeDB(ctx, db, logger) }
	}

	api := client.NewHTTPClient(c.APIBaseURL, c.RequestTimeout,
		client.WithTokenSource(session.TokenSource(store)),
		client.WithLogger(logger),
	)
	creds := services.NewCredentialService(api, logger)
	ctrl := session.NewController(creds, store, logger)

	a := newApp(c, logger, api, creds, ctrl, bufio.NewReader(os.Stdin), os.Stdout)
	a.closers = append(a.closers,
		ctrl.AttachUnauthorized(api),
		api.OnError(func(ctx context.Context, e *client.APIError) {
			logger.Warn(ctx, "request failed", "kind", e.Kind, "status", e.Status, "message", e.Message)
		}),
	)
	if closeFn != nil {
		a.closers = append(a.closers, closeFn)
	}
	return a
}

func newApp(c *config.Config, logger logging.Logger, api pinger, creds services.CredentialService,
	ctrl *session.Controller, reader *bufio.Reader, out io.Writer) *App {
	a := &App{
		config:   c,
		logger:   logger,
		api:      api,
		creds:    creds,
		session:  ctrl,
		reader:   reader,
		out:      out,
		location: "/",
	}
	a.closers = append(a.closers, ctrl.Subscribe(a.onSessionChange))
	return a
}

func closeDB(ctx context.Context, db *sql.DB, logger logging.Logger) {
	if err := db.Close(); err != nil {
		logger.Warn(ctx, "error closing session store", "error", err)
	}
}

// Close releases everything NewApp acquired.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

// Run restores the persisted session, starts the connectivity watcher and
// blocks in the REPL until the user exits or ctx is done.
func (a *App) Run(ctx context.Context) error {
	defer a.Close()

	a.say("Welcome to ExpertEase CLI (type 'help' for commands)")

	if err := a.session.Restore(ctx); err != nil {
		return fmt.Errorf("restore session: %w", err)
	}
	a.greet()

	watchCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go a.StartOnlineStatusWatcher(watchCtx, a.config.OnlineCheckInterval)

	runREPL(ctx, a, a.getStatus, a.reader)
	return nil
}

func (a *App) greet() {
	snap := a.session.Snapshot()
	if snap.User != nil {
		a.say("Welcome back, %s!", snap.User.DisplayName)
	}
	if snap.Worker != nil {
		a.say("Signed in as worker %s.", snap.Worker.Email)
	}
}

func (a *App) say(format string, args ...any) {
	fmt.Fprintf(a.out, format+"\n", args...)
}

func (a *App) setMode(ctx context.Context, mode Mode) {
	a.mu.Lock()
	changed := a.Mode != mode
	a.Mode = mode
	a.mu.Unlock()

	if changed {
		a.logger.Info(ctx, "connectivity changed", "mode", mode)
	}
}

func (a *App) mode() Mode {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.Mode
}

func (a *App) isLoggedIn() bool {
	snap := a.session.Snapshot()
	return snap.User != nil || snap.Worker != nil
}

func (a *App) currentLocation() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.location
}

func (a *App) navigate(path string) {
	a.mu.Lock()
	a.location = path
	a.mu.Unlock()
	a.say("Now at %s", path)
}

// onSessionChange tells the user when the user session vanished without
// an explicit logout, which only happens after the server rejected the
// token.
func (a *App) onSessionChange(snap session.Snapshot) {
	if snap.IsRestoring || snap.User != nil {
		return
	}
	a.mu.Lock()
	explicit := a.loggingOut
	loc := a.location
	a.mu.Unlock()

	if explicit || guard.RequiredRole(loc) != guard.RoleUser {
		return
	}
	a.say("Your session has expired. Please log in again.")
	a.mu.Lock()
	a.location = guard.UserLoginPath
	a.mu.Unlock()
}

// StartOnlineStatusWatcher pings the backend every interval and flips
// Mode accordingly. It returns when ctx is done.
func (a *App) StartOnlineStatusWatcher(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			pctx, cancel := context.WithTimeout(ctx, 3*time.Second)
			err := a.api.Ping(pctx)
			cancel()

			if err != nil {
				a.setMode(ctx, ModeOffline)
			} else {
				a.setMode(ctx, ModeOnline)
			}

		case <-ctx.Done():
			return
		}
	}
}

func (a *App) getStatus() string {
	var parts []string
	snap := a.session.Snapshot()
	if snap.User != nil {
		parts = append(parts, snap.User.DisplayName)
	}
	if snap.Worker != nil {
		parts = append(parts, "worker "+snap.Worker.Email)
	}
	if m := a.mode(); m != "" {
		parts = append(parts, string(m))
	}
	s := a.currentLocation()
	if len(parts) > 0 {
		s += " (" + strings.Join(parts, ", ") + ")"
	}
	return s
}
