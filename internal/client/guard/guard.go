// Package guard decides whether a navigation to a protected path may
// proceed given the current session snapshot.
package guard

import (
	"fmt"
	"strings"

	"github.com/dmitrijs2005/expertease/internal/client/session"
)

type Role int

const (
	RoleNone Role = iota
	RoleUser
	RoleWorker
)

func (r Role) String() string {
	switch r {
	case RoleNone:
		return "none"
	case RoleUser:
		return "user"
	case RoleWorker:
		return "worker"
	default:
		return fmt.Sprintf("Role(%d)", int(r))
	}
}

// Login and landing paths per role.
const (
	UserLoginPath     = "/login"
	UserLandingPath   = "/services"
	WorkerLoginPath   = "/worker/login"
	WorkerLandingPath = "/worker/dashboard"
)

type Outcome int

const (
	// Pending means the session is still being restored. The caller shows
	// a neutral loading state and asks again later.
	Pending Outcome = iota
	Allow
	Redirect
)

func (o Outcome) String() string {
	switch o {
	case Pending:
		return "pending"
	case Allow:
		return "allow"
	case Redirect:
		return "redirect"
	default:
		return fmt.Sprintf("Outcome(%d)", int(o))
	}
}

// Decision is the result of a guard check. LoginPath and ReturnTo are set
// only for Redirect; ReturnTo is always the path that was requested.
type Decision struct {
	Outcome   Outcome
	LoginPath string
	ReturnTo  string
}

// Decide is the guard algorithm shared by both roles.
func Decide(snap session.Snapshot, requested string, role Role) Decision {
	if snap.IsRestoring {
		return Decision{Outcome: Pending}
	}
	if hasSession(snap, role) {
		return Decision{Outcome: Allow}
	}
	return Decision{Outcome: Redirect, LoginPath: LoginPathFor(role), ReturnTo: requested}
}

func hasSession(snap session.Snapshot, role Role) bool {
	switch role {
	case RoleNone:
		return true
	case RoleUser:
		return snap.User != nil
	case RoleWorker:
		return snap.Worker != nil
	default:
		return false
	}
}

// LoginPathFor returns the login page of role.
func LoginPathFor(role Role) string {
	if role == RoleWorker {
		return WorkerLoginPath
	}
	return UserLoginPath
}

// LandingPathFor returns where role goes after a login that carried no
// return path.
func LandingPathFor(role Role) string {
	if role == RoleWorker {
		return WorkerLandingPath
	}
	return UserLandingPath
}

// Guard binds Decide to one role.
type Guard struct {
	role Role
}

func UserGuard() Guard   { return Guard{role: RoleUser} }
func WorkerGuard() Guard { return Guard{role: RoleWorker} }

func (g Guard) Role() Role { return g.role }

func (g Guard) Check(snap session.Snapshot, requested string) Decision {
	return Decide(snap, requested, g.role)
}

// Destination is where to go after a successful login: the saved return
// path when there is one, otherwise the role's landing page.
func (g Guard) Destination(returnTo string) string {
	if returnTo = strings.TrimSpace(returnTo); returnTo != "" {
		return returnTo
	}
	return LandingPathFor(g.role)
}

var userRoutes = []string{"/dashboard", "/doctors", "/book/*", "/profile", "/services"}

var workerRoutes = []string{"/doctor/dashboard", "/doctor/availability", "/doctor/profile", "/worker/dashboard"}

// RequiredRole reports which session path needs. Paths outside the route
// table (home, signup, verify, the login pages) are public.
func RequiredRole(path string) Role {
	path = normalize(path)
	if matchAny(workerRoutes, path) {
		return RoleWorker
	}
	if matchAny(userRoutes, path) {
		return RoleUser
	}
	return RoleNone
}

// For returns the guard protecting path and whether there is one.
func For(path string) (Guard, bool) {
	role := RequiredRole(path)
	if role == RoleNone {
		return Guard{}, false
	}
	return Guard{role: role}, true
}

func matchAny(patterns []string, path string) bool {
	for _, p := range patterns {
		if prefix, ok := strings.CutSuffix(p, "/*"); ok {
			if strings.HasPrefix(path, prefix+"/") && len(path) > len(prefix)+1 {
				return true
			}
			continue
		}
		if path == p {
			return true
		}
	}
	return false
}

func normalize(path string) string {
	path = strings.TrimSpace(path)
	if i := strings.IndexAny(path, "?#"); i >= 0 {
		path = path[:i]
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	if len(path) > 1 {
		path = strings.TrimRight(path, "/")
	}
	return path
}
