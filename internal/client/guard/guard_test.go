package guard

import (
	"context"
	"testing"

	"github.com/dmitrijs2005/expertease/internal/client/client"
	"github.com/dmitrijs2005/expertease/internal/client/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	userSnap   = session.Snapshot{User: &session.UserSession{UserID: "1", Token: "t"}}
	workerSnap = session.Snapshot{Worker: &session.WorkerSession{WorkerID: "9", Email: "doc@x.com"}}
)

func TestDecide(t *testing.T) {
	tests := []struct {
		name string
		snap session.Snapshot
		path string
		role Role
		want Decision
	}{
		{
			name: "restoring never allows",
			snap: session.Snapshot{User: userSnap.User, IsRestoring: true},
			path: "/profile", role: RoleUser,
			want: Decision{Outcome: Pending},
		},
		{
			name: "user present",
			snap: userSnap, path: "/profile", role: RoleUser,
			want: Decision{Outcome: Allow},
		},
		{
			name: "user absent",
			snap: workerSnap, path: "/book/42", role: RoleUser,
			want: Decision{Outcome: Redirect, LoginPath: "/login", ReturnTo: "/book/42"},
		},
		{
			name: "worker present",
			snap: workerSnap, path: "/doctor/availability", role: RoleWorker,
			want: Decision{Outcome: Allow},
		},
		{
			name: "worker absent",
			snap: userSnap, path: "/doctor/availability", role: RoleWorker,
			want: Decision{Outcome: Redirect, LoginPath: "/worker/login", ReturnTo: "/doctor/availability"},
		},
		{
			name: "public path",
			snap: session.Snapshot{}, path: "/", role: RoleNone,
			want: Decision{Outcome: Allow},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Decide(tt.snap, tt.path, tt.role))
		})
	}
}

func TestDecide_NeverAllowsWhileRestoring(t *testing.T) {
	snaps := []session.Snapshot{
		{IsRestoring: true},
		{IsRestoring: true, User: userSnap.User},
		{IsRestoring: true, Worker: workerSnap.Worker},
		{IsRestoring: true, User: userSnap.User, Worker: workerSnap.Worker},
	}
	for _, s := range snaps {
		for _, r := range []Role{RoleNone, RoleUser, RoleWorker} {
			assert.NotEqual(t, Allow, Decide(s, "/profile", r).Outcome)
		}
	}
}

func TestRequiredRole(t *testing.T) {
	tests := map[string]Role{
		"/dashboard":           RoleUser,
		"/doctors":             RoleUser,
		"/book/17":             RoleUser,
		"/book":                RoleNone,
		"/book/":               RoleNone,
		"/profile/":            RoleUser,
		"services?q=x":         RoleUser,
		"/doctor/dashboard":    RoleWorker,
		"/doctor/availability": RoleWorker,
		"/doctor/profile":      RoleWorker,
		"/worker/dashboard":    RoleWorker,
		"/":                    RoleNone,
		"/signup":              RoleNone,
		"/verify":              RoleNone,
		"/login":               RoleNone,
		"/worker/login":        RoleNone,
	}
	for path, want := range tests {
		assert.Equal(t, want, RequiredRole(path), path)
	}
}

func TestFor(t *testing.T) {
	g, ok := For("/doctor/profile")
	require.True(t, ok)
	assert.Equal(t, RoleWorker, g.Role())

	_, ok = For("/signup")
	assert.False(t, ok)
}

func TestDestination(t *testing.T) {
	assert.Equal(t, "/book/3", UserGuard().Destination("/book/3"))
	assert.Equal(t, "/services", UserGuard().Destination(""))
	assert.Equal(t, "/worker/dashboard", WorkerGuard().Destination(" "))
}

// fakeCreds accepts every login.
type fakeCreds struct{}

func (fakeCreds) Signup(context.Context, client.SignupRequest) error { return nil }
func (fakeCreds) VerifyOTP(context.Context, string, string) error    { return nil }
func (fakeCreds) ResendOTP(context.Context, string) error            { return nil }
func (fakeCreds) LoginUser(context.Context, string, string) (client.LoginResult, error) {
	return client.LoginResult{Token: "tok", UserID: "1"}, nil
}
func (fakeCreds) FetchUserProfile(context.Context, string) (client.UserProfile, error) {
	return client.UserProfile{UserID: "1", UserName: "Jane"}, nil
}
func (fakeCreds) WorkerSignup(context.Context, client.WorkerSignupRequest) (client.WorkerSignupResult, error) {
	return client.WorkerSignupResult{WorkerID: "9"}, nil
}
func (fakeCreds) LoginWorker(context.Context, string) (client.WorkerLoginResult, error) {
	return client.WorkerLoginResult{WorkerID: "9"}, nil
}

func TestRedirectThenLoginAllowsSamePath(t *testing.T) {
	ctx := context.Background()
	c := session.NewController(fakeCreds{}, session.NewMemoryStore(), nil)
	require.NoError(t, c.Restore(ctx))

	g := UserGuard()
	d := g.Check(c.Snapshot(), "/book/42")
	require.Equal(t, Redirect, d.Outcome)
	require.Equal(t, "/login", d.LoginPath)

	_, err := c.Login(ctx, "jane1", "pw123")
	require.NoError(t, err)

	dest := g.Destination(d.ReturnTo)
	assert.Equal(t, "/book/42", dest)
	assert.Equal(t, Allow, g.Check(c.Snapshot(), dest).Outcome)
}

type signal struct{ fn func(context.Context) }

func (s *signal) OnUnauthorized(fn func(context.Context)) func() {
	s.fn = fn
	return func() {}
}

func TestUnauthorizedSignalRedirects(t *testing.T) {
	ctx := context.Background()
	c := session.NewController(fakeCreds{}, session.NewMemoryStore(), nil)
	require.NoError(t, c.Restore(ctx))
	sig := &signal{}
	c.AttachUnauthorized(sig)

	_, err := c.Login(ctx, "jane1", "pw123")
	require.NoError(t, err)
	require.Equal(t, Allow, UserGuard().Check(c.Snapshot(), "/profile").Outcome)

	sig.fn(ctx)

	d := UserGuard().Check(c.Snapshot(), "/profile")
	assert.Equal(t, Redirect, d.Outcome)
	assert.Equal(t, "/profile", d.ReturnTo)
}
