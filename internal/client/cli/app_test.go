package cli

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/dmitrijs2005/expertease/internal/client/config"
	"github.com/dmitrijs2005/expertease/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsLoggedIn(t *testing.T) {
	a, _ := newTestApp(t, &fakeCreds{}, "doc@x.com\n")
	assert.False(t, a.isLoggedIn())

	require.NoError(t, a.WorkerLogin(context.Background()))
	assert.True(t, a.isLoggedIn())
}

func TestSetMode_ChangesAndLogsOnce(t *testing.T) {
	a, _ := newTestApp(t, &fakeCreds{}, "")
	var buf bytes.Buffer
	a.logger = logging.NewTextLogger(&buf, "info")

	a.setMode(context.Background(), ModeOnline)
	assert.Equal(t, ModeOnline, a.mode())
	assert.Contains(t, buf.String(), "mode=online")

	buf.Reset()
	a.setMode(context.Background(), ModeOnline)
	assert.Empty(t, buf.String(), "no log when mode does not change")

	a.setMode(context.Background(), ModeOffline)
	assert.Equal(t, ModeOffline, a.mode())
	assert.Contains(t, buf.String(), "mode=offline")
}

func TestStartOnlineStatusWatcher(t *testing.T) {
	a, _ := newTestApp(t, &fakeCreds{}, "")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		a.StartOnlineStatusWatcher(ctx, 5*time.Millisecond)
		close(done)
	}()
	require.Eventually(t, func() bool { return a.mode() == ModeOnline }, time.Second, 5*time.Millisecond)

	cancel()
	<-done

	a2, _ := newTestApp(t, &fakeCreds{}, "")
	a2.api = nopPinger{err: errors.New("connection refused")}
	ctx2, cancel2 := context.WithCancel(context.Background())
	defer cancel2()
	go a2.StartOnlineStatusWatcher(ctx2, 5*time.Millisecond)
	require.Eventually(t, func() bool { return a2.mode() == ModeOffline }, time.Second, 5*time.Millisecond)
}

func TestGetStatus(t *testing.T) {
	stubPassword(t, "pw123")
	a, _ := newTestApp(t, &fakeCreds{}, "jane1\ndoc@x.com\n")
	assert.Equal(t, "/", a.getStatus())

	require.NoError(t, a.Login(context.Background()))
	require.NoError(t, a.WorkerLogin(context.Background()))
	a.setMode(context.Background(), ModeOnline)

	assert.Equal(t, "/worker/dashboard (Jane, worker doc@x.com, online)", a.getStatus())
}

func TestNewApp_WiresStore(t *testing.T) {
	cfg := &config.Config{}
	cfg.LoadDefaults()
	cfg.StorePath = filepath.Join(t.TempDir(), "session.db")
	cfg.APIBaseURL = "http://127.0.0.1:1"

	a := NewApp(context.Background(), cfg, nil)
	defer a.Close()

	require.NoError(t, a.session.Restore(context.Background()))
	assert.False(t, a.isLoggedIn())
}

func TestNewApp_UnopenableStoreFallsBackToMemory(t *testing.T) {
	cfg := &config.Config{}
	cfg.LoadDefaults()
	cfg.StorePath = "/nonexistent-dir/deeper/session.db"
	cfg.APIBaseURL = "http://127.0.0.1:1"
	var logs bytes.Buffer

	a := NewApp(context.Background(), cfg, logging.NewTextLogger(&logs, "warn"))
	require.NotNil(t, a)
	defer a.Close()

	require.NoError(t, a.session.Restore(context.Background()))
	snap := a.session.Snapshot()
	assert.False(t, snap.IsRestoring)
	assert.Nil(t, snap.User)
	assert.Nil(t, snap.Worker)
	assert.Contains(t, logs.String(), "keeping session in memory")
}
