package cli

import (
	"bytes"
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/igmedia/internal/application"
	"github.com/ericfisherdev/igmedia/internal/domain/model"
	"github.com/ericfisherdev/igmedia/internal/domain/port/driven"
)

// --- fakes ---

type mockOAuth struct {
	refreshForce bool
	refreshRes   application.RefreshResult
	refreshErr   error
	disconnected bool
	status       application.AuthStatus
}

func (m *mockOAuth) Refresh(_ context.Context, force bool) (application.RefreshResult, error) {
	m.refreshForce = force
	return m.refreshRes, m.refreshErr
}

func (m *mockOAuth) Disconnect(_ context.Context) error {
	m.disconnected = true
	return nil
}

func (m *mockOAuth) Status(_ context.Context) (application.AuthStatus, error) {
	return m.status, nil
}

type mockSync struct {
	opts   application.SyncOptions
	report application.SyncReport
	err    error
}

func (m *mockSync) Sync(_ context.Context, opts application.SyncOptions) (application.SyncReport, error) {
	m.opts = opts
	return m.report, m.err
}

type mockSettings struct {
	values map[string]string
}

func (m *mockSettings) Set(_ context.Context, key, value string) error {
	if m.values == nil {
		m.values = map[string]string{}
	}
	m.values[key] = value
	return nil
}

type blockingRunner struct {
	started atomic.Bool
	stopped atomic.Bool
}

func (r *blockingRunner) Start(ctx context.Context) {
	r.started.Store(true)
	<-ctx.Done()
	r.stopped.Store(true)
}

// bootWith returns a Bootstrap for app and a counter of Close calls.
func bootWith(app *App) (Bootstrap, *int) {
	closed := 0
	app.Close = func() { closed++ }
	return func(context.Context) (*App, error) { return app, nil }, &closed
}

func execute(t *testing.T, boot Bootstrap, args ...string) (string, error) {
	t.Helper()
	return executeWithInput(t, boot, "", args...)
}

func executeWithInput(t *testing.T, boot Bootstrap, input string, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd(boot)
	cmd.SetIn(strings.NewReader(input))
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

// --- sync ---

func TestSyncCmd_PrintsReport(t *testing.T) {
	syncer := &mockSync{report: application.SyncReport{
		RunID: "run-1", Fetched: 5, Created: 3, Updated: 2, Duration: 1500 * time.Millisecond,
	}}
	boot, closed := bootWith(&App{Sync: syncer})

	out, err := execute(t, boot, "sync")

	require.NoError(t, err)
	assert.Equal(t, application.SyncOptions{Limit: application.DefaultSyncLimit}, syncer.opts)
	assert.Contains(t, out, "Fetched 5 items: 3 created, 2 updated, 0 failed")
	assert.Contains(t, out, "run-1")
	assert.NotContains(t, out, "Warning")
	assert.Equal(t, 1, *closed)
}

func TestSyncCmd_FlagsPassedThrough(t *testing.T) {
	syncer := &mockSync{}
	boot, _ := bootWith(&App{Sync: syncer})

	_, err := execute(t, boot, "sync", "--limit", "40", "--force")

	require.NoError(t, err)
	assert.Equal(t, application.SyncOptions{Limit: 40, Force: true}, syncer.opts)
}

func TestSyncCmd_ItemFailuresStillSucceed(t *testing.T) {
	syncer := &mockSync{report: application.SyncReport{Fetched: 3, Created: 2, Failed: 1, Hidden: 4}}
	boot, _ := bootWith(&App{Sync: syncer})

	out, err := execute(t, boot, "sync")

	require.NoError(t, err)
	assert.Contains(t, out, "Warning: 1 items were skipped")
	assert.Contains(t, out, "Hid 4 stale items")
}

func TestSyncCmd_Failure(t *testing.T) {
	syncer := &mockSync{err: model.ErrNotAuthorized}
	boot, closed := bootWith(&App{Sync: syncer})

	_, err := execute(t, boot, "sync")

	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrNotAuthorized)
	assert.Contains(t, err.Error(), "sync failed")
	assert.Equal(t, 1, *closed)
}

func TestBootstrapError(t *testing.T) {
	boot := func(context.Context) (*App, error) { return nil, errors.New("open database: disk full") }

	_, err := execute(t, boot, "status")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
}

// --- token commands ---

func TestRefreshTokenCmd_Refreshed(t *testing.T) {
	oauth := &mockOAuth{refreshRes: application.RefreshResult{
		Refreshed:       true,
		ExpiresAt:       time.Date(2026, 12, 16, 9, 30, 0, 0, time.UTC),
		DaysUntilExpiry: 60,
		Message:         "Token refreshed",
	}}
	boot, _ := bootWith(&App{OAuth: oauth})

	out, err := execute(t, boot, "refresh-token", "--force")

	require.NoError(t, err)
	assert.True(t, oauth.refreshForce)
	assert.Contains(t, out, "Token refreshed")
	assert.Contains(t, out, "2026-12-16T09:30:00Z (60 days)")
}

func TestRefreshTokenCmd_NotNeeded(t *testing.T) {
	oauth := &mockOAuth{refreshRes: application.RefreshResult{Message: "Token valid for 30 more days, refresh not needed"}}
	boot, _ := bootWith(&App{OAuth: oauth})

	out, err := execute(t, boot, "refresh-token")

	require.NoError(t, err)
	assert.False(t, oauth.refreshForce)
	assert.Contains(t, out, "refresh not needed")
	assert.NotContains(t, out, "New expiry")
}

func TestRefreshTokenCmd_Failure(t *testing.T) {
	oauth := &mockOAuth{refreshErr: model.ErrTokenExpired}
	boot, _ := bootWith(&App{OAuth: oauth})

	_, err := execute(t, boot, "refresh-token")

	assert.ErrorIs(t, err, model.ErrTokenExpired)
}

func TestAuthorizeURLCmd_PrintsServerRoute(t *testing.T) {
	boot, _ := bootWith(&App{AuthorizeURL: "https://shop.example.com/oauth/authorize"})

	out, err := execute(t, boot, "authorize-url")

	require.NoError(t, err)
	assert.Equal(t, "https://shop.example.com/oauth/authorize\n", out)
	assert.NotContains(t, out, "state=")
}

func TestDisconnectCmd(t *testing.T) {
	oauth := &mockOAuth{}
	boot, _ := bootWith(&App{OAuth: oauth})

	out, err := execute(t, boot, "disconnect")

	require.NoError(t, err)
	assert.True(t, oauth.disconnected)
	assert.Contains(t, out, "disconnected")
}

func TestStatusCmd(t *testing.T) {
	expires := time.Date(2026, 10, 20, 0, 0, 0, 0, time.UTC)
	days := 2
	oauth := &mockOAuth{status: application.AuthStatus{
		State:           model.TokenStateExpiringSoon,
		AppConfigured:   true,
		Username:        "shopfront",
		ExpiresAt:       &expires,
		DaysUntilExpiry: &days,
	}}
	boot, _ := bootWith(&App{OAuth: oauth})

	out, err := execute(t, boot, "status")

	require.NoError(t, err)
	assert.Contains(t, out, "EXPIRING_SOON")
	assert.Contains(t, out, "@shopfront")
	assert.Contains(t, out, "2026-10-20T00:00:00Z")
	assert.Contains(t, out, "Days remaining: 2")
	assert.NotContains(t, out, "Last refresh")
}

// --- settings ---

func TestSettingsSetCmd_StoresSecretWithoutEcho(t *testing.T) {
	store := &mockSettings{}
	boot, _ := bootWith(&App{Settings: store})

	out, err := execute(t, boot, "settings", "set", "app-secret", "  s3cr3t-value ")

	require.NoError(t, err)
	assert.Equal(t, "s3cr3t-value", store.values[driven.SettingAppSecret])
	assert.Contains(t, out, "app-secret updated")
	assert.NotContains(t, out, "s3cr3t-value")
}

func TestSettingsSetCmd_SecretFromStdin(t *testing.T) {
	for _, args := range [][]string{
		{"settings", "set", "app-secret"},
		{"settings", "set", "app-secret", "-"},
	} {
		t.Run(strings.Join(args, " "), func(t *testing.T) {
			store := &mockSettings{}
			boot, _ := bootWith(&App{Settings: store})

			out, err := executeWithInput(t, boot, "  piped-s3cr3t \nignored\n", args...)

			require.NoError(t, err)
			assert.Equal(t, "piped-s3cr3t", store.values[driven.SettingAppSecret])
			assert.Contains(t, out, "app-secret updated")
			assert.NotContains(t, out, "piped-s3cr3t")
		})
	}
}

func TestSettingsSetCmd_AppID(t *testing.T) {
	store := &mockSettings{}
	boot, _ := bootWith(&App{Settings: store})

	_, err := execute(t, boot, "settings", "set", "APP-ID", "1234")

	require.NoError(t, err)
	assert.Equal(t, "1234", store.values[driven.SettingAppID])
}

func TestSettingsSetCmd_Rejected(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"unknown key", []string{"settings", "set", "access-token", "x"}},
		{"empty value", []string{"settings", "set", "app-id", "   "}},
		{"missing value and empty stdin", []string{"settings", "set", "app-id"}},
		{"dash with empty stdin", []string{"settings", "set", "app-secret", "-"}},
		{"no key", []string{"settings", "set"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			booted := false
			boot := func(context.Context) (*App, error) {
				booted = true
				return &App{Settings: &mockSettings{}}, nil
			}

			_, err := execute(t, boot, tt.args...)

			require.Error(t, err)
			assert.False(t, booted)
		})
	}
}

// --- serve ---

func TestServeCmd_GracefulShutdown(t *testing.T) {
	runner := &blockingRunner{}
	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
	boot, closed := bootWith(&App{Handler: handler, Scheduler: runner, ListenAddr: "127.0.0.1:0"})

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(50*time.Millisecond, cancel)

	cmd := NewRootCmd(boot)
	cmd.SetOut(new(bytes.Buffer))
	cmd.SetArgs([]string{"serve"})
	err := cmd.ExecuteContext(ctx)

	require.NoError(t, err)
	assert.True(t, runner.started.Load())
	assert.True(t, runner.stopped.Load())
	assert.Equal(t, 1, *closed)
}

func TestServeCmd_ListenFailure(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	runner := &blockingRunner{}
	boot, _ := bootWith(&App{Handler: http.NotFoundHandler(), Scheduler: runner, ListenAddr: ln.Addr().String()})

	_, err = execute(t, boot, "serve")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "http server")
	assert.True(t, runner.stopped.Load(), "scheduler stops when the server cannot start")
}

// --- healthcheck ---

func TestHealthcheckCmd(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		wantErr bool
	}{
		{"healthy", http.StatusOK, false},
		{"unhealthy", http.StatusServiceUnavailable, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var path string
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				path = r.URL.Path
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			_, err := execute(t, nil, "healthcheck", "--addr", srv.Listener.Addr().String())

			assert.Equal(t, "/api/v1/health", path)
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), "503")
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestHealthcheckCmd_FromEnv(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	_, port, err := net.SplitHostPort(srv.Listener.Addr().String())
	require.NoError(t, err)
	t.Setenv("IGMEDIA_LISTEN_ADDR", "0.0.0.0:"+port)

	_, err = execute(t, nil, "healthcheck")

	assert.NoError(t, err)
}

func TestNormalizeAddr(t *testing.T) {
	tests := map[string]string{
		"":               "127.0.0.1:8080",
		"garbage":        "127.0.0.1:8080",
		"0.0.0.0:9090":   "127.0.0.1:9090",
		":7000":          "127.0.0.1:7000",
		"[::]:7000":      "127.0.0.1:7000",
		"10.0.0.5:8080":  "10.0.0.5:8080",
		"localhost:8081": "localhost:8081",
	}
	for in, want := range tests {
		assert.Equal(t, want, normalizeAddr(in), in)
	}
}
