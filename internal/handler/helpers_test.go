package handler_test

import (
	"context"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/msomdec/trackitnow/internal/domain"
	"github.com/msomdec/trackitnow/internal/handler"
	"github.com/msomdec/trackitnow/internal/repository/sqlite"
	"github.com/msomdec/trackitnow/internal/service"
)

const testJWTSecret = "test-secret-for-handler-tests-0123456789"

// recordingGateway captures notifications instead of sending them.
type recordingGateway struct {
	mu        sync.Mutex
	subs      []string
	published []string
}

func (g *recordingGateway) CreateTopic(_ context.Context, name string) (string, error) {
	return "topic:" + name, nil
}

func (g *recordingGateway) Subscribe(_ context.Context, topic, _, endpoint string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.subs = append(g.subs, topic+"|"+endpoint)
	return "sub", nil
}

func (g *recordingGateway) Publish(_ context.Context, topic, _, message string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.published = append(g.published, topic+"|"+message)
	return "msg", nil
}

func (g *recordingGateway) Published() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.published...)
}

func (g *recordingGateway) Subs() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.subs...)
}

type testEnv struct {
	auth    *service.AuthService
	ledger  *service.LedgerService
	gateway *recordingGateway
	db      *sqlite.DB
	srv     *httptest.Server
}

func newTestAuthService(t *testing.T) *service.AuthService {
	t.Helper()
	return newTestEnv(t, 1000).auth
}

func newTestEnv(t *testing.T, loginPerMinute int) *testEnv {
	t.Helper()
	return newTestEnvWithLedger(t, loginPerMinute, nil)
}

// newTestEnvWithLedger is newTestEnv with the ledger service's repository
// wrapped by wrap. Authentication still reads the unwrapped store.
func newTestEnvWithLedger(t *testing.T, loginPerMinute int, wrap func(domain.LedgerRepository) domain.LedgerRepository) *testEnv {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	db, err := sqlite.New(dbPath)
	if err != nil {
		t.Fatalf("New DB: %v", err)
	}
	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	var ledgerRepo domain.LedgerRepository = db.Ledger()
	if wrap != nil {
		ledgerRepo = wrap(ledgerRepo)
	}

	gw := &recordingGateway{}
	env := &testEnv{
		auth:    service.NewAuthService(db.Ledger(), testJWTSecret, 4),
		ledger:  service.NewLedgerService(ledgerRepo, time.Second),
		gateway: gw,
		db:      db,
	}
	// No confirmation function: confirmations are published straight to the topic.
	notify := service.NewNotificationService(gw, nil, "", time.Second)
	limiter := service.PerMinute(loginPerMinute)
	t.Cleanup(limiter.Close)

	mux := http.NewServeMux()
	handler.RegisterRoutes(mux, env.auth, env.ledger, notify, limiter, false)
	env.srv = httptest.NewServer(handler.SecurityHeaders(handler.RequestID(handler.LogRequests(mux))))
	t.Cleanup(env.srv.Close)
	return env
}

// newClient returns a client with a cookie jar that does not follow redirects.
func newClient(t *testing.T) *http.Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("create cookie jar: %v", err)
	}
	return &http.Client{
		Jar: jar,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

// registerAndLogin creates a user directly and returns its session token.
func registerAndLogin(t *testing.T, auth *service.AuthService, username string) string {
	t.Helper()
	ctx := context.Background()
	if _, err := auth.Register(ctx, username, username+"@example.com", "password123", "password123"); err != nil {
		t.Fatalf("Register: %v", err)
	}
	token, err := auth.Login(ctx, username, "password123")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	return token
}

// faultyLedger fails the calls whose error is set and delegates the rest.
type faultyLedger struct {
	domain.LedgerRepository
	getErr     error
	appendErr  error
	replaceErr error
}

func (f *faultyLedger) GetByUsername(ctx context.Context, username string) (*domain.UserRecord, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	return f.LedgerRepository.GetByUsername(ctx, username)
}

func (f *faultyLedger) AppendOrder(ctx context.Context, username string, order domain.Order) (int, error) {
	if f.appendErr != nil {
		return 0, f.appendErr
	}
	return f.LedgerRepository.AppendOrder(ctx, username, order)
}

func (f *faultyLedger) ReplaceOrders(ctx context.Context, username string, pickups, drops []string, version int64) error {
	if f.replaceErr != nil {
		return f.replaceErr
	}
	return f.LedgerRepository.ReplaceOrders(ctx, username, pickups, drops, version)
}
