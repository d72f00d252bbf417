package apiclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"go-logrelay/internal/models"
	"go-logrelay/internal/utils"
)

const testSecret = "test-secret"

// fakeCollector issues real JWTs and records calls per path.
type fakeCollector struct {
	t          *testing.T
	mu         sync.Mutex
	calls      map[string]int
	accessTTL  time.Duration
	rejectNext int // number of entry posts to answer with 401
	entryCode  int
	received   []models.Entry
}

func newFakeCollector(t *testing.T) (*fakeCollector, *httptest.Server) {
	fc := &fakeCollector{t: t, calls: make(map[string]int), accessTTL: time.Hour, entryCode: http.StatusAccepted}
	srv := httptest.NewServer(fc)
	t.Cleanup(srv.Close)
	return fc, srv
}

func (fc *fakeCollector) count(path string) int {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	return fc.calls[path]
}

func (fc *fakeCollector) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	fc.calls[r.URL.Path]++

	switch r.URL.Path {
	case TokenPath:
		var req tokenRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.ClientID != "web" || req.ClientSecret != "pw" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		fc.writePair(w)
	case RefreshPath:
		var req refreshRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if _, err := utils.ValidateToken(req.RefreshToken, utils.TokenTypeRefresh, testSecret); err != nil {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		fc.writePair(w)
	default:
		token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		if _, err := utils.ValidateToken(token, utils.TokenTypeAccess, testSecret); err != nil || fc.rejectNext > 0 {
			if fc.rejectNext > 0 {
				fc.rejectNext--
			}
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		var e models.Entry
		_ = json.NewDecoder(r.Body).Decode(&e)
		fc.received = append(fc.received, e)
		w.WriteHeader(fc.entryCode)
	}
}

func (fc *fakeCollector) writePair(w http.ResponseWriter) {
	access, _, err := utils.GenerateToken("web", utils.TokenTypeAccess, testSecret, fc.accessTTL)
	if err != nil {
		fc.t.Error(err)
	}
	refresh, _, err := utils.GenerateToken("web", utils.TokenTypeRefresh, testSecret, time.Hour)
	if err != nil {
		fc.t.Error(err)
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(TokenPair{AccessToken: access, RefreshToken: refresh, TokenType: "Bearer", ExpiresIn: int64(fc.accessTTL.Seconds())})
}

func newTestSender(srv *httptest.Server, secret string) *Sender {
	return NewSender(New(Config{BaseURL: srv.URL, ClientID: "web", ClientSecret: secret, Timeout: 5 * time.Second}, nil))
}

func TestSender_DeliversWithBearerToken(t *testing.T) {
	fc, srv := newFakeCollector(t)
	s := newTestSender(srv, "pw")

	for i := 0; i < 2; i++ {
		if err := s.Send(context.Background(), "/api/v1/logging/frontend/logs", models.Entry{Level: models.LevelInfo, Message: "hello"}); err != nil {
			t.Fatalf("Send: %v", err)
		}
	}
	if fc.count(TokenPath) != 1 {
		t.Errorf("token should be cached, logins=%d", fc.count(TokenPath))
	}
	if len(fc.received) != 2 || fc.received[0].Message != "hello" {
		t.Errorf("unexpected received entries: %+v", fc.received)
	}
}

func TestSender_RetriesOnceAfter401(t *testing.T) {
	fc, srv := newFakeCollector(t)
	fc.rejectNext = 1
	s := newTestSender(srv, "pw")

	if err := s.Send(context.Background(), "/api/v1/exceptions/frontend", models.Entry{Message: "boom"}); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if fc.count(RefreshPath) != 1 {
		t.Errorf("expected one refresh, got %d", fc.count(RefreshPath))
	}
	if fc.count("/api/v1/exceptions/frontend") != 2 {
		t.Errorf("expected original + one retry, got %d", fc.count("/api/v1/exceptions/frontend"))
	}
}

func TestSender_GivesUpAfterSecond401(t *testing.T) {
	fc, srv := newFakeCollector(t)
	fc.rejectNext = 5
	s := newTestSender(srv, "pw")

	err := s.Send(context.Background(), "/api/v1/exceptions/frontend", models.Entry{Message: "boom"})
	if !errors.Is(err, ErrSendFailed) {
		t.Fatalf("expected ErrSendFailed, got %v", err)
	}
	if fc.count("/api/v1/exceptions/frontend") != 2 {
		t.Errorf("expected exactly one retry, got %d calls", fc.count("/api/v1/exceptions/frontend"))
	}
}

func TestSender_NonSuccessStatusFails(t *testing.T) {
	fc, srv := newFakeCollector(t)
	fc.entryCode = http.StatusInternalServerError
	s := newTestSender(srv, "pw")

	if err := s.Send(context.Background(), "/api/v1/logging/frontend/logs", models.Entry{}); !errors.Is(err, ErrSendFailed) {
		t.Fatalf("expected ErrSendFailed, got %v", err)
	}
}

func TestSender_BadCredentials(t *testing.T) {
	_, srv := newFakeCollector(t)
	s := newTestSender(srv, "wrong")

	err := s.Send(context.Background(), "/api/v1/logging/frontend/logs", models.Entry{})
	if !errors.Is(err, ErrSendFailed) || !errors.Is(err, ErrAuthFailed) {
		t.Fatalf("expected ErrSendFailed wrapping ErrAuthFailed, got %v", err)
	}
}

func TestSender_TransportError(t *testing.T) {
	_, srv := newFakeCollector(t)
	s := newTestSender(srv, "pw")
	srv.Close()

	if err := s.Send(context.Background(), "/api/v1/logging/frontend/logs", models.Entry{}); !errors.Is(err, ErrSendFailed) {
		t.Fatalf("expected ErrSendFailed, got %v", err)
	}
}

func TestTokenManager_ProactiveRefresh(t *testing.T) {
	fc, srv := newFakeCollector(t)
	fc.accessTTL = 10 * time.Second // inside the refresh skew
	c := New(Config{BaseURL: srv.URL, ClientID: "web", ClientSecret: "pw"}, nil)

	first, err := c.Tokens().AccessToken(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if first == "" {
		t.Fatal("empty token")
	}
	if _, err := c.Tokens().AccessToken(context.Background()); err != nil {
		t.Fatal(err)
	}
	if fc.count(RefreshPath) != 1 {
		t.Errorf("near-expiry token should be refreshed, refreshes=%d", fc.count(RefreshPath))
	}
}

func TestTokenManager_InvalidateSkipsWhenAlreadyReplaced(t *testing.T) {
	fc, srv := newFakeCollector(t)
	c := New(Config{BaseURL: srv.URL, ClientID: "web", ClientSecret: "pw"}, nil)

	current, err := c.Tokens().AccessToken(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	got, err := c.Tokens().Invalidate(context.Background(), "some-older-token")
	if err != nil {
		t.Fatal(err)
	}
	if got != current || fc.count(RefreshPath) != 0 {
		t.Errorf("expected current token without refresh, refreshes=%d", fc.count(RefreshPath))
	}
}

func TestTokenManager_ConcurrentCallersShareOneRefresh(t *testing.T) {
	fc, srv := newFakeCollector(t)
	c := New(Config{BaseURL: srv.URL, ClientID: "web", ClientSecret: "pw"}, nil)
	tokens := c.Tokens()

	initial, err := tokens.AccessToken(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	// Move past the first token's expiry; the renewed token outlives the shifted clock.
	tokens.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	fc.mu.Lock()
	fc.accessTTL = 4 * time.Hour
	fc.mu.Unlock()

	const callers = 8
	var wg sync.WaitGroup
	start := make(chan struct{})
	got := make([]string, callers)
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			got[i], errs[i] = tokens.AccessToken(context.Background())
		}(i)
	}
	close(start)
	wg.Wait()

	for i := 0; i < callers; i++ {
		if errs[i] != nil {
			t.Fatalf("caller %d: %v", i, errs[i])
		}
		if got[i] == initial || got[i] != got[0] {
			t.Errorf("caller %d got a different or stale token", i)
		}
	}
	if n := fc.count(RefreshPath); n != 1 {
		t.Errorf("expected exactly one refresh round trip, got %d", n)
	}
	if n := fc.count(TokenPath); n != 1 {
		t.Errorf("expected no extra logins, got %d", n)
	}
}
