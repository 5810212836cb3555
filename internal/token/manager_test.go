package token

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"smart-stay/internal/config"
	"smart-stay/internal/smartthings"
	"smart-stay/internal/storage"
)

type fakeExchanger struct {
	calls   atomic.Int32
	err     error
	resp    smartthings.TokenResponse
	release chan struct{}
	seen    chan string
}

func (f *fakeExchanger) ExchangeRefreshToken(ctx context.Context, refreshToken string) (*smartthings.TokenResponse, error) {
	f.calls.Add(1)
	if f.seen != nil {
		f.seen <- refreshToken
	}
	if f.release != nil {
		<-f.release
	}
	if f.err != nil {
		return nil, f.err
	}
	resp := f.resp
	return &resp, nil
}

type memoryStore struct {
	mu     sync.Mutex
	values map[string]string
	err    error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{values: map[string]string{}}
}

func (s *memoryStore) GetCredential(ctx context.Context, name string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.values[name]
	if !ok {
		return "", storage.ErrNotFound
	}
	return v, nil
}

func (s *memoryStore) PutCredential(ctx context.Context, name string, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.values[name] = value
	return nil
}

func TestAccessTokenUsesCache(t *testing.T) {
	ex := &fakeExchanger{resp: smartthings.TokenResponse{AccessToken: "at-1"}}
	m := NewManager(ex, newMemoryStore(), "rt-1")

	for i := 0; i < 3; i++ {
		token, err := m.AccessToken(context.Background(), false)
		if err != nil {
			t.Fatalf("AccessToken failed: %v", err)
		}
		if token != "at-1" {
			t.Errorf("expected at-1, got %s", token)
		}
	}
	if n := ex.calls.Load(); n != 1 {
		t.Errorf("expected a single exchange, got %d", n)
	}
}

func TestForcedRefreshReplacesToken(t *testing.T) {
	ex := &fakeExchanger{resp: smartthings.TokenResponse{AccessToken: "at-1"}}
	m := NewManager(ex, newMemoryStore(), "rt-1")
	if _, err := m.AccessToken(context.Background(), false); err != nil {
		t.Fatalf("AccessToken failed: %v", err)
	}

	ex.resp.AccessToken = "at-2"
	token, err := m.AccessToken(context.Background(), true)
	if err != nil {
		t.Fatalf("forced AccessToken failed: %v", err)
	}
	if token != "at-2" {
		t.Errorf("expected at-2, got %s", token)
	}
}

func TestFailedRefreshKeepsStaleToken(t *testing.T) {
	ex := &fakeExchanger{resp: smartthings.TokenResponse{AccessToken: "at-1"}}
	m := NewManager(ex, newMemoryStore(), "rt-1")
	if _, err := m.AccessToken(context.Background(), false); err != nil {
		t.Fatalf("AccessToken failed: %v", err)
	}

	ex.err = &smartthings.APIError{Op: "refresh", StatusCode: 400, Body: "invalid_grant"}
	if _, err := m.AccessToken(context.Background(), true); err == nil {
		t.Fatal("expected forced refresh to fail")
	}

	token, err := m.AccessToken(context.Background(), false)
	if err != nil || token != "at-1" {
		t.Errorf("expected stale token at-1 to survive, got %q (%v)", token, err)
	}
	if !m.State().HasAccessToken {
		t.Errorf("state lost the access token")
	}
}

func TestRotatedRefreshTokenPersisted(t *testing.T) {
	store := newMemoryStore()
	ex := &fakeExchanger{resp: smartthings.TokenResponse{AccessToken: "at-1", RefreshToken: "rt-2"}}
	m := NewManager(ex, store, "rt-1", WithSealer(NewSealer("test-secret")))

	if _, err := m.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}

	stored := store.values[config.REFRESH_TOKEN_KEY]
	if !strings.HasPrefix(stored, sealedPrefix) {
		t.Fatalf("expected sealed value in store, got %q", stored)
	}

	// A fresh manager prefers the persisted token over its bootstrap value.
	ex2 := &fakeExchanger{resp: smartthings.TokenResponse{AccessToken: "at-3"}, seen: make(chan string, 1)}
	m2 := NewManager(ex2, store, "rt-bootstrap", WithSealer(NewSealer("test-secret")))
	if err := m2.Load(context.Background()); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if _, err := m2.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}
	if got := <-ex2.seen; got != "rt-2" {
		t.Errorf("expected persisted refresh token rt-2 to be used, got %s", got)
	}
}

func TestPersistFailureStillReturnsToken(t *testing.T) {
	store := newMemoryStore()
	store.err = storage.ErrPersistence
	ex := &fakeExchanger{resp: smartthings.TokenResponse{AccessToken: "at-1", RefreshToken: "rt-2"}, seen: make(chan string, 2)}
	m := NewManager(ex, store, "rt-1")

	token, err := m.Refresh(context.Background())
	if err != nil || token != "at-1" {
		t.Fatalf("expected token despite store failure, got %q (%v)", token, err)
	}
	<-ex.seen

	if _, err := m.Refresh(context.Background()); err != nil {
		t.Fatalf("second Refresh failed: %v", err)
	}
	if got := <-ex.seen; got != "rt-2" {
		t.Errorf("rotated token not kept in memory, exchanged %s", got)
	}
}

func TestConcurrentForcedRefreshSharesExchange(t *testing.T) {
	ex := &fakeExchanger{
		resp:    smartthings.TokenResponse{AccessToken: "at-shared"},
		release: make(chan struct{}),
	}
	m := NewManager(ex, newMemoryStore(), "rt-1")

	const callers = 8
	var wg sync.WaitGroup
	results := make(chan string, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			token, err := m.AccessToken(context.Background(), true)
			if err != nil {
				t.Errorf("AccessToken failed: %v", err)
				return
			}
			results <- token
		}()
	}

	time.Sleep(50 * time.Millisecond)
	close(ex.release)
	wg.Wait()
	close(results)

	for token := range results {
		if token != "at-shared" {
			t.Errorf("unexpected token %s", token)
		}
	}
	if n := ex.calls.Load(); n != 1 {
		t.Errorf("expected one shared exchange, got %d", n)
	}
}

func TestCancelledCallerDoesNotAbortExchange(t *testing.T) {
	ex := &fakeExchanger{
		resp:    smartthings.TokenResponse{AccessToken: "at-1"},
		release: make(chan struct{}),
	}
	m := NewManager(ex, newMemoryStore(), "rt-1")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := m.AccessToken(ctx, true)
		done <- err
	}()
	time.Sleep(20 * time.Millisecond)
	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}

	close(ex.release)
	token, err := m.AccessToken(context.Background(), true)
	if err != nil {
		t.Fatalf("AccessToken failed: %v", err)
	}
	if token != "at-1" {
		t.Errorf("expected at-1, got %s", token)
	}
}

func TestStartStopsOnCancel(t *testing.T) {
	ex := &fakeExchanger{resp: smartthings.TokenResponse{AccessToken: "at-1"}}
	m := NewManager(ex, newMemoryStore(), "rt-1", WithInterval(10*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		m.Start(ctx)
		close(stopped)
	}()

	time.Sleep(55 * time.Millisecond)
	cancel()
	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("Start did not return after cancel")
	}
	if n := ex.calls.Load(); n < 2 {
		t.Errorf("expected initial and periodic refreshes, got %d", n)
	}
}

func TestSetRefreshToken(t *testing.T) {
	store := newMemoryStore()
	m := NewManager(&fakeExchanger{}, store, "")
	if err := m.SetRefreshToken(context.Background(), ""); !errors.Is(err, smartthings.ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration, got %v", err)
	}
	if err := m.SetRefreshToken(context.Background(), "rt-manual-123456"); err != nil {
		t.Fatalf("SetRefreshToken failed: %v", err)
	}
	if store.values[config.REFRESH_TOKEN_KEY] != "rt-manual-123456" {
		t.Errorf("token not persisted in plaintext without a sealer")
	}
	if hint := m.State().RefreshTokenHint; hint != "rt-m…3456" {
		t.Errorf("unexpected hint %q", hint)
	}
}

type recordingExchanger struct {
	mu     sync.Mutex
	tokens []string
	resp   smartthings.TokenResponse
}

func (r *recordingExchanger) ExchangeRefreshToken(ctx context.Context, refreshToken string) (*smartthings.TokenResponse, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tokens = append(r.tokens, refreshToken)
	resp := r.resp
	return &resp, nil
}

func (r *recordingExchanger) last() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.tokens[len(r.tokens)-1]
}

// slowStore holds GetCredential after reading until release is closed.
type slowStore struct {
	*memoryStore
	read    chan struct{}
	release chan struct{}
}

func (s *slowStore) GetCredential(ctx context.Context, name string) (string, error) {
	v, err := s.memoryStore.GetCredential(ctx, name)
	close(s.read)
	<-s.release
	return v, err
}

func TestLoadKeepsTokenRotatedDuringLoad(t *testing.T) {
	store := &slowStore{memoryStore: newMemoryStore(), read: make(chan struct{}), release: make(chan struct{})}
	store.values[config.REFRESH_TOKEN_KEY] = "rt-persisted"

	ex := &recordingExchanger{resp: smartthings.TokenResponse{AccessToken: "at-1", RefreshToken: "rt-rotated"}}
	m := NewManager(ex, store, "rt-config")

	loaded := make(chan error, 1)
	go func() { loaded <- m.Load(context.Background()) }()
	<-store.read

	if _, err := m.AccessToken(context.Background(), false); err != nil {
		t.Fatalf("AccessToken failed: %v", err)
	}
	close(store.release)
	if err := <-loaded; err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if stored := store.values[config.REFRESH_TOKEN_KEY]; stored != "rt-rotated" {
		t.Fatalf("expected rotated token persisted, got %q", stored)
	}
	if _, err := m.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}
	if got := ex.last(); got != "rt-rotated" {
		t.Errorf("refresh sent stale token %q, expected rt-rotated", got)
	}
}

func TestLoadReplacesBootstrapToken(t *testing.T) {
	store := newMemoryStore()
	store.values[config.REFRESH_TOKEN_KEY] = "rt-persisted"
	ex := &recordingExchanger{resp: smartthings.TokenResponse{AccessToken: "at-1"}}
	m := NewManager(ex, store, "rt-config")

	if err := m.Load(context.Background()); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if _, err := m.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}
	if got := ex.last(); got != "rt-persisted" {
		t.Errorf("expected persisted token to win, got %q", got)
	}
}
