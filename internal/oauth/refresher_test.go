package oauth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

func TestResolveClientCredentialsPrecedence(t *testing.T) {
	local := ClientCredentials{ClientID: "local", ClientSecret: "local-secret"}
	variant := ClientCredentials{ClientID: "variant", ClientSecret: "variant-secret"}
	global := ClientCredentials{ClientID: "global", ClientSecret: "global-secret"}

	if got := ResolveClientCredentials(local, variant, global); got != local {
		t.Fatalf("expected local to win, got %+v", got)
	}
	if got := ResolveClientCredentials(ClientCredentials{}, variant, global); got != variant {
		t.Fatalf("expected variant default to win, got %+v", got)
	}
	if got := ResolveClientCredentials(ClientCredentials{}, ClientCredentials{}, global); got != global {
		t.Fatalf("expected global default to win, got %+v", got)
	}
}

func TestNeedsRefresh(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	if !NeedsRefresh("", nil, now) {
		t.Fatal("empty token should need refresh")
	}
	soon := now.Add(2 * time.Minute)
	if !NeedsRefresh("tok", &soon, now) {
		t.Fatal("token expiring within 5 minutes should need refresh")
	}
	later := now.Add(time.Hour)
	if NeedsRefresh("tok", &later, now) {
		t.Fatal("token expiring in an hour should not need refresh")
	}
}

func TestRefreshConcurrentCallsCollapse(t *testing.T) {
	var calls int32
	var mu sync.Mutex
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		calls++
		mu.Unlock()
		time.Sleep(20 * time.Millisecond)
		_ = json.NewEncoder(w).Encode(TokenResponse{AccessToken: "new-token", ExpiresIn: 3600})
	}))
	defer srv.Close()

	r := NewRefresher(WithTokenURL(srv.URL))
	creds := ClientCredentials{ClientID: "id", ClientSecret: "secret"}

	var wg sync.WaitGroup
	results := make([]Result, 5)
	errs := make([]error, 5)
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := r.Refresh(context.Background(), "cred-1", creds, "refresh-token")
			results[i], errs[i] = res, err
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("call %d: %v", i, err)
		}
		if results[i].AccessToken != "new-token" {
			t.Fatalf("call %d: unexpected token %q", i, results[i].AccessToken)
		}
	}
	mu.Lock()
	defer mu.Unlock()
	if calls != 1 {
		t.Fatalf("expected exactly 1 upstream call, got %d", calls)
	}
}
