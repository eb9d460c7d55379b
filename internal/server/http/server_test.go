package httpserver

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	cfgpkg "github.com/ballothq/ballot/internal/config"
	"github.com/ballothq/ballot/internal/runtime"
	pebblestore "github.com/ballothq/ballot/internal/storage/pebble"
	logpkg "github.com/ballothq/ballot/pkg/log"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	rt, err := runtime.Open(runtime.Options{
		DataDir: t.TempDir(),
		Fsync:   pebblestore.FsyncModeAlways,
		Config:  cfgpkg.Default(),
	})
	if err != nil {
		t.Fatalf("rt open: %v", err)
	}
	t.Cleanup(func() { _ = rt.Close() })
	logger, _ := logpkg.ApplyConfig(&logpkg.Config{Level: "error", Format: "text"})
	return New(rt, logger)
}

func do(t *testing.T, s *Server, method, target, principal, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	if principal != "" {
		req.Header.Set("X-Ballot-Principal", principal)
	}
	w := httptest.NewRecorder()
	s.srv.Handler.ServeHTTP(w, req)
	return w
}

func TestHealthHandler(t *testing.T) {
	s := newTestServer(t)
	if w := do(t, s, http.MethodGet, "/v1/healthz", "", ""); w.Code != http.StatusOK {
		t.Fatalf("status: %d", w.Code)
	}
}

func TestCreateGetCountRoundTrip(t *testing.T) {
	s := newTestServer(t)

	w := do(t, s, http.MethodPost, "/v1/proposals/create", "alice", `{"key":1,"description":"D","isActive":true}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("create status: %d body=%s", w.Code, w.Body)
	}

	w = do(t, s, http.MethodGet, "/v1/proposals/get?key=1", "", "")
	if w.Code != http.StatusOK {
		t.Fatalf("get status: %d", w.Code)
	}
	var resp struct {
		Proposal struct {
			Owner    string   `json:"owner"`
			IsActive bool     `json:"isActive"`
			Approve  int32    `json:"approve"`
			Voted    []string `json:"voted"`
		} `json:"proposal"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Proposal.Owner != "alice" || !resp.Proposal.IsActive || resp.Proposal.Approve != 0 {
		t.Fatalf("unexpected proposal: %+v", resp.Proposal)
	}

	w = do(t, s, http.MethodGet, "/v1/proposals/count", "", "")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"count":1`) {
		t.Fatalf("count: %d %s", w.Code, w.Body)
	}
}

func TestCreateReportsReplacedRecord(t *testing.T) {
	s := newTestServer(t)

	do(t, s, http.MethodPost, "/v1/proposals/create", "alice", `{"key":1,"description":"first","isActive":true}`)
	w := do(t, s, http.MethodPost, "/v1/proposals/create", "bob", `{"key":1,"description":"second","isActive":true}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("recreate status: %d", w.Code)
	}
	var resp struct {
		Replaced bool `json:"replaced"`
		Previous *struct {
			Owner string `json:"owner"`
		} `json:"previous"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.Replaced || resp.Previous == nil || resp.Previous.Owner != "alice" {
		t.Fatalf("previous record not reported: %s", w.Body)
	}
}

func TestMutationsRequirePrincipal(t *testing.T) {
	s := newTestServer(t)

	for _, route := range []string{"/v1/proposals/create", "/v1/proposals/edit", "/v1/proposals/end", "/v1/proposals/vote"} {
		w := do(t, s, http.MethodPost, route, "", `{"key":1}`)
		if w.Code != http.StatusUnauthorized {
			t.Fatalf("%s without principal: %d", route, w.Code)
		}
	}
}

func TestErrorStatusMapping(t *testing.T) {
	s := newTestServer(t)

	// Absent key.
	if w := do(t, s, http.MethodGet, "/v1/proposals/get?key=9", "", ""); w.Code != http.StatusNotFound {
		t.Fatalf("get absent: %d", w.Code)
	}
	if w := do(t, s, http.MethodPost, "/v1/proposals/edit", "alice", `{"key":9}`); w.Code != http.StatusNotFound {
		t.Fatalf("edit absent: %d", w.Code)
	}

	do(t, s, http.MethodPost, "/v1/proposals/create", "alice", `{"key":1,"description":"D","isActive":true}`)

	// Non-owner edit.
	if w := do(t, s, http.MethodPost, "/v1/proposals/edit", "eve", `{"key":1,"description":"x","isActive":true}`); w.Code != http.StatusForbidden {
		t.Fatalf("edit non-owner: %d", w.Code)
	}

	// Vote flow: ok, repeat conflict, closed conflict.
	if w := do(t, s, http.MethodPost, "/v1/proposals/vote", "bob", `{"key":1,"choice":"approve"}`); w.Code != http.StatusNoContent {
		t.Fatalf("vote: %d %s", w.Code, w.Body)
	}
	if w := do(t, s, http.MethodPost, "/v1/proposals/vote", "bob", `{"key":1,"choice":"approve"}`); w.Code != http.StatusConflict {
		t.Fatalf("repeat vote: %d", w.Code)
	}
	if w := do(t, s, http.MethodPost, "/v1/proposals/end", "alice", `{"key":1}`); w.Code != http.StatusNoContent {
		t.Fatalf("end: %d", w.Code)
	}
	if w := do(t, s, http.MethodPost, "/v1/proposals/vote", "carol", `{"key":1,"choice":"reject"}`); w.Code != http.StatusConflict {
		t.Fatalf("vote on closed: %d", w.Code)
	}

	// Oversized description.
	big := strings.Repeat("x", 6000)
	if w := do(t, s, http.MethodPost, "/v1/proposals/create", "alice", `{"key":2,"description":"`+big+`","isActive":true}`); w.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("oversized create: %d", w.Code)
	}

	// Bad choice.
	if w := do(t, s, http.MethodPost, "/v1/proposals/vote", "bob", `{"key":1,"choice":"maybe"}`); w.Code != http.StatusBadRequest {
		t.Fatalf("bad choice: %d", w.Code)
	}
}
