package clientcmd

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestPrincipalHeaderName(t *testing.T) {
	t.Setenv("BALLOT_PRINCIPAL_HEADER", "")
	if got := principalHeader(); got != "X-Ballot-Principal" {
		t.Fatalf("default header: got %q", got)
	}

	t.Setenv("BALLOT_PRINCIPAL_HEADER", "X-Edge-Identity")
	if got := principalHeader(); got != "X-Edge-Identity" {
		t.Fatalf("env override: got %q", got)
	}
}

func TestPostJSONSendsConfiguredHeader(t *testing.T) {
	t.Setenv("BALLOT_PRINCIPAL_HEADER", "X-Edge-Identity")

	var gotPrincipal string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPrincipal = r.Header.Get("X-Edge-Identity")
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	if err := postJSON(srv.URL, "alice", map[string]any{"key": 1}); err != nil {
		t.Fatalf("post: %v", err)
	}
	if gotPrincipal != "alice" {
		t.Fatalf("principal not sent under configured header: %q", gotPrincipal)
	}
}
