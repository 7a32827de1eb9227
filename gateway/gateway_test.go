package gateway

import (
	"crypto/sha256"
	"encoding/hex"
	"testing"
)

func sha256Hex(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

func newTestGateway(enablePQ bool) *Gateway {
	return &Gateway{
		setting: Setting{PersistedQueries: PersistedQueriesSetting{Enable: enablePQ}},
		pq:      make(map[string]string),
	}
}

func TestResolveQueryText_PassesThroughWhenDisabled(t *testing.T) {
	g := newTestGateway(false)
	got, err := g.resolveQueryText(graphQLRequest{Query: "{ widget { id } }"})
	if err != nil {
		t.Fatalf("resolveQueryText: %v", err)
	}
	if got != "{ widget { id } }" {
		t.Fatalf("got %q", got)
	}
}

func TestResolveQueryText_RejectsMismatchedHashThenPassesTextWithoutHash(t *testing.T) {
	g := newTestGateway(true)
	query := "{ widget { id } }"
	hash := "edd4a4cdf4c3c44a66b4b6a2db4bd3f0d6eae51f7867dff63a9a6c45e5d7c7d2" // arbitrary, client-supplied

	var req graphQLRequest
	req.Query = query
	req.Extensions.PersistedQuery.SHA256Hash = hash

	if _, err := g.resolveQueryText(req); err == nil {
		t.Fatalf("expected hash mismatch error for an arbitrary hash")
	}

	// A request carrying query text but no hash bypasses the persisted-query
	// store and is served as-is.
	got, err := g.resolveQueryText(graphQLRequest{Query: query})
	if err != nil {
		t.Fatalf("resolveQueryText (text-only, no hash): %v", err)
	}
	if got != query {
		t.Fatalf("got %q", got)
	}
}

func TestResolveQueryText_MissingHashReturnsNotFound(t *testing.T) {
	g := newTestGateway(true)
	var req graphQLRequest
	req.Extensions.PersistedQuery.SHA256Hash = "deadbeef"

	if _, err := g.resolveQueryText(req); err == nil {
		t.Fatalf("expected PersistedQueryNotFound for an unregistered hash")
	}
}

func TestResolveQueryText_RegistersAndReplays(t *testing.T) {
	g := newTestGateway(true)
	query := "{ widget { id } }"

	sum := sha256Hex(query)
	var req graphQLRequest
	req.Query = query
	req.Extensions.PersistedQuery.SHA256Hash = sum
	if _, err := g.resolveQueryText(req); err != nil {
		t.Fatalf("register: %v", err)
	}

	var replay graphQLRequest
	replay.Extensions.PersistedQuery.SHA256Hash = sum
	got, err := g.resolveQueryText(replay)
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if got != query {
		t.Fatalf("got %q, want %q", got, query)
	}
}
