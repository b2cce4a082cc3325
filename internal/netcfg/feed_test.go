package netcfg

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestProtocolVersionsPreservesFeedOrder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/casper/protocol_versions" {
			t.Errorf("unexpected path %s", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
			return
		}
		// deliberately not sorted: feed order is authoritative
		w.Write([]byte("1_0_0\n1_2_0\n1_1_0\n\n"))
	}))
	defer srv.Close()

	cfg := NetworkConfig{
		SourceURL:   strings.TrimPrefix(srv.URL, "http://"),
		NetworkName: "casper",
	}
	versions, err := NewFeed().ProtocolVersions(cfg)
	if err != nil {
		t.Fatalf("protocol versions: %v", err)
	}
	want := []string{"1_0_0", "1_2_0", "1_1_0"}
	if len(versions) != len(want) {
		t.Fatalf("got %d versions, want %d", len(versions), len(want))
	}
	for i := range want {
		if versions[i] != want[i] {
			t.Errorf("versions[%d] = %q, want %q", i, versions[i], want[i])
		}
	}
}

func TestProtocolVersionsNonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	cfg := NetworkConfig{
		SourceURL:   strings.TrimPrefix(srv.URL, "http://"),
		NetworkName: "casper",
	}
	if _, err := NewFeed().ProtocolVersions(cfg); !errors.Is(err, ErrFeedUnavailable) {
		t.Fatalf("expected ErrFeedUnavailable, got %v", err)
	}
}

func TestProtocolVersionsTransportError(t *testing.T) {
	cfg := NetworkConfig{SourceURL: "127.0.0.1:1", NetworkName: "casper"}
	if _, err := NewFeed().ProtocolVersions(cfg); !errors.Is(err, ErrFeedUnavailable) {
		t.Fatalf("expected ErrFeedUnavailable, got %v", err)
	}
}
