package staging

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/casper-network/casper-node-launcher/internal/netcfg"
)

type staticFeed struct {
	versions []string
	err      error
}

func (f staticFeed) ProtocolVersions(netcfg.NetworkConfig) ([]string, error) {
	return f.versions, f.err
}

type staticResolver string

func (r staticResolver) ExternalIP() (string, error) {
	return string(r), nil
}

// versionServer serves /{network}/{version}/{archive} from a map keyed by
// "{version}/{archive}" and counts requests.
func versionServer(t *testing.T, archives map[string][]byte) (*httptest.Server, *int) {
	t.Helper()
	requests := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		parts := strings.Split(strings.TrimPrefix(r.URL.Path, "/"), "/")
		if len(parts) != 3 {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		data, ok := archives[parts[1]+"/"+parts[2]]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Write(data)
	}))
	t.Cleanup(srv.Close)
	return srv, &requests
}

func newTestOrchestrator(t *testing.T, layout Layout, srv *httptest.Server, versions []string) *Orchestrator {
	t.Helper()
	orch, err := NewOrchestrator(OrchestratorConfig{
		Layout:   layout,
		Network:  networkFor(srv, "mainnet"),
		Feed:     staticFeed{versions: versions},
		Resolver: staticResolver("10.4.5.6"),
	})
	if err != nil {
		t.Fatalf("new orchestrator: %v", err)
	}
	return orch
}

func goodArchives(t *testing.T, version string) map[string][]byte {
	t.Helper()
	return map[string][]byte{
		version + "/config.tar.gz": makeTarGz(t, map[string]string{
			"chainspec.toml":      "name = 'casper'\n",
			"config-example.toml": exampleTemplate,
		}),
		version + "/bin.tar.gz": makeTarGz(t, map[string]string{
			"casper-node": "binary payload",
		}),
	}
}

// Scenario: nothing staged, one version in the feed, downloads succeed.
func TestStageAllFromEmptyRoots(t *testing.T) {
	layout := testLayout(t)
	srv, _ := versionServer(t, goodArchives(t, "1_0_0"))
	orch := newTestOrchestrator(t, layout, srv, []string{"1_0_0"})

	if err := orch.StageAll(); err != nil {
		t.Fatalf("stage all: %v", err)
	}

	data, err := os.ReadFile(layout.ConfigPath("1_0_0"))
	if err != nil {
		t.Fatalf("read config.toml: %v", err)
	}
	if !strings.Contains(string(data), "10.4.5.6") {
		t.Error("config.toml missing resolved address")
	}
	status, err := NewInspector(layout, "casper").Inspect("1_0_0")
	if err != nil {
		t.Fatalf("inspect: %v", err)
	}
	if status != Staged {
		t.Errorf("status after staging = %v, want Staged", status)
	}
}

// Staging an already-staged version must be a no-op: no requests, no writes.
func TestStageAllIdempotent(t *testing.T) {
	layout := testLayout(t)
	srv, requests := versionServer(t, goodArchives(t, "1_0_0"))
	orch := newTestOrchestrator(t, layout, srv, []string{"1_0_0"})

	if err := orch.StageAll(); err != nil {
		t.Fatalf("first stage: %v", err)
	}
	firstRun := *requests

	info, err := os.Stat(layout.ConfigPath("1_0_0"))
	if err != nil {
		t.Fatalf("stat config.toml: %v", err)
	}
	if err := orch.StageAll(); err != nil {
		t.Fatalf("second stage: %v", err)
	}
	if *requests != firstRun {
		t.Errorf("second run made %d extra requests", *requests-firstRun)
	}
	after, err := os.Stat(layout.ConfigPath("1_0_0"))
	if err != nil {
		t.Fatalf("stat config.toml: %v", err)
	}
	if !after.ModTime().Equal(info.ModTime()) {
		t.Error("config.toml was rewritten on an already-staged version")
	}
}

// Scenario: config dir with correct chainspec but no config.toml; bin staged.
// Only materialization runs, no archive fetch.
func TestStageAllMaterializesOnNoConfig(t *testing.T) {
	layout := testLayout(t)
	stageVersion(t, layout, "1_0_0", "casper", true, false)
	mustWrite(t, filepath.Join(layout.VersionConfigDir("1_0_0"), configExampleFile), exampleTemplate)

	srv, requests := versionServer(t, nil)
	orch := newTestOrchestrator(t, layout, srv, []string{"1_0_0"})

	if err := orch.StageAll(); err != nil {
		t.Fatalf("stage all: %v", err)
	}
	if *requests != 0 {
		t.Errorf("NoConfig staging must not fetch archives, saw %d requests", *requests)
	}
	if _, err := os.Stat(layout.ConfigPath("1_0_0")); err != nil {
		t.Errorf("config.toml not materialized: %v", err)
	}
}

// Scenario: chainspec on disk names a different network. Unrecoverable, no
// action taken.
func TestStageAllWrongNetworkUnrecoverable(t *testing.T) {
	layout := testLayout(t)
	stageVersion(t, layout, "1_0_0", "casper-test", true, true)

	srv, requests := versionServer(t, nil)
	orch := newTestOrchestrator(t, layout, srv, []string{"1_0_0"})

	err := orch.StageAll()
	if !errors.Is(err, ErrUnrecoverableStatus) {
		t.Fatalf("expected ErrUnrecoverableStatus, got %v", err)
	}
	if *requests != 0 {
		t.Errorf("unrecoverable version must not trigger fetches, saw %d requests", *requests)
	}
}

// One version failing must not block the next; both failures are reported.
func TestStageAllContinuesPastFailures(t *testing.T) {
	layout := testLayout(t)
	// 1_0_0 has no archives published; 1_1_0 stages fine
	srv, _ := versionServer(t, goodArchives(t, "1_1_0"))
	orch := newTestOrchestrator(t, layout, srv, []string{"1_0_0", "1_1_0"})

	err := orch.StageAll()
	if !errors.Is(err, ErrFetchFailure) {
		t.Fatalf("expected ErrFetchFailure in aggregate, got %v", err)
	}
	status, inspectErr := NewInspector(layout, "casper").Inspect("1_1_0")
	if inspectErr != nil {
		t.Fatalf("inspect 1_1_0: %v", inspectErr)
	}
	if status != Staged {
		t.Errorf("1_1_0 = %v, want Staged despite 1_0_0 failing", status)
	}
}

func TestStageAllMissingRootsAbortsRun(t *testing.T) {
	layout := Layout{
		ConfigRoot: filepath.Join(t.TempDir(), "missing-etc"),
		BinRoot:    filepath.Join(t.TempDir(), "missing-bin"),
		NodeBinary: "casper-node",
	}
	srv, requests := versionServer(t, nil)
	orch := newTestOrchestrator(t, layout, srv, []string{"1_0_0", "1_1_0"})

	err := orch.StageAll()
	if !errors.Is(err, ErrPathNotFound) {
		t.Fatalf("expected ErrPathNotFound, got %v", err)
	}
	if *requests != 0 {
		t.Errorf("missing roots must abort before any fetch, saw %d requests", *requests)
	}
}

func TestCheckAll(t *testing.T) {
	layout := testLayout(t)
	stageVersion(t, layout, "1_0_0", "casper", true, true)
	srv, _ := versionServer(t, nil)

	orch := newTestOrchestrator(t, layout, srv, []string{"1_0_0"})
	if err := orch.CheckAll(); err != nil {
		t.Fatalf("check all on staged version: %v", err)
	}

	orch = newTestOrchestrator(t, layout, srv, []string{"1_0_0", "1_1_0"})
	if err := orch.CheckAll(); !errors.Is(err, ErrNotStaged) {
		t.Fatalf("expected ErrNotStaged, got %v", err)
	}
}

// Scenario: two versions in the feed, only the first fully staged. Upgrade
// check looks at the last entry only.
func TestCheckUpgrade(t *testing.T) {
	layout := testLayout(t)
	stageVersion(t, layout, "1_0_0", "casper", true, true)
	srv, _ := versionServer(t, nil)

	orch := newTestOrchestrator(t, layout, srv, []string{"1_0_0", "1_1_0"})
	if err := orch.CheckUpgrade(); !errors.Is(err, ErrNotStaged) {
		t.Fatalf("expected ErrNotStaged for unstaged latest, got %v", err)
	}

	// partially staged latest is not an upgrade failure
	stageVersion(t, layout, "1_1_0", "casper", true, false)
	if err := orch.CheckUpgrade(); err != nil {
		t.Fatalf("partially staged latest should pass upgrade check: %v", err)
	}

	orch = newTestOrchestrator(t, layout, srv, nil)
	if err := orch.CheckUpgrade(); !errors.Is(err, ErrEmptyFeed) {
		t.Fatalf("expected ErrEmptyFeed, got %v", err)
	}
}

func TestNewOrchestratorValidation(t *testing.T) {
	if _, err := NewOrchestrator(OrchestratorConfig{}); err == nil {
		t.Error("expected error without a feed")
	}
	if _, err := NewOrchestrator(OrchestratorConfig{Feed: staticFeed{}}); err == nil {
		t.Error("expected error without ip or resolver")
	}
	if _, err := NewOrchestrator(OrchestratorConfig{Feed: staticFeed{}, IP: "10.0.0.1"}); err != nil {
		t.Errorf("ip without resolver should be accepted: %v", err)
	}
}
