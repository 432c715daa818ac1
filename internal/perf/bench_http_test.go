package perf

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/police-records/registry/internal/app"
	"github.com/police-records/registry/internal/integration"
	"github.com/police-records/registry/internal/jurisdiction"
	"github.com/police-records/registry/internal/personnel"
	"github.com/police-records/registry/internal/personnel/personneltest"
	"github.com/police-records/registry/internal/platform/httpx"
)

func newPersonnelRouter(b testing.TB) http.Handler {
	b.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	repo := personneltest.NewMemoryRepository()
	svc := personnel.NewService(repo, integration.NewProfileSync(nil, logger), nil, logger).
		WithPasswordCost(bcrypt.MinCost)
	return app.NewRouter(app.RouterParams{
		Logger:           logger,
		Config:           &app.Config{AppEnv: "test", LogFormat: "text"},
		PersonnelHandler: personnel.NewHandler(logger, svc, httpx.NewValidator()),
	})
}

func createAccount(router http.Handler, n int) int {
	body := fmt.Sprintf(`{"username":"agent%d","password":"patrol-2024","role":%d}`, n, n%3+1)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/accounts", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec.Code
}

func BenchmarkCreateAccount(b *testing.B) {
	router := newPersonnelRouter(b)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if code := createAccount(router, i); code != http.StatusCreated {
			b.Fatalf("unexpected status %d", code)
		}
	}
}

func BenchmarkBuildTree(b *testing.B) {
	root := jurisdiction.Node{ID: 1, Level: jurisdiction.LevelDistrict, Name: "Centre"}
	var nodes []jurisdiction.Node
	id := int64(1)
	add := func(level jurisdiction.Level, parent int64) int64 {
		id++
		nodes = append(nodes, jurisdiction.Node{ID: id, Level: level, Name: fmt.Sprintf("n%d", id), ParentID: &parent})
		return id
	}
	for r := 0; r < 5; r++ {
		region := add(jurisdiction.LevelRegion, 1)
		for v := 0; v < 5; v++ {
			ville := add(jurisdiction.LevelVille, region)
			for s := 0; s < 5; s++ {
				secteur := add(jurisdiction.LevelSecteur, ville)
				for q := 0; q < 4; q++ {
					add(jurisdiction.LevelQuartier, secteur)
				}
			}
		}
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		tree := jurisdiction.BuildTree(root, nodes)
		if len(tree.Children) != 5 {
			b.Fatalf("unexpected regions: %d", len(tree.Children))
		}
	}
}

func TestDirectoryLatencyTarget(t *testing.T) {
	router := newPersonnelRouter(t)
	for i := 0; i < 30; i++ {
		if code := createAccount(router, i); code != http.StatusCreated {
			t.Fatalf("seed account %d: status %d", i, code)
		}
	}

	samples := make([]time.Duration, 0, 50)
	for i := 0; i < 50; i++ {
		start := time.Now()
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/profiles", nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("directory status %d", rec.Code)
		}
		samples = append(samples, time.Since(start))
	}
	if p95 := percentile95(samples); p95 > 250*time.Millisecond {
		t.Fatalf("directory latency regression: p95=%s", p95)
	}
}

func percentile95(samples []time.Duration) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	sorted := append([]time.Duration(nil), samples...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	index := int(float64(len(sorted)-1) * 0.95)
	if index < 0 {
		index = 0
	}
	if index >= len(sorted) {
		index = len(sorted) - 1
	}
	return sorted[index]
}
