package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/christosporios/strategic-investments-gr/internal/model"
	"github.com/christosporios/strategic-investments-gr/internal/snapshot"
)

func testRouter(t *testing.T) http.Handler {
	t.Helper()
	path := filepath.Join(t.TempDir(), "investments.json")
	require.NoError(t, snapshot.Save(path, &model.Snapshot{
		Metadata: model.Metadata{
			GeneratedAt:       "2026-08-30T10:00:00Z",
			TotalInvestments:  2,
			RevisionsExcluded: []model.RevisionEdge{{Original: "ADA0", ReplacedBy: "ADA1"}},
		},
		Investments: []model.Investment{
			{
				Name:        "Αιολικό πάρκο Εύβοιας",
				TotalAmount: 3_000_000,
				Reference:   model.Reference{DiavgeiaADA: "ADA1"},
			},
			{
				Name:        "Hotel Resort Epsilon",
				TotalAmount: 5_000_000,
				Reference:   model.Reference{URL: "https://example.invalid/p/1"},
			},
		},
	}))
	return buildRouter(&snapshotCache{path: path})
}

func TestServeHealthz(t *testing.T) {
	router := testRouter(t)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "ok")
}

func TestServeInvestments(t *testing.T) {
	router := testRouter(t)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/investments", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Header().Get("Content-Type"), "application/json")

	var snap model.Snapshot
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &snap))
	assert.Len(t, snap.Investments, 2)
	assert.Equal(t, "2026-08-30T10:00:00Z", snap.Metadata.GeneratedAt)
}

func TestServeInvestmentByCode(t *testing.T) {
	router := testRouter(t)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/investments/ADA1", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	var inv model.Investment
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &inv))
	assert.Equal(t, "Αιολικό πάρκο Εύβοιας", inv.Name)
}

func TestServeInvestmentByCodeNotFound(t *testing.T) {
	router := testRouter(t)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/investments/MISSING", nil))

	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestServeStats(t *testing.T) {
	router := testRouter(t)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/stats", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	var stats map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &stats))
	assert.Equal(t, float64(2), stats["totalInvestments"])
	assert.Equal(t, float64(8_000_000), stats["totalAmount"])
	assert.Equal(t, float64(1), stats["revisionsExcluded"])
}
