package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vrp-search-service/internal/adapters/instance"
	"vrp-search-service/internal/adapters/repositories"
	"vrp-search-service/internal/api/dto"
	"vrp-search-service/internal/config"
	"vrp-search-service/internal/platform/db"
	"vrp-search-service/internal/services"
)

type failingPinger struct{}

func (failingPinger) PingContext(context.Context) error { return errors.New("connection refused") }

func newTestServer(t *testing.T) (*httptest.Server, *repositories.SQLRunRepository) {
	t.Helper()
	conn, err := db.OpenSqlite("file::memory:")
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.NoError(t, repositories.InitSchema(conn, "sqlite"))
	runs := repositories.NewSqliteRunRepository(conn)

	srv := httptest.NewServer(NewRouter(RouterDeps{
		DB: conn,
		Search: services.RunSearchDeps{
			Source: instance.FileSource{Dir: t.TempDir()},
			Runs:   runs,
			Host:   "test",
		},
		Defaults:      config.Default(),
		MaxSeconds:    5,
		MaxIterations: 1000,
	}))
	t.Cleanup(srv.Close)
	return srv, runs
}

func inlineInstance() *instance.Document {
	doc := &instance.Document{Name: "inline", Capacity: 30, Points: []instance.DocumentPoint{{X: 50, Y: 50}}}
	for i := 0; i < 25; i++ {
		doc.Points = append(doc.Points, instance.DocumentPoint{X: float64((i * 37) % 100), Y: float64((i * 61) % 100), Demand: 1 + i%9})
	}
	return doc
}

func postSolve(t *testing.T, srv *httptest.Server, body any) *http.Response {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(srv.URL+"/solve", "application/json", bytes.NewReader(raw))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, map[string]string{"status": "ok", "database": "ok"}, body)

	degraded := httptest.NewServer(NewRouter(RouterDeps{DB: failingPinger{}}))
	defer degraded.Close()
	resp2, err := http.Get(degraded.URL + "/health")
	require.NoError(t, err)
	defer resp2.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp2.StatusCode)
}

func TestRequestIDIsPropagated(t *testing.T) {
	srv, _ := newTestServer(t)

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/health", nil)
	require.NoError(t, err)
	req.Header.Set("X-Request-ID", "abc-123")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "abc-123", resp.Header.Get("X-Request-ID"))
}

func TestSolveInlineInstanceAndListRuns(t *testing.T) {
	srv, _ := newTestServer(t)
	seed := int64(3)

	resp := postSolve(t, srv, dto.SolveRequest{Instance: inlineInstance(), Iterations: 40, Seed: &seed})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var solved dto.SolveResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&solved))
	assert.Equal(t, "inline", solved.Instance)
	assert.Equal(t, 40, solved.Iterations)
	assert.Greater(t, solved.Cost, 0.0)

	served := 0
	for _, r := range solved.Routes {
		served += len(r)
	}
	assert.Equal(t, 25, served)

	listResp, err := http.Get(srv.URL + "/runs?limit=5")
	require.NoError(t, err)
	defer listResp.Body.Close()
	var list dto.ListRunsResponse
	require.NoError(t, json.NewDecoder(listResp.Body).Decode(&list))
	require.Len(t, list.Runs, 1)
	assert.Equal(t, solved.RunID, list.Runs[0].ID)
	assert.Equal(t, seed, list.Runs[0].Seed)

	samplesResp, err := http.Get(fmt.Sprintf("%s/runs/%s/samples", srv.URL, solved.RunID))
	require.NoError(t, err)
	defer samplesResp.Body.Close()
	var samples dto.ListSamplesResponse
	require.NoError(t, json.NewDecoder(samplesResp.Body).Decode(&samples))
	require.NotEmpty(t, samples.Samples)
	assert.Equal(t, solved.Cost, samples.Samples[len(samples.Samples)-1].Cost)

	missing, err := http.Get(srv.URL + "/runs/nope/samples")
	require.NoError(t, err)
	defer missing.Body.Close()
	assert.Equal(t, http.StatusNotFound, missing.StatusCode)
}

func TestSolveRejectsBadRequests(t *testing.T) {
	srv, _ := newTestServer(t)
	badInstance := inlineInstance()
	badInstance.Capacity = 0

	cases := []struct {
		name string
		body any
		want int
	}{
		{"neither instance nor ref", dto.SolveRequest{Iterations: 10}, http.StatusBadRequest},
		{"both instance and ref", dto.SolveRequest{Instance: inlineInstance(), Ref: "x"}, http.StatusBadRequest},
		{"unknown field", map[string]any{"ref": "x", "speed": 3}, http.StatusBadRequest},
		{"budget above limit", dto.SolveRequest{Instance: inlineInstance(), Seconds: 60}, http.StatusBadRequest},
		{"unknown operator", dto.SolveRequest{Instance: inlineInstance(), Iterations: 5, Perturbations: []string{"Shuffle"}}, http.StatusBadRequest},
		{"invalid instance", dto.SolveRequest{Instance: badInstance, Iterations: 5}, http.StatusBadRequest},
		{"missing ref", dto.SolveRequest{Ref: "X-n101-k25", Iterations: 5}, http.StatusNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp := postSolve(t, srv, tc.body)
			assert.Equal(t, tc.want, resp.StatusCode)
		})
	}

	resp, err := http.Get(srv.URL + "/solve")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
	assert.Equal(t, http.MethodPost, resp.Header.Get("Allow"))
}
