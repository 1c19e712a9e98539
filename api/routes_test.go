package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) (*Server, *http.ServeMux) {
	c := newTestControl(t)
	s := NewServer("", c)
	mux := http.NewServeMux()
	s.registerRoutes(mux)
	return s, mux
}

func doRequest(mux *http.ServeMux, method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func TestHandleStepAdvancesEngine(t *testing.T) {
	s, mux := newTestServer(t)
	rec := doRequest(mux, "POST", "/step", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(1), s.control.Engine().Clock().Step)
}

func TestHandleResetClearsState(t *testing.T) {
	s, mux := newTestServer(t)
	for i := 0; i < 5; i++ {
		doRequest(mux, "POST", "/step", nil)
	}
	rec := doRequest(mux, "POST", "/reset", resetRequest{Reseed: false})
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, int64(0), s.control.Engine().Clock().Step)
	assert.Equal(t, 0, s.control.VehicleCount())
}

func TestHandleVehicleNotFound(t *testing.T) {
	_, mux := newTestServer(t)
	rec := doRequest(mux, "GET", "/vehicle/no-such-id", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleSetSpeedUnknownVehicle(t *testing.T) {
	_, mux := newTestServer(t)
	rec := doRequest(mux, "POST", "/vehicle/no-such-id/speed", setSpeedRequest{Speed: 5})
	assert.Equal(t, http.StatusPreconditionFailed, rec.Code)
}

func TestHandleSetPhaseUnderRLMode(t *testing.T) {
	s, mux := newTestServer(t)
	rec := doRequest(mux, "POST", "/intersection/2/phase", setPhaseRequest{Phase: 1})
	require.Equal(t, http.StatusNoContent, rec.Code)
	it := s.control.Engine().RoadNet().Intersection(2)
	assert.Equal(t, 1, it.Light.CurrentPhaseIndex())
}

func TestHandleVehiclesListsEveryVehicle(t *testing.T) {
	s, mux := newTestServer(t)
	for i := 0; i < 10 && s.control.VehicleCount() == 0; i++ {
		doRequest(mux, "POST", "/step", nil)
	}
	require.Greater(t, s.control.VehicleCount(), 0)

	rec := doRequest(mux, "GET", "/vehicles", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	var infos map[string]VehicleInfo
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &infos))
	assert.Len(t, infos, s.control.VehicleCount())
}
