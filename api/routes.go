package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/kotkaro/trafficsim/simerr"
)

// registerRoutes wires spec.md §6's control operations onto mux: a single
// ServeMux carries the whole REST surface.
func (s *Server) registerRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /step", s.handleStep)
	mux.HandleFunc("POST /reset", s.handleReset)
	mux.HandleFunc("GET /vehicles", s.handleVehicles)
	mux.HandleFunc("GET /vehicle/{id}", s.handleVehicle)
	mux.HandleFunc("POST /vehicle/{id}/speed", s.handleSetSpeed)
	mux.HandleFunc("POST /vehicle/{id}/route", s.handleSetRoute)
	mux.HandleFunc("POST /intersection/{id}/phase", s.handleSetPhase)
}

func (s *Server) handleStep(w http.ResponseWriter, r *http.Request) {
	s.control.Step()
	s.Publish()
	writeJSON(w, http.StatusOK, map[string]any{"step": s.control.Engine().Clock().Step})
}

type resetRequest struct {
	Reseed bool  `json:"reseed"`
	Seed   int64 `json:"seed"`
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	var req resetRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
	}
	s.control.Reset(req.Reseed, req.Seed)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleVehicles(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.control.VehicleInfos())
}

func (s *Server) handleVehicle(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	info, ok := s.control.VehicleInfos()[id]
	if !ok {
		writeError(w, http.StatusNotFound, simerr.Wrap(simerr.ErrRuntimePrecondition, "unknown vehicle %q", id))
		return
	}
	writeJSON(w, http.StatusOK, info)
}

type setSpeedRequest struct {
	Speed float64 `json:"speed"`
}

func (s *Server) handleSetSpeed(w http.ResponseWriter, r *http.Request) {
	var req setSpeedRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.control.SetVehicleSpeed(r.PathValue("id"), req.Speed); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type setRouteRequest struct {
	Anchors []int64 `json:"anchors"`
}

func (s *Server) handleSetRoute(w http.ResponseWriter, r *http.Request) {
	var req setRouteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.control.SetVehicleRoute(r.PathValue("id"), req.Anchors); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type setPhaseRequest struct {
	Phase int `json:"phase"`
}

func (s *Server) handleSetPhase(w http.ResponseWriter, r *http.Request) {
	intersectionID, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	var req setPhaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.control.SetTrafficLightPhase(intersectionID, req.Phase); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// statusFor maps a simerr sentinel kind to the HTTP status spec.md §7's
// error categories most naturally read as.
func statusFor(err error) int {
	switch {
	case errors.Is(err, simerr.ErrRuntimePrecondition):
		return http.StatusPreconditionFailed
	case errors.Is(err, simerr.ErrRouteInfeasible):
		return http.StatusUnprocessableEntity
	case errors.Is(err, simerr.ErrConfigInvalid):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
