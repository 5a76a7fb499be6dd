package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"fleetwatch/internal/metrics"
	"fleetwatch/internal/model"
	"fleetwatch/internal/store"
)

// storeFailed maps store errors onto problem responses. Failures that are
// not the caller's fault are logged and surfaced as 500 without masking.
func storeFailed(w http.ResponseWriter, r *http.Request, op string, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeProblem(w, http.StatusNotFound, "Not Found", err.Error(), r.URL.Path)
	case errors.Is(err, store.ErrConflict):
		writeProblem(w, http.StatusConflict, "Conflict", err.Error(), r.URL.Path)
	default:
		log.Printf("%s failed: %v", op, err)
		writeProblem(w, http.StatusInternalServerError, op+" failed", err.Error(), r.URL.Path)
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
		return false
	}
	return true
}

// OfficersHandler handles POST/GET /v1/officers
func (s *Server) OfficersHandler(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		if !canMutate(s.getPrincipal(r)) {
			writeProblem(w, http.StatusForbidden, "Forbidden", "dispatcher or admin required", r.URL.Path)
			return
		}
		var in model.CreateOfficerInput
		if !decodeBody(w, r, &in) {
			return
		}
		if err := validateOfficerInput(&in); err != nil {
			writeProblem(w, http.StatusBadRequest, "Invalid officer", err.Error(), r.URL.Path)
			return
		}
		o, err := s.Store.CreateOfficer(r.Context(), in)
		if err != nil {
			storeFailed(w, r, "Create officer", err)
			return
		}
		writeJSON(w, http.StatusCreated, o)
	case http.MethodGet:
		items, err := s.Store.ListOfficers(r.Context())
		if err != nil {
			storeFailed(w, r, "List officers", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": items})
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// VehiclesHandler handles POST/GET /v1/vehicles
func (s *Server) VehiclesHandler(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		if !canMutate(s.getPrincipal(r)) {
			writeProblem(w, http.StatusForbidden, "Forbidden", "dispatcher or admin required", r.URL.Path)
			return
		}
		var in model.CreateVehicleInput
		if !decodeBody(w, r, &in) {
			return
		}
		if err := validateVehicleInput(&in); err != nil {
			writeProblem(w, http.StatusBadRequest, "Invalid vehicle", err.Error(), r.URL.Path)
			return
		}
		v, err := s.Store.CreateVehicle(r.Context(), in)
		if err != nil {
			storeFailed(w, r, "Create vehicle", err)
			return
		}
		writeJSON(w, http.StatusCreated, v)
	case http.MethodGet:
		items, err := s.Store.ListVehicles(r.Context())
		if err != nil {
			storeFailed(w, r, "List vehicles", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": items})
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// DriversHandler handles POST/GET /v1/drivers
func (s *Server) DriversHandler(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		if !canMutate(s.getPrincipal(r)) {
			writeProblem(w, http.StatusForbidden, "Forbidden", "dispatcher or admin required", r.URL.Path)
			return
		}
		var in model.CreateDriverInput
		if !decodeBody(w, r, &in) {
			return
		}
		if err := validateDriverInput(&in); err != nil {
			writeProblem(w, http.StatusBadRequest, "Invalid driver", err.Error(), r.URL.Path)
			return
		}
		d, err := s.Store.CreateDriver(r.Context(), in)
		if err != nil {
			storeFailed(w, r, "Create driver", err)
			return
		}
		writeJSON(w, http.StatusCreated, d)
	case http.MethodGet:
		items, err := s.Store.ListDrivers(r.Context())
		if err != nil {
			storeFailed(w, r, "List drivers", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": items})
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// VehicleByIDHandler handles POST /v1/vehicles/{id}/assign and
// POST /v1/vehicles/{id}/unassign.
func (s *Server) VehicleByIDHandler(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/v1/vehicles/")
	parts := strings.Split(rest, "/")
	if rest == r.URL.Path || len(parts) != 2 {
		writeProblem(w, http.StatusNotFound, "Not Found", "", r.URL.Path)
		return
	}
	vehicleID, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil || vehicleID <= 0 {
		writeProblem(w, http.StatusBadRequest, "Invalid vehicle id", parts[0], r.URL.Path)
		return
	}
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if !canMutate(s.getPrincipal(r)) {
		writeProblem(w, http.StatusForbidden, "Forbidden", "dispatcher or admin required", r.URL.Path)
		return
	}
	switch parts[1] {
	case "assign":
		var req struct {
			DriverID int64 `json:"driverId"`
		}
		if !decodeBody(w, r, &req) {
			return
		}
		if req.DriverID <= 0 {
			writeProblem(w, http.StatusBadRequest, "Invalid assignment", "driverId must be positive", r.URL.Path)
			return
		}
		a, err := s.Store.AssignDriver(r.Context(), vehicleID, req.DriverID)
		if err != nil {
			storeFailed(w, r, "Assign driver", err)
			return
		}
		metrics.AssignmentChanges.WithLabelValues("assign").Inc()
		s.Pub.Emit(r.Context(), "assignment.changed", map[string]any{
			"vehicleId": a.VehicleID, "driverId": a.DriverID, "status": a.Status, "assignedAt": a.AssignedAt,
		})
		writeJSON(w, http.StatusOK, a)
	case "unassign":
		a, err := s.Store.UnassignDriver(r.Context(), vehicleID)
		if err != nil {
			storeFailed(w, r, "Unassign driver", err)
			return
		}
		if a != nil {
			metrics.AssignmentChanges.WithLabelValues("unassign").Inc()
			s.Pub.Emit(r.Context(), "assignment.changed", map[string]any{
				"vehicleId": a.VehicleID, "driverId": a.DriverID, "status": a.Status, "unassignedAt": a.UnassignedAt,
			})
		}
		// a may be nil: no active assignment is not an error
		writeJSON(w, http.StatusOK, a)
	default:
		writeProblem(w, http.StatusNotFound, "Not Found", "", r.URL.Path)
	}
}

// AssignmentsHandler handles GET /v1/assignments
func (s *Server) AssignmentsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	items, err := s.Store.ListAssignments(r.Context())
	if err != nil {
		storeFailed(w, r, "List assignments", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

// LocationsHandler handles POST /v1/locations
func (s *Server) LocationsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if !s.limiter.Allow() {
		writeProblem(w, http.StatusTooManyRequests, "Rate limited", "location ingest rate exceeded", r.URL.Path)
		return
	}
	var in model.CreateLocationInput
	if !decodeBody(w, r, &in) {
		return
	}
	if err := validateLocationInput(&in); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid location", err.Error(), r.URL.Path)
		return
	}
	pt, err := s.Store.RecordLocation(r.Context(), in)
	if err != nil {
		storeFailed(w, r, "Record location", err)
		return
	}
	metrics.LocationPoints.WithLabelValues(string(pt.EntityType)).Inc()
	s.Broker.Publish(EntityKey(pt.EntityType, pt.EntityID), LiveEvent{
		Type: "location.recorded",
		Data: map[string]any{
			"entityType": pt.EntityType, "entityId": pt.EntityID,
			"latitude": pt.Latitude, "longitude": pt.Longitude,
			"ts": pt.Timestamp.Format(time.RFC3339),
		},
	})
	s.Pub.Emit(r.Context(), "location.recorded", pt)
	writeJSON(w, http.StatusCreated, pt)
}

// CurrentLocationsHandler handles GET /v1/locations/current
func (s *Server) CurrentLocationsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	items, err := s.Store.CurrentPositions(r.Context())
	if err != nil {
		storeFailed(w, r, "Current positions", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

// LocationHistoryHandler handles GET /v1/locations/history
func (s *Server) LocationHistoryHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	qp := r.URL.Query()
	q := model.LocationHistoryQuery{EntityType: model.EntityType(qp.Get("entityType"))}
	if !q.EntityType.Valid() {
		writeProblem(w, http.StatusBadRequest, "Invalid history query", "invalid entityType: "+qp.Get("entityType"), r.URL.Path)
		return
	}
	id, err := strconv.ParseInt(qp.Get("entityId"), 10, 64)
	if err != nil || id <= 0 {
		writeProblem(w, http.StatusBadRequest, "Invalid history query", "entityId must be a positive integer", r.URL.Path)
		return
	}
	q.EntityID = id
	if q.StartDate, err = parseTimeParam(qp.Get("startDate")); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid history query", "bad startDate: "+err.Error(), r.URL.Path)
		return
	}
	if q.EndDate, err = parseTimeParam(qp.Get("endDate")); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid history query", "bad endDate: "+err.Error(), r.URL.Path)
		return
	}
	if v := qp.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeProblem(w, http.StatusBadRequest, "Invalid history query", "bad limit", r.URL.Path)
			return
		}
		q.Limit = n
	}
	items, err := s.Store.LocationHistory(r.Context(), q)
	if err != nil {
		storeFailed(w, r, "Location history", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

// RoutesHandler handles POST /v1/routes and GET /v1/routes (history).
func (s *Server) RoutesHandler(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		if !canMutate(s.getPrincipal(r)) {
			writeProblem(w, http.StatusForbidden, "Forbidden", "dispatcher or admin required", r.URL.Path)
			return
		}
		var in model.CreateRouteInput
		if !decodeBody(w, r, &in) {
			return
		}
		if err := validateRouteInput(&in); err != nil {
			writeProblem(w, http.StatusBadRequest, "Invalid route", err.Error(), r.URL.Path)
			return
		}
		rt, err := s.Store.CreateRoute(r.Context(), in)
		if err != nil {
			storeFailed(w, r, "Create route", err)
			return
		}
		s.Pub.Emit(r.Context(), "route.updated", rt)
		writeJSON(w, http.StatusCreated, rt)
	case http.MethodGet:
		qp := r.URL.Query()
		var f model.RouteFilter
		if v := qp.Get("entityType"); v != "" {
			f.EntityType = model.EntityType(v)
			if !f.EntityType.Valid() {
				writeProblem(w, http.StatusBadRequest, "Invalid route query", "invalid entityType: "+v, r.URL.Path)
				return
			}
		}
		if v := qp.Get("entityId"); v != "" {
			id, err := strconv.ParseInt(v, 10, 64)
			if err != nil || id <= 0 {
				writeProblem(w, http.StatusBadRequest, "Invalid route query", "entityId must be a positive integer", r.URL.Path)
				return
			}
			f.EntityID = &id
		}
		var err error
		if f.StartDate, err = parseTimeParam(qp.Get("startDate")); err != nil {
			writeProblem(w, http.StatusBadRequest, "Invalid route query", "bad startDate: "+err.Error(), r.URL.Path)
			return
		}
		if f.EndDate, err = parseTimeParam(qp.Get("endDate")); err != nil {
			writeProblem(w, http.StatusBadRequest, "Invalid route query", "bad endDate: "+err.Error(), r.URL.Path)
			return
		}
		if v := qp.Get("status"); v != "" {
			f.Status = model.RouteStatus(v)
			if !f.Status.Valid() {
				writeProblem(w, http.StatusBadRequest, "Invalid route query", "invalid status: "+v, r.URL.Path)
				return
			}
		}
		items, err := s.Store.RouteHistory(r.Context(), f)
		if err != nil {
			storeFailed(w, r, "Route history", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": items})
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// RouteByIDHandler handles PATCH /v1/routes/{id}
func (s *Server) RouteByIDHandler(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/v1/routes/")
	if rest == r.URL.Path || rest == "" || strings.Contains(rest, "/") {
		writeProblem(w, http.StatusNotFound, "Not Found", "missing id", r.URL.Path)
		return
	}
	id, err := strconv.ParseInt(rest, 10, 64)
	if err != nil || id <= 0 {
		writeProblem(w, http.StatusBadRequest, "Invalid route id", rest, r.URL.Path)
		return
	}
	if r.Method != http.MethodPatch {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if !canMutate(s.getPrincipal(r)) {
		writeProblem(w, http.StatusForbidden, "Forbidden", "dispatcher or admin required", r.URL.Path)
		return
	}
	var patch model.RoutePatch
	if !decodeBody(w, r, &patch) {
		return
	}
	if err := validateRoutePatch(&patch); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid route patch", err.Error(), r.URL.Path)
		return
	}
	rt, err := s.Store.UpdateRoute(r.Context(), id, patch)
	if err != nil {
		storeFailed(w, r, "Update route", err)
		return
	}
	s.Pub.Emit(r.Context(), "route.updated", rt)
	writeJSON(w, http.StatusOK, rt)
}

// DashboardHandler handles GET /v1/dashboard
func (s *Server) DashboardHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	snap, err := s.Store.Dashboard(r.Context())
	if err != nil {
		storeFailed(w, r, "Dashboard", err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// SubscriptionsHandler handles POST/GET /v1/subscriptions
func (s *Server) SubscriptionsHandler(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		if !canMutate(s.getPrincipal(r)) {
			writeProblem(w, http.StatusForbidden, "Forbidden", "dispatcher or admin required", r.URL.Path)
			return
		}
		var req model.SubscriptionRequest
		if !decodeBody(w, r, &req) {
			return
		}
		if err := validateSubscriptionRequest(&req); err != nil {
			writeProblem(w, http.StatusBadRequest, "Invalid subscription", err.Error(), r.URL.Path)
			return
		}
		sub, err := s.Store.CreateSubscription(r.Context(), req)
		if err != nil {
			storeFailed(w, r, "Create subscription", err)
			return
		}
		writeJSON(w, http.StatusCreated, sub)
	case http.MethodGet:
		items, err := s.Store.ListSubscriptions(r.Context())
		if err != nil {
			storeFailed(w, r, "List subscriptions", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": items})
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// SubscriptionByIDHandler handles DELETE /v1/subscriptions/{id}
func (s *Server) SubscriptionByIDHandler(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/v1/subscriptions/")
	if id == "" || strings.Contains(id, "/") {
		writeProblem(w, http.StatusNotFound, "Not Found", "missing id", r.URL.Path)
		return
	}
	if r.Method != http.MethodDelete {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if !canMutate(s.getPrincipal(r)) {
		writeProblem(w, http.StatusForbidden, "Forbidden", "dispatcher or admin required", r.URL.Path)
		return
	}
	if err := s.Store.DeleteSubscription(r.Context(), id); err != nil {
		storeFailed(w, r, "Delete subscription", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HealthHandler handles GET /healthz
func (s *Server) HealthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ReadyHandler handles GET /readyz; readiness means the store answers.
func (s *Server) ReadyHandler(w http.ResponseWriter, r *http.Request) {
	if err := s.Store.Ping(r.Context()); err != nil {
		writeProblem(w, http.StatusServiceUnavailable, "Store unavailable", err.Error(), r.URL.Path)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// parseTimeParam accepts RFC3339 or a bare date; empty means unset.
func parseTimeParam(v string) (*time.Time, error) {
	if v == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return &t, nil
	}
	t, err := time.Parse("2006-01-02", v)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
