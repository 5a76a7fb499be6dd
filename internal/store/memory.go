package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"fleetwatch/internal/model"
)

// Memory is the in-memory store used when no DATABASE_URL is set, and the
// fixture for handler tests. Semantics mirror the Postgres implementation.
type Memory struct {
	mu          sync.Mutex
	nextID      int64
	officers    map[int64]model.Officer
	vehicles    map[int64]model.Vehicle
	drivers     map[int64]model.Driver
	assignments []model.Assignment
	points      []model.LocationPoint
	routes      map[int64]model.Route
	subs        []model.Subscription
	deliveries  map[string]*memDelivery
}

// memDelivery augments WebhookDelivery with scheduling state.
type memDelivery struct {
	WebhookDelivery
	NextAttemptAt time.Time
	LastError     string
	ResponseCode  int
	DeliveredAt   *time.Time
}

func NewMemory() *Memory {
	return &Memory{
		officers:   map[int64]model.Officer{},
		vehicles:   map[int64]model.Vehicle{},
		drivers:    map[int64]model.Driver{},
		routes:     map[int64]model.Route{},
		deliveries: map[string]*memDelivery{},
	}
}

func (m *Memory) id() int64 { m.nextID++; return m.nextID }

func (m *Memory) Ping(ctx context.Context) error { return nil }

// Registry

func (m *Memory) CreateOfficer(ctx context.Context, in model.CreateOfficerInput) (model.Officer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range m.officers {
		if o.BadgeNumber == in.BadgeNumber {
			return model.Officer{}, fmt.Errorf("%w: badge_number %s", ErrConflict, in.BadgeNumber)
		}
	}
	status := in.Status
	if status == "" {
		status = model.OfficerActive
	}
	now := time.Now().UTC()
	o := model.Officer{
		ID: m.id(), Name: in.Name, BadgeNumber: in.BadgeNumber,
		Phone: in.Phone, Email: in.Email, Status: status,
		CreatedAt: now, UpdatedAt: now,
	}
	m.officers[o.ID] = o
	return o, nil
}

func (m *Memory) ListOfficers(ctx context.Context) ([]model.Officer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.Officer, 0, len(m.officers))
	for _, o := range m.officers {
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) CreateVehicle(ctx context.Context, in model.CreateVehicleInput) (model.Vehicle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, v := range m.vehicles {
		if v.LicensePlate == in.LicensePlate {
			return model.Vehicle{}, fmt.Errorf("%w: license_plate %s", ErrConflict, in.LicensePlate)
		}
	}
	status := in.Status
	if status == "" {
		status = model.VehicleActive
	}
	now := time.Now().UTC()
	v := model.Vehicle{
		ID: m.id(), LicensePlate: in.LicensePlate, Make: in.Make, Model: in.Model,
		Year: in.Year, VehicleType: in.VehicleType, Status: status,
		CreatedAt: now, UpdatedAt: now,
	}
	m.vehicles[v.ID] = v
	return v, nil
}

func (m *Memory) ListVehicles(ctx context.Context) ([]model.Vehicle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.Vehicle, 0, len(m.vehicles))
	for _, v := range m.vehicles {
		for _, a := range m.assignments {
			if a.VehicleID == v.ID && a.Status == model.AssignmentActive {
				id := a.DriverID
				v.DriverID = &id
				if d, ok := m.drivers[a.DriverID]; ok {
					v.DriverName = d.Name
				}
				break
			}
		}
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) CreateDriver(ctx context.Context, in model.CreateDriverInput) (model.Driver, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, d := range m.drivers {
		if d.LicenseNumber == in.LicenseNumber {
			return model.Driver{}, fmt.Errorf("%w: license_number %s", ErrConflict, in.LicenseNumber)
		}
	}
	status := in.Status
	if status == "" {
		status = model.DriverActive
	}
	now := time.Now().UTC()
	d := model.Driver{
		ID: m.id(), Name: in.Name, LicenseNumber: in.LicenseNumber,
		Phone: in.Phone, Email: in.Email, Status: status,
		CreatedAt: now, UpdatedAt: now,
	}
	m.drivers[d.ID] = d
	return d, nil
}

func (m *Memory) ListDrivers(ctx context.Context) ([]model.Driver, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.Driver, 0, len(m.drivers))
	for _, d := range m.drivers {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Assignments

func (m *Memory) AssignDriver(ctx context.Context, vehicleID, driverID int64) (model.Assignment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.vehicles[vehicleID]; !ok {
		return model.Assignment{}, fmt.Errorf("%w: vehicle %d", ErrNotFound, vehicleID)
	}
	if _, ok := m.drivers[driverID]; !ok {
		return model.Assignment{}, fmt.Errorf("%w: driver %d", ErrNotFound, driverID)
	}
	now := time.Now().UTC()
	for i := range m.assignments {
		if m.assignments[i].VehicleID == vehicleID && m.assignments[i].Status == model.AssignmentActive {
			t := now
			m.assignments[i].Status = model.AssignmentInactive
			m.assignments[i].UnassignedAt = &t
		}
	}
	a := model.Assignment{
		ID: m.id(), VehicleID: vehicleID, DriverID: driverID,
		AssignedAt: now, Status: model.AssignmentActive,
	}
	m.assignments = append(m.assignments, a)
	return a, nil
}

func (m *Memory) UnassignDriver(ctx context.Context, vehicleID int64) (*model.Assignment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.assignments {
		if m.assignments[i].VehicleID == vehicleID && m.assignments[i].Status == model.AssignmentActive {
			t := time.Now().UTC()
			m.assignments[i].Status = model.AssignmentInactive
			m.assignments[i].UnassignedAt = &t
			a := m.assignments[i]
			return &a, nil
		}
	}
	return nil, nil
}

func (m *Memory) ListAssignments(ctx context.Context) ([]model.Assignment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.Assignment, len(m.assignments))
	copy(out, m.assignments)
	return out, nil
}

// Location ledger

func (m *Memory) entityExistsLocked(typ model.EntityType, id int64) error {
	switch typ {
	case model.EntityOfficer:
		if _, ok := m.officers[id]; ok {
			return nil
		}
	case model.EntityVehicle:
		if _, ok := m.vehicles[id]; ok {
			return nil
		}
	}
	return fmt.Errorf("%w: %s %d", ErrNotFound, typ, id)
}

func (m *Memory) RecordLocation(ctx context.Context, in model.CreateLocationInput) (model.LocationPoint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.entityExistsLocked(in.EntityType, in.EntityID); err != nil {
		return model.LocationPoint{}, err
	}
	now := time.Now().UTC()
	ts := now
	if in.Timestamp != nil {
		ts = *in.Timestamp
	}
	pt := model.LocationPoint{
		ID: m.id(), EntityType: in.EntityType, EntityID: in.EntityID,
		Latitude: in.Latitude, Longitude: in.Longitude,
		Altitude: in.Altitude, Accuracy: in.Accuracy, Heading: in.Heading, Speed: in.Speed,
		Timestamp: ts, CreatedAt: now,
	}
	m.points = append(m.points, pt)
	return pt, nil
}

// newestFirst orders by timestamp descending, id descending on ties.
func newestFirst(pts []model.LocationPoint) {
	sort.Slice(pts, func(i, j int) bool {
		if !pts[i].Timestamp.Equal(pts[j].Timestamp) {
			return pts[i].Timestamp.After(pts[j].Timestamp)
		}
		return pts[i].ID > pts[j].ID
	})
}

func (m *Memory) LocationHistory(ctx context.Context, q model.LocationHistoryQuery) ([]model.LocationPoint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	limit := ClampLimit(q.Limit)
	out := []model.LocationPoint{}
	for _, pt := range m.points {
		if pt.EntityType != q.EntityType || pt.EntityID != q.EntityID {
			continue
		}
		if q.StartDate != nil && pt.Timestamp.Before(*q.StartDate) {
			continue
		}
		if q.EndDate != nil && pt.Timestamp.After(*q.EndDate) {
			continue
		}
		out = append(out, pt)
	}
	newestFirst(out)
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *Memory) CurrentPositions(ctx context.Context) ([]model.LocationPoint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	latest := map[string]model.LocationPoint{}
	for _, pt := range m.points {
		switch pt.EntityType {
		case model.EntityOfficer:
			if o, ok := m.officers[pt.EntityID]; !ok || o.Status != model.OfficerOnDuty {
				continue
			}
		case model.EntityVehicle:
			if v, ok := m.vehicles[pt.EntityID]; !ok || v.Status != model.VehicleActive {
				continue
			}
		}
		key := fmt.Sprintf("%s:%d", pt.EntityType, pt.EntityID)
		cur, ok := latest[key]
		if !ok || pt.Timestamp.After(cur.Timestamp) ||
			(pt.Timestamp.Equal(cur.Timestamp) && pt.ID > cur.ID) {
			latest[key] = pt
		}
	}
	out := make([]model.LocationPoint, 0, len(latest))
	for _, pt := range latest {
		out = append(out, pt)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].EntityType != out[j].EntityType {
			return out[i].EntityType < out[j].EntityType
		}
		return out[i].EntityID < out[j].EntityID
	})
	return out, nil
}

// Route ledger

func (m *Memory) CreateRoute(ctx context.Context, in model.CreateRouteInput) (model.Route, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.entityExistsLocked(in.EntityType, in.EntityID); err != nil {
		return model.Route{}, err
	}
	now := time.Now().UTC()
	start := now
	if in.StartTime != nil {
		start = *in.StartTime
	}
	r := model.Route{
		ID: m.id(), EntityType: in.EntityType, EntityID: in.EntityID,
		RouteName: in.RouteName, StartTime: start,
		Status: model.RouteActive, CreatedAt: now,
	}
	m.routes[r.ID] = r
	return r, nil
}

func (m *Memory) UpdateRoute(ctx context.Context, id int64, patch model.RoutePatch) (model.Route, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.routes[id]
	if !ok {
		return model.Route{}, fmt.Errorf("%w: route %d", ErrNotFound, id)
	}
	if patch.RouteName.Set {
		r.RouteName = patch.RouteName.Ptr()
	}
	if patch.EndTime.Set {
		r.EndTime = patch.EndTime.Ptr()
	}
	if patch.TotalDistance.Set {
		r.TotalDistance = patch.TotalDistance.Ptr()
	}
	if patch.TotalDuration.Set {
		r.TotalDuration = patch.TotalDuration.Ptr()
	}
	if patch.Status.Set {
		r.Status = patch.Status.Value
	}
	m.routes[id] = r
	return r, nil
}

func (m *Memory) RouteHistory(ctx context.Context, f model.RouteFilter) ([]model.Route, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []model.Route{}
	for _, r := range m.routes {
		if f.EntityType != "" && r.EntityType != f.EntityType {
			continue
		}
		if f.EntityID != nil && r.EntityID != *f.EntityID {
			continue
		}
		if f.StartDate != nil && r.StartTime.Before(*f.StartDate) {
			continue
		}
		if f.EndDate != nil && r.StartTime.After(*f.EndDate) {
			continue
		}
		if f.Status != "" && r.Status != f.Status {
			continue
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].StartTime.Equal(out[j].StartTime) {
			return out[i].StartTime.After(out[j].StartTime)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

// Aggregation

func (m *Memory) Dashboard(ctx context.Context) (model.DashboardSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var snap model.DashboardSnapshot
	for _, o := range m.officers {
		if o.Status == model.OfficerActive {
			snap.ActiveSecurityOfficers++
		}
		if o.Status == model.OfficerOnDuty {
			snap.OfficersOnDuty++
		}
	}
	for _, v := range m.vehicles {
		if v.Status == model.VehicleActive {
			snap.ActiveVehicles++
		}
	}
	inUse := map[int64]bool{}
	for _, a := range m.assignments {
		if a.Status != model.AssignmentActive {
			continue
		}
		if v, ok := m.vehicles[a.VehicleID]; ok && v.Status == model.VehicleActive {
			inUse[a.VehicleID] = true
		}
	}
	snap.VehiclesInUse = len(inUse)
	for _, r := range m.routes {
		if r.Status == model.RouteActive {
			snap.TotalActiveRoutes++
		}
	}
	cutoff := time.Now().UTC().Add(-24 * time.Hour)
	recent := []model.LocationPoint{}
	for _, pt := range m.points {
		if !pt.Timestamp.Before(cutoff) {
			recent = append(recent, pt)
		}
	}
	newestFirst(recent)
	if len(recent) > 10 {
		recent = recent[:10]
	}
	snap.RecentLocationUpdates = recent
	return snap, nil
}

// Webhook subscriptions & deliveries

func (m *Memory) CreateSubscription(ctx context.Context, req model.SubscriptionRequest) (model.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := model.Subscription{ID: uuid.New().String(), URL: req.URL, Events: req.Events, Secret: req.Secret}
	m.subs = append(m.subs, s)
	return s, nil
}

func (m *Memory) ListSubscriptions(ctx context.Context) ([]model.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.Subscription, len(m.subs))
	copy(out, m.subs)
	return out, nil
}

func (m *Memory) DeleteSubscription(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.subs {
		if m.subs[i].ID == id {
			m.subs = append(m.subs[:i], m.subs[i+1:]...)
			return nil
		}
	}
	return ErrNotFound
}

func (m *Memory) GetSubscriptionsForEvent(ctx context.Context, eventType string) ([]model.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []model.Subscription{}
	for _, s := range m.subs {
		for _, e := range s.Events {
			if e == eventType {
				out = append(out, s)
				break
			}
		}
	}
	return out, nil
}

func (m *Memory) EnqueueWebhook(ctx context.Context, subscriptionID, eventType, url, secret string, payload []byte) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := uuid.New().String()
	m.deliveries[id] = &memDelivery{
		WebhookDelivery: WebhookDelivery{
			ID: id, SubscriptionID: subscriptionID, EventType: eventType,
			URL: url, Secret: secret, Payload: payload, Status: "pending",
		},
		NextAttemptAt: time.Now(),
	}
	return id, nil
}

func (m *Memory) FetchDueWebhookDeliveries(ctx context.Context, limit int) ([]WebhookDelivery, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	out := []WebhookDelivery{}
	for _, d := range m.deliveries {
		if (d.Status == "pending" || d.Status == "retry") && !d.NextAttemptAt.After(now) {
			out = append(out, d.WebhookDelivery)
			if len(out) >= limit {
				break
			}
		}
	}
	return out, nil
}

func (m *Memory) MarkWebhookDelivery(ctx context.Context, id string, success bool, nextAttemptAt *time.Time, lastError string, responseCode int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.deliveries[id]
	if !ok {
		return ErrNotFound
	}
	d.ResponseCode = responseCode
	if success {
		t := time.Now()
		d.Status = "delivered"
		d.DeliveredAt = &t
		return nil
	}
	d.Status = "retry"
	d.Attempts++
	d.LastError = lastError
	if nextAttemptAt != nil {
		d.NextAttemptAt = *nextAttemptAt
	} else {
		d.NextAttemptAt = time.Now().Add(time.Minute)
	}
	return nil
}

func (m *Memory) FailWebhookDelivery(ctx context.Context, id string, lastError string, responseCode int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.deliveries[id]
	if !ok {
		return ErrNotFound
	}
	d.Status = "failed"
	d.LastError = lastError
	d.ResponseCode = responseCode
	return nil
}
