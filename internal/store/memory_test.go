package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"fleetwatch/internal/model"
)

func seedVehicle(t *testing.T, m *Memory, plate string) model.Vehicle {
	t.Helper()
	v, err := m.CreateVehicle(context.Background(), model.CreateVehicleInput{
		LicensePlate: plate, Make: "Ford", Model: "Explorer", Year: 2022, VehicleType: model.VehicleSUV,
	})
	if err != nil {
		t.Fatalf("CreateVehicle: %v", err)
	}
	return v
}

func seedDriver(t *testing.T, m *Memory, license string) model.Driver {
	t.Helper()
	d, err := m.CreateDriver(context.Background(), model.CreateDriverInput{Name: "D " + license, LicenseNumber: license})
	if err != nil {
		t.Fatalf("CreateDriver: %v", err)
	}
	return d
}

func TestCreateOfficerDefaultsAndConflict(t *testing.T) {
	m := NewMemory()
	o, err := m.CreateOfficer(context.Background(), model.CreateOfficerInput{Name: "Ada", BadgeNumber: "B-100"})
	if err != nil {
		t.Fatalf("CreateOfficer: %v", err)
	}
	if o.Status != model.OfficerActive {
		t.Fatalf("default status: got %s", o.Status)
	}
	_, err = m.CreateOfficer(context.Background(), model.CreateOfficerInput{Name: "Bob", BadgeNumber: "B-100"})
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("duplicate badge: want ErrConflict, got %v", err)
	}
}

func TestAssignDeactivatesPrior(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	v := seedVehicle(t, m, "FW-001")
	d1 := seedDriver(t, m, "L1")
	d2 := seedDriver(t, m, "L2")

	a1, err := m.AssignDriver(ctx, v.ID, d1.ID)
	if err != nil {
		t.Fatalf("assign d1: %v", err)
	}
	if a1.Status != model.AssignmentActive {
		t.Fatalf("a1 status: %s", a1.Status)
	}

	a2, err := m.AssignDriver(ctx, v.ID, d2.ID)
	if err != nil {
		t.Fatalf("assign d2: %v", err)
	}

	all, _ := m.ListAssignments(ctx)
	active := 0
	for _, a := range all {
		if a.VehicleID == v.ID && a.Status == model.AssignmentActive {
			active++
			if a.ID != a2.ID {
				t.Fatalf("active assignment is %d, want %d", a.ID, a2.ID)
			}
		}
		if a.ID == a1.ID {
			if a.Status != model.AssignmentInactive || a.UnassignedAt == nil {
				t.Fatalf("prior assignment not closed: %+v", a)
			}
		}
	}
	if active != 1 {
		t.Fatalf("active assignments for vehicle: got %d, want 1", active)
	}
}

func TestAssignUnknownRefs(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	v := seedVehicle(t, m, "FW-002")
	d := seedDriver(t, m, "L3")
	if _, err := m.AssignDriver(ctx, 9999, d.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("unknown vehicle: want ErrNotFound, got %v", err)
	}
	if _, err := m.AssignDriver(ctx, v.ID, 9999); !errors.Is(err, ErrNotFound) {
		t.Fatalf("unknown driver: want ErrNotFound, got %v", err)
	}
}

func TestUnassignWithoutActive(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	v := seedVehicle(t, m, "FW-003")
	a, err := m.UnassignDriver(ctx, v.ID)
	if err != nil {
		t.Fatalf("unassign: %v", err)
	}
	if a != nil {
		t.Fatalf("expected nil assignment, got %+v", a)
	}

	d := seedDriver(t, m, "L4")
	if _, err := m.AssignDriver(ctx, v.ID, d.ID); err != nil {
		t.Fatalf("assign: %v", err)
	}
	a, err = m.UnassignDriver(ctx, v.ID)
	if err != nil || a == nil {
		t.Fatalf("unassign active: a=%v err=%v", a, err)
	}
	if a.Status != model.AssignmentInactive || a.UnassignedAt == nil {
		t.Fatalf("assignment not closed: %+v", a)
	}
}

func TestLocationHistoryOrderAndLimit(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	v := seedVehicle(t, m, "FW-004")
	base := time.Now().UTC().Add(-time.Hour)
	for i := 0; i < 5; i++ {
		ts := base.Add(time.Duration(i) * time.Minute)
		_, err := m.RecordLocation(ctx, model.CreateLocationInput{
			EntityType: model.EntityVehicle, EntityID: v.ID,
			Latitude: 40.0 + float64(i)*0.01, Longitude: -74.0, Timestamp: &ts,
		})
		if err != nil {
			t.Fatalf("RecordLocation: %v", err)
		}
	}

	pts, err := m.LocationHistory(ctx, model.LocationHistoryQuery{EntityType: model.EntityVehicle, EntityID: v.ID})
	if err != nil {
		t.Fatalf("LocationHistory: %v", err)
	}
	if len(pts) != 5 {
		t.Fatalf("history size: got %d", len(pts))
	}
	for i := 1; i < len(pts); i++ {
		if pts[i].Timestamp.After(pts[i-1].Timestamp) {
			t.Fatalf("not newest-first at %d", i)
		}
	}

	pts, _ = m.LocationHistory(ctx, model.LocationHistoryQuery{EntityType: model.EntityVehicle, EntityID: v.ID, Limit: 2})
	if len(pts) != 2 {
		t.Fatalf("limit 2: got %d", len(pts))
	}
	// newest sample comes back first
	if pts[0].Latitude != 40.04 {
		t.Fatalf("limit keeps newest: got lat %v", pts[0].Latitude)
	}

	// date window excludes points outside [start,end]
	start := base.Add(1 * time.Minute)
	end := base.Add(3 * time.Minute)
	pts, _ = m.LocationHistory(ctx, model.LocationHistoryQuery{
		EntityType: model.EntityVehicle, EntityID: v.ID, StartDate: &start, EndDate: &end,
	})
	if len(pts) != 3 {
		t.Fatalf("window: got %d, want 3", len(pts))
	}
}

func TestClampLimit(t *testing.T) {
	cases := []struct{ in, want int }{
		{0, 100}, {-5, 1}, {1, 1}, {500, 500}, {1000, 1000}, {5000, 1000},
	}
	for _, c := range cases {
		if got := ClampLimit(c.in); got != c.want {
			t.Fatalf("ClampLimit(%d) = %d, want %d", c.in, got, c.want)
		}
	}
}

func TestRecordLocationUnknownEntity(t *testing.T) {
	m := NewMemory()
	_, err := m.RecordLocation(context.Background(), model.CreateLocationInput{
		EntityType: model.EntityOfficer, EntityID: 42, Latitude: 0, Longitude: 0,
	})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestCurrentPositionsFiltersByStatus(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	onDuty, _ := m.CreateOfficer(ctx, model.CreateOfficerInput{Name: "On", BadgeNumber: "B-1", Status: model.OfficerOnDuty})
	offDuty, _ := m.CreateOfficer(ctx, model.CreateOfficerInput{Name: "Off", BadgeNumber: "B-2", Status: model.OfficerOffDuty})
	v := seedVehicle(t, m, "FW-005")
	parked, _ := m.CreateVehicle(ctx, model.CreateVehicleInput{
		LicensePlate: "FW-006", Make: "Ford", Model: "F150", Year: 2020,
		VehicleType: model.VehicleTruck, Status: model.VehicleMaintenance,
	})

	for _, e := range []struct {
		typ model.EntityType
		id  int64
	}{
		{model.EntityOfficer, onDuty.ID},
		{model.EntityOfficer, offDuty.ID},
		{model.EntityVehicle, v.ID},
		{model.EntityVehicle, parked.ID},
	} {
		// two samples each; only the later one should surface
		for i := 0; i < 2; i++ {
			ts := time.Now().UTC().Add(time.Duration(i-5) * time.Minute)
			if _, err := m.RecordLocation(ctx, model.CreateLocationInput{
				EntityType: e.typ, EntityID: e.id, Latitude: float64(i), Longitude: 0, Timestamp: &ts,
			}); err != nil {
				t.Fatalf("RecordLocation: %v", err)
			}
		}
	}

	pts, err := m.CurrentPositions(ctx)
	if err != nil {
		t.Fatalf("CurrentPositions: %v", err)
	}
	if len(pts) != 2 {
		t.Fatalf("current positions: got %d, want 2 (on-duty officer + active vehicle)", len(pts))
	}
	for _, pt := range pts {
		if pt.Latitude != 1 {
			t.Fatalf("expected latest sample (lat=1), got %+v", pt)
		}
		if pt.EntityType == model.EntityOfficer && pt.EntityID != onDuty.ID {
			t.Fatalf("wrong officer surfaced: %+v", pt)
		}
		if pt.EntityType == model.EntityVehicle && pt.EntityID != v.ID {
			t.Fatalf("wrong vehicle surfaced: %+v", pt)
		}
	}
}

func TestCurrentPositionsTieBreakOnID(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	o, _ := m.CreateOfficer(ctx, model.CreateOfficerInput{Name: "O", BadgeNumber: "B-9", Status: model.OfficerOnDuty})
	ts := time.Now().UTC()
	first, _ := m.RecordLocation(ctx, model.CreateLocationInput{EntityType: model.EntityOfficer, EntityID: o.ID, Latitude: 1, Longitude: 1, Timestamp: &ts})
	second, _ := m.RecordLocation(ctx, model.CreateLocationInput{EntityType: model.EntityOfficer, EntityID: o.ID, Latitude: 2, Longitude: 2, Timestamp: &ts})
	if second.ID <= first.ID {
		t.Fatalf("ids not monotonic")
	}
	pts, _ := m.CurrentPositions(ctx)
	if len(pts) != 1 || pts[0].ID != second.ID {
		t.Fatalf("tie on timestamp must pick higher id: %+v", pts)
	}
}

func TestRoutePatchSemantics(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	v := seedVehicle(t, m, "FW-007")
	name := "night patrol"
	start := time.Now().UTC().Add(-2 * time.Hour)
	rt, err := m.CreateRoute(ctx, model.CreateRouteInput{
		EntityType: model.EntityVehicle, EntityID: v.ID, RouteName: &name, StartTime: &start,
	})
	if err != nil {
		t.Fatalf("CreateRoute: %v", err)
	}
	if rt.Status != model.RouteActive {
		t.Fatalf("new route status: %s", rt.Status)
	}

	// set distance, leave everything else untouched
	var patch model.RoutePatch
	patch.TotalDistance = model.Optional[float64]{Set: true, Valid: true, Value: 12.5}
	rt, err = m.UpdateRoute(ctx, rt.ID, patch)
	if err != nil {
		t.Fatalf("UpdateRoute: %v", err)
	}
	if rt.TotalDistance == nil || *rt.TotalDistance != 12.5 {
		t.Fatalf("distance not set: %+v", rt.TotalDistance)
	}
	if rt.RouteName == nil || *rt.RouteName != name {
		t.Fatalf("omitted field changed: %+v", rt.RouteName)
	}

	// explicit null clears the name
	patch = model.RoutePatch{}
	patch.RouteName = model.Optional[string]{Set: true, Valid: false}
	rt, err = m.UpdateRoute(ctx, rt.ID, patch)
	if err != nil {
		t.Fatalf("UpdateRoute null: %v", err)
	}
	if rt.RouteName != nil {
		t.Fatalf("null should clear routeName, got %v", *rt.RouteName)
	}
	if rt.TotalDistance == nil || *rt.TotalDistance != 12.5 {
		t.Fatalf("untouched field lost: %+v", rt.TotalDistance)
	}

	// complete the route
	end := time.Now().UTC()
	patch = model.RoutePatch{}
	patch.EndTime = model.Optional[time.Time]{Set: true, Valid: true, Value: end}
	patch.Status = model.Optional[model.RouteStatus]{Set: true, Valid: true, Value: model.RouteCompleted}
	rt, err = m.UpdateRoute(ctx, rt.ID, patch)
	if err != nil {
		t.Fatalf("UpdateRoute complete: %v", err)
	}
	if rt.Status != model.RouteCompleted || rt.EndTime == nil {
		t.Fatalf("completion patch: %+v", rt)
	}

	if _, err := m.UpdateRoute(ctx, 9999, model.RoutePatch{}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("unknown route: want ErrNotFound, got %v", err)
	}
}

func TestRouteHistoryFilters(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	v := seedVehicle(t, m, "FW-008")
	o, _ := m.CreateOfficer(ctx, model.CreateOfficerInput{Name: "O", BadgeNumber: "B-20"})

	mk := func(typ model.EntityType, id int64, hoursAgo int) model.Route {
		start := time.Now().UTC().Add(-time.Duration(hoursAgo) * time.Hour)
		rt, err := m.CreateRoute(ctx, model.CreateRouteInput{EntityType: typ, EntityID: id, StartTime: &start})
		if err != nil {
			t.Fatalf("CreateRoute: %v", err)
		}
		return rt
	}
	r1 := mk(model.EntityVehicle, v.ID, 5)
	mk(model.EntityVehicle, v.ID, 1)
	mk(model.EntityOfficer, o.ID, 3)

	var patch model.RoutePatch
	patch.Status = model.Optional[model.RouteStatus]{Set: true, Valid: true, Value: model.RouteCompleted}
	if _, err := m.UpdateRoute(ctx, r1.ID, patch); err != nil {
		t.Fatalf("UpdateRoute: %v", err)
	}

	all, _ := m.RouteHistory(ctx, model.RouteFilter{})
	if len(all) != 3 {
		t.Fatalf("unfiltered: got %d", len(all))
	}
	for i := 1; i < len(all); i++ {
		if all[i].StartTime.After(all[i-1].StartTime) {
			t.Fatalf("not newest-first at %d", i)
		}
	}

	byEntity, _ := m.RouteHistory(ctx, model.RouteFilter{EntityType: model.EntityVehicle, EntityID: &v.ID})
	if len(byEntity) != 2 {
		t.Fatalf("entity filter: got %d", len(byEntity))
	}

	byStatus, _ := m.RouteHistory(ctx, model.RouteFilter{Status: model.RouteCompleted})
	if len(byStatus) != 1 || byStatus[0].ID != r1.ID {
		t.Fatalf("status filter: %+v", byStatus)
	}

	since := time.Now().UTC().Add(-2 * time.Hour)
	recent, _ := m.RouteHistory(ctx, model.RouteFilter{StartDate: &since})
	if len(recent) != 1 {
		t.Fatalf("date filter: got %d", len(recent))
	}
}

func TestCreateRouteUnknownEntity(t *testing.T) {
	m := NewMemory()
	_, err := m.CreateRoute(context.Background(), model.CreateRouteInput{EntityType: model.EntityVehicle, EntityID: 77})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestDashboardCounts(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	snap, err := m.Dashboard(ctx)
	if err != nil {
		t.Fatalf("Dashboard empty: %v", err)
	}
	if snap.ActiveSecurityOfficers != 0 || snap.TotalActiveRoutes != 0 || len(snap.RecentLocationUpdates) != 0 {
		t.Fatalf("empty snapshot not zeroed: %+v", snap)
	}

	m.CreateOfficer(ctx, model.CreateOfficerInput{Name: "A", BadgeNumber: "B-1", Status: model.OfficerActive})
	m.CreateOfficer(ctx, model.CreateOfficerInput{Name: "B", BadgeNumber: "B-2", Status: model.OfficerOnDuty})
	m.CreateOfficer(ctx, model.CreateOfficerInput{Name: "C", BadgeNumber: "B-3", Status: model.OfficerInactive})

	v1 := seedVehicle(t, m, "FW-101")
	seedVehicle(t, m, "FW-102")
	m.CreateVehicle(ctx, model.CreateVehicleInput{
		LicensePlate: "FW-103", Make: "Ford", Model: "Focus", Year: 2018,
		VehicleType: model.VehicleSedan, Status: model.VehicleOutOfService,
	})
	d := seedDriver(t, m, "L-10")
	if _, err := m.AssignDriver(ctx, v1.ID, d.ID); err != nil {
		t.Fatalf("assign: %v", err)
	}

	if _, err := m.CreateRoute(ctx, model.CreateRouteInput{EntityType: model.EntityVehicle, EntityID: v1.ID}); err != nil {
		t.Fatalf("route: %v", err)
	}

	old := time.Now().UTC().Add(-25 * time.Hour)
	m.RecordLocation(ctx, model.CreateLocationInput{EntityType: model.EntityVehicle, EntityID: v1.ID, Latitude: 1, Longitude: 1, Timestamp: &old})
	for i := 0; i < 12; i++ {
		ts := time.Now().UTC().Add(-time.Duration(i) * time.Minute)
		m.RecordLocation(ctx, model.CreateLocationInput{EntityType: model.EntityVehicle, EntityID: v1.ID, Latitude: float64(i), Longitude: 1, Timestamp: &ts})
	}

	snap, err = m.Dashboard(ctx)
	if err != nil {
		t.Fatalf("Dashboard: %v", err)
	}
	if snap.ActiveSecurityOfficers != 1 {
		t.Fatalf("ActiveSecurityOfficers: %d", snap.ActiveSecurityOfficers)
	}
	if snap.OfficersOnDuty != 1 {
		t.Fatalf("OfficersOnDuty: %d", snap.OfficersOnDuty)
	}
	if snap.ActiveVehicles != 2 {
		t.Fatalf("ActiveVehicles: %d", snap.ActiveVehicles)
	}
	if snap.VehiclesInUse != 1 {
		t.Fatalf("VehiclesInUse: %d", snap.VehiclesInUse)
	}
	if snap.TotalActiveRoutes != 1 {
		t.Fatalf("TotalActiveRoutes: %d", snap.TotalActiveRoutes)
	}
	// capped at 10 and nothing older than 24h
	if len(snap.RecentLocationUpdates) != 10 {
		t.Fatalf("RecentLocationUpdates: %d", len(snap.RecentLocationUpdates))
	}
	for _, pt := range snap.RecentLocationUpdates {
		if pt.Timestamp.Before(time.Now().UTC().Add(-24 * time.Hour)) {
			t.Fatalf("stale point in recent updates: %+v", pt)
		}
	}
}

func TestVehicleListCarriesActiveDriver(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	v := seedVehicle(t, m, "FW-201")
	d := seedDriver(t, m, "L-20")
	if _, err := m.AssignDriver(ctx, v.ID, d.ID); err != nil {
		t.Fatalf("assign: %v", err)
	}
	vs, _ := m.ListVehicles(ctx)
	if len(vs) != 1 {
		t.Fatalf("vehicles: %d", len(vs))
	}
	if vs[0].DriverID == nil || *vs[0].DriverID != d.ID || vs[0].DriverName != d.Name {
		t.Fatalf("driver join missing: %+v", vs[0])
	}
	if _, err := m.UnassignDriver(ctx, v.ID); err != nil {
		t.Fatalf("unassign: %v", err)
	}
	vs, _ = m.ListVehicles(ctx)
	if vs[0].DriverID != nil || vs[0].DriverName != "" {
		t.Fatalf("driver join should clear after unassign: %+v", vs[0])
	}
}

func TestSubscriptionsLifecycle(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	sub, err := m.CreateSubscription(ctx, model.SubscriptionRequest{
		URL: "https://example.com/hook", Events: []string{"assignment.changed"}, Secret: "s",
	})
	if err != nil || sub.ID == "" {
		t.Fatalf("CreateSubscription: %v", err)
	}
	got, _ := m.GetSubscriptionsForEvent(ctx, "assignment.changed")
	if len(got) != 1 {
		t.Fatalf("match: %d", len(got))
	}
	got, _ = m.GetSubscriptionsForEvent(ctx, "route.updated")
	if len(got) != 0 {
		t.Fatalf("non-match: %d", len(got))
	}
	if err := m.DeleteSubscription(ctx, sub.ID); err != nil {
		t.Fatalf("DeleteSubscription: %v", err)
	}
	if err := m.DeleteSubscription(ctx, sub.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("double delete: %v", err)
	}
}
