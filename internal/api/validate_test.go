package api

import (
	"testing"

	"fleetwatch/internal/model"
)

func TestValidateVehicleInput(t *testing.T) {
	ok := model.CreateVehicleInput{LicensePlate: "P", Make: "Ford", Model: "F150", Year: 2020, VehicleType: model.VehicleTruck}
	if err := validateVehicleInput(&ok); err != nil {
		t.Fatalf("valid input rejected: %v", err)
	}
	bad := ok
	bad.Year = 2101
	if err := validateVehicleInput(&bad); err == nil {
		t.Fatal("year 2101 accepted")
	}
	bad = ok
	bad.VehicleType = "boat"
	if err := validateVehicleInput(&bad); err == nil {
		t.Fatal("vehicleType boat accepted")
	}
	bad = ok
	bad.Status = "sunk"
	if err := validateVehicleInput(&bad); err == nil {
		t.Fatal("status sunk accepted")
	}
}

func TestValidateLocationBounds(t *testing.T) {
	base := model.CreateLocationInput{EntityType: model.EntityOfficer, EntityID: 1, Latitude: 45, Longitude: 90}
	if err := validateLocationInput(&base); err != nil {
		t.Fatalf("valid input rejected: %v", err)
	}
	edge := base
	edge.Latitude, edge.Longitude = -90, 180
	if err := validateLocationInput(&edge); err != nil {
		t.Fatalf("boundary values rejected: %v", err)
	}
	h := 360.0
	edge = base
	edge.Heading = &h
	if err := validateLocationInput(&edge); err != nil {
		t.Fatalf("heading 360 rejected: %v", err)
	}
	h = 360.5
	if err := validateLocationInput(&edge); err == nil {
		t.Fatal("heading 360.5 accepted")
	}
}

func TestValidateRoutePatchStatusNull(t *testing.T) {
	var p model.RoutePatch
	p.Status = model.Optional[model.RouteStatus]{Set: true, Valid: false}
	if err := validateRoutePatch(&p); err == nil {
		t.Fatal("null status accepted")
	}
	p.Status = model.Optional[model.RouteStatus]{Set: true, Valid: true, Value: "paused"}
	if err := validateRoutePatch(&p); err == nil {
		t.Fatal("unknown status accepted")
	}
	p.Status = model.Optional[model.RouteStatus]{Set: true, Valid: true, Value: model.RouteInterrupted}
	if err := validateRoutePatch(&p); err != nil {
		t.Fatalf("interrupted rejected: %v", err)
	}
	var neg model.RoutePatch
	neg.TotalDistance = model.Optional[float64]{Set: true, Valid: true, Value: -1}
	if err := validateRoutePatch(&neg); err == nil {
		t.Fatal("negative distance accepted")
	}
}
