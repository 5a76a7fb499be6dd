package api

import (
	"fmt"

	"fleetwatch/internal/model"
)

// Boundary validation. Everything here runs before any store access; a
// failure is an InvalidInput and has no side effect.

func validateOfficerInput(in *model.CreateOfficerInput) error {
	if in.Name == "" {
		return fmt.Errorf("name is required")
	}
	if in.BadgeNumber == "" {
		return fmt.Errorf("badgeNumber is required")
	}
	if in.Status != "" && !in.Status.Valid() {
		return fmt.Errorf("invalid status: %s", in.Status)
	}
	return nil
}

func validateVehicleInput(in *model.CreateVehicleInput) error {
	if in.LicensePlate == "" {
		return fmt.Errorf("licensePlate is required")
	}
	if in.Make == "" || in.Model == "" {
		return fmt.Errorf("make and model are required")
	}
	if in.Year < 1900 || in.Year > 2100 {
		return fmt.Errorf("year must be in [1900,2100]")
	}
	if !in.VehicleType.Valid() {
		return fmt.Errorf("invalid vehicleType: %s", in.VehicleType)
	}
	if in.Status != "" && !in.Status.Valid() {
		return fmt.Errorf("invalid status: %s", in.Status)
	}
	return nil
}

func validateDriverInput(in *model.CreateDriverInput) error {
	if in.Name == "" {
		return fmt.Errorf("name is required")
	}
	if in.LicenseNumber == "" {
		return fmt.Errorf("licenseNumber is required")
	}
	if in.Status != "" && !in.Status.Valid() {
		return fmt.Errorf("invalid status: %s", in.Status)
	}
	return nil
}

func validateLocationInput(in *model.CreateLocationInput) error {
	if !in.EntityType.Valid() {
		return fmt.Errorf("invalid entityType: %s", in.EntityType)
	}
	if in.EntityID <= 0 {
		return fmt.Errorf("entityId must be positive")
	}
	if in.Latitude < -90 || in.Latitude > 90 {
		return fmt.Errorf("latitude must be in [-90,90]")
	}
	if in.Longitude < -180 || in.Longitude > 180 {
		return fmt.Errorf("longitude must be in [-180,180]")
	}
	if in.Heading != nil && (*in.Heading < 0 || *in.Heading > 360) {
		return fmt.Errorf("heading must be in [0,360]")
	}
	if in.Speed != nil && *in.Speed < 0 {
		return fmt.Errorf("speed must be >= 0")
	}
	if in.Accuracy != nil && *in.Accuracy < 0 {
		return fmt.Errorf("accuracy must be >= 0")
	}
	return nil
}

func validateRouteInput(in *model.CreateRouteInput) error {
	if !in.EntityType.Valid() {
		return fmt.Errorf("invalid entityType: %s", in.EntityType)
	}
	if in.EntityID <= 0 {
		return fmt.Errorf("entityId must be positive")
	}
	return nil
}

func validateRoutePatch(p *model.RoutePatch) error {
	if p.Status.Set {
		if !p.Status.Valid {
			return fmt.Errorf("status cannot be null")
		}
		if !p.Status.Value.Valid() {
			return fmt.Errorf("invalid status: %s", p.Status.Value)
		}
	}
	if p.TotalDistance.Set && p.TotalDistance.Valid && p.TotalDistance.Value < 0 {
		return fmt.Errorf("totalDistance must be >= 0")
	}
	if p.TotalDuration.Set && p.TotalDuration.Valid && p.TotalDuration.Value < 0 {
		return fmt.Errorf("totalDuration must be >= 0")
	}
	return nil
}

func validateSubscriptionRequest(req *model.SubscriptionRequest) error {
	if req.URL == "" {
		return fmt.Errorf("url is required")
	}
	if len(req.Events) == 0 {
		return fmt.Errorf("events must not be empty")
	}
	for _, e := range req.Events {
		switch e {
		case "assignment.changed", "route.updated", "location.recorded":
		default:
			return fmt.Errorf("unknown event type: %s", e)
		}
	}
	return nil
}
