package model

import "time"

// Status enums. Each entity has its own closed value set; the API layer
// validates membership before anything reaches the store.

type OfficerStatus string

const (
	OfficerActive   OfficerStatus = "active"
	OfficerInactive OfficerStatus = "inactive"
	OfficerOnDuty   OfficerStatus = "on_duty"
	OfficerOffDuty  OfficerStatus = "off_duty"
)

func (s OfficerStatus) Valid() bool {
	switch s {
	case OfficerActive, OfficerInactive, OfficerOnDuty, OfficerOffDuty:
		return true
	}
	return false
}

type VehicleStatus string

const (
	VehicleActive       VehicleStatus = "active"
	VehicleInactive     VehicleStatus = "inactive"
	VehicleMaintenance  VehicleStatus = "maintenance"
	VehicleOutOfService VehicleStatus = "out_of_service"
)

func (s VehicleStatus) Valid() bool {
	switch s {
	case VehicleActive, VehicleInactive, VehicleMaintenance, VehicleOutOfService:
		return true
	}
	return false
}

type VehicleType string

const (
	VehicleSedan      VehicleType = "sedan"
	VehicleSUV        VehicleType = "suv"
	VehicleTruck      VehicleType = "truck"
	VehicleVan        VehicleType = "van"
	VehicleMotorcycle VehicleType = "motorcycle"
)

func (t VehicleType) Valid() bool {
	switch t {
	case VehicleSedan, VehicleSUV, VehicleTruck, VehicleVan, VehicleMotorcycle:
		return true
	}
	return false
}

type DriverStatus string

const (
	DriverActive   DriverStatus = "active"
	DriverInactive DriverStatus = "inactive"
)

func (s DriverStatus) Valid() bool { return s == DriverActive || s == DriverInactive }

type AssignmentStatus string

const (
	AssignmentActive   AssignmentStatus = "active"
	AssignmentInactive AssignmentStatus = "inactive"
)

type RouteStatus string

const (
	RouteActive      RouteStatus = "active"
	RouteCompleted   RouteStatus = "completed"
	RouteInterrupted RouteStatus = "interrupted"
)

func (s RouteStatus) Valid() bool {
	switch s {
	case RouteActive, RouteCompleted, RouteInterrupted:
		return true
	}
	return false
}

// EntityType tags the polymorphic subject of a location point or route.
type EntityType string

const (
	EntityOfficer EntityType = "security_officer"
	EntityVehicle EntityType = "corporate_vehicle"
)

func (t EntityType) Valid() bool { return t == EntityOfficer || t == EntityVehicle }

// Officer is a tracked security officer.
type Officer struct {
	ID          int64         `json:"id"`
	Name        string        `json:"name"`
	BadgeNumber string        `json:"badgeNumber"`
	Phone       string        `json:"phone,omitempty"`
	Email       string        `json:"email,omitempty"`
	Status      OfficerStatus `json:"status"`
	CreatedAt   time.Time     `json:"createdAt"`
	UpdatedAt   time.Time     `json:"updatedAt"`
}

type CreateOfficerInput struct {
	Name        string        `json:"name"`
	BadgeNumber string        `json:"badgeNumber"`
	Phone       string        `json:"phone,omitempty"`
	Email       string        `json:"email,omitempty"`
	Status      OfficerStatus `json:"status,omitempty"`
}

// Vehicle is a corporate vehicle. DriverID/DriverName carry the driver of
// the current active assignment when the list query joins it; both are
// empty otherwise.
type Vehicle struct {
	ID           int64         `json:"id"`
	LicensePlate string        `json:"licensePlate"`
	Make         string        `json:"make"`
	Model        string        `json:"model"`
	Year         int           `json:"year"`
	VehicleType  VehicleType   `json:"vehicleType"`
	Status       VehicleStatus `json:"status"`
	DriverID     *int64        `json:"driverId,omitempty"`
	DriverName   string        `json:"driverName,omitempty"`
	CreatedAt    time.Time     `json:"createdAt"`
	UpdatedAt    time.Time     `json:"updatedAt"`
}

type CreateVehicleInput struct {
	LicensePlate string        `json:"licensePlate"`
	Make         string        `json:"make"`
	Model        string        `json:"model"`
	Year         int           `json:"year"`
	VehicleType  VehicleType   `json:"vehicleType"`
	Status       VehicleStatus `json:"status,omitempty"`
}

type Driver struct {
	ID            int64        `json:"id"`
	Name          string       `json:"name"`
	LicenseNumber string       `json:"licenseNumber"`
	Phone         string       `json:"phone,omitempty"`
	Email         string       `json:"email,omitempty"`
	Status        DriverStatus `json:"status"`
	CreatedAt     time.Time    `json:"createdAt"`
	UpdatedAt     time.Time    `json:"updatedAt"`
}

type CreateDriverInput struct {
	Name          string       `json:"name"`
	LicenseNumber string       `json:"licenseNumber"`
	Phone         string       `json:"phone,omitempty"`
	Email         string       `json:"email,omitempty"`
	Status        DriverStatus `json:"status,omitempty"`
}

// Assignment links one driver to one vehicle for a bounded time span.
// Rows are never deleted; reassignment deactivates the prior row.
type Assignment struct {
	ID           int64            `json:"id"`
	VehicleID    int64            `json:"vehicleId"`
	DriverID     int64            `json:"driverId"`
	AssignedAt   time.Time        `json:"assignedAt"`
	UnassignedAt *time.Time       `json:"unassignedAt,omitempty"`
	Status       AssignmentStatus `json:"status"`
}

// LocationPoint is one GPS sample in the append-only ledger.
type LocationPoint struct {
	ID         int64      `json:"id"`
	EntityType EntityType `json:"entityType"`
	EntityID   int64      `json:"entityId"`
	Latitude   float64    `json:"latitude"`
	Longitude  float64    `json:"longitude"`
	Altitude   *float64   `json:"altitude,omitempty"`
	Accuracy   *float64   `json:"accuracy,omitempty"`
	Heading    *float64   `json:"heading,omitempty"`
	Speed      *float64   `json:"speed,omitempty"`
	Timestamp  time.Time  `json:"timestamp"`
	CreatedAt  time.Time  `json:"createdAt"`
}

type CreateLocationInput struct {
	EntityType EntityType `json:"entityType"`
	EntityID   int64      `json:"entityId"`
	Latitude   float64    `json:"latitude"`
	Longitude  float64    `json:"longitude"`
	Altitude   *float64   `json:"altitude,omitempty"`
	Accuracy   *float64   `json:"accuracy,omitempty"`
	Heading    *float64   `json:"heading,omitempty"`
	Speed      *float64   `json:"speed,omitempty"`
	Timestamp  *time.Time `json:"timestamp,omitempty"`
}

// LocationHistoryQuery bounds a history read. Limit is clamped by the store
// to [1,1000]; zero means the default of 100.
type LocationHistoryQuery struct {
	EntityType EntityType
	EntityID   int64
	StartDate  *time.Time
	EndDate    *time.Time
	Limit      int
}

// Route groups a time span of an entity's movement. Distance and duration
// are caller-supplied; the service does no spatial computation.
type Route struct {
	ID            int64       `json:"id"`
	EntityType    EntityType  `json:"entityType"`
	EntityID      int64       `json:"entityId"`
	RouteName     *string     `json:"routeName,omitempty"`
	StartTime     time.Time   `json:"startTime"`
	EndTime       *time.Time  `json:"endTime,omitempty"`
	TotalDistance *float64    `json:"totalDistance,omitempty"` // km
	TotalDuration *int        `json:"totalDuration,omitempty"` // minutes
	Status        RouteStatus `json:"status"`
	CreatedAt     time.Time   `json:"createdAt"`
}

type CreateRouteInput struct {
	EntityType EntityType `json:"entityType"`
	EntityID   int64      `json:"entityId"`
	RouteName  *string    `json:"routeName,omitempty"`
	StartTime  *time.Time `json:"startTime,omitempty"`
}

// RoutePatch updates any subset of a route's mutable fields. Each field
// distinguishes absent (leave unchanged) from explicit null (clear) from a
// concrete value; see Optional.
type RoutePatch struct {
	RouteName     Optional[string]      `json:"routeName"`
	EndTime       Optional[time.Time]   `json:"endTime"`
	TotalDistance Optional[float64]     `json:"totalDistance"`
	TotalDuration Optional[int]         `json:"totalDuration"`
	Status        Optional[RouteStatus] `json:"status"`
}

// RouteFilter selects routes for history reads; all present fields are
// ANDed. Date bounds apply to start_time, inclusive.
type RouteFilter struct {
	EntityType EntityType
	EntityID   *int64
	StartDate  *time.Time
	EndDate    *time.Time
	Status     RouteStatus
}

// DashboardSnapshot is the aggregate payload for the supervisor dashboard.
// Each figure comes from an independent query; no cross-query consistency.
type DashboardSnapshot struct {
	ActiveSecurityOfficers int             `json:"activeSecurityOfficers"`
	OfficersOnDuty         int             `json:"officersOnDuty"`
	ActiveVehicles         int             `json:"activeVehicles"`
	VehiclesInUse          int             `json:"vehiclesInUse"`
	TotalActiveRoutes      int             `json:"totalActiveRoutes"`
	RecentLocationUpdates  []LocationPoint `json:"recentLocationUpdates"`
}

// Subscription registers a webhook endpoint for event fan-out.
type Subscription struct {
	ID     string   `json:"id"`
	URL    string   `json:"url"`
	Events []string `json:"events"`
	Secret string   `json:"secret,omitempty"`
}

type SubscriptionRequest struct {
	URL    string   `json:"url"`
	Events []string `json:"events"`
	Secret string   `json:"secret"`
}
