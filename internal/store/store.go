package store

import (
	"context"
	"errors"
	"time"

	"fleetwatch/internal/model"
)

// Store is the persistence interface used by the API server.
type Store interface {
	Ping(ctx context.Context) error

	// Registry
	CreateOfficer(ctx context.Context, in model.CreateOfficerInput) (model.Officer, error)
	ListOfficers(ctx context.Context) ([]model.Officer, error)
	CreateVehicle(ctx context.Context, in model.CreateVehicleInput) (model.Vehicle, error)
	ListVehicles(ctx context.Context) ([]model.Vehicle, error)
	CreateDriver(ctx context.Context, in model.CreateDriverInput) (model.Driver, error)
	ListDrivers(ctx context.Context) ([]model.Driver, error)

	// Assignments
	AssignDriver(ctx context.Context, vehicleID, driverID int64) (model.Assignment, error)
	UnassignDriver(ctx context.Context, vehicleID int64) (*model.Assignment, error)
	ListAssignments(ctx context.Context) ([]model.Assignment, error)

	// Location ledger
	RecordLocation(ctx context.Context, in model.CreateLocationInput) (model.LocationPoint, error)
	LocationHistory(ctx context.Context, q model.LocationHistoryQuery) ([]model.LocationPoint, error)
	CurrentPositions(ctx context.Context) ([]model.LocationPoint, error)

	// Route ledger
	CreateRoute(ctx context.Context, in model.CreateRouteInput) (model.Route, error)
	UpdateRoute(ctx context.Context, id int64, patch model.RoutePatch) (model.Route, error)
	RouteHistory(ctx context.Context, f model.RouteFilter) ([]model.Route, error)

	// Aggregation
	Dashboard(ctx context.Context) (model.DashboardSnapshot, error)

	// Webhook subscriptions & deliveries
	CreateSubscription(ctx context.Context, req model.SubscriptionRequest) (model.Subscription, error)
	ListSubscriptions(ctx context.Context) ([]model.Subscription, error)
	DeleteSubscription(ctx context.Context, id string) error
	GetSubscriptionsForEvent(ctx context.Context, eventType string) ([]model.Subscription, error)
	EnqueueWebhook(ctx context.Context, subscriptionID, eventType, url, secret string, payload []byte) (string, error)
	FetchDueWebhookDeliveries(ctx context.Context, limit int) ([]WebhookDelivery, error)
	MarkWebhookDelivery(ctx context.Context, id string, success bool, nextAttemptAt *time.Time, lastError string, responseCode int) error
	FailWebhookDelivery(ctx context.Context, id string, lastError string, responseCode int) error
}

// WebhookDelivery is one pending outbound delivery.
type WebhookDelivery struct {
	ID             string
	SubscriptionID string
	EventType      string
	URL            string
	Secret         string
	Payload        []byte
	Status         string
	Attempts       int
}

var (
	// ErrNotFound marks a missing referenced row (vehicle, driver, route,
	// or the polymorphic entity behind a location point).
	ErrNotFound = errors.New("not found")
	// ErrConflict marks a unique-key collision (badge number, license
	// plate, license number).
	ErrConflict = errors.New("conflict")
)

// ClampLimit applies the location-history limit rules: default 100 when
// unset, clamped to [1,1000].
func ClampLimit(limit int) int {
	if limit == 0 {
		return 100
	}
	if limit < 1 {
		return 1
	}
	if limit > 1000 {
		return 1000
	}
	return limit
}
