package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"encoding/json"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"fleetwatch/internal/model"
)

type Postgres struct {
	db *sql.DB
}

func NewPostgres(dsn string) (*Postgres, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		return nil, err
	}
	return &Postgres{db: db}, nil
}

func (p *Postgres) Ping(ctx context.Context) error { return p.db.PingContext(ctx) }

// mapErr translates driver-level failures into the store's sentinels.
// 23505 = unique_violation, 23503 = foreign_key_violation.
func mapErr(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return fmt.Errorf("%w: %s", ErrConflict, pgErr.ConstraintName)
		case "23503":
			return fmt.Errorf("%w: %s", ErrNotFound, pgErr.ConstraintName)
		}
	}
	return err
}

// Registry

func (p *Postgres) CreateOfficer(ctx context.Context, in model.CreateOfficerInput) (model.Officer, error) {
	status := in.Status
	if status == "" {
		status = model.OfficerActive
	}
	var o model.Officer
	err := p.db.QueryRowContext(ctx, `INSERT INTO security_officers (name, badge_number, phone, email, status)
		VALUES ($1,$2,$3,$4,$5)
		RETURNING id, name, badge_number, COALESCE(phone,''), COALESCE(email,''), status, created_at, updated_at`,
		in.Name, in.BadgeNumber, nullIfEmpty(in.Phone), nullIfEmpty(in.Email), string(status)).
		Scan(&o.ID, &o.Name, &o.BadgeNumber, &o.Phone, &o.Email, &o.Status, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return model.Officer{}, mapErr(err)
	}
	return o, nil
}

func (p *Postgres) ListOfficers(ctx context.Context) ([]model.Officer, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT id, name, badge_number, COALESCE(phone,''), COALESCE(email,''), status, created_at, updated_at
		FROM security_officers ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Officer{}
	for rows.Next() {
		var o model.Officer
		if err := rows.Scan(&o.ID, &o.Name, &o.BadgeNumber, &o.Phone, &o.Email, &o.Status, &o.CreatedAt, &o.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func (p *Postgres) CreateVehicle(ctx context.Context, in model.CreateVehicleInput) (model.Vehicle, error) {
	status := in.Status
	if status == "" {
		status = model.VehicleActive
	}
	var v model.Vehicle
	err := p.db.QueryRowContext(ctx, `INSERT INTO corporate_vehicles (license_plate, make, model, year, vehicle_type, status)
		VALUES ($1,$2,$3,$4,$5,$6)
		RETURNING id, license_plate, make, model, year, vehicle_type, status, created_at, updated_at`,
		in.LicensePlate, in.Make, in.Model, in.Year, string(in.VehicleType), string(status)).
		Scan(&v.ID, &v.LicensePlate, &v.Make, &v.Model, &v.Year, &v.VehicleType, &v.Status, &v.CreatedAt, &v.UpdatedAt)
	if err != nil {
		return model.Vehicle{}, mapErr(err)
	}
	return v, nil
}

// ListVehicles left-joins the driver of the current active assignment.
func (p *Postgres) ListVehicles(ctx context.Context) ([]model.Vehicle, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT v.id, v.license_plate, v.make, v.model, v.year, v.vehicle_type, v.status,
			a.driver_id, COALESCE(d.name,''), v.created_at, v.updated_at
		FROM corporate_vehicles v
		LEFT JOIN vehicle_driver_assignments a ON a.vehicle_id = v.id AND a.status = 'active'
		LEFT JOIN drivers d ON d.id = a.driver_id
		ORDER BY v.id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Vehicle{}
	for rows.Next() {
		var v model.Vehicle
		var driverID sql.NullInt64
		if err := rows.Scan(&v.ID, &v.LicensePlate, &v.Make, &v.Model, &v.Year, &v.VehicleType, &v.Status,
			&driverID, &v.DriverName, &v.CreatedAt, &v.UpdatedAt); err != nil {
			return nil, err
		}
		if driverID.Valid {
			id := driverID.Int64
			v.DriverID = &id
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func (p *Postgres) CreateDriver(ctx context.Context, in model.CreateDriverInput) (model.Driver, error) {
	status := in.Status
	if status == "" {
		status = model.DriverActive
	}
	var d model.Driver
	err := p.db.QueryRowContext(ctx, `INSERT INTO drivers (name, license_number, phone, email, status)
		VALUES ($1,$2,$3,$4,$5)
		RETURNING id, name, license_number, COALESCE(phone,''), COALESCE(email,''), status, created_at, updated_at`,
		in.Name, in.LicenseNumber, nullIfEmpty(in.Phone), nullIfEmpty(in.Email), string(status)).
		Scan(&d.ID, &d.Name, &d.LicenseNumber, &d.Phone, &d.Email, &d.Status, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return model.Driver{}, mapErr(err)
	}
	return d, nil
}

func (p *Postgres) ListDrivers(ctx context.Context) ([]model.Driver, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT id, name, license_number, COALESCE(phone,''), COALESCE(email,''), status, created_at, updated_at
		FROM drivers ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Driver{}
	for rows.Next() {
		var d model.Driver
		if err := rows.Scan(&d.ID, &d.Name, &d.LicenseNumber, &d.Phone, &d.Email, &d.Status, &d.CreatedAt, &d.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// Assignments

// AssignDriver deactivates any active assignment for the vehicle and
// inserts a new active row, all inside one transaction. The vehicle row is
// locked so two concurrent assigns for the same vehicle serialize and the
// at-most-one-active invariant holds.
func (p *Postgres) AssignDriver(ctx context.Context, vehicleID, driverID int64) (model.Assignment, error) {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return model.Assignment{}, err
	}
	defer func() { _ = tx.Rollback() }()

	var one int
	if err := tx.QueryRowContext(ctx, `SELECT 1 FROM corporate_vehicles WHERE id=$1 FOR UPDATE`, vehicleID).Scan(&one); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Assignment{}, fmt.Errorf("%w: vehicle %d", ErrNotFound, vehicleID)
		}
		return model.Assignment{}, err
	}
	if err := tx.QueryRowContext(ctx, `SELECT 1 FROM drivers WHERE id=$1`, driverID).Scan(&one); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Assignment{}, fmt.Errorf("%w: driver %d", ErrNotFound, driverID)
		}
		return model.Assignment{}, err
	}
	if _, err := tx.ExecContext(ctx, `UPDATE vehicle_driver_assignments SET status='inactive', unassigned_at=now()
		WHERE vehicle_id=$1 AND status='active'`, vehicleID); err != nil {
		return model.Assignment{}, err
	}
	var a model.Assignment
	var unassigned sql.NullTime
	err = tx.QueryRowContext(ctx, `INSERT INTO vehicle_driver_assignments (vehicle_id, driver_id, status)
		VALUES ($1,$2,'active')
		RETURNING id, vehicle_id, driver_id, assigned_at, unassigned_at, status`, vehicleID, driverID).
		Scan(&a.ID, &a.VehicleID, &a.DriverID, &a.AssignedAt, &unassigned, &a.Status)
	if err != nil {
		return model.Assignment{}, mapErr(err)
	}
	if err := tx.Commit(); err != nil {
		return model.Assignment{}, err
	}
	if unassigned.Valid {
		t := unassigned.Time
		a.UnassignedAt = &t
	}
	return a, nil
}

// UnassignDriver returns nil (no error) when the vehicle has no active
// assignment.
func (p *Postgres) UnassignDriver(ctx context.Context, vehicleID int64) (*model.Assignment, error) {
	var a model.Assignment
	var unassigned sql.NullTime
	err := p.db.QueryRowContext(ctx, `UPDATE vehicle_driver_assignments SET status='inactive', unassigned_at=now()
		WHERE vehicle_id=$1 AND status='active'
		RETURNING id, vehicle_id, driver_id, assigned_at, unassigned_at, status`, vehicleID).
		Scan(&a.ID, &a.VehicleID, &a.DriverID, &a.AssignedAt, &unassigned, &a.Status)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if unassigned.Valid {
		t := unassigned.Time
		a.UnassignedAt = &t
	}
	return &a, nil
}

func (p *Postgres) ListAssignments(ctx context.Context) ([]model.Assignment, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT id, vehicle_id, driver_id, assigned_at, unassigned_at, status
		FROM vehicle_driver_assignments ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Assignment{}
	for rows.Next() {
		var a model.Assignment
		var unassigned sql.NullTime
		if err := rows.Scan(&a.ID, &a.VehicleID, &a.DriverID, &a.AssignedAt, &unassigned, &a.Status); err != nil {
			return nil, err
		}
		if unassigned.Valid {
			t := unassigned.Time
			a.UnassignedAt = &t
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// entityExists checks the table implied by the entity type.
func (p *Postgres) entityExists(ctx context.Context, typ model.EntityType, id int64) error {
	var q string
	switch typ {
	case model.EntityOfficer:
		q = `SELECT 1 FROM security_officers WHERE id=$1`
	case model.EntityVehicle:
		q = `SELECT 1 FROM corporate_vehicles WHERE id=$1`
	default:
		return fmt.Errorf("%w: unknown entity type %q", ErrNotFound, typ)
	}
	var one int
	if err := p.db.QueryRowContext(ctx, q, id).Scan(&one); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: %s %d", ErrNotFound, typ, id)
		}
		return err
	}
	return nil
}

// Location ledger

const pointCols = `id, entity_type, entity_id, latitude::text, longitude::text,
	altitude::text, accuracy::text, heading::text, speed::text, ts, created_at`

func (p *Postgres) RecordLocation(ctx context.Context, in model.CreateLocationInput) (model.LocationPoint, error) {
	if err := p.entityExists(ctx, in.EntityType, in.EntityID); err != nil {
		return model.LocationPoint{}, err
	}
	ts := time.Now().UTC()
	if in.Timestamp != nil {
		ts = *in.Timestamp
	}
	row := p.db.QueryRowContext(ctx, `INSERT INTO location_points (entity_type, entity_id, latitude, longitude, altitude, accuracy, heading, speed, ts)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		RETURNING `+pointCols,
		string(in.EntityType), in.EntityID, in.Latitude, in.Longitude,
		nullFloat(in.Altitude), nullFloat(in.Accuracy), nullFloat(in.Heading), nullFloat(in.Speed), ts)
	pt, err := scanPoint(row)
	if err != nil {
		return model.LocationPoint{}, mapErr(err)
	}
	return pt, nil
}

func (p *Postgres) LocationHistory(ctx context.Context, q model.LocationHistoryQuery) ([]model.LocationPoint, error) {
	limit := ClampLimit(q.Limit)
	base := `SELECT ` + pointCols + ` FROM location_points WHERE entity_type=$1 AND entity_id=$2`
	args := []any{string(q.EntityType), q.EntityID}
	idx := 3
	if q.StartDate != nil {
		base += ` AND ts >= $` + strconv.Itoa(idx)
		args = append(args, *q.StartDate)
		idx++
	}
	if q.EndDate != nil {
		base += ` AND ts <= $` + strconv.Itoa(idx)
		args = append(args, *q.EndDate)
		idx++
	}
	base += ` ORDER BY ts DESC, id DESC LIMIT $` + strconv.Itoa(idx)
	args = append(args, limit)
	rows, err := p.db.QueryContext(ctx, base, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanPoints(rows)
}

// CurrentPositions returns the newest point per on-duty officer and per
// active vehicle. Entities with no recorded points are absent. Tie-break
// on equal timestamps is highest id.
func (p *Postgres) CurrentPositions(ctx context.Context) ([]model.LocationPoint, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT DISTINCT ON (lp.entity_type, lp.entity_id) `+qualify(pointCols, "lp")+`
		FROM location_points lp
		WHERE (lp.entity_type = 'security_officer'
			AND EXISTS (SELECT 1 FROM security_officers o WHERE o.id = lp.entity_id AND o.status = 'on_duty'))
		   OR (lp.entity_type = 'corporate_vehicle'
			AND EXISTS (SELECT 1 FROM corporate_vehicles v WHERE v.id = lp.entity_id AND v.status = 'active'))
		ORDER BY lp.entity_type, lp.entity_id, lp.ts DESC, lp.id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanPoints(rows)
}

// Route ledger

const routeCols = `id, entity_type, entity_id, route_name, start_time, end_time, total_distance::text, total_duration, status, created_at`

func (p *Postgres) CreateRoute(ctx context.Context, in model.CreateRouteInput) (model.Route, error) {
	if err := p.entityExists(ctx, in.EntityType, in.EntityID); err != nil {
		return model.Route{}, err
	}
	start := time.Now().UTC()
	if in.StartTime != nil {
		start = *in.StartTime
	}
	row := p.db.QueryRowContext(ctx, `INSERT INTO routes (entity_type, entity_id, route_name, start_time, status)
		VALUES ($1,$2,$3,$4,'active')
		RETURNING `+routeCols,
		string(in.EntityType), in.EntityID, nullStr(in.RouteName), start)
	r, err := scanRoute(row)
	if err != nil {
		return model.Route{}, mapErr(err)
	}
	return r, nil
}

// UpdateRoute applies a partial patch. Fields absent from the patch keep
// their current value; present-and-null clears a nullable column.
func (p *Postgres) UpdateRoute(ctx context.Context, id int64, patch model.RoutePatch) (model.Route, error) {
	sets := []string{}
	args := []any{}
	idx := 1
	add := func(col string, v any) {
		sets = append(sets, col+"=$"+strconv.Itoa(idx))
		args = append(args, v)
		idx++
	}
	if patch.RouteName.Set {
		add("route_name", nullStr(patch.RouteName.Ptr()))
	}
	if patch.EndTime.Set {
		add("end_time", nullTime(patch.EndTime.Ptr()))
	}
	if patch.TotalDistance.Set {
		add("total_distance", nullFloat(patch.TotalDistance.Ptr()))
	}
	if patch.TotalDuration.Set {
		add("total_duration", nullInt(patch.TotalDuration.Ptr()))
	}
	if patch.Status.Set {
		add("status", string(patch.Status.Value))
	}

	var row *sql.Row
	if len(sets) == 0 {
		row = p.db.QueryRowContext(ctx, `SELECT `+routeCols+` FROM routes WHERE id=$1`, id)
	} else {
		q := `UPDATE routes SET ` + strings.Join(sets, ", ") + ` WHERE id=$` + strconv.Itoa(idx) + ` RETURNING ` + routeCols
		args = append(args, id)
		row = p.db.QueryRowContext(ctx, q, args...)
	}
	r, err := scanRoute(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Route{}, fmt.Errorf("%w: route %d", ErrNotFound, id)
		}
		return model.Route{}, err
	}
	return r, nil
}

func (p *Postgres) RouteHistory(ctx context.Context, f model.RouteFilter) ([]model.Route, error) {
	base := `SELECT ` + routeCols + ` FROM routes WHERE true`
	args := []any{}
	idx := 1
	if f.EntityType != "" {
		base += ` AND entity_type=$` + strconv.Itoa(idx)
		args = append(args, string(f.EntityType))
		idx++
	}
	if f.EntityID != nil {
		base += ` AND entity_id=$` + strconv.Itoa(idx)
		args = append(args, *f.EntityID)
		idx++
	}
	if f.StartDate != nil {
		base += ` AND start_time >= $` + strconv.Itoa(idx)
		args = append(args, *f.StartDate)
		idx++
	}
	if f.EndDate != nil {
		base += ` AND start_time <= $` + strconv.Itoa(idx)
		args = append(args, *f.EndDate)
		idx++
	}
	if f.Status != "" {
		base += ` AND status=$` + strconv.Itoa(idx)
		args = append(args, string(f.Status))
		idx++
	}
	base += ` ORDER BY start_time DESC, id DESC`
	rows, err := p.db.QueryContext(ctx, base, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Route{}
	for rows.Next() {
		r, err := scanRoute(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Aggregation

// Dashboard issues its sub-queries independently; no transactional
// snapshot is taken.
func (p *Postgres) Dashboard(ctx context.Context) (model.DashboardSnapshot, error) {
	var snap model.DashboardSnapshot
	counts := []struct {
		q    string
		dest *int
	}{
		{`SELECT COUNT(*) FROM security_officers WHERE status='active'`, &snap.ActiveSecurityOfficers},
		{`SELECT COUNT(*) FROM security_officers WHERE status='on_duty'`, &snap.OfficersOnDuty},
		{`SELECT COUNT(*) FROM corporate_vehicles WHERE status='active'`, &snap.ActiveVehicles},
		{`SELECT COUNT(DISTINCT a.vehicle_id) FROM vehicle_driver_assignments a
			JOIN corporate_vehicles v ON v.id = a.vehicle_id
			WHERE a.status='active' AND v.status='active'`, &snap.VehiclesInUse},
		{`SELECT COUNT(*) FROM routes WHERE status='active'`, &snap.TotalActiveRoutes},
	}
	for _, c := range counts {
		if err := p.db.QueryRowContext(ctx, c.q).Scan(c.dest); err != nil {
			return model.DashboardSnapshot{}, err
		}
	}
	rows, err := p.db.QueryContext(ctx, `SELECT `+pointCols+` FROM location_points
		WHERE ts >= now() - interval '24 hours'
		ORDER BY ts DESC, id DESC LIMIT 10`)
	if err != nil {
		return model.DashboardSnapshot{}, err
	}
	defer rows.Close()
	pts, err := scanPoints(rows)
	if err != nil {
		return model.DashboardSnapshot{}, err
	}
	snap.RecentLocationUpdates = pts
	return snap, nil
}

// Webhook subscriptions & deliveries

func (p *Postgres) CreateSubscription(ctx context.Context, req model.SubscriptionRequest) (model.Subscription, error) {
	id := uuid.New().String()
	ev, _ := json.Marshal(req.Events)
	_, err := p.db.ExecContext(ctx, `INSERT INTO subscriptions (id, url, events, secret) VALUES ($1,$2,$3,$4)`,
		id, req.URL, ev, nullIfEmpty(req.Secret))
	if err != nil {
		return model.Subscription{}, mapErr(err)
	}
	return model.Subscription{ID: id, URL: req.URL, Events: req.Events, Secret: req.Secret}, nil
}

func (p *Postgres) ListSubscriptions(ctx context.Context) ([]model.Subscription, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT id::text, url, events, COALESCE(secret,'') FROM subscriptions ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Subscription{}
	for rows.Next() {
		var s model.Subscription
		var ev []byte
		if err := rows.Scan(&s.ID, &s.URL, &ev, &s.Secret); err != nil {
			return nil, err
		}
		_ = json.Unmarshal(ev, &s.Events)
		out = append(out, s)
	}
	return out, rows.Err()
}

func (p *Postgres) DeleteSubscription(ctx context.Context, id string) error {
	res, err := p.db.ExecContext(ctx, `DELETE FROM subscriptions WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *Postgres) GetSubscriptionsForEvent(ctx context.Context, eventType string) ([]model.Subscription, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT id::text, url, events, COALESCE(secret,'') FROM subscriptions
		WHERE events @> $1::jsonb`, fmt.Sprintf("[%q]", eventType))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Subscription{}
	for rows.Next() {
		var s model.Subscription
		var ev []byte
		if err := rows.Scan(&s.ID, &s.URL, &ev, &s.Secret); err != nil {
			return nil, err
		}
		_ = json.Unmarshal(ev, &s.Events)
		out = append(out, s)
	}
	return out, rows.Err()
}

func (p *Postgres) EnqueueWebhook(ctx context.Context, subscriptionID, eventType, url, secret string, payload []byte) (string, error) {
	id := uuid.New().String()
	_, err := p.db.ExecContext(ctx, `INSERT INTO webhook_deliveries (id, subscription_id, event_type, url, secret, payload, status, attempts, next_attempt_at)
		VALUES ($1,$2,$3,$4,$5,$6,'pending',0,now())`,
		id, nullIfEmpty(subscriptionID), eventType, url, nullIfEmpty(secret), payload)
	if err != nil {
		return "", err
	}
	return id, nil
}

func (p *Postgres) FetchDueWebhookDeliveries(ctx context.Context, limit int) ([]WebhookDelivery, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT id::text, COALESCE(subscription_id::text,''), event_type, url, COALESCE(secret,''), payload, status, attempts
		FROM webhook_deliveries WHERE status IN ('pending','retry') AND next_attempt_at <= now()
		ORDER BY next_attempt_at ASC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []WebhookDelivery{}
	for rows.Next() {
		var d WebhookDelivery
		if err := rows.Scan(&d.ID, &d.SubscriptionID, &d.EventType, &d.URL, &d.Secret, &d.Payload, &d.Status, &d.Attempts); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (p *Postgres) MarkWebhookDelivery(ctx context.Context, id string, success bool, nextAttemptAt *time.Time, lastError string, responseCode int) error {
	if success {
		_, err := p.db.ExecContext(ctx, `UPDATE webhook_deliveries SET status='delivered', delivered_at=now(), updated_at=now(), response_code=$2 WHERE id=$1`, id, responseCode)
		return err
	}
	if nextAttemptAt == nil {
		t := time.Now().Add(time.Minute)
		nextAttemptAt = &t
	}
	_, err := p.db.ExecContext(ctx, `UPDATE webhook_deliveries SET status='retry', attempts=attempts+1, last_error=$2, next_attempt_at=$3, updated_at=now(), response_code=$4 WHERE id=$1`,
		id, nullIfEmpty(lastError), *nextAttemptAt, responseCode)
	return err
}

func (p *Postgres) FailWebhookDelivery(ctx context.Context, id string, lastError string, responseCode int) error {
	_, err := p.db.ExecContext(ctx, `UPDATE webhook_deliveries SET status='failed', last_error=$2, updated_at=now(), response_code=$3 WHERE id=$1`,
		id, nullIfEmpty(lastError), responseCode)
	return err
}

// Scan helpers

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPoint(r rowScanner) (model.LocationPoint, error) {
	var pt model.LocationPoint
	var lat, lng string
	var alt, acc, hdg, spd sql.NullString
	if err := r.Scan(&pt.ID, &pt.EntityType, &pt.EntityID, &lat, &lng, &alt, &acc, &hdg, &spd, &pt.Timestamp, &pt.CreatedAt); err != nil {
		return pt, err
	}
	var err error
	if pt.Latitude, err = parseDec(lat); err != nil {
		return pt, err
	}
	if pt.Longitude, err = parseDec(lng); err != nil {
		return pt, err
	}
	pt.Altitude = parseDecNull(alt)
	pt.Accuracy = parseDecNull(acc)
	pt.Heading = parseDecNull(hdg)
	pt.Speed = parseDecNull(spd)
	return pt, nil
}

func scanPoints(rows *sql.Rows) ([]model.LocationPoint, error) {
	out := []model.LocationPoint{}
	for rows.Next() {
		pt, err := scanPoint(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, pt)
	}
	return out, rows.Err()
}

func scanRoute(r rowScanner) (model.Route, error) {
	var rt model.Route
	var name sql.NullString
	var end sql.NullTime
	var dist sql.NullString
	var dur sql.NullInt64
	if err := r.Scan(&rt.ID, &rt.EntityType, &rt.EntityID, &name, &rt.StartTime, &end, &dist, &dur, &rt.Status, &rt.CreatedAt); err != nil {
		return rt, err
	}
	if name.Valid {
		v := name.String
		rt.RouteName = &v
	}
	if end.Valid {
		t := end.Time
		rt.EndTime = &t
	}
	rt.TotalDistance = parseDecNull(dist)
	if dur.Valid {
		n := int(dur.Int64)
		rt.TotalDuration = &n
	}
	return rt, nil
}

// parseDec converts a NUMERIC column rendered as text back to float64.
// Going through the text form keeps the fixed-precision on-disk value
// authoritative.
func parseDec(s string) (float64, error) {
	return strconv.ParseFloat(s, 64)
}

func parseDecNull(s sql.NullString) *float64 {
	if !s.Valid {
		return nil
	}
	v, err := parseDec(s.String)
	if err != nil {
		return nil
	}
	return &v
}

// qualify prefixes every column in a comma-separated list with an alias.
func qualify(cols, alias string) string {
	parts := strings.Split(cols, ",")
	for i := range parts {
		parts[i] = alias + "." + strings.TrimSpace(parts[i])
	}
	return strings.Join(parts, ", ")
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullStr(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

func nullFloat(f *float64) any {
	if f == nil {
		return nil
	}
	return *f
}

func nullInt(n *int) any {
	if n == nil {
		return nil
	}
	return *n
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}
