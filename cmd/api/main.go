package main

import (
	"bufio"
	"log"
	"net"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"fleetwatch/internal/api"
	"fleetwatch/internal/metrics"
)

func main() {
	srvDeps, err := api.NewServer()
	if err != nil {
		log.Fatalf("failed to init server: %v", err)
	}

	mux := http.NewServeMux()

	// Registry
	mux.HandleFunc("/v1/officers", srvDeps.OfficersHandler)
	mux.HandleFunc("/v1/vehicles", srvDeps.VehiclesHandler)
	mux.HandleFunc("/v1/vehicles/", srvDeps.VehicleByIDHandler) // /assign, /unassign
	mux.HandleFunc("/v1/drivers", srvDeps.DriversHandler)

	// Assignments
	mux.HandleFunc("/v1/assignments", srvDeps.AssignmentsHandler)

	// Locations
	mux.HandleFunc("/v1/locations", srvDeps.LocationsHandler)
	mux.HandleFunc("/v1/locations/current", srvDeps.CurrentLocationsHandler)
	mux.HandleFunc("/v1/locations/history", srvDeps.LocationHistoryHandler)
	mux.HandleFunc("/v1/locations/stream", srvDeps.LocationStreamHandler)
	mux.HandleFunc("/v1/locations/ws", srvDeps.LocationWSHandler)

	// Routes
	mux.HandleFunc("/v1/routes", srvDeps.RoutesHandler)
	mux.HandleFunc("/v1/routes/", srvDeps.RouteByIDHandler)

	// Dashboard
	mux.HandleFunc("/v1/dashboard", srvDeps.DashboardHandler)

	// Webhook subscriptions
	mux.HandleFunc("/v1/subscriptions", srvDeps.SubscriptionsHandler)
	mux.HandleFunc("/v1/subscriptions/", srvDeps.SubscriptionByIDHandler)

	// Health & ops
	mux.HandleFunc("/healthz", srvDeps.HealthHandler)
	mux.HandleFunc("/readyz", srvDeps.ReadyHandler)
	mux.HandleFunc("/debug/config", srvDeps.DebugJSON)

	// Docs
	mux.HandleFunc("/openapi.yaml", srvDeps.OpenAPIHandler)
	mux.HandleFunc("/docs", srvDeps.DocsHandler)
	mux.HandleFunc("/console", srvDeps.SwaggerHandler)

	// Metrics
	metrics.RegisterDefault()
	mux.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

	addr := ":8080"
	if v := os.Getenv("PORT"); v != "" {
		addr = ":" + v
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           logMiddleware(mux),
		ReadHeaderTimeout: 5 * time.Second,
	}

	log.Printf("API listening on %s", addr)
	worker := srvDeps.NewWebhookWorker()
	worker.Start()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("server error: %v", err)
	}
}

// statusRecorder captures the response code for logging and metrics.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.status = code
	sr.ResponseWriter.WriteHeader(code)
}

func (sr *statusRecorder) Flush() {
	if f, ok := sr.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Hijack keeps WebSocket upgrades working through the wrapper.
func (sr *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if h, ok := sr.ResponseWriter.(http.Hijacker); ok {
		return h.Hijack()
	}
	return nil, nil, http.ErrNotSupported
}

func logMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		dur := time.Since(start)
		status := strconv.Itoa(rec.status)
		metrics.HTTPRequests.WithLabelValues(r.Method, r.URL.Path, status).Inc()
		metrics.HTTPDuration.WithLabelValues(r.Method, r.URL.Path, status).Observe(dur.Seconds())
		log.Printf("%s %s %s %d %v", r.RemoteAddr, r.Method, r.URL.Path, rec.status, dur)
	})
}
