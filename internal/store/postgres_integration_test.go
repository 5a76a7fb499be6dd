//go:build postgres_integration

package store

import (
	"os"
	"testing"

	"fleetwatch/internal/model"
)

func TestPostgresConnectivityAndMigrate(t *testing.T) {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set; skipping integration test")
	}
	p, err := NewPostgres(dsn)
	if err != nil {
		t.Fatalf("NewPostgres: %v", err)
	}
	if err := p.Ping(t.Context()); err != nil {
		t.Fatalf("Ping: %v", err)
	}
	if err := p.MigrateDir("../../db/migrations"); err != nil {
		t.Fatalf("MigrateDir: %v", err)
	}
	if _, err := p.ListOfficers(t.Context()); err != nil {
		t.Fatalf("ListOfficers: %v", err)
	}
	if _, err := p.Dashboard(t.Context()); err != nil {
		t.Fatalf("Dashboard: %v", err)
	}
	if _, err := p.RouteHistory(t.Context(), model.RouteFilter{Status: model.RouteActive}); err != nil {
		t.Fatalf("RouteHistory: %v", err)
	}
}
