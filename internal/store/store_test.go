package store

import (
	"strings"
	"testing"
	"time"

	config "github.com/sqlmerr/twotty/internal/init"
	"github.com/sqlmerr/twotty/internal/logger"
	"github.com/sqlmerr/twotty/internal/models"
)

func TestMigrationURLs(t *testing.T) {
	cfg := &config.Config{CassandraHost: "cassandra:9042", CassandraKeyspace: "twotty"}

	source, db := migrationURLs(cfg)
	if source != "file://./migrations/cassandra" {
		t.Fatalf("unexpected source url %q", source)
	}
	if !strings.HasPrefix(db, "cassandra://cassandra:9042/twotty?") {
		t.Fatalf("unexpected db url %q", db)
	}
	if !strings.Contains(db, "x-multi-statement=true") {
		t.Fatalf("db url must enable multi statements: %q", db)
	}

	cfg.MigrationsPath = "/srv/migrations"
	if source, _ := migrationURLs(cfg); source != "file:///srv/migrations" {
		t.Fatalf("unexpected source url %q", source)
	}
}

func TestKeyspaceCQL(t *testing.T) {
	q := keyspaceCQL("twotty")
	if !strings.Contains(q, "CREATE KEYSPACE IF NOT EXISTS twotty") {
		t.Fatalf("unexpected keyspace statement %q", q)
	}
}

func TestMockStoreActivity(t *testing.T) {
	m := NewMock()
	base := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	for i, kind := range []models.ActivityKind{models.ActivityLogin, models.ActivityPostCreated, models.ActivityLogout} {
		a := models.Activity{
			ID:         string(kind),
			UserID:     "u1",
			Kind:       kind,
			OccurredAt: base.Add(time.Duration(i) * time.Minute),
		}
		if err := m.RecordActivity(a); err != nil {
			t.Fatalf("record failed: %v", err)
		}
	}

	// Redelivery of the same record is an overwrite.
	if err := m.RecordActivity(models.Activity{ID: "login", UserID: "u1", Kind: models.ActivityLogin, OccurredAt: base}); err != nil {
		t.Fatalf("record failed: %v", err)
	}
	if got := m.Count("u1"); got != 3 {
		t.Fatalf("expected 3 records, got %d", got)
	}

	list, err := m.ListActivity("u1", 2)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(list) != 2 || list[0].Kind != models.ActivityLogout || list[1].Kind != models.ActivityPostCreated {
		t.Fatalf("expected newest first, got %+v", list)
	}
}

func TestMockStoreFailures(t *testing.T) {
	m := NewMock()
	m.ShouldFail = true
	if err := m.RecordActivity(models.Activity{ID: "a", UserID: "u1"}); err == nil {
		t.Fatal("expected error")
	}

	var fail StoreInterface = &MockStoreFail{}
	if _, err := fail.ListActivity("u1", 10); err == nil {
		t.Fatal("expected error")
	}
}

func TestSetLogger(t *testing.T) {
	prev := logg
	defer func() { logg = prev }()

	l := logger.New()
	SetLogger(l)
	if logg != l {
		t.Fatal("SetLogger did not replace the package logger")
	}
	SetLogger(nil)
	if logg != l {
		t.Fatal("SetLogger(nil) must keep the current logger")
	}
}
