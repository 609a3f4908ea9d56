package db

import (
	"testing"
	"testing/fstest"
	"time"
)

func TestLoadMigrations(t *testing.T) {
	source := fstest.MapFS{
		"001_init.sql":     {Data: []byte("CREATE TABLE facilities (id UUID PRIMARY KEY);")},
		"002_doctors.sql":  {Data: []byte("CREATE TABLE doctors (id UUID PRIMARY KEY);")},
		"010_search.sql":   {Data: []byte("SELECT 10;")},
		"README.md":        {Data: []byte("not a migration")},
		"notes.sql":        {Data: []byte("no numeric prefix")},
		"abc_bad.sql":      {Data: []byte("non-numeric prefix")},
		"sub/003_skip.sql": {Data: []byte("nested files are ignored")},
	}

	m, err := NewMigrator(nil, source, "")
	if err != nil {
		t.Fatalf("NewMigrator() error: %v", err)
	}
	migrations, err := m.LoadMigrations()
	if err != nil {
		t.Fatalf("LoadMigrations() error: %v", err)
	}

	if len(migrations) != 3 {
		t.Fatalf("expected 3 migrations, got %d", len(migrations))
	}
	wantVersions := []int{1, 2, 10}
	for i, v := range wantVersions {
		if migrations[i].Version != v {
			t.Errorf("migration %d: expected version %d, got %d", i, v, migrations[i].Version)
		}
	}
	if migrations[0].Name != "001_init.sql" {
		t.Errorf("expected name 001_init.sql, got %s", migrations[0].Name)
	}
	if migrations[0].SQL != "CREATE TABLE facilities (id UUID PRIMARY KEY);" {
		t.Errorf("unexpected SQL content: %s", migrations[0].SQL)
	}
}

func TestLoadMigrations_DuplicateVersion(t *testing.T) {
	source := fstest.MapFS{
		"001_a.sql":  {Data: []byte("SELECT 1;")},
		"0001_b.sql": {Data: []byte("SELECT 1;")},
	}
	m, _ := NewMigrator(nil, source, "public")
	if _, err := m.LoadMigrations(); err == nil {
		t.Fatal("expected error for duplicate version")
	}
}

func TestLoadMigrations_Empty(t *testing.T) {
	m, _ := NewMigrator(nil, fstest.MapFS{}, "public")
	migrations, err := m.LoadMigrations()
	if err != nil {
		t.Fatalf("LoadMigrations() error: %v", err)
	}
	if len(migrations) != 0 {
		t.Errorf("expected 0 migrations, got %d", len(migrations))
	}
}

func TestNewMigrator_Schema(t *testing.T) {
	m, err := NewMigrator(nil, fstest.MapFS{}, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.Schema() != "public" {
		t.Errorf("expected default schema public, got %s", m.Schema())
	}

	for _, bad := range []string{"public; DROP TABLE x", "1abc", "has-dash"} {
		if _, err := NewMigrator(nil, fstest.MapFS{}, bad); err == nil {
			t.Errorf("expected error for schema %q", bad)
		}
	}
}

func TestPendingAndStatus(t *testing.T) {
	migrations := []Migration{
		{Version: 1, Name: "001_init.sql"},
		{Version: 2, Name: "002_doctors.sql"},
		{Version: 3, Name: "003_search.sql"},
	}
	at := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	applied := map[int]time.Time{1: at, 3: at}

	pending := Pending(migrations, applied)
	if len(pending) != 1 || pending[0].Version != 2 {
		t.Fatalf("expected only version 2 pending, got %+v", pending)
	}

	statuses := StatusOf(migrations, applied)
	if len(statuses) != 3 {
		t.Fatalf("expected 3 statuses, got %d", len(statuses))
	}
	if !statuses[0].Applied || statuses[0].AppliedAt == nil || !statuses[0].AppliedAt.Equal(at) {
		t.Errorf("expected version 1 applied at %v, got %+v", at, statuses[0])
	}
	if statuses[1].Applied || statuses[1].AppliedAt != nil {
		t.Errorf("expected version 2 pending, got %+v", statuses[1])
	}
}
