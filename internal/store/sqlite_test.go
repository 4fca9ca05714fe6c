package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/jobtailor/jobtailor/internal/model"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "jobs.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestUpsertManyIgnoresDuplicates(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	records := []model.JobRecord{
		{JobURL: "https://jobs.example/1", Company: "Acme", JobTitle: "Engineer"},
		{JobURL: "https://jobs.example/2", Company: "Globex", JobTitle: "Developer"},
	}
	n, err := s.UpsertMany(ctx, records)
	if err != nil {
		t.Fatalf("UpsertMany: %v", err)
	}
	if n != 2 {
		t.Errorf("inserted = %d, want 2", n)
	}

	// Same URL at a different company is a distinct record; exact key
	// duplicates are ignored.
	n, err = s.UpsertMany(ctx, []model.JobRecord{
		{JobURL: "https://jobs.example/1", Company: "Acme", JobTitle: "Engineer (dup)"},
		{JobURL: "https://jobs.example/1", Company: "Initech", JobTitle: "Engineer"},
	})
	if err != nil {
		t.Fatalf("UpsertMany: %v", err)
	}
	if n != 1 {
		t.Errorf("inserted = %d, want 1", n)
	}

	all, err := s.GetAll(ctx)
	if err != nil {
		t.Fatalf("GetAll: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("got %d records, want 3", len(all))
	}
	for _, r := range all {
		if r.JobURL == "https://jobs.example/1" && r.Company == "Acme" && r.JobTitle != "Engineer" {
			t.Errorf("duplicate insert overwrote title: %q", r.JobTitle)
		}
	}
}

func TestUpdateByKeyDerivesFitScoreRank(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.UpsertMany(ctx, []model.JobRecord{
		{JobURL: "https://jobs.example/1", Company: "Acme"},
	}); err != nil {
		t.Fatalf("UpsertMany: %v", err)
	}

	key := model.RecordKey{JobURL: "https://jobs.example/1", Company: "Acme"}
	n, err := s.UpdateByKey(ctx, key, model.Fields{
		model.FieldFitScore:    model.VeryGoodFit,
		model.FieldJobAnalysis: "strong match",
	})
	if err != nil {
		t.Fatalf("UpdateByKey: %v", err)
	}
	if n != 1 {
		t.Errorf("rows affected = %d, want 1", n)
	}

	all, err := s.GetAll(ctx)
	if err != nil {
		t.Fatalf("GetAll: %v", err)
	}
	r := all[0]
	if r.FitScore != model.VeryGoodFit {
		t.Errorf("FitScore = %v, want VeryGoodFit", r.FitScore)
	}
	if r.FitScoreRank != model.VeryGoodFit.Rank() {
		t.Errorf("FitScoreRank = %d, want %d", r.FitScoreRank, model.VeryGoodFit.Rank())
	}
	if r.JobAnalysis != "strong match" {
		t.Errorf("JobAnalysis = %q", r.JobAnalysis)
	}
}

func TestUpdateByKeyRejectsUnknownColumn(t *testing.T) {
	s := newTestStore(t)
	key := model.RecordKey{JobURL: "u", Company: "c"}

	if _, err := s.UpdateByKey(context.Background(), key, model.Fields{"fit_score_rank": 6}); err == nil {
		t.Fatal("expected error for direct rank write")
	}
	if _, err := s.UpdateByKey(context.Background(), key, model.Fields{"drop_table": 1}); err == nil {
		t.Fatal("expected error for unknown column")
	}
}

func TestUpdateByKeyMissingRecord(t *testing.T) {
	s := newTestStore(t)

	n, err := s.UpdateByKey(context.Background(),
		model.RecordKey{JobURL: "nope", Company: "nope"},
		model.Fields{model.FieldApplied: true})
	if err != nil {
		t.Fatalf("UpdateByKey: %v", err)
	}
	if n != 0 {
		t.Errorf("rows affected = %d, want 0", n)
	}
}

func TestBulkUpdateByKey(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.UpsertMany(ctx, []model.JobRecord{
		{JobURL: "u1", Company: "Acme"},
		{JobURL: "u2", Company: "Globex"},
	}); err != nil {
		t.Fatalf("UpsertMany: %v", err)
	}

	now := time.Now().UTC().Truncate(time.Second)
	err := s.BulkUpdateByKey(ctx, []model.KeyedUpdate{
		{
			Key:    model.RecordKey{JobURL: "u1", Company: "Acme"},
			Fields: model.Fields{model.FieldExpired: true, model.FieldLastExpirationCheck: now},
		},
		{
			Key:    model.RecordKey{JobURL: "u2", Company: "Globex"},
			Fields: model.Fields{model.FieldSustainable: model.Sustainable},
		},
	})
	if err != nil {
		t.Fatalf("BulkUpdateByKey: %v", err)
	}

	all, err := s.GetAll(ctx)
	if err != nil {
		t.Fatalf("GetAll: %v", err)
	}
	for _, r := range all {
		switch r.JobURL {
		case "u1":
			if !r.Expired {
				t.Error("u1 not marked expired")
			}
			if r.LastExpirationCheck == nil {
				t.Error("u1 missing expiration check timestamp")
			}
		case "u2":
			if r.Sustainable != model.Sustainable {
				t.Errorf("u2 Sustainable = %v, want Sustainable", r.Sustainable)
			}
		}
	}
}

func TestSustainabilityTriState(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.UpsertMany(ctx, []model.JobRecord{
		{JobURL: "u1", Company: "Unknown Co"},
		{JobURL: "u2", Company: "Green Co", Sustainable: model.Sustainable},
		{JobURL: "u3", Company: "Gray Co", Sustainable: model.Unsustainable},
	}); err != nil {
		t.Fatalf("UpsertMany: %v", err)
	}

	all, err := s.GetAll(ctx)
	if err != nil {
		t.Fatalf("GetAll: %v", err)
	}
	want := map[string]model.Sustainability{
		"u1": model.SustainabilityUnknown,
		"u2": model.Sustainable,
		"u3": model.Unsustainable,
	}
	for _, r := range all {
		if r.Sustainable != want[r.JobURL] {
			t.Errorf("%s Sustainable = %v, want %v", r.JobURL, r.Sustainable, want[r.JobURL])
		}
	}
}

func TestSortByPriority(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.UpsertMany(ctx, []model.JobRecord{
		{JobURL: "u1", Company: "A", FitScore: model.PoorFit, LocationPriority: 1},
		{JobURL: "u2", Company: "B", FitScore: model.VeryGoodFit, LocationPriority: 3},
		{JobURL: "u3", Company: "C", FitScore: model.VeryGoodFit, LocationPriority: 1},
		{JobURL: "u4", Company: "D", FitScore: model.GoodFit, LocationPriority: 2},
	}); err != nil {
		t.Fatalf("UpsertMany: %v", err)
	}

	if err := s.SortByPriority(ctx); err != nil {
		t.Fatalf("SortByPriority: %v", err)
	}

	all, err := s.GetAll(ctx)
	if err != nil {
		t.Fatalf("GetAll: %v", err)
	}
	var got []string
	for _, r := range all {
		got = append(got, r.JobURL)
	}
	want := []string{"u3", "u2", "u4", "u1"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order = %v, want %v", got, want)
		}
	}
}

func TestMigrateOldDatabase(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "jobs.db")

	// Open once to create, then drop a migrated column to simulate an old
	// database and reopen.
	s, err := NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	if _, err := s.db.Exec(`ALTER TABLE job_records DROP COLUMN sort_rank`); err != nil {
		t.Fatalf("dropping column: %v", err)
	}
	s.Close()

	s2, err := NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("reopening: %v", err)
	}
	defer s2.Close()

	if err := s2.SortByPriority(context.Background()); err != nil {
		t.Errorf("SortByPriority after migration: %v", err)
	}
}
