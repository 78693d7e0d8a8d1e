package sqlite

import (
	"path/filepath"
	"testing"
	"time"
	"weaponcam/internal/models"
)

func setupTestRepository(t *testing.T) *LogRepository {
	t.Helper()
	repo, err := Open(filepath.Join(t.TempDir(), "data", "test.db"))
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func strPtr(s string) *string { return &s }
func intPtr(n int) *int       { return &n }

// ========================================
// Insert / Recent
// ========================================

func TestInsertAndRecent(t *testing.T) {
	repo := setupTestRepository(t)
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	start := models.NewLogRecord(base, models.LevelInfo, "webcam", "REC start")
	if _, err := repo.Insert(&start); err != nil {
		t.Fatalf("Failed to insert record: %v", err)
	}

	stop := models.NewLogRecord(base.Add(time.Second), models.LevelDetection, "webcam", "REC stop")
	stop.ClipPath = strPtr("detected_clips/webcam/a.mp4")
	stop.EpisodeID = strPtr("ep-1")
	stop.FrameCount = intPtr(5)
	id, err := repo.Insert(&stop)
	if err != nil {
		t.Fatalf("Failed to insert record: %v", err)
	}
	if id <= 0 {
		t.Errorf("Expected positive id, got %d", id)
	}

	records, err := repo.Recent(models.LogFilter{})
	if err != nil {
		t.Fatalf("Failed to query records: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("Expected 2 records, got %d", len(records))
	}
	if records[0].Level != models.LevelDetection {
		t.Errorf("Expected newest record first, got %s", records[0].Level)
	}
	if records[0].ClipPath == nil || *records[0].ClipPath != "detected_clips/webcam/a.mp4" {
		t.Errorf("Unexpected clip path: %v", records[0].ClipPath)
	}
	if records[0].FrameCount == nil || *records[0].FrameCount != 5 {
		t.Errorf("Unexpected frame count: %v", records[0].FrameCount)
	}
	if records[1].ClipPath != nil {
		t.Errorf("Expected NULL clip path on start record, got %q", *records[1].ClipPath)
	}
	if !records[1].Timestamp.Equal(base) {
		t.Errorf("Expected timestamp %v, got %v", base, records[1].Timestamp)
	}
}

// ========================================
// Filters
// ========================================

func TestRecentFilters(t *testing.T) {
	repo := setupTestRepository(t)
	base := time.Now().UTC()

	records := []models.LogRecord{
		models.NewLogRecord(base, models.LevelInfo, "webcam", "opened"),
		models.NewLogRecord(base.Add(1*time.Second), models.LevelError, "webcam", "failed"),
		models.NewLogRecord(base.Add(2*time.Second), models.LevelInfo, "lobby.mp4", "opened"),
		models.NewLogRecord(base.Add(3*time.Second), models.LevelInfo, "lobby.mp4", "ended"),
	}
	for i := range records {
		if _, err := repo.Insert(&records[i]); err != nil {
			t.Fatalf("Failed to insert record: %v", err)
		}
	}

	tests := []struct {
		name   string
		filter models.LogFilter
		want   int
	}{
		{"all", models.LogFilter{}, 4},
		{"by level", models.LogFilter{Level: models.LevelInfo}, 3},
		{"by source", models.LogFilter{Source: "webcam"}, 2},
		{"by level and source", models.LogFilter{Level: models.LevelInfo, Source: "lobby.mp4"}, 2},
		{"limit", models.LogFilter{Limit: 1}, 1},
		{"no match", models.LogFilter{Level: models.LevelDetection}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := repo.Recent(tt.filter)
			if err != nil {
				t.Fatalf("Failed to query records: %v", err)
			}
			if len(got) != tt.want {
				t.Errorf("Expected %d records, got %d", tt.want, len(got))
			}

			count, err := repo.Count(models.LogFilter{Level: tt.filter.Level, Source: tt.filter.Source})
			if err != nil {
				t.Fatalf("Failed to count records: %v", err)
			}
			if tt.filter.Limit == 0 && count != tt.want {
				t.Errorf("Expected count %d, got %d", tt.want, count)
			}
		})
	}
}

func TestReopenKeepsRecords(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	repo, err := Open(path)
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	rec := models.NewLogRecord(time.Now(), models.LevelInfo, "webcam", "opened")
	if _, err := repo.Insert(&rec); err != nil {
		t.Fatalf("Failed to insert record: %v", err)
	}
	repo.Close()

	repo, err = Open(path)
	if err != nil {
		t.Fatalf("Failed to reopen database: %v", err)
	}
	defer repo.Close()

	count, err := repo.Count(models.LogFilter{})
	if err != nil {
		t.Fatalf("Failed to count records: %v", err)
	}
	if count != 1 {
		t.Errorf("Expected 1 record after reopen, got %d", count)
	}
}
