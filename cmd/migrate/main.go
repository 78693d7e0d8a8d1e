package main

import (
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log"
	"path/filepath"
	"strings"
	"time"

	"weaponcam/internal/config"
	"weaponcam/internal/models"
	"weaponcam/internal/repository"
	"weaponcam/internal/repository/mysql"
	"weaponcam/internal/repository/sqlite"
	"weaponcam/internal/services/recorder"
)

func main() {
	cfg := config.Load()

	clipsDir := flag.String("clips", cfg.ClipDirectory, "Directory containing recorded clips")
	driver := flag.String("driver", cfg.DBDriver, "Detection log driver: sqlite or mysql")
	dbPath := flag.String("db", cfg.DBPath, "SQLite database path")
	dsn := flag.String("dsn", cfg.MySQLDSN, "MySQL DSN")
	flag.Parse()

	repo, err := open(*driver, *dbPath, *dsn)
	if err != nil {
		log.Fatalf("Failed to open detection log: %v", err)
	}
	defer repo.Close()
	fmt.Printf("✅ Schema ready (%s)\n", *driver)

	known, err := knownClips(repo)
	if err != nil {
		log.Fatalf("Failed to read detection log: %v", err)
	}

	ext := "." + cfg.ClipExtension
	inserted, skipped := 0, 0
	err = filepath.WalkDir(*clipsDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.EqualFold(filepath.Ext(path), ext) || known[path] {
			return nil
		}

		source, ts, label, err := recorder.ParseClipPath(path)
		if err != nil {
			log.Printf("⚠️  Skipping %s: %v", path, err)
			skipped++
			return nil
		}

		clip := path
		rec := models.NewLogRecord(ts, models.LevelDetection, source, fmt.Sprintf("Backfilled clip: %s detected, saved to %s", label, path))
		rec.ClipPath = &clip
		if _, err := repo.Insert(&rec); err != nil {
			return fmt.Errorf("insert %s: %w", path, err)
		}
		inserted++
		return nil
	})
	if err != nil && !(inserted == 0 && isNotExist(err)) {
		log.Fatalf("Failed to scan clips directory: %v", err)
	}

	fmt.Printf("✅ Backfilled %d clip(s) from %s\n", inserted, *clipsDir)
	if skipped > 0 {
		fmt.Printf("⚠️  Skipped %d files (invalid name)\n", skipped)
	}

	fmt.Printf("\n📊 Detection log statistics:\n")
	for _, level := range []models.LogLevel{models.LevelInfo, models.LevelDetection, models.LevelError} {
		count, err := repo.Count(models.LogFilter{Level: level})
		if err != nil {
			log.Printf("⚠️  Failed to count %s records: %v", level, err)
			continue
		}
		fmt.Printf("   %-9s %d\n", level, count)
	}

	latest, err := repo.Recent(models.LogFilter{Level: models.LevelDetection, Limit: 5})
	if err == nil && len(latest) > 0 {
		fmt.Printf("\n🎬 Latest clips:\n")
		for _, rec := range latest {
			clip := ""
			if rec.ClipPath != nil {
				clip = *rec.ClipPath
			}
			fmt.Printf("   - %s [%s] %s\n", rec.Timestamp.Format(time.DateTime), rec.Source, clip)
		}
	}
}

func open(driver, dbPath, dsn string) (repository.LogRepository, error) {
	switch driver {
	case "sqlite", "":
		return sqlite.Open(dbPath)
	case "mysql":
		conn, err := mysql.Open(dsn)
		if err != nil {
			return nil, err
		}
		return mysql.NewLogRepository(conn), nil
	}
	return nil, fmt.Errorf("unknown driver %q", driver)
}

func knownClips(repo repository.LogRepository) (map[string]bool, error) {
	records, err := repo.Recent(models.LogFilter{Level: models.LevelDetection})
	if err != nil {
		return nil, err
	}
	known := make(map[string]bool, len(records))
	for _, rec := range records {
		if rec.ClipPath != nil {
			known[*rec.ClipPath] = true
		}
	}
	return known, nil
}

func isNotExist(err error) bool {
	return err != nil && errors.Is(err, fs.ErrNotExist)
}
