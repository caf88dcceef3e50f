package knowledge

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	perrors "github.com/ironsheep/pid-symbol-tools/internal/errors"
	"github.com/ironsheep/pid-symbol-tools/internal/logging"
)

// symbolRecord is the reference_symbols row.
type symbolRecord struct {
	ID          string `gorm:"primaryKey;size:255"`
	Label       string `gorm:"index;not null"`
	Category    string `gorm:"index;not null"`
	Standard    string
	SourceImage string
	Dimension   int
	Vector      []byte
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (symbolRecord) TableName() string {
	return "reference_symbols"
}

// SQLiteStore keeps reference symbols in a local SQLite file.
//
// All entries are mirrored in memory; Nearest scans the mirror under a read
// lock and Upsert refreshes it under the write lock after the row commits.
type SQLiteStore struct {
	db     *gorm.DB
	path   string
	logger *logging.Logger

	mu      sync.RWMutex
	entries []Entry
	index   map[string]int
}

// OpenSQLite opens (creating if needed) the store at path. ":memory:"
// gives a private in-memory database.
func OpenSQLite(path string) (*SQLiteStore, error) {
	if path == "" {
		return nil, perrors.NewInvalidConfigurationError("kb.path", "knowledge base path is required")
	}
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, perrors.NewPersistenceError(path, err)
			}
		}
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, perrors.NewPersistenceError(path, fmt.Errorf("failed to open database: %w", err))
	}
	if path == ":memory:" {
		// :memory: databases are private to one connection
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.SetMaxOpenConns(1)
		}
	}
	if err := db.AutoMigrate(&symbolRecord{}); err != nil {
		closeDB(db)
		return nil, perrors.NewPersistenceError(path, fmt.Errorf("failed to migrate schema: %w", err))
	}

	s := &SQLiteStore{
		db:     db,
		path:   path,
		logger: logging.NewLogger("knowledge.sqlite"),
		index:  make(map[string]int),
	}
	if err := s.load(context.Background()); err != nil {
		closeDB(db)
		return nil, err
	}
	s.logger.Debug("knowledge base opened", "path", path, "entries", len(s.entries))
	return s, nil
}

func (s *SQLiteStore) load(ctx context.Context) error {
	var rows []symbolRecord
	if err := s.db.WithContext(ctx).Order("id").Find(&rows).Error; err != nil {
		return perrors.NewPersistenceError(s.path, fmt.Errorf("failed to load entries: %w", err))
	}

	entries := make([]Entry, 0, len(rows))
	index := make(map[string]int, len(rows))
	for _, r := range rows {
		vec, err := decodeVector(r.Vector)
		if err != nil {
			s.logger.Warn("skipping corrupt entry", "id", r.ID, "error", err)
			continue
		}
		index[r.ID] = len(entries)
		entries = append(entries, recordToEntry(r, vec))
	}

	s.mu.Lock()
	s.entries = entries
	s.index = index
	s.mu.Unlock()
	return nil
}

// Upsert implements Store.
func (s *SQLiteStore) Upsert(ctx context.Context, e Entry) error {
	if e.ID == "" {
		return fmt.Errorf("entry id is required")
	}
	if len(e.Embedding) == 0 {
		return fmt.Errorf("entry %s has no embedding", e.ID)
	}

	rec := symbolRecord{
		ID:          e.ID,
		Label:       e.Label,
		Category:    string(e.Category),
		Standard:    e.Standard,
		SourceImage: e.SourceImagePath,
		Dimension:   len(e.Embedding),
		Vector:      encodeVector(e.Embedding),
	}
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"label", "category", "standard", "source_image", "dimension", "vector", "updated_at"}),
		}).
		Create(&rec).Error
	if err != nil {
		return perrors.NewPersistenceError(s.path, fmt.Errorf("failed to upsert %s: %w", e.ID, err))
	}

	stored := e
	stored.Embedding = append([]float32(nil), e.Embedding...)

	s.mu.Lock()
	if i, ok := s.index[e.ID]; ok {
		s.entries[i] = stored
	} else {
		s.index[e.ID] = len(s.entries)
		s.entries = append(s.entries, stored)
	}
	s.mu.Unlock()
	return nil
}

// Nearest implements Store.
func (s *SQLiteStore) Nearest(ctx context.Context, vec []float32, k int) ([]Match, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	matches, skipped := rankByDistance(s.entries, vec, k)
	if skipped > 0 {
		if len(matches) == 0 {
			return nil, dimensionMismatch(skipped, len(vec))
		}
		s.logger.Warn("ignoring stored vectors of another dimension", "skipped", skipped, "dimension", len(vec))
	}
	return matches, nil
}

// Count implements Store.
func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries), nil
}

// Close implements Store.
func (s *SQLiteStore) Close() error {
	return closeDB(s.db)
}

func closeDB(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func recordToEntry(r symbolRecord, vec []float32) Entry {
	return Entry{
		ID:              r.ID,
		Label:           r.Label,
		Category:        Category(r.Category),
		Standard:        r.Standard,
		SourceImagePath: r.SourceImage,
		Embedding:       vec,
	}
}
