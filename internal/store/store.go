package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/DoyleJ11/cricket-live-backend/internal/engine"
	"github.com/DoyleJ11/cricket-live-backend/internal/logging"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"
)

var ErrNotFound = errors.New("match record not found")

type Store struct {
	db  *gorm.DB
	log *zap.Logger
}

// Open connects with the named driver ("postgres" or "sqlite") and migrates.
func Open(driver, dsn string, log *zap.Logger) (*Store, error) {
	var dialector gorm.Dialector
	switch driver {
	case "postgres":
		dialector = postgres.Open(dsn)
	case "sqlite":
		dialector = sqlite.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported driver %q", driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	return New(db, log)
}

func New(db *gorm.DB, log *zap.Logger) (*Store, error) {
	if err := db.AutoMigrate(&MatchRecord{}, &ScorerGrant{}); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Store{db: db, log: logging.OrNop(log)}, nil
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// SaveSnapshot upserts the match row. An older version never overwrites a
// newer one.
func (s *Store) SaveSnapshot(ctx context.Context, snap engine.Snapshot) error {
	payload, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}

	m := snap.Match
	rec := MatchRecord{
		ID:       m.ID,
		Status:   string(m.Status),
		Version:  snap.Version,
		Innings:  len(m.Innings),
		Reason:   string(m.Reason),
		Snapshot: payload,
	}
	if m.Result != nil {
		rec.ResultKind = string(m.Result.Kind)
		rec.Winner = m.Result.Winner
	}

	err = s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"status", "version", "innings", "reason", "result_kind", "winner", "snapshot", "updated_at"}),
		Where: clause.Where{Exprs: []clause.Expression{
			clause.Expr{SQL: "match_records.version < excluded.version"},
		}},
	}).Create(&rec).Error
	if err != nil {
		return fmt.Errorf("save snapshot %s v%d: %w", m.ID, snap.Version, err)
	}
	s.log.Debug("snapshot saved", zap.String(logging.FieldMatchID, m.ID), zap.Int(logging.FieldVersion, snap.Version))
	return nil
}

func (s *Store) LoadSnapshot(ctx context.Context, matchID string) (engine.Snapshot, error) {
	var rec MatchRecord
	err := s.db.WithContext(ctx).First(&rec, "id = ?", matchID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return engine.Snapshot{}, ErrNotFound
	}
	if err != nil {
		return engine.Snapshot{}, fmt.Errorf("load snapshot %s: %w", matchID, err)
	}

	var snap engine.Snapshot
	if err := json.Unmarshal(rec.Snapshot, &snap); err != nil {
		return engine.Snapshot{}, fmt.Errorf("decode snapshot %s: %w", matchID, err)
	}
	return snap, nil
}

// ListByStatus returns records newest first.
func (s *Store) ListByStatus(ctx context.Context, status engine.Status, limit int) ([]MatchRecord, error) {
	var recs []MatchRecord
	err := s.db.WithContext(ctx).
		Where("status = ?", string(status)).
		Order("updated_at desc").
		Limit(limit).
		Find(&recs).Error
	if err != nil {
		return nil, fmt.Errorf("list %s matches: %w", status, err)
	}
	return recs, nil
}

// Grant is idempotent; an existing grant keeps its role.
func (s *Store) Grant(ctx context.Context, matchID, userID, role string) error {
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&ScorerGrant{MatchID: matchID, UserID: userID, Role: role}).Error
	if err != nil {
		return fmt.Errorf("grant %s on %s: %w", userID, matchID, err)
	}
	return nil
}

func (s *Store) Revoke(ctx context.Context, matchID, userID string) error {
	err := s.db.WithContext(ctx).
		Where("match_id = ? AND user_id = ?", matchID, userID).
		Delete(&ScorerGrant{}).Error
	if err != nil {
		return fmt.Errorf("revoke %s on %s: %w", userID, matchID, err)
	}
	return nil
}

func (s *Store) CanScore(ctx context.Context, userID, matchID string) (bool, error) {
	var n int64
	err := s.db.WithContext(ctx).
		Model(&ScorerGrant{}).
		Where("match_id = ? AND user_id = ?", matchID, userID).
		Count(&n).Error
	if err != nil {
		return false, fmt.Errorf("check scorer: %w", err)
	}
	return n > 0, nil
}
