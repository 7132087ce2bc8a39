package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"agentmesh/internal/model"
)

// GormStore keeps keys in the kv_entries table of a relational database.
type GormStore struct {
	db  *gorm.DB
	now func() time.Time
}

// NewGormStore wraps an open, migrated database.
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db, now: time.Now}
}

func (g *GormStore) expiry(ttl time.Duration) *time.Time {
	if ttl <= 0 {
		return nil
	}
	t := g.now().Add(ttl)
	return &t
}

func (g *GormStore) find(tx *gorm.DB, key string) (*model.KVEntry, error) {
	var e model.KVEntry
	err := tx.Where("kv_key = ?", key).First(&e).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("gorm get %s: %w", key, err)
	}
	if e.Expired(g.now()) {
		return nil, ErrNotFound
	}
	return &e, nil
}

func (g *GormStore) Get(ctx context.Context, key string) ([]byte, error) {
	e, err := g.find(g.db.WithContext(ctx), key)
	if err != nil {
		return nil, err
	}
	return []byte(e.Value), nil
}

func (g *GormStore) upsert(tx *gorm.DB, e *model.KVEntry) error {
	return tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "kv_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "expires_at", "updated_at"}),
	}).Create(e).Error
}

func (g *GormStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	e := &model.KVEntry{Key: key, Value: datatypes.JSON(value), ExpiresAt: g.expiry(ttl)}
	if err := g.upsert(g.db.WithContext(ctx), e); err != nil {
		return fmt.Errorf("gorm set %s: %w", key, err)
	}
	return nil
}

func (g *GormStore) Delete(ctx context.Context, key string) error {
	if err := g.db.WithContext(ctx).Where("kv_key = ?", key).Delete(&model.KVEntry{}).Error; err != nil {
		return fmt.Errorf("gorm delete %s: %w", key, err)
	}
	return nil
}

func (g *GormStore) Exists(ctx context.Context, key string) (bool, error) {
	_, err := g.find(g.db.WithContext(ctx), key)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

// seedCounter inserts a zero counter row unless key already exists. A
// locking read on a missing row does not block a second writer, so Incr
// makes sure the row is there before it locks it.
func (g *GormStore) seedCounter(tx *gorm.DB, key string) *gorm.DB {
	return tx.Clauses(clause.OnConflict{DoNothing: true}).
		Create(&model.KVEntry{Key: key, Value: datatypes.JSON("0")})
}

// Incr seeds the row, then locks it with SELECT ... FOR UPDATE inside a
// transaction. An expired counter restarts at 1.
func (g *GormStore) Incr(ctx context.Context, key string) (int64, error) {
	var n int64
	err := g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := g.seedCounter(tx, key).Error; err != nil {
			return fmt.Errorf("gorm incr %s: %w", key, err)
		}
		locked := tx.Clauses(clause.Locking{Strength: "UPDATE"})
		e, err := g.find(locked, key)
		switch {
		case errors.Is(err, ErrNotFound):
			e = &model.KVEntry{Key: key}
		case err != nil:
			return err
		default:
			v, perr := strconv.ParseInt(string(e.Value), 10, 64)
			if perr != nil {
				return &CounterError{Key: key, Err: perr}
			}
			n = v
		}
		n++
		e.Value = datatypes.JSON(strconv.FormatInt(n, 10))
		e.ExpiresAt = nil
		return g.upsert(tx, e)
	})
	if err != nil {
		return 0, err
	}
	return n, nil
}

func (g *GormStore) Take(ctx context.Context, key string) ([]byte, error) {
	var out []byte
	err := g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		e, err := g.find(tx.Clauses(clause.Locking{Strength: "UPDATE"}), key)
		if err != nil {
			return err
		}
		if err := tx.Where("kv_key = ?", key).Delete(&model.KVEntry{}).Error; err != nil {
			return fmt.Errorf("gorm take %s: %w", key, err)
		}
		out = []byte(e.Value)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Sweep deletes expired rows.
func (g *GormStore) Sweep(ctx context.Context) (int, error) {
	res := g.db.WithContext(ctx).Where("expires_at IS NOT NULL AND expires_at <= ?", g.now()).Delete(&model.KVEntry{})
	if res.Error != nil {
		return 0, fmt.Errorf("gorm sweep: %w", res.Error)
	}
	return int(res.RowsAffected), nil
}

func (g *GormStore) Close() error {
	sqlDB, err := g.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
