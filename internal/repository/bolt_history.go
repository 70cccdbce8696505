package repository

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"

	"GridCast/internal/domain/models"
	domrepo "GridCast/internal/domain/repository"
)

var actualsBucket = []byte("hourly_actuals")

// boltKeyLayout sorts lexicographically in time order.
const boltKeyLayout = "2006-01-02T15:04:05Z"

type boltRecord struct {
	Load    float64               `json:"load"`
	Weather *models.WeatherFields `json:"weather,omitempty"`
}

// BoltHistoryStore is the single-node embedded history backend.
type BoltHistoryStore struct {
	db *bolt.DB
}

func OpenBoltHistory(path string) (*BoltHistoryStore, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create bolt dir: %w", err)
		}
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bolt: %w", err)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(actualsBucket)
		return err
	}); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create bucket: %w", err)
	}
	return &BoltHistoryStore{db: db}, nil
}

func boltKey(t time.Time) []byte {
	return []byte(t.UTC().Format(boltKeyLayout))
}

func (s *BoltHistoryStore) GetRange(ctx context.Context, start, end time.Time) ([]models.ObservationPoint, error) {
	var out []models.ObservationPoint
	last := boltKey(end)
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(actualsBucket).Cursor()
		for k, v := c.Seek(boltKey(start)); k != nil && bytes.Compare(k, last) <= 0; k, v = c.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			p, err := decodeBolt(k, v)
			if err != nil {
				return err
			}
			out = append(out, p)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("get range: %w", err)
	}
	return out, nil
}

func decodeBolt(k, v []byte) (models.ObservationPoint, error) {
	ts, err := time.Parse(boltKeyLayout, string(k))
	if err != nil {
		return models.ObservationPoint{}, fmt.Errorf("bad key %q: %w", k, err)
	}
	var rec boltRecord
	if err := json.Unmarshal(v, &rec); err != nil {
		return models.ObservationPoint{}, fmt.Errorf("decode %s: %w", k, err)
	}
	return models.ObservationPoint{Timestamp: ts, Load: rec.Load, Weather: rec.Weather}, nil
}

func (s *BoltHistoryStore) LastAvailableTimestamp(context.Context) (time.Time, error) {
	var last time.Time
	err := s.db.View(func(tx *bolt.Tx) error {
		k, _ := tx.Bucket(actualsBucket).Cursor().Last()
		if k == nil {
			return domrepo.ErrNoHistory
		}
		t, err := time.Parse(boltKeyLayout, string(k))
		last = t
		return err
	})
	return last, err
}

// AppendActuals writes all points in one transaction; an existing hour is
// overwritten.
func (s *BoltHistoryStore) AppendActuals(_ context.Context, points []models.ObservationPoint) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(actualsBucket)
		for _, p := range points {
			v, err := json.Marshal(boltRecord{Load: p.Load, Weather: p.Weather})
			if err != nil {
				return err
			}
			if err := b.Put(boltKey(p.Timestamp), v); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *BoltHistoryStore) Health(context.Context) error {
	return s.db.View(func(tx *bolt.Tx) error {
		if tx.Bucket(actualsBucket) == nil {
			return fmt.Errorf("bucket %s missing", actualsBucket)
		}
		return nil
	})
}

func (s *BoltHistoryStore) Close() error { return s.db.Close() }

var _ domrepo.HistoryStore = (*BoltHistoryStore)(nil)
