package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"GridCast/internal/domain/models"
	domrepo "GridCast/internal/domain/repository"
)

// MemoryHistoryStore holds actuals in a sorted slice. Used for CLI replay
// and tests.
type MemoryHistoryStore struct {
	mu     sync.RWMutex
	points []models.ObservationPoint
	// Fail makes every call return this error when set.
	Fail error
}

func NewMemoryHistory(points []models.ObservationPoint) *MemoryHistoryStore {
	s := &MemoryHistoryStore{}
	_ = s.AppendActuals(context.Background(), points)
	return s
}

// LoadSeedFile reads a JSON array of observations.
func LoadSeedFile(path string) (*MemoryHistoryStore, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	var pts []models.ObservationPoint
	if err := json.Unmarshal(b, &pts); err != nil {
		return nil, fmt.Errorf("decode seed file: %w", err)
	}
	return NewMemoryHistory(pts), nil
}

func (s *MemoryHistoryStore) GetRange(_ context.Context, start, end time.Time) ([]models.ObservationPoint, error) {
	if s.Fail != nil {
		return nil, s.Fail
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	i := sort.Search(len(s.points), func(i int) bool { return !s.points[i].Timestamp.Before(start) })
	var out []models.ObservationPoint
	for ; i < len(s.points) && !s.points[i].Timestamp.After(end); i++ {
		out = append(out, s.points[i])
	}
	return out, nil
}

func (s *MemoryHistoryStore) LastAvailableTimestamp(context.Context) (time.Time, error) {
	if s.Fail != nil {
		return time.Time{}, s.Fail
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.points) == 0 {
		return time.Time{}, domrepo.ErrNoHistory
	}
	return s.points[len(s.points)-1].Timestamp, nil
}

func (s *MemoryHistoryStore) AppendActuals(_ context.Context, points []models.ObservationPoint) error {
	if s.Fail != nil {
		return s.Fail
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	byHour := make(map[int64]int, len(s.points))
	for i, p := range s.points {
		byHour[p.Timestamp.Unix()] = i
	}
	for _, p := range points {
		p.Timestamp = p.Timestamp.UTC()
		if i, ok := byHour[p.Timestamp.Unix()]; ok {
			s.points[i] = p
			continue
		}
		byHour[p.Timestamp.Unix()] = len(s.points)
		s.points = append(s.points, p)
	}
	sort.Slice(s.points, func(i, j int) bool { return s.points[i].Timestamp.Before(s.points[j].Timestamp) })
	return nil
}

func (s *MemoryHistoryStore) Health(context.Context) error { return s.Fail }

func (s *MemoryHistoryStore) Close() error { return nil }

var _ domrepo.HistoryStore = (*MemoryHistoryStore)(nil)
