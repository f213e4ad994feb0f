package lecture

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore keeps lectures in process memory
type MemoryStore struct {
	mu       sync.RWMutex
	lectures map[string]Lecture
	clock    func() time.Time
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{lectures: make(map[string]Lecture), clock: time.Now}
}

func (s *MemoryStore) Create(ctx context.Context, l Lecture) (Lecture, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if l.ID == "" {
		l.ID = uuid.New().String()
	}
	if l.Status == "" {
		l.Status = StatusRecording
	}
	if l.Title == "" {
		l.Title = UntitledTitle
	}
	now := s.clock().UTC()
	l.CreatedAt, l.UpdatedAt = now, now
	s.lectures[l.ID] = cloneLecture(l)
	return cloneLecture(l), nil
}

func (s *MemoryStore) Get(ctx context.Context, ownerID, id string) (Lecture, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	l, ok := s.lectures[id]
	if !ok || l.OwnerID != ownerID {
		return Lecture{}, ErrNotFound
	}
	return cloneLecture(l), nil
}

func (s *MemoryStore) Update(ctx context.Context, ownerID, id string, u Update) (Lecture, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.lectures[id]
	if !ok || l.OwnerID != ownerID {
		return Lecture{}, ErrNotFound
	}
	u.Apply(&l)
	l.UpdatedAt = s.clock().UTC()
	s.lectures[id] = cloneLecture(l)
	return cloneLecture(l), nil
}

func (s *MemoryStore) ListByStatus(ctx context.Context, status Status, after Cursor, limit int) ([]Lecture, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Lecture
	for _, l := range s.lectures {
		if l.Status == status && after.before(l) {
			out = append(out, cloneLecture(l))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return Cursor{UpdatedAt: out[i].UpdatedAt, ID: out[i].ID}.before(out[j])
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) Ping(ctx context.Context) error {
	return nil
}

func cloneLecture(l Lecture) Lecture {
	if l.Transcript != nil {
		t := *l.Transcript
		l.Transcript = &t
	}
	if l.UserKeypoints != nil {
		l.UserKeypoints = append([]Keypoint{}, l.UserKeypoints...)
	}
	if l.FactChecks != nil {
		l.FactChecks = append([]FactCheckItem{}, l.FactChecks...)
	}
	return l
}
