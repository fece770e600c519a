package attempts

import (
	"context"
	"sync"
	"time"
)

type MemoryConfig struct {
	GCInterval time.Duration
	Retention  time.Duration
}

type memoryStore struct {
	mu      sync.Mutex
	records map[string]*Attempt

	retention time.Duration
	done      chan struct{}
	closeOnce sync.Once
}

// NewMemory builds an in-process attempt store. Stale records are garbage
// collected in the background; the store is safe for concurrent use.
func NewMemory(cfg Config) Store {
	gcInterval := time.Minute
	retention := 24 * time.Hour
	if cfg.Memory != nil {
		if cfg.Memory.GCInterval > 0 {
			gcInterval = cfg.Memory.GCInterval
		}
		if cfg.Memory.Retention > 0 {
			retention = cfg.Memory.Retention
		}
	}

	s := &memoryStore{
		records:   make(map[string]*Attempt),
		retention: retention,
		done:      make(chan struct{}),
	}
	go s.gcLoop(gcInterval)
	return s
}

func (s *memoryStore) Get(ctx context.Context, username string) (Attempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.records[username]
	if !ok {
		return Attempt{Username: username}, nil
	}
	return *record, nil
}

func (s *memoryStore) RegisterFailure(ctx context.Context, username string, threshold int, lockFor time.Duration, now time.Time) (*time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.records[username]
	if !ok {
		record = &Attempt{Username: username}
		s.records[username] = record
	}

	if record.Locked(now) {
		until := *record.LockedUntil
		return &until, nil
	}

	record.Failures++
	record.LockedUntil = nil
	record.UpdatedAt = now.UTC()
	if record.Failures >= threshold {
		until := now.UTC().Add(lockFor)
		record.LockedUntil = &until
		record.Failures = 0
		return &until, nil
	}

	return nil, nil
}

func (s *memoryStore) Reset(ctx context.Context, username string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.records, username)
	return nil
}

func (s *memoryStore) Purge(ctx context.Context, cutoff time.Time, batchSize int) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var deleted int64
	for username, record := range s.records {
		if batchSize > 0 && deleted >= int64(batchSize) {
			break
		}
		if record.UpdatedAt.Before(cutoff) {
			delete(s.records, username)
			deleted++
		}
	}
	return deleted, nil
}

func (s *memoryStore) Close(ctx context.Context) error {
	s.closeOnce.Do(func() {
		close(s.done)
	})
	return nil
}

func (s *memoryStore) gcLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case now := <-ticker.C:
			_, _ = s.Purge(context.Background(), now.Add(-s.retention), 0)
		}
	}
}
