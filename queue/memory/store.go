package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/marcelsud/webhook-hub/queue"
)

/* In-process implementation of queue.Store
 * A single mutex guards every structure, which makes each move atomic
 * Suitable for a single instance and for tests; nothing survives a restart
 */

type processingEntry struct {
	item  queue.Item
	since time.Time
}

type scheduled struct {
	item    queue.Item
	readyAt time.Time
	seq     uint64
}

type Store struct {
	mu         sync.Mutex
	lanes      map[queue.Priority][]queue.Item
	processing map[string]processingEntry
	delayed    []scheduled
	dead       []queue.DeadLetter
	completed  int64
	failed     int64
	seq        uint64
}

// NewStore creates an empty in-memory queue store
func NewStore() *Store {
	return &Store{
		lanes:      make(map[queue.Priority][]queue.Item),
		processing: make(map[string]processingEntry),
	}
}

// Push appends an item to its lane
func (s *Store) Push(ctx context.Context, item queue.Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lanes[item.Priority] = append(s.lanes[item.Priority], item)
	return nil
}

// Pop moves the head of the highest non-empty lane into the processing set
func (s *Store) Pop(ctx context.Context, now time.Time) (queue.Item, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range queue.Lanes {
		lane := s.lanes[p]
		if len(lane) == 0 {
			continue
		}
		item := lane[0]
		s.lanes[p] = lane[1:]
		item.ClaimedAt = now
		s.processing[item.ID] = processingEntry{item: item, since: now}
		return item, true, nil
	}
	return queue.Item{}, false, nil
}

// release drops the processing marker when item still holds it; callers hold mu
func (s *Store) release(item queue.Item) bool {
	entry, ok := s.processing[item.ID]
	if !ok || !entry.since.Equal(item.ClaimedAt) {
		return false
	}
	delete(s.processing, item.ID)
	return true
}

// Complete drops the processing marker
func (s *Store) Complete(ctx context.Context, item queue.Item) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.release(item) {
		return false, nil
	}
	s.completed++
	return true, nil
}

// Retry schedules the item for a later attempt
func (s *Store) Retry(ctx context.Context, item queue.Item, readyAt time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.release(item) {
		return false, nil
	}
	item.ClaimedAt = time.Time{}
	s.seq++
	s.delayed = append(s.delayed, scheduled{item: item, readyAt: readyAt, seq: s.seq})
	return true, nil
}

// PromoteDue moves ready retries to the tail of their lanes in readiness order
func (s *Store) PromoteDue(ctx context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.delayed) == 0 {
		return 0, nil
	}
	sort.SliceStable(s.delayed, func(i, j int) bool {
		if s.delayed[i].readyAt.Equal(s.delayed[j].readyAt) {
			return s.delayed[i].seq < s.delayed[j].seq
		}
		return s.delayed[i].readyAt.Before(s.delayed[j].readyAt)
	})
	promoted := 0
	for promoted < len(s.delayed) && !s.delayed[promoted].readyAt.After(now) {
		item := s.delayed[promoted].item
		s.lanes[item.Priority] = append(s.lanes[item.Priority], item)
		promoted++
	}
	s.delayed = s.delayed[promoted:]
	return promoted, nil
}

// Stale lists processing entries claimed before the cutoff, oldest enqueue first
func (s *Store) Stale(ctx context.Context, before time.Time) ([]queue.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var stale []queue.Item
	for _, entry := range s.processing {
		if entry.since.Before(before) {
			stale = append(stale, entry.item)
		}
	}
	sort.Slice(stale, func(i, j int) bool { return stale[i].EnqueuedAt.Before(stale[j].EnqueuedAt) })
	return stale, nil
}

// Bury stores the dead letter
func (s *Store) Bury(ctx context.Context, dl queue.DeadLetter) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.release(dl.Item) {
		return false, nil
	}
	dl.Item.ClaimedAt = time.Time{}
	s.dead = append(s.dead, dl)
	s.failed++
	return true, nil
}

// Replay moves up to n dead letters back to their lanes
func (s *Store) Replay(ctx context.Context, n int) ([]queue.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n > len(s.dead) {
		n = len(s.dead)
	}
	items := make([]queue.Item, 0, n)
	for _, dl := range s.dead[:n] {
		item := dl.Item
		item.RetryCount = 0
		s.lanes[item.Priority] = append(s.lanes[item.Priority], item)
		items = append(items, item)
	}
	s.dead = s.dead[n:]
	return items, nil
}

// DeadLetters lists up to limit dead letters
func (s *Store) DeadLetters(ctx context.Context, limit int) ([]queue.DeadLetter, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if limit <= 0 || limit > len(s.dead) {
		limit = len(s.dead)
	}
	out := make([]queue.DeadLetter, limit)
	copy(out, s.dead[:limit])
	return out, nil
}

// Stats returns the current counters
func (s *Store) Stats(ctx context.Context) (queue.Stats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stats := queue.Stats{
		Delayed:    int64(len(s.delayed)),
		Processing: int64(len(s.processing)),
		Completed:  s.completed,
		Failed:     s.failed,
		DeadLetter: int64(len(s.dead)),
		Lanes:      make(map[string]int64, len(queue.Lanes)),
	}
	for _, p := range queue.Lanes {
		n := int64(len(s.lanes[p]))
		stats.Lanes[p.String()] = n
		stats.Pending += n
	}
	stats.Pending += stats.Delayed
	return stats, nil
}
