package store

import (
	"sort"
	"sync"
	"time"

	"github.com/timegrid/timegrid/internal/models"
)

// Compile-time check that InMemoryStore implements Store.
var _ Store = (*InMemoryStore)(nil)

// InMemoryStore is a map-backed Store for tests and development. Safe for
// concurrent use.
type InMemoryStore struct {
	mu        sync.Mutex
	tasks     map[string]models.Task
	histories map[string]models.ReminderHistory
	settings  map[string]models.ReminderSettings
	contexts  map[string]time.Time // userID + bucket -> recordedAt
	dedup     map[string]time.Time // dedupe tag -> sentAt
}

// NewInMemoryStore creates an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		tasks:     make(map[string]models.Task),
		histories: make(map[string]models.ReminderHistory),
		settings:  make(map[string]models.ReminderSettings),
		contexts:  make(map[string]time.Time),
		dedup:     make(map[string]time.Time),
	}
}

func (s *InMemoryStore) CreateTask(t models.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks[t.ID] = t
	return nil
}

func (s *InMemoryStore) GetTask(id string) (*models.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	return &t, nil
}

func (s *InMemoryStore) UpdateTaskIf(t models.Task, fromStatus models.TaskStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.tasks[t.ID]
	if !ok {
		return models.ErrNotFound
	}
	if current.Status != fromStatus {
		return models.ErrInvalidTransition
	}
	s.tasks[t.ID] = t
	return nil
}

func (s *InMemoryStore) DeleteTask(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tasks[id]; !ok {
		return models.ErrNotFound
	}
	delete(s.tasks, id)
	return nil
}

func (s *InMemoryStore) ListTasks(userID string) ([]models.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Task
	for _, t := range s.tasks {
		if t.UserID == userID {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *InMemoryStore) CountCompletedSince(userID string, since time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, t := range s.tasks {
		if t.UserID == userID && t.Status == models.TaskStatusCompleted && t.EndTime != nil && !t.EndTime.Before(since) {
			count++
		}
	}
	return count, nil
}

func (s *InMemoryStore) LastLogTime(userID string) (*time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var last *time.Time
	for _, t := range s.tasks {
		if t.UserID != userID || t.Status != models.TaskStatusCompleted || t.EndTime == nil {
			continue
		}
		if last == nil || t.EndTime.After(*last) {
			end := *t.EndTime
			last = &end
		}
	}
	return last, nil
}

func (s *InMemoryStore) DeleteCompletedBefore(cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for id, t := range s.tasks {
		if t.Status == models.TaskStatusCompleted && t.EndTime != nil && t.EndTime.Before(cutoff) {
			delete(s.tasks, id)
			removed++
		}
	}
	return removed, nil
}

func (s *InMemoryStore) GetReminderHistory(userID string) (*models.ReminderHistory, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.histories[userID]
	if !ok {
		return nil, nil
	}
	return &h, nil
}

func (s *InMemoryStore) SaveReminderHistory(h models.ReminderHistory) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.histories[h.UserID] = h
	return nil
}

func (s *InMemoryStore) GetReminderSettings(userID string) (*models.ReminderSettings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.settings[userID]
	if !ok {
		return nil, nil
	}
	return &v, nil
}

func (s *InMemoryStore) SaveReminderSettings(v models.ReminderSettings) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings[v.UserID] = v
	return nil
}

func (s *InMemoryStore) ListReminderUsers() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	users := make([]string, 0, len(s.settings))
	for id := range s.settings {
		users = append(users, id)
	}
	sort.Strings(users)
	return users, nil
}

func (s *InMemoryStore) RecordContextSample(userID, context string, bucketStart, recordedAt time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := userID + "|" + bucketStart.UTC().Format(time.RFC3339)
	if _, ok := s.contexts[key]; ok {
		return false, nil
	}
	s.contexts[key] = recordedAt
	return true, nil
}

func (s *InMemoryStore) RecordNotification(dedupeTag, userID string, sentAt time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.dedup[dedupeTag]; ok {
		return false, nil
	}
	s.dedup[dedupeTag] = sentAt
	return true, nil
}

func (s *InMemoryStore) Close() error { return nil }
