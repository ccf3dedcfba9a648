package goal

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/zhouzirui/goalprobe/internal/model/goal"
)

var (
	ErrTitleRequired = errors.New("title is required")
	ErrGoalNotFound  = errors.New("goal not found")
)

// Service keeps goals in memory.
type Service struct {
	mu    sync.RWMutex
	goals map[string]goal.Goal
}

// NewService bootstraps an empty goal store.
func NewService() *Service {
	return &Service{goals: make(map[string]goal.Goal)}
}

// Create stores g under a new identifier.
func (s *Service) Create(_ context.Context, g goal.Goal) (goal.Goal, error) {
	if strings.TrimSpace(g.Title) == "" {
		return goal.Goal{}, ErrTitleRequired
	}

	g.ID = uuid.NewString()

	s.mu.Lock()
	s.goals[g.ID] = g
	s.mu.Unlock()

	return g, nil
}

// Get retrieves a goal by identifier.
func (s *Service) Get(_ context.Context, id string) (goal.Goal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	g, ok := s.goals[id]
	if !ok {
		return goal.Goal{}, ErrGoalNotFound
	}
	return g, nil
}

// Delete removes a goal.
func (s *Service) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.goals[id]; !ok {
		return ErrGoalNotFound
	}
	delete(s.goals, id)
	return nil
}

// Count returns the number of stored goals.
func (s *Service) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.goals)
}
