package consultation

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/zhouzirui/goalprobe/internal/model/consultation"
	"github.com/zhouzirui/goalprobe/internal/model/goal"
)

var (
	ErrPersonaRequired      = errors.New("persona is required")
	ErrUnsupportedContext   = errors.New("unsupported context_type")
	ErrContextNotFound      = errors.New("context object not found")
	ErrConsultationNotFound = errors.New("consultation not found")
)

// GoalLookup resolves the goal a consultation context points at.
type GoalLookup interface {
	Get(ctx context.Context, id string) (goal.Goal, error)
}

// Service encapsulates consultation state management.
type Service struct {
	mu            sync.RWMutex
	goals         GoalLookup
	consultations map[string]consultation.Consultation
	messages      map[string][]consultation.Message
}

// NewService bootstraps the in-memory consultation service.
func NewService(goals GoalLookup) *Service {
	return &Service{
		goals:         goals,
		consultations: make(map[string]consultation.Consultation),
		messages:      make(map[string][]consultation.Message),
	}
}

// Create opens an active consultation. A goal context must reference an existing goal.
func (s *Service) Create(ctx context.Context, req consultation.CreateRequest) (consultation.Consultation, error) {
	if req.Persona == "" {
		return consultation.Consultation{}, ErrPersonaRequired
	}

	switch req.ContextType {
	case "":
		req.ContextID = ""
	case consultation.ContextGoal:
		if _, err := s.goals.Get(ctx, req.ContextID); err != nil {
			return consultation.Consultation{}, ErrContextNotFound
		}
	default:
		return consultation.Consultation{}, ErrUnsupportedContext
	}

	c := consultation.Consultation{
		ID:          uuid.NewString(),
		Persona:     req.Persona,
		Status:      consultation.StatusActive,
		ContextType: req.ContextType,
		ContextID:   req.ContextID,
		CreatedAt:   time.Now().UTC(),
	}

	s.mu.Lock()
	s.consultations[c.ID] = c
	s.messages[c.ID] = make([]consultation.Message, 0, 16)
	s.mu.Unlock()

	return c, nil
}

// Get retrieves a consultation by identifier.
func (s *Service) Get(_ context.Context, id string) (consultation.Consultation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.consultations[id]
	if !ok {
		return consultation.Consultation{}, ErrConsultationNotFound
	}
	return c, nil
}

// List returns consultations ordered by creation time, filtered by status when given.
func (s *Service) List(_ context.Context, status string) []consultation.Consultation {
	s.mu.RLock()
	out := make([]consultation.Consultation, 0, len(s.consultations))
	for _, c := range s.consultations {
		if status == "" || c.Status == status {
			out = append(out, c)
		}
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// Delete removes a consultation and its transcript.
func (s *Service) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.consultations[id]; !ok {
		return ErrConsultationNotFound
	}
	delete(s.consultations, id)
	delete(s.messages, id)
	return nil
}

// ResolveGoal returns the goal bound to c, or nil when c has no goal context.
func (s *Service) ResolveGoal(ctx context.Context, c consultation.Consultation) (*goal.Goal, error) {
	if c.ContextType != consultation.ContextGoal {
		return nil, nil
	}
	g, err := s.goals.Get(ctx, c.ContextID)
	if err != nil {
		return nil, err
	}
	return &g, nil
}

// SaveMessage appends a message to the consultation history.
func (s *Service) SaveMessage(_ context.Context, message consultation.Message) (consultation.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.consultations[message.ConsultationID]; !ok {
		return consultation.Message{}, ErrConsultationNotFound
	}

	message.ID = uuid.NewString()
	if message.CreatedAt.IsZero() {
		message.CreatedAt = time.Now().UTC()
	}

	s.messages[message.ConsultationID] = append(s.messages[message.ConsultationID], message)
	return message, nil
}

// LoadTranscript returns stored messages for the provided consultation.
func (s *Service) LoadTranscript(_ context.Context, id string) ([]consultation.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	messages, ok := s.messages[id]
	if !ok {
		return nil, ErrConsultationNotFound
	}

	copied := make([]consultation.Message, len(messages))
	copy(copied, messages)
	return copied, nil
}
