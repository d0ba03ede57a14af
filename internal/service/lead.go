// Package service provides the in-memory leads API behind /api/leads.
package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/leadproton/server/internal/model"
	"github.com/leadproton/server/pkg/logger"
)

// Errors returned by LeadService.
var (
	ErrLeadNotFound  = errors.New("lead not found")
	ErrMissingFields = errors.New("missing required fields")
)

// LeadService stores leads in process memory. It is independent of the
// workspace lead book and loses its data on restart.
type LeadService struct {
	logger *logger.Logger

	leads map[string]*model.LeadRecord
	mu    sync.RWMutex
	now   func() time.Time
}

// NewLeadService creates an empty lead service.
func NewLeadService(log *logger.Logger) *LeadService {
	return &LeadService{
		logger: logger.OrGlobal(log).Named("leads"),
		leads:  make(map[string]*model.LeadRecord),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Create stores a new lead. firstName, lastName, email and companyName are
// required.
func (s *LeadService) Create(ctx context.Context, req *model.CreateLeadRequest) (*model.LeadRecord, error) {
	if req.FirstName == "" || req.LastName == "" || req.Email == "" || req.CompanyName == "" {
		return nil, ErrMissingFields
	}

	lead := &model.LeadRecord{
		ID:          uuid.NewString(),
		FirstName:   req.FirstName,
		LastName:    req.LastName,
		Email:       req.Email,
		CompanyName: req.CompanyName,
		Role:        req.Role,
		Status:      model.LeadStatus(req.Status),
		CreatedAt:   s.now(),
	}

	s.mu.Lock()
	s.leads[lead.ID] = lead
	s.mu.Unlock()

	s.logger.Info("lead created", zap.String("lead_id", lead.ID))

	out := *lead
	return &out, nil
}

// Get retrieves a lead by ID.
func (s *LeadService) Get(ctx context.Context, id string) (*model.LeadRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	lead, exists := s.leads[id]
	if !exists {
		return nil, fmt.Errorf("lead %s: %w", id, ErrLeadNotFound)
	}
	out := *lead
	return &out, nil
}

// List returns every lead in creation order.
func (s *LeadService) List(ctx context.Context) []model.LeadRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.LeadRecord, 0, len(s.leads))
	for _, l := range s.leads {
		out = append(out, *l)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// Update merges the provided fields into a lead.
func (s *LeadService) Update(ctx context.Context, id string, req *model.UpdateLeadRequest) (*model.LeadRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	lead, exists := s.leads[id]
	if !exists {
		return nil, fmt.Errorf("lead %s: %w", id, ErrLeadNotFound)
	}

	merge := func(dst *string, src *string) {
		if src != nil {
			*dst = *src
		}
	}
	merge(&lead.FirstName, req.FirstName)
	merge(&lead.LastName, req.LastName)
	merge(&lead.Email, req.Email)
	merge(&lead.CompanyName, req.CompanyName)
	merge(&lead.Role, req.Role)
	if req.Status != nil {
		lead.Status = model.LeadStatus(*req.Status)
	}

	out := *lead
	return &out, nil
}

// Delete removes a lead.
func (s *LeadService) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.leads[id]; !exists {
		return fmt.Errorf("lead %s: %w", id, ErrLeadNotFound)
	}
	delete(s.leads, id)
	return nil
}
