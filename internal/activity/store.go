// Package activity keeps the per-lead activity log.
package activity

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/leadproton/server/internal/events"
	"github.com/leadproton/server/internal/model"
	"github.com/leadproton/server/internal/store"
	"github.com/leadproton/server/pkg/logger"
	"github.com/leadproton/server/pkg/metrics"
)

// Change kinds published on the bus.
const (
	KindAppend = "append"
	KindDelete = "delete"
)

// Store is an append-only log of activities per lead, persisted as one JSON
// object under store.KeyActivityLogs. Storage failures are logged and never
// returned: a log that cannot be read is treated as empty.
type Store struct {
	kv     store.KV
	bus    *events.Bus
	logger *logger.Logger

	mu    sync.Mutex
	now   func() time.Time
	newID func() string
}

// NewStore creates an activity store. bus may be nil.
func NewStore(kv store.KV, bus *events.Bus, log *logger.Logger) *Store {
	return &Store{
		kv:     kv,
		bus:    bus,
		logger: logger.OrGlobal(log).Named("activity"),
		now:    func() time.Time { return time.Now().UTC() },
		newID:  func() string { return uuid.Must(uuid.NewV7()).String() },
	}
}

type logs map[string][]model.LeadActivity

func (s *Store) load(ctx context.Context) logs {
	all := make(logs)
	if err := store.LoadJSON(ctx, s.kv, store.KeyActivityLogs, &all); err != nil {
		s.logger.Error("failed to read activity logs", zap.Error(err))
		metrics.RecordStorageError(store.KeyActivityLogs, "read")
		return make(logs)
	}
	return all
}

func (s *Store) save(ctx context.Context, all logs) {
	if err := store.SaveJSON(ctx, s.kv, store.KeyActivityLogs, all); err != nil {
		s.logger.Error("failed to save activity logs", zap.Error(err))
		metrics.RecordStorageError(store.KeyActivityLogs, "write")
	}
}

// List returns the activities of a lead, most recent first.
func (s *Store) List(ctx context.Context, leadID string) []model.LeadActivity {
	list := s.load(ctx)[leadID]
	if list == nil {
		return []model.LeadActivity{}
	}
	return list
}

// Append records a new activity at the head of the lead's log. The activity
// type follows from the details variant.
func (s *Store) Append(ctx context.Context, leadID string, details model.ActivityDetails) model.LeadActivity {
	s.mu.Lock()
	a := s.appendLocked(ctx, s.load(ctx), leadID, details)
	s.mu.Unlock()

	s.published(leadID, a)
	return a
}

func (s *Store) appendLocked(ctx context.Context, all logs, leadID string, details model.ActivityDetails) model.LeadActivity {
	a := model.LeadActivity{
		ID:        s.newID(),
		Timestamp: s.now(),
		Details:   details,
	}
	all[leadID] = append([]model.LeadActivity{a}, all[leadID]...)
	s.save(ctx, all)
	return a
}

func (s *Store) published(leadID string, a model.LeadActivity) {
	metrics.ActivitiesTotal.WithLabelValues(string(a.Type())).Inc()

	payload, err := json.Marshal(a)
	if err != nil {
		s.logger.Warn("failed to encode activity for bus", zap.Error(err))
	}
	s.bus.Publish(events.Change{
		Topic:   store.KeyActivityLogs,
		LeadID:  leadID,
		Kind:    KindAppend,
		Payload: payload,
	})

	s.logger.Debug("activity appended",
		zap.String("lead_id", leadID),
		zap.String("type", string(a.Type())),
	)
}

// DeleteAll removes every activity of the given leads.
func (s *Store) DeleteAll(ctx context.Context, leadIDs ...string) {
	if len(leadIDs) == 0 {
		return
	}

	s.mu.Lock()
	all := s.load(ctx)
	for _, id := range leadIDs {
		delete(all, id)
	}
	s.save(ctx, all)
	s.mu.Unlock()

	for _, id := range leadIDs {
		s.bus.Publish(events.Change{
			Topic:  store.KeyActivityLogs,
			LeadID: id,
			Kind:   KindDelete,
		})
	}
}

// Last returns the most recent activity of a lead.
func (s *Store) Last(ctx context.Context, leadID string) (model.LeadActivity, bool) {
	list := s.load(ctx)[leadID]
	if len(list) == 0 {
		return model.LeadActivity{}, false
	}
	return list[0], true
}

// LastTimes returns the timestamp of the most recent activity of every lead
// that has one.
func (s *Store) LastTimes(ctx context.Context) map[string]time.Time {
	all := s.load(ctx)
	out := make(map[string]time.Time, len(all))
	for id, list := range all {
		if len(list) > 0 {
			out[id] = list[0].Timestamp
		}
	}
	return out
}

// HasOpened reports whether an open was already recorded for the email.
func (s *Store) HasOpened(ctx context.Context, leadID, emailID string) bool {
	for _, a := range s.load(ctx)[leadID] {
		if a.Type() == model.ActivityEmailOpened && a.EmailID() == emailID {
			return true
		}
	}
	return false
}

// AppendOpenOnce records an EmailOpened activity unless one already exists
// for the email. It reports whether an activity was added.
func (s *Store) AppendOpenOnce(ctx context.Context, leadID, emailID string) bool {
	s.mu.Lock()
	all := s.load(ctx)
	for _, a := range all[leadID] {
		if a.Type() == model.ActivityEmailOpened && a.EmailID() == emailID {
			s.mu.Unlock()
			return false
		}
	}
	a := s.appendLocked(ctx, all, leadID, model.EmailOpenedDetails{EmailID: emailID})
	s.mu.Unlock()

	s.published(leadID, a)
	return true
}
