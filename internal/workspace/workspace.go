// Package workspace implements the lead workspace: the lead book, follow-up
// composer, templates, discovery, analytics and assistant chat. Collections
// live in the KV store; every mutation is announced on the change bus.
package workspace

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/leadproton/server/internal/activity"
	"github.com/leadproton/server/internal/csvcodec"
	"github.com/leadproton/server/internal/events"
	"github.com/leadproton/server/internal/gateway"
	"github.com/leadproton/server/internal/mail"
	"github.com/leadproton/server/internal/model"
	"github.com/leadproton/server/internal/store"
	"github.com/leadproton/server/internal/tracking"
	"github.com/leadproton/server/pkg/logger"
	"github.com/leadproton/server/pkg/metrics"
)

// Domain errors.
var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidInput = errors.New("invalid input")
)

// Change kinds published for the leads, templates and scheduledEmails topics.
const (
	KindSaved    = "saved"
	KindDeleted  = "deleted"
	KindReloaded = "reloaded"
)

// Deps are the collaborators of a Workspace. Bus, Gateway, Mailer and
// Tracker are optional.
type Deps struct {
	KV         store.KV
	Bus        *events.Bus
	Activities *activity.Store
	Gateway    *gateway.Gateway
	Mailer     mail.Sender
	Tracker    *tracking.Injector
	Logger     *logger.Logger
}

// Workspace serves the lead workspace operations.
type Workspace struct {
	kv         store.KV
	bus        *events.Bus
	activities *activity.Store
	gateway    *gateway.Gateway
	mailer     mail.Sender
	tracker    *tracking.Injector
	csv        *csvcodec.Codec
	logger     *logger.Logger

	// Chats holds the assistant chat sessions.
	Chats *Chats

	// mu serializes read-modify-write cycles on the collections.
	mu    sync.Mutex
	now   func() time.Time
	newID func() string
}

// New creates a workspace.
func New(d Deps) *Workspace {
	log := logger.OrGlobal(d.Logger)
	if d.Activities == nil {
		d.Activities = activity.NewStore(d.KV, d.Bus, log)
	}
	if d.Gateway == nil {
		d.Gateway = gateway.New(nil, log)
	}
	if d.Mailer == nil {
		d.Mailer = mail.NewLogSender(log)
	}
	if d.Tracker == nil {
		d.Tracker = tracking.NewInjector("")
	}

	return &Workspace{
		kv:         d.KV,
		bus:        d.Bus,
		activities: d.Activities,
		gateway:    d.Gateway,
		mailer:     d.Mailer,
		tracker:    d.Tracker,
		csv:        csvcodec.New(log),
		logger:     log.Named("workspace"),
		Chats:      NewChats(d.Gateway, log),
		now:        func() time.Time { return time.Now().UTC() },
		newID:      uuid.NewString,
	}
}

// Activities returns the activity log store.
func (w *Workspace) Activities() *activity.Store {
	return w.activities
}

// Gateway returns the AI gateway.
func (w *Workspace) Gateway() *gateway.Gateway {
	return w.gateway
}

// load reads a collection. Read failures are logged and yield an empty
// collection.
func (w *Workspace) load(ctx context.Context, key string, v any) {
	if err := store.LoadJSON(ctx, w.kv, key, v); err != nil {
		w.logger.Error("failed to read collection", zap.String("key", key), zap.Error(err))
		metrics.RecordStorageError(key, "read")
	}
}

func (w *Workspace) save(ctx context.Context, key string, v any) error {
	if err := store.SaveJSON(ctx, w.kv, key, v); err != nil {
		w.logger.Error("failed to save collection", zap.String("key", key), zap.Error(err))
		metrics.RecordStorageError(key, "write")
		return err
	}
	return nil
}

func (w *Workspace) leads(ctx context.Context) []model.Lead {
	var leads []model.Lead
	w.load(ctx, store.KeyLeads, &leads)
	for i := range leads {
		leads[i].Normalize()
	}
	return leads
}

func (w *Workspace) saveLeads(ctx context.Context, leads []model.Lead, leadIDs ...string) error {
	if leads == nil {
		leads = []model.Lead{}
	}
	if err := w.save(ctx, store.KeyLeads, leads); err != nil {
		return err
	}
	w.publish(store.KeyLeads, KindSaved, leadIDs...)
	return nil
}

func (w *Workspace) publish(topic, kind string, leadIDs ...string) {
	if len(leadIDs) == 0 {
		w.bus.Publish(events.Change{Topic: topic, Kind: kind})
		return
	}
	for _, id := range leadIDs {
		w.bus.Publish(events.Change{Topic: topic, LeadID: id, Kind: kind})
	}
}

func indexOf(leads []model.Lead, id string) int {
	for i := range leads {
		if leads[i].ID == id {
			return i
		}
	}
	return -1
}

// Watch forwards writes made by other processes to the change bus when the
// KV backend can observe them. It blocks until ctx is done.
func (w *Workspace) Watch(ctx context.Context) error {
	watcher, ok := w.kv.(store.Watcher)
	if !ok {
		<-ctx.Done()
		return nil
	}
	return watcher.Watch(ctx, func(key string) {
		w.logger.Debug("collection changed externally", zap.String("key", key))
		w.bus.Publish(events.Change{
			Topic:  key,
			Kind:   KindReloaded,
			Origin: events.OriginRemote,
		})
	})
}
