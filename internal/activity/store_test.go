package activity

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leadproton/server/internal/events"
	"github.com/leadproton/server/internal/model"
	"github.com/leadproton/server/internal/store"
	"github.com/leadproton/server/pkg/logger"
)

func newTestStore(kv store.KV, bus *events.Bus) *Store {
	s := NewStore(kv, bus, logger.NewNop())
	base := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	n := 0
	s.now = func() time.Time {
		n++
		return base.Add(time.Duration(n) * time.Minute)
	}
	ids := 0
	s.newID = func() string {
		ids++
		return fmt.Sprintf("act-%d", ids)
	}
	return s
}

func TestAppendThenList_NewestFirst(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(store.NewMemory(), nil)

	s.Append(ctx, "L1", model.CreatedDetails{Note: "Lead created manually."})
	sent := s.Append(ctx, "L1", model.EmailSentDetails{Subject: "Hi", Body: "<p>x</p>", EmailID: "E1", Note: "Email sent"})

	list := s.List(ctx, "L1")
	require.Len(t, list, 2)
	assert.Equal(t, sent.ID, list[0].ID)
	assert.Equal(t, model.ActivityEmailSent, list[0].Type())
	assert.Equal(t, model.ActivityCreated, list[1].Type())
	assert.Equal(t, "E1", list[0].EmailID())
}

func TestDeleteAll(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(store.NewMemory(), nil)

	s.Append(ctx, "L1", model.NoteAddedDetails{Note: "a"})
	s.Append(ctx, "L2", model.NoteAddedDetails{Note: "b"})
	s.DeleteAll(ctx, "L1")

	assert.Empty(t, s.List(ctx, "L1"))
	assert.NotNil(t, s.List(ctx, "L1"))
	assert.Len(t, s.List(ctx, "L2"), 1)
}

func TestAppend_PersistsOriginalWireShape(t *testing.T) {
	ctx := context.Background()
	kv := store.NewMemory()
	s := newTestStore(kv, nil)

	s.Append(ctx, "L1", model.LinkClickedDetails{URL: "https://acme.io", EmailID: "E1"})

	raw, err := kv.Get(ctx, store.KeyActivityLogs)
	require.NoError(t, err)
	assert.JSONEq(t, `{"L1":[{
		"id":"act-1",
		"type":"Link Clicked",
		"timestamp":"2024-03-01T09:01:00Z",
		"details":{"url":"https://acme.io","emailId":"E1"}
	}]}`, string(raw))
}

func TestAppend_PublishesChange(t *testing.T) {
	ctx := context.Background()
	bus := events.NewBus()
	s := newTestStore(store.NewMemory(), bus)

	var got []events.Change
	bus.Subscribe(store.KeyActivityLogs, func(c events.Change) { got = append(got, c) })

	s.Append(ctx, "L1", model.NoteAddedDetails{Note: "n"})
	s.DeleteAll(ctx, "L1")

	require.Len(t, got, 2)
	assert.Equal(t, KindAppend, got[0].Kind)
	assert.Equal(t, "L1", got[0].LeadID)
	assert.Contains(t, string(got[0].Payload), `"Note Added"`)
	assert.Equal(t, KindDelete, got[1].Kind)
}

func TestCorruptLog_FailsOpen(t *testing.T) {
	ctx := context.Background()
	kv := store.NewMemory()
	require.NoError(t, kv.Put(ctx, store.KeyActivityLogs, []byte("{broken")))
	s := newTestStore(kv, nil)

	assert.Empty(t, s.List(ctx, "L1"))

	s.Append(ctx, "L1", model.NoteAddedDetails{Note: "after"})
	assert.Len(t, s.List(ctx, "L1"), 1)
}

type failingKV struct{ store.KV }

func (failingKV) Get(context.Context, string) ([]byte, error) { return nil, errors.New("disk gone") }
func (failingKV) Put(context.Context, string, []byte) error    { return errors.New("disk gone") }

func TestStorageFailures_AreSwallowed(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(failingKV{store.NewMemory()}, nil)

	a := s.Append(ctx, "L1", model.NoteAddedDetails{Note: "x"})
	assert.NotEmpty(t, a.ID)
	assert.Empty(t, s.List(ctx, "L1"))
}

func TestOpens(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(store.NewMemory(), nil)

	assert.False(t, s.HasOpened(ctx, "L1", "E1"))
	assert.True(t, s.AppendOpenOnce(ctx, "L1", "E1"))
	assert.False(t, s.AppendOpenOnce(ctx, "L1", "E1"))
	assert.True(t, s.HasOpened(ctx, "L1", "E1"))
	assert.False(t, s.HasOpened(ctx, "L1", "E2"))
	assert.Len(t, s.List(ctx, "L1"), 1)
}

func TestLastAndLastTimes(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(store.NewMemory(), nil)

	_, ok := s.Last(ctx, "L1")
	assert.False(t, ok)

	s.Append(ctx, "L1", model.NoteAddedDetails{Note: "first"})
	second := s.Append(ctx, "L1", model.NoteAddedDetails{Note: "second"})

	last, ok := s.Last(ctx, "L1")
	require.True(t, ok)
	assert.Equal(t, second.ID, last.ID)
	assert.Equal(t, map[string]time.Time{"L1": second.Timestamp}, s.LastTimes(ctx))
}
