package nats

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leadproton/server/internal/config"
	"github.com/leadproton/server/internal/events"
	"github.com/leadproton/server/pkg/logger"
)

func TestConfigFrom(t *testing.T) {
	cfg := config.Defaults()
	cfg.NATSURL = "nats://localhost:4222"
	cfg.NATSToken = "s3cret"
	cfg.NATSCAFile = "ca.pem"

	got := ConfigFrom(cfg)
	assert.Equal(t, "nats://localhost:4222", got.URL)
	assert.Equal(t, "s3cret", got.Token)
	assert.False(t, got.mutualTLS(), "mutual TLS needs all three files")

	got.CertFile, got.KeyFile = "cert.pem", "key.pem"
	assert.True(t, got.mutualTLS())
}

func TestConnect_RequiresURL(t *testing.T) {
	_, err := Connect(context.Background(), Config{}, logger.NewNop())
	require.Error(t, err)
}

func TestChangeSubject(t *testing.T) {
	assert.Equal(t, "leadproton.changes.leadActivityLogs", ChangeSubject("leadActivityLogs"))
}

func TestBridge_ReceiveRepublishesRemoteChanges(t *testing.T) {
	bus := events.NewBus()
	b := NewBridge(nil, bus, logger.NewNop())

	var got []events.Change
	bus.Subscribe("", func(c events.Change) { got = append(got, c) })

	remote, err := json.Marshal(events.Change{
		Topic:  "leads",
		Kind:   "save",
		Origin: events.OriginLocal,
		Source: "other-process",
	})
	require.NoError(t, err)
	b.Receive(remote)

	require.Len(t, got, 1)
	assert.Equal(t, events.OriginRemote, got[0].Origin)
	assert.Equal(t, "leads", got[0].Topic)
}

func TestBridge_ReceiveDropsEchoesAndGarbage(t *testing.T) {
	bus := events.NewBus()
	b := NewBridge(nil, bus, logger.NewNop())

	calls := 0
	bus.Subscribe("", func(events.Change) { calls++ })

	echo, err := json.Marshal(events.Change{Topic: "leads", Source: b.Source()})
	require.NoError(t, err)
	b.Receive(echo)
	b.Receive([]byte("not json"))
	b.Receive([]byte(`{"topic":"  ","source":"x"}`))

	assert.Zero(t, calls)
}

func TestBridge_ForwardSkipsRemoteOrigin(t *testing.T) {
	b := NewBridge(nil, events.NewBus(), logger.NewNop())

	// With a nil client any attempt to publish would panic.
	err := b.Forward(context.Background(), events.Change{Topic: "leads", Origin: events.OriginRemote})
	assert.NoError(t, err)
}
