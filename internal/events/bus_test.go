package events

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBus_TopicFiltering(t *testing.T) {
	bus := NewBus()

	var all, logs []Change
	bus.Subscribe("", func(c Change) { all = append(all, c) })
	bus.Subscribe("leadActivityLogs", func(c Change) { logs = append(logs, c) })

	bus.Publish(Change{Topic: "leads", Kind: "save"})
	bus.Publish(Change{Topic: "leadActivityLogs", LeadID: "L1", Kind: "append"})

	assert.Len(t, all, 2)
	assert.Len(t, logs, 1)
	assert.Equal(t, "L1", logs[0].LeadID)
	assert.Equal(t, OriginLocal, logs[0].Origin)
}

func TestBus_Unsubscribe(t *testing.T) {
	bus := NewBus()

	calls := 0
	unsubscribe := bus.Subscribe("leads", func(Change) { calls++ })

	bus.Publish(Change{Topic: "leads"})
	unsubscribe()
	unsubscribe()
	bus.Publish(Change{Topic: "leads"})

	assert.Equal(t, 1, calls)
}

func TestBus_ConcurrentPublish(t *testing.T) {
	bus := NewBus()

	var mu sync.Mutex
	count := 0
	bus.Subscribe("", func(Change) {
		mu.Lock()
		count++
		mu.Unlock()
	})

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			bus.Publish(Change{Topic: "leads"})
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, count)
}

func TestBus_NilPublishIsNoop(t *testing.T) {
	var bus *Bus
	assert.NotPanics(t, func() { bus.Publish(Change{Topic: "leads"}) })
}
