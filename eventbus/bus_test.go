package eventbus_test

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowstack/orchestrator/core"
	"github.com/flowstack/orchestrator/eventbus"
)

func TestBus_PublishDeliversToLiveSubscriber(t *testing.T) {
	bus := eventbus.New("exec-1", 4)
	ch, unsub, _ := subscribe(t, bus)
	defer unsub()

	bus.Publish(eventbus.ExecutionStartEvent("exec-1", "thread-1"))

	select {
	case ev := <-ch:
		assert.Equal(t, eventbus.ExecutionStart, ev.Name)
		assert.Equal(t, "thread-1", ev.Data["thread_id"])
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestBus_OnlyMostRecentSubscriberIsLive(t *testing.T) {
	bus := eventbus.New("exec-1", 4)
	first, _, _ := subscribe(t, bus)
	second, unsubSecond, _ := subscribe(t, bus)
	defer unsubSecond()

	bus.Publish(eventbus.NodeStartEvent("exec-1", "n1", 1, "digest"))

	select {
	case <-first:
		t.Fatal("stale subscriber should not receive events once superseded")
	default:
	}
	select {
	case ev := <-second:
		assert.Equal(t, eventbus.NodeStart, ev.Name)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event on the live subscriber")
	}
}

func TestBus_FullMailboxDropsRatherThanBlocks(t *testing.T) {
	bus := eventbus.New("exec-1", 1)
	_, unsub, _ := subscribe(t, bus)
	defer unsub()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			bus.Publish(eventbus.NodeStartEvent("exec-1", "n1", i, "d"))
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked on a full subscriber mailbox")
	}
}

func TestBus_UnsubscribeClosesChannel(t *testing.T) {
	bus := eventbus.New("exec-1", 4)
	ch, unsub, _ := subscribe(t, bus)
	unsub()

	_, ok := <-ch
	assert.False(t, ok)
}

func TestRecorder_DrainClearsAccumulatedEvents(t *testing.T) {
	rec := eventbus.NewRecorder()
	assert.Empty(t, rec.Drain())
	rec.Record(core.StepEvent{Kind: "tool_call", ToolID: "t"})
	assert.Len(t, rec.Drain(), 1)
	assert.Empty(t, rec.Drain())
}

func TestWriteSSE_EncodesNameAndJSONPayload(t *testing.T) {
	var buf bytes.Buffer
	ev := eventbus.ExecutionCompleteEvent("exec-1", "COMPLETED", map[string]any{"x": 1})
	require.NoError(t, eventbus.WriteSSE(&buf, ev))

	out := buf.String()
	assert.True(t, strings.HasPrefix(out, "event: execution_complete\n"))
	assert.Contains(t, out, `"status":"COMPLETED"`)
	assert.True(t, strings.HasSuffix(out, "\n\n"))
}

func TestStreamTo_StopsAfterExecutionComplete(t *testing.T) {
	events := make(chan eventbus.Event, 2)
	events <- eventbus.NodeCompleteEvent("exec-1", "n1", 1, "d")
	events <- eventbus.ExecutionCompleteEvent("exec-1", "COMPLETED", nil)
	close(events)

	var buf bytes.Buffer
	require.NoError(t, eventbus.StreamTo(&buf, events))
	assert.Contains(t, buf.String(), "event: node_complete")
	assert.Contains(t, buf.String(), "event: execution_complete")
}

func subscribe(t *testing.T, bus *eventbus.Bus) (<-chan eventbus.Event, func(), bool) {
	t.Helper()
	ch, unsub := bus.Subscribe("sub-" + t.Name())
	return ch, unsub, true
}
