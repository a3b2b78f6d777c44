package fanout

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHub_PublishDeliversOnlyToSubscribedTeam(t *testing.T) {
	h := NewHub(4)
	events, unsubscribe := h.Subscribe("team-1")
	defer unsubscribe()

	h.Publish("team-1", EventNewOrderAck, "ack-1")
	h.Publish("team-2", EventNewOrderAck, "ack-2")

	select {
	case evt := <-events:
		assert.Equal(t, "ack-1", evt.Data)
	default:
		t.Fatal("expected an event for team-1")
	}

	select {
	case <-events:
		t.Fatal("team-1's channel should not have received team-2's event")
	default:
	}
}

func TestHub_BroadcastReachesEveryBroadcastSubscriber(t *testing.T) {
	h := NewHub(4)
	a, unsubA := h.SubscribeBroadcast()
	b, unsubB := h.SubscribeBroadcast()
	defer unsubA()
	defer unsubB()

	h.Broadcast(EventPhaseChange, "continuous")

	evtA := <-a
	evtB := <-b
	assert.Equal(t, "continuous", evtA.Data)
	assert.Equal(t, "continuous", evtB.Data)
}

func TestHub_DropsEventWhenSubscriberBufferFull(t *testing.T) {
	h := NewHub(1)
	_, unsubscribe := h.Subscribe("team-1")
	defer unsubscribe()

	h.Publish("team-1", EventNewOrderAck, "first")
	h.Publish("team-1", EventNewOrderAck, "second")

	assert.Equal(t, uint64(1), h.Dropped())
}

func TestHub_UnsubscribeClosesChannel(t *testing.T) {
	h := NewHub(4)
	events, unsubscribe := h.Subscribe("team-1")
	unsubscribe()

	_, ok := <-events
	assert.False(t, ok, "channel should be closed after unsubscribe")
}

func TestEvent_MarshalJSONRendersKindAsWireName(t *testing.T) {
	evt := Event{Seq: 7, Type: EventExecutionReport, Data: map[string]int{"qty": 10}}
	data, err := json.Marshal(evt)
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "execution_report", decoded["type"])
	assert.Equal(t, float64(7), decoded["seq"])
}
