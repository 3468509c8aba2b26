package orchestration

import (
	"testing"
	"time"

	"github.com/agrama/agrama"
	"github.com/agrama/agrama/pkg/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddParticipantThenGet(t *testing.T) {
	r := NewRegistry(nil)
	now := time.Now()

	p, err := r.AddParticipant("agent-1", AIAgent, ConnectionMCP, []string{"search", "link"}, now)
	require.NoError(t, err)
	assert.Equal(t, AIAgent, p.Type)
	assert.Same(t, p, r.Get("agent-1"))
	assert.Equal(t, 1, r.Count())
}

func TestAddParticipantDuplicateIsConflict(t *testing.T) {
	r := NewRegistry(nil)
	now := time.Now()
	_, err := r.AddParticipant("agent-1", AIAgent, ConnectionMCP, nil, now)
	require.NoError(t, err)

	_, err = r.AddParticipant("agent-1", Human, ConnectionWebSocket, nil, now)
	require.Error(t, err)
	assert.Equal(t, agrama.KindConflict, agrama.KindOf(err))
}

func TestRemoveParticipantThenGetReturnsNil(t *testing.T) {
	r := NewRegistry(nil)
	now := time.Now()
	_, err := r.AddParticipant("agent-1", AIAgent, ConnectionMCP, nil, now)
	require.NoError(t, err)

	r.RemoveParticipant("agent-1", now)
	assert.Nil(t, r.Get("agent-1"))
	assert.Equal(t, 0, r.Count())
}

func TestRemoveAbsentParticipantIsNoOp(t *testing.T) {
	r := NewRegistry(nil)
	r.RemoveParticipant("ghost", time.Now())
	assert.Equal(t, 0, r.Count())
}

func TestRecordContributionAccumulates(t *testing.T) {
	r := NewRegistry(nil)
	now := time.Now()
	p, err := r.AddParticipant("agent-1", AIAgent, ConnectionMCP, nil, now)
	require.NoError(t, err)

	require.NoError(t, r.RecordContribution("agent-1", ContributionStore, 3))
	require.NoError(t, r.RecordContribution("agent-1", ContributionStore, 2))
	require.NoError(t, r.RecordContribution("agent-1", ContributionLink, 1))

	counts := p.Contributions()
	assert.Equal(t, int64(5), counts[ContributionStore])
	assert.Equal(t, int64(1), counts[ContributionLink])
}

func TestRecordContributionAbsentParticipantIsNotFound(t *testing.T) {
	r := NewRegistry(nil)
	err := r.RecordContribution("ghost", ContributionStore, 1)
	require.Error(t, err)
	assert.Equal(t, agrama.KindNotFound, agrama.KindOf(err))
}

func TestAddAndRemoveEmitParticipantEvents(t *testing.T) {
	bus := events.NewBus(8)
	ch, unsubscribe := bus.Subscribe()
	defer unsubscribe()

	r := NewRegistry(bus)
	now := time.Now()
	_, err := r.AddParticipant("agent-1", AIAgent, ConnectionMCP, nil, now)
	require.NoError(t, err)
	r.RemoveParticipant("agent-1", now)

	joined := <-ch
	left := <-ch
	assert.Equal(t, events.TypeParticipant, joined.Type)
	assert.Equal(t, events.TypeParticipant, left.Type)
}
