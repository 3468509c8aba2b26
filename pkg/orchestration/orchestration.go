// Package orchestration tracks the humans and AI agents collaborating
// through a running instance: who is connected, what they can do, and how
// much each has contributed. It carries no authentication responsibility;
// callers are trusted to have already authorized a participant before
// registering it.
package orchestration

import (
	"sync"
	"time"

	"github.com/agrama/agrama"
	"github.com/agrama/agrama/pkg/events"
)

// ParticipantType distinguishes a human operator from an AI agent.
type ParticipantType string

const (
	Human   ParticipantType = "Human"
	AIAgent ParticipantType = "AIAgent"
)

// Connection names the transport a participant is attached through.
type Connection string

const (
	ConnectionMCP       Connection = "MCP"
	ConnectionWebSocket Connection = "WebSocket"
	ConnectionStdio     Connection = "stdio"
)

// Contribution counts one category of work a participant has performed.
type Contribution string

const (
	ContributionStore    Contribution = "store"
	ContributionLink     Contribution = "link"
	ContributionSearch   Contribution = "search"
	ContributionTransform Contribution = "transform"
)

// Participant is one registered human or agent.
type Participant struct {
	ID           string
	Type         ParticipantType
	Connection   Connection
	Capabilities []string
	JoinedAt     time.Time

	mu            sync.Mutex
	contributions map[Contribution]int64
}

// Contributions returns a defensive copy of this participant's
// contribution counters.
func (p *Participant) Contributions() map[Contribution]int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make(map[Contribution]int64, len(p.contributions))
	for k, v := range p.contributions {
		out[k] = v
	}
	return out
}

// Registry is the participant table for one running instance.
type Registry struct {
	mu           sync.RWMutex
	participants map[string]*Participant
	bus          *events.Bus
}

// NewRegistry returns an empty registry that publishes participant events
// to bus. bus may be nil, in which case events are simply not emitted.
func NewRegistry(bus *events.Bus) *Registry {
	return &Registry{participants: make(map[string]*Participant), bus: bus}
}

type participantEvent struct {
	Action string          `json:"action"`
	ID     string          `json:"id"`
	Type   ParticipantType `json:"type,omitempty"`
}

// AddParticipant registers a new participant. Re-adding an existing id is
// a Conflict: callers must RemoveParticipant first.
func (r *Registry) AddParticipant(id string, typ ParticipantType, conn Connection, capabilities []string, now time.Time) (*Participant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.participants[id]; exists {
		return nil, agrama.NewError(agrama.KindConflict, "add_participant", nil)
	}

	p := &Participant{
		ID:            id,
		Type:          typ,
		Connection:    conn,
		Capabilities:  append([]string(nil), capabilities...),
		JoinedAt:      now,
		contributions: make(map[Contribution]int64),
	}
	r.participants[id] = p
	r.publish(participantEvent{Action: "joined", ID: id, Type: typ}, now)
	return p, nil
}

// RemoveParticipant deregisters a participant. Removing an absent id is a
// no-op, matching the dispatcher's other idempotent teardown paths.
func (r *Registry) RemoveParticipant(id string, now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.participants[id]; !exists {
		return
	}
	delete(r.participants, id)
	r.publish(participantEvent{Action: "left", ID: id}, now)
}

// RecordContribution increments a participant's counter for kind by delta.
// Returns NotFound if id is not registered.
func (r *Registry) RecordContribution(id string, kind Contribution, delta int64) error {
	r.mu.RLock()
	p, ok := r.participants[id]
	r.mu.RUnlock()
	if !ok {
		return agrama.NewError(agrama.KindNotFound, "record_contribution", nil)
	}

	p.mu.Lock()
	p.contributions[kind] += delta
	p.mu.Unlock()
	return nil
}

// Get returns the participant for id, or nil if absent.
func (r *Registry) Get(id string) *Participant {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.participants[id]
}

// Count returns the number of currently registered participants.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.participants)
}

func (r *Registry) publish(payload any, now time.Time) {
	if r.bus == nil {
		return
	}
	r.bus.Publish(events.New(events.TypeParticipant, payload, now.UnixMilli()))
}
