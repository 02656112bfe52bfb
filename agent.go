package playground

import (
	"maps"
	"slices"
)

// AgentStateAttribute is the participant attribute an agent uses to report
// what it is doing.
const AgentStateAttribute = "lk.agent.state"

type AgentState string

const (
	AgentStateIdle         AgentState = "idle"
	AgentStateInitializing AgentState = "initializing"
	AgentStateListening    AgentState = "listening"
	AgentStateThinking     AgentState = "thinking"
	AgentStateSpeaking     AgentState = "speaking"
)

// ParseAgentState maps the self-reported attribute value to an AgentState.
// Anything unrecognised is idle.
func ParseAgentState(raw string) AgentState {
	switch s := AgentState(raw); s {
	case AgentStateInitializing, AgentStateListening, AgentStateThinking, AgentStateSpeaking:
		return s
	default:
		return AgentStateIdle
	}
}

// AgentView is the read-only summary of the agent. The zero value is the
// fully unset view.
type AgentView struct {
	IsConnected     bool
	Identity        string
	MicrophoneTrack *TrackRef
	State           AgentState
}

func (v AgentView) Equal(o AgentView) bool {
	if v.IsConnected != o.IsConnected || v.Identity != o.Identity || v.State != o.State {
		return false
	}
	if v.MicrophoneTrack == nil || o.MicrophoneTrack == nil {
		return v.MicrophoneTrack == o.MicrophoneTrack
	}
	return *v.MicrophoneTrack == *o.MicrophoneTrack
}

// AgentMatcher decides whether a participant is the agent.
type AgentMatcher func(Participant) bool

func IsAgentParticipant(p Participant) bool {
	return p.Kind == ParticipantKindAgent
}

type participantRecord struct {
	present    bool
	identity   string
	kind       ParticipantKind
	attributes map[string]string
	tracks     map[string]TrackInfo
}

func (r *participantRecord) snapshot() Participant {
	p := Participant{
		Identity:   r.identity,
		Kind:       r.kind,
		Attributes: maps.Clone(r.attributes),
	}
	for _, sid := range slices.Sorted(maps.Keys(r.tracks)) {
		p.Tracks = append(p.Tracks, r.tracks[sid])
	}
	return p
}

func (r *participantRecord) microphoneTrack() *TrackRef {
	var best *TrackInfo
	for _, sid := range slices.Sorted(maps.Keys(r.tracks)) {
		t := r.tracks[sid]
		if t.Kind != TrackKindAudio {
			continue
		}
		if best == nil || (best.Source != TrackSourceMicrophone && t.Source == TrackSourceMicrophone) {
			best = &t
		}
	}
	if best == nil {
		return nil
	}
	return &TrackRef{ParticipantIdentity: r.identity, Track: *best}
}

// PresenceTracker folds participant and track events into an AgentView.
// It is not safe for concurrent use; Session serialises access.
type PresenceTracker struct {
	match        AgentMatcher
	participants map[string]*participantRecord
}

func NewPresenceTracker(match AgentMatcher) *PresenceTracker {
	if match == nil {
		match = IsAgentParticipant
	}
	return &PresenceTracker{
		match:        match,
		participants: make(map[string]*participantRecord),
	}
}

func (t *PresenceTracker) record(p Participant) *participantRecord {
	r, ok := t.participants[p.Identity]
	if !ok {
		r = &participantRecord{
			identity:   p.Identity,
			kind:       p.Kind,
			attributes: maps.Clone(p.Attributes),
			tracks:     make(map[string]TrackInfo),
		}
		t.participants[p.Identity] = r
	}
	return r
}

// Seed marks every participant as present, as if each had just joined.
func (t *PresenceTracker) Seed(participants []Participant) {
	for _, p := range participants {
		t.Apply(ParticipantJoined(p))
	}
}

// Apply folds a single event in. Events that do not concern participants
// are ignored. It reports whether the event was relevant.
func (t *PresenceTracker) Apply(ev Event) bool {
	p := ev.Participant
	if p.Identity == "" {
		return false
	}
	switch ev.Type {
	case EventParticipantJoined:
		r := t.record(p)
		r.present = true
		r.kind = p.Kind
		if p.Attributes != nil {
			r.attributes = maps.Clone(p.Attributes)
		}
		for _, track := range p.Tracks {
			r.tracks[track.SID] = track
		}
	case EventParticipantLeft:
		delete(t.participants, p.Identity)
	case EventTrackPublished:
		if ev.Track.SID == "" {
			return false
		}
		t.record(p).tracks[ev.Track.SID] = ev.Track
	case EventTrackUnpublished:
		if r, ok := t.participants[p.Identity]; ok {
			delete(r.tracks, ev.Track.SID)
		}
	case EventAttributesChanged:
		t.record(p).attributes = maps.Clone(p.Attributes)
	default:
		return false
	}
	return true
}

func (t *PresenceTracker) Reset() {
	clear(t.participants)
}

// agent returns the agent record when exactly one present participant
// matches.
func (t *PresenceTracker) agent() (*participantRecord, bool) {
	var found *participantRecord
	for _, r := range t.participants {
		if !r.present || !t.match(r.snapshot()) {
			continue
		}
		if found != nil {
			return nil, false
		}
		found = r
	}
	return found, found != nil
}

// Agent returns the agent participant snapshot, if one is resolved.
func (t *PresenceTracker) Agent() (Participant, bool) {
	r, ok := t.agent()
	if !ok {
		return Participant{}, false
	}
	return r.snapshot(), true
}

func (t *PresenceTracker) View() AgentView {
	r, ok := t.agent()
	if !ok {
		return AgentView{}
	}
	return AgentView{
		IsConnected:     true,
		Identity:        r.identity,
		MicrophoneTrack: r.microphoneTrack(),
		State:           ParseAgentState(r.attributes[AgentStateAttribute]),
	}
}
