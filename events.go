package playground

import "go.uber.org/zap"

type EventType string

const (
	EventParticipantJoined EventType = "participant.joined"
	EventParticipantLeft   EventType = "participant.left"
	EventTrackPublished    EventType = "track.published"
	EventTrackUnpublished  EventType = "track.unpublished"
	EventAttributesChanged EventType = "participant.attributes_changed"
	EventMessageReceived   EventType = "chat.message_received"
	EventReconnecting      EventType = "connection.reconnecting"
	EventReconnected       EventType = "connection.reconnected"
	EventDisconnected      EventType = "connection.disconnected"
)

// Event is a single observation from the transport. Which fields are
// meaningful depends on Type:
//
//	participant.*      Participant
//	track.*            Participant, Track
//	chat.*             Message
//	connection.*       Reason (disconnected only)
type Event struct {
	Type        EventType
	Participant Participant
	Track       TrackInfo
	Message     ChatMessage
	Reason      string
}

func ParticipantJoined(p Participant) Event {
	return Event{Type: EventParticipantJoined, Participant: p}
}

func ParticipantLeft(p Participant) Event {
	return Event{Type: EventParticipantLeft, Participant: p}
}

func TrackPublished(p Participant, track TrackInfo) Event {
	return Event{Type: EventTrackPublished, Participant: p, Track: track}
}

func TrackUnpublished(p Participant, track TrackInfo) Event {
	return Event{Type: EventTrackUnpublished, Participant: p, Track: track}
}

func AttributesChanged(p Participant) Event {
	return Event{Type: EventAttributesChanged, Participant: p}
}

func MessageReceived(msg ChatMessage) Event {
	return Event{Type: EventMessageReceived, Message: msg}
}

func Disconnected(reason string) Event {
	return Event{Type: EventDisconnected, Reason: reason}
}

func (e Event) logFields() []zap.Field {
	fields := []zap.Field{zap.String("type", string(e.Type))}
	if e.Participant.Identity != "" {
		fields = append(fields,
			zap.String("participant", e.Participant.Identity),
			zap.Stringer("kind", e.Participant.Kind),
		)
	}
	if e.Track.SID != "" {
		fields = append(fields,
			zap.String("track_sid", e.Track.SID),
			zap.String("track_kind", string(e.Track.Kind)),
		)
	}
	if e.Reason != "" {
		fields = append(fields, zap.String("reason", e.Reason))
	}
	return fields
}
