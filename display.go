package playground

// AgentPhase separates "no agent because not connected" from "no agent yet".
type AgentPhase int

const (
	AgentOffline AgentPhase = iota
	AgentWaiting
	AgentPresent
)

func PhaseOf(state ConnectionState, view AgentView) AgentPhase {
	switch {
	case view.IsConnected:
		return AgentPresent
	case state == StateConnected || state == StateReconnecting:
		return AgentWaiting
	default:
		return AgentOffline
	}
}

type AudioTileState int

const (
	// AudioTileDisconnected: no agent audio track, connect to get started.
	AudioTileDisconnected AudioTileState = iota
	// AudioTileWaiting: connected or connecting, no agent audio track yet.
	AudioTileWaiting
	// AudioTileVisualizer: the agent's audio track can be visualised.
	AudioTileVisualizer
)

func AudioTile(state ConnectionState, view AgentView) AudioTileState {
	if !state.Active() {
		return AudioTileDisconnected
	}
	if view.MicrophoneTrack == nil {
		return AudioTileWaiting
	}
	return AudioTileVisualizer
}

const (
	NoAgentLabel      = "No agent connected"
	WaitingAgentLabel = "Waiting for agent…"
)

func IdentityLabel(state ConnectionState, view AgentView) string {
	switch PhaseOf(state, view) {
	case AgentPresent:
		return view.Identity
	case AgentWaiting:
		return WaitingAgentLabel
	default:
		return NoAgentLabel
	}
}
