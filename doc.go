// # Go Client Package for Voice Agent Sessions
//
// This repository provides the client-side orchestration of an interactive voice-agent session: it opens a real-time room session against a remote agent, keeps a derived view of the agent's presence, audio track and speaking state, applies the user's camera and microphone intents, relays chat messages and performs one-shot RPC calls against the connected agent. The realtime channel and the credential source are consumed through narrow interfaces; the livekit package provides implementations backed by LiveKit.
package playground
