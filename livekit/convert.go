package livekit

import (
	playground "github.com/bt-bridge/agent-playground"
	"github.com/livekit/protocol/livekit"
	lksdk "github.com/livekit/server-sdk-go/v2"
)

func toParticipant(rp *lksdk.RemoteParticipant) playground.Participant {
	p := playground.Participant{
		Identity:   rp.Identity(),
		Name:       rp.Name(),
		Kind:       toKind(rp.Kind()),
		Attributes: rp.Attributes(),
	}
	for _, pub := range rp.TrackPublications() {
		p.Tracks = append(p.Tracks, toTrack(pub))
	}
	return p
}

func toTrack(pub lksdk.TrackPublication) playground.TrackInfo {
	return playground.TrackInfo{
		SID:    pub.SID(),
		Name:   pub.Name(),
		Kind:   toTrackKind(pub.Kind()),
		Source: toSource(pub.Source()),
		Muted:  pub.IsMuted(),
	}
}

func toKind(k lksdk.ParticipantKind) playground.ParticipantKind {
	switch k {
	case lksdk.ParticipantAgent:
		return playground.ParticipantKindAgent
	case lksdk.ParticipantSIP:
		return playground.ParticipantKindSIP
	case lksdk.ParticipantIngress:
		return playground.ParticipantKindIngress
	case lksdk.ParticipantEgress:
		return playground.ParticipantKindEgress
	default:
		return playground.ParticipantKindStandard
	}
}

func toTrackKind(k lksdk.TrackKind) playground.TrackKind {
	if k == lksdk.TrackKindVideo {
		return playground.TrackKindVideo
	}
	return playground.TrackKindAudio
}

func toSource(s livekit.TrackSource) playground.TrackSource {
	switch s {
	case livekit.TrackSource_MICROPHONE:
		return playground.TrackSourceMicrophone
	case livekit.TrackSource_CAMERA:
		return playground.TrackSourceCamera
	case livekit.TrackSource_SCREEN_SHARE, livekit.TrackSource_SCREEN_SHARE_AUDIO:
		return playground.TrackSourceScreenShare
	default:
		return playground.TrackSourceUnknown
	}
}
