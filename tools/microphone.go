package tools

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bt-bridge/agent-playground/shared"
	"github.com/pion/mediadevices"
	"github.com/pion/mediadevices/pkg/codec/opus"
	_ "github.com/pion/mediadevices/pkg/driver/microphone"
	"github.com/pion/mediadevices/pkg/prop"
	"github.com/pion/webrtc/v4"
	"go.uber.org/zap"
)

const microphoneSampleRate = 48000

// Microphone captures the default input device and encodes it as Opus.
// The device is opened lazily on the first Stream call.
type Microphone struct {
	logger shared.LoggerAdapter

	mu      sync.Mutex
	track   mediadevices.Track
	latency time.Duration
}

func NewMicrophone(logger shared.LoggerAdapter) *Microphone {
	return &Microphone{logger: logger.With(zap.String("component", "microphone"))}
}

func (m *Microphone) open() (mediadevices.Track, time.Duration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.track != nil {
		return m.track, m.latency, nil
	}
	opusParams, err := opus.NewParams()
	if err != nil {
		return nil, 0, fmt.Errorf("creating opus params: %w", err)
	}
	stream, err := mediadevices.GetUserMedia(mediadevices.MediaStreamConstraints{
		Audio: func(c *mediadevices.MediaTrackConstraints) {
			c.SampleRate = prop.Int(microphoneSampleRate)
			c.ChannelCount = prop.Int(1)
			c.SampleSize = prop.Int(16)
		},
		Codec: mediadevices.NewCodecSelector(
			mediadevices.WithAudioEncoders(&opusParams),
		),
	})
	if err != nil {
		return nil, 0, fmt.Errorf("getting microphone stream: %w: %w", shared.ErrDeviceUnavailable, err)
	}
	tracks := stream.GetAudioTracks()
	if len(tracks) == 0 {
		return nil, 0, fmt.Errorf("no audio track in microphone stream: %w", shared.ErrDeviceUnavailable)
	}
	m.track = tracks[0]
	m.latency = time.Duration(opusParams.Latency)
	m.logger.Info("microphone opened",
		zap.Duration("frame", m.latency),
		zap.Int("frame_samples", FrameSamples(m.latency, microphoneSampleRate, 1)),
	)
	return m.track, m.latency, nil
}

// Open acquires the input device. It is safe to call repeatedly.
func (m *Microphone) Open() error {
	_, _, err := m.open()
	return err
}

// Stream feeds the microphone into track until ctx is done.
func (m *Microphone) Stream(ctx context.Context, track *webrtc.TrackLocalStaticSample) error {
	mediaTrack, latency, err := m.open()
	if err != nil {
		return err
	}
	return StreamLocalAudio(ctx, m.logger, track, mediaTrack, microphoneSampleRate, latency)
}

func (m *Microphone) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.track == nil {
		return nil
	}
	err := m.track.Close()
	m.track = nil
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("closing microphone: %w", err)
	}
	return nil
}
