package tools

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/bt-bridge/agent-playground/shared"
	"github.com/pion/mediadevices"
	"github.com/pion/webrtc/v4"
	"github.com/pion/webrtc/v4/pkg/media"
	"go.uber.org/zap"
)

// StreamLocalAudio copies encoded frames from mediaTrack into track until
// ctx is done or the media track ends. Each sample's duration is derived
// from its sample count, falling back to frameDuration.
func StreamLocalAudio(ctx context.Context, logger shared.LoggerAdapter, track *webrtc.TrackLocalStaticSample, mediaTrack mediadevices.Track, sampleRate int, frameDuration time.Duration) error {
	reader, err := mediaTrack.NewEncodedReader(track.Codec().MimeType)
	if err != nil {
		return fmt.Errorf("creating media track reader: %w", err)
	}
	defer func() {
		if err := reader.Close(); err != nil {
			logger.Warn("closing media track reader", zap.Error(err))
		}
	}()
	var written int
	for {
		select {
		case <-ctx.Done():
			logger.Debug("local audio stream stopped", zap.Int("samples_written", written))
			return ctx.Err()
		default:
		}
		buf, release, err := reader.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			logger.Error("reading from media track", err)
			continue
		}
		if buf.Samples == 0 {
			release()
			continue
		}
		duration := FrameDuration(int(buf.Samples), sampleRate, 1)
		if duration == 0 {
			duration = frameDuration
		}
		err = track.WriteSample(media.Sample{
			Data:     buf.Data,
			Duration: duration,
		})
		release()
		if err != nil {
			logger.Error("failed to write sample to track", err)
			continue
		}
		written++
	}
}
