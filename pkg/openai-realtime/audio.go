package openairealtime

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/pion/rtp"
	"github.com/pion/webrtc/v3"
	"github.com/pion/webrtc/v3/pkg/media"
	"github.com/pion/webrtc/v3/pkg/media/oggreader"
	"github.com/pion/webrtc/v3/pkg/media/oggwriter"
)

// Opus parameters used on the peer connection.
const (
	opusSampleRate   = 48000
	opusChannels     = 2
	opusFrameLength  = 20 * time.Millisecond
	localAudioStream = "rtconsole"
)

// opusSilence is one 20ms Opus frame of silence.
var opusSilence = []byte{0xf8, 0xff, 0xfe}

// AudioSource feeds the local audio track, standing in for a microphone.
type AudioSource interface {
	// Stream writes samples to track until ctx is done or the source ends.
	Stream(ctx context.Context, track *webrtc.TrackLocalStaticSample) error
}

// AudioSink consumes the remote audio track.
type AudioSink interface {
	// Play reads track until it ends or ctx is done.
	Play(ctx context.Context, track *webrtc.TrackRemote) error
}

// SilenceSource sends Opus silence so the service sees a live microphone.
type SilenceSource struct{}

// Stream implements AudioSource.
func (SilenceSource) Stream(ctx context.Context, track *webrtc.TrackLocalStaticSample) error {
	ticker := time.NewTicker(opusFrameLength)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := track.WriteSample(media.Sample{Data: opusSilence, Duration: opusFrameLength}); err != nil {
				if errors.Is(err, io.ErrClosedPipe) {
					return nil
				}
				return fmt.Errorf("write silence: %w", err)
			}
		}
	}
}

// OggFileSource streams an Ogg/Opus file in real time, then falls back to
// silence until the session ends.
type OggFileSource struct {
	Path string
}

// Stream implements AudioSource.
func (s OggFileSource) Stream(ctx context.Context, track *webrtc.TrackLocalStaticSample) error {
	f, err := os.Open(s.Path)
	if err != nil {
		return fmt.Errorf("open audio input: %w", err)
	}
	defer f.Close()

	ogg, _, err := oggreader.NewWith(f)
	if err != nil {
		return fmt.Errorf("read ogg header: %w", err)
	}

	var lastGranule uint64
	ticker := time.NewTicker(opusFrameLength)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		page, header, err := ogg.ParseNextPage()
		if errors.Is(err, io.EOF) {
			slog.Debug("audio input finished", "path", s.Path)
			return SilenceSource{}.Stream(ctx, track)
		}
		if err != nil {
			return fmt.Errorf("read ogg page: %w", err)
		}

		// The granule position counts 48kHz samples since the stream start.
		samples := float64(header.GranulePosition - lastGranule)
		lastGranule = header.GranulePosition
		duration := time.Duration((samples / opusSampleRate) * float64(time.Second))

		if err := track.WriteSample(media.Sample{Data: page, Duration: duration}); err != nil {
			if errors.Is(err, io.ErrClosedPipe) {
				return nil
			}
			return fmt.Errorf("write sample: %w", err)
		}
	}
}

// DiscardSink drains the remote track without keeping it.
type DiscardSink struct{}

// Play implements AudioSink.
func (DiscardSink) Play(ctx context.Context, track *webrtc.TrackRemote) error {
	return readPackets(ctx, track, func(*rtp.Packet) error { return nil })
}

// OggFileSink records the remote track to an Ogg/Opus file.
type OggFileSink struct {
	Path string
}

// Play implements AudioSink.
func (s OggFileSink) Play(ctx context.Context, track *webrtc.TrackRemote) error {
	f, err := os.Create(s.Path)
	if err != nil {
		return fmt.Errorf("create audio output: %w", err)
	}
	w, err := oggwriter.NewWith(f, opusSampleRate, opusChannels)
	if err != nil {
		f.Close()
		return fmt.Errorf("create ogg writer: %w", err)
	}
	defer w.Close()

	slog.Debug("recording remote audio", "path", s.Path, "codec", track.Codec().MimeType)
	return readPackets(ctx, track, w.WriteRTP)
}

// readPackets reads RTP packets from track until it ends.
func readPackets(ctx context.Context, track *webrtc.TrackRemote, fn func(*rtp.Packet) error) error {
	for {
		if ctx.Err() != nil {
			return nil
		}
		pkt, _, err := track.ReadRTP()
		if err != nil {
			// The track ends when the peer connection closes.
			slog.Debug("remote track ended", "error", err)
			return nil
		}
		if err := fn(pkt); err != nil {
			return err
		}
	}
}
