package openairealtime

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/pion/webrtc/v3"
	"golang.org/x/sync/errgroup"
)

// eventsChannelLabel is the data channel label the service expects.
const eventsChannelLabel = "oai-events"

// WebRTCDialer negotiates a peer connection with the Realtime service: one
// local audio track, the remote audio track, and the events data channel.
type WebRTCDialer struct {
	// Client performs the SDP exchange. Required.
	Client *Client

	// Model is the model ID. Default: DefaultModel.
	Model string

	// ICEServers are passed to the peer connection.
	ICEServers []webrtc.ICEServer

	// API creates the peer connection. Default: pion's default codecs and
	// interceptors.
	API *webrtc.API

	// Microphone feeds the local audio track. Default: SilenceSource.
	Microphone AudioSource

	// Speaker receives the remote audio track. Default: DiscardSink.
	Speaker AudioSink
}

// webrtcConn is a negotiated peer connection.
type webrtcConn struct {
	pc *webrtc.PeerConnection
	dc *webrtc.DataChannel

	// media pumps run until the connection closes
	ctx    context.Context
	cancel context.CancelFunc
	g      *errgroup.Group

	mu        sync.Mutex
	closed    bool
	closeOnce sync.Once
	closeErr  error
}

// Dial implements Dialer.
func (d *WebRTCDialer) Dial(ctx context.Context, credential string, h Handlers) (Conn, error) {
	model := d.Model
	if model == "" {
		model = DefaultModel
	}
	mic := d.Microphone
	if mic == nil {
		mic = SilenceSource{}
	}
	speaker := d.Speaker
	if speaker == nil {
		speaker = DiscardSink{}
	}

	newPeerConnection := webrtc.NewPeerConnection
	if d.API != nil {
		newPeerConnection = d.API.NewPeerConnection
	}
	peerConnection, err := newPeerConnection(webrtc.Configuration{
		ICEServers: d.ICEServers,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create peer connection: %w", err)
	}

	mediaCtx, cancel := context.WithCancel(context.Background())
	g, gctx := errgroup.WithContext(mediaCtx)
	conn := &webrtcConn{
		pc:     peerConnection,
		ctx:    gctx,
		cancel: cancel,
		g:      g,
	}
	fail := func(format string, err error) (Conn, error) {
		conn.Close()
		return nil, fmt.Errorf(format, err)
	}

	// Remote audio goes to the speaker as soon as it arrives.
	peerConnection.OnTrack(func(track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		slog.Debug("received remote track", "kind", track.Kind(), "codec", track.Codec().MimeType)
		if track.Kind() != webrtc.RTPCodecTypeAudio {
			return
		}
		conn.goMedia(func(ctx context.Context) error {
			return speaker.Play(ctx, track)
		})
	})

	peerConnection.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		slog.Debug("peer connection state", "state", state.String())
	})

	// Local audio track standing in for the microphone.
	micTrack, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus},
		"audio",
		localAudioStream,
	)
	if err != nil {
		return fail("failed to create audio track: %w", err)
	}
	sender, err := peerConnection.AddTrack(micTrack)
	if err != nil {
		return fail("failed to add audio track: %w", err)
	}
	conn.goMedia(func(ctx context.Context) error {
		// Drain RTCP so interceptors keep working.
		buf := make([]byte, 1500)
		for {
			if _, _, err := sender.Read(buf); err != nil {
				return nil
			}
		}
	})

	dataChannel, err := peerConnection.CreateDataChannel(eventsChannelLabel, nil)
	if err != nil {
		return fail("failed to create data channel: %w", err)
	}
	conn.dc = dataChannel

	dataChannel.OnOpen(func() {
		slog.Debug("data channel opened")
		conn.goMedia(func(ctx context.Context) error {
			return mic.Stream(ctx, micTrack)
		})
		h.open()
	})
	dataChannel.OnMessage(func(msg webrtc.DataChannelMessage) {
		if slog.Default().Enabled(context.Background(), slog.LevelDebug) {
			slog.Debug("received message", "len", len(msg.Data), "content", truncate(string(msg.Data), 1000))
		}
		h.message(msg.Data)
	})
	dataChannel.OnClose(func() {
		slog.Debug("data channel closed")
		h.close()
	})

	offer, err := peerConnection.CreateOffer(nil)
	if err != nil {
		return fail("failed to create offer: %w", err)
	}
	if err := peerConnection.SetLocalDescription(offer); err != nil {
		return fail("failed to set local description: %w", err)
	}

	// Wait for ICE gathering to complete
	select {
	case <-webrtc.GatheringCompletePromise(peerConnection):
	case <-ctx.Done():
		return fail("ice gathering: %w", ctx.Err())
	}

	answer, err := d.Client.ExchangeSDP(ctx, credential, model, peerConnection.LocalDescription().SDP)
	if err != nil {
		return fail("failed to send offer: %w", err)
	}

	err = peerConnection.SetRemoteDescription(webrtc.SessionDescription{
		Type: webrtc.SDPTypeAnswer,
		SDP:  answer,
	})
	if err != nil {
		return fail("failed to set remote description: %w", err)
	}

	return conn, nil
}

// goMedia runs fn in the connection's media group unless it is closed.
func (c *webrtcConn) goMedia(fn func(ctx context.Context) error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.g.Go(func() error {
		return fn(c.ctx)
	})
}

// Send implements Conn.
func (c *webrtcConn) Send(data []byte) error {
	if c.dc == nil || c.dc.ReadyState() != webrtc.DataChannelStateOpen {
		return ErrChannelClosed
	}
	if slog.Default().Enabled(context.Background(), slog.LevelDebug) {
		slog.Debug("sending event", "content", truncate(string(data), 500))
	}
	return c.dc.Send(data)
}

// Close implements Conn.
func (c *webrtcConn) Close() error {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		c.mu.Unlock()

		c.cancel()
		if c.dc != nil {
			c.dc.Close()
		}
		c.closeErr = c.pc.Close()
		if err := c.g.Wait(); err != nil {
			slog.Warn("media pump failed", "error", err)
		}
	})
	return c.closeErr
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
