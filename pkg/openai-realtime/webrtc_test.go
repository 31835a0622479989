package openairealtime

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/pion/interceptor"
	"github.com/pion/webrtc/v3"
)

// loopbackAPI builds a pion API whose peers connect over the loopback
// interface only.
func loopbackAPI(t *testing.T) *webrtc.API {
	t.Helper()
	m := &webrtc.MediaEngine{}
	if err := m.RegisterDefaultCodecs(); err != nil {
		t.Fatalf("RegisterDefaultCodecs: %v", err)
	}
	i := &interceptor.Registry{}
	if err := webrtc.RegisterDefaultInterceptors(m, i); err != nil {
		t.Fatalf("RegisterDefaultInterceptors: %v", err)
	}
	var se webrtc.SettingEngine
	se.SetIncludeLoopbackCandidate(true)
	se.SetNetworkTypes([]webrtc.NetworkType{webrtc.NetworkTypeUDP4})
	return webrtc.NewAPI(webrtc.WithMediaEngine(m), webrtc.WithInterceptorRegistry(i), webrtc.WithSettingEngine(se))
}

// realtimePeer answers SDP offers posted to it and plays the service side
// of the events channel: it greets with session.created and reports what
// it receives.
type realtimePeer struct {
	api *webrtc.API

	mu          sync.Mutex
	pcs         []*webrtc.PeerConnection
	auth        string
	contentType string
	model       string

	channels chan *webrtc.DataChannel
	received chan string
}

func newRealtimePeer(api *webrtc.API) *realtimePeer {
	return &realtimePeer{
		api:      api,
		channels: make(chan *webrtc.DataChannel, 1),
		received: make(chan string, 8),
	}
}

func (p *realtimePeer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	offer, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	pc, err := p.api.NewPeerConnection(webrtc.Configuration{})
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	p.mu.Lock()
	p.pcs = append(p.pcs, pc)
	p.auth = r.Header.Get("Authorization")
	p.contentType = r.Header.Get("Content-Type")
	p.model = r.URL.Query().Get("model")
	p.mu.Unlock()

	pc.OnTrack(func(track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		buf := make([]byte, 1500)
		for {
			if _, _, err := track.Read(buf); err != nil {
				return
			}
		}
	})
	pc.OnDataChannel(func(dc *webrtc.DataChannel) {
		dc.OnOpen(func() {
			dc.SendText(`{"type":"session.created","event_id":"event_1"}`)
			p.channels <- dc
		})
		dc.OnMessage(func(msg webrtc.DataChannelMessage) {
			p.received <- string(msg.Data)
		})
	})

	if err := pc.SetRemoteDescription(webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: string(offer)}); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	answer, err := pc.CreateAnswer(nil)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	gathered := webrtc.GatheringCompletePromise(pc)
	if err := pc.SetLocalDescription(answer); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	<-gathered

	w.Header().Set("Content-Type", "application/sdp")
	w.WriteHeader(http.StatusCreated)
	io.WriteString(w, pc.LocalDescription().SDP)
}

func (p *realtimePeer) close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, pc := range p.pcs {
		pc.Close()
	}
}

func waitFor[T any](t *testing.T, ch <-chan T, what string) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(15 * time.Second):
		t.Fatalf("timed out waiting for %s", what)
		panic("unreachable")
	}
}

func TestWebRTCDialer(t *testing.T) {
	api := loopbackAPI(t)
	peer := newRealtimePeer(api)
	srv := httptest.NewServer(peer)
	defer srv.Close()
	defer peer.close()

	opened := make(chan struct{}, 1)
	messages := make(chan string, 8)
	closed := make(chan struct{}, 1)
	d := &WebRTCDialer{
		Client: NewClient(WithHTTPURL(srv.URL)),
		Model:  ModelGPT4oMiniRealtimePreview,
		API:    api,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	conn, err := d.Dial(ctx, "ek_test", Handlers{
		OnOpen:    func() { opened <- struct{}{} },
		OnMessage: func(data []byte) { messages <- string(data) },
		OnClose: func() {
			select {
			case closed <- struct{}{}:
			default:
			}
		},
	})
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()

	peer.mu.Lock()
	auth, contentType, model := peer.auth, peer.contentType, peer.model
	peer.mu.Unlock()
	if auth != "Bearer ek_test" || contentType != "application/sdp" || model != ModelGPT4oMiniRealtimePreview {
		t.Errorf("offer request: auth=%q content-type=%q model=%q", auth, contentType, model)
	}

	waitFor(t, opened, "the events channel to open")
	if msg := waitFor(t, messages, "session.created"); msg != `{"type":"session.created","event_id":"event_1"}` {
		t.Errorf("message = %s", msg)
	}

	if err := conn.Send([]byte(`{"type":"response.create","event_id":"local-1"}`)); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if got := waitFor(t, peer.received, "the sent event"); got != `{"type":"response.create","event_id":"local-1"}` {
		t.Errorf("peer received %s", got)
	}

	// The service closing the channel reaches OnClose; later sends fail.
	dc := waitFor(t, peer.channels, "the service's data channel")
	dc.Close()
	waitFor(t, closed, "the events channel to close")
	if err := conn.Send([]byte(`{}`)); !errors.Is(err, ErrChannelClosed) {
		t.Errorf("Send after close = %v, want ErrChannelClosed", err)
	}
}

func TestWebRTCDialerRejectedOffer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"invalid ephemeral key"}}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	d := &WebRTCDialer{Client: NewClient(WithHTTPURL(srv.URL)), API: loopbackAPI(t)}
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	_, err := d.Dial(ctx, "ek_expired", Handlers{})
	var apiErr *Error
	if !errors.As(err, &apiErr) || apiErr.HTTPStatus != http.StatusUnauthorized {
		t.Fatalf("Dial = %v, want a 401 *Error", err)
	}
}
