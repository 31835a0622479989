// Package openairealtime speaks the client side of OpenAI's Realtime API.
//
// It covers the pieces a realtime console needs and nothing more: the event
// shapes exchanged over the events channel, credential sources for the
// short-lived client secret, and two transports that carry those events.
//
// # Credentials
//
// A session starts from a short-lived credential. Fetch it from a trusted
// backend that exposes GET /token:
//
//	creds := &openairealtime.TokenEndpoint{URL: "http://localhost:3000/token"}
//	secret, err := creds.Credential(ctx)
//
// or mint it directly with a long-lived API key:
//
//	client := openairealtime.NewClient(openairealtime.WithAPIKey(apiKey))
//	creds := &openairealtime.EphemeralKeys{Client: client}
//
// # Transports
//
// WebRTC is the default transport. It negotiates a peer connection with one
// local audio track and the "oai-events" data channel:
//
//	dialer := &openairealtime.WebRTCDialer{
//	    Client: client,
//	    Model:  openairealtime.ModelGPT4oRealtimePreview20241217,
//	}
//	conn, err := dialer.Dial(ctx, secret, openairealtime.Handlers{
//	    OnOpen:    func() { ... },
//	    OnMessage: func(data []byte) { ... },
//	    OnClose:   func() { ... },
//	})
//
// WebSocketDialer offers the same contract over a WebSocket connection.
//
// # Events
//
// Event is the tagged record carried in both directions. Incoming messages are
// decoded with ParseEvent, which keeps the raw JSON for display:
//
//	ev, err := openairealtime.ParseEvent(data)
//	if ev.Type == openairealtime.EventTypeResponseDone {
//	    for _, call := range ev.FunctionCalls() {
//	        fmt.Println(call.Name, call.Arguments)
//	    }
//	}
package openairealtime
