// Package console implements a realtime voice console: a Session that
// negotiates an events channel with OpenAI Realtime and records every event
// exchanged on it, plus the view models that drive a three-pane UI.
//
// # Session
//
// A Session moves through Inactive, Negotiating and Active. Every mutation
// produces a Snapshot that is delivered to subscribers in order:
//
//	s := console.NewSession(creds, dialer)
//	s.Subscribe(func(snap console.Snapshot) {
//		fmt.Println(snap.State, len(snap.Events))
//	})
//	if err := s.Start(ctx); err != nil {
//		return err
//	}
//	s.Send(openairealtime.NewUserMessage("hello"))
//
// # Views
//
// EventLog, Controls and ToolPanel observe snapshots and decide what is shown.
// They hold no rendering code; the terminal UI in cmd/rtconsole draws them.
//
// # Archive
//
// An Archive can be attached to the Store as a Sink so that the full history
// of every run is kept on disk even when the in-memory history is bounded.
package console
