package openairealtime

import "context"

// Handlers receives the events channel callbacks of a Conn. Callbacks run on
// transport goroutines; OnMessage calls are made in arrival order.
type Handlers struct {
	// OnOpen is called once when the events channel becomes usable.
	OnOpen func()

	// OnMessage is called with each message received on the channel.
	OnMessage func(data []byte)

	// OnClose is called once when the channel closes for any reason.
	OnClose func()
}

func (h Handlers) open() {
	if h.OnOpen != nil {
		h.OnOpen()
	}
}

func (h Handlers) message(data []byte) {
	if h.OnMessage != nil {
		h.OnMessage(data)
	}
}

func (h Handlers) close() {
	if h.OnClose != nil {
		h.OnClose()
	}
}

// Conn is an established connection carrying the events channel.
type Conn interface {
	// Send transmits one serialized event. It returns ErrChannelClosed when
	// the channel is not open.
	Send(data []byte) error

	// Close tears down the channel and the underlying connection.
	Close() error
}

// Dialer establishes a Conn authenticated with a short-lived credential.
//
// Implementations must not invoke the handlers on the calling goroutine
// before Dial returns.
type Dialer interface {
	Dial(ctx context.Context, credential string, h Handlers) (Conn, error)
}
