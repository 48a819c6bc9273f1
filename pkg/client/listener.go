package client

import "github.com/srg/senslink/pkg/codec"

// MessageListener is notified of unsolicited, device-initiated messages.
type MessageListener interface {
	OnMessage(msg codec.Message)
}

// ResponseListener is notified of every response message, including
// responses that already resolved a synchronous call and late responses
// whose call timed out.
type ResponseListener interface {
	OnResponse(msg codec.Message)
}

// ConnectionListener is notified of connection state transitions.
type ConnectionListener interface {
	OnConnectionChange(from, to State)
}

// Listener marks a listener registration. A registration must implement at
// least one of MessageListener, ResponseListener or ConnectionListener; one
// value may implement several and is then notified for each capability.
//
// Callbacks run on the single dispatcher goroutine, in registration order,
// so listener code never needs its own locking for dispatch state. A
// callback must not block for long: it stalls delivery to every listener
// behind it.
type Listener any

// ListenerID identifies a registration for removal.
type ListenerID uint64

// MessageListenerFunc adapts a function to MessageListener.
type MessageListenerFunc func(msg codec.Message)

func (f MessageListenerFunc) OnMessage(msg codec.Message) { f(msg) }

// ResponseListenerFunc adapts a function to ResponseListener.
type ResponseListenerFunc func(msg codec.Message)

func (f ResponseListenerFunc) OnResponse(msg codec.Message) { f(msg) }

// ConnectionListenerFunc adapts a function to ConnectionListener.
type ConnectionListenerFunc func(from, to State)

func (f ConnectionListenerFunc) OnConnectionChange(from, to State) { f(from, to) }
