// Package middleware wraps the RabbitMQ channel the POS surfaces use to
// mirror checkout state onto the customer display. Delivery is
// fire-and-forget fanout; a missing peer never blocks the sender.
package middleware

import (
	"fmt"
)

// MiddlewareMessage is one delivered message body plus headers.
type MiddlewareMessage struct {
	Body    []byte
	Headers map[string]interface{}
}

type MessageMiddlewareError struct {
	Code int
	Msg  string
}

func (e *MessageMiddlewareError) Error() string {
	return fmt.Sprintf("middleware error (%d): %s", e.Code, e.Msg)
}

const (
	MessageMiddlewareMessageError int = iota + 1
	MessageMiddlewareDisconnectedError
	MessageMiddlewareCloseError
	MessageMiddlewareDeleteError
	MessageMiddlewareProducerCannotConsumeError
	MessageMiddlewareConsumerCannotSendError
)

// OnMessageCallback handles one delivery and reports the outcome on done.
// A non-nil error requeues the message.
type OnMessageCallback func(message MiddlewareMessage, done chan *MessageMiddlewareError)

type MessageMiddleware interface {
	// StartConsuming listens on the queue/exchange and invokes the callback
	// per message. Blocks until StopConsuming or the channel closes.
	StartConsuming(onMessageCallback OnMessageCallback) *MessageMiddlewareError

	// StopConsuming stops the listen loop; no effect if not consuming.
	StopConsuming() *MessageMiddlewareError

	// Send publishes a message to the exchange this middleware was built on.
	Send(message []byte) *MessageMiddlewareError

	// Close disconnects from the queue or exchange.
	Close() *MessageMiddlewareError

	// Delete forces remote removal of the queue or exchange.
	Delete() *MessageMiddlewareError
}
