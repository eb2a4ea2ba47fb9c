package middleware

import (
	amqp "github.com/rabbitmq/amqp091-go"
)

// Conn is one broker connection shared by the producers and consumers of a
// terminal session. Scoped to the caller instead of a process-wide
// singleton so tests and multiple terminals can hold separate connections.
type Conn struct {
	conn *amqp.Connection
}

func Dial(url string) (*Conn, error) {
	c, err := amqp.Dial(url)
	if err != nil {
		return nil, err
	}
	return &Conn{conn: c}, nil
}

func (r *Conn) Channel() (*amqp.Channel, error) {
	if r.conn.IsClosed() {
		return nil, &MessageMiddlewareError{
			Code: MessageMiddlewareDisconnectedError,
			Msg:  "connection is closed",
		}
	}
	return r.conn.Channel()
}

func (r *Conn) Close() error {
	if r.conn != nil {
		return r.conn.Close()
	}
	return nil
}
