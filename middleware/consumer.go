package middleware

import (
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Consumer binds an exclusive auto-deleted queue to a fanout exchange. Each
// surface gets its own queue, so a slow or absent display never backs up the
// terminal's publishes.
type Consumer struct {
	name       string
	sourceName string
	channel    *amqp.Channel
	deliveries <-chan amqp.Delivery

	quit    chan struct{}
	deleted chan struct{}
	done    chan struct{}

	startOnce sync.Once
	closeOnce sync.Once
}

func NewConsumer(conn *Conn, consumerName string, exchange string) (*Consumer, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, err
	}

	err = ch.ExchangeDeclare(
		exchange,
		"fanout",
		false, // durable
		false, // auto-delete
		false, // internal
		false, // no-wait
		nil,
	)
	if err != nil {
		_ = ch.Close()
		return nil, err
	}

	q, err := ch.QueueDeclare(
		exchange+"###"+consumerName,
		false, // durable
		true,  // delete when unused
		false, // exclusive
		false, // no-wait
		nil,
	)
	if err != nil {
		_ = ch.Close()
		return nil, err
	}

	if err := ch.QueueBind(q.Name, "", exchange, false, nil); err != nil {
		_ = ch.Close()
		return nil, err
	}

	return &Consumer{
		name:       q.Name,
		sourceName: exchange,
		channel:    ch,
		quit:       make(chan struct{}),
		deleted:    make(chan struct{}),
		done:       make(chan struct{}),
	}, nil
}

func (c *Consumer) StartConsuming(onMessageCallback OnMessageCallback) *MessageMiddlewareError {
	var startErr error

	c.startOnce.Do(func() {
		deliveries, err := c.channel.Consume(
			c.name,
			"",    // consumer tag
			false, // autoAck
			false, // exclusive
			false, // noLocal
			false, // noWait
			nil,
		)
		if err != nil {
			startErr = err
			return
		}
		c.deliveries = deliveries
	})

	if startErr != nil {
		return &MessageMiddlewareError{
			Code: MessageMiddlewareMessageError,
			Msg:  "failed consuming: " + startErr.Error(),
		}
	}

	defer close(c.done)
	for {
		select {
		case <-c.quit:
			return nil
		case d, ok := <-c.deliveries:
			if !ok {
				// channel closed by the server or by Cancel
				return nil
			}

			ret := make(chan *MessageMiddlewareError, 1)
			onMessageCallback(MiddlewareMessage{Body: d.Body, Headers: d.Headers}, ret)

			select {
			case <-c.deleted:
				return nil
			case err := <-ret:
				if err != nil {
					_ = d.Nack(false, true) // requeue
				} else {
					_ = d.Ack(false)
				}
			}
		}
	}
}

func (c *Consumer) StopConsuming() *MessageMiddlewareError {
	c.closeOnce.Do(func() {
		close(c.quit)

		// If StartConsuming never ran there is no goroutine closing c.done,
		// so only wait when a deliveries channel was set up.
		if c.deliveries != nil {
			<-c.done
		}
	})
	return nil
}

func (c *Consumer) Send(message []byte) *MessageMiddlewareError {
	return &MessageMiddlewareError{
		Code: MessageMiddlewareConsumerCannotSendError,
		Msg:  "consumer cannot send messages",
	}
}

func (c *Consumer) Close() *MessageMiddlewareError {
	c.StopConsuming()

	if c.channel != nil {
		if err := c.channel.Close(); err != nil {
			return &MessageMiddlewareError{
				Code: MessageMiddlewareCloseError,
				Msg:  "failed to close channel: " + err.Error(),
			}
		}
	}
	return nil
}

func (c *Consumer) Delete() *MessageMiddlewareError {
	var firstErr *MessageMiddlewareError

	if c.channel != nil {
		close(c.deleted)
		if _, err := c.channel.QueueDelete(c.name, false, false, false); err != nil {
			firstErr = &MessageMiddlewareError{
				Code: MessageMiddlewareDeleteError,
				Msg:  "failed to delete queue: " + err.Error(),
			}
		}
		if err := c.channel.Close(); err != nil {
			if firstErr == nil {
				firstErr = &MessageMiddlewareError{
					Code: MessageMiddlewareCloseError,
					Msg:  "failed to close channel: " + err.Error(),
				}
			} else {
				firstErr.Msg = firstErr.Msg + "; failed to close channel: " + err.Error()
			}
		}
	}
	return firstErr
}
