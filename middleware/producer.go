package middleware

import (
	amqp "github.com/rabbitmq/amqp091-go"
)

// Producer publishes to a fanout exchange. The display channel is broadcast:
// every listening surface gets every message, none is required to exist.
type Producer struct {
	name    string
	channel *amqp.Channel
}

func NewProducer(conn *Conn, exchange string) (*Producer, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, err
	}

	err = ch.ExchangeDeclare(
		exchange,
		"fanout",
		false, // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,
	)
	if err != nil {
		_ = ch.Close()
		return nil, err
	}

	return &Producer{name: exchange, channel: ch}, nil
}

func (p *Producer) StartConsuming(onMessageCallback OnMessageCallback) *MessageMiddlewareError {
	return &MessageMiddlewareError{
		Code: MessageMiddlewareProducerCannotConsumeError,
		Msg:  "producer cannot consume messages",
	}
}

func (p *Producer) StopConsuming() *MessageMiddlewareError {
	return &MessageMiddlewareError{
		Code: MessageMiddlewareProducerCannotConsumeError,
		Msg:  "producer cannot consume messages",
	}
}

func (p *Producer) Send(message []byte) *MessageMiddlewareError {
	err := p.channel.Publish(
		p.name,
		"", // fanout ignores routing keys
		false,
		false,
		amqp.Publishing{
			ContentType: "application/json",
			Body:        message,
		})
	if err != nil {
		return &MessageMiddlewareError{
			Code: MessageMiddlewareDisconnectedError,
			Msg:  "failed to send message: " + err.Error(),
		}
	}
	return nil
}

func (p *Producer) Close() *MessageMiddlewareError {
	if p.channel != nil {
		if err := p.channel.Close(); err != nil {
			return &MessageMiddlewareError{
				Code: MessageMiddlewareCloseError,
				Msg:  "failed to close channel: " + err.Error(),
			}
		}
	}
	return nil
}

func (p *Producer) Delete() *MessageMiddlewareError {
	if p.channel == nil {
		return nil
	}
	if err := p.channel.ExchangeDelete(p.name, false, false); err != nil {
		return &MessageMiddlewareError{
			Code: MessageMiddlewareDeleteError,
			Msg:  "failed to delete exchange: " + err.Error(),
		}
	}
	return p.Close()
}
