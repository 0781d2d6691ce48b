package events

import (
	"fmt"

	"availability-service/internal/config"
)

// New builds the publisher selected by cfg.Driver.
func New(cfg config.Events) (Publisher, error) {
	const op = "events.New"

	switch cfg.Driver {
	case "", "none":
		return Noop{}, nil
	case "kafka":
		return NewKafkaPublisher(cfg.Brokers, cfg.Topic), nil
	case "amqp":
		p, err := NewAMQPPublisher(cfg.AMQPURL, cfg.Exchange)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		return p, nil
	}

	return nil, fmt.Errorf("%s: unknown events driver %q", op, cfg.Driver)
}
