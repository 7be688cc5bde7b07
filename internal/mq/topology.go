package mq

import (
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Exchange — тип для имени обменника.
type Exchange string

// Queue — тип для имени очереди.
type Queue string

// RoutingKey — тип для ключа маршрутизации.
type RoutingKey string

// Exchanges — имена обменников.
const (
	ExchangeLaunch Exchange = "bazaar.launch"
	ExchangeDLQ    Exchange = "bazaar.dlq"
)

// Queues — имена очередей.
const (
	// QueueLaunchRequested — задачи на финализацию запуска токена.
	// Потребитель: bazaar-launcher.
	QueueLaunchRequested Queue = "launch.requested"

	// QueueDLQLaunch — задачи, чей запуск так и не удалось финализировать.
	QueueDLQLaunch Queue = "dlq.launch"
)

// Routing keys.
const (
	RoutingKeyRequested RoutingKey = "requested"
	RoutingKeyDLQLaunch RoutingKey = "launch"
)

// SetupTopology декларирует обменники, очереди и привязки.
// Идемпотентна: повторный вызов на живом брокере безопасен.
func SetupTopology(conn *Connection) error {
	ch := conn.Channel()
	if ch == nil {
		return fmt.Errorf("no channel available")
	}

	exchanges := []Exchange{ExchangeLaunch, ExchangeDLQ}
	for _, ex := range exchanges {
		err := ch.ExchangeDeclare(
			string(ex), // name
			"direct",   // type
			true,       // durable
			false,      // auto-deleted
			false,      // internal
			false,      // no-wait
			nil,        // arguments
		)
		if err != nil {
			return fmt.Errorf("declare exchange %s: %w", ex, err)
		}
	}

	dlqArgs := amqp.Table{
		"x-dead-letter-exchange":    string(ExchangeDLQ),
		"x-dead-letter-routing-key": string(RoutingKeyDLQLaunch),
	}

	queues := []struct {
		name Queue
		args amqp.Table
	}{
		{QueueLaunchRequested, dlqArgs},
		{QueueDLQLaunch, nil},
	}
	for _, q := range queues {
		_, err := ch.QueueDeclare(
			string(q.name), // name
			true,           // durable
			false,          // delete when unused
			false,          // exclusive
			false,          // no-wait
			q.args,         // arguments
		)
		if err != nil {
			return fmt.Errorf("declare queue %s: %w", q.name, err)
		}
	}

	bindings := []struct {
		queue      Queue
		routingKey RoutingKey
		exchange   Exchange
	}{
		{QueueLaunchRequested, RoutingKeyRequested, ExchangeLaunch},
		{QueueDLQLaunch, RoutingKeyDLQLaunch, ExchangeDLQ},
	}
	for _, b := range bindings {
		err := ch.QueueBind(
			string(b.queue),
			string(b.routingKey),
			string(b.exchange),
			false,
			nil,
		)
		if err != nil {
			return fmt.Errorf("bind queue %s to %s: %w", b.queue, b.exchange, err)
		}
	}

	return nil
}
