package mq

import (
	"context"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"nezha/pkg/config"
)

// RabbitMQ publishes "divergence reported" events. Unlike the teacher's
// fuzzing-farm hub, reportbridge forwards one event per report file
// that lands on disk — a low-QPS workload that doesn't need a
// connection pool, so this keeps a single long-lived connection and
// reconnects it on close instead.
type RabbitMQ interface {
	GetChannel() *amqp.Channel
}

type rabbitMQImpl struct {
	logger      *zap.Logger
	rabbitmqUrl string
	context     context.Context

	mu        sync.Mutex
	conn      *amqp.Connection
	closeChan chan *amqp.Error
}

type RabbitMQParams struct {
	fx.In

	Config    *config.AppConfig
	Logger    *zap.Logger
	Lifecycle fx.Lifecycle
}

func NewRabbitMQ(p RabbitMQParams) RabbitMQ {
	mqCtx, cancel := context.WithCancel(context.Background())

	svc := &rabbitMQImpl{
		logger:      p.Logger,
		rabbitmqUrl: p.Config.RabbitMQURL,
		context:     mqCtx,
	}

	p.Lifecycle.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return svc.connect()
		},
		OnStop: func(ctx context.Context) error {
			cancel()
			svc.mu.Lock()
			defer svc.mu.Unlock()
			if svc.conn != nil {
				svc.conn.Close()
			}
			return nil
		},
	})
	return svc
}

func (r *rabbitMQImpl) connect() error {
	conn, err := amqp.Dial(r.rabbitmqUrl)
	if err != nil {
		r.logger.Error("failed to dial RabbitMQ", zap.Error(err))
		return err
	}

	closeChan := make(chan *amqp.Error, 1)
	conn.NotifyClose(closeChan)

	r.mu.Lock()
	r.conn = conn
	r.closeChan = closeChan
	r.mu.Unlock()

	go r.monitor(closeChan)
	return nil
}

func (r *rabbitMQImpl) monitor(closeChan chan *amqp.Error) {
	select {
	case err := <-closeChan:
		r.logger.Error("RabbitMQ connection closed, reconnecting", zap.Error(err))
		if reconnErr := r.connect(); reconnErr != nil {
			r.logger.Error("RabbitMQ reconnect failed", zap.Error(reconnErr))
		}
	case <-r.context.Done():
	}
}

func (r *rabbitMQImpl) GetChannel() *amqp.Channel {
	r.mu.Lock()
	conn := r.conn
	r.mu.Unlock()

	if conn == nil || conn.IsClosed() {
		r.logger.Error("no active RabbitMQ connection")
		return nil
	}

	ch, err := conn.Channel()
	if err != nil {
		r.logger.Error("failed to create RabbitMQ channel", zap.Error(err))
		return nil
	}

	return ch
}
