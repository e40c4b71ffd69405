package consumer

import (
	"context"
	"encoding/json"
	"log"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sprucehq/cleanops/internal/service"
)

// SweepConsumer runs hold sweeps requested over the queue, decoupled from
// whatever request triggered them.
type SweepConsumer struct {
	sweeps service.SweepService
}

func NewSweepConsumer(sweeps service.SweepService) *SweepConsumer {
	return &SweepConsumer{sweeps: sweeps}
}

func (sc *SweepConsumer) Start(msgs <-chan amqp.Delivery) {
	go func() {
		for msg := range msgs {
			sc.handleMessage(msg)
		}
		log.Println("[SweepConsumer] channel closed, stopping consumer")
	}()
}

func (sc *SweepConsumer) handleMessage(msg amqp.Delivery) {
	var req service.SweepRequest
	if err := json.Unmarshal(msg.Body, &req); err != nil {
		log.Printf("[SweepConsumer] failed to unmarshal: %v", err)
		msg.Nack(false, false)
		return
	}

	result, err := sc.sweeps.Sweep(context.Background(), req.OverrideDelayHours)
	if err != nil {
		log.Printf("[SweepConsumer] sweep %s failed: %v", req.RunID, err)
		msg.Nack(false, true) // systemic failure, requeue
		return
	}

	log.Printf("[SweepConsumer] sweep %s done: processed=%d succeeded=%d failed=%d",
		req.RunID, result.Processed, result.Succeeded, result.Failed)
	msg.Ack(false)
}
