package checkout

import (
	"context"
	"sync"

	"github.com/stripe/stripe-go/v79"
	"go.uber.org/zap"
)

// Dispatcher fans relayed webhook events out to a fixed pool of workers.
// Receipt was acknowledged before an event reaches the queue, so Submit
// blocks rather than drops when the queue is full.
type Dispatcher struct {
	WorkerPool chan chan WorkRequest
	maxWorkers int
	jobQueue   chan WorkRequest
	checkout   *StripeCheckout
	workers    []Worker
	stop       chan struct{}
	wg         sync.WaitGroup
}

func NewDispatcher(maxWorkers, jobQueueSize int, checkout *StripeCheckout) *Dispatcher {
	return &Dispatcher{
		WorkerPool: make(chan chan WorkRequest, maxWorkers),
		maxWorkers: maxWorkers,
		jobQueue:   make(chan WorkRequest, jobQueueSize),
		checkout:   checkout,
		stop:       make(chan struct{}),
	}
}

func (d *Dispatcher) Run() {
	for i := 0; i < d.maxWorkers; i++ {
		worker := NewWorker(i+1, d.WorkerPool, d.checkout)
		worker.Start()
		d.workers = append(d.workers, worker)
	}

	d.wg.Add(1)
	go d.dispatch()
}

// Submit queues an event for processing. It blocks while the queue is full
// and gives up only when the context is canceled or the dispatcher stops.
func (d *Dispatcher) Submit(ctx context.Context, event *stripe.Event) {
	job := WorkRequest{Event: event, Ctx: ctx}

	select {
	case d.jobQueue <- job:
	case <-ctx.Done():
		d.checkout.logger.Warn("event dropped, context canceled before it was queued",
			zap.Error(ctx.Err()),
			zap.String("event_type", string(event.Type)),
			zap.String("event_id", event.ID))
	case <-d.stop:
		d.checkout.logger.Warn("event dropped, dispatcher is stopping",
			zap.String("event_type", string(event.Type)),
			zap.String("event_id", event.ID))
	}
}

func (d *Dispatcher) dispatch() {
	defer d.wg.Done()

	for {
		select {
		case job := <-d.jobQueue:
			select {
			case jobChannel := <-d.WorkerPool:
				jobChannel <- job
			case <-job.Ctx.Done():
				d.checkout.logger.Warn("job context canceled while waiting for an available worker",
					zap.Error(job.Ctx.Err()),
					zap.String("event_type", string(job.Event.Type)),
					zap.String("event_id", job.Event.ID))
			case <-d.stop:
				return
			}
		case <-d.stop:
			return
		}
	}
}

func (d *Dispatcher) Stop() {
	close(d.stop)
	d.wg.Wait()

	for _, worker := range d.workers {
		worker.Stop()
	}
}
