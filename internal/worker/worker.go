package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/golang/glog"

	"github.com/hpcq/hpcq/internal/job"
	"github.com/hpcq/hpcq/internal/queue"
)

const defaultIdleInterval = 5 * time.Second

// Worker is the long-running dispatch loop: poll the queue, route by type,
// execute, publish the result, repeat. One job at a time; scale-out means
// more worker processes, not threads.
type Worker struct {
	ID           string
	Broker       queue.Broker
	Registry     *Registry
	IdleInterval time.Duration
	ResultTTL    time.Duration
}

func New(id string, broker queue.Broker, registry *Registry) *Worker {
	return &Worker{
		ID:           id,
		Broker:       broker,
		Registry:     registry,
		IdleInterval: defaultIdleInterval,
		ResultTTL:    job.ResultTTL,
	}
}

// Run loops until the context is cancelled. Per-job failures become failed
// results; infrastructure failures are logged and retried after the idle
// interval. Nothing a single job does may terminate the loop.
func (w *Worker) Run(ctx context.Context) {
	glog.Infof("worker %s started", w.ID)
	for {
		if ctx.Err() != nil {
			glog.Infof("worker %s shutting down", w.ID)
			return
		}
		payload, err := w.Broker.Dequeue(ctx)
		if errors.Is(err, queue.ErrEmpty) {
			w.idle(ctx)
			continue
		}
		if err != nil {
			glog.Errorf("worker %s: dequeue: %v", w.ID, err)
			w.idle(ctx)
			continue
		}
		var j job.Job
		if err := json.Unmarshal(payload, &j); err != nil || j.ID == "" {
			glog.Errorf("worker %s: discarding malformed payload: %v", w.ID, err)
			continue
		}
		glog.Infof("worker %s: job %s (type: %s)", w.ID, job.Short(j.ID), j.Type)
		res := w.process(&j)
		data, err := json.Marshal(res)
		if err != nil {
			glog.Errorf("worker %s: encode result for %s: %v", w.ID, j.ID, err)
			continue
		}
		if err := w.Broker.PutResult(ctx, j.ID, data, w.ResultTTL); err != nil {
			glog.Errorf("worker %s: publish result for %s: %v", w.ID, j.ID, err)
			w.idle(ctx)
			continue
		}
		glog.Infof("worker %s: job %s done (status: %s, %.2fs)",
			w.ID, job.Short(j.ID), res.Status, res.Duration)
	}
}

// process routes one job and contains every failure mode: unknown types and
// handler panics both come back as failed results with the elapsed duration
// attached.
func (w *Worker) process(j *job.Job) (res *job.Result) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			glog.Errorf("worker %s: handler panic on job %s: %v", w.ID, j.ID, r)
			res = job.Failed(fmt.Sprint(r))
		}
		if res == nil {
			res = job.Failed("handler returned no result")
		}
		res.Duration = time.Since(start).Seconds()
		res.WorkerID = w.ID
	}()
	handler, ok := w.Registry.Lookup(j.Type)
	if !ok {
		return job.Failed("unknown job type: " + j.Type)
	}
	return handler.Execute(j)
}

func (w *Worker) idle(ctx context.Context) {
	select {
	case <-ctx.Done():
	case <-time.After(w.IdleInterval):
	}
}
