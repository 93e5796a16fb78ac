package client

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

// Client implements the submit/correlate/await protocol. Every outcome comes
// back as a descriptive string: the caller-facing surface never sees an
// error value, so success, failure and timeout all read the same way to the
// control plane driving it.
type Client struct {
	Broker       queue.Broker
	PollInterval time.Duration
	// Budgets overrides the per-type wait ceiling, used by tests. When a
	// type is absent the shared timeout table applies.
	Budgets map[string]time.Duration
}

func New(broker queue.Broker) *Client {
	return &Client{Broker: broker, PollInterval: time.Second}
}

// Submit builds a job record, enqueues it and waits for the correlated
// result up to the type-specific ceiling.
func (c *Client) Submit(ctx context.Context, jobType string, params map[string]interface{}) string {
	j := job.New(jobType, params)
	payload, err := json.Marshal(j)
	if err != nil {
		return fmt.Sprintf("job not submitted: %v", err)
	}
	if err := c.Broker.Enqueue(ctx, payload); err != nil {
		return fmt.Sprintf("job not submitted: %v", err)
	}
	glog.Infof("job %s submitted (type: %s)", job.Short(j.ID), jobType)
	return c.wait(ctx, j.ID, c.budget(jobType))
}

func (c *Client) budget(jobType string) time.Duration {
	if d, ok := c.Budgets[jobType]; ok {
		return d
	}
	return job.WaitBudget(jobType)
}

// wait polls the result store once per interval until the budget elapses.
// Progress is logged every ten polls; that is observational only.
func (c *Client) wait(ctx context.Context, id string, budget time.Duration) string {
	deadline := time.Now().Add(budget)
	for i := 0; ; i++ {
		data, err := c.Broker.GetResult(ctx, id)
		if err == nil {
			return formatResult(data)
		}
		if !errors.Is(err, queue.ErrNoResult) {
			glog.Errorf("poll result for %s: %v", id, err)
		}
		if time.Now().After(deadline) {
			return fmt.Sprintf("timeout: job %s took longer than %.0fs", id, budget.Seconds())
		}
		if i > 0 && i%10 == 0 {
			glog.Infof("still waiting for job %s (%ds elapsed)", job.Short(id), i)
		}
		select {
		case <-ctx.Done():
			return fmt.Sprintf("timeout: job %s abandoned: %v", id, ctx.Err())
		case <-time.After(c.PollInterval):
		}
	}
}

func formatResult(data []byte) string {
	var res job.Result
	if err := json.Unmarshal(data, &res); err != nil {
		return fmt.Sprintf("job failed:\nunreadable result: %v", err)
	}
	if res.Status == job.StatusSuccess {
		return res.Output
	}
	errMsg := res.Error
	if errMsg == "" {
		errMsg = "unknown error"
	}
	return fmt.Sprintf("job failed:\n%s\n\nstderr:\n%s", errMsg, res.Stderr)
}
