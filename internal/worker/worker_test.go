package worker

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/hpcq/hpcq/internal/job"
	"github.com/hpcq/hpcq/internal/queue"
)

func newTestBroker(t *testing.T) queue.Broker {
	t.Helper()
	b, err := queue.NewSQLite(filepath.Join(t.TempDir(), "queue.db"))
	assert.Nil(t, err)
	t.Cleanup(func() { b.Close() })
	return b
}

func newTestWorker(t *testing.T, registry *Registry) *Worker {
	w := New("test-worker", newTestBroker(t), registry)
	w.IdleInterval = 10 * time.Millisecond
	return w
}

func TestProcess_UnknownType(t *testing.T) {
	registry := NewRegistry()
	rec := &recordingRunner{}
	(&Handlers{runner: rec.run}).Register(registry)
	w := newTestWorker(t, registry)

	res := w.process(&job.Job{ID: "j1", Type: "teleport"})
	assert.Equal(t, job.StatusFailed, res.Status)
	assert.Contains(t, res.Error, "unknown job type: teleport")
	assert.Equal(t, "test-worker", res.WorkerID)
	// No handler, no executor.
	assert.Empty(t, rec.executed)
}

func TestProcess_StampsDurationAndWorker(t *testing.T) {
	registry := NewRegistry()
	registry.Register("nap", HandlerFunc(func(j *job.Job) *job.Result {
		time.Sleep(20 * time.Millisecond)
		return &job.Result{Status: job.StatusSuccess, Output: "rested"}
	}))
	w := newTestWorker(t, registry)

	res := w.process(&job.Job{ID: "j1", Type: "nap"})
	assert.Equal(t, job.StatusSuccess, res.Status)
	assert.Equal(t, "rested", res.Output)
	assert.Equal(t, "test-worker", res.WorkerID)
	assert.GreaterOrEqual(t, res.Duration, 0.02)
}

func TestProcess_PanicContained(t *testing.T) {
	registry := NewRegistry()
	registry.Register("explode", HandlerFunc(func(j *job.Job) *job.Result {
		panic("kaboom")
	}))
	w := newTestWorker(t, registry)

	res := w.process(&job.Job{ID: "j1", Type: "explode"})
	assert.Equal(t, job.StatusFailed, res.Status)
	assert.Contains(t, res.Error, "kaboom")
	assert.Equal(t, "test-worker", res.WorkerID)
}

func TestProcess_NilResultContained(t *testing.T) {
	registry := NewRegistry()
	registry.Register("void", HandlerFunc(func(j *job.Job) *job.Result { return nil }))
	w := newTestWorker(t, registry)

	res := w.process(&job.Job{ID: "j1", Type: "void"})
	assert.Equal(t, job.StatusFailed, res.Status)
}

func enqueue(t *testing.T, b queue.Broker, j *job.Job) {
	t.Helper()
	payload, err := json.Marshal(j)
	assert.Nil(t, err)
	assert.Nil(t, b.Enqueue(context.Background(), payload))
}

func awaitResult(t *testing.T, b queue.Broker, id string) *job.Result {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		data, err := b.GetResult(context.Background(), id)
		if err == nil {
			var res job.Result
			assert.Nil(t, json.Unmarshal(data, &res))
			return &res
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("no result for job %s", id)
	return nil
}

func TestRun_PublishesResults(t *testing.T) {
	registry := NewRegistry()
	registry.Register("greet", HandlerFunc(func(j *job.Job) *job.Result {
		return &job.Result{Status: job.StatusSuccess, Output: "hello " + j.String("name")}
	}))
	w := newTestWorker(t, registry)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	j := job.New("greet", map[string]interface{}{"name": "cluster"})
	enqueue(t, w.Broker, j)

	res := awaitResult(t, w.Broker, j.ID)
	assert.Equal(t, job.StatusSuccess, res.Status)
	assert.Equal(t, "hello cluster", res.Output)
	assert.Equal(t, "test-worker", res.WorkerID)
}

// A single polling worker observes submission order.
func TestRun_FIFOOrder(t *testing.T) {
	order := make(chan string, 2)
	registry := NewRegistry()
	registry.Register("mark", HandlerFunc(func(j *job.Job) *job.Result {
		order <- j.String("n")
		return &job.Result{Status: job.StatusSuccess}
	}))
	w := newTestWorker(t, registry)

	j1 := job.New("mark", map[string]interface{}{"n": "first"})
	j2 := job.New("mark", map[string]interface{}{"n": "second"})
	enqueue(t, w.Broker, j1)
	enqueue(t, w.Broker, j2)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	awaitResult(t, w.Broker, j1.ID)
	awaitResult(t, w.Broker, j2.ID)
	assert.Equal(t, "first", <-order)
	assert.Equal(t, "second", <-order)
}

// A job whose handler fails must not stop the loop; the next job still runs.
func TestRun_SurvivesFailedJob(t *testing.T) {
	registry := NewRegistry()
	registry.Register("explode", HandlerFunc(func(j *job.Job) *job.Result { panic("kaboom") }))
	registry.Register("greet", HandlerFunc(func(j *job.Job) *job.Result {
		return &job.Result{Status: job.StatusSuccess, Output: "still here"}
	}))
	w := newTestWorker(t, registry)

	bad := job.New("explode", nil)
	good := job.New("greet", nil)
	enqueue(t, w.Broker, bad)
	enqueue(t, w.Broker, good)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	assert.Equal(t, job.StatusFailed, awaitResult(t, w.Broker, bad.ID).Status)
	assert.Equal(t, "still here", awaitResult(t, w.Broker, good.ID).Output)
}

// Malformed payloads are discarded without killing the loop and without a
// result being written.
func TestRun_DiscardsMalformedPayload(t *testing.T) {
	registry := NewRegistry()
	registry.Register("greet", HandlerFunc(func(j *job.Job) *job.Result {
		return &job.Result{Status: job.StatusSuccess, Output: "fine"}
	}))
	w := newTestWorker(t, registry)

	assert.Nil(t, w.Broker.Enqueue(context.Background(), []byte("{not json")))
	good := job.New("greet", nil)
	enqueue(t, w.Broker, good)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	assert.Equal(t, "fine", awaitResult(t, w.Broker, good.ID).Output)
}

// Scenario: a device-query job with no parameters runs the report command
// and succeeds.
func TestRun_GPUInfoScenario(t *testing.T) {
	registry := NewRegistry()
	rec := &recordingRunner{}
	code := 0
	rec.result = &job.Result{
		Status:     job.StatusSuccess,
		Output:     "| NVIDIA-SMI 550.54  Driver Version: 550.54 |",
		ReturnCode: &code,
	}
	(&Handlers{runner: rec.run}).Register(registry)
	w := newTestWorker(t, registry)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	j := job.New("gpu_info", nil)
	enqueue(t, w.Broker, j)

	res := awaitResult(t, w.Broker, j.ID)
	assert.Equal(t, job.StatusSuccess, res.Status)
	assert.Equal(t, 0, *res.ReturnCode)
	assert.Contains(t, res.Output, "NVIDIA-SMI")
	assert.Equal(t, "nvidia-smi", rec.executed[0].Command)
}
