package worker

import (
	"sort"

	"github.com/hpcq/hpcq/internal/job"
)

// Handler turns one job's parameters into an executed command and reports
// status, output, stderr and return code. Duration and worker id are stamped
// by the dispatch loop, not by handlers.
type Handler interface {
	Execute(j *job.Job) *job.Result
}

type HandlerFunc func(j *job.Job) *job.Result

func (f HandlerFunc) Execute(j *job.Job) *job.Result {
	return f(j)
}

// Registry maps a job type to its handler. It is populated at startup and
// never mutated afterwards; adding a job type means registering one handler,
// the dispatch loop stays untouched.
type Registry struct {
	handlers map[string]Handler
}

func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]Handler)}
}

func (r *Registry) Register(jobType string, h Handler) {
	r.handlers[jobType] = h
}

func (r *Registry) Lookup(jobType string) (Handler, bool) {
	h, ok := r.handlers[jobType]
	return h, ok
}

func (r *Registry) Types() []string {
	types := make([]string, 0, len(r.handlers))
	for t := range r.handlers {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// Default returns a registry with every supported job type wired to its
// handler.
func Default() *Registry {
	r := NewRegistry()
	NewHandlers().Register(r)
	return r
}
