package job

// Result is the terminal outcome of processing one job. It is constructed in
// full before being published; the worker that processed the job is its sole
// writer.
type Result struct {
	Status     Status  `json:"status"`
	Output     string  `json:"output"`
	Stderr     string  `json:"stderr"`
	Error      string  `json:"error,omitempty"`
	ReturnCode *int    `json:"returncode,omitempty"`
	Duration   float64 `json:"duration"`
	WorkerID   string  `json:"worker_id"`
}

// Failed builds a failed result carrying only an error message, for outcomes
// where no command ever ran.
func Failed(msg string) *Result {
	return &Result{Status: StatusFailed, Error: msg}
}
