package job

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
)

const (
	// QueueKey is the well-known list holding pending job payloads.
	QueueKey = "hpc:jobs"
	// ResultKeyPrefix is prepended to a job id to form its result key.
	ResultKeyPrefix = "hpc:result:"
	// ResultTTL is how long a published result survives unread.
	ResultTTL = time.Hour
)

type Status string

const (
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
)

// Job is a unit of requested work. It is immutable once enqueued; the id is
// the sole correlation key between submission and result.
type Job struct {
	ID        string
	Type      string
	Timestamp float64
	Params    map[string]interface{}
}

func New(jobType string, params map[string]interface{}) *Job {
	return &Job{
		ID:        uuid.New().String(),
		Type:      jobType,
		Timestamp: float64(time.Now().UnixNano()) / float64(time.Second),
		Params:    params,
	}
}

// Short returns the id prefix used in log lines.
func Short(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// String returns the named parameter as a string, or "" when absent.
func (j *Job) String(key string) string {
	if v, ok := j.Params[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
		return fmt.Sprint(v)
	}
	return ""
}

// StringOr returns the named parameter or a fallback when absent or empty.
func (j *Job) StringOr(key, fallback string) string {
	if s := j.String(key); s != "" {
		return s
	}
	return fallback
}

// Int returns the named parameter coerced to int, or a fallback. JSON numbers
// decode as float64, so both forms are accepted.
func (j *Job) Int(key string, fallback int) int {
	switch v := j.Params[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	case string:
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

// The wire form spreads params at the top level next to id, type and
// timestamp, so submitters in other languages can attach type-specific keys
// directly.
func (j *Job) MarshalJSON() ([]byte, error) {
	flat := make(map[string]interface{}, len(j.Params)+3)
	for k, v := range j.Params {
		flat[k] = v
	}
	flat["id"] = j.ID
	flat["type"] = j.Type
	flat["timestamp"] = j.Timestamp
	return json.Marshal(flat)
}

func (j *Job) UnmarshalJSON(data []byte) error {
	var flat map[string]interface{}
	if err := json.Unmarshal(data, &flat); err != nil {
		return err
	}
	if id, ok := flat["id"].(string); ok {
		j.ID = id
	}
	if t, ok := flat["type"].(string); ok {
		j.Type = t
	}
	if ts, ok := flat["timestamp"].(float64); ok {
		j.Timestamp = ts
	}
	delete(flat, "id")
	delete(flat, "type")
	delete(flat, "timestamp")
	if len(flat) > 0 {
		j.Params = flat
	}
	return nil
}
