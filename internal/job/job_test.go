package job

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNew(t *testing.T) {
	j1 := New("gpu_info", nil)
	j2 := New("gpu_info", nil)
	assert.NotEmpty(t, j1.ID)
	assert.NotEqual(t, j1.ID, j2.ID)
	assert.Equal(t, "gpu_info", j1.Type)
	assert.Greater(t, j1.Timestamp, 0.0)
}

func TestJob_WireFormatFlattensParams(t *testing.T) {
	j := New("huggingface_check", map[string]interface{}{"model_id": "meta-llama/Llama-3.2-1B"})
	data, err := json.Marshal(j)
	assert.Nil(t, err)

	var flat map[string]interface{}
	assert.Nil(t, json.Unmarshal(data, &flat))
	assert.Equal(t, j.ID, flat["id"])
	assert.Equal(t, "huggingface_check", flat["type"])
	assert.Equal(t, "meta-llama/Llama-3.2-1B", flat["model_id"])
	_, nested := flat["params"]
	assert.False(t, nested)
}

func TestJob_RoundTrip(t *testing.T) {
	j := New("podman_run", map[string]interface{}{
		"image_tag": "mamba:v1",
		"command":   "python train.py",
		"gpus":      float64(2),
	})
	data, err := json.Marshal(j)
	assert.Nil(t, err)

	var decoded Job
	assert.Nil(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, j.ID, decoded.ID)
	assert.Equal(t, j.Type, decoded.Type)
	assert.Equal(t, j.Timestamp, decoded.Timestamp)
	assert.Equal(t, j.Params, decoded.Params)
}

func TestJob_ParamAccessors(t *testing.T) {
	j := &Job{Params: map[string]interface{}{
		"name":    "dev",
		"cpus":    float64(16),
		"mem":     "32G",
		"textual": "4",
	}}
	assert.Equal(t, "dev", j.String("name"))
	assert.Equal(t, "", j.String("missing"))
	assert.Equal(t, "fallback", j.StringOr("missing", "fallback"))
	assert.Equal(t, 16, j.Int("cpus", 1))
	assert.Equal(t, 4, j.Int("textual", 1))
	assert.Equal(t, 1, j.Int("missing", 1))
}

func TestWaitBudget(t *testing.T) {
	assert.Equal(t, 600*time.Second, WaitBudget("podman_build"))
	assert.Equal(t, 3600*time.Second, WaitBudget("podman_run"))
	assert.Equal(t, 30*time.Second, WaitBudget("huggingface_check"))
	assert.Equal(t, 60*time.Second, WaitBudget("gpu_info"))
	assert.Equal(t, 30*time.Second, WaitBudget("slurm_queue"))
	assert.Equal(t, DefaultWaitBudget, WaitBudget("never_heard_of_it"))
}

func TestResult_OptionalFields(t *testing.T) {
	data, err := json.Marshal(Failed("unknown job type: x"))
	assert.Nil(t, err)
	assert.NotContains(t, string(data), "returncode")

	code := 1
	res := &Result{Status: StatusFailed, ReturnCode: &code, Stderr: "boom"}
	data, err = json.Marshal(res)
	assert.Nil(t, err)
	assert.Contains(t, string(data), "\"returncode\":1")
}

func TestShort(t *testing.T) {
	assert.Equal(t, "0a1b2c3d", Short("0a1b2c3d-ffff-ffff-ffff-ffffffffffff"))
	assert.Equal(t, "tiny", Short("tiny"))
}
