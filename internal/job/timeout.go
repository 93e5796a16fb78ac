package job

import "time"

// waitBudgets maps a job type to the ceiling a submitter waits for its
// result. Types absent from the table fall back to DefaultWaitBudget.
var waitBudgets = map[string]time.Duration{
	"podman_build":      600 * time.Second,
	"podman_run":        3600 * time.Second,
	"huggingface_check": 30 * time.Second,
	"gpu_info":          60 * time.Second,
	"slurm_queue":       30 * time.Second,
}

const DefaultWaitBudget = 300 * time.Second

func WaitBudget(jobType string) time.Duration {
	if d, ok := waitBudgets[jobType]; ok {
		return d
	}
	return DefaultWaitBudget
}
