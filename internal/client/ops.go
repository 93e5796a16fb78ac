package client

import "context"

// The caller-facing operations map one-to-one onto job types. Each is a pure
// adapter: shape parameters, submit, hand back the string unmodified.

// BuildAndTestImage clones a repository, writes the given Dockerfile, builds
// the image rootless and smoke-tests it.
func (c *Client) BuildAndTestImage(ctx context.Context, repoURL, dockerfileContent, tag string) string {
	return c.Submit(ctx, "podman_build", map[string]interface{}{
		"repo_url":           repoURL,
		"dockerfile_content": dockerfileContent,
		"tag":                tag,
	})
}

// RunBenchmarkInContainer runs a command inside a container with the given
// number of accelerators exposed.
func (c *Client) RunBenchmarkInContainer(ctx context.Context, imageTag, command string, gpus int) string {
	return c.Submit(ctx, "podman_run", map[string]interface{}{
		"image_tag": imageTag,
		"command":   command,
		"gpus":      gpus,
	})
}

// RunScriptOnCluster executes an arbitrary script on the compute slot the
// worker occupies, with resource hints attached.
func (c *Client) RunScriptOnCluster(ctx context.Context, script, partition string, cpus int, mem string, gpus int) string {
	return c.Submit(ctx, "srun_script", map[string]interface{}{
		"script":    script,
		"partition": partition,
		"cpus":      cpus,
		"mem":       mem,
		"gpus":      gpus,
	})
}

// CheckModelMetadata looks up a model's published metadata.
func (c *Client) CheckModelMetadata(ctx context.Context, modelID string) string {
	return c.Submit(ctx, "huggingface_check", map[string]interface{}{
		"model_id": modelID,
	})
}

// CheckClusterQueue reports the cluster job queue.
func (c *Client) CheckClusterQueue(ctx context.Context) string {
	return c.Submit(ctx, "slurm_queue", nil)
}

// GPUInventory reports the accelerator inventory of whichever worker picks
// the job up.
func (c *Client) GPUInventory(ctx context.Context) string {
	return c.Submit(ctx, "gpu_info", nil)
}
