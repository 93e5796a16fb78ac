package worker

import (
	"fmt"
	"regexp"
	"strconv"

	"github.com/hpcq/hpcq/internal/gpu"
	"github.com/hpcq/hpcq/internal/job"
	"github.com/hpcq/hpcq/internal/shell"
)

// Handlers owns the execution logic behind each job type. Untrusted job
// fields (repository URLs, commands, Dockerfile text, scripts) are never
// spliced into script text: they travel as argv entries or over stdin.
type Handlers struct {
	runner func(exe *shell.Executable) *job.Result
	gpus   *gpu.Resolver
}

func NewHandlers() *Handlers {
	return &Handlers{runner: execute, gpus: gpu.NewResolver()}
}

func (h *Handlers) Register(r *Registry) {
	r.Register("podman_build", HandlerFunc(h.podmanBuild))
	r.Register("podman_run", HandlerFunc(h.podmanRun))
	r.Register("srun_script", HandlerFunc(h.srunScript))
	r.Register("huggingface_check", HandlerFunc(h.huggingfaceCheck))
	r.Register("slurm_queue", HandlerFunc(h.slurmQueue))
	r.Register("gpu_info", HandlerFunc(h.gpuInfo))
}

// execute runs one unit through the shell executor and shapes the outcome:
// success iff exit code zero.
func execute(exe *shell.Executable) *job.Result {
	res := &shell.ExecResult{Executable: exe}
	shell.Run(res)
	status := job.StatusSuccess
	if res.ExitCode != 0 {
		status = job.StatusFailed
	}
	code := res.ExitCode
	return &job.Result{
		Status:     status,
		Output:     res.Stdout,
		Stderr:     res.Stderr,
		ReturnCode: &code,
	}
}

// buildScript clones, writes the Dockerfile from stdin, builds rootless with
// buildah and smoke-tests the image. $1 is the repository URL, $2 the tag;
// both arrive as positional parameters, never interpolated.
const buildScript = `set -e
workdir=$(mktemp -d /tmp/build.XXXXXXXX)
trap 'rm -rf "$workdir"' EXIT
git clone -- "$1" "$workdir/src"
cd "$workdir/src"
cat > Dockerfile.ai
buildah bud --isolation chroot -t "$2" -f Dockerfile.ai .
echo "testing image..."
podman run --rm "$2" python --version || echo "no python in image"
echo "build complete: $2"
`

func (h *Handlers) podmanBuild(j *job.Job) *job.Result {
	repoURL := j.String("repo_url")
	dockerfile := j.String("dockerfile_content")
	tag := j.String("tag")
	if repoURL == "" || dockerfile == "" || tag == "" {
		return job.Failed("podman_build requires repo_url, dockerfile_content and tag")
	}
	return h.runner(&shell.Executable{
		Command: "bash",
		Args:    []string{"-c", buildScript, "bash", repoURL, tag},
		Stdin:   dockerfile,
	})
}

// podmanRun starts a container and pipes the payload command over stdin,
// avoiding shell-quoting hazards. GPU mounts are re-discovered on every job
// because drivers may change between jobs.
func (h *Handlers) podmanRun(j *job.Job) *job.Result {
	imageTag := j.String("image_tag")
	command := j.String("command")
	if imageTag == "" || command == "" {
		return job.Failed("podman_run requires image_tag and command")
	}
	args := []string{"run", "--rm", "-i"}
	if j.Int("gpus", 1) > 0 {
		args = append(args, gpu.Args(h.gpus.Mounts())...)
	}
	args = append(args, imageTag, "bash", "-s")
	return h.runner(&shell.Executable{
		Command: "podman",
		Args:    args,
		Stdin:   command,
	})
}

// srunScript runs the caller's script directly: the worker already executes
// inside an allocated compute slot, so there is no nested scheduler
// submission. Resource hints are surfaced to the script as environment
// variables.
func (h *Handlers) srunScript(j *job.Job) *job.Result {
	script := j.String("script")
	if script == "" {
		return job.Failed("srun_script requires script")
	}
	return h.runner(&shell.Executable{
		Command: "bash",
		Args:    []string{"-s"},
		Stdin:   script,
		Env: map[string]string{
			"HPCQ_PARTITION": j.StringOr("partition", "dev"),
			"HPCQ_CPUS":      strconv.Itoa(j.Int("cpus", 8)),
			"HPCQ_MEM":       j.StringOr("mem", "64G"),
			"HPCQ_GPUS":      strconv.Itoa(j.Int("gpus", 1)),
		},
	})
}

var modelIDPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*(/[A-Za-z0-9][A-Za-z0-9._-]*)?$`)

func (h *Handlers) huggingfaceCheck(j *job.Job) *job.Result {
	modelID := j.String("model_id")
	if !modelIDPattern.MatchString(modelID) {
		return job.Failed(fmt.Sprintf("invalid model id: %q", modelID))
	}
	return h.runner(&shell.Executable{
		Command: "curl",
		Args:    []string{"-fsS", "https://huggingface.co/api/models/" + modelID},
	})
}

func (h *Handlers) slurmQueue(j *job.Job) *job.Result {
	return h.runner(&shell.Executable{Command: "squeue", Args: []string{"--me"}})
}

func (h *Handlers) gpuInfo(j *job.Job) *job.Result {
	return h.runner(&shell.Executable{Command: "nvidia-smi"})
}
