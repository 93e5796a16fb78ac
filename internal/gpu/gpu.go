package gpu

import (
	"os"
	"os/exec"
	"regexp"
	"strings"

	"github.com/golang/glog"
)

// Mount is one bind-mount declaration exposing a host path inside a rootless
// container.
type Mount struct {
	Source string
	Target string
}

// driverLib matches the vendor driver user-space objects in the dynamic
// library cache: libcuda, libnvidia-ml and friends.
var driverLib = regexp.MustCompile(`^lib(cuda|nvidia|nvcuvid|nvoptix)[^\s]*\.so`)

// Resolver discovers the device nodes, driver libraries and management
// binary a container needs for accelerator access. Discovery runs per job,
// never cached: drivers may be upgraded between jobs. Every probe degrades
// to a smaller mount set instead of failing; only the eventual command exit
// code decides job outcome.
type Resolver struct {
	ldcache    func() ([]byte, error)
	mountsPath string
	lookPath   func(string) (string, error)
}

func NewResolver() *Resolver {
	return &Resolver{
		ldcache:    func() ([]byte, error) { return exec.Command("ldconfig", "-p").Output() },
		mountsPath: "/proc/mounts",
		lookPath:   exec.LookPath,
	}
}

// Mounts computes the deduplicated bind-mount set, first-seen order
// preserved. The device-node directory is always included; major/minor
// numbers vary by host so the whole directory is mounted.
func (r *Resolver) Mounts() []Mount {
	mounts := []Mount{{Source: "/dev", Target: "/dev"}}
	libs := r.driverLibraries()
	if len(libs) == 0 {
		libs = r.injectedMounts()
	}
	mounts = append(mounts, libs...)
	if smi, err := r.lookPath("nvidia-smi"); err == nil {
		mounts = append(mounts, Mount{Source: smi, Target: smi})
	} else {
		glog.V(2).Infof("no management binary on PATH: %v", err)
	}
	return dedupe(mounts)
}

// driverLibraries queries the dynamic-library cache for vendor driver
// objects. Output lines look like
// "\tlibcuda.so.1 (libc6,x86-64) => /usr/lib/x86_64-linux-gnu/libcuda.so.1".
func (r *Resolver) driverLibraries() []Mount {
	out, err := r.ldcache()
	if err != nil {
		glog.V(2).Infof("ldconfig query failed: %v", err)
		return nil
	}
	var mounts []Mount
	for _, line := range strings.Split(string(out), "\n") {
		name, path, ok := strings.Cut(strings.TrimSpace(line), " => ")
		if !ok {
			continue
		}
		if i := strings.IndexByte(name, ' '); i >= 0 {
			name = name[:i]
		}
		path = strings.TrimSpace(path)
		if driverLib.MatchString(name) && path != "" {
			mounts = append(mounts, Mount{Source: path, Target: path})
		}
	}
	return mounts
}

// injectedMounts falls back to the process mount table, picking up driver
// paths already propagated by the cluster's container runtime.
func (r *Resolver) injectedMounts() []Mount {
	data, err := os.ReadFile(r.mountsPath)
	if err != nil {
		glog.V(2).Infof("mount table unreadable: %v", err)
		return nil
	}
	var mounts []Mount
	for _, line := range strings.Split(string(data), "\n") {
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		point := fields[1]
		if strings.Contains(point, "nvidia") || strings.Contains(point, "libcuda") {
			mounts = append(mounts, Mount{Source: point, Target: point})
		}
	}
	return mounts
}

func dedupe(mounts []Mount) []Mount {
	seen := make(map[string]bool, len(mounts))
	out := mounts[:0]
	for _, m := range mounts {
		if seen[m.Source] {
			continue
		}
		seen[m.Source] = true
		out = append(out, m)
	}
	return out
}

// Args renders mounts as the -v argument pairs of the execution command.
func Args(mounts []Mount) []string {
	args := make([]string, 0, 2*len(mounts))
	for _, m := range mounts {
		args = append(args, "-v", m.Source+":"+m.Target)
	}
	return args
}
