package shell

import (
	"bytes"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/golang/glog"
)

// Executable describes one synchronous unit of work. With Shell set the
// command and args are joined and run through sh -c; otherwise they form the
// argv directly, which is the safe mode for untrusted values.
type Executable struct {
	Command string
	Args    []string
	BaseDir string
	Stdin   string
	Shell   bool
	Env     map[string]string
}

type ExecResult struct {
	Executable *Executable
	Stdout     string
	Stderr     string
	ExitCode   int
	Start      int64
	End        int64
}

// Run executes the unit to completion, capturing stdout, stderr and the exit
// code. Undecodable byte sequences are substituted rather than dropped.
func Run(result *ExecResult) {
	glog.V(2).Infof("received new execution: %+v", result.Executable)
	command := getCommand(result)
	if result.Executable.Stdin != "" {
		command.Stdin = bytes.NewBufferString(result.Executable.Stdin)
	}
	if result.Executable.BaseDir != "" {
		command.Dir = result.Executable.BaseDir
	}
	if result.Executable.Env != nil {
		command.Env = mergeEnv(os.Environ(), result.Executable.Env)
	}
	var stdout, stderr bytes.Buffer
	command.Stdout = &stdout
	command.Stderr = &stderr
	result.Start = time.Now().Unix()
	if err := command.Run(); err != nil {
		glog.Error(err)
		result.ExitCode = 1
		if exitErr, ok := err.(*exec.ExitError); ok {
			result.ExitCode = exitErr.ExitCode()
			glog.Errorf("exit code: %d", result.ExitCode)
		}
		if stderr.Len() == 0 {
			result.Stderr = err.Error()
		}
	}
	result.End = time.Now().Unix()
	result.Stdout = strings.ToValidUTF8(stdout.String(), "�")
	if result.Stderr == "" {
		result.Stderr = strings.ToValidUTF8(stderr.String(), "�")
	}
}

func getCommand(result *ExecResult) *exec.Cmd {
	if result.Executable.Shell {
		args := strings.Join(result.Executable.Args, " ")
		shellCmd := strings.Join([]string{result.Executable.Command, args}, " ")
		return exec.Command("sh", "-c", shellCmd)
	}
	return exec.Command(result.Executable.Command, result.Executable.Args...)
}

func mergeEnv(existingEnv []string, newVars map[string]string) []string {
	strArray := make([]string, 0, len(newVars))
	for k, v := range newVars {
		strArray = append(strArray, strings.Join([]string{k, v}, "="))
	}
	return append(existingEnv, strArray...)
}
