// Package container detects whether the process is running inside a
// container, where colourised terminal output is usually unwanted.
package container

import (
	"os"
	"strings"
)

// IsContainerised reports whether the process appears to be running in
// a container: a Docker env file, container runtime cgroup entries, or
// a Kubernetes service environment.
func IsContainerised() bool {
	if _, err := os.Stat("/.dockerenv"); err == nil {
		return true
	}
	if inContainerCgroup() {
		return true
	}
	return os.Getenv("KUBERNETES_SERVICE_HOST") != ""
}

// inContainerCgroup looks for runtime markers in the init process's
// cgroup listing.
func inContainerCgroup() bool {
	data, err := os.ReadFile("/proc/1/cgroup")
	if err != nil {
		return false
	}
	for _, marker := range []string{"docker", "containerd", "kubepods"} {
		if strings.Contains(string(data), marker) {
			return true
		}
	}
	return false
}
