package sysmonitor

import (
	"os"
	"strconv"
	"strings"
)

// memoryLimit returns the container memory limit in bytes, trying
// cgroup v2 then falling back to cgroup v1. Returns 0 if no limit is
// detected (bare metal, VM, unconstrained container).
func memoryLimit() int64 {
	if data, err := os.ReadFile("/sys/fs/cgroup/memory.max"); err == nil {
		s := strings.TrimSpace(string(data))
		if s != "max" {
			if v, err := strconv.ParseInt(s, 10, 64); err == nil {
				return v
			}
		}
		return 0
	}
	if data, err := os.ReadFile("/sys/fs/cgroup/memory/memory.limit_in_bytes"); err == nil {
		if v, err := strconv.ParseInt(strings.TrimSpace(string(data)), 10, 64); err == nil {
			return v
		}
	}
	return 0
}
