package runtime

import (
	"fmt"
	"strconv"
	"strings"
)

// cpuPeriod is Docker's CPU quota period in microseconds.
const cpuPeriod = 100000

// Resources caps an agent container's CPU and memory. Zero values mean
// unlimited, matching Docker's HostConfig semantics.
type Resources struct {
	Memory   int64 // bytes
	CPUQuota int64 // microseconds per period
}

// ParseResources converts the operator-facing limit strings (CPUs like "2" or
// "0.5", memory like "2g" or "512m") into the values Docker's HostConfig
// takes. Parsed once at runtime construction so a bad limit fails startup
// instead of every launch.
func ParseResources(cpuLimit, memLimit string) (Resources, error) {
	mem, err := parseMemory(memLimit)
	if err != nil {
		return Resources{}, fmt.Errorf("runtime.ParseResources: memory %q: %w", memLimit, err)
	}

	cpu, err := parseCPU(cpuLimit)
	if err != nil {
		return Resources{}, fmt.Errorf("runtime.ParseResources: cpu %q: %w", cpuLimit, err)
	}

	return Resources{Memory: mem, CPUQuota: cpu}, nil
}

// parseMemory converts a human-readable memory limit to bytes. Accepts g/m/k
// suffixes (case-insensitive); a bare integer is bytes.
func parseMemory(s string) (int64, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "" || s == "0" {
		return 0, nil
	}

	var multiplier int64 = 1
	switch {
	case strings.HasSuffix(s, "g"):
		multiplier = 1024 * 1024 * 1024
		s = strings.TrimSuffix(s, "g")
	case strings.HasSuffix(s, "m"):
		multiplier = 1024 * 1024
		s = strings.TrimSuffix(s, "m")
	case strings.HasSuffix(s, "k"):
		multiplier = 1024
		s = strings.TrimSuffix(s, "k")
	}

	val, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, err //nolint:wrapcheck // wrapped with context by ParseResources
	}

	return val * multiplier, nil
}

// parseCPU converts a CPU count ("2", "0.5") to a Docker CPU quota.
func parseCPU(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == "0" {
		return 0, nil
	}

	val, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err //nolint:wrapcheck // wrapped with context by ParseResources
	}

	return int64(val * cpuPeriod), nil
}
