package config

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/joshuarubin/pmtrd/internal/job"
)

// parseCPUSet parses a cpuset expressed either as a hex mask ("0x4A") or as
// a comma-delimited list of numbers and ranges ("1,3-5,8"), grounded on the
// upstream set_cpu(). Unlike the upstream implementation (Design Notes item
// 2), malformed ranges such as "1-" or "-3" are rejected here instead of
// silently reading an uninitialized range bound.
func parseCPUSet(spec string) (job.CPUSet, error) {
	if strings.HasPrefix(spec, "0x") || strings.HasPrefix(spec, "0X") {
		return parseCPUSetHex(spec[2:])
	}
	return parseCPUSetList(spec)
}

func parseCPUSetHex(hex string) (job.CPUSet, error) {
	if hex == "" {
		return nil, fmt.Errorf("parse error in cpuset")
	}

	set := job.CPUSet{}
	// digits are read left to right; the digit at position i from the end
	// covers cpus [4*i, 4*i+3]
	n := len(hex)
	for idx, c := range hex {
		d, err := hexDigit(byte(c))
		if err != nil {
			return nil, fmt.Errorf("invalid hex in cpuset")
		}
		base := (n - 1 - idx) * 4
		for bit := 0; bit < 4; bit++ {
			if d&(1<<uint(bit)) != 0 {
				set[base+bit] = struct{}{}
			}
		}
	}

	return set, nil
}

func hexDigit(c byte) (int, error) {
	switch {
	case c >= '0' && c <= '9':
		return int(c - '0'), nil
	case c >= 'a' && c <= 'f':
		return int(c-'a') + 10, nil
	case c >= 'A' && c <= 'F':
		return int(c-'A') + 10, nil
	default:
		return 0, fmt.Errorf("invalid hex digit %q", c)
	}
}

func parseCPUSetList(spec string) (job.CPUSet, error) {
	set := job.CPUSet{}

	for _, part := range strings.Split(spec, ",") {
		if part == "" {
			return nil, fmt.Errorf("syntax error in cpuset")
		}

		if dash := strings.IndexByte(part, '-'); dash >= 0 {
			startStr, endStr := part[:dash], part[dash+1:]
			if startStr == "" || endStr == "" {
				return nil, fmt.Errorf("syntax error in cpuset")
			}

			start, err := strconv.Atoi(startStr)
			if err != nil || start < 0 {
				return nil, fmt.Errorf("syntax error in cpuset")
			}
			end, err := strconv.Atoi(endStr)
			if err != nil || end < 0 {
				return nil, fmt.Errorf("syntax error in cpuset")
			}
			if end <= start {
				return nil, fmt.Errorf("syntax error in cpuset")
			}

			for cpu := start; cpu <= end; cpu++ {
				set[cpu] = struct{}{}
			}
			continue
		}

		n, err := strconv.Atoi(part)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("syntax error in cpuset")
		}
		set[n] = struct{}{}
	}

	return set, nil
}
