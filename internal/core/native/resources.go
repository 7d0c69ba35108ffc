package native

import (
	"runtime"
	"strconv"
	"strings"

	"facter/internal/domain"
)

func resolveResources(p *Provider, fs *domain.FactSet) {
	processors := domain.NewMap()
	processors.Set("count", domain.Integer(runtime.NumCPU()))
	processors.Set("isa", domain.String(hardwareModel(runtime.GOARCH)))

	if cpuinfo := p.readFile("/proc/cpuinfo"); cpuinfo != "" {
		var models domain.Array
		physical := make(map[string]bool)
		for _, line := range strings.Split(cpuinfo, "\n") {
			key, value, ok := strings.Cut(line, ":")
			if !ok {
				continue
			}
			switch strings.TrimSpace(key) {
			case "model name":
				models = append(models, domain.String(strings.TrimSpace(value)))
			case "physical id":
				physical[strings.TrimSpace(value)] = true
			}
		}
		if len(models) > 0 {
			processors.Set("models", models)
		}
		if len(physical) > 0 {
			processors.Set("physicalcount", domain.Integer(len(physical)))
		}
	}

	if limit, ok := p.cgroupCPULimit(); ok {
		processors.Set("limit", domain.Double(limit))
	}

	fs.Set("processors", processors)
	fs.Set("processorcount", domain.Integer(runtime.NumCPU()))

	if system := p.memory(); system.Len() > 0 {
		memory := domain.NewMap()
		memory.Set("system", system)
		fs.Set("memory", memory)
		if total, ok := system.Get("total_bytes"); ok {
			fs.Set("memorysize_mb", domain.Double(float64(total.(domain.Integer))/(1<<20)))
		}
	}
}

// memory reads /proc/meminfo and the cgroup memory limit
func (p *Provider) memory() *domain.Map {
	system := domain.NewMap()

	meminfo := p.readFile("/proc/meminfo")
	fields := map[string]string{
		"MemTotal":     "total_bytes",
		"MemAvailable": "available_bytes",
		"SwapTotal":    "swap_total_bytes",
		"SwapFree":     "swap_available_bytes",
	}
	for _, line := range strings.Split(meminfo, "\n") {
		key, rest, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		name, wanted := fields[key]
		if !wanted {
			continue
		}
		parts := strings.Fields(rest)
		if len(parts) == 0 {
			continue
		}
		kb, err := strconv.ParseInt(parts[0], 10, 64)
		if err != nil {
			continue
		}
		system.Set(name, domain.Integer(kb*1024))
	}

	if total, ok := system.Get("total_bytes"); ok {
		system.Set("total", domain.String(humanBytes(int64(total.(domain.Integer)))))
	}
	if avail, ok := system.Get("available_bytes"); ok {
		system.Set("available", domain.String(humanBytes(int64(avail.(domain.Integer)))))
	}
	if limit, ok := p.cgroupMemoryLimit(); ok {
		system.Set("limit_bytes", domain.Integer(limit))
	}
	return system
}

// cgroupMemoryLimit reads the container memory limit, v2 first
func (p *Provider) cgroupMemoryLimit() (int64, bool) {
	if s := p.readFile("/sys/fs/cgroup/memory.max"); s != "" && s != "max" {
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return n, true
		}
	}
	if s := p.readFile("/sys/fs/cgroup/memory/memory.limit_in_bytes"); s != "" {
		// v1 reports a huge value when unlimited
		if n, err := strconv.ParseInt(s, 10, 64); err == nil && n < 1<<62 {
			return n, true
		}
	}
	return 0, false
}

// cgroupCPULimit reads the container CPU quota as a number of CPUs
func (p *Provider) cgroupCPULimit() (float64, bool) {
	if s := p.readFile("/sys/fs/cgroup/cpu.max"); s != "" {
		fields := strings.Fields(s)
		if len(fields) >= 2 && fields[0] != "max" {
			quota, err1 := strconv.ParseInt(fields[0], 10, 64)
			period, err2 := strconv.ParseInt(fields[1], 10, 64)
			if err1 == nil && err2 == nil && period > 0 {
				return float64(quota) / float64(period), true
			}
		}
	}

	quota := p.readFile("/sys/fs/cgroup/cpu/cpu.cfs_quota_us")
	period := p.readFile("/sys/fs/cgroup/cpu/cpu.cfs_period_us")
	q, err1 := strconv.ParseInt(quota, 10, 64)
	per, err2 := strconv.ParseInt(period, 10, 64)
	if err1 == nil && err2 == nil && q > 0 && per > 0 {
		return float64(q) / float64(per), true
	}
	return 0, false
}

// humanBytes formats n with a binary unit, e.g. "15.52 GiB"
func humanBytes(n int64) string {
	units := []string{"bytes", "KiB", "MiB", "GiB", "TiB", "PiB"}
	f := float64(n)
	i := 0
	for f >= 1024 && i < len(units)-1 {
		f /= 1024
		i++
	}
	if i == 0 {
		return strconv.FormatInt(n, 10) + " bytes"
	}
	return strconv.FormatFloat(f, 'f', 2, 64) + " " + units[i]
}
