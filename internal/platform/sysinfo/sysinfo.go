package sysinfo

import (
	"fmt"
	"os"

	"github.com/shirou/gopsutil/cpu"
	"github.com/shirou/gopsutil/host"
	"github.com/shirou/gopsutil/mem"
	"github.com/shirou/gopsutil/process"
)

// Describes the machine a run executed on.
type Info struct {
	Hostname string
	Platform string
	CPU      string
	Cores    int
	Memory   string
}

func (i Info) String() string {
	return fmt.Sprintf("%s (%s, %s x%d, %s)", i.Hostname, i.Platform, i.CPU, i.Cores, i.Memory)
}

// Collect gathers host data; fields that cannot be read stay empty.
func Collect() Info {
	var info Info
	if h, err := host.Info(); err == nil {
		info.Hostname = h.Hostname
		info.Platform = h.Platform
	}
	if cs, err := cpu.Info(); err == nil && len(cs) > 0 {
		info.CPU = cs[0].ModelName
	}
	if n, err := cpu.Counts(true); err == nil {
		info.Cores = n
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		info.Memory = fmt.Sprintf("%d GB", vm.Total/1024/1024/1024)
	}
	return info
}

// ProcessCPU returns user+system CPU seconds of the current process.
func ProcessCPU() (float64, error) {
	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return 0, fmt.Errorf("process cpu: %w", err)
	}
	times, err := p.Times()
	if err != nil {
		return 0, fmt.Errorf("process cpu: times: %w", err)
	}
	return times.User + times.System, nil
}
