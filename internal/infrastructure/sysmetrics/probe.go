package sysmetrics

import (
	"context"
	"fmt"
	"os"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"
)

// Probe reads host and process resource usage. Each accessor fails
// independently so the collector can keep whatever metrics it can get.
type Probe interface {
	// CPUPercent returns the aggregate CPU utilization since the last call
	CPUPercent(ctx context.Context) (float64, error)
	// MemoryPercent returns the host virtual memory utilization
	MemoryPercent(ctx context.Context) (float64, error)
	// DiskPercent returns the utilization of the monitored mount
	DiskPercent(ctx context.Context) (float64, error)
	// ProcessRSSMB returns this process's resident set size in megabytes
	ProcessRSSMB(ctx context.Context) (float64, error)
}

// HostProbe reads metrics from the local host via gopsutil
type HostProbe struct {
	diskPath string
	pid      int32
}

// HostProbeOption configures a HostProbe
type HostProbeOption func(*HostProbe)

// WithDiskPath sets the mount point whose usage is reported
func WithDiskPath(path string) HostProbeOption {
	return func(p *HostProbe) {
		p.diskPath = path
	}
}

// NewHostProbe creates a probe for the local host and current process
func NewHostProbe(opts ...HostProbeOption) *HostProbe {
	p := &HostProbe{
		diskPath: "/",
		pid:      int32(os.Getpid()),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

var _ Probe = (*HostProbe)(nil)

// CPUPercent implements Probe. The first call after process start may
// report zero because gopsutil measures against the previous sample.
func (p *HostProbe) CPUPercent(ctx context.Context) (float64, error) {
	percents, err := cpu.PercentWithContext(ctx, 0, false)
	if err != nil {
		return 0, fmt.Errorf("read cpu usage: %w", err)
	}
	if len(percents) == 0 {
		return 0, fmt.Errorf("read cpu usage: no data")
	}
	return percents[0], nil
}

// MemoryPercent implements Probe
func (p *HostProbe) MemoryPercent(ctx context.Context) (float64, error) {
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return 0, fmt.Errorf("read memory usage: %w", err)
	}
	return vm.UsedPercent, nil
}

// DiskPercent implements Probe
func (p *HostProbe) DiskPercent(ctx context.Context) (float64, error) {
	usage, err := disk.UsageWithContext(ctx, p.diskPath)
	if err != nil {
		return 0, fmt.Errorf("read disk usage for %s: %w", p.diskPath, err)
	}
	return usage.UsedPercent, nil
}

// ProcessRSSMB implements Probe
func (p *HostProbe) ProcessRSSMB(ctx context.Context) (float64, error) {
	proc, err := process.NewProcessWithContext(ctx, p.pid)
	if err != nil {
		return 0, fmt.Errorf("open process %d: %w", p.pid, err)
	}
	info, err := proc.MemoryInfoWithContext(ctx)
	if err != nil {
		return 0, fmt.Errorf("read process memory: %w", err)
	}
	return float64(info.RSS) / (1024 * 1024), nil
}
