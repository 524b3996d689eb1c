// Package sysinfo collects host metrics shown on the admin status endpoint
package sysinfo

import (
	"fmt"
	"time"

	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/load"
	"github.com/shirou/gopsutil/v4/mem"
)

// Info is a snapshot of host metrics. Failed probes leave their fields zero and add to Errors.
type Info struct {
	MemUsedPercent  float64  `json:"memUsedPercent"`
	MemTotal        uint64   `json:"memTotal"`
	Load1           float64  `json:"load1"`
	Load5           float64  `json:"load5"`
	Load15          float64  `json:"load15"`
	DiskPath        string   `json:"diskPath,omitempty"`
	DiskFreePercent float64  `json:"diskFreePercent,omitempty"`
	Errors          []string `json:"errors,omitempty"`
}

// Collector reads host metrics. Probe functions can be replaced in tests.
type Collector struct {
	DiskPath string // path to report free space for, skipped if empty

	memory func() (*mem.VirtualMemoryStat, error)
	loads  func() (*load.AvgStat, error)
	usage  func(path string) (*disk.UsageStat, error)
}

// NewCollector makes a collector reporting disk usage for diskPath
func NewCollector(diskPath string) *Collector {
	return &Collector{DiskPath: diskPath, memory: mem.VirtualMemory, loads: load.Avg, usage: disk.Usage}
}

// Collect gathers the snapshot, never fails as a whole
func (c *Collector) Collect() Info {
	res := Info{}

	if v, err := c.memory(); err != nil {
		res.Errors = append(res.Errors, fmt.Sprintf("failed to get memory: %v", err))
	} else {
		res.MemUsedPercent, res.MemTotal = v.UsedPercent, v.Total
	}

	if l, err := c.loads(); err != nil {
		res.Errors = append(res.Errors, fmt.Sprintf("failed to get load average: %v", err))
	} else {
		res.Load1, res.Load5, res.Load15 = l.Load1, l.Load5, l.Load15
	}

	if c.DiskPath != "" {
		res.DiskPath = c.DiskPath
		if u, err := c.usage(c.DiskPath); err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("failed to get disk usage for %s: %v", c.DiskPath, err))
		} else {
			res.DiskFreePercent = 100 - u.UsedPercent
		}
	}
	return res
}

// Uptime formats time since start, rounded to seconds
func Uptime(start time.Time) string {
	return time.Since(start).Round(time.Second).String()
}
