package sysinfo

import (
	"errors"
	"testing"
	"time"

	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/load"
	"github.com/shirou/gopsutil/v4/mem"
	"github.com/stretchr/testify/assert"
)

func TestCollector_Real(t *testing.T) {
	info := NewCollector(t.TempDir()).Collect()
	assert.Empty(t, info.Errors)
	assert.Positive(t, info.MemTotal)
	assert.Positive(t, info.DiskFreePercent)
	assert.LessOrEqual(t, info.DiskFreePercent, 100.0)
}

func TestCollector_Mocked(t *testing.T) {
	c := &Collector{
		DiskPath: "/data",
		memory:   func() (*mem.VirtualMemoryStat, error) { return &mem.VirtualMemoryStat{UsedPercent: 42, Total: 1024}, nil },
		loads:    func() (*load.AvgStat, error) { return &load.AvgStat{Load1: 1.5, Load5: 1, Load15: 0.5}, nil },
		usage:    func(string) (*disk.UsageStat, error) { return &disk.UsageStat{UsedPercent: 70}, nil },
	}
	info := c.Collect()
	assert.Equal(t, Info{MemUsedPercent: 42, MemTotal: 1024, Load1: 1.5, Load5: 1, Load15: 0.5,
		DiskPath: "/data", DiskFreePercent: 30}, info)
}

func TestCollector_Failures(t *testing.T) {
	c := &Collector{
		memory: func() (*mem.VirtualMemoryStat, error) { return nil, errors.New("no mem") },
		loads:  func() (*load.AvgStat, error) { return nil, errors.New("no load") },
		usage:  func(string) (*disk.UsageStat, error) { return nil, errors.New("no disk") },
	}
	info := c.Collect()
	assert.Len(t, info.Errors, 2, "disk is skipped without a path")

	c.DiskPath = "/missing"
	info = c.Collect()
	assert.Len(t, info.Errors, 3)
	assert.Contains(t, info.Errors[2], "/missing")
}

func TestUptime(t *testing.T) {
	assert.Equal(t, "1m30s", Uptime(time.Now().Add(-90*time.Second)))
}
