package clock

import (
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// ProcessHealth is a point-in-time snapshot of host resource pressure,
// sampled the way the teacher's system handlers report CPU/RAM via gopsutil.
type ProcessHealth struct {
	CPUPercent float64
	MemPercent float64
	Sampled    time.Time
}

// maxMemPercent is the host-memory pressure ceiling past which the Clock
// reports itself invalid regardless of wall time (spec §4.1's process-health
// guard on the refuse-to-trade failure mode).
const maxMemPercent = 97.0

// ProcessHealth samples current CPU and memory pressure. The CPU sample uses
// a zero interval, which reports usage since the previous call rather than
// blocking (see gopsutil/cpu's Percent docs).
func (c *Clock) ProcessHealth() (ProcessHealth, error) {
	cpuPct, err := cpu.Percent(0, false)
	if err != nil {
		return ProcessHealth{}, err
	}
	memStat, err := mem.VirtualMemory()
	if err != nil {
		return ProcessHealth{}, err
	}
	var pct float64
	if len(cpuPct) > 0 {
		pct = cpuPct[0]
	}
	return ProcessHealth{CPUPercent: pct, MemPercent: memStat.UsedPercent, Sampled: c.nowFn()}, nil
}
