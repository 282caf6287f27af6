// Package hoststats backs the host.stats meta opcode (spec.md §4.5 SPEC_FULL
// addition) with real process/host introspection via shirou/gopsutil, the
// same dependency family the teacher reaches for whenever it needs resource
// numbers rather than business data (see its marble enclave health probes).
package hoststats

import (
	"fmt"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/load"
	"github.com/shirou/gopsutil/v3/mem"
)

// Snapshotter implements opcodes.HostStats against the live host.
type Snapshotter struct{}

// New constructs a Snapshotter.
func New() *Snapshotter { return &Snapshotter{} }

// Snapshot returns a script-facing object (spec.md §3 object literal shape:
// map[string]any) describing current CPU, memory, load, and uptime.
func (Snapshotter) Snapshot() (map[string]any, error) {
	out := map[string]any{}

	if percents, err := cpu.Percent(0, false); err == nil && len(percents) > 0 {
		out["cpu_percent"] = percents[0]
	} else if err != nil {
		return nil, fmt.Errorf("cpu stats: %w", err)
	}

	if vm, err := mem.VirtualMemory(); err == nil {
		out["mem_total"] = float64(vm.Total)
		out["mem_used"] = float64(vm.Used)
		out["mem_percent"] = vm.UsedPercent
	} else {
		return nil, fmt.Errorf("mem stats: %w", err)
	}

	if avg, err := load.Avg(); err == nil {
		out["load1"] = avg.Load1
		out["load5"] = avg.Load5
		out["load15"] = avg.Load15
	}

	if info, err := host.Info(); err == nil {
		out["uptime_seconds"] = float64(info.Uptime)
		out["hostname"] = info.Hostname
	}

	return out, nil
}
