package dispatch

import (
	"context"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/host"
	"github.com/shirou/gopsutil/v4/load"
	"github.com/shirou/gopsutil/v4/mem"

	"github.com/halvarsson/xvdrd/internal/protocol"
)

// handleSystemStats implements the supplemental OPCODE 160: no request
// fields. Response: U32 uptimeSeconds | U32 cpuCores | Double cpuPercent |
// Double load1 | U64 memTotalBytes | U64 memUsedBytes | Double memPercent,
// a host-health snapshot a headless PVR client can poll instead of SSHing
// in, built the same collect-and-zero-on-error way
// StatsCollector.Collect gathers a heartbeat's system fields.
func handleSystemStats(ctx context.Context, _ *Dispatcher, _ *Session, _ *protocol.PayloadReader) ([]byte, *protocol.Error) {
	var uptime uint64
	if u, err := host.UptimeWithContext(ctx); err == nil {
		uptime = u
	}

	var cores int
	if c, err := cpu.CountsWithContext(ctx, true); err == nil {
		cores = c
	}

	var cpuPercent float64
	if percents, err := cpu.PercentWithContext(ctx, 0, false); err == nil && len(percents) > 0 {
		cpuPercent = percents[0]
	}

	var load1 float64
	if avg, err := load.AvgWithContext(ctx); err == nil {
		load1 = avg.Load1
	}

	var memTotal, memUsed uint64
	var memPercent float64
	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		memTotal = vm.Total
		memUsed = vm.Used
		memPercent = vm.UsedPercent
	}

	payload := protocol.NewPayloadWriter().
		U32(uint32(uptime)).
		U32(uint32(cores)).
		Double(cpuPercent).
		Double(load1).
		U64(memTotal).
		U64(memUsed).
		Double(memPercent).
		Bytes()
	return payload, nil
}
