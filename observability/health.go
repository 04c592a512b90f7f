package observability

import (
	"os"
	"time"

	"github.com/shirou/gopsutil/process"
)

// Health is the payload of the health endpoint.
type Health struct {
	Status      string  `json:"status"`
	Uptime      string  `json:"uptime"`
	Live        int     `json:"live_participants"`
	Pid         int32   `json:"pid"`
	RamBytes    uint64  `json:"ram_bytes,omitempty"`
	CpuPercent  float64 `json:"cpu_percent,omitempty"`
	ProcessInfo string  `json:"process_status,omitempty"`
}

type HealthReporter struct {
	startedAt time.Time
	process   *process.Process
}

// NewHealthReporter binds the reporter to the current process. Process stats
// are optional: the reporter still answers when they cannot be read.
func NewHealthReporter() *HealthReporter {
	p, _ := process.NewProcess(int32(os.Getpid()))
	return &HealthReporter{startedAt: time.Now(), process: p}
}

func (h *HealthReporter) Report(live int) Health {
	health := Health{
		Status: "healthy",
		Uptime: time.Since(h.startedAt).Truncate(time.Second).String(),
		Live:   live,
		Pid:    int32(os.Getpid()),
	}
	if h.process == nil {
		return health
	}
	if memInfo, err := h.process.MemoryInfo(); err == nil {
		health.RamBytes = memInfo.RSS
	}
	if cpu, err := h.process.CPUPercent(); err == nil {
		health.CpuPercent = cpu
	}
	if status, err := h.process.Status(); err == nil {
		health.ProcessInfo = status
	}
	return health
}
