package app

import (
	"time"

	"github.com/thushan/ladle/internal/util"
	"github.com/thushan/ladle/pkg/format"
	"github.com/thushan/ladle/pkg/nerdstats"
)

// ProcessStats is the runtime section of the stats surface. Byte counts
// come through format.Bytes so the JSON reads like the log lines do.
type ProcessStats struct {
	Memory      MemoryStats     `json:"memory"`
	GC          GCStats         `json:"garbage_collection"`
	Goroutines  GoroutineStats  `json:"goroutines"`
	Runtime     RuntimeStats    `json:"runtime"`
	Allocations AllocationStats `json:"allocations"`
}

type MemoryStats struct {
	HeapAlloc  string `json:"heap_alloc"`
	HeapSys    string `json:"heap_sys"`
	HeapInuse  string `json:"heap_inuse"`
	TotalAlloc string `json:"total_alloc"`
	Pressure   string `json:"memory_pressure"`
}

type GCStats struct {
	LastGC      string  `json:"last_gc,omitempty"`
	TotalGCTime string  `json:"total_gc_time,omitempty"`
	CPUFraction float64 `json:"gc_cpu_fraction"`
	Cycles      uint32  `json:"num_gc_cycles"`
}

type GoroutineStats struct {
	Health string `json:"health_status"`
	Count  int    `json:"count"`
}

type RuntimeStats struct {
	GoVersion  string `json:"go_version"`
	NumCPU     int    `json:"num_cpu"`
	GOMAXPROCS int    `json:"gomaxprocs"`
}

type AllocationStats struct {
	Mallocs    uint64 `json:"total_mallocs"`
	Frees      uint64 `json:"total_frees"`
	NetObjects int64  `json:"net_objects"`
}

func (a *Application) buildProcessStats() ProcessStats {
	s := nerdstats.Snapshot(a.StartTime)

	ps := ProcessStats{
		Memory: MemoryStats{
			HeapAlloc:  format.Bytes(s.HeapAlloc),
			HeapSys:    format.Bytes(s.HeapSys),
			HeapInuse:  format.Bytes(s.HeapInuse),
			TotalAlloc: format.Bytes(s.TotalAlloc),
			Pressure:   s.GetMemoryPressure(),
		},
		GC: GCStats{
			CPUFraction: s.GCCPUFraction,
			Cycles:      s.NumGC,
		},
		Goroutines: GoroutineStats{
			Health: s.GetGoroutineHealthStatus(),
			Count:  s.NumGoroutines,
		},
		Runtime: RuntimeStats{
			GoVersion:  s.GoVersion,
			NumCPU:     s.NumCPU,
			GOMAXPROCS: s.GOMAXPROCS,
		},
		Allocations: AllocationStats{
			Mallocs:    s.Mallocs,
			Frees:      s.Frees,
			NetObjects: util.SafeInt64Diff(s.Mallocs, s.Frees),
		},
	}

	if !s.LastGC.IsZero() {
		ps.GC.LastGC = s.LastGC.Format(time.RFC3339)
		ps.GC.TotalGCTime = format.Duration(s.TotalGCTime)
	}

	return ps
}
