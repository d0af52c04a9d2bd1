package probe

import (
	"context"

	"github.com/rs/zerolog"

	"promai/pkg/types"
)

// Tunable policy constants. The tier boundaries and per-tier values are
// heuristics, not contract.
const (
	// threadReserve cores are left to the interaction surface.
	threadReserve = 1

	highTierMB   = 16 * 1024
	mediumTierMB = 8 * 1024

	// gpuReserveMB of VRAM is kept for the KV cache and scratch buffers.
	gpuReserveMB = 1024
	// gpuLayerMB is the assumed footprint of one offloaded layer.
	gpuLayerMB = 256
	// MaxGPULayers offloads every layer of any current model.
	MaxGPULayers = 99
)

// Tier is one memory band of the configuration policy.
type Tier struct {
	Name          string
	MinMemoryMB   uint64
	ThreadCap     int
	ContextLength int
	BatchSize     int
}

// Tiers is ordered from largest to smallest memory band.
var Tiers = []Tier{
	{Name: "high", MinMemoryMB: highTierMB, ThreadCap: 8, ContextLength: 8192, BatchSize: 512},
	{Name: "medium", MinMemoryMB: mediumTierMB, ThreadCap: 6, ContextLength: 4096, BatchSize: 256},
	{Name: "low", MinMemoryMB: 0, ThreadCap: 4, ContextLength: 2048, BatchSize: 128},
}

// Report explains how a profile was derived.
type Report struct {
	CPUs     int           `json:"cpus"`
	TotalMB  uint64        `json:"total_mb"`
	AvailMB  uint64        `json:"avail_mb"`
	GPU      *GPU          `json:"gpu,omitempty"`
	Tier     string        `json:"tier"`
	Fallback bool          `json:"fallback"`
	Profile  types.Profile `json:"profile"`
}

// Prober derives profiles from a Host.
type Prober struct {
	Host Host
	Log  zerolog.Logger
}

// Probe inspects host and returns a profile. It never fails.
func Probe(ctx context.Context, host Host) types.Profile {
	return Prober{Host: host, Log: zerolog.Nop()}.Run(ctx).Profile
}

// Default probes the running machine.
func Default(ctx context.Context) types.Profile {
	return Probe(ctx, System())
}

// Run probes the host and returns the profile with its derivation.
func (p Prober) Run(ctx context.Context) Report {
	host := p.Host
	if host == nil {
		host = System()
	}
	r := Report{CPUs: host.CPUs()}

	total, avail, err := host.Memory()
	if err != nil {
		p.Log.Debug().Err(err).Msg("probe event=memory_query_failed")
		r.Fallback = true
		r.Tier = "fallback"
		r.Profile = FallbackProfile(r.CPUs)
		return r
	}
	r.TotalMB, r.AvailMB = total, avail

	mem := avail
	if mem == 0 {
		mem = total
	}
	tier := TierFor(mem)
	r.Tier = tier.Name
	r.Profile = types.Profile{
		Threads:       threadsFor(r.CPUs, tier.ThreadCap),
		ContextLength: tier.ContextLength,
		BatchSize:     tier.BatchSize,
	}

	gpu, err := host.GPU(ctx)
	if err != nil {
		p.Log.Debug().Err(err).Msg("probe event=gpu_query_failed")
	}
	if gpu != nil {
		r.GPU = gpu
		r.Profile.GPULayers = GPULayersFor(gpu.VRAMMB)
	}
	r.Profile = r.Profile.Normalize()
	p.Log.Debug().
		Int("cpus", r.CPUs).
		Uint64("avail_mb", r.AvailMB).
		Str("tier", r.Tier).
		Int("threads", r.Profile.Threads).
		Int("gpu_layers", r.Profile.GPULayers).
		Msg("probe event=profile")
	return r
}

// TierFor returns the band matching memMB.
func TierFor(memMB uint64) Tier {
	for _, t := range Tiers {
		if memMB >= t.MinMemoryMB {
			return t
		}
	}
	return Tiers[len(Tiers)-1]
}

// FallbackProfile is the conservative CPU-only profile used when the host
// cannot be queried.
func FallbackProfile(cpus int) types.Profile {
	low := Tiers[len(Tiers)-1]
	return types.Profile{
		Threads:       threadsFor(cpus, low.ThreadCap),
		ContextLength: low.ContextLength,
		BatchSize:     low.BatchSize,
	}
}

// GPULayersFor returns how many layers fit in vramMB.
func GPULayersFor(vramMB uint64) int {
	if vramMB <= gpuReserveMB {
		return 0
	}
	n := int((vramMB - gpuReserveMB) / gpuLayerMB)
	return min(n, MaxGPULayers)
}

func threadsFor(cpus, limit int) int {
	n := min(cpus-threadReserve, limit)
	return max(n, 1)
}

// Apply overlays non-zero override fields onto p and normalizes the result.
// A negative GPULayers override forces CPU-only.
func Apply(p, overrides types.Profile) types.Profile {
	if overrides.Threads > 0 {
		p.Threads = overrides.Threads
	}
	if overrides.ContextLength > 0 {
		p.ContextLength = overrides.ContextLength
	}
	if overrides.BatchSize > 0 {
		p.BatchSize = overrides.BatchSize
	}
	if overrides.GPULayers != 0 {
		p.GPULayers = max(overrides.GPULayers, 0)
	}
	return p.Normalize()
}
