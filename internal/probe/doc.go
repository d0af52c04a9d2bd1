// Package probe inspects the host (CPU count, memory, GPU) and derives the
// runtime Profile a model session is loaded with.
//
// Probing never fails the caller: a host that cannot report its memory gets
// a conservative CPU-only profile, and a missing or unsupported GPU simply
// yields GPULayers == 0.
package probe
