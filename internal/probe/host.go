package probe

import (
	"context"
	"errors"
	"os/exec"
	"regexp"
	"runtime"
	"strconv"
	"strings"
	"time"
)

// gpuDetectTimeout bounds each vendor tool invocation.
const gpuDetectTimeout = 5 * time.Second

// errMemoryUnsupported is returned on platforms without a memory query.
var errMemoryUnsupported = errors.New("memory query not supported on " + runtime.GOOS)

// GPU describes an accelerator reported by the vendor tooling.
type GPU struct {
	Name   string
	Vendor string
	VRAMMB uint64
}

// Host is the hardware surface the probe reads. Tests substitute simulated
// hosts; System returns the real one.
type Host interface {
	CPUs() int
	// Memory returns total and currently available system memory in MiB.
	Memory() (totalMB, availMB uint64, err error)
	// GPU returns nil when no compatible GPU is present.
	GPU(ctx context.Context) (*GPU, error)
}

type systemHost struct{}

// System returns the Host backed by the running machine.
func System() Host { return systemHost{} }

func (systemHost) CPUs() int { return runtime.NumCPU() }

func (systemHost) Memory() (uint64, uint64, error) { return systemMemory() }

func (systemHost) GPU(ctx context.Context) (*GPU, error) {
	if gpu := detectNvidia(ctx); gpu != nil {
		return gpu, nil
	}
	if gpu := detectAMD(ctx); gpu != nil {
		return gpu, nil
	}
	return nil, nil
}

// detectNvidia queries nvidia-smi for the first device.
func detectNvidia(ctx context.Context) *GPU {
	ctx, cancel := context.WithTimeout(ctx, gpuDetectTimeout)
	defer cancel()
	bin := "nvidia-smi"
	if runtime.GOOS == "windows" {
		bin = "nvidia-smi.exe"
	}
	out, err := exec.CommandContext(ctx, bin,
		"--query-gpu=name,memory.total",
		"--format=csv,noheader,nounits").Output()
	if err != nil {
		return nil
	}
	return parseNvidiaSMI(string(out))
}

// parseNvidiaSMI parses "<name>, <MiB>" lines and keeps the first device.
func parseNvidiaSMI(out string) *GPU {
	line := strings.TrimSpace(strings.SplitN(strings.TrimSpace(out), "\n", 2)[0])
	parts := strings.Split(line, ",")
	if len(parts) < 2 {
		return nil
	}
	mb, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil || mb <= 0 {
		return nil
	}
	return &GPU{Name: strings.TrimSpace(parts[0]), Vendor: "nvidia", VRAMMB: uint64(mb)}
}

var rocmTotalRe = regexp.MustCompile(`(?i)vram total memory \(b\):\s*(\d+)`)

// detectAMD queries rocm-smi for VRAM of the first device.
func detectAMD(ctx context.Context) *GPU {
	if runtime.GOOS != "linux" {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, gpuDetectTimeout)
	defer cancel()
	out, err := exec.CommandContext(ctx, "rocm-smi", "--showmeminfo", "vram").Output()
	if err != nil {
		return nil
	}
	return parseROCmSMI(string(out))
}

func parseROCmSMI(out string) *GPU {
	m := rocmTotalRe.FindStringSubmatch(out)
	if len(m) < 2 {
		return nil
	}
	b, err := strconv.ParseUint(m[1], 10, 64)
	if err != nil || b == 0 {
		return nil
	}
	return &GPU{Name: "AMD GPU", Vendor: "amd", VRAMMB: b / (1024 * 1024)}
}

// parseMeminfo reads MemTotal and MemAvailable (in kB) from the contents of
// /proc/meminfo and returns them in MiB. ok is false unless both are present.
func parseMeminfo(data string) (totalMB, availMB uint64, ok bool) {
	var haveTotal, haveAvail bool
	for _, line := range strings.Split(data, "\n") {
		key, rest, found := strings.Cut(line, ":")
		if !found {
			continue
		}
		fields := strings.Fields(rest)
		if len(fields) == 0 {
			continue
		}
		kb, err := strconv.ParseUint(fields[0], 10, 64)
		if err != nil {
			continue
		}
		switch key {
		case "MemTotal":
			totalMB, haveTotal = kb>>10, true
		case "MemAvailable":
			availMB, haveAvail = kb>>10, true
		}
	}
	return totalMB, availMB, haveTotal && haveAvail
}
