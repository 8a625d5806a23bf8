// Package device selects where training arithmetic runs.
package device

import (
	"errors"
	"fmt"
	"runtime"
	"strings"

	"github.com/klauspost/cpuid/v2"

	"github.com/crimson-sun/logkey/internal/logging"
)

// ErrUnavailable is returned when the requested device cannot be used.
var ErrUnavailable = errors.New("device: unavailable")

// Kind identifies a device class.
type Kind string

const (
	CPU  Kind = "cpu"
	CUDA Kind = "cuda"
)

// Device describes the selected compute device.
type Device struct {
	Kind     Kind
	Name     string
	Cores    int  // logical cores available for gradient workers
	Vector   bool // AVX2 or better
	Features []string
}

func (d Device) String() string {
	return fmt.Sprintf("%s (%s, %d cores)", d.Kind, d.Name, d.Cores)
}

// Select resolves a device preference: "auto" or "" and "cpu" choose the CPU,
// "cuda" fails with ErrUnavailable since no accelerator backend is linked.
func Select(pref string) (Device, error) {
	switch strings.ToLower(pref) {
	case "", "auto", string(CPU):
		d := describeCPU()
		logging.Component("device").Info("device selected",
			"kind", d.Kind, "name", d.Name, "cores", d.Cores, "vector", d.Vector)
		return d, nil
	case string(CUDA):
		return Device{}, fmt.Errorf("%w: %s requested but no accelerator backend is available", ErrUnavailable, CUDA)
	default:
		return Device{}, fmt.Errorf("%w: unknown device %q", ErrUnavailable, pref)
	}
}

func describeCPU() Device {
	name := strings.TrimSpace(cpuid.CPU.BrandName)
	if name == "" {
		name = runtime.GOARCH
	}
	cores := cpuid.CPU.LogicalCores
	if cores <= 0 {
		cores = runtime.NumCPU()
	}
	cores = min(cores, runtime.GOMAXPROCS(0))
	return Device{
		Kind:     CPU,
		Name:     name,
		Cores:    cores,
		Vector:   cpuid.CPU.Supports(cpuid.AVX2) || cpuid.CPU.Supports(cpuid.AVX512F, cpuid.AVX512DQ) || cpuid.CPU.Supports(cpuid.ASIMD),
		Features: cpuid.CPU.FeatureSet(),
	}
}
