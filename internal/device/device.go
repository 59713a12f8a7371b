// Package device picks the ONNX Runtime execution provider for this host.
package device

import (
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strings"
)

// Device names an execution provider.
type Device string

const (
	CPU    Device = "cpu"
	CUDA   Device = "cuda"
	CoreML Device = "coreml"
	Auto   Device = "auto"
)

// nvidiaVersionFile exists when the NVIDIA kernel driver is loaded.
const nvidiaVersionFile = "/proc/driver/nvidia/version"

// probe abstracts the host so detection can be tested.
type probe struct {
	goos, goarch string
	fileExists   func(string) bool
	lookPath     func(string) (string, error)
	lookupEnv    func(string) (string, bool)
}

var hostProbe = probe{
	goos:   runtime.GOOS,
	goarch: runtime.GOARCH,
	fileExists: func(p string) bool {
		_, err := os.Stat(p)
		return err == nil
	},
	lookPath:  exec.LookPath,
	lookupEnv: os.LookupEnv,
}

// Parse validates a device preference string.
func Parse(s string) (Device, error) {
	switch d := Device(strings.ToLower(strings.TrimSpace(s))); d {
	case "":
		return Auto, nil
	case CPU, CUDA, CoreML, Auto:
		return d, nil
	case "mps":
		// Apple GPU preference maps onto the CoreML provider.
		return CoreML, nil
	default:
		return "", fmt.Errorf("unknown device %q", s)
	}
}

// Detect resolves a preference to a concrete device. Explicit devices are
// returned as-is; auto prefers CoreML on Apple silicon, then CUDA, then CPU.
func Detect(pref Device) Device {
	return hostProbe.detect(pref)
}

func (p probe) detect(pref Device) Device {
	if pref != Auto && pref != "" {
		return pref
	}
	if p.goos == "darwin" && p.goarch == "arm64" {
		return CoreML
	}
	if p.cudaVisible() {
		return CUDA
	}
	return CPU
}

func (p probe) cudaVisible() bool {
	if v, ok := p.lookupEnv("CUDA_VISIBLE_DEVICES"); ok {
		v = strings.TrimSpace(v)
		if v == "" || v == "-1" {
			return false
		}
	}
	if p.goos != "linux" && p.goos != "windows" {
		return false
	}
	if p.fileExists(nvidiaVersionFile) {
		return true
	}
	_, err := p.lookPath("nvidia-smi")
	return err == nil
}
