package device

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fakeProbe(goos, goarch string, driver, smi bool, env map[string]string) probe {
	return probe{
		goos:       goos,
		goarch:     goarch,
		fileExists: func(string) bool { return driver },
		lookPath: func(string) (string, error) {
			if smi {
				return "/usr/bin/nvidia-smi", nil
			}
			return "", errors.New("not found")
		},
		lookupEnv: func(k string) (string, bool) {
			v, ok := env[k]
			return v, ok
		},
	}
}

func TestParse(t *testing.T) {
	for in, want := range map[string]Device{"": Auto, "CPU": CPU, "cuda": CUDA, "coreml": CoreML, "mps": CoreML, " auto ": Auto} {
		got, err := Parse(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := Parse("tpu")
	assert.Error(t, err)
}

func TestDetectExplicitPassesThrough(t *testing.T) {
	p := fakeProbe("linux", "amd64", true, true, nil)
	assert.Equal(t, CPU, p.detect(CPU))
	assert.Equal(t, CoreML, p.detect(CoreML))
}

func TestDetectAuto(t *testing.T) {
	assert.Equal(t, CoreML, fakeProbe("darwin", "arm64", false, false, nil).detect(Auto))
	assert.Equal(t, CPU, fakeProbe("darwin", "amd64", false, false, nil).detect(Auto))
	assert.Equal(t, CUDA, fakeProbe("linux", "amd64", true, false, nil).detect(Auto))
	assert.Equal(t, CUDA, fakeProbe("linux", "amd64", false, true, nil).detect(""))
	assert.Equal(t, CPU, fakeProbe("linux", "amd64", false, false, nil).detect(Auto))
}

func TestDetectHonoursHiddenDevices(t *testing.T) {
	hidden := map[string]string{"CUDA_VISIBLE_DEVICES": "-1"}
	assert.Equal(t, CPU, fakeProbe("linux", "amd64", true, true, hidden).detect(Auto))
	empty := map[string]string{"CUDA_VISIBLE_DEVICES": ""}
	assert.Equal(t, CPU, fakeProbe("linux", "amd64", true, true, empty).detect(Auto))
	one := map[string]string{"CUDA_VISIBLE_DEVICES": "0"}
	assert.Equal(t, CUDA, fakeProbe("linux", "amd64", true, false, one).detect(Auto))
}
