package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clothsim/gpu"
)

func TestRenderDevices(t *testing.T) {
	color.NoColor = true
	devices := []gpu.DeviceInfo{
		{Index: 0, Platform: "Acme CL", Name: "Widget iGPU", Type: gpu.DeviceGPU, MemoryMB: 512},
		{Index: 1, Platform: "Acme CL", Name: "Widget dGPU", Type: gpu.DeviceGPU, MemoryMB: 8192, GLSharing: true},
	}

	var out bytes.Buffer
	require.NoError(t, renderDevices(&out, devices, 1))
	text := out.String()

	lines := strings.Split(strings.TrimSpace(text), "\n")
	header := -1
	for i, l := range lines {
		if strings.Contains(strings.ToUpper(l), "GL SHARING") {
			header = i
			break
		}
	}
	require.NotEqual(t, -1, header, text)
	assert.NotContains(t, lines[header], "Widget")

	// A separator line divides the header from the first device row.
	require.Greater(t, len(lines), header+2, text)
	assert.NotContains(t, lines[header+1], "Widget", text)
	assert.Contains(t, lines[header+2], "Widget iGPU", text)
	assert.Contains(t, text, "*1")
	assert.Contains(t, text, "8192 MB")
	assert.Equal(t, 1, strings.Count(strings.ToUpper(text), "GL SHARING"))
}
