package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"gopkg.in/yaml.v3"

	"clothsim/cloth"
)

// DefaultPath is read when no path is given.
const DefaultPath = "settings.json"

type Settings struct {
	Cloth     ClothSettings     `json:"cloth" yaml:"cloth"`
	Compute   ComputeSettings   `json:"compute" yaml:"compute"`
	Render    RenderSettings    `json:"render" yaml:"render"`
	Loop      LoopSettings      `json:"loop" yaml:"loop"`
	Telemetry TelemetrySettings `json:"telemetry" yaml:"telemetry"`
	Log       LogSettings       `json:"log" yaml:"log"`
}

type ClothSettings struct {
	SizeX     int        `json:"sizeX" yaml:"sizeX"`
	SizeY     int        `json:"sizeY" yaml:"sizeY"`
	Length    float32    `json:"length" yaml:"length"`
	Mass      float32    `json:"mass" yaml:"mass"`
	Stiffness float32    `json:"stiffness" yaml:"stiffness"`
	Damping   float32    `json:"damping" yaml:"damping"`
	TimeStep  float32    `json:"timeStep" yaml:"timeStep"`
	Gravity   float32    `json:"gravity" yaml:"gravity"`
	Position  [3]float32 `json:"position" yaml:"position"`
}

type ComputeSettings struct {
	// Backend is a registered backend name: "opencl" or "cpu".
	Backend string `json:"backend" yaml:"backend"`
	// Device is an index into the backend's device list; -1 selects the
	// first device able to share buffers with OpenGL.
	Device         int    `json:"device" yaml:"device"`
	KernelPath     string `json:"kernelPath" yaml:"kernelPath"`
	PositionKernel string `json:"positionKernel" yaml:"positionKernel"`
	VelocityKernel string `json:"velocityKernel" yaml:"velocityKernel"`
}

type RenderSettings struct {
	Width          int        `json:"width" yaml:"width"`
	Height         int        `json:"height" yaml:"height"`
	Title          string     `json:"title" yaml:"title"`
	VertexShader   string     `json:"vertexShader" yaml:"vertexShader"`
	GeometryShader string     `json:"geometryShader" yaml:"geometryShader"`
	FragmentShader string     `json:"fragmentShader" yaml:"fragmentShader"`
	ClearColor     [3]float32 `json:"clearColor" yaml:"clearColor"`
	Wireframe      bool       `json:"wireframe" yaml:"wireframe"`
	VSync          bool       `json:"vsync" yaml:"vsync"`
}

type LoopSettings struct {
	// StepSeconds is the wall time that makes one simulation step due.
	StepSeconds      float64 `json:"stepSeconds" yaml:"stepSeconds"`
	MaxStepsPerFrame int     `json:"maxStepsPerFrame" yaml:"maxStepsPerFrame"`
	Paused           bool    `json:"paused" yaml:"paused"`
}

type TelemetrySettings struct {
	Enabled          bool   `json:"enabled" yaml:"enabled"`
	Addr             string `json:"addr" yaml:"addr"`
	UpdateIntervalMs int    `json:"updateIntervalMs" yaml:"updateIntervalMs"`
}

type LogSettings struct {
	Level       string `json:"level" yaml:"level"`
	Environment string `json:"environment" yaml:"environment"`
}

// Default returns the settings used when no file is present.
func Default() Settings {
	p := cloth.DefaultParams()
	return Settings{
		Cloth: ClothSettings{
			SizeX:     p.SizeX,
			SizeY:     p.SizeY,
			Length:    p.Length,
			Mass:      p.Mass,
			Stiffness: p.Stiffness,
			Damping:   p.Damping,
			TimeStep:  p.TimeStep,
			Gravity:   -9.81,
		},
		Compute: ComputeSettings{
			Backend:        "opencl",
			Device:         -1,
			KernelPath:     "kernels/cloth.cl",
			PositionKernel: cloth.DefaultPositionKernel,
			VelocityKernel: cloth.DefaultVelocityKernel,
		},
		Render: RenderSettings{
			Width:          1280,
			Height:         720,
			Title:          "clothsim",
			VertexShader:   "shaders/cloth.vs",
			GeometryShader: "shaders/cloth.gs",
			FragmentShader: "shaders/cloth.fs",
			ClearColor:     [3]float32{0.7, 0.8, 1.0},
			VSync:          true,
		},
		Loop: LoopSettings{
			StepSeconds:      1.0 / 360,
			MaxStepsPerFrame: 12,
		},
		Telemetry: TelemetrySettings{
			Enabled:          false,
			Addr:             "127.0.0.1:8090",
			UpdateIntervalMs: 100,
		},
		Log: LogSettings{
			Level:       "info",
			Environment: "development",
		},
	}
}

// Load reads settings from path over the defaults. A missing file is not
// an error; found reports whether one was read. Files ending in .yaml or
// .yml are decoded as YAML, anything else as JSON.
func Load(path string) (s Settings, found bool, err error) {
	s = Default()
	if path == "" {
		path = DefaultPath
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, false, nil
		}
		return s, false, err
	}
	if err := decode(path, data, &s); err != nil {
		return s, true, err
	}
	return s, true, s.Validate()
}

func decode(path string, data []byte, s *Settings) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, s); err != nil {
			return fmt.Errorf("error parsing %s: %w", path, err)
		}
	default:
		if err := json.Unmarshal(data, s); err != nil {
			return fmt.Errorf("error parsing %s: %w", path, err)
		}
	}
	return nil
}

// Validate reports the first setting that cannot be used.
func (s Settings) Validate() error {
	if err := s.ClothParams().Validate(); err != nil {
		return err
	}
	switch {
	case s.Compute.Backend == "":
		return fmt.Errorf("compute.backend is empty")
	case s.Compute.Device < -1:
		return fmt.Errorf("compute.device %d: use -1 for automatic selection", s.Compute.Device)
	case s.Compute.KernelPath == "":
		return fmt.Errorf("compute.kernelPath is empty")
	case s.Render.Width <= 0 || s.Render.Height <= 0:
		return fmt.Errorf("render size %dx%d", s.Render.Width, s.Render.Height)
	case s.Loop.StepSeconds <= 0:
		return fmt.Errorf("loop.stepSeconds %v must be positive", s.Loop.StepSeconds)
	case s.Loop.MaxStepsPerFrame < 0:
		return fmt.Errorf("loop.maxStepsPerFrame %d is negative", s.Loop.MaxStepsPerFrame)
	case s.Telemetry.Enabled && s.Telemetry.Addr == "":
		return fmt.Errorf("telemetry.addr is empty")
	case s.Telemetry.UpdateIntervalMs <= 0:
		return fmt.Errorf("telemetry.updateIntervalMs %d must be positive", s.Telemetry.UpdateIntervalMs)
	}
	return nil
}

// ClothParams converts the cloth section.
func (s Settings) ClothParams() cloth.Params {
	c := s.Cloth
	return cloth.Params{
		SizeX:     c.SizeX,
		SizeY:     c.SizeY,
		Length:    c.Length,
		Mass:      c.Mass,
		Stiffness: c.Stiffness,
		Damping:   c.Damping,
		TimeStep:  c.TimeStep,
		Gravity:   c.Gravity,
		Position:  mgl32.Vec3(c.Position),
	}
}

// StepDuration is the loop step as a duration.
func (l LoopSettings) StepDuration() time.Duration {
	return time.Duration(l.StepSeconds * float64(time.Second))
}

// UpdateInterval is the telemetry broadcast period.
func (t TelemetrySettings) UpdateInterval() time.Duration {
	return time.Duration(t.UpdateIntervalMs) * time.Millisecond
}
