package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"clothsim/cloth"
	"clothsim/config"
	"clothsim/gpu"
	"clothsim/gpu/cpu"
	_ "clothsim/gpu/opencl"
	"clothsim/logger"
	"clothsim/metrics"
	"clothsim/rendering/camera"
	"clothsim/rendering/opengl"
	"clothsim/rendering/opengl/shaders"
	"clothsim/simulation"
	"clothsim/telemetry"
)

func main() {
	// GLFW and the GL context are bound to the main thread.
	runtime.LockOSThread()

	var (
		configPath = flag.String("config", config.DefaultPath, "settings file (.json, .yaml or .yml)")
		backend    = flag.String("backend", "", "compute backend (opencl, cpu)")
		device     = flag.Int("device", gpu.AutoDevice, "compute device index, -1 picks the first with GL sharing")
	)
	flag.Parse()

	settings, found, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "clothsim: %v\n", err)
		os.Exit(1)
	}
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "backend":
			settings.Compute.Backend = *backend
		case "device":
			settings.Compute.Device = *device
		}
	})
	if err := settings.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "clothsim: %v\n", err)
		os.Exit(1)
	}

	level := zap.NewAtomicLevel()
	log, err := logger.New(logger.Config{
		Environment: settings.Log.Environment,
		Level:       settings.Log.Level,
		Dynamic:     &level,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "clothsim: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if !found {
		log.Info("no settings file, using defaults", zap.String("path", *configPath))
	}
	if err := run(settings, *configPath, found, log, level); err != nil {
		log.Fatal("clothsim stopped", zap.Error(err))
	}
}

func run(s config.Settings, path string, watch bool, log *zap.Logger, level zap.AtomicLevel) error {
	win, err := opengl.NewWindow(opengl.WindowConfig{
		Width:     s.Render.Width,
		Height:    s.Render.Height,
		Title:     s.Render.Title,
		VSync:     s.Render.VSync,
		Wireframe: s.Render.Wireframe,
	}, log)
	if err != nil {
		return err
	}
	defer win.Close()

	cam := camera.New(60, win.Aspect(), mgl32.Vec3{-3, -3, -3}, 37.5, 45)
	win.AttachCamera(cam)

	prog, err := shaders.Load(s.Render.VertexShader, s.Render.GeometryShader, s.Render.FragmentShader)
	if err != nil {
		return err
	}
	defer prog.Delete()

	backend, err := gpu.Lookup(s.Compute.Backend)
	if err != nil {
		return err
	}
	newMesh := func(v []float32, i []uint32) (cloth.Mesh, error) {
		m, err := opengl.NewMesh(v, i)
		if err != nil {
			return nil, err
		}
		return m, nil
	}
	if s.Compute.Backend == cpu.BackendName {
		newMesh = func(v []float32, i []uint32) (cloth.Mesh, error) {
			m, err := opengl.NewHostMesh(v, i)
			if err != nil {
				return nil, err
			}
			return m, nil
		}
	}

	// The compute context is created against the current GL context.
	sim, err := cloth.New(cloth.Options{
		Params:         s.ClothParams(),
		Backend:        backend,
		DeviceIndex:    s.Compute.Device,
		KernelPath:     s.Compute.KernelPath,
		PositionKernel: s.Compute.PositionKernel,
		VelocityKernel: s.Compute.VelocityKernel,
		NewMesh:        newMesh,
		Logger:         log,
	})
	if err != nil {
		return errors.Wrap(err, "creating cloth")
	}
	defer func() {
		if err := sim.Destroy(); err != nil {
			log.Error("cloth teardown failed", zap.Error(err))
		}
	}()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	rec := metrics.NewRecorder(reg)

	controls := &simulation.Controls{}
	controls.Paused.Store(s.Loop.Paused)
	win.OnPause(func() {
		paused := !controls.Paused.Load()
		controls.Paused.Store(paused)
		log.Info("pause toggled", zap.Bool("paused", paused))
	})

	clock := simulation.NewFixedStep(s.Loop.StepDuration(), s.Loop.MaxStepsPerFrame)
	driver := simulation.NewDriver(sim, clock, s.Cloth.TimeStep, controls, rec, log)

	ctx, cancel := context.WithCancel(context.Background())
	g, gctx := errgroup.WithContext(ctx)
	defer func() {
		cancel()
		if err := g.Wait(); err != nil {
			log.Warn("background service stopped", zap.Error(err))
		}
	}()

	if s.Telemetry.Enabled {
		srv := telemetry.NewServer(telemetry.Options{
			Addr:     s.Telemetry.Addr,
			Interval: s.Telemetry.UpdateInterval(),
			Stats:    driver,
			Controls: controls,
			Gatherer: reg,
			Logger:   log.Named("telemetry"),
		})
		g.Go(func() error { return srv.Run(gctx) })
	}
	if watch {
		reload := simulation.NewReloader(controls, s.Loop.Paused, s.Loop.MaxStepsPerFrame)
		w, err := config.NewWatcher(path, func(tu config.Tunables) {
			reload.Apply(tu.Paused, tu.MaxStepsPerFrame)
			level.SetLevel(logger.Level(tu.LogLevel).Level())
		}, log.Named("settings"))
		if err != nil {
			return err
		}
		g.Go(func() error { return w.Run(gctx) })
	}

	log.Info("simulation running",
		zap.Int("sizeX", s.Cloth.SizeX),
		zap.Int("sizeY", s.Cloth.SizeY),
		zap.String("backend", s.Compute.Backend),
		zap.Duration("step", s.Loop.StepDuration()))

	last := win.Time()
	for !win.ShouldClose() {
		now := win.Time()
		dt := now - last
		last = now

		win.ProcessInput(float32(dt))
		win.Clear(s.Render.ClearColor)
		if err := sim.Draw(cam, prog); err != nil {
			return errors.Wrap(err, "drawing cloth")
		}
		if _, err := driver.Frame(time.Duration(dt * float64(time.Second))); err != nil {
			return errors.Wrap(err, "stepping cloth")
		}
		win.EndFrame()
	}
	log.Info("window closed", zap.Uint64("steps", sim.Steps()))
	return nil
}
