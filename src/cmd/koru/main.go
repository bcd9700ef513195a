// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package main

import (
	"context"
	"flag"
	"os"
	"path/filepath"
	"runtime"
	"runtime/pprof"
	"runtime/trace"
	"sort"
	"strings"
	"sync"

	"github.com/gobuffalo/packr"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/veandco/go-sdl2/sdl"

	"github.com/devblok/vkimage/src/core"
	"github.com/devblok/vkimage/src/gfx"
	"github.com/devblok/vkimage/src/gfx/vkr"
	"github.com/devblok/vkimage/src/scene"
	"github.com/devblok/vkimage/src/script"
	"github.com/devblok/vkimage/src/utility/kar"
)

func init() {
	runtime.LockOSThread()
}

// Profiling
var (
	cpuProfile   = flag.String("cpuprof", "", "Profile CPU usage to file")
	memProfile   = flag.String("memprof", "", "Profile memory usage into a file")
	traceProfile = flag.String("trace", "", "Trace output for profiling")
	envFile      = flag.String("env", ".env", "Optional dotenv file with KORU_* settings")
)

// scripts shipped with the binary, used when the script directory is missing
var defaultScripts = packr.NewBox("./scripts")

func main() {
	flag.Parse()

	configuration, err := core.LoadConfiguration(*envFile)
	if err != nil {
		log.WithError(err).Fatal("configuration")
	}
	log.SetLevel(configuration.Level())

	stopProfiling, err := startProfiling(*cpuProfile, *traceProfile)
	if err != nil {
		log.WithError(err).Fatal("profiling")
	}

	runErr := run(configuration)
	// log.Fatal exits without running deferred calls
	stopProfiling()
	if runErr != nil {
		log.WithError(runErr).Fatal("koru")
	}

	if err := writeHeapProfile(*memProfile); err != nil {
		log.WithError(err).Fatal("memory profile")
	}
}

// startProfiling starts the cpu profile and the execution trace for
// the non empty paths. The returned func stops both and closes the files.
func startProfiling(cpuPath, tracePath string) (func(), error) {
	var stops []func()
	stop := func() {
		for i := len(stops) - 1; i >= 0; i-- {
			stops[i]()
		}
	}

	if cpuPath != "" {
		f, err := os.Create(cpuPath)
		if err != nil {
			return nil, errors.Wrap(err, "cpu profile")
		}
		if err := pprof.StartCPUProfile(f); err != nil {
			f.Close()
			return nil, errors.Wrap(err, "pprof.StartCPUProfile()")
		}
		stops = append(stops, func() {
			pprof.StopCPUProfile()
			f.Close()
		})
	}

	if tracePath != "" {
		f, err := os.Create(tracePath)
		if err != nil {
			stop()
			return nil, errors.Wrap(err, "trace")
		}
		if err := trace.Start(f); err != nil {
			f.Close()
			stop()
			return nil, errors.Wrap(err, "trace.Start()")
		}
		stops = append(stops, func() {
			trace.Stop()
			f.Close()
		})
	}

	return stop, nil
}

func writeHeapProfile(path string) error {
	if path == "" {
		return nil
	}
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "os.Create()")
	}
	if err := pprof.WriteHeapProfile(f); err != nil {
		f.Close()
		return errors.Wrap(err, "pprof.WriteHeapProfile()")
	}
	return f.Close()
}

func run(configuration core.Configuration) error {
	if err := sdl.Init(sdl.INIT_VIDEO | sdl.INIT_EVENTS); err != nil {
		return errors.Wrap(err, "sdl.Init()")
	}
	defer sdl.Quit()

	if err := sdl.VulkanLoadLibrary(""); err != nil {
		return errors.Wrap(err, "sdl.VulkanLoadLibrary()")
	}
	defer sdl.VulkanUnloadLibrary()

	window, err := sdl.CreateWindow("Koru3D",
		sdl.WINDOWPOS_UNDEFINED,
		sdl.WINDOWPOS_UNDEFINED,
		int32(configuration.Renderer.ScreenWidth),
		int32(configuration.Renderer.ScreenHeight),
		sdl.WINDOW_VULKAN)
	if err != nil {
		return errors.Wrap(err, "sdl.CreateWindow()")
	}
	defer window.Destroy()

	instanceCfg := configuration.Instance
	instanceCfg.Extensions = append(instanceCfg.Extensions, window.VulkanGetInstanceExtensions()...)
	vkInstance, err := core.NewVulkanInstance(core.DefaultVulkanApplicationInfo, sdl.VulkanGetVkGetInstanceProcAddr(), instanceCfg)
	if err != nil {
		return err
	}
	defer vkInstance.Destroy()

	surface, err := window.VulkanCreateSurface(vkInstance.Inner())
	if err != nil {
		return errors.Wrap(err, "window.VulkanCreateSurface()")
	}
	vkInstance.SetSurface(surface)

	dc, err := core.NewDeviceContext(vkInstance, configuration.Renderer)
	if err != nil {
		return err
	}
	defer dc.Destroy()

	pixels, err := loadPixels(configuration.Texture)
	if err != nil {
		return err
	}
	texture, err := vkr.LoadTexture(dc.Vkr, dc.Allocator, dc.Recorder, pixels, configuration.Texture.Mipmaps)
	if err != nil {
		return err
	}
	defer texture.Release()

	depthFormat, err := vkr.FindDepthFormat(dc.Vkr)
	if err != nil {
		return err
	}
	depth, err := vkr.NewDepthImage(dc.Vkr, dc.Allocator, dc.Recorder, gfx.Extent2D{
		Width:  configuration.Renderer.ScreenWidth,
		Height: configuration.Renderer.ScreenHeight,
	}, depthFormat)
	if err != nil {
		return err
	}
	defer depth.Release()

	log.WithFields(log.Fields{
		"width":  texture.Info().Width,
		"height": texture.Info().Height,
		"levels": texture.Info().MipLevels,
	}).Info("texture ready")

	registry := scene.NewRegistry()
	world := scene.NewScene("main")
	registry.Add(world)
	if err := populate(world, registry, configuration.Script); err != nil {
		return err
	}
	if err := world.Setup(); err != nil {
		return err
	}

	return loop(world, core.NewTime(configuration.Time))
}

// loop runs scene updates on a separate goroutine while polling window events.
// Cursor moves are handed to the update goroutine, scripts run on one goroutine only.
func loop(s *scene.Scene, timeService *core.Time) error {
	defer timeService.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cursor := make(chan [2]float64, 16)
	var (
		wg        sync.WaitGroup
		updateErr error
	)

	wg.Add(1)
	go func() {
		defer wg.Done()
		defer cancel()
		for {
			select {
			case <-ctx.Done():
				log.Debug("update loop exited")
				return
			case pos := <-cursor:
				if updateErr = s.CursorPos(pos[0], pos[1]); updateErr != nil {
					return
				}
			case <-timeService.FpsTicker().C:
				if updateErr = s.Update(timeService.Delta()); updateErr != nil {
					return
				}
			}
		}
	}()

EventLoop:
	for {
		select {
		case <-ctx.Done():
			break EventLoop
		case <-timeService.EventTicker().C:
			for event := sdl.PollEvent(); event != nil; event = sdl.PollEvent() {
				switch et := event.(type) {
				case *sdl.KeyboardEvent:
					if et.Keysym.Sym == sdl.K_ESCAPE {
						cancel()
					}
				case *sdl.MouseMotionEvent:
					select {
					case cursor <- [2]float64{float64(et.X), float64(et.Y)}:
					default:
						// update loop is behind, drop the move
					}
				case *sdl.QuitEvent:
					cancel()
				}
			}
		}
	}

	wg.Wait()
	return updateErr
}

func loadPixels(cfg core.TextureConfiguration) (gfx.Pixels, error) {
	if cfg.Archive == "" {
		log.Info("no texture archive configured, using a checkerboard")
		return gfx.Checkerboard(256, 32), nil
	}

	archive, err := kar.OpenFile(cfg.Archive)
	if err != nil {
		return gfx.Pixels{}, err
	}
	defer archive.Close()

	name := cfg.Name
	if name == "" {
		names := archive.Names()
		if len(names) == 0 {
			return gfx.Pixels{}, errors.Errorf("texture archive %s is empty", cfg.Archive)
		}
		name = names[0]
	}

	r, err := archive.Open(name)
	if err != nil {
		return gfx.Pixels{}, err
	}
	pixels, err := gfx.DecodePixels(r)
	if err != nil {
		return gfx.Pixels{}, errors.Wrapf(err, "texture %s", name)
	}
	return pixels, nil
}

// populate adds an object per script, named after the script file.
func populate(s *scene.Scene, registry *scene.Registry, cfg core.ScriptConfiguration) error {
	paths, err := scriptPaths(cfg.Directory)
	if err != nil {
		return err
	}
	if len(paths) > 0 {
		for _, path := range paths {
			behaviour, err := script.Load(path, registry)
			if err != nil {
				return err
			}
			s.AddObject(scene.NewObject(objectName(path), behaviour))
		}
		return nil
	}

	log.WithField("directory", cfg.Directory).Info("no scripts found, using the built in ones")
	for _, name := range defaultScripts.List() {
		if filepath.Ext(name) != ".lua" {
			continue
		}
		source, err := defaultScripts.FindString(name)
		if err != nil {
			return err
		}
		behaviour, err := script.LoadString(name, source, registry)
		if err != nil {
			return err
		}
		s.AddObject(scene.NewObject(objectName(name), behaviour))
	}
	return nil
}

// scriptPaths returns the sorted Lua files in dir.
func scriptPaths(dir string) ([]string, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.lua"))
	if err != nil {
		return nil, errors.Wrapf(err, "scripts in %s", dir)
	}
	sort.Strings(paths)
	return paths, nil
}

func objectName(path string) string {
	return strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
}
