// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"runtime"
	"runtime/pprof"
	"runtime/trace"
	"sync"
	"sync/atomic"
	"time"

	"github.com/devblok/koructx/core"
	"github.com/devblok/koructx/gfx"
	"github.com/devblok/koructx/gfx/vkr"
	glm "github.com/go-gl/mathgl/mgl32"
	log "github.com/sirupsen/logrus"
	"github.com/veandco/go-sdl2/sdl"
)

func init() {
	runtime.LockOSThread()
}

// Essential globals
var (
	vkInstance *core.VulkanInstance
	vkContext  *vkr.Context
	sdlWindow  *sdl.Window

	frameCounter int64
)

// Profiling
var (
	cpuProfile   = flag.String("cpuprof", "", "Profile CPU usage to file")
	memProfile   = flag.String("memprof", "", "Profile memory usage into a file")
	traceProfile = flag.String("trace", "", "Trace output for profiling")
	debug        = flag.Bool("vkdbg", false, "Load Vulkan validation layers")
	samples      = flag.Uint("samples", 0, "Cap the multisample count, 0 uses the device maximum")
	envFile      = flag.String("env", ".env", "Environment file to load")
)

var configuration = core.DefaultConfiguration()

// drawable tracks the drawable size of the window. It is written by the
// event loop and read by the frame loop.
type drawable struct {
	width, height int32
}

func (d *drawable) store(w, h int32) {
	atomic.StoreInt32(&d.width, w)
	atomic.StoreInt32(&d.height, h)
}

func (d *drawable) load() (int32, int32) {
	return atomic.LoadInt32(&d.width), atomic.LoadInt32(&d.height)
}

func newWindow() *sdl.Window {
	window, err := sdl.CreateWindow("Koru3D",
		sdl.WINDOWPOS_UNDEFINED,
		sdl.WINDOWPOS_UNDEFINED,
		int32(configuration.Renderer.ScreenWidth),
		int32(configuration.Renderer.ScreenHeight),
		sdl.WINDOW_VULKAN|sdl.WINDOW_RESIZABLE)
	if err != nil {
		panic(err)
	}
	return window
}

func projection(extent gfx.Extent2D) glm.Mat4 {
	return gfx.Projection(extent, glm.DegToRad(45), 0.1, 100)
}

func main() {
	flag.Parse()

	if err := core.LoadEnvironment(&configuration, *envFile); err != nil {
		panic(err)
	}
	level, err := core.LogLevel(log.InfoLevel)
	if err != nil {
		panic(err)
	}
	log.SetLevel(level)
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})

	if *debug {
		configuration.Instance.DebugMode = true
	}
	if *samples != 0 {
		configuration.Renderer.MaxSamples = uint32(*samples)
	}

	if *cpuProfile != "" {
		f, err := os.Create(*cpuProfile)
		if err != nil {
			panic(err)
		}
		if err := pprof.StartCPUProfile(f); err != nil {
			panic(err)
		}
		defer pprof.StopCPUProfile()
	}

	if *traceProfile != "" {
		f, err := os.Create(*traceProfile)
		if err != nil {
			panic(err)
		}
		if err := trace.Start(f); err != nil {
			panic(err)
		}
		defer trace.Stop()
	}

	if err := sdl.Init(sdl.INIT_VIDEO | sdl.INIT_EVENTS); err != nil {
		panic(err)
	}
	defer sdl.Quit()

	if err := sdl.VulkanLoadLibrary(""); err != nil {
		panic(err)
	}
	defer sdl.VulkanUnloadLibrary()

	sdlWindow = newWindow()
	defer sdlWindow.Destroy()

	{
		cfg := configuration.Instance
		cfg.Extensions = append(cfg.Extensions, sdlWindow.VulkanGetInstanceExtensions()...)

		vi, err := core.NewVulkanInstance(core.DefaultVulkanApplicationInfo, sdl.VulkanGetVkGetInstanceProcAddr(), cfg)
		if err != nil {
			panic(err)
		}
		vkInstance = vi
		defer vkInstance.Destroy()
	}

	if srf, err := sdlWindow.VulkanCreateSurface(vkInstance.Instance()); err != nil {
		panic(err)
	} else if err := vkInstance.SetSurface(srf); err != nil {
		panic(err)
	}

	size := &drawable{}
	size.store(sdlWindow.VulkanGetDrawableSize())

	{
		ctx, err := vkr.NewContext(vkInstance, core.FramebufferSize(size.load),
			configuration.ContextConfig(), vkr.LogrusSink(log.StandardLogger()))
		if err != nil {
			panic(err)
		}
		vkContext = ctx
		defer vkContext.Destroy()
	}

	timeService := core.NewTime(configuration.Time)
	defer timeService.Stop()

	ctx, cancel := context.WithCancel(context.Background())

	programSync := sync.WaitGroup{}

	/* Frame counter loop */
	programSync.Add(1)
	go func(ctx context.Context, wg *sync.WaitGroup) {
		defer wg.Done()
		ticker := time.NewTicker(200 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				// 200 ms * 5 = 1s, therefore we need to mutiply the count
				currentCount := atomic.SwapInt64(&frameCounter, 0)
				fmt.Printf("\r\033[2KFrame count: %d\tCGO calls: %d", currentCount*5, runtime.NumCgoCall())
			}
		}
	}(ctx, &programSync)

	/* Frame loop */
	programSync.Add(1)
	go func(ctx context.Context, wg *sync.WaitGroup) {
		defer wg.Done()
		proj := projection(vkContext.Extent())
		for {
			select {
			case <-ctx.Done():
				log.Debug("frame loop exited")
				return
			case <-timeService.FpsTicker().C:
				recreated, err := vkContext.PollResize()
				if err != nil {
					log.WithError(err).Error("chain recreation failed")
					cancel()
					return
				}
				if recreated {
					proj = projection(vkContext.Extent())
					log.WithFields(log.Fields{
						"extent":     vkContext.Extent(),
						"projection": proj.Row(1),
					}).Debug("chain recreated")
				}
				atomic.AddInt64(&frameCounter, 1)
			}
		}
	}(ctx, &programSync)

	/* Event loop */
EventLoop:
	for {
		select {
		case <-ctx.Done():
			break EventLoop
		case <-timeService.EventTicker().C:
			var event sdl.Event
			for event = sdl.PollEvent(); event != nil; event = sdl.PollEvent() {
				switch et := event.(type) {
				case *sdl.WindowEvent:
					switch et.Event {
					case sdl.WINDOWEVENT_RESIZED, sdl.WINDOWEVENT_SIZE_CHANGED, sdl.WINDOWEVENT_MINIMIZED, sdl.WINDOWEVENT_RESTORED:
						size.store(sdlWindow.VulkanGetDrawableSize())
						vkContext.NotifyResize()
					}
				case *sdl.KeyboardEvent:
					if et.Keysym.Sym == sdl.K_ESCAPE {
						cancel()
						continue EventLoop
					}
				case *sdl.QuitEvent:
					cancel()
					continue EventLoop
				}
			}
		}
	}

	programSync.Wait()
	fmt.Println()

	if *memProfile != "" {
		f, err := os.Create(*memProfile)
		if err != nil {
			panic(err)
		}
		if err := pprof.WriteHeapProfile(f); err != nil {
			panic(err)
		}
	}
}
