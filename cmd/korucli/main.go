// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/user"
	"runtime"

	"github.com/devblok/koructx/core"
	"github.com/devblok/koructx/gfx/vkr"
	"github.com/devblok/koructx/gfx/vkr/profile"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/veandco/go-sdl2/sdl"
	"golang.org/x/exp/mmap"
)

func init() {
	runtime.LockOSThread()
}

var (
	debug   = flag.Bool("vkdbg", false, "Load Vulkan validation layers")
	save    = flag.String("save", "", "Save the device capabilities into a kar profile")
	replay  = flag.String("replay", "", "Negotiate against a saved kar profile instead of the local devices")
	devices = flag.Bool("devices", false, "Print physical device information instead of negotiation verdicts")
	envFile = flag.String("env", ".env", "Environment file to load")
)

type report struct {
	Verdicts []vkr.Verdict `json:"verdicts"`
	Picked   *picked       `json:"picked,omitempty"`
	Error    string        `json:"error,omitempty"`
}

type picked struct {
	Index    int    `json:"index"`
	Name     string `json:"name"`
	Graphics uint32 `json:"graphics"`
	Present  uint32 `json:"present"`
	Samples  uint32 `json:"samples"`
}

func main() {
	flag.Parse()
	log.SetOutput(os.Stderr)

	configuration := core.DefaultConfiguration()
	if err := core.LoadEnvironment(&configuration, *envFile); err != nil {
		log.Fatal(err)
	}
	if *debug {
		configuration.Instance.DebugMode = true
	}

	if *replay != "" {
		candidates, err := loadProfile(*replay)
		if err != nil {
			log.Fatal(err)
		}
		printJSON(negotiate(configuration.ContextConfig(), candidates))
		return
	}

	if err := run(configuration); err != nil {
		log.Fatal(err)
	}
}

func run(configuration core.Configuration) error {
	if err := sdl.Init(sdl.INIT_VIDEO); err != nil {
		return err
	}
	defer sdl.Quit()

	if err := sdl.VulkanLoadLibrary(""); err != nil {
		return err
	}
	defer sdl.VulkanUnloadLibrary()

	// The window is never shown, it only provides a surface to query
	// presentation support against.
	window, err := sdl.CreateWindow("korucli", sdl.WINDOWPOS_UNDEFINED, sdl.WINDOWPOS_UNDEFINED,
		64, 64, sdl.WINDOW_HIDDEN|sdl.WINDOW_VULKAN)
	if err != nil {
		return err
	}
	defer window.Destroy()

	cfg := configuration.Instance
	cfg.Extensions = append(cfg.Extensions, window.VulkanGetInstanceExtensions()...)
	instance, err := core.NewVulkanInstance(core.DefaultVulkanApplicationInfo, sdl.VulkanGetVkGetInstanceProcAddr(), cfg)
	if err != nil {
		return err
	}
	defer instance.Destroy()

	srf, err := window.VulkanCreateSurface(instance.Instance())
	if err != nil {
		return err
	}
	if err := instance.SetSurface(srf); err != nil {
		return err
	}

	if *devices {
		printJSON(instance.PhysicalDevicesInfo())
		return nil
	}

	candidates, err := instance.Candidates()
	if err != nil {
		return err
	}

	if *save != "" {
		if err := saveProfile(*save, candidates); err != nil {
			return err
		}
	}

	printJSON(negotiate(configuration.ContextConfig(), candidates))
	return nil
}

func negotiate(cfg vkr.Config, candidates []vkr.DeviceCandidate) report {
	negotiator := vkr.Negotiator{
		Requirements: cfg.Requirements,
		MaxSamples:   cfg.MaxSamples,
	}

	r := report{Verdicts: negotiator.Report(candidates)}
	n, err := negotiator.Negotiate(candidates)
	if err != nil {
		r.Error = err.Error()
		return r
	}
	r.Picked = &picked{
		Index:    n.Candidate.Index,
		Name:     n.Candidate.Name,
		Graphics: n.Queues.Graphics,
		Present:  n.Queues.Present,
		Samples:  uint32(n.Samples),
	}
	return r
}

func loadProfile(path string) ([]vkr.DeviceCandidate, error) {
	r, err := mmap.Open(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	candidates, err := profile.Load(r)
	if err != nil {
		return nil, errors.Wrapf(err, "load profile %s", path)
	}
	return candidates, nil
}

func saveProfile(path string, candidates []vkr.DeviceCandidate) error {
	if _, err := os.Stat(path); err == nil {
		return errors.Errorf("%s exists, will not overwrite", path)
	}

	author := "unknown"
	if u, err := user.Current(); err == nil {
		author = u.Username
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := profile.Save(f, author, candidates); err != nil {
		f.Close()
		return err
	}
	log.WithField("file", path).Infof("saved %d device profiles", len(candidates))
	return f.Close()
}

func printJSON(v interface{}) {
	bytes, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		log.Fatal(err)
	}
	fmt.Printf("%s\n", bytes)
}
