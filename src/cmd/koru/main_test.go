// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package main

import (
	"os"
	"path/filepath"
	"runtime/pprof"
	"testing"

	qt "github.com/frankban/quicktest"

	"github.com/devblok/vkimage/src/core"
	"github.com/devblok/vkimage/src/scene"
)

func TestProfilingStops(t *testing.T) {
	c := qt.New(t)
	dir := t.TempDir()
	cpuPath := filepath.Join(dir, "cpu.prof")
	tracePath := filepath.Join(dir, "trace.out")

	stop, err := startProfiling(cpuPath, tracePath)
	c.Assert(err, qt.IsNil)
	stop()

	for _, path := range []string{cpuPath, tracePath} {
		info, err := os.Stat(path)
		c.Assert(err, qt.IsNil)
		c.Assert(info.Size() > 0, qt.IsTrue, qt.Commentf("%s is empty", path))
	}

	// a running profile would make this fail
	c.Assert(pprof.StartCPUProfile(new(discard)), qt.IsNil)
	pprof.StopCPUProfile()
}

func TestProfilingFailureStopsStartedProfiles(t *testing.T) {
	c := qt.New(t)
	dir := t.TempDir()

	_, err := startProfiling(filepath.Join(dir, "cpu.prof"), filepath.Join(dir, "missing", "trace.out"))
	c.Assert(err, qt.ErrorMatches, "trace: .*")

	c.Assert(pprof.StartCPUProfile(new(discard)), qt.IsNil)
	pprof.StopCPUProfile()
}

func TestWriteHeapProfile(t *testing.T) {
	c := qt.New(t)

	c.Assert(writeHeapProfile(""), qt.IsNil)

	path := filepath.Join(t.TempDir(), "mem.prof")
	c.Assert(writeHeapProfile(path), qt.IsNil)
	_, err := os.Stat(path)
	c.Assert(err, qt.IsNil)
}

func TestPopulate(t *testing.T) {
	c := qt.New(t)

	dir := t.TempDir()
	c.Assert(os.WriteFile(filepath.Join(dir, "idle.lua"), []byte("function setup() end\nfunction update() end\n"), 0644), qt.IsNil)
	c.Assert(os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0644), qt.IsNil)

	registry := scene.NewRegistry()
	s := scene.NewScene("main")
	registry.Add(s)
	c.Assert(populate(s, registry, core.ScriptConfiguration{Directory: dir}), qt.IsNil)
	c.Assert(s.Len(), qt.Equals, 1)
	_, ok := s.FindObject("idle")
	c.Assert(ok, qt.IsTrue)
	c.Assert(s.Setup(), qt.IsNil)
}

func TestPopulateFallsBackToBuiltinScripts(t *testing.T) {
	c := qt.New(t)

	registry := scene.NewRegistry()
	s := scene.NewScene("main")
	registry.Add(s)
	c.Assert(populate(s, registry, core.ScriptConfiguration{Directory: filepath.Join(t.TempDir(), "none")}), qt.IsNil)
	c.Assert(s.Len(), qt.Equals, 2)
	for _, name := range []string{"spin", "bob"} {
		_, ok := s.FindObject(name)
		c.Assert(ok, qt.IsTrue, qt.Commentf("%s missing", name))
	}
}

func TestPopulateBadDirectory(t *testing.T) {
	c := qt.New(t)

	registry := scene.NewRegistry()
	s := scene.NewScene("main")
	registry.Add(s)
	err := populate(s, registry, core.ScriptConfiguration{Directory: "["})
	c.Assert(err, qt.ErrorMatches, `scripts in \[: syntax error in pattern`)
	c.Assert(s.Len(), qt.Equals, 0)
}

type discard struct{}

func (discard) Write(p []byte) (int, error) {
	return len(p), nil
}
