package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"

	"loxvm/internal/vm"
)

// configFileName is searched for from the script's directory upwards.
const configFileName = "loxvm.toml"

// fileConfig mirrors loxvm.toml.
type fileConfig struct {
	GC struct {
		Stress           bool    `toml:"stress"`
		Log              bool    `toml:"log"`
		GrowthFactor     float64 `toml:"growth_factor"`
		InitialThreshold int     `toml:"initial_threshold"`
	} `toml:"gc"`
	VM struct {
		TraceExec bool `toml:"trace_exec"`
		FramesMax int  `toml:"frames_max"`
	} `toml:"vm"`
	Build struct {
		Jobs   int    `toml:"jobs"`
		Cache  bool   `toml:"cache"`
		OutDir string `toml:"out_dir"`
	} `toml:"build"`
	Trace struct {
		Level  string `toml:"level"`
		Mode   string `toml:"mode"`
		Output string `toml:"output"`
	} `toml:"trace"`
}

// config is the resolved configuration: defaults, then loxvm.toml, then flags.
type config struct {
	Path string // file the values came from, "" when none was found

	StressGC         bool
	LogGC            bool
	GrowthFactor     float64
	InitialThreshold int
	TraceExec        bool
	FramesMax        int

	Jobs   int
	Cache  bool
	OutDir string

	TraceLevel  string
	TraceMode   string
	TraceOutput string
}

func defaultConfig() config {
	return config{
		GrowthFactor:     vm.DefaultGrowthFactor,
		InitialThreshold: vm.DefaultInitialThreshold,
		FramesMax:        vm.DefaultFramesMax,
		Cache:            true,
		TraceLevel:       "off",
		TraceMode:        "stream",
	}
}

// discoverConfig walks from dir to the filesystem root looking for
// loxvm.toml.
func discoverConfig(dir string) (string, bool) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", false
	}
	for {
		candidate := filepath.Join(abs, configFileName)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, true
		}
		parent := filepath.Dir(abs)
		if parent == abs {
			return "", false
		}
		abs = parent
	}
}

// loadConfigFile overlays the keys present in path onto cfg. Absent keys keep
// their current value, so `cache = false` and a missing `cache` differ.
func loadConfigFile(path string, cfg *config) error {
	var fc fileConfig
	md, err := toml.DecodeFile(path, &fc)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return fmt.Errorf("%s: unknown key %s", path, undecoded[0])
	}
	cfg.Path = path

	if md.IsDefined("gc", "stress") {
		cfg.StressGC = fc.GC.Stress
	}
	if md.IsDefined("gc", "log") {
		cfg.LogGC = fc.GC.Log
	}
	if md.IsDefined("gc", "growth_factor") {
		if fc.GC.GrowthFactor <= 1 {
			return fmt.Errorf("%s: gc.growth_factor must be greater than 1", path)
		}
		cfg.GrowthFactor = fc.GC.GrowthFactor
	}
	if md.IsDefined("gc", "initial_threshold") {
		if fc.GC.InitialThreshold <= 0 {
			return fmt.Errorf("%s: gc.initial_threshold must be positive", path)
		}
		cfg.InitialThreshold = fc.GC.InitialThreshold
	}
	if md.IsDefined("vm", "trace_exec") {
		cfg.TraceExec = fc.VM.TraceExec
	}
	if md.IsDefined("vm", "frames_max") {
		if fc.VM.FramesMax <= 0 {
			return fmt.Errorf("%s: vm.frames_max must be positive", path)
		}
		cfg.FramesMax = fc.VM.FramesMax
	}
	if md.IsDefined("build", "jobs") {
		cfg.Jobs = fc.Build.Jobs
	}
	if md.IsDefined("build", "cache") {
		cfg.Cache = fc.Build.Cache
	}
	if md.IsDefined("build", "out_dir") {
		// относительные пути считаются от файла конфигурации
		cfg.OutDir = fc.Build.OutDir
		if cfg.OutDir != "" && !filepath.IsAbs(cfg.OutDir) {
			cfg.OutDir = filepath.Join(filepath.Dir(path), cfg.OutDir)
		}
	}
	if md.IsDefined("trace", "level") {
		cfg.TraceLevel = fc.Trace.Level
	}
	if md.IsDefined("trace", "mode") {
		cfg.TraceMode = fc.Trace.Mode
	}
	if md.IsDefined("trace", "output") {
		cfg.TraceOutput = fc.Trace.Output
	}
	return nil
}

// resolveConfig builds the configuration for a command working on target
// (a script, a directory or "" for the working directory).
func resolveConfig(cmd *cobra.Command, target string) (config, error) {
	cfg := defaultConfig()

	path := flagString(cmd, "config")
	if path == "" {
		dir := "."
		if target != "" {
			dir = target
			if info, err := os.Stat(target); err != nil || !info.IsDir() {
				dir = filepath.Dir(target)
			}
		}
		path, _ = discoverConfig(dir)
	} else if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, &exitError{code: exitUsage, err: fmt.Errorf("config file %s not found", path)}
		}
		return cfg, err
	}
	if path != "" {
		if err := loadConfigFile(path, &cfg); err != nil {
			return cfg, &exitError{code: exitUsage, err: err}
		}
	}

	if flagChanged(cmd, "stress-gc") {
		cfg.StressGC = flagBool(cmd, "stress-gc")
	}
	if flagChanged(cmd, "log-gc") {
		cfg.LogGC = flagBool(cmd, "log-gc")
	}
	if flagChanged(cmd, "trace-exec") {
		cfg.TraceExec = flagBool(cmd, "trace-exec")
	}
	if flagChanged(cmd, "jobs") {
		cfg.Jobs = flagInt(cmd, "jobs")
	}
	if flagBool(cmd, "no-cache") {
		cfg.Cache = false
	}
	if flagChanged(cmd, "out-dir") {
		cfg.OutDir = flagString(cmd, "out-dir")
	}
	if flagChanged(cmd, "trace-level") {
		cfg.TraceLevel = flagString(cmd, "trace-level")
	}
	if flagChanged(cmd, "trace-mode") {
		cfg.TraceMode = flagString(cmd, "trace-mode")
	}
	if flagChanged(cmd, "trace") {
		cfg.TraceOutput = flagString(cmd, "trace")
	}
	return cfg, nil
}

// heapOptions is the collector part of cfg.
func (c config) heapOptions() vm.HeapOptions {
	return vm.HeapOptions{
		InitialThreshold: c.InitialThreshold,
		GrowthFactor:     c.GrowthFactor,
		Stress:           c.StressGC,
	}
}

// vmOptions is the engine configuration derived from cfg.
func (c config) vmOptions() vm.Options {
	return vm.Options{
		TraceExec:        c.TraceExec,
		StressGC:         c.StressGC,
		LogGC:            c.LogGC,
		GrowthFactor:     c.GrowthFactor,
		InitialThreshold: c.InitialThreshold,
		FramesMax:        c.FramesMax,
		Color:            useColor(),
	}
}
