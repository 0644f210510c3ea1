package main

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"loxvm/internal/buildpipeline"
	"loxvm/internal/diagfmt"
	"loxvm/internal/driver"
)

var buildCmd = &cobra.Command{
	Use:   "build [flags] <file.lox|dir>...",
	Short: "Compile Lox sources into program images",
	Long: `Compile every given file, and every *.lox file under every given
directory, into a .loxc program image that "loxvm run" executes without the
compiler. Files are compiled in parallel.`,
	Args: usageArgs(cobra.MinimumNArgs(1)),
	RunE: buildExecution,
}

func init() {
	buildCmd.Flags().String("out-dir", "", "write images here instead of next to their sources")
	buildCmd.Flags().Int("jobs", 0, "files compiled at once (0 = GOMAXPROCS)")
	buildCmd.Flags().Bool("no-cache", false, "do not read or write the compile cache")
	buildCmd.Flags().String("ui", "auto", "progress view (auto|on|off)")
	buildCmd.Flags().String("diag-format", "short", "compile error format (short|pretty|json)")
}

func buildExecution(cmd *cobra.Command, args []string) error {
	mode, err := readUIMode(flagString(cmd, "ui"))
	if err != nil {
		return &exitError{code: exitUsage, err: err}
	}
	diagFormat := flagString(cmd, "diag-format")
	switch diagFormat {
	case "short", "pretty", "json":
	default:
		return &exitError{code: exitUsage, err: fmt.Errorf("unknown diag format: %s", diagFormat)}
	}

	files, err := collectSources(args)
	if err != nil {
		return &exitError{code: exitIOErr, err: err}
	}
	if len(files) == 0 {
		return &exitError{code: exitUsage, err: fmt.Errorf("no .lox files in %s", strings.Join(args, ", "))}
	}

	cfg, err := resolveConfig(cmd, args[0])
	if err != nil {
		return err
	}
	_, cleanup, err := setupTracing(cmd, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	maxDiagnostics, err := cmd.Flags().GetInt("max-diagnostics")
	if err != nil {
		return fmt.Errorf("failed to get max-diagnostics flag: %w", err)
	}
	req := &buildpipeline.Request{
		Files:          files,
		OutDir:         cfg.OutDir,
		Jobs:           cfg.Jobs,
		Heap:           cfg.heapOptions(),
		MaxDiagnostics: clampDiagnostics(maxDiagnostics),
	}
	if cfg.Cache {
		cache, err := driver.OpenCompileCache("loxvm")
		if err != nil {
			warnf(cmd, "compile cache disabled: %v", err)
		} else {
			req.Cache = cache
		}
	}

	var res buildpipeline.Result
	var buildErr error
	if shouldUseTUI(mode) {
		res, buildErr = runBuildWithUI(cmd.Context(), "loxvm build", files, req)
	} else {
		res, buildErr = buildpipeline.Build(cmd.Context(), req)
	}

	if err := reportBuild(cmd, res, diagFormat); err != nil {
		return err
	}
	if buildErr == nil {
		return nil
	}
	for _, fr := range res.Files {
		if fr.Err != nil && !errors.Is(fr.Err, buildpipeline.ErrCompile) {
			return &exitError{code: exitIOErr, err: buildErr}
		}
	}
	if res.Failed > 0 {
		return &exitError{code: exitDataErr, err: buildErr}
	}
	return &exitError{code: exitIOErr, err: buildErr}
}

// reportBuild prints compile errors, per-file failures and the summary.
func reportBuild(cmd *cobra.Command, res buildpipeline.Result, diagFormat string) error {
	errOut := cmd.ErrOrStderr()
	for _, fr := range res.Files {
		switch {
		case fr.Err == nil:
		case errors.Is(fr.Err, buildpipeline.ErrCompile):
			if err := renderBuildDiagnostics(errOut, fr, diagFormat); err != nil {
				return err
			}
		default:
			fmt.Fprintf(errOut, "%s: %v\n", fr.Path, fr.Err)
		}
	}

	quiet, _ := cmd.Flags().GetBool("quiet")
	if quiet || len(res.Files) == 0 {
		return nil
	}
	built, cached := 0, 0
	for _, fr := range res.Files {
		if fr.Err == nil {
			built++
			if fr.Cached {
				cached++
			}
		}
	}
	fmt.Fprintf(cmd.OutOrStdout(), "built %d of %d images (%d from cache)\n", built, len(res.Files), cached)
	if showTimings(cmd) && res.Timings != nil {
		printStageTimings(errOut, res.Timings)
	}
	return nil
}

func renderBuildDiagnostics(w io.Writer, fr buildpipeline.FileResult, format string) error {
	switch format {
	case "json":
		return diagfmt.JSON(w, fr.Bag, fr.FileSet, diagfmt.JSONOpts{IncludePositions: true})
	case "pretty":
		fmt.Fprintf(w, "%s:\n", fr.Path)
		diagfmt.Pretty(w, fr.Bag, diagfmt.PrettyOpts{Color: useColor()})
	default:
		diagfmt.Short(w, fr.Bag, fr.FileSet)
	}
	return nil
}

// collectSources expands directories into their *.lox files, sorted, and
// keeps explicit file arguments in the given order.
func collectSources(args []string) ([]string, error) {
	var files []string
	seen := make(map[string]bool)
	add := func(p string) {
		if !seen[p] {
			seen[p] = true
			files = append(files, p)
		}
	}
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			add(filepath.Clean(arg))
			continue
		}
		found, err := listLoxFiles(arg)
		if err != nil {
			return nil, err
		}
		for _, f := range found {
			add(f)
		}
	}
	return files, nil
}

// listLoxFiles возвращает отсортированный список всех *.lox файлов в директории
func listLoxFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.HasSuffix(path, ".lox") {
			files = append(files, filepath.Clean(path))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	// Сортируем для детерминированного порядка
	sort.Strings(files)
	return files, nil
}
