package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

type cliResult struct {
	code   int
	stdout string
	stderr string
}

// resetFlags restores every flag in the tree to its default; cobra keeps
// parsed values on the package-level commands between executions.
func resetFlags(c *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	c.Flags().VisitAll(reset)
	c.PersistentFlags().VisitAll(reset)
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

func runCLI(t *testing.T, stdin string, args ...string) cliResult {
	t.Helper()
	resetFlags(rootCmd)
	var stdout, stderr bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stderr)
	rootCmd.SetIn(strings.NewReader(stdin))
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetIn(nil)
	})
	args = append([]string{"--color=off"}, args...)
	code := execute(context.Background(), args, &stderr)
	return cliResult{code: code, stdout: stdout.String(), stderr: stderr.String()}
}

func writeScript(t *testing.T, dir, name, src string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(src), 0o600); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestRunExitCodes(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name       string
		src        string
		wantCode   int
		wantOut    string
		wantStderr string
	}{
		{
			name:     "ok",
			src:      "var a = 1;\nprint a + 2;\n",
			wantCode: 0,
			wantOut:  "3\n",
		},
		{
			name:       "compile error",
			src:        "print ;",
			wantCode:   exitDataErr,
			wantStderr: "Expect expression.",
		},
		{
			name:       "runtime error",
			src:        "print -\"x\";",
			wantCode:   exitSoftware,
			wantStderr: "Operand must be a number.\n[line 1] in script\n",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeScript(t, dir, strings.ReplaceAll(tt.name, " ", "_")+".lox", tt.src)
			got := runCLI(t, "", "run", "--no-cache", path)
			if got.code != tt.wantCode {
				t.Fatalf("exit = %d, want %d (stderr %q)", got.code, tt.wantCode, got.stderr)
			}
			if got.stdout != tt.wantOut {
				t.Errorf("stdout = %q, want %q", got.stdout, tt.wantOut)
			}
			if !strings.Contains(got.stderr, tt.wantStderr) {
				t.Errorf("stderr = %q, want %q", got.stderr, tt.wantStderr)
			}
		})
	}
}

func TestRunMissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nope.lox")
	got := runCLI(t, "", "run", "--no-cache", path)
	if got.code != exitIOErr {
		t.Fatalf("exit = %d", got.code)
	}
	if !strings.Contains(got.stderr, `Could not open file "`+path+`".`) {
		t.Errorf("stderr = %q", got.stderr)
	}
}

func TestUsageErrors(t *testing.T) {
	tests := [][]string{
		{"run"},
		{"run", "a.lox", "b.lox"},
		{"--bogus-flag"},
		{"--color=sometimes", "version"},
		{"version", "--format=xml"},
	}
	for _, args := range tests {
		if got := runCLI(t, "", args...); got.code != exitUsage {
			t.Errorf("%v: exit = %d, want %d", args, got.code, exitUsage)
		}
	}
}

func TestReplFromStdin(t *testing.T) {
	got := runCLI(t, "var x = 2;\nprint x * 21;\nprint y;\nprint x;\n", "repl")
	if got.code != 0 {
		t.Fatalf("exit = %d (stderr %q)", got.code, got.stderr)
	}
	if got.stdout != "42\n2\n" {
		t.Errorf("stdout = %q", got.stdout)
	}
	if !strings.Contains(got.stderr, "Undefined variable 'y'.") {
		t.Errorf("stderr = %q", got.stderr)
	}
}

func TestBuildThenRunImage(t *testing.T) {
	dir := t.TempDir()
	src := writeScript(t, dir, "hello.lox", `fun greet(n) { return "hi " + n; } print greet("lox");`)
	out := filepath.Join(dir, "out")

	got := runCLI(t, "", "build", "--no-cache", "--ui=off", "--out-dir", out, src)
	if got.code != 0 {
		t.Fatalf("build exit = %d (stderr %q)", got.code, got.stderr)
	}
	if !strings.Contains(got.stdout, "built 1 of 1 images (0 from cache)") {
		t.Errorf("build stdout = %q", got.stdout)
	}

	img := filepath.Join(out, "hello.loxc")
	got = runCLI(t, "", "run", "--no-cache", img)
	if got.code != 0 || got.stdout != "hi lox\n" {
		t.Errorf("run image: exit %d, stdout %q, stderr %q", got.code, got.stdout, got.stderr)
	}
}

func TestBuildCompileErrors(t *testing.T) {
	dir := t.TempDir()
	writeScript(t, dir, "good.lox", "print 1;")
	writeScript(t, dir, "bad.lox", "print 1")

	got := runCLI(t, "", "build", "--no-cache", "--ui=off", dir)
	if got.code != exitDataErr {
		t.Fatalf("exit = %d (stderr %q)", got.code, got.stderr)
	}
	if !strings.Contains(got.stderr, "bad.lox:1:") {
		t.Errorf("stderr = %q", got.stderr)
	}
	if !strings.Contains(got.stdout, "built 1 of 2 images") {
		t.Errorf("stdout = %q", got.stdout)
	}
	if _, err := os.Stat(filepath.Join(dir, "good.loxc")); err != nil {
		t.Errorf("good image missing: %v", err)
	}
}

func TestDisasm(t *testing.T) {
	path := writeScript(t, t.TempDir(), "f.lox", "fun f() { return 1; }\nprint f();\n")
	got := runCLI(t, "", "disasm", path)
	if got.code != 0 {
		t.Fatalf("exit = %d (stderr %q)", got.code, got.stderr)
	}
	for _, want := range []string{"== <script> ==", "== f =="} {
		if !strings.Contains(got.stdout, want) {
			t.Errorf("missing %q in:\n%s", want, got.stdout)
		}
	}
}

func TestTokenize(t *testing.T) {
	dir := t.TempDir()
	ok := writeScript(t, dir, "ok.lox", "print 1;")
	got := runCLI(t, "", "tokenize", ok)
	if got.code != 0 || !strings.Contains(got.stdout, `"print"`) {
		t.Errorf("exit %d, stdout %q", got.code, got.stdout)
	}

	bad := writeScript(t, dir, "bad.lox", "print @;")
	if got := runCLI(t, "", "tokenize", bad); got.code != exitDataErr {
		t.Errorf("bad exit = %d", got.code)
	}
}

func TestVersionJSON(t *testing.T) {
	got := runCLI(t, "", "version", "--format=json")
	if got.code != 0 {
		t.Fatalf("exit = %d", got.code)
	}
	var payload versionPayload
	if err := json.Unmarshal([]byte(got.stdout), &payload); err != nil {
		t.Fatal(err)
	}
	if payload.Tool != "loxvm" || payload.Version == "" {
		t.Errorf("payload = %+v", payload)
	}
}

func TestReplTimingsFoldLines(t *testing.T) {
	got := runCLI(t, "print 1;\nprint 2;\n", "--timings", "repl")
	if got.code != 0 || got.stdout != "1\n2\n" {
		t.Fatalf("exit %d, stdout %q", got.code, got.stdout)
	}
	if !strings.Contains(got.stderr, "compile x2") || !strings.Contains(got.stderr, "execute x2") {
		t.Errorf("stderr = %q", got.stderr)
	}
}
