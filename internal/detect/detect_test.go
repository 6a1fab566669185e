package detect

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

func TestParseVersion(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "semver", input: "kimi, version 0.42.0", want: "0.42.0"},
		{name: "prefixed", input: "kimi-cli v1.3.0-beta.1", want: "1.3.0-beta.1"},
		{name: "fallback first line", input: "version unknown\nextra", want: "version unknown"},
		{name: "empty", input: "  \n", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ParseVersion(tt.input); got != tt.want {
				t.Fatalf("ParseVersion() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestLocate(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("executable bit checks are unix-only")
	}
	dir := t.TempDir()
	exe := filepath.Join(dir, "kimi")
	if err := os.WriteFile(exe, []byte("#!/bin/sh\n"), 0755); err != nil {
		t.Fatal(err)
	}
	plain := filepath.Join(dir, "notes.txt")
	if err := os.WriteFile(plain, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("PATH", dir)
	t.Setenv("HOME", t.TempDir())

	want, _ := filepath.EvalSymlinks(exe)
	if got, ok := Locate("kimi"); !ok || got != want {
		t.Fatalf("Locate(kimi) = %q, %v; want %q", got, ok, want)
	}
	if got, ok := Locate(exe); !ok || got != want {
		t.Fatalf("Locate(abs) = %q, %v", got, ok)
	}
	if _, ok := Locate(plain); ok {
		t.Fatal("non-executable file located")
	}
	if _, ok := Locate(dir); ok {
		t.Fatal("directory located")
	}
	if _, ok := Locate(""); ok {
		t.Fatal("empty command located")
	}
	if got := ResolveCommand("definitely-not-installed-xyz"); got != "definitely-not-installed-xyz" {
		t.Fatalf("ResolveCommand fallback = %q", got)
	}
}

func TestLocateFallsBackToUserBin(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("executable bit checks are unix-only")
	}
	home := t.TempDir()
	bin := filepath.Join(home, ".local", "bin")
	if err := os.MkdirAll(bin, 0755); err != nil {
		t.Fatal(err)
	}
	exe := filepath.Join(bin, "kimi-test-tool")
	if err := os.WriteFile(exe, []byte("#!/bin/sh\n"), 0755); err != nil {
		t.Fatal(err)
	}
	t.Setenv("HOME", home)
	t.Setenv("PATH", t.TempDir())

	want, _ := filepath.EvalSymlinks(exe)
	if got, ok := Locate("kimi-test-tool"); !ok || got != want {
		t.Fatalf("Locate = %q, %v; want %q", got, ok, want)
	}
}
