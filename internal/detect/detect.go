// Package detect finds the kimi executable and reads its version.
package detect

import (
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"
)

var semverRE = regexp.MustCompile(`(?i)\bv?(\d+\.\d+(?:\.\d+)?(?:[-+][0-9A-Za-z.-]+)?)\b`)

// Locate resolves command to an absolute executable path. A command with a
// path separator is checked as given. A bare name is looked up on PATH,
// then in the usual per-user and system install directories, since tools
// installed with pipx or uv often land in ~/.local/bin without it being on
// PATH.
func Locate(command string) (string, bool) {
	command = strings.TrimSpace(command)
	if command == "" {
		return "", false
	}
	if strings.ContainsRune(command, filepath.Separator) || strings.ContainsRune(command, '/') {
		return executablePath(command)
	}

	var candidates []string
	if p, err := exec.LookPath(command); err == nil {
		candidates = append(candidates, p)
	}
	for _, dir := range installDirs() {
		candidates = append(candidates, filepath.Join(dir, command))
	}
	for _, path := range candidates {
		if real, ok := executablePath(path); ok {
			return real, true
		}
	}
	return "", false
}

// ResolveCommand returns the located path for command, or command itself
// when it cannot be found, leaving the error to the caller that runs it.
func ResolveCommand(command string) string {
	if p, ok := Locate(command); ok {
		return p
	}
	return command
}

func installDirs() []string {
	var dirs []string
	if home, err := os.UserHomeDir(); err == nil && home != "" {
		dirs = append(dirs,
			filepath.Join(home, ".local", "bin"),
			filepath.Join(home, "bin"),
			filepath.Join(home, ".cargo", "bin"),
		)
	}
	dirs = append(dirs, "/usr/local/bin", "/opt/homebrew/bin", "/usr/bin")
	if runtime.GOOS == "windows" {
		if local := os.Getenv("LOCALAPPDATA"); local != "" {
			dirs = append(dirs, filepath.Join(local, "Programs"))
		}
	}
	return dirs
}

func executablePath(path string) (string, bool) {
	if runtime.GOOS == "windows" && !strings.HasSuffix(strings.ToLower(path), ".exe") {
		if _, err := os.Stat(path + ".exe"); err == nil {
			path += ".exe"
		}
	}
	fi, err := os.Stat(path)
	if err != nil || fi.IsDir() {
		return "", false
	}
	if runtime.GOOS != "windows" && fi.Mode()&0111 == 0 {
		return "", false
	}
	resolved, err := filepath.EvalSymlinks(path)
	if err != nil {
		resolved = path
	}
	abs, err := filepath.Abs(resolved)
	if err != nil {
		abs = resolved
	}
	return abs, true
}

// ParseVersion extracts a version from --version output: the first
// semver-looking token, else the first line capped at 48 bytes.
func ParseVersion(output string) string {
	output = strings.TrimSpace(output)
	if output == "" {
		return ""
	}
	if m := semverRE.FindStringSubmatch(output); len(m) > 1 {
		return m[1]
	}
	line := output
	if idx := strings.IndexByte(line, '\n'); idx >= 0 {
		line = strings.TrimSpace(line[:idx])
	}
	if len(line) > 48 {
		line = line[:48]
	}
	return line
}
