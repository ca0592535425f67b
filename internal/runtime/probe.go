// Package runtime detects the host environment once at startup so the
// prompt builder can describe it to the model.
package runtime

import (
	"os/exec"
	goruntime "runtime"
)

// Info describes the host environment. Populate with Probe and treat
// as read-only afterwards.
type Info struct {
	OS    string // "linux", "darwin", "windows"
	Arch  string
	Shell string // the shell used by the bash tool

	GitAvailable    bool
	PythonAvailable bool
	NodeAvailable   bool
}

// Probe detects the platform and which common toolchains are in PATH.
// Each check is a synchronous exec.LookPath, millisecond-level.
func Probe() Info {
	info := Info{
		OS:    goruntime.GOOS,
		Arch:  goruntime.GOARCH,
		Shell: "sh -c",
	}
	if info.OS == "windows" {
		info.Shell = "cmd /c"
	}
	if _, err := exec.LookPath("git"); err == nil {
		info.GitAvailable = true
	}
	if _, err := exec.LookPath("python3"); err == nil {
		info.PythonAvailable = true
	} else if _, err := exec.LookPath("python"); err == nil {
		info.PythonAvailable = true
	}
	if _, err := exec.LookPath("node"); err == nil {
		info.NodeAvailable = true
	}
	return info
}

// StatusLine renders tool availability for the prompt's environment
// block.
func (i Info) StatusLine() string {
	mark := func(ok bool) string {
		if ok {
			return "사용 가능"
		}
		return "없음"
	}
	return "git: " + mark(i.GitAvailable) +
		", python: " + mark(i.PythonAvailable) +
		", node: " + mark(i.NodeAvailable)
}
