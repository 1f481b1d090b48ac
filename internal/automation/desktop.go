// Package automation drives the host desktop through platform utilities:
// cmd/PowerShell on Windows, open/osascript/screencapture on macOS and
// xdg-open/xdotool/gnome-screenshot on Linux.
package automation

import (
	"errors"
	"fmt"
	"runtime"
	"strconv"
	"strings"
	"time"
)

var ErrUnsupportedPlatform = errors.New("unsupported platform")

type Desktop struct {
	exec Exec
	goos string
}

func NewDesktop(exec Exec, goos string) *Desktop {
	if exec == nil {
		exec = &RealExec{}
	}
	if strings.TrimSpace(goos) == "" {
		goos = runtime.GOOS
	}
	return &Desktop{exec: exec, goos: goos}
}

func (d *Desktop) GOOS() string {
	return d.goos
}

func (d *Desktop) OpenURL(url string) error {
	name, args := buildOpenURLCommand(d.goos, url)
	if name == "" {
		return fmt.Errorf("open url: %w: %s", ErrUnsupportedPlatform, d.goos)
	}
	return d.exec.Start(name, args...)
}

func (d *Desktop) OpenApp(app string) error {
	name, args := buildOpenAppCommand(d.goos, app)
	if name == "" {
		return fmt.Errorf("open app: %w: %s", ErrUnsupportedPlatform, d.goos)
	}
	return d.exec.Start(name, args...)
}

func (d *Desktop) TypeText(text string, interval time.Duration) error {
	name, args := buildTypeTextCommand(d.goos, text, interval)
	if name == "" {
		return fmt.Errorf("type text: %w: %s", ErrUnsupportedPlatform, d.goos)
	}
	return d.exec.Run(name, args...)
}

// CaptureScreen writes a PNG of the whole screen to path. On Linux the first
// installed capture tool wins.
func (d *Desktop) CaptureScreen(path string) error {
	candidates := buildCaptureCommands(d.goos, path)
	if len(candidates) == 0 {
		return fmt.Errorf("capture screen: %w: %s", ErrUnsupportedPlatform, d.goos)
	}
	for _, c := range candidates[:len(candidates)-1] {
		if _, err := d.exec.LookPath(c.name); err == nil {
			return d.exec.Run(c.name, c.args...)
		}
	}
	last := candidates[len(candidates)-1]
	return d.exec.Run(last.name, last.args...)
}

type command struct {
	name string
	args []string
}

// buildOpenURLCommand avoids cmd.exe on windows: it would treat & and | in the
// url as command separators.
func buildOpenURLCommand(goos, url string) (string, []string) {
	switch goos {
	case "windows":
		return "rundll32", []string{"url.dll,FileProtocolHandler", url}
	case "darwin":
		return "open", []string{url}
	case "linux", "freebsd", "openbsd", "netbsd":
		return "xdg-open", []string{url}
	default:
		return "", nil
	}
}

func buildOpenAppCommand(goos, app string) (string, []string) {
	switch goos {
	case "windows":
		return "cmd", []string{"/c", "start", "", app}
	case "darwin":
		return "open", []string{"-a", app}
	case "linux", "freebsd", "openbsd", "netbsd":
		return app, nil
	default:
		return "", nil
	}
}

func buildTypeTextCommand(goos, text string, interval time.Duration) (string, []string) {
	ms := interval.Milliseconds()
	if ms < 0 {
		ms = 0
	}
	switch goos {
	case "windows":
		script := fmt.Sprintf(
			"$w=New-Object -ComObject wscript.shell; foreach($k in @(%s)){ $w.SendKeys($k); Start-Sleep -Milliseconds %d }",
			sendKeysList(text), ms,
		)
		return "powershell", []string{"-NoProfile", "-Command", script}
	case "darwin":
		script := fmt.Sprintf(`tell application "System Events" to keystroke "%s"`, appleScriptEscape(text))
		return "osascript", []string{"-e", script}
	case "linux", "freebsd", "openbsd", "netbsd":
		return "xdotool", []string{"type", "--delay", strconv.FormatInt(ms, 10), "--", text}
	default:
		return "", nil
	}
}

func buildCaptureCommands(goos, path string) []command {
	switch goos {
	case "windows":
		script := "Add-Type -AssemblyName System.Windows.Forms,System.Drawing; " +
			"$b=[System.Windows.Forms.SystemInformation]::VirtualScreen; " +
			"$bmp=New-Object System.Drawing.Bitmap $b.Width,$b.Height; " +
			"$g=[System.Drawing.Graphics]::FromImage($bmp); " +
			"$g.CopyFromScreen($b.Left,$b.Top,0,0,$bmp.Size); " +
			"$bmp.Save('" + strings.ReplaceAll(path, "'", "''") + "',[System.Drawing.Imaging.ImageFormat]::Png)"
		return []command{{name: "powershell", args: []string{"-NoProfile", "-Command", script}}}
	case "darwin":
		return []command{{name: "screencapture", args: []string{"-x", path}}}
	case "linux", "freebsd", "openbsd", "netbsd":
		return []command{
			{name: "gnome-screenshot", args: []string{"-f", path}},
			{name: "scrot", args: []string{"-o", path}},
			{name: "import", args: []string{"-window", "root", path}},
		}
	default:
		return nil
	}
}

// sendKeysList renders text as a PowerShell array of SendKeys tokens, one per
// character, with SendKeys metacharacters wrapped in braces.
func sendKeysList(text string) string {
	parts := make([]string, 0, len(text))
	for _, r := range text {
		var tok string
		switch r {
		case '+', '^', '%', '~', '(', ')', '{', '}', '[', ']':
			tok = "{" + string(r) + "}"
		case '\n':
			tok = "{ENTER}"
		case '\t':
			tok = "{TAB}"
		default:
			tok = string(r)
		}
		parts = append(parts, "'"+strings.ReplaceAll(tok, "'", "''")+"'")
	}
	return strings.Join(parts, ",")
}

func appleScriptEscape(text string) string {
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`)
	return r.Replace(text)
}
