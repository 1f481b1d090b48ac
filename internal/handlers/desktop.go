package handlers

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/dustin/go-humanize"

	"mashiro/cli/internal/automation"
	"mashiro/cli/internal/dispatch"
)

const categoryDesktop = "desktop"

type ScreenCapturer interface {
	CaptureScreen(path string) error
}

type AppLauncher interface {
	OpenApp(app string) error
	GOOS() string
}

type Typist interface {
	TypeText(text string, interval time.Duration) error
}

type Screenshot struct {
	capturer ScreenCapturer
	dir      string
	now      func() time.Time
}

func NewScreenshot(capturer ScreenCapturer, dir string) *Screenshot {
	if strings.TrimSpace(dir) == "" {
		dir = "Screenshots"
	}
	return &Screenshot{capturer: capturer, dir: dir, now: time.Now}
}

func (h *Screenshot) Name() string     { return "screenshot" }
func (h *Screenshot) Category() string { return categoryDesktop }

func (h *Screenshot) Execute(_ context.Context, params dispatch.Params) dispatch.Result {
	filename, err := screenshotFilename(params.NonEmptyString("filename", ""), h.now())
	if err != nil {
		return dispatch.Failed("screenshot_failed", err)
	}
	if err := os.MkdirAll(h.dir, 0o755); err != nil {
		return dispatch.Failed("screenshot_failed", err)
	}
	path, err := filepath.Abs(filepath.Join(h.dir, filename))
	if err != nil {
		return dispatch.Failed("screenshot_failed", err)
	}
	if err := h.capturer.CaptureScreen(path); err != nil {
		return dispatch.Failed("screenshot_failed", err)
	}
	fields := map[string]any{
		"filepath":  path,
		"filename":  filename,
		"timestamp": h.now().Format(time.RFC3339),
	}
	if info, err := os.Stat(path); err == nil {
		fields["size"] = humanize.Bytes(uint64(info.Size()))
	}
	return dispatch.Succeeded("screenshot_taken", fields)
}

// screenshotFilename defaults to a timestamped name, forces a .png suffix and
// refuses names that would escape the screenshot directory.
func screenshotFilename(name string, now time.Time) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		name = "screenshot_" + now.Format("20060102_150405")
	}
	if filepath.Base(name) != name || name == "." || name == ".." {
		return "", fmt.Errorf("invalid screenshot filename %q", name)
	}
	if !strings.HasSuffix(name, ".png") {
		name += ".png"
	}
	return name, nil
}

type OpenApp struct {
	launcher   AppLauncher
	defaultApp string
	overrides  map[string]string
	now        func() time.Time
}

func NewOpenApp(launcher AppLauncher, overrides map[string]string) *OpenApp {
	return &OpenApp{launcher: launcher, defaultApp: "notepad", overrides: overrides, now: time.Now}
}

func (h *OpenApp) Name() string     { return "open_app" }
func (h *OpenApp) Category() string { return categoryDesktop }

func (h *OpenApp) Execute(_ context.Context, params dispatch.Params) dispatch.Result {
	app := params.NonEmptyString("app", h.defaultApp)
	actual := automation.ResolveApp(h.launcher.GOOS(), app, h.overrides)
	if err := h.launcher.OpenApp(actual); err != nil {
		return dispatch.Failed("application_open_failed", err).With("app_name", app)
	}
	return dispatch.Succeeded("application_opened", map[string]any{
		"app_name":       app,
		"actual_command": actual,
		"timestamp":      h.now().Format(time.RFC3339),
	})
}

type TypeText struct {
	typist   Typist
	interval time.Duration
	now      func() time.Time
}

func NewTypeText(typist Typist, interval time.Duration) *TypeText {
	return &TypeText{typist: typist, interval: interval, now: time.Now}
}

func (h *TypeText) Name() string     { return "type_text" }
func (h *TypeText) Category() string { return categoryDesktop }

func (h *TypeText) Execute(_ context.Context, params dispatch.Params) dispatch.Result {
	text := params.String("text", "")
	if text != "" {
		if err := h.typist.TypeText(text, h.interval); err != nil {
			return dispatch.Failed("type_text_failed", err)
		}
	}
	return dispatch.Succeeded("text_typed", map[string]any{
		"text":            text,
		"character_count": utf8.RuneCountInString(text),
		"timestamp":       h.now().Format(time.RFC3339),
	})
}
