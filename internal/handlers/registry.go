// Package handlers holds the built-in assistant commands. Each command is a
// dispatch.Handler backed by the host desktop.
package handlers

import (
	"time"

	"mashiro/cli/internal/automation"
	"mashiro/cli/internal/dispatch"
	"mashiro/cli/internal/global"
)

// BuildRegistry wires every built-in command to desktop using the user's
// assistant config.
func BuildRegistry(desktop *automation.Desktop, cfg global.AssistantConfig) (*dispatch.Registry, error) {
	interval := time.Duration(cfg.Desktop.TypeIntervalMS) * time.Millisecond
	return dispatch.NewRegistry(
		NewOpenBrowser(desktop, cfg.Browser.HomePage),
		NewSearchGoogle(desktop),
		NewOpenYouTube(desktop),
		NewScreenshot(desktop, cfg.Desktop.ScreenshotDir),
		NewOpenApp(desktop, cfg.Apps),
		NewTypeText(desktop, interval),
	)
}
