package automation

import "strings"

var appAliases = map[string]map[string]string{
	"windows": {
		"notepad":    "notepad.exe",
		"chrome":     "chrome.exe",
		"firefox":    "firefox.exe",
		"calculator": "calc.exe",
		"explorer":   "explorer.exe",
		"paint":      "mspaint.exe",
	},
	"darwin": {
		"notepad":    "TextEdit",
		"chrome":     "Google Chrome",
		"firefox":    "Firefox",
		"calculator": "Calculator",
		"explorer":   "Finder",
		"paint":      "Preview",
	},
	"linux": {
		"notepad":    "gedit",
		"chrome":     "google-chrome",
		"firefox":    "firefox",
		"calculator": "gnome-calculator",
		"explorer":   "nautilus",
		"paint":      "gimp",
	},
}

// ResolveApp maps a friendly application name to the platform program.
// overrides win over built-in aliases; unknown names pass through unchanged.
func ResolveApp(goos, name string, overrides map[string]string) string {
	key := strings.ToLower(strings.TrimSpace(name))
	for k, v := range overrides {
		if strings.ToLower(strings.TrimSpace(k)) == key && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	if actual, ok := appAliases[goos][key]; ok {
		return actual
	}
	return name
}
