package handlers

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"mashiro/cli/internal/automation"
	"mashiro/cli/internal/dispatch"
	"mashiro/cli/internal/global"
)

type fakeDesktop struct {
	goos     string
	urls     []string
	apps     []string
	typed    []string
	interval time.Duration
	shots    []string
	err      error
}

func (f *fakeDesktop) OpenURL(url string) error {
	f.urls = append(f.urls, url)
	return f.err
}

func (f *fakeDesktop) OpenApp(app string) error {
	f.apps = append(f.apps, app)
	return f.err
}

func (f *fakeDesktop) GOOS() string { return f.goos }

func (f *fakeDesktop) TypeText(text string, interval time.Duration) error {
	f.typed = append(f.typed, text)
	f.interval = interval
	return f.err
}

func (f *fakeDesktop) CaptureScreen(path string) error {
	f.shots = append(f.shots, path)
	if f.err != nil {
		return f.err
	}
	return os.WriteFile(path, []byte("png"), 0o644)
}

func field(t *testing.T, res dispatch.Result, key string) any {
	t.Helper()
	v, ok := res.Field(key)
	if !ok {
		t.Fatalf("missing field %q in %#v", key, res)
	}
	return v
}

func TestNormalizeURL(t *testing.T) {
	cases := map[string]string{
		"example.com":         "https://example.com",
		"http://example.com":  "http://example.com",
		"HTTPS://example.com": "HTTPS://example.com",
		" example.com/a ":     "https://example.com/a",
	}
	for in, want := range cases {
		if got := NormalizeURL(in); got != want {
			t.Fatalf("NormalizeURL(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestOpenBrowser_InjectsSchemeAndDefaultsHomePage(t *testing.T) {
	fd := &fakeDesktop{}
	h := NewOpenBrowser(fd, "")

	res := h.Execute(context.Background(), dispatch.Params{"url": "example.com"})
	if !res.Success || res.Action != "browser_opened" {
		t.Fatalf("unexpected result: %#v", res)
	}
	if field(t, res, "url") != "https://example.com" || fd.urls[0] != "https://example.com" {
		t.Fatalf("scheme should be injected: %#v %#v", res, fd.urls)
	}

	res = h.Execute(context.Background(), dispatch.Params{})
	if field(t, res, "url") != "https://google.com" {
		t.Fatalf("missing url should default to home page: %#v", res)
	}
}

func TestOpenBrowser_ReportsFailureTag(t *testing.T) {
	fd := &fakeDesktop{err: errors.New("xdg-open: not found")}
	res := NewOpenBrowser(fd, "https://duckduckgo.com").Execute(context.Background(), nil)
	if res.Success || res.Action != "browser_open_failed" || !strings.Contains(res.Error, "xdg-open") {
		t.Fatalf("unexpected result: %#v", res)
	}
}

func TestSearchGoogle_EncodesQuery(t *testing.T) {
	fd := &fakeDesktop{}
	res := NewSearchGoogle(fd).Execute(context.Background(), dispatch.Params{"query": "go & rust"})
	if !res.Success || res.Action != "google_search" {
		t.Fatalf("unexpected result: %#v", res)
	}
	if fd.urls[0] != "https://www.google.com/search?q=go+%26+rust" {
		t.Fatalf("unexpected url: %s", fd.urls[0])
	}
	if field(t, res, "query") != "go & rust" {
		t.Fatalf("query should be echoed: %#v", res)
	}
}

func TestOpenYouTube_WithAndWithoutSearch(t *testing.T) {
	fd := &fakeDesktop{}
	h := NewOpenYouTube(fd)

	res := h.Execute(context.Background(), nil)
	if fd.urls[0] != "https://www.youtube.com" {
		t.Fatalf("unexpected home url: %s", fd.urls[0])
	}
	if _, ok := res.Field("search"); ok {
		t.Fatalf("search should be absent: %#v", res)
	}

	res = h.Execute(context.Background(), dispatch.Params{"search": "lofi"})
	if fd.urls[1] != "https://www.youtube.com/results?search_query=lofi" || field(t, res, "search") != "lofi" {
		t.Fatalf("unexpected search result: %#v", res)
	}
	if res.Action != "youtube_opened" {
		t.Fatalf("unexpected action: %s", res.Action)
	}
}

func TestScreenshot_DefaultFilenameAndPNGSuffix(t *testing.T) {
	fd := &fakeDesktop{}
	dir := t.TempDir()
	h := NewScreenshot(fd, dir)
	h.now = func() time.Time { return time.Date(2026, 5, 6, 7, 8, 9, 0, time.UTC) }

	res := h.Execute(context.Background(), nil)
	if !res.Success || res.Action != "screenshot_taken" {
		t.Fatalf("unexpected result: %#v", res)
	}
	if field(t, res, "filename") != "screenshot_20260506_070809.png" {
		t.Fatalf("unexpected default filename: %#v", res)
	}
	if field(t, res, "filepath") != filepath.Join(dir, "screenshot_20260506_070809.png") {
		t.Fatalf("unexpected path: %#v", res)
	}
	if field(t, res, "size") != "3 B" {
		t.Fatalf("unexpected size: %#v", res)
	}

	res = h.Execute(context.Background(), dispatch.Params{"filename": "desk"})
	if field(t, res, "filename") != "desk.png" {
		t.Fatalf(".png should be appended: %#v", res)
	}
}

func TestScreenshot_RejectsPathTraversal(t *testing.T) {
	fd := &fakeDesktop{}
	res := NewScreenshot(fd, t.TempDir()).Execute(context.Background(), dispatch.Params{"filename": "../escape"})
	if res.Success || res.Action != "screenshot_failed" {
		t.Fatalf("expected failure: %#v", res)
	}
	if len(fd.shots) != 0 {
		t.Fatal("capturer must not run for invalid names")
	}
}

func TestScreenshot_CaptureError(t *testing.T) {
	fd := &fakeDesktop{err: errors.New("no display")}
	res := NewScreenshot(fd, t.TempDir()).Execute(context.Background(), nil)
	if res.Success || res.Error != "no display" || res.Action != "screenshot_failed" {
		t.Fatalf("unexpected result: %#v", res)
	}
}

func TestOpenApp_ResolvesAlias(t *testing.T) {
	fd := &fakeDesktop{goos: "windows"}
	h := NewOpenApp(fd, nil)

	res := h.Execute(context.Background(), nil)
	if !res.Success || res.Action != "application_opened" {
		t.Fatalf("unexpected result: %#v", res)
	}
	if field(t, res, "app_name") != "notepad" || field(t, res, "actual_command") != "notepad.exe" {
		t.Fatalf("unexpected alias resolution: %#v", res)
	}
	if fd.apps[0] != "notepad.exe" {
		t.Fatalf("launcher should receive resolved name: %#v", fd.apps)
	}
}

func TestOpenApp_FailureCarriesAppName(t *testing.T) {
	fd := &fakeDesktop{goos: "linux", err: errors.New("exec: not found")}
	res := NewOpenApp(fd, nil).Execute(context.Background(), dispatch.Params{"app": "calculator"})
	if res.Success || res.Action != "application_open_failed" || field(t, res, "app_name") != "calculator" {
		t.Fatalf("unexpected result: %#v", res)
	}
}

func TestTypeText_CountsRunes(t *testing.T) {
	fd := &fakeDesktop{}
	res := NewTypeText(fd, 50*time.Millisecond).Execute(context.Background(), dispatch.Params{"text": "héllo"})
	if !res.Success || res.Action != "text_typed" {
		t.Fatalf("unexpected result: %#v", res)
	}
	if field(t, res, "character_count") != 5 {
		t.Fatalf("unexpected count: %#v", res)
	}
	if fd.interval != 50*time.Millisecond {
		t.Fatalf("interval not passed through: %v", fd.interval)
	}

	res = NewTypeText(fd, 0).Execute(context.Background(), nil)
	if !res.Success || len(fd.typed) != 1 {
		t.Fatalf("empty text should succeed without typing: %#v %#v", res, fd.typed)
	}
}

func TestBuildRegistry_RegistersBuiltins(t *testing.T) {
	cfg, err := global.NewConfigStore(t.TempDir()).LoadOrInit()
	if err != nil {
		t.Fatalf("LoadOrInit failed: %v", err)
	}
	reg, err := BuildRegistry(automation.NewDesktop(nil, "linux"), cfg)
	if err != nil {
		t.Fatalf("BuildRegistry failed: %v", err)
	}
	listing := reg.ListCommands()
	if strings.Join(listing["browser"], ",") != "open_browser,search_google,open_youtube" {
		t.Fatalf("unexpected browser commands: %#v", listing)
	}
	if strings.Join(listing["desktop"], ",") != "screenshot,open_app,type_text" {
		t.Fatalf("unexpected desktop commands: %#v", listing)
	}
}
