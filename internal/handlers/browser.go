package handlers

import (
	"context"
	"net/url"
	"strings"

	"mashiro/cli/internal/dispatch"
)

const (
	categoryBrowser = "browser"

	googleSearchURL  = "https://www.google.com/search?q="
	youtubeHomeURL   = "https://www.youtube.com"
	youtubeSearchURL = "https://www.youtube.com/results?search_query="
)

// URLOpener launches the default browser.
type URLOpener interface {
	OpenURL(url string) error
}

// NormalizeURL prefixes https:// unless the url already names http or https.
func NormalizeURL(raw string) string {
	u := strings.TrimSpace(raw)
	lower := strings.ToLower(u)
	if strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") {
		return u
	}
	return "https://" + u
}

type OpenBrowser struct {
	opener   URLOpener
	homePage string
}

func NewOpenBrowser(opener URLOpener, homePage string) *OpenBrowser {
	if strings.TrimSpace(homePage) == "" {
		homePage = "https://google.com"
	}
	return &OpenBrowser{opener: opener, homePage: homePage}
}

func (h *OpenBrowser) Name() string     { return "open_browser" }
func (h *OpenBrowser) Category() string { return categoryBrowser }

func (h *OpenBrowser) Execute(_ context.Context, params dispatch.Params) dispatch.Result {
	target := NormalizeURL(params.NonEmptyString("url", h.homePage))
	if err := h.opener.OpenURL(target); err != nil {
		return dispatch.Failed("browser_open_failed", err).With("url", target)
	}
	return dispatch.Succeeded("browser_opened", map[string]any{"url": target})
}

type SearchGoogle struct {
	opener URLOpener
}

func NewSearchGoogle(opener URLOpener) *SearchGoogle {
	return &SearchGoogle{opener: opener}
}

func (h *SearchGoogle) Name() string     { return "search_google" }
func (h *SearchGoogle) Category() string { return categoryBrowser }

func (h *SearchGoogle) Execute(_ context.Context, params dispatch.Params) dispatch.Result {
	query := params.String("query", "")
	target := googleSearchURL + url.QueryEscape(query)
	if err := h.opener.OpenURL(target); err != nil {
		return dispatch.Failed("google_search_failed", err).With("query", query)
	}
	return dispatch.Succeeded("google_search", map[string]any{"url": target, "query": query})
}

type OpenYouTube struct {
	opener URLOpener
}

func NewOpenYouTube(opener URLOpener) *OpenYouTube {
	return &OpenYouTube{opener: opener}
}

func (h *OpenYouTube) Name() string     { return "open_youtube" }
func (h *OpenYouTube) Category() string { return categoryBrowser }

func (h *OpenYouTube) Execute(_ context.Context, params dispatch.Params) dispatch.Result {
	search := params.String("search", "")
	target := youtubeHomeURL
	if search != "" {
		target = youtubeSearchURL + url.QueryEscape(search)
	}
	if err := h.opener.OpenURL(target); err != nil {
		return dispatch.Failed("youtube_open_failed", err)
	}
	res := dispatch.Succeeded("youtube_opened", map[string]any{"url": target})
	if search != "" {
		res = res.With("search", search)
	}
	return res
}
