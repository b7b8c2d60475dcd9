package live

import (
	"strings"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
)

// normalizeResources lowercases the configured names and maps the plural
// config spellings onto the CDP resource type they stand for. Unknown names
// pass through so callers can block any type CDP reports.
func normalizeResources(names []string) []string {
	plurals := map[string]string{
		"images":      "image",
		"fonts":       "font",
		"stylesheets": "stylesheet",
	}
	out := make([]string, 0, len(names))
	for _, name := range names {
		t := strings.ToLower(strings.TrimSpace(name))
		if t == "" {
			continue
		}
		if singular, ok := plurals[t]; ok {
			t = singular
		}
		out = append(out, t)
	}
	return out
}

// blockResources drops requests whose CDP resource type is in types, which
// must already be normalized. Application forms render fine without images,
// fonts and media; skipping them cuts time-to-snapshot on heavy job boards.
func blockResources(page *rod.Page, types []string) {
	blocked := make(map[string]bool, len(types))
	for _, t := range types {
		blocked[t] = true
	}
	router := page.HijackRequests()
	router.MustAdd("*", func(h *rod.Hijack) {
		if blocked[strings.ToLower(string(h.Request.Type()))] {
			h.Response.Fail(proto.NetworkErrorReasonBlockedByClient)
			return
		}
		h.ContinueRequest(&proto.FetchContinueRequest{})
	})
	go router.Run()
}
