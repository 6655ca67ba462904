package browser

import (
	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
)

// resourceTypes maps human-readable config strings to Rod protocol
// resource types, adapted from the teacher's scraper/hijack.go.
var resourceTypes = map[string]proto.NetworkResourceType{
	"Image":      proto.NetworkResourceTypeImage,
	"Stylesheet": proto.NetworkResourceTypeStylesheet,
	"Font":       proto.NetworkResourceTypeFont,
	"Media":      proto.NetworkResourceTypeMedia,
}

// defaultBlockedTypes are blocked on every navigation: a learning pass
// never needs images/CSS/fonts/media rendered, only DOM structure and
// (for the description heuristic) text content.
var defaultBlockedTypes = []string{"Image", "Stylesheet", "Font", "Media"}

// installHijack mounts a request interceptor blocking the configured
// resource types, cutting bandwidth and accelerating DOM settle time.
// Returns the running HijackRouter so the caller can defer router.Stop();
// returns nil if there is nothing to block.
func installHijack(page *rod.Page, blockedTypes []string) *rod.HijackRouter {
	blocked := make(map[proto.NetworkResourceType]struct{}, len(blockedTypes))
	for _, name := range blockedTypes {
		if rt, ok := resourceTypes[name]; ok {
			blocked[rt] = struct{}{}
		}
	}
	if len(blocked) == 0 {
		return nil
	}

	router := page.HijackRequests()
	_ = router.Add("*", "", func(ctx *rod.Hijack) {
		if _, shouldBlock := blocked[ctx.Request.Type()]; shouldBlock {
			ctx.Response.Fail(proto.NetworkErrorReasonBlockedByClient)
			return
		}
		ctx.ContinueRequest(&proto.FetchContinueRequest{})
	})

	go router.Run()
	return router
}
