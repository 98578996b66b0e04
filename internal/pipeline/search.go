package pipeline

import (
	"context"
	"time"

	"github.com/chromedp/chromedp/kb"

	"github.com/jmylchreest/farewatch/internal/logger"
)

// fallbackSearchScript clicks the first button that looks like a search
// button when the configured selector is missing.
const fallbackSearchScript = `(() => {
	const btn = Array.from(document.querySelectorAll('button')).find(b =>
		b.textContent.toLowerCase().includes('search') ||
		String(b.className).toLowerCase().includes('search') ||
		b.id.toLowerCase().includes('search'));
	if (!btn) {
		return {success: false};
	}
	btn.click();
	return {success: true, text: btn.textContent.trim(), id: btn.id};
})()`

// detailsWait lets expanded detail panels render before extraction.
const detailsWait = 2 * time.Second

const dismissScript = `document.body && document.body.click()`

type fallbackClick struct {
	Success bool   `json:"success"`
	Text    string `json:"text"`
	ID      string `json:"id"`
}

// dismissPopups closes cookie banners and promo dialogs.
func (r *Runner) dismissPopups(ctx context.Context, page Page) {
	if err := page.PressKey(ctx, kb.Escape); err != nil {
		logger.DebugContext(ctx, "escape key failed", "error", err)
	}
	if err := page.Evaluate(ctx, dismissScript, nil); err != nil {
		logger.DebugContext(ctx, "body click failed", "error", err)
	}
}

// triggerSearch clicks the search button and waits for results to start
// loading. A missing button is not an error: the results page often loads
// without it. Only a cancelled context is returned.
func (r *Runner) triggerSearch(ctx context.Context, page Page) error {
	s := r.cfg.Search
	clicked := false
	if s.SearchButton != "" {
		if err := page.Click(ctx, s.SearchButton, s.ButtonWait); err != nil {
			logger.DebugContext(ctx, "search button not clickable", "selector", s.SearchButton, "error", err)
		} else {
			clicked = true
			logger.DebugContext(ctx, "search button clicked", "selector", s.SearchButton)
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if !clicked {
		var fb fallbackClick
		if err := page.Evaluate(ctx, fallbackSearchScript, &fb); err != nil {
			logger.DebugContext(ctx, "fallback search click failed", "error", err)
		} else if fb.Success {
			clicked = true
			logger.DebugContext(ctx, "fallback search click", "text", fb.Text, "id", fb.ID)
		}
	}
	if !clicked {
		logger.DebugContext(ctx, "no search button found, relying on the page to load results")
		return ctx.Err()
	}
	return r.sleep(ctx, s.ResultsWait)
}

// expand opens the "View details" sections so flight numbers are rendered.
// Only a cancelled context is returned.
func (r *Runner) expand(ctx context.Context, page Page) error {
	var clicked int
	if err := page.Evaluate(ctx, r.engine.ExpandScript(), &clicked); err != nil {
		logger.DebugContext(ctx, "expanding details failed", "error", err)
		return ctx.Err()
	}
	logger.DebugContext(ctx, "details expanded", "count", clicked)
	if clicked == 0 {
		return nil
	}
	return r.sleep(ctx, detailsWait)
}
