package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jmylchreest/farewatch/internal/logger"
	"github.com/jmylchreest/farewatch/pkg/fares"
)

// dump saves a screenshot and the page markup under the debug directory.
// Nothing is written when no directory is configured.
func (r *Runner) dump(ctx context.Context, page Page, route fares.Route, stage string) {
	dir := r.cfg.DebugDir
	if dir == "" {
		return
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		logger.WarnContext(ctx, "creating debug directory failed", "dir", dir, "error", err)
		return
	}
	base := filepath.Join(dir, fmt.Sprintf("%s_%s_%s", route.Origin, route.Destination, stage))

	if shot, err := page.Screenshot(ctx); err != nil {
		logger.DebugContext(ctx, "debug screenshot failed", "stage", stage, "error", err)
	} else if err := os.WriteFile(base+".png", shot, 0o644); err != nil {
		logger.WarnContext(ctx, "writing debug screenshot failed", "error", err)
	}

	if html, err := page.HTML(ctx); err != nil {
		logger.DebugContext(ctx, "debug markup failed", "stage", stage, "error", err)
	} else if err := os.WriteFile(base+".html", []byte(html), 0o644); err != nil {
		logger.WarnContext(ctx, "writing debug markup failed", "error", err)
	}
	logger.DebugContext(ctx, "debug artefacts saved", "stage", stage, "path", base)
}
