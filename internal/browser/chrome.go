package browser

import (
	"os/exec"
	"path/filepath"

	"github.com/jmylchreest/farewatch/internal/logger"
)

// chromeCandidates are tried in order: names resolved through PATH, then
// well-known install locations.
var chromeCandidates = []string{
	"google-chrome-stable",
	"google-chrome",
	"chromium",
	"chromium-browser",
	"chrome",
	"/usr/bin/google-chrome-stable",
	"/usr/bin/chromium",
	"/snap/bin/chromium",
	"/Applications/Google Chrome.app/Contents/MacOS/Google Chrome",
	"/Applications/Chromium.app/Contents/MacOS/Chromium",
	`C:\Program Files\Google\Chrome\Application\chrome.exe`,
}

// FindChromePath returns the first Chrome or Chromium binary it can find, or
// "" to let chromedp fall back to its own lookup.
func FindChromePath() string {
	for _, name := range chromeCandidates {
		path, err := exec.LookPath(name)
		if err != nil {
			continue
		}
		if abs, err := filepath.Abs(path); err == nil {
			path = abs
		}
		logger.Debug("found Chrome binary", "name", name, "path", path)
		return path
	}
	logger.Warn("no Chrome binary found, relying on chromedp defaults")
	return ""
}
