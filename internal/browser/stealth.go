package browser

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/chromedp/chromedp"
)

// StealthScript returns the init script that hides the common automation
// tells before any page script runs. locale drives navigator.languages.
func StealthScript(locale string) string {
	langs, _ := json.Marshal(languages(locale))
	return fmt.Sprintf(stealthTemplate, langs)
}

// languages expands "en-GB" into ["en-GB", "en"].
func languages(locale string) []string {
	if locale == "" {
		return []string{"en-GB", "en"}
	}
	out := []string{locale}
	if base, _, ok := strings.Cut(locale, "-"); ok && base != "" {
		out = append(out, base)
	}
	return out
}

const stealthTemplate = `(() => {
	'use strict';

	Object.defineProperty(navigator, 'webdriver', {get: () => undefined, configurable: true});
	delete Object.getPrototypeOf(navigator).webdriver;

	Object.defineProperty(navigator, 'languages', {get: () => %s, configurable: true});

	Object.defineProperty(navigator, 'plugins', {
		get: () => {
			const names = ['PDF Viewer', 'Chrome PDF Viewer', 'Chromium PDF Viewer'];
			const arr = names.map(name => ({name, filename: 'internal-pdf-viewer', description: 'Portable Document Format', length: 1}));
			arr.item = i => arr[i];
			arr.namedItem = n => arr.find(p => p.name === n);
			arr.refresh = () => {};
			return arr;
		},
		configurable: true
	});

	if (!window.chrome) {
		window.chrome = {};
	}
	window.chrome.runtime = window.chrome.runtime || {};
	window.chrome.app = window.chrome.app || {isInstalled: false};

	const query = window.navigator.permissions && window.navigator.permissions.query;
	if (query) {
		window.navigator.permissions.query = params => params && params.name === 'notifications'
			? Promise.resolve({state: Notification.permission})
			: query.call(window.navigator.permissions, params);
	}

	Object.defineProperty(navigator, 'hardwareConcurrency', {get: () => 8, configurable: true});
	Object.defineProperty(navigator, 'deviceMemory', {get: () => 8, configurable: true});

	const getParameter = WebGLRenderingContext.prototype.getParameter;
	WebGLRenderingContext.prototype.getParameter = function(p) {
		if (p === 37445) return 'Intel Inc.';
		if (p === 37446) return 'Intel Iris OpenGL Engine';
		return getParameter.call(this, p);
	};

	if (window.outerWidth === 0 && window.outerHeight === 0) {
		Object.defineProperty(window, 'outerWidth', {get: () => window.innerWidth});
		Object.defineProperty(window, 'outerHeight', {get: () => window.innerHeight + 85});
	}
})();`

// stealthFlags are the Chrome switches that remove automation banners and
// blink's AutomationControlled feature.
func stealthFlags() []chromedp.ExecAllocatorOption {
	return []chromedp.ExecAllocatorOption{
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("excludeSwitches", "enable-automation"),
		chromedp.Flag("useAutomationExtension", false),
		chromedp.Flag("disable-infobars", true),
		chromedp.Flag("disable-features", "IsolateOrigins,site-per-process"),
		chromedp.Flag("disable-background-timer-throttling", true),
		chromedp.Flag("disable-backgrounding-occluded-windows", true),
		chromedp.Flag("disable-renderer-backgrounding", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
	}
}
