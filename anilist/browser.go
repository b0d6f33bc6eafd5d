package anilist

import (
	"fmt"
	"net/url"
	"os/exec"
	"runtime"

	"github.com/ateliersoft/anisync/core"
)

// launchBrowser starts the platform's URL opener. Swapped out in tests.
var launchBrowser = func(target string) error {
	switch runtime.GOOS {
	case "darwin":
		return exec.Command("open", target).Start()
	case "windows":
		return exec.Command("rundll32", "url.dll,FileProtocolHandler", target).Start()
	default:
		return exec.Command("xdg-open", target).Start()
	}
}

// OpenExternal opens a URL in the system browser. Only http and https
// URLs are accepted; every other scheme is rejected before anything is
// handed to the operating system.
func OpenExternal(rawURL string) error {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return &core.SyncError{
			Op:      "anilist.OpenExternal",
			Kind:    "security",
			Message: fmt.Sprintf("unparseable URL %q", rawURL),
			Err:     err,
		}
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return &core.SyncError{
			Op:      "anilist.OpenExternal",
			Kind:    "security",
			Message: fmt.Sprintf("refusing to open URL with scheme %q", parsed.Scheme),
			Err:     core.ErrInvalidConfiguration,
		}
	}
	if err := launchBrowser(parsed.String()); err != nil {
		return &core.SyncError{
			Op:   "anilist.OpenExternal",
			Kind: "browser",
			Err:  err,
		}
	}
	return nil
}
