package utils

import "strings"

// Device is the coarse client description kept with activity and login records.
type Device struct {
	Type    string
	Browser string
	OS      string
}

// Summary renders the device the way login activity stores it, e.g. "mobile / Safari / iOS".
func (d Device) Summary() string {
	return d.Type + " / " + d.Browser + " / " + d.OS
}

// ParseUserAgent classifies a User-Agent header. Order matters: Edge and Opera
// advertise Chrome, Chrome advertises Safari, iOS advertises Mac OS X.
func ParseUserAgent(ua string) Device {
	s := strings.ToLower(ua)
	d := Device{Type: "desktop", Browser: "Unknown", OS: "Unknown"}

	switch {
	case strings.Contains(s, "ipad") || strings.Contains(s, "tablet"):
		d.Type = "tablet"
	case strings.Contains(s, "mobile") || strings.Contains(s, "iphone") || strings.Contains(s, "android"):
		d.Type = "mobile"
	}

	switch {
	case strings.Contains(s, "edg/") || strings.Contains(s, "edge/"):
		d.Browser = "Edge"
	case strings.Contains(s, "opr/") || strings.Contains(s, "opera"):
		d.Browser = "Opera"
	case strings.Contains(s, "firefox/") || strings.Contains(s, "fxios/"):
		d.Browser = "Firefox"
	case strings.Contains(s, "chrome/") || strings.Contains(s, "crios/"):
		d.Browser = "Chrome"
	case strings.Contains(s, "safari/"):
		d.Browser = "Safari"
	}

	switch {
	case strings.Contains(s, "iphone") || strings.Contains(s, "ipad") || strings.Contains(s, "ipod"):
		d.OS = "iOS"
	case strings.Contains(s, "android"):
		d.OS = "Android"
	case strings.Contains(s, "windows"):
		d.OS = "Windows"
	case strings.Contains(s, "mac os x") || strings.Contains(s, "macintosh"):
		d.OS = "macOS"
	case strings.Contains(s, "linux"):
		d.OS = "Linux"
	}
	return d
}
