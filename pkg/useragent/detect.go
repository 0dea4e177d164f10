package useragent

import "strings"

var botSignatures = []struct {
	keyword string
	name    string
}{
	{"googlebot", "googlebot"},
	{"bingbot", "bingbot"},
	{"yandexbot", "yandexbot"},
	{"duckduckbot", "duckduckbot"},
	{"baiduspider", "baiduspider"},
	{"facebookexternalhit", "facebook"},
	{"twitterbot", "twitterbot"},
	{"slackbot", "slackbot"},
	{"telegrambot", "telegrambot"},
	{"curl/", "curl"},
	{"wget/", "wget"},
	{"python-requests", "python-requests"},
	{"go-http-client", "go-http-client"},
}

var genericBotKeywords = []string{"bot", "crawler", "spider", "slurp"}

func detectBot(ua string) (string, bool) {
	for _, sig := range botSignatures {
		if strings.Contains(ua, sig.keyword) {
			return sig.name, true
		}
	}
	for _, kw := range genericBotKeywords {
		if strings.Contains(ua, kw) {
			return "bot", true
		}
	}
	return "", false
}

func detectOS(ua string) string {
	switch {
	case strings.Contains(ua, "windows"):
		return OSWindows
	case strings.Contains(ua, "iphone"), strings.Contains(ua, "ipad"), strings.Contains(ua, "ipod"):
		return OSIOS
	case strings.Contains(ua, "android"):
		return OSAndroid
	case strings.Contains(ua, "cros "):
		return OSChromeOS
	case strings.Contains(ua, "mac os x"), strings.Contains(ua, "macintosh"):
		return OSMacOS
	case strings.Contains(ua, "linux"), strings.Contains(ua, "x11"):
		return OSLinux
	default:
		return OSUnknown
	}
}

func detectDeviceType(ua, os string) string {
	switch {
	case containsAny(ua, "smart-tv", "smarttv", "appletv", "googletv", "hbbtv", "roku", "bravia"):
		return DeviceTypeTV
	case containsAny(ua, "playstation", "xbox", "nintendo"):
		return DeviceTypeConsole
	case containsAny(ua, "ipad", "tablet", "kindle", "silk/"):
		return DeviceTypeTablet
	case os == OSAndroid && !strings.Contains(ua, "mobile"):
		return DeviceTypeTablet
	case containsAny(ua, "iphone", "ipod", "mobile", "android"):
		return DeviceTypeMobile
	case os == OSWindows, os == OSMacOS, os == OSLinux, os == OSChromeOS:
		return DeviceTypeDesktop
	default:
		return DeviceTypeUnknown
	}
}

// Order matters: most Chromium derivatives also advertise "chrome/" and "safari/".
var browserSignatures = []struct {
	token string
	name  string
}{
	{"edg/", "edge"},
	{"edga/", "edge"},
	{"edgios/", "edge"},
	{"opr/", "opera"},
	{"samsungbrowser/", "samsung"},
	{"yabrowser/", "yandex"},
	{"firefox/", "firefox"},
	{"fxios/", "firefox"},
	{"crios/", "chrome"},
	{"chrome/", "chrome"},
	{"msie ", "ie"},
	{"trident/", "ie"},
}

func detectBrowser(ua string) (string, string) {
	for _, sig := range browserSignatures {
		if i := strings.Index(ua, sig.token); i >= 0 {
			return sig.name, shortVersion(ua[i+len(sig.token):])
		}
	}
	if strings.Contains(ua, "safari/") {
		if i := strings.Index(ua, "version/"); i >= 0 {
			return "safari", shortVersion(ua[i+len("version/"):])
		}
		return "safari", ""
	}
	return "unknown", ""
}

// shortVersion keeps "major.minor" from the start of s.
func shortVersion(s string) string {
	end := strings.IndexAny(s, " ;)")
	if end >= 0 {
		s = s[:end]
	}
	parts := strings.SplitN(s, ".", 3)
	if len(parts) >= 2 {
		return parts[0] + "." + parts[1]
	}
	return s
}

func detectModel(ua string) string {
	switch {
	case strings.Contains(ua, "iphone"):
		return "iphone"
	case strings.Contains(ua, "ipad"):
		return "ipad"
	case strings.Contains(ua, "ipod"):
		return "ipod"
	case strings.Contains(ua, "pixel"):
		return "pixel"
	case strings.Contains(ua, "sm-"):
		return "samsung"
	default:
		return ""
	}
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
