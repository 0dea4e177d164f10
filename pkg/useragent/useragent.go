package useragent

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Device types.
const (
	DeviceTypeMobile  = "mobile"
	DeviceTypeDesktop = "desktop"
	DeviceTypeTablet  = "tablet"
	DeviceTypeBot     = "bot"
	DeviceTypeTV      = "tv"
	DeviceTypeConsole = "console"
	DeviceTypeUnknown = "unknown"
)

// Operating systems.
const (
	OSWindows  = "windows"
	OSMacOS    = "macos"
	OSIOS      = "ios"
	OSAndroid  = "android"
	OSLinux    = "linux"
	OSChromeOS = "chromeos"
	OSUnknown  = "unknown"
)

const maxLength = 2048

// UserAgent holds the parsed parts of a User-Agent header.
type UserAgent struct {
	ua          string
	deviceType  string
	deviceModel string
	os          string
	browserName string
	browserVer  string
}

// New builds a UserAgent from already known parts. Useful as a fallback after a parse error.
func New(ua, deviceType, deviceModel, os, browserName, browserVer string) UserAgent {
	return UserAgent{
		ua:          ua,
		deviceType:  deviceType,
		deviceModel: deviceModel,
		os:          os,
		browserName: browserName,
		browserVer:  browserVer,
	}
}

// Parse extracts device, OS and browser information from a User-Agent string.
func Parse(ua string) (UserAgent, error) {
	ua = strings.TrimSpace(ua)
	if ua == "" {
		return UserAgent{}, ErrEmptyUserAgent
	}
	if len(ua) > maxLength || !strings.ContainsFunc(ua, unicode.IsLetter) {
		return UserAgent{}, ErrMalformedUserAgent
	}

	lower := strings.ToLower(ua)

	if name, ok := detectBot(lower); ok {
		return UserAgent{
			ua:          ua,
			deviceType:  DeviceTypeBot,
			os:          OSUnknown,
			browserName: name,
		}, nil
	}

	os := detectOS(lower)
	name, ver := detectBrowser(lower)
	deviceType := detectDeviceType(lower, os)
	if deviceType == DeviceTypeUnknown && os == OSUnknown && name == "unknown" {
		return UserAgent{}, ErrUnknownDevice
	}

	return UserAgent{
		ua:          ua,
		deviceType:  deviceType,
		deviceModel: detectModel(lower),
		os:          os,
		browserName: name,
		browserVer:  ver,
	}, nil
}

func (u UserAgent) String() string      { return u.ua }
func (u UserAgent) DeviceType() string  { return u.deviceType }
func (u UserAgent) DeviceModel() string { return u.deviceModel }
func (u UserAgent) OS() string          { return u.os }
func (u UserAgent) BrowserName() string { return u.browserName }
func (u UserAgent) BrowserVer() string  { return u.browserVer }

func (u UserAgent) IsMobile() bool  { return u.deviceType == DeviceTypeMobile }
func (u UserAgent) IsTablet() bool  { return u.deviceType == DeviceTypeTablet }
func (u UserAgent) IsDesktop() bool { return u.deviceType == DeviceTypeDesktop }
func (u UserAgent) IsBot() bool     { return u.deviceType == DeviceTypeBot }

// GetShortIdentifier returns a compact human-readable label,
// e.g. "Chrome/120.0 (Windows, desktop)" or "Bot: Googlebot".
func (u UserAgent) GetShortIdentifier() string {
	title := cases.Title(language.English)
	if u.IsBot() {
		return "Bot: " + title.String(u.browserName)
	}

	browser := title.String(u.browserName)
	if u.browserVer != "" {
		browser += "/" + u.browserVer
	}
	return browser + " (" + OSDisplayName(u.os) + ", " + u.deviceType + ")"
}

// OSDisplayName maps an OS identifier to its conventional spelling.
func OSDisplayName(os string) string {
	switch os {
	case OSWindows:
		return "Windows"
	case OSMacOS:
		return "macOS"
	case OSIOS:
		return "iOS"
	case OSAndroid:
		return "Android"
	case OSLinux:
		return "Linux"
	case OSChromeOS:
		return "ChromeOS"
	default:
		return "Unknown"
	}
}

// BrowserDisplayName title-cases a browser identifier.
func BrowserDisplayName(name string) string {
	if name == "" {
		return "Unknown"
	}
	return cases.Title(language.English).String(name)
}
