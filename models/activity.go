package models

import "strings"

// ActivityKind is the stored name of a presence activity type
type ActivityKind string

const (
	ActivityPlaying   ActivityKind = "Playing"
	ActivityStreaming ActivityKind = "Streaming"
	ActivityListening ActivityKind = "Listening"
	ActivityWatching  ActivityKind = "Watching"
	ActivityCustom    ActivityKind = "Custom"
	ActivityCompeting ActivityKind = "Competing"
)

// ActivityKinds lists every kind in wire-code order
var ActivityKinds = []ActivityKind{
	ActivityPlaying,
	ActivityStreaming,
	ActivityListening,
	ActivityWatching,
	ActivityCustom,
	ActivityCompeting,
}

// ActivityKindFromCode maps a wire code back to its kind. Unknown codes map to Playing.
func ActivityKindFromCode(code int) ActivityKind {
	if code < 0 || code >= len(ActivityKinds) {
		return ActivityPlaying
	}
	return ActivityKinds[code]
}

// Platform is the client platform a presence is shown on
type Platform string

const (
	PlatformDesktop Platform = "desktop"
	PlatformIOS     Platform = "ios"
	PlatformAndroid Platform = "android"
)

// ParsePlatform returns nil for an empty or unknown platform
func ParsePlatform(s string) *Platform {
	p := Platform(strings.ToLower(strings.TrimSpace(s)))
	switch p {
	case PlatformDesktop, PlatformIOS, PlatformAndroid:
		return &p
	default:
		return nil
	}
}
