package platform

import "strings"

// Platform identifies the source social network of a video URL. It is a
// closed enumeration: code switching on a Platform should handle every
// constant below plus Unknown.
type Platform string

const (
	Instagram Platform = "instagram"
	TikTok    Platform = "tiktok"
	YouTube   Platform = "youtube"
	Twitter   Platform = "twitter"
	Unknown   Platform = "unknown"
)

// FromURL classifies a URL by substring containment, checked in fixed
// priority order. Classification happens once at job creation and the tag is
// persisted, never recomputed.
func FromURL(rawURL string) Platform {
	lower := strings.ToLower(rawURL)

	switch {
	case strings.Contains(lower, "instagram.com"):
		return Instagram
	case strings.Contains(lower, "tiktok.com"):
		return TikTok
	case strings.Contains(lower, "youtube.com"), strings.Contains(lower, "youtu.be"):
		return YouTube
	case strings.Contains(lower, "twitter.com"), strings.Contains(lower, "x.com"):
		return Twitter
	default:
		return Unknown
	}
}

// Valid reports whether p is one of the known enumeration values.
func (p Platform) Valid() bool {
	switch p {
	case Instagram, TikTok, YouTube, Twitter, Unknown:
		return true
	}
	return false
}

func (p Platform) String() string {
	return string(p)
}
