package platform

import "regexp"

// VideoURL is one recognized video link found in post text.
type VideoURL struct {
	URL      string
	Platform Platform
}

// Patterns are tested independently per URL; the first match wins. Short-link
// hosts (vm/vt.tiktok.com, youtu.be) are listed explicitly because the
// canonical-host patterns do not cover them.
var videoURLPatterns = []*regexp.Regexp{
	regexp.MustCompile(`https?://(?:www\.)?instagram\.com/(?:p|reel|reels|tv)/[A-Za-z0-9_-]+`),
	regexp.MustCompile(`https?://(?:www\.)?tiktok\.com/@[\w.-]+/video/\d+`),
	regexp.MustCompile(`https?://(?:vm|vt)\.tiktok\.com/[A-Za-z0-9]+`),
	regexp.MustCompile(`https?://(?:www\.)?youtube\.com/watch\?v=[A-Za-z0-9_-]+`),
	regexp.MustCompile(`https?://(?:www\.)?youtube\.com/shorts/[A-Za-z0-9_-]+`),
	regexp.MustCompile(`https?://youtu\.be/[A-Za-z0-9_-]+`),
	regexp.MustCompile(`https?://(?:www\.)?(?:twitter|x)\.com/\w+/status/\d+`),
}

var urlPattern = regexp.MustCompile(`https?://\S+`)

// ExtractVideoURLs scans free-text content and returns the recognized video
// links in order of appearance. An empty result is not an error; it means
// the post carries no video to process.
func ExtractVideoURLs(content string) []VideoURL {
	var found []VideoURL

	for _, candidate := range urlPattern.FindAllString(content, -1) {
		for _, pattern := range videoURLPatterns {
			if match := pattern.FindString(candidate); match != "" {
				found = append(found, VideoURL{
					URL:      match,
					Platform: FromURL(match),
				})
				break
			}
		}
	}

	return found
}
