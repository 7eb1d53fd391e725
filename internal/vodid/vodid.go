// Package vodid derives the identifiers the media backend expects from a VOD
// id and a segment index.
//
// All helpers are pure string functions. An empty VOD id yields an empty
// identifier so callers can treat "" as "not resolvable yet".
package vodid

import (
	"regexp"
	"strings"
)

const (
	segmentWidth = 4
	streamPrefix = "stream_"
	filePrefix   = "file://"
)

var twitchVideoPattern = regexp.MustCompile(`videos/(\d+)`)

// FromURL extracts the numeric id following "videos/" in a VOD URL.
func FromURL(vodURL string) string {
	match := twitchVideoPattern.FindStringSubmatch(vodURL)
	if len(match) < 2 {
		return ""
	}
	return match[1]
}

// Resolve prefers a stored VOD id and falls back to parsing the URL.
func Resolve(vodID, vodURL string) string {
	if id := strings.TrimSpace(vodID); id != "" {
		return id
	}
	return FromURL(strings.TrimSpace(vodURL))
}

// PadIndex left-pads a segment index with zeros to four characters. Longer
// values are returned unchanged.
func PadIndex(index string) string {
	index = strings.TrimSpace(index)
	if len(index) >= segmentWidth {
		return index
	}
	return strings.Repeat("0", segmentWidth-len(index)) + index
}

// SegmentID returns "<vod>_segment_<####>".
func SegmentID(vodID, index string) string {
	if vodID == "" {
		return ""
	}
	return vodID + "_segment_" + PadIndex(index)
}

// ClipID returns "segment_<####>_<vod>", the clip key used by uploads.
func ClipID(vodID, index string) string {
	if vodID == "" {
		return ""
	}
	return "segment_" + PadIndex(index) + "_" + vodID
}

// PolishedFilename is the output name the backend uses when polish does not
// report one.
func PolishedFilename(vodID, index string) string {
	if vodID == "" {
		return ""
	}
	return "polished_segment_" + PadIndex(index) + "_" + vodID + ".mp4"
}

// StreamID prefixes id with "stream_" unless it already carries the prefix.
func StreamID(id string) string {
	if id == "" || strings.HasPrefix(id, streamPrefix) {
		return id
	}
	return streamPrefix + id
}

// IndexFromSegmentID returns the text after the last underscore of a segment
// id. An id without underscores is returned whole.
func IndexFromSegmentID(segmentID string) string {
	return segmentID[strings.LastIndex(segmentID, "_")+1:]
}

// NormalizeFilePath strips a leading file:// scheme.
func NormalizeFilePath(path string) string {
	return strings.TrimPrefix(strings.TrimSpace(path), filePrefix)
}
