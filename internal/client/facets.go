package client

import (
	"regexp"
	"strings"

	"github.com/bluesky-social/indigo/api/bsky"
)

// Hashtags start the text or follow whitespace and must contain a non-digit.
var hashtagPattern = regexp.MustCompile(`(?:^|\s)(#[\p{L}\p{N}_]+)`)

// HashtagFacets creates tag facets so hashtags in the text are clickable.
// Offsets are byte offsets into the UTF-8 text, as the facet spec requires.
func HashtagFacets(text string) []*bsky.RichtextFacet {
	var facets []*bsky.RichtextFacet

	for _, match := range hashtagPattern.FindAllStringSubmatchIndex(text, -1) {
		start, end := match[2], match[3]
		tag := strings.TrimPrefix(text[start:end], "#")
		if strings.Trim(tag, "0123456789") == "" {
			continue
		}

		facets = append(facets, &bsky.RichtextFacet{
			Index: &bsky.RichtextFacet_ByteSlice{
				ByteStart: int64(start),
				ByteEnd:   int64(end),
			},
			Features: []*bsky.RichtextFacet_Features_Elem{
				{
					RichtextFacet_Tag: &bsky.RichtextFacet_Tag{
						Tag: tag,
					},
				},
			},
		})
	}

	return facets
}
