package playerlist

import (
	"fmt"
	"strings"
	"time"
)

// AvatarURLBuilder renders head-image URLs for a crafatar-compatible
// avatar service.
type AvatarURLBuilder struct {
	baseURL string
	size    int
}

// NewAvatarURLBuilder creates a builder for the given avatar base URL and
// pixel size.
func NewAvatarURLBuilder(baseURL string, size int) *AvatarURLBuilder {
	return &AvatarURLBuilder{
		baseURL: strings.TrimRight(baseURL, "/"),
		size:    size,
	}
}

// URL renders the avatar URL for a player UUID. The ts query parameter is
// the profile's fetch time, so viewers re-download the image at most once
// per cache refresh. Returns "" for an empty UUID.
func (b *AvatarURLBuilder) URL(uuid string, fetchedAt time.Time) string {
	if uuid == "" {
		return ""
	}
	return fmt.Sprintf("%s/%s?size=%d&overlay&ts=%d", b.baseURL, uuid, b.size, fetchedAt.UnixMilli())
}
