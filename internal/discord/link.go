package discord

import (
	"strconv"
	"strings"
)

// ParseChannelLink extracts guild and channel ids from a link such as
// https://discord.com/channels/<guild>/<channel>. It returns (0, 0) when the
// last two path segments are not both positive integers.
func ParseChannelLink(text string) (guild, channel int64) {
	parts := strings.Split(strings.TrimRight(strings.TrimSpace(text), "/"), "/")
	if len(parts) < 2 {
		return 0, 0
	}
	g, err := strconv.ParseInt(parts[len(parts)-2], 10, 64)
	if err != nil || g <= 0 {
		return 0, 0
	}
	c, err := strconv.ParseInt(parts[len(parts)-1], 10, 64)
	if err != nil || c <= 0 {
		return 0, 0
	}
	return g, c
}
