package schedule

import (
	"fmt"
	"hash/fnv"
	"regexp"
	"strings"
	"unicode"
)

const (
	// MaxEventNameLength bounds the event part of trigger ids
	MaxEventNameLength = 40
	// MaxPermissionIDLength is the permission statement id limit
	MaxPermissionIDLength = 64
	// FallbackEventName is used when a title has no usable characters
	FallbackEventName = "event"
)

var (
	unsafeEventChars = regexp.MustCompile(`[^A-Za-z0-9-]+`)
	repeatedDashes   = regexp.MustCompile(`-{2,}`)
	unsafeIDChars    = regexp.MustCompile(`[^A-Za-z0-9_-]+`)
)

// EventName normalizes a human title into an identifier fragment.
// Non-ASCII characters are dropped before anything else, so
// "제11회 Meetup" and "11 Meetup" produce the same name.
func EventName(rawTitle string) string {
	ascii := strings.Map(func(r rune) rune {
		if r > unicode.MaxASCII {
			return -1
		}
		return r
	}, rawTitle)

	name := unsafeEventChars.ReplaceAllString(ascii, "-")
	name = repeatedDashes.ReplaceAllString(name, "-")
	name = strings.Trim(name, "-")

	if len(name) > MaxEventNameLength {
		name = strings.TrimRight(name[:MaxEventNameLength], "-")
	}
	if name == "" {
		return FallbackEventName
	}
	return name
}

// OffsetToken encodes a signed offset as m7 / p0 / p7
func OffsetToken(offset int) string {
	if offset < 0 {
		return fmt.Sprintf("m%d", -offset)
	}
	return fmt.Sprintf("p%d", offset)
}

// TriggerID is stable per (prefix, event, offset), e.g. workflow-lang-11th-Meetup-Dm7
func TriggerID(prefix, eventName string, offset int) string {
	return fmt.Sprintf("%s-%s-D%s", prefix, eventName, OffsetToken(offset))
}

// PermissionID restricts id to [A-Za-z0-9_-] and MaxPermissionIDLength.
// When truncation is needed the tail is replaced by a hash of the full
// input so long ids that share a prefix stay distinct.
func PermissionID(id string) string {
	clean := unsafeIDChars.ReplaceAllString(id, "_")
	if clean == "" {
		clean = "permission"
	}
	if len(clean) <= MaxPermissionIDLength {
		return clean
	}

	h := fnv.New32a()
	_, _ = h.Write([]byte(id))
	suffix := fmt.Sprintf("-%08x", h.Sum32())
	return clean[:MaxPermissionIDLength-len(suffix)] + suffix
}

// StatementID names the grant that lets triggerID invoke task
func StatementID(task TaskName, triggerID string) string {
	return PermissionID(string(task) + "-" + triggerID)
}
