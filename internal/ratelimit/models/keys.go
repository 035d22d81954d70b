package models

import "strings"

// SanitizeKeySegment escapes delimiter characters in rate limit key segments
// to prevent key collision attacks where user-controlled identifiers containing
// ':' could manipulate adjacent rate limit keys.
//
// Example: a target "bob:alice" becomes "bob_alice", so it cannot be read as
// two separate segments.
func SanitizeKeySegment(s string) string {
	return strings.ReplaceAll(s, ":", "_")
}

// NewActionKey builds the limiter key for one user acting on one target,
// e.g. "friend_add_manual:u-123:alice".
func NewActionKey(action, userID, target string) string {
	return SanitizeKeySegment(action) + ":" + SanitizeKeySegment(userID) + ":" + SanitizeKeySegment(target)
}
