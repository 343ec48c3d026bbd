package queue

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

// MaxRecipientLen is the longest recipient a job carries. Valid addresses on either chain
// are far shorter; anything longer is kept only as a truncated record of a rejected event.
const MaxRecipientLen = 255

var errUnstorableText = errors.New("text is not valid UTF-8 or contains NUL")

// SanitizeRecipient returns a form of an untrusted recipient every Store accepts. Invalid
// UTF-8 or NUL bytes are replaced by the 0x-prefixed hex of the raw bytes, and the result
// is cut to MaxRecipientLen on a rune boundary.
func SanitizeRecipient(s string) string {
	if !storable(s) {
		s = "0x" + hex.EncodeToString([]byte(s))
	}
	if len(s) <= MaxRecipientLen {
		return s
	}
	n := MaxRecipientLen
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

func storable(s string) bool {
	return utf8.ValidString(s) && !strings.ContainsRune(s, 0)
}

// checkStorable applies the text rules postgres enforces on insert
func checkStorable(job *Job) error {
	if !storable(job.Recipient) || len(job.Recipient) > MaxRecipientLen {
		return fmt.Errorf("recipient of job %s: %w", job.ID, errUnstorableText)
	}
	return nil
}
