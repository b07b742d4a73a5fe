package classifier

import (
	"encoding/hex"
	"strings"

	"rainrelay/internal/constants"

	"golang.org/x/crypto/blake2b"
)

// DeriveMessageID builds a fallback id from the leading text of a message that has
// no element id in the feed. Two different messages with the same prefix share an id,
// so the second one is treated as already seen.
func DeriveMessageID(text string) string {
	prefix := []rune(strings.TrimSpace(text))
	if len(prefix) > constants.DefaultFallbackIDPrefix {
		prefix = prefix[:constants.DefaultFallbackIDPrefix]
	}
	sum := blake2b.Sum256([]byte(string(prefix)))
	return "txt-" + hex.EncodeToString(sum[:8])
}
