package rag

import (
	"crypto/md5"
	"encoding/hex"
)

// MessageID derives the content fingerprint of a message. It is the sole
// deduplication key: two messages with the same sender, content and
// timestamp are the same message. Not a security boundary, just identity.
func MessageID(senderID, content, timestamp string) string {
	sum := md5.Sum([]byte(senderID + ":" + content + ":" + timestamp))
	return hex.EncodeToString(sum[:])
}
