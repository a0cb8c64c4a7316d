package visitors

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// SessionKey groups events into heuristic sessions. Two visitors sharing a
// browser build and screen size collide into one session; no stronger
// client identifier is collected.
func SessionKey(userAgent, screenResolution string) string {
	data := fmt.Sprintf("%s|%s", userAgent, screenResolution)
	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}
