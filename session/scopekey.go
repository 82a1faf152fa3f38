package session

import (
	"crypto/sha256"
	"encoding/hex"
)

// scopeKeySeparator is a byte that cannot appear in any component, used to
// prevent "a"+"bc" from hashing identically to "ab"+"c".
const scopeKeySeparator = byte(0)

// ScopeKey computes the scope key H(repo_root ‖ role_id ‖ model_id ‖ client
// ‖ conversation_id) that identifies one continuity slot in the session
// store. Every component is hashed in a fixed order with a NUL separator
// so no ambiguous concatenation can collide two distinct scopes.
func ScopeKey(repoRoot, roleID, modelID, client, conversationID string) string {
	h := sha256.New()
	for _, part := range []string{repoRoot, roleID, modelID, client, conversationID} {
		h.Write([]byte(part))
		h.Write([]byte{scopeKeySeparator})
	}
	return hex.EncodeToString(h.Sum(nil))
}
