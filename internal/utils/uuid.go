package utils

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// GenerateViewID returns "uuid-signature" where the signature binds the id
// to scope, the table token the view was opened for.
func GenerateViewID(secret []byte, scope string) (string, error) {
	uuidObj, err := uuid.NewRandom()
	if err != nil {
		return "", err
	}
	id := uuidObj.String()
	return fmt.Sprintf("%s-%s", id, viewSignature(secret, id, scope)), nil
}

// VerifyViewID checks that viewID was generated for scope with secret.
func VerifyViewID(viewID string, secret []byte, scope string) bool {
	parts := strings.Split(viewID, "-")
	if len(parts) != 6 { // uuid (5 parts) + signature (1 part)
		return false
	}

	id := strings.Join(parts[:5], "-")
	if _, err := uuid.Parse(id); err != nil {
		return false
	}
	expected := viewSignature(secret, id, scope)
	return hmac.Equal([]byte(parts[5]), []byte(expected))
}

func viewSignature(secret []byte, id, scope string) string {
	h := hmac.New(sha256.New, secret)
	h.Write([]byte(id))
	h.Write([]byte{0})
	h.Write([]byte(scope))
	return hex.EncodeToString(h.Sum(nil))[:16] // First 16 chars
}
