package network

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
)

// CanonicalPayload is the byte string a RemoteCommand signature covers: the
// command serialized with its signature field cleared.
func CanonicalPayload(cmd RemoteCommand) ([]byte, error) {
	cmd.Signature = ""
	b, err := JSON.Marshal(cmd)
	if err != nil {
		return nil, fmt.Errorf("canonical payload: %w", err)
	}
	return b, nil
}

func mac(secret, payload []byte) []byte {
	m := hmac.New(sha256.New, secret)
	m.Write(payload)
	return m.Sum(nil)
}

// Sign returns cmd with its Signature set to base64(HMAC-SHA256(secret, canonical)).
func Sign(cmd RemoteCommand, secret []byte) (RemoteCommand, error) {
	payload, err := CanonicalPayload(cmd)
	if err != nil {
		return cmd, err
	}
	cmd.Signature = base64.StdEncoding.EncodeToString(mac(secret, payload))
	return cmd, nil
}

// VerifySignature reports whether cmd carries a valid signature for secret.
// A signature that is not valid base64 is simply a mismatch.
func VerifySignature(cmd RemoteCommand, secret []byte) bool {
	got, err := base64.StdEncoding.DecodeString(cmd.Signature)
	if err != nil || len(got) == 0 {
		return false
	}
	payload, err := CanonicalPayload(cmd)
	if err != nil {
		return false
	}
	return hmac.Equal(got, mac(secret, payload))
}
