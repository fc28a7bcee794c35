// Package hashutil computes the stable content hashes that drive search
// coalescing and change detection.
package hashutil

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
)

// QueryHash fingerprints a search message. encoding/json serialises map
// keys in sorted order, so two equivalent messages hash identically.
func QueryHash(v interface{}) string {
	data, err := json.Marshal(v)
	if err != nil {
		// Search messages are built from decoded JSON and always remarshal.
		panic("hashutil: unmarshalable search message: " + err.Error())
	}
	return sumHex(data)
}

// JSONHash hashes the canonical serialisation of an arbitrary JSON value.
// Used for job item blobs.
func JSONHash(v interface{}) string {
	data, err := json.Marshal(v)
	if err != nil {
		panic("hashutil: unmarshalable value: " + err.Error())
	}
	return sumHex(data)
}

// ProfileHash hashes the fixed field concatenation of a seeker profile:
// id, user_id, type, serialized metadata, created_at, updated_at.
func ProfileHash(id, userID, typ string, metadata json.RawMessage, createdAt, updatedAt string) string {
	h := sha256.New()
	h.Write([]byte(id))
	h.Write([]byte(userID))
	h.Write([]byte(typ))
	h.Write(canonical(metadata))
	h.Write([]byte(createdAt))
	h.Write([]byte(updatedAt))
	return hex.EncodeToString(h.Sum(nil))
}

// TextHash hashes raw text; the embedding cache is keyed by it.
func TextHash(text string) string {
	return sumHex([]byte(text))
}

func sumHex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// canonical re-serialises raw JSON so formatting differences do not change
// the hash.
func canonical(raw json.RawMessage) []byte {
	if len(raw) == 0 {
		return nil
	}
	var v interface{}
	if err := json.Unmarshal(raw, &v); err != nil {
		return raw
	}
	data, err := json.Marshal(v)
	if err != nil {
		return raw
	}
	return data
}
