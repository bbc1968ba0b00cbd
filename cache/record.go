package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"
)

// record persisted form of an entry (file and redis tiers). It carries enough
// to decide freshness without the memory tier.
type record struct {
	Category       string     `json:"category"`
	Identifier     string     `json:"identifier"`
	Payload        []byte     `json:"payload"`
	CreatedAt      time.Time  `json:"created_at"`
	LastAccessedAt time.Time  `json:"last_accessed_at"`
	ExpiresAt      *time.Time `json:"expires_at,omitempty"`
	Policy         Policy     `json:"policy"`
	SizeBytes      int        `json:"size_bytes"`
	Checksum       string     `json:"checksum"`
}

func checksum(payload []byte) string {
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}

func encodeRecord(e *Entry) ([]byte, error) {
	r := record{
		Category:       string(e.Key.Category),
		Identifier:     e.Key.ID,
		Payload:        e.Payload,
		CreatedAt:      e.CreatedAt,
		LastAccessedAt: e.LastAccessedAt(),
		Policy:         e.Policy,
		SizeBytes:      e.SizeBytes,
		Checksum:       checksum(e.Payload),
	}
	if !e.ExpiresAt.IsZero() {
		exp := e.ExpiresAt
		r.ExpiresAt = &exp
	}
	data, err := json.Marshal(r)
	if err != nil {
		return nil, ErrSerialize.Wrapf(err, "encode record %s", e.Key)
	}
	return data, nil
}

// decodeRecord ErrSerialize for unreadable, tampered or inconsistent records
func decodeRecord(data []byte) (*Entry, error) {
	var r record
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, ErrSerialize.Wrapf(err, "decode record")
	}
	key := Key{Category: Category(r.Category), ID: r.Identifier}
	if err := key.Validate(); err != nil {
		return nil, ErrSerialize.Wrapf(err, "record has an invalid key")
	}
	if err := r.Policy.Validate(); err != nil {
		return nil, ErrSerialize.Wrapf(err, "record %s has an invalid policy", key)
	}
	if r.Checksum != checksum(r.Payload) {
		return nil, ErrSerialize.WithMsgf("record %s checksum mismatch", key)
	}

	var expiresAt time.Time
	if r.ExpiresAt != nil {
		expiresAt = *r.ExpiresAt
	}
	if expiresAt.IsZero() != (r.Policy.Kind() == PolicyStatic) {
		return nil, ErrSerialize.WithMsgf("record %s expiry does not match policy %s", key, r.Policy)
	}
	return RestoreEntry(key, r.Payload, r.Policy, r.CreatedAt, expiresAt, r.LastAccessedAt), nil
}
