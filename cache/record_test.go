package cache

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecord_RoundTrip(t *testing.T) {
	e := NewEntry(Key{Category: CategoryClimate, ID: "station:07149"}, []byte{0, 1, 2, 255}, FixedTTL(6*time.Hour), epoch)
	data, err := encodeRecord(e)
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Equal(t, "ttl:6h0m0s", raw["policy"])
	assert.Equal(t, "climate", raw["category"])

	back, err := decodeRecord(data)
	require.NoError(t, err)
	assert.Equal(t, e.Key, back.Key)
	assert.Equal(t, e.Payload, back.Payload)
	assert.True(t, e.ExpiresAt.Equal(back.ExpiresAt))
}

func TestRecord_StaticOmitsExpiry(t *testing.T) {
	data, err := encodeRecord(NewEntry(Key{Category: CategoryRegulatory, ID: "r"}, []byte("x"), Static(), epoch))
	require.NoError(t, err)
	assert.NotContains(t, string(data), "expires_at")

	back, err := decodeRecord(data)
	require.NoError(t, err)
	assert.True(t, back.ExpiresAt.IsZero())
}

func TestDecodeRecord_Rejects(t *testing.T) {
	valid := func() record {
		exp := epoch.Add(time.Hour)
		return record{
			Category:   "geo",
			Identifier: "p",
			Payload:    []byte("v"),
			CreatedAt:  epoch,
			ExpiresAt:  &exp,
			Policy:     FixedTTL(time.Hour),
			Checksum:   checksum([]byte("v")),
		}
	}
	tests := map[string]func(*record){
		"bad category":      func(r *record) { r.Category = "GEO" },
		"empty identifier":  func(r *record) { r.Identifier = "" },
		"checksum mismatch": func(r *record) { r.Payload = []byte("w") },
		"static with expiry": func(r *record) {
			r.Policy = Static()
		},
		"ttl without expiry": func(r *record) { r.ExpiresAt = nil },
	}
	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			r := valid()
			mutate(&r)
			data, err := json.Marshal(r)
			require.NoError(t, err)
			_, err = decodeRecord(data)
			assert.ErrorIs(t, err, ErrSerialize)
		})
	}

	_, err := decodeRecord([]byte(`{"policy":"never"}`))
	assert.ErrorIs(t, err, ErrSerialize)
}
