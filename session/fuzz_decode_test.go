package session

import (
	"testing"
	"time"
)

// FuzzSessionDecode exercises the binary session decoder with arbitrary inputs.
// Goal: no panics, and every successfully decoded blob re-encodes identically.
func FuzzSessionDecode(f *testing.F) {
	created := time.Unix(1700000000, 0).UTC()
	revoked := created.Add(time.Minute)
	seeds := []*Session{
		{ID: 1, UserID: 42, TokenHash: [32]byte{1, 2, 3}, CreatedAt: created, ExpiresAt: created.Add(24 * time.Hour)},
		{ID: 2, UserID: 42, TokenHash: [32]byte{9}, CreatedAt: created, ExpiresAt: created.Add(time.Hour), RevokedAt: &revoked},
	}

	var encoded []byte
	for _, s := range seeds {
		data, err := Encode(s)
		if err == nil {
			f.Add(data)
			encoded = data
		}
	}

	// Empty and short inputs.
	f.Add([]byte{})
	f.Add([]byte{0})
	f.Add([]byte{1})
	f.Add([]byte{255, 255, 255})

	// Truncated at various offsets.
	if len(encoded) > 10 {
		f.Add(encoded[:10])
	}
	if len(encoded) > 50 {
		f.Add(encoded[:50])
	}

	f.Fuzz(func(t *testing.T, data []byte) {
		s, err := Decode(data)
		if err != nil {
			return
		}

		again, err := Encode(s)
		if err != nil {
			t.Fatalf("re-encode failed: %v", err)
		}
		if string(again) != string(data) {
			t.Fatalf("re-encode mismatch")
		}
	})
}
