package password

import (
	"bytes"
	"testing"
)

func TestDigestEncodingIsCanonical(t *testing.T) {
	d := Digest{
		Algorithm: AlgorithmArgon2id,
		Memory:    65536,
		Time:      3,
		Threads:   2,
		Salt:      []byte("0123456789abcdef"),
		Key:       bytes.Repeat([]byte{0xab}, 32),
	}
	encoded := d.String()
	if encoded[:30] != "$argon2id$v=19$m=65536,t=3,p=2" {
		t.Fatalf("unexpected prefix %q", encoded[:30])
	}

	back, err := ParseDigest(encoded)
	if err != nil {
		t.Fatalf("ParseDigest: %v", err)
	}
	if back.String() != encoded {
		t.Fatalf("re-encoding changed the digest:\n%s\n%s", encoded, back.String())
	}
	if back.Memory != 65536 || back.Time != 3 || back.Threads != 2 || !bytes.Equal(back.Salt, d.Salt) {
		t.Fatalf("parameters lost: %+v", back)
	}
}

func TestParseDigestToleratesPadding(t *testing.T) {
	padded := "$argon2id$v=19$m=8192,t=1,p=1$MDEyMzQ1Njc4OWFiY2RlZg==$q6urq6urq6urq6urq6urqw=="
	d, err := ParseDigest(padded)
	if err != nil {
		t.Fatalf("ParseDigest: %v", err)
	}
	if string(d.Salt) != "0123456789abcdef" || len(d.Key) != 16 {
		t.Fatalf("unexpected decode: %+v", d)
	}
}

func TestParseDigestBcryptCost(t *testing.T) {
	h := mustHasher(t, Config{Algorithm: AlgorithmBcrypt, BcryptCost: 5})
	encoded, err := h.Hash("pw-pw-pw")
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	d, err := ParseDigest(encoded)
	if err != nil || d.Algorithm != AlgorithmBcrypt || d.Cost != 5 || d.String() != encoded {
		t.Fatalf("unexpected bcrypt digest: %+v err=%v", d, err)
	}
}
