package authcore

import (
	"bytes"
	"image/png"
	"strings"
	"testing"
	"time"
)

const rfcSecret = "GEZDGNBVGY3TQOJQGEZDGNBVGY3TQOJQ" // "12345678901234567890"

func TestTOTPRFC6238Vectors(t *testing.T) {
	tp := NewTOTP(DefaultConfig().TOTP)

	vectors := []struct {
		unix int64
		code string
	}{
		{59, "287082"},
		{1111111109, "081804"},
		{1111111111, "050471"},
		{1234567890, "005924"},
		{2000000000, "279037"},
		{20000000000, "353130"},
	}
	for _, v := range vectors {
		at := time.Unix(v.unix, 0)
		got, err := tp.Code(rfcSecret, at)
		if err != nil {
			t.Fatalf("Code(%d): %v", v.unix, err)
		}
		if got != v.code {
			t.Fatalf("Code(%d) = %s, want %s", v.unix, got, v.code)
		}
		if !tp.Verify(rfcSecret, v.code, at) {
			t.Fatalf("Verify(%d) rejected the reference code", v.unix)
		}
	}
}

func TestTOTPVerifyWindow(t *testing.T) {
	tp := NewTOTP(DefaultConfig().TOTP)
	base := time.Unix(1_700_000_015, 0)

	code, err := tp.Code(rfcSecret, base)
	if err != nil {
		t.Fatalf("Code: %v", err)
	}

	cases := []struct {
		offset time.Duration
		want   bool
	}{
		{0, true},
		{29 * time.Second, true},
		{-29 * time.Second, true},
		{90 * time.Second, false},
		{-90 * time.Second, false},
	}
	for _, tc := range cases {
		if got := tp.Verify(rfcSecret, code, base.Add(tc.offset)); got != tc.want {
			t.Errorf("Verify at %v = %v, want %v", tc.offset, got, tc.want)
		}
	}
}

func TestTOTPVerifyRejectsMalformedInput(t *testing.T) {
	tp := NewTOTP(DefaultConfig().TOTP)
	now := time.Unix(1234567890, 0)

	for _, code := range []string{"", "12345", "1234567", "abcdef", "00592a", "005 924"} {
		if tp.Verify(rfcSecret, code, now) {
			t.Fatalf("code %q must be rejected", code)
		}
	}
	if !tp.Verify(rfcSecret, " 005924 ", now) {
		t.Fatal("surrounding whitespace should be ignored")
	}
	if !tp.Verify(strings.ToLower(rfcSecret), "005924", now) {
		t.Fatal("lowercase secret should verify")
	}
	for _, secret := range []string{"", "not-base32!", "1111"} {
		if tp.Verify(secret, "005924", now) {
			t.Fatalf("secret %q must be rejected", secret)
		}
	}
}

func TestTOTPGenerateSecret(t *testing.T) {
	tp := NewTOTP(DefaultConfig().TOTP)

	a, err := tp.GenerateSecret("alice")
	if err != nil {
		t.Fatalf("GenerateSecret: %v", err)
	}
	b, _ := tp.GenerateSecret("alice")
	if len(a) != 32 || a == b {
		t.Fatalf("expected distinct 32-char secrets, got %q and %q", a, b)
	}
	if _, err := decodeTOTPSecret(a); err != nil {
		t.Fatalf("secret does not decode: %v", err)
	}
	if _, err := tp.GenerateSecret(""); err == nil {
		t.Fatal("empty account must be rejected")
	}
}

func TestTOTPProvisioningURIAndQRCode(t *testing.T) {
	tp := NewTOTP(DefaultConfig().TOTP)

	uri, err := tp.ProvisioningURI(rfcSecret, "alice", "")
	if err != nil {
		t.Fatalf("ProvisioningURI: %v", err)
	}
	again, _ := tp.ProvisioningURI(rfcSecret, "alice", "")
	if uri != again {
		t.Fatalf("uri must be deterministic: %q vs %q", uri, again)
	}
	if !strings.HasPrefix(uri, "otpauth://totp/") {
		t.Fatalf("unexpected scheme: %q", uri)
	}
	for _, part := range []string{"secret=" + rfcSecret, "alice", "issuer=Sistema"} {
		if !strings.Contains(uri, part) {
			t.Fatalf("uri %q missing %q", uri, part)
		}
	}

	other, _ := tp.ProvisioningURI(rfcSecret, "alice", "Other")
	if !strings.Contains(other, "issuer=Other") {
		t.Fatalf("explicit issuer ignored: %q", other)
	}

	qr, err := tp.QRCode(uri, 128)
	if err != nil {
		t.Fatalf("QRCode: %v", err)
	}
	img, err := png.Decode(bytes.NewReader(qr))
	if err != nil {
		t.Fatalf("QR is not a PNG: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 128 || b.Dy() != 128 {
		t.Fatalf("unexpected QR size %v", b)
	}

	if _, err := tp.QRCode("http://example.com", 0); err == nil {
		t.Fatal("non-otpauth uri must be rejected")
	}
	if _, err := tp.ProvisioningURI("!!", "alice", ""); err == nil {
		t.Fatal("malformed secret must be rejected")
	}
}
