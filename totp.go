package authcore

import (
	"bytes"
	"encoding/base32"
	"errors"
	"fmt"
	"image/png"
	"strings"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

const (
	totpSecretBytes = 20
	totpDigits      = otp.DigitsSix
)

var totpSecretEncoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// TOTP generates and checks RFC 6238 codes: 6 digits, HMAC-SHA1.
//
// TOTP is stateless and safe for concurrent use.
type TOTP struct {
	config TOTPConfig
}

// NewTOTP returns a TOTP engine for cfg. Zero fields take the defaults of
// [DefaultConfig].
func NewTOTP(cfg TOTPConfig) *TOTP {
	def := DefaultConfig().TOTP
	if cfg.Issuer == "" {
		cfg.Issuer = def.Issuer
	}
	if cfg.Period == 0 {
		cfg.Period = def.Period
	}
	if cfg.QRSize <= 0 {
		cfg.QRSize = def.QRSize
	}
	return &TOTP{config: cfg}
}

// Issuer returns the label shown by authenticator apps.
func (t *TOTP) Issuer() string {
	return t.config.Issuer
}

// GenerateSecret returns a fresh 160-bit secret, base32 without padding.
func (t *TOTP) GenerateSecret(account string) (string, error) {
	if account == "" {
		return "", ErrInvalidInput
	}
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      t.config.Issuer,
		AccountName: account,
		Period:      t.config.Period,
		SecretSize:  totpSecretBytes,
		Digits:      totpDigits,
		Algorithm:   otp.AlgorithmSHA1,
	})
	if err != nil {
		return "", err
	}
	return key.Secret(), nil
}

// ProvisioningURI builds the otpauth:// URI for secret. The result depends
// only on its inputs. An empty issuer selects the configured one.
func (t *TOTP) ProvisioningURI(secret, account, issuer string) (string, error) {
	key, err := t.key(secret, account, issuer)
	if err != nil {
		return "", err
	}
	return key.URL(), nil
}

// QRCode renders uri as a size×size PNG. A non-positive size selects the
// configured one.
func (t *TOTP) QRCode(uri string, size int) ([]byte, error) {
	if size <= 0 {
		size = t.config.QRSize
	}
	key, err := otp.NewKeyFromURL(uri)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if key.Type() != "totp" {
		return nil, fmt.Errorf("%w: not a totp provisioning uri", ErrInvalidInput)
	}
	img, err := key.Image(size, size)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Verify reports whether code is valid for secret at now, accepting the
// configured number of steps on either side. Malformed codes or secrets
// yield false.
func (t *TOTP) Verify(secret, code string, now time.Time) bool {
	code = strings.TrimSpace(code)
	if len(code) != totpDigits.Length() || !isNumericString(code) {
		return false
	}
	if _, err := decodeTOTPSecret(secret); err != nil {
		return false
	}
	ok, err := totp.ValidateCustom(code, normalizeTOTPSecret(secret), now.UTC(), totp.ValidateOpts{
		Period:    t.config.Period,
		Skew:      t.config.Skew,
		Digits:    totpDigits,
		Algorithm: otp.AlgorithmSHA1,
	})
	return err == nil && ok
}

// Code returns the code for secret at now. It backs the CLI and tests.
func (t *TOTP) Code(secret string, now time.Time) (string, error) {
	return totp.GenerateCodeCustom(normalizeTOTPSecret(secret), now.UTC(), totp.ValidateOpts{
		Period:    t.config.Period,
		Digits:    totpDigits,
		Algorithm: otp.AlgorithmSHA1,
	})
}

func (t *TOTP) key(secret, account, issuer string) (*otp.Key, error) {
	if account == "" {
		return nil, ErrInvalidInput
	}
	if issuer == "" {
		issuer = t.config.Issuer
	}
	raw, err := decodeTOTPSecret(secret)
	if err != nil {
		return nil, err
	}
	return totp.Generate(totp.GenerateOpts{
		Issuer:      issuer,
		AccountName: account,
		Period:      t.config.Period,
		Secret:      raw,
		Digits:      totpDigits,
		Algorithm:   otp.AlgorithmSHA1,
	})
}

func normalizeTOTPSecret(secret string) string {
	return strings.ToUpper(strings.TrimRight(strings.TrimSpace(secret), "="))
}

func decodeTOTPSecret(secret string) ([]byte, error) {
	s := normalizeTOTPSecret(secret)
	if s == "" {
		return nil, errors.New("empty totp secret")
	}
	raw, err := totpSecretEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: malformed totp secret", ErrInvalidInput)
	}
	return raw, nil
}

func isNumericString(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return s != ""
}
