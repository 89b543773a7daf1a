package auth

import (
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

// TOTP parameters are fixed: 30 second steps, one step of skew either side,
// six digits, SHA-1, 160-bit secrets.
const (
	totpPeriod     = 30
	totpSkew       = 1
	totpSecretSize = 20
)

var totpOpts = totp.ValidateOpts{
	Period:    totpPeriod,
	Skew:      totpSkew,
	Digits:    otp.DigitsSix,
	Algorithm: otp.AlgorithmSHA1,
}

// VerifyTOTP checks a submitted code against a base32 secret at the given time.
func VerifyTOTP(secret, code string, at time.Time) bool {
	if secret == "" || code == "" {
		return false
	}
	ok, err := totp.ValidateCustom(code, secret, at.UTC(), totpOpts)
	return err == nil && ok
}

// MFAKey is a newly generated TOTP secret and its provisioning URI.
type MFAKey struct {
	Secret string
	URI    string
}

// GenerateMFAKey creates a random secret labelled for the given account.
func GenerateMFAKey(issuer, account string) (*MFAKey, error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      issuer,
		AccountName: account,
		Period:      totpPeriod,
		SecretSize:  totpSecretSize,
		Digits:      otp.DigitsSix,
		Algorithm:   otp.AlgorithmSHA1,
	})
	if err != nil {
		return nil, err
	}
	return &MFAKey{Secret: key.Secret(), URI: key.URL()}, nil
}
