// Package captcha makes simple text challenges for the admin login form.
//
// The expected value is sent to the client in a hidden form field and comes back with the
// answer, so the check only stops naive form-posting bots. It is not a security control,
// the credentials and the login rate limit are.
package captcha

import "math/rand/v2"

// Length of a generated challenge
const Length = 6

// Alphabet of a generated challenge
const Alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// Generate returns a new challenge, each symbol picked uniformly from Alphabet
func Generate() string {
	b := make([]byte, Length)
	for i := range b {
		b[i] = Alphabet[rand.IntN(len(Alphabet))] //nolint:gosec // not a secret
	}
	return string(b)
}

// Validate checks the answer against the expected challenge, case-sensitive.
// Empty expected value never validates.
func Validate(submitted, expected string) bool {
	return expected != "" && submitted == expected
}
