package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"sort"
	"strings"

	"github.com/avdeevdmitrykrsk/payment-service/internal/logger"
)

var ErrInvalidSignature = errors.New("invalid signature")

// Field is excluded from the signed payload; providers never sign the
// signature itself.
const Field = "signature"

// Signer computes and verifies payload signatures shared with payment
// providers. A signature is the hex SHA-256 of the payload values
// concatenated in byte-wise key order, followed by the shared secret.
type Signer struct {
	secret string
}

func NewSigner(secret string) *Signer {
	return &Signer{secret: secret}
}

func (s *Signer) Generate(fields map[string]string) string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		if k == Field {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		b.WriteString(fields[k])
	}
	b.WriteString(s.secret)

	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}

// Verify recomputes the expected signature and compares it to the supplied
// one in constant time.
func (s *Signer) Verify(fields map[string]string, supplied string) error {
	expected := s.Generate(fields)
	if !hmac.Equal([]byte(expected), []byte(supplied)) {
		logger.Warn("payment signature mismatch")
		return ErrInvalidSignature
	}
	return nil
}
