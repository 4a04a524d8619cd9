package utils

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
	"time"
)

const qrAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// QRSuffixLen is the number of random characters appended to a QR id.
const QRSuffixLen = 8

// GenerateQRCodeID builds the public QR identifier for a DJ, for example
// "DJ-NOVA-2026-7K2P9QXA". The stage name is upper-cased with spaces
// replaced by dashes. Uniqueness is enforced by the djs.qr_code_id index;
// callers retry on conflict.
func GenerateQRCodeID(stageName string, now time.Time) (string, error) {
	base := strings.Join(strings.Fields(strings.ToUpper(stageName)), "-")
	if base == "" {
		base = "DJ"
	}
	suffix, err := randomString(QRSuffixLen, qrAlphabet)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s-%d-%s", base, now.UTC().Year(), suffix), nil
}

func randomString(n int, alphabet string) (string, error) {
	limit := big.NewInt(int64(len(alphabet)))
	var b strings.Builder
	b.Grow(n)
	for i := 0; i < n; i++ {
		idx, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", err
		}
		b.WriteByte(alphabet[idx.Int64()])
	}
	return b.String(), nil
}
