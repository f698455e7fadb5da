package install

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

// requiredSecretKeys are generated on first install when absent from the
// env file. Existing values are always kept.
var requiredSecretKeys = []string{
	"POSTGRES_PASSWORD",
	"REDIS_PASSWORD",
	"MINIO_ROOT_PASSWORD",
	"IDP_SECRET_KEY",
	"IDP_COOKIE_SECRET",
	"PORTAL_API_TOKEN",
}

const tokenAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// randomToken returns n characters of cryptographically random
// alphanumerics. Alphanumeric keeps the values safe to embed in env
// files and connection URLs without quoting.
func randomToken(n int) (string, error) {
	out := make([]byte, n)
	max := big.NewInt(int64(len(tokenAlphabet)))
	for i := range out {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("failed to read random bytes: %w", err)
		}
		out[i] = tokenAlphabet[idx.Int64()]
	}
	return string(out), nil
}
