package crypto

import (
	"crypto/sha256"
	"crypto/subtle"
)

// CompareToken сравнивает переданный токен с ожидаемым за постоянное время.
// Оба значения предварительно хешируются SHA256, поэтому длина секрета
// не влияет на время сравнения.
// Пустой ожидаемый токен никогда не совпадает.
func CompareToken(got, want string) bool {
	if want == "" {
		return false
	}
	gotHash := sha256.Sum256([]byte(got))
	wantHash := sha256.Sum256([]byte(want))
	return subtle.ConstantTimeCompare(gotHash[:], wantHash[:]) == 1
}
