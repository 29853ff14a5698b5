// Package pseudonym превращает персональные данные запроса (IP, User-Agent)
// в необратимые псевдонимы для журналов аудита.
package pseudonym

import (
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/blake2b"
)

// Hasher вычисляет ключевой BLAKE2b-256 хеш значения.
type Hasher struct {
	key []byte
}

// New создаёт Hasher. Ключ не длиннее 64 байт; пустой ключ допустим для тестов.
func New(key string) (*Hasher, error) {
	const op = "pseudonym.New"
	if len(key) > blake2b.Size {
		return nil, fmt.Errorf("%s: key longer than %d bytes", op, blake2b.Size)
	}
	return &Hasher{key: []byte(key)}, nil
}

// Hash возвращает hex-псевдоним значения. Пустое значение остаётся пустым.
func (h *Hasher) Hash(value string) string {
	if value == "" {
		return ""
	}
	// ошибка возможна только при слишком длинном ключе, что проверено в New
	mac, _ := blake2b.New256(h.key)
	mac.Write([]byte(value))
	return hex.EncodeToString(mac.Sum(nil))
}
