// Package signature проверяет HMAC-подписи входящих вебхуков.
package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DefaultTolerance допустимое расхождение времени подписи и сервера.
const DefaultTolerance = 5 * time.Minute

var (
	// ErrMissingHeaders отсутствуют заголовки подписи.
	ErrMissingHeaders = errors.New("missing signature headers")
	// ErrTimestamp метка времени вне допустимого окна или некорректна.
	ErrTimestamp = errors.New("signature timestamp out of tolerance")
	// ErrMismatch ни одна из подписей не совпала.
	ErrMismatch = errors.New("signature mismatch")
)

// SvixVerifier проверяет вебхуки провайдера аутентификации в формате Svix:
// подпись HMAC-SHA256 от "id.timestamp.body", заголовок "v1,<base64> v1,<base64>".
type SvixVerifier struct {
	key       []byte
	tolerance time.Duration
	now       func() time.Time
}

// NewSvixVerifier создаёт верификатор из секрета вида whsec_<base64>.
func NewSvixVerifier(secret string) (*SvixVerifier, error) {
	const op = "signature.NewSvixVerifier"
	key, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(secret, "whsec_"))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if len(key) == 0 {
		return nil, fmt.Errorf("%s: empty secret", op)
	}
	return &SvixVerifier{key: key, tolerance: DefaultTolerance, now: time.Now}, nil
}

// Verify проверяет подпись тела запроса.
func (v *SvixVerifier) Verify(msgID, timestamp, signatures string, body []byte) error {
	const op = "signature.SvixVerifier.Verify"
	if msgID == "" || timestamp == "" || signatures == "" {
		return fmt.Errorf("%s: %w", op, ErrMissingHeaders)
	}
	if err := checkTimestamp(timestamp, v.now(), v.tolerance); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	expected := v.Sign(msgID, timestamp, body)
	for _, sig := range strings.Fields(signatures) {
		version, value, ok := strings.Cut(sig, ",")
		if !ok || version != "v1" {
			continue
		}
		if hmac.Equal([]byte(value), []byte(expected)) {
			return nil
		}
	}
	return fmt.Errorf("%s: %w", op, ErrMismatch)
}

// Sign возвращает base64-подпись без префикса версии.
func (v *SvixVerifier) Sign(msgID, timestamp string, body []byte) string {
	mac := hmac.New(sha256.New, v.key)
	mac.Write([]byte(msgID + "." + timestamp + "."))
	mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// TimestampedVerifier проверяет заголовок платёжного провайдера "t=<unix>,v1=<hex>",
// где подписана строка "t.body".
type TimestampedVerifier struct {
	secret    []byte
	tolerance time.Duration
	now       func() time.Time
}

// NewTimestampedVerifier создаёт верификатор с общим секретом.
func NewTimestampedVerifier(secret string) *TimestampedVerifier {
	return &TimestampedVerifier{secret: []byte(secret), tolerance: DefaultTolerance, now: time.Now}
}

// Verify проверяет заголовок подписи.
func (v *TimestampedVerifier) Verify(header string, body []byte) error {
	const op = "signature.TimestampedVerifier.Verify"
	if header == "" {
		return fmt.Errorf("%s: %w", op, ErrMissingHeaders)
	}

	var timestamp string
	var candidates []string
	for _, part := range strings.Split(header, ",") {
		k, val, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch k {
		case "t":
			timestamp = val
		case "v1":
			candidates = append(candidates, val)
		}
	}
	if timestamp == "" || len(candidates) == 0 {
		return fmt.Errorf("%s: %w", op, ErrMissingHeaders)
	}
	if err := checkTimestamp(timestamp, v.now(), v.tolerance); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	expected := v.Sign(timestamp, body)
	for _, c := range candidates {
		if hmac.Equal([]byte(c), []byte(expected)) {
			return nil
		}
	}
	return fmt.Errorf("%s: %w", op, ErrMismatch)
}

// Sign возвращает hex-подпись для метки времени и тела.
func (v *TimestampedVerifier) Sign(timestamp string, body []byte) string {
	mac := hmac.New(sha256.New, v.secret)
	mac.Write([]byte(timestamp + "."))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// Header формирует заголовок подписи для тела на момент ts.
func (v *TimestampedVerifier) Header(ts time.Time, body []byte) string {
	t := strconv.FormatInt(ts.Unix(), 10)
	return "t=" + t + ",v1=" + v.Sign(t, body)
}

func checkTimestamp(raw string, now time.Time, tolerance time.Duration) error {
	sec, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return ErrTimestamp
	}
	diff := now.Sub(time.Unix(sec, 0))
	if diff > tolerance || diff < -tolerance {
		return ErrTimestamp
	}
	return nil
}
