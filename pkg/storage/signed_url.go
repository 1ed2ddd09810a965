package storage

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

var (
	ErrTokenFormat    = errors.New("invalid token format")
	ErrTokenSignature = errors.New("invalid token signature")
	ErrTokenExpired   = errors.New("token expired")
)

// SignedFile is the payload carried by a download token.
type SignedFile struct {
	ExportID  string
	Path      string
	ExpiresAt time.Time
}

// SignedURLSigner issues and verifies HMAC download tokens for stored files.
type SignedURLSigner struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewSignedURLSigner constructs a signer with the provided secret and TTL.
func NewSignedURLSigner(secret string, ttl time.Duration) *SignedURLSigner {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &SignedURLSigner{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Sign returns a token referencing the export and the stored relative path.
func (s *SignedURLSigner) Sign(exportID, relPath string) (string, time.Time, error) {
	if exportID == "" || relPath == "" {
		return "", time.Time{}, fmt.Errorf("export id and path required")
	}
	if len(s.secret) == 0 {
		return "", time.Time{}, fmt.Errorf("signing secret missing")
	}
	expiresAt := s.now().Add(s.ttl).Truncate(time.Second)
	ts := strconv.FormatInt(expiresAt.Unix(), 10)
	encodedPath := base64.RawURLEncoding.EncodeToString([]byte(relPath))
	return strings.Join([]string{exportID, ts, encodedPath, s.mac(exportID, ts, encodedPath)}, "."), expiresAt, nil
}

// Verify checks the signature and, unless allowExpired, the expiry.
func (s *SignedURLSigner) Verify(token string, allowExpired bool) (SignedFile, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 4 {
		return SignedFile{}, ErrTokenFormat
	}
	exportID, ts, encodedPath, signature := parts[0], parts[1], parts[2], parts[3]

	if !hmac.Equal([]byte(s.mac(exportID, ts, encodedPath)), []byte(signature)) {
		return SignedFile{}, ErrTokenSignature
	}
	rawPath, err := base64.RawURLEncoding.DecodeString(encodedPath)
	if err != nil {
		return SignedFile{}, fmt.Errorf("%w: %v", ErrTokenFormat, err)
	}
	unix, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return SignedFile{}, fmt.Errorf("%w: bad timestamp", ErrTokenFormat)
	}
	file := SignedFile{ExportID: exportID, Path: string(rawPath), ExpiresAt: time.Unix(unix, 0)}
	if !allowExpired && s.now().After(file.ExpiresAt) {
		return SignedFile{}, ErrTokenExpired
	}
	return file, nil
}

func (s *SignedURLSigner) mac(exportID, ts, encodedPath string) string {
	mac := hmac.New(sha256.New, s.secret)
	_, _ = mac.Write([]byte(exportID + "|" + ts + "|" + encodedPath))
	return hex.EncodeToString(mac.Sum(nil))
}
