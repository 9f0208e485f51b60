package services

import (
	"crypto/md5" //nolint:gosec // change detection, not security
	"encoding/hex"
	"fmt"
	"io"
	"os"

	"github.com/Qingzhee/rag-engine/internal/core/domain"
)

// Fingerprint hashes the content read from r.
func Fingerprint(r io.Reader) (domain.Fingerprint, error) {
	h := md5.New() //nolint:gosec // change detection, not security
	if _, err := io.Copy(h, r); err != nil {
		return "", err
	}
	return domain.Fingerprint(hex.EncodeToString(h.Sum(nil))), nil
}

// FingerprintFile hashes the file at path.
func FingerprintFile(path string) (domain.Fingerprint, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("%w: %w", domain.ErrLocalIO, err)
	}
	defer f.Close()

	fp, err := Fingerprint(f)
	if err != nil {
		return "", fmt.Errorf("%w: read %s: %w", domain.ErrLocalIO, path, err)
	}
	return fp, nil
}

// Decide classifies a file against the manifest. It has no side effects.
func Decide(key string, current domain.Fingerprint, manifest domain.Manifest, force bool) domain.Decision {
	entry, ok := manifest[key]
	switch {
	case !ok:
		return domain.DecisionNew
	case force || entry.Hash != current.String():
		return domain.DecisionReprocess
	default:
		return domain.DecisionSkip
	}
}
