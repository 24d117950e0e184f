package store

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"

	"github.com/bashclaw/bashclaw/internal/statepath"
)

// FilePairingStore is the file-backed PairingStore: one JSON document per
// safeKey under pairing/<safekey>.json holding the current code, plus a
// zero-byte marker file under pairing/verified/<safekey> once a code has
// been confirmed (spec §6).
type FilePairingStore struct {
	root statepath.Root
}

var _ PairingStore = (*FilePairingStore)(nil)

// NewFilePairingStore creates a PairingStore rooted at root.
func NewFilePairingStore(root statepath.Root) *FilePairingStore {
	return &FilePairingStore{root: root}
}

type pairingRecord struct {
	Code string `json:"code"`
}

// IsVerified reports whether safeKey has a verified marker on disk.
func (s *FilePairingStore) IsVerified(safeKey string) (bool, error) {
	_, err := os.Stat(s.root.PairingVerified(safeKey))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("pairing store: stat verified marker: %w", err)
	}
	return true, nil
}

// MarkVerified writes the verified marker for safeKey.
func (s *FilePairingStore) MarkVerified(safeKey string) error {
	return statepath.WriteFileAtomic(s.root.PairingVerified(safeKey), []byte{}, 0o644)
}

// SetCode generates (if code is empty) or stores the given pairing code for
// safeKey, overwriting any prior unconfirmed code.
func (s *FilePairingStore) SetCode(safeKey, code string) error {
	if code == "" {
		var err error
		code, err = randomPairingCode()
		if err != nil {
			return fmt.Errorf("pairing store: generate code: %w", err)
		}
	}

	data, err := json.Marshal(pairingRecord{Code: code})
	if err != nil {
		return fmt.Errorf("pairing store: encode code: %w", err)
	}
	return statepath.WriteFileAtomic(s.root.PairingCode(safeKey), data, 0o600)
}

// CheckCode reports whether code matches the stored pairing code for
// safeKey, using a constant-time comparison since this gates DM access.
func (s *FilePairingStore) CheckCode(safeKey, code string) (bool, error) {
	data, err := os.ReadFile(s.root.PairingCode(safeKey))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("pairing store: read code: %w", err)
	}

	var rec pairingRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return false, fmt.Errorf("pairing store: parse code: %w", err)
	}

	return subtle.ConstantTimeCompare([]byte(rec.Code), []byte(code)) == 1, nil
}

func randomPairingCode() (string, error) {
	buf := make([]byte, 4)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
