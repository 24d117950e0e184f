package store

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/bashclaw/bashclaw/internal/statepath"
)

// FileMemoryStore is the file-backed MemoryStore: one JSON document per key
// under memory/<safekey>.json (spec §3, §6).
type FileMemoryStore struct {
	root statepath.Root
}

var _ MemoryStore = (*FileMemoryStore)(nil)

// NewFileMemoryStore creates a MemoryStore rooted at root.
func NewFileMemoryStore(root statepath.Root) *FileMemoryStore {
	return &FileMemoryStore{root: root}
}

func memorySafeKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}

func (s *FileMemoryStore) path(key string) string {
	return s.root.MemoryKey(memorySafeKey(key))
}

// Get returns the entry stored under key.
func (s *FileMemoryStore) Get(key string) (MemoryEntry, bool, error) {
	data, err := os.ReadFile(s.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return MemoryEntry{}, false, nil
		}
		return MemoryEntry{}, false, fmt.Errorf("memory store: read %q: %w", key, err)
	}

	var entry MemoryEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return MemoryEntry{}, false, fmt.Errorf("memory store: parse %q: %w", key, err)
	}
	return entry, true, nil
}

// Set creates or overwrites the entry for key, preserving CreatedAt and
// AccessCount if the key already existed.
func (s *FileMemoryStore) Set(key, value string, tags []string, source string) error {
	now := time.Now().UnixMilli()

	entry := MemoryEntry{
		Key:       key,
		Value:     value,
		Tags:      tags,
		Source:    source,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if existing, found, err := s.Get(key); err == nil && found {
		entry.CreatedAt = existing.CreatedAt
		entry.AccessCount = existing.AccessCount
	}

	return s.writeEntry(entry)
}

// Delete removes the entry for key. Deleting an absent key is a no-op.
func (s *FileMemoryStore) Delete(key string) error {
	err := os.Remove(s.path(key))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("memory store: delete %q: %w", key, err)
	}
	return nil
}

// List returns every stored entry, ordered by key for deterministic output.
func (s *FileMemoryStore) List() ([]MemoryEntry, error) {
	entries, err := s.readAll()
	if err != nil {
		return nil, err
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Key < entries[j].Key })
	return entries, nil
}

func (s *FileMemoryStore) readAll() ([]MemoryEntry, error) {
	matches, err := filepath.Glob(filepath.Join(s.root.Memory(), "*.json"))
	if err != nil {
		return nil, fmt.Errorf("memory store: list: %w", err)
	}

	entries := make([]MemoryEntry, 0, len(matches))
	for _, path := range matches {
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		var entry MemoryEntry
		if err := json.Unmarshal(data, &entry); err != nil {
			continue
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// Search ranks entries by TF-IDF score across keys (2x weight), tags (1.5x
// weight), and value text, descending, and bumps AccessCount for every
// returned entry. Entries with zero score are excluded.
func (s *FileMemoryStore) Search(query string) ([]MemoryEntry, error) {
	entries, err := s.readAll()
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, nil
	}

	queryTerms := tokenize(query)
	if len(queryTerms) == 0 {
		return nil, nil
	}

	docFreq := make(map[string]int)
	docTerms := make([]map[string]float64, len(entries))
	for i, entry := range entries {
		terms := make(map[string]float64)
		for _, t := range tokenize(entry.Key) {
			terms[t] += 2.0
		}
		for _, tag := range entry.Tags {
			for _, t := range tokenize(tag) {
				terms[t] += 1.5
			}
		}
		for _, t := range tokenize(entry.Value) {
			terms[t] += 1.0
		}
		docTerms[i] = terms

		seen := make(map[string]bool)
		for t := range terms {
			if !seen[t] {
				docFreq[t]++
				seen[t] = true
			}
		}
	}

	type scored struct {
		entry MemoryEntry
		score float64
	}
	n := float64(len(entries))
	results := make([]scored, 0, len(entries))

	for i, entry := range entries {
		var score float64
		for _, qt := range queryTerms {
			tf := docTerms[i][qt]
			if tf == 0 {
				continue
			}
			df := float64(docFreq[qt])
			idf := 1.0
			if df > 0 {
				idf = 1.0 + math.Log(n/df)
			}
			score += tf * idf
		}
		if score > 0 {
			results = append(results, scored{entry: entry, score: score})
		}
	}

	sort.Slice(results, func(i, j int) bool { return results[i].score > results[j].score })

	out := make([]MemoryEntry, 0, len(results))
	for _, r := range results {
		r.entry.AccessCount++
		_ = s.writeEntry(r.entry) // best-effort access-count bump
		out = append(out, r.entry)
	}
	return out, nil
}

func (s *FileMemoryStore) writeEntry(entry MemoryEntry) error {
	data, err := json.MarshalIndent(entry, "", "  ")
	if err != nil {
		return fmt.Errorf("memory store: encode %q: %w", entry.Key, err)
	}
	return statepath.WriteFileAtomic(s.path(entry.Key), data, 0o644)
}

func tokenize(s string) []string {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !('a' <= r && r <= 'z' || '0' <= r && r <= '9')
	})
	return fields
}
