package sessions

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/bashclaw/bashclaw/internal/providers"
)

// Session is the in-memory view of one conversation: decoded message
// history plus the metadata tracked alongside it. It mirrors the on-disk
// shape (log + sidecar, see recordType) but callers never see records
// directly — Manager's public methods stay message-shaped so the rest of
// the agent package (and the sessions_* tools) don't need to know the
// storage format underneath.
type Session struct {
	Key      string              `json:"key"`
	Messages []providers.Message `json:"messages"`
	Summary  string              `json:"summary,omitempty"`
	Created  time.Time           `json:"created"`
	Updated  time.Time           `json:"updated"`

	Model                      string `json:"model,omitempty"`
	Provider                   string `json:"provider,omitempty"`
	Channel                    string `json:"channel,omitempty"`
	InputTokens                int64  `json:"inputTokens,omitempty"`
	OutputTokens               int64  `json:"outputTokens,omitempty"`
	CompactionCount            int    `json:"compactionCount,omitempty"`
	MemoryFlushCompactionCount int    `json:"memoryFlushCompactionCount,omitempty"`
	MemoryFlushAt              int64  `json:"memoryFlushAt,omitempty"`
	Label                      string `json:"label,omitempty"`
	SpawnedBy                  string `json:"spawnedBy,omitempty"`
	SpawnDepth                 int    `json:"spawnDepth,omitempty"`

	ContextWindow    int `json:"contextWindow,omitempty"`
	LastPromptTokens int `json:"lastPromptTokens,omitempty"`
	LastMessageCount int `json:"lastMessageCount,omitempty"`
}

// SessionInfo is a lightweight session descriptor for listing.
type SessionInfo struct {
	Key          string    `json:"key"`
	MessageCount int       `json:"messageCount"`
	Created      time.Time `json:"created"`
	Updated      time.Time `json:"updated"`
}

// recordType enumerates the record kinds in a session's JSONL log (spec
// §4.3: "one newline-delimited record log per session key").
type recordType string

const (
	recordSession recordType = "session"
	recordMessage recordType = "message"
)

// record is one line of a session's log. The header (recordSession) always
// comes first; every subsequent line is a recordMessage carrying one
// providers.Message round-tripped through MessageJSON so tool calls, tool
// results, images, and raw provider content all survive a reload intact.
type record struct {
	Ts          int64      `json:"ts"`
	Type        recordType `json:"type"`
	Role        string     `json:"role,omitempty"`
	MessageJSON string     `json:"message,omitempty"`

	// header-only fields
	ID      string `json:"id,omitempty"`
	Version int    `json:"version,omitempty"`
}

// meta is a session's sidecar metadata, kept consistent with the log
// (compactionCount increases monotonically with every compaction rewrite —
// spec §4.3 invariant).
type meta struct {
	SessionID                  string `json:"sessionId"`
	UpdatedAt                  int64  `json:"updatedAt"`
	Summary                    string `json:"summary,omitempty"`
	Model                      string `json:"model,omitempty"`
	Provider                   string `json:"provider,omitempty"`
	Channel                    string `json:"channel,omitempty"`
	InputTokens                int64  `json:"inputTokens,omitempty"`
	OutputTokens               int64  `json:"outputTokens,omitempty"`
	CompactionCount            int    `json:"compactionCount,omitempty"`
	MemoryFlushCompactionCount int    `json:"memoryFlushCompactionCount,omitempty"`
	MemoryFlushAt              int64  `json:"memoryFlushAt,omitempty"`
	Label                      string `json:"label,omitempty"`
	SpawnedBy                  string `json:"spawnedBy,omitempty"`
	SpawnDepth                 int    `json:"spawnDepth,omitempty"`
	ContextWindow              int    `json:"contextWindow,omitempty"`
	LastPromptTokens           int    `json:"lastPromptTokens,omitempty"`
	LastMessageCount           int    `json:"lastMessageCount,omitempty"`
	Created                    int64  `json:"created,omitempty"`
}

// Manager handles session lifecycle: an append-only JSONL record log per
// session key plus a sidecar metadata file (spec §4.3), fronted by an
// in-memory cache so a turn's repeated history reads don't re-scan disk.
type Manager struct {
	storage string

	mu    sync.RWMutex
	cache map[string]*Session
}

// NewManager returns a Manager that persists under storage (pass "" to run
// purely in-memory, e.g. in tests).
func NewManager(storage string) *Manager {
	if storage != "" {
		os.MkdirAll(storage, 0o755)
	}
	return &Manager{
		storage: storage,
		cache:   make(map[string]*Session),
	}
}

func (m *Manager) logPath(key string) string  { return filepath.Join(m.storage, sanitizeFilename(key)+".jsonl") }
func (m *Manager) metaPath(key string) string { return filepath.Join(m.storage, sanitizeFilename(key)+".meta.json") }

// GetOrCreate returns an existing session (loading it from disk on first
// touch) or creates a new one.
func (m *Manager) GetOrCreate(key string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.getOrLoadLocked(key)
}

func (m *Manager) getOrLoadLocked(key string) *Session {
	if s, ok := m.cache[key]; ok {
		return s
	}

	s := m.loadFromDisk(key)
	if s == nil {
		now := time.Now()
		s = &Session{Key: key, Messages: []providers.Message{}, Created: now, Updated: now}
	}
	m.cache[key] = s
	return s
}

// loadFromDisk reconstructs a Session from its JSONL log and sidecar, or
// returns nil if neither exists yet.
func (m *Manager) loadFromDisk(key string) *Session {
	if m.storage == "" {
		return nil
	}

	md, hasMeta := m.readMeta(key)
	msgs, hasLog := m.readLog(key)
	if !hasMeta && !hasLog {
		return nil
	}

	created := time.Now()
	if md.Created != 0 {
		created = time.UnixMilli(md.Created)
	}
	updated := created
	if md.UpdatedAt != 0 {
		updated = time.UnixMilli(md.UpdatedAt)
	}

	return &Session{
		Key:                        key,
		Messages:                   msgs,
		Summary:                    md.Summary,
		Created:                    created,
		Updated:                    updated,
		Model:                      md.Model,
		Provider:                   md.Provider,
		Channel:                    md.Channel,
		InputTokens:                md.InputTokens,
		OutputTokens:               md.OutputTokens,
		CompactionCount:            md.CompactionCount,
		MemoryFlushCompactionCount: md.MemoryFlushCompactionCount,
		MemoryFlushAt:              md.MemoryFlushAt,
		Label:                      md.Label,
		SpawnedBy:                  md.SpawnedBy,
		SpawnDepth:                 md.SpawnDepth,
		ContextWindow:              md.ContextWindow,
		LastPromptTokens:           md.LastPromptTokens,
		LastMessageCount:           md.LastMessageCount,
	}
}

func (m *Manager) readMeta(key string) (meta, bool) {
	data, err := os.ReadFile(m.metaPath(key))
	if err != nil {
		return meta{}, false
	}
	var md meta
	if err := json.Unmarshal(data, &md); err != nil {
		return meta{}, false
	}
	return md, true
}

func (m *Manager) readLog(key string) ([]providers.Message, bool) {
	f, err := os.Open(m.logPath(key))
	if err != nil {
		return nil, false
	}
	defer f.Close()

	var msgs []providers.Message
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var rec record
		if err := json.Unmarshal(line, &rec); err != nil {
			continue // skip a corrupt line rather than fail the whole read
		}
		if rec.Type != recordMessage {
			continue
		}
		var msg providers.Message
		if err := json.Unmarshal([]byte(rec.MessageJSON), &msg); err != nil {
			continue
		}
		msgs = append(msgs, msg)
	}
	return msgs, true
}

// appendRecord writes one line to key's log, creating the session header
// first if the file is new (spec §4.3: "append ... ensures the header
// exists, writes one record").
func (m *Manager) appendRecord(key string, rec record) error {
	if m.storage == "" {
		return nil
	}
	path := m.logPath(key)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		header, err := json.Marshal(record{Ts: time.Now().UnixMilli(), Type: recordSession, ID: key, Version: 1})
		if err != nil {
			return err
		}
		if err := appendLine(path, header); err != nil {
			return err
		}
	}
	line, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return appendLine(path, line)
}

func appendLine(path string, line []byte) error {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	if len(line) == 0 || line[len(line)-1] != '\n' {
		line = append(line, '\n')
	}
	_, err = f.Write(line)
	return err
}

// rewriteLog atomically replaces the full message log with keep (used by
// both TruncateHistory and Reset), recreating the header line.
func (m *Manager) rewriteLog(key string, keep []providers.Message) error {
	if m.storage == "" {
		return nil
	}
	var buf strings.Builder
	header, err := json.Marshal(record{Ts: time.Now().UnixMilli(), Type: recordSession, ID: key, Version: 1})
	if err != nil {
		return err
	}
	buf.Write(header)
	buf.WriteByte('\n')

	for _, msg := range keep {
		if err := writeMessageRecord(&buf, msg); err != nil {
			return err
		}
	}
	return writeFileAtomic(m.logPath(key), []byte(buf.String()))
}

func writeMessageRecord(buf *strings.Builder, msg providers.Message) error {
	msgJSON, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	line, err := json.Marshal(record{Ts: time.Now().UnixMilli(), Type: recordMessage, Role: msg.Role, MessageJSON: string(msgJSON)})
	if err != nil {
		return err
	}
	buf.Write(line)
	buf.WriteByte('\n')
	return nil
}

func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpPath, path)
}

// saveMeta writes s's sidecar metadata to disk.
func (m *Manager) saveMeta(s *Session) error {
	if m.storage == "" {
		return nil
	}
	md := meta{
		SessionID:                  s.Key,
		UpdatedAt:                  s.Updated.UnixMilli(),
		Created:                    s.Created.UnixMilli(),
		Summary:                    s.Summary,
		Model:                      s.Model,
		Provider:                   s.Provider,
		Channel:                    s.Channel,
		InputTokens:                s.InputTokens,
		OutputTokens:               s.OutputTokens,
		CompactionCount:            s.CompactionCount,
		MemoryFlushCompactionCount: s.MemoryFlushCompactionCount,
		MemoryFlushAt:              s.MemoryFlushAt,
		Label:                      s.Label,
		SpawnedBy:                  s.SpawnedBy,
		SpawnDepth:                 s.SpawnDepth,
		ContextWindow:              s.ContextWindow,
		LastPromptTokens:           s.LastPromptTokens,
		LastMessageCount:           s.LastMessageCount,
	}
	data, err := json.Marshal(md)
	if err != nil {
		return err
	}
	return writeFileAtomic(m.metaPath(s.Key), data)
}

// AddMessage appends a message to a session, both in memory and to its
// on-disk log, and refreshes the sidecar's updatedAt.
func (m *Manager) AddMessage(key string, msg providers.Message) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.getOrLoadLocked(key)
	s.Messages = append(s.Messages, msg)
	s.Updated = time.Now()

	m.appendRecord(key, record{}) // ensure header exists even if the line below fails
	var buf strings.Builder
	writeMessageRecord(&buf, msg)
	appendLine(m.logPath(key), []byte(strings.TrimSuffix(buf.String(), "\n")))
	m.saveMeta(s)
}

// GetHistory returns a copy of the message history.
func (m *Manager) GetHistory(key string) []providers.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.getOrLoadLocked(key)
	msgs := make([]providers.Message, len(s.Messages))
	copy(msgs, s.Messages)
	return msgs
}

// GetSummary returns the session summary.
func (m *Manager) GetSummary(key string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.getOrLoadLocked(key).Summary
}

// SetSummary updates the session summary.
func (m *Manager) SetSummary(key, summary string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.getOrLoadLocked(key)
	s.Summary = summary
	s.Updated = time.Now()
	m.saveMeta(s)
}

// SetLabel updates the session label.
func (m *Manager) SetLabel(key, label string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.getOrLoadLocked(key)
	s.Label = label
	s.Updated = time.Now()
	m.saveMeta(s)
}

// UpdateMetadata sets model/provider/channel metadata on a session.
func (m *Manager) UpdateMetadata(key, model, provider, channel string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.getOrLoadLocked(key)
	if model != "" {
		s.Model = model
	}
	if provider != "" {
		s.Provider = provider
	}
	if channel != "" {
		s.Channel = channel
	}
	m.saveMeta(s)
}

// AccumulateTokens adds token counts from a completed run.
func (m *Manager) AccumulateTokens(key string, inputTokens, outputTokens int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.getOrLoadLocked(key)
	s.InputTokens += inputTokens
	s.OutputTokens += outputTokens
	m.saveMeta(s)
}

// IncrementCompaction bumps the compaction counter after summarization
// (spec §4.3: compactionCount increases monotonically with every
// compaction rewrite).
func (m *Manager) IncrementCompaction(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.getOrLoadLocked(key)
	s.CompactionCount++
	m.saveMeta(s)
}

// GetCompactionCount returns the current compaction count for a session.
func (m *Manager) GetCompactionCount(key string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.getOrLoadLocked(key).CompactionCount
}

// GetMemoryFlushCompactionCount returns the compaction count at which
// memory flush last ran (-1 if it has never run).
func (m *Manager) GetMemoryFlushCompactionCount(key string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.getOrLoadLocked(key)
	if s.MemoryFlushAt == 0 {
		return -1
	}
	return s.MemoryFlushCompactionCount
}

// SetMemoryFlushDone records that memory flush completed at the current
// compaction count.
func (m *Manager) SetMemoryFlushDone(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.getOrLoadLocked(key)
	s.MemoryFlushCompactionCount = s.CompactionCount
	s.MemoryFlushAt = time.Now().UnixMilli()
	m.saveMeta(s)
}

// SetSpawnInfo sets subagent origin metadata on a session.
func (m *Manager) SetSpawnInfo(key, spawnedBy string, depth int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.getOrLoadLocked(key)
	s.SpawnedBy = spawnedBy
	s.SpawnDepth = depth
	m.saveMeta(s)
}

// SetContextWindow caches the agent's context window on the session.
func (m *Manager) SetContextWindow(key string, cw int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.getOrLoadLocked(key)
	s.ContextWindow = cw
	m.saveMeta(s)
}

// GetContextWindow returns the cached context window for a session (0 if unset).
func (m *Manager) GetContextWindow(key string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.getOrLoadLocked(key).ContextWindow
}

// SetLastPromptTokens records actual prompt tokens from the last LLM response.
func (m *Manager) SetLastPromptTokens(key string, tokens, msgCount int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.getOrLoadLocked(key)
	s.LastPromptTokens = tokens
	s.LastMessageCount = msgCount
	m.saveMeta(s)
}

// GetLastPromptTokens returns the last known prompt tokens and message count.
func (m *Manager) GetLastPromptTokens(key string) (int, int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.getOrLoadLocked(key)
	return s.LastPromptTokens, s.LastMessageCount
}

// TruncateHistory keeps only the last N messages, rewriting the on-disk log
// to match (spec §4.3 Rewrite: "atomically replaces the full record set").
func (m *Manager) TruncateHistory(key string, keepLast int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.getOrLoadLocked(key)
	if keepLast <= 0 {
		s.Messages = []providers.Message{}
	} else if len(s.Messages) > keepLast {
		s.Messages = s.Messages[len(s.Messages)-keepLast:]
	}
	s.Updated = time.Now()
	m.rewriteLog(key, s.Messages)
	m.saveMeta(s)
}

// Reset clears a session's history and summary.
func (m *Manager) Reset(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.getOrLoadLocked(key)
	s.Messages = []providers.Message{}
	s.Summary = ""
	s.Updated = time.Now()
	m.rewriteLog(key, nil)
	m.saveMeta(s)
}

// Delete removes a session entirely.
func (m *Manager) Delete(key string) error {
	m.mu.Lock()
	delete(m.cache, key)
	m.mu.Unlock()

	if m.storage == "" {
		return nil
	}
	if err := os.Remove(m.logPath(key)); err != nil && !os.IsNotExist(err) {
		return err
	}
	if err := os.Remove(m.metaPath(key)); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// List returns metadata for all sessions on disk, optionally filtered by
// agent ID.
func (m *Manager) List(agentID string) []SessionInfo {
	keys := m.listKeys(agentID)
	infos := make([]SessionInfo, 0, len(keys))
	m.mu.Lock()
	for _, key := range keys {
		s := m.getOrLoadLocked(key)
		infos = append(infos, SessionInfo{Key: key, MessageCount: len(s.Messages), Created: s.Created, Updated: s.Updated})
	}
	m.mu.Unlock()
	sort.Slice(infos, func(i, j int) bool { return infos[i].Updated.After(infos[j].Updated) })
	return infos
}

func (m *Manager) listKeys(agentID string) []string {
	if m.storage == "" {
		m.mu.RLock()
		defer m.mu.RUnlock()
		var keys []string
		prefix := ""
		if agentID != "" {
			prefix = "agent:" + agentID + ":"
		}
		for key := range m.cache {
			if prefix == "" || strings.HasPrefix(key, prefix) {
				keys = append(keys, key)
			}
		}
		return keys
	}

	entries, err := os.ReadDir(m.storage)
	if err != nil {
		return nil
	}
	var keys []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".jsonl") {
			continue
		}
		key := unsanitizeFilename(strings.TrimSuffix(e.Name(), ".jsonl"))
		if agentID != "" && !strings.HasPrefix(key, "agent:"+agentID+":") {
			continue
		}
		keys = append(keys, key)
	}
	return keys
}

// ListPaged returns a page of session listings for opts.AgentID.
func (m *Manager) ListPaged(opts SessionListOpts) SessionListResult {
	all := m.List(opts.AgentID)
	total := len(all)

	limit := opts.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := opts.Offset
	if offset < 0 {
		offset = 0
	}
	start := offset
	if start > total {
		start = total
	}
	end := start + limit
	if end > total {
		end = total
	}
	return SessionListResult{Sessions: all[start:end], Total: total}
}

// SessionListOpts holds pagination options for ListPaged.
type SessionListOpts struct {
	AgentID string
	Limit   int
	Offset  int
}

// SessionListResult is the paginated result of ListPaged.
type SessionListResult struct {
	Sessions []SessionInfo `json:"sessions"`
	Total    int           `json:"total"`
}

// Save flushes a session's sidecar metadata (messages are already durable —
// AddMessage/TruncateHistory/Reset write the log as they happen).
func (m *Manager) Save(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.getOrLoadLocked(key)
	return m.saveMeta(s)
}

// LastUsedChannel finds the most recently updated channel session for an
// agent and extracts channel + chatID from the key. Returns ("", "") if
// none found. Used for heartbeat delivery target resolution (target="last").
func (m *Manager) LastUsedChannel(agentID string) (channel, chatID string) {
	prefix := "agent:" + agentID + ":"
	var bestKey string
	var bestUpdated time.Time

	m.mu.Lock()
	for _, key := range m.listKeys(agentID) {
		rest := strings.TrimPrefix(key, prefix)
		if strings.HasPrefix(rest, "cron:") || strings.HasPrefix(rest, "subagent:") || strings.HasPrefix(rest, "heartbeat:") {
			continue
		}
		s := m.getOrLoadLocked(key)
		if s.Updated.After(bestUpdated) {
			bestUpdated = s.Updated
			bestKey = key
		}
	}
	m.mu.Unlock()

	if bestKey == "" {
		return "", ""
	}
	parts := strings.SplitN(bestKey, ":", 5)
	if len(parts) >= 5 {
		return parts[2], parts[4]
	}
	return "", ""
}

func sanitizeFilename(key string) string {
	return strings.ReplaceAll(key, ":", "_")
}

func unsanitizeFilename(name string) string {
	return strings.ReplaceAll(name, "_", ":")
}
