package cron

import (
	"bufio"
	"encoding/json"
	"os"
	"time"

	"github.com/bashclaw/bashclaw/internal/statepath"
)

const (
	runLogRotateBytes = 5 << 20 // 5MB
	runLogTailLines   = 1000
)

// RunRecord is one line of cron/runs/<job_id>.jsonl.
type RunRecord struct {
	Ts      int64  `json:"ts"`
	JobID   string `json:"jobId"`
	Success bool   `json:"success"`
	Result  string `json:"result,omitempty"`
	Error   string `json:"error,omitempty"`
}

// appendRun writes one run record, rotating the log (keeping the newest
// runLogTailLines lines) if it has grown past runLogRotateBytes.
func appendRun(root statepath.Root, rec RunRecord) error {
	path := root.CronRuns(rec.JobID)
	if info, err := os.Stat(path); err == nil && info.Size() > runLogRotateBytes {
		if err := rotateRunLog(path); err != nil {
			return err
		}
	}
	line, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return statepath.AppendLineAtomic(path, line)
}

// ReadRuns returns up to limit most-recent run records for jobID, newest
// last. limit<=0 returns the full tail kept on disk.
func ReadRuns(root statepath.Root, jobID string, limit int) ([]RunRecord, error) {
	path := root.CronRuns(jobID)
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var records []RunRecord
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1<<20)
	for scanner.Scan() {
		var rec RunRecord
		if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
			continue
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	if limit > 0 && len(records) > limit {
		records = records[len(records)-limit:]
	}
	return records, nil
}

func rotateRunLog(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	var lines []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1<<20)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	f.Close()

	if len(lines) > runLogTailLines {
		lines = lines[len(lines)-runLogTailLines:]
	}
	out := ""
	for _, l := range lines {
		out += l + "\n"
	}
	return statepath.WriteFileAtomic(path, []byte(out), 0o644)
}

func nowMs() int64 { return time.Now().UnixMilli() }
