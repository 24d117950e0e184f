package cron

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/bashclaw/bashclaw/internal/statepath"
	"github.com/bashclaw/bashclaw/internal/store"
)

// FileStore is the consolidated file-backed CronStore (spec §6:
// cron/jobs.json, one document guarded by an exclusive lock rather than a
// file per job).
type FileStore struct {
	root statepath.Root
}

var _ store.CronStore = (*FileStore)(nil)

// NewFileStore creates a CronStore rooted at root.
func NewFileStore(root statepath.Root) *FileStore {
	return &FileStore{root: root}
}

func (s *FileStore) withLock(fn func(jobs map[string]store.CronJob) (map[string]store.CronJob, error)) error {
	lock := statepath.NewFileLock(s.root.CronJobs() + ".lock")
	if err := lock.Acquire(); err != nil {
		return err
	}
	defer lock.Release()

	jobs, err := s.readLocked()
	if err != nil {
		return err
	}
	updated, err := fn(jobs)
	if err != nil {
		return err
	}
	if updated == nil {
		return nil
	}
	return s.writeLocked(updated)
}

func (s *FileStore) readLocked() (map[string]store.CronJob, error) {
	data, err := os.ReadFile(s.root.CronJobs())
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]store.CronJob{}, nil
		}
		return nil, fmt.Errorf("cron store: read jobs: %w", err)
	}
	if len(data) == 0 {
		return map[string]store.CronJob{}, nil
	}
	var jobs map[string]store.CronJob
	if err := json.Unmarshal(data, &jobs); err != nil {
		return nil, fmt.Errorf("cron store: parse jobs: %w", err)
	}
	if jobs == nil {
		jobs = map[string]store.CronJob{}
	}
	return jobs, nil
}

func (s *FileStore) writeLocked(jobs map[string]store.CronJob) error {
	data, err := json.MarshalIndent(jobs, "", "  ")
	if err != nil {
		return fmt.Errorf("cron store: encode jobs: %w", err)
	}
	return statepath.WriteFileAtomic(s.root.CronJobs(), data, 0o644)
}

// Get returns one job by id.
func (s *FileStore) Get(id string) (store.CronJob, bool, error) {
	var out store.CronJob
	var found bool
	err := s.withLock(func(jobs map[string]store.CronJob) (map[string]store.CronJob, error) {
		out, found = jobs[id]
		return nil, nil
	})
	return out, found, err
}

// Upsert creates or replaces a job by id.
func (s *FileStore) Upsert(job store.CronJob) error {
	return s.withLock(func(jobs map[string]store.CronJob) (map[string]store.CronJob, error) {
		jobs[job.ID] = job
		return jobs, nil
	})
}

// Delete removes a job by id. Deleting an absent id is a no-op.
func (s *FileStore) Delete(id string) error {
	return s.withLock(func(jobs map[string]store.CronJob) (map[string]store.CronJob, error) {
		delete(jobs, id)
		return jobs, nil
	})
}

// List returns every job, ordered by id for deterministic output.
func (s *FileStore) List() ([]store.CronJob, error) {
	var out []store.CronJob
	err := s.withLock(func(jobs map[string]store.CronJob) (map[string]store.CronJob, error) {
		out = make([]store.CronJob, 0, len(jobs))
		for _, j := range jobs {
			out = append(out, j)
		}
		return nil, nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, err
}
