// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package checkpoint recovers GenerationJobs stuck at the AWAITING_REVIEW
// suspension point or mid-GENERATING after a process restart (§4.J).
//
// The engine holds no in-memory handles across AWAITING_REVIEW, so the
// store row is the entire checkpoint; recovery here is a startup scan plus
// an expiry/resumability check, not a separate persisted snapshot format.
package checkpoint

import (
	"context"
	"log/slog"
	"time"

	"github.com/aurelius-labs/tutorcore/store"
)

// ResumeCallback resumes a GenerationJob found stuck in GENERATING —
// typically by re-running the generation step.
type ResumeCallback func(ctx context.Context, job *store.GenerationJob) error

// Manager scans the store for jobs suspended at a checkpoint and either
// resumes or expires them.
type Manager struct {
	store          *store.Store
	ttl            time.Duration
	resumeCallback ResumeCallback
	log            *slog.Logger
}

// New builds a Manager. ttl is the AWAITING_REVIEW/GENERATING expiry
// window (config.GeneratorConfig.CheckpointTTLMin).
func New(st *store.Store, ttl time.Duration, log *slog.Logger) *Manager {
	return &Manager{store: st, ttl: ttl, log: log}
}

// SetResumeCallback installs the callback used to resume jobs found stuck
// mid-GENERATING (a crash between "started generating" and "persisted
// draft"). Jobs found at AWAITING_REVIEW are never auto-resumed — that
// phase waits on an explicit approve_and_publish call, consistent with
// it being a human-in-the-loop suspension point.
func (m *Manager) SetResumeCallback(cb ResumeCallback) {
	m.resumeCallback = cb
}

// Stats summarizes a RecoverPendingJobs pass.
type Stats struct {
	AwaitingReview int
	Resumed        int
	Expired        int
	Failed         int
}

// RecoverPendingJobs scans for jobs left in GENERATING or AWAITING_REVIEW
// and recovers or expires each. Call once at process startup.
func (m *Manager) RecoverPendingJobs(ctx context.Context) (Stats, error) {
	var stats Stats

	stuck, err := m.store.JobsByPhase(ctx, store.JobGenerating)
	if err != nil {
		return stats, err
	}
	for i := range stuck {
		job := stuck[i]
		if m.expire(ctx, &job, &stats) {
			continue
		}
		if m.resumeCallback == nil {
			m.log.Warn("checkpoint: job stuck in GENERATING, no resume callback configured", "job_id", job.JobID)
			continue
		}
		m.log.Info("checkpoint: resuming job stuck in GENERATING", "job_id", job.JobID)
		if err := m.resumeCallback(ctx, &job); err != nil {
			m.log.Error("checkpoint: resume failed", "job_id", job.JobID, "error", err)
			stats.Failed++
			continue
		}
		stats.Resumed++
	}

	waiting, err := m.store.JobsByPhase(ctx, store.JobAwaitingReview)
	if err != nil {
		return stats, err
	}
	for i := range waiting {
		job := waiting[i]
		if m.expire(ctx, &job, &stats) {
			continue
		}
		stats.AwaitingReview++
	}

	return stats, nil
}

// expire fails job if its checkpoint has aged past the TTL, returning
// true if it did so.
func (m *Manager) expire(ctx context.Context, job *store.GenerationJob, stats *Stats) bool {
	if m.ttl <= 0 || time.Since(job.UpdatedAt) < m.ttl {
		return false
	}
	job.Phase = store.JobFailed
	job.Error = "checkpoint expired"
	job.UpdatedAt = time.Now()
	if err := m.store.SaveJob(ctx, job); err != nil {
		m.log.Error("checkpoint: failed to expire job", "job_id", job.JobID, "error", err)
	} else {
		m.log.Warn("checkpoint: job expired", "job_id", job.JobID, "phase", job.Phase)
	}
	stats.Expired++
	return true
}
