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

// Package generator drives a GenerationJob through its phases (§4.J):
// INGESTING → GENERATING → AWAITING_REVIEW → PUBLISHING → PUBLISHED |
// FAILED, gating publication on an external teacher approval.
//
// checkpoint.Manager owns the AWAITING_REVIEW suspension; Engine itself
// holds no in-memory state beyond a job's store row between phases, so
// every phase transition is persist-then-release.
package generator

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/aurelius-labs/tutorcore/catalog"
	"github.com/aurelius-labs/tutorcore/config"
	"github.com/aurelius-labs/tutorcore/coreerrors"
	"github.com/aurelius-labs/tutorcore/gateway"
	"github.com/aurelius-labs/tutorcore/observability"
	"github.com/aurelius-labs/tutorcore/rag"
	"github.com/aurelius-labs/tutorcore/store"
)

// JobSpec is the caller-supplied shape for start.
type JobSpec struct {
	TeacherID string
	CourseID  string
	Requirements store.Requirements
	SourceName   string
	PDFBytes     []byte
}

// JobStatus is the lightweight read returned by status.
type JobStatus struct {
	JobID     string
	Phase     store.JobPhase
	Error     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// DraftView is the current draft, meaningful from AWAITING_REVIEW onward.
type DraftView struct {
	JobID     string
	Phase     store.JobPhase
	Exercises []store.DraftExercise
}

// PublishResult reports the catalog's assigned identifiers.
type PublishResult struct {
	ActivityID  string
	ExerciseIDs []string
}

// Engine is the generator workflow collaborator.
type Engine struct {
	store    *store.Store
	gw       *gateway.Gateway
	rag      *rag.Substrate
	catalog  catalog.Writer
	cfg      config.GeneratorConfig
	log      *slog.Logger
	metrics  *observability.Metrics
}

// New builds an Engine from its collaborators.
func New(st *store.Store, gw *gateway.Gateway, substrate *rag.Substrate, cat catalog.Writer, cfg config.GeneratorConfig, log *slog.Logger, metrics *observability.Metrics) *Engine {
	return &Engine{store: st, gw: gw, rag: substrate, catalog: cat, cfg: cfg, log: log, metrics: metrics}
}

func newID(prefix string) string {
	return fmt.Sprintf("%s-%s", prefix, uuid.NewString())
}

// Start enqueues a job and runs ingest+generation asynchronously,
// returning the job_id immediately (§4.J start).
func (e *Engine) Start(ctx context.Context, spec JobSpec) (string, error) {
	if spec.Requirements.Topic == "" {
		return "", coreerrors.New(coreerrors.ErrRequest, "generator: requirements.topic is required")
	}
	if spec.Requirements.TargetCount == 0 {
		spec.Requirements.TargetCount = e.cfg.TargetCount
	}

	now := time.Now()
	jobID := newID("job")
	job := &store.GenerationJob{
		JobID:         jobID,
		TeacherID:     spec.TeacherID,
		CourseID:      spec.CourseID,
		Requirements:  spec.Requirements,
		CollectionKey: fmt.Sprintf("course:%s:job:%s", spec.CourseID, jobID),
		Phase:         store.JobIngesting,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := e.store.SaveJob(ctx, job); err != nil {
		return "", err
	}

	go e.runIngestAndGenerate(context.WithoutCancel(ctx), job, spec.SourceName, spec.PDFBytes)
	return jobID, nil
}

func (e *Engine) runIngestAndGenerate(ctx context.Context, job *store.GenerationJob, sourceName string, pdfBytes []byte) {
	if _, err := e.rag.Ingest(ctx, job.CollectionKey, sourceName, pdfBytes); err != nil {
		e.fail(ctx, job, err)
		return
	}

	e.transition(ctx, job, store.JobGenerating)

	draft, err := e.generate(ctx, job, 1.0)
	if err != nil {
		e.fail(ctx, job, err)
		return
	}

	job.Draft = draft
	e.transition(ctx, job, store.JobAwaitingReview)
}

func (e *Engine) transition(ctx context.Context, job *store.GenerationJob, to store.JobPhase) {
	from := job.Phase
	job.Phase = to
	job.UpdatedAt = time.Now()
	if err := e.store.SaveJob(ctx, job); err != nil {
		e.log.Error("generator: failed to persist phase transition", "job_id", job.JobID, "error", err)
		return
	}
	e.metrics.JobPhaseTransition.WithLabelValues(string(from), string(to)).Inc()
}

func (e *Engine) fail(ctx context.Context, job *store.GenerationJob, cause error) {
	job.Phase = store.JobFailed
	job.Error = cause.Error()
	job.UpdatedAt = time.Now()
	if err := e.store.SaveJob(ctx, job); err != nil {
		e.log.Error("generator: failed to persist failure", "job_id", job.JobID, "error", err)
		return
	}
	e.metrics.JobPhaseTransition.WithLabelValues("GENERATING", "FAILED").Inc()
	e.log.Warn("generator: job failed", "job_id", job.JobID, "error", cause)
}

// Status returns a lightweight read of a job's phase and error (§4.J status).
func (e *Engine) Status(ctx context.Context, jobID string) (JobStatus, error) {
	job, err := e.store.GetJob(ctx, jobID)
	if err != nil {
		return JobStatus{}, err
	}
	return JobStatus{JobID: job.JobID, Phase: job.Phase, Error: job.Error, CreatedAt: job.CreatedAt, UpdatedAt: job.UpdatedAt}, nil
}

// Draft returns the current draft. Only meaningful from AWAITING_REVIEW
// onward (§4.J draft).
func (e *Engine) Draft(ctx context.Context, jobID string) (DraftView, error) {
	job, err := e.store.GetJob(ctx, jobID)
	if err != nil {
		return DraftView{}, err
	}
	return DraftView{JobID: job.JobID, Phase: job.Phase, Exercises: job.Draft}, nil
}

// Cancel transitions any non-terminal job to FAILED; idempotent (§4.J cancel).
func (e *Engine) Cancel(ctx context.Context, jobID string) error {
	job, err := e.store.GetJob(ctx, jobID)
	if err != nil {
		return err
	}
	if job.Phase == store.JobFailed || job.Phase == store.JobPublished {
		return nil
	}
	job.Phase = store.JobFailed
	job.Error = "cancelled"
	job.UpdatedAt = time.Now()
	return e.store.SaveJob(ctx, job)
}

// ApprovePublish applies approvedIndices (nil = all), publishes through
// the catalog collaborator, and commits the PUBLISHED transition in a
// store transaction (§4.J approve_and_publish).
func (e *Engine) ApprovePublish(ctx context.Context, jobID string, approvedIndices []int) (PublishResult, error) {
	job, err := e.store.GetJob(ctx, jobID)
	if err != nil {
		return PublishResult{}, err
	}
	if job.Phase == store.JobPublished {
		return PublishResult{}, coreerrors.New(coreerrors.ErrConflict, "generator: job already published: "+jobID)
	}
	if job.Phase != store.JobAwaitingReview {
		return PublishResult{}, coreerrors.New(coreerrors.ErrConflict, "generator: job not awaiting review: "+jobID)
	}

	indices, err := normalizeIndices(approvedIndices, len(job.Draft))
	if err != nil {
		return PublishResult{}, err
	}

	job.Phase = store.JobPublishing
	job.UpdatedAt = time.Now()
	if err := e.store.SaveJob(ctx, job); err != nil {
		return PublishResult{}, err
	}

	header := catalog.ActivityHeader{
		JobID:    job.JobID,
		CourseID: job.CourseID,
		Topic:    job.Requirements.Topic,
		Language: job.Requirements.Language,
		Concepts: job.Requirements.Concepts,
	}
	exercises := make([]catalog.Exercise, len(indices))
	for i, idx := range indices {
		exercises[i] = toCatalogExercise(job.Draft[idx])
	}

	// The catalog write is an external call and cannot share a literal
	// sql.Tx with this store; catalog.Writer.Publish is required to be
	// idempotent on header.JobID (§6.4), so a crash between Publish
	// succeeding and the transition below committing is recovered by a
	// retried approve_and_publish call that re-publishes (a no-op on the
	// catalog side) and then commits the transition that failed to land.
	result, err := e.catalog.Publish(ctx, header, exercises)
	if err != nil {
		e.fail(ctx, job, coreerrors.Wrap(coreerrors.ErrUpstream, "generator: catalog publish failed", err))
		return PublishResult{}, err
	}

	job.Phase = store.JobPublished
	job.UpdatedAt = time.Now()
	if err := e.store.WithTx(ctx, func(ctx context.Context, tx *store.Tx) error {
		return tx.SaveJob(ctx, job)
	}); err != nil {
		return PublishResult{}, err
	}
	e.metrics.JobPhaseTransition.WithLabelValues("PUBLISHING", "PUBLISHED").Inc()

	return PublishResult{ActivityID: result.ActivityID, ExerciseIDs: result.ExerciseIDs}, nil
}

// normalizeIndices validates approvedIndices is a subset of {0..count-1}
// without duplicates and non-empty, returning a sorted copy; nil means all.
func normalizeIndices(approvedIndices []int, count int) ([]int, error) {
	if approvedIndices == nil {
		all := make([]int, count)
		for i := range all {
			all[i] = i
		}
		return all, nil
	}
	if len(approvedIndices) == 0 {
		return nil, coreerrors.New(coreerrors.ErrRequest, "generator: approved_indices must not be empty")
	}
	seen := make(map[int]bool, len(approvedIndices))
	out := make([]int, 0, len(approvedIndices))
	for _, idx := range approvedIndices {
		if idx < 0 || idx >= count {
			return nil, coreerrors.New(coreerrors.ErrRequest, fmt.Sprintf("generator: approved index %d out of range", idx))
		}
		if seen[idx] {
			return nil, coreerrors.New(coreerrors.ErrRequest, fmt.Sprintf("generator: duplicate approved index %d", idx))
		}
		seen[idx] = true
		out = append(out, idx)
	}
	sort.Ints(out)
	return out, nil
}

func toCatalogExercise(d store.DraftExercise) catalog.Exercise {
	tests := make([]catalog.TestCase, len(d.TestCases))
	for i, tc := range d.TestCases {
		tests[i] = catalog.TestCase{
			Ordinal: tc.Ordinal, Description: tc.Description,
			Input: tc.Input, ExpectedOutput: tc.ExpectedOutput,
			IsHidden: tc.IsHidden, TimeoutMs: tc.TimeoutMs,
		}
	}
	return catalog.Exercise{
		Title: d.Title, Description: d.Description, Difficulty: string(d.Difficulty),
		Mission: d.Mission, StarterCode: d.StarterCode, SolutionCode: d.SolutionCode,
		Concepts: d.Concepts, LearningObjectives: d.LearningObjectives,
		TestCases: tests, EstimatedMinutes: d.EstimatedMinutes,
	}
}

// ResumeSuspended is the checkpoint.ResumeCallback for jobs found stuck in
// GENERATING on process restart: it re-runs generation from scratch since
// no partial generation state is persisted.
func (e *Engine) ResumeSuspended(ctx context.Context, job *store.GenerationJob) error {
	draft, err := e.generate(ctx, job, 1.0)
	if err != nil {
		e.fail(ctx, job, err)
		return err
	}
	job.Draft = draft
	e.transition(ctx, job, store.JobAwaitingReview)
	return nil
}
