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

package generator

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/aurelius-labs/tutorcore/catalog"
	"github.com/aurelius-labs/tutorcore/config"
	"github.com/aurelius-labs/tutorcore/observability"
	"github.com/aurelius-labs/tutorcore/store"
)

func testStore(t *testing.T) *store.Store {
	t.Helper()
	cfg := config.StoreConfig{DSN: "file:" + t.Name() + "?mode=memory&cache=shared&_fk=1"}
	cfg.SetDefaults()
	st, err := store.Open(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func testEngine(t *testing.T, st *store.Store, cat catalog.Writer) *Engine {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(st, nil, nil, cat, mixCfg(), log, observability.NewMetrics())
}

func seedAwaitingReview(t *testing.T, st *store.Store, jobID string) *store.GenerationJob {
	t.Helper()
	now := time.Now()
	job := &store.GenerationJob{
		JobID:         jobID,
		TeacherID:     "teacher-1",
		CourseID:      "course-1",
		Requirements:  store.Requirements{Topic: "recursion", Language: "go", TargetCount: 1},
		CollectionKey: "course:course-1:job:" + jobID,
		Phase:         store.JobAwaitingReview,
		Draft: []store.DraftExercise{
			{
				Title: "Factorial", Description: "d", Difficulty: store.Easy,
				Mission: "m", SolutionCode: "sol",
				TestCases: []store.TestCase{{Ordinal: 0, Description: "base case"}},
			},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
	require.NoError(t, st.SaveJob(context.Background(), job))
	return job
}

func TestApprovePublish_CommitsPublishedTransitionThroughWithTx(t *testing.T) {
	ctx := context.Background()
	st := testStore(t)
	cat := catalog.NewInMemory()
	eng := testEngine(t, st, cat)

	job := seedAwaitingReview(t, st, "job-publish-1")

	result, err := eng.ApprovePublish(ctx, job.JobID, nil)
	require.NoError(t, err)
	require.NotEmpty(t, result.ActivityID)
	require.Len(t, result.ExerciseIDs, 1)

	got, err := st.GetJob(ctx, job.JobID)
	require.NoError(t, err)
	require.Equal(t, store.JobPublished, got.Phase)
}

func TestApprovePublish_RetryAfterCatalogSuccessIsIdempotent(t *testing.T) {
	ctx := context.Background()
	st := testStore(t)
	cat := catalog.NewInMemory()
	eng := testEngine(t, st, cat)

	job := seedAwaitingReview(t, st, "job-publish-2")

	first, err := eng.ApprovePublish(ctx, job.JobID, nil)
	require.NoError(t, err)

	// Simulate a crash between the catalog commit and the PUBLISHED
	// transition landing: roll the store row back to AWAITING_REVIEW and
	// retry. The catalog's job_id idempotency must return the same
	// identifiers rather than minting a second activity.
	stuck, err := st.GetJob(ctx, job.JobID)
	require.NoError(t, err)
	stuck.Phase = store.JobAwaitingReview
	require.NoError(t, st.SaveJob(ctx, stuck))

	second, err := eng.ApprovePublish(ctx, job.JobID, nil)
	require.NoError(t, err)
	require.Equal(t, first.ActivityID, second.ActivityID)
	require.Equal(t, first.ExerciseIDs, second.ExerciseIDs)

	got, err := st.GetJob(ctx, job.JobID)
	require.NoError(t, err)
	require.Equal(t, store.JobPublished, got.Phase)
}

func TestApprovePublish_AlreadyPublishedRejected(t *testing.T) {
	ctx := context.Background()
	st := testStore(t)
	cat := catalog.NewInMemory()
	eng := testEngine(t, st, cat)

	job := seedAwaitingReview(t, st, "job-publish-3")
	_, err := eng.ApprovePublish(ctx, job.JobID, nil)
	require.NoError(t, err)

	_, err = eng.ApprovePublish(ctx, job.JobID, nil)
	require.Error(t, err)
}
