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

package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/aurelius-labs/tutorcore/config"
	"github.com/aurelius-labs/tutorcore/coreerrors"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	dsn := "file:" + t.Name() + "?mode=memory&cache=shared&_fk=1"
	cfg := config.StoreConfig{Dialect: "sqlite", DSN: dsn}
	s, err := Open(cfg)
	require.NoError(t, err)
	s.db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSaveAndGetJob_RoundTrips(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	job := &GenerationJob{
		JobID: "job-1", TeacherID: "t-1", CourseID: "c-1",
		Requirements:  Requirements{Topic: "recursion", Language: "go", TargetCount: 10},
		CollectionKey: "course:c-1",
		Phase:         JobIngesting,
		CreatedAt:     time.Now(), UpdatedAt: time.Now(),
	}
	require.NoError(t, s.SaveJob(ctx, job))

	got, err := s.GetJob(ctx, "job-1")
	require.NoError(t, err)
	require.Equal(t, job.Requirements.Topic, got.Requirements.Topic)
	require.Equal(t, JobIngesting, got.Phase)

	job.Phase = JobGenerating
	require.NoError(t, s.SaveJob(ctx, job))
	got, err = s.GetJob(ctx, "job-1")
	require.NoError(t, err)
	require.Equal(t, JobGenerating, got.Phase)
}

func TestGetJob_NotFound(t *testing.T) {
	s := openTestStore(t)
	_, err := s.GetJob(context.Background(), "missing")
	require.True(t, coreerrors.Is(err, coreerrors.ErrNotFound))
}

func TestJobsByPhase_ScansMatchingOnly(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	for i, phase := range []JobPhase{JobGenerating, JobGenerating, JobAwaitingReview} {
		job := &GenerationJob{
			JobID: "job-" + string(rune('a'+i)), TeacherID: "t", CourseID: "c",
			Phase: phase, CreatedAt: time.Now(), UpdatedAt: time.Now(),
		}
		require.NoError(t, s.SaveJob(ctx, job))
	}
	jobs, err := s.JobsByPhase(ctx, JobGenerating)
	require.NoError(t, err)
	require.Len(t, jobs, 2)
}

func TestAppendMessageAndHistory_ChronologicalOrder(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	sess := &TutorSession{SessionID: "sess-1", StudentID: "stu-1", ActivityID: "act-1", CourseID: "c-1", IsActive: true, CreatedAt: time.Now()}
	require.NoError(t, s.SaveSession(ctx, sess))

	for i := 0; i < 3; i++ {
		msg := &Message{
			MessageID: "msg-" + string(rune('a'+i)), SessionID: "sess-1", Sender: SenderStudent,
			Content: "message " + string(rune('a'+i)), Phase: PhaseExploration, CreatedAt: time.Now().Add(time.Duration(i) * time.Second),
		}
		require.NoError(t, s.AppendMessage(ctx, msg))
	}

	history, err := s.History(ctx, "sess-1", 0)
	require.NoError(t, err)
	require.Len(t, history, 3)
	require.Equal(t, "message a", history[0].Content)
	require.Equal(t, "message c", history[2].Content)

	windowed, err := s.History(ctx, "sess-1", 2)
	require.NoError(t, err)
	require.Len(t, windowed, 2)
	require.Equal(t, "message b", windowed[0].Content)
	require.Equal(t, "message c", windowed[1].Content)
}

func TestWithTx_RollsBackOnError(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	err := s.WithTx(ctx, func(ctx context.Context, tx *Tx) error {
		job := &GenerationJob{JobID: "tx-job", TeacherID: "t", CourseID: "c", Phase: JobPublishing, CreatedAt: time.Now(), UpdatedAt: time.Now()}
		if err := tx.SaveJob(ctx, job); err != nil {
			return err
		}
		return coreerrors.New(coreerrors.ErrConflict, "force rollback")
	})
	require.Error(t, err)

	_, getErr := s.GetJob(ctx, "tx-job")
	require.True(t, coreerrors.Is(getErr, coreerrors.ErrNotFound))
}

func TestWithTx_CommitsOnSuccess(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	err := s.WithTx(ctx, func(ctx context.Context, tx *Tx) error {
		job := &GenerationJob{JobID: "tx-job-2", TeacherID: "t", CourseID: "c", Phase: JobPublished, CreatedAt: time.Now(), UpdatedAt: time.Now()}
		return tx.SaveJob(ctx, job)
	})
	require.NoError(t, err)

	got, err := s.GetJob(ctx, "tx-job-2")
	require.NoError(t, err)
	require.Equal(t, JobPublished, got.Phase)
}

func TestSaveAuditAndRecentAudits(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	audit := &PedagogicalAudit{
		AnalysisID: "a-1", StudentID: "stu-1", RiskScore: 0.4, RiskLevel: RiskMedium,
		DiagnosisCategory: DiagnosisConceptual, Diagnosis: "struggling with recursion",
		EvidenceQuotes: []string{"I don't get the base case"}, Intervention: "suggest review",
		Confidence: 0.7, Status: AuditCompleted, CreatedAt: time.Now(),
	}
	require.NoError(t, s.SaveAudit(ctx, audit))

	audits, err := s.RecentAudits(ctx, "stu-1", time.Now().Add(-time.Hour), 10)
	require.NoError(t, err)
	require.Len(t, audits, 1)
	require.Equal(t, []string{"I don't get the base case"}, audits[0].EvidenceQuotes)
}
