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

package checkpoint

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/aurelius-labs/tutorcore/config"
	"github.com/aurelius-labs/tutorcore/store"
)

func openTestStore(t *testing.T) *store.Store {
	t.Helper()
	dsn := "file:" + t.Name() + "?mode=memory&cache=shared&_fk=1"
	s, err := store.Open(config.StoreConfig{Dialect: "sqlite", DSN: dsn})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(discardWriter{}, nil))
}

type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }

func TestRecoverPendingJobs_ResumesGeneratingWithCallback(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	job := &store.GenerationJob{JobID: "job-1", TeacherID: "t", CourseID: "c", Phase: store.JobGenerating, CreatedAt: time.Now(), UpdatedAt: time.Now()}
	require.NoError(t, s.SaveJob(ctx, job))

	m := New(s, time.Hour, discardLogger())
	var resumed []string
	m.SetResumeCallback(func(ctx context.Context, job *store.GenerationJob) error {
		resumed = append(resumed, job.JobID)
		return nil
	})

	stats, err := m.RecoverPendingJobs(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, stats.Resumed)
	require.Equal(t, []string{"job-1"}, resumed)
}

func TestRecoverPendingJobs_NeverAutoResumesAwaitingReview(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	job := &store.GenerationJob{JobID: "job-2", TeacherID: "t", CourseID: "c", Phase: store.JobAwaitingReview, CreatedAt: time.Now(), UpdatedAt: time.Now()}
	require.NoError(t, s.SaveJob(ctx, job))

	m := New(s, time.Hour, discardLogger())
	called := false
	m.SetResumeCallback(func(ctx context.Context, job *store.GenerationJob) error {
		called = true
		return nil
	})

	stats, err := m.RecoverPendingJobs(ctx)
	require.NoError(t, err)
	require.False(t, called)
	require.Equal(t, 1, stats.AwaitingReview)
}

func TestRecoverPendingJobs_ExpiresStaleAwaitingReview(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	stale := time.Now().Add(-2 * time.Hour)
	job := &store.GenerationJob{JobID: "job-3", TeacherID: "t", CourseID: "c", Phase: store.JobAwaitingReview, CreatedAt: stale, UpdatedAt: stale}
	require.NoError(t, s.SaveJob(ctx, job))

	m := New(s, time.Hour, discardLogger())
	stats, err := m.RecoverPendingJobs(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, stats.Expired)
	require.Equal(t, 0, stats.AwaitingReview)

	got, err := s.GetJob(ctx, "job-3")
	require.NoError(t, err)
	require.Equal(t, store.JobFailed, got.Phase)
}

func TestRecoverPendingJobs_ExpiresStaleGeneratingBeforeResuming(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	stale := time.Now().Add(-2 * time.Hour)
	job := &store.GenerationJob{JobID: "job-4", TeacherID: "t", CourseID: "c", Phase: store.JobGenerating, CreatedAt: stale, UpdatedAt: stale}
	require.NoError(t, s.SaveJob(ctx, job))

	m := New(s, time.Hour, discardLogger())
	called := false
	m.SetResumeCallback(func(ctx context.Context, job *store.GenerationJob) error {
		called = true
		return nil
	})

	stats, err := m.RecoverPendingJobs(ctx)
	require.NoError(t, err)
	require.False(t, called)
	require.Equal(t, 1, stats.Expired)
}
