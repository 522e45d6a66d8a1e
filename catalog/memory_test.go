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

package catalog

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInMemory_PublishIsIdempotentOnJobID(t *testing.T) {
	m := NewInMemory()
	header := ActivityHeader{JobID: "job-1", CourseID: "course-1"}
	exercises := []Exercise{{Title: "a"}, {Title: "b"}}

	first, err := m.Publish(context.Background(), header, exercises)
	require.NoError(t, err)
	require.Len(t, first.ExerciseIDs, 2)

	second, err := m.Publish(context.Background(), header, exercises)
	require.NoError(t, err)
	require.Equal(t, first, second)
}

func TestInMemory_PublishAssignsDistinctIDs(t *testing.T) {
	m := NewInMemory()
	first, err := m.Publish(context.Background(), ActivityHeader{JobID: "job-1"}, []Exercise{{Title: "a"}})
	require.NoError(t, err)
	second, err := m.Publish(context.Background(), ActivityHeader{JobID: "job-2"}, []Exercise{{Title: "b"}})
	require.NoError(t, err)
	require.NotEqual(t, first.ActivityID, second.ActivityID)
}
