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

package coreerrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIs_MatchesWrappedKind(t *testing.T) {
	err := New(ErrNotFound, "job not found")
	require.True(t, Is(err, ErrNotFound))
	require.False(t, Is(err, ErrConflict))
}

func TestIs_SeesThroughFmtWrapping(t *testing.T) {
	inner := New(ErrUpstream, "llm call failed")
	outer := fmt.Errorf("gateway: %w", inner)
	require.True(t, Is(outer, ErrUpstream))
}

func TestIs_FalseForPlainError(t *testing.T) {
	require.False(t, Is(errors.New("boom"), ErrRequest))
}

func TestKindOf(t *testing.T) {
	require.Equal(t, ErrTimeout, KindOf(New(ErrTimeout, "deadline exceeded")))
	require.Equal(t, Kind(""), KindOf(errors.New("boom")))
}

func TestWrap_UnwrapsToCause(t *testing.T) {
	cause := errors.New("dial tcp: connection refused")
	err := Wrap(ErrUpstream, "rag: failed to reach vector store", cause)
	require.ErrorIs(t, err, cause)
	require.Contains(t, err.Error(), "connection refused")
}

func TestWrapf_FormatsMessage(t *testing.T) {
	err := Wrapf(ErrRequest, nil, "job %s not in %s phase", "job-1", "AWAITING_REVIEW")
	require.Contains(t, err.Error(), "job-1")
	require.Contains(t, err.Error(), "AWAITING_REVIEW")
}
