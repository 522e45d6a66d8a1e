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

package risk

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestStatic_ReturnsConfiguredSignal(t *testing.T) {
	now := time.Now()
	s := Static{Signal: Signal{Score: 0.8, Level: "HIGH", AsOf: now}}
	got, err := s.Current(context.Background(), "student-1", nil)
	require.NoError(t, err)
	require.Equal(t, 0.8, got.Score)
	require.Equal(t, "HIGH", got.Level)
}
