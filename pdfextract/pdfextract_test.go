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

package pdfextract

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aurelius-labs/tutorcore/coreerrors"
)

func TestExtract_MalformedPDF(t *testing.T) {
	_, err := Extract(context.Background(), []byte("not a pdf"))
	require.Error(t, err)
	assert.True(t, coreerrors.Is(err, coreerrors.ErrCorruptSource))
}

func TestExtract_EmptyInput(t *testing.T) {
	_, err := Extract(context.Background(), []byte{})
	require.Error(t, err)
	assert.True(t, coreerrors.Is(err, coreerrors.ErrCorruptSource))
}
