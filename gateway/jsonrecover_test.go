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

package gateway

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aurelius-labs/tutorcore/coreerrors"
)

func TestRecoverJSON_StrictParse(t *testing.T) {
	text, recovered, err := recoverJSON(`{"a":1,"b":"x"}`, nil)
	require.NoError(t, err)
	assert.False(t, recovered)
	assert.JSONEq(t, `{"a":1,"b":"x"}`, text)
}

func TestRecoverJSON_BalancedBraceExtraction(t *testing.T) {
	raw := "Sure, here is the JSON you asked for:\n```json\n{\"a\":1,\"b\":\"x\"}\n```\nLet me know if you need anything else."
	text, recovered, err := recoverJSON(raw, nil)
	require.NoError(t, err)
	assert.True(t, recovered)
	assert.JSONEq(t, `{"a":1,"b":"x"}`, text)
}

func TestRecoverJSON_FieldRegexFallback(t *testing.T) {
	raw := `diagnosis_category: "SYNTAX", confidence: 0.7 -- not valid json at all {`
	text, recovered, err := recoverJSON(raw, []string{"diagnosis_category", "confidence"})
	require.NoError(t, err)
	assert.True(t, recovered)
	assert.JSONEq(t, `{"diagnosis_category":"SYNTAX","confidence":0.7}`, text)
}

func TestRecoverJSON_AllStagesFail(t *testing.T) {
	_, _, err := recoverJSON("no json anywhere in this reply", []string{"missing_field"})
	require.Error(t, err)
	assert.True(t, coreerrors.Is(err, coreerrors.ErrContract))
}
