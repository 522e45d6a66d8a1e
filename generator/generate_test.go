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
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/aurelius-labs/tutorcore/config"
)

func validExercise(difficulty string) generatedExercise {
	return generatedExercise{
		Title: "t", Description: "d", Difficulty: difficulty,
		Mission: "m", SolutionCode: "sol",
		TestCases: []generatedTestCase{
			{Description: "a", IsHidden: true},
			{Description: "b"},
			{Description: "c"},
		},
	}
}

func mixCfg() config.GeneratorConfig {
	cfg := config.GeneratorConfig{}
	cfg.SetDefaults()
	return cfg
}

func TestValidateAndConvert_WrongCountRejected(t *testing.T) {
	_, err := validateAndConvert([]generatedExercise{validExercise("EASY")}, mixCfg())
	require.Error(t, err)
}

func TestValidateAndConvert_WrongMixRejected(t *testing.T) {
	exercises := make([]generatedExercise, 0, 10)
	for i := 0; i < 10; i++ {
		exercises = append(exercises, validExercise("EASY"))
	}
	_, err := validateAndConvert(exercises, mixCfg())
	require.Error(t, err)
}

func TestValidateAndConvert_CorrectMixAccepted(t *testing.T) {
	var exercises []generatedExercise
	for i := 0; i < 3; i++ {
		exercises = append(exercises, validExercise("EASY"))
	}
	for i := 0; i < 4; i++ {
		exercises = append(exercises, validExercise("MEDIUM"))
	}
	for i := 0; i < 3; i++ {
		exercises = append(exercises, validExercise("HARD"))
	}
	out, err := validateAndConvert(exercises, mixCfg())
	require.NoError(t, err)
	require.Len(t, out, 10)
}

func TestValidateAndConvert_TooFewTestCasesRejected(t *testing.T) {
	ex := validExercise("EASY")
	ex.TestCases = ex.TestCases[:1]
	exercises := []generatedExercise{ex}
	for i := 0; i < 9; i++ {
		exercises = append(exercises, validExercise("EASY"))
	}
	_, err := validateAndConvert(exercises, mixCfg())
	require.Error(t, err)
}

func TestValidateAndConvert_NoHiddenTestCaseRejected(t *testing.T) {
	ex := validExercise("EASY")
	for i := range ex.TestCases {
		ex.TestCases[i].IsHidden = false
	}
	exercises := []generatedExercise{ex}
	for i := 0; i < 9; i++ {
		exercises = append(exercises, validExercise("EASY"))
	}
	_, err := validateAndConvert(exercises, mixCfg())
	require.Error(t, err)
}

func TestNormalizeIndices_NilMeansAll(t *testing.T) {
	indices, err := normalizeIndices(nil, 10)
	require.NoError(t, err)
	require.Len(t, indices, 10)
}

func TestNormalizeIndices_EmptyRejected(t *testing.T) {
	_, err := normalizeIndices([]int{}, 10)
	require.Error(t, err)
}

func TestNormalizeIndices_DuplicateRejected(t *testing.T) {
	_, err := normalizeIndices([]int{1, 1}, 10)
	require.Error(t, err)
}

func TestNormalizeIndices_OutOfRangeRejected(t *testing.T) {
	_, err := normalizeIndices([]int{10}, 10)
	require.Error(t, err)
}

func TestNormalizeIndices_ValidSubsetSorted(t *testing.T) {
	indices, err := normalizeIndices([]int{3, 1, 2}, 10)
	require.NoError(t, err)
	require.Equal(t, []int{1, 2, 3}, indices)
}
