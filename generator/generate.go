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
	"encoding/json"
	"fmt"
	"strings"

	"github.com/invopop/jsonschema"

	"github.com/aurelius-labs/tutorcore/config"
	"github.com/aurelius-labs/tutorcore/coreerrors"
	"github.com/aurelius-labs/tutorcore/gateway"
	"github.com/aurelius-labs/tutorcore/store"
)

// exerciseSchemaDoc is a JSON Schema describing one draft exercise, used
// both to instruct the model and to hand the gateway's field-regex
// recovery stage a machine-checkable set of required field names.
var exerciseSchemaDoc string

func init() {
	reflector := &jsonschema.Reflector{DoNotReference: true}
	schema := reflector.Reflect(&generatedExercise{})
	b, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		panic(err)
	}
	exerciseSchemaDoc = string(b)
}

// generatedExercise is the model-facing exercise shape; jsonschema tags
// drive exerciseSchemaDoc, and json tags drive response decoding.
type generatedExercise struct {
	Title              string            `json:"title" jsonschema:"required"`
	Description        string            `json:"description" jsonschema:"required"`
	Difficulty         string            `json:"difficulty" jsonschema:"required,enum=EASY,enum=MEDIUM,enum=HARD"`
	Mission            string            `json:"mission" jsonschema:"required"`
	StarterCode        string            `json:"starter_code"`
	SolutionCode       string            `json:"solution_code" jsonschema:"required"`
	Concepts           []string          `json:"concepts"`
	LearningObjectives []string          `json:"learning_objectives"`
	TestCases          []generatedTestCase `json:"test_cases" jsonschema:"required"`
	EstimatedMinutes   int               `json:"estimated_minutes"`
}

type generatedTestCase struct {
	Description    string `json:"description"`
	Input          string `json:"input"`
	ExpectedOutput string `json:"expected_output"`
	IsHidden       bool   `json:"is_hidden"`
	TimeoutMs      int    `json:"timeout_ms"`
}

type generationResponse struct {
	Exercises []generatedExercise `json:"exercises"`
}

var requiredFields = []string{"exercises", "title", "difficulty", "mission", "solution_code", "test_cases"}

// generate runs the generation contract (§4.J): build the RAG excerpt at
// excerptScale (1.0 full, 0.5 halved on retry), call the gateway expecting
// strict JSON, and validate the exact-10/fixed-mix shape. On ErrContract
// it retries once with a halved excerpt before surfacing the error for
// the caller to transition the job to FAILED.
func (e *Engine) generate(ctx context.Context, job *store.GenerationJob, excerptScale float64) ([]store.DraftExercise, error) {
	draft, err := e.attemptGenerate(ctx, job, excerptScale, false)
	if err == nil {
		return draft, nil
	}
	if !coreerrors.Is(err, coreerrors.ErrContract) {
		return nil, err
	}
	e.log.Warn("generator: generation contract failed, retrying with narrowed context", "job_id", job.JobID)
	return e.attemptGenerate(ctx, job, excerptScale/2, true)
}

func (e *Engine) attemptGenerate(ctx context.Context, job *store.GenerationJob, excerptScale float64, emphatic bool) ([]store.DraftExercise, error) {
	excerpt, err := e.buildExcerpt(ctx, job, excerptScale)
	if err != nil {
		return nil, err
	}

	system := "You are a domain professor writing programming exercises. " +
		"You produce exercises strictly from the supplied course material; you never invent facts not grounded in it."
	user := e.buildUserPrompt(job, excerpt, emphatic)

	result, err := e.gw.Chat(ctx, system, user, gateway.Options{
		Temperature:    0.7,
		ExpectJSON:     true,
		JSONSchemaHint: strings.Join(requiredFields, ","),
	})
	if err != nil {
		return nil, err
	}

	var resp generationResponse
	if err := json.Unmarshal([]byte(result.Text), &resp); err != nil {
		return nil, coreerrors.Wrap(coreerrors.ErrContract, "generator: failed to decode generation response", err)
	}

	return validateAndConvert(resp.Exercises, e.cfg)
}

func (e *Engine) buildUserPrompt(job *store.GenerationJob, excerpt string, emphatic bool) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Topic: %s\nLanguage: %s\nConcepts: %s\n",
		job.Requirements.Topic, job.Requirements.Language, strings.Join(job.Requirements.Concepts, ", "))
	fmt.Fprintf(&b, "Produce exactly %d exercises: %d EASY, %d MEDIUM, %d HARD.\n",
		e.cfg.TargetCount, e.cfg.EasyCount, e.cfg.MediumCount, e.cfg.HardCount)
	b.WriteString("Course material excerpts:\n")
	b.WriteString(excerpt)
	b.WriteString("\n\nEach exercise must match this JSON Schema:\n")
	b.WriteString(exerciseSchemaDoc)
	b.WriteString("\n\nRespond with a single JSON object: {\"exercises\": [...]}. Strict JSON only, no prose.")
	if emphatic {
		b.WriteString("\n\nJSON ONLY. Your entire response must be a single valid JSON object and nothing else.")
	}
	return b.String()
}

// buildExcerpt runs k ≈ RetrievalQueries queries (topic + each concept)
// against the job's collection, concatenating the top chunks deduplicated
// by chunk ordinal, then truncating to scale (§4.J generation contract).
func (e *Engine) buildExcerpt(ctx context.Context, job *store.GenerationJob, scale float64) (string, error) {
	queries := append([]string{job.Requirements.Topic}, job.Requirements.Concepts...)
	if len(queries) > e.cfg.RetrievalQueries {
		queries = queries[:e.cfg.RetrievalQueries]
	}

	seen := make(map[int]bool)
	var ordered []string
	for _, query := range queries {
		chunks, err := e.rag.Query(ctx, job.CollectionKey, query, e.cfg.RetrievalTopK)
		if err != nil {
			return "", err
		}
		for _, c := range chunks {
			if seen[c.Ordinal] {
				continue
			}
			seen[c.Ordinal] = true
			ordered = append(ordered, c.Content)
		}
	}

	total := len(ordered)
	if scale < 1.0 {
		total = int(float64(total) * scale)
	}
	if total < 1 && len(ordered) > 0 {
		total = 1
	}
	return strings.Join(ordered[:total], "\n---\n"), nil
}

// validateAndConvert enforces the exact-count/fixed-mix generation
// contract and converts to the store's persistence shape.
func validateAndConvert(exercises []generatedExercise, cfg config.GeneratorConfig) ([]store.DraftExercise, error) {
	if len(exercises) != cfg.TargetCount {
		return nil, coreerrors.New(coreerrors.ErrContract, fmt.Sprintf("generator: expected %d exercises, got %d", cfg.TargetCount, len(exercises)))
	}

	counts := map[string]int{}
	out := make([]store.DraftExercise, len(exercises))
	for i, ex := range exercises {
		diff := strings.ToUpper(ex.Difficulty)
		counts[diff]++
		if len(ex.TestCases) < 3 {
			return nil, coreerrors.New(coreerrors.ErrContract, fmt.Sprintf("generator: exercise %q has fewer than 3 test cases", ex.Title))
		}
		hidden := 0
		for _, tc := range ex.TestCases {
			if tc.IsHidden {
				hidden++
			}
		}
		if hidden < 1 {
			return nil, coreerrors.New(coreerrors.ErrContract, fmt.Sprintf("generator: exercise %q has no hidden test case", ex.Title))
		}
		tests := make([]store.TestCase, len(ex.TestCases))
		for j, tc := range ex.TestCases {
			tests[j] = store.TestCase{
				Ordinal: j, Description: tc.Description,
				Input: []byte(tc.Input), ExpectedOutput: []byte(tc.ExpectedOutput),
				IsHidden: tc.IsHidden, TimeoutMs: tc.TimeoutMs,
			}
		}
		out[i] = store.DraftExercise{
			Title: ex.Title, Description: ex.Description, Difficulty: store.Difficulty(diff),
			Mission: ex.Mission, StarterCode: ex.StarterCode, SolutionCode: ex.SolutionCode,
			Concepts: ex.Concepts, LearningObjectives: ex.LearningObjectives,
			TestCases: tests, EstimatedMinutes: ex.EstimatedMinutes,
		}
	}

	if counts["EASY"] != cfg.EasyCount || counts["MEDIUM"] != cfg.MediumCount || counts["HARD"] != cfg.HardCount {
		return nil, coreerrors.New(coreerrors.ErrContract, fmt.Sprintf(
			"generator: difficulty mix %d/%d/%d does not match required %d/%d/%d",
			counts["EASY"], counts["MEDIUM"], counts["HARD"], cfg.EasyCount, cfg.MediumCount, cfg.HardCount))
	}
	return out, nil
}
