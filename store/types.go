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

// Package store is the append-only SQL-backed trace & job store (§4.X):
// GenerationJobs, TutorSessions, Messages, and PedagogicalAudits.
//
// A dialect-aware *sql.DB wrapper, with per-statement schema creation for
// SQLite compatibility and ?-to-$N placeholder conversion for postgres.
package store

import "time"

// JobPhase is a GenerationJob's position in the generator state machine.
type JobPhase string

const (
	JobIngesting      JobPhase = "INGESTING"
	JobGenerating     JobPhase = "GENERATING"
	JobAwaitingReview JobPhase = "AWAITING_REVIEW"
	JobPublishing     JobPhase = "PUBLISHING"
	JobPublished      JobPhase = "PUBLISHED"
	JobFailed         JobPhase = "FAILED"
)

// Difficulty is a DraftExercise's difficulty tag.
type Difficulty string

const (
	Easy   Difficulty = "EASY"
	Medium Difficulty = "MEDIUM"
	Hard   Difficulty = "HARD"
)

// Requirements is the teacher-declared shape of a generation request.
type Requirements struct {
	Topic            string   `json:"topic"`
	Language         string   `json:"language"`
	Concepts         []string `json:"concepts"`
	TargetCount      int      `json:"target_count"`
	EstimatedMinutes int      `json:"estimated_minutes"`
}

// TestCase is one exercise test case.
type TestCase struct {
	Ordinal        int    `json:"ordinal"`
	Description    string `json:"description"`
	Input          []byte `json:"input"`
	ExpectedOutput []byte `json:"expected_output"`
	IsHidden       bool   `json:"is_hidden"`
	TimeoutMs      int    `json:"timeout_ms"`
}

// DraftExercise is one not-yet-published exercise produced by the generator.
type DraftExercise struct {
	Title              string     `json:"title"`
	Description        string     `json:"description"`
	Difficulty         Difficulty `json:"difficulty"`
	Mission            string     `json:"mission"`
	StarterCode        string     `json:"starter_code"`
	SolutionCode       string     `json:"solution_code"`
	Concepts           []string   `json:"concepts"`
	LearningObjectives []string   `json:"learning_objectives"`
	TestCases          []TestCase `json:"test_cases"`
	EstimatedMinutes   int        `json:"estimated_minutes"`
}

// GenerationJob is a teacher-initiated exercise-generation workflow.
type GenerationJob struct {
	JobID        string
	TeacherID    string
	CourseID     string
	Requirements Requirements
	CollectionKey string
	Phase        JobPhase
	Draft        []DraftExercise
	Error        string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Sender identifies the author of a Message.
type Sender string

const (
	SenderStudent Sender = "STUDENT"
	SenderTutor   Sender = "TUTOR"
)

// Phase is a TutorSession's position in the 7-phase cognitive framework.
type Phase string

const (
	PhaseExploration   Phase = "EXPLORATION"
	PhaseDecomposition Phase = "DECOMPOSITION"
	PhasePlanning      Phase = "PLANNING"
	PhaseImplementation Phase = "IMPLEMENTATION"
	PhaseDebugging     Phase = "DEBUGGING"
	PhaseValidation    Phase = "VALIDATION"
	PhaseReflection    Phase = "REFLECTION"
)

// CognitiveState tracks a student's progress through a TutorSession.
type CognitiveState struct {
	Phase             Phase   `json:"phase"`
	Frustration       float64 `json:"frustration"`
	Understanding     float64 `json:"understanding"`
	HintCountInPhase  int     `json:"hint_count_in_phase"`
	TotalInteractions int     `json:"total_interactions"`
}

// StarterContext is the activity snapshot taken when a session opens.
type StarterContext struct {
	Instructions    string   `json:"instructions"`
	ExpectedConcepts []string `json:"expected_concepts"`
	StarterCode     string   `json:"starter_code"`
}

// TutorSession is a per-(student, activity) conversational state machine.
type TutorSession struct {
	SessionID   string
	StudentID   string
	ActivityID  string
	CourseID    string
	Starter     StarterContext
	Cognitive   CognitiveState
	IsActive    bool
	CreatedAt   time.Time
	EndedAt     *time.Time
}

// ErrorContext is structured information about a student-reported error.
type ErrorContext struct {
	Message string `json:"message"`
	Kind    string `json:"kind,omitempty"`
}

// Message is one turn in a TutorSession's history. Immutable after write.
type Message struct {
	MessageID     string
	SessionID     string
	Sender        Sender
	Content       string
	CodeSnapshot  *string
	ErrorContext  *ErrorContext
	Phase         Phase
	Frustration   float64
	Understanding float64
	Degraded      bool
	CreatedAt     time.Time
}

// RiskLevel buckets a PedagogicalAudit's risk score.
type RiskLevel string

const (
	RiskLow      RiskLevel = "LOW"
	RiskMedium   RiskLevel = "MEDIUM"
	RiskHigh     RiskLevel = "HIGH"
	RiskCritical RiskLevel = "CRITICAL"
)

// DiagnosisCategory classifies a PedagogicalAudit's finding.
type DiagnosisCategory string

const (
	DiagnosisSyntax            DiagnosisCategory = "SYNTAX"
	DiagnosisLogic             DiagnosisCategory = "LOGIC"
	DiagnosisConceptual        DiagnosisCategory = "CONCEPTUAL"
	DiagnosisCognitiveOverload DiagnosisCategory = "COGNITIVE_OVERLOAD"
	DiagnosisBehavioral        DiagnosisCategory = "BEHAVIORAL"
)

// AuditStatus is a PedagogicalAudit's terminal outcome.
type AuditStatus string

const (
	AuditCompleted AuditStatus = "COMPLETED"
	AuditFailed    AuditStatus = "FAILED"
)

// PedagogicalAudit is the Analyst's diagnosis of a struggling student.
type PedagogicalAudit struct {
	AnalysisID      string
	StudentID       string
	ActivityID      *string
	RiskScore       float64
	RiskLevel       RiskLevel
	DiagnosisCategory DiagnosisCategory
	Diagnosis       string
	EvidenceQuotes  []string
	Intervention    string
	Confidence      float64
	Status          AuditStatus
	FailureReason   string
	CreatedAt       time.Time
}
