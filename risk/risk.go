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

// Package risk declares the external risk-signal source the analyst
// consults (§6.6). The Analyst never computes a risk score or level
// itself — it is supplied, not derived.
package risk

import (
	"context"
	"time"
)

// Signal is a point-in-time risk reading for a student, optionally scoped
// to an activity.
type Signal struct {
	Score     float64 // [0,1]
	Level     string  // LOW, MEDIUM, HIGH, CRITICAL
	AsOf      time.Time
}

// Source supplies a current risk Signal for a (student_id, activity_id?)
// pair.
type Source interface {
	Current(ctx context.Context, studentID string, activityID *string) (Signal, error)
}
