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

import "context"

// Static is a reference Source for tests: it always returns the same
// signal, not a production integration.
type Static struct {
	Signal Signal
}

// Current implements Source.
func (s Static) Current(ctx context.Context, studentID string, activityID *string) (Signal, error) {
	return s.Signal, nil
}

var _ Source = Static{}
