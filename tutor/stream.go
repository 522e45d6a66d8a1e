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

package tutor

import (
	"context"
	"iter"

	"github.com/aurelius-labs/tutorcore/coreerrors"
	"github.com/aurelius-labs/tutorcore/gateway"
)

// StreamDelta is one increment of a streamed tutor reply, or the final
// aggregated TutorReply once the stream closes.
type StreamDelta struct {
	Text  string
	Final *TutorReply
}

// streamAggregator accumulates TokenChunk deltas into a final reply
// string as they arrive, so the full text is available once the stream
// closes.
type streamAggregator struct {
	text string
}

func (a *streamAggregator) processDelta(delta string) string {
	a.text += delta
	return delta
}

func (a *streamAggregator) close() string {
	text := a.text
	a.text = ""
	return text
}

// SendStream runs the same §4.T send algorithm as Send, but streams the
// model's reply as it is produced instead of waiting for the full
// completion. The leakage guard and hint escalation (steps 7-8) can only
// run once the full reply text is known, so they are applied to the
// aggregated text; the adjusted reply is carried only in the terminal
// StreamDelta's Final TutorReply, not re-emitted as a text delta.
func (e *Engine) SendStream(ctx context.Context, sessionID string, in SendInput) iter.Seq2[StreamDelta, error] {
	return func(yield func(StreamDelta, error) bool) {
		lock := e.sessionLock(sessionID)
		lock.Lock()
		defer lock.Unlock()

		prelude, err := e.prepareTurn(ctx, sessionID, in)
		if err != nil {
			yield(StreamDelta{}, err)
			return
		}

		agg := &streamAggregator{}
		degraded := false
		streamErr := false

		for chunk, err := range e.gw.ChatStream(ctx, prelude.system, prelude.user, gateway.Options{Temperature: 0.6}) {
			if err != nil {
				if coreerrors.Is(err, coreerrors.ErrContract) || coreerrors.Is(err, coreerrors.ErrUpstream) {
					streamErr = true
					e.metrics.TutorSends.WithLabelValues("degraded").Inc()
					break
				}
				yield(StreamDelta{}, err)
				return
			}
			if chunk.Delta != "" {
				if !yield(StreamDelta{Text: agg.processDelta(chunk.Delta)}, nil) {
					return
				}
			}
		}

		var reply string
		if streamErr {
			reply = fallbackReply(prelude.sess.Cognitive.Phase)
			degraded = true
			agg.close()
		} else {
			reply = agg.close()
			e.metrics.TutorSends.WithLabelValues("ok").Inc()
		}

		final, err := e.finishTurn(ctx, sessionID, prelude, reply, degraded)
		if err != nil {
			yield(StreamDelta{}, err)
			return
		}
		yield(StreamDelta{Final: &final}, nil)
	}
}
