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

// Package tutor implements the tutor session engine (§4.T): a per-session
// Socratic, RAG-grounded, affect-aware conversational state machine.
package tutor

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/aurelius-labs/tutorcore/config"
	"github.com/aurelius-labs/tutorcore/coreerrors"
	"github.com/aurelius-labs/tutorcore/gateway"
	"github.com/aurelius-labs/tutorcore/observability"
	"github.com/aurelius-labs/tutorcore/rag"
	"github.com/aurelius-labs/tutorcore/store"
)

// TutorReply is what Send/SendStream returns to callers.
type TutorReply struct {
	MessageID     string
	Content       string
	Phase         store.Phase
	Frustration   float64
	Understanding float64
	Degraded      bool
}

// Engine is the tutor session collaborator.
type Engine struct {
	store   *store.Store
	gw      *gateway.Gateway
	rag     *rag.Substrate
	cfg     config.TutorConfig
	lexicon Lexicon
	log     *slog.Logger
	metrics *observability.Metrics

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex
}

// New builds an Engine from its collaborators and the default Lexicon.
func New(st *store.Store, gw *gateway.Gateway, substrate *rag.Substrate, cfg config.TutorConfig, log *slog.Logger, metrics *observability.Metrics) *Engine {
	return &Engine{
		store: st, gw: gw, rag: substrate, cfg: cfg, lexicon: DefaultLexicon(),
		log: log, metrics: metrics, locks: make(map[string]*sync.Mutex),
	}
}

func newID(prefix string) string {
	return fmt.Sprintf("%s-%s", prefix, uuid.NewString())
}

// sessionLock serializes send calls on the same session; distinct
// sessions run in parallel subject only to the gateway's global cap
// (§4.T Concurrency).
func (e *Engine) sessionLock(sessionID string) *sync.Mutex {
	e.locksMu.Lock()
	defer e.locksMu.Unlock()
	l, ok := e.locks[sessionID]
	if !ok {
		l = &sync.Mutex{}
		e.locks[sessionID] = l
	}
	return l
}

// Open creates a session, snapshots the activity context, and emits an
// opening TUTOR question (§4.T open).
func (e *Engine) Open(ctx context.Context, studentID, activityID, courseID string, starter store.StarterContext) (string, error) {
	now := time.Now()
	sessionID := newID("sess")
	sess := &store.TutorSession{
		SessionID:  sessionID,
		StudentID:  studentID,
		ActivityID: activityID,
		CourseID:   courseID,
		Starter:    starter,
		Cognitive: store.CognitiveState{
			Phase: store.PhaseExploration, Frustration: 0.0, Understanding: 0.5,
		},
		IsActive:  true,
		CreatedAt: now,
	}
	if err := e.store.SaveSession(ctx, sess); err != nil {
		return "", err
	}
	e.metrics.TutorSessionsTotal.Inc()

	opening := fallbackReply(store.PhaseExploration)
	msg := &store.Message{
		MessageID: newID("msg"), SessionID: sessionID, Sender: store.SenderTutor,
		Content: opening, Phase: store.PhaseExploration,
		Frustration: 0.0, Understanding: 0.5, CreatedAt: time.Now(),
	}
	if err := e.store.AppendMessage(ctx, msg); err != nil {
		return "", err
	}
	return sessionID, nil
}

// History returns the last limit Messages for sessionID, newest-last
// (§4.T history).
func (e *Engine) History(ctx context.Context, sessionID string, limit int) ([]store.Message, error) {
	return e.store.History(ctx, sessionID, limit)
}

// Close transitions a session to inactive; further Send calls fail with
// ErrClosed (§4.T close).
func (e *Engine) Close(ctx context.Context, sessionID, reason string) error {
	sess, err := e.store.GetSession(ctx, sessionID)
	if err != nil {
		return err
	}
	now := time.Now()
	sess.IsActive = false
	sess.EndedAt = &now
	return e.store.SaveSession(ctx, sess)
}

// SendInput bundles the per-turn signals a caller supplies to Send.
type SendInput struct {
	StudentMessage string
	CurrentCode    string
	ErrorContext   *store.ErrorContext
	TestsRun       bool
	TestsPassed    bool
	RequestBack    bool
}

// turnPrelude holds what Steps 1-5 produce: the prompts to send the model
// and the session state (with affect/phase already advanced) needed to
// finish the turn once a reply text is in hand.
type turnPrelude struct {
	sess    *store.TutorSession
	system  string
	user    string
}

// prepareTurn runs §4.T send steps 1-5: append the student message, run
// the RAG query, update affect, transition phase, and build prompts.
func (e *Engine) prepareTurn(ctx context.Context, sessionID string, in SendInput) (*turnPrelude, error) {
	sess, err := e.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !sess.IsActive {
		return nil, coreerrors.New(coreerrors.ErrClosed, "tutor: session is closed: "+sessionID)
	}

	history, err := e.store.History(ctx, sessionID, e.cfg.HistoryWindow)
	if err != nil {
		return nil, err
	}
	if e.cfg.InactivityGraceMin > 0 && len(history) > 0 {
		last := history[len(history)-1]
		if time.Since(last.CreatedAt) > time.Duration(e.cfg.InactivityGraceMin)*time.Minute {
			_ = e.Close(ctx, sessionID, "inactivity")
			return nil, coreerrors.New(coreerrors.ErrClosed, "tutor: session closed for inactivity: "+sessionID)
		}
	}

	priorCode := lastStudentCode(history)

	studentMsg := &store.Message{
		MessageID: newID("msg"), SessionID: sessionID, Sender: store.SenderStudent,
		Content: in.StudentMessage, ErrorContext: in.ErrorContext, Phase: sess.Cognitive.Phase,
		Frustration: sess.Cognitive.Frustration, Understanding: sess.Cognitive.Understanding,
		CreatedAt: time.Now(),
	}
	if in.CurrentCode != "" {
		code := in.CurrentCode
		studentMsg.CodeSnapshot = &code
	}
	if err := e.store.AppendMessage(ctx, studentMsg); err != nil {
		return nil, err
	}

	queryText := in.StudentMessage
	if priorCode != "" {
		queryText += " " + priorCode
	}
	chunks, err := e.rag.Query(ctx, ragCollectionKey(sess), queryText, e.cfg.RetrievalTopK)
	if err != nil && !coreerrors.Is(err, coreerrors.ErrNotFound) {
		return nil, err
	}

	sig := turnSignal{
		Message: in.StudentMessage, CurrentCode: in.CurrentCode, PriorCode: priorCode,
		ErrorContext: in.ErrorContext, TestsRun: in.TestsRun, TestsPassed: in.TestsPassed,
		RequestBack: in.RequestBack, RepeatedError: repeatsLastError(history, in.ErrorContext),
	}
	newConcept := firstMentionOfExpectedConcept(in.StudentMessage, sess.Starter.ExpectedConcepts, history)
	restatesConfusion := restatesResolvedConfusion(history, in.StudentMessage, e.lexicon)
	sess.Cognitive = updateAffect(sess.Cognitive, e.cfg, e.lexicon, sig, newConcept, restatesConfusion)

	next := nextPhase(sess.Cognitive.Phase, e.lexicon, sig)
	if next != sess.Cognitive.Phase {
		sess.Cognitive.Phase = next
		sess.Cognitive.HintCountInPhase = 0
	}

	return &turnPrelude{
		sess:   sess,
		system: buildSystemPrompt(),
		user:   buildUserPrompt(sess.Cognitive, history, in.CurrentCode, chunks, in.StudentMessage),
	}, nil
}

// finishTurn runs §4.T send steps 7-9: the leakage guard, hint
// escalation, and persisting the TUTOR message and session state.
func (e *Engine) finishTurn(ctx context.Context, sessionID string, prelude *turnPrelude, reply string, degraded bool) (TutorReply, error) {
	sess := prelude.sess

	fullHistory, err := e.store.History(ctx, sessionID, 0)
	if err != nil {
		return TutorReply{}, err
	}
	used := cumulativeFenceSpend(fullHistory)
	remaining := e.cfg.CodeFenceBudget - used
	if remaining < 0 {
		remaining = 0
	}
	reply, _ = stripLongFences(reply, e.cfg.CodeFenceLineCap, remaining)

	sess.Cognitive.TotalInteractions++
	if containsHintVerb(reply, e.lexicon) {
		sess.Cognitive.HintCountInPhase++
	}
	if sess.Cognitive.HintCountInPhase >= e.cfg.HintEscalationAt {
		reply += escalationSuffix(sess.Cognitive.HintCountInPhase)
	}

	tutorMsg := &store.Message{
		MessageID: newID("msg"), SessionID: sessionID, Sender: store.SenderTutor,
		Content: reply, Phase: sess.Cognitive.Phase, Frustration: sess.Cognitive.Frustration,
		Understanding: sess.Cognitive.Understanding, Degraded: degraded, CreatedAt: time.Now(),
	}
	if err := e.store.AppendMessage(ctx, tutorMsg); err != nil {
		return TutorReply{}, err
	}
	if err := e.store.SaveSession(ctx, sess); err != nil {
		return TutorReply{}, err
	}

	return TutorReply{
		MessageID: tutorMsg.MessageID, Content: reply, Phase: sess.Cognitive.Phase,
		Frustration: sess.Cognitive.Frustration, Understanding: sess.Cognitive.Understanding,
		Degraded: degraded,
	}, nil
}

// Send runs the full §4.T `send` algorithm and returns the tutor's reply.
func (e *Engine) Send(ctx context.Context, sessionID string, in SendInput) (TutorReply, error) {
	lock := e.sessionLock(sessionID)
	lock.Lock()
	defer lock.Unlock()

	prelude, err := e.prepareTurn(ctx, sessionID, in)
	if err != nil {
		return TutorReply{}, err
	}

	degraded := false
	var reply string
	result, callErr := e.gw.Chat(ctx, prelude.system, prelude.user, gateway.Options{Temperature: 0.6})
	if callErr != nil {
		if coreerrors.Is(callErr, coreerrors.ErrContract) || coreerrors.Is(callErr, coreerrors.ErrUpstream) {
			reply = fallbackReply(prelude.sess.Cognitive.Phase)
			degraded = true
			e.metrics.TutorSends.WithLabelValues("degraded").Inc()
		} else {
			return TutorReply{}, callErr
		}
	} else {
		reply = result.Text
		e.metrics.TutorSends.WithLabelValues("ok").Inc()
	}

	return e.finishTurn(ctx, sessionID, prelude, reply, degraded)
}

func ragCollectionKey(sess *store.TutorSession) string {
	return fmt.Sprintf("course:%s:activity:%s", sess.CourseID, sess.ActivityID)
}

func lastStudentCode(history []store.Message) string {
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Sender == store.SenderStudent && history[i].CodeSnapshot != nil {
			return *history[i].CodeSnapshot
		}
	}
	return ""
}

// firstMentionOfExpectedConcept reports whether message is the first turn
// to mention any concept from expected, per §4.T step 3.
func firstMentionOfExpectedConcept(message string, expected []string, history []store.Message) bool {
	for _, concept := range expected {
		if !mentionsConcept(message, concept) {
			continue
		}
		alreadyMentioned := false
		for _, m := range history {
			if m.Sender == store.SenderStudent && mentionsConcept(m.Content, concept) {
				alreadyMentioned = true
				break
			}
		}
		if !alreadyMentioned {
			return true
		}
	}
	return false
}

func cumulativeFenceSpend(history []store.Message) int {
	total := 0
	for _, m := range history {
		if m.Sender == store.SenderTutor {
			total += countFenceLines(m.Content)
		}
	}
	return total
}
