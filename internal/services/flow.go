package services

import (
	"sync"
	"time"
)

// View is a top-level screen of the respondent journey.
type View string

const (
	ViewWelcome   View = "welcome"
	ViewLogin     View = "login"
	ViewRegister  View = "register"
	ViewInterests View = "interests"
	ViewTutorial  View = "tutorial"
	ViewQuiz      View = "quiz"
	ViewResult    View = "result"
)

// Scheduler runs fn once after d. The flow uses it for every timed phase so
// tests can drive transitions without real timers.
type Scheduler interface {
	After(d time.Duration, fn func())
}

// TimerScheduler is the production Scheduler.
type TimerScheduler struct{}

func (TimerScheduler) After(d time.Duration, fn func()) { time.AfterFunc(d, fn) }

// Timed phase durations. The guards exist because two of these could
// otherwise race against the same step index.
const (
	confirmDelay  = 350 * time.Millisecond
	advanceDelay  = 250 * time.Millisecond
	progressPause = 600 * time.Millisecond
	revealDelay   = 900 * time.Millisecond
)

// Flow sequences one respondent through the journey
// welcome -> {login|register} -> interests -> tutorial -> quiz -> result,
// with a chat overlay reachable only from result.
//
// While any of the three guards is set, answer selection and manual
// navigation are no-ops. That is the correctness property of the quiz: every
// item is scored with exactly the value of the last accepted click before
// the guards next clear.
type Flow struct {
	mu         sync.Mutex
	view       View
	step       int
	answers    AnswerSet
	confirming bool
	advancing  bool
	finalizing bool
	chatOpen   bool
	result     *TypologyResult

	sched  Scheduler
	commit func(AnswerSet)
}

// FlowState is a point-in-time snapshot handed to callers.
type FlowState struct {
	View       View `json:"view"`
	Step       int  `json:"step"`
	Answered   int  `json:"answered"`
	Confirming bool `json:"confirming"`
	Advancing  bool `json:"advancing"`
	Finalizing bool `json:"finalizing"`
	ChatOpen   bool `json:"chat_open"`
}

// NewFlow creates a flow at the welcome view. commit is invoked exactly once,
// from the finalizing phase, with a snapshot of the full answer set; its
// outcome never blocks or wedges the transition to result.
func NewFlow(sched Scheduler, commit func(AnswerSet)) *Flow {
	if sched == nil {
		sched = TimerScheduler{}
	}
	return &Flow{
		view:    ViewWelcome,
		answers: AnswerSet{},
		sched:   sched,
		commit:  commit,
	}
}

func (f *Flow) State() FlowState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return FlowState{
		View:       f.view,
		Step:       f.step,
		Answered:   len(f.answers),
		Confirming: f.confirming,
		Advancing:  f.advancing,
		Finalizing: f.finalizing,
		ChatOpen:   f.chatOpen,
	}
}

// Result returns the committed typology result, or nil before finalizing ran.
func (f *Flow) Result() *TypologyResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.result
}

// Answers returns a copy of the recorded answers.
func (f *Flow) Answers() AnswerSet {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(AnswerSet, len(f.answers))
	for k, v := range f.answers {
		out[k] = v
	}
	return out
}

// legal view transitions outside the quiz
var viewEdges = map[View][]View{
	ViewWelcome:   {ViewLogin, ViewRegister},
	ViewLogin:     {ViewWelcome, ViewRegister, ViewInterests, ViewResult},
	ViewRegister:  {ViewWelcome, ViewLogin, ViewInterests},
	ViewInterests: {ViewTutorial},
	ViewTutorial:  {ViewQuiz},
}

// Goto moves between top-level views. Entering the quiz resets nothing:
// a session resumed mid-quiz keeps its answers and step. Returns false for
// an illegal edge.
func (f *Flow) Goto(v View) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, next := range viewEdges[f.view] {
		if next == v {
			f.view = v
			return true
		}
	}
	return false
}

// Resume places a previously completed session directly at the result view.
func (f *Flow) Resume(r TypologyResult) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.result = &r
	f.view = ViewResult
}

// OpenChat raises the chat overlay; it is reachable only from result.
func (f *Flow) OpenChat() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.view != ViewResult {
		return false
	}
	f.chatOpen = true
	return true
}

func (f *Flow) CloseChat() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.chatOpen = false
}

func (f *Flow) guarded() bool { return f.confirming || f.advancing || f.finalizing }

// Answer records magnitude for the item at the current step. Rapid repeated
// input while a guard is set is an idempotent no-op. Answering the last item
// for the first time starts the commit sequence; re-answering it only
// re-records the value with the confirm highlight.
func (f *Flow) Answer(magnitude int) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.view != ViewQuiz || f.guarded() || f.result != nil {
		return false
	}
	if magnitude < 1 || magnitude > 5 {
		return false
	}
	item := QuizItems[f.step]
	_, answered := f.answers[item.ID]
	f.answers[item.ID] = magnitude

	if f.step == len(QuizItems)-1 {
		if answered {
			// revisit: highlight only, never a second commit
			f.confirming = true
			f.sched.After(confirmDelay, func() {
				f.mu.Lock()
				f.confirming = false
				f.mu.Unlock()
			})
			return true
		}
		f.startCommitLocked()
		return true
	}
	f.startAdvanceLocked()
	return true
}

// Next moves forward manually. On the last item it routes through the same
// commit sequence as answer selection; there is deliberately no second path
// to result.
func (f *Flow) Next() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.view != ViewQuiz || f.guarded() || f.result != nil {
		return false
	}
	if _, ok := f.answers[QuizItems[f.step].ID]; !ok {
		return false
	}
	if f.step == len(QuizItems)-1 {
		f.startCommitLocked()
		return true
	}
	f.startAdvanceLocked()
	return true
}

// Back decrements the step with the advancing delay. Not accepted at step 0
// or while any guard is set.
func (f *Flow) Back() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.view != ViewQuiz || f.guarded() || f.step == 0 {
		return false
	}
	f.advancing = true
	f.step--
	f.sched.After(advanceDelay, func() {
		f.mu.Lock()
		f.advancing = false
		f.mu.Unlock()
	})
	return true
}

// startAdvanceLocked runs the two-phase inter-question transition:
// confirming for confirmDelay, then advancing while the step increments,
// then both clear.
func (f *Flow) startAdvanceLocked() {
	f.confirming = true
	f.sched.After(confirmDelay, func() {
		f.mu.Lock()
		f.confirming = false
		f.advancing = true
		f.step++
		f.mu.Unlock()
		f.sched.After(advanceDelay, func() {
			f.mu.Lock()
			f.advancing = false
			f.mu.Unlock()
		})
	})
}

// startCommitLocked runs the multi-phase commit for the final item:
// confirm highlight, saturated progress pause, then finalizing. Scoring runs
// synchronously inside the finalizing phase; the commit callback is fired
// and forgotten so a failing persist can never hold the finalizing guard.
func (f *Flow) startCommitLocked() {
	f.confirming = true
	f.sched.After(confirmDelay, func() {
		// confirming stays up through the saturated-progress pause so no
		// input can slip in between the two phases
		f.sched.After(progressPause, func() {
			f.mu.Lock()
			f.confirming = false
			f.finalizing = true
			res := ComputeType(f.answers)
			f.result = &res
			snapshot := make(AnswerSet, len(f.answers))
			for k, v := range f.answers {
				snapshot[k] = v
			}
			commit := f.commit
			f.mu.Unlock()
			if commit != nil {
				go commit(snapshot)
			}
			f.sched.After(revealDelay, func() {
				f.mu.Lock()
				f.view = ViewResult
				f.finalizing = false
				f.mu.Unlock()
			})
		})
	})
}
