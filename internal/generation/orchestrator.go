// Package generation drives calibration and the serial page generation loop for one session.
package generation

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/lehigh-university-libraries/scrivener/internal/chunker"
	"github.com/lehigh-university-libraries/scrivener/internal/models"
	"github.com/lehigh-university-libraries/scrivener/internal/style"
)

var (
	ErrBusy              = errors.New("session is busy")
	ErrNotCalibrated     = errors.New("session is not calibrated")
	ErrAlreadyCalibrated = errors.New("session is already calibrated, reset it first")
	ErrEmptyText         = errors.New("no text to write")
	ErrRejected          = errors.New("sample is not recognizable handwriting")
	ErrStale             = errors.New("session was reset while the request was in flight")
)

// User facing messages
const (
	MsgProcessingFailed      = "We couldn't process this file. Please try a different image or document."
	MsgGenerationInterrupted = "Generation was interrupted. The pages finished so far are still available."
)

// StyleAnalyzer derives a profile from a sample
type StyleAnalyzer interface {
	Analyze(ctx context.Context, sample []byte, mediaType string) (models.StyleProfile, error)
}

// PageRenderer renders one chunk of text, returning nil when no image came back
type PageRenderer interface {
	RenderPage(ctx context.Context, reference models.Sample, text string, paper models.PaperType, profile models.StyleProfile, pageIndex, totalPages int) (*models.GeneratedPage, error)
}

// Orchestrator owns one session's state. All mutation goes through the transitions
// in state.go; observers are told about every change.
type Orchestrator struct {
	analyzer StyleAnalyzer
	renderer PageRenderer

	mu    sync.Mutex
	state models.SessionState

	// deliverMu orders event delivery against Reset so observers never see
	// an event from an earlier epoch after the reset event
	deliverMu sync.Mutex

	obsMu     sync.RWMutex
	observers map[int]func(Event)
	nextObs   int
}

// New returns an idle orchestrator
func New(analyzer StyleAnalyzer, renderer PageRenderer) *Orchestrator {
	return &Orchestrator{
		analyzer:  analyzer,
		renderer:  renderer,
		state:     Initial(),
		observers: make(map[int]func(Event)),
	}
}

// State returns a snapshot of the current state
func (o *Orchestrator) State() models.SessionState {
	o.mu.Lock()
	defer o.mu.Unlock()
	return Snapshot(o.state)
}

// Observe registers fn to be called after every state change. The returned func unregisters it.
// fn runs on the goroutine that made the change and must not call back into the orchestrator's
// mutating methods.
func (o *Orchestrator) Observe(fn func(Event)) func() {
	o.obsMu.Lock()
	id := o.nextObs
	o.nextObs++
	o.observers[id] = fn
	o.obsMu.Unlock()

	return func() {
		o.obsMu.Lock()
		delete(o.observers, id)
		o.obsMu.Unlock()
	}
}

// publish delivers e unless the session has moved to a newer epoch since e was built
func (o *Orchestrator) publish(e Event) {
	o.deliverMu.Lock()
	defer o.deliverMu.Unlock()

	o.mu.Lock()
	current := o.state.Epoch
	o.mu.Unlock()
	if e.Epoch != current {
		return
	}
	o.deliver(e)
}

func (o *Orchestrator) deliver(e Event) {
	o.obsMu.RLock()
	fns := make([]func(Event), 0, len(o.observers))
	for _, fn := range o.observers {
		fns = append(fns, fn)
	}
	o.obsMu.RUnlock()

	for _, fn := range fns {
		fn(e)
	}
}

// apply runs a transition if the session is still in epoch. It reports false for stale work.
func (o *Orchestrator) apply(epoch uint64, transition func(models.SessionState) models.SessionState) (models.SessionState, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state.Epoch != epoch {
		return models.SessionState{}, false
	}
	o.state = transition(o.state)
	return Snapshot(o.state), true
}

// Calibrate analyzes a sample. It may be called from idle or error on an uncalibrated session.
// A rejected sample returns ErrRejected with the state holding the user facing reason.
func (o *Orchestrator) Calibrate(ctx context.Context, sample models.Sample) (models.SessionState, error) {
	o.mu.Lock()
	switch {
	case o.state.Status == models.StatusAnalyzing || o.state.Status == models.StatusGenerating:
		o.mu.Unlock()
		return o.State(), ErrBusy
	case o.state.Calibrated:
		o.mu.Unlock()
		return o.State(), ErrAlreadyCalibrated
	}
	o.state = BeginAnalysis(o.state, sample)
	epoch := o.state.Epoch
	snap := Snapshot(o.state)
	o.mu.Unlock()
	o.publish(stateEvent(snap))

	profile, err := o.analyzer.Analyze(ctx, sample.Data, sample.MediaType)
	if err != nil {
		slog.Error("Style analysis failed", "err", err)
		snap, ok := o.apply(epoch, func(s models.SessionState) models.SessionState {
			return AnalysisFailed(s, MsgProcessingFailed)
		})
		if !ok {
			return o.State(), ErrStale
		}
		o.publish(errorEvent(snap))
		return snap, err
	}

	if !profile.IsRecognizable {
		message := style.FailureMessage(profile)
		snap, ok := o.apply(epoch, func(s models.SessionState) models.SessionState {
			return AnalysisRejected(s, message)
		})
		if !ok {
			return o.State(), ErrStale
		}
		o.publish(stateEvent(snap))
		return snap, ErrRejected
	}

	snap, ok := o.apply(epoch, func(s models.SessionState) models.SessionState {
		return AnalysisSucceeded(s, profile)
	})
	if !ok {
		return o.State(), ErrStale
	}
	o.publish(stateEvent(snap))
	return snap, nil
}

// Restore calibrates an idle session from a profile saved by an earlier analysis,
// skipping the remote call. The profile must be recognizable.
func (o *Orchestrator) Restore(sample models.Sample, profile models.StyleProfile) (models.SessionState, error) {
	if !profile.IsRecognizable {
		return o.State(), ErrRejected
	}
	o.mu.Lock()
	switch {
	case o.state.Status == models.StatusAnalyzing || o.state.Status == models.StatusGenerating:
		o.mu.Unlock()
		return o.State(), ErrBusy
	case o.state.Calibrated:
		o.mu.Unlock()
		return o.State(), ErrAlreadyCalibrated
	}
	o.state = AnalysisSucceeded(BeginAnalysis(o.state, sample), profile)
	snap := Snapshot(o.state)
	o.mu.Unlock()

	o.publish(stateEvent(snap))
	return snap, nil
}

type run struct {
	epoch   uint64
	chunks  []string
	paper   models.PaperType
	sample  models.Sample
	profile models.StyleProfile
}

// begin validates a generation request and moves to generating under a single lock
func (o *Orchestrator) begin(text string, paper models.PaperType) (*run, error) {
	o.mu.Lock()
	if o.state.Status == models.StatusAnalyzing || o.state.Status == models.StatusGenerating {
		o.mu.Unlock()
		return nil, ErrBusy
	}
	if !o.state.Calibrated || o.state.Profile == nil || o.state.Sample == nil {
		o.mu.Unlock()
		return nil, ErrNotCalibrated
	}

	chunks := chunker.SplitIntoPages(text)
	if len(chunks) == 0 {
		o.mu.Unlock()
		return nil, ErrEmptyText
	}

	o.state = BeginGeneration(o.state, len(chunks))
	r := &run{
		epoch:   o.state.Epoch,
		chunks:  chunks,
		paper:   paper,
		sample:  *o.state.Sample,
		profile: *o.state.Profile,
	}
	snap := Snapshot(o.state)
	o.mu.Unlock()

	o.publish(stateEvent(snap))
	return r, nil
}

// Generate chunks text and renders every chunk in order, blocking until the run ends.
// The first render error stops the run; pages already produced stay in the state.
func (o *Orchestrator) Generate(ctx context.Context, text string, paper models.PaperType) error {
	r, err := o.begin(text, paper)
	if err != nil {
		return err
	}
	return o.execute(ctx, r)
}

// Start validates like Generate and then runs the loop in the background.
// The run is detached from ctx cancellation so it outlives the request that started it.
func (o *Orchestrator) Start(ctx context.Context, text string, paper models.PaperType) error {
	r, err := o.begin(text, paper)
	if err != nil {
		return err
	}
	go func() {
		if err := o.execute(context.WithoutCancel(ctx), r); err != nil && !errors.Is(err, ErrStale) {
			slog.Error("Generation stopped", "err", err)
		}
	}()
	return nil
}

func (o *Orchestrator) execute(ctx context.Context, r *run) error {
	total := len(r.chunks)
	slog.Info("Starting generation", "pages", total, "paper", r.paper)

	for i, chunk := range r.chunks {
		index := i + 1
		snap, ok := o.apply(r.epoch, func(s models.SessionState) models.SessionState {
			return PageStarted(s, index)
		})
		if !ok {
			return ErrStale
		}
		o.publish(stateEvent(snap))

		page, err := o.renderer.RenderPage(ctx, r.sample, chunk, r.paper, r.profile, index, total)
		if err != nil {
			snap, ok := o.apply(r.epoch, func(s models.SessionState) models.SessionState {
				return GenerationInterrupted(s, MsgGenerationInterrupted)
			})
			if !ok {
				return ErrStale
			}
			o.publish(errorEvent(snap))
			return err
		}

		if page == nil {
			slog.Warn("Skipping page without image", "page", index, "total", total)
			continue
		}

		completed := *page
		completed.Index = index
		snap, ok = o.apply(r.epoch, func(s models.SessionState) models.SessionState {
			return PageCompleted(s, completed)
		})
		if !ok {
			return ErrStale
		}
		o.publish(pageEvent(snap, completed))
	}

	snap, ok := o.apply(r.epoch, GenerationFinished)
	if !ok {
		return ErrStale
	}
	slog.Info("Generation finished", "pages", len(snap.Pages), "chunks", total)
	o.publish(doneEvent(snap))
	return nil
}

// Reset clears the session from any state. Work still in flight finishes but its
// results are discarded.
func (o *Orchestrator) Reset() models.SessionState {
	o.deliverMu.Lock()
	defer o.deliverMu.Unlock()

	o.mu.Lock()
	o.state = Reset(o.state)
	snap := Snapshot(o.state)
	o.mu.Unlock()

	o.deliver(Event{Type: EventReset, Status: snap.Status, Progress: snap.Progress, Epoch: snap.Epoch})
	return snap
}
