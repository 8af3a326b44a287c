package generation

import (
	"slices"

	"github.com/lehigh-university-libraries/scrivener/internal/models"
)

// Transitions are pure: each takes a state value and returns the next one.
// Slices are cloned so a state handed out earlier never changes underneath its holder.

// Initial is the state of a brand new session
func Initial() models.SessionState {
	return models.SessionState{Status: models.StatusIdle, Pages: []models.GeneratedPage{}}
}

// BeginAnalysis records the uploaded sample and enters analyzing
func BeginAnalysis(s models.SessionState, sample models.Sample) models.SessionState {
	s.Status = models.StatusAnalyzing
	s.Sample = &sample
	s.Profile = nil
	s.Calibrated = false
	s.Message = ""
	s.Pages = slices.Clone(s.Pages)
	return s
}

// AnalysisSucceeded stores the profile and marks the session calibrated
func AnalysisSucceeded(s models.SessionState, profile models.StyleProfile) models.SessionState {
	s.Status = models.StatusIdle
	s.Profile = &profile
	s.Calibrated = true
	s.Message = ""
	s.Pages = slices.Clone(s.Pages)
	return s
}

// AnalysisRejected returns to idle uncalibrated with the reason the sample was refused
func AnalysisRejected(s models.SessionState, message string) models.SessionState {
	s.Status = models.StatusIdle
	s.Sample = nil
	s.Profile = nil
	s.Calibrated = false
	s.Message = message
	s.Pages = slices.Clone(s.Pages)
	return s
}

// AnalysisFailed enters error after the remote call itself failed
func AnalysisFailed(s models.SessionState, message string) models.SessionState {
	s.Status = models.StatusError
	s.Sample = nil
	s.Profile = nil
	s.Calibrated = false
	s.Message = message
	s.Pages = slices.Clone(s.Pages)
	return s
}

// BeginGeneration clears previous output and sets progress to (0, total)
func BeginGeneration(s models.SessionState, total int) models.SessionState {
	s.Status = models.StatusGenerating
	s.Pages = []models.GeneratedPage{}
	s.Progress = models.Progress{Current: 0, Total: total}
	s.Message = ""
	return s
}

// PageStarted advances progress to the page about to be requested
func PageStarted(s models.SessionState, index int) models.SessionState {
	s.Progress = models.Progress{Current: index, Total: s.Progress.Total}
	s.Pages = slices.Clone(s.Pages)
	return s
}

// PageCompleted appends a finished page
func PageCompleted(s models.SessionState, page models.GeneratedPage) models.SessionState {
	pages := make([]models.GeneratedPage, 0, len(s.Pages)+1)
	pages = append(pages, s.Pages...)
	s.Pages = append(pages, page)
	return s
}

// GenerationInterrupted enters error; pages produced so far are kept
func GenerationInterrupted(s models.SessionState, message string) models.SessionState {
	s.Status = models.StatusError
	s.Message = message
	s.Pages = slices.Clone(s.Pages)
	return s
}

// GenerationFinished returns to idle after the last chunk
func GenerationFinished(s models.SessionState) models.SessionState {
	s.Status = models.StatusIdle
	s.Pages = slices.Clone(s.Pages)
	return s
}

// Reset clears everything and moves to a new epoch so late results are ignored
func Reset(s models.SessionState) models.SessionState {
	next := Initial()
	next.Epoch = s.Epoch + 1
	return next
}

// Snapshot returns a copy safe to hand to other goroutines
func Snapshot(s models.SessionState) models.SessionState {
	s.Pages = slices.Clone(s.Pages)
	if s.Pages == nil {
		s.Pages = []models.GeneratedPage{}
	}
	return s
}
