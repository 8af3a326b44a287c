package generation

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/lehigh-university-libraries/scrivener/internal/chunker"
	"github.com/lehigh-university-libraries/scrivener/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubAnalyzer struct {
	profile models.StyleProfile
	err     error
	// hook runs before the result is returned
	hook func()
}

func (s *stubAnalyzer) Analyze(ctx context.Context, sample []byte, mediaType string) (models.StyleProfile, error) {
	if s.hook != nil {
		s.hook()
	}
	return s.profile, s.err
}

type renderCall struct {
	text  string
	index int
	total int
}

type stubRenderer struct {
	mu    sync.Mutex
	calls []renderCall
	// failAt and skipAt are 1-based page indexes
	failAt int
	skipAt map[int]bool
	hook   func(index int)
}

func (s *stubRenderer) RenderPage(ctx context.Context, reference models.Sample, text string, paper models.PaperType, profile models.StyleProfile, pageIndex, totalPages int) (*models.GeneratedPage, error) {
	s.mu.Lock()
	s.calls = append(s.calls, renderCall{text: text, index: pageIndex, total: totalPages})
	s.mu.Unlock()

	if s.hook != nil {
		s.hook(pageIndex)
	}
	if pageIndex == s.failAt {
		return nil, errors.New("upstream timeout")
	}
	if s.skipAt[pageIndex] {
		return nil, nil
	}
	return &models.GeneratedPage{MIMEType: "image/png", Data: []byte(text[:1])}, nil
}

var sample = models.Sample{Filename: "hand.png", MediaType: "image/png", Data: []byte("png")}

func recognized() *stubAnalyzer {
	return &stubAnalyzer{profile: models.StyleProfile{IsRecognizable: true, Description: "tidy"}}
}

// pagesOfText builds text that chunks into exactly n pages
func pagesOfText(n int) string {
	word := strings.Repeat("w", chunker.MaxPageChars-100)
	words := make([]string, n)
	for i := range words {
		words[i] = string(rune('a'+i)) + word
	}
	return strings.Join(words, " ")
}

func calibrated(t *testing.T, r PageRenderer) *Orchestrator {
	t.Helper()
	o := New(recognized(), r)
	_, err := o.Calibrate(context.Background(), sample)
	require.NoError(t, err)
	return o
}

func TestCalibrateSuccess(t *testing.T) {
	o := New(recognized(), &stubRenderer{})

	var statuses []models.Status
	o.Observe(func(e Event) { statuses = append(statuses, e.Status) })

	state, err := o.Calibrate(context.Background(), sample)
	require.NoError(t, err)
	assert.True(t, state.Calibrated)
	assert.Equal(t, models.StatusIdle, state.Status)
	require.NotNil(t, state.Profile)
	assert.Equal(t, "tidy", state.Profile.Description)
	require.NotNil(t, state.Sample)
	assert.Equal(t, "hand.png", state.Sample.Filename)
	assert.Equal(t, []models.Status{models.StatusAnalyzing, models.StatusIdle}, statuses)
}

func TestCalibrateRejected(t *testing.T) {
	o := New(&stubAnalyzer{profile: models.StyleProfile{FailureReason: "this is typed text"}}, &stubRenderer{})

	state, err := o.Calibrate(context.Background(), sample)
	assert.ErrorIs(t, err, ErrRejected)
	assert.False(t, state.Calibrated)
	assert.Equal(t, models.StatusIdle, state.Status)
	assert.Equal(t, "this is typed text", state.Message)
	assert.Nil(t, state.Profile)
}

func TestCalibrateUnparseableProfileIsRejected(t *testing.T) {
	o := New(&stubAnalyzer{}, &stubRenderer{})

	state, err := o.Calibrate(context.Background(), sample)
	assert.ErrorIs(t, err, ErrRejected)
	assert.False(t, state.Calibrated)
	assert.NotEmpty(t, state.Message)
}

func TestCalibrateRemoteError(t *testing.T) {
	o := New(&stubAnalyzer{err: errors.New("dial tcp: refused")}, &stubRenderer{})

	state, err := o.Calibrate(context.Background(), sample)
	require.Error(t, err)
	assert.Equal(t, models.StatusError, state.Status)
	assert.Equal(t, MsgProcessingFailed, state.Message)
	assert.False(t, state.Calibrated)

	// a new upload is accepted from the error state
	o.analyzer = recognized()
	state, err = o.Calibrate(context.Background(), sample)
	require.NoError(t, err)
	assert.True(t, state.Calibrated)
}

func TestCalibrateTwiceRequiresReset(t *testing.T) {
	o := calibrated(t, &stubRenderer{})

	_, err := o.Calibrate(context.Background(), sample)
	assert.ErrorIs(t, err, ErrAlreadyCalibrated)

	o.Reset()
	_, err = o.Calibrate(context.Background(), sample)
	assert.NoError(t, err)
}

func TestGenerateRequiresCalibration(t *testing.T) {
	o := New(recognized(), &stubRenderer{})
	assert.ErrorIs(t, o.Generate(context.Background(), "hello", models.PaperLined), ErrNotCalibrated)
}

func TestGenerateRejectsEmptyText(t *testing.T) {
	r := &stubRenderer{}
	o := calibrated(t, r)
	assert.ErrorIs(t, o.Generate(context.Background(), "  \n\t ", models.PaperLined), ErrEmptyText)
	assert.Empty(t, r.calls)
	assert.Equal(t, models.StatusIdle, o.State().Status)
}

func TestGenerateAllPagesInOrder(t *testing.T) {
	r := &stubRenderer{}
	o := calibrated(t, r)

	var progress []models.Progress
	var published []int
	o.Observe(func(e Event) {
		switch e.Type {
		case EventState:
			if e.Status == models.StatusGenerating && e.Progress.Current > 0 {
				progress = append(progress, e.Progress)
			}
		case EventPage:
			published = append(published, e.Page.Index)
			assert.Equal(t, len(published), e.PageCount)
			assert.True(t, strings.HasPrefix(e.DataURI, "data:image/png;base64,"))
		}
	})

	require.NoError(t, o.Generate(context.Background(), pagesOfText(4), models.PaperGrid))

	require.Len(t, r.calls, 4)
	for i, c := range r.calls {
		assert.Equal(t, i+1, c.index)
		assert.Equal(t, 4, c.total)
		assert.Equal(t, string(rune('a'+i)), c.text[:1])
	}
	assert.Equal(t, []models.Progress{{Current: 1, Total: 4}, {Current: 2, Total: 4}, {Current: 3, Total: 4}, {Current: 4, Total: 4}}, progress)
	assert.Equal(t, []int{1, 2, 3, 4}, published)

	state := o.State()
	assert.Equal(t, models.StatusIdle, state.Status)
	require.Len(t, state.Pages, 4)
	for i, p := range state.Pages {
		assert.Equal(t, i+1, p.Index)
	}
}

func TestGenerateStopsOnFirstError(t *testing.T) {
	r := &stubRenderer{failAt: 3}
	o := calibrated(t, r)

	err := o.Generate(context.Background(), pagesOfText(5), models.PaperPlain)
	require.Error(t, err)

	assert.Len(t, r.calls, 3)
	state := o.State()
	assert.Equal(t, models.StatusError, state.Status)
	assert.Equal(t, MsgGenerationInterrupted, state.Message)
	require.Len(t, state.Pages, 2)
	assert.Equal(t, 1, state.Pages[0].Index)
	assert.Equal(t, 2, state.Pages[1].Index)
	assert.Equal(t, models.Progress{Current: 3, Total: 5}, state.Progress)
	assert.True(t, state.Calibrated)
}

func TestGenerateSkipsMissingImages(t *testing.T) {
	r := &stubRenderer{skipAt: map[int]bool{2: true}}
	o := calibrated(t, r)

	require.NoError(t, o.Generate(context.Background(), pagesOfText(3), models.PaperAged))

	assert.Len(t, r.calls, 3)
	state := o.State()
	assert.Equal(t, models.StatusIdle, state.Status)
	require.Len(t, state.Pages, 2)
	assert.Equal(t, 1, state.Pages[0].Index)
	assert.Equal(t, 3, state.Pages[1].Index)
}

func TestGenerateAfterErrorStartsFresh(t *testing.T) {
	r := &stubRenderer{failAt: 2}
	o := calibrated(t, r)
	require.Error(t, o.Generate(context.Background(), pagesOfText(3), models.PaperPlain))
	interrupted := o.State()
	require.Equal(t, models.StatusError, interrupted.Status)
	require.Len(t, interrupted.Pages, 1)

	r.failAt = 0
	require.NoError(t, o.Generate(context.Background(), pagesOfText(2), models.PaperPlain))
	state := o.State()
	assert.Len(t, state.Pages, 2)
	assert.Equal(t, models.Progress{Current: 2, Total: 2}, state.Progress)
}

func TestGenerateWhileBusy(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	r := &stubRenderer{}
	r.hook = func(index int) {
		if index == 1 {
			close(started)
			<-release
		}
	}
	o := calibrated(t, r)

	done := make(chan error, 1)
	go func() { done <- o.Generate(context.Background(), pagesOfText(2), models.PaperLined) }()
	<-started

	assert.ErrorIs(t, o.Generate(context.Background(), "again", models.PaperLined), ErrBusy)
	_, err := o.Calibrate(context.Background(), sample)
	assert.ErrorIs(t, err, ErrBusy)

	close(release)
	require.NoError(t, <-done)
}

func TestStartRunsInBackground(t *testing.T) {
	r := &stubRenderer{}
	o := calibrated(t, r)

	finished := make(chan Event, 1)
	o.Observe(func(e Event) {
		if e.Type == EventDone {
			finished <- e
		}
	})

	require.NoError(t, o.Start(context.Background(), pagesOfText(2), models.PaperLined))
	e := <-finished
	assert.Equal(t, 2, e.PageCount)
	assert.Equal(t, models.StatusIdle, e.Status)
}

func TestResetDiscardsInFlightPage(t *testing.T) {
	var o *Orchestrator
	r := &stubRenderer{}
	r.hook = func(index int) {
		if index == 2 {
			o.Reset()
		}
	}
	o = calibrated(t, r)

	err := o.Generate(context.Background(), pagesOfText(4), models.PaperLined)
	assert.ErrorIs(t, err, ErrStale)

	assert.Len(t, r.calls, 2)
	state := o.State()
	assert.Equal(t, models.StatusIdle, state.Status)
	assert.False(t, state.Calibrated)
	assert.Nil(t, state.Sample)
	assert.Nil(t, state.Profile)
	assert.Empty(t, state.Pages)
	assert.Equal(t, models.Progress{}, state.Progress)
	assert.Equal(t, uint64(1), state.Epoch)
}

func TestResetDiscardsInFlightAnalysis(t *testing.T) {
	var o *Orchestrator
	a := recognized()
	a.hook = func() { o.Reset() }
	o = New(a, &stubRenderer{})

	_, err := o.Calibrate(context.Background(), sample)
	assert.ErrorIs(t, err, ErrStale)
	state := o.State()
	assert.False(t, state.Calibrated)
	assert.Nil(t, state.Profile)
}

func TestResetFromAnyState(t *testing.T) {
	o := calibrated(t, &stubRenderer{failAt: 2})
	require.Error(t, o.Generate(context.Background(), pagesOfText(3), models.PaperLined))
	require.Equal(t, models.StatusError, o.State().Status)

	var got Event
	o.Observe(func(e Event) { got = e })

	state := o.Reset()
	assert.Equal(t, EventReset, got.Type)
	assert.Equal(t, models.StatusIdle, state.Status)
	assert.False(t, state.Calibrated)
	assert.Empty(t, state.Pages)
	assert.Equal(t, models.Progress{}, state.Progress)
	assert.Empty(t, state.Message)
}

func TestSnapshotsAreNotAliased(t *testing.T) {
	r := &stubRenderer{}
	o := calibrated(t, r)

	var first models.SessionState
	r.hook = func(index int) {
		if index == 2 {
			first = o.State()
		}
	}
	require.NoError(t, o.Generate(context.Background(), pagesOfText(3), models.PaperLined))

	assert.Len(t, first.Pages, 1)
	assert.Len(t, o.State().Pages, 3)
}

func TestObserveUnsubscribe(t *testing.T) {
	o := New(recognized(), &stubRenderer{})
	count := 0
	stop := o.Observe(func(Event) { count++ })
	o.Reset()
	stop()
	o.Reset()
	assert.Equal(t, 1, count)
}

func TestRestore(t *testing.T) {
	o := New(&stubAnalyzer{err: errors.New("should not be called")}, &stubRenderer{})

	_, err := o.Restore(sample, models.StyleProfile{})
	assert.ErrorIs(t, err, ErrRejected)

	state, err := o.Restore(sample, models.StyleProfile{IsRecognizable: true, Slant: "right"})
	require.NoError(t, err)
	assert.True(t, state.Calibrated)
	assert.Equal(t, "right", state.Profile.Slant)

	_, err = o.Restore(sample, models.StyleProfile{IsRecognizable: true})
	assert.ErrorIs(t, err, ErrAlreadyCalibrated)

	require.NoError(t, o.Generate(context.Background(), "hello", models.PaperPlain))
	assert.Len(t, o.State().Pages, 1)
}

func TestResetIsNeverFollowedByOldEvents(t *testing.T) {
	for attempt := 0; attempt < 20; attempt++ {
		o := calibrated(t, &stubRenderer{})

		var (
			mu     sync.Mutex
			events []Event
			once   sync.Once
		)
		resetDone := make(chan models.SessionState, 1)

		// A slow observer triggers the reset while the first page is being delivered
		o.Observe(func(e Event) {
			if e.Type != EventPage {
				return
			}
			once.Do(func() {
				go func() { resetDone <- o.Reset() }()
				time.Sleep(5 * time.Millisecond)
			})
		})
		o.Observe(func(e Event) {
			mu.Lock()
			events = append(events, e)
			mu.Unlock()
		})

		err := o.Generate(context.Background(), pagesOfText(3), models.PaperLined)
		if err != nil {
			require.ErrorIs(t, err, ErrStale)
		}
		reset := <-resetDone

		mu.Lock()
		recorded := append([]Event(nil), events...)
		mu.Unlock()

		resetAt := -1
		for i, e := range recorded {
			if e.Type == EventReset {
				resetAt = i
				break
			}
		}
		require.GreaterOrEqual(t, resetAt, 0, "attempt %d: reset event missing", attempt)
		for _, e := range recorded[resetAt:] {
			assert.GreaterOrEqual(t, e.Epoch, reset.Epoch, "attempt %d: %s event from epoch %d after reset", attempt, e.Type, e.Epoch)
		}
	}
}

func TestEventsFromOldEpochAreDropped(t *testing.T) {
	o := New(recognized(), &stubRenderer{})
	var got []Event
	o.Observe(func(e Event) { got = append(got, e) })

	o.Reset()
	o.publish(Event{Type: EventPage, Epoch: 0})
	o.publish(Event{Type: EventState, Epoch: 1})

	require.Len(t, got, 2)
	assert.Equal(t, EventReset, got[0].Type)
	assert.Equal(t, EventState, got[1].Type)
}
