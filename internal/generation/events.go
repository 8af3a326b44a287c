package generation

import "github.com/lehigh-university-libraries/scrivener/internal/models"

// EventType names what changed
type EventType string

const (
	EventState EventType = "state"
	EventPage  EventType = "page"
	EventError EventType = "error"
	EventDone  EventType = "done"
	EventReset EventType = "reset"
)

// Event is published after every transition
type Event struct {
	Type       EventType       `json:"type"`
	Status     models.Status   `json:"status"`
	Progress   models.Progress `json:"progress"`
	Calibrated bool            `json:"calibrated"`
	PageCount  int             `json:"page_count"`
	Message    string          `json:"message,omitempty"`
	Epoch      uint64          `json:"epoch"`
	// Page and DataURI are set on page events only
	Page    *models.GeneratedPage `json:"page,omitempty"`
	DataURI string                `json:"data_uri,omitempty"`
}

func newEvent(t EventType, s models.SessionState) Event {
	return Event{
		Type:       t,
		Status:     s.Status,
		Progress:   s.Progress,
		Calibrated: s.Calibrated,
		PageCount:  len(s.Pages),
		Message:    s.Message,
		Epoch:      s.Epoch,
	}
}

// SnapshotEvent describes s as a state event, for clients that attach mid-session
func SnapshotEvent(s models.SessionState) Event {
	return newEvent(EventState, s)
}

func stateEvent(s models.SessionState) Event {
	return newEvent(EventState, s)
}

func errorEvent(s models.SessionState) Event {
	return newEvent(EventError, s)
}

func doneEvent(s models.SessionState) Event {
	return newEvent(EventDone, s)
}

func pageEvent(s models.SessionState, page models.GeneratedPage) Event {
	e := newEvent(EventPage, s)
	e.Page = &page
	e.DataURI = page.DataURI()
	return e
}
