package amqp

import (
	"encoding/json"
	"time"

	"faturas/internal/dataset"
)

// EventReloaded is the routing key and type of dataset reload events.
const EventReloaded = "dataset.reloaded"

// ReloadRequest asks a running dashboard to reload its dataset.
type ReloadRequest struct {
	Reason    string    `json:"reason,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

func NewReloadRequest(reason string) *ReloadRequest {
	return &ReloadRequest{Reason: reason, Timestamp: time.Now()}
}

func (m *ReloadRequest) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// ReloadRequestFromJSON decodes a request. An empty body is a valid request.
func ReloadRequestFromJSON(data []byte) (*ReloadRequest, error) {
	var msg ReloadRequest
	if len(data) == 0 {
		return &msg, nil
	}
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// ReloadedEvent summarises a finished load for other services.
type ReloadedEvent struct {
	Type        string    `json:"type"`
	Source      string    `json:"source"`
	FilesRead   int       `json:"files_read"`
	Failures    int       `json:"failures"`
	RowsKept    int       `json:"rows_kept"`
	RowsDropped int       `json:"rows_dropped"`
	Error       string    `json:"error,omitempty"`
	LoadedAt    time.Time `json:"loaded_at"`
	Timestamp   time.Time `json:"timestamp"`
}

func NewReloadedEvent(r dataset.LoadReport) *ReloadedEvent {
	return &ReloadedEvent{
		Type:        EventReloaded,
		Source:      r.Source,
		FilesRead:   r.FilesRead,
		Failures:    len(r.Failures),
		RowsKept:    r.RowsKept,
		RowsDropped: r.RowsDropped,
		Error:       r.Error,
		LoadedAt:    r.LoadedAt,
		Timestamp:   time.Now(),
	}
}

func (e *ReloadedEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

func ReloadedEventFromJSON(data []byte) (*ReloadedEvent, error) {
	var e ReloadedEvent
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, err
	}
	return &e, nil
}
