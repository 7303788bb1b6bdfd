package eventsapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
)

const eventsPath = "/events"

// Event is a single entry of the events listing.
type Event struct {
	ID          int64  `json:"id"`
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
	Location    string `json:"location,omitempty"`
	StartsAt    string `json:"starts_at,omitempty"`
	EndsAt      string `json:"ends_at,omitempty"`
}

// EventInput carries the writable fields of an event.
type EventInput struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Location    string `json:"location,omitempty"`
	StartsAt    string `json:"starts_at,omitempty"`
	EndsAt      string `json:"ends_at,omitempty"`
}

type eventList struct {
	Events []Event `json:"events"`
}

// Events is a typed view of the /events resource.
type Events struct {
	client *Client
}

// NewEvents wraps client.
func NewEvents(client *Client) *Events {
	return &Events{client: client}
}

// List returns the current events. It uses the read path, so it may be served from the
// fallback resource.
func (e *Events) List(ctx context.Context) ([]Event, error) {
	raw, err := e.client.Get(ctx, eventsPath)
	if err != nil {
		return nil, err
	}
	list, err := Decode[eventList](raw)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	if list.Events == nil {
		return []Event{}, nil
	}
	return list.Events, nil
}

// Create posts a new event and returns the stored representation.
func (e *Events) Create(ctx context.Context, in EventInput) (Event, error) {
	if err := validateInput(in); err != nil {
		return Event{}, err
	}
	raw, err := e.client.JSON(ctx, http.MethodPost, eventsPath, in)
	if err != nil {
		return Event{}, err
	}
	return decodeEvent(raw)
}

// Update replaces the writable fields of the event with the given id.
func (e *Events) Update(ctx context.Context, id int64, in EventInput) (Event, error) {
	if err := validateInput(in); err != nil {
		return Event{}, err
	}
	raw, err := e.client.JSON(ctx, http.MethodPut, eventPath(id), in)
	if err != nil {
		return Event{}, err
	}
	return decodeEvent(raw)
}

// Delete removes the event with the given id.
func (e *Events) Delete(ctx context.Context, id int64) error {
	_, err := e.client.JSON(ctx, http.MethodDelete, eventPath(id), nil)
	return err
}

func eventPath(id int64) string {
	return eventsPath + "/" + strconv.FormatInt(id, 10)
}

func validateInput(in EventInput) error {
	if in.Title == "" {
		return errors.New("event title is required")
	}
	return nil
}

// decodeEvent accepts either a bare event or one wrapped as {"event": {...}}.
func decodeEvent(raw []byte) (Event, error) {
	if len(raw) == 0 {
		return Event{}, nil
	}
	wrapped, err := Decode[struct {
		Event *Event `json:"event"`
	}](raw)
	if err == nil && wrapped.Event != nil {
		return *wrapped.Event, nil
	}
	evt, err := Decode[Event](raw)
	if err != nil {
		return Event{}, fmt.Errorf("decode event: %w", err)
	}
	return evt, nil
}
