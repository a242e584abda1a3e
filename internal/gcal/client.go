package gcal

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"google.golang.org/api/calendar/v3"

	"calendar-chat/internal/common/errors"
)

// DefaultCalendarID addresses the authenticated user's primary calendar
const DefaultCalendarID = "primary"

// ListEventsOptions narrows an event listing. Zero values mean "no filter";
// MaxResults defaults to 50.
type ListEventsOptions struct {
	CalendarID string
	TimeMin    string // RFC3339
	TimeMax    string // RFC3339
	Query      string
	MaxResults int
}

// Client is a thin typed layer over the Caller for the Calendar v3 API.
// All authentication and 401 recovery lives in the Caller.
type Client struct {
	caller *Caller
}

// NewClient wraps a Caller in the typed calendar API
func NewClient(caller *Caller) *Client {
	return &Client{caller: caller}
}

// ListEvents returns events ordered by start time, with recurring events
// expanded into instances.
func (c *Client) ListEvents(ctx context.Context, userID string, opts ListEventsOptions) (*calendar.Events, error) {
	calendarID := opts.CalendarID
	if calendarID == "" {
		calendarID = DefaultCalendarID
	}
	maxResults := opts.MaxResults
	if maxResults <= 0 {
		maxResults = 50
	}

	query := url.Values{}
	query.Set("singleEvents", "true")
	query.Set("orderBy", "startTime")
	query.Set("maxResults", strconv.Itoa(maxResults))
	if opts.TimeMin != "" {
		query.Set("timeMin", opts.TimeMin)
	}
	if opts.TimeMax != "" {
		query.Set("timeMax", opts.TimeMax)
	}
	if opts.Query != "" {
		query.Set("q", opts.Query)
	}

	var events calendar.Events
	err := c.caller.DoJSON(ctx, userID, CallRequest{
		Method: http.MethodGet,
		Path:   eventsPath(calendarID),
		Query:  query,
	}, &events)
	if err != nil {
		return nil, err
	}
	return &events, nil
}

// GetEvent fetches a single event by ID
func (c *Client) GetEvent(ctx context.Context, userID, calendarID, eventID string) (*calendar.Event, error) {
	if eventID == "" {
		return nil, errors.ValidationError("event id is required")
	}
	var event calendar.Event
	err := c.caller.DoJSON(ctx, userID, CallRequest{
		Method: http.MethodGet,
		Path:   eventPath(calendarID, eventID),
	}, &event)
	if err != nil {
		return nil, err
	}
	return &event, nil
}

// CreateEvent inserts a new event and returns the stored copy, which
// carries the server-assigned ID and HTML link.
func (c *Client) CreateEvent(ctx context.Context, userID, calendarID string, event *calendar.Event) (*calendar.Event, error) {
	if event == nil || event.Summary == "" {
		return nil, errors.ValidationError("event requires a summary")
	}
	if event.Start == nil || event.End == nil {
		return nil, errors.ValidationError("event requires start and end times")
	}

	body, err := json.Marshal(event)
	if err != nil {
		return nil, errors.InternalError("failed to encode event", err)
	}

	var created calendar.Event
	err = c.caller.DoJSON(ctx, userID, CallRequest{
		Method: http.MethodPost,
		Path:   eventsPath(calendarID),
		Body:   body,
	}, &created)
	if err != nil {
		return nil, err
	}
	return &created, nil
}

// UpdateEvent applies a partial update. Only the fields set on patch are
// sent, so untouched fields keep their server-side values.
func (c *Client) UpdateEvent(ctx context.Context, userID, calendarID, eventID string, patch *calendar.Event) (*calendar.Event, error) {
	if eventID == "" {
		return nil, errors.ValidationError("event id is required")
	}

	body, err := json.Marshal(patch)
	if err != nil {
		return nil, errors.InternalError("failed to encode event", err)
	}

	var updated calendar.Event
	err = c.caller.DoJSON(ctx, userID, CallRequest{
		Method: http.MethodPatch,
		Path:   eventPath(calendarID, eventID),
		Body:   body,
	}, &updated)
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

// DeleteEvent removes an event
func (c *Client) DeleteEvent(ctx context.Context, userID, calendarID, eventID string) error {
	if eventID == "" {
		return errors.ValidationError("event id is required")
	}
	return c.caller.DoJSON(ctx, userID, CallRequest{
		Method: http.MethodDelete,
		Path:   eventPath(calendarID, eventID),
	}, nil)
}

// ListCalendars returns the calendars on the user's calendar list
func (c *Client) ListCalendars(ctx context.Context, userID string) (*calendar.CalendarList, error) {
	var list calendar.CalendarList
	err := c.caller.DoJSON(ctx, userID, CallRequest{
		Method: http.MethodGet,
		Path:   "/users/me/calendarList",
	}, &list)
	if err != nil {
		return nil, err
	}
	return &list, nil
}

func eventsPath(calendarID string) string {
	return fmt.Sprintf("/calendars/%s/events", url.PathEscape(calendarID))
}

func eventPath(calendarID, eventID string) string {
	return fmt.Sprintf("/calendars/%s/events/%s", url.PathEscape(calendarID), url.PathEscape(eventID))
}
