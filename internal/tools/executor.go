// Package tools executes the function calls the assistant model makes
// against the user's calendar.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"google.golang.org/api/calendar/v3"

	"calendar-chat/internal/common/logging"
	"calendar-chat/internal/gcal"
	"calendar-chat/internal/llm"
)

// Result is what goes back to the model for one tool call. Content is a
// JSON document on success; Error carries a model-readable failure reason.
// Failures are data, not errors: the model decides how to tell the user.
type Result struct {
	ToolCallID string `json:"tool_call_id"`
	Content    string `json:"content"`
	Success    bool   `json:"success"`
	Error      string `json:"error,omitempty"`
}

// CalendarAPI is the slice of the gcal client the executor dispatches to
type CalendarAPI interface {
	ListEvents(ctx context.Context, userID string, opts gcal.ListEventsOptions) (*calendar.Events, error)
	CreateEvent(ctx context.Context, userID, calendarID string, event *calendar.Event) (*calendar.Event, error)
	UpdateEvent(ctx context.Context, userID, calendarID, eventID string, patch *calendar.Event) (*calendar.Event, error)
	DeleteEvent(ctx context.Context, userID, calendarID, eventID string) error
	ListCalendars(ctx context.Context, userID string) (*calendar.CalendarList, error)
}

// Executor dispatches model tool calls to the calendar API
type Executor struct {
	api    CalendarAPI
	logger logging.Logger
}

// NewExecutor creates an Executor over the given calendar API
func NewExecutor(api CalendarAPI) *Executor {
	return &Executor{
		api:    api,
		logger: logging.GetGlobalLogger(),
	}
}

// ExecuteAll runs each tool call in order and returns one Result per call.
// Order matters: a createEvent may reference what a getEvents just found.
func (e *Executor) ExecuteAll(ctx context.Context, userID string, calls []llm.ToolCall) []Result {
	results := make([]Result, 0, len(calls))
	for _, call := range calls {
		results = append(results, e.Execute(ctx, userID, call))
	}
	return results
}

// Execute runs one tool call. Unknown tools and bad arguments come back as
// failed Results so the model can recover in its next turn.
func (e *Executor) Execute(ctx context.Context, userID string, call llm.ToolCall) Result {
	e.logger.Debug("Executing tool call",
		logging.Field{Key: "tool", Value: call.Function.Name},
		logging.Field{Key: "user_id", Value: userID},
	)

	var (
		content string
		err     error
	)
	switch call.Function.Name {
	case "getEvents":
		content, err = e.getEvents(ctx, userID, call.Function.Arguments)
	case "createEvent":
		content, err = e.createEvent(ctx, userID, call.Function.Arguments)
	case "updateEvent":
		content, err = e.updateEvent(ctx, userID, call.Function.Arguments)
	case "deleteEvent":
		content, err = e.deleteEvent(ctx, userID, call.Function.Arguments)
	case "listCalendars":
		content, err = e.listCalendars(ctx, userID)
	default:
		err = fmt.Errorf("unknown tool: %s", call.Function.Name)
	}

	if err != nil {
		e.logger.Warn("Tool call failed",
			logging.Field{Key: "tool", Value: call.Function.Name},
			logging.Field{Key: "error", Value: err},
		)
		return Result{ToolCallID: call.ID, Success: false, Error: err.Error()}
	}
	return Result{ToolCallID: call.ID, Content: content, Success: true}
}

type eventTimeArg struct {
	DateTime string `json:"dateTime"`
	TimeZone string `json:"timeZone"`
}

func (a *eventTimeArg) toAPI() *calendar.EventDateTime {
	if a == nil || a.DateTime == "" {
		return nil
	}
	return &calendar.EventDateTime{DateTime: a.DateTime, TimeZone: a.TimeZone}
}

// eventSummary is the compact event shape returned to the model. Full API
// events are noisy; the model only needs what a person would read aloud.
type eventSummary struct {
	ID        string `json:"id"`
	Summary   string `json:"summary"`
	Start     string `json:"start"`
	End       string `json:"end"`
	Location  string `json:"location,omitempty"`
	Attendees string `json:"attendees,omitempty"`
	HTMLLink  string `json:"htmlLink,omitempty"`
}

func summarize(event *calendar.Event) eventSummary {
	s := eventSummary{
		ID:       event.Id,
		Summary:  event.Summary,
		Location: event.Location,
		HTMLLink: event.HtmlLink,
	}
	if s.Summary == "" {
		s.Summary = "No title"
	}
	if event.Start != nil {
		s.Start = firstNonEmpty(event.Start.DateTime, event.Start.Date)
	}
	if event.End != nil {
		s.End = firstNonEmpty(event.End.DateTime, event.End.Date)
	}
	if len(event.Attendees) > 0 {
		emails := make([]string, 0, len(event.Attendees))
		for _, a := range event.Attendees {
			emails = append(emails, a.Email)
		}
		s.Attendees = strings.Join(emails, ", ")
	}
	return s
}

func (e *Executor) getEvents(ctx context.Context, userID, args string) (string, error) {
	var parsed struct {
		TimeMin    string `json:"timeMin"`
		TimeMax    string `json:"timeMax"`
		Query      string `json:"query"`
		CalendarID string `json:"calendarId"`
		MaxResults int    `json:"maxResults"`
	}
	if err := json.Unmarshal([]byte(args), &parsed); err != nil {
		return "", fmt.Errorf("invalid getEvents arguments: %w", err)
	}

	events, err := e.api.ListEvents(ctx, userID, gcal.ListEventsOptions{
		CalendarID: parsed.CalendarID,
		TimeMin:    parsed.TimeMin,
		TimeMax:    parsed.TimeMax,
		Query:      parsed.Query,
		MaxResults: parsed.MaxResults,
	})
	if err != nil {
		return "", err
	}

	summaries := make([]eventSummary, 0, len(events.Items))
	for _, event := range events.Items {
		summaries = append(summaries, summarize(event))
	}
	return encodeContent(map[string]interface{}{
		"events": summaries,
		"total":  len(summaries),
	})
}

func (e *Executor) createEvent(ctx context.Context, userID, args string) (string, error) {
	var parsed struct {
		Summary     string        `json:"summary"`
		Description string        `json:"description"`
		Location    string        `json:"location"`
		Start       *eventTimeArg `json:"start"`
		End         *eventTimeArg `json:"end"`
		Attendees   []struct {
			Email       string `json:"email"`
			DisplayName string `json:"displayName"`
		} `json:"attendees"`
		CalendarID string `json:"calendarId"`
	}
	if err := json.Unmarshal([]byte(args), &parsed); err != nil {
		return "", fmt.Errorf("invalid createEvent arguments: %w", err)
	}

	event := &calendar.Event{
		Summary:     parsed.Summary,
		Description: parsed.Description,
		Location:    parsed.Location,
		Start:       parsed.Start.toAPI(),
		End:         parsed.End.toAPI(),
	}
	for _, a := range parsed.Attendees {
		event.Attendees = append(event.Attendees, &calendar.EventAttendee{
			Email:       a.Email,
			DisplayName: a.DisplayName,
		})
	}

	created, err := e.api.CreateEvent(ctx, userID, parsed.CalendarID, event)
	if err != nil {
		return "", err
	}
	return encodeContent(map[string]interface{}{
		"created": true,
		"event":   summarize(created),
	})
}

func (e *Executor) updateEvent(ctx context.Context, userID, args string) (string, error) {
	var parsed struct {
		EventID     string        `json:"eventId"`
		Summary     string        `json:"summary"`
		Description string        `json:"description"`
		Location    string        `json:"location"`
		Start       *eventTimeArg `json:"start"`
		End         *eventTimeArg `json:"end"`
		CalendarID  string        `json:"calendarId"`
	}
	if err := json.Unmarshal([]byte(args), &parsed); err != nil {
		return "", fmt.Errorf("invalid updateEvent arguments: %w", err)
	}
	if parsed.EventID == "" {
		return "", fmt.Errorf("updateEvent requires eventId")
	}

	patch := &calendar.Event{
		Summary:     parsed.Summary,
		Description: parsed.Description,
		Location:    parsed.Location,
		Start:       parsed.Start.toAPI(),
		End:         parsed.End.toAPI(),
	}

	updated, err := e.api.UpdateEvent(ctx, userID, parsed.CalendarID, parsed.EventID, patch)
	if err != nil {
		return "", err
	}
	return encodeContent(map[string]interface{}{
		"updated": true,
		"event":   summarize(updated),
	})
}

func (e *Executor) deleteEvent(ctx context.Context, userID, args string) (string, error) {
	var parsed struct {
		EventID    string `json:"eventId"`
		CalendarID string `json:"calendarId"`
	}
	if err := json.Unmarshal([]byte(args), &parsed); err != nil {
		return "", fmt.Errorf("invalid deleteEvent arguments: %w", err)
	}
	if parsed.EventID == "" {
		return "", fmt.Errorf("deleteEvent requires eventId")
	}

	if err := e.api.DeleteEvent(ctx, userID, parsed.CalendarID, parsed.EventID); err != nil {
		return "", err
	}
	return encodeContent(map[string]interface{}{
		"deleted": true,
		"eventId": parsed.EventID,
	})
}

func (e *Executor) listCalendars(ctx context.Context, userID string) (string, error) {
	list, err := e.api.ListCalendars(ctx, userID)
	if err != nil {
		return "", err
	}

	type calendarSummary struct {
		ID      string `json:"id"`
		Summary string `json:"summary"`
		Primary bool   `json:"primary,omitempty"`
	}
	summaries := make([]calendarSummary, 0, len(list.Items))
	for _, entry := range list.Items {
		summaries = append(summaries, calendarSummary{
			ID:      entry.Id,
			Summary: entry.Summary,
			Primary: entry.Primary,
		})
	}
	return encodeContent(map[string]interface{}{
		"calendars": summaries,
		"total":     len(summaries),
	})
}

func firstNonEmpty(a, b string) string {
	if a != "" {
		return a
	}
	return b
}

func encodeContent(v interface{}) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to encode tool result: %w", err)
	}
	return string(data), nil
}
