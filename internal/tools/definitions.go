package tools

import (
	"encoding/json"

	"calendar-chat/internal/llm"
)

// CalendarTools are the function tools offered to the model on every chat
// turn. Descriptions are written for the model, not for humans: they steer
// when the model reaches for a tool instead of answering from memory.
func CalendarTools() []llm.Tool {
	return []llm.Tool{
		{
			Type: "function",
			Function: llm.Function{
				Name:        "getEvents",
				Description: "Get calendar events for a time period or search for specific events. Use this for ANY question about existing or upcoming events: 'What's my next event?', 'What's on my calendar tomorrow?', 'Do I have meetings today?'",
				Parameters: json.RawMessage(`{
					"type": "object",
					"properties": {
						"timeMin":    {"type": "string", "description": "Lower bound for an event's end time, RFC3339 with time zone offset"},
						"timeMax":    {"type": "string", "description": "Upper bound for an event's start time, RFC3339 with time zone offset"},
						"query":      {"type": "string", "description": "Free text search terms matched against any event field"},
						"calendarId": {"type": "string", "description": "Calendar identifier, default 'primary'"},
						"maxResults": {"type": "integer", "description": "Maximum number of events returned"}
					},
					"required": []
				}`),
			},
		},
		{
			Type: "function",
			Function: llm.Function{
				Name:        "createEvent",
				Description: "Create a new calendar event. Use when the user wants to add, schedule, or create an event: 'Add a meeting with John tomorrow at 2pm', 'Schedule a dentist appointment'",
				Parameters: json.RawMessage(`{
					"type": "object",
					"properties": {
						"summary":     {"type": "string", "description": "Title of the event"},
						"description": {"type": "string", "description": "Description of the event"},
						"location":    {"type": "string", "description": "Location as free-form text"},
						"start": {
							"type": "object",
							"properties": {
								"dateTime": {"type": "string", "description": "Start time in RFC3339 format"},
								"timeZone": {"type": "string", "description": "Time zone of the start time"}
							},
							"required": ["dateTime"]
						},
						"end": {
							"type": "object",
							"properties": {
								"dateTime": {"type": "string", "description": "End time in RFC3339 format"},
								"timeZone": {"type": "string", "description": "Time zone of the end time"}
							},
							"required": ["dateTime"]
						},
						"attendees": {
							"type": "array",
							"items": {
								"type": "object",
								"properties": {
									"email":       {"type": "string", "description": "Attendee's email address"},
									"displayName": {"type": "string", "description": "Attendee's name"}
								},
								"required": ["email"]
							},
							"description": "Attendees to invite"
						},
						"calendarId": {"type": "string", "description": "Calendar identifier, default 'primary'"}
					},
					"required": ["summary", "start", "end"]
				}`),
			},
		},
		{
			Type: "function",
			Function: llm.Function{
				Name:        "updateEvent",
				Description: "Update an existing calendar event. Only the fields provided are changed: 'Move my 2pm to 3pm', 'Rename tomorrow's standup'",
				Parameters: json.RawMessage(`{
					"type": "object",
					"properties": {
						"eventId":     {"type": "string", "description": "ID of the event to update"},
						"summary":     {"type": "string", "description": "New title"},
						"description": {"type": "string", "description": "New description"},
						"location":    {"type": "string", "description": "New location"},
						"start": {
							"type": "object",
							"properties": {
								"dateTime": {"type": "string", "description": "New start time in RFC3339 format"},
								"timeZone": {"type": "string"}
							}
						},
						"end": {
							"type": "object",
							"properties": {
								"dateTime": {"type": "string", "description": "New end time in RFC3339 format"},
								"timeZone": {"type": "string"}
							}
						},
						"calendarId": {"type": "string", "description": "Calendar identifier, default 'primary'"}
					},
					"required": ["eventId"]
				}`),
			},
		},
		{
			Type: "function",
			Function: llm.Function{
				Name:        "deleteEvent",
				Description: "Delete a calendar event: 'Cancel my 3pm meeting', 'Remove the dentist appointment'",
				Parameters: json.RawMessage(`{
					"type": "object",
					"properties": {
						"eventId":    {"type": "string", "description": "ID of the event to delete"},
						"calendarId": {"type": "string", "description": "Calendar identifier, default 'primary'"}
					},
					"required": ["eventId"]
				}`),
			},
		},
		{
			Type: "function",
			Function: llm.Function{
				Name:        "listCalendars",
				Description: "List the calendars the user has access to. Use when the user asks which calendars exist or to resolve a calendar name to an ID",
				Parameters: json.RawMessage(`{
					"type": "object",
					"properties": {},
					"required": []
				}`),
			},
		},
	}
}
