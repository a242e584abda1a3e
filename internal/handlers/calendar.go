package handlers

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"google.golang.org/api/calendar/v3"

	"calendar-chat/internal/auth"
	"calendar-chat/internal/gcal"
)

func listOptionsFromQuery(r *http.Request) gcal.ListEventsOptions {
	q := r.URL.Query()
	maxResults, _ := strconv.Atoi(q.Get("maxResults"))
	return gcal.ListEventsOptions{
		CalendarID: q.Get("calendarId"),
		TimeMin:    q.Get("timeMin"),
		TimeMax:    q.Get("timeMax"),
		Query:      q.Get("q"),
		MaxResults: maxResults,
	}
}

// ListEvents returns the user's events for the requested window
func (h *Handlers) ListEvents(w http.ResponseWriter, r *http.Request) {
	events, err := h.calendar.ListEvents(r.Context(), auth.UserID(r.Context()), listOptionsFromQuery(r))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, events)
}

// CreateEvent inserts an event on the user's calendar
func (h *Handlers) CreateEvent(w http.ResponseWriter, r *http.Request) {
	var event calendar.Event
	if err := decodeBody(r, &event); err != nil {
		h.writeError(w, err)
		return
	}

	created, err := h.calendar.CreateEvent(r.Context(), auth.UserID(r.Context()),
		r.URL.Query().Get("calendarId"), &event)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, created)
}

// UpdateEvent applies a partial update to an event
func (h *Handlers) UpdateEvent(w http.ResponseWriter, r *http.Request) {
	var patch calendar.Event
	if err := decodeBody(r, &patch); err != nil {
		h.writeError(w, err)
		return
	}

	updated, err := h.calendar.UpdateEvent(r.Context(), auth.UserID(r.Context()),
		r.URL.Query().Get("calendarId"), mux.Vars(r)["id"], &patch)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, updated)
}

// DeleteEvent removes an event
func (h *Handlers) DeleteEvent(w http.ResponseWriter, r *http.Request) {
	err := h.calendar.DeleteEvent(r.Context(), auth.UserID(r.Context()),
		r.URL.Query().Get("calendarId"), mux.Vars(r)["id"])
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// ListCalendars returns the user's calendar list
func (h *Handlers) ListCalendars(w http.ResponseWriter, r *http.Request) {
	list, err := h.calendar.ListCalendars(r.Context(), auth.UserID(r.Context()))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, list)
}

// ExportICS streams the user's events as an iCalendar file
func (h *Handlers) ExportICS(w http.ResponseWriter, r *http.Request) {
	data, err := h.calendar.ExportICS(r.Context(), auth.UserID(r.Context()), listOptionsFromQuery(r))
	if err != nil {
		h.writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="calendar.ics"`)
	w.Write(data)
}
