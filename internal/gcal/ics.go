package gcal

import (
	"bytes"
	"context"
	"time"

	ics "github.com/emersion/go-ical"
	"google.golang.org/api/calendar/v3"

	"calendar-chat/internal/common/errors"
)

const icsProductID = "-//calendar-chat//EN"

// ExportICS renders the user's events in the given window as an iCalendar
// stream, for import into other calendar applications.
func (c *Client) ExportICS(ctx context.Context, userID string, opts ListEventsOptions) ([]byte, error) {
	events, err := c.ListEvents(ctx, userID, opts)
	if err != nil {
		return nil, err
	}
	return EncodeICS(events.Items)
}

// EncodeICS serializes calendar events as an iCalendar document
func EncodeICS(events []*calendar.Event) ([]byte, error) {
	cal := ics.NewCalendar()
	cal.Props.SetText(ics.PropVersion, "2.0")
	cal.Props.SetText(ics.PropProductID, icsProductID)

	for _, event := range events {
		component, err := eventToComponent(event)
		if err != nil {
			return nil, err
		}
		cal.Children = append(cal.Children, component)
	}

	var buf bytes.Buffer
	if err := ics.NewEncoder(&buf).Encode(cal); err != nil {
		return nil, errors.InternalError("failed to encode calendar", err)
	}
	return buf.Bytes(), nil
}

func eventToComponent(event *calendar.Event) (*ics.Component, error) {
	component := ics.NewComponent(ics.CompEvent)
	component.Props.SetText(ics.PropUID, event.Id)
	component.Props.SetDateTime(ics.PropDateTimeStamp, time.Now().UTC())

	if event.Summary != "" {
		component.Props.SetText(ics.PropSummary, event.Summary)
	}
	if event.Description != "" {
		component.Props.SetText(ics.PropDescription, event.Description)
	}
	if event.Location != "" {
		component.Props.SetText(ics.PropLocation, event.Location)
	}
	if event.Status != "" {
		component.Props.SetText(ics.PropStatus, event.Status)
	}

	start, allDay, err := eventTime(event.Start)
	if err != nil {
		return nil, err
	}
	end, _, err := eventTime(event.End)
	if err != nil {
		return nil, err
	}

	if allDay {
		setDate(component, ics.PropDateTimeStart, start)
		setDate(component, ics.PropDateTimeEnd, end)
	} else {
		component.Props.SetDateTime(ics.PropDateTimeStart, start.UTC())
		component.Props.SetDateTime(ics.PropDateTimeEnd, end.UTC())
	}

	return component, nil
}

// eventTime resolves the Google event time, which is either an RFC3339
// date-time or a bare date for all-day events.
func eventTime(edt *calendar.EventDateTime) (time.Time, bool, error) {
	if edt == nil {
		return time.Time{}, false, errors.ValidationError("event has no start or end time")
	}
	if edt.Date != "" {
		t, err := time.Parse("2006-01-02", edt.Date)
		if err != nil {
			return time.Time{}, false, errors.ValidationError("invalid all-day event date")
		}
		return t, true, nil
	}
	t, err := time.Parse(time.RFC3339, edt.DateTime)
	if err != nil {
		return time.Time{}, false, errors.ValidationError("invalid event date-time")
	}
	return t, false, nil
}

func setDate(component *ics.Component, name string, t time.Time) {
	prop := ics.NewProp(name)
	prop.SetValueType(ics.ValueDate)
	prop.Value = t.Format("20060102")
	component.Props.Set(prop)
}
