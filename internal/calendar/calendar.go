// Package calendar lists the tutor's calendar events through the Google Calendar API.
package calendar

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/yuvalaufer/students-calander/pkg/logger"
	"golang.org/x/oauth2"
	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"
)

// ErrCalendarUnavailable wraps every failure to reach or read the calendar.
var ErrCalendarUnavailable = errors.New("calendar unavailable")

const dateLayout = "2006-01-02"

// Event is a calendar event within the queried window. All-day events carry
// midnight-to-midnight times in the calendar's time zone.
type Event struct {
	ID          string    `json:"id"`
	Summary     string    `json:"summary"`
	Description string    `json:"description,omitempty"`
	Location    string    `json:"location,omitempty"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	AllDay      bool      `json:"allDay"`
}

// GoogleSource reads one calendar.
type GoogleSource struct {
	calendarID string
	opts       []option.ClientOption
}

// NewGoogleSource reads calendarID ("primary" when empty). opts are appended to
// every client, e.g. a test endpoint.
func NewGoogleSource(calendarID string, opts ...option.ClientOption) *GoogleSource {
	if calendarID == "" {
		calendarID = "primary"
	}
	return &GoogleSource{calendarID: calendarID, opts: opts}
}

// ListEvents returns the non-cancelled events overlapping [start, end), expanded into
// single instances and ordered by start time, following every result page.
func (g *GoogleSource) ListEvents(ctx context.Context, ts oauth2.TokenSource, start, end time.Time) ([]Event, error) {
	opts := append([]option.ClientOption{option.WithTokenSource(ts)}, g.opts...)
	svc, err := gcal.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCalendarUnavailable, err)
	}

	call := svc.Events.List(g.calendarID).
		TimeMin(start.Format(time.RFC3339)).
		TimeMax(end.Format(time.RFC3339)).
		SingleEvents(true).
		OrderBy("startTime").
		MaxResults(250)

	var out []Event
	err = call.Pages(ctx, func(page *gcal.Events) error {
		loc := time.UTC
		if page.TimeZone != "" {
			if l, err := time.LoadLocation(page.TimeZone); err == nil {
				loc = l
			}
		}
		for _, item := range page.Items {
			if item.Status == "cancelled" {
				continue
			}
			ev, err := convert(item, loc)
			if err != nil {
				logger.Warnf("skipping calendar event %s: %v", item.Id, err)
				continue
			}
			out = append(out, ev)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCalendarUnavailable, err)
	}
	if out == nil {
		out = []Event{}
	}
	return out, nil
}

func convert(item *gcal.Event, loc *time.Location) (Event, error) {
	ev := Event{
		ID:          item.Id,
		Summary:     item.Summary,
		Description: item.Description,
		Location:    item.Location,
	}
	if item.Start == nil || item.End == nil {
		return Event{}, errors.New("missing start or end")
	}
	var err error
	if item.Start.DateTime == "" && item.Start.Date != "" {
		ev.AllDay = true
		if ev.Start, err = time.ParseInLocation(dateLayout, item.Start.Date, loc); err != nil {
			return Event{}, err
		}
		if ev.End, err = time.ParseInLocation(dateLayout, item.End.Date, loc); err != nil {
			return Event{}, err
		}
		return ev, nil
	}
	if ev.Start, err = time.Parse(time.RFC3339, item.Start.DateTime); err != nil {
		return Event{}, err
	}
	if ev.End, err = time.Parse(time.RFC3339, item.End.DateTime); err != nil {
		return Event{}, err
	}
	return ev, nil
}
