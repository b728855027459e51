// Package calendar exports a trigger plan as an iCalendar feed with one
// event per trigger, so organizers can see the schedule before registering.
package calendar

import (
	"fmt"
	"io"
	"strings"
	"time"

	"dday-scheduler/internal/schedule"
	ics "github.com/emersion/go-ical"
)

const (
	productID = "-//dday-scheduler//trigger plan//EN"
	// ContentType is the media type of the encoded calendar
	ContentType = "text/calendar; charset=utf-8"
	uidDomain   = "dday-scheduler"
)

// Build converts a plan view into a calendar. now stamps every event.
func Build(view schedule.PlanView, now time.Time) *ics.Calendar {
	cal := ics.NewCalendar()
	cal.Props.SetText(ics.PropVersion, "2.0")
	cal.Props.SetText(ics.PropProductID, productID)
	cal.Props.SetText(ics.PropCalendarScale, "GREGORIAN")

	for _, trigger := range view.Triggers {
		event := ics.NewEvent()
		event.Props.SetText(ics.PropUID, trigger.TriggerID+"@"+uidDomain)
		event.Props.SetDateTime(ics.PropDateTimeStamp, now.UTC())
		event.Props.SetDateTime(ics.PropDateTimeStart, trigger.FireAt.UTC())
		event.Props.SetDateTime(ics.PropDateTimeEnd, trigger.FireAt.Add(15*time.Minute).UTC())
		event.Props.SetText(ics.PropSummary, fmt.Sprintf("%s D%+d", view.EventName, trigger.Offset))
		event.Props.SetText(ics.PropDescription, describe(trigger))

		status := "CONFIRMED"
		if trigger.Error != "" {
			status = "TENTATIVE"
		}
		event.Props.SetText(ics.PropStatus, status)

		cal.Children = append(cal.Children, event.Component)
	}

	return cal
}

// Encode writes the plan as iCalendar text
func Encode(w io.Writer, view schedule.PlanView, now time.Time) error {
	if err := ics.NewEncoder(w).Encode(Build(view, now)); err != nil {
		return fmt.Errorf("encode calendar: %w", err)
	}
	return nil
}

func describe(trigger schedule.TriggerView) string {
	tasks := make([]string, 0, len(trigger.Targets))
	for _, task := range trigger.Targets {
		tasks = append(tasks, string(task))
	}

	desc := fmt.Sprintf("%s\nTargets: %s\nSchedule: %s", trigger.Description, strings.Join(tasks, ", "), trigger.ScheduleExpression)
	if trigger.Error != "" {
		desc += "\nError: " + trigger.Error
	}
	return desc
}
