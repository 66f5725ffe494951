package dialog

import (
	"fmt"
	"time"
)

// Field names shared by the entry flows.
const (
	fieldProject     = "project"
	fieldDescription = "description"
	fieldStartDate   = "start_date"
	fieldStartTime   = "start_time"
	fieldEndDate     = "end_date"
	fieldEndTime     = "end_time"
	fieldEmail       = "email"
	fieldAPIKey      = "api_key"
)

const dateLayout = "2006-01-02"

const (
	dateRowWidth = 2
	timeRowWidth = 4
)

// timeSlots returns all 48 half-hour labels from 00:00 through 23:30.
func timeSlots() []string {
	slots := make([]string, 0, 48)
	for h := 0; h < 24; h++ {
		slots = append(slots, fmt.Sprintf("%02d:00", h), fmt.Sprintf("%02d:30", h))
	}
	return slots
}

// timeChoices offers the full half-hour grid.
func timeChoices() [][]string {
	return chunk(timeSlots(), timeRowWidth)
}

// startDateChoices offers the past week, today first.
func startDateChoices(now time.Time) [][]string {
	days := make([]string, 0, 7)
	for i := 0; i < 7; i++ {
		days = append(days, now.AddDate(0, 0, -i).Format(dateLayout))
	}
	return chunk(days, dateRowWidth)
}

// endDateChoices derives the offered end dates from the collected start
// date. A start of today offers exactly today and tomorrow; otherwise every
// date from today through the start date inclusive is offered, walking in
// whichever direction the start lies. An unparseable start date yields no
// keyboard, leaving the input free text.
func endDateChoices(now time.Time, startDate string) [][]string {
	today := now.Format(dateLayout)
	if startDate == today {
		return chunk([]string{today, now.AddDate(0, 0, 1).Format(dateLayout)}, dateRowWidth)
	}

	start, err := time.Parse(dateLayout, startDate)
	if err != nil {
		return nil
	}

	day, err := time.Parse(dateLayout, today)
	if err != nil {
		return nil
	}

	step := 1
	if start.Before(day) {
		step = -1
	}
	var days []string
	for {
		days = append(days, day.Format(dateLayout))
		if day.Format(dateLayout) == startDate {
			break
		}
		day = day.AddDate(0, 0, step)
	}
	return chunk(days, dateRowWidth)
}

// endTimeChoices filters the half-hour grid against the collected start
// time, but only when the chosen end date equals the start date. Slots
// strictly earlier than the start time are dropped; on a different end date
// or an unparseable start time the full grid is offered.
func endTimeChoices(vals Values) [][]string {
	if vals[fieldEndDate] != vals[fieldStartDate] {
		return timeChoices()
	}
	parsed, err := time.Parse("15:04", vals[fieldStartTime])
	if err != nil {
		return timeChoices()
	}
	startTime := parsed.Format("15:04")

	var kept []string
	for _, slot := range timeSlots() {
		if slot >= startTime {
			kept = append(kept, slot)
		}
	}
	return chunk(kept, timeRowWidth)
}

func chunk(labels []string, width int) [][]string {
	if len(labels) == 0 {
		return nil
	}
	var rows [][]string
	for i := 0; i < len(labels); i += width {
		end := i + width
		if end > len(labels) {
			end = len(labels)
		}
		rows = append(rows, labels[i:end])
	}
	return rows
}
