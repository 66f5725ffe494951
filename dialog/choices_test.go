package dialog

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)

func flatten(rows [][]string) []string {
	var out []string
	for _, row := range rows {
		out = append(out, row...)
	}
	return out
}

func TestTimeChoicesCoverFullDay(t *testing.T) {
	slots := flatten(timeChoices())
	require.Len(t, slots, 48)
	assert.Equal(t, "00:00", slots[0])
	assert.Equal(t, "00:30", slots[1])
	assert.Equal(t, "23:30", slots[47])
}

func TestStartDateChoicesOfferPastWeek(t *testing.T) {
	days := flatten(startDateChoices(fixedNow))
	require.Len(t, days, 7)
	assert.Equal(t, "2026-08-28", days[0])
	assert.Equal(t, "2026-08-22", days[6])
}

func TestEndDateChoicesForTodayStart(t *testing.T) {
	days := flatten(endDateChoices(fixedNow, "2026-08-28"))
	assert.Equal(t, []string{"2026-08-28", "2026-08-29"}, days)
}

func TestEndDateChoicesWalkBackToPastStart(t *testing.T) {
	days := flatten(endDateChoices(fixedNow, "2026-08-25"))
	assert.Equal(t, []string{"2026-08-28", "2026-08-27", "2026-08-26", "2026-08-25"}, days)
}

func TestEndDateChoicesWalkForwardToFutureStart(t *testing.T) {
	days := flatten(endDateChoices(fixedNow, "2026-08-30"))
	assert.Equal(t, []string{"2026-08-28", "2026-08-29", "2026-08-30"}, days)
}

func TestEndDateChoicesUnparseableStart(t *testing.T) {
	assert.Nil(t, endDateChoices(fixedNow, "next tuesday"))
}

func TestEndTimeChoicesSameDayExcludesEarlierSlots(t *testing.T) {
	vals := Values{
		fieldStartDate: "2026-08-28",
		fieldEndDate:   "2026-08-28",
		fieldStartTime: "09:30",
	}
	slots := flatten(endTimeChoices(vals))
	require.NotEmpty(t, slots)
	assert.Equal(t, "09:30", slots[0])
	assert.Len(t, slots, 29)
	for _, s := range slots {
		assert.GreaterOrEqual(t, s, "09:30")
	}
}

func TestEndTimeChoicesDifferentDayOffersFullGrid(t *testing.T) {
	vals := Values{
		fieldStartDate: "2026-08-28",
		fieldEndDate:   "2026-08-29",
		fieldStartTime: "09:30",
	}
	assert.Len(t, flatten(endTimeChoices(vals)), 48)
}

func TestEndTimeChoicesUnparseableStartTime(t *testing.T) {
	vals := Values{
		fieldStartDate: "2026-08-28",
		fieldEndDate:   "2026-08-28",
		fieldStartTime: "soonish",
	}
	assert.Len(t, flatten(endTimeChoices(vals)), 48)
}
