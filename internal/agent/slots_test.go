package agent

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/ashureev/jobassist/internal/domain"
)

func TestParseWeekdays(t *testing.T) {
	got := ParseWeekdays("Lunes, miércoles,SABADO, feriado, lunes")
	assert.Equal(t, []time.Weekday{time.Monday, time.Wednesday, time.Saturday}, got)
	assert.Empty(t, ParseWeekdays(""))
}

func TestParseTimes(t *testing.T) {
	got := ParseTimes("10:00 - 10:30, 15:00-15:30,,10:00-10:30")
	assert.Equal(t, []string{"10:00-10:30", "15:00-15:30"}, got)
	assert.Empty(t, ParseTimes(" "))
}

func TestIsMexicanHoliday(t *testing.T) {
	tests := []struct {
		date string
		want bool
	}{
		{"2026-01-01", true},
		{"2026-02-02", true},
		{"2026-03-16", true},
		{"2026-05-01", true},
		{"2026-09-16", true},
		{"2026-11-16", true},
		{"2026-12-25", true},
		{"2030-10-01", true},
		{"2026-10-01", false},
		{"2026-02-09", false},
		{"2026-11-09", false},
	}
	for _, tt := range tests {
		d, err := time.Parse(DateLayout, tt.date)
		assert.NoError(t, err)
		assert.Equal(t, tt.want, IsMexicanHoliday(d), tt.date)
	}
}

func TestCalendarDatesSkipsHolidays(t *testing.T) {
	cal := DefaultCalendar(testLoc)
	// Tuesday; the third Monday of November 2026 is the 16th.
	now := time.Date(2026, time.November, 10, 18, 0, 0, 0, testLoc)

	dates := cal.Dates(now, []time.Weekday{time.Monday})
	var got []string
	for _, d := range dates {
		got = append(got, d.Format(DateLayout))
	}
	assert.Equal(t, []string{"2026-11-23"}, got)
}

func TestCalendarDatesStartTomorrow(t *testing.T) {
	cal := DefaultCalendar(testLoc)
	dates := cal.Dates(testNow, []time.Weekday{time.Thursday})

	var got []string
	for _, d := range dates {
		got = append(got, d.Format(DateLayout))
	}
	assert.Equal(t, []string{"2026-10-22", "2026-10-29"}, got)
}

func TestDayLabelAndCurrentTime(t *testing.T) {
	assert.Equal(t, "Lunes 19 de octubre", DayLabel(time.Date(2026, time.October, 19, 0, 0, 0, 0, testLoc)))
	assert.Equal(t, "jueves 15 de octubre de 2026, 10:30", GetCurrentTime(testNow.UTC(), testLoc))
}

func TestParseIntent(t *testing.T) {
	tests := []struct {
		name string
		ev   domain.InboundEvent
		want Intent
	}{
		{"postback wins over text", domain.InboundEvent{Text: "hola", Postback: "JOB:151"}, Intent{Kind: IntentSelectJob, Arg: "151", Raw: "JOB:151"}},
		{"slot postback", domain.InboundEvent{Postback: "SLOT:2026-10-19|10:00-10:30"}, Intent{Kind: IntentSlot, Arg: "2026-10-19", Arg2: "10:00-10:30", Raw: "SLOT:2026-10-19|10:00-10:30"}},
		{"typed payload", domain.InboundEvent{Text: "BROWSE"}, Intent{Kind: IntentBrowse, Raw: "BROWSE"}},
		{"list number", domain.InboundEvent{Text: " 3 "}, Intent{Kind: IntentChoose, Index: 3, Raw: "3"}},
		{"long number is text", domain.InboundEvent{Text: "5512345678"}, Intent{Kind: IntentText, Raw: "5512345678"}},
		{"confirm", domain.InboundEvent{Text: "¡Confirmar!"}, Intent{Kind: IntentConfirm, Raw: "¡Confirmar!"}},
		{"apply phrase", domain.InboundEvent{Text: "Quiero postularme"}, Intent{Kind: IntentApply, Raw: "Quiero postularme"}},
		{"browse phrase", domain.InboundEvent{Text: "show jobs"}, Intent{Kind: IntentBrowse, Raw: "show jobs"}},
		{"accented browse", domain.InboundEvent{Text: "¿Hay más vacantes?"}, Intent{Kind: IntentBrowse, Raw: "¿Hay más vacantes?"}},
		{"free text", domain.InboundEvent{Text: "Ana"}, Intent{Kind: IntentText, Raw: "Ana"}},
		{"greeting", domain.InboundEvent{Text: "Buenos días"}, Intent{Kind: IntentGreeting, Raw: "Buenos días"}},
		{"greeting with request is not a greeting", domain.InboundEvent{Text: "Hola, me interesa"}, Intent{Kind: IntentApply, Raw: "Hola, me interesa"}},
		{"status phrase", domain.InboundEvent{Text: "¿Cómo va mi postulación?"}, Intent{Kind: IntentStatus, Raw: "¿Cómo va mi postulación?"}},
		{"status postback", domain.InboundEvent{Postback: "STATUS"}, Intent{Kind: IntentStatus, Raw: "STATUS"}},
		{"follow-up phrase", domain.InboundEvent{Text: "Seguimiento"}, Intent{Kind: IntentStatus, Raw: "Seguimiento"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseIntent(tt.ev))
		})
	}
}
