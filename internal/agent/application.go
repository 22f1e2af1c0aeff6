package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/ashureev/jobassist/internal/domain"
)

// SlotOffer is the candidate set computed for one job.
type SlotOffer struct {
	JobID      string    `json:"job_id"`
	Days       []string  `json:"days,omitempty"`
	Times      []string  `json:"times,omitempty"`
	ComputedAt time.Time `json:"computed_at"`
}

// Slot is one (day, time) candidate.
type Slot struct {
	Day  string
	Time string
}

// Empty reports whether the offer has no slot.
func (o SlotOffer) Empty() bool {
	return len(o.Days) == 0 || len(o.Times) == 0
}

// Contains reports whether (day, tm) is a candidate.
func (o SlotOffer) Contains(day, tm string) bool {
	return slices.Contains(o.Days, day) && slices.Contains(o.Times, tm)
}

// Slots returns every candidate, days first.
func (o SlotOffer) Slots() []Slot {
	if o.Empty() {
		return nil
	}
	slots := make([]Slot, 0, len(o.Days)*len(o.Times))
	for _, d := range o.Days {
		for _, t := range o.Times {
			slots = append(slots, Slot{Day: d, Time: t})
		}
	}
	return slots
}

type applicationState struct {
	Offer      *SlotOffer `json:"offer,omitempty"`
	PendingDay string     `json:"pending_day,omitempty"`
}

// Application offers interview slots for the current job and records the
// user's choice.
type Application struct {
	jobs     JobFinder
	calendar Calendar
	logger   *slog.Logger
}

// NewApplication creates the application handler.
func NewApplication(jobs JobFinder, calendar Calendar, logger *slog.Logger) *Application {
	if logger == nil {
		logger = slog.Default()
	}
	return &Application{jobs: jobs, calendar: calendar, logger: logger}
}

// ID implements Handler.
func (a *Application) ID() domain.AgentID { return domain.AgentApplication }

// GetAvailableSlots reloads the current job and computes its candidate
// slots. A job without scheduling data yields an empty offer.
func (a *Application) GetAvailableSlots(ctx context.Context, sess domain.Session, now time.Time) (SlotOffer, error) {
	jobID := sess.Context.ID
	rec, err := a.jobs.GetByID(ctx, jobID)
	if err != nil {
		if !errors.Is(err, ErrJobNotFound) && !errors.Is(err, ErrLookupUnavailable) {
			err = fmt.Errorf("%w: %v", ErrLookupUnavailable, err)
		}
		return SlotOffer{}, fmt.Errorf("reload job %s: %w", jobID, err)
	}
	details := MapJobDetails(jobID, rec)

	offer := SlotOffer{JobID: jobID, ComputedAt: now}
	weekdays := ParseWeekdays(details.AvailableDays)
	times := ParseTimes(details.AvailableTimes)
	if len(weekdays) == 0 || len(times) == 0 {
		return offer, nil
	}
	for _, d := range a.calendar.Dates(now, weekdays) {
		offer.Days = append(offer.Days, d.Format(DateLayout))
	}
	if len(offer.Days) > 0 {
		offer.Times = times
	}
	return offer, nil
}

// SelectSlot validates (day, tm) against the offer most recently computed
// and returns the selection to record. The offer must have been computed for
// the job currently in the session context.
func SelectSlot(sess domain.Session, offer *SlotOffer, day, tm string, now time.Time) (domain.SlotSelection, error) {
	switch {
	case offer == nil:
		return domain.SlotSelection{}, fmt.Errorf("%w: no slots offered yet", ErrInvalidSlot)
	case offer.JobID != sess.Context.ID:
		return domain.SlotSelection{}, fmt.Errorf("%w: slots were computed for job %s, current job is %s", ErrInvalidSlot, offer.JobID, sess.Context.ID)
	case !offer.Contains(day, tm):
		return domain.SlotSelection{}, fmt.Errorf("%w: %s %s", ErrInvalidSlot, day, tm)
	}
	return domain.SlotSelection{JobID: offer.JobID, Day: day, Time: tm, SelectedAt: now}, nil
}

// Handle implements Handler.
func (a *Application) Handle(ctx context.Context, turn Turn) (Result, error) {
	sess := turn.Session
	if !sess.Context.Selected() {
		return Result{HandOff: &Directive{Target: domain.AgentDiscovery, Enter: true}}, nil
	}

	var state applicationState
	if err := decodeWorking(turn.Working, &state); err != nil {
		a.logger.Warn("Discarding unreadable application state", "user_id", sess.UserID, "error", err)
		state = applicationState{}
	}
	fresh := state.Offer != nil && state.Offer.JobID == sess.Context.ID && !state.Offer.Empty()

	switch turn.Intent.Kind {
	case IntentSlot:
		return a.choose(ctx, turn, state, turn.Intent.Arg, turn.Intent.Arg2)
	case IntentDay:
		if !fresh || !slices.Contains(state.Offer.Days, turn.Intent.Arg) {
			return a.offer(ctx, turn, "Ese día ya no está disponible.")
		}
		state.PendingDay = turn.Intent.Arg
		return a.timesResult(state), nil
	case IntentChoose:
		if !fresh {
			return a.offer(ctx, turn, "")
		}
		n := turn.Intent.Index
		if state.PendingDay == "" {
			if n < 1 || n > len(state.Offer.Days) {
				return a.daysResult(sess, state, "No encontré esa opción.", turn.Now), nil
			}
			state.PendingDay = state.Offer.Days[n-1]
			return a.timesResult(state), nil
		}
		if n < 1 || n > len(state.Offer.Times) {
			res := a.timesResult(state)
			res.Text = "No encontré esa opción.\n\n" + res.Text
			return res, nil
		}
		return a.choose(ctx, turn, state, state.PendingDay, state.Offer.Times[n-1])
	case IntentConfirm:
		return a.confirm(ctx, turn)
	default:
		return a.offer(ctx, turn, "")
	}
}

func (a *Application) choose(ctx context.Context, turn Turn, state applicationState, day, tm string) (Result, error) {
	sess := turn.Session
	if missing := CheckUserProfile(sess); len(missing) > 0 {
		return Result{Text: missingFieldsText(missing)}, nil
	}

	sel, err := SelectSlot(sess, state.Offer, day, tm, turn.Now)
	if errors.Is(err, ErrInvalidSlot) {
		a.logger.Info("Rejected interview slot", "user_id", sess.UserID, "job_id", sess.Context.ID, "error", err)
		return a.offer(ctx, turn, "Ese horario no está disponible para esta vacante.")
	}
	if err != nil {
		return Result{}, err
	}

	state.PendingDay = ""
	return Result{
		Text: fmt.Sprintf("Apartamos tu entrevista para %s el %s a las %s. ¿Confirmas tu postulación?",
			jobLabel(sess.Context), a.dayLabel(sel.Day), sel.Time),
		QuickReplies: []domain.QuickReply{
			{Label: "Confirmar", Value: postbackConfirm},
			{Label: "Cambiar horario", Value: postbackApply},
		},
		Patch:   Patch{Selection: &sel},
		Working: encodeWorking(state),
		HandOff: &Directive{Target: domain.AgentApplication},
	}, nil
}

func (a *Application) confirm(ctx context.Context, turn Turn) (Result, error) {
	sess := turn.Session
	sel := sess.Selection
	if sel == nil || sel.JobID != sess.Context.ID {
		return a.offer(ctx, turn, "Primero elige un horario para tu entrevista.")
	}
	if missing := CheckUserProfile(sess); len(missing) > 0 {
		return Result{Text: missingFieldsText(missing)}, nil
	}
	if sess.HasApplied(sess.Context.ID) {
		return Result{
			Text:         fmt.Sprintf("Ya tienes una postulación registrada para %s. Si quieres, puedes ver otras vacantes.", jobLabel(sess.Context)),
			QuickReplies: []domain.QuickReply{{Label: "Ver vacantes", Value: postbackBrowse}},
		}, nil
	}

	app := domain.Application{
		JobID:     sess.Context.ID,
		Title:     sess.Context.Title,
		Company:   sess.Context.Company,
		Day:       sel.Day,
		Time:      sel.Time,
		AppliedAt: turn.Now,
	}
	a.logger.Info("Application recorded", "user_id", sess.UserID, "job_id", app.JobID, "day", app.Day, "time", app.Time)
	return Result{
		Text: fmt.Sprintf("¡Listo, %s! Registramos tu postulación para %s. Tu entrevista es el %s a las %s; te contactaremos al %s.",
			sess.Profile.FirstName, jobLabel(sess.Context), a.dayLabel(app.Day), app.Time, sess.Profile.Phone),
		QuickReplies: []domain.QuickReply{
			{Label: "Mis postulaciones", Value: postbackStatus},
			{Label: "Ver otras vacantes", Value: postbackBrowse},
		},
		Patch: Patch{Application: &app},
	}, nil
}

// offer recomputes the candidate set and asks for a day.
func (a *Application) offer(ctx context.Context, turn Turn, prefix string) (Result, error) {
	sess := turn.Session
	offer, err := a.GetAvailableSlots(ctx, sess, turn.Now)
	if err != nil {
		return Result{}, err
	}
	state := applicationState{Offer: &offer}

	if offer.Empty() {
		return Result{
			Text: joinText(prefix, fmt.Sprintf("Por ahora no hay horarios de entrevista disponibles para %s. Puedes intentarlo más tarde o ver otras vacantes.",
				jobLabel(sess.Context))),
			QuickReplies: []domain.QuickReply{{Label: "Ver vacantes", Value: postbackBrowse}},
			Working:      encodeWorking(state),
		}, nil
	}
	return a.daysResult(sess, state, prefix, turn.Now), nil
}

func (a *Application) daysResult(sess domain.Session, state applicationState, prefix string, now time.Time) Result {
	var b strings.Builder
	fmt.Fprintf(&b, "Hoy es %s. Estos son los días disponibles para tu entrevista de %s:\n",
		GetCurrentTime(now, a.calendar.Location), jobLabel(sess.Context))
	quick := make([]domain.QuickReply, 0, len(state.Offer.Days))
	for i, d := range state.Offer.Days {
		label := a.dayLabel(d)
		fmt.Fprintf(&b, "\n%d. %s", i+1, label)
		if len(quick) < quickReplyLimit {
			quick = append(quick, domain.QuickReply{Label: truncate(label, 20), Value: prefixDay + d})
		}
	}
	b.WriteString("\n\nEscribe el número del día que prefieras.")
	state.PendingDay = ""
	return Result{Text: joinText(prefix, b.String()), QuickReplies: quick, Working: encodeWorking(state)}
}

func (a *Application) timesResult(state applicationState) Result {
	var b strings.Builder
	fmt.Fprintf(&b, "Horarios disponibles para el %s:\n", a.dayLabel(state.PendingDay))
	quick := make([]domain.QuickReply, 0, len(state.Offer.Times))
	for i, t := range state.Offer.Times {
		fmt.Fprintf(&b, "\n%d. %s", i+1, t)
		if len(quick) < quickReplyLimit {
			quick = append(quick, domain.QuickReply{Label: t, Value: PostbackSlot(state.PendingDay, t)})
		}
	}
	b.WriteString("\n\nEscribe el número del horario.")
	return Result{Text: b.String(), QuickReplies: quick, Working: encodeWorking(state)}
}

func (a *Application) dayLabel(day string) string {
	loc := a.calendar.Location
	if loc == nil {
		loc = time.UTC
	}
	t, err := time.ParseInLocation(DateLayout, day, loc)
	if err != nil {
		return day
	}
	return DayLabel(t)
}

func missingFieldsText(missing []domain.ProfileField) string {
	names := make([]string, 0, len(missing))
	for _, f := range missing {
		switch f {
		case domain.FieldFirstName:
			names = append(names, "nombre")
		case domain.FieldLastName:
			names = append(names, "apellidos")
		case domain.FieldPhone:
			names = append(names, "teléfono")
		}
	}
	return "Antes de agendar tu entrevista me faltan estos datos: " + strings.Join(names, ", ") + ". Escribe \"ver vacantes\" para empezar de nuevo."
}

func joinText(parts ...string) string {
	var out []string
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, "\n\n")
}
