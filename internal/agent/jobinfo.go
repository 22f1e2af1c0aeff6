package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode"

	"github.com/ashureev/jobassist/internal/domain"
	"github.com/ashureev/jobassist/internal/lookup"
)

// JobFinder is the by-id lookup used by JobInfo and Application.
type JobFinder interface {
	GetByID(ctx context.Context, jobID string) (lookup.JobRecord, error)
}

type jobInfoState struct {
	Awaiting domain.ProfileField `json:"awaiting,omitempty"`
}

var fieldPrompts = map[domain.ProfileField]string{
	domain.FieldFirstName: "Para continuar con tu postulación, ¿cuál es tu nombre?",
	domain.FieldLastName:  "Gracias. ¿Cuáles son tus apellidos?",
	domain.FieldPhone:     "¿A qué número de teléfono podemos contactarte? (10 dígitos)",
}

var fieldRetryPrompts = map[domain.ProfileField]string{
	domain.FieldFirstName: "No entendí tu nombre. ¿Me lo escribes de nuevo?",
	domain.FieldLastName:  "No entendí tus apellidos. ¿Me los escribes de nuevo?",
	domain.FieldPhone:     "Ese número no parece válido. Escríbelo con 10 dígitos, por ejemplo 5512345678.",
}

// JobInfo shows the selected job and collects the profile fields required
// to apply.
type JobInfo struct {
	jobs   JobFinder
	logger *slog.Logger
}

// NewJobInfo creates the job info handler.
func NewJobInfo(jobs JobFinder, logger *slog.Logger) *JobInfo {
	if logger == nil {
		logger = slog.Default()
	}
	return &JobInfo{jobs: jobs, logger: logger}
}

// ID implements Handler.
func (j *JobInfo) ID() domain.AgentID { return domain.AgentJobInfo }

// LoadJobInfo fetches a job and maps it onto a context. It fails with
// ErrJobNotFound when the service has no such job and ErrLookupUnavailable
// for any other failure.
func (j *JobInfo) LoadJobInfo(ctx context.Context, jobID string) (domain.JobContext, error) {
	rec, err := j.jobs.GetByID(ctx, jobID)
	switch {
	case err == nil:
		return MapJobDetails(jobID, rec), nil
	case errors.Is(err, ErrJobNotFound), errors.Is(err, ErrLookupUnavailable):
		return domain.JobContext{}, fmt.Errorf("load job %s: %w", jobID, err)
	default:
		return domain.JobContext{}, fmt.Errorf("load job %s: %w: %v", jobID, ErrLookupUnavailable, err)
	}
}

// MapJobDetails applies the field mapping policy: id is Id_Puesto else the
// requested id, location is Ubicacion else Oficinas, description is
// Descripcion_Puesto else Objetivo_del_puesto, available defaults to true
// and every other field maps by name.
func MapJobDetails(requestedID string, rec lookup.JobRecord) domain.JobContext {
	return domain.JobContext{
		ID:               lookup.FirstPresent(rec.IDPuesto, lookup.Present(requestedID)).Text,
		Title:            rec.Title.Text,
		Company:          rec.Company.Text,
		Location:         lookup.FirstPresent(rec.Ubicacion, rec.Oficinas).Text,
		Description:      lookup.FirstPresent(rec.DescripcionPuesto, rec.ObjetivoDelPuesto).Text,
		Functions:        rec.Functions.Text,
		Responsibilities: rec.Responsibilities.Text,
		SalaryMin:        rec.SalaryMin.Text,
		SalaryMax:        rec.SalaryMax.Text,
		ExperienceLevel:  rec.ExperienceLevel.Text,
		EmploymentType:   rec.EmploymentType.Text,
		Available:        rec.Disponible.Bool(true),
		AvailableDays:    rec.InterviewDays.Text,
		AvailableTimes:   rec.InterviewTimes.Text,
		Loaded:           true,
	}
}

// CheckUserProfile returns the required profile fields the session lacks,
// in prompting order.
func CheckUserProfile(sess domain.Session) []domain.ProfileField {
	var missing []domain.ProfileField
	for _, f := range domain.RequiredProfileFields {
		if strings.TrimSpace(sess.Profile.Get(f)) == "" {
			missing = append(missing, f)
		}
	}
	return missing
}

// Handle implements Handler.
func (j *JobInfo) Handle(ctx context.Context, turn Turn) (Result, error) {
	sess := turn.Session
	if !sess.Context.Selected() {
		// Nothing to show; the user must pick a job first.
		return Result{HandOff: &Directive{Target: domain.AgentDiscovery, Enter: true}}, nil
	}

	var state jobInfoState
	if err := decodeWorking(turn.Working, &state); err != nil {
		j.logger.Warn("Discarding unreadable job info state", "user_id", sess.UserID, "error", err)
		state = jobInfoState{}
	}

	var (
		res   Result
		texts []string
	)
	if !sess.Context.Loaded {
		details, err := j.LoadJobInfo(ctx, sess.Context.ID)
		if err != nil {
			return Result{}, err
		}
		if details.ID != sess.Context.ID {
			j.logger.Warn("Job id differs from selection, keeping selection", "user_id", sess.UserID, "selected", sess.Context.ID, "source_id", details.ID)
			details.ID = sess.Context.ID
		}
		res.Patch.Job = &details
		sess.Context = details
		texts = append(texts, describeJob(details))
	}

	if turn.Intent.Kind == IntentGreeting {
		label := jobLabel(sess.Context)
		if sess.Context.Title != "" {
			label = "la vacante " + label
		}
		texts = append([]string{"¡Hola! Seguimos con " + label + "."}, texts...)
	}

	// A pending question takes the user's free text as its answer.
	if state.Awaiting != "" && (turn.Intent.Kind == IntentText || turn.Intent.Kind == IntentChoose) {
		value, ok := normalizeProfileValue(state.Awaiting, turn.Intent.Raw)
		if !ok {
			res.Text = strings.Join(append(texts, fieldRetryPrompts[state.Awaiting]), "\n\n")
			res.Working = encodeWorking(state)
			return res, nil
		}
		res.Patch.Profile = res.Patch.Profile.With(state.Awaiting, value)
		sess.Profile = sess.Profile.Merge(res.Patch.Profile)
	}

	missing := CheckUserProfile(sess)
	if len(missing) > 0 {
		next := missing[0]
		texts = append(texts, fieldPrompts[next])
		res.Text = strings.Join(texts, "\n\n")
		res.Working = encodeWorking(jobInfoState{Awaiting: next})
		return res, nil
	}

	res.Working = encodeWorking(jobInfoState{})
	if turn.Intent.Kind == IntentApply {
		res.Text = strings.Join(texts, "\n\n")
		res.HandOff = &Directive{Target: domain.AgentApplication, Enter: true}
		return res, nil
	}

	texts = append(texts, fmt.Sprintf("¡Listo, %s! Ya tengo tus datos. ¿Quieres postularte a %s?", sess.Profile.FirstName, jobLabel(sess.Context)))
	res.Text = strings.Join(texts, "\n\n")
	res.QuickReplies = []domain.QuickReply{
		{Label: "Postularme", Value: postbackApply},
		{Label: "Ver otras vacantes", Value: postbackBrowse},
	}
	return res, nil
}

func normalizeProfileValue(field domain.ProfileField, raw string) (string, bool) {
	raw = strings.Join(strings.Fields(raw), " ")
	switch field {
	case domain.FieldPhone:
		var digits strings.Builder
		for _, r := range raw {
			if unicode.IsDigit(r) {
				digits.WriteRune(r)
			}
		}
		d := digits.String()
		if len(d) < 10 || len(d) > 15 {
			return "", false
		}
		return d, true
	default:
		if raw == "" || len([]rune(raw)) > 80 {
			return "", false
		}
		for _, r := range raw {
			if unicode.IsLetter(r) {
				return raw, true
			}
		}
		return "", false
	}
}

func jobLabel(c domain.JobContext) string {
	if c.Title != "" {
		return c.Title
	}
	return "la vacante " + c.ID
}

func describeJob(c domain.JobContext) string {
	var b strings.Builder
	b.WriteString(jobLabel(c))
	if c.Company != "" {
		b.WriteString(" en " + c.Company)
	}
	line := func(label, v string) {
		if v != "" {
			fmt.Fprintf(&b, "\n%s: %s", label, v)
		}
	}
	line("Ubicación", c.Location)
	line("Descripción", c.Description)
	line("Funciones", c.Functions)
	line("Responsabilidades", c.Responsibilities)
	switch {
	case c.SalaryMin != "" && c.SalaryMax != "":
		line("Sueldo", "$"+c.SalaryMin+" - $"+c.SalaryMax)
	case c.SalaryMin != "":
		line("Sueldo", "desde $"+c.SalaryMin)
	case c.SalaryMax != "":
		line("Sueldo", "hasta $"+c.SalaryMax)
	}
	line("Experiencia", c.ExperienceLevel)
	line("Contratación", c.EmploymentType)
	if !c.Available {
		b.WriteString("\nEsta vacante no está disponible por el momento.")
	}
	return b.String()
}
