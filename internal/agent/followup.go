package agent

import (
	"fmt"
	"strings"
	"time"

	"github.com/ashureev/jobassist/internal/domain"
)

const (
	noApplicationsText = "actualmente no tienes postulaciones registradas. ¿Te gustaría buscar vacantes disponibles?"
	hrCallText         = "Recursos Humanos confirma cada entrevista con una llamada. Si aún no te han llamado, tu postulación sigue en proceso."
)

// ApplicationStatus answers a follow-up request from the applications
// recorded in sess. It reads the session only; the active agent and the job
// under discussion are left as they are.
func ApplicationStatus(sess domain.Session, now time.Time) Result {
	quick := []domain.QuickReply{{Label: "Ver vacantes", Value: postbackBrowse}}
	name := strings.TrimSpace(sess.Profile.FirstName)

	if len(sess.Applications) == 0 {
		greeting := "Hola, "
		if name != "" {
			greeting = "Hola " + name + ", "
		}
		return Result{Text: greeting + noApplicationsText, QuickReplies: quick}
	}

	var b strings.Builder
	if name != "" {
		fmt.Fprintf(&b, "Muy bien %s, aquí tienes el seguimiento de tus postulaciones:", name)
	} else {
		b.WriteString("Aquí tienes el seguimiento de tus postulaciones:")
	}

	today := now.Format(DateLayout)
	for i, app := range sess.Applications {
		title := app.Title
		if title == "" {
			title = "Vacante " + app.JobID
		}
		fmt.Fprintf(&b, "\n\n%d. %s", i+1, title)
		if app.Company != "" {
			fmt.Fprintf(&b, " en %s", app.Company)
		}
		day := interviewDay(app.Day, now.Location())
		if app.Day >= today {
			fmt.Fprintf(&b, "\nEntrevista programada: %s a las %s", day, app.Time)
		} else {
			fmt.Fprintf(&b, "\nEntrevista del %s a las %s (ya pasó)", day, app.Time)
		}
	}
	b.WriteString("\n\n" + hrCallText)
	return Result{Text: b.String(), QuickReplies: quick}
}

func interviewDay(day string, loc *time.Location) string {
	t, err := time.ParseInLocation(DateLayout, day, loc)
	if err != nil {
		return day
	}
	return DayLabel(t)
}
