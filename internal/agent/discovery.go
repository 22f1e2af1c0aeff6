package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/ashureev/jobassist/internal/domain"
	"github.com/ashureev/jobassist/internal/lookup"
)

// VacancyLister is the part of the lookup adapter Discovery uses.
type VacancyLister interface {
	ListAvailable(ctx context.Context, offset int) (lookup.Page, error)
}

// quickReplyLimit is the most buttons Messenger renders for one message.
const quickReplyLimit = 13

type discoveryState struct {
	// Listed holds the job ids of the last listing, in display order.
	Listed     []string `json:"listed,omitempty"`
	NextOffset *int     `json:"next_offset,omitempty"`
}

// Discovery lists vacancies and hands the selected one to JobInfo.
type Discovery struct {
	jobs   VacancyLister
	logger *slog.Logger
}

// NewDiscovery creates the discovery handler.
func NewDiscovery(jobs VacancyLister, logger *slog.Logger) *Discovery {
	if logger == nil {
		logger = slog.Default()
	}
	return &Discovery{jobs: jobs, logger: logger}
}

// ID implements Handler.
func (d *Discovery) ID() domain.AgentID { return domain.AgentDiscovery }

// ListVacancies returns the open vacancies from offset with the service's
// pagination. An empty page is not an error.
func (d *Discovery) ListVacancies(ctx context.Context, offset int) (lookup.Page, error) {
	page, err := d.jobs.ListAvailable(ctx, offset)
	if err != nil {
		if !errors.Is(err, ErrLookupUnavailable) {
			err = fmt.Errorf("%w: %v", ErrLookupUnavailable, err)
		}
		return lookup.Page{}, fmt.Errorf("list vacancies: %w", err)
	}
	return page, nil
}

// SelectJob hands the conversation to JobInfo for jobID. It does not fetch
// the job.
func (d *Discovery) SelectJob(jobID string) (*Directive, error) {
	id := strings.TrimSpace(jobID)
	if id == "" {
		return nil, ErrInvalidJobID
	}
	return &Directive{
		Target: domain.AgentJobInfo,
		Patch:  Patch{SelectJob: id},
		Enter:  true,
	}, nil
}

// Handle implements Handler.
func (d *Discovery) Handle(ctx context.Context, turn Turn) (Result, error) {
	var state discoveryState
	if err := decodeWorking(turn.Working, &state); err != nil {
		d.logger.Warn("Discarding unreadable discovery state", "user_id", turn.Session.UserID, "error", err)
		state = discoveryState{}
	}

	switch turn.Intent.Kind {
	case IntentSelectJob:
		return d.selectResult(turn.Intent.Arg, state)
	case IntentChoose:
		n := turn.Intent.Index
		if n < 1 || n > len(state.Listed) {
			return Result{
				Text:         "No encontré esa opción. Escribe el número de una vacante de la lista o pide ver vacantes de nuevo.",
				QuickReplies: []domain.QuickReply{{Label: "Ver vacantes", Value: postbackBrowse}},
			}, nil
		}
		return d.selectResult(state.Listed[n-1], state)
	case IntentMore:
		offset, err := strconv.Atoi(turn.Intent.Arg)
		if err != nil {
			offset = 0
		}
		return d.list(ctx, turn, offset)
	default:
		return d.list(ctx, turn, 0)
	}
}

func (d *Discovery) selectResult(jobID string, state discoveryState) (Result, error) {
	dir, err := d.SelectJob(jobID)
	if err != nil {
		return Result{
			Text:         "No pude identificar la vacante. Elige una de la lista.",
			QuickReplies: []domain.QuickReply{{Label: "Ver vacantes", Value: postbackBrowse}},
		}, nil
	}
	return Result{HandOff: dir, Working: encodeWorking(state)}, nil
}

func (d *Discovery) list(ctx context.Context, turn Turn, offset int) (Result, error) {
	page, err := d.ListVacancies(ctx, offset)
	if err != nil {
		return Result{}, err
	}

	if len(page.Items) == 0 {
		return Result{
			Text:    "Por ahora no hay vacantes disponibles. Vuelve a escribirnos pronto.",
			Working: encodeWorking(discoveryState{}),
		}, nil
	}

	var (
		b     strings.Builder
		state = discoveryState{NextOffset: page.Pagination.NextOffset}
		quick []domain.QuickReply
	)
	b.WriteString("Estas son las vacantes disponibles:\n")
	for i, item := range page.Items {
		fmt.Fprintf(&b, "\n%d. %s", i+1, displayTitle(item))
		state.Listed = append(state.Listed, item.JobID)
		if len(quick) < quickReplyLimit-1 {
			quick = append(quick, domain.QuickReply{Label: truncate(displayTitle(item), 20), Value: PostbackJob(item.JobID)})
		}
	}
	b.WriteString("\n\nEscribe el número de la vacante que te interesa.")
	if page.Pagination.HasMore && page.Pagination.NextOffset != nil {
		quick = append(quick, domain.QuickReply{Label: "Ver más", Value: prefixMore + strconv.Itoa(*page.Pagination.NextOffset)})
	}

	d.logger.Debug("Listed vacancies", "user_id", turn.Session.UserID, "count", len(page.Items), "offset", offset)
	return Result{Text: b.String(), QuickReplies: quick, Working: encodeWorking(state)}, nil
}

func displayTitle(s lookup.Summary) string {
	if s.Title != "" {
		return s.Title
	}
	return "Vacante " + s.JobID
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
