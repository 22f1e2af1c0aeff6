package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ashureev/jobassist/internal/domain"
	"github.com/ashureev/jobassist/internal/metrics"
)

// maxHops bounds how many agents may answer within one turn.
const maxHops = 3

const jobNotFoundText = "Lo siento, esa vacante ya no está disponible. Puedes consultar otras vacantes cuando quieras."

// Outcome is the result of dispatching one turn.
type Outcome struct {
	Session *domain.Session
	Reply   domain.Reply
	// Path lists the agents that answered, in order.
	Path []domain.AgentID
}

// Router dispatches turns to the active agent and applies hand-offs and
// patches to the session.
type Router struct {
	registry *Registry
	logger   *slog.Logger
	metrics  *metrics.Metrics
	now      func() time.Time
}

// NewRouter creates a router over a validated registry.
func NewRouter(registry *Registry, logger *slog.Logger, m *metrics.Metrics) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{registry: registry, logger: logger, metrics: m, now: time.Now}
}

// Dispatch runs one turn against a copy of sess. On error the returned
// outcome is empty and sess is untouched.
func (r *Router) Dispatch(ctx context.Context, sess *domain.Session, ev domain.InboundEvent) (Outcome, error) {
	work := sess.Clone()
	work.ActiveAgent = work.ActiveAgent.Resolve()
	if !work.ActiveAgent.Valid() {
		return Outcome{}, fmt.Errorf("session agent %q: %w", work.ActiveAgent, ErrUnknownAgent)
	}

	intent := ParseIntent(ev)
	if intent.Kind == IntentStatus {
		r.logger.Info("Application status requested", "user_id", work.UserID, "agent", work.ActiveAgent, "applications", len(work.Applications))
		res := ApplicationStatus(*work, r.now())
		return Outcome{
			Session: work,
			Reply: domain.Reply{
				Channel:      work.Channel,
				UserID:       work.UserID,
				Text:         res.Text,
				QuickReplies: res.QuickReplies,
			},
		}, nil
	}
	if work.ActiveAgent != domain.AgentDiscovery && (intent.Kind == IntentBrowse || intent.Kind == IntentSelectJob) {
		if err := r.Apply(work, Directive{Target: domain.AgentDiscovery}); err != nil {
			return Outcome{}, err
		}
	}

	var (
		texts []string
		quick []domain.QuickReply
		path  []domain.AgentID
	)
	for hop := 0; hop < maxHops; hop++ {
		current := work.ActiveAgent
		h, err := r.registry.Handler(current)
		if err != nil {
			return Outcome{}, err
		}

		snapshot := work.Clone()
		res, err := h.Handle(ctx, Turn{
			Session: *snapshot,
			Event:   ev,
			Intent:  intent,
			Working: snapshot.Working[current],
			Now:     r.now(),
		})
		if errors.Is(err, ErrJobNotFound) {
			r.logger.Info("Job not found, returning to discovery", "user_id", work.UserID, "agent", current, "job_id", work.Context.ID)
			work.Context = domain.JobContext{}
			work.Selection = nil
			delete(work.Working, domain.AgentJobInfo)
			delete(work.Working, domain.AgentApplication)
			res, err = Result{
				Text:         jobNotFoundText,
				QuickReplies: []domain.QuickReply{{Label: "Ver vacantes", Value: postbackBrowse}},
				HandOff:      &Directive{Target: domain.AgentDiscovery},
			}, nil
		}
		if err != nil {
			return Outcome{}, fmt.Errorf("%s: %w", current, err)
		}
		path = append(path, current)

		if err := r.applyPatch(work, res.Patch); err != nil {
			return Outcome{}, fmt.Errorf("%s: %w", current, err)
		}
		if res.Working != nil {
			if work.Working == nil {
				work.Working = make(map[domain.AgentID]json.RawMessage)
			}
			work.Working[current] = res.Working
		}
		if res.Text != "" {
			texts = append(texts, res.Text)
		}
		if len(res.QuickReplies) > 0 {
			quick = res.QuickReplies
		}

		if res.HandOff == nil {
			break
		}
		if err := r.Apply(work, *res.HandOff); err != nil {
			return Outcome{}, err
		}
		if !res.HandOff.Enter || res.HandOff.Target == current {
			break
		}
		intent = Intent{Kind: IntentEnter}
	}

	return Outcome{
		Session: work,
		Reply: domain.Reply{
			Channel:      work.Channel,
			UserID:       work.UserID,
			Text:         strings.Join(texts, "\n\n"),
			QuickReplies: quick,
		},
		Path: path,
	}, nil
}

// Apply validates a hand-off against the graph and applies it to sess.
func (r *Router) Apply(sess *domain.Session, d Directive) error {
	from := sess.ActiveAgent.Resolve()
	if !CanHandOff(from, d.Target) {
		r.logger.Error("Rejected hand-off outside the agent graph", "user_id", sess.UserID, "from", from, "to", d.Target)
		return fmt.Errorf("%s -> %s: %w", from, d.Target, ErrInvalidTransition)
	}
	if err := r.applyPatch(sess, d.Patch); err != nil {
		return err
	}
	sess.ActiveAgent = d.Target
	r.metrics.IncHandOff(from.String(), d.Target.String())
	r.logger.Debug("Hand-off applied", "user_id", sess.UserID, "from", from, "to", d.Target)
	return nil
}

func (r *Router) applyPatch(sess *domain.Session, p Patch) error {
	if id := strings.TrimSpace(p.SelectJob); id != "" {
		sess.Context = domain.JobContext{ID: id}
		sess.Selection = nil
		delete(sess.Working, domain.AgentJobInfo)
		delete(sess.Working, domain.AgentApplication)
	}
	if p.Job != nil {
		if !sess.Context.Selected() || p.Job.ID != sess.Context.ID {
			return fmt.Errorf("enrich job %q while %q is selected: %w", p.Job.ID, sess.Context.ID, ErrContextConflict)
		}
		sess.Context = *p.Job
	}
	if !p.Profile.IsZero() {
		sess.Profile = sess.Profile.Merge(p.Profile)
	}
	if p.Selection != nil {
		if p.Selection.JobID != sess.Context.ID {
			return fmt.Errorf("select slot for job %q while %q is selected: %w", p.Selection.JobID, sess.Context.ID, ErrContextConflict)
		}
		sel := *p.Selection
		sess.Selection = &sel
	}
	if p.Application != nil && !sess.HasApplied(p.Application.JobID) {
		sess.Applications = append(sess.Applications, *p.Application)
	}
	return nil
}
