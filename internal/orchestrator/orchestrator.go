// Package orchestrator runs one conversation turn end to end: ingestion,
// dispatch, persistence and reply delivery.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/ashureev/jobassist/internal/agent"
	"github.com/ashureev/jobassist/internal/delivery"
	"github.com/ashureev/jobassist/internal/domain"
	"github.com/ashureev/jobassist/internal/identity"
	"github.com/ashureev/jobassist/internal/metrics"
	"github.com/ashureev/jobassist/internal/watch"
)

// ErrInvalidEvent is returned for inbound events that cannot start a turn.
var ErrInvalidEvent = errors.New("invalid inbound event")

// Turn outcomes, also used as metric labels.
const (
	OutcomeOK          = "ok"
	OutcomeDuplicate   = "duplicate"
	OutcomeUnavailable = "lookup_unavailable"
	OutcomeFallback    = "contract_violation"
	OutcomeError       = "error"
)

const (
	unavailableText = "En este momento no puedo consultar las vacantes. Por favor, intenta de nuevo en unos minutos."
	fallbackText    = "Lo siento, algo salió mal con tu conversación. Escribe \"ver vacantes\" para empezar de nuevo."
	errorText       = "Lo siento, ocurrió un error al procesar tu mensaje. Por favor, intenta de nuevo más tarde."
	emptyReplyText  = "¿En qué te puedo ayudar? Escribe \"ver vacantes\" para conocer las vacantes disponibles."

	defaultDedupSize = 2048
	defaultDedupTTL  = 10 * time.Minute
)

// SessionStore is the persistence the orchestrator needs.
type SessionStore interface {
	GetSession(ctx context.Context, appName, userID string) (*domain.Session, error)
	PutSession(ctx context.Context, session *domain.Session) error
}

// Dispatcher runs a turn against a session.
type Dispatcher interface {
	Dispatch(ctx context.Context, sess *domain.Session, ev domain.InboundEvent) (agent.Outcome, error)
}

// AdResolver maps a campaign ad to the vacancy it advertises.
type AdResolver interface {
	SearchByAdID(ctx context.Context, adID string) (string, error)
}

// Publisher receives an event per persisted turn.
type Publisher interface {
	Publish(ev watch.Event)
}

// Options configures an Orchestrator. Ads, Watch, Logger and Metrics are
// optional.
type Options struct {
	AppName         string
	Store           SessionStore
	Router          Dispatcher
	Sender          delivery.Sender
	Ads             AdResolver
	Watch           Publisher
	Logger          *slog.Logger
	Metrics         *metrics.Metrics
	DedupSize       int
	DedupTTL        time.Duration
	DeliveryTimeout time.Duration
	Now             func() time.Time
}

// Result describes a completed turn.
type Result struct {
	TurnID      string         `json:"turn_id,omitempty"`
	UserID      string         `json:"user_id"`
	ActiveAgent domain.AgentID `json:"active_agent,omitempty"`
	Outcome     string         `json:"outcome"`
	Reply       domain.Reply   `json:"reply"`
	Delivered   bool           `json:"delivered"`
	// DeliveryErr is set when the reply could not be delivered. The turn
	// itself is persisted regardless.
	DeliveryErr error `json:"-"`
}

// Orchestrator serializes turns per user and runs them.
type Orchestrator struct {
	opts  Options
	locks *lockTable

	dedupMu sync.Mutex
	dedup   *lru.Cache[string, time.Time]
}

// New creates an orchestrator.
func New(opts Options) (*Orchestrator, error) {
	if opts.Store == nil || opts.Router == nil || opts.Sender == nil {
		return nil, errors.New("orchestrator requires a store, a router and a sender")
	}
	if strings.TrimSpace(opts.AppName) == "" {
		return nil, errors.New("orchestrator requires an app name")
	}
	if opts.DedupSize <= 0 {
		opts.DedupSize = defaultDedupSize
	}
	if opts.DedupTTL <= 0 {
		opts.DedupTTL = defaultDedupTTL
	}
	if opts.DeliveryTimeout <= 0 {
		opts.DeliveryTimeout = 10 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	dedup, err := lru.New[string, time.Time](opts.DedupSize)
	if err != nil {
		return nil, fmt.Errorf("message deduper init: %w", err)
	}
	return &Orchestrator{opts: opts, locks: newLockTable(), dedup: dedup}, nil
}

// HandleTurn runs one inbound event. Turns of the same user run one at a
// time in arrival order of lock acquisition; turns of different users run
// concurrently. Turn failures are answered and persisted as the pre-turn
// state; only invalid input, storage failures and cancellation are returned
// as errors.
func (o *Orchestrator) HandleTurn(ctx context.Context, ev domain.InboundEvent) (Result, error) {
	if !ev.Channel.Valid() {
		return Result{}, fmt.Errorf("%w: channel %q", ErrInvalidEvent, ev.Channel)
	}
	userID, err := identity.NormalizeUserID(ev.Channel, ev.UserID)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %w", ErrInvalidEvent, err)
	}
	if ev.Input() == "" && ev.Referral.Empty() {
		return Result{}, fmt.Errorf("%w: empty message", ErrInvalidEvent)
	}
	ev.UserID = userID

	release, err := o.locks.acquire(ctx, o.opts.AppName+"/"+userID)
	if err != nil {
		return Result{}, fmt.Errorf("wait for user turn: %w", err)
	}
	defer release()

	// Dedup runs under the user lock. A message id is recorded only after
	// its turn is persisted.
	if o.seen(ev) {
		o.opts.Metrics.IncDuplicate()
		o.opts.Logger.Info("Duplicate message dropped", "user_id", userID, "message_id", ev.MessageID)
		return Result{UserID: userID, Outcome: OutcomeDuplicate}, nil
	}

	done := o.opts.Metrics.TurnStarted()
	defer done()
	return o.runTurn(ctx, ev)
}

func (o *Orchestrator) runTurn(ctx context.Context, ev domain.InboundEvent) (Result, error) {
	start := time.Now()
	turnID := uuid.NewString()
	now := o.opts.Now()
	logger := o.opts.Logger.With("turn_id", turnID, "user_id", ev.UserID, "channel", ev.Channel)

	base, err := o.loadSession(ctx, ev, now)
	if err != nil {
		return Result{}, err
	}
	if o.captureReferral(base, ev) {
		logger.Info("Referral captured", "ad_id", base.Referral.AdID, "ref_code", base.Referral.RefCode, "source", base.Referral.Source)
		ev = o.resolveAd(ctx, logger, base, ev)
	}

	outcome := OutcomeOK
	final := base
	var reply domain.Reply
	out, err := o.opts.Router.Dispatch(ctx, base, ev)
	switch {
	case err == nil:
		final = out.Session
		reply = out.Reply
	case errors.Is(err, agent.ErrLookupUnavailable):
		outcome = OutcomeUnavailable
		reply = o.failureReply(base, unavailableText)
		logger.Warn("Lookup unavailable during turn", "agent", base.ActiveAgent, "error", err)
	case agent.IsContractViolation(err):
		outcome = OutcomeFallback
		reply = o.failureReply(base, fallbackText)
		logger.Error("Agent contract violation", "agent", base.ActiveAgent, "error", err)
	default:
		outcome = OutcomeError
		reply = o.failureReply(base, errorText)
		logger.Error("Turn failed", "agent", base.ActiveAgent, "error", err)
	}
	if strings.TrimSpace(reply.Text) == "" {
		reply.Text = emptyReplyText
	}

	final.ActiveAgent = final.ActiveAgent.Resolve()
	final.UpdatedAt = now
	if err := o.opts.Store.PutSession(ctx, final); err != nil {
		o.opts.Metrics.ObserveTurn(final.ActiveAgent.String(), OutcomeError, time.Since(start))
		return Result{}, fmt.Errorf("persist session: %w", err)
	}
	o.remember(ev)

	if o.opts.Watch != nil {
		o.opts.Watch.Publish(watch.Event{
			TurnID:      turnID,
			AppName:     final.AppName,
			UserID:      final.UserID,
			Channel:     string(final.Channel),
			ActiveAgent: final.ActiveAgent.String(),
			JobID:       final.Context.ID,
			Outcome:     outcome,
			UpdatedAt:   final.UpdatedAt,
		})
	}

	res := Result{
		TurnID:      turnID,
		UserID:      final.UserID,
		ActiveAgent: final.ActiveAgent,
		Outcome:     outcome,
		Reply:       reply,
	}
	if err := o.deliver(ctx, reply); err != nil {
		logger.Warn("Reply not delivered, session kept", "error", err)
		res.DeliveryErr = err
	} else {
		res.Delivered = true
	}

	o.opts.Metrics.ObserveTurn(final.ActiveAgent.String(), outcome, time.Since(start))
	logger.Info("Turn completed", "agent", final.ActiveAgent, "outcome", outcome, "path", out.Path, "elapsed", time.Since(start))
	return res, nil
}

func (o *Orchestrator) loadSession(ctx context.Context, ev domain.InboundEvent, now time.Time) (*domain.Session, error) {
	sess, err := o.opts.Store.GetSession(ctx, o.opts.AppName, ev.UserID)
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	if sess == nil {
		sess = domain.NewSession(o.opts.AppName, ev.UserID, ev.Channel, now)
		sess.Profile.Phone = identity.PhoneFromUserID(ev.Channel, ev.UserID)
		o.opts.Logger.Info("Session created", "user_id", ev.UserID, "channel", ev.Channel)
	}
	if sess.Channel == "" {
		sess.Channel = ev.Channel
	}
	return sess, nil
}

// captureReferral stores the event's referral when the session has none or
// the event asks for a reset. It reports whether the referral changed.
func (o *Orchestrator) captureReferral(sess *domain.Session, ev domain.InboundEvent) bool {
	if ev.Referral.Empty() {
		return false
	}
	if sess.Referral != nil && !ev.Referral.Reset {
		return false
	}
	ref := *ev.Referral
	ref.Reset = false
	sess.Referral = &ref
	return true
}

// resolveAd turns a freshly captured ad into a job selection unless the
// user already pressed a button.
func (o *Orchestrator) resolveAd(ctx context.Context, logger *slog.Logger, sess *domain.Session, ev domain.InboundEvent) domain.InboundEvent {
	if o.opts.Ads == nil || sess.Referral.AdID == "" || strings.TrimSpace(ev.Postback) != "" {
		return ev
	}
	jobID, err := o.opts.Ads.SearchByAdID(ctx, sess.Referral.AdID)
	if err != nil {
		logger.Warn("Could not resolve referral ad", "ad_id", sess.Referral.AdID, "error", err)
		return ev
	}
	logger.Info("Referral ad resolved", "ad_id", sess.Referral.AdID, "job_id", jobID)
	ev.Postback = agent.PostbackJob(jobID)
	return ev
}

func (o *Orchestrator) failureReply(sess *domain.Session, text string) domain.Reply {
	return domain.Reply{
		Channel: sess.Channel,
		UserID:  sess.UserID,
		Text:    text,
	}
}

func (o *Orchestrator) deliver(ctx context.Context, reply domain.Reply) error {
	ctx, cancel := context.WithTimeout(ctx, o.opts.DeliveryTimeout)
	defer cancel()
	if err := o.opts.Sender.Send(ctx, reply); err != nil {
		if !errors.Is(err, delivery.ErrDeliveryFailed) {
			err = fmt.Errorf("%w: %w", delivery.ErrDeliveryFailed, err)
		}
		return err
	}
	return nil
}

// seen reports whether ev repeats a message whose turn was persisted within
// the dedup TTL. Events without a message id are never duplicates.
func (o *Orchestrator) seen(ev domain.InboundEvent) bool {
	if ev.MessageID == "" {
		return false
	}
	key := dedupKey(ev)

	o.dedupMu.Lock()
	defer o.dedupMu.Unlock()

	ts, ok := o.dedup.Get(key)
	if !ok {
		return false
	}
	if o.opts.Now().Sub(ts) <= o.opts.DedupTTL {
		return true
	}
	o.dedup.Remove(key)
	return false
}

// remember marks ev as handled. It is called only once the turn's state is
// stored, so a failed turn can be redelivered.
func (o *Orchestrator) remember(ev domain.InboundEvent) {
	if ev.MessageID == "" {
		return
	}
	o.dedupMu.Lock()
	defer o.dedupMu.Unlock()
	o.dedup.Add(dedupKey(ev), o.opts.Now())
}

func dedupKey(ev domain.InboundEvent) string {
	return string(ev.Channel) + ":" + ev.MessageID
}
