// Package syncengine implements the sync engine (C6): a two-phase
// bidirectional reconciler (push then pull) with last-write-wins conflict
// resolution, user/type scoping, and initial bootstrap.
package syncengine

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/tonimelisma/docsync/internal/docerr"
	"github.com/tonimelisma/docsync/internal/docstore"
)

// AuditLogger records which side won each LWW comparison during a sync
// cycle, purely for diagnostics — the reconciler never reads it back
// (spec.md §9's "no server-mediated conflict resolution" is preserved; this
// is write-only observability).
type AuditLogger interface {
	RecordLWW(ctx context.Context, cycleID, docType, id, userID, winner string, localTS, remoteTS time.Time) error
}

// Engine coordinates a local store and a remote store for one document
// type and one current user (spec §4.6 "Configuration").
type Engine struct {
	local  docstore.Store
	remote docstore.Store
	kind   string
	logger *slog.Logger
	audit  AuditLogger

	userID string
}

// Option configures optional Engine behavior.
type Option func(*Engine)

// WithAuditLogger attaches an optional LWW audit logger.
func WithAuditLogger(a AuditLogger) Option {
	return func(e *Engine) { e.audit = a }
}

// WithLogger overrides the default logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// New builds an Engine for one document kind scoped initially to userID,
// which must be non-empty (spec §7 InvalidState: "sync engine constructed
// with empty user id").
func New(local, remote docstore.Store, kind, userID string, opts ...Option) (*Engine, error) {
	if userID == "" {
		return nil, docerr.New(docerr.InvalidState, "syncengine.New", "user id must not be empty")
	}

	e := &Engine{
		local:  local,
		remote: remote,
		kind:   kind,
		userID: userID,
		logger: slog.Default(),
	}

	for _, opt := range opts {
		opt(e)
	}

	return e, nil
}

// SetUser replaces the engine's user scope. Documents previously pulled
// for prior users remain in the local store — deliberate, per spec §4.6
// "User switch", to support multi-account clients.
func (e *Engine) SetUser(u string) error {
	if u == "" {
		return docerr.New(docerr.InvalidArgument, "syncengine.SetUser", "user id must not be empty")
	}

	e.userID = u

	return nil
}

// CurrentUser returns the engine's current user scope.
func (e *Engine) CurrentUser() string {
	return e.userID
}

// SyncReport summarizes one Sync or InitialPull call as per-phase counts
// plus duration, emitted as a structured log event.
type SyncReport struct {
	CycleID      string
	UserID       string
	Type         string
	Pushed       int
	Pulled       int
	SkippedPush  int
	SkippedPull  int
	Duration     time.Duration
	PushFailed   bool
	PullAttempted bool
}

// Sync runs one bidirectional reconciliation cycle: push phase completes
// before pull phase starts (spec §4.6, §5 ordering guarantee). Any
// Storage/RemoteIO error during push aborts push and pull is not
// attempted; per-document InvalidArgument during pull is logged and
// skipped, with pull continuing (spec §7 propagation policy).
func (e *Engine) Sync(ctx context.Context) (*SyncReport, error) {
	start := time.Now()
	cycleID := uuid.NewString()

	report := &SyncReport{CycleID: cycleID, UserID: e.userID, Type: e.kind}

	log := e.logger.With("cycle_id", cycleID, "user_id", e.userID, "doc_type", e.kind)

	pushed, skippedPush, err := e.push(ctx, log, cycleID)
	report.Pushed = pushed
	report.SkippedPush = skippedPush

	if err != nil {
		report.PushFailed = true
		report.Duration = time.Since(start)

		log.Error("sync push phase failed", "phase", "push", "error_kind", kindOf(err), "error", err)

		return report, err
	}

	report.PullAttempted = true

	pulled, skippedPull, err := e.pull(ctx, log, cycleID, e.userID, e.kind)
	report.Pulled = pulled
	report.SkippedPull = skippedPull
	report.Duration = time.Since(start)

	if err != nil {
		log.Error("sync pull phase failed", "phase", "pull", "error_kind", kindOf(err), "error", err)

		return report, err
	}

	log.Info("sync cycle complete",
		"pushed", report.Pushed, "pulled", report.Pulled,
		"skipped_push", report.SkippedPush, "skipped_pull", report.SkippedPull,
		"duration_ms", report.Duration.Milliseconds(),
	)

	return report, nil
}

// InitialPull is the bootstrap variant used when the local store is empty
// for docType: pull phase only, no push, and type is populated from the
// remote document or, if absent, docType (spec §4.6 "Initial pull"). No
// pending rows are created (P4).
func (e *Engine) InitialPull(ctx context.Context, docType string) (*SyncReport, error) {
	start := time.Now()
	cycleID := uuid.NewString()

	existing, err := e.local.GetAll(ctx)
	if err != nil {
		return nil, err
	}

	if len(existing) > 0 {
		return nil, docerr.New(docerr.InvalidState, "syncengine.InitialPull",
			"local store already has documents of this type; use Sync instead")
	}

	log := e.logger.With("cycle_id", cycleID, "user_id", e.userID, "doc_type", docType)

	report := &SyncReport{CycleID: cycleID, UserID: e.userID, Type: docType, PullAttempted: true}

	pulled, skipped, err := e.pull(ctx, log, cycleID, e.userID, docType)
	report.Pulled = pulled
	report.SkippedPull = skipped
	report.Duration = time.Since(start)

	if err != nil {
		log.Error("initial pull failed", "phase", "initial_pull", "error_kind", kindOf(err), "error", err)

		return report, err
	}

	log.Info("initial pull complete", "pulled", report.Pulled, "skipped", report.SkippedPull,
		"duration_ms", report.Duration.Milliseconds())

	return report, nil
}

// push fetches local pending documents (unfiltered by user, since pending
// implies locally authored), decides per-document whether the remote
// counterpart is stale, bulk-upserts the winners, and clears every pending
// row examined regardless of outcome (spec §4.6 push phase; the
// documented §9 open question: this discards local changes that lost an
// LWW comparison, preserved as specified).
func (e *Engine) push(ctx context.Context, log *slog.Logger, cycleID string) (pushed, skipped int, err error) {
	pending, err := e.local.GetPending(ctx)
	if err != nil {
		return 0, 0, err
	}

	var toPush []*docstore.Record

	var examined []string

	for _, p := range pending {
		if ctx.Err() != nil {
			return pushed, skipped, docerr.Wrap(docerr.Cancelled, "syncengine.push", "context cancelled", ctx.Err())
		}

		if p.ID == "" {
			log.Warn("skipping pending document with empty id")
			continue
		}

		if p.Type == "" {
			p.Type = e.kind
		}

		if p.UserID == "" {
			log.Warn("skipping pending document with empty user_id", "id", p.ID)
			continue
		}

		remoteRec, getErr := e.remote.Get(ctx, p.ID, p.UserID)
		if getErr != nil {
			return pushed, skipped, getErr
		}

		examined = append(examined, p.ID)

		if e.shouldReplace(p, remoteRec) {
			toPush = append(toPush, p)
			pushed++
		} else {
			skipped++
		}

		e.recordAudit(ctx, log, cycleID, p, remoteRec, true)
	}

	if len(toPush) > 0 {
		if err := e.remote.UpsertBulk(ctx, toPush, docstore.UpsertOptions{}); err != nil {
			return pushed, skipped, err
		}
	}

	for _, id := range examined {
		if err := e.local.RemovePending(ctx, id); err != nil {
			return pushed, skipped, err
		}
	}

	return pushed, skipped, nil
}

// pull scans the remote store by user, decides per-document whether the
// local counterpart is stale, and bulk-upserts the winners into local
// with MarkPending=false so pulled updates never reappear as pending work
// (I4, spec §4.6 pull phase). A remote document without a type is given
// fallbackType.
func (e *Engine) pull(ctx context.Context, log *slog.Logger, cycleID, userID, fallbackType string) (pulled, skipped int, err error) {
	remoteDocs, err := e.remote.GetByUser(ctx, userID)
	if err != nil {
		return 0, 0, err
	}

	var toPull []*docstore.Record

	for _, r := range remoteDocs {
		if ctx.Err() != nil {
			return pulled, skipped, docerr.Wrap(docerr.Cancelled, "syncengine.pull", "context cancelled", ctx.Err())
		}

		if r.ID == "" {
			log.Warn("skipping remote document with empty id")
			continue
		}

		if r.Type == "" {
			r.Type = fallbackType
		}

		localRec, getErr := e.local.Get(ctx, r.ID, userID)
		if getErr != nil {
			if docerr.Is(getErr, docerr.InvalidArgument) {
				log.Warn("skipping document during pull", "id", r.ID, "error", getErr)
				skipped++

				continue
			}

			return pulled, skipped, getErr
		}

		if e.shouldReplace(r, localRec) {
			toPull = append(toPull, r)
			pulled++
		} else {
			skipped++
		}

		e.recordAudit(ctx, log, cycleID, r, localRec, false)
	}

	if len(toPull) > 0 {
		if err := e.local.UpsertBulk(ctx, toPull, docstore.PullUpsertOptions); err != nil {
			return pulled, skipped, err
		}
	}

	return pulled, skipped, nil
}

// shouldReplace implements the strict LWW policy of spec §4.6/§8 P2/B2:
// candidate replaces existing if existing is absent, or both carry
// timestamps and candidate's is strictly greater, or only candidate
// carries a timestamp. Equal timestamps, or neither side carrying one,
// never cause a write.
func (e *Engine) shouldReplace(candidate, existing *docstore.Record) bool {
	if existing == nil {
		return true
	}

	switch {
	case candidate.HasTimestamp && existing.HasTimestamp:
		return candidate.LastModified.After(existing.LastModified)
	case candidate.HasTimestamp && !existing.HasTimestamp:
		return true
	default:
		return false
	}
}

// recordAudit writes one LWW decision. candidateIsLocal is true during push,
// where the candidate is the local document and existing is the remote one.
func (e *Engine) recordAudit(ctx context.Context, log *slog.Logger, cycleID string, candidate, existing *docstore.Record, candidateIsLocal bool) {
	if e.audit == nil {
		return
	}

	winner := "existing"
	localTS, remoteTS := time.Time{}, time.Time{}

	if existing != nil {
		localTS = existing.LastModified
	}

	if candidate != nil {
		remoteTS = candidate.LastModified
	}

	if candidateIsLocal {
		localTS, remoteTS = remoteTS, localTS
	}

	if e.shouldReplace(candidate, existing) {
		winner = "candidate"
	}

	if err := e.audit.RecordLWW(ctx, cycleID, e.kind, candidate.ID, candidate.UserID, winner, localTS, remoteTS); err != nil {
		log.Warn("failed to record LWW audit entry", "id", candidate.ID, "error", err)
	}
}

func kindOf(err error) docerr.Kind {
	var kind docerr.Kind

	if docerr.Is(err, docerr.Storage) {
		return docerr.Storage
	}

	if docerr.Is(err, docerr.RemoteIO) {
		return docerr.RemoteIO
	}

	if docerr.Is(err, docerr.RemoteAuth) {
		return docerr.RemoteAuth
	}

	if docerr.Is(err, docerr.InvalidArgument) {
		return docerr.InvalidArgument
	}

	if docerr.Is(err, docerr.Cancelled) {
		return docerr.Cancelled
	}

	return kind
}
