package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/phillip/parenting-hub-go/apperr"
	"github.com/phillip/parenting-hub-go/auth"
	"github.com/phillip/parenting-hub-go/models"
	"github.com/phillip/parenting-hub-go/notify"
)

// Document constrains the gateway's type parameters: P is *T and T is one of
// the entity types in models.
type Document[T any] interface {
	*T
	models.Document
}

type partialValidator interface {
	ValidatePartial(fields ...string) error
}

// Patch is a partial field set for Update, keyed by json field name.
type Patch map[string]any

// gatewayFields can never be written through a Patch.
var gatewayFields = []string{
	models.FieldID,
	models.FieldMongoID,
	models.FieldCreatedAt,
	models.FieldCreatedBy,
	models.FieldUpdatedAt,
	models.FieldUpdatedBy,
}

type Config struct {
	Notifier notify.Notifier
	Retry    RetryPolicy
	Logger   *slog.Logger
}

// Gateway is the typed accessor for one collection.
type Gateway[T any, P Document[T]] struct {
	backend    Backend
	collection string
	notifier   notify.Notifier
	retry      RetryPolicy
	log        *slog.Logger

	mu      sync.Mutex
	lastErr error
}

// New creates the gateway for T's collection.
func New[T any, P Document[T]](backend Backend, cfg Config) *Gateway[T, P] {
	if cfg.Notifier == nil {
		cfg.Notifier = notify.Nop
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	collection := P(new(T)).Collection()
	return &Gateway[T, P]{
		backend:    backend,
		collection: collection,
		notifier:   cfg.Notifier,
		retry:      cfg.Retry,
		log:        cfg.Logger.With(slog.String("collection", collection)),
	}
}

func (g *Gateway[T, P]) Collection() string { return g.collection }

// LastError returns the error of the most recent failed read, or nil if the
// last read succeeded.
func (g *Gateway[T, P]) LastError() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.lastErr
}

func (g *Gateway[T, P]) setLastErr(err error) {
	g.mu.Lock()
	g.lastErr = err
	g.mu.Unlock()
}

func (g *Gateway[T, P]) op(name string) string { return g.collection + "." + name }

// List returns the documents matching q. On failure it returns an empty
// slice together with the error, which is also kept as LastError.
func (g *Gateway[T, P]) List(ctx context.Context, q Query) ([]T, error) {
	var snaps []Snapshot
	err := g.retry.do(ctx, func() error {
		var err error
		snaps, err = g.backend.Find(ctx, g.collection, q)
		return err
	})
	if err != nil {
		return []T{}, g.readFailed(ctx, "list", err)
	}

	items, err := decodeAll[T, P](snaps)
	if err != nil {
		return []T{}, g.readFailed(ctx, "list", err)
	}
	g.setLastErr(nil)
	return items, nil
}

// GetByID returns the document with the given id. A missing document yields
// apperr.ErrNotFound; a failed call yields a TransportError.
func (g *Gateway[T, P]) GetByID(ctx context.Context, id string) (T, error) {
	var zero T
	if strings.TrimSpace(id) == "" {
		return zero, apperr.NewValidationError("id", "is required")
	}

	var snap Snapshot
	err := g.retry.do(ctx, func() error {
		var err error
		snap, err = g.backend.Get(ctx, g.collection, id)
		return err
	})
	if errors.Is(err, apperr.ErrNotFound) {
		g.setLastErr(nil)
		return zero, fmt.Errorf("%s %s: %w", g.collection, id, apperr.ErrNotFound)
	}
	if err != nil {
		return zero, g.readFailed(ctx, "get", err)
	}

	item, err := decode[T, P](snap)
	if err != nil {
		return zero, g.readFailed(ctx, "get", err)
	}
	g.setLastErr(nil)
	return item, nil
}

// Create validates payload, stamps the acting user and stores it. The backend
// assigns the id and the server timestamps.
func (g *Gateway[T, P]) Create(ctx context.Context, payload T) (string, error) {
	actor, ok := auth.ActorFromContext(ctx)
	if !ok {
		return "", g.writeFailed(ctx, "Create", apperr.ErrAuthenticationRequired)
	}

	doc := P(&payload)
	*doc.Base() = models.Record{CreatedBy: actor.ID, UpdatedBy: actor.ID}
	if err := doc.Validate(); err != nil {
		return "", g.writeFailed(ctx, "Create", err)
	}

	id, err := g.backend.Insert(ctx, g.collection, doc)
	if err != nil {
		return "", g.writeFailed(ctx, "Create", apperr.Transport(g.op("create"), classify(err), err))
	}

	g.log.InfoContext(ctx, "document created",
		slog.String("id", id),
		slog.String("actor", actor.ID),
	)
	return id, nil
}

// Update merges patch into the document. Gateway-owned fields in patch are
// dropped; updatedAt and updatedBy are stamped here. When the patch touches
// fields of a cross-field rule, the rule is checked against the stored
// document with the patch applied.
func (g *Gateway[T, P]) Update(ctx context.Context, id string, patch Patch) error {
	actor, ok := auth.ActorFromContext(ctx)
	if !ok {
		return g.writeFailed(ctx, "Update", apperr.ErrAuthenticationRequired)
	}
	if strings.TrimSpace(id) == "" {
		return g.writeFailed(ctx, "Update", apperr.NewValidationError("id", "is required"))
	}

	typed, keys, err := g.preparePatch(patch)
	if err != nil {
		return g.writeFailed(ctx, "Update", err)
	}
	if err := g.checkRules(ctx, id, &typed, keys); err != nil {
		return g.writeFailed(ctx, "Update", err)
	}
	fields := models.FieldValues(&typed, keys)
	fields[models.FieldUpdatedBy] = actor.ID

	if err := g.backend.Update(ctx, g.collection, id, fields); err != nil {
		if !errors.Is(err, apperr.ErrNotFound) {
			err = apperr.Transport(g.op("update"), classify(err), err)
		}
		return g.writeFailed(ctx, "Update", err)
	}

	g.log.InfoContext(ctx, "document updated",
		slog.String("id", id),
		slog.String("actor", actor.ID),
		slog.Int("fields", len(fields)),
	)
	return nil
}

// Delete removes the document permanently.
func (g *Gateway[T, P]) Delete(ctx context.Context, id string) error {
	if strings.TrimSpace(id) == "" {
		return g.writeFailed(ctx, "Delete", apperr.NewValidationError("id", "is required"))
	}
	if err := g.backend.Delete(ctx, g.collection, id); err != nil {
		if !errors.Is(err, apperr.ErrNotFound) {
			err = apperr.Transport(g.op("delete"), classify(err), err)
		}
		return g.writeFailed(ctx, "Delete", err)
	}

	attrs := []any{slog.String("id", id)}
	if actor, ok := auth.ActorFromContext(ctx); ok {
		attrs = append(attrs, slog.String("actor", actor.ID))
	}
	g.log.InfoContext(ctx, "document deleted", attrs...)
	return nil
}

// preparePatch drops gateway-owned keys, rejects unknown fields and wrongly
// typed values, validates the remaining fields and returns them decoded into
// a T together with their sorted keys.
func (g *Gateway[T, P]) preparePatch(patch Patch) (T, []string, error) {
	var typed T
	keys := make([]string, 0, len(patch))
	clean := make(Patch, len(patch))
	for k, v := range patch {
		if slices.Contains(gatewayFields, k) {
			continue
		}
		clean[k] = v
		keys = append(keys, k)
	}
	if len(keys) == 0 {
		return typed, nil, apperr.NewValidationError("payload", "no fields to update")
	}
	slices.Sort(keys)

	known := models.GoFieldNames(new(T))
	var unknown []apperr.FieldError
	for _, k := range keys {
		if _, ok := known[k]; !ok {
			unknown = append(unknown, apperr.FieldError{Field: k, Message: "is not a field of " + g.collection})
		}
	}
	if len(unknown) > 0 {
		return typed, nil, apperr.NewValidationErrors(unknown)
	}

	raw, err := json.Marshal(clean)
	if err != nil {
		return typed, nil, apperr.NewValidationError("payload", err.Error())
	}
	if err := json.Unmarshal(raw, &typed); err != nil {
		var te *json.UnmarshalTypeError
		if errors.As(err, &te) {
			return typed, nil, apperr.NewValidationError(te.Field, "has the wrong type, expected "+te.Type.String())
		}
		return typed, nil, apperr.NewValidationError("payload", err.Error())
	}

	if pv, ok := any(P(&typed)).(partialValidator); ok {
		if err := pv.ValidatePartial(keys...); err != nil {
			return typed, nil, err
		}
	}
	return typed, keys, nil
}

// checkRules loads the stored document, applies the patched fields and runs
// the entity's cross-field rules on the result. Patches that touch none of
// the rule fields skip the read.
func (g *Gateway[T, P]) checkRules(ctx context.Context, id string, patched *T, keys []string) error {
	rc, ok := any(P(patched)).(models.RuleChecker)
	if !ok {
		return nil
	}
	ruleFields := rc.RuleFields()
	if !slices.ContainsFunc(keys, func(k string) bool { return slices.Contains(ruleFields, k) }) {
		return nil
	}

	var snap Snapshot
	err := g.retry.do(ctx, func() error {
		var err error
		snap, err = g.backend.Get(ctx, g.collection, id)
		return err
	})
	if errors.Is(err, apperr.ErrNotFound) {
		return fmt.Errorf("%s %s: %w", g.collection, id, apperr.ErrNotFound)
	}
	if err != nil {
		return apperr.Transport(g.op("update"), classify(err), err)
	}

	current, err := decode[T, P](snap)
	if err != nil {
		return err
	}
	models.ApplyFields(&current, patched, keys)
	return any(P(&current)).(models.RuleChecker).CheckRules()
}

func (g *Gateway[T, P]) readFailed(ctx context.Context, op string, err error) error {
	err = apperr.Transport(g.op(op), classify(err), err)
	g.setLastErr(err)
	g.log.WarnContext(ctx, "read failed", slog.String("op", op), slog.String("error", err.Error()))
	return err
}

func (g *Gateway[T, P]) writeFailed(ctx context.Context, op string, err error) error {
	g.notifier.Notify(ctx, notify.Failure(op+" "+g.collection, err))
	g.log.ErrorContext(ctx, "write failed", slog.String("op", op), slog.String("error", err.Error()))
	return err
}

func decode[T any, P Document[T]](s Snapshot) (T, error) {
	var v T
	if err := s.DataTo(&v); err != nil {
		return v, apperr.Transport("decode", apperr.CodeInvalidFormat, fmt.Errorf("document %s: %w", s.ID(), err))
	}
	P(&v).Base().ID = s.ID()
	return v, nil
}

func decodeAll[T any, P Document[T]](snaps []Snapshot) ([]T, error) {
	items := make([]T, 0, len(snaps))
	for _, s := range snaps {
		v, err := decode[T, P](s)
		if err != nil {
			return nil, err
		}
		items = append(items, v)
	}
	return items, nil
}
