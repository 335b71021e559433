package services

import (
	"context"
	"fmt"

	"github.com/hearthvtt/hearth-cli/internal/core/domain"
	"github.com/hearthvtt/hearth-cli/internal/logger"
)

// An unlinked token carries a private copy of its base actor: the actorData
// override patch. The synthetic actor is that patch applied over the base
// actor's source, materialized as a real Actor document parented to the
// token. It is a read-through view: durable writes to it reroute as a single
// token update so only the override travels the wire.

// SyntheticActor materializes the synthetic actor of an unlinked token.
// The view is a snapshot; after any token update, materialize it again.
func (r *Runtime) SyntheticActor(token *domain.Document) (*domain.Document, error) {
	if token == nil || token.Type() != "Token" {
		return nil, fmt.Errorf("%w: want Token", domain.ErrWrongType)
	}
	if linked, _ := token.Get("actorLink"); linked == true {
		return nil, fmt.Errorf("%w: token %q", domain.ErrUnlinkedToken, token.ID())
	}
	actorID, _ := token.Get("actorId")
	id, _ := actorID.(string)
	if id == "" {
		return nil, fmt.Errorf("%w: token %q", domain.ErrNoActor, token.ID())
	}
	actors, err := r.Collection("Actor")
	if err != nil {
		return nil, err
	}
	base, ok := actors.Get(id)
	if !ok {
		return nil, fmt.Errorf("%w: token %q references actor %q", domain.ErrNoActor, token.ID(), id)
	}

	merged := base.ToObject()
	if raw, ok := token.Get("actorData"); ok {
		if overrides, ok := raw.(map[string]any); ok {
			merged = domain.MergeObject(merged, overrides, true)
		}
	}
	merged["_id"] = base.ID()
	return domain.NewDocument(r.registry, "Actor", merged, &domain.ConstructOptions{Parent: token})
}

// isSyntheticActor reports whether doc is a token-parented actor view.
func isSyntheticActor(doc *domain.Document) bool {
	return doc.Type() == "Actor" && doc.Parent() != nil && doc.Parent().Type() == "Token"
}

// syntheticChildCreate reroutes an embedded create on a synthetic actor as a
// token actorData update. The tagged options replay per-child create hooks
// when the update applies.
func (r *Runtime) syntheticChildCreate(ctx context.Context, syn *domain.Document, childType string, data []map[string]any, opts *domain.RequestOptions) ([]*domain.Document, error) {
	token, scene, field, childDef, rows, err := r.syntheticRoute(syn, childType)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	prepared := make([]*domain.Document, 0, len(data))
	payload := make([]map[string]any, 0, len(data))
	for _, record := range data {
		source := domain.CloneMap(record)
		if !opts.KeepID {
			delete(source, "_id")
		}
		child, err := domain.NewDocument(r.registry, childType, source, &domain.ConstructOptions{Parent: syn})
		if err != nil {
			logger.Warn("dropping %s from synthetic create batch: %v", childType, err)
			continue
		}
		if child.ID() == "" {
			if err := child.SetID(domain.RandomID()); err != nil {
				r.mu.Unlock()
				return nil, err
			}
		}
		prepared = append(prepared, child)
		payload = append(payload, child.ToObject())
	}
	prepared, payload, err = r.vetoCreate(childDef, prepared, payload, opts)
	r.mu.Unlock()
	if err != nil {
		return nil, err
	}
	if len(prepared) == 0 {
		return nil, nil
	}
	if opts.Temporary {
		return prepared, nil
	}

	newRows := append(append([]any(nil), rows...), anyRows(payload)...)
	if err := r.syntheticDispatch(ctx, scene, token, field, newRows, &domain.EmbeddedTag{
		Name:   field,
		Type:   childType,
		Action: domain.ActionCreate,
		Hooks:  payload,
	}, opts); err != nil {
		return nil, err
	}
	return prepared, nil
}

// syntheticChildUpdate reroutes embedded updates on a synthetic actor.
func (r *Runtime) syntheticChildUpdate(ctx context.Context, syn *domain.Document, childType string, updates []map[string]any, opts *domain.RequestOptions) ([]*domain.Document, error) {
	token, scene, field, childDef, rows, err := r.syntheticRoute(syn, childType)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	newRows := append([]any(nil), rows...)
	var targets []*domain.Document
	var diffs []map[string]any
	rowIdx := make(map[*domain.Document]int)
	for _, patch := range updates {
		id, _ := patch["_id"].(string)
		if id == "" {
			r.mu.Unlock()
			return nil, fmt.Errorf("update patch for %s is missing _id", childType)
		}
		idx, row := findRow(newRows, id)
		if row == nil {
			r.mu.Unlock()
			return nil, fmt.Errorf("%w: %s %q", domain.ErrNotFound, childType, id)
		}
		child, err := domain.NewDocument(r.registry, childType, row, &domain.ConstructOptions{Parent: syn})
		if err != nil {
			logger.Warn("dropping update of %s %q: %v", childType, id, err)
			continue
		}
		changes := domain.CloneMap(patch)
		delete(changes, "_id")
		diff, err := child.UpdateSource(changes, !opts.NoRecursive)
		if err != nil {
			logger.Warn("dropping update of %s %q: %v", childType, id, err)
			continue
		}
		flat := domain.Flatten(diff)
		if len(flat) == 0 && !opts.NoDiff {
			continue
		}
		flat["_id"] = id
		rowIdx[child] = idx
		targets = append(targets, child)
		diffs = append(diffs, flat)
	}
	diffs, targets, err = r.vetoUpdate(childDef, targets, diffs, opts)
	r.mu.Unlock()
	if err != nil {
		return nil, err
	}
	if len(diffs) == 0 {
		return nil, nil
	}
	// Only surviving children write their new state into the row array.
	for _, child := range targets {
		newRows[rowIdx[child]] = child.ToObject()
	}

	if err := r.syntheticDispatch(ctx, scene, token, field, newRows, &domain.EmbeddedTag{
		Name:   field,
		Type:   childType,
		Action: domain.ActionUpdate,
		Hooks:  diffs,
	}, opts); err != nil {
		return nil, err
	}
	return targets, nil
}

// syntheticChildDelete reroutes embedded deletes on a synthetic actor.
func (r *Runtime) syntheticChildDelete(ctx context.Context, syn *domain.Document, childType string, ids []string, opts *domain.RequestOptions) ([]string, error) {
	token, scene, field, childDef, rows, err := r.syntheticRoute(syn, childType)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	if opts.DeleteAll {
		ids = nil
		for _, raw := range rows {
			if row, ok := raw.(map[string]any); ok {
				if id, _ := row["_id"].(string); id != "" {
					ids = append(ids, id)
				}
			}
		}
	}
	targets := make([]*domain.Document, 0, len(ids))
	for _, id := range ids {
		_, row := findRow(rows, id)
		if row == nil {
			r.mu.Unlock()
			return nil, fmt.Errorf("%w: %s %q", domain.ErrNotFound, childType, id)
		}
		// An unconstructible child is still deletable; it just skips the veto.
		child, err := domain.NewDocument(r.registry, childType, row, &domain.ConstructOptions{Parent: syn})
		if err != nil {
			child = nil
		}
		targets = append(targets, child)
	}
	ids, _, err = r.vetoDelete(childDef, targets, ids, opts)
	r.mu.Unlock()
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}

	newRows := append([]any(nil), rows...)
	hookPayloads := make([]map[string]any, 0, len(ids))
	for _, id := range ids {
		if idx, row := findRow(newRows, id); row != nil {
			newRows = append(newRows[:idx], newRows[idx+1:]...)
		}
		hookPayloads = append(hookPayloads, map[string]any{"_id": id})
	}

	if err := r.syntheticDispatch(ctx, scene, token, field, newRows, &domain.EmbeddedTag{
		Name:   field,
		Type:   childType,
		Action: domain.ActionDelete,
		Hooks:  hookPayloads,
	}, opts); err != nil {
		return nil, err
	}
	return ids, nil
}

// syntheticRoute resolves the token, its scene, and the current merged child
// rows for one synthetic child operation.
func (r *Runtime) syntheticRoute(syn *domain.Document, childType string) (token, scene *domain.Document, field string, childDef *domain.TypeDefinition, rows []any, err error) {
	token = syn.Parent()
	scene = token.Parent()
	if scene == nil {
		return nil, nil, "", nil, nil, fmt.Errorf("token %q is not placed in a scene", token.ID())
	}
	childDef, err = r.registry.Get(childType)
	if err != nil {
		return nil, nil, "", nil, nil, err
	}
	field, ok := syn.Definition().EmbeddedField(childType)
	if !ok {
		return nil, nil, "", nil, nil, fmt.Errorf("%w: Actor embeds no %s", domain.ErrUnknownType, childType)
	}
	if raw, ok := syn.Get(field); ok {
		rows, _ = raw.([]any)
	}
	return token, scene, field, childDef, rows, nil
}

// syntheticDispatch sends the rerouted token update carrying the full new
// child array inside actorData, tagged for per-child hook replay.
func (r *Runtime) syntheticDispatch(ctx context.Context, scene, token *domain.Document, field string, newRows []any, tag *domain.EmbeddedTag, opts *domain.RequestOptions) error {
	patch := map[string]any{
		"_id":       token.ID(),
		"actorData": map[string]any{field: newRows},
	}
	routed := opts.Clone()
	routed.Embedded = tag
	// the child-level veto already ran; the token write must not be vetoed
	// a second time at child granularity
	routed.NoHook = true
	_, err := r.UpdateEmbedded(ctx, scene, "Token", []map[string]any{patch}, routed)
	return err
}

func anyRows(rows []map[string]any) []any {
	out := make([]any, len(rows))
	for i, row := range rows {
		out[i] = row
	}
	return out
}

func findRow(rows []any, id string) (int, map[string]any) {
	for i, raw := range rows {
		if row, ok := raw.(map[string]any); ok && row["_id"] == id {
			return i, row
		}
	}
	return -1, nil
}
