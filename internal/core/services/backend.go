package services

import (
	"context"
	"fmt"

	"github.com/hearthvtt/hearth-cli/internal/core/domain"
	"github.com/hearthvtt/hearth-cli/internal/core/hooks"
	"github.com/hearthvtt/hearth-cli/internal/core/ports/driving"
	"github.com/hearthvtt/hearth-cli/internal/logger"
)

// Ensure Runtime implements the driving port.
var _ driving.DocumentService = (*Runtime)(nil)

// Every durable mutation runs the same five phases: prepare locally, offer a
// veto, dispatch to the server, apply the acknowledged post-state, then
// notify observers and hooks. Local state changes only in the apply phase.

// Create submits proposed records of a primary type and returns the
// constructed documents in input order. Records that fail validation or are
// vetoed drop out of the batch; an all-dropped batch returns nil without
// dispatching.
func (r *Runtime) Create(ctx context.Context, documentType string, data []map[string]any, opts *domain.RequestOptions) ([]*domain.Document, error) {
	opts = opts.Clone()
	def, err := r.registry.Get(documentType)
	if err != nil {
		return nil, err
	}
	coll, err := r.Collection(documentType)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	prepared, payload, err := r.prepareCreate(def, coll, data, opts)
	if err != nil {
		r.mu.Unlock()
		return nil, err
	}
	prepared, payload, err = r.vetoCreate(def, prepared, payload, opts)
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

	resp, err := r.dispatch(ctx, &domain.Request{
		Action:  domain.ActionCreate,
		Type:    documentType,
		Data:    payload,
		Options: opts,
	})
	if err != nil {
		return nil, err
	}
	return r.applyModify(resp), nil
}

// Update submits patches, each carrying _id, and returns the changed
// documents. Patches whose effective diff is empty, that fail validation or
// the ownership check, or that are vetoed drop out of the batch; an
// all-dropped batch returns nil without dispatching.
func (r *Runtime) Update(ctx context.Context, documentType string, updates []map[string]any, opts *domain.RequestOptions) ([]*domain.Document, error) {
	opts = opts.Clone()
	def, err := r.registry.Get(documentType)
	if err != nil {
		return nil, err
	}
	coll, err := r.Collection(documentType)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	diffs, targets, err := r.prepareUpdate(def, coll, updates, opts)
	if err != nil {
		r.mu.Unlock()
		return nil, err
	}
	diffs, targets, err = r.vetoUpdate(def, targets, diffs, opts)
	r.mu.Unlock()
	if err != nil {
		return nil, err
	}
	if len(diffs) == 0 {
		return nil, nil
	}

	resp, err := r.dispatch(ctx, &domain.Request{
		Action:  domain.ActionUpdate,
		Type:    documentType,
		Updates: diffs,
		Options: opts,
	})
	if err != nil {
		return nil, err
	}
	return r.applyModify(resp), nil
}

// Delete removes documents by id and returns the deleted ids. With the
// deleteAll option the id list is replaced by the collection's full key set,
// invalid ids included.
func (r *Runtime) Delete(ctx context.Context, documentType string, ids []string, opts *domain.RequestOptions) ([]string, error) {
	opts = opts.Clone()
	def, err := r.registry.Get(documentType)
	if err != nil {
		return nil, err
	}
	coll, err := r.Collection(documentType)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	ids, targets, err := r.prepareDelete(coll, ids, opts)
	if err != nil {
		r.mu.Unlock()
		return nil, err
	}
	ids, _, err = r.vetoDelete(def, targets, ids, opts)
	r.mu.Unlock()
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}

	resp, err := r.dispatch(ctx, &domain.Request{
		Action:  domain.ActionDelete,
		Type:    documentType,
		IDs:     ids,
		Options: opts,
	})
	if err != nil {
		return nil, err
	}
	r.applyModify(resp)
	return resp.Deleted, nil
}

// Get queries the server without registering results locally. With the index
// option the server returns trimmed index rows instead of full records.
func (r *Runtime) Get(ctx context.Context, documentType string, query map[string]any, opts *domain.RequestOptions) ([]map[string]any, error) {
	opts = opts.Clone()
	if _, err := r.registry.Get(documentType); err != nil {
		return nil, err
	}
	resp, err := r.dispatch(ctx, &domain.Request{
		Action:  domain.ActionGet,
		Type:    documentType,
		Query:   query,
		Options: opts,
	})
	if err != nil {
		return nil, err
	}
	return resp.Result, nil
}

// dispatch sends one request and surfaces a server rejection as an error.
// Callers must not hold r.mu: the transport blocks for a round trip, and
// inbound replication must stay appliable meanwhile.
func (r *Runtime) dispatch(ctx context.Context, req *domain.Request) (*domain.Response, error) {
	resp, err := r.transport.ModifyDocument(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("dispatching %s %s: %w", req.Action, req.Type, err)
	}
	if resp.Error != "" {
		return nil, fmt.Errorf("server rejected %s %s: %s", req.Action, req.Type, resp.Error)
	}
	return resp, nil
}

// --- phase 1: prepare ---

func (r *Runtime) prepareCreate(def *domain.TypeDefinition, coll *domain.Collection, data []map[string]any, opts *domain.RequestOptions) ([]*domain.Document, []map[string]any, error) {
	if def.CanCreate != nil && !def.CanCreate(r.user) {
		return nil, nil, fmt.Errorf("%w: user %s may not create %s", domain.ErrPermission, r.user.Name, def.Name)
	}
	prepared := make([]*domain.Document, 0, len(data))
	payload := make([]map[string]any, 0, len(data))
	for _, record := range data {
		source := domain.CloneMap(record)
		if opts.KeepID {
			if id, _ := source["_id"].(string); id != "" && coll.Has(id) {
				return nil, nil, fmt.Errorf("%w: %s %q", domain.ErrDuplicateID, def.Name, id)
			}
		} else {
			delete(source, "_id")
		}
		doc, err := domain.NewDocument(r.registry, def.Name, source, nil)
		if err != nil {
			logger.Warn("dropping %s from create batch: %v", def.Name, err)
			continue
		}
		if doc.ID() == "" {
			if err := doc.SetID(domain.RandomID()); err != nil {
				return nil, nil, err
			}
		}
		prepared = append(prepared, doc)
		payload = append(payload, doc.ToObject())
	}
	return prepared, payload, nil
}

func (r *Runtime) prepareUpdate(def *domain.TypeDefinition, coll *domain.Collection, updates []map[string]any, opts *domain.RequestOptions) ([]map[string]any, []*domain.Document, error) {
	diffs := make([]map[string]any, 0, len(updates))
	targets := make([]*domain.Document, 0, len(updates))
	for _, patch := range updates {
		id, _ := patch["_id"].(string)
		if id == "" {
			return nil, nil, fmt.Errorf("update patch for %s is missing _id", def.Name)
		}
		doc, ok := coll.Get(id)
		if !ok && opts.AllowInvalid {
			doc, ok = coll.GetInvalid(id)
		}
		if !ok {
			return nil, nil, fmt.Errorf("%w: %s %q", domain.ErrNotFound, def.Name, id)
		}
		if !doc.TestUserPermission(r.user, domain.PermissionOwner) {
			logger.Warn("dropping update of %s %q: user %s lacks ownership", def.Name, id, r.user.Name)
			continue
		}

		changes := domain.CloneMap(patch)
		delete(changes, "_id")
		diff, err := trialDiff(doc, changes, opts)
		if err != nil {
			logger.Warn("dropping update of %s %q: %v", def.Name, id, err)
			continue
		}
		if len(diff) == 0 && !opts.NoDiff {
			continue
		}
		diff["_id"] = id
		diffs = append(diffs, diff)
		targets = append(targets, doc)
	}
	return diffs, targets, nil
}

// trialDiff computes the effective diff of changes against doc without
// mutating it. Invalid documents skip the dry run: their source cannot be
// reconstructed, so the raw patch goes to the server as-is.
func trialDiff(doc *domain.Document, changes map[string]any, opts *domain.RequestOptions) (map[string]any, error) {
	if doc.IsInvalid() {
		return domain.Flatten(domain.Expand(changes)), nil
	}
	trial, err := doc.Clone(nil, true)
	if err != nil {
		return nil, err
	}
	diff, err := trial.UpdateSource(changes, !opts.NoRecursive)
	if err != nil {
		return nil, err
	}
	return domain.Flatten(diff), nil
}

func (r *Runtime) prepareDelete(coll *domain.Collection, ids []string, opts *domain.RequestOptions) ([]string, []*domain.Document, error) {
	if opts.DeleteAll {
		ids = coll.AllKeys()
	}
	kept := make([]string, 0, len(ids))
	targets := make([]*domain.Document, 0, len(ids))
	for _, id := range ids {
		doc, ok := coll.Get(id)
		if !ok {
			doc, ok = coll.GetInvalid(id)
		}
		if !ok {
			return nil, nil, fmt.Errorf("%w: %s %q", domain.ErrNotFound, coll.Type(), id)
		}
		if !doc.TestUserPermission(r.user, domain.PermissionOwner) {
			logger.Warn("dropping delete of %s %q: user %s lacks ownership", coll.Type(), id, r.user.Name)
			continue
		}
		kept = append(kept, id)
		targets = append(targets, doc)
	}
	return kept, targets, nil
}

// --- phase 2: veto ---

// A veto silently drops the vetoed record and lets the rest of the batch
// proceed. Each drop leaves one debug line; a lifecycle callback error still
// aborts the whole batch, since that is a malfunction rather than a veto.

func (r *Runtime) vetoCreate(def *domain.TypeDefinition, prepared []*domain.Document, payload []map[string]any, opts *domain.RequestOptions) ([]*domain.Document, []map[string]any, error) {
	if opts.NoHook {
		return prepared, payload, nil
	}
	name := hooks.Name("preCreate", def.Name)
	docs := make([]*domain.Document, 0, len(prepared))
	data := make([]map[string]any, 0, len(prepared))
	for i, doc := range prepared {
		ev := &hooks.Event{Name: name, Document: doc, Data: payload[i], Options: opts, UserID: r.user.ID}
		if !r.hooks.Call(ev) {
			logger.Debug("%s vetoed %s %q", name, def.Name, doc.ID())
			continue
		}
		if def.PreCreate != nil {
			ok, err := def.PreCreate(doc, &domain.LifecycleEvent{Data: payload[i], Options: opts, UserID: r.user.ID})
			if err != nil {
				return nil, nil, err
			}
			if !ok {
				logger.Debug("%s vetoed %s %q", name, def.Name, doc.ID())
				continue
			}
		}
		docs = append(docs, doc)
		data = append(data, payload[i])
	}
	return docs, data, nil
}

func (r *Runtime) vetoUpdate(def *domain.TypeDefinition, targets []*domain.Document, diffs []map[string]any, opts *domain.RequestOptions) ([]map[string]any, []*domain.Document, error) {
	if opts.NoHook {
		return diffs, targets, nil
	}
	name := hooks.Name("preUpdate", def.Name)
	keptDiffs := make([]map[string]any, 0, len(diffs))
	keptTargets := make([]*domain.Document, 0, len(targets))
	for i, doc := range targets {
		ev := &hooks.Event{Name: name, Document: doc, Changes: diffs[i], Options: opts, UserID: r.user.ID}
		if !r.hooks.Call(ev) {
			logger.Debug("%s vetoed %s %q", name, def.Name, doc.ID())
			continue
		}
		if def.PreUpdate != nil {
			ok, err := def.PreUpdate(doc, &domain.LifecycleEvent{Changes: diffs[i], Options: opts, UserID: r.user.ID})
			if err != nil {
				return nil, nil, err
			}
			if !ok {
				logger.Debug("%s vetoed %s %q", name, def.Name, doc.ID())
				continue
			}
		}
		keptDiffs = append(keptDiffs, diffs[i])
		keptTargets = append(keptTargets, doc)
	}
	return keptDiffs, keptTargets, nil
}

// vetoDelete filters ids through the preDelete hooks. A nil target has no
// constructed document to offer the hooks, so it passes through unvetoed.
func (r *Runtime) vetoDelete(def *domain.TypeDefinition, targets []*domain.Document, ids []string, opts *domain.RequestOptions) ([]string, []*domain.Document, error) {
	if opts.NoHook {
		return ids, targets, nil
	}
	name := hooks.Name("preDelete", def.Name)
	keptIDs := make([]string, 0, len(ids))
	keptTargets := make([]*domain.Document, 0, len(targets))
	for i, doc := range targets {
		if doc != nil {
			ev := &hooks.Event{Name: name, Document: doc, Options: opts, UserID: r.user.ID}
			if !r.hooks.Call(ev) {
				logger.Debug("%s vetoed %s %q", name, def.Name, doc.ID())
				continue
			}
			if def.PreDelete != nil {
				ok, err := def.PreDelete(doc, &domain.LifecycleEvent{Options: opts, UserID: r.user.ID})
				if err != nil {
					return nil, nil, err
				}
				if !ok {
					logger.Debug("%s vetoed %s %q", name, def.Name, doc.ID())
					continue
				}
			}
		}
		keptIDs = append(keptIDs, ids[i])
		keptTargets = append(keptTargets, doc)
	}
	return keptIDs, keptTargets, nil
}

// --- phases 4 and 5: apply and notify ---

// applyModify installs an acknowledged or replicated mutation into local
// state and notifies observers and hooks. It is idempotent: replaying a
// message whose effects are already present changes nothing and fires no
// hooks.
func (r *Runtime) applyModify(resp *domain.Response) []*domain.Document {
	req := resp.Request
	opts := req.Options.Clone()

	if req.Pack != "" {
		return r.applyPackModify(resp)
	}
	if req.ParentType != "" {
		return r.applyEmbedded(resp, opts)
	}

	def, err := r.registry.Get(req.Type)
	if err != nil {
		logger.Warn("dropping inbound %s for unknown type %s", req.Action, req.Type)
		return nil
	}
	coll, err := r.Collection(req.Type)
	if err != nil {
		logger.Warn("dropping inbound %s: %v", req.Action, err)
		return nil
	}

	r.mu.Lock()
	var docs []*domain.Document
	var rows []map[string]any
	switch req.Action {
	case domain.ActionCreate:
		docs, rows = r.applyCreate(def, coll, resp.Result)
	case domain.ActionUpdate:
		docs, rows = r.applyUpdate(def, coll, resp.Result, opts)
	case domain.ActionDelete:
		docs, rows = r.applyDelete(def, coll, resp.Deleted, opts)
	case domain.ActionGet:
		r.mu.Unlock()
		return nil
	default:
		logger.Warn("dropping inbound message with unknown action %q", req.Action)
		r.mu.Unlock()
		return nil
	}
	r.mu.Unlock()

	if len(docs) == 0 {
		return nil
	}
	r.requestPerception(req.Type, req.Action)
	r.notify(coll, req.Action, req.Type, docs, rows, opts, resp.UserID)
	return docs
}

// applyCreate constructs and installs each authoritative record. Records
// already present with an identical source are skipped. Callers hold r.mu.
func (r *Runtime) applyCreate(def *domain.TypeDefinition, coll *domain.Collection, result []map[string]any) ([]*domain.Document, []map[string]any) {
	var docs []*domain.Document
	var rows []map[string]any
	for _, state := range result {
		id, _ := state["_id"].(string)
		if existing, ok := coll.Get(id); ok {
			if len(domain.DiffObject(existing.ToObject(), state)) == 0 {
				continue
			}
		}
		doc, err := domain.NewDocument(r.registry, def.Name, state, nil)
		if err != nil {
			logger.Warn("server state for %s %q failed validation: %v", def.Name, id, err)
			if doc != nil && doc.ID() != "" {
				coll.SetInvalid(doc)
			}
			continue
		}
		if err := coll.Set(doc); err != nil {
			logger.Warn("installing %s %q: %v", def.Name, id, err)
			continue
		}
		docs = append(docs, doc)
		rows = append(rows, doc.ToObject())
	}
	for i, doc := range docs {
		if def.OnCreate != nil {
			def.OnCreate(doc, &domain.LifecycleEvent{Data: rows[i]})
		}
	}
	return docs, rows
}

// applyUpdate replaces each target's source with the authoritative
// post-state. Unknown ids are installed fresh, so a client that missed the
// create still converges. Callers hold r.mu.
func (r *Runtime) applyUpdate(def *domain.TypeDefinition, coll *domain.Collection, result []map[string]any, opts *domain.RequestOptions) ([]*domain.Document, []map[string]any) {
	var docs []*domain.Document
	var rows []map[string]any
	for _, state := range result {
		id, _ := state["_id"].(string)
		doc, ok := coll.Get(id)
		wasInvalid := false
		if !ok {
			doc, ok = coll.GetInvalid(id)
			wasInvalid = ok
		}
		if !ok {
			created, _ := r.applyCreate(def, coll, []map[string]any{state})
			if len(created) == 1 {
				docs = append(docs, created[0])
				rows = append(rows, created[0].ToObject())
			}
			continue
		}

		changes := domain.DiffObject(doc.ToObject(), state)
		if len(changes) == 0 && !wasInvalid && !opts.NoDiff {
			continue
		}
		if err := doc.ReplaceSource(state); err != nil {
			logger.Warn("server state for %s %q failed validation: %v", def.Name, id, err)
			coll.Delete(id)
			coll.SetInvalid(doc)
			continue
		}
		if wasInvalid {
			// repaired; promote back into the valid set
			if err := coll.Set(doc); err != nil {
				logger.Warn("promoting repaired %s %q: %v", def.Name, id, err)
				continue
			}
		}
		docs = append(docs, doc)
		rows = append(rows, changes)
	}
	for i, doc := range docs {
		if def.OnUpdate != nil {
			def.OnUpdate(doc, &domain.LifecycleEvent{Changes: rows[i], Options: opts})
		}
	}
	return docs, rows
}

// applyDelete removes each acknowledged id, valid or invalid. Callers hold
// r.mu.
func (r *Runtime) applyDelete(def *domain.TypeDefinition, coll *domain.Collection, deleted []string, opts *domain.RequestOptions) ([]*domain.Document, []map[string]any) {
	var docs []*domain.Document
	var rows []map[string]any
	for _, id := range deleted {
		doc, ok := coll.Get(id)
		if !ok {
			doc, ok = coll.GetInvalid(id)
		}
		if !coll.Delete(id) || !ok {
			continue
		}
		docs = append(docs, doc)
		rows = append(rows, map[string]any{"_id": id})
	}
	for _, doc := range docs {
		if def.OnDelete != nil {
			def.OnDelete(doc, &domain.LifecycleEvent{Options: opts})
		}
	}
	return docs, rows
}

// notify renders the collection once, then fires the post hook once per
// affected record in pipeline order. Callers must not hold r.mu: hook
// subscribers may issue follow-up operations.
func (r *Runtime) notify(coll *domain.Collection, action, documentType string, docs []*domain.Document, rows []map[string]any, opts *domain.RequestOptions, userID string) {
	if !opts.NoRender {
		coll.Render(false, &domain.RenderContext{
			Action:       action,
			DocumentType: documentType,
			Documents:    docs,
			Data:         rows,
		})
	}
	name := hooks.Name(action, documentType)
	for i, doc := range docs {
		ev := &hooks.Event{Name: name, Document: doc, Options: opts, UserID: userID}
		switch action {
		case domain.ActionUpdate:
			ev.Changes = rows[i]
		default:
			ev.Data = rows[i]
		}
		r.hooks.CallAll(ev)
	}
}

// requestPerception queues canvas recomputation for placeable changes.
func (r *Runtime) requestPerception(documentType, action string) {
	var flags domain.PerceptionFlag
	switch documentType {
	case "Token":
		flags = domain.PerceptionInitializeVision
	case "AmbientLight":
		flags = domain.PerceptionInitializeLighting
	case "Tile":
		flags = domain.PerceptionRefreshTiles
	case "Scene":
		if action == domain.ActionUpdate {
			flags = domain.PerceptionInitializeLighting | domain.PerceptionInitializeVision | domain.PerceptionInitializeSounds
		}
	}
	if flags != 0 {
		r.perception.Request(flags)
	}
}
