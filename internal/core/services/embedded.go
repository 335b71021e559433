package services

import (
	"context"
	"fmt"

	"github.com/hearthvtt/hearth-cli/internal/core/domain"
	"github.com/hearthvtt/hearth-cli/internal/core/hooks"
	"github.com/hearthvtt/hearth-cli/internal/logger"
)

// Embedded CRUD runs the same five phases as primary CRUD, addressed through
// a world-scope parent. One level of nesting only: a child of a child is
// rejected, except for the synthetic-actor reroute handled in synthetic.go.

// CreateEmbedded submits proposed child records into the parent's embedded
// collection for childType.
func (r *Runtime) CreateEmbedded(ctx context.Context, parent *domain.Document, childType string, data []map[string]any, opts *domain.RequestOptions) ([]*domain.Document, error) {
	opts = opts.Clone()
	if synthetic, err := r.checkEmbeddedParent(parent); err != nil {
		return nil, err
	} else if synthetic {
		return r.syntheticChildCreate(ctx, parent, childType, data, opts)
	}
	childDef, _, embCol, err := r.resolveEmbedded(parent, childType)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	if !parent.TestUserPermission(r.user, domain.PermissionOwner) {
		r.mu.Unlock()
		return nil, fmt.Errorf("%w: user %s may not modify %s %q", domain.ErrPermission, r.user.Name, parent.Type(), parent.ID())
	}
	prepared := make([]*domain.Document, 0, len(data))
	payload := make([]map[string]any, 0, len(data))
	for _, record := range data {
		source := domain.CloneMap(record)
		if opts.KeepID {
			if id, _ := source["_id"].(string); id != "" && embCol.Has(id) {
				r.mu.Unlock()
				return nil, fmt.Errorf("%w: %s %q", domain.ErrDuplicateID, childType, id)
			}
		} else {
			delete(source, "_id")
		}
		child, err := domain.NewDocument(r.registry, childType, source, &domain.ConstructOptions{Parent: parent})
		if err != nil {
			logger.Warn("dropping %s from embedded create batch: %v", childType, err)
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

	resp, err := r.dispatch(ctx, &domain.Request{
		Action:     domain.ActionCreate,
		Type:       childType,
		ParentType: parent.Type(),
		ParentID:   parent.ID(),
		Data:       payload,
		Options:    opts,
	})
	if err != nil {
		return nil, err
	}
	return r.applyModify(resp), nil
}

// UpdateEmbedded submits patches for children of parent, each carrying _id.
func (r *Runtime) UpdateEmbedded(ctx context.Context, parent *domain.Document, childType string, updates []map[string]any, opts *domain.RequestOptions) ([]*domain.Document, error) {
	opts = opts.Clone()
	if synthetic, err := r.checkEmbeddedParent(parent); err != nil {
		return nil, err
	} else if synthetic {
		return r.syntheticChildUpdate(ctx, parent, childType, updates, opts)
	}
	childDef, _, embCol, err := r.resolveEmbedded(parent, childType)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	if !parent.TestUserPermission(r.user, domain.PermissionOwner) {
		r.mu.Unlock()
		return nil, fmt.Errorf("%w: user %s may not modify %s %q", domain.ErrPermission, r.user.Name, parent.Type(), parent.ID())
	}
	diffs, targets, err := r.prepareUpdate(childDef, embCol, updates, opts)
	if err != nil {
		r.mu.Unlock()
		return nil, err
	}
	diffs, targets, err = r.vetoUpdate(childDef, targets, diffs, opts)
	r.mu.Unlock()
	if err != nil {
		return nil, err
	}
	if len(diffs) == 0 {
		return nil, nil
	}

	resp, err := r.dispatch(ctx, &domain.Request{
		Action:     domain.ActionUpdate,
		Type:       childType,
		ParentType: parent.Type(),
		ParentID:   parent.ID(),
		Updates:    diffs,
		Options:    opts,
	})
	if err != nil {
		return nil, err
	}
	return r.applyModify(resp), nil
}

// DeleteEmbedded removes children of parent by id.
func (r *Runtime) DeleteEmbedded(ctx context.Context, parent *domain.Document, childType string, ids []string, opts *domain.RequestOptions) ([]string, error) {
	opts = opts.Clone()
	if synthetic, err := r.checkEmbeddedParent(parent); err != nil {
		return nil, err
	} else if synthetic {
		return r.syntheticChildDelete(ctx, parent, childType, ids, opts)
	}
	childDef, _, embCol, err := r.resolveEmbedded(parent, childType)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	if !parent.TestUserPermission(r.user, domain.PermissionOwner) {
		r.mu.Unlock()
		return nil, fmt.Errorf("%w: user %s may not modify %s %q", domain.ErrPermission, r.user.Name, parent.Type(), parent.ID())
	}
	ids, targets, err := r.prepareDelete(embCol, ids, opts)
	if err != nil {
		r.mu.Unlock()
		return nil, err
	}
	ids, _, err = r.vetoDelete(childDef, targets, ids, opts)
	r.mu.Unlock()
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}

	resp, err := r.dispatch(ctx, &domain.Request{
		Action:     domain.ActionDelete,
		Type:       childType,
		ParentType: parent.Type(),
		ParentID:   parent.ID(),
		IDs:        ids,
		Options:    opts,
	})
	if err != nil {
		return nil, err
	}
	r.applyModify(resp)
	return resp.Deleted, nil
}

// checkEmbeddedParent validates the nesting rule. It reports true when the
// parent is a synthetic actor, whose children reroute through its token.
func (r *Runtime) checkEmbeddedParent(parent *domain.Document) (bool, error) {
	if parent == nil {
		return false, fmt.Errorf("embedded operation requires a parent document")
	}
	if parent.Parent() == nil {
		return false, nil
	}
	if isSyntheticActor(parent) {
		return true, nil
	}
	return false, fmt.Errorf("%w: %s %q is itself embedded", domain.ErrNestedParent, parent.Type(), parent.ID())
}

// resolveEmbedded finds the child definition and the parent's embedded
// collection holding childType.
func (r *Runtime) resolveEmbedded(parent *domain.Document, childType string) (*domain.TypeDefinition, string, *domain.Collection, error) {
	childDef, err := r.registry.Get(childType)
	if err != nil {
		return nil, "", nil, err
	}
	field, ok := parent.Definition().EmbeddedField(childType)
	if !ok {
		return nil, "", nil, fmt.Errorf("%w: %s embeds no %s", domain.ErrUnknownType, parent.Type(), childType)
	}
	embCol, ok := parent.Embedded(field)
	if !ok {
		return nil, "", nil, fmt.Errorf("%s %q has no %q collection", parent.Type(), parent.ID(), field)
	}
	return childDef, field, embCol, nil
}

// applyEmbedded installs an acknowledged or replicated embedded mutation
// into the parent's collection and source mirror, then notifies.
func (r *Runtime) applyEmbedded(resp *domain.Response, opts *domain.RequestOptions) []*domain.Document {
	req := resp.Request
	parentColl, err := r.Collection(req.ParentType)
	if err != nil {
		logger.Warn("dropping inbound embedded %s: %v", req.Action, err)
		return nil
	}
	parent, ok := parentColl.Get(req.ParentID)
	if !ok {
		logger.Warn("dropping inbound embedded %s: no %s %q", req.Action, req.ParentType, req.ParentID)
		return nil
	}
	childDef, field, embCol, err := r.resolveEmbedded(parent, req.Type)
	if err != nil {
		logger.Warn("dropping inbound embedded %s: %v", req.Action, err)
		return nil
	}

	r.mu.Lock()
	var docs []*domain.Document
	var rows []map[string]any
	switch req.Action {
	case domain.ActionCreate:
		for _, state := range resp.Result {
			id, _ := state["_id"].(string)
			if existing, ok := embCol.Get(id); ok {
				if len(domain.DiffObject(existing.ToObject(), state)) == 0 {
					continue
				}
			}
			child, cerr := domain.NewDocument(r.registry, req.Type, state, &domain.ConstructOptions{Parent: parent})
			if cerr != nil {
				logger.Warn("server state for %s %q failed validation: %v", req.Type, id, cerr)
				if child == nil || child.ID() == "" {
					continue
				}
			}
			if ierr := parent.InstallEmbedded(field, child); ierr != nil {
				logger.Warn("installing %s %q: %v", req.Type, id, ierr)
				continue
			}
			if child.IsInvalid() {
				continue
			}
			docs = append(docs, child)
			rows = append(rows, child.ToObject())
		}
		for i, child := range docs {
			if childDef.OnCreate != nil {
				childDef.OnCreate(child, &domain.LifecycleEvent{Data: rows[i], Options: opts})
			}
		}
	case domain.ActionUpdate:
		for _, state := range resp.Result {
			id, _ := state["_id"].(string)
			child, ok := embCol.Get(id)
			wasInvalid := false
			if !ok {
				child, ok = embCol.GetInvalid(id)
				wasInvalid = ok
			}
			if !ok {
				continue
			}
			changes := domain.DiffObject(child.ToObject(), state)
			if len(changes) == 0 && !wasInvalid && !opts.NoDiff {
				continue
			}
			if rerr := child.ReplaceSource(state); rerr != nil {
				logger.Warn("server state for %s %q failed validation: %v", req.Type, id, rerr)
			}
			if ierr := parent.InstallEmbedded(field, child); ierr != nil {
				logger.Warn("reinstalling %s %q: %v", req.Type, id, ierr)
				continue
			}
			if child.IsInvalid() {
				continue
			}
			docs = append(docs, child)
			rows = append(rows, changes)
		}
		for i, child := range docs {
			if childDef.OnUpdate != nil {
				childDef.OnUpdate(child, &domain.LifecycleEvent{Changes: rows[i], Options: opts})
			}
		}
	case domain.ActionDelete:
		for _, id := range resp.Deleted {
			child, ok := embCol.Get(id)
			if !ok {
				child, ok = embCol.GetInvalid(id)
			}
			if !parent.RemoveEmbedded(field, id) || !ok {
				continue
			}
			docs = append(docs, child)
			rows = append(rows, map[string]any{"_id": id})
		}
		for _, child := range docs {
			if childDef.OnDelete != nil {
				childDef.OnDelete(child, &domain.LifecycleEvent{Options: opts})
			}
		}
	default:
		logger.Warn("dropping inbound embedded message with unknown action %q", req.Action)
		r.mu.Unlock()
		return nil
	}
	r.mu.Unlock()

	if len(docs) > 0 {
		r.requestPerception(req.Type, req.Action)
		r.notify(embCol, req.Action, req.Type, docs, rows, opts, resp.UserID)
	}
	r.fireEmbeddedTag(opts, resp.UserID)
	return docs
}

// fireEmbeddedTag replays per-child post hooks riding on a parent update:
// the synthetic-actor side channel. Each hook fires exactly once per tagged
// record, in input order.
func (r *Runtime) fireEmbeddedTag(opts *domain.RequestOptions, userID string) {
	tag := opts.Embedded
	if tag == nil {
		return
	}
	name := hooks.Name(tag.Action, tag.Type)
	for _, payload := range tag.Hooks {
		ev := &hooks.Event{Name: name, Options: opts, UserID: userID}
		switch tag.Action {
		case domain.ActionUpdate:
			ev.Changes = payload
		default:
			ev.Data = payload
		}
		r.hooks.CallAll(ev)
	}
}
