package services

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/hearthvtt/hearth-cli/internal/core/domain"
	"github.com/hearthvtt/hearth-cli/internal/core/ports/driving"
	"github.com/hearthvtt/hearth-cli/internal/logger"
)

// packCacheLifetime is the idle time after which a pack's document cache is
// evicted. The index always survives eviction.
const packCacheLifetime = 300 * time.Second

// importChunkSize bounds the batch size of an ImportAll dispatch.
const importChunkSize = 100

// defaultIndexFields are always present in pack index rows.
var defaultIndexFields = []string{"_id", "name", "folder", "sort"}

// Pack is a compendium pack: a server-side bucket of documents of one type,
// browsed through a lazily built index and a TTL-evicted document cache.
type Pack struct {
	runtime      *Runtime
	id           string
	documentType string
	label        string
	locked       bool
	private      bool

	index         map[string]map[string]any
	indexOrder    []string
	indexedFields map[string]bool
	cache         map[string]*domain.Document
	evict         drivenTimer
}

// drivenTimer narrows driven.Timer for storage in the struct without
// importing the port in every signature.
type drivenTimer interface {
	Stop() bool
	Reset(d time.Duration) bool
}

// RegisterPack registers a compendium pack the world advertises. Re-using an
// id replaces the registration but keeps nothing cached.
func (r *Runtime) RegisterPack(id, documentType, label string, locked, private bool) (*Pack, error) {
	if id == "" {
		return nil, fmt.Errorf("pack requires an id")
	}
	if _, err := r.registry.Get(documentType); err != nil {
		return nil, err
	}
	p := &Pack{
		runtime:      r,
		id:           id,
		documentType: documentType,
		label:        label,
		locked:       locked,
		private:      private,
		cache:        make(map[string]*domain.Document),
	}
	r.mu.Lock()
	if old, ok := r.packs[id]; ok {
		old.stopEviction()
	}
	r.packs[id] = p
	r.mu.Unlock()
	return p, nil
}

// ID returns the pack id.
func (p *Pack) ID() string { return p.id }

// DocumentType returns the type of document the pack holds.
func (p *Pack) DocumentType() string { return p.documentType }

// Label returns the display label.
func (p *Pack) Label() string {
	p.runtime.mu.Lock()
	defer p.runtime.mu.Unlock()
	return p.label
}

// Locked reports whether the pack rejects writes.
func (p *Pack) Locked() bool {
	p.runtime.mu.Lock()
	defer p.runtime.mu.Unlock()
	return p.locked
}

// Private reports whether the pack is hidden from non-gamemaster users.
func (p *Pack) Private() bool {
	p.runtime.mu.Lock()
	defer p.runtime.mu.Unlock()
	return p.private
}

// Rename updates the display label. Caches and the eviction timer are
// untouched: a rename is metadata only.
func (p *Pack) Rename(label string) {
	p.runtime.mu.Lock()
	p.label = label
	p.runtime.mu.Unlock()
}

// GetIndex returns the pack's index rows, fetching only when the cached
// index is missing one of the requested fields. New fields merge into
// existing rows; the index is never rebuilt from scratch while valid.
func (p *Pack) GetIndex(ctx context.Context, fields []string) ([]map[string]any, error) {
	p.runtime.mu.Lock()
	if p.index != nil && p.hasFields(fields) {
		rows := p.indexRows()
		p.runtime.mu.Unlock()
		return rows, nil
	}
	want := unionFields(p.indexedFields, fields)
	p.runtime.mu.Unlock()

	resp, err := p.runtime.dispatch(ctx, &domain.Request{
		Action: domain.ActionGet,
		Type:   p.documentType,
		Pack:   p.id,
		Options: &domain.RequestOptions{
			Index:       true,
			IndexFields: want,
		},
	})
	if err != nil {
		return nil, err
	}

	p.runtime.mu.Lock()
	if p.index == nil {
		p.index = make(map[string]map[string]any)
	}
	if p.indexedFields == nil {
		p.indexedFields = make(map[string]bool)
	}
	for _, f := range want {
		p.indexedFields[f] = true
	}
	for _, row := range resp.Result {
		id, _ := row["_id"].(string)
		if id == "" {
			continue
		}
		existing, ok := p.index[id]
		if !ok {
			p.index[id] = domain.CloneMap(row)
			p.indexOrder = append(p.indexOrder, id)
			continue
		}
		for k, v := range row {
			existing[k] = domain.DeepClone(v)
		}
	}
	rows := p.indexRows()
	p.runtime.mu.Unlock()
	return rows, nil
}

// GetDocument returns the pack document with id, from cache when warm.
// Every cache read or write restarts the eviction countdown.
func (p *Pack) GetDocument(ctx context.Context, id string) (*domain.Document, error) {
	p.runtime.mu.Lock()
	if doc, ok := p.cache[id]; ok {
		p.touchEviction()
		p.runtime.mu.Unlock()
		return doc, nil
	}
	p.runtime.mu.Unlock()

	docs, err := p.GetDocuments(ctx, map[string]any{"_id": id})
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, fmt.Errorf("%w: %s %q in pack %s", domain.ErrNotFound, p.documentType, id, p.id)
	}
	return docs[0], nil
}

// GetDocuments fetches full pack documents matching query and caches them.
func (p *Pack) GetDocuments(ctx context.Context, query map[string]any) ([]*domain.Document, error) {
	resp, err := p.runtime.dispatch(ctx, &domain.Request{
		Action:  domain.ActionGet,
		Type:    p.documentType,
		Pack:    p.id,
		Query:   query,
		Options: &domain.RequestOptions{},
	})
	if err != nil {
		return nil, err
	}

	p.runtime.mu.Lock()
	defer p.runtime.mu.Unlock()
	docs := make([]*domain.Document, 0, len(resp.Result))
	for _, state := range resp.Result {
		doc, err := domain.NewDocument(p.runtime.registry, p.documentType, state, &domain.ConstructOptions{Pack: p.id})
		if err != nil {
			logger.Warn("pack %s document %v failed validation: %v", p.id, state["_id"], err)
			continue
		}
		p.cache[doc.ID()] = doc
		docs = append(docs, doc)
	}
	if len(docs) > 0 {
		p.touchEviction()
	}
	return docs, nil
}

// Pack writes run the same five phases as world writes, against the pack's
// own table server-side. A locked pack rejects every write before the
// prepare phase runs.

// CreateDocuments submits proposed records into the pack and returns the
// constructed documents. Records that fail validation or are vetoed drop out
// of the batch, matching world create semantics.
func (p *Pack) CreateDocuments(ctx context.Context, data []map[string]any, opts *domain.RequestOptions) ([]*domain.Document, error) {
	opts = opts.Clone()
	if err := p.writable(); err != nil {
		return nil, err
	}
	r := p.runtime
	def, err := r.registry.Get(p.documentType)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	prepared := make([]*domain.Document, 0, len(data))
	payload := make([]map[string]any, 0, len(data))
	for _, record := range data {
		source := domain.CloneMap(record)
		if opts.KeepID {
			if id, _ := source["_id"].(string); id != "" && p.index[id] != nil {
				r.mu.Unlock()
				return nil, fmt.Errorf("%w: %s %q in pack %s", domain.ErrDuplicateID, def.Name, id, p.id)
			}
		} else {
			delete(source, "_id")
		}
		doc, err := domain.NewDocument(r.registry, def.Name, source, &domain.ConstructOptions{Pack: p.id})
		if err != nil {
			logger.Warn("dropping %s from pack %s create batch: %v", def.Name, p.id, err)
			continue
		}
		if doc.ID() == "" {
			if err := doc.SetID(domain.RandomID()); err != nil {
				r.mu.Unlock()
				return nil, err
			}
		}
		prepared = append(prepared, doc)
		payload = append(payload, doc.ToObject())
	}
	prepared, payload, err = r.vetoCreate(def, prepared, payload, opts)
	r.mu.Unlock()
	if err != nil {
		return nil, err
	}
	if len(prepared) == 0 {
		return nil, nil
	}

	resp, err := r.dispatch(ctx, &domain.Request{
		Action:  domain.ActionCreate,
		Type:    p.documentType,
		Pack:    p.id,
		Data:    payload,
		Options: opts,
	})
	if err != nil {
		return nil, err
	}
	return p.applyWrite(resp), nil
}

// UpdateDocuments submits patches, each carrying _id, against pack documents.
// Patches with an empty effective diff, failing validation or the ownership
// check, or vetoed drop out of the batch.
func (p *Pack) UpdateDocuments(ctx context.Context, updates []map[string]any, opts *domain.RequestOptions) ([]*domain.Document, error) {
	opts = opts.Clone()
	if err := p.writable(); err != nil {
		return nil, err
	}
	r := p.runtime
	def, err := r.registry.Get(p.documentType)
	if err != nil {
		return nil, err
	}

	diffs := make([]map[string]any, 0, len(updates))
	targets := make([]*domain.Document, 0, len(updates))
	for _, patch := range updates {
		id, _ := patch["_id"].(string)
		if id == "" {
			return nil, fmt.Errorf("update patch for %s is missing _id", def.Name)
		}
		doc, err := p.GetDocument(ctx, id)
		if err != nil {
			return nil, err
		}
		if !doc.TestUserPermission(r.user, domain.PermissionOwner) {
			logger.Warn("dropping update of %s %q in pack %s: user %s lacks ownership", def.Name, id, p.id, r.user.Name)
			continue
		}
		changes := domain.CloneMap(patch)
		delete(changes, "_id")
		diff, err := trialDiff(doc, changes, opts)
		if err != nil {
			logger.Warn("dropping update of %s %q in pack %s: %v", def.Name, id, p.id, err)
			continue
		}
		if len(diff) == 0 && !opts.NoDiff {
			continue
		}
		diff["_id"] = id
		diffs = append(diffs, diff)
		targets = append(targets, doc)
	}

	r.mu.Lock()
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
		Type:    p.documentType,
		Pack:    p.id,
		Updates: diffs,
		Options: opts,
	})
	if err != nil {
		return nil, err
	}
	return p.applyWrite(resp), nil
}

// DeleteDocuments removes pack documents by id and returns the deleted ids.
func (p *Pack) DeleteDocuments(ctx context.Context, ids []string, opts *domain.RequestOptions) ([]string, error) {
	opts = opts.Clone()
	if err := p.writable(); err != nil {
		return nil, err
	}
	r := p.runtime
	def, err := r.registry.Get(p.documentType)
	if err != nil {
		return nil, err
	}

	kept := make([]string, 0, len(ids))
	targets := make([]*domain.Document, 0, len(ids))
	for _, id := range ids {
		doc, err := p.GetDocument(ctx, id)
		if err != nil {
			return nil, err
		}
		if !doc.TestUserPermission(r.user, domain.PermissionOwner) {
			logger.Warn("dropping delete of %s %q in pack %s: user %s lacks ownership", def.Name, id, p.id, r.user.Name)
			continue
		}
		kept = append(kept, id)
		targets = append(targets, doc)
	}

	r.mu.Lock()
	kept, _, err = r.vetoDelete(def, targets, kept, opts)
	r.mu.Unlock()
	if err != nil {
		return nil, err
	}
	if len(kept) == 0 {
		return nil, nil
	}

	resp, err := r.dispatch(ctx, &domain.Request{
		Action:  domain.ActionDelete,
		Type:    p.documentType,
		Pack:    p.id,
		IDs:     kept,
		Options: opts,
	})
	if err != nil {
		return nil, err
	}
	p.applyWrite(resp)
	return resp.Deleted, nil
}

// writable gates every pack mutation on the lock flag.
func (p *Pack) writable() error {
	if p.Locked() {
		return fmt.Errorf("%w: pack %s", domain.ErrLocked, p.id)
	}
	return nil
}

// applyWrite installs an acknowledged or replicated pack mutation into the
// cache and, once built, the index.
func (p *Pack) applyWrite(resp *domain.Response) []*domain.Document {
	r := p.runtime
	r.mu.Lock()
	defer r.mu.Unlock()
	var docs []*domain.Document
	switch resp.Request.Action {
	case domain.ActionCreate, domain.ActionUpdate:
		for _, state := range resp.Result {
			doc, err := domain.NewDocument(r.registry, p.documentType, state, &domain.ConstructOptions{Pack: p.id})
			if err != nil {
				logger.Warn("pack %s state for %v failed validation: %v", p.id, state["_id"], err)
				continue
			}
			p.cache[doc.ID()] = doc
			p.indexInstall(doc.ID(), state)
			docs = append(docs, doc)
		}
		if len(docs) > 0 {
			p.touchEviction()
		}
	case domain.ActionDelete:
		for _, id := range resp.Deleted {
			delete(p.cache, id)
			p.indexRemove(id)
		}
	}
	return docs
}

// indexInstall refreshes one index row from a full record. A pack whose
// index was never fetched defers to the first GetIndex. Callers hold the
// runtime lock.
func (p *Pack) indexInstall(id string, state map[string]any) {
	if p.index == nil {
		return
	}
	row := map[string]any{}
	for f := range p.indexedFields {
		if v, ok := domain.GetDotted(state, f); ok {
			domain.SetDotted(row, f, domain.DeepClone(v))
		}
	}
	row["_id"] = id
	if _, ok := p.index[id]; !ok {
		p.indexOrder = append(p.indexOrder, id)
	}
	p.index[id] = row
}

// indexRemove drops one index row. Callers hold the runtime lock.
func (p *Pack) indexRemove(id string) {
	if p.index == nil {
		return
	}
	if _, ok := p.index[id]; !ok {
		return
	}
	delete(p.index, id)
	for i, k := range p.indexOrder {
		if k == id {
			p.indexOrder = append(p.indexOrder[:i], p.indexOrder[i+1:]...)
			break
		}
	}
}

// applyPackModify routes a replicated pack mutation to its registered pack.
// An unregistered pack drops the message: nothing local mirrors it.
func (r *Runtime) applyPackModify(resp *domain.Response) []*domain.Document {
	if resp.Request.Action == domain.ActionGet {
		return nil
	}
	r.mu.Lock()
	p, ok := r.packs[resp.Request.Pack]
	r.mu.Unlock()
	if !ok {
		logger.Debug("dropping inbound %s for unregistered pack %s", resp.Request.Action, resp.Request.Pack)
		return nil
	}
	return p.applyWrite(resp)
}

// ImportOptions controls how pack documents are copied into the world.
type ImportOptions struct {
	// KeepID preserves pack ids on the imported copies.
	KeepID bool

	// KeepOwnership preserves the pack documents' ownership instead of
	// resetting it to the world default.
	KeepOwnership bool

	// FolderID places imported documents into an existing folder.
	FolderID string

	// FolderName places imported documents into a folder with this name,
	// creating it when no matching folder exists. FolderID wins when both
	// are set.
	FolderName string
}

// ImportDocument copies one pack document into the world. The imported copy
// gets a fresh id and a reset ownership unless opts keeps them.
func (p *Pack) ImportDocument(ctx context.Context, id string, opts *ImportOptions) (*domain.Document, error) {
	if opts == nil {
		opts = &ImportOptions{}
	}
	doc, err := p.GetDocument(ctx, id)
	if err != nil {
		return nil, err
	}
	folderID, err := p.importFolder(ctx, opts)
	if err != nil {
		return nil, err
	}
	record := p.importRecord(doc, opts, folderID)
	created, err := p.runtime.Create(ctx, p.documentType, []map[string]any{record}, &domain.RequestOptions{KeepID: opts.KeepID})
	if err != nil {
		return nil, err
	}
	if len(created) == 0 {
		return nil, nil
	}
	return created[0], nil
}

// ImportAll copies every pack document into the world, dispatching in
// chunks so one oversized batch cannot stall the socket. Without KeepID the
// copies get fresh ids, and references between pack documents are rewritten
// to the translated ids.
func (p *Pack) ImportAll(ctx context.Context, opts *ImportOptions) ([]*domain.Document, error) {
	if opts == nil {
		opts = &ImportOptions{}
	}
	docs, err := p.GetDocuments(ctx, nil)
	if err != nil {
		return nil, err
	}
	folderID, err := p.importFolder(ctx, opts)
	if err != nil {
		return nil, err
	}

	idMap := make(map[string]string, len(docs))
	records := make([]map[string]any, 0, len(docs))
	for _, doc := range docs {
		record := p.importRecord(doc, opts, folderID)
		if !opts.KeepID {
			fresh := domain.RandomID()
			idMap[doc.ID()] = fresh
			record["_id"] = fresh
		}
		records = append(records, record)
	}
	translateIDs(records, idMap)

	// ids were minted above, so the dispatch always keeps them
	createOpts := &domain.RequestOptions{KeepID: true}
	var imported []*domain.Document
	for start := 0; start < len(records); start += importChunkSize {
		end := start + importChunkSize
		if end > len(records) {
			end = len(records)
		}
		created, err := p.runtime.Create(ctx, p.documentType, records[start:end], createOpts)
		if err != nil {
			return imported, err
		}
		imported = append(imported, created...)
	}
	return imported, nil
}

// importRecord prepares one pack document for the world: ownership resets to
// the world default unless kept, and folder placement applies when requested.
func (p *Pack) importRecord(doc *domain.Document, opts *ImportOptions, folderID string) map[string]any {
	record := doc.ToObject()
	if !opts.KeepOwnership {
		delete(record, "ownership")
	}
	if folderID != "" {
		record["folder"] = folderID
	}
	return record
}

// importFolder resolves the requested placement, creating a Folder document
// when only a name was given and no folder of that name holds this type.
func (p *Pack) importFolder(ctx context.Context, opts *ImportOptions) (string, error) {
	if opts.FolderID != "" {
		return opts.FolderID, nil
	}
	if opts.FolderName == "" {
		return "", nil
	}
	folders, err := p.runtime.Collection("Folder")
	if err != nil {
		return "", err
	}
	p.runtime.mu.Lock()
	for _, doc := range folders.Contents() {
		typ, _ := doc.Get("type")
		if doc.Name() == opts.FolderName && typ == p.documentType {
			p.runtime.mu.Unlock()
			return doc.ID(), nil
		}
	}
	p.runtime.mu.Unlock()

	created, err := p.runtime.Create(ctx, "Folder", []map[string]any{{
		"name": opts.FolderName,
		"type": p.documentType,
	}}, nil)
	if err != nil {
		return "", err
	}
	if len(created) == 0 {
		return "", fmt.Errorf("creating folder %q for pack %s", opts.FolderName, p.id)
	}
	return created[0].ID(), nil
}

// translateIDs rewrites references to translated ids anywhere in the copied
// records, so links between pack documents survive the re-keying.
func translateIDs(records []map[string]any, idMap map[string]string) {
	if len(idMap) == 0 {
		return
	}
	var walk func(v any) any
	walk = func(v any) any {
		switch t := v.(type) {
		case map[string]any:
			for k, val := range t {
				t[k] = walk(val)
			}
			return t
		case []any:
			for i, val := range t {
				t[i] = walk(val)
			}
			return t
		case string:
			if fresh, ok := idMap[t]; ok {
				return fresh
			}
			return t
		default:
			return v
		}
	}
	for _, rec := range records {
		walk(rec)
	}
}

// Configure updates pack metadata server-side. Gamemaster only; a locked
// pack can still be configured, since that is how it gets unlocked.
func (p *Pack) Configure(ctx context.Context, settings map[string]any) error {
	if !p.runtime.user.IsGM() {
		return fmt.Errorf("%w: configuring pack %s requires gamemaster role", domain.ErrPermission, p.id)
	}
	data := domain.CloneMap(settings)
	if data == nil {
		data = map[string]any{}
	}
	data["id"] = p.id
	resp, err := p.runtime.transport.ManageCompendium(ctx, &domain.CompendiumRequest{
		Action: domain.PackActionMigrate,
		Data:   data,
	})
	if err != nil {
		return fmt.Errorf("configuring pack %s: %w", p.id, err)
	}
	if resp.Error != "" {
		return fmt.Errorf("server rejected pack configuration: %s", resp.Error)
	}
	p.runtime.mu.Lock()
	if locked, ok := data["locked"].(bool); ok {
		p.locked = locked
	}
	if private, ok := data["private"].(bool); ok {
		p.private = private
	}
	if label, ok := data["label"].(string); ok {
		p.label = label
	}
	p.runtime.mu.Unlock()
	return nil
}

// ClearCache drops cached documents immediately. The index survives.
func (p *Pack) ClearCache() {
	p.runtime.mu.Lock()
	defer p.runtime.mu.Unlock()
	p.clearLocked()
}

// CachedIDs returns the ids of currently cached documents, sorted. Useful
// for inspecting eviction behavior.
func (p *Pack) CachedIDs() []string {
	p.runtime.mu.Lock()
	defer p.runtime.mu.Unlock()
	ids := make([]string, 0, len(p.cache))
	for id := range p.cache {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// touchEviction restarts the idle countdown. Callers hold the runtime lock.
func (p *Pack) touchEviction() {
	if p.evict != nil {
		p.evict.Reset(packCacheLifetime)
		return
	}
	p.evict = p.runtime.clock.AfterFunc(packCacheLifetime, func() {
		p.runtime.mu.Lock()
		defer p.runtime.mu.Unlock()
		p.clearLocked()
	})
}

// clearLocked drops the cache and the timer, keeping the index. Callers hold
// the runtime lock.
func (p *Pack) clearLocked() {
	p.cache = make(map[string]*domain.Document)
	if p.evict != nil {
		p.evict.Stop()
		p.evict = nil
	}
	logger.Debug("pack %s cache cleared", p.id)
}

func (p *Pack) stopEviction() {
	if p.evict != nil {
		p.evict.Stop()
		p.evict = nil
	}
}

// hasFields reports whether every requested field is already indexed.
// Callers hold the runtime lock.
func (p *Pack) hasFields(fields []string) bool {
	for _, f := range fields {
		if !p.indexedFields[f] {
			return false
		}
	}
	return true
}

// indexRows snapshots the index in first-seen order. Callers hold the
// runtime lock.
func (p *Pack) indexRows() []map[string]any {
	rows := make([]map[string]any, 0, len(p.indexOrder))
	for _, id := range p.indexOrder {
		rows = append(rows, domain.CloneMap(p.index[id]))
	}
	return rows
}

func unionFields(have map[string]bool, want []string) []string {
	set := make(map[string]bool, len(have)+len(want)+len(defaultIndexFields))
	for _, f := range defaultIndexFields {
		set[f] = true
	}
	for f := range have {
		set[f] = true
	}
	for _, f := range want {
		if f != "" {
			set[f] = true
		}
	}
	out := make([]string, 0, len(set))
	for f := range set {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}

// CreatePack asks the server to create a new compendium pack and registers
// it locally. Gamemaster only.
func (r *Runtime) CreatePack(ctx context.Context, id, documentType, label string) (*Pack, error) {
	if !r.user.IsGM() {
		return nil, fmt.Errorf("%w: creating a pack requires gamemaster role", domain.ErrPermission)
	}
	if _, err := r.registry.Get(documentType); err != nil {
		return nil, err
	}
	resp, err := r.transport.ManageCompendium(ctx, &domain.CompendiumRequest{
		Action: domain.PackActionCreate,
		Data:   map[string]any{"id": id, "type": documentType, "label": label},
	})
	if err != nil {
		return nil, fmt.Errorf("creating pack %s: %w", id, err)
	}
	if resp.Error != "" {
		return nil, fmt.Errorf("server rejected pack creation: %s", resp.Error)
	}
	return r.RegisterPack(id, documentType, label, false, false)
}

// DeletePack asks the server to delete a pack and forgets it locally.
// Gamemaster only; locked packs must be unlocked first.
func (r *Runtime) DeletePack(ctx context.Context, id string) error {
	if !r.user.IsGM() {
		return fmt.Errorf("%w: deleting a pack requires gamemaster role", domain.ErrPermission)
	}
	p, err := r.Pack(id)
	if err != nil {
		return err
	}
	if p.Locked() {
		return fmt.Errorf("%w: %s", domain.ErrLocked, id)
	}
	resp, err := r.transport.ManageCompendium(ctx, &domain.CompendiumRequest{
		Action: domain.PackActionDelete,
		Data:   map[string]any{"id": id},
	})
	if err != nil {
		return fmt.Errorf("deleting pack %s: %w", id, err)
	}
	if resp.Error != "" {
		return fmt.Errorf("server rejected pack deletion: %s", resp.Error)
	}
	r.mu.Lock()
	p.stopEviction()
	delete(r.packs, id)
	r.mu.Unlock()
	return nil
}

// Ensure Runtime implements the driving port.
var _ driving.CompendiumService = (*Runtime)(nil)

// Index implements driving.CompendiumService.
func (r *Runtime) Index(ctx context.Context, pack string, fields []string) ([]map[string]any, error) {
	p, err := r.Pack(pack)
	if err != nil {
		return nil, err
	}
	return p.GetIndex(ctx, fields)
}

// Import implements driving.CompendiumService.
func (r *Runtime) Import(ctx context.Context, pack, id string) (*domain.Document, error) {
	p, err := r.Pack(pack)
	if err != nil {
		return nil, err
	}
	return p.ImportDocument(ctx, id, nil)
}
