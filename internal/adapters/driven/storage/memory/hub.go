package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/hearthvtt/hearth-cli/internal/core/domain"
	"github.com/hearthvtt/hearth-cli/internal/core/ports/driven"
)

// Hub emulates the authoritative game server for tests: it owns the durable
// record of every world document and compendium pack, applies requests in
// arrival order, and broadcasts each mutation to every connected client
// except its origin. Replication semantics match the wire protocol; nothing
// here validates schemas, because the server trusts prepared payloads.
type Hub struct {
	mu       sync.Mutex
	registry *domain.Registry
	world    map[string]*table            // document type -> records
	packs    map[string]*table            // pack id -> records
	packMeta map[string]map[string]any    // pack id -> metadata
	clients  map[int]*HubClient
	seq      int

	// Requests records every modifyDocument request in arrival order, so
	// tests can assert on dispatch behavior such as fetch counts.
	Requests []domain.Request
}

// table is an insertion-ordered record set.
type table struct {
	order []string
	byID  map[string]map[string]any
}

func newTable() *table {
	return &table{byID: make(map[string]map[string]any)}
}

func (t *table) put(id string, record map[string]any) {
	if _, ok := t.byID[id]; !ok {
		t.order = append(t.order, id)
	}
	t.byID[id] = record
}

func (t *table) remove(id string) bool {
	if _, ok := t.byID[id]; !ok {
		return false
	}
	delete(t.byID, id)
	for i, k := range t.order {
		if k == id {
			t.order = append(t.order[:i], t.order[i+1:]...)
			break
		}
	}
	return true
}

func (t *table) records() []map[string]any {
	out := make([]map[string]any, 0, len(t.order))
	for _, id := range t.order {
		out = append(out, t.byID[id])
	}
	return out
}

// NewHub creates an empty authoritative store for the given type registry.
func NewHub(registry *domain.Registry) *Hub {
	return &Hub{
		registry: registry,
		world:    make(map[string]*table),
		packs:    make(map[string]*table),
		packMeta: make(map[string]map[string]any),
		clients:  make(map[int]*HubClient),
	}
}

// Connect attaches a new client acting as userID and returns its transport.
func (h *Hub) Connect(userID string) *HubClient {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.seq++
	c := &HubClient{hub: h, id: h.seq, userID: userID}
	h.clients[c.id] = c
	return c
}

// SeedPack stores a record in a compendium pack, creating the pack if
// needed.
func (h *Hub) SeedPack(pack string, record map[string]any) {
	h.mu.Lock()
	defer h.mu.Unlock()
	t, ok := h.packs[pack]
	if !ok {
		t = newTable()
		h.packs[pack] = t
	}
	id, _ := record["_id"].(string)
	if id == "" {
		id = domain.RandomID()
		record = domain.CloneMap(record)
		record["_id"] = id
	}
	t.put(id, domain.CloneMap(record))
}

// RequestCount returns how many modifyDocument requests matching action and
// pack the hub has served.
func (h *Hub) RequestCount(action, pack string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	for _, req := range h.Requests {
		if req.Action == action && req.Pack == pack {
			n++
		}
	}
	return n
}

// Record returns the stored world record for inspection.
func (h *Hub) Record(documentType, id string) (map[string]any, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	t, ok := h.world[documentType]
	if !ok {
		return nil, false
	}
	rec, ok := t.byID[id]
	if !ok {
		return nil, false
	}
	return domain.CloneMap(rec), true
}

// PackRecord returns the stored pack record for inspection.
func (h *Hub) PackRecord(pack, id string) (map[string]any, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	t, ok := h.packs[pack]
	if !ok {
		return nil, false
	}
	rec, ok := t.byID[id]
	if !ok {
		return nil, false
	}
	return domain.CloneMap(rec), true
}

// HubClient is one connected client's view of the hub. It implements
// driven.SocketTransport.
type HubClient struct {
	hub    *Hub
	id     int
	userID string

	mu       sync.Mutex
	onModify func(*domain.Response)
	onShare  func(*domain.SharedImage)
	closed   bool
}

// Ensure HubClient implements the interface.
var _ driven.SocketTransport = (*HubClient)(nil)

// ModifyDocument applies the request to the hub's store and broadcasts the
// mutation to every other client before returning the acknowledgement.
func (c *HubClient) ModifyDocument(ctx context.Context, req *domain.Request) (*domain.Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return nil, fmt.Errorf("transport is closed")
	}

	resp := c.hub.handleModify(req, c.userID)
	if resp.Error == "" && req.Action != domain.ActionGet {
		c.hub.broadcast(c.id, resp)
	}
	return resp, nil
}

// ManageCompendium applies a pack lifecycle request.
func (c *HubClient) ManageCompendium(ctx context.Context, req *domain.CompendiumRequest) (*domain.CompendiumResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	h := c.hub
	h.mu.Lock()
	defer h.mu.Unlock()
	resp := &domain.CompendiumResponse{Request: *req}
	id, _ := req.Data["id"].(string)
	if id == "" {
		resp.Error = "pack id is required"
		return resp, nil
	}
	switch req.Action {
	case domain.PackActionCreate:
		if _, ok := h.packs[id]; ok {
			resp.Error = fmt.Sprintf("pack %s already exists", id)
			return resp, nil
		}
		h.packs[id] = newTable()
		h.packMeta[id] = domain.CloneMap(req.Data)
	case domain.PackActionDelete:
		if _, ok := h.packs[id]; !ok {
			resp.Error = fmt.Sprintf("pack %s does not exist", id)
			return resp, nil
		}
		delete(h.packs, id)
		delete(h.packMeta, id)
	case domain.PackActionMigrate:
		meta := h.packMeta[id]
		if meta == nil {
			meta = make(map[string]any)
		}
		for k, v := range req.Data {
			meta[k] = v
		}
		h.packMeta[id] = meta
	default:
		resp.Error = fmt.Sprintf("unknown pack action %q", req.Action)
		return resp, nil
	}
	resp.Result = domain.CloneMap(h.packMeta[id])
	return resp, nil
}

// ShareImage broadcasts the image to every other client.
func (c *HubClient) ShareImage(ctx context.Context, img *domain.SharedImage) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	h := c.hub
	h.mu.Lock()
	peers := make([]*HubClient, 0, len(h.clients))
	for id, peer := range h.clients {
		if id != c.id {
			peers = append(peers, peer)
		}
	}
	h.mu.Unlock()
	for _, peer := range peers {
		peer.mu.Lock()
		fn := peer.onShare
		peer.mu.Unlock()
		if fn != nil {
			cp := *img
			fn(&cp)
		}
	}
	return nil
}

// OnModifyDocument registers the inbound replication handler.
func (c *HubClient) OnModifyDocument(fn func(*domain.Response)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onModify = fn
}

// OnShareImage registers the inbound image handler.
func (c *HubClient) OnShareImage(fn func(*domain.SharedImage)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onShare = fn
}

// Close detaches the client from the hub.
func (c *HubClient) Close() error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	c.hub.mu.Lock()
	delete(c.hub.clients, c.id)
	c.hub.mu.Unlock()
	return nil
}

// broadcast replays the mutation to every client except origin.
func (h *Hub) broadcast(originID int, resp *domain.Response) {
	h.mu.Lock()
	peers := make([]*HubClient, 0, len(h.clients))
	for id, peer := range h.clients {
		if id != originID {
			peers = append(peers, peer)
		}
	}
	h.mu.Unlock()
	for _, peer := range peers {
		peer.mu.Lock()
		fn := peer.onModify
		peer.mu.Unlock()
		if fn != nil {
			fn(cloneResponse(resp))
		}
	}
}

// handleModify applies one request to the durable store and builds the
// acknowledgement.
func (h *Hub) handleModify(req *domain.Request, userID string) *domain.Response {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.Requests = append(h.Requests, *req)

	resp := &domain.Response{Request: *req, UserID: userID}
	if req.Pack != "" {
		h.handlePack(req, resp)
		return resp
	}
	if req.ParentType != "" {
		h.handleEmbedded(req, resp)
		return resp
	}

	t, ok := h.world[req.Type]
	if !ok {
		t = newTable()
		h.world[req.Type] = t
	}
	opts := req.Options
	if opts == nil {
		opts = &domain.RequestOptions{}
	}

	switch req.Action {
	case domain.ActionCreate:
		for _, record := range req.Data {
			rec := domain.CloneMap(record)
			id, _ := rec["_id"].(string)
			if id == "" {
				id = domain.RandomID()
				rec["_id"] = id
			} else if _, exists := t.byID[id]; exists {
				resp.Error = fmt.Sprintf("duplicate id %s", id)
				return resp
			}
			t.put(id, rec)
			resp.Result = append(resp.Result, domain.CloneMap(rec))
		}
	case domain.ActionUpdate:
		for _, patch := range req.Updates {
			id, _ := patch["_id"].(string)
			rec, ok := t.byID[id]
			if !ok {
				resp.Error = fmt.Sprintf("no %s with id %s", req.Type, id)
				return resp
			}
			changes := domain.CloneMap(patch)
			delete(changes, "_id")
			merged := domain.MergeObject(rec, changes, !opts.NoRecursive)
			t.put(id, merged)
			resp.Result = append(resp.Result, domain.CloneMap(merged))
		}
	case domain.ActionDelete:
		for _, id := range req.IDs {
			if t.remove(id) {
				resp.Deleted = append(resp.Deleted, id)
			}
		}
	case domain.ActionGet:
		for _, rec := range t.records() {
			if matchQuery(rec, req.Query) {
				resp.Result = append(resp.Result, projectRecord(rec, opts))
			}
		}
	default:
		resp.Error = fmt.Sprintf("unknown action %q", req.Action)
	}
	return resp
}

// handleEmbedded applies a child mutation inside a stored parent record.
func (h *Hub) handleEmbedded(req *domain.Request, resp *domain.Response) {
	parentTable, ok := h.world[req.ParentType]
	if !ok {
		resp.Error = fmt.Sprintf("no %s collection", req.ParentType)
		return
	}
	parent, ok := parentTable.byID[req.ParentID]
	if !ok {
		resp.Error = fmt.Sprintf("no %s with id %s", req.ParentType, req.ParentID)
		return
	}
	parentDef, err := h.registry.Get(req.ParentType)
	if err != nil {
		resp.Error = err.Error()
		return
	}
	field, ok := parentDef.EmbeddedField(req.Type)
	if !ok {
		resp.Error = fmt.Sprintf("%s embeds no %s", req.ParentType, req.Type)
		return
	}
	rows, _ := parent[field].([]any)
	opts := req.Options
	if opts == nil {
		opts = &domain.RequestOptions{}
	}

	switch req.Action {
	case domain.ActionCreate:
		for _, record := range req.Data {
			rec := domain.CloneMap(record)
			id, _ := rec["_id"].(string)
			if id == "" {
				id = domain.RandomID()
				rec["_id"] = id
			}
			rows = append(rows, rec)
			resp.Result = append(resp.Result, domain.CloneMap(rec))
		}
	case domain.ActionUpdate:
		for _, patch := range req.Updates {
			id, _ := patch["_id"].(string)
			idx := -1
			var row map[string]any
			for i, raw := range rows {
				if m, ok := raw.(map[string]any); ok && m["_id"] == id {
					idx, row = i, m
					break
				}
			}
			if idx < 0 {
				resp.Error = fmt.Sprintf("no %s with id %s in %s %s", req.Type, id, req.ParentType, req.ParentID)
				return
			}
			changes := domain.CloneMap(patch)
			delete(changes, "_id")
			merged := domain.MergeObject(row, changes, !opts.NoRecursive)
			rows[idx] = merged
			resp.Result = append(resp.Result, domain.CloneMap(merged))
		}
	case domain.ActionDelete:
		for _, id := range req.IDs {
			for i, raw := range rows {
				if m, ok := raw.(map[string]any); ok && m["_id"] == id {
					rows = append(rows[:i], rows[i+1:]...)
					resp.Deleted = append(resp.Deleted, id)
					break
				}
			}
		}
	default:
		resp.Error = fmt.Sprintf("unknown embedded action %q", req.Action)
		return
	}
	parent[field] = rows
}

// handlePack serves compendium reads and writes against a pack's table.
func (h *Hub) handlePack(req *domain.Request, resp *domain.Response) {
	t, ok := h.packs[req.Pack]
	if !ok {
		resp.Error = fmt.Sprintf("no pack %s", req.Pack)
		return
	}
	opts := req.Options
	if opts == nil {
		opts = &domain.RequestOptions{}
	}

	switch req.Action {
	case domain.ActionGet:
		for _, rec := range t.records() {
			if matchQuery(rec, req.Query) {
				resp.Result = append(resp.Result, projectRecord(rec, opts))
			}
		}
	case domain.ActionCreate:
		for _, record := range req.Data {
			rec := domain.CloneMap(record)
			id, _ := rec["_id"].(string)
			if id == "" {
				id = domain.RandomID()
				rec["_id"] = id
			} else if _, exists := t.byID[id]; exists {
				resp.Error = fmt.Sprintf("duplicate id %s in pack %s", id, req.Pack)
				return
			}
			t.put(id, rec)
			resp.Result = append(resp.Result, domain.CloneMap(rec))
		}
	case domain.ActionUpdate:
		for _, patch := range req.Updates {
			id, _ := patch["_id"].(string)
			rec, ok := t.byID[id]
			if !ok {
				resp.Error = fmt.Sprintf("no %s with id %s in pack %s", req.Type, id, req.Pack)
				return
			}
			changes := domain.CloneMap(patch)
			delete(changes, "_id")
			merged := domain.MergeObject(rec, changes, !opts.NoRecursive)
			t.put(id, merged)
			resp.Result = append(resp.Result, domain.CloneMap(merged))
		}
	case domain.ActionDelete:
		for _, id := range req.IDs {
			if t.remove(id) {
				resp.Deleted = append(resp.Deleted, id)
			}
		}
	default:
		resp.Error = fmt.Sprintf("unknown pack action %q", req.Action)
	}
}

// matchQuery checks every query pair against the record's dotted paths.
func matchQuery(rec, query map[string]any) bool {
	for path, want := range query {
		got, ok := domain.GetDotted(rec, path)
		if !ok || !domain.ValueEqual(got, want) {
			return false
		}
	}
	return true
}

// projectRecord trims a record to index fields when requested.
func projectRecord(rec map[string]any, opts *domain.RequestOptions) map[string]any {
	if !opts.Index {
		return domain.CloneMap(rec)
	}
	out := make(map[string]any, len(opts.IndexFields))
	for _, f := range opts.IndexFields {
		if v, ok := domain.GetDotted(rec, f); ok {
			domain.SetDotted(out, f, domain.DeepClone(v))
		}
	}
	if _, ok := out["_id"]; !ok {
		out["_id"] = rec["_id"]
	}
	return out
}

func cloneResponse(resp *domain.Response) *domain.Response {
	cp := *resp
	cp.Result = make([]map[string]any, len(resp.Result))
	for i, rec := range resp.Result {
		cp.Result[i] = domain.CloneMap(rec)
	}
	cp.Deleted = append([]string(nil), resp.Deleted...)
	return &cp
}
