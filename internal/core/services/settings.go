package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"

	"github.com/hearthvtt/hearth-cli/internal/core/domain"
	"github.com/hearthvtt/hearth-cli/internal/core/hooks"
	"github.com/hearthvtt/hearth-cli/internal/core/ports/driven"
	"github.com/hearthvtt/hearth-cli/internal/core/ports/driving"
	"github.com/hearthvtt/hearth-cli/internal/logger"
)

// Setting scopes.
const (
	// ScopeClient settings live on this machine only.
	ScopeClient = "client"

	// ScopeWorld settings are Setting documents, replicated to every
	// client through the CRUD pipeline.
	ScopeWorld = "world"
)

// Coercer normalizes a stored or proposed value into the setting's declared
// type. nil passes through untouched: null is a legal stored value for any
// setting.
type Coercer func(v any) (any, error)

// NumberSetting coerces to float64, accepting numeric strings.
func NumberSetting(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch t := v.(type) {
	case float64:
		return t, nil
	case float32:
		return float64(t), nil
	case int:
		return float64(t), nil
	case int64:
		return float64(t), nil
	case json.Number:
		return t.Float64()
	case string:
		n, err := strconv.ParseFloat(t, 64)
		if err != nil {
			return nil, fmt.Errorf("cannot coerce %q to a number", t)
		}
		return n, nil
	case bool:
		if t {
			return 1.0, nil
		}
		return 0.0, nil
	default:
		return nil, fmt.Errorf("cannot coerce %T to a number", v)
	}
}

// BooleanSetting coerces to bool, accepting "true"/"false" and numbers.
func BooleanSetting(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch t := v.(type) {
	case bool:
		return t, nil
	case string:
		b, err := strconv.ParseBool(t)
		if err != nil {
			return nil, fmt.Errorf("cannot coerce %q to a boolean", t)
		}
		return b, nil
	case float64:
		return t != 0, nil
	case int:
		return t != 0, nil
	default:
		return nil, fmt.Errorf("cannot coerce %T to a boolean", v)
	}
}

// StringSetting coerces to string.
func StringSetting(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch t := v.(type) {
	case string:
		return t, nil
	default:
		return fmt.Sprintf("%v", t), nil
	}
}

// ObjectSetting accepts plain objects only.
func ObjectSetting(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	if m, ok := v.(map[string]any); ok {
		return m, nil
	}
	return nil, fmt.Errorf("cannot coerce %T to an object", v)
}

// SettingConfig declares one registered setting.
type SettingConfig struct {
	// Namespace and Key form the setting's identity, "namespace.key".
	Namespace string
	Key       string

	// Name and Hint label the setting for configuration UIs.
	Name string
	Hint string

	// Scope is ScopeClient or ScopeWorld.
	Scope string

	// Type coerces stored and proposed values. Defaults to identity.
	Type Coercer

	// Default is returned when no value is stored.
	Default any

	// Choices, when non-empty, restricts the value to the listed options.
	Choices []any

	// Range, when set, bounds a numeric setting inclusively.
	Range *SettingRange

	// OnChange runs after a new value is applied, locally or replicated.
	OnChange func(value any)

	// RequiresReload marks settings whose change only takes effect after
	// the client reloads.
	RequiresReload bool
}

// SettingRange bounds a numeric setting, both ends inclusive.
type SettingRange struct {
	Min float64
	Max float64
}

func (c *SettingConfig) id() string {
	return c.Namespace + "." + c.Key
}

func (c *SettingConfig) coerce(v any) (any, error) {
	if c.Type == nil {
		return v, nil
	}
	return c.Type(v)
}

// Settings is the registered setting store: client scope backed by the
// injected ClientSettingStore, world scope backed by Setting documents.
type Settings struct {
	runtime    *Runtime
	store      driven.ClientSettingStore
	registered map[string]*SettingConfig
}

// Ensure Settings implements the driving port.
var _ driving.SettingsService = (*Settings)(nil)

func newSettings(r *Runtime, store driven.ClientSettingStore) *Settings {
	s := &Settings{
		runtime:    r,
		store:      store,
		registered: make(map[string]*SettingConfig),
	}
	// replicated world settings fire onChange on every client
	replicated := func(ev *hooks.Event) bool {
		s.onSettingDocument(ev.Document)
		return true
	}
	r.hooks.On(hooks.Name(domain.ActionCreate, "Setting"), replicated)
	r.hooks.On(hooks.Name(domain.ActionUpdate, "Setting"), replicated)
	return s
}

// Register declares a setting. Both scope and identity are mandatory;
// re-registering an id replaces the declaration.
func (s *Settings) Register(cfg SettingConfig) error {
	if cfg.Namespace == "" || cfg.Key == "" {
		return fmt.Errorf("setting requires a namespace and a key")
	}
	if cfg.Scope != ScopeClient && cfg.Scope != ScopeWorld {
		return fmt.Errorf("setting %s.%s has unknown scope %q", cfg.Namespace, cfg.Key, cfg.Scope)
	}
	s.runtime.mu.Lock()
	s.registered[cfg.id()] = &cfg
	s.runtime.mu.Unlock()
	return nil
}

// Keys lists registered setting ids, sorted.
func (s *Settings) Keys() []string {
	s.runtime.mu.Lock()
	defer s.runtime.mu.Unlock()
	keys := make([]string, 0, len(s.registered))
	for k := range s.registered {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Get returns the current value of a registered setting, coerced to its
// declared type. An unset setting returns a copy of its default.
func (s *Settings) Get(namespace, key string) (any, error) {
	cfg, err := s.lookup(namespace, key)
	if err != nil {
		return nil, err
	}

	var raw string
	var found bool
	switch cfg.Scope {
	case ScopeClient:
		raw, found, err = s.store.Get(cfg.id())
		if err != nil {
			return nil, fmt.Errorf("reading setting %s: %w", cfg.id(), err)
		}
	case ScopeWorld:
		raw, found, err = s.worldValue(cfg.id())
		if err != nil {
			return nil, err
		}
	}
	if !found {
		return domain.DeepClone(cfg.Default), nil
	}

	var decoded any
	if err := json.Unmarshal([]byte(raw), &decoded); err != nil {
		logger.Warn("setting %s holds malformed JSON; using default", cfg.id())
		return domain.DeepClone(cfg.Default), nil
	}
	value, err := cfg.coerce(decoded)
	if err != nil {
		return nil, fmt.Errorf("setting %s: %w", cfg.id(), err)
	}
	return value, nil
}

// Set validates, coerces, and persists a new value, then fires onChange.
// World-scope writes travel the CRUD pipeline; their onChange fires when the
// acknowledged Setting document applies, on every client.
func (s *Settings) Set(namespace, key string, value any) (any, error) {
	cfg, err := s.lookup(namespace, key)
	if err != nil {
		return nil, err
	}
	coerced, err := cfg.coerce(value)
	if err != nil {
		return nil, fmt.Errorf("setting %s: %w", cfg.id(), err)
	}
	if coerced != nil && len(cfg.Choices) > 0 {
		ok := false
		for _, choice := range cfg.Choices {
			if domain.ValueEqual(coerced, choice) {
				ok = true
				break
			}
		}
		if !ok {
			return nil, fmt.Errorf("setting %s rejects value %v: not among its choices", cfg.id(), coerced)
		}
	}
	if coerced != nil && cfg.Range != nil {
		n, ok := coerced.(float64)
		if !ok {
			return nil, fmt.Errorf("setting %s declares a range but holds a %T", cfg.id(), coerced)
		}
		if n < cfg.Range.Min || n > cfg.Range.Max {
			return nil, fmt.Errorf("setting %s rejects value %v: outside [%v, %v]", cfg.id(), n, cfg.Range.Min, cfg.Range.Max)
		}
	}
	encoded, err := json.Marshal(coerced)
	if err != nil {
		return nil, fmt.Errorf("setting %s: %w", cfg.id(), err)
	}

	switch cfg.Scope {
	case ScopeClient:
		if err := s.store.Set(cfg.id(), string(encoded)); err != nil {
			return nil, fmt.Errorf("writing setting %s: %w", cfg.id(), err)
		}
		s.changed(cfg, coerced)
	case ScopeWorld:
		if err := s.setWorld(cfg, string(encoded)); err != nil {
			return nil, err
		}
	}
	return coerced, nil
}

func (s *Settings) lookup(namespace, key string) (*SettingConfig, error) {
	s.runtime.mu.Lock()
	defer s.runtime.mu.Unlock()
	cfg, ok := s.registered[namespace+"."+key]
	if !ok {
		return nil, fmt.Errorf("%w: %s.%s", domain.ErrSettingUnregistered, namespace, key)
	}
	return cfg, nil
}

// worldValue reads the Setting document holding id, requiring readiness.
func (s *Settings) worldValue(id string) (string, bool, error) {
	if !s.runtime.Ready() {
		return "", false, fmt.Errorf("%w: world settings are unavailable before the world loads", domain.ErrNotReady)
	}
	doc, ok := s.settingDocument(id)
	if !ok {
		return "", false, nil
	}
	raw, _ := doc.Get("value")
	str, _ := raw.(string)
	return str, true, nil
}

// setWorld creates or updates the Setting document through the pipeline.
func (s *Settings) setWorld(cfg *SettingConfig, encoded string) error {
	if !s.runtime.Ready() {
		return fmt.Errorf("%w: world settings are unavailable before the world loads", domain.ErrNotReady)
	}
	ctx := context.Background()
	if doc, ok := s.settingDocument(cfg.id()); ok {
		_, err := s.runtime.Update(ctx, "Setting", []map[string]any{{
			"_id":   doc.ID(),
			"value": encoded,
		}}, nil)
		return err
	}
	_, err := s.runtime.Create(ctx, "Setting", []map[string]any{{
		"key":   cfg.id(),
		"value": encoded,
	}}, nil)
	return err
}

func (s *Settings) settingDocument(id string) (*domain.Document, bool) {
	coll, err := s.runtime.Collection("Setting")
	if err != nil {
		return nil, false
	}
	s.runtime.mu.Lock()
	defer s.runtime.mu.Unlock()
	for _, doc := range coll.Contents() {
		if k, _ := doc.Get("key"); k == id {
			return doc, true
		}
	}
	return nil, false
}

// onSettingDocument routes an applied Setting document to its registration's
// onChange.
func (s *Settings) onSettingDocument(doc *domain.Document) {
	if doc == nil {
		return
	}
	raw, _ := doc.Get("key")
	id, _ := raw.(string)
	s.runtime.mu.Lock()
	cfg, ok := s.registered[id]
	s.runtime.mu.Unlock()
	if !ok {
		return
	}
	rawValue, _ := doc.Get("value")
	encoded, _ := rawValue.(string)
	var decoded any
	if err := json.Unmarshal([]byte(encoded), &decoded); err != nil {
		logger.Warn("setting %s holds malformed JSON; onChange skipped", id)
		return
	}
	value, err := cfg.coerce(decoded)
	if err != nil {
		logger.Warn("setting %s: %v", id, err)
		return
	}
	s.changed(cfg, value)
}

// changed fires onChange and flags a pending reload when required.
func (s *Settings) changed(cfg *SettingConfig, value any) {
	if cfg.OnChange != nil {
		cfg.OnChange(value)
	}
	if cfg.RequiresReload {
		logger.Info("setting %s changed; reload required to take effect", cfg.id())
		s.runtime.hooks.CallAll(&hooks.Event{Name: "reloadRequired", Extra: cfg.id()})
	}
}

func (s *Settings) close() error {
	return s.store.Close()
}
