package domain

// PerceptionFlag is one pending kind of canvas recomputation. Flags are a
// bitfield so a whole frame's worth of requests coalesces into one word.
type PerceptionFlag uint32

// Perception flags.
const (
	// PerceptionInitializeLighting rebuilds lighting from scratch.
	PerceptionInitializeLighting PerceptionFlag = 1 << iota

	// PerceptionInitializeVision rebuilds vision sources from scratch.
	PerceptionInitializeVision

	// PerceptionInitializeSounds rebuilds ambient sounds from scratch.
	PerceptionInitializeSounds

	// PerceptionRefreshLighting re-renders the lighting layer.
	PerceptionRefreshLighting

	// PerceptionRefreshLightSources recomputes light source polygons.
	PerceptionRefreshLightSources

	// PerceptionRefreshVision re-renders the vision layer.
	PerceptionRefreshVision

	// PerceptionRefreshVisionSources recomputes vision source polygons.
	PerceptionRefreshVisionSources

	// PerceptionRefreshSounds re-evaluates ambient sound audibility.
	PerceptionRefreshSounds

	// PerceptionRefreshTiles re-evaluates tile occlusion.
	PerceptionRefreshTiles

	// PerceptionRefreshPrimary re-renders the primary canvas group.
	PerceptionRefreshPrimary

	// PerceptionForceUpdateFog commits the fog texture even if vision has
	// not changed.
	PerceptionForceUpdateFog
)

// Has reports whether all bits of other are set.
func (f PerceptionFlag) Has(other PerceptionFlag) bool {
	return f&other == other
}

// perceptionPropagation declares, per flag, the flags it implies and the
// sibling flags it turns off. The tables are static; Propagate applies them
// transitively.
type perceptionPropagation struct {
	propagate PerceptionFlag
	reset     PerceptionFlag
}

var perceptionTable = map[PerceptionFlag]perceptionPropagation{
	PerceptionInitializeLighting: {propagate: PerceptionRefreshLighting},
	PerceptionInitializeVision: {
		propagate: PerceptionRefreshVision | PerceptionRefreshTiles |
			PerceptionRefreshLighting | PerceptionRefreshLightSources | PerceptionRefreshPrimary,
		// a full vision rebuild recomputes fog wholesale; the incremental
		// fog commit would be redundant work
		reset: PerceptionForceUpdateFog,
	},
	PerceptionInitializeSounds:  {propagate: PerceptionRefreshSounds},
	PerceptionRefreshLighting:   {propagate: PerceptionRefreshLightSources},
	PerceptionRefreshVision:     {propagate: PerceptionRefreshVisionSources},
	PerceptionRefreshTiles:      {propagate: PerceptionRefreshLightSources | PerceptionRefreshVisionSources},
	PerceptionRefreshLightSources: {},
	PerceptionRefreshVisionSources: {},
	PerceptionRefreshSounds:      {},
	PerceptionRefreshPrimary:     {},
	PerceptionForceUpdateFog:     {},
}

// PropagatePerception ORs requested into pending and applies the static
// propagation tables transitively, returning the settled flag set.
func PropagatePerception(pending, requested PerceptionFlag) PerceptionFlag {
	out := pending | requested
	for {
		next := out
		for flag, rules := range perceptionTable {
			if next.Has(flag) {
				next |= rules.propagate
			}
		}
		if next == out {
			break
		}
		out = next
	}
	// resets apply after propagation settles, and only for flags the caller
	// requested directly
	for flag, rules := range perceptionTable {
		if requested.Has(flag) {
			out &^= rules.reset
		}
	}
	return out
}
