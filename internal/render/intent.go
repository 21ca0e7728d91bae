package render

// IntentKind tags a drawing instruction
type IntentKind string

const (
	IntentRedraw       IntentKind = "redraw"
	IntentAddRegion    IntentKind = "add_region"
	IntentRemoveRegion IntentKind = "remove_region"
	IntentUpdateRegion IntentKind = "update_region"
	IntentAddAnchor    IntentKind = "add_anchor"
	IntentRemoveAnchor IntentKind = "remove_anchor"
	IntentMoveAnchor   IntentKind = "move_anchor"
)

// Intent is one instruction for the renderer
type Intent struct {
	Kind   IntentKind `json:"kind"`
	Region *Region    `json:"region,omitempty"`
	Anchor *Anchor    `json:"anchor,omitempty"`
	Scene  *Scene     `json:"scene,omitempty"`
}

// Redraw replaces everything on the track with scene
func Redraw(scene Scene) []Intent {
	s := scene
	return []Intent{{Kind: IntentRedraw, Scene: &s}}
}

// Diff returns the intents turning old into next. Removals come first, then
// additions and updates in the order of next.
func Diff(old, next Scene) []Intent {
	var intents []Intent

	oldRegions := make(map[string]Region, len(old.Regions))
	for _, r := range old.Regions {
		oldRegions[r.ID] = r
	}
	nextRegions := make(map[string]bool, len(next.Regions))
	for _, r := range next.Regions {
		nextRegions[r.ID] = true
	}

	oldAnchors := make(map[string]Anchor, len(old.Anchors))
	for _, a := range old.Anchors {
		oldAnchors[a.ID] = a
	}
	nextAnchors := make(map[string]bool, len(next.Anchors))
	for _, a := range next.Anchors {
		nextAnchors[a.ID] = true
	}

	for _, r := range old.Regions {
		if !nextRegions[r.ID] {
			removed := r
			intents = append(intents, Intent{Kind: IntentRemoveRegion, Region: &removed})
		}
	}
	for _, a := range old.Anchors {
		if !nextAnchors[a.ID] {
			removed := a
			intents = append(intents, Intent{Kind: IntentRemoveAnchor, Anchor: &removed})
		}
	}

	for _, r := range next.Regions {
		region := r
		prev, ok := oldRegions[r.ID]
		switch {
		case !ok:
			intents = append(intents, Intent{Kind: IntentAddRegion, Region: &region})
		case prev != r:
			intents = append(intents, Intent{Kind: IntentUpdateRegion, Region: &region})
		}
	}
	for _, a := range next.Anchors {
		anchor := a
		prev, ok := oldAnchors[a.ID]
		switch {
		case !ok:
			intents = append(intents, Intent{Kind: IntentAddAnchor, Anchor: &anchor})
		case prev.Position != a.Position:
			intents = append(intents, Intent{Kind: IntentMoveAnchor, Anchor: &anchor})
		}
	}

	return intents
}
