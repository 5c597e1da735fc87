package flow

import "strings"

// TagSet classifies element tags for segmentation. Reject subtrees are
// never searched; Inline ("flow") tags let text continue across their
// boundary; anything else is a block boundary. Unhighlightable tags
// are unsafe hosts for overlay insertion, so box grouping climbs out
// of them.
type TagSet struct {
	reject          map[string]struct{}
	inline          map[string]struct{}
	unhighlightable map[string]struct{}
}

// NewTagSet builds a classification from tag name lists. Names are
// matched case-insensitively.
func NewTagSet(reject, inline, unhighlightable []string) TagSet {
	return TagSet{
		reject:          toSet(reject),
		inline:          toSet(inline),
		unhighlightable: toSet(unhighlightable),
	}
}

// DefaultRejectTags lists subtrees never searched.
func DefaultRejectTags() []string {
	return []string{"meta", "style", "script", "noscript", "title", "textarea", "svg", "template", "iframe", "object", "head", "base", "link"}
}

// DefaultFlowTags lists inline tags text flows across.
func DefaultFlowTags() []string {
	return []string{"b", "i", "u", "s", "strong", "em", "mark", "small", "sub", "sup", "a", "q", "wbr", "ins", "del", "code", "abbr", "span", "label", "time", "bdi", "bdo", "mms-h"}
}

// DefaultUnhighlightableTags lists unsafe overlay hosts.
func DefaultUnhighlightableTags() []string {
	return []string{"b", "i", "u", "s", "strong", "em", "mark", "small", "sub", "sup", "a", "q", "wbr", "ins", "del", "code", "abbr", "span", "label", "time", "mms-h"}
}

// DefaultTagSet mirrors the usual browser classification.
func DefaultTagSet() TagSet {
	return NewTagSet(DefaultRejectTags(), DefaultFlowTags(), DefaultUnhighlightableTags())
}

// Rejected reports whether a subtree rooted at tag must be skipped.
func (t TagSet) Rejected(tag string) bool {
	_, ok := t.reject[strings.ToLower(tag)]
	return ok
}

// Inline reports whether text flows across this tag's boundary.
func (t TagSet) Inline(tag string) bool {
	_, ok := t.inline[strings.ToLower(tag)]
	return ok
}

// Unhighlightable reports whether overlays must not be attached inside
// this tag.
func (t TagSet) Unhighlightable(tag string) bool {
	_, ok := t.unhighlightable[strings.ToLower(tag)]
	return ok
}

func toSet(tags []string) map[string]struct{} {
	set := make(map[string]struct{}, len(tags))
	for _, tag := range tags {
		set[strings.ToLower(tag)] = struct{}{}
	}
	return set
}
