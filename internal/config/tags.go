package config

import "github.com/ator-dev/mark-my-search/internal/flow"

// TagSet builds the segmenter's tag classification from config,
// defaulting to the browser-like lists when unset.
func (c Config) TagSet() flow.TagSet {
	if len(c.RejectTags) == 0 && len(c.FlowTags) == 0 && len(c.UnhighlightableTags) == 0 {
		return flow.DefaultTagSet()
	}
	reject, inline, unhighlightable := c.RejectTags, c.FlowTags, c.UnhighlightableTags
	if len(reject) == 0 {
		reject = flow.DefaultRejectTags()
	}
	if len(inline) == 0 {
		inline = flow.DefaultFlowTags()
	}
	if len(unhighlightable) == 0 {
		unhighlightable = flow.DefaultUnhighlightableTags()
	}
	return flow.NewTagSet(reject, inline, unhighlightable)
}
