package reconcile

import "strings"

// IDNormalizer generates live-feed identifier candidates for a static trip
// identifier. Vendor-specific quirks live here as configuration; the
// matcher just walks the candidates in order.
type IDNormalizer interface {
	Candidates(tripID string) []string
}

// NormalizerFunc adapts a plain function to IDNormalizer.
type NormalizerFunc func(tripID string) []string

func (f NormalizerFunc) Candidates(tripID string) []string { return f(tripID) }

// DirectionalPrefixes handles feeds that decorate trip identifiers with a
// directional token such as "0#" or "1#". Candidates are generated both
// ways: a decorated static id yields the bare id and the alternate
// decorations, a bare static id yields each decorated variant.
func DirectionalPrefixes(prefixes ...string) NormalizerFunc {
	return func(tripID string) []string {
		var out []string
		seen := map[string]struct{}{tripID: {}}
		add := func(id string) {
			if _, dup := seen[id]; !dup {
				seen[id] = struct{}{}
				out = append(out, id)
			}
		}
		bare := tripID
		stripped := false
		for _, p := range prefixes {
			if p != "" && strings.HasPrefix(tripID, p) {
				bare = strings.TrimPrefix(tripID, p)
				stripped = true
				break
			}
		}
		if stripped {
			add(bare)
		}
		for _, p := range prefixes {
			if p != "" {
				add(p + bare)
			}
		}
		return out
	}
}

// Chain tries each normalizer in order, deduplicating candidates.
type Chain []IDNormalizer

func (c Chain) Candidates(tripID string) []string {
	var out []string
	seen := map[string]struct{}{}
	for _, n := range c {
		for _, cand := range n.Candidates(tripID) {
			if _, dup := seen[cand]; !dup {
				seen[cand] = struct{}{}
				out = append(out, cand)
			}
		}
	}
	return out
}
