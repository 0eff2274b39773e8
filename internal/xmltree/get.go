package xmltree

import "strings"

// Get evaluates a slash-separated path filter against t and returns the
// set of matching subtree roots as a freshly allocated fragment Tree
// whose top-level children are copies of the matches, in document
// order. An empty or "/" path matches the whole tree. A path that
// matches nothing returns an empty (non-nil) Tree — spec §4.A: "if xpath
// matches nothing, returns an empty result (not an error)".
//
// Path syntax supports plain element steps ("interfaces/interface") and
// single-valued key predicates ("interface[name='eth0']"), mirroring
// the subset of XPath etree-based filters commonly exercise.
func Get(t *Tree, xpath string) *Tree {
	out := New()
	xpath = strings.Trim(xpath, "/")
	if xpath == "" {
		for _, c := range t.Children(t.Root()) {
			copySubtreeInto(out, out.Root(), t, c)
		}
		return out
	}
	matches := evalPath(t, []ID{t.Root()}, strings.Split(xpath, "/"))
	for _, m := range matches {
		copySubtreeInto(out, out.Root(), t, m)
	}
	return out
}

type pathStep struct {
	name  string
	preds map[string]string
}

func parseStep(s string) pathStep {
	step := pathStep{preds: map[string]string{}}
	for {
		open := strings.IndexByte(s, '[')
		if open < 0 {
			if step.name == "" {
				step.name = s
			}
			break
		}
		if step.name == "" {
			step.name = s[:open]
		}
		close := strings.IndexByte(s[open:], ']')
		if close < 0 {
			break
		}
		close += open
		pred := s[open+1 : close]
		if eq := strings.IndexByte(pred, '='); eq >= 0 {
			key := strings.TrimSpace(pred[:eq])
			val := strings.Trim(strings.TrimSpace(pred[eq+1:]), "'\"")
			step.preds[key] = val
		}
		s = s[close+1:]
	}
	return step
}

func evalPath(t *Tree, cur []ID, steps []string) []ID {
	if len(steps) == 0 {
		return cur
	}
	step := parseStep(steps[0])
	local := step.name
	if i := strings.IndexByte(local, ':'); i >= 0 {
		local = local[i+1:]
	}
	var next []ID
	for _, parent := range cur {
		for _, c := range t.Children(parent) {
			n := t.Node(c)
			if n.Local != local {
				continue
			}
			if !matchesPredicates(t, c, step.preds) {
				continue
			}
			next = append(next, c)
		}
	}
	return evalPath(t, next, steps[1:])
}

func matchesPredicates(t *Tree, id ID, preds map[string]string) bool {
	for k, v := range preds {
		kid := t.FindChildByQName(id, "", k)
		if kid == 0 || t.Node(kid).Body != v {
			return false
		}
	}
	return true
}
