package pipeline

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/sells-group/bookgen/internal/model"
)

// This file coerces whatever shape the model returned into the canonical
// stage records. Coercion rules, applied uniformly:
//   - near-synonym keys are remapped ("goals_outcomes" → goals)
//   - a string where a list was expected becomes a one-element list
//   - an absent list field becomes an empty list, never nil
//   - unknown extra keys are ignored
// Every normalizer is idempotent: feeding its own output back in yields an
// identical record.

// normalizeSpec coerces a decoded JSON value into a BookSpec. A top-level
// array is treated as its first object element; anything else yields an
// empty (but fully defaulted) spec.
func normalizeSpec(v any) model.BookSpec {
	m := asObject(v)

	spec := model.BookSpec{
		Title:    strings.TrimSpace(asString(m["title"])),
		Subtitle: strings.TrimSpace(asString(m["subtitle"])),
		Tone:     strings.TrimSpace(asString(m["tone"])),
	}
	spec.Audience = coerceAudience(m["audience"])
	spec.Goals = coerceGoals(m)
	spec.Constraints = coerceConstraints(m["constraints"])
	return spec
}

// coerceAudience accepts a string, a list, or a {primary, secondary} object.
func coerceAudience(v any) []string {
	switch a := v.(type) {
	case nil:
		return []string{}
	case string:
		return oneOrEmpty(a)
	case []any:
		return asStringList(a)
	case map[string]any:
		out := []string{}
		if p := strings.TrimSpace(asString(a["primary"])); p != "" {
			out = append(out, "Primary: "+p)
		}
		if s := strings.TrimSpace(asString(a["secondary"])); s != "" {
			out = append(out, "Secondary: "+s)
		}
		return out
	default:
		return oneOrEmpty(fmt.Sprintf("%v", a))
	}
}

// coerceGoals prefers "goals", then the near-synonyms models drift to.
func coerceGoals(m map[string]any) []string {
	if goals := asStringList(m["goals"]); len(goals) > 0 {
		return goals
	}
	// "goals_outcomes" is often a list of {goal: ...} objects.
	if raw, ok := m["goals_outcomes"].([]any); ok {
		goals := []string{}
		for _, it := range raw {
			if obj, ok := it.(map[string]any); ok {
				if g := strings.TrimSpace(asString(obj["goal"])); g != "" {
					goals = append(goals, g)
				}
			} else if s := strings.TrimSpace(asString(it)); s != "" {
				goals = append(goals, s)
			}
		}
		if len(goals) > 0 {
			return goals
		}
	}
	if objectives := asStringList(m["objectives"]); len(objectives) > 0 {
		return objectives
	}
	return []string{}
}

// coerceConstraints accepts a list of strings or of {constraint: ...} objects,
// or a bare string.
func coerceConstraints(v any) []string {
	switch c := v.(type) {
	case nil:
		return []string{}
	case string:
		return oneOrEmpty(c)
	case []any:
		out := []string{}
		for _, it := range c {
			switch item := it.(type) {
			case string:
				if s := strings.TrimSpace(item); s != "" {
					out = append(out, s)
				}
			case map[string]any:
				if s := strings.TrimSpace(asString(item["constraint"])); s != "" {
					out = append(out, s)
					continue
				}
				vals := objectValues(item)
				if len(vals) > 0 {
					out = append(out, strings.Join(vals, " - "))
				}
			}
		}
		return out
	default:
		return []string{}
	}
}

// normalizePlan coerces a decoded JSON value into a ChapterPlan, borrowing
// the number and title from the chapter's TocEntry when the model dropped
// them.
func normalizePlan(v any, entry model.TocEntry) model.ChapterPlan {
	m := asObject(v)

	plan := model.ChapterPlan{Number: entry.Number}
	if n, ok := asInt(m["number"]); ok && n > 0 {
		plan.Number = n
	}
	plan.Title = strings.TrimSpace(asString(m["title"]))
	if plan.Title == "" {
		plan.Title = entry.Title
	}
	if plan.Title == "" {
		plan.Title = fmt.Sprintf("Chapter %d", plan.Number)
	}

	plan.Objectives = asStringList(firstPresent(m, "objectives", "goals", "aims"))
	plan.KeyIdeas = asStringList(firstPresent(m, "key_ideas", "key points", "bullets"))
	plan.ImagePrompts = normalizeImagePrompts(firstPresent(m, "image_prompts", "images"))
	return plan
}

// normalizeImagePrompts accepts a string, a list of strings/objects, or a
// single object, and yields canonical {purpose, prompt} records.
func normalizeImagePrompts(v any) []model.ImagePrompt {
	out := []model.ImagePrompt{}
	switch x := v.(type) {
	case nil:
		return out
	case string:
		if s := strings.TrimSpace(x); s != "" {
			out = append(out, model.ImagePrompt{Purpose: "illustration", Prompt: s})
		}
	case []any:
		for _, it := range x {
			switch item := it.(type) {
			case string:
				if s := strings.TrimSpace(item); s != "" {
					out = append(out, model.ImagePrompt{Purpose: "illustration", Prompt: s})
				}
			case map[string]any:
				if ip, ok := imagePromptFromObject(item); ok {
					out = append(out, ip)
				}
			}
		}
	case map[string]any:
		if ip, ok := imagePromptFromObject(x); ok {
			out = append(out, ip)
		}
	}
	return out
}

func imagePromptFromObject(m map[string]any) (model.ImagePrompt, bool) {
	promptText := strings.TrimSpace(asString(firstPresent(m, "prompt", "image", "text", "caption")))
	if promptText == "" {
		return model.ImagePrompt{}, false
	}
	purpose := strings.TrimSpace(asString(firstPresent(m, "purpose", "role")))
	if purpose == "" {
		purpose = "illustration"
	}
	ip := model.ImagePrompt{Purpose: purpose, Prompt: promptText}
	if ch, ok := asInt(m["chapter"]); ok {
		ip.Chapter = ch
	}
	return ip, true
}

// --- generic coercion helpers ---

// asObject unwraps a decoded value into an object; a non-empty array falls
// back to its first object element.
func asObject(v any) map[string]any {
	switch x := v.(type) {
	case map[string]any:
		return x
	case []any:
		if len(x) > 0 {
			if m, ok := x[0].(map[string]any); ok {
				return m
			}
		}
	}
	return map[string]any{}
}

// asStringList flattens a string, a list of strings/objects, or anything
// stringable into a trimmed []string. Objects contribute their values joined
// with " - ".
func asStringList(v any) []string {
	switch x := v.(type) {
	case nil:
		return []string{}
	case string:
		return oneOrEmpty(x)
	case []any:
		out := []string{}
		for _, it := range x {
			switch item := it.(type) {
			case string:
				if s := strings.TrimSpace(item); s != "" {
					out = append(out, s)
				}
			case map[string]any:
				vals := objectValues(item)
				if len(vals) > 0 {
					out = append(out, strings.Join(vals, " - "))
				}
			default:
				if s := strings.TrimSpace(fmt.Sprintf("%v", item)); s != "" {
					out = append(out, s)
				}
			}
		}
		return out
	default:
		return oneOrEmpty(fmt.Sprintf("%v", x))
	}
}

// objectValues returns an object's non-empty values in key order, so output
// is deterministic.
func objectValues(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	vals := []string{}
	for _, k := range keys {
		if s := strings.TrimSpace(asString(m[k])); s != "" {
			vals = append(vals, s)
		}
	}
	return vals
}

func firstPresent(m map[string]any, keys ...string) any {
	for _, k := range keys {
		if v, ok := m[k]; ok && v != nil {
			return v
		}
	}
	return nil
}

func oneOrEmpty(s string) []string {
	s = strings.TrimSpace(s)
	if s == "" {
		return []string{}
	}
	return []string{s}
}

func asString(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(s)
	default:
		return ""
	}
}

func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case float64:
		return int(n), true
	case int:
		return n, true
	case string:
		if i, err := strconv.Atoi(strings.TrimSpace(n)); err == nil {
			return i, true
		}
	}
	return 0, false
}
