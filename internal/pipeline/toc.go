package pipeline

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/sells-group/bookgen/internal/model"
)

// Numbered-line shapes the heuristic parser accepts:
//   "1. Title", "Chapter 3: Title", "2) Title", "4 - Title"
var tocLineRE = regexp.MustCompile(`(?i)^(?:chapter\s*)?(\d+)\s*[.):-]*\s+(.+)$`)

var titleCaser = cases.Title(language.English)

// tocEntriesFromAny coerces a decoded TOC payload into sanitized entries.
// The payload may be a bare array or an object wrapping the array under a
// well-known key. Entries without a usable title are dropped; missing
// numbers are filled positionally and missing page targets get the default.
func tocEntriesFromAny(v any, defaultPages int) []model.TocEntry {
	items, ok := v.([]any)
	if !ok {
		if m, isMap := v.(map[string]any); isMap {
			for _, key := range []string{"toc", "chapters", "table_of_contents", "items"} {
				if arr, isArr := m[key].([]any); isArr {
					items = arr
					break
				}
			}
		}
	}

	entries := []model.TocEntry{}
	for i, it := range items {
		m, isMap := it.(map[string]any)
		if !isMap {
			continue
		}
		title := strings.TrimSpace(asString(firstPresent(m, "title", "name", "chapter_title")))
		if title == "" {
			continue
		}
		entry := model.TocEntry{Number: i + 1, Title: title, TargetPages: defaultPages}
		if n, ok := asInt(m["number"]); ok && n > 0 {
			entry.Number = n
		}
		if p, ok := asInt(firstPresent(m, "target_pages", "pages", "page_count")); ok && p > 0 {
			entry.TargetPages = p
		}
		entries = append(entries, entry)
	}
	return entries
}

// heuristicTOC scrapes numbered chapter lines out of free-form model text.
// Later lines with an already-seen number are ignored, so a restated list
// does not double the TOC.
func heuristicTOC(raw string, defaultPages int) []model.TocEntry {
	seen := map[int]bool{}
	entries := []model.TocEntry{}
	for _, line := range strings.Split(raw, "\n") {
		m := tocLineRE.FindStringSubmatch(strings.TrimSpace(line))
		if m == nil {
			continue
		}
		num, ok := asInt(m[1])
		if !ok || num <= 0 || seen[num] {
			continue
		}
		title := strings.Trim(strings.TrimSpace(m[2]), `"*`)
		if title == "" {
			continue
		}
		if title == strings.ToUpper(title) && len(title) > 3 {
			title = titleCaser.String(strings.ToLower(title))
		}
		seen[num] = true
		entries = append(entries, model.TocEntry{Number: num, Title: title, TargetPages: defaultPages})
	}
	return entries
}

// synthesizeTOC is the ladder's floor: a generic n-chapter arc used when
// neither structured parsing nor line scraping produced anything.
func synthesizeTOC(problem string, n, defaultPages int) []model.TocEntry {
	topic := strings.TrimSpace(problem)
	if topic == "" {
		topic = "the subject"
	}
	arc := []string{
		"Introduction",
		"Background and Context",
		"Core Concepts",
		"Deep Dive",
		"Practical Applications",
		"Case Studies",
		"Common Pitfalls",
		"Advanced Topics",
		"Putting It Together",
		"Conclusion and Next Steps",
	}
	entries := make([]model.TocEntry, 0, n)
	for i := 0; i < n; i++ {
		title := arc[i%len(arc)]
		if i == 0 {
			title = fmt.Sprintf("Introduction to %s", topic)
		}
		entries = append(entries, model.TocEntry{Number: i + 1, Title: title, TargetPages: defaultPages})
	}
	return entries
}

// padEntries appends generated chapters until the TOC has at least min
// entries. Existing entries are never dropped, so a long TOC passes through
// untouched.
func padEntries(entries []model.TocEntry, min, defaultPages int) []model.TocEntry {
	for i := len(entries); i < min; i++ {
		entries = append(entries, model.TocEntry{
			Number:      i + 1,
			Title:       fmt.Sprintf("Additional Chapter %d", i+1),
			TargetPages: defaultPages,
		})
	}
	return entries
}

// renumberEntries sorts by the model-assigned numbers (ties keep input
// order) and reassigns a dense 1..N numbering.
func renumberEntries(entries []model.TocEntry) []model.TocEntry {
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Number < entries[j].Number
	})
	for i := range entries {
		entries[i].Number = i + 1
	}
	return entries
}

// rebalancePages rescales per-chapter page targets so they sum exactly to
// total. Each chapter keeps at least one page; after proportional scaling
// any surplus goes to the last chapter and any deficit is walked off the
// back of the book, never pushing a chapter below one page.
func rebalancePages(entries []model.TocEntry, total int) []model.TocEntry {
	if len(entries) == 0 || total <= 0 {
		return entries
	}
	sum := 0
	for _, e := range entries {
		if e.TargetPages > 0 {
			sum += e.TargetPages
		} else {
			sum++
		}
	}
	scaled := make([]int, len(entries))
	scaledSum := 0
	for i, e := range entries {
		pages := e.TargetPages
		if pages <= 0 {
			pages = 1
		}
		s := (pages*total + sum/2) / sum
		if s < 1 {
			s = 1
		}
		scaled[i] = s
		scaledSum += s
	}

	diff := total - scaledSum
	if diff > 0 {
		scaled[len(scaled)-1] += diff
	} else if diff < 0 {
		for i := len(scaled) - 1; i >= 0 && diff < 0; i-- {
			take := -diff
			if room := scaled[i] - 1; take > room {
				take = room
			}
			scaled[i] -= take
			diff += take
		}
	}

	for i := range entries {
		entries[i].TargetPages = scaled[i]
	}
	return entries
}
