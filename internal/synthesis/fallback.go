package synthesis

import (
	"sort"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"courseforge/internal/course"
	"courseforge/internal/metadata"
	"courseforge/internal/transcript"
)

// FallbackName identifies the outline generator in run records.
const FallbackName = "outline-fallback"

const topicsPerDay = 3

var dayTemplates = [DayCount]struct {
	title       string
	description string
}{
	{"Introduction and Overview", "Watch the video end to end and note the main themes."},
	{"Core Concepts", "Work through the foundational ideas introduced early in the video."},
	{"Deep Dive", "Revisit the most detailed sections and take structured notes."},
	{"Hands-On Practice", "Apply what the video demonstrates in a small exercise of your own."},
	{"Advanced Topics", "Focus on the harder material and the edge cases the video covers."},
	{"Review and Reinforcement", "Summarize each topic from memory, then check against the video."},
	{"Apply and Extend", "Build something that uses the material and identify what to learn next."},
}

var stopwords = map[string]struct{}{
	"the": {}, "and": {}, "for": {}, "that": {}, "this": {}, "with": {},
	"you": {}, "your": {}, "are": {}, "was": {}, "have": {}, "has": {},
	"but": {}, "not": {}, "all": {}, "can": {}, "will": {}, "what": {},
	"when": {}, "how": {}, "why": {}, "from": {}, "they": {}, "them": {},
	"there": {}, "here": {}, "about": {}, "into": {}, "just": {}, "like": {},
	"more": {}, "some": {}, "then": {}, "than": {}, "out": {}, "get": {},
	"going": {}, "really": {}, "very": {}, "because": {}, "which": {},
	"their": {}, "would": {}, "could": {}, "should": {}, "been": {},
	"also": {}, "one": {}, "two": {}, "its": {}, "were": {}, "these": {},
	"those": {}, "want": {}, "know": {}, "make": {}, "thing": {}, "things": {},
	"video": {}, "course": {}, "youtube": {},
}

// GenerateOutline builds a deterministic study plan from whatever text the
// earlier stages produced. No network, no randomness: the same inputs always
// yield the same plan.
func GenerateOutline(video metadata.Video, tr transcript.Transcript) (course.Draft, error) {
	topics := extractKeywords(video.Title+" "+video.Description+" "+tr.Text, DayCount*topicsPerDay)

	days := make([]course.Day, DayCount)
	for i := range days {
		days[i] = course.Day{
			Number:      i + 1,
			Title:       dayTemplates[i].title,
			Description: dayTemplates[i].description,
			Topics:      topicsForDay(topics, i),
		}
	}

	title := strings.TrimSpace(video.Title)
	if title == "" {
		title = "the video"
	}
	return course.Draft{
		Title:       strconv.Itoa(DayCount) + "-Day Course: " + title,
		Description: "A structured " + strconv.Itoa(DayCount) + "-day self-study plan built from \"" + title + "\".",
		Days:        days,
	}, nil
}

// topicsForDay deals keywords round-robin so every day gets a distinct slice
// of the material, padding with review topics when keywords run short.
func topicsForDay(keywords []string, day int) []string {
	topics := make([]string, 0, topicsPerDay)
	for i := day; i < len(keywords) && len(topics) < topicsPerDay; i += DayCount {
		topics = append(topics, keywords[i])
	}
	padding := []string{
		"Key takeaways from the video",
		"Terms and definitions",
		"Questions to research further",
	}
	for i := 0; len(topics) < topicsPerDay; i++ {
		topics = append(topics, padding[i%len(padding)])
	}
	return topics
}

// extractKeywords ranks words by frequency, breaking ties by first
// appearance so the output is stable.
func extractKeywords(text string, limit int) []string {
	counts := make(map[string]int)
	firstSeen := make(map[string]int)
	position := 0
	for _, raw := range strings.Fields(strings.ToLower(text)) {
		word := strings.Trim(raw, ".,!?;:\"'()[]{}")
		if len(word) < 4 {
			continue
		}
		if _, skip := stopwords[word]; skip {
			continue
		}
		if _, seen := counts[word]; !seen {
			firstSeen[word] = position
			position++
		}
		counts[word]++
	}

	words := make([]string, 0, len(counts))
	for word := range counts {
		words = append(words, word)
	}
	sort.Slice(words, func(i, j int) bool {
		if counts[words[i]] != counts[words[j]] {
			return counts[words[i]] > counts[words[j]]
		}
		return firstSeen[words[i]] < firstSeen[words[j]]
	})

	if len(words) > limit {
		words = words[:limit]
	}
	// A cases.Caser is stateful and must not be shared between goroutines, so
	// each call builds its own.
	caser := cases.Title(language.English)
	out := make([]string, len(words))
	for i, word := range words {
		out[i] = caser.String(word)
	}
	return out
}
