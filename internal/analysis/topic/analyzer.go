package topic

import (
	"sort"
	"strings"
)

// Label 表示消息的主题分类。
type Label string

const (
	General      Label = "general"
	BusinessIdea Label = "business_idea"
)

// Decision 给出主题识别结果以及命中的关键词。
type Decision struct {
	Label   Label
	Score   int
	Matches []string
}

var keywordBuckets = map[Label][]string{
	BusinessIdea: {"idea", "startup", "business"},
}

// Analyze classifies text by case-insensitive keyword containment.
// The label with the most keyword hits wins; no hit yields General.
func Analyze(text string) Decision {
	normalized := strings.ToLower(text)

	best := Decision{Label: General}
	labels := make([]string, 0, len(keywordBuckets))
	for label := range keywordBuckets {
		labels = append(labels, string(label))
	}
	sort.Strings(labels)

	for _, raw := range labels {
		label := Label(raw)
		var matches []string
		for _, keyword := range keywordBuckets[label] {
			if strings.Contains(normalized, keyword) {
				matches = append(matches, keyword)
			}
		}
		if len(matches) > best.Score {
			best = Decision{Label: label, Score: len(matches), Matches: matches}
		}
	}

	return best
}
