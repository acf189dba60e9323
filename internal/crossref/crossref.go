package crossref

import (
	"regexp"
	"strconv"
)

// issueRefPattern matches issue references such as #123. A reference
// must not follow a word character, '&' or '/', which excludes HTML
// entities and URL fragments.
var issueRefPattern = regexp.MustCompile(`(?:^|[^\w&/])#(\d+)\b`)

// ExtractIssueIDs extracts all issue ids referenced as #N from text.
// Returns a deduplicated list preserving the order of first occurrence.
func ExtractIssueIDs(text string) []int {
	matches := issueRefPattern.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return nil
	}

	seen := make(map[int]bool)
	var result []int
	for _, m := range matches {
		id, err := strconv.Atoi(m[1])
		if err != nil || id <= 0 || seen[id] {
			continue
		}
		seen[id] = true
		result = append(result, id)
	}
	return result
}

// MatchReferences extracts issue ids from a message subject and body,
// leaving out ids present in exclude (e.g. the issue itself).
func MatchReferences(
	subject string,
	body string,
	exclude map[int]bool,
) []int {
	ids := ExtractIssueIDs(subject + "\n" + body)

	if len(exclude) == 0 {
		return ids
	}

	var filtered []int
	for _, id := range ids {
		if !exclude[id] {
			filtered = append(filtered, id)
		}
	}
	return filtered
}
