package content

import (
	"path"
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const (
	ExcerptLimit     = 150
	FastExcerptLimit = 100
	Ellipsis         = "..."
)

var (
	codeFencePattern  = regexp.MustCompile("(?s)```.*?```")
	headingPattern    = regexp.MustCompile(`(?m)^[ \t]*#.*$`)
	inlineCodePattern = regexp.MustCompile("`[^`]+`")
	boldPattern       = regexp.MustCompile(`\*\*([^*]+)\*\*`)
	linkPattern       = regexp.MustCompile(`\[([^\]]+)\]\([^)]+\)`)
	paragraphPattern  = regexp.MustCompile(`\n[ \t]*\n`)
	titlePattern      = regexp.MustCompile(`(?m)^# (.+)$`)
	hashtagPattern    = regexp.MustCompile(`(?:^|\s)#([\p{L}\p{N}_-]+)`)
	orderPrefix       = regexp.MustCompile(`^\d+-`)
)

var titleCaser = cases.Title(language.Und, cases.NoLower)

// ExtractTitle prefers the frontmatter title, then the first top-level
// heading, then a title derived from the file name.
func ExtractTitle(metadata map[string]string, body, filename string) string {
	if title := strings.TrimSpace(metadata["title"]); title != "" {
		return title
	}

	if match := titlePattern.FindStringSubmatch(body); match != nil {
		if title := strings.TrimSpace(match[1]); title != "" {
			return title
		}
	}

	return HumanizeFilename(filename)
}

func HumanizeFilename(filename string) string {
	name := path.Base(filename)
	name = strings.TrimSuffix(name, ".md")
	name = orderPrefix.ReplaceAllString(name, "")
	name = strings.NewReplacer("-", " ", "_", " ").Replace(name)
	return titleCaser.String(strings.Join(strings.Fields(name), " "))
}

// ExtractExcerpt returns the first paragraph of the body with markdown
// syntax removed, cut to limit runes.
func ExtractExcerpt(body string, limit int) string {
	cleaned := strings.ReplaceAll(body, "\r\n", "\n")
	cleaned = codeFencePattern.ReplaceAllString(cleaned, "")
	cleaned = headingPattern.ReplaceAllString(cleaned, "")
	cleaned = inlineCodePattern.ReplaceAllString(cleaned, "")
	cleaned = boldPattern.ReplaceAllString(cleaned, "$1")
	cleaned = linkPattern.ReplaceAllString(cleaned, "$1")

	var paragraph string
	for _, block := range paragraphPattern.Split(cleaned, -1) {
		if text := strings.Join(strings.Fields(block), " "); text != "" {
			paragraph = text
			break
		}
	}

	return Truncate(paragraph, limit)
}

// Truncate cuts s to limit runes and appends the ellipsis marker when cut.
func Truncate(s string, limit int) string {
	if limit <= 0 || utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return string(runes[:limit]) + Ellipsis
}

// ExtractTags unions the frontmatter tag list with inline #hashtags found
// outside code. Order of first occurrence is kept.
func ExtractTags(metadata map[string]string, body string) []string {
	seen := make(map[string]bool)
	var tags []string

	add := func(tag string) {
		tag = strings.TrimSpace(strings.TrimPrefix(tag, "#"))
		if tag == "" || seen[tag] {
			return
		}
		seen[tag] = true
		tags = append(tags, tag)
	}

	for _, tag := range splitList(metadata["tags"]) {
		add(tag)
	}

	text := codeFencePattern.ReplaceAllString(body, "")
	text = inlineCodePattern.ReplaceAllString(text, "")
	for _, match := range hashtagPattern.FindAllStringSubmatch(text, -1) {
		add(match[1])
	}

	return tags
}

// CategoryFromPath returns the first path segment. Files at the repository
// root have no category.
func CategoryFromPath(filePath string) (string, bool) {
	filePath = strings.TrimPrefix(filePath, "/")
	category, _, found := strings.Cut(filePath, "/")
	if !found || category == "" {
		return "", false
	}
	return category, true
}

func SlugFromPath(filePath string) string {
	slug := strings.TrimSuffix(strings.TrimPrefix(filePath, "/"), ".md")
	return strings.ReplaceAll(slug, "/", "-")
}

func WordCount(body string) int {
	return len(strings.Fields(body))
}
