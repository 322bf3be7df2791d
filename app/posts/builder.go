package posts

import (
	"time"

	"github.com/aprasaks/nexus-blog/app/content"
	"github.com/aprasaks/nexus-blog/app/github"
)

const dateLayout = "2006-01-02"

// BuildPost turns a downloaded markdown file into a Post. Files without a
// category (repository root) are rejected.
func BuildPost(file github.File, raw string, excerptLimit int, now time.Time) (Post, bool) {
	category, ok := content.CategoryFromPath(file.Path)
	if !ok {
		return Post{}, false
	}

	doc := content.ParseFrontmatter(raw)

	date := doc.Get("date")
	if date == "" {
		date = now.In(time.Local).Format(dateLayout)
	}

	excerpt := doc.Get("excerpt")
	if excerpt == "" {
		excerpt = content.ExtractExcerpt(doc.Body, excerptLimit)
	}

	tags := content.ExtractTags(doc.Metadata, doc.Body)
	if tags == nil {
		tags = []string{}
	}

	return Post{
		ID:        file.SHA,
		Title:     content.ExtractTitle(doc.Metadata, doc.Body, file.Name),
		Content:   doc.Body,
		Excerpt:   excerpt,
		Category:  category,
		Date:      date,
		Slug:      content.SlugFromPath(file.Path),
		Path:      file.Path,
		Tags:      tags,
		WordCount: content.WordCount(doc.Body),
	}, true
}

// StubPost represents a file whose body has not been fetched yet. It has no
// date, so it sorts after every fetched post.
func StubPost(file github.File) (Post, bool) {
	category, ok := content.CategoryFromPath(file.Path)
	if !ok {
		return Post{}, false
	}

	return Post{
		ID:       file.SHA,
		Title:    content.HumanizeFilename(file.Name),
		Excerpt:  StubExcerpt,
		Category: category,
		Slug:     content.SlugFromPath(file.Path),
		Path:     file.Path,
		Tags:     []string{},
		Stub:     true,
	}, true
}

func parseDate(date string) time.Time {
	for _, layout := range []string{dateLayout, time.RFC3339, "2006-01-02 15:04", "2006/01/02"} {
		if t, err := time.Parse(layout, date); err == nil {
			return t
		}
	}
	return time.Time{}
}

// PublishedAt parses Date; an unparseable date yields the zero time.
func (p Post) PublishedAt() time.Time {
	return parseDate(p.Date)
}
