package feed

import (
	"bytes"
	"cmp"
	"encoding/xml"
	"fmt"
	"html"
	"log/slog"
	"strings"
	"time"

	"github.com/aprasaks/nexus-blog/app/cfg"
	"github.com/aprasaks/nexus-blog/app/content"
	"github.com/aprasaks/nexus-blog/app/posts"
	"github.com/aprasaks/nexus-blog/app/site"
)

type Generator struct {
	renderer *content.Renderer
}

func NewGenerator(renderer *content.Renderer) *Generator {
	return &Generator{renderer: renderer}
}

// Run writes an RSS 2.0 document for the posts, newest first as given.
func (g *Generator) Run(config *site.Config, list []posts.Post) (string, error) {
	var buf bytes.Buffer

	if config.MaxFeedItems > 0 && len(list) > config.MaxFeedItems {
		list = list[:config.MaxFeedItems]
	}

	baseURL := g.baseURL()

	buf.WriteString(`<?xml version="1.0" encoding="UTF-8"?>`)
	buf.WriteString("\n")
	buf.WriteString(`<rss version="2.0" xmlns:content="http://purl.org/rss/1.0/modules/content/" xmlns:atom="http://www.w3.org/2005/Atom">`)
	buf.WriteString("\n  <channel>\n")

	g.writeElement(&buf, "title", config.Title, 4)
	g.writeElement(&buf, "link", cmp.Or(config.Link, baseURL), 4)
	g.writeElement(&buf, "description", cmp.Or(config.Description, config.Title), 4)

	buf.WriteString(fmt.Sprintf("    <atom:link href=\"%s\" rel=\"self\" type=\"application/rss+xml\" />\n",
		html.EscapeString(baseURL+"/feed.xml")))

	lastBuildDate := time.Now().In(time.Local)
	if len(list) > 0 {
		if published := list[0].PublishedAt(); !published.IsZero() {
			lastBuildDate = published
		}
	}

	g.writeElement(&buf, "lastBuildDate", lastBuildDate.Format(time.RFC1123Z), 4)
	g.writeElement(&buf, "generator", fmt.Sprintf("Nexus-Blog/%s", cfg.Get().Version), 4)
	g.writeElement(&buf, "language", config.Language, 4)

	for _, post := range list {
		g.writeItem(&buf, config, baseURL, post)
	}

	buf.WriteString("  </channel>\n</rss>")

	return buf.String(), nil
}

func (g *Generator) writeItem(buf *bytes.Buffer, config *site.Config, baseURL string, post posts.Post) {
	buf.WriteString("    <item>\n")

	buf.WriteString("      <guid isPermaLink=\"false\">")
	xml.EscapeText(buf, []byte(cmp.Or(post.ID, post.Slug)))
	buf.WriteString("</guid>\n")

	g.writeElement(buf, "title", post.Title, 6)
	g.writeElement(buf, "link", fmt.Sprintf("%s/posts/%s", baseURL, post.Slug), 6)
	g.writeElement(buf, "description", cmp.Or(post.Excerpt, "No description available"), 6)

	if post.Content != "" && g.renderer != nil {
		rendered, err := g.renderer.RenderHTML(post.Content)
		if err != nil {
			slog.Warn("Failed to render post for feed", "slug", post.Slug, "error", err)
		} else {
			buf.WriteString("      <content:encoded><![CDATA[")
			buf.WriteString(escapeCDATA(rendered))
			buf.WriteString("]]></content:encoded>\n")
		}
	}

	if published := post.PublishedAt(); !published.IsZero() {
		g.writeElement(buf, "pubDate", published.Format(time.RFC1123Z), 6)
	}

	g.writeElement(buf, "author", config.Author, 6)
	g.writeElement(buf, "category", post.Category, 6)
	for _, tag := range post.Tags {
		if tag != post.Category {
			g.writeElement(buf, "category", tag, 6)
		}
	}

	buf.WriteString("    </item>\n")
}

func (g *Generator) writeElement(buf *bytes.Buffer, tag, text string, indent int) {
	if text == "" {
		return
	}

	for i := 0; i < indent; i++ {
		buf.WriteByte(' ')
	}

	buf.WriteString("<")
	buf.WriteString(tag)
	buf.WriteString(">")
	xml.EscapeText(buf, []byte(text))
	buf.WriteString("</")
	buf.WriteString(tag)
	buf.WriteString(">\n")
}

func (g *Generator) baseURL() string {
	if base := cfg.Get().BaseUrl; base != "" {
		return strings.TrimRight(base, "/")
	}
	return fmt.Sprintf("http://localhost:%s", cfg.Get().Port)
}

// escapeCDATA splits any "]]>" so it cannot end the section early.
func escapeCDATA(s string) string {
	return strings.ReplaceAll(s, "]]>", "]]]]><![CDATA[>")
}
