package chat

import (
	"fmt"
	"strings"

	"github.com/aprasaks/nexus-blog/app/content"
)

const (
	// GeneratePrefix marks a reply that is a new post rather than a chat message.
	GeneratePrefix = "POST_GENERATE:"

	postContextLimit = 1000
	assistPostLimit  = 20
)

const identityPrompt = `You are E.D.I.T.H AI, a friendly and helpful assistant for developers.

Your role:
- Give clear, practical answers to technical questions
- Share code examples and hands-on experience
- Explain complex concepts so they are easy to follow
- Talk in Korean in a friendly way

Answer style:
- Friendly and professional tone
- Concrete examples
- Step by step explanations
- Code blocks when needed`

// SystemPrompt builds the chat system prompt. The current post is added
// only when both its title and content are known, cut to 1000 characters.
func SystemPrompt(postTitle, postContent string) string {
	if postTitle == "" || postContent == "" {
		return identityPrompt
	}

	var b strings.Builder
	b.WriteString(identityPrompt)
	b.WriteString("\n\nThe post the user is reading:\n")
	fmt.Fprintf(&b, "Title: %q\n\n", postTitle)
	fmt.Fprintf(&b, "Key content: %s\n\n", content.Truncate(postContent, postContextLimit))
	b.WriteString("Use the post above to answer related questions briefly and clearly.")

	return b.String()
}

// AssistantPrompt lists the available posts and tells the model how to
// answer: list posts, answer from them, or write a new post.
func AssistantPrompt(posts []PostSummary) string {
	var b strings.Builder
	b.WriteString(identityPrompt)
	b.WriteString("\n\nPosts available on the blog:\n")

	if len(posts) == 0 {
		b.WriteString("(none)\n")
	}
	for i, post := range posts {
		if i == assistPostLimit {
			fmt.Fprintf(&b, "... and %d more\n", len(posts)-assistPostLimit)
			break
		}
		writePostLine(&b, post)
	}

	b.WriteString("\nRules:\n")
	b.WriteString("1. When the user asks which posts exist, list the matching titles from above.\n")
	b.WriteString("2. When the question can be answered from the posts, answer from them.\n")
	fmt.Fprintf(&b, "3. When the user asks for a new post, reply with %s on the first line followed by a complete markdown document that starts with a '# ' title.\n", GeneratePrefix)

	return b.String()
}

// GenerationPrompt asks for a new markdown post about keyword, drawing on
// the related posts.
func GenerationPrompt(keyword string, related []PostSummary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Write a new blog post about %q.\n", keyword)

	if len(related) > 0 {
		b.WriteString("\nRelated posts already on the blog:\n")
		for _, post := range related {
			writePostLine(&b, post)
		}
		b.WriteString("\nBuild on them without repeating them.\n")
	}

	b.WriteString("\nReply with a complete markdown document that starts with a '# ' title.")
	return b.String()
}

func writePostLine(b *strings.Builder, post PostSummary) {
	b.WriteString("- ")
	b.WriteString(post.Title)
	if post.Category != "" {
		fmt.Fprintf(b, " [%s]", post.Category)
	}
	if post.Excerpt != "" {
		fmt.Fprintf(b, ": %s", post.Excerpt)
	}
	b.WriteString("\n")
}

// SplitGenerated reports whether reply carries the generate marker and
// returns the title and markdown body that follow it.
func SplitGenerated(reply, keyword string) (title, body string, ok bool) {
	trimmed := strings.TrimSpace(reply)
	rest, found := strings.CutPrefix(trimmed, GeneratePrefix)
	if !found {
		return "", "", false
	}

	body = strings.TrimSpace(rest)
	doc := content.ParseFrontmatter(body)
	return content.ExtractTitle(doc.Metadata, doc.Body, keyword+".md"), body, true
}

// mockReply stands in for the model when it cannot be reached, so the chat
// widget still shows something useful.
func mockReply(message string, posts []PostSummary) string {
	query := strings.ToLower(strings.TrimSpace(message))

	var matches []string
	for _, post := range posts {
		if strings.Contains(strings.ToLower(post.Title), query) ||
			strings.Contains(strings.ToLower(post.Excerpt), query) {
			matches = append(matches, post.Title)
		}
	}

	var b strings.Builder
	b.WriteString("The AI model is not reachable right now.")
	if len(matches) > 0 {
		b.WriteString(" Posts that may help:\n")
		for _, title := range matches {
			fmt.Fprintf(&b, "- %s\n", title)
		}
	} else if len(posts) > 0 {
		fmt.Fprintf(&b, " There are %d posts on the blog; try searching for a keyword.", len(posts))
	}

	return strings.TrimSpace(b.String())
}
