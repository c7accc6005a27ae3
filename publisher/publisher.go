package publisher

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html"
	"os"
	"path/filepath"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"lecture_builder/generator"
)

const digestLimit = 160

var markdown = goldmark.New(goldmark.WithExtensions(extension.GFM))

// RenderMarkdown lays a lecture out as a Markdown document. Invalid
// structured sections are omitted.
func RenderMarkdown(lec generator.Lecture) string {
	var b strings.Builder

	title := lec.Gist.Title
	if title == "" {
		title = "Lecture " + lec.VideoID
	}
	fmt.Fprintf(&b, "# %s\n\n", title)
	if len(lec.Gist.Hashtags) > 0 {
		b.WriteString(strings.Join(lec.Gist.Hashtags, " "))
		b.WriteString("\n\n")
	}
	if len(lec.Gist.Topics) > 0 {
		fmt.Fprintf(&b, "**Topics:** %s\n\n", strings.Join(lec.Gist.Topics, ", "))
	}

	if lec.Summary.Summary != "" {
		b.WriteString("## Summary\n\n")
		b.WriteString(strings.TrimSpace(lec.Summary.Summary))
		b.WriteString("\n\n")
	}

	if v := lec.Chapters.Value; lec.Chapters.Valid && v != nil {
		b.WriteString("## Chapters\n\n")
		for i, ch := range v.Chapters {
			fmt.Fprintf(&b, "%d. **%s** (%s–%s): %s\n", i+1, ch.Title, timestamp(ch.StartTime), timestamp(ch.EndTime), ch.Summary)
		}
		b.WriteString("\n")
	}

	if v := lec.KeyTakeaways.Value; lec.KeyTakeaways.Valid && v != nil {
		b.WriteString("## Key Takeaways\n\n")
		for _, kt := range v.KeyTakeaways {
			fmt.Fprintf(&b, "- %s (%s)\n", kt.Takeaway, timestamp(kt.Timestamp))
		}
		b.WriteString("\n")
	}

	if v := lec.Pacing.Value; lec.Pacing.Valid && v != nil {
		b.WriteString("## Pacing\n\n")
		b.WriteString("| Segment | Issue | Recommendation | Severity |\n")
		b.WriteString("|---|---|---|---|\n")
		for _, r := range v.Recommendations {
			fmt.Fprintf(&b, "| %s–%s | %s | %s | %s |\n",
				timestamp(r.StartTime), timestamp(r.EndTime), cell(r.Issue), cell(r.Recommendation), cell(r.Severity))
		}
		b.WriteString("\n")
	}

	if v := lec.Engagement.Value; lec.Engagement.Valid && v != nil {
		b.WriteString("## Engagement\n\n")
		for _, e := range v.Engagement {
			fmt.Fprintf(&b, "- **%s** at %s: %s\n", e.Type, timestamp(e.Timestamp), e.Description)
		}
		b.WriteString("\n")
	}

	if v := lec.Quiz.Value; lec.Quiz.Valid && v != nil {
		b.WriteString("## Quiz\n\n")
		for i, q := range v.Questions {
			fmt.Fprintf(&b, "%d. %s\n", i+1, q.Question)
			for _, opt := range q.Options {
				mark := " "
				if strings.TrimSpace(opt) == strings.TrimSpace(q.Answer) {
					mark = "x"
				}
				fmt.Fprintf(&b, "    - [%s] %s\n", mark, opt)
			}
			if q.Explanation != "" {
				fmt.Fprintf(&b, "\n    _%s_\n", q.Explanation)
			}
		}
		b.WriteString("\n")
	}

	return b.String()
}

// ToHTML converts Markdown to an HTML fragment.
func ToHTML(md string) (string, error) {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(md), &buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// RenderHTML renders a lecture as a standalone HTML document.
func RenderHTML(lec generator.Lecture) (string, error) {
	body, err := ToHTML(RenderMarkdown(lec))
	if err != nil {
		return "", err
	}
	title := lec.Gist.Title
	if title == "" {
		title = "Lecture " + lec.VideoID
	}
	var b strings.Builder
	b.WriteString("<!DOCTYPE html>\n<html>\n<head>\n<meta charset=\"utf-8\">\n")
	fmt.Fprintf(&b, "<title>%s</title>\n", html.EscapeString(title))
	if digest := Digest(lec.Summary.Summary, digestLimit); digest != "" {
		fmt.Fprintf(&b, "<meta name=\"description\" content=\"%s\">\n", html.EscapeString(digest))
	}
	b.WriteString("</head>\n<body>\n")
	b.WriteString(body)
	b.WriteString("</body>\n</html>\n")
	return b.String(), nil
}

// Publish writes the lecture HTML document to path and returns the absolute path.
func Publish(ctx context.Context, lec generator.Lecture, path string) (string, error) {
	if path == "" {
		return "", errors.New("output path is required")
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	doc, err := RenderHTML(lec)
	if err != nil {
		return "", err
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return "", err
	}
	if err := os.WriteFile(abs, []byte(doc), 0o644); err != nil {
		return "", err
	}
	return abs, nil
}

// Digest compacts text to a single line of at most limit runes. A
// non-positive limit yields "".
func Digest(text string, limit int) string {
	if limit <= 0 {
		return ""
	}
	joined := strings.Join(strings.Fields(text), " ")
	runes := []rune(joined)
	if len(runes) <= limit {
		return joined
	}
	return string(runes[:limit])
}

func timestamp(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	total := int(seconds)
	return fmt.Sprintf("%02d:%02d", total/60, total%60)
}

func cell(s string) string {
	return strings.ReplaceAll(strings.TrimSpace(s), "|", `\|`)
}
