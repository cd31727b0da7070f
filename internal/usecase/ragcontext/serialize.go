package ragcontext

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/kailas-cloud/askdex/internal/domain/record"
)

// Window is a serialized context and what it contains.
type Window struct {
	Text            string
	Included        []record.Record
	Omitted         int
	EstimatedTokens int
}

// Truncated reports whether any record was left out.
func (w Window) Truncated() bool { return w.Omitted > 0 }

// EstimateTokens approximates the token count of text at four characters per token.
func EstimateTokens(text string) int {
	return tokensFor(utf8.RuneCountInString(text))
}

func tokensFor(runes int) int {
	return (runes + 3) / 4
}

// Serialize renders records as context text no larger than maxTokens.
func (b *Builder) Serialize(records []record.Record, maxTokens int) string {
	return b.Build(records, maxTokens).Text
}

// Build appends one record block at a time while the running estimate stays
// within maxTokens. When a block does not fit, it stops and appends a notice
// with the number of records left out; the notice is counted against the
// budget. A non-positive maxTokens uses DefaultMaxTokens.
func (b *Builder) Build(records []record.Record, maxTokens int) Window {
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}

	var (
		sb    strings.Builder
		runes int
	)
	for i, r := range records {
		block := formatBlock(i+1, r)
		if i > 0 {
			block = "\n\n" + block
		}
		blockRunes := utf8.RuneCountInString(block)

		remaining := len(records) - i - 1
		reserve := 0
		if remaining > 0 {
			reserve = utf8.RuneCountInString("\n\n" + truncationNotice(remaining))
		}
		if tokensFor(runes+blockRunes+reserve) > maxTokens {
			return truncate(sb.String(), runes, records[:i], len(records)-i, maxTokens)
		}
		sb.WriteString(block)
		runes += blockRunes
	}

	return Window{
		Text:            sb.String(),
		Included:        records,
		EstimatedTokens: tokensFor(runes),
	}
}

// truncate appends the omission notice to text. If the full notice does not
// fit, a compact one is used; a budget too small for either yields no text.
func truncate(text string, runes int, included []record.Record, omitted, maxTokens int) Window {
	sep := ""
	if text != "" {
		sep = "\n\n"
	}
	for _, notice := range []string{truncationNotice(omitted), compactNotice(omitted)} {
		n := utf8.RuneCountInString(sep + notice)
		if tokensFor(runes+n) <= maxTokens {
			return Window{
				Text:            text + sep + notice,
				Included:        included,
				Omitted:         omitted,
				EstimatedTokens: tokensFor(runes + n),
			}
		}
	}
	return Window{Omitted: len(included) + omitted}
}

func truncationNotice(n int) string {
	noun := "records"
	if n == 1 {
		noun = "record"
	}
	return fmt.Sprintf("[... %d additional %s omitted to fit the context budget]", n, noun)
}

func compactNotice(n int) string {
	return fmt.Sprintf("[+%d omitted]", n)
}

func formatBlock(n int, r record.Record) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "[%d] %s | %s | %s | %s", n, r.ID, r.Severity, r.Status, r.Date())
	if r.Category != "" || r.Department != "" {
		fmt.Fprintf(&sb, " | %s / %s", r.Category, r.Department)
	}
	fmt.Fprintf(&sb, "\nTitle: %s", r.Title)
	if r.Location != "" {
		fmt.Fprintf(&sb, "\nLocation: %s", r.Location)
	}
	if r.Description != "" {
		fmt.Fprintf(&sb, "\nDescription: %s", r.Description)
	}
	if r.Recommendation != "" {
		fmt.Fprintf(&sb, "\nRecommendation: %s", r.Recommendation)
	}
	return sb.String()
}
