package stages

import (
	"regexp"
	"strings"
)

// Formatter translates portable markdown-ish markup into what one
// channel renders.
type Formatter interface {
	Format(text string) string
}

// WhatsAppFormatter rewrites bold, italic, monospace and link markup
// into WhatsApp's conventions.
type WhatsAppFormatter struct{}

var (
	boldRe   = regexp.MustCompile(`\*\*(.+?)\*\*`)
	italicRe = regexp.MustCompile(`(^|[^*_])\*([^*\n]+?)\*`)
	monoRe   = regexp.MustCompile("`([^`\n]+?)`")
	linkRe   = regexp.MustCompile(`\[([^\]]+)\]\(([^)\s]+)\)`)
)

func (WhatsAppFormatter) Format(text string) string {
	// Links first so their labels survive the other rewrites; italics
	// before bold so the rewritten *bold* is not re-matched.
	text = linkRe.ReplaceAllString(text, "$1 ($2)")
	text = italicRe.ReplaceAllString(text, "${1}_${2}_")
	text = boldRe.ReplaceAllString(text, "*$1*")
	text = monoRe.ReplaceAllString(text, "```$1```")
	return strings.TrimSpace(text)
}

// PlainFormatter strips markup entirely for channels without styling.
type PlainFormatter struct{}

func (PlainFormatter) Format(text string) string {
	text = linkRe.ReplaceAllString(text, "$1 ($2)")
	text = boldRe.ReplaceAllString(text, "$1")
	text = italicRe.ReplaceAllString(text, "${1}${2}")
	text = monoRe.ReplaceAllString(text, "$1")
	return strings.TrimSpace(text)
}
