package messages

import (
	"regexp"
	"strings"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Annotations carry delivery metadata attached by the output filter.
// Only assistant messages that went through decomposition have them.
type Annotations struct {
	MessageType  string `json:"message_type,omitempty"`
	Domain       string `json:"domain,omitempty"`
	Order        int    `json:"order"`
	GroupID      string `json:"group_id,omitempty"`
	IsStandalone bool   `json:"is_standalone,omitempty"`
	DelayMS      int    `json:"delay_ms,omitempty"`
}

// Message is the single shape every producer is normalized into at the
// pipeline boundary. Producer-specific payloads never travel downstream.
type Message struct {
	Role        Role         `json:"role"`
	Content     string       `json:"content"`
	Annotations *Annotations `json:"annotations,omitempty"`
}

func User(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

func Assistant(content string) Message {
	return Message{Role: RoleAssistant, Content: content}
}

func System(content string) Message {
	return Message{Role: RoleSystem, Content: content}
}

var spaceRe = regexp.MustCompile(`\s+`)

// NormalizeContent lowercases and collapses whitespace so near-identical
// texts map to the same dedup key.
func NormalizeContent(content string) string {
	return strings.ToLower(strings.TrimSpace(spaceRe.ReplaceAllString(content, " ")))
}

// DedupKey identifies a message by (role, normalized content).
func (m Message) DedupKey() string {
	return string(m.Role) + "|" + NormalizeContent(m.Content)
}

// Dedup removes duplicate (role, normalized content) pairs, scanning from
// newest to oldest and keeping only the most recent occurrence. Relative
// order of the survivors is preserved.
func Dedup(list []Message) []Message {
	if len(list) < 2 {
		return list
	}
	seen := make(map[string]bool, len(list))
	keep := make([]bool, len(list))
	for i := len(list) - 1; i >= 0; i-- {
		key := list[i].DedupKey()
		if seen[key] {
			continue
		}
		seen[key] = true
		keep[i] = true
	}
	out := make([]Message, 0, len(list))
	for i, m := range list {
		if keep[i] {
			out = append(out, m)
		}
	}
	return out
}

// CapHistory keeps all system messages plus the last limit non-system
// messages, preserving order. It returns the trimmed list and how many
// non-system entries were dropped.
func CapHistory(list []Message, limit int) ([]Message, int) {
	if limit <= 0 {
		return list, 0
	}
	nonSystem := 0
	for _, m := range list {
		if m.Role != RoleSystem {
			nonSystem++
		}
	}
	if nonSystem <= limit {
		return list, 0
	}
	drop := nonSystem - limit
	out := make([]Message, 0, len(list)-drop)
	skipped := 0
	for _, m := range list {
		if m.Role != RoleSystem && skipped < drop {
			skipped++
			continue
		}
		out = append(out, m)
	}
	return out, drop
}
