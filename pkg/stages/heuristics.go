package stages

import (
	"regexp"
	"strings"
	"unicode"
)

var emailRe = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

// LooksLikeEmail reports whether the whole message is a plausible
// email address.
func LooksLikeEmail(text string) bool {
	return emailRe.MatchString(strings.TrimSpace(text))
}

// LooksLikeName reports whether a message is a plausible bare name:
// 2-100 chars, 1-5 words, letters plus common name punctuation, and not
// a question.
func LooksLikeName(text string) bool {
	text = strings.TrimSpace(text)
	n := len([]rune(text))
	if n < 2 || n > 100 {
		return false
	}
	if strings.ContainsAny(text, "?¿") {
		return false
	}
	words := strings.Fields(text)
	if len(words) < 1 || len(words) > 5 {
		return false
	}
	for _, r := range text {
		if unicode.IsLetter(r) || unicode.IsSpace(r) {
			continue
		}
		switch r {
		case '\'', '-', '.':
			continue
		}
		return false
	}
	return true
}

var exitPhrases = []string{
	"cancel", "stop", "quit", "exit", "never mind", "nevermind",
	"forget it", "leave it", "not now",
	"cancelar", "salir", "parar", "olvidalo", "olvídalo", "déjalo",
	"sair", "esquece", "deixa pra la", "deixa pra lá",
	"batal", "berhenti", "sudahlah", "nanti saja",
}

// IsExitPhrase matches the latest message against the fixed exit-phrase
// set, case-insensitively, on the whole message.
func IsExitPhrase(text string) bool {
	t := strings.ToLower(strings.TrimSpace(strings.TrimRight(strings.TrimSpace(text), ".!")))
	for _, p := range exitPhrases {
		if t == p {
			return true
		}
	}
	return false
}

var affirmatives = map[string]bool{
	"yes": true, "y": true, "yeah": true, "yep": true, "yup": true,
	"ok": true, "okay": true, "sure": true, "confirm": true, "correct": true,
	"si": true, "sí": true, "claro": true, "confirmo": true,
	"sim": true, "isso": true,
	"ya": true, "iya": true, "betul": true, "benar": true, "boleh": true,
}

var negatives = map[string]bool{
	"no": true, "nope": true, "nah": true, "n": true,
	"não": true, "nao": true, "tidak": true, "nggak": true, "gak": true, "ga": true,
}

func IsAffirmative(text string) bool {
	return affirmatives[normalizeAnswer(text)]
}

func IsNegative(text string) bool {
	return negatives[normalizeAnswer(text)]
}

func normalizeAnswer(text string) string {
	t := strings.ToLower(strings.TrimSpace(text))
	return strings.TrimRight(t, ".!?")
}
