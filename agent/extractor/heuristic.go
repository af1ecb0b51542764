package extractor

import (
	"context"
	"regexp"
	"strings"

	contractx "github.com/tanpawarit/library-mail-agent/agent/contract"
)

// HeuristicConfidence is what keyword guesses report; it stays below the
// default threshold on purpose so they never pass as model output.
const HeuristicConfidence = 0.5

type keywordRule struct {
	kind  contractx.IntentKind
	slot  string
	words []string
}

// Rules are tried in order; the first keyword found wins.
var keywordRules = []keywordRule{
	{kind: contractx.IntentCancel, slot: contractx.SlotTitle, words: []string{"cancelar", "cancela", "cancélame", "anular", "anula", "cancel"}},
	{kind: contractx.IntentRenew, slot: contractx.SlotTitle, words: []string{"renovar", "renueva", "renuévame", "renovación de", "prorrogar", "extender", "renew", "extend"}},
	{kind: contractx.IntentReserve, slot: contractx.SlotTitle, words: []string{"reservar", "resérvame", "reservame", "reserva", "apartar", "aparta", "prestar", "reserve", "borrow"}},
	{kind: contractx.IntentListByAuthor, slot: contractx.SlotAuthor, words: []string{"libros de", "obras de", "libros del autor", "libros de la autora", "books by", "novels by"}},
	{kind: contractx.IntentListCatalog, words: []string{"catálogo", "catalogo", "qué libros", "que libros", "libros disponibles", "lista de libros", "catalog", "what books", "available books"}},
}

var fillerPrefixes = []string{
	"mi reserva de", "mi reserva del", "la reserva de", "la reserva del", "reserva de", "reserva del",
	"el libro", "la novela", "el ejemplar", "del libro", "libro", "novela",
	"del autor", "de la autora", "el autor", "la autora",
	"my reservation for", "my reservation of", "the book", "a copy of",
	"por favor", "please",
	"el", "la", "los", "las", "un", "una", "de", "del", "for", "the", "of", "a",
}

var fillerSuffixes = []string{"por favor", "please", "gracias", "thanks", "thank you"}

var quotedPattern = regexp.MustCompile(`["“«‘']([^"”»’']{1,200})["”»’']`)

// Heuristic guesses an intent from keywords. It backs simulation mode when
// the reasoning service cannot be reached.
type Heuristic struct{}

func (Heuristic) Extract(_ context.Context, req contractx.ExtractRequest) (contractx.Intent, error) {
	return Guess(req.Text), nil
}

func Guess(text string) contractx.Intent {
	text = strings.TrimSpace(text)
	lowered := strings.ToLower(text)
	source := text
	if len(lowered) != len(text) {
		source = lowered
	}

	for _, rule := range keywordRules {
		at, word := findKeyword(lowered, rule.words)
		if at < 0 {
			continue
		}
		intent := contractx.Intent{
			Kind:       rule.kind,
			Slots:      map[string]string{},
			Confidence: HeuristicConfidence,
			Heuristic:  true,
		}
		if rule.slot != "" {
			if v := slotValue(source, at+len(word)); v != "" {
				intent.Slots[rule.slot] = v
			}
		}
		return intent
	}

	return contractx.Intent{Kind: contractx.IntentUnknown, Confidence: 0, Heuristic: true}
}

func findKeyword(lowered string, words []string) (int, string) {
	for _, w := range words {
		from := 0
		for {
			i := strings.Index(lowered[from:], w)
			if i < 0 {
				break
			}
			i += from
			if wordBoundary(lowered, i, i+len(w)) {
				return i, w
			}
			from = i + len(w)
		}
	}
	return -1, ""
}

func wordBoundary(s string, start, end int) bool {
	if start > 0 && isWordByte(s[start-1]) {
		return false
	}
	if end < len(s) && isWordByte(s[end]) {
		return false
	}
	return true
}

func isWordByte(b byte) bool {
	return b >= 'a' && b <= 'z' || b >= '0' && b <= '9' || b >= 0x80
}

func slotValue(text string, after int) string {
	if m := quotedPattern.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1])
	}
	if after >= len(text) {
		return ""
	}

	rest := text[after:]
	if i := strings.IndexAny(rest, ".?!\n;"); i >= 0 {
		rest = rest[:i]
	}
	rest = strings.Trim(rest, " ,:¿¡\t")

	for changed := true; changed; {
		changed = false
		lower := strings.ToLower(rest)
		for _, p := range fillerPrefixes {
			if strings.HasPrefix(lower, p+" ") {
				rest = strings.TrimSpace(rest[len(p):])
				changed = true
				break
			}
		}
	}
	for _, s := range fillerSuffixes {
		if strings.HasSuffix(strings.ToLower(rest), " "+s) {
			rest = strings.TrimSpace(rest[:len(rest)-len(s)])
		}
	}
	return strings.Trim(rest, " ,:")
}
