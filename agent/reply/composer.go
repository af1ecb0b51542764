package reply

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"

	"github.com/rs/zerolog/log"
	"github.com/tanpawarit/library-mail-agent/agent/catalog"
	contractx "github.com/tanpawarit/library-mail-agent/agent/contract"
)

const dateLayout = "02/01/2006"

var tables = map[string]map[string]string{
	"es": spanish,
	"en": english,
}

// Composer renders an Outcome into reply text. Rendering is deterministic
// for a given outcome and never mentions internal error details.
type Composer struct {
	lang  string
	table map[string]string
	tmpl  *template.Template
}

func New(lang string) (*Composer, error) {
	lang = strings.ToLower(strings.TrimSpace(lang))
	if lang == "" {
		lang = "es"
	}
	table, ok := tables[lang]
	if !ok {
		return nil, fmt.Errorf("%w: unsupported reply language %q", contractx.ErrValidation, lang)
	}

	root := template.New(lang).Option("missingkey=error")
	for name, body := range table {
		if _, err := root.New(name).Parse(body); err != nil {
			return nil, fmt.Errorf("parse reply template %s/%s: %w", lang, name, err)
		}
	}
	return &Composer{lang: lang, table: table, tmpl: root}, nil
}

func MustNew(lang string) *Composer {
	c, err := New(lang)
	if err != nil {
		panic(err)
	}
	return c
}

func (c *Composer) Language() string {
	return c.lang
}

// ReplySubject prefixes the subject of the mail being answered.
func (c *Composer) ReplySubject(original string) string {
	original = strings.TrimSpace(original)
	if original == "" {
		return strings.TrimSpace(c.table["subject"])
	}
	return c.table["subject"] + original
}

type view struct {
	Subject string
	Title   string
	Due     string
	Books   []catalog.Book
}

func (c *Composer) Compose(out contractx.Outcome) string {
	body, err := c.render(out)
	if err != nil {
		log.Error().Err(err).Str("outcome", string(out.Kind)).Msg("reply template failed")
		body = c.table["system_degraded"]
	}
	return c.table["greeting"] + "\n\n" + strings.TrimSpace(body) + "\n\n" + c.table["signoff"]
}

func (c *Composer) render(out contractx.Outcome) (string, error) {
	name := c.lookup(out)
	if name == "" {
		return "", fmt.Errorf("no reply template for outcome %q", out.Kind)
	}

	v := view{Subject: out.Subject, Title: out.Subject, Books: out.Books}
	if out.Book != nil {
		v.Title = out.Book.Title
	}
	if out.Reservation != nil && !out.Reservation.DueAt.IsZero() {
		v.Due = out.Reservation.DueAt.Format(dateLayout)
	}

	var buf bytes.Buffer
	if err := c.tmpl.ExecuteTemplate(&buf, name, v); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func (c *Composer) lookup(out contractx.Outcome) string {
	kind := string(out.Kind)
	candidates := []string{kind}
	if out.Operation != "" {
		candidates = append([]string{kind + "." + string(out.Operation)}, candidates...)
	}
	if out.Reason != "" {
		candidates = append([]string{kind + "." + out.Reason}, candidates...)
	}
	for _, name := range candidates {
		if _, ok := c.table[name]; ok {
			return name
		}
	}
	return ""
}
