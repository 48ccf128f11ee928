package exam

import (
	"encoding/json"
	"strings"

	"github.com/pkg/errors"
)

type TermKind int

const (
	CustomTerm TermKind = iota
	FirstTerm
	MidTerm
	FinalTerm
)

var (
	ErrBlankTerm = errors.New("term cannot be blank")

	termLabels = map[TermKind]string{
		FirstTerm: "First Term",
		MidTerm:   "Mid Term",
		FinalTerm: "Final Term",
	}
	termKeys = map[TermKind]string{
		FirstTerm: "first",
		MidTerm:   "mid",
		FinalTerm: "final",
	}

	// spellings of the well-known terms, after normalization
	termAliases = map[string]TermKind{
		"first":           FirstTerm,
		"first term":      FirstTerm,
		"first term exam": FirstTerm,
		"1st term":        FirstTerm,
		"mid":             MidTerm,
		"mid term":        MidTerm,
		"midterm":         MidTerm,
		"mid term exam":   MidTerm,
		"midterm exam":    MidTerm,
		"final":           FinalTerm,
		"final term":      FinalTerm,
		"final exam":      FinalTerm,
		"final term exam": FinalTerm,
		"end of term":     FinalTerm,
	}
)

// Term identifies an academic term. Two terms are equal when their keys are equal,
// whatever the case or spacing they were written with.
type Term struct {
	kind  TermKind
	label string // display label of a custom term
}

// ParseTerm trims s, collapses its inner whitespace and matches it case-insensitively
// against the well-known terms. Anything else is a custom term.
func ParseTerm(s string) (Term, error) {
	label := strings.Join(strings.Fields(s), " ")
	if label == "" {
		return Term{}, ErrBlankTerm
	}
	norm := strings.Join(strings.Fields(strings.NewReplacer("-", " ", "_", " ").Replace(strings.ToLower(label))), " ")
	if kind, ok := termAliases[norm]; ok {
		return Term{kind: kind}, nil
	}
	return Term{kind: CustomTerm, label: label}, nil
}

func (t Term) Kind() TermKind { return t.kind }

func (t Term) IsZero() bool { return t.kind == CustomTerm && t.label == "" }

// Key is the normalized grouping key of the term.
func (t Term) Key() string {
	if key, ok := termKeys[t.kind]; ok {
		return key
	}
	if t.label == "" {
		return ""
	}
	return "custom:" + strings.ToLower(t.label)
}

// Label is the display label of the term.
func (t Term) Label() string {
	if label, ok := termLabels[t.kind]; ok {
		return label
	}
	return t.label
}

func (t Term) String() string { return t.Label() }

func (t Term) Equal(other Term) bool { return t.Key() == other.Key() }

func (t Term) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.Label())
}

func (t *Term) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if strings.TrimSpace(s) == "" {
		*t = Term{}
		return nil
	}
	term, err := ParseTerm(s)
	if err != nil {
		return err
	}
	*t = term
	return nil
}
