// Package patcher rewrites hyperparameter assignments in the training script.
//
// Matching is purely textual: a recognized prefix inside a comment or a
// string literal is rewritten as well.
package patcher

import (
	"strings"

	"github.com/aresml/arescfg/internal/storage"
)

// LineRewriter returns the replacement for line, or line itself and false.
// Lines are passed without their terminator.
type LineRewriter interface {
	Rewrite(line string, h *storage.Hyperparameters) (string, bool)
}

// PrefixRule maps an assignment prefix to the setting it encodes.
type PrefixRule struct {
	Prefix string
	Key    string
}

// DefaultRules are the assignments recognized in ares.py.
var DefaultRules = []PrefixRule{
	{"vocab_size =", "vocab_size"},
	{"d_model =", "d_model"},
	{"num_layers =", "num_layers"},
	{"num_heads =", "num_heads"},
	{"d_ff =", "d_ff"},
	{"max_seq_len =", "max_seq_len"},
	{"batch_size =", "batch_size"},
	{"epochs =", "epochs"},
	{"patience =", "patience"},
	{"learning_rate =", "learning_rate"},
	{"weight_decay =", "weight_decay"},
	{"max_samples =", "max_samples"},
	{"beam_width =", "beam_width"},
}

// PrefixRewriter replaces lines whose indentation-trimmed text starts with a
// rule's prefix by "<key> = <value>". The first matching rule wins and the
// line's indentation is kept.
type PrefixRewriter struct {
	Rules []PrefixRule
}

// NewPrefixRewriter uses DefaultRules when rules is empty.
func NewPrefixRewriter(rules ...PrefixRule) *PrefixRewriter {
	if len(rules) == 0 {
		rules = DefaultRules
	}
	return &PrefixRewriter{Rules: rules}
}

func (r *PrefixRewriter) Rewrite(line string, h *storage.Hyperparameters) (string, bool) {
	trimmed := strings.TrimLeft(line, " \t")
	for _, rule := range r.Rules {
		if !strings.HasPrefix(trimmed, rule.Prefix) {
			continue
		}
		v, err := h.Get(rule.Key)
		if err != nil {
			return line, false
		}
		indent := line[:len(line)-len(trimmed)]
		return indent + rule.Key + " = " + literal(v), true
	}
	return line, false
}

// literal renders v as a Python literal.
func literal(v any) string {
	switch x := v.(type) {
	case string:
		return `"` + strings.ReplaceAll(x, `"`, `\"`) + `"`
	case []string:
		quoted := make([]string, len(x))
		for i, s := range x {
			quoted[i] = literal(s)
		}
		return "[" + strings.Join(quoted, ", ") + "]"
	}
	return storage.FormatValue(v)
}
