package promptctx

import (
	"github.com/pkoukk/tiktoken-go"
)

// Budget measures an assembled prompt in model tokens and, if it exceeds
// maxTokens, drops the oldest Long Term Memory rows first (spec.md §4.7
// leaves the eviction order under "Recency windows" unspecified; dropping
// long-term rows before recent or generated ones is the concrete choice
// this module makes).
type Budget struct {
	enc *tiktoken.Tiktoken
}

// NewBudget builds a Budget using the named tiktoken encoding (e.g.
// "cl100k_base"). Falls back to a nil encoder (counting is then a rough
// whitespace-token estimate) if the encoding can't be loaded, so a missing
// offline tiktoken ranks file never hard-fails a turn.
func NewBudget(encodingName string) Budget {
	enc, err := tiktoken.GetEncoding(encodingName)
	if err != nil {
		return Budget{}
	}
	return Budget{enc: enc}
}

// Count returns the token length of text.
func (b Budget) Count(text string) int {
	if b.enc == nil {
		return roughTokenCount(text)
	}
	return len(b.enc.Encode(text, nil, nil))
}

func roughTokenCount(text string) int {
	n := 0
	inWord := false
	for _, r := range text {
		if r == ' ' || r == '\n' || r == '\t' {
			inWord = false
			continue
		}
		if !inWord {
			n++
			inWord = true
		}
	}
	return n
}

// FitEntityContext trims ctx.LongTerm rows from the front, in the order the
// caller supplied them (treated as oldest-first), until the rendered entity
// context fits within maxTokens, or until LongTerm is empty.
// BuildEntityContext orders rows by ref string, not by the turn they were
// last touched. Generated and RecentTurns rows are
// never dropped: they are the two sections spec.md treats as load-bearing.
func (b Budget) FitEntityContext(ctx EntityContext, maxTokens int) EntityContext {
	for b.Count(RenderEntityContext(ctx)) > maxTokens && len(ctx.LongTerm.Rows) > 0 {
		ctx.LongTerm.Rows = ctx.LongTerm.Rows[1:]
	}
	return ctx
}
