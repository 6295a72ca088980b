package text

import (
	"fmt"
)

// PadID is the sentinel id reserved for padding and unknown tokens. It is
// never assigned to a real token.
const PadID int32 = 0

// Vocabulary maps tokens of one language to dense integer ids. Ids start at
// 1; 0 is the pad/unknown sentinel. Instances are built once from a training
// partition and read-only afterwards.
type Vocabulary struct {
	Index  map[string]int32 // token -> id
	Words  []string         // id -> token; Words[0] is the pad sentinel ""
	MaxLen int              // longest observed sentence, in tokens
}

// BuildVocabulary indexes the tokens of the given sentences, ordered by
// descending frequency with ties broken by first appearance. Only training
// sentences may be passed here: indexing validation or test text would leak
// information into the vocabulary.
func BuildVocabulary(sentences []string) (*Vocabulary, error) {
	counts := make(map[string]int)
	firstSeen := make(map[string]int)
	order := make([]string, 0)
	maxLen := 0

	for _, sentence := range sentences {
		tokens := Tokenize(sentence)
		if len(tokens) > maxLen {
			maxLen = len(tokens)
		}
		for _, tok := range tokens {
			if _, seen := counts[tok]; !seen {
				firstSeen[tok] = len(order)
				order = append(order, tok)
			}
			counts[tok]++
		}
	}

	if len(order) == 0 {
		return nil, fmt.Errorf("no tokens to index: input sentences are empty")
	}

	// Insertion sort by (frequency desc, first-seen asc). Stable orderings
	// matter here: two vocabularies built from the same corpus must agree.
	ranked := make([]string, len(order))
	copy(ranked, order)
	for i := 1; i < len(ranked); i++ {
		for j := i; j > 0; j-- {
			a, b := ranked[j-1], ranked[j]
			if counts[b] > counts[a] || (counts[b] == counts[a] && firstSeen[b] < firstSeen[a]) {
				ranked[j-1], ranked[j] = ranked[j], ranked[j-1]
			} else {
				break
			}
		}
	}

	vocab := &Vocabulary{
		Index:  make(map[string]int32, len(ranked)),
		Words:  make([]string, len(ranked)+1),
		MaxLen: maxLen,
	}
	vocab.Words[0] = ""
	for i, tok := range ranked {
		id := int32(i + 1)
		vocab.Index[tok] = id
		vocab.Words[id] = tok
	}

	return vocab, nil
}

// Size returns the number of ids including the pad sentinel, i.e.
// distinct-token-count + 1.
func (v *Vocabulary) Size() int {
	return len(v.Words)
}

// Lookup returns the id for a token, or PadID and false when the token is
// out of vocabulary.
func (v *Vocabulary) Lookup(token string) (int32, bool) {
	id, ok := v.Index[token]
	return id, ok
}

// Word returns the token for an id. The pad sentinel and out-of-range ids
// decode to the empty string.
func (v *Vocabulary) Word(id int32) string {
	if id <= 0 || int(id) >= len(v.Words) {
		return ""
	}
	return v.Words[id]
}
