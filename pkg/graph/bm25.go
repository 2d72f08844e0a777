package graph

import (
	"strings"
	"sync"
	"unicode"
)

// BM25 parameter per spec.md §4.3's adaptive hybrid retrieval pipeline,
// step 4: a presence-boosted, IDF-free, length-normalization-free score,
// tf·(k1+1)/(tf+k1) summed per candidate and normalized by query-term count.
// k1 is tuned higher than the teacher's 1.2 (see
// straga-Mimir_lite/nornicdb/pkg/search/fulltext_index.go, the grounding
// source for this scorer's inverted-index shape) to match the spec's stated
// term-frequency saturation point.
const bm25K1 = 1.5

// keywordIndex is an inverted index over neuron ids, adapted from the
// teacher's pkg/search/fulltext_index.go: same inverted-index shape,
// generalized to index arbitrary document ids (here, neuron ids) rather
// than a fixed `indexResult`, but without that file's IDF/length-
// normalization terms — spec.md §4.3 deliberately omits both in favor of a
// cheaper, presence-boosted score normalized by query-term count. It is
// also given CJK-aware tokenization since spec.md §4.3 requires it (the
// teacher's tokenizer, splitting only on unicode.IsLetter runs, would treat
// an entire unbroken CJK sentence as a single token).
type keywordIndex struct {
	mu            sync.RWMutex
	documents     map[string]string
	invertedIndex map[string]map[string]int
	docCount      int
}

func newKeywordIndex() *keywordIndex {
	return &keywordIndex{
		documents:     make(map[string]string),
		invertedIndex: make(map[string]map[string]int),
	}
}

func (k *keywordIndex) Index(id, text string) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.removeLocked(id)

	tokens := tokenize(text)
	if len(tokens) == 0 {
		return
	}
	k.documents[id] = text
	k.docCount++

	tf := make(map[string]int)
	for _, t := range tokens {
		tf[t]++
	}
	for term, freq := range tf {
		if k.invertedIndex[term] == nil {
			k.invertedIndex[term] = make(map[string]int)
		}
		k.invertedIndex[term][id] = freq
	}
}

func (k *keywordIndex) Remove(id string) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.removeLocked(id)
}

func (k *keywordIndex) removeLocked(id string) {
	text, exists := k.documents[id]
	if !exists {
		return
	}
	tf := make(map[string]int)
	for _, t := range tokenize(text) {
		tf[t]++
	}
	for term := range tf {
		if docs, ok := k.invertedIndex[term]; ok {
			delete(docs, id)
			if len(docs) == 0 {
				delete(k.invertedIndex, term)
			}
		}
	}
	delete(k.documents, id)
	k.docCount--
}

// keywordScore pairs a document id with its BM25-flavored score.
type keywordScore struct {
	ID    string
	Score float64
}

// Search returns presence-boosted keyword scores for query against every
// indexed document that shares at least one term, unsorted (callers fold
// this into the hybrid re-score, which sorts the combined result). Per
// spec.md §4.3 step 4, each document's summed term score is normalized by
// the number of query terms and clamped to 1.
func (k *keywordIndex) Search(query string) []keywordScore {
	k.mu.RLock()
	defer k.mu.RUnlock()

	if k.docCount == 0 {
		return nil
	}
	terms := tokenize(query)
	if len(terms) == 0 {
		return nil
	}

	scores := make(map[string]float64)
	for _, term := range terms {
		docs, ok := k.invertedIndex[term]
		if !ok {
			continue
		}
		for docID, freq := range docs {
			tf := float64(freq)
			scores[docID] += tf * (bm25K1 + 1) / (tf + bm25K1)
		}
	}

	out := make([]keywordScore, 0, len(scores))
	for id, s := range scores {
		s /= float64(len(terms))
		if s > 1 {
			s = 1
		}
		out = append(out, keywordScore{ID: id, Score: s})
	}
	return out
}

// tokenCount reports how many tokens query produces, used by the adaptive
// hybrid weight (spec.md §4.3: 0.15/≤3 tokens, 0.25/≤7, 0.35/else).
func tokenCount(query string) int {
	return len(tokenize(query))
}

var stopWords = map[string]bool{
	"a": true, "an": true, "and": true, "are": true, "as": true,
	"at": true, "be": true, "by": true, "for": true, "from": true,
	"has": true, "have": true, "he": true, "in": true, "is": true,
	"it": true, "its": true, "of": true, "on": true, "or": true,
	"that": true, "the": true, "to": true, "was": true, "were": true,
	"with": true, "this": true, "but": true, "they": true,
	"we": true, "you": true, "your": true, "my": true, "their": true,
	"been": true, "do": true, "does": true, "did": true,
}

// tokenize lowercases and splits text into BM25 terms. Latin-script runs
// split on word boundaries as usual; CJK ideographs/kana/hangul, which
// carry no word-separating whitespace, are instead emitted one rune at a
// time so a sentence like "自然言語処理" still yields multiple terms
// instead of one opaque token.
func tokenize(text string) []string {
	text = strings.ToLower(text)

	var tokens []string
	var buf []rune
	flush := func() {
		if len(buf) == 0 {
			return
		}
		w := string(buf)
		buf = buf[:0]
		if len(w) < 2 || stopWords[w] {
			return
		}
		tokens = append(tokens, w)
	}

	for _, r := range text {
		switch {
		case isCJK(r):
			flush()
			tokens = append(tokens, string(r))
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			buf = append(buf, r)
		default:
			flush()
		}
	}
	flush()
	return tokens
}

// isCJK reports whether r falls in a CJK Unified Ideographs, Hiragana,
// Katakana, or Hangul Syllables block.
func isCJK(r rune) bool {
	switch {
	case r >= 0x4E00 && r <= 0x9FFF: // CJK Unified Ideographs
		return true
	case r >= 0x3040 && r <= 0x309F: // Hiragana
		return true
	case r >= 0x30A0 && r <= 0x30FF: // Katakana
		return true
	case r >= 0xAC00 && r <= 0xD7A3: // Hangul Syllables
		return true
	default:
		return false
	}
}
