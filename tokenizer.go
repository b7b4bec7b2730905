package ember

import (
	"strings"
	"unicode"
)

// Token is one (token_text, position, offset) triple a Tokenizer yields.
type Token struct {
	Text        string
	Position    uint32
	StartOffset uint32
	EndOffset   uint32
}

// Tokenizer turns field text into a token stream. SimpleTokenizer below is
// the one concrete, standalone-usable implementation this engine ships so
// it is embeddable without a separate analysis library.
type Tokenizer interface {
	// Tokenize returns the full, restartable token sequence for text.
	Tokenize(text string) []Token
}

// SimpleTokenizer splits on runs of non-alphanumeric runes and lowercases
// each token.
type SimpleTokenizer struct{}

func (SimpleTokenizer) Tokenize(text string) []Token {
	var tokens []Token
	runes := []rune(text)
	var position uint32
	i := 0
	for i < len(runes) {
		if !isTokenRune(runes[i]) {
			i++
			continue
		}
		start := i
		for i < len(runes) && isTokenRune(runes[i]) {
			i++
		}
		tokens = append(tokens, Token{
			Text:        strings.ToLower(string(runes[start:i])),
			Position:    position,
			StartOffset: uint32(start),
			EndOffset:   uint32(i),
		})
		position++
	}
	return tokens
}

func isTokenRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}
