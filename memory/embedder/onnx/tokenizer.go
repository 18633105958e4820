package onnx

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// Special token ids of the BERT uncased vocabulary.
const (
	unkID = 100
	clsID = 101
	sepID = 102
)

// SequenceLength is the fixed model input length for MiniLM-class models.
const SequenceLength = 128

// Tokenizer performs lowercase BERT WordPiece tokenization.
type Tokenizer struct {
	vocab map[string]int
}

// LoadTokenizer reads the vocabulary from a HuggingFace tokenizer.json.
func LoadTokenizer(path string) (*Tokenizer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("onnx: read tokenizer: %w", err)
	}

	var file struct {
		Model struct {
			Vocab map[string]int `json:"vocab"`
		} `json:"model"`
	}
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("onnx: parse tokenizer: %w", err)
	}
	if len(file.Model.Vocab) == 0 {
		return nil, fmt.Errorf("onnx: tokenizer %s has an empty vocabulary", path)
	}

	return &Tokenizer{vocab: file.Model.Vocab}, nil
}

// Encoding is a padded model input.
type Encoding struct {
	InputIDs      []int64
	AttentionMask []int64
	TokenTypeIDs  []int64
}

// Encode wraps the tokens of text in [CLS] ... [SEP] and pads to maxLen.
func (t *Tokenizer) Encode(text string, maxLen int) Encoding {
	enc := Encoding{
		InputIDs:      make([]int64, maxLen),
		AttentionMask: make([]int64, maxLen),
		TokenTypeIDs:  make([]int64, maxLen),
	}

	ids := t.Tokenize(text)
	if len(ids) > maxLen-2 {
		ids = ids[:maxLen-2]
	}

	enc.InputIDs[0] = clsID
	copy(enc.InputIDs[1:], ids)
	enc.InputIDs[len(ids)+1] = sepID
	for i := 0; i < len(ids)+2; i++ {
		enc.AttentionMask[i] = 1
	}
	return enc
}

// Tokenize converts text to vocabulary ids.
func (t *Tokenizer) Tokenize(text string) []int64 {
	var ids []int64
	for _, word := range strings.Fields(strings.ToLower(text)) {
		word = strings.Trim(word, ".,!?;:\"'()")
		if word == "" {
			continue
		}
		if id, ok := t.vocab[word]; ok {
			ids = append(ids, int64(id))
			continue
		}
		ids = append(ids, t.wordPiece(word)...)
	}
	return ids
}

// wordPiece splits word greedily into the longest known prefixes, marking
// continuations with "##". Unmatched characters map to [UNK].
func (t *Tokenizer) wordPiece(word string) []int64 {
	var ids []int64
	start := 0
	for start < len(word) {
		end := len(word)
		matched := false
		for end > start {
			piece := word[start:end]
			if start > 0 {
				piece = "##" + piece
			}
			if id, ok := t.vocab[piece]; ok {
				ids = append(ids, int64(id))
				start = end
				matched = true
				break
			}
			end--
		}
		if !matched {
			ids = append(ids, unkID)
			start++
		}
	}
	return ids
}
