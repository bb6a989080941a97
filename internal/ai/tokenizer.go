package ai

import (
	"fmt"

	"github.com/daulet/tokenizers"
)

// Tokenizer turns text into fixed-length BERT inputs.
type Tokenizer struct {
	tk *tokenizers.Tokenizer
}

func NewTokenizer(path string) (*Tokenizer, error) {
	tk, err := tokenizers.FromFile(path)
	if err != nil {
		return nil, fmt.Errorf("load tokenizer %s: %w", path, err)
	}
	return &Tokenizer{tk: tk}, nil
}

// Encode returns input ids and attention mask, both padded or truncated to maxLen.
func (t *Tokenizer) Encode(text string, maxLen int) ([]int64, []int64) {
	ids, _ := t.tk.Encode(text, true)
	return padIDs(ids, maxLen)
}

func (t *Tokenizer) Close() error {
	return t.tk.Close()
}

func padIDs(ids []uint32, maxLen int) ([]int64, []int64) {
	inputIDs := make([]int64, maxLen)
	mask := make([]int64, maxLen)
	for i := 0; i < len(ids) && i < maxLen; i++ {
		inputIDs[i] = int64(ids[i])
		mask[i] = 1
	}
	return inputIDs, mask
}
