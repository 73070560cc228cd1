package domain

import (
	"encoding/json"
	"fmt"
	"sort"
)

// EncodingBuilder assigns positive integer codes to labels in first-seen order.
// It is not safe for concurrent use; Build returns an immutable snapshot.
type EncodingBuilder struct {
	codes  map[string]int
	labels []string
}

func NewEncodingBuilder() *EncodingBuilder {
	return &EncodingBuilder{codes: make(map[string]int)}
}

// Code returns the label's code, assigning the next one on first sight.
func (b *EncodingBuilder) Code(label string) int {
	if c, ok := b.codes[label]; ok {
		return c
	}
	b.labels = append(b.labels, label)
	c := len(b.labels)
	b.codes[label] = c
	return c
}

func (b *EncodingBuilder) Build() EncodingMap {
	codes := make(map[string]int, len(b.codes))
	for k, v := range b.codes {
		codes[k] = v
	}
	labels := make([]string, len(b.labels))
	copy(labels, b.labels)
	return EncodingMap{codes: codes, labels: labels}
}

// EncodingMap is an immutable label-to-code table. Codes are only meaningful
// together with the metadata of the model they were trained with.
type EncodingMap struct {
	codes  map[string]int
	labels []string // labels[i] has code i+1
}

// NewEncodingMap builds a map whose codes follow the order of labels.
func NewEncodingMap(labels ...string) EncodingMap {
	b := NewEncodingBuilder()
	for _, l := range labels {
		b.Code(l)
	}
	return b.Build()
}

// Encode returns the label's code, else the code of "Unknown", else 0.
func (m EncodingMap) Encode(label string) float64 {
	if c, ok := m.codes[label]; ok {
		return float64(c)
	}
	if c, ok := m.codes[UnknownLabel]; ok {
		return float64(c)
	}
	return 0
}

// Decode is the reverse lookup of Encode for known codes.
func (m EncodingMap) Decode(code int) (string, bool) {
	if code < 1 || code > len(m.labels) {
		return "", false
	}
	return m.labels[code-1], true
}

// Labels returns the labels in code order.
func (m EncodingMap) Labels() []string {
	out := make([]string, len(m.labels))
	copy(out, m.labels)
	return out
}

func (m EncodingMap) Len() int { return len(m.labels) }

func (m EncodingMap) MarshalJSON() ([]byte, error) {
	if m.codes == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(m.codes)
}

func (m *EncodingMap) UnmarshalJSON(data []byte) error {
	var codes map[string]int
	if err := json.Unmarshal(data, &codes); err != nil {
		return err
	}
	type entry struct {
		label string
		code  int
	}
	entries := make([]entry, 0, len(codes))
	for l, c := range codes {
		entries = append(entries, entry{label: l, code: c})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].code < entries[j].code })

	labels := make([]string, len(entries))
	for i, e := range entries {
		if e.code != i+1 {
			return fmt.Errorf("encoding map codes must be contiguous from 1: label %q has code %d", e.label, e.code)
		}
		labels[i] = e.label
	}
	if codes == nil {
		codes = map[string]int{}
	}
	m.codes = codes
	m.labels = labels
	return nil
}
