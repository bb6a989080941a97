// Package vectorindex encodes embeddings and ranks them by cosine similarity.
//
// Ranking is an exhaustive scan: every candidate is scored and the results are
// stable-sorted, so equal scores keep their input order.
package vectorindex

import (
	"encoding/binary"
	"math"
	"sort"
)

// Encode lays v out as little-endian IEEE-754 float32 values.
func Encode(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(f))
	}
	return buf
}

// Decode is the inverse of Encode. A trailing partial value is ignored.
func Decode(b []byte) []float32 {
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[4*i:]))
	}
	return v
}

// Cosine returns dot(a,b)/(|a||b|), or 0 when the vectors differ in length,
// are empty, or either has zero norm.
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		av := float64(a[i])
		bv := float64(b[i])
		dot += av * bv
		na += av * av
		nb += bv * bv
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

type Candidate struct {
	ID     string
	Vector []float32
}

type Match struct {
	ID    string
	Score float64
}

// Rank scores every candidate against query and returns the best k.
// k <= 0 returns every candidate.
func Rank(query []float32, candidates []Candidate, k int) []Match {
	matches := make([]Match, len(candidates))
	for i, c := range candidates {
		matches[i] = Match{ID: c.ID, Score: Cosine(query, c.Vector)}
	}
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})
	if k > 0 && len(matches) > k {
		matches = matches[:k]
	}
	return matches
}
