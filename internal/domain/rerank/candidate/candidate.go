package candidate

// Candidate is a single hit returned by the vector index.
type Candidate struct {
	id       string
	text     string
	distance float64
}

// New creates a candidate. distance is the index-native score, lower is nearer.
func New(id, text string, distance float64) Candidate {
	return Candidate{id: id, text: text, distance: distance}
}

// ID returns the opaque index identifier.
func (c Candidate) ID() string { return c.id }

// Text returns the candidate text.
func (c Candidate) Text() string { return c.text }

// Distance returns the index-native distance.
func (c Candidate) Distance() float64 { return c.distance }

// Scored is a candidate with a recomputed similarity to the query.
type Scored struct {
	Candidate
	similarity float64
}

// NewScored attaches a similarity score to a candidate.
func NewScored(c Candidate, similarity float64) Scored {
	return Scored{Candidate: c, similarity: similarity}
}

// Similarity returns the recomputed similarity.
func (s Scored) Similarity() float64 { return s.similarity }

// Best returns the first candidate with the maximum similarity.
// Ties keep the earliest element, so index order breaks them.
// ok is false for an empty slice.
func Best(scored []Scored) (best Scored, ok bool) {
	for i, s := range scored {
		if i == 0 || s.similarity > best.similarity {
			best = s
			ok = true
		}
	}
	return best, ok
}

// Result is the rounded response view of the best candidate.
type Result struct {
	ID         string
	Text       string
	Distance   float64
	Similarity float64
}
