package db

// KNNQuery is the input for vector similarity search.
type KNNQuery struct {
	// Collection is the index, class or collection name, depending on the driver.
	Collection string
	// TextField is the stored field that holds the document text.
	TextField string
	Vector    []float32
	K         int
}

// SearchResult is the output of a search operation.
type SearchResult struct {
	Total   int
	Entries []SearchEntry
}

// SearchEntry is a single document hit from a search.
// Distance is index-native: lower means nearer.
type SearchEntry struct {
	Key      string
	Distance float64
	Fields   map[string]string
}
