package valkey

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/vecrank/internal/db"
)

const vectorScoreField = "__vector_score"

// SearchKNN runs a KNN vector similarity search via FT.SEARCH.
// Entries carry the raw __vector_score (cosine distance for COSINE indexes)
// and are returned nearest first.
func (s *Store) SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error) {
	if q.Collection == "" {
		return nil, fmt.Errorf("index name is required")
	}
	if len(q.Vector) == 0 {
		return nil, fmt.Errorf("vector is required")
	}
	if q.K <= 0 {
		return nil, fmt.Errorf("k must be positive")
	}

	queryStr := fmt.Sprintf("*=>[KNN %d @%s $BLOB]", q.K, s.vectorField)

	args := []string{q.Collection, queryStr}

	returnFields := []string{vectorScoreField}
	if q.TextField != "" {
		returnFields = append(returnFields, q.TextField)
	}
	args = append(args, "RETURN", strconv.Itoa(len(returnFields)))
	args = append(args, returnFields...)

	args = append(args,
		"LIMIT", "0", strconv.Itoa(q.K),
		"PARAMS", "2", "BLOB", vectorToBytes(q.Vector),
		"DIALECT", "2",
	)

	cmd := s.b().Arbitrary("FT.SEARCH").Args(args...).Build()
	raw, err := s.do(ctx, cmd).ToArray()
	if err != nil {
		if isUnknownIndex(err) {
			return nil, &db.Error{Op: db.OpSearch, Err: fmt.Errorf("%s: %w", q.Collection, db.ErrIndexNotFound)}
		}
		return nil, &db.Error{Op: db.OpSearch, Err: err}
	}

	return parseKNNResult(raw)
}

// --- Result parsing ---

func parseKNNResult(raw []rueidis.RedisMessage) (*db.SearchResult, error) {
	if len(raw) == 0 {
		return nil, &db.Error{Op: db.OpSearch, Err: db.ErrMissingResult}
	}

	total, err := raw[0].AsInt64()
	if err != nil {
		return nil, fmt.Errorf("parse total: %w", err)
	}
	if total == 0 {
		return &db.SearchResult{}, nil
	}

	entries := make([]db.SearchEntry, 0, len(raw)/2)
	// 2-stride: [total, key1, fields1, key2, fields2, ...]
	for i := 1; i+1 < len(raw); i += 2 {
		key, err := raw[i].ToString()
		if err != nil {
			return nil, unexpectedReply("key at position %d: %v", i, err)
		}

		fields, err := raw[i+1].ToArray()
		if err != nil {
			return nil, unexpectedReply("fields of %s: %v", key, err)
		}

		pairs, err := parseFieldPairs(fields)
		if err != nil {
			return nil, unexpectedReply("fields of %s: %v", key, err)
		}
		entry := db.SearchEntry{Key: key, Fields: pairs}

		scoreStr, ok := entry.Fields[vectorScoreField]
		if !ok {
			return nil, &db.Error{
				Op:  db.OpSearch,
				Err: fmt.Errorf("%w: %s missing for %s", db.ErrUnexpectedReply, vectorScoreField, key),
			}
		}
		dist, err := strconv.ParseFloat(scoreStr, 64)
		if err != nil {
			return nil, &db.Error{Op: db.OpSearch, Err: fmt.Errorf("parse %s: %w", vectorScoreField, err)}
		}
		entry.Distance = dist
		delete(entry.Fields, vectorScoreField)

		entries = append(entries, entry)
	}

	// valkey-search does not guarantee KNN ordering without SORTBY
	slices.SortStableFunc(entries, func(a, b db.SearchEntry) int {
		switch {
		case a.Distance < b.Distance:
			return -1
		case a.Distance > b.Distance:
			return 1
		}
		return 0
	})

	return &db.SearchResult{Total: int(total), Entries: entries}, nil
}

func parseFieldPairs(fields []rueidis.RedisMessage) (map[string]string, error) {
	if len(fields)%2 != 0 {
		return nil, fmt.Errorf("odd field list length %d", len(fields))
	}
	m := make(map[string]string, len(fields)/2)
	for j := 0; j < len(fields); j += 2 {
		name, err := fields[j].ToString()
		if err != nil {
			return nil, fmt.Errorf("field name: %w", err)
		}
		value, err := fields[j+1].ToString()
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", name, err)
		}
		m[name] = value
	}
	return m, nil
}

func unexpectedReply(format string, args ...any) error {
	return &db.Error{Op: db.OpSearch, Err: fmt.Errorf("%w: %s", db.ErrUnexpectedReply, fmt.Sprintf(format, args...))}
}

// isUnknownIndex reports whether the server rejected the query for a missing index.
func isUnknownIndex(err error) bool {
	re, ok := rueidis.IsRedisErr(err)
	if !ok {
		return false
	}
	msg := strings.ToLower(re.Error())
	return strings.Contains(msg, "no such index") || strings.Contains(msg, "unknown index")
}

func vectorToBytes(v []float32) string {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return string(buf)
}
