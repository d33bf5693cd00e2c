// Package weaviate implements db.Index over the Weaviate GraphQL API.
package weaviate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/graphql"

	"github.com/kailas-cloud/vecrank/internal/db"
)

// Compile-time check: Store implements db.Index.
var _ db.Index = (*Store)(nil)

// maxErrorBody bounds how much of a failed response is quoted in errors.
const maxErrorBody = 512

// identRegex matches GraphQL names accepted for class and property names.
var identRegex = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Config holds Weaviate connection parameters.
// An empty APIKey selects the unauthenticated client.
type Config struct {
	URL     string
	APIKey  string
	Timeout time.Duration
}

// Store implements db.Index via Weaviate nearVector GraphQL queries.
type Store struct {
	client *weaviate.Client
	http   *http.Client
}

// NewStore creates a Weaviate store. The http.Client is shared by all requests.
func NewStore(cfg Config) (*Store, error) {
	u, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse weaviate url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("weaviate url must be absolute, got %q", cfg.URL)
	}

	httpClient := &http.Client{Timeout: cfg.Timeout}
	wcfg := weaviate.Config{
		Host:             u.Host,
		Scheme:           u.Scheme,
		ConnectionClient: httpClient,
	}
	if cfg.APIKey != "" {
		wcfg.Headers = map[string]string{"Authorization": "Bearer " + cfg.APIKey}
	}

	client, err := weaviate.NewClient(wcfg)
	if err != nil {
		return nil, fmt.Errorf("create weaviate client: %w", err)
	}
	return &Store{client: client, http: httpClient}, nil
}

// Ping checks the readiness endpoint.
func (s *Store) Ping(ctx context.Context) error {
	ready, err := s.client.Misc().ReadyChecker().Do(ctx)
	if err != nil {
		return &db.Error{Op: db.OpReady, Err: err}
	}
	if !ready {
		return &db.Error{Op: db.OpReady, Err: errors.New("not ready")}
	}
	return nil
}

// Close releases idle connections.
func (s *Store) Close() {
	s.http.CloseIdleConnections()
}

// SearchKNN runs a nearVector Get query against a class.
// Entries are keyed by the object UUID and carry _additional.distance.
func (s *Store) SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error) {
	if !identRegex.MatchString(q.Collection) {
		return nil, fmt.Errorf("invalid class name %q", q.Collection)
	}
	if !identRegex.MatchString(q.TextField) {
		return nil, fmt.Errorf("invalid text field %q", q.TextField)
	}
	if len(q.Vector) == 0 {
		return nil, fmt.Errorf("vector is required")
	}
	if q.K <= 0 {
		return nil, fmt.Errorf("k must be positive")
	}

	gql := s.client.GraphQL()
	resp, err := gql.Get().
		WithClassName(q.Collection).
		WithFields(
			graphql.Field{Name: q.TextField},
			graphql.Field{Name: "_additional", Fields: []graphql.Field{{Name: "id"}, {Name: "distance"}}},
		).
		WithNearVector(gql.NearVectorArgBuilder().WithVector(q.Vector)).
		WithLimit(q.K).
		Do(ctx)
	if err != nil {
		return nil, &db.Error{Op: db.OpGraphQL, Err: err}
	}

	// Re-encode the decoded response so hits are read with the same path
	// expressions regardless of the class name.
	raw, err := json.Marshal(resp)
	if err != nil {
		return nil, &db.Error{Op: db.OpGraphQL, Err: fmt.Errorf("%w: %v", db.ErrUnexpectedReply, err)}
	}
	return parseGetResult(raw, q.Collection, q.TextField)
}

func parseGetResult(raw []byte, class, textField string) (*db.SearchResult, error) {
	if !gjson.ValidBytes(raw) {
		return nil, &db.Error{Op: db.OpGraphQL, Err: fmt.Errorf("%w: invalid json: %s", db.ErrUnexpectedReply, truncate(raw))}
	}
	doc := gjson.ParseBytes(raw)

	// GraphQL errors fail the query even when partial data is present.
	if errs := doc.Get("errors"); errs.IsArray() && len(errs.Array()) > 0 {
		msgs := make([]string, 0, len(errs.Array()))
		for _, e := range errs.Array() {
			msgs = append(msgs, e.Get("message").String())
		}
		return nil, &db.Error{Op: db.OpGraphQL, Err: fmt.Errorf("graphql: %s", strings.Join(msgs, "; "))}
	}

	hits := doc.Get("data.Get." + class)
	if !hits.Exists() || !hits.IsArray() {
		return nil, &db.Error{Op: db.OpGraphQL, Err: fmt.Errorf("%w: data.Get.%s", db.ErrMissingResult, class)}
	}

	items := hits.Array()
	entries := make([]db.SearchEntry, 0, len(items))
	for i, hit := range items {
		id := hit.Get("_additional.id")
		dist := hit.Get("_additional.distance")
		if id.Type != gjson.String || dist.Type != gjson.Number {
			return nil, &db.Error{
				Op:  db.OpGraphQL,
				Err: fmt.Errorf("%w: hit %d lacks _additional id/distance", db.ErrUnexpectedReply, i),
			}
		}
		entries = append(entries, db.SearchEntry{
			Key:      id.String(),
			Distance: dist.Float(),
			Fields:   map[string]string{textField: hit.Get(textField).String()},
		})
	}

	return &db.SearchResult{Total: len(entries), Entries: entries}, nil
}

func truncate(b []byte) string {
	s := strings.TrimSpace(string(b))
	if len(s) > maxErrorBody {
		return s[:maxErrorBody] + "..."
	}
	return s
}
