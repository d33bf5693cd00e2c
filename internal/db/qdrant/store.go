// Package qdrant implements db.Index over the Qdrant gRPC API.
package qdrant

import (
	"context"
	"crypto/tls"
	"fmt"
	"strconv"

	pb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"

	"github.com/kailas-cloud/vecrank/internal/db"
)

// Compile-time check: Store implements db.Index.
var _ db.Index = (*Store)(nil)

// Metric names the collection distance, which decides how scores map to distances.
type Metric string

// Supported collection metrics.
const (
	MetricCosine    Metric = "cosine"
	MetricDot       Metric = "dot"
	MetricEuclid    Metric = "euclid"
	MetricManhattan Metric = "manhattan"
)

// Config holds Qdrant connection parameters.
type Config struct {
	Host   string
	Port   int
	APIKey string
	UseTLS bool
	Metric Metric
}

// Store implements db.Index using Qdrant.
type Store struct {
	conn   *grpc.ClientConn
	points pb.PointsClient
	qdrant pb.QdrantClient
	apiKey string
	metric Metric
}

// NewStore creates a Qdrant-backed index. The connection is lazy; use Ping to verify.
func NewStore(cfg Config) (*Store, error) {
	if cfg.Host == "" {
		return nil, fmt.Errorf("host is required")
	}
	if cfg.Port <= 0 {
		cfg.Port = 6334
	}

	creds := insecure.NewCredentials()
	if cfg.UseTLS {
		creds = credentials.NewTLS(&tls.Config{MinVersion: tls.VersionTLS12})
	}

	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(creds))
	if err != nil {
		return nil, &db.Error{Op: db.OpDial, Err: err}
	}
	s, err := newStore(conn, cfg.APIKey, cfg.Metric)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	return s, nil
}

func newStore(conn *grpc.ClientConn, apiKey string, metric Metric) (*Store, error) {
	switch metric {
	case "":
		metric = MetricCosine
	case MetricCosine, MetricDot, MetricEuclid, MetricManhattan:
	default:
		return nil, fmt.Errorf("unsupported qdrant metric %q", metric)
	}
	return &Store{
		conn:   conn,
		points: pb.NewPointsClient(conn),
		qdrant: pb.NewQdrantClient(conn),
		apiKey: apiKey,
		metric: metric,
	}, nil
}

// Ping calls the Qdrant health check.
func (s *Store) Ping(ctx context.Context) error {
	if _, err := s.qdrant.HealthCheck(s.withAuth(ctx), &pb.HealthCheckRequest{}); err != nil {
		return &db.Error{Op: db.OpHealthCheck, Err: err}
	}
	return nil
}

// Close shuts down the gRPC connection.
func (s *Store) Close() {
	_ = s.conn.Close()
}

// SearchKNN runs Points.Search. Qdrant scores are converted to distances
// according to the collection metric so that lower always means nearer.
func (s *Store) SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error) {
	if q.Collection == "" {
		return nil, fmt.Errorf("collection is required")
	}
	if len(q.Vector) == 0 {
		return nil, fmt.Errorf("vector is required")
	}
	if q.K <= 0 {
		return nil, fmt.Errorf("k must be positive")
	}

	resp, err := s.points.Search(s.withAuth(ctx), &pb.SearchPoints{
		CollectionName: q.Collection,
		Vector:         q.Vector,
		Limit:          uint64(q.K),
		WithPayload:    &pb.WithPayloadSelector{SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true}},
	})
	if err != nil {
		return nil, &db.Error{Op: db.OpPointsSearch, Err: err}
	}

	entries := make([]db.SearchEntry, 0, len(resp.GetResult()))
	for _, pt := range resp.GetResult() {
		id, err := pointID(pt.GetId())
		if err != nil {
			return nil, &db.Error{Op: db.OpPointsSearch, Err: err}
		}
		fields := make(map[string]string, 1)
		if q.TextField != "" {
			fields[q.TextField] = pt.GetPayload()[q.TextField].GetStringValue()
		}
		entries = append(entries, db.SearchEntry{
			Key:      id,
			Distance: s.distance(pt.GetScore()),
			Fields:   fields,
		})
	}

	return &db.SearchResult{Total: len(entries), Entries: entries}, nil
}

func (s *Store) distance(score float32) float64 {
	switch s.metric {
	case MetricDot:
		return -float64(score)
	case MetricEuclid, MetricManhattan:
		return float64(score)
	default:
		return 1 - float64(score)
	}
}

func (s *Store) withAuth(ctx context.Context) context.Context {
	if s.apiKey == "" {
		return ctx
	}
	return metadata.AppendToOutgoingContext(ctx, "api-key", s.apiKey)
}

func pointID(id *pb.PointId) (string, error) {
	switch v := id.GetPointIdOptions().(type) {
	case *pb.PointId_Uuid:
		return v.Uuid, nil
	case *pb.PointId_Num:
		return strconv.FormatUint(v.Num, 10), nil
	default:
		return "", fmt.Errorf("%w: point without id", db.ErrUnexpectedReply)
	}
}
