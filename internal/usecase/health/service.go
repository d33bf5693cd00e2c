package health

import (
	"context"
	"sync"
	"time"
)

// Status represents the aggregated health status.
type Status string

const (
	// Healthy indicates all components are operational.
	Healthy Status = "ok"
	// Degraded indicates at least one failing component.
	Degraded Status = "degraded"
)

// CheckResult represents an individual component health check outcome.
type CheckResult string

const (
	// CheckOK indicates a passing health check.
	CheckOK CheckResult = "ok"
	// CheckError indicates a failing health check.
	CheckError CheckResult = "error"
)

// Component names reported in Report.Checks.
const (
	ComponentVectorIndex = "vector_index"
	ComponentEmbedding   = "embedding"
)

// Report aggregates health check results.
// Errors holds the failure messages of failing components for logging; it is not exposed over HTTP.
type Report struct {
	Status Status
	Checks map[string]CheckResult
	Errors map[string]string
}

// Service coordinates health checks.
type Service struct {
	index     IndexPinger
	embedding EmbeddingChecker
	timeout   time.Duration
}

// New creates a Service. embedding can be nil. A zero timeout uses the caller's deadline.
func New(index IndexPinger, embedding EmbeddingChecker, timeout time.Duration) *Service {
	return &Service{index: index, embedding: embedding, timeout: timeout}
}

// Check runs the component checks concurrently.
func (s *Service) Check(ctx context.Context) Report {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	r := Report{Checks: make(map[string]CheckResult), Errors: make(map[string]string)}
	var mu sync.Mutex
	record := func(name string, err error) {
		mu.Lock()
		defer mu.Unlock()
		if err != nil {
			r.Checks[name] = CheckError
			r.Errors[name] = err.Error()
			return
		}
		r.Checks[name] = CheckOK
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		record(ComponentVectorIndex, s.index.Ping(ctx))
	}()
	if s.embedding != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			record(ComponentEmbedding, s.embedding.HealthCheck(ctx))
		}()
	}
	wg.Wait()

	r.Status = Healthy
	if len(r.Errors) > 0 {
		r.Status = Degraded
	}
	return r
}
