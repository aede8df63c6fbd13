package core

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"organcore/internal/blob"
	"organcore/internal/infra/persistence/relational"
	"organcore/internal/infra/persistence/relational/testutil"
	"organcore/pkg/domain"
)

type recordingMetrics struct {
	mu  sync.Mutex
	ops map[string][]bool
}

func (r *recordingMetrics) Observe(_ context.Context, op string, success bool, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.ops == nil {
		r.ops = make(map[string][]bool)
	}
	r.ops[op] = append(r.ops[op], success)
}

func (r *recordingMetrics) outcomes(op string) []bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]bool(nil), r.ops[op]...)
}

func newTestService(t *testing.T, opts ...Option) *Service {
	t.Helper()
	db := testutil.OpenSQLite(t, relational.Options{})
	svc, err := NewService(db, blob.NewDocuments(blob.NewMemory()), opts...)
	require.NoError(t, err)
	return svc
}

func day(year int, month time.Month, d int) time.Time {
	return time.Date(year, month, d, 0, 0, 0, 0, time.UTC)
}

func ptr[T any](v T) *T { return &v }

func mustPerson(t *testing.T, svc *Service, first, last string) domain.Person {
	t.Helper()
	p, err := svc.People.Create(context.Background(), PersonDraft{FirstName: first, LastName: last})
	require.NoError(t, err)
	return p
}

func mustOrganization(t *testing.T, svc *Service, name string) domain.Organization {
	t.Helper()
	o, err := svc.Organizations.Create(context.Background(), OrganizationDraft{Name: name})
	require.NoError(t, err)
	return o
}

// concurrently runs every fn at once and returns their errors in order.
func concurrently(fns ...func() error) []error {
	errs := make([]error, len(fns))
	start := make(chan struct{})
	var wg sync.WaitGroup
	for i, fn := range fns {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			errs[i] = fn()
		}()
	}
	close(start)
	wg.Wait()
	return errs
}

// requireOneWinner asserts that exactly one error is nil and the rest are conflicts.
func requireOneWinner(t *testing.T, errs []error) {
	t.Helper()
	wins := 0
	for _, err := range errs {
		if err == nil {
			wins++
			continue
		}
		require.True(t, domain.IsConflict(err), "want conflict, got %v", err)
	}
	require.Equal(t, 1, wins, "errors: %v", errs)
}
