package agent

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ashureev/jobassist/internal/lookup"
)

var (
	testLoc = time.FixedZone("CST", -6*60*60)
	// Thursday.
	testNow = time.Date(2026, time.October, 15, 10, 30, 0, 0, testLoc)
)

type fakeJobs struct {
	mu      sync.Mutex
	pages   map[int]lookup.Page
	listErr error
	records map[string]lookup.JobRecord
	getErr  error
	gets    []string
}

func (f *fakeJobs) ListAvailable(_ context.Context, offset int) (lookup.Page, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return lookup.Page{}, f.listErr
	}
	return f.pages[offset], nil
}

func (f *fakeJobs) GetByID(_ context.Context, jobID string) (lookup.JobRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gets = append(f.gets, jobID)
	if f.getErr != nil {
		return lookup.JobRecord{}, f.getErr
	}
	rec, ok := f.records[jobID]
	if !ok {
		return lookup.JobRecord{}, lookup.ErrJobNotFound
	}
	return rec, nil
}

func newFakeJobs() *fakeJobs {
	next := 2
	return &fakeJobs{
		pages: map[int]lookup.Page{
			0: {
				Items: []lookup.Summary{{JobID: "151", Title: "Cajero"}, {JobID: "152", Title: "Almacenista"}},
				Pagination: lookup.Pagination{
					Total: 3, Offset: 0, Limit: 2, HasMore: true, NextOffset: &next,
				},
			},
			2: {
				Items:      []lookup.Summary{{JobID: "153", Title: "Chofer"}},
				Pagination: lookup.Pagination{Total: 3, Offset: 2, Limit: 2},
			},
		},
		records: map[string]lookup.JobRecord{
			"151": {
				IDPuesto:       lookup.Present("151"),
				Title:          lookup.Present("Cajero"),
				Company:        lookup.Present("Tiendas del Centro"),
				Oficinas:       lookup.Present("Monterrey"),
				SalaryMin:      lookup.Present("9000"),
				InterviewDays:  lookup.Present("Lunes, Miércoles"),
				InterviewTimes: lookup.Present("10:00-10:30, 15:00 - 15:30"),
			},
			"152": {
				Title:             lookup.Present("Almacenista"),
				DescripcionPuesto: lookup.Present("Control de inventario"),
			},
		},
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestRouter(t *testing.T, jobs *fakeJobs) *Router {
	t.Helper()
	logger := discardLogger()
	reg, err := NewRegistry(
		NewDiscovery(jobs, logger),
		NewJobInfo(jobs, logger),
		NewApplication(jobs, DefaultCalendar(testLoc), logger),
	)
	require.NoError(t, err)
	r := NewRouter(reg, logger, nil)
	r.now = func() time.Time { return testNow }
	return r
}
