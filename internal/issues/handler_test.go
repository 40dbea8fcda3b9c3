package issues

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	unresolved []Issue
	resolved   []Issue
	resolveErr error
	resolvedID int64
}

func (f *fakeStore) Unresolved(ctx context.Context) ([]Issue, error) { return f.unresolved, nil }
func (f *fakeStore) Resolved(ctx context.Context) ([]Issue, error)   { return f.resolved, nil }
func (f *fakeStore) All(ctx context.Context) ([]Issue, error) {
	return append(append([]Issue{}, f.unresolved...), f.resolved...), nil
}

func (f *fakeStore) Resolve(ctx context.Context, id int64) error {
	if f.resolveErr != nil {
		return f.resolveErr
	}
	f.resolvedID = id
	return nil
}

func newTestRouter(store *fakeStore) http.Handler {
	r := chi.NewRouter()
	r.Route("/issues", NewHandler(nil, store).MountRoutes)
	return r
}

func sampleIssue() Issue {
	productID := int64(7)
	return Issue{
		ID:           1,
		ERPProductID: &productID,
		Barcode:      "869001",
		BranchName:   "Merkez",
		Type:         TypeUnpriced,
		Message:      "Fiyat sıfır veya negatif: 0.00",
		CreatedAt:    time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestListDefaultsToUnresolved(t *testing.T) {
	store := &fakeStore{unresolved: []Issue{sampleIssue()}}
	rec := httptest.NewRecorder()
	newTestRouter(store).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/issues", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "869001")
	require.Contains(t, rec.Body.String(), TypeUnpriced)
}

func TestListRejectsUnknownState(t *testing.T) {
	rec := httptest.NewRecorder()
	newTestRouter(&fakeStore{}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/issues?state=bogus", nil))
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestResolve(t *testing.T) {
	store := &fakeStore{}
	rec := httptest.NewRecorder()
	newTestRouter(store).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/issues/42/resolve", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, int64(42), store.resolvedID)
}

func TestResolveMissingIssue(t *testing.T) {
	store := &fakeStore{resolveErr: ErrIssueNotFound}
	rec := httptest.NewRecorder()
	newTestRouter(store).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/issues/42/resolve", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestExportCSV(t *testing.T) {
	store := &fakeStore{unresolved: []Issue{sampleIssue()}}
	rec := httptest.NewRecorder()
	newTestRouter(store).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/issues/export.csv", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "text/csv; charset=utf-8", rec.Header().Get("Content-Type"))
	lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\r\n")
	require.Len(t, lines, 2)
	require.Contains(t, lines[0], "barcode")
	require.Contains(t, lines[1], "869001")
	require.Contains(t, lines[1], "7")
}
