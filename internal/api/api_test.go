package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/starford/journal/internal/clock"
	"github.com/starford/journal/internal/journal"
	"github.com/starford/journal/internal/journalservice"
	"github.com/starford/journal/internal/storage"
	"github.com/starford/journal/internal/testutil"
)

var today = journal.MustDate(2023, time.March, 8)

// testEnv sets up a temp journal, SQLite catalog, service, and router for testing.
// An empty authToken means disabled mode.
func testEnv(t *testing.T, authToken string) (*journalservice.Service, http.Handler) {
	t.Helper()
	svc, router, _ := testEnvWithStore(t, authToken != "", authToken, nil)
	return svc, router
}

func testEnvWithStore(t *testing.T, authEnabled bool, authToken string, sseHandler http.Handler) (*journalservice.Service, http.Handler, *storage.FS) {
	t.Helper()
	_, store := testutil.TestJournalRoot(t)
	db := testutil.TestDB(t)

	svc := journalservice.NewService(store,
		journalservice.WithCatalog(db),
		journalservice.WithClock(clock.Fixed(today)),
	)
	router := NewRouter(svc, authEnabled, authToken, sseHandler, Defaults{Order: journal.Descending})
	return svc, router, store
}

// seeded returns a router over three entries with the catalog synced.
func seeded(t *testing.T) http.Handler {
	t.Helper()
	svc, router, store := testEnvWithStore(t, false, "", nil)
	testutil.WriteEntry(t, store, "2023/03/2023-03-05.md", "---\ntags: [work]\n---\n# March 5, 2023\nNotes")
	testutil.WriteEntry(t, store, "2023/03/2023-03-06.md", "---\ntags: [life]\nreadme: again\n---\n# March 6, 2023\n")
	testutil.WriteEntry(t, store, "2023/03/2023-03-07.md", "---\ntags: [Work, travel]\n---\n# March 7, 2023\n")
	if err := svc.Sync(context.Background()); err != nil {
		t.Fatal(err)
	}
	return router
}

func do(t *testing.T, router http.Handler, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != nil {
		data, _ := json.Marshal(body)
		req = httptest.NewRequest(method, target, bytes.NewReader(data))
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func listPaths(t *testing.T, w *httptest.ResponseRecorder) []string {
	t.Helper()
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var resp EntryListResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Total != len(resp.Entries) {
		t.Errorf("total = %d, entries = %d", resp.Total, len(resp.Entries))
	}
	out := make([]string, len(resp.Entries))
	for i, e := range resp.Entries {
		out[i] = e.Path
	}
	return out
}

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestCreateAndGetEntry(t *testing.T) {
	_, router := testEnv(t, "")

	w := do(t, router, http.MethodPost, "/entries", CreateEntryRequest{Date: "2023-03-05", Tags: []string{"work"}})
	if w.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body = %s", w.Code, w.Body.String())
	}
	var created EntryDetail
	_ = json.Unmarshal(w.Body.Bytes(), &created)
	if created.Path != "2023/03/2023-03-05.md" || created.Heading != "March 5, 2023" {
		t.Errorf("created = %+v", created)
	}

	w = do(t, router, http.MethodGet, "/entries/2023/03/2023-03-05.md", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get status = %d", w.Code)
	}
	var entry EntryDetail
	_ = json.Unmarshal(w.Body.Bytes(), &entry)
	if len(entry.Tags) != 1 || entry.Tags[0] != "work" {
		t.Errorf("tags = %v", entry.Tags)
	}

	// Bare date and encoded slashes resolve to the same file.
	for _, target := range []string{"/entries/2023-03-05", "/entries/2023%2F03%2F2023-03-05.md"} {
		w = do(t, router, http.MethodGet, target, nil)
		if w.Code != http.StatusOK {
			t.Errorf("GET %s = %d", target, w.Code)
		}
	}
}

func TestCreateEntry_DefaultsToToday(t *testing.T) {
	_, router := testEnv(t, "")
	w := do(t, router, http.MethodPost, "/entries", CreateEntryRequest{})
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var created EntryDetail
	_ = json.Unmarshal(w.Body.Bytes(), &created)
	if created.Date != "2023-03-08" {
		t.Errorf("date = %q", created.Date)
	}
}

func TestCreateEntry_Duplicate(t *testing.T) {
	_, router := testEnv(t, "")
	body := CreateEntryRequest{Date: "2023-03-05"}
	if w := do(t, router, http.MethodPost, "/entries", body); w.Code != http.StatusCreated {
		t.Fatalf("first create = %d", w.Code)
	}
	if w := do(t, router, http.MethodPost, "/entries", body); w.Code != http.StatusConflict {
		t.Errorf("duplicate create = %d, want 409", w.Code)
	}
}

func TestCreateEntry_BadRequests(t *testing.T) {
	_, router := testEnv(t, "")
	cases := map[string]CreateEntryRequest{
		"bad date":    {Date: "05/03/2023"},
		"empty tag":   {Date: "2023-03-05", Tags: []string{""}},
		"blank tag":   {Date: "2023-03-05", Tags: []string{"   "}},
		"invalid day": {Date: "2023-02-30"},
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			if w := do(t, router, http.MethodPost, "/entries", body); w.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400 (body %s)", w.Code, w.Body.String())
			}
		})
	}

	req := httptest.NewRequest(http.MethodPost, "/entries", bytes.NewReader([]byte("{")))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("invalid JSON = %d, want 400", w.Code)
	}
}

func TestGetEntry_NotFound(t *testing.T) {
	_, router := testEnv(t, "")
	if w := do(t, router, http.MethodGet, "/entries/2023/03/2023-03-05.md", nil); w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestGetEntry_EscapingPath(t *testing.T) {
	_, router := testEnv(t, "")
	if w := do(t, router, http.MethodGet, "/entries/..%2F..%2Fetc%2Fpasswd.md", nil); w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestListEntries(t *testing.T) {
	router := seeded(t)

	got := listPaths(t, do(t, router, http.MethodGet, "/entries", nil))
	want := []string{"2023/03/2023-03-07.md", "2023/03/2023-03-06.md", "2023/03/2023-03-05.md"}
	if !equal(got, want) {
		t.Errorf("default = %v, want %v", got, want)
	}

	got = listPaths(t, do(t, router, http.MethodGet, "/entries?sort=ascending&limit=1", nil))
	if !equal(got, []string{"2023/03/2023-03-05.md"}) {
		t.Errorf("ascending limit 1 = %v", got)
	}

	got = listPaths(t, do(t, router, http.MethodGet, "/entries?tags=work&sort=asc", nil))
	if !equal(got, []string{"2023/03/2023-03-05.md", "2023/03/2023-03-07.md"}) {
		t.Errorf("tags=work = %v", got)
	}

	got = listPaths(t, do(t, router, http.MethodGet, "/entries?from=2023-03-06&to=2023-03-06", nil))
	if !equal(got, []string{"2023/03/2023-03-06.md"}) {
		t.Errorf("single day = %v", got)
	}

	got = listPaths(t, do(t, router, http.MethodGet, "/entries?tags=life,travel&from=2023-03-06", nil))
	if len(got) != 2 {
		t.Errorf("life,travel = %v", got)
	}
}

func TestListEntries_BadQuery(t *testing.T) {
	router := seeded(t)
	for _, target := range []string{
		"/entries?from=yesterday",
		"/entries?limit=-1",
		"/entries?sort=sideways",
		"/entries?from=2023-03-07&to=2023-03-06",
	} {
		if w := do(t, router, http.MethodGet, target, nil); w.Code != http.StatusBadRequest {
			t.Errorf("GET %s = %d, want 400", target, w.Code)
		}
	}
}

func TestRenameTag_SingleEntry(t *testing.T) {
	router := seeded(t)

	w := do(t, router, http.MethodPost, "/tags/rename", RenameTagRequest{Path: "2023/03/2023-03-05.md", Old: "work", New: "job"})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var resp TagRenameResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if !equal(resp.Paths, []string{"2023/03/2023-03-05.md"}) {
		t.Errorf("paths = %v", resp.Paths)
	}

	w = do(t, router, http.MethodPost, "/tags/rename", RenameTagRequest{Path: "2023/03/2023-03-05.md", Old: "work", New: "job"})
	if w.Code != http.StatusNotFound {
		t.Errorf("rename of absent tag = %d, want 404", w.Code)
	}
}

func TestRenameTag_Everywhere(t *testing.T) {
	router := seeded(t)

	w := do(t, router, http.MethodPost, "/tags/rename", RenameTagRequest{Old: "work", New: "job"})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var resp TagRenameResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	// 2023-03-07 spells it "Work" and is left alone.
	if !equal(resp.Paths, []string{"2023/03/2023-03-05.md"}) {
		t.Errorf("paths = %v", resp.Paths)
	}

	got := listPaths(t, do(t, router, http.MethodGet, "/entries?tags=job", nil))
	if !equal(got, []string{"2023/03/2023-03-05.md"}) {
		t.Errorf("tags=job = %v", got)
	}
}

func TestRenameTag_Validation(t *testing.T) {
	router := seeded(t)
	if w := do(t, router, http.MethodPost, "/tags/rename", RenameTagRequest{New: "job"}); w.Code != http.StatusBadRequest {
		t.Errorf("missing old = %d, want 400", w.Code)
	}
	if w := do(t, router, http.MethodPost, "/tags/rename", RenameTagRequest{Old: "work", New: "travel", Path: "2023/03/2023-03-07.md"}); w.Code != http.StatusNotFound {
		t.Errorf("case-mismatched old = %d, want 404", w.Code)
	}
}

func TestListTags(t *testing.T) {
	router := seeded(t)
	w := do(t, router, http.MethodGet, "/tags", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var resp TagListResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if len(resp.Tags) != 3 || resp.Tags[0].Tag != "work" || resp.Tags[0].Count != 2 {
		t.Errorf("tags = %+v", resp.Tags)
	}
}

func TestListTags_Empty(t *testing.T) {
	_, router := testEnv(t, "")
	w := do(t, router, http.MethodGet, "/tags", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if !bytes.Contains(w.Body.Bytes(), []byte(`"tags":[]`)) {
		t.Errorf("body = %s, want empty array", w.Body.String())
	}
}

func TestReadme(t *testing.T) {
	router := seeded(t)
	got := listPaths(t, do(t, router, http.MethodGet, "/readme", nil))
	if !equal(got, []string{"2023/03/2023-03-06.md"}) {
		t.Errorf("readme = %v", got)
	}
}

func TestAuthMiddleware_ValidToken(t *testing.T) {
	_, router := testEnv(t, "secret123")

	body, _ := json.Marshal(CreateEntryRequest{Date: "2023-03-05"})
	req := httptest.NewRequest(http.MethodPost, "/entries", bytes.NewReader(body))
	req.Header.Set("Authorization", "Bearer secret123")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusCreated {
		t.Errorf("authed create = %d, want 201", w.Code)
	}
}

func TestAuthMiddleware_MissingToken(t *testing.T) {
	_, router := testEnv(t, "secret123")

	req := httptest.NewRequest(http.MethodGet, "/entries", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("unauthed = %d, want 401", w.Code)
	}
}

func TestAuthMiddleware_WrongToken(t *testing.T) {
	_, router := testEnv(t, "secret123")

	req := httptest.NewRequest(http.MethodGet, "/entries", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("wrong token = %d, want 401", w.Code)
	}
}

func TestAuthMiddleware_Disabled(t *testing.T) {
	_, router := testEnv(t, "")

	req := httptest.NewRequest(http.MethodGet, "/entries", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("disabled mode = %d, want 200", w.Code)
	}
}

// SSE endpoint auth tests.

// blockingSSE writes headers and blocks until the request context is done.
var blockingSSE = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.WriteHeader(http.StatusOK)
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
	<-r.Context().Done()
})

func TestSSEEvents_AuthProtected(t *testing.T) {
	_, router, _ := testEnvWithStore(t, true, "secret", blockingSSE)

	req := httptest.NewRequest(http.MethodGet, "/events", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("SSE no auth = %d, want 401", w.Code)
	}
}

func TestSSEEvents_ValidToken(t *testing.T) {
	_, router, _ := testEnvWithStore(t, true, "tok", blockingSSE)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/events", nil).WithContext(ctx)
	req.Header.Set("Authorization", "Bearer tok")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code == http.StatusUnauthorized {
		t.Error("SSE with valid token should not 401")
	}
}

func TestSSEEvents_NotMountedWithoutHandler(t *testing.T) {
	_, router := testEnv(t, "")
	if w := do(t, router, http.MethodGet, "/events", nil); w.Code != http.StatusNotFound && w.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 404 or 405", w.Code)
	}
}

func TestRenameTag_EverywhereStopsOnConflict(t *testing.T) {
	_, router, store := testEnvWithStore(t, false, "", nil)
	testutil.WriteEntry(t, store, "2023/03/2023-03-05.md", "---\ntags: [a]\n---\nx")
	testutil.WriteEntry(t, store, "2023/03/2023-03-06.md", "---\ntags: [a, b]\n---\nx")

	w := do(t, router, http.MethodPost, "/tags/rename", RenameTagRequest{Old: "a", New: "b"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	var resp errResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if !equal(resp.Paths, []string{"2023/03/2023-03-05.md"}) || resp.Error == "" {
		t.Errorf("resp = %+v", resp)
	}
}

func TestCreateEntry_UnknownField(t *testing.T) {
	_, router := testEnv(t, "")
	if w := do(t, router, http.MethodPost, "/entries", map[string]string{"path": "x.md"}); w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestListEntries_FromWithoutToEndsToday(t *testing.T) {
	_, router, store := testEnvWithStore(t, false, "", nil)
	testutil.WriteEntry(t, store, "2023/03/2023-03-07.md", "---\ntags: [work]\n---\nx")
	testutil.WriteEntry(t, store, "2023/03/2023-03-09.md", "---\ntags: [work]\n---\nx")

	got := listPaths(t, do(t, router, http.MethodGet, "/entries?from=2023-03-01", nil))
	if !equal(got, []string{"2023/03/2023-03-07.md"}) {
		t.Errorf("paths = %v, want entries up to today only", got)
	}
}
