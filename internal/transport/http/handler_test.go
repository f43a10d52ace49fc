package httptransport_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"job-annotation-service/internal/entity"
	"job-annotation-service/internal/notify"
	"job-annotation-service/internal/render/scene"
	"job-annotation-service/internal/repository/annotationapi"
	"job-annotation-service/internal/repository/postgresql"
	"job-annotation-service/internal/service"
	httptransport "job-annotation-service/internal/transport/http"
)

// ---- fakes ----

type memRepo struct {
	mu     sync.Mutex
	nextID int64
	rows   map[int64]entity.Annotation
}

func newMemRepo() *memRepo { return &memRepo{rows: map[int64]entity.Annotation{}} }

func (r *memRepo) ListByJob(ctx context.Context, jobID int64) ([]entity.Annotation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []entity.Annotation{}
	for _, a := range r.rows {
		if a.JobID == jobID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *memRepo) Create(ctx context.Context, a entity.Annotation) (entity.Annotation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	a.ID = r.nextID
	a.CreatedAt = time.Now().UTC()
	a.UpdatedAt = a.CreatedAt
	r.rows[a.ID] = a
	return a, nil
}

func (r *memRepo) Update(ctx context.Context, a entity.Annotation) (entity.Annotation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.rows[a.ID]
	if !ok {
		return entity.Annotation{}, postgresql.ErrNotFound
	}
	cur.Name, cur.Description, cur.Geometry, cur.Style = a.Name, a.Description, a.Geometry, a.Style
	cur.UpdatedAt = time.Now().UTC()
	r.rows[a.ID] = cur
	return cur, nil
}

func (r *memRepo) Delete(ctx context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rows[id]; !ok {
		return postgresql.ErrNotFound
	}
	delete(r.rows, id)
	return nil
}

func (r *memRepo) get(id int64) entity.Annotation {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rows[id]
}

func (r *memRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rows)
}

// feedNotifier pushes straight into the feed so tests need no dispatcher loop.
type feedNotifier struct{ feed notify.Feed }

func (n feedNotifier) Notify(message string, kind entity.NotificationKind) {
	_ = n.feed.Push(context.Background(), entity.NewNotification(message, kind))
}

// ---- helpers ----

const apiToken = "secret"

type stack struct {
	repo    *memRepo
	api     *httptest.Server
	session http.Handler
	scene   *scene.Scene
}

// newStack wires the session service to a reference API served over HTTP.
func newStack(t *testing.T, clientToken string) *stack {
	t.Helper()
	repo := newMemRepo()
	api := httptest.NewServer(httptransport.APIRoutes(
		httptransport.NewAPIHandler(service.NewAnnotationService(repo)), apiToken, nil))
	t.Cleanup(api.Close)

	sc := scene.New()
	feed := notify.NewMemoryFeed(50)
	client := annotationapi.NewClient(api.URL+"/api", annotationapi.WithToken(clientToken))
	ctrl := service.NewController(service.Deps{
		API:      client,
		Provider: sc,
		Notifier: feedNotifier{feed: feed},
	})
	return &stack{
		repo:    repo,
		api:     api,
		session: httptransport.Routes(httptransport.NewHandler(ctrl, sc, feed), nil),
		scene:   sc,
	}
}

func do(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &v), "body=%s", rr.Body.String())
	return v
}

func registerJob(t *testing.T, s *stack) {
	t.Helper()
	rr := do(t, s.session, http.MethodPost, "/jobs", map[string]any{
		"id": 1, "title": "Main St", "type": "Plumbing", "location": map[string]float64{"lat": 0, "lng": 0},
	})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
}

type annotationView struct {
	ID          int64           `json:"id"`
	Kind        string          `json:"annotationType"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Coordinates []entity.LatLng `json:"coordinates"`
	State       string          `json:"state"`
	Editable    bool            `json:"editable"`
	OverlayID   string          `json:"overlay_id"`
}

// ---- reference API ----

func TestAPI_RequiresBearerToken(t *testing.T) {
	h := httptransport.APIRoutes(httptransport.NewAPIHandler(service.NewAnnotationService(newMemRepo())), apiToken, nil)

	rr := do(t, h, http.MethodGet, "/api/jobs/1/annotations", nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.JSONEq(t, `{"error":"Authentication required"}`, rr.Body.String())

	rr = do(t, h, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestAPI_AnnotationLifecycle(t *testing.T) {
	h := httptransport.APIRoutes(httptransport.NewAPIHandler(service.NewAnnotationService(newMemRepo())), "", nil)

	rr := do(t, h, http.MethodPost, "/api/jobs/4/annotations", map[string]any{
		"annotationType": "line",
		"name":           "trench",
		"coordinates":    []map[string]float64{{"lat": 1, "lng": 1}, {"lat": 2, "lng": 2}},
		"styleOptions":   map[string]string{"strokeColor": "#00FF00"},
	})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	created := decode[map[string]any](t, rr)
	assert.Equal(t, float64(4), created["job_id"])
	assert.Equal(t, "line", created["annotation_type"])
	assert.Equal(t, "#00FF00", created["style_options"].(map[string]any)["strokeColor"])

	rr = do(t, h, http.MethodGet, "/api/jobs/4/annotations", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Len(t, decode[[]map[string]any](t, rr), 1)

	rr = do(t, h, http.MethodPut, "/api/annotations/1", map[string]any{
		"annotationType": "line",
		"name":           "trench 2",
		"coordinates":    []map[string]float64{{"lat": 1, "lng": 1}, {"lat": 3, "lng": 3}},
	})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, "trench 2", decode[map[string]any](t, rr)["name"])

	rr = do(t, h, http.MethodPut, "/api/annotations/99", map[string]any{
		"annotationType": "pin",
		"coordinates":    []map[string]float64{{"lat": 1, "lng": 1}},
	})
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.JSONEq(t, `{"error":"Annotation not found"}`, rr.Body.String())

	rr = do(t, h, http.MethodDelete, "/api/annotations/1", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"message":"Annotation deleted successfully"}`, rr.Body.String())

	rr = do(t, h, http.MethodDelete, "/api/annotations/1", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestAPI_CreateRejectsBadGeometry(t *testing.T) {
	h := httptransport.APIRoutes(httptransport.NewAPIHandler(service.NewAnnotationService(newMemRepo())), "", nil)

	rr := do(t, h, http.MethodPost, "/api/jobs/4/annotations", map[string]any{
		"annotationType": "polygon",
		"coordinates":    []map[string]float64{{"lat": 1, "lng": 1}, {"lat": 2, "lng": 2}},
	})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, decode[map[string]string](t, rr)["error"], "polygon")
}

// ---- session service ----

func TestSession_PinRoundTrip(t *testing.T) {
	s := newStack(t, apiToken)
	registerJob(t, s)

	rr := do(t, s.session, http.MethodPost, "/jobs/1/annotations", map[string]any{
		"annotationType": "pin",
		"coordinates":    []map[string]float64{{"lat": 40.7, "lng": -74.0}},
		"name":           "Shutoff valve",
		"description":    "behind the fence",
	})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	rr = do(t, s.session, http.MethodPost, "/jobs/1/annotations/load", nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	list := decode[[]annotationView](t, rr)
	require.Len(t, list, 1)
	assert.Equal(t, "pin", list[0].Kind)
	assert.Equal(t, "Shutoff valve", list[0].Name)
	assert.Equal(t, "behind the fence", list[0].Description)
	assert.Equal(t, []entity.LatLng{{Lat: 40.7, Lng: -74.0}}, list[0].Coordinates)
	assert.Equal(t, "clean", list[0].State)

	rr = do(t, s.session, http.MethodGet, "/notifications", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	notes := decode[[]entity.Notification](t, rr)
	require.Len(t, notes, 1)
	assert.Equal(t, `Pin "Shutoff valve" created successfully!`, notes[0].Message)
}

func TestSession_CreateNeedsName(t *testing.T) {
	s := newStack(t, apiToken)
	registerJob(t, s)
	pin := map[string]any{
		"annotationType": "pin",
		"coordinates":    []map[string]float64{{"lat": 1, "lng": 1}},
	}

	rr := do(t, s.session, http.MethodPost, "/jobs/1/annotations", pin)
	assert.Equal(t, http.StatusPreconditionRequired, rr.Code)

	pin["cancel"] = true
	rr = do(t, s.session, http.MethodPost, "/jobs/1/annotations", pin)
	assert.Equal(t, http.StatusConflict, rr.Code)

	assert.Zero(t, s.repo.count())
	assert.Equal(t, 1, s.scene.Live(), "only the job marker is left")
}

func TestSession_EditModeGeometryEditAndSaveOnExit(t *testing.T) {
	s := newStack(t, apiToken)
	_, err := s.repo.Create(context.Background(), entity.Annotation{
		JobID: 1, Kind: entity.KindLine, Name: "trench",
		Geometry: []entity.LatLng{{Lat: 0, Lng: 0}, {Lat: 1, Lng: 1}},
	})
	require.NoError(t, err)
	registerJob(t, s)

	require.Equal(t, http.StatusOK, do(t, s.session, http.MethodPost, "/jobs/1/annotations/load", nil).Code)
	rr := do(t, s.session, http.MethodPost, "/jobs/1/edit-mode", nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, "editing", decode[map[string]any](t, rr)["mode"])

	view := decode[annotationView](t, do(t, s.session, http.MethodGet, "/annotations/1", nil))
	require.True(t, view.Editable)
	require.NotEmpty(t, view.OverlayID)

	rr = do(t, s.session, http.MethodPut, "/scene/objects/"+view.OverlayID+"/path", map[string]any{
		"path": []map[string]float64{{"lat": 0, "lng": 0}, {"lat": 5, "lng": 5}},
	})
	require.Equal(t, http.StatusNoContent, rr.Code, rr.Body.String())

	job := decode[service.JobView](t, do(t, s.session, http.MethodGet, "/jobs/1", nil))
	assert.Equal(t, []int64{1}, job.Dirty)

	rr = do(t, s.session, http.MethodDelete, "/jobs/1/edit-mode", nil)
	assert.Equal(t, http.StatusPreconditionRequired, rr.Code, "unsaved changes need a decision")

	rr = do(t, s.session, http.MethodDelete, "/jobs/1/edit-mode", map[string]any{"confirm": true})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	res := decode[struct {
		Result service.BatchResult `json:"result"`
	}](t, rr)
	assert.Equal(t, []int64{1}, res.Result.Saved)

	assert.Equal(t, []entity.LatLng{{Lat: 0, Lng: 0}, {Lat: 5, Lng: 5}}, s.repo.get(1).Geometry)
	job = decode[service.JobView](t, do(t, s.session, http.MethodGet, "/jobs/1", nil))
	assert.Equal(t, entity.ModeViewing, job.Mode)
	assert.Empty(t, job.Dirty)
}

func TestSession_ReloadWithUnsavedChangesNeedsDecision(t *testing.T) {
	s := newStack(t, apiToken)
	_, err := s.repo.Create(context.Background(), entity.Annotation{
		JobID: 1, Kind: entity.KindLine, Name: "trench",
		Geometry: []entity.LatLng{{Lat: 0, Lng: 0}, {Lat: 1, Lng: 1}},
	})
	require.NoError(t, err)
	registerJob(t, s)
	require.Equal(t, http.StatusOK, do(t, s.session, http.MethodPost, "/jobs/1/annotations/load", nil).Code)
	require.Equal(t, http.StatusOK, do(t, s.session, http.MethodPost, "/jobs/1/edit-mode", nil).Code)

	view := decode[annotationView](t, do(t, s.session, http.MethodGet, "/annotations/1", nil))
	rr := do(t, s.session, http.MethodPut, "/scene/objects/"+view.OverlayID+"/path", map[string]any{
		"path": []map[string]float64{{"lat": 0, "lng": 0}, {"lat": 5, "lng": 5}},
	})
	require.Equal(t, http.StatusNoContent, rr.Code, rr.Body.String())

	rr = do(t, s.session, http.MethodPost, "/jobs/1/annotations/load", nil)
	assert.Equal(t, http.StatusPreconditionRequired, rr.Code)
	view = decode[annotationView](t, do(t, s.session, http.MethodGet, "/annotations/1", nil))
	assert.Equal(t, "dirty", view.State)

	rr = do(t, s.session, http.MethodPost, "/jobs/1/annotations/load", map[string]any{"confirm": false})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	list := decode[[]annotationView](t, rr)
	require.Len(t, list, 1)
	assert.Equal(t, "clean", list[0].State)
	assert.Equal(t, []entity.LatLng{{Lat: 0, Lng: 0}, {Lat: 1, Lng: 1}}, list[0].Coordinates)
	assert.Equal(t, []entity.LatLng{{Lat: 0, Lng: 0}, {Lat: 1, Lng: 1}}, s.repo.get(1).Geometry)
}

func TestSession_SetPathOnFixedShapeIsRejected(t *testing.T) {
	s := newStack(t, apiToken)
	_, err := s.repo.Create(context.Background(), entity.Annotation{
		JobID: 1, Kind: entity.KindLine, Geometry: []entity.LatLng{{Lat: 0, Lng: 0}, {Lat: 1, Lng: 1}},
	})
	require.NoError(t, err)
	registerJob(t, s)
	require.Equal(t, http.StatusOK, do(t, s.session, http.MethodPost, "/jobs/1/annotations/load", nil).Code)

	view := decode[annotationView](t, do(t, s.session, http.MethodGet, "/annotations/1", nil))
	path := map[string]any{"path": []map[string]float64{{"lat": 0, "lng": 0}, {"lat": 2, "lng": 2}}}

	assert.Equal(t, http.StatusConflict, do(t, s.session, http.MethodPut, "/scene/objects/"+view.OverlayID+"/path", path).Code)
	assert.Equal(t, http.StatusNotFound, do(t, s.session, http.MethodPut, "/scene/objects/nope/path", path).Code)
}

func TestSession_ExpiredTokenIsReadOnlyUntilRefreshed(t *testing.T) {
	s := newStack(t, "stale")
	registerJob(t, s)

	rr := do(t, s.session, http.MethodPost, "/jobs/1/annotations/load", nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Equal(t, true, decode[map[string]any](t, do(t, s.session, http.MethodGet, "/session", nil))["read_only"])

	rr = do(t, s.session, http.MethodPut, "/session/token", map[string]string{"token": apiToken})
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, false, decode[map[string]any](t, rr)["read_only"])

	rr = do(t, s.session, http.MethodPost, "/jobs/1/annotations/load", nil)
	assert.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
}

func TestSession_MarkerDragOutsideEditMode(t *testing.T) {
	s := newStack(t, apiToken)
	registerJob(t, s)

	rr := do(t, s.session, http.MethodPost, "/jobs/1/drag/start", nil)
	assert.Equal(t, http.StatusConflict, rr.Code)

	rr = do(t, s.session, http.MethodPost, "/jobs/9/drag/start", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	require.Equal(t, http.StatusOK, do(t, s.session, http.MethodPost, "/jobs/1/edit-mode", nil).Code)
	assert.Equal(t, http.StatusNoContent, do(t, s.session, http.MethodPost, "/jobs/1/drag/start", nil).Code)
	assert.Equal(t, http.StatusNoContent, do(t, s.session, http.MethodPost, "/jobs/1/drag/end", entity.LatLng{Lat: 2, Lng: 3}).Code)

	job := decode[service.JobView](t, do(t, s.session, http.MethodGet, "/jobs/1", nil))
	assert.Equal(t, entity.LatLng{Lat: 2, Lng: 3}, job.Job.Location)

	rr = do(t, s.session, http.MethodPost, "/jobs/1/reset-position", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, entity.LatLng{}, decode[entity.LatLng](t, rr))
}
