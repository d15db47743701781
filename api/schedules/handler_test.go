package schedules

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/soh/core/clock"
	"github.com/kilianp07/soh/core/model"
	"github.com/kilianp07/soh/core/schedule"
	"github.com/kilianp07/soh/infra/logger"
)

var t0 = time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)

type fixedTasks []int64

func (f fixedTasks) IDs() []int64 { return f }

func newAPI(t *testing.T) (http.Handler, *schedule.MemoryRepository) {
	t.Helper()
	repo := schedule.NewMemoryRepository()
	svc, err := schedule.NewService(repo, clock.NewManual(t0), nil, logger.NopLogger{})
	require.NoError(t, err)
	return NewHandler(svc, fixedTasks{3}, logger.NopLogger{}), repo
}

func do(t *testing.T, h http.Handler, method, path string, form url.Values) (int, Response) {
	t.Helper()
	var req *http.Request
	if form != nil {
		req = httptest.NewRequest(method, path, strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	var resp Response
	if rr.Code != http.StatusMethodNotAllowed {
		if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
			t.Fatalf("decode %s: %v", rr.Body.String(), err)
		}
	}
	return rr.Code, resp
}

func doJSON(t *testing.T, h http.Handler, path, body string) (int, Response) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	var resp Response
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode %s: %v", rr.Body.String(), err)
	}
	return rr.Code, resp
}

func createForm(strID string) url.Values {
	return url.Values{"strId": {strID}, "startTime": {"2025-06-01T09:00:00Z"}, "current": {"12.5"}}
}

func TestCreateAndList(t *testing.T) {
	h, _ := newAPI(t)
	code, resp := do(t, h, http.MethodPost, Prefix+"create", createForm("str1"))
	require.Equal(t, http.StatusOK, code, resp.Message)
	assert.Equal(t, "success", resp.Status)

	code, resp = do(t, h, http.MethodGet, Prefix+"get-list", nil)
	require.Equal(t, http.StatusOK, code)
	items, ok := resp.Data.([]any)
	require.True(t, ok)
	require.Len(t, items, 1)
	item := items[0].(map[string]any)
	assert.Equal(t, "str1", item["strId"])
	assert.Equal(t, "PENDING", item["state"])
	assert.Equal(t, 12.5, item["current"])
	assert.Equal(t, "2025-06-01T09:00:00Z", item["startTime"])
}

func TestCreateJSONBody(t *testing.T) {
	h, repo := newAPI(t)
	code, resp := doJSON(t, h, Prefix+"create", `{"strId":"str2","startTime":"2025-06-01T10:00:00+02:00","current":"7"}`)
	require.Equal(t, http.StatusOK, code, resp.Message)
	s, err := repo.FindByString(context.Background(), "str2", schedule.OpenStates, model.StatusActive)
	require.NoError(t, err)
	require.NotNil(t, s)
	assert.True(t, s.Start.Equal(t0))
	assert.Equal(t, 7.0, s.Current)
}

func TestCreateErrors(t *testing.T) {
	h, _ := newAPI(t)
	code, _ := do(t, h, http.MethodPost, Prefix+"create", createForm("str1"))
	require.Equal(t, http.StatusOK, code)

	cases := []struct {
		name string
		form url.Values
		want int
	}{
		{"conflict", createForm("str1"), http.StatusConflict},
		{"missing", url.Values{"strId": {"x"}}, http.StatusBadRequest},
		{"bad time", url.Values{"strId": {"x"}, "startTime": {"tomorrow"}, "current": {"1"}}, http.StatusBadRequest},
		{"bad current", url.Values{"strId": {"x"}, "startTime": {"2025-06-01T09:00:00Z"}, "current": {"ten"}}, http.StatusBadRequest},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			code, resp := do(t, h, http.MethodPost, Prefix+"create", c.form)
			assert.Equal(t, c.want, code)
			assert.Equal(t, "error", resp.Status)
			assert.NotEmpty(t, resp.Message)
		})
	}

	code, _ = doJSON(t, h, Prefix+"create", `{"strId":`)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestUpdateStopDelete(t *testing.T) {
	h, repo := newAPI(t)
	ctx := context.Background()
	code, _ := do(t, h, http.MethodPost, Prefix+"create", createForm("str1"))
	require.Equal(t, http.StatusOK, code)
	code, _ = do(t, h, http.MethodPost, Prefix+"create", createForm("str2"))
	require.Equal(t, http.StatusOK, code)

	code, resp := doJSON(t, h, Prefix+"update", `{"id":1,"startTime":"2025-06-02T09:00:00Z"}`)
	require.Equal(t, http.StatusOK, code, resp.Message)
	s, err := repo.FindByID(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, s.Start.Day())

	code, _ = do(t, h, http.MethodPost, Prefix+"stop", url.Values{"id": {"1"}})
	assert.Equal(t, http.StatusNotFound, code, "pending schedules cannot be stopped")

	s.State = model.StateRunning
	require.NoError(t, repo.Save(ctx, s))
	code, resp = do(t, h, http.MethodPost, Prefix+"stop", url.Values{"id": {"1"}})
	require.Equal(t, http.StatusOK, code, resp.Message)
	assert.Equal(t, "STOPPED", resp.Data.(map[string]any)["state"])

	code, _ = do(t, h, http.MethodPost, Prefix+"delete", url.Values{"id": {"2"}})
	require.Equal(t, http.StatusOK, code)
	code, _ = do(t, h, http.MethodPost, Prefix+"delete", url.Values{"id": {"2"}})
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = do(t, h, http.MethodPost, Prefix+"delete", url.Values{"id": {"abc"}})
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestGetAndTasks(t *testing.T) {
	h, _ := newAPI(t)
	code, _ := do(t, h, http.MethodPost, Prefix+"create", createForm("str1"))
	require.Equal(t, http.StatusOK, code)

	code, resp := do(t, h, http.MethodGet, Prefix+"get?id=1", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "str1", resp.Data.(map[string]any)["strId"])

	code, _ = do(t, h, http.MethodGet, Prefix+"get?id=9", nil)
	assert.Equal(t, http.StatusNotFound, code)

	code, resp = do(t, h, http.MethodGet, Prefix+"tasks", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, []any{3.0}, resp.Data)
}

func TestPersistenceFailureIs500(t *testing.T) {
	h, repo := newAPI(t)
	repo.SetFailure(errors.New("disk full"))
	code, resp := do(t, h, http.MethodGet, Prefix+"get-list", nil)
	assert.Equal(t, http.StatusInternalServerError, code)
	assert.Equal(t, "error", resp.Status)
}

func TestMethodNotAllowed(t *testing.T) {
	h, _ := newAPI(t)
	code, _ := do(t, h, http.MethodGet, Prefix+"create", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, code)
}

func TestStatusCode(t *testing.T) {
	assert.Equal(t, http.StatusConflict, StatusCode(schedule.Stale(1, 2)))
	assert.Equal(t, http.StatusConflict, StatusCode(errors.Wrap(schedule.ErrConflict, "x")))
	assert.Equal(t, http.StatusNotFound, StatusCode(errors.Wrap(schedule.ErrNotFound, "x")))
	assert.Equal(t, http.StatusInternalServerError, StatusCode(schedule.Persistence(schedule.ErrNotFound, "update")))
	assert.Equal(t, http.StatusBadRequest, StatusCode(errors.Wrap(schedule.ErrValidation, "x")))
	assert.Equal(t, http.StatusInternalServerError, StatusCode(errors.New("boom")))
}
