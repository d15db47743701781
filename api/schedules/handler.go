// Package schedules exposes the schedule lifecycle over HTTP under
// /api/soh-schedule/. Requests accept form or JSON bodies and every response
// uses the {status, message, data} envelope.
package schedules

import (
	"context"
	"encoding/json"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/kilianp07/soh/core/logger"
	"github.com/kilianp07/soh/core/model"
	"github.com/kilianp07/soh/core/schedule"
)

// Prefix is the mount point of the handler.
const Prefix = "/api/soh-schedule/"

// Lifecycle is the set of schedule operations served by the handler.
type Lifecycle interface {
	Create(ctx context.Context, stringID string, start time.Time, current float64) (model.Schedule, error)
	Update(ctx context.Context, id int64, start time.Time) (model.Schedule, error)
	Stop(ctx context.Context, id int64) (model.Schedule, error)
	Remove(ctx context.Context, id int64) (model.Schedule, error)
	List(ctx context.Context) ([]model.ScheduleView, error)
	Get(ctx context.Context, id int64) (model.Schedule, error)
}

// TaskLister reports the schedules with a running calculator.
type TaskLister interface {
	IDs() []int64
}

// Response is the envelope of every reply.
type Response struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Data    any    `json:"data"`
}

type request struct {
	StringID  string      `json:"strId"`
	StartTime string      `json:"startTime"`
	Current   json.Number `json:"current"`
	ID        json.Number `json:"id"`
}

type handler struct {
	svc   Lifecycle
	tasks TaskLister
	log   logger.Logger
}

// NewHandler returns the schedule API. tasks may be nil.
func NewHandler(svc Lifecycle, tasks TaskLister, log logger.Logger) http.Handler {
	h := &handler{svc: svc, tasks: tasks, log: log}
	mux := http.NewServeMux()
	mux.HandleFunc("GET "+Prefix+"get-list", h.list)
	mux.HandleFunc("GET "+Prefix+"get", h.get)
	mux.HandleFunc("GET "+Prefix+"tasks", h.listTasks)
	mux.HandleFunc("POST "+Prefix+"create", h.create)
	mux.HandleFunc("POST "+Prefix+"update", h.update)
	mux.HandleFunc("POST "+Prefix+"stop", h.stop)
	mux.HandleFunc("POST "+Prefix+"delete", h.remove)
	return mux
}

func (h *handler) list(w http.ResponseWriter, r *http.Request) {
	views, err := h.svc.List(r.Context())
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, Response{Status: "success", Message: "SoH schedules", Data: views})
}

func (h *handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r.URL.Query().Get("id"))
	if err != nil {
		h.fail(w, err)
		return
	}
	s, err := h.svc.Get(r.Context(), id)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, Response{Status: "success", Message: "SoH schedule", Data: s.View()})
}

func (h *handler) listTasks(w http.ResponseWriter, _ *http.Request) {
	ids := []int64{}
	if h.tasks != nil {
		ids = append(ids, h.tasks.IDs()...)
	}
	writeJSON(w, http.StatusOK, Response{Status: "success", Message: "running calculators", Data: ids})
}

func (h *handler) create(w http.ResponseWriter, r *http.Request) {
	req, err := decode(r)
	if err != nil {
		h.fail(w, err)
		return
	}
	if req.StringID == "" || req.StartTime == "" || req.Current == "" {
		h.fail(w, errors.Wrap(schedule.ErrValidation, "strId, startTime and current are required"))
		return
	}
	start, err := parseTime(req.StartTime)
	if err != nil {
		h.fail(w, err)
		return
	}
	current, err := req.Current.Float64()
	if err != nil {
		h.fail(w, errors.Wrapf(schedule.ErrValidation, "current %q is not a number", req.Current))
		return
	}
	s, err := h.svc.Create(r.Context(), req.StringID, start, current)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, Response{Status: "success", Message: "SoH schedule created successfully", Data: s.View()})
}

func (h *handler) update(w http.ResponseWriter, r *http.Request) {
	req, err := decode(r)
	if err != nil {
		h.fail(w, err)
		return
	}
	id, err := parseID(req.ID.String())
	if err != nil {
		h.fail(w, err)
		return
	}
	start, err := parseTime(req.StartTime)
	if err != nil {
		h.fail(w, err)
		return
	}
	s, err := h.svc.Update(r.Context(), id, start)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, Response{Status: "success", Message: "SoH schedule updated successfully", Data: s.View()})
}

func (h *handler) stop(w http.ResponseWriter, r *http.Request) {
	h.byID(w, r, h.svc.Stop, "SoH schedule stopped successfully")
}

func (h *handler) remove(w http.ResponseWriter, r *http.Request) {
	h.byID(w, r, h.svc.Remove, "SoH schedule deleted successfully")
}

func (h *handler) byID(w http.ResponseWriter, r *http.Request, op func(context.Context, int64) (model.Schedule, error), msg string) {
	req, err := decode(r)
	if err != nil {
		h.fail(w, err)
		return
	}
	id, err := parseID(req.ID.String())
	if err != nil {
		h.fail(w, err)
		return
	}
	s, err := op(r.Context(), id)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, Response{Status: "success", Message: msg, Data: s.View()})
}

// fail maps the error kind to a status code.
func (h *handler) fail(w http.ResponseWriter, err error) {
	code := StatusCode(err)
	if code >= http.StatusInternalServerError {
		h.log.Errorf("schedule request failed: %v", err)
	} else {
		h.log.Debugf("schedule request rejected: %v", err)
	}
	writeJSON(w, code, Response{Status: "error", Message: err.Error()})
}

// StatusCode returns the HTTP status for an error returned by the lifecycle.
func StatusCode(err error) int {
	switch {
	case errors.Is(err, schedule.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, schedule.ErrNotFound) && !errors.Is(err, schedule.ErrPersistence):
		return http.StatusNotFound
	case errors.Is(err, schedule.ErrConflict), errors.Is(err, schedule.ErrStale):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func decode(r *http.Request) (request, error) {
	var req request
	ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if ct == "application/json" {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return req, errors.Wrapf(schedule.ErrValidation, "invalid JSON body: %v", err)
		}
	} else {
		if err := r.ParseForm(); err != nil {
			return req, errors.Wrapf(schedule.ErrValidation, "invalid form body: %v", err)
		}
		req.StringID = r.FormValue("strId")
		req.StartTime = r.FormValue("startTime")
		req.Current = json.Number(r.FormValue("current"))
		req.ID = json.Number(r.FormValue("id"))
	}
	req.StringID = strings.TrimSpace(req.StringID)
	req.StartTime = strings.TrimSpace(req.StartTime)
	return req, nil
}

func parseID(v string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.Wrapf(schedule.ErrValidation, "invalid id %q", v)
	}
	return id, nil
}

func parseTime(v string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return time.Time{}, errors.Wrapf(schedule.ErrValidation, "startTime %q is not RFC3339", v)
	}
	return t.UTC(), nil
}

func writeJSON(w http.ResponseWriter, code int, resp Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(resp)
}
