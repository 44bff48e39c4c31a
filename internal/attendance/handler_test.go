package attendance

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/presenta/presenta/internal/interval"
	_ "github.com/presenta/presenta/internal/testing/guard"
)

func newTestHandler(repo *memoryRepo) http.Handler {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	service := NewService(repo, nil, logger, ServiceConfig{})
	projector := newTestProjector(repo, func() (int, int) { return 0, 0 })
	handler := NewHandler(logger, service, projector, nil, nil)
	handler.now = func() time.Time { return interval.Date(2024, time.April, 1) }

	r := chi.NewRouter()
	r.Route("/api", func(r chi.Router) {
		r.Use(handler.Identity)
		handler.MountRoutes(r)
	})
	return r
}

func doRequest(t *testing.T, h http.Handler, method, target, user, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if user != "" {
		req.Header.Set("X-Remote-User", user)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestIdentityMiddleware(t *testing.T) {
	repo := newMemoryRepo()
	emp := addEmployee(repo, "Novak Jan", "1001", "77")
	h := newTestHandler(repo)

	rec := doRequest(t, h, http.MethodGet, "/api/me", "", "")
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doRequest(t, h, http.MethodGet, "/api/me", "ghost", "")
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doRequest(t, h, http.MethodGet, "/api/me", emp.Username, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var me struct {
		Username string `json:"username"`
		Admin    bool   `json:"admin"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &me))
	require.Equal(t, emp.Username, me.Username)
	require.False(t, me.Admin)
}

func TestMonthlyAttendanceEndpoint(t *testing.T) {
	repo := newMemoryRepo()
	emp := addEmployee(repo, "Novak Jan", "1001", "77")
	contract := seedContract(t, repo, emp, "1001.1", "123", 1.0)
	seedTimetable(t, repo, contract.ID, "08:00", "16:30", interval.Date(2024, time.January, 1))
	h := newTestHandler(repo)

	rec := doRequest(t, h, http.MethodGet, "/api/attendance?pvid=1001.1&year=2024&month=3", emp.Username, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		PVID string `json:"pvid"`
		Days []struct {
			Day       int     `json:"day"`
			Mode      *string `json:"mode"`
			Timetable *struct {
				From string `json:"from"`
				To   string `json:"to"`
			} `json:"timetable"`
		} `json:"days"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "1001.1", resp.PVID)
	require.Len(t, resp.Days, 31)
	// March 4 2024 is a Monday with a scheduled shift.
	monday := resp.Days[3]
	require.NotNil(t, monday.Timetable)
	require.Equal(t, "08:00", monday.Timetable.From)

	rec = doRequest(t, h, http.MethodGet, "/api/attendance?year=2024&month=3", emp.Username, "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMonthlyAttendanceUnknownContract(t *testing.T) {
	repo := newMemoryRepo()
	emp := addEmployee(repo, "Novak Jan", "1001", "77")
	h := newTestHandler(repo)

	rec := doRequest(t, h, http.MethodGet, "/api/attendance?pvid=ghost.1&year=2024&month=3", emp.Username, "")
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMonthlyAttendanceForbiddenForStranger(t *testing.T) {
	repo := newMemoryRepo()
	emp := addEmployee(repo, "Novak Jan", "1001", "77")
	seedContract(t, repo, emp, "1001.1", "123", 1.0)
	stranger := addEmployee(repo, "Svoboda Petr", "1002", "78")
	h := newTestHandler(repo)

	rec := doRequest(t, h, http.MethodGet, "/api/attendance?pvid=1001.1&year=2024&month=3", stranger.Username, "")
	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestSetAttendanceEndpoint(t *testing.T) {
	repo := newMemoryRepo()
	emp := addEmployee(repo, "Novak Jan", "1001", "77")
	seedContract(t, repo, emp, "1001.1", "123", 1.0)
	h := newTestHandler(repo)

	body := `{"employee_uid":"` + emp.UID.String() + `","date":"2024-03-04","from":"08:00","to":"16:30","mode":"Vacation"}`
	rec := doRequest(t, h, http.MethodPost, "/api/attendance", emp.Username, body)
	require.Equal(t, http.StatusOK, rec.Code)

	stored, err := repo.GetPresence(context.Background(), emp.UID, interval.Date(2024, time.March, 4))
	require.NoError(t, err)
	require.Equal(t, ModeVacation, stored.Mode)

	rec = doRequest(t, h, http.MethodPost, "/api/attendance", emp.Username, `{"date":"2024-03-04"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	body = `{"employee_uid":"` + emp.UID.String() + `","date":"2024-03-04","from":"08:00","to":"16:30","mode":"Teleport"}`
	rec = doRequest(t, h, http.MethodPost, "/api/attendance", emp.Username, body)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSetTimetableEndpoint(t *testing.T) {
	repo := newMemoryRepo()
	emp := addEmployee(repo, "Novak Jan", "1001", "77")
	seedContract(t, repo, emp, "1001.1", "123", 1.0)
	h := newTestHandler(repo)

	day := `{"from":"08:00","to":"16:30"}`
	body := `{"pvid":"1001.1","effective":"2024-03-10","even":[` +
		day + `,` + day + `,` + day + `,` + day + `,` + day + `]}`
	rec := doRequest(t, h, http.MethodPost, "/api/timetable", emp.Username, body)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, repo.timetables, 1)

	// Incomplete weeks are rejected before anything is written.
	body = `{"pvid":"1001.1","effective":"2024-04-01","even":[` +
		day + `,` + day + `,` + day + `,` + day + `,{}]}`
	rec = doRequest(t, h, http.MethodPost, "/api/timetable", emp.Username, body)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Len(t, repo.timetables, 1)
}

func TestPolicyEndpointsAdminOnly(t *testing.T) {
	repo := newMemoryRepo()
	emp := addEmployee(repo, "Novak Jan", "1001", "77")
	root := addEmployee(repo, "Root", "9999", "")
	repo.employees[1].ACL = admin.ACL
	h := newTestHandler(repo)

	body := `{"department":"12","policy":"auto"}`
	rec := doRequest(t, h, http.MethodPost, "/api/policies", emp.Username, body)
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = doRequest(t, h, http.MethodPost, "/api/policies", root.Username, body)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, h, http.MethodPost, "/api/policies", root.Username, `{"department":"12","policy":"lenient"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(t, h, http.MethodGet, "/api/policies", root.Username, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Policies []policyResponse `json:"policies"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Policies, 1)
	require.Equal(t, "auto", resp.Policies[0].Policy)
}

func TestDepartmentGridEndpoint(t *testing.T) {
	repo := newMemoryRepo()
	emp := addEmployee(repo, "Novak Jan", "1001", "77")
	contract := seedContract(t, repo, emp, "1001.1", "123", 1.0)
	seedTimetable(t, repo, contract.ID, "08:00", "16:30", interval.Date(2024, time.January, 1))
	supervisor := addEmployee(repo, "Vedouci", "2001", "")
	repo.employees[1].ACL = "12"
	h := newTestHandler(repo)

	rec := doRequest(t, h, http.MethodGet, "/api/department/123?year=2024&month=3", supervisor.Username, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Department string              `json:"department"`
		Rows       []map[string]string `json:"rows"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "123", resp.Department)
	require.Len(t, resp.Rows, 1)
	require.Equal(t, "Novak Jan", resp.Rows[0]["name"])
	// March 2 2024 is a Saturday.
	require.Equal(t, "S", resp.Rows[0]["2"])

	rec = doRequest(t, h, http.MethodGet, "/api/department/123?year=2024&month=3", emp.Username, "")
	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestDepartmentGridXLSXEndpoint(t *testing.T) {
	repo := newMemoryRepo()
	emp := addEmployee(repo, "Novak Jan", "1001", "77")
	contract := seedContract(t, repo, emp, "1001.1", "123", 1.0)
	seedTimetable(t, repo, contract.ID, "08:00", "16:30", interval.Date(2024, time.January, 1))
	root := addEmployee(repo, "Root", "9999", "")
	repo.employees[1].ACL = admin.ACL
	h := newTestHandler(repo)

	rec := doRequest(t, h, http.MethodGet, "/api/department/123/xlsx?year=2024&month=3", root.Username, "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", rec.Header().Get("Content-Type"))
	require.NotEmpty(t, rec.Body.Bytes())
}
