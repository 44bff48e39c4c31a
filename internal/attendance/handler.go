package attendance

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/presenta/presenta/internal/interval"
	"github.com/presenta/presenta/internal/platform/httpx"
	"github.com/presenta/presenta/internal/shared"
	"github.com/presenta/presenta/report"
)

// Handler wires the attendance JSON API.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	projector *Projector
	roster    *RosterCache
	pdf       *report.Client
	validator *validator.Validate
	now       func() time.Time
}

// NewHandler constructs a Handler instance. The roster cache and PDF
// client are optional; the matching endpoints degrade gracefully.
func NewHandler(logger *slog.Logger, service *Service, projector *Projector, roster *RosterCache, pdf *report.Client) *Handler {
	return &Handler{
		logger:    logger,
		service:   service,
		projector: projector,
		roster:    roster,
		pdf:       pdf,
		validator: validator.New(),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// MountRoutes registers attendance routes on the provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/me", h.me)
	r.Get("/attendance", h.monthlyAttendance)
	r.Post("/attendance", h.setAttendance)
	r.Post("/timetable", h.setTimetable)
	r.Get("/departments", h.departments)
	r.Get("/department/{dept}", h.departmentGrid)
	r.Get("/department/{dept}/xlsx", h.departmentGridXLSX)
	r.Get("/department/{dept}/pdf", h.departmentGridPDF)
	r.Get("/present", h.presentRoster)
	r.Get("/employees", h.listEmployees)
	r.Post("/employees/acl", h.updateACL)
	r.Get("/policies", h.listPolicies)
	r.Post("/policies", h.setPolicy)
}

// Identity resolves the trusted proxy header into the request context.
// The service sits behind an authenticating reverse proxy; a request
// without the header never reaches the API in production.
func (h *Handler) Identity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		username := r.Header.Get("X-Remote-User")
		if username == "" {
			httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "missing identity header")
			return
		}
		identity, err := h.service.ResolveIdentity(r.Context(), username)
		if err != nil {
			h.logger.Warn("resolve identity", slog.String("username", username), slog.Any("error", err))
			httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "unknown user")
			return
		}
		next.ServeHTTP(w, r.WithContext(shared.ContextWithIdentity(r.Context(), identity)))
	})
}

type identityResponse struct {
	UID      uuid.UUID `json:"uid"`
	Username string    `json:"username"`
	ACL      string    `json:"acl"`
	Admin    bool      `json:"admin"`
}

func (h *Handler) me(w http.ResponseWriter, r *http.Request) {
	identity, ok := shared.IdentityFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "")
		return
	}
	httpx.JSON(w, http.StatusOK, identityResponse{
		UID:      identity.UID,
		Username: identity.Username,
		ACL:      identity.ACL,
		Admin:    identity.IsAdmin(),
	})
}

// yearMonth reads the year/month query pair, defaulting to the current month.
func (h *Handler) yearMonth(r *http.Request) (int, time.Month, error) {
	now := h.now()
	year, month := now.Year(), now.Month()
	if raw := r.URL.Query().Get("year"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			return 0, 0, err
		}
		year = parsed
	}
	if raw := r.URL.Query().Get("month"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			return 0, 0, err
		}
		if parsed < 1 || parsed > 12 {
			return 0, 0, strconv.ErrRange
		}
		month = time.Month(parsed)
	}
	return year, month, nil
}

func (h *Handler) monthlyAttendance(w http.ResponseWriter, r *http.Request) {
	identity, _ := shared.IdentityFromContext(r.Context())
	pvid := r.URL.Query().Get("pvid")
	if pvid == "" {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "pvid query parameter required")
		return
	}
	year, month, err := h.yearMonth(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid year/month")
		return
	}
	entries, err := h.projector.MonthlyAttendance(r.Context(), identity, pvid, year, month)
	if err != nil {
		h.logger.Error("monthly attendance", slog.String("pvid", pvid), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"pvid":  pvid,
		"year":  year,
		"month": int(month),
		"days":  entries,
	})
}

type setAttendanceRequest struct {
	EmployeeUID uuid.UUID `json:"employee_uid" validate:"required"`
	Date        string    `json:"date" validate:"required,datetime=2006-01-02"`
	From        string    `json:"from" validate:"required"`
	To          string    `json:"to" validate:"required"`
	Mode        string    `json:"mode" validate:"required"`
}

func (h *Handler) setAttendance(w http.ResponseWriter, r *http.Request) {
	identity, _ := shared.IdentityFromContext(r.Context())
	var req setAttendanceRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	day, _ := time.Parse("2006-01-02", req.Date)
	from, err := interval.ParseTimeOfDay(req.From)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	to, err := interval.ParseTimeOfDay(req.To)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	if err := h.service.SetAttendance(r.Context(), identity, req.EmployeeUID, day, from, to, PresenceMode(req.Mode)); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type dayInputRequest struct {
	From string `json:"from"`
	To   string `json:"to"`
}

type setTimetableRequest struct {
	PVID      string             `json:"pvid" validate:"required"`
	Effective string             `json:"effective" validate:"required,datetime=2006-01-02"`
	Split     bool               `json:"split"`
	Even      [5]dayInputRequest `json:"even"`
	Odd       [5]dayInputRequest `json:"odd"`
}

func buildDayInputs(days [5]dayInputRequest) ([5]DayInput, error) {
	var out [5]DayInput
	for i, d := range days {
		if d.From == "" || d.To == "" {
			continue
		}
		from, err := interval.ParseTimeOfDay(d.From)
		if err != nil {
			return out, err
		}
		to, err := interval.ParseTimeOfDay(d.To)
		if err != nil {
			return out, err
		}
		out[i] = DayInput{From: &from, To: &to}
	}
	return out, nil
}

func (h *Handler) setTimetable(w http.ResponseWriter, r *http.Request) {
	identity, _ := shared.IdentityFromContext(r.Context())
	var req setTimetableRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	effective, _ := time.Parse("2006-01-02", req.Effective)
	even, err := buildDayInputs(req.Even)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	odd := even
	if req.Split {
		odd, err = buildDayInputs(req.Odd)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
			return
		}
	}
	input := TimetableInput{Effective: effective, Split: req.Split, Even: even, Odd: odd}
	if err := h.service.SetTimetable(r.Context(), identity, req.PVID, input); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) departments(w http.ResponseWriter, r *http.Request) {
	departments, err := h.projector.Departments(r.Context())
	if err != nil {
		h.logger.Error("list departments", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"departments": departments})
}

func (h *Handler) grid(w http.ResponseWriter, r *http.Request) (report.Grid, bool) {
	identity, _ := shared.IdentityFromContext(r.Context())
	dept := chi.URLParam(r, "dept")
	year, month, err := h.yearMonth(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid year/month")
		return report.Grid{}, false
	}
	rows, err := h.projector.DepartmentGrid(r.Context(), identity, dept, year, month)
	if err != nil {
		h.logger.Error("department grid", slog.String("dept", dept), slog.Any("error", err))
		httpx.RespondError(w, err)
		return report.Grid{}, false
	}
	g := report.Grid{Dept: dept, Year: year, Month: month}
	for _, row := range rows {
		g.Rows = append(g.Rows, report.Row{PVID: row.PVID, Name: row.Name, Cells: row.Cells})
	}
	return g, true
}

func (h *Handler) departmentGrid(w http.ResponseWriter, r *http.Request) {
	g, ok := h.grid(w, r)
	if !ok {
		return
	}
	rows := make([]map[string]string, 0, len(g.Rows))
	for _, row := range g.Rows {
		entry := map[string]string{"pvid": row.PVID, "name": row.Name}
		for i, symbol := range row.Cells {
			entry[strconv.Itoa(i+1)] = symbol
		}
		rows = append(rows, entry)
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"department": g.Dept,
		"year":       g.Year,
		"month":      int(g.Month),
		"rows":       rows,
	})
}

func (h *Handler) departmentGridXLSX(w http.ResponseWriter, r *http.Request) {
	g, ok := h.grid(w, r)
	if !ok {
		return
	}
	buf, err := report.GridXLSX(g)
	if err != nil {
		h.logger.Error("grid xlsx", slog.String("dept", g.Dept), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", "attachment; filename=attendance-"+g.Dept+"-"+g.Period()+".xlsx")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func (h *Handler) departmentGridPDF(w http.ResponseWriter, r *http.Request) {
	if h.pdf == nil {
		httpx.Problem(w, http.StatusServiceUnavailable, "Unavailable", "pdf rendering not configured")
		return
	}
	g, ok := h.grid(w, r)
	if !ok {
		return
	}
	pdf, err := h.pdf.RenderGrid(r.Context(), g)
	if err != nil {
		h.logger.Error("grid pdf", slog.String("dept", g.Dept), slog.Any("error", err))
		httpx.Problem(w, http.StatusBadGateway, "Render Failed", "")
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", "inline; filename=attendance-"+g.Dept+"-"+g.Period()+".pdf")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(pdf)
}

func (h *Handler) presentRoster(w http.ResponseWriter, r *http.Request) {
	day := interval.DayOf(h.now())
	if rosters, ok := h.roster.Get(r.Context(), day); ok {
		httpx.JSON(w, http.StatusOK, map[string]any{"date": day.Format("2006-01-02"), "departments": rosters})
		return
	}
	rosters, err := h.projector.PresentRoster(r.Context(), day)
	if err != nil {
		h.logger.Error("present roster", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	if err := h.roster.Set(r.Context(), day, rosters); err != nil {
		h.logger.Warn("roster cache set", slog.Any("error", err))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"date": day.Format("2006-01-02"), "departments": rosters})
}

type employeeResponse struct {
	UID      uuid.UUID `json:"uid"`
	EmpNo    string    `json:"emp_no"`
	Name     string    `json:"name"`
	Username string    `json:"username"`
	ACL      string    `json:"acl"`
}

func (h *Handler) listEmployees(w http.ResponseWriter, r *http.Request) {
	identity, _ := shared.IdentityFromContext(r.Context())
	employees, err := h.service.ListEmployees(r.Context(), identity)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	out := make([]employeeResponse, 0, len(employees))
	for _, emp := range employees {
		out = append(out, employeeResponse{
			UID:      emp.UID,
			EmpNo:    emp.EmpNo,
			Name:     emp.Name,
			Username: emp.Username,
			ACL:      emp.ACL,
		})
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"employees": out})
}

type updateACLRequest struct {
	EmployeeUIDs []uuid.UUID `json:"employee_uids" validate:"required,min=1"`
	ACL          string      `json:"acl" validate:"required"`
}

func (h *Handler) updateACL(w http.ResponseWriter, r *http.Request) {
	identity, _ := shared.IdentityFromContext(r.Context())
	var req updateACLRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	if err := h.service.UpdateACL(r.Context(), identity, req.EmployeeUIDs, req.ACL); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type policyResponse struct {
	Department string `json:"department"`
	Policy     string `json:"policy"`
}

func (h *Handler) listPolicies(w http.ResponseWriter, r *http.Request) {
	identity, _ := shared.IdentityFromContext(r.Context())
	policies, err := h.service.ListPolicies(r.Context(), identity)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	out := make([]policyResponse, 0, len(policies))
	for _, p := range policies {
		out = append(out, policyResponse{Department: p.Department, Policy: string(p.Policy)})
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"policies": out})
}

type setPolicyRequest struct {
	Department string `json:"department" validate:"required"`
	Policy     string `json:"policy" validate:"required,oneof=readonly edit auto"`
}

func (h *Handler) setPolicy(w http.ResponseWriter, r *http.Request) {
	identity, _ := shared.IdentityFromContext(r.Context())
	var req setPolicyRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	policy := DepartmentPolicy{Department: req.Department, Policy: Policy(req.Policy)}
	if err := h.service.SetDepartmentPolicy(r.Context(), identity, policy); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
