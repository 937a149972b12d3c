/*
handlers.go - HTTP API handlers for the ministry engine

PURPOSE:
  Exposes the membership, activity and rewards services via REST.
  Handles HTTP request/response, JSON serialization, and delegates to
  domain logic.

ENDPOINTS:
  Reference:
    GET/POST        /api/classes, /api/years, /api/servants
    GET/PUT/DELETE  .../{id}

  Batches:
    GET/POST  /api/batches           List / create (spawns BatchYear)
    POST      /api/batches/{id}/advance
    GET       /api/batch-years       List enrollment contexts

  Students:
    GET/POST  /api/students
    GET/PUT/DELETE /api/students/{id}
    POST      /api/students/{id}/exclude, .../include
    GET       /api/students/{id}/totals

  Activity:
    /api/attendance, /api/confessions, /api/masses  (same shape)
    /api/home-visits

  Points:
    /api/point-types, /api/points, /api/summaries

ERROR HANDLING:
  Domain errors map onto HTTP status by category:
  - 400: validation (malformed input, immutable-field writes)
  - 404: referenced entity missing
  - 409: compound uniqueness violation
  - 500: everything else, including configuration errors, which are
         deliberately opaque to clients

SECURITY NOTE:
  No authentication or authorization. Deploy behind a trusted proxy.

SEE ALSO:
  - dto.go: Request body types and validation
  - server.go: Router setup and middleware
*/
package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/khedma/ministry-engine/activity"
	"github.com/khedma/ministry-engine/core"
	"github.com/khedma/ministry-engine/points"
	"github.com/khedma/ministry-engine/roster"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers. Everything is
// injected at construction.
type Handler struct {
	Roster   roster.Store
	Batches  *roster.BatchService
	Students *roster.StudentService
	Activity *activity.Service
	Points   *points.Service
	Ledger   points.Store
}

// NewHandler wires the handler with its services.
func NewHandler(rosterStore roster.Store, batches *roster.BatchService, students *roster.StudentService,
	activitySvc *activity.Service, pointsSvc *points.Service, ledger points.Store) *Handler {
	return &Handler{
		Roster:   rosterStore,
		Batches:  batches,
		Students: students,
		Activity: activitySvc,
		Points:   pointsSvc,
		Ledger:   ledger,
	}
}

func urlID(r *http.Request) core.ID {
	return core.ID(chi.URLParam(r, "id"))
}

// =============================================================================
// REFERENCE ENTITIES
// =============================================================================

func (h *Handler) ListClasses(w http.ResponseWriter, r *http.Request) {
	out, err := h.Roster.ListClasses(r.Context(), roster.NameFilter{Name: r.URL.Query().Get("name")})
	h.respondList(w, out, err)
}

func (h *Handler) CreateClass(w http.ResponseWriter, r *http.Request) {
	var req NameRequest
	if err := decode(r, &req); err != nil {
		writeDomainError(w, err)
		return
	}
	c := &roster.Class{ID: core.NewID(), Name: req.Name}
	if err := h.Roster.InsertClass(r.Context(), c); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (h *Handler) GetClass(w http.ResponseWriter, r *http.Request) {
	out, err := h.Roster.GetClass(r.Context(), urlID(r))
	h.respond(w, out, err)
}

func (h *Handler) UpdateClass(w http.ResponseWriter, r *http.Request) {
	var req NameRequest
	if err := decode(r, &req); err != nil {
		writeDomainError(w, err)
		return
	}
	out, err := h.Roster.UpdateClass(r.Context(), urlID(r), req.Name)
	h.respond(w, out, err)
}

func (h *Handler) DeleteClass(w http.ResponseWriter, r *http.Request) {
	h.respondDelete(w, h.Roster.DeleteClass(r.Context(), urlID(r)))
}

func (h *Handler) ListYears(w http.ResponseWriter, r *http.Request) {
	out, err := h.Roster.ListYears(r.Context(), roster.NameFilter{Name: r.URL.Query().Get("name")})
	h.respondList(w, out, err)
}

func (h *Handler) CreateYear(w http.ResponseWriter, r *http.Request) {
	var req NameRequest
	if err := decode(r, &req); err != nil {
		writeDomainError(w, err)
		return
	}
	y := &roster.Year{ID: core.NewID(), Name: req.Name}
	if err := h.Roster.InsertYear(r.Context(), y); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, y)
}

func (h *Handler) GetYear(w http.ResponseWriter, r *http.Request) {
	out, err := h.Roster.GetYear(r.Context(), urlID(r))
	h.respond(w, out, err)
}

func (h *Handler) UpdateYear(w http.ResponseWriter, r *http.Request) {
	var req NameRequest
	if err := decode(r, &req); err != nil {
		writeDomainError(w, err)
		return
	}
	out, err := h.Roster.UpdateYear(r.Context(), urlID(r), req.Name)
	h.respond(w, out, err)
}

func (h *Handler) DeleteYear(w http.ResponseWriter, r *http.Request) {
	h.respondDelete(w, h.Roster.DeleteYear(r.Context(), urlID(r)))
}

func (h *Handler) ListServants(w http.ResponseWriter, r *http.Request) {
	out, err := h.Roster.ListServants(r.Context(), roster.NameFilter{Name: r.URL.Query().Get("name")})
	h.respondList(w, out, err)
}

func (h *Handler) CreateServant(w http.ResponseWriter, r *http.Request) {
	var req ServantRequest
	if err := decode(r, &req); err != nil {
		writeDomainError(w, err)
		return
	}
	sv := &roster.Servant{
		ID: core.NewID(), Name: req.Name, Email: req.Email,
		MobileNumber: req.MobileNumber, BirthDate: req.BirthDate, AssignedClass: req.AssignedClass,
	}
	if err := h.Roster.InsertServant(r.Context(), sv); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, sv)
}

func (h *Handler) GetServant(w http.ResponseWriter, r *http.Request) {
	out, err := h.Roster.GetServant(r.Context(), urlID(r))
	h.respond(w, out, err)
}

func (h *Handler) UpdateServant(w http.ResponseWriter, r *http.Request) {
	var req ServantRequest
	if err := decode(r, &req); err != nil {
		writeDomainError(w, err)
		return
	}
	out, err := h.Roster.UpdateServant(r.Context(), &roster.Servant{
		ID: urlID(r), Name: req.Name, Email: req.Email,
		MobileNumber: req.MobileNumber, BirthDate: req.BirthDate, AssignedClass: req.AssignedClass,
	})
	h.respond(w, out, err)
}

func (h *Handler) DeleteServant(w http.ResponseWriter, r *http.Request) {
	h.respondDelete(w, h.Roster.DeleteServant(r.Context(), urlID(r)))
}

// =============================================================================
// BATCHES / BATCH YEARS
// =============================================================================

func (h *Handler) ListBatches(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	out, err := h.Roster.ListBatches(r.Context(), roster.BatchFilter{
		Name:         q.Get("name"),
		CurrYearName: q.Get("currYear"),
	})
	h.respondList(w, out, err)
}

func (h *Handler) CreateBatch(w http.ResponseWriter, r *http.Request) {
	var req BatchRequest
	if err := decode(r, &req); err != nil {
		writeDomainError(w, err)
		return
	}
	out, err := h.Batches.Create(r.Context(), &roster.Batch{
		Name: req.Name, Description: req.Description, CurrYear: req.CurrYear,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, out)
}

func (h *Handler) GetBatch(w http.ResponseWriter, r *http.Request) {
	out, err := h.Roster.GetBatch(r.Context(), urlID(r))
	h.respond(w, out, err)
}

func (h *Handler) UpdateBatch(w http.ResponseWriter, r *http.Request) {
	var req BatchRequest
	if err := decode(r, &req); err != nil {
		writeDomainError(w, err)
		return
	}
	out, err := h.Roster.UpdateBatch(r.Context(), &roster.Batch{
		ID: urlID(r), Name: req.Name, Description: req.Description,
	})
	h.respond(w, out, err)
}

func (h *Handler) AdvanceBatch(w http.ResponseWriter, r *http.Request) {
	var req AdvanceBatchRequest
	if err := decode(r, &req); err != nil {
		writeDomainError(w, err)
		return
	}
	out, err := h.Batches.Advance(r.Context(), urlID(r), req.NextYear)
	h.respond(w, out, err)
}

func (h *Handler) DeleteBatch(w http.ResponseWriter, r *http.Request) {
	h.respondDelete(w, h.Batches.Delete(r.Context(), urlID(r)))
}

func (h *Handler) ListBatchYears(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	out, err := h.Roster.ListBatchYears(r.Context(), roster.BatchYearFilter{
		BatchID:      core.ID(q.Get("batch")),
		YearID:       core.ID(q.Get("year")),
		BatchName:    q.Get("batchName"),
		YearName:     q.Get("yearName"),
		AcademicYear: q.Get("academicYear"),
	})
	h.respondList(w, out, err)
}

func (h *Handler) GetBatchYear(w http.ResponseWriter, r *http.Request) {
	out, err := h.Roster.GetBatchYear(r.Context(), urlID(r))
	h.respond(w, out, err)
}

// =============================================================================
// STUDENTS
// =============================================================================

func (h *Handler) ListStudents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := roster.StudentFilter{
		Name:            q.Get("name"),
		BatchName:       q.Get("batch"),
		ClassName:       q.Get("class"),
		ServantName:     q.Get("servant"),
		Mobile:          q.Get("mobile"),
		AnyMobile:       q.Get("anyMobile"),
		IncludeExcluded: q.Get("includeExcluded") == "true",
	}
	if m := q.Get("birthMonth"); m != "" {
		n, err := strconv.Atoi(m)
		if err != nil || n < 1 || n > 12 {
			writeDomainError(w, core.Validationf("birthMonth %q: want 1-12", m))
			return
		}
		f.BirthMonth = time.Month(n)
	}
	out, err := h.Roster.ListStudents(r.Context(), f)
	h.respondList(w, out, err)
}

func (h *Handler) CreateStudent(w http.ResponseWriter, r *http.Request) {
	var req StudentRequest
	if err := decode(r, &req); err != nil {
		writeDomainError(w, err)
		return
	}
	out, err := h.Students.Create(r.Context(), req.toStudent(""))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, out)
}

func (h *Handler) GetStudent(w http.ResponseWriter, r *http.Request) {
	out, err := h.Roster.GetStudent(r.Context(), urlID(r))
	h.respond(w, out, err)
}

func (h *Handler) UpdateStudent(w http.ResponseWriter, r *http.Request) {
	var req StudentRequest
	if err := decode(r, &req); err != nil {
		writeDomainError(w, err)
		return
	}
	out, err := h.Students.Update(r.Context(), req.toStudent(urlID(r)))
	h.respond(w, out, err)
}

func (h *Handler) ExcludeStudent(w http.ResponseWriter, r *http.Request) {
	out, err := h.Students.SetExcluded(r.Context(), urlID(r), true)
	h.respond(w, out, err)
}

func (h *Handler) IncludeStudent(w http.ResponseWriter, r *http.Request) {
	out, err := h.Students.SetExcluded(r.Context(), urlID(r), false)
	h.respond(w, out, err)
}

func (h *Handler) DeleteStudent(w http.ResponseWriter, r *http.Request) {
	h.respondDelete(w, h.Students.Delete(r.Context(), urlID(r)))
}

// GetStudentTotals aggregates the student's ledger on the fly. Scope with
// ?batchYear= for one enrollment context; omit for the whole history.
func (h *Handler) GetStudentTotals(w http.ResponseWriter, r *http.Request) {
	out, err := h.Points.StudentTotals(r.Context(), urlID(r), core.ID(r.URL.Query().Get("batchYear")))
	h.respond(w, out, err)
}

// =============================================================================
// ACTIVITY RECORDS
// =============================================================================
// The three kinds share handler logic; the router binds each kind to its
// own path prefix.

func (h *Handler) recordFilter(r *http.Request) (activity.RecordFilter, error) {
	q := r.URL.Query()
	f := activity.RecordFilter{
		StudentID:    core.ID(q.Get("student")),
		StudentName:  q.Get("studentName"),
		BatchYearID:  core.ID(q.Get("batchYear")),
		AcademicYear: q.Get("academicYear"),
	}
	for name, dst := range map[string]*core.Day{
		"date": &f.Date, "from": &f.DateFrom, "to": &f.DateTo,
	} {
		if s := q.Get(name); s != "" {
			d, err := core.ParseDay(s)
			if err != nil {
				return f, core.Validationf("%s %q: want 2006-01-02", name, s)
			}
			*dst = d
		}
	}
	return f, nil
}

func (h *Handler) ListActivity(kind activity.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f, err := h.recordFilter(r)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		out, err := h.Activity.List(r.Context(), kind, f)
		h.respondList(w, out, err)
	}
}

func (h *Handler) CreateActivity(kind activity.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ActivityRequest
		if err := decode(r, &req); err != nil {
			writeDomainError(w, err)
			return
		}
		at, err := parseWhen(req.Time)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		out, err := h.Activity.Create(r.Context(), kind,
			activity.StudentRef{ID: req.Student, Mobile: req.Mobile}, at, req.Notes)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, out)
	}
}

func (h *Handler) GetActivity(kind activity.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		out, err := h.Activity.Get(r.Context(), kind, urlID(r))
		h.respond(w, out, err)
	}
}

func (h *Handler) UpdateActivity(kind activity.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ActivityUpdateRequest
		if err := decode(r, &req); err != nil {
			writeDomainError(w, err)
			return
		}
		at, err := parseWhen(req.Time)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		out, err := h.Activity.Update(r.Context(), kind, urlID(r), at, req.Notes)
		h.respond(w, out, err)
	}
}

func (h *Handler) DeleteActivity(kind activity.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h.respondDelete(w, h.Activity.Delete(r.Context(), kind, urlID(r)))
	}
}

// =============================================================================
// HOME VISITS
// =============================================================================

func (h *Handler) ListHomeVisits(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := activity.HomeVisitFilter{
		StudentID:   core.ID(q.Get("student")),
		StudentName: q.Get("studentName"),
		ServantID:   core.ID(q.Get("servant")),
	}
	if s := q.Get("date"); s != "" {
		d, err := core.ParseDay(s)
		if err != nil {
			writeDomainError(w, core.Validationf("date %q: want 2006-01-02", s))
			return
		}
		f.VisitDate = d
	}
	out, err := h.Activity.ListHomeVisits(r.Context(), f)
	h.respondList(w, out, err)
}

func (h *Handler) CreateHomeVisit(w http.ResponseWriter, r *http.Request) {
	var req HomeVisitRequest
	if err := decode(r, &req); err != nil {
		writeDomainError(w, err)
		return
	}
	out, err := h.Activity.CreateHomeVisit(r.Context(), &activity.HomeVisit{
		Student: req.Student, VisitDate: req.VisitDate, Servants: req.Servants, Notes: req.Notes,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, out)
}

func (h *Handler) GetHomeVisit(w http.ResponseWriter, r *http.Request) {
	out, err := h.Activity.GetHomeVisit(r.Context(), urlID(r))
	h.respond(w, out, err)
}

func (h *Handler) UpdateHomeVisit(w http.ResponseWriter, r *http.Request) {
	var req HomeVisitRequest
	if err := decode(r, &req); err != nil {
		writeDomainError(w, err)
		return
	}
	out, err := h.Activity.UpdateHomeVisit(r.Context(), &activity.HomeVisit{
		ID: urlID(r), VisitDate: req.VisitDate, Servants: req.Servants, Notes: req.Notes,
	})
	h.respond(w, out, err)
}

func (h *Handler) DeleteHomeVisit(w http.ResponseWriter, r *http.Request) {
	h.respondDelete(w, h.Activity.DeleteHomeVisit(r.Context(), urlID(r)))
}

// =============================================================================
// POINTS
// =============================================================================

func (h *Handler) ListPointTypes(w http.ResponseWriter, r *http.Request) {
	out, err := h.Ledger.ListPointTypes(r.Context())
	h.respondList(w, out, err)
}

func (h *Handler) CreatePointType(w http.ResponseWriter, r *http.Request) {
	var req PointTypeRequest
	if err := decode(r, &req); err != nil {
		writeDomainError(w, err)
		return
	}
	t := &points.PointType{
		ID: core.NewID(), Name: req.Name, Value: req.Value, Description: req.Description,
	}
	if err := h.Ledger.InsertPointType(r.Context(), t); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

func (h *Handler) GetPointType(w http.ResponseWriter, r *http.Request) {
	out, err := h.Ledger.GetPointType(r.Context(), urlID(r))
	h.respond(w, out, err)
}

func (h *Handler) UpdatePointType(w http.ResponseWriter, r *http.Request) {
	var req PointTypeRequest
	if err := decode(r, &req); err != nil {
		writeDomainError(w, err)
		return
	}
	out, err := h.Ledger.UpdatePointType(r.Context(), &points.PointType{
		ID: urlID(r), Name: req.Name, Value: req.Value, Description: req.Description,
	})
	h.respond(w, out, err)
}

func (h *Handler) DeletePointType(w http.ResponseWriter, r *http.Request) {
	h.respondDelete(w, h.Ledger.DeletePointType(r.Context(), urlID(r)))
}

func (h *Handler) ListEntries(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := points.EntryFilter{
		StudentID:    core.ID(q.Get("student")),
		StudentName:  q.Get("studentName"),
		BatchYearID:  core.ID(q.Get("batchYear")),
		AcademicYear: q.Get("academicYear"),
		TypeID:       core.ID(q.Get("type")),
		TypeName:     q.Get("typeName"),
		SourceType:   core.SourceType(q.Get("sourceType")),
	}
	if s := q.Get("date"); s != "" {
		d, err := core.ParseDay(s)
		if err != nil {
			writeDomainError(w, core.Validationf("date %q: want 2006-01-02", s))
			return
		}
		f.Date = d
	}
	out, err := h.Ledger.ListEntries(r.Context(), f)
	h.respondList(w, out, err)
}

// CreateEntry mints a manual bonus entry.
func (h *Handler) CreateEntry(w http.ResponseWriter, r *http.Request) {
	var req BonusRequest
	if err := decode(r, &req); err != nil {
		writeDomainError(w, err)
		return
	}
	out, err := h.Points.Create(r.Context(), &points.Entry{
		Student:   req.Student,
		BatchYear: req.BatchYear,
		Type:      req.Type,
		Points:    req.Points,
		Date:      req.Date,
		Source:    core.Bonus(),
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, out)
}

func (h *Handler) GetEntry(w http.ResponseWriter, r *http.Request) {
	out, err := h.Ledger.GetEntry(r.Context(), urlID(r))
	h.respond(w, out, err)
}

func (h *Handler) UpdateEntry(w http.ResponseWriter, r *http.Request) {
	var req EntryUpdateRequest
	if err := decode(r, &req); err != nil {
		writeDomainError(w, err)
		return
	}
	out, err := h.Points.Update(r.Context(), &points.Entry{
		ID:        urlID(r),
		Student:   req.Student,
		BatchYear: req.BatchYear,
		Type:      req.Type,
		Points:    req.Points,
		Date:      req.Date,
		Source:    core.Bonus(), // overwritten by the store with the stored provenance
	})
	h.respond(w, out, err)
}

func (h *Handler) DeleteEntry(w http.ResponseWriter, r *http.Request) {
	h.respondDelete(w, h.Points.Delete(r.Context(), urlID(r)))
}

func (h *Handler) ListSummaries(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	out, err := h.Ledger.ListSummaries(r.Context(), points.SummaryFilter{
		StudentID:   core.ID(q.Get("student")),
		BatchYearID: core.ID(q.Get("batchYear")),
		StudentName: q.Get("studentName"),
	})
	h.respondList(w, out, err)
}

// =============================================================================
// RESPONSE HELPERS
// =============================================================================

func (h *Handler) respond(w http.ResponseWriter, data any, err error) {
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, data)
}

// respondList is respond for query endpoints.
func (h *Handler) respondList(w http.ResponseWriter, data any, err error) {
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, data)
}

func (h *Handler) respondDelete(w http.ResponseWriter, err error) {
	if err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// writeDomainError maps a domain error onto its HTTP status. Anything
// uncategorized, configuration errors included, is an opaque 500.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case core.IsNotFound(err):
		writeError(w, http.StatusNotFound, "not found", err)
	case core.IsDuplicate(err):
		writeError(w, http.StatusConflict, "duplicate", err)
	case errors.Is(err, core.ErrValidation):
		writeError(w, http.StatusBadRequest, "invalid request", err)
	default:
		writeError(w, http.StatusInternalServerError, "internal error", nil)
	}
}
