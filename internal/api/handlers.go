package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/senomardetritos/sgbd-sqlserver/internal/alter"
	"github.com/senomardetritos/sgbd-sqlserver/internal/schema"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	if err := s.engine.Ping(r.Context()); err != nil {
		s.logger.Warn("catalog unreachable", "error", err)
		status = "degraded"
	}
	jsonResponse(w, http.StatusOK, map[string]string{
		"status":  status,
		"dialect": s.engine.Dialect().Name(),
	})
}

func (s *Server) handleTypes(w http.ResponseWriter, r *http.Request) {
	dataResponse(w, s.engine.Types())
}

func (s *Server) handleListDatabases(w http.ResponseWriter, r *http.Request) {
	dbs, err := s.engine.ListDatabases(r.Context())
	if err != nil {
		errorResponse(w, statusFor(err), err.Error())
		return
	}
	dataResponse(w, dbs)
}

func (s *Server) handleListTables(w http.ResponseWriter, r *http.Request) {
	tables, err := s.engine.ListTables(r.Context(), r.PathValue("database"))
	if err != nil {
		errorResponse(w, statusFor(err), err.Error())
		return
	}
	dataResponse(w, tables)
}

func (s *Server) handleDescribeTable(w http.ResponseWriter, r *http.Request) {
	cols, err := s.engine.DescribeTable(r.Context(), r.PathValue("database"), r.PathValue("table"))
	if err != nil {
		errorResponse(w, statusFor(err), err.Error())
		return
	}
	dataResponse(w, cols)
}

func (s *Server) handleCreateTable(w http.ResponseWriter, r *http.Request) {
	var cols []schema.TableColumn
	if err := json.NewDecoder(r.Body).Decode(&cols); err != nil {
		errorResponse(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	spec := schema.TableCreateSpec{Table: r.PathValue("table"), Columns: cols}
	st, err := s.engine.CreateTable(r.Context(), r.PathValue("database"), spec)
	if err != nil {
		errorResponse(w, statusFor(err), err.Error())
		return
	}
	dataResponse(w, StatementResponse{SQL: st.Text})
}

func (s *Server) handleAddColumn(w http.ResponseWriter, r *http.Request) {
	var req ColumnRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errorResponse(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	st, err := s.engine.AddColumn(r.Context(), r.PathValue("database"), r.PathValue("table"), req.Data.spec())
	if err != nil {
		errorResponse(w, statusFor(err), err.Error())
		return
	}
	dataResponse(w, StatementResponse{SQL: st.Text})
}

func (s *Server) handleDropColumn(w http.ResponseWriter, r *http.Request) {
	st, err := s.engine.DropColumn(r.Context(), r.PathValue("database"), r.PathValue("table"), r.PathValue("column"))
	if err != nil {
		errorResponse(w, statusFor(err), err.Error())
		return
	}
	dataResponse(w, StatementResponse{SQL: st.Text})
}

// alterRequest decodes the body and binds the path parameters.
func alterRequest(r *http.Request) (schema.AlterColumnRequest, error) {
	var body AlterRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		return schema.AlterColumnRequest{}, err
	}
	return schema.AlterColumnRequest{
		Database:            r.PathValue("database"),
		Table:               r.PathValue("table"),
		CurrentColumnName:   r.PathValue("column"),
		Desired:             body.Data,
		Prior:               body.Field,
		ExpectedFingerprint: body.ExpectedFingerprint,
	}, nil
}

func (s *Server) handleAlterColumn(w http.ResponseWriter, r *http.Request) {
	req, err := alterRequest(r)
	if err != nil {
		errorResponse(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	out, err := s.engine.AlterColumn(r.Context(), req)
	if err != nil {
		if out == nil {
			errorResponse(w, statusFor(err), err.Error())
			return
		}
		jsonResponse(w, statusFor(err), AlterErrorResponse{
			Error:        err.Error(),
			Completed:    out.Completed,
			RolledBack:   out.RolledBack,
			Compensation: out.Compensation,
		})
		return
	}
	dataResponse(w, out)
}

func (s *Server) handlePreviewAlter(w http.ResponseWriter, r *http.Request) {
	req, err := alterRequest(r)
	if err != nil {
		errorResponse(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	plan, err := s.engine.PreviewAlter(r.Context(), req)
	if err != nil {
		errorResponse(w, statusFor(err), err.Error())
		return
	}
	dataResponse(w, planResponse(plan))
}

func planResponse(plan *alter.Plan) PlanResponse {
	return PlanResponse{
		PlanID:      plan.ID.String(),
		Fingerprint: plan.Fingerprint(),
		Steps:       plan.Steps,
		Warnings:    plan.Warnings,
	}
}

func (s *Server) handleJournal(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			errorResponse(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}
	entries, err := s.journal.Recent(r.Context(), limit)
	if err != nil {
		errorResponse(w, http.StatusInternalServerError, err.Error())
		return
	}
	dataResponse(w, entries)
}
