package api

import (
	"github.com/senomardetritos/sgbd-sqlserver/internal/alter"
	"github.com/senomardetritos/sgbd-sqlserver/internal/rollback"
	"github.com/senomardetritos/sgbd-sqlserver/internal/schema"
)

// DataResponse is the success envelope.
type DataResponse struct {
	Data any `json:"data"`
}

// ErrorResponse is the failure envelope.
type ErrorResponse struct {
	Error string `json:"error"`
}

// AlterErrorResponse reports a failed alteration along with what had
// already run and whether it was undone.
type AlterErrorResponse struct {
	Error        string           `json:"error"`
	Completed    []string         `json:"completed"`
	RolledBack   bool             `json:"rolled_back"`
	Compensation *rollback.Result `json:"compensation,omitempty"`
}

// ColumnRequest is the body of the add-column endpoint.
type ColumnRequest struct {
	Data columnBody `json:"data"`
}

// columnBody accepts the legacy "default" key next to "default_value".
type columnBody struct {
	schema.ColumnSpec
	Default string `json:"default,omitempty"`
}

func (b columnBody) spec() schema.ColumnSpec {
	c := b.ColumnSpec
	if c.DefaultValue == "" {
		c.DefaultValue = b.Default
	}
	return c
}

// AlterRequest is the body of the alter and preview endpoints.
type AlterRequest struct {
	Data                schema.ColumnSpec `json:"data"`
	Field               schema.ColumnSpec `json:"field"`
	ExpectedFingerprint string            `json:"expected_fingerprint,omitempty"`
}

// PlanResponse is a previewed plan.
type PlanResponse struct {
	PlanID      string       `json:"plan_id"`
	Fingerprint string       `json:"fingerprint"`
	Steps       []alter.Step `json:"steps"`
	Warnings    []string     `json:"warnings,omitempty"`
}

// StatementResponse reports the statement a table operation executed.
type StatementResponse struct {
	SQL string `json:"sql"`
}
