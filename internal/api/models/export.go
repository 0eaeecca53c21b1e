package models

import (
	"github.com/bjjsocial/bjjsocial/internal/exporter"
)

// ExportOptions are the rendering options accepted in request bodies.
type ExportOptions struct {
	Theme         string `json:"theme,omitempty" validate:"omitempty,oneof=light dark"`
	IncludeStyles *bool  `json:"includeStyles,omitempty"`
	Styles        string `json:"styles,omitempty" validate:"max=20000"`
}

// ToExporter converts to exporter.Options.
func (o ExportOptions) ToExporter() exporter.Options {
	return exporter.Options{
		Styles:        o.Styles,
		IncludeStyles: o.IncludeStyles,
		Theme:         exporter.Theme(o.Theme),
	}.Normalize()
}

// TableExportRequest is the body of POST /v1/exports/table.
type TableExportRequest struct {
	Title   string        `json:"title" validate:"required,max=200"`
	Headers []string      `json:"headers" validate:"max=50"`
	Rows    [][]string    `json:"rows" validate:"max=5000,dive,max=50"`
	Options ExportOptions `json:"options"`
}

// CustomExportRequest is the body of POST /v1/exports/custom.
type CustomExportRequest struct {
	Title   string        `json:"title" validate:"required,max=200"`
	Content string        `json:"content" validate:"max=1048576"`
	Options ExportOptions `json:"options"`
}

// ElementExportRequest is the body of POST /v1/exports/element.
type ElementExportRequest struct {
	Title     string        `json:"title" validate:"required,max=200"`
	Page      string        `json:"page" validate:"required,max=2097152"`
	ElementID string        `json:"elementId" validate:"required,max=200"`
	Options   ExportOptions `json:"options"`
}

// BatchExportRequest is the body of POST /v1/exports/batch.
type BatchExportRequest struct {
	Items   []exporter.BatchItem `json:"items" validate:"required,min=1,max=100"`
	Options ExportOptions        `json:"options"`
}

// ExportedFile is one delivered batch document.
type ExportedFile struct {
	Name     string `json:"name"`
	Location string `json:"location,omitempty"`
}

// BatchExportResponse reports a synchronous batch run.
type BatchExportResponse struct {
	Delivered int            `json:"delivered"`
	Skipped   int            `json:"skipped"`
	Failed    int            `json:"failed"`
	Files     []ExportedFile `json:"files"`
	Errors    []string       `json:"errors,omitempty"`
}

// BatchJobAccepted reports an enqueued batch job.
type BatchJobAccepted struct {
	JobID string `json:"jobId"`
	Items int    `json:"items"`
}
