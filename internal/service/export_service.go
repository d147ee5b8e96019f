package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/noah-isme/obra-api/internal/models"
	appErrors "github.com/noah-isme/obra-api/pkg/errors"
	"github.com/noah-isme/obra-api/pkg/export"
)

// Export formats.
const (
	ExportFormatCSV = "csv"
	ExportFormatPDF = "pdf"
)

type historySource interface {
	ProjectHistory(ctx context.Context, projectID int64) ([]models.TaskHistoryEntry, error)
}

type datasetRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

// ExportFile is a rendered document ready to be sent.
type ExportFile struct {
	Filename    string
	ContentType string
	Data        []byte
}

// ExportService renders task history documents.
type ExportService struct {
	history     historySource
	projects    projectReader
	permissions capabilityResolver
	csv         datasetRenderer
	pdf         datasetRenderer
	logger      *zap.Logger
}

// NewExportService constructs an ExportService. Nil renderers fall back to the defaults.
func NewExportService(history historySource, projects projectReader, permissions capabilityResolver, logger *zap.Logger, csv, pdf datasetRenderer) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &ExportService{history: history, projects: projects, permissions: permissions, csv: csv, pdf: pdf, logger: logger}
}

// ProjectHistory renders every task transition of a project.
func (s *ExportService) ProjectHistory(ctx context.Context, actor *models.Identity, projectID int64, format string) (*ExportFile, error) {
	format = strings.ToLower(strings.TrimSpace(format))
	if format == "" {
		format = ExportFormatCSV
	}
	if format != ExportFormatCSV && format != ExportFormatPDF {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("Formato no soportado: %s", format))
	}

	project, caps, err := loadProjectWithCaps(ctx, s.projects, s.permissions, actor, projectID)
	if err != nil {
		return nil, err
	}
	if !CanView(caps, ProjectSnapshot(project)) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "No tienes acceso a este proyecto")
	}

	entries, err := s.history.ProjectHistory(ctx, projectID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to load project history")
	}
	dataset := historyDataset(project, entries)

	renderer, contentType := s.csv, "text/csv; charset=utf-8"
	if format == ExportFormatPDF {
		renderer, contentType = s.pdf, "application/pdf"
	}
	data, err := renderer.Render(dataset)
	if err != nil {
		s.logger.Error("failed to render history export", zap.Int64("project_id", projectID), zap.String("format", format), zap.Error(err))
		return nil, appErrors.Internal(err, "failed to render export")
	}
	return &ExportFile{
		Filename:    fmt.Sprintf("historial_proyecto_%d.%s", projectID, format),
		ContentType: contentType,
		Data:        data,
	}, nil
}

func historyDataset(project *models.Project, entries []models.TaskHistoryEntry) export.Dataset {
	rows := make([]map[string]string, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, map[string]string{
			"fecha":    e.CreatedAt.Format("2006-01-02 15:04"),
			"tarea":    e.TaskTitle,
			"usuario":  e.UserName,
			"anterior": e.PreviousState.Label(),
			"nuevo":    e.NewState.Label(),
			"id":       strconv.FormatInt(e.TaskID, 10),
		})
	}
	return export.Dataset{
		Title: "Historial de tareas - " + project.Name,
		Columns: []export.Column{
			{Key: "fecha", Label: "Fecha", Width: 1.2},
			{Key: "id", Label: "Tarea #", Width: 0.6},
			{Key: "tarea", Label: "Tarea", Width: 2},
			{Key: "usuario", Label: "Usuario", Width: 1.5},
			{Key: "anterior", Label: "Estado anterior", Width: 1},
			{Key: "nuevo", Label: "Estado nuevo", Width: 1},
		},
		Rows: rows,
	}
}
