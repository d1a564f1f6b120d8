package handler

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"dupcheck/internal/domain"
	"dupcheck/internal/port"
	"dupcheck/internal/report"
	"dupcheck/internal/service"
)

// CheckHandler handles upload, review, report and merge of check runs.
type CheckHandler struct {
	checkService   service.CheckService
	runs           *service.RunRegistry
	maxUploadBytes int64
}

// NewCheckHandler creates a new CheckHandler.
func NewCheckHandler(checkService service.CheckService, runs *service.RunRegistry, maxUploadBytes int64) *CheckHandler {
	return &CheckHandler{checkService: checkService, runs: runs, maxUploadBytes: maxUploadBytes}
}

// RunView is the summary representation of a check run.
type RunView struct {
	ID                  uuid.UUID           `json:"id"`
	ReferenceSource     string              `json:"reference_source"`
	CandidateSource     string              `json:"candidate_source"`
	StartedAt           time.Time           `json:"started_at"`
	CompletedAt         time.Time           `json:"completed_at"`
	Summary             domain.RunSummary   `json:"summary"`
	CandidateExclusions []domain.Exclusion  `json:"candidate_exclusions"`
	ReferenceExclusions []domain.Exclusion  `json:"reference_exclusions"`
	Merged              *domain.MergeResult `json:"merged,omitempty"`
}

func newRunView(run *domain.CheckRun) RunView {
	return RunView{
		ID:                  run.ID,
		ReferenceSource:     run.ReferenceSource,
		CandidateSource:     run.CandidateSource,
		StartedAt:           run.StartedAt,
		CompletedAt:         run.CompletedAt,
		Summary:             run.Summary,
		CandidateExclusions: run.CandidateExclusion,
		ReferenceExclusions: run.ReferenceExclusion,
		Merged:              run.Merged,
	}
}

// Create handles POST /api/v1/checks
// @Summary      Run a duplicate check
// @Description  Checks an uploaded candidate batch against the reference store, or against an uploaded reference file when one is given
// @Tags         checks
// @Accept       multipart/form-data
// @Produce      json
// @Param        candidate formData file true "Candidate batch (xlsx or csv)"
// @Param        reference formData file false "Reference file; the reference store is used when absent"
// @Param        sheet formData string false "Worksheet of an xlsx candidate (default: first sheet)"
// @Success      201 {object} APIResponse{data=RunView}
// @Failure      400 {object} APIResponse "Missing file or unsupported type"
// @Failure      413 {object} APIResponse "File too large"
// @Failure      422 {object} APIResponse "Unreadable source or missing column"
// @Failure      503 {object} APIResponse "Reference store unavailable"
// @Router       /checks [post]
func (h *CheckHandler) Create(c *gin.Context) {
	candFile, candHeader, err := c.Request.FormFile("candidate")
	if err != nil {
		RespondError(c, http.StatusBadRequest, "MISSING_FILE", "candidate file field is required")
		return
	}
	defer func() { _ = candFile.Close() }()
	if err := h.checkSize(candHeader); err != nil {
		HandleError(c, err)
		return
	}

	sheet := c.PostForm("sheet")
	input := service.CheckInput{
		Candidate: port.SourceRef{Location: candHeader.Filename, Body: candFile, Sheet: sheet},
	}

	refFile, refHeader, err := c.Request.FormFile("reference")
	switch {
	case err == nil:
		defer func() { _ = refFile.Close() }()
		if err := h.checkSize(refHeader); err != nil {
			HandleError(c, err)
			return
		}
		input.Reference = port.SourceRef{Location: refHeader.Filename, Body: refFile}
	case errors.Is(err, http.ErrMissingFile):
		input.Reference = port.SourceRef{Location: service.ReferenceStoreSource}
	default:
		RespondError(c, http.StatusBadRequest, "INVALID_REQUEST", "invalid reference file field")
		return
	}

	run, err := h.checkService.Run(c.Request.Context(), input)
	if err != nil {
		HandleError(c, err)
		return
	}
	h.runs.Put(run)

	RespondCreated(c, newRunView(run))
}

func (h *CheckHandler) checkSize(header *multipart.FileHeader) error {
	if h.maxUploadBytes > 0 && header.Size > h.maxUploadBytes {
		return fmt.Errorf("%s: %w", header.Filename, domain.ErrFileTooLarge)
	}
	return nil
}

// List handles GET /api/v1/checks
// @Summary      List check runs
// @Description  Lists the runs held by this server, newest first
// @Tags         checks
// @Produce      json
// @Success      200 {object} APIResponse{data=[]RunView,meta=PagMeta}
// @Router       /checks [get]
func (h *CheckHandler) List(c *gin.Context) {
	runs := h.runs.List()
	views := make([]RunView, 0, len(runs))
	for _, run := range runs {
		views = append(views, newRunView(run))
	}
	RespondPaginated(c, views, PagMeta{Total: len(views), Offset: 0, Limit: len(views)})
}

// GetByID handles GET /api/v1/checks/:id
// @Summary      Get a check run
// @Description  Returns the run summary and the match outcome of every candidate
// @Tags         checks
// @Produce      json
// @Param        id path string true "Run ID"
// @Success      200 {object} APIResponse
// @Failure      400 {object} APIResponse
// @Failure      404 {object} APIResponse
// @Router       /checks/{id} [get]
func (h *CheckHandler) GetByID(c *gin.Context) {
	run, ok := h.lookup(c)
	if !ok {
		return
	}
	RespondOK(c, gin.H{
		"run":     newRunView(run),
		"results": run.Results,
	})
}

// Unique handles GET /api/v1/checks/:id/unique
// @Summary      List unique candidates
// @Description  Returns the candidates that matched no reference invoice, for review before merging
// @Tags         checks
// @Produce      json
// @Param        id path string true "Run ID"
// @Success      200 {object} APIResponse{data=[]domain.InvoiceRecord}
// @Failure      400 {object} APIResponse
// @Failure      404 {object} APIResponse
// @Router       /checks/{id}/unique [get]
func (h *CheckHandler) Unique(c *gin.Context) {
	run, ok := h.lookup(c)
	if !ok {
		return
	}
	unique := run.Unique()
	if unique == nil {
		unique = []domain.InvoiceRecord{}
	}
	RespondOK(c, unique)
}

// Report handles GET /api/v1/checks/:id/report?format=xlsx|csv
// @Summary      Download the annotated report
// @Description  The candidate batch with Duplicate and Match Logic columns appended
// @Tags         checks
// @Produce      application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Produce      text/csv
// @Param        id path string true "Run ID"
// @Param        format query string false "Report format" Enums(xlsx, csv) default(xlsx)
// @Success      200 {file} file
// @Failure      400 {object} APIResponse
// @Failure      404 {object} APIResponse
// @Router       /checks/{id}/report [get]
func (h *CheckHandler) Report(c *gin.Context) {
	run, ok := h.lookup(c)
	if !ok {
		return
	}

	fileType := domain.FileType(c.DefaultQuery("format", string(domain.FileTypeXLSX)))
	contentType, known := domain.ContentTypes[fileType]
	if !known {
		RespondError(c, http.StatusBadRequest, "INVALID_FORMAT", "format must be xlsx or csv")
		return
	}

	var buf bytes.Buffer
	if err := h.checkService.Export(run, fileType, &buf); err != nil {
		HandleError(c, err)
		return
	}

	filename := report.BuildFilename(report.DefaultBaseName, fileType, run.CompletedAt)
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	c.Data(http.StatusOK, contentType, buf.Bytes())
}

type mergeRequest struct {
	Rows []int `json:"rows" binding:"omitempty,dive,gt=0"`
}

// Merge handles POST /api/v1/checks/:id/merge
// @Summary      Merge unique candidates
// @Description  Appends the run's unique candidates to the reference store. An optional {"rows": [...]} body restricts the merge to those candidate rows; the remaining rows can be merged by a later call, and rows that failed are retried
// @Tags         checks
// @Accept       json
// @Produce      json
// @Param        id path string true "Run ID"
// @Param        body body mergeRequest false "Candidate rows to merge"
// @Success      200 {object} APIResponse{data=domain.MergeResult} "Outcome of this merge"
// @Failure      400 {object} APIResponse
// @Failure      404 {object} APIResponse
// @Failure      409 {object} APIResponse "Nothing left to merge"
// @Failure      503 {object} APIResponse "Reference store unavailable"
// @Router       /checks/{id}/merge [post]
func (h *CheckHandler) Merge(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	var req mergeRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		RespondError(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}

	var result *domain.MergeResult
	err := h.runs.Update(id, func(run *domain.CheckRun) error {
		var err error
		result, err = h.checkService.Merge(c.Request.Context(), run, req.Rows)
		return err
	})
	if err != nil {
		HandleError(c, err)
		return
	}
	RespondOK(c, result)
}

func parseID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "INVALID_ID", "invalid check run ID")
		return uuid.Nil, false
	}
	return id, true
}

// lookup returns a private copy of the run named in the path.
func (h *CheckHandler) lookup(c *gin.Context) (*domain.CheckRun, bool) {
	id, ok := parseID(c)
	if !ok {
		return nil, false
	}
	run, err := h.runs.Get(id)
	if err != nil {
		HandleError(c, err)
		return nil, false
	}
	return run, true
}
