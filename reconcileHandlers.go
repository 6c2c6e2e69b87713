package main

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/cash_reconciliation/config"
	"github.com/mmdatafocus/cash_reconciliation/middlewares"
	"github.com/mmdatafocus/cash_reconciliation/models"
	"github.com/mmdatafocus/cash_reconciliation/models/reports"
	"github.com/mmdatafocus/cash_reconciliation/utils"
	"github.com/mmdatafocus/cash_reconciliation/workflow"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

type runReconciliationRequest struct {
	Date    string `json:"date" validate:"required,datetime=2006-01-02"`
	StoreId string `json:"store_id" validate:"omitempty,max=64"`
}

type runRangeRequest struct {
	From    string `json:"from" validate:"required,datetime=2006-01-02"`
	To      string `json:"to" validate:"required,datetime=2006-01-02"`
	StoreId string `json:"store_id" validate:"omitempty,max=64"`
}

type listReconciliationsQuery struct {
	Date           string `form:"date" validate:"required,datetime=2006-01-02"`
	StoreId        string `form:"store_id" validate:"omitempty,max=64"`
	Status         string `form:"status" validate:"omitempty,oneof=matched over_collection under_collection unaccounted"`
	HighPriority   *bool  `form:"high_priority"`
	MinAbsVariance string `form:"min_abs_variance" validate:"omitempty,numeric"`
	Page           int    `form:"page" validate:"omitempty,min=1"`
	Limit          int    `form:"limit" validate:"omitempty,min=1,max=500"`
}

type ledgerScopeQuery struct {
	Date    string `form:"date" validate:"required,datetime=2006-01-02"`
	StoreId string `form:"store_id" validate:"omitempty,max=64"`
	Upload  bool   `form:"upload"`
}

// reportRef is the claiming report attached to a listed ledger row.
type reportRef struct {
	ReportId       string          `json:"report_id"`
	StoreId        string          `json:"store_id"`
	TotalCollected decimal.Decimal `json:"total_collected"`
}

type reconciliationRecordView struct {
	*models.ReconciliationRecord
	Report *reportRef `json:"report,omitempty"`
}

type listReconciliationsResponse struct {
	Records  []*reconciliationRecordView `json:"records"`
	PageInfo models.PageInfo             `json:"page_info"`
}

type rangeErrorResponse struct {
	Error   string                `json:"error"`
	Partial *workflow.RangeResult `json:"partial,omitempty"`
}

// runStatus maps engine errors to HTTP statuses.
func runStatus(err error) int {
	switch {
	case errors.Is(err, workflow.ErrInvalidRange),
		errors.Is(err, workflow.ErrRangeTooLarge),
		errors.Is(err, workflow.ErrInvalidRequest):
		return http.StatusBadRequest
	case errors.Is(err, workflow.ErrAmbiguousClaim),
		errors.Is(err, workflow.ErrMalformedClaims),
		errors.Is(err, workflow.ErrScopeLocked):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func (s *apiServer) bindJSON(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return false
	}
	if err := s.validate.Struct(req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "validation failed", "fields": utils.ProcessValidationErrors(err)})
		return false
	}
	return true
}

func (s *apiServer) bindQuery(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindQuery(req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid query"})
		return false
	}
	if err := s.validate.Struct(req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "validation failed", "fields": utils.ProcessValidationErrors(err)})
		return false
	}
	return true
}

// storeScope resolves the caller's store or writes 403.
func storeScope(c *gin.Context, requested string) (string, bool) {
	storeId, ok := middlewares.ResolveStoreScope(c.Request.Context(), requested)
	if !ok {
		c.JSON(http.StatusForbidden, gin.H{"error": "store_id is outside the caller's scope"})
		return "", false
	}
	return storeId, true
}

func (s *apiServer) runReconciliationHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req runReconciliationRequest
		if !s.bindJSON(c, &req) {
			return
		}
		storeId, ok := storeScope(c, req.StoreId)
		if !ok {
			return
		}
		date, err := utils.ParseDate(req.Date)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		_, reconciler := s.deps()
		result, err := reconciler.ReconcileDate(c.Request.Context(), date, storeId)
		if err != nil {
			status := runStatus(err)
			if status == http.StatusInternalServerError {
				config.LogError(s.logger, "reconcileHandlers.go", "runReconciliationHandler", "ReconcileDate", req, err)
			}
			c.JSON(status, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

func (s *apiServer) runRangeHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req runRangeRequest
		if !s.bindJSON(c, &req) {
			return
		}
		storeId, ok := storeScope(c, req.StoreId)
		if !ok {
			return
		}
		from, err := utils.ParseDate(req.From)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		to, err := utils.ParseDate(req.To)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		_, reconciler := s.deps()
		result, err := reconciler.ReconcileRange(c.Request.Context(), from, to, storeId)
		if err != nil {
			status := runStatus(err)
			if status == http.StatusInternalServerError {
				config.LogError(s.logger, "reconcileHandlers.go", "runRangeHandler", "ReconcileRange", req, err)
			}
			resp := rangeErrorResponse{Error: err.Error()}
			if result != nil && len(result.Days) > 0 {
				resp.Partial = result
			}
			c.JSON(status, resp)
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

func (q listReconciliationsQuery) filter(storeId string) (models.ReconciliationRecordFilter, error) {
	date, err := utils.ParseDate(q.Date)
	if err != nil {
		return models.ReconciliationRecordFilter{}, err
	}
	f := models.ReconciliationRecordFilter{
		Date:         date,
		StoreId:      storeId,
		HighPriority: q.HighPriority,
		Page:         q.Page,
		Limit:        q.Limit,
	}
	if q.Status != "" {
		status, err := models.ParseReconciliationStatus(q.Status)
		if err != nil {
			return f, err
		}
		f.Status = status
	}
	if q.MinAbsVariance != "" {
		v, err := utils.ParseDecimal(q.MinAbsVariance)
		if err != nil {
			return f, fmt.Errorf("min_abs_variance: %w", err)
		}
		v = v.Abs()
		f.MinAbsVariance = &v
	}
	return f, nil
}

func (s *apiServer) listReconciliationsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var q listReconciliationsQuery
		if !s.bindQuery(c, &q) {
			return
		}
		storeId, ok := storeScope(c, q.StoreId)
		if !ok {
			return
		}
		f, err := q.filter(storeId)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		ctx := c.Request.Context()
		records, pageInfo, err := models.ListReconciliationRecords(ctx, s.database(), f)
		if err != nil {
			config.LogError(s.logger, "reconcileHandlers.go", "listReconciliationsHandler", "ListReconciliationRecords", q, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list reconciliation records"})
			return
		}

		reportIds := make([]string, 0, len(records))
		for _, rec := range records {
			if rec.ReportId != nil {
				reportIds = append(reportIds, *rec.ReportId)
			}
		}
		reportIds = utils.UniqueSlice(reportIds)
		refs := make(map[string]*reportRef, len(reportIds))
		if len(reportIds) > 0 {
			found, errs := middlewares.GetCashReports(ctx, reportIds)
			for i, report := range found {
				if errs != nil && errs[i] != nil {
					s.logger.WithFields(logrus.Fields{
						"field":     "listReconciliationsHandler",
						"report_id": reportIds[i],
					}).Warn("claiming report not loaded: " + errs[i].Error())
					continue
				}
				if report == nil {
					continue
				}
				refs[report.ReportId] = &reportRef{
					ReportId:       report.ReportId,
					StoreId:        report.StoreId,
					TotalCollected: report.TotalCollected,
				}
			}
		}

		views := make([]*reconciliationRecordView, 0, len(records))
		for _, rec := range records {
			view := &reconciliationRecordView{ReconciliationRecord: rec}
			if rec.ReportId != nil {
				view.Report = refs[*rec.ReportId]
			}
			views = append(views, view)
		}
		c.JSON(http.StatusOK, listReconciliationsResponse{Records: views, PageInfo: pageInfo})
	}
}

func (s *apiServer) summaryHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var q ledgerScopeQuery
		if !s.bindQuery(c, &q) {
			return
		}
		storeId, ok := storeScope(c, q.StoreId)
		if !ok {
			return
		}
		date, err := utils.ParseDate(q.Date)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		summary, err := models.SummarizeReconciliation(c.Request.Context(), s.database(), date, storeId)
		if err != nil {
			config.LogError(s.logger, "reconcileHandlers.go", "summaryHandler", "SummarizeReconciliation", q, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to summarize reconciliation"})
			return
		}
		c.JSON(http.StatusOK, summary)
	}
}

func (s *apiServer) exportHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var q ledgerScopeQuery
		if !s.bindQuery(c, &q) {
			return
		}
		storeId, ok := storeScope(c, q.StoreId)
		if !ok {
			return
		}
		date, err := utils.ParseDate(q.Date)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		ctx := c.Request.Context()
		data, err := reports.ExportReconciliation(ctx, s.database(), date, storeId)
		if err != nil {
			config.LogError(s.logger, "reconcileHandlers.go", "exportHandler", "ExportReconciliation", q, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to export reconciliation"})
			return
		}

		objectName := reports.ExportObjectName(date, storeId, time.Now().UTC())
		if q.Upload {
			uri, err := utils.UploadBytesToGCS(ctx, objectName, data, utils.ContentTypeXLSX)
			if err != nil {
				config.LogError(s.logger, "reconcileHandlers.go", "exportHandler", "UploadBytesToGCS", objectName, err)
				c.JSON(http.StatusBadGateway, gin.H{"error": "failed to upload export"})
				return
			}
			c.JSON(http.StatusOK, gin.H{"uri": uri})
			return
		}

		filename := objectName[strings.LastIndex(objectName, "/")+1:]
		c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
		c.Data(http.StatusOK, utils.ContentTypeXLSX, data)
	}
}
