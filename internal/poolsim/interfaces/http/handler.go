package http

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/wyfcoding/creditpool/internal/poolsim/application"
	"github.com/wyfcoding/creditpool/internal/poolsim/domain"
	"github.com/wyfcoding/creditpool/pkg/logger"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type Handler struct {
	app *application.PoolSimApplicationService
}

func NewHandler(r gin.IRouter, app *application.PoolSimApplicationService) *Handler {
	h := &Handler{app: app}
	v1 := r.Group("/api/v1/poolsim")
	{
		v1.POST("/runs", h.Run)
		v1.POST("/runs/async", h.Start)
		v1.POST("/runs/:id/stop", h.Stop)
		v1.GET("/runs", h.List)
		v1.GET("/runs/:id", h.Get)
		v1.GET("/runs/:id/paths", h.Paths)
		v1.GET("/runs/:id/paths.csv", h.ExportCSV)
		v1.GET("/runs/:id/samples", h.Samples)
		v1.GET("/runs/:id/histogram", h.Histogram)
		v1.GET("/runs/:id/report.xlsx", h.ExportExcel)
		v1.GET("/scenarios", h.Scenarios)
		v1.POST("/scenarios/compare", h.Compare)
	}
	return h
}

// bindJSON 允许空请求体，此时使用零值命令
func bindJSON(c *gin.Context, obj any) bool {
	if err := c.ShouldBindJSON(obj); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return false
	}
	return true
}

// Run 同步运行；被取消时仍返回 200，complete 为 false
func (h *Handler) Run(c *gin.Context) {
	var cmd application.RunSimulationCommand
	if !bindJSON(c, &cmd) {
		return
	}
	dto, err := h.app.RunSimulation(c.Request.Context(), cmd)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto)
}

func (h *Handler) Start(c *gin.Context) {
	var cmd application.RunSimulationCommand
	if !bindJSON(c, &cmd) {
		return
	}
	dto, err := h.app.StartSimulation(c.Request.Context(), cmd)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, dto)
}

func (h *Handler) Stop(c *gin.Context) {
	if err := h.app.StopSimulation(c.Request.Context(), c.Param("id")); err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "stopping"})
}

func (h *Handler) List(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	out, err := h.app.ListRuns(c.Request.Context(), page, pageSize)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *Handler) Get(c *gin.Context) {
	dto, err := h.app.GetRun(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto)
}

func (h *Handler) Paths(c *gin.Context) {
	results, err := h.app.GetPathResults(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": results, "total": len(results)})
}

func (h *Handler) Samples(c *gin.Context) {
	out, err := h.app.GetSamples(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

// Histogram 查询参数 metric=irr|npv，bins 默认 20
func (h *Handler) Histogram(c *gin.Context) {
	q := application.HistogramQuery{Metric: c.Query("metric")}
	if raw := c.Query("bins"); raw != "" {
		bins, err := strconv.Atoi(raw)
		if err != nil || bins < 1 {
			h.writeError(c, &domain.ConfigError{Fields: []domain.FieldError{{Field: "bins", Reason: "must be a positive integer, got " + raw}}})
			return
		}
		q.Bins = bins
	}
	out, err := h.app.GetHistogram(c.Request.Context(), c.Param("id"), q)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *Handler) ExportCSV(c *gin.Context) {
	h.export(c, "text/csv", "simulation_results.csv", h.app.ExportCSV)
}

func (h *Handler) ExportExcel(c *gin.Context) {
	h.export(c, xlsxContentType, "report.xlsx", h.app.ExportExcel)
}

func (h *Handler) Scenarios(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"items": h.app.ListScenarios()})
}

func (h *Handler) Compare(c *gin.Context) {
	var cmd application.CompareScenariosCommand
	if !bindJSON(c, &cmd) {
		return
	}
	out, err := h.app.CompareScenarios(c.Request.Context(), cmd)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

// export 先写入缓冲区，导出失败时仍能返回错误状态码
func (h *Handler) export(c *gin.Context, contentType, filename string, fn func(context.Context, string, io.Writer) error) {
	var buf bytes.Buffer
	if err := fn(c.Request.Context(), c.Param("id"), &buf); err != nil {
		h.writeError(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, contentType, buf.Bytes())
}

func (h *Handler) writeError(c *gin.Context, err error) {
	var cfgErr *domain.ConfigError
	switch {
	case errors.As(err, &cfgErr):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "fields": cfgErr.Fields})
	case errors.Is(err, domain.ErrRunNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrRunNotRunning), errors.Is(err, domain.ErrRunAlreadyRunning):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		logger.Error(c.Request.Context(), "Poolsim request failed", "path", c.FullPath(), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
