package handler

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/sshcollectorpro/devextract/internal/database"
	"github.com/sshcollectorpro/devextract/internal/model"
	"github.com/sshcollectorpro/devextract/internal/service"
	"github.com/sshcollectorpro/devextract/pkg/logger"
)

// RunReader 执行记录查询
type RunReader interface {
	Get(id string) (*model.Run, error)
	List(f model.RunFilter) ([]model.Run, int64, error)
}

// ExtractHandler 设备信息提取处理器
type ExtractHandler struct {
	svc  *service.ExtractService
	runs RunReader
	// dbHealth 为空表示未启用执行记录
	dbHealth func() error
}

// NewExtractHandler 创建处理器；runs 为 nil 时记录查询接口返回 503
func NewExtractHandler(svc *service.ExtractService, runs RunReader, dbHealth func() error) *ExtractHandler {
	return &ExtractHandler{svc: svc, runs: runs, dbHealth: dbHealth}
}

// ExtractRequest 单设备提取请求
type ExtractRequest struct {
	Host     string `json:"host" binding:"required"`
	Username string `json:"username" binding:"required"`
	Password string `json:"password"`
}

func (r ExtractRequest) target() service.Target {
	return service.Target{
		Host:     strings.TrimSpace(r.Host),
		Username: r.Username,
		Password: r.Password,
	}
}

// BatchRequest 多设备提取请求
type BatchRequest struct {
	Devices []ExtractRequest `json:"devices" binding:"required,min=1,dive"`
}

// BatchItem 批量结果中的单台设备
type BatchItem struct {
	Host     string      `json:"host"`
	RunID    string      `json:"run_id"`
	Stage    string      `json:"stage,omitempty"`
	Document interface{} `json:"document"`
}

// Extract 对单台设备执行提取
// 成功返回汇总结果文档；流水线失败返回 422 与 {"error": "..."} 文档
// @Router /api/v1/extract [post]
func (h *ExtractHandler) Extract(c *gin.Context) {
	var req ExtractRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Code:    "INVALID_PARAMS",
			Message: "invalid request parameters: " + err.Error(),
		})
		return
	}

	out := h.svc.Execute(c.Request.Context(), req.target())
	c.Header("X-Run-ID", out.RunID)
	if out.Err != nil {
		logger.WithField("host", req.Host).WithField("stage", out.Stage()).Warnf("Extraction failed: %v", out.Err)
		c.JSON(http.StatusUnprocessableEntity, out.Document())
		return
	}
	c.JSON(http.StatusOK, out.Document())
}

// BatchExtract 多设备并发提取，结果顺序与请求一致
// @Router /api/v1/extract/batch [post]
func (h *ExtractHandler) BatchExtract(c *gin.Context) {
	var req BatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Code:    "INVALID_PARAMS",
			Message: "invalid request parameters: " + err.Error(),
		})
		return
	}

	targets := make([]service.Target, 0, len(req.Devices))
	for _, d := range req.Devices {
		targets = append(targets, d.target())
	}
	outs := h.svc.ExecuteBatch(c.Request.Context(), targets)

	items := make([]BatchItem, 0, len(outs))
	failed := 0
	for _, o := range outs {
		if o.Err != nil {
			failed++
		}
		items = append(items, BatchItem{
			Host:     o.Target.Host,
			RunID:    o.RunID,
			Stage:    o.Stage(),
			Document: o.Document(),
		})
	}
	c.JSON(http.StatusOK, gin.H{
		"total":   len(items),
		"failed":  failed,
		"results": items,
	})
}

// ListRuns 分页查询执行记录
// @Router /api/v1/runs [get]
func (h *ExtractHandler) ListRuns(c *gin.Context) {
	if h.runs == nil {
		h.historyDisabled(c)
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	runs, total, err := h.runs.List(model.RunFilter{
		Host:    c.Query("host"),
		Dialect: c.Query("dialect"),
		Status:  c.Query("status"),
		Limit:   limit,
		Offset:  offset,
	})
	if err != nil {
		logger.Errorf("List runs failed: %v", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Code: "QUERY_FAILED", Message: err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"total": total, "items": runs})
}

// GetRun 查询单条执行记录
// @Router /api/v1/runs/{id} [get]
func (h *ExtractHandler) GetRun(c *gin.Context) {
	if h.runs == nil {
		h.historyDisabled(c)
		return
	}
	id := c.Param("id")
	run, err := h.runs.Get(id)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{Code: "RUN_NOT_FOUND", Message: "run not found: " + id})
			return
		}
		c.JSON(http.StatusInternalServerError, ErrorResponse{Code: "QUERY_FAILED", Message: err.Error()})
		return
	}
	c.JSON(http.StatusOK, run)
}

// Dialects 支持的平台、命令键与解析器情况
// @Router /api/v1/dialects [get]
func (h *ExtractHandler) Dialects(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"strategy": h.svc.Strategy(),
		"dialects": h.svc.Dialects(),
	})
}

// Health 健康检查
// @Router /api/v1/health [get]
func (h *ExtractHandler) Health(c *gin.Context) {
	db := "disabled"
	if h.dbHealth != nil {
		if err := h.dbHealth(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "database": err.Error()})
			return
		}
		db = "ok"
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "database": db})
}

func (h *ExtractHandler) historyDisabled(c *gin.Context) {
	c.JSON(http.StatusServiceUnavailable, ErrorResponse{
		Code:    "HISTORY_DISABLED",
		Message: "run history is disabled (database.enabled=false)",
	})
}
