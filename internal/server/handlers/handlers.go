package handlers

import (
	"context"
	"errors"
	"net/http"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"indexcollector/internal/orchestrator"
)

// Trigger 后台启动一次采集
type Trigger interface {
	Start(ctx context.Context) error
}

// StatusSource 运行状态
type StatusSource interface {
	Snapshot() orchestrator.Status
}

// Handlers API处理器
type Handlers struct {
	ctx        context.Context // 手动触发的采集绑定到进程生命周期，而不是单个请求
	trigger    Trigger
	status     StatusSource
	reportsDir string
}

// NewHandlers 创建处理器
func NewHandlers(ctx context.Context, trigger Trigger, status StatusSource, reportsDir string) *Handlers {
	return &Handlers{
		ctx:        ctx,
		trigger:    trigger,
		status:     status,
		reportsDir: reportsDir,
	}
}

// RegisterRoutes 注册 API 路由
func (h *Handlers) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/status", h.GetStatus)
	router.POST("/collect", h.StartCollect)
	router.GET("/reports", h.ListReports)
}

// GetStatus 获取运行状态
// GET /api/status
func (h *Handlers) GetStatus(c *gin.Context) {
	c.JSON(http.StatusOK, h.status.Snapshot())
}

// StartCollect 启动一次采集；已有运行时返回 409
// POST /api/collect
func (h *Handlers) StartCollect(c *gin.Context) {
	err := h.trigger.Start(h.ctx)
	switch {
	case errors.Is(err, orchestrator.ErrAlreadyRunning):
		c.JSON(http.StatusConflict, gin.H{"error": "数据收集正在进行中"})
	case errors.Is(err, orchestrator.ErrClosed):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusOK, gin.H{"message": "数据收集任务已启动"})
	}
}

// ReportInfo 报表文件信息
type ReportInfo struct {
	Name     string `json:"name"`
	Size     int64  `json:"size"`
	Modified string `json:"modified"`
}

// ListReports 列出报表（最新的在前）
// GET /api/reports
func (h *Handlers) ListReports(c *gin.Context) {
	entries, err := os.ReadDir(h.reportsDir)
	if err != nil && !os.IsNotExist(err) {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "读取报表目录失败"})
		return
	}

	reports := []ReportInfo{}
	modTimes := map[string]time.Time{}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".xlsx") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		modTimes[e.Name()] = info.ModTime()
		reports = append(reports, ReportInfo{
			Name:     e.Name(),
			Size:     info.Size(),
			Modified: info.ModTime().Format("2006-01-02 15:04:05"),
		})
	}
	sort.Slice(reports, func(i, j int) bool {
		ti, tj := modTimes[reports[i].Name], modTimes[reports[j].Name]
		if !ti.Equal(tj) {
			return ti.After(tj)
		}
		return reports[i].Name > reports[j].Name
	})

	if len(reports) == 0 {
		c.JSON(http.StatusOK, gin.H{"message": "暂无报告，请先收集数据", "reports": reports})
		return
	}
	c.JSON(http.StatusOK, gin.H{"reports": reports})
}
