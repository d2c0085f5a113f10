package orchestrator

import (
	"sync"
	"sync/atomic"
	"time"
)

// StatusTimeLayout 状态中时间字段的格式
const StatusTimeLayout = "2006-01-02 15:04:05"

// Status 对外暴露的运行状态
type Status struct {
	IsRunning  bool    `json:"is_running"`
	Progress   int     `json:"progress"`
	Message    string  `json:"message"`
	LastRun    *string `json:"last_run"`
	LastReport *string `json:"last_report"`
	RunID      string  `json:"run_id,omitempty"`
}

// RunStatus 进程内唯一的运行状态；同一时间最多一个运行持有它
type RunStatus struct {
	running atomic.Bool

	mu         sync.Mutex
	progress   int
	message    string
	lastRun    time.Time
	lastReport string
	runID      string
}

// NewRunStatus 初始状态：未运行，进度 0
func NewRunStatus() *RunStatus {
	return &RunStatus{}
}

// IsRunning 是否有运行中的采集
func (s *RunStatus) IsRunning() bool {
	return s.running.Load()
}

// begin 抢占运行权；已有运行时返回 false 且不修改任何字段
func (s *RunStatus) begin(runID string) bool {
	if !s.running.CompareAndSwap(false, true) {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runID = runID
	s.progress = 0
	s.message = "正在收集数据..."
	return true
}

func (s *RunStatus) advance(progress int, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.progress = progress
	s.message = message
}

// succeed 运行成功，进度保持 100
func (s *RunStatus) succeed(reportPath, message string, at time.Time) {
	s.mu.Lock()
	s.progress = 100
	s.message = message
	s.lastRun = at
	s.lastReport = reportPath
	s.mu.Unlock()
	s.running.Store(false)
}

// fail 运行失败，进度归零，保留上一次的报表
func (s *RunStatus) fail(message string, at time.Time) {
	s.mu.Lock()
	s.progress = 0
	s.message = message
	s.lastRun = at
	s.mu.Unlock()
	s.running.Store(false)
}

// Snapshot 当前状态的副本
func (s *RunStatus) Snapshot() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := Status{
		IsRunning: s.running.Load(),
		Progress:  s.progress,
		Message:   s.message,
		RunID:     s.runID,
	}
	if !s.lastRun.IsZero() {
		v := s.lastRun.Format(StatusTimeLayout)
		st.LastRun = &v
	}
	if s.lastReport != "" {
		v := s.lastReport
		st.LastReport = &v
	}
	return st
}
