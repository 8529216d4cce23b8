package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/sshcollectorpro/devextract/addone/catalog"
	"github.com/sshcollectorpro/devextract/addone/dialect"
	"github.com/sshcollectorpro/devextract/addone/parse"
	"github.com/sshcollectorpro/devextract/internal/config"
	"github.com/sshcollectorpro/devextract/internal/detect"
	"github.com/sshcollectorpro/devextract/internal/model"
	"github.com/sshcollectorpro/devextract/pkg/logger"
)

// 平台判定策略名
const (
	StrategyAutodetect = "autodetect"
	StrategyIntrospect = "introspect"
)

// NegotiatingDialer 同时支持两种判定策略的拨号器
type NegotiatingDialer interface {
	detect.ProbeDialer
	detect.NegotiateDialer
}

// NewDetector 按策略名创建平台判定器
func NewDetector(strategy string, dialer NegotiatingDialer) (detect.Detector, error) {
	switch strings.ToLower(strings.TrimSpace(strategy)) {
	case "", StrategyAutodetect:
		return &detect.Autodetect{Dialer: dialer}, nil
	case StrategyIntrospect:
		return &detect.Introspect{Dialer: dialer}, nil
	}
	return nil, fmt.Errorf("unsupported detect strategy %q", strategy)
}

// RunRecorder 执行记录持久化
type RunRecorder interface {
	Save(run *model.Run) error
}

// Deps 可替换的协作者；为空的字段按配置创建默认实现
type Deps struct {
	Catalog  *catalog.Catalog
	Parsers  *parse.Registry
	Dialer   Dialer
	Detector detect.Detector
	Archiver Archiver
	History  RunRecorder
}

// ExtractService 面向 CLI 与 HTTP 的提取服务
type ExtractService struct {
	cfg      *config.Config
	catalog  atomic.Pointer[catalog.Catalog]
	parsers  *parse.Registry
	dialer   Dialer
	detector detect.Detector
	archiver Archiver
	history  RunRecorder
}

// NewExtractService 创建提取服务
func NewExtractService(cfg *config.Config, deps Deps) (*ExtractService, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if deps.Parsers == nil {
		return nil, errors.New("parser registry is required")
	}
	s := &ExtractService{
		cfg:      cfg,
		parsers:  deps.Parsers,
		dialer:   deps.Dialer,
		detector: deps.Detector,
		archiver: deps.Archiver,
		history:  deps.History,
	}

	if s.dialer == nil || s.detector == nil {
		sshDialer := NewSSHDialer(cfg.SSH)
		if s.dialer == nil {
			s.dialer = sshDialer
		}
		if s.detector == nil {
			det, err := NewDetector(cfg.Detect.Strategy, sshDialer)
			if err != nil {
				return nil, err
			}
			s.detector = det
		}
	}

	cat := deps.Catalog
	if cat == nil {
		loaded, err := catalog.Load(cfg.Catalog.Path)
		if err != nil {
			return nil, err
		}
		cat = loaded
	}
	s.catalog.Store(cat)
	return s, nil
}

// Catalog 当前命令目录
func (s *ExtractService) Catalog() *catalog.Catalog { return s.catalog.Load() }

// SetCatalog 原子替换命令目录；进行中的执行继续使用旧目录
func (s *ExtractService) SetCatalog(c *catalog.Catalog) {
	if c != nil {
		s.catalog.Store(c)
	}
}

// ReloadCatalog 重新加载目录文件；失败时保留当前目录
func (s *ExtractService) ReloadCatalog(path string) error {
	if path == "" {
		path = s.cfg.Catalog.Path
	}
	c, err := catalog.Load(path)
	if err != nil {
		return err
	}
	s.SetCatalog(c)
	logger.WithField("dialects", len(c.Dialects())).Info("Command catalog reloaded")
	return nil
}

// Parsers 解析器注册表
func (s *ExtractService) Parsers() *parse.Registry { return s.parsers }

// Strategy 当前平台判定策略
func (s *ExtractService) Strategy() string {
	if s.cfg.Detect.Strategy == "" {
		return StrategyAutodetect
	}
	return s.cfg.Detect.Strategy
}

func (s *ExtractService) orchestrator(runID string) *Orchestrator {
	return NewOrchestrator(s.detector, s.catalog.Load(), s.parsers, s.dialer, Options{
		RawWhenMissing: s.cfg.Parser.RawWhenMissing,
		Archiver:       s.archiver,
		RunID:          runID,
		EchoLines:      s.cfg.Parser.EchoLines,
	})
}

// Outcome 一次设备执行的结果与记录 ID
type Outcome struct {
	RunID  string
	Target Target
	Result *Result
	Err    error
}

// Document 结果文档
func (o Outcome) Document() interface{} { return Document(o.Result, o.Err) }

// Stage 失败阶段；成功时为空
func (o Outcome) Stage() string {
	var se *StageError
	if errors.As(o.Err, &se) {
		return se.Stage
	}
	return ""
}

// Execute 对单台设备执行并记录
func (s *ExtractService) Execute(ctx context.Context, target Target) Outcome {
	runID := uuid.NewString()
	start := time.Now()
	res, err := s.orchestrator(runID).Execute(ctx, target)
	out := Outcome{RunID: runID, Target: target, Result: res, Err: err}
	s.record(out, start, time.Now())
	return out
}

// ExecuteBatch 多设备并发执行，每台设备独立流水线与会话；结果顺序与输入一致
func (s *ExtractService) ExecuteBatch(ctx context.Context, targets []Target) []Outcome {
	outcomes := make([]Outcome, len(targets))

	limit := s.cfg.Batch.Concurrency
	if limit < 1 {
		limit = 1
	}
	var g errgroup.Group
	g.SetLimit(limit)
	for i, t := range targets {
		g.Go(func() error {
			outcomes[i] = s.Execute(ctx, t)
			return nil
		})
	}
	_ = g.Wait()
	return outcomes
}

func (s *ExtractService) record(out Outcome, start, end time.Time) {
	if s.history == nil {
		return
	}
	run := &model.Run{
		ID:        out.RunID,
		Host:      out.Target.Host,
		Username:  out.Target.Username,
		Strategy:  s.Strategy(),
		Status:    model.RunStatusSuccess,
		StartTime: start,
		EndTime:   end,
		Duration:  end.Sub(start).Milliseconds(),
	}
	var se *StageError
	switch {
	case errors.As(out.Err, &se):
		run.Status = model.RunStatusFailed
		run.Stage = se.Stage
		run.Dialect = se.Dialect.String()
		run.ErrorMsg = se.Message
	case out.Err != nil:
		run.Status = model.RunStatusFailed
		run.ErrorMsg = out.Err.Error()
	case out.Result != nil:
		run.Dialect = out.Result.Dialect.String()
		run.Commands = len(out.Result.Entries)
		run.FailedCommands = out.Result.FailedCount()
		if run.FailedCommands > 0 {
			run.Status = model.RunStatusPartial
		}
	}
	if doc, err := json.Marshal(out.Document()); err == nil {
		run.Result = string(doc)
	}
	if err := s.history.Save(run); err != nil {
		logger.WithField("host", run.Host).Warnf("Save run history failed: %v", err)
	}
}

// DialectInfo 平台支持情况
type DialectInfo struct {
	Dialect   dialect.Dialect `json:"dialect"`
	Commands  []string        `json:"commands"`
	HasParser bool            `json:"has_parser"`
	// Templates 解析器按顺序尝试的模板名
	Templates []string `json:"templates,omitempty"`
}

// templateLister 由模板链式解析器实现
type templateLister interface {
	Templates() []string
}

// Dialects 目录或解析器中出现过的全部平台
func (s *ExtractService) Dialects() []DialectInfo {
	cat := s.catalog.Load()
	seen := map[dialect.Dialect]bool{}
	for _, d := range cat.Dialects() {
		seen[d] = true
	}
	for _, d := range s.parsers.Dialects() {
		seen[d] = true
	}

	out := make([]DialectInfo, 0, len(seen))
	for d := range seen {
		info := DialectInfo{Dialect: d, Commands: []string{}}
		if cmds, ok := cat.CommandsFor(d); ok {
			info.Commands = cmds.Keys()
		}
		var p parse.Parser
		p, info.HasParser = s.parsers.ParserFor(d)
		if tl, ok := p.(templateLister); ok {
			info.Templates = tl.Templates()
		}
		out = append(out, info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Dialect < out[j].Dialect })
	return out
}
