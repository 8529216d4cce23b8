package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/sshcollectorpro/devextract/addone/catalog"
	"github.com/sshcollectorpro/devextract/addone/dialect"
	"github.com/sshcollectorpro/devextract/addone/parse"
	"github.com/sshcollectorpro/devextract/internal/detect"
	"github.com/sshcollectorpro/devextract/pkg/logger"
)

// 流水线失败阶段
const (
	StageDetect     = "detect"
	StageNoCommands = "no-commands"
	StageConnect    = "connect"
	StageNoParser   = "no-parser"
)

// CommandFailedMessage 单条命令失败时写入结果的固定文案
const CommandFailedMessage = "Command execution failed"

// ErrEmptyOutput 命令未返回任何内容
var ErrEmptyOutput = errors.New("empty command output")

// Target 设备地址与登录凭据
type Target struct {
	Host     string `json:"host"`
	Username string `json:"username"`
	Password string `json:"-"`
}

// Session 已打开的设备会话；Close 可重复调用且不影响结果
type Session interface {
	Run(ctx context.Context, command string) (string, error)
	Close() error
}

// Dialer 按已知平台打开设备会话
type Dialer interface {
	Dial(ctx context.Context, target Target, d dialect.Dialect) (Session, error)
}

// StageError 流水线致命错误
type StageError struct {
	Stage   string
	Message string
	Dialect dialect.Dialect
	Err     error
}

func (e *StageError) Error() string { return e.Message }

func (e *StageError) Unwrap() error { return e.Err }

// Entry 单条命令的执行结果
type Entry struct {
	Key      string
	Command  string
	Parsed   parse.Result
	Err      error
	Duration time.Duration
}

// Failed 命令是否执行失败
func (e Entry) Failed() bool { return e.Err != nil }

// Result 一次设备执行的汇总结果，Entries 与命令目录顺序一致
type Result struct {
	Host     string
	Dialect  dialect.Dialect
	Entries  []Entry
	Duration time.Duration
}

// Get 按命令键查找
func (r *Result) Get(key string) (Entry, bool) {
	for _, e := range r.Entries {
		if e.Key == key {
			return e, true
		}
	}
	return Entry{}, false
}

// FailedCount 失败命令数
func (r *Result) FailedCount() int {
	n := 0
	for _, e := range r.Entries {
		if e.Failed() {
			n++
		}
	}
	return n
}

// MarshalJSON 输出 {key: 解析结果 | {"error": "Command execution failed"}}，键按目录顺序
func (r *Result) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, e := range r.Entries {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(e.Key)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')

		var v []byte
		if e.Failed() {
			v, err = json.Marshal(map[string]string{"error": CommandFailedMessage})
		} else {
			v, err = json.Marshal(e.Parsed)
		}
		if err != nil {
			return nil, err
		}
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// ErrorDocument 单字段错误文档
type ErrorDocument struct {
	Error string `json:"error"`
}

// Document 返回可直接序列化的结果文档：成功为汇总结果，失败为 {"error": "..."}
func Document(res *Result, err error) interface{} {
	if err != nil {
		return ErrorDocument{Error: err.Error()}
	}
	if res == nil {
		return map[string]interface{}{}
	}
	return res
}

// Archiver 保存命令原始回显；失败只记录日志
type Archiver interface {
	Archive(ctx context.Context, item ArchiveItem) error
}

// Options 流水线可选行为
type Options struct {
	// RawWhenMissing 平台无解析器时以原文输出代替 no-parser 失败
	RawWhenMissing bool
	Archiver       Archiver
	// RunID 写入归档路径，区分同一秒内对同一设备的多次执行
	RunID string
	// EchoLines debug 日志记录的回显首尾行数
	EchoLines int
}

// Orchestrator 检测 -> 查目录 -> 建连 -> 逐条执行解析 -> 断开
// 目录与解析器注册表只读，可被多个并发调用共享；每次调用独占自己的会话
type Orchestrator struct {
	detector detect.Detector
	catalog  *catalog.Catalog
	parsers  *parse.Registry
	dialer   Dialer
	opts     Options
}

// NewOrchestrator 创建流水线
func NewOrchestrator(detector detect.Detector, cat *catalog.Catalog, parsers *parse.Registry, dialer Dialer, opts Options) *Orchestrator {
	return &Orchestrator{
		detector: detector,
		catalog:  cat,
		parsers:  parsers,
		dialer:   dialer,
		opts:     opts,
	}
}

// Execute 对单台设备执行完整流水线
// 返回 *StageError 时没有任何命令被执行；已打开的会话保证恰好关闭一次
func (o *Orchestrator) Execute(ctx context.Context, target Target) (*Result, error) {
	start := time.Now()
	log := logger.WithField("host", target.Host)

	log.WithField("stage", "detecting").Debug("Detecting device OS")
	d, err := o.detector.Detect(ctx, detect.Credentials{
		Host:     target.Host,
		Username: target.Username,
		Password: target.Password,
	})
	if err != nil {
		reason := err.Error()
		var f *detect.Failure
		if errors.As(err, &f) {
			reason = f.Reason()
		}
		log.WithField("stage", StageDetect).Warnf("Could not detect device OS: %v", err)
		return nil, &StageError{Stage: StageDetect, Message: "Could not detect device OS: " + reason, Err: err}
	}
	log = log.WithField("dialect", d.String())
	log.Info("Detected device OS")

	commands, ok := o.catalog.CommandsFor(d)
	if !ok {
		log.WithField("stage", StageNoCommands).Warn("No commands found for dialect")
		return nil, &StageError{Stage: StageNoCommands, Message: "No commands found for " + d.String(), Dialect: d}
	}

	sess, err := o.dialer.Dial(ctx, target, d)
	if err != nil {
		log.WithField("stage", StageConnect).Errorf("Failed to connect: %v", err)
		return nil, &StageError{Stage: StageConnect, Message: "Failed to connect to " + target.Host, Dialect: d, Err: err}
	}
	defer func() {
		if cerr := sess.Close(); cerr != nil {
			log.Debugf("Session close: %v", cerr)
		}
		log.Debug("Disconnected")
	}()

	parser, ok := o.parsers.ParserFor(d)
	if !ok {
		if !o.opts.RawWhenMissing {
			log.WithField("stage", StageNoParser).Warn("No parser found for dialect")
			return nil, &StageError{Stage: StageNoParser, Message: "No parser found for " + d.String(), Dialect: d}
		}
		log.Warn("No parser found for dialect, falling back to raw output")
		parser = parse.Raw
	}

	res := &Result{Host: target.Host, Dialect: d, Entries: make([]Entry, 0, len(commands))}
	base := ArchiveItem{Host: target.Host, Dialect: d, RunID: o.opts.RunID, Time: start}
	for _, c := range commands {
		res.Entries = append(res.Entries, o.runOne(ctx, log, sess, parser, base, c))
	}
	res.Duration = time.Since(start)

	log.WithFields(logrus.Fields{
		"commands": len(res.Entries),
		"failed":   res.FailedCount(),
		"duration": res.Duration.String(),
	}).Info("Extraction finished")
	return res, nil
}

// runOne 执行并解析单条命令；base 携带本次执行共用的归档信息
func (o *Orchestrator) runOne(ctx context.Context, log *logrus.Entry, sess Session, parser parse.Parser, base ArchiveItem, c catalog.Entry) Entry {
	entry := Entry{Key: c.Key, Command: c.Command}
	cmdLog := log.WithField("command", c.Command)

	begin := time.Now()
	out, err := sess.Run(ctx, c.Command)
	entry.Duration = time.Since(begin)
	if err == nil && strings.TrimSpace(out) == "" {
		err = ErrEmptyOutput
	}
	if err != nil {
		cmdLog.Warnf("Command execution failed: %v", err)
		entry.Err = err
		return entry
	}

	logger.DebugCommandOutput(base.Host, c.Command, out, o.opts.EchoLines)
	entry.Parsed = parser.Parse(out)
	cmdLog.WithField("shape", entry.Parsed.Kind().String()).Debug("Command parsed")

	if o.opts.Archiver != nil {
		item := base
		item.Key, item.Command, item.Output = c.Key, c.Command, out
		if aerr := o.opts.Archiver.Archive(ctx, item); aerr != nil {
			cmdLog.Warnf("Archive raw output failed: %v", aerr)
		}
	}
	return entry
}
