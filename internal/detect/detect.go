// Package detect 判定设备平台（Dialect）。
//
// 两种策略可互换：
//   - Autodetect：由传输层按特征表探测
//   - Introspect：以中性提示建连，读取握手阶段判定的平台
//
// 失败统一返回 *Failure，Kind 区分认证失败、超时、无法判定与不可达。
package detect

import (
	"context"
	"errors"
	"fmt"

	"github.com/sshcollectorpro/devextract/addone/dialect"
	"github.com/sshcollectorpro/devextract/pkg/logger"
)

// 传输适配层以这些哨兵错误包装底层错误，供 Classify 归类
var (
	ErrAuth         = errors.New("authentication failed")
	ErrTimeout      = errors.New("connection timed out")
	ErrUndetermined = errors.New("no dialect could be determined")
)

// Kind 失败类型
type Kind string

const (
	KindAuth         Kind = "auth"
	KindTimeout      Kind = "timeout"
	KindUndetermined Kind = "undetermined"
	KindUnreachable  Kind = "unreachable"
)

// Credentials 登录凭据
type Credentials struct {
	Host     string
	Username string
	Password string
}

// Failure 平台判定失败
type Failure struct {
	Kind Kind
	Host string
	Err  error
}

func (f *Failure) Error() string {
	return fmt.Sprintf("detect %s: %s: %v", f.Host, f.Kind, f.Err)
}

func (f *Failure) Unwrap() error { return f.Err }

// Reason 面向调用方的失败原因
func (f *Failure) Reason() string {
	switch f.Kind {
	case KindAuth:
		return ErrAuth.Error()
	case KindTimeout:
		return ErrTimeout.Error()
	case KindUndetermined:
		return ErrUndetermined.Error()
	default:
		return "device unreachable"
	}
}

// Classify 按哨兵错误归类；未识别的错误归为 fallback
func Classify(err error, fallback Kind) Kind {
	switch {
	case errors.Is(err, ErrAuth):
		return KindAuth
	case errors.Is(err, ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return KindTimeout
	case errors.Is(err, ErrUndetermined):
		return KindUndetermined
	}
	return fallback
}

// Detector 平台判定策略
type Detector interface {
	Detect(ctx context.Context, creds Credentials) (dialect.Dialect, error)
}

// DetectorFunc 函数适配
type DetectorFunc func(ctx context.Context, creds Credentials) (dialect.Dialect, error)

func (f DetectorFunc) Detect(ctx context.Context, creds Credentials) (dialect.Dialect, error) {
	return f(ctx, creds)
}

// Static 不连设备，直接返回已知平台
type Static dialect.Dialect

func (s Static) Detect(_ context.Context, creds Credentials) (dialect.Dialect, error) {
	d := dialect.Dialect(s)
	if d.IsZero() || d.IsAutodetect() {
		return "", &Failure{Kind: KindUndetermined, Host: creds.Host, Err: ErrUndetermined}
	}
	return d, nil
}

// Prober 支持平台探测的会话
type Prober interface {
	Autodetect(ctx context.Context) (dialect.Dialect, error)
	Close() error
}

// ProbeDialer 打开用于探测的会话
type ProbeDialer interface {
	DialProbe(ctx context.Context, creds Credentials) (Prober, error)
}

// Autodetect 传输层探测策略
type Autodetect struct {
	Dialer ProbeDialer
}

func (a *Autodetect) Detect(ctx context.Context, creds Credentials) (dialect.Dialect, error) {
	log := logger.WithField("host", creds.Host).WithField("strategy", "autodetect")

	p, err := a.Dialer.DialProbe(ctx, creds)
	if err != nil {
		return "", fail(creds.Host, err, KindUnreachable)
	}
	defer func() {
		if cerr := p.Close(); cerr != nil {
			log.Debugf("close probe session: %v", cerr)
		}
	}()

	d, err := p.Autodetect(ctx)
	if err != nil {
		return "", fail(creds.Host, err, KindUndetermined)
	}
	if d.IsZero() || d.IsAutodetect() {
		return "", &Failure{Kind: KindUndetermined, Host: creds.Host, Err: ErrUndetermined}
	}
	log.WithField("dialect", d.String()).Debug("dialect detected")
	return d, nil
}

// Negotiated 以中性提示建立的会话，握手后可读出判定的平台
type Negotiated interface {
	Negotiated() dialect.Dialect
	Close() error
}

// NegotiateDialer 以中性提示建连
type NegotiateDialer interface {
	DialNeutral(ctx context.Context, creds Credentials) (Negotiated, error)
}

// Introspect 建连后读取会话判定的平台
type Introspect struct {
	Dialer NegotiateDialer
}

func (i *Introspect) Detect(ctx context.Context, creds Credentials) (dialect.Dialect, error) {
	log := logger.WithField("host", creds.Host).WithField("strategy", "introspect")

	n, err := i.Dialer.DialNeutral(ctx, creds)
	if err != nil {
		return "", fail(creds.Host, err, KindUnreachable)
	}
	d := n.Negotiated()
	if cerr := n.Close(); cerr != nil {
		log.Debugf("close neutral session: %v", cerr)
	}

	if d.IsZero() || d.IsAutodetect() {
		return "", &Failure{Kind: KindUndetermined, Host: creds.Host, Err: ErrUndetermined}
	}
	log.WithField("dialect", d.String()).Debug("dialect negotiated")
	return d, nil
}

func fail(host string, err error, fallback Kind) *Failure {
	var f *Failure
	if errors.As(err, &f) {
		return f
	}
	return &Failure{Kind: Classify(err, fallback), Host: host, Err: err}
}
