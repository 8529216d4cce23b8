package service

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/sshcollectorpro/devextract/addone/dialect"
	"github.com/sshcollectorpro/devextract/internal/config"
	"github.com/sshcollectorpro/devextract/internal/detect"
	"github.com/sshcollectorpro/devextract/internal/util"
	"github.com/sshcollectorpro/devextract/pkg/logger"
	"github.com/sshcollectorpro/devextract/pkg/ssh"
)

// SSHDialer 基于 pkg/ssh 的会话拨号器，同时实现两种平台判定所需的拨号接口
type SSHDialer struct {
	cfg        config.SSHConfig
	signatures []ssh.Signature
}

// NewSSHDialer 创建拨号器；signatures 为空时使用默认特征表
func NewSSHDialer(cfg config.SSHConfig, signatures ...ssh.Signature) *SSHDialer {
	return &SSHDialer{cfg: cfg, signatures: signatures}
}

// Dial 以已知平台建连
func (d *SSHDialer) Dial(ctx context.Context, target Target, dl dialect.Dialect) (Session, error) {
	return d.connect(ctx, target.Host, target.Username, target.Password, dl.String())
}

// DialProbe 以中性提示建连，用于传输层探测
func (d *SSHDialer) DialProbe(ctx context.Context, creds detect.Credentials) (detect.Prober, error) {
	return d.connect(ctx, creds.Host, creds.Username, creds.Password, ssh.AutodetectType)
}

// DialNeutral 以中性提示建连，握手后读取判定的平台
func (d *SSHDialer) DialNeutral(ctx context.Context, creds detect.Credentials) (detect.Negotiated, error) {
	return d.connect(ctx, creds.Host, creds.Username, creds.Password, ssh.AutodetectType)
}

func (d *SSHDialer) connect(ctx context.Context, host, username, password, hint string) (*sshSession, error) {
	addr, port := splitHostPort(host, d.cfg.Port)
	client := ssh.NewClient(&ssh.Config{
		Timeout:        d.cfg.ConnectTimeout,
		CommandTimeout: d.cfg.CommandTimeout,
		KeepAlive:      d.cfg.KeepAliveInterval,
		Banners:        d.cfg.Banners,
	})
	err := client.Connect(ctx, &ssh.ConnectionInfo{
		Host:       addr,
		Port:       port,
		Username:   username,
		Password:   password,
		DeviceType: hint,
	})
	if err != nil {
		return nil, translate(err)
	}
	logger.WithField("host", host).WithField("server_version", client.ServerVersion()).Debug("SSH session opened")
	return &sshSession{client: client, host: host, signatures: d.signatures}, nil
}

// translate 把传输层哨兵错误映射为平台判定的哨兵错误
func translate(err error) error {
	switch {
	case errors.Is(err, ssh.ErrAuthFailed):
		return fmt.Errorf("%w: %v", detect.ErrAuth, err)
	case errors.Is(err, ssh.ErrTimeout):
		return fmt.Errorf("%w: %v", detect.ErrTimeout, err)
	case errors.Is(err, ssh.ErrNoSignature):
		return fmt.Errorf("%w: %v", detect.ErrUndetermined, err)
	}
	return err
}

// splitHostPort 支持 "host:port" 形式覆盖默认端口
func splitHostPort(host string, defaultPort int) (string, int) {
	h, p, err := net.SplitHostPort(strings.TrimSpace(host))
	if err != nil {
		return strings.TrimSpace(host), defaultPort
	}
	port, err := strconv.Atoi(p)
	if err != nil || port < 1 || port > 65535 {
		return h, defaultPort
	}
	return h, port
}

type sshSession struct {
	client     *ssh.Client
	host       string
	signatures []ssh.Signature
}

// Run 执行命令；回显统一为 UTF-8 与 \n 换行
func (s *sshSession) Run(ctx context.Context, command string) (string, error) {
	res, err := s.client.ExecuteCommand(ctx, command)
	if err != nil {
		return "", translate(err)
	}
	text, enc := util.DecodeOutput(res.Output)
	if enc != "utf-8" {
		logger.WithField("host", s.host).WithField("command", command).Debugf("Output decoded from %s", enc)
	}
	return normalizeLinefeeds(text), nil
}

func (s *sshSession) Autodetect(ctx context.Context) (dialect.Dialect, error) {
	dt, err := s.client.Autodetect(ctx, s.signatures)
	if err != nil {
		return "", translate(err)
	}
	return dialect.Normalize(dt), nil
}

func (s *sshSession) Negotiated() dialect.Dialect {
	return dialect.Normalize(s.client.DeviceType())
}

func (s *sshSession) Close() error {
	return s.client.Close()
}

func normalizeLinefeeds(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ReplaceAll(s, "\r", "\n")
}
