package simulate

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/pem"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/spf13/viper"
	"golang.org/x/crypto/ssh"

	"github.com/sshcollectorpro/devextract/pkg/logger"
)

// Config 模拟器配置（simulate.yaml）
type Config struct {
	Listen   string `mapstructure:"listen"`
	Password string `mapstructure:"password"`
	// Banner 握手时发送的版本串，不带 "SSH-2.0-" 前缀时自动补齐
	Banner  string `mapstructure:"banner"`
	MaxConn int    `mapstructure:"max_conn"`
	// OutputDir 命令输出文件目录：<output_dir>/<device>/<command>.txt
	OutputDir   string `mapstructure:"output_dir"`
	HostKeyPath string `mapstructure:"host_key_path"`
	// Devices 以登录用户名选择设备
	Devices map[string]DeviceConfig `mapstructure:"devices"`
}

// DeviceConfig 单台模拟设备
type DeviceConfig struct {
	DeviceType string            `mapstructure:"device_type"`
	Outputs    map[string]string `mapstructure:"outputs"`
	// Fail 中的命令会在不返回退出码的情况下直接关闭通道
	Fail  []string      `mapstructure:"fail"`
	Delay time.Duration `mapstructure:"delay"`
}

// LoadConfig 读取模拟器配置
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetConfigFile(path)
	v.SetDefault("listen", "127.0.0.1:22001")
	v.SetDefault("password", DefaultPassword)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read simulate config: %w", err)
	}
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal simulate config: %w", err)
	}
	for name, dev := range cfg.Devices {
		if len(dev.Outputs) == 0 {
			dev.Outputs = Profile(dev.DeviceType)
			cfg.Devices[name] = dev
		}
	}
	return &cfg, nil
}

// Server 进程内 SSH 设备模拟器，只支持 exec 通道
type Server struct {
	cfg      *Config
	listener net.Listener
	hostKey  ssh.Signer

	mu     sync.Mutex
	active int
	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
}

// Start 启动模拟器；Listen 为 "127.0.0.1:0" 时由系统分配端口
func Start(cfg *Config) (*Server, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	signer, err := loadOrCreateHostKey(cfg.HostKeyPath)
	if err != nil {
		return nil, fmt.Errorf("failed to init host key: %w", err)
	}
	listen := cfg.Listen
	if listen == "" {
		listen = "127.0.0.1:0"
	}
	ln, err := net.Listen("tcp", listen)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{cfg: cfg, listener: ln, hostKey: signer, ctx: ctx, cancel: cancel}
	go s.serve()
	logger.WithField("addr", ln.Addr().String()).Info("Simulate: server started")
	return s, nil
}

// Addr 监听地址
func (s *Server) Addr() string { return s.listener.Addr().String() }

// Port 监听端口
func (s *Server) Port() int {
	if tcp, ok := s.listener.Addr().(*net.TCPAddr); ok {
		return tcp.Port
	}
	return 0
}

// Stop 停止模拟器并等待在途连接结束
func (s *Server) Stop() {
	s.cancel()
	_ = s.listener.Close()
	s.wg.Wait()
	logger.WithField("addr", s.Addr()).Info("Simulate: server stopped")
}

func (s *Server) serve() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			logger.Warnf("Simulate: accept error: %v", err)
			time.Sleep(50 * time.Millisecond)
			continue
		}
		// 并发限制
		s.mu.Lock()
		if s.cfg.MaxConn > 0 && s.active >= s.cfg.MaxConn {
			s.mu.Unlock()
			_ = conn.Close()
			logger.Warn("Simulate: reject connection, max_conn exceeded")
			continue
		}
		s.active++
		s.mu.Unlock()

		s.wg.Add(1)
		go func(c net.Conn) {
			defer s.wg.Done()
			s.handleConn(c)
			s.mu.Lock()
			s.active--
			s.mu.Unlock()
		}(conn)
	}
}

func (s *Server) checkPassword(password string) error {
	want := s.cfg.Password
	if want == "" {
		want = DefaultPassword
	}
	if strings.TrimSpace(password) != want {
		return fmt.Errorf("access denied")
	}
	return nil
}

func (s *Server) serverConfig() *ssh.ServerConfig {
	banner := strings.TrimSpace(s.cfg.Banner)
	if banner == "" {
		banner = "OpenSSH_9.6"
	}
	if !strings.HasPrefix(banner, "SSH-2.0-") {
		banner = "SSH-2.0-" + banner
	}
	srvCfg := &ssh.ServerConfig{
		ServerVersion: banner,
		PasswordCallback: func(meta ssh.ConnMetadata, password []byte) (*ssh.Permissions, error) {
			return nil, s.checkPassword(string(password))
		},
		KeyboardInteractiveCallback: func(meta ssh.ConnMetadata, challenge ssh.KeyboardInteractiveChallenge) (*ssh.Permissions, error) {
			answers, err := challenge(meta.User(), "Authentication", []string{"Password:"}, []bool{false})
			if err != nil {
				return nil, err
			}
			if len(answers) == 0 {
				return nil, fmt.Errorf("access denied")
			}
			return nil, s.checkPassword(answers[0])
		},
	}
	srvCfg.AddHostKey(s.hostKey)
	return srvCfg
}

func (s *Server) handleConn(nc net.Conn) {
	conn, chans, reqs, err := ssh.NewServerConn(nc, s.serverConfig())
	if err != nil {
		logger.WithField("remote", nc.RemoteAddr().String()).Debugf("Simulate: SSH handshake failed: %v", err)
		_ = nc.Close()
		return
	}
	defer conn.Close()

	go ssh.DiscardRequests(reqs)

	// 设备名称使用用户名
	deviceName := conn.User()
	device, ok := s.cfg.Devices[deviceName]
	if !ok {
		device = DeviceConfig{}
	}

	go func() {
		<-s.ctx.Done()
		conn.Close()
	}()

	for ch := range chans {
		if ch.ChannelType() != "session" {
			ch.Reject(ssh.UnknownChannelType, "unknown channel type")
			continue
		}
		channel, requests, err := ch.Accept()
		if err != nil {
			logger.Errorf("Simulate: channel accept failed: %v", err)
			continue
		}
		go s.handleSession(channel, requests, deviceName, device)
	}
}

func (s *Server) handleSession(channel ssh.Channel, requests <-chan *ssh.Request, deviceName string, device DeviceConfig) {
	defer channel.Close()

	for req := range requests {
		if req.Type != "exec" {
			// 交互式 shell 不在模拟范围内
			req.Reply(false, nil)
			continue
		}
		var payload struct{ Command string }
		if err := ssh.Unmarshal(req.Payload, &payload); err != nil {
			req.Reply(false, nil)
			return
		}
		req.Reply(true, nil)
		cmd := strings.TrimSpace(payload.Command)
		log := logger.WithField("device", deviceName).WithField("cmd", cmd)

		if device.Delay > 0 {
			select {
			case <-time.After(device.Delay):
			case <-s.ctx.Done():
				return
			}
		}
		if contains(device.Fail, cmd) {
			log.Debug("Simulate: exec dropped")
			return
		}

		out, found := s.loadCommandOutput(deviceName, device, cmd)
		if !found {
			log.Debug("Simulate: exec unmatched")
			out = "% Invalid input detected at '^' marker.\r\n"
		}
		_, _ = channel.Write([]byte(out))
		_, _ = channel.SendRequest("exit-status", false, ssh.Marshal(struct{ Status uint32 }{0}))
		return
	}
}

func (s *Server) loadCommandOutput(deviceName string, device DeviceConfig, cmd string) (string, bool) {
	if out, ok := device.Outputs[cmd]; ok {
		return ensureCRLF(out), true
	}
	if s.cfg.OutputDir == "" {
		return "", false
	}
	base := filepath.Join(s.cfg.OutputDir, deviceName)
	// 先尝试原命令名称，再尝试空格替换为下划线
	for _, name := range []string{cmd, strings.ReplaceAll(cmd, " ", "_")} {
		if bs, err := os.ReadFile(filepath.Join(base, name+".txt")); err == nil {
			return ensureCRLF(string(bs)), true
		}
	}
	return "", false
}

// loadOrCreateHostKey 加载或生成 host key；path 为空时只在内存中生成
func loadOrCreateHostKey(path string) (ssh.Signer, error) {
	if path != "" {
		if bs, err := os.ReadFile(path); err == nil {
			signer, err := ssh.ParsePrivateKey(bs)
			if err == nil {
				return signer, nil
			}
			logger.Warnf("Simulate: host key parse failed, regenerating: %v", err)
		}
	}

	_, key, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to generate host key: %w", err)
	}
	signer, err := ssh.NewSignerFromKey(key)
	if err != nil {
		return nil, err
	}
	if path == "" {
		return signer, nil
	}

	blk, err := ssh.MarshalPrivateKey(key, "devextract simulator")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal host key: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	if err := os.WriteFile(path, pem.EncodeToMemory(blk), 0o600); err != nil {
		return nil, fmt.Errorf("failed to write host key: %w", err)
	}
	return signer, nil
}

// ensureCRLF 将 \n 规范为 \r\n，非空输出保证以换行结尾
func ensureCRLF(s string) string {
	if s == "" {
		return ""
	}
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\n", "\r\n")
	if !strings.HasSuffix(s, "\r\n") {
		s += "\r\n"
	}
	return s
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if strings.EqualFold(strings.TrimSpace(v), s) {
			return true
		}
	}
	return false
}
