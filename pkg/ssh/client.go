package ssh

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/ssh"
)

var (
	// ErrAuthFailed 认证失败
	ErrAuthFailed = errors.New("ssh: authentication failed")
	// ErrTimeout 建连或命令执行超时
	ErrTimeout = errors.New("ssh: timed out")
	// ErrNotConnected 未建立连接或已关闭
	ErrNotConnected = errors.New("ssh: connection not established")
)

// AutodetectType 中性平台提示：连接时不指定平台
const AutodetectType = "autodetect"

// Config SSH配置
type Config struct {
	// Timeout 拨号与握手超时
	Timeout time.Duration `yaml:"timeout"`
	// CommandTimeout 单条命令超时，0 表示只受 ctx 约束
	CommandTimeout time.Duration `yaml:"command_timeout"`
	KeepAlive      time.Duration `yaml:"keep_alive"`
	// Banners 服务端版本串特征（小写子串）-> 平台
	Banners map[string]string `yaml:"banners"`
}

// ConnectionInfo SSH连接信息
type ConnectionInfo struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Username string `json:"username"`
	Password string `json:"-"`
	// DeviceType 平台提示；为空或 autodetect 时由握手信息判定
	DeviceType string `json:"device_type"`
}

// Address host:port
func (i *ConnectionInfo) Address() string {
	port := i.Port
	if port < 1 || port > 65535 {
		port = 22
	}
	return net.JoinHostPort(i.Host, fmt.Sprint(port))
}

// CommandResult 命令执行结果
type CommandResult struct {
	Command  string        `json:"command"`
	Output   []byte        `json:"output"`
	Error    string        `json:"error"`
	ExitCode int           `json:"exit_code"`
	Duration time.Duration `json:"duration"`
}

// Client SSH客户端，一个实例只对应一台设备的一条连接
type Client struct {
	config *Config

	mutex         sync.RWMutex
	connection    *ssh.Client
	info          *ConnectionInfo
	serverVersion string
	deviceType    string
	stopKeepAlive chan struct{}
}

// NewClient 创建SSH客户端
func NewClient(config *Config) *Client {
	if config == nil {
		config = &Config{}
	}
	return &Client{config: config}
}

func (c *Client) clientConfig(info *ConnectionInfo) *ssh.ClientConfig {
	cfg := &ssh.ClientConfig{
		User:            info.Username,
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         c.config.Timeout,
		Config: ssh.Config{
			// 兼容旧设备的密钥交换算法
			KeyExchanges: []string{
				"curve25519-sha256",
				"ecdh-sha2-nistp256",
				"ecdh-sha2-nistp384",
				"ecdh-sha2-nistp521",
				"diffie-hellman-group14-sha256",
				"diffie-hellman-group14-sha1",
				"diffie-hellman-group-exchange-sha256",
				"diffie-hellman-group-exchange-sha1",
				"diffie-hellman-group1-sha1",
			},
			Ciphers: []string{
				"aes128-gcm@openssh.com",
				"aes256-gcm@openssh.com",
				"aes128-ctr",
				"aes192-ctr",
				"aes256-ctr",
				"aes128-cbc",
				"aes192-cbc",
				"aes256-cbc",
				"3des-cbc",
			},
			MACs: []string{
				"hmac-sha2-256-etm@openssh.com",
				"hmac-sha2-256",
				"hmac-sha1",
				"hmac-sha1-96",
			},
		},
		HostKeyAlgorithms: []string{
			"ssh-ed25519",
			"ecdsa-sha2-nistp256",
			"ecdsa-sha2-nistp384",
			"ecdsa-sha2-nistp521",
			"rsa-sha2-256",
			"rsa-sha2-512",
			"ssh-rsa",
		},
	}
	if info.Password != "" {
		// 同时尝试 password 与 keyboard-interactive，提高与网络设备的兼容性
		cfg.Auth = []ssh.AuthMethod{
			ssh.Password(info.Password),
			ssh.KeyboardInteractive(func(user, instruction string, questions []string, echos []bool) ([]string, error) {
				answers := make([]string, len(questions))
				for i := range questions {
					answers[i] = info.Password
				}
				return answers, nil
			}),
		}
	}
	return cfg
}

// Connect 连接SSH服务器
// 失败时返回的错误可用 errors.Is 区分 ErrAuthFailed 与 ErrTimeout
func (c *Client) Connect(ctx context.Context, info *ConnectionInfo) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if c.connection != nil {
		return fmt.Errorf("ssh: already connected to %s", c.info.Address())
	}

	address := info.Address()
	dialer := &net.Dialer{Timeout: c.config.Timeout}
	conn, err := dialer.DialContext(ctx, "tcp", address)
	if err != nil {
		return classify(fmt.Errorf("failed to dial %s: %w", address, err), err)
	}

	// 握手阶段同样受超时约束（部分设备接受 TCP 后不回应版本串）
	var deadline time.Time
	if c.config.Timeout > 0 {
		deadline = time.Now().Add(c.config.Timeout)
	}
	if dl, ok := ctx.Deadline(); ok && (deadline.IsZero() || dl.Before(deadline)) {
		deadline = dl
	}
	if !deadline.IsZero() {
		_ = conn.SetDeadline(deadline)
	}
	sshConn, chans, reqs, err := ssh.NewClientConn(conn, address, c.clientConfig(info))
	if err != nil {
		conn.Close()
		return classify(fmt.Errorf("failed to create SSH connection to %s: %w", address, err), err)
	}
	_ = conn.SetDeadline(time.Time{})

	c.connection = ssh.NewClient(sshConn, chans, reqs)
	c.info = info
	c.serverVersion = string(sshConn.ServerVersion())
	c.deviceType = strings.TrimSpace(info.DeviceType)
	if c.deviceType == "" || c.deviceType == AutodetectType {
		c.deviceType = MatchBanner(c.serverVersion, c.config.Banners)
	}

	c.stopKeepAlive = make(chan struct{})
	go c.keepAlive(c.connection, c.stopKeepAlive)
	return nil
}

// classify 把底层错误归类为 ErrAuthFailed / ErrTimeout
func classify(wrapped, cause error) error {
	var netErr net.Error
	if errors.As(cause, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %v", ErrTimeout, wrapped)
	}
	if errors.Is(cause, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrTimeout, wrapped)
	}
	msg := strings.ToLower(cause.Error())
	switch {
	case strings.Contains(msg, "unable to authenticate"), strings.Contains(msg, "no supported methods remain"):
		return fmt.Errorf("%w: %v", ErrAuthFailed, wrapped)
	case strings.Contains(msg, "i/o timeout"), strings.Contains(msg, "deadline exceeded"):
		return fmt.Errorf("%w: %v", ErrTimeout, wrapped)
	}
	return wrapped
}

// ServerVersion 握手得到的服务端版本串，如 "SSH-2.0-Cisco-1.25"
func (c *Client) ServerVersion() string {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return c.serverVersion
}

// DeviceType 连接所绑定的平台：显式指定的提示，或握手后按版本串判定的结果（可能为空）
func (c *Client) DeviceType() string {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return c.deviceType
}

// ExecuteCommand 在独立 exec 通道中执行单条命令
func (c *Client) ExecuteCommand(ctx context.Context, command string) (*CommandResult, error) {
	c.mutex.RLock()
	conn := c.connection
	c.mutex.RUnlock()
	if conn == nil {
		return nil, ErrNotConnected
	}

	if c.config.CommandTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.config.CommandTimeout)
		defer cancel()
	}

	startTime := time.Now()
	result := &CommandResult{Command: command}

	session, err := conn.NewSession()
	if err != nil {
		result.Error = fmt.Sprintf("failed to create session: %v", err)
		result.ExitCode = -1
		return result, fmt.Errorf("failed to create session: %w", err)
	}
	defer session.Close()

	type outcome struct {
		out []byte
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		out, err := session.CombinedOutput(command)
		done <- outcome{out, err}
	}()

	select {
	case o := <-done:
		result.Duration = time.Since(startTime)
		result.Output = o.out
		if o.err != nil {
			result.Error = o.err.Error()
			var exitErr *ssh.ExitError
			if errors.As(o.err, &exitErr) {
				result.ExitCode = exitErr.ExitStatus()
			} else {
				result.ExitCode = -1
			}
			return result, o.err
		}
		return result, nil
	case <-ctx.Done():
		_ = session.Signal(ssh.SIGTERM)
		result.Duration = time.Since(startTime)
		result.Error = "command timeout"
		result.ExitCode = -1
		return result, fmt.Errorf("%w: command %q: %v", ErrTimeout, command, ctx.Err())
	}
}

// Close 关闭SSH连接；可重复调用
func (c *Client) Close() error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if c.stopKeepAlive != nil {
		close(c.stopKeepAlive)
		c.stopKeepAlive = nil
	}
	if c.connection == nil {
		return nil
	}
	err := c.connection.Close()
	c.connection = nil
	return err
}

// IsConnected 检查连接状态
func (c *Client) IsConnected() bool {
	c.mutex.RLock()
	conn := c.connection
	c.mutex.RUnlock()
	if conn == nil {
		return false
	}
	// 发送 keepalive 全局请求而不创建会话，避免触发设备的会话数量限制
	_, _, err := conn.SendRequest("keepalive@openssh.com", false, nil)
	return err == nil
}

func (c *Client) keepAlive(conn *ssh.Client, stop <-chan struct{}) {
	if c.config.KeepAlive <= 0 {
		return
	}
	ticker := time.NewTicker(c.config.KeepAlive)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if _, _, err := conn.SendRequest("keepalive@openssh.com", false, nil); err != nil {
				return
			}
		}
	}
}
