package service

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	minio "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/sshcollectorpro/devextract/addone/dialect"
	"github.com/sshcollectorpro/devextract/internal/config"
	"github.com/sshcollectorpro/devextract/pkg/logger"
)

const archiveContentType = "text/plain; charset=utf-8"

// ArchiveItem 一条命令的原始回显
type ArchiveItem struct {
	Host    string
	Dialect dialect.Dialect
	RunID   string
	Key     string
	Command string
	Output  string
	// Time 本次执行的开始时间，同一次执行的命令落在同一目录
	Time time.Time
}

// objectPath <prefix>/<host>/<dialect>/<YYYYMMDD_HHMMSS>_<run>/<key>.txt，使用 POSIX 分隔符
// 无 RunID 时目录名精确到纳秒
func (i ArchiveItem) objectPath(prefix string) string {
	ts := i.Time
	if ts.IsZero() {
		ts = time.Now()
	}
	dir := ts.Format("20060102_150405.000000000")
	if id := strings.TrimSpace(i.RunID); id != "" {
		dir = ts.Format("20060102_150405") + "_" + slug(id)
	}
	parts := make([]string, 0, 5)
	if p := strings.Trim(strings.TrimSpace(prefix), "/"); p != "" {
		parts = append(parts, p)
	}
	parts = append(parts, slug(i.Host), slug(i.Dialect.String()), dir)
	return path.Join(append(parts, slug(i.Key)+".txt")...)
}

// StoredObject 已写入对象信息
type StoredObject struct {
	URI         string `json:"uri"`
	Size        int64  `json:"size"`
	Checksum    string `json:"checksum"`
	ContentType string `json:"content_type"`
}

func checksum(data []byte) string {
	sum := sha256.Sum256(data)
	return "sha256:" + hex.EncodeToString(sum[:])
}

// NewArchiver 按 storage.backend 创建归档器；none 返回 nil
func NewArchiver(cfg config.StorageConfig) (Archiver, error) {
	local := &LocalArchiver{BaseDir: cfg.Local.BaseDir, Prefix: cfg.Prefix}
	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case "", "none":
		return nil, nil
	case "local":
		return local, nil
	case "minio":
		m, err := NewMinioArchiver(cfg.Minio, cfg.Prefix)
		if err != nil {
			return nil, err
		}
		// MinIO 写入失败回退本地
		return &FallbackArchiver{Primary: m, Fallback: local}, nil
	}
	return nil, fmt.Errorf("unsupported storage backend %q", cfg.Backend)
}

// LocalArchiver 本地目录归档
type LocalArchiver struct {
	BaseDir string
	Prefix  string
}

func (w *LocalArchiver) Archive(ctx context.Context, item ArchiveItem) error {
	_, err := w.Store(ctx, item)
	return err
}

// Store 写入文件并返回对象信息
func (w *LocalArchiver) Store(_ context.Context, item ArchiveItem) (StoredObject, error) {
	baseDir := strings.TrimSpace(w.BaseDir)
	if baseDir == "" {
		baseDir = "./data/raw"
	}
	fullPath := filepath.Join(baseDir, filepath.FromSlash(item.objectPath(w.Prefix)))
	if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
		return StoredObject{}, fmt.Errorf("failed to create dir: %w", err)
	}

	data := []byte(item.Output)
	if err := os.WriteFile(fullPath, data, 0o644); err != nil {
		return StoredObject{}, fmt.Errorf("failed to write file: %w", err)
	}
	return StoredObject{
		URI:         "file://" + fullPath,
		Size:        int64(len(data)),
		Checksum:    checksum(data),
		ContentType: archiveContentType,
	}, nil
}

// MinioArchiver MinIO 对象存储归档
type MinioArchiver struct {
	client   *minio.Client
	endpoint string
	bucket   string
	prefix   string

	mu            sync.Mutex
	bucketEnsured bool
}

// NewMinioArchiver 创建客户端；不在此处访问服务端
func NewMinioArchiver(cfg config.MinioConfig, prefix string) (*MinioArchiver, error) {
	host := strings.TrimSpace(cfg.Host)
	if host == "" || cfg.Port <= 0 {
		return nil, fmt.Errorf("minio configuration incomplete: host/port missing")
	}
	bucket := strings.TrimSpace(cfg.Bucket)
	if bucket == "" {
		return nil, fmt.Errorf("minio bucket not configured")
	}
	endpoint := net.JoinHostPort(host, fmt.Sprint(cfg.Port))

	transport := &http.Transport{
		DialContext:           (&net.Dialer{Timeout: 5 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
		TLSHandshakeTimeout:   5 * time.Second,
		ResponseHeaderTimeout: 30 * time.Second,
		ExpectContinueTimeout: 5 * time.Second,
		IdleConnTimeout:       90 * time.Second,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   100,
	}
	client, err := minio.New(endpoint, &minio.Options{
		Creds:     credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure:    cfg.Secure,
		Transport: transport,
	})
	if err != nil {
		return nil, fmt.Errorf("minio client initialization failed: %w", err)
	}
	return &MinioArchiver{client: client, endpoint: endpoint, bucket: bucket, prefix: prefix}, nil
}

func (w *MinioArchiver) Archive(ctx context.Context, item ArchiveItem) error {
	_, err := w.Store(ctx, item)
	return err
}

// Store 写入对象并返回对象信息
func (w *MinioArchiver) Store(ctx context.Context, item ArchiveItem) (StoredObject, error) {
	// 写入前快速连通性探测，尽早返回明确错误
	if err := w.fastConnectivityCheck(ctx); err != nil {
		return StoredObject{}, fmt.Errorf("minio connectivity failed to %s: %w", w.endpoint, err)
	}
	if err := w.ensureBucket(ctx); err != nil {
		return StoredObject{}, fmt.Errorf("minio ensure bucket failed: %w", err)
	}

	objectName := item.objectPath(w.prefix)
	data := []byte(item.Output)
	putCtx, cancel := attemptContext(ctx, 30*time.Second)
	defer cancel()
	_, err := w.client.PutObject(putCtx, w.bucket, objectName, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: archiveContentType})
	if err != nil {
		return StoredObject{}, fmt.Errorf("minio put object failed: %w", err)
	}
	return StoredObject{
		URI:         "minio://" + path.Join(w.bucket, objectName),
		Size:        int64(len(data)),
		Checksum:    checksum(data),
		ContentType: archiveContentType,
	}, nil
}

func (w *MinioArchiver) fastConnectivityCheck(parent context.Context) error {
	d := &net.Dialer{Timeout: 3 * time.Second}
	conn, err := d.DialContext(parent, "tcp", w.endpoint)
	if err != nil {
		return err
	}
	return conn.Close()
}

// ensureBucket 首次写入时校验并创建 bucket
func (w *MinioArchiver) ensureBucket(parent context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.bucketEnsured {
		return nil
	}

	ctx, cancel := attemptContext(parent, 10*time.Second)
	defer cancel()
	exists, err := w.client.BucketExists(ctx, w.bucket)
	if err != nil {
		return err
	}
	if !exists {
		if err := w.client.MakeBucket(ctx, w.bucket, minio.MakeBucketOptions{}); err != nil {
			return err
		}
	}
	w.bucketEnsured = true
	return nil
}

// attemptContext 限时上下文，不超过父上下文的截止时间
func attemptContext(parent context.Context, prefer time.Duration) (context.Context, context.CancelFunc) {
	if deadline, ok := parent.Deadline(); ok && time.Until(deadline) < prefer {
		return context.WithCancel(parent)
	}
	return context.WithTimeout(parent, prefer)
}

// FallbackArchiver 主归档失败时写入备用归档
type FallbackArchiver struct {
	Primary  Archiver
	Fallback Archiver
}

func (w *FallbackArchiver) Archive(ctx context.Context, item ArchiveItem) error {
	err := w.Primary.Archive(ctx, item)
	if err == nil {
		return nil
	}
	logger.WithField("host", item.Host).Warnf("Primary archive failed, falling back: %v", err)
	if ferr := w.Fallback.Archive(ctx, item); ferr != nil {
		return fmt.Errorf("primary archive failed: %v; fallback failed: %w", err, ferr)
	}
	return nil
}

var slugRe = regexp.MustCompile(`[^a-z0-9._-]+`)

func slug(s string) string {
	s = strings.TrimSpace(s)
	s = strings.ToLower(s)
	s = strings.ReplaceAll(s, " ", "_")
	s = strings.ReplaceAll(s, "/", "_")
	s = strings.ReplaceAll(s, "\\", "_")
	// host:port 与 IPv6 地址保留分隔
	s = strings.ReplaceAll(s, ":", "_")
	s = slugRe.ReplaceAllString(s, "")
	if s == "" {
		s = "unknown"
	}
	return s
}
