// Package archive 封装结果归档的 MinIO 客户端
//
// 可选组件：流水线成功后把该网络的结果记录镜像到对象存储桶，
// 键为 results/<文件名>。未配置时整个归档路径不参与。
package archive

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"netsurvey/internal/config"
)

// Client MinIO 客户端封装
type Client struct {
	mc     *minio.Client
	bucket string
}

// NewClient 创建归档客户端
func NewClient(cfg config.ArchiveConfig) (*Client, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("archive endpoint is required")
	}
	if cfg.AccessKey == "" || cfg.SecretKey == "" {
		return nil, fmt.Errorf("archive access_key and secret_key are required")
	}

	mc, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	bucket := cfg.Bucket
	if bucket == "" {
		bucket = "netsurvey"
	}

	return &Client{mc: mc, bucket: bucket}, nil
}

// EnsureBucket 确保桶存在
func (c *Client) EnsureBucket(ctx context.Context) error {
	exists, err := c.mc.BucketExists(ctx, c.bucket)
	if err != nil {
		return fmt.Errorf("check bucket: %w", err)
	}
	if !exists {
		if err := c.mc.MakeBucket(ctx, c.bucket, minio.MakeBucketOptions{}); err != nil {
			return fmt.Errorf("create bucket: %w", err)
		}
		log.Printf("[archive] Created bucket: %s", c.bucket)
	}
	return nil
}

// Upload 上传对象
func (c *Client) Upload(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error {
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	_, err := c.mc.PutObject(ctx, c.bucket, key, reader, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return fmt.Errorf("upload %s: %w", key, err)
	}
	return nil
}

// Exists 检查对象是否存在
func (c *Client) Exists(ctx context.Context, key string) (bool, error) {
	_, err := c.mc.StatObject(ctx, c.bucket, key, minio.StatObjectOptions{})
	if err != nil {
		resp := minio.ToErrorResponse(err)
		if resp.Code == "NoSuchKey" {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// ArchiveNetworkResults 镜像某网络的全部结果记录
//
// 结果目录中属于该网络的记录文件（results<ID>.txt 和
// results<ID>_<PID>.txt）逐个上传，返回上传数量。
func (c *Client) ArchiveNetworkResults(ctx context.Context, resultsDir, networkID string) (int, error) {
	files, err := resultFilesForNetwork(resultsDir, networkID)
	if err != nil {
		return 0, err
	}

	uploaded := 0
	for _, path := range files {
		if err := c.uploadFile(ctx, path); err != nil {
			return uploaded, err
		}
		uploaded++
	}
	return uploaded, nil
}

func (c *Client) uploadFile(ctx context.Context, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open result file: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat result file: %w", err)
	}

	key := "results/" + filepath.Base(path)
	return c.Upload(ctx, key, f, info.Size(), "application/json")
}

// resultFilesForNetwork 枚举属于某网络的结果记录文件
//
// 按文件名精确匹配：results<ID>.txt 或 results<ID>_ 前缀，
// 避免把 results31.txt 算进网络 3。
func resultFilesForNetwork(resultsDir, networkID string) ([]string, error) {
	entries, err := os.ReadDir(resultsDir)
	if err != nil {
		return nil, fmt.Errorf("read results dir %s: %w", resultsDir, err)
	}

	single := "results" + networkID + ".txt"
	patternPrefix := "results" + networkID + "_"

	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if name == single || (strings.HasPrefix(name, patternPrefix) && strings.HasSuffix(name, ".txt")) {
			files = append(files, filepath.Join(resultsDir, name))
		}
	}
	return files, nil
}
