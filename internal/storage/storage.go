// Package storage 将员工的照片和简历上传到 S3 兼容的对象存储，
// 只向调用方返回可公开访问的 URL 和对象标识
package storage

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"github.com/sysu-ecnc-dev/maker-checker/backend/internal/config"
)

type Category string

const (
	CategoryPhoto  Category = "photo"
	CategoryResume Category = "resume"
)

func (c Category) folder() string {
	switch c {
	case CategoryPhoto:
		return "employees/photos"
	case CategoryResume:
		return "employees/resumes"
	default:
		return "employees/misc"
	}
}

// Asset 是一次上传的结果
type Asset struct {
	SecureURL string
	PublicID  string
}

// File 是待上传的文件，内容不会被检查
type File struct {
	Name        string
	ContentType string
	Size        int64
	Body        io.Reader
}

type Uploader interface {
	Upload(ctx context.Context, category Category, file File) (Asset, error)
}

type putObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

type S3Uploader struct {
	client        putObjectAPI
	bucket        string
	publicBaseURL string
}

func NewS3Uploader(ctx context.Context, cfg *config.Config) (*S3Uploader, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.S3.Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.S3.AccessKey,
			cfg.S3.SecretKey,
			"",
		)),
	)
	if err != nil {
		return nil, err
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(cfg.S3.Endpoint)
		o.UsePathStyle = cfg.S3.UsePathStyle
	})

	return newS3Uploader(client, cfg.S3.Bucket, cfg.S3.PublicBaseURL), nil
}

func newS3Uploader(client putObjectAPI, bucket, publicBaseURL string) *S3Uploader {
	return &S3Uploader{
		client:        client,
		bucket:        bucket,
		publicBaseURL: strings.TrimRight(publicBaseURL, "/"),
	}
}

// ObjectKey 生成形如 employees/photos/<uuid>.jpg 的对象键
func ObjectKey(category Category, filename string) string {
	return fmt.Sprintf("%s/%s%s", category.folder(), uuid.NewString(), strings.ToLower(path.Ext(filename)))
}

func (u *S3Uploader) Upload(ctx context.Context, category Category, file File) (Asset, error) {
	key := ObjectKey(category, file.Name)

	input := &s3.PutObjectInput{
		Bucket: aws.String(u.bucket),
		Key:    aws.String(key),
		Body:   file.Body,
	}
	if file.ContentType != "" {
		input.ContentType = aws.String(file.ContentType)
	}
	if file.Size > 0 {
		input.ContentLength = aws.Int64(file.Size)
	}

	if _, err := u.client.PutObject(ctx, input); err != nil {
		return Asset{}, fmt.Errorf("upload %s: %w", category, err)
	}

	return Asset{
		SecureURL: u.publicBaseURL + "/" + key,
		PublicID:  key,
	}, nil
}
