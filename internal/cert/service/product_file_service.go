package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"mime/multipart"
	"path/filepath"
	"strings"
	"time"

	"github.com/bitfantasy/nimo-cert/internal/cert/entity"
	"github.com/bitfantasy/nimo-cert/internal/cert/errs"
	"github.com/bitfantasy/nimo-cert/internal/cert/repository"
	"github.com/facebookgo/clock"
	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
)

// 附件预签名下载链接有效期
const filePresignExpire = time.Hour

// ProductFileService 产品附件服务。对象存MinIO，元数据落库。
type ProductFileService struct {
	fileRepo    *repository.ProductFileRepository
	productRepo *repository.ProductRepository
	minioClient *minio.Client
	bucket      string
	clk         clock.Clock
}

func NewProductFileService(
	fileRepo *repository.ProductFileRepository,
	productRepo *repository.ProductRepository,
	clk clock.Clock,
) *ProductFileService {
	return &ProductFileService{
		fileRepo:    fileRepo,
		productRepo: productRepo,
		clk:         clk,
	}
}

// SetMinioClient 注入MinIO客户端
func (s *ProductFileService) SetMinioClient(client *minio.Client, bucket string) {
	s.minioClient = client
	s.bucket = bucket
}

// checkProductAccess 校验产品归属
func (s *ProductFileService) checkProductAccess(ctx context.Context, productID string, actor entity.Actor) (*entity.Product, error) {
	product, err := s.productRepo.FindByID(ctx, productID)
	if err != nil {
		if err == repository.ErrNotFound {
			return nil, errs.NotFound("产品不存在")
		}
		return nil, err
	}
	if !actor.IsStaff() && product.SupplierID != actor.ID {
		return nil, errs.Permission("无权访问该产品")
	}
	return product, nil
}

// Upload 上传检测资料附件。校验扩展名白名单和大小上限，
// 上传时同步计算sha256。
func (s *ProductFileService) Upload(ctx context.Context, productID string, header *multipart.FileHeader, actor entity.Actor) (*entity.ProductFile, error) {
	if _, err := s.checkProductAccess(ctx, productID, actor); err != nil {
		return nil, err
	}

	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(header.Filename)), ".")
	if !entity.AllowedFileExtensions[ext] {
		return nil, errs.Validation("不支持的文件类型: %s", ext)
	}
	if header.Size > entity.MaxFileSize {
		return nil, errs.Validation("文件超过大小上限 %dMB", entity.MaxFileSize/(1024*1024))
	}

	src, err := header.Open()
	if err != nil {
		return nil, errs.Storage("读取上传文件失败", err)
	}
	defer src.Close()

	fileID := uuid.New().String()[:32]
	now := s.clk.Now()
	hasher := sha256.New()

	file := &entity.ProductFile{
		ID:         fileID,
		ProductID:  productID,
		FileName:   header.Filename,
		FileType:   strings.ToUpper(ext),
		FileSize:   header.Size,
		UploadedAt: now,
	}

	if s.minioClient != nil {
		key := fmt.Sprintf("product_files/%s/%s_%s", now.Format("2006/01/02"), fileID, header.Filename)
		_, err := s.minioClient.PutObject(ctx, s.bucket, key, io.TeeReader(src, hasher), header.Size, minio.PutObjectOptions{
			ContentType: header.Header.Get("Content-Type"),
		})
		if err != nil {
			return nil, errs.Storage("上传附件到对象存储失败", err)
		}
		file.StorageBucket = s.bucket
		file.StorageKey = key
		file.UploadStatus = entity.FileStatusValidated
		file.ValidatedAt = &now
	} else {
		// MinIO未配置，仅记录元数据
		if _, err := io.Copy(hasher, src); err != nil {
			return nil, errs.Storage("读取上传文件失败", err)
		}
		file.UploadStatus = entity.FileStatusUploaded
	}

	file.FileHash = hex.EncodeToString(hasher.Sum(nil))

	if err := s.fileRepo.Create(ctx, file); err != nil {
		return nil, err
	}

	return file, nil
}

// List 查询产品的附件列表
func (s *ProductFileService) List(ctx context.Context, productID string, actor entity.Actor) ([]entity.ProductFile, error) {
	if _, err := s.checkProductAccess(ctx, productID, actor); err != nil {
		return nil, err
	}
	return s.fileRepo.FindByProductID(ctx, productID)
}

// Download 生成附件下载凭据（预签名GET）
func (s *ProductFileService) Download(ctx context.Context, fileID string, actor entity.Actor) (map[string]interface{}, error) {
	file, err := s.fileRepo.FindByID(ctx, fileID)
	if err != nil {
		if err == repository.ErrNotFound {
			return nil, errs.NotFound("附件不存在")
		}
		return nil, err
	}

	if _, err := s.checkProductAccess(ctx, file.ProductID, actor); err != nil {
		return nil, err
	}

	if s.minioClient == nil || file.StorageKey == "" {
		return nil, errs.NotReady("附件对象未入库，无法下载")
	}

	u, err := s.minioClient.PresignedGetObject(ctx, file.StorageBucket, file.StorageKey, filePresignExpire, nil)
	if err != nil {
		return nil, errs.Storage("生成下载链接失败", err)
	}

	return map[string]interface{}{
		"file_id":      file.ID,
		"file_name":    file.FileName,
		"download_url": u.String(),
		"expires_in":   fmt.Sprintf("%d seconds", int(filePresignExpire.Seconds())),
	}, nil
}
