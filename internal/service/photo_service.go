package service

import (
	"context"
	"fmt"
	"path"
	"strings"
	"sync/atomic"

	"remediation-engine/internal/domain"
	"remediation-engine/internal/store"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// PhotoUpload 待上传的一张照片
type PhotoUpload struct {
	Filename    string
	ContentType string
	Label       string
	Data        []byte
}

// PhotoService 房间照片批量上传
type PhotoService struct {
	storage     store.PhotoStorage
	maxBatch    int
	concurrency int
	logger      *zap.Logger
}

// NewPhotoService concurrency <= 0 时不限制同时上传数量
func NewPhotoService(storage store.PhotoStorage, maxBatch, concurrency int, logger *zap.Logger) *PhotoService {
	return &PhotoService{storage: storage, maxBatch: maxBatch, concurrency: concurrency, logger: logger}
}

// UploadBatch 并发上传一批照片，全部成功才返回结果
// 任意一张失败返回 UploadError；已上传的对象不会回滚
func (s *PhotoService) UploadBatch(ctx context.Context, jobID, roomID string, files []PhotoUpload) ([]domain.Photo, error) {
	if len(files) == 0 {
		return nil, domain.NewValidationError("photos", "no photos in upload")
	}
	if s.maxBatch > 0 && len(files) > s.maxBatch {
		return nil, domain.NewValidationError("photos", "at most %d photos per upload", s.maxBatch)
	}

	photos := make([]domain.Photo, len(files))
	var failed int32

	g, gctx := errgroup.WithContext(ctx)
	if s.concurrency > 0 {
		g.SetLimit(s.concurrency)
	}
	for i, f := range files {
		g.Go(func() error {
			key := photoKey(jobID, roomID, f.Filename)
			obj, err := s.storage.Upload(gctx, key, f.ContentType, f.Data)
			if err != nil {
				atomic.AddInt32(&failed, 1)
				return fmt.Errorf("upload %s: %w", f.Filename, err)
			}
			photos[i] = domain.Photo{
				StoragePath: obj.StoragePath,
				DownloadURL: obj.DownloadURL,
				Label:       f.Label,
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		s.logger.Error("Photo batch upload failed",
			zap.String("job_id", jobID),
			zap.String("room_id", roomID),
			zap.Int("total", len(files)),
			zap.Int32("failed", atomic.LoadInt32(&failed)),
			zap.Error(err),
		)
		return nil, &domain.UploadError{Failed: int(atomic.LoadInt32(&failed)), Total: len(files), Err: err}
	}

	s.logger.Info("Photo batch uploaded",
		zap.String("job_id", jobID),
		zap.String("room_id", roomID),
		zap.Int("count", len(photos)),
	)
	return photos, nil
}

func photoKey(jobID, roomID, filename string) string {
	ext := strings.ToLower(path.Ext(filename))
	if ext == "" {
		ext = ".jpg"
	}
	return fmt.Sprintf("jobs/%s/rooms/%s/%s%s", jobID, roomID, uuid.NewString(), ext)
}
