package store

import (
	"context"
	"fmt"
	"sync"
)

// StoredObject 上传成功后返回的对象位置
type StoredObject struct {
	StoragePath string
	DownloadURL string
}

// PhotoStorage 照片对象存储（上传协作方）
type PhotoStorage interface {
	Upload(ctx context.Context, key, contentType string, data []byte) (StoredObject, error)
}

// MemoryPhotoStorage 开发 / 测试用
type MemoryPhotoStorage struct {
	mu      sync.Mutex
	BaseURL string
	objects map[string][]byte
}

func NewMemoryPhotoStorage(baseURL string) *MemoryPhotoStorage {
	return &MemoryPhotoStorage{BaseURL: baseURL, objects: map[string][]byte{}}
}

func (m *MemoryPhotoStorage) Upload(ctx context.Context, key, _ string, data []byte) (StoredObject, error) {
	if err := ctx.Err(); err != nil {
		return StoredObject{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = append([]byte(nil), data...)
	return StoredObject{
		StoragePath: key,
		DownloadURL: fmt.Sprintf("%s/%s", m.BaseURL, key),
	}, nil
}

// Len 已存对象数量
func (m *MemoryPhotoStorage) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.objects)
}
