package service

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"remediation-engine/internal/domain"
	"remediation-engine/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Session 一次打开的 job 编辑会话（持有工作副本）
// 打开时整体读取 remediation 数据，保存时整体替换
type Session struct {
	ID       string
	JobID    string
	OpenedAt time.Time

	lastUsed atomic.Int64 // UnixNano，每次按 id 查找时刷新

	mu            sync.Mutex
	status        domain.RemediationStatus
	wc            *WorkingCopy
	catalog       []domain.CatalogItem
	catalogLoaded bool
}

// SessionView 会话对外视图
type SessionView struct {
	SessionID string                   `json:"session_id"`
	JobID     string                   `json:"job_id"`
	Status    domain.RemediationStatus `json:"status"`
	Rooms     []domain.Room            `json:"rooms"`
}

// SaveResult 保存结果
type SaveResult struct {
	JobID     string                   `json:"job_id"`
	Status    domain.RemediationStatus `json:"status"`
	UpdatedAt time.Time                `json:"updated_at"`
	RoomCount int                      `json:"room_count"`
}

// RemediationService 工作副本编辑 + 保存
type RemediationService struct {
	jobs    repository.JobsRepository
	catalog *CatalogService
	photos  *PhotoService
	events  EventPublisher
	logger  *zap.Logger
	now     func() time.Time

	// idleTTL 会话空闲超过该时长后被回收；<= 0 不回收
	idleTTL time.Duration

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewRemediationService 创建服务；events 为 nil 时不发布事件
func NewRemediationService(jobs repository.JobsRepository, catalog *CatalogService, photos *PhotoService, events EventPublisher, logger *zap.Logger) *RemediationService {
	if events == nil {
		events = NopEventPublisher{}
	}
	return &RemediationService{
		jobs:     jobs,
		catalog:  catalog,
		photos:   photos,
		events:   events,
		logger:   logger,
		now:      time.Now,
		sessions: map[string]*Session{},
	}
}

// WithSessionIdleTTL 设置会话空闲回收时长
func (s *RemediationService) WithSessionIdleTTL(ttl time.Duration) *RemediationService {
	s.idleTTL = ttl
	return s
}

// Open 读取 job 并创建编辑会话
func (s *RemediationService) Open(ctx context.Context, jobID string) (*SessionView, error) {
	if jobID == "" {
		return nil, fmt.Errorf("job_id is required")
	}
	job, err := s.jobs.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}

	status := job.RemediationStatus
	if status == "" {
		status = domain.StatusNotStarted
	}
	sess := &Session{
		ID:       uuid.NewString(),
		JobID:    job.JobID,
		OpenedAt: s.now(),
		status:   status,
		wc:       NewWorkingCopy(job.RemediationData.Rooms),
	}
	sess.lastUsed.Store(sess.OpenedAt.UnixNano())

	s.mu.Lock()
	s.sessions[sess.ID] = sess
	s.mu.Unlock()

	s.logger.Info("Remediation session opened",
		zap.String("session_id", sess.ID),
		zap.String("job_id", jobID),
		zap.Int("rooms", len(sess.wc.Rooms())),
	)

	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.view(), nil
}

// Get 当前会话视图
func (s *RemediationService) Get(sessionID string) (*SessionView, error) {
	sess, err := s.session(sessionID)
	if err != nil {
		return nil, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.view(), nil
}

// Close 关闭会话，未保存的修改丢弃
func (s *RemediationService) Close(sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[sessionID]; !ok {
		return domain.ErrSessionNotFound
	}
	delete(s.sessions, sessionID)
	return nil
}

// SweepIdleSessions 回收空闲超过 idleTTL 的会话（未保存的修改丢弃），返回回收数量
func (s *RemediationService) SweepIdleSessions() int {
	if s.idleTTL <= 0 {
		return 0
	}
	cutoff := s.now().Add(-s.idleTTL).UnixNano()

	s.mu.Lock()
	var expired []*Session
	for id, sess := range s.sessions {
		if sess.lastUsed.Load() < cutoff {
			expired = append(expired, sess)
			delete(s.sessions, id)
		}
	}
	s.mu.Unlock()

	for _, sess := range expired {
		s.logger.Info("Idle remediation session expired",
			zap.String("session_id", sess.ID),
			zap.String("job_id", sess.JobID),
		)
	}
	return len(expired)
}

// RunSessionSweeper 按 interval 周期回收空闲会话，直到 ctx 结束
func (s *RemediationService) RunSessionSweeper(ctx context.Context, interval time.Duration) {
	if s.idleTTL <= 0 || interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.SweepIdleSessions()
		}
	}
}

// Edit 在会话工作副本上执行一次编辑操作
// fn 返回错误时工作副本保持不变（WorkingCopy 的每个操作都是整体替换）
func (s *RemediationService) Edit(sessionID string, fn func(wc *WorkingCopy) error) (*SessionView, error) {
	sess, err := s.session(sessionID)
	if err != nil {
		return nil, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if err := fn(sess.wc); err != nil {
		return nil, err
	}
	return sess.view(), nil
}

// SearchCatalog 会话内首次使用时加载目录，之后一直使用内存副本
func (s *RemediationService) SearchCatalog(ctx context.Context, sessionID, query string) ([]domain.CatalogItem, error) {
	sess, err := s.session(sessionID)
	if err != nil {
		return nil, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	items, err := s.catalogItems(ctx, sess)
	if err != nil {
		return nil, err
	}
	return FilterCatalog(items, query), nil
}

// ApplyCatalogItem 为占位测量项选择目录项
func (s *RemediationService) ApplyCatalogItem(ctx context.Context, sessionID, roomID, measurementID, itemID string) (*SessionView, error) {
	sess, err := s.session(sessionID)
	if err != nil {
		return nil, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()

	items, err := s.catalogItems(ctx, sess)
	if err != nil {
		return nil, err
	}
	item, ok := FindCatalogItem(items, itemID)
	if !ok {
		return nil, domain.ErrCatalogItemNotFound
	}
	if err := sess.wc.ApplyCatalogItem(roomID, measurementID, item); err != nil {
		return nil, err
	}
	return sess.view(), nil
}

// UploadPhotos 上传一批照片并挂到房间；上传期间不持有会话锁
func (s *RemediationService) UploadPhotos(ctx context.Context, sessionID, roomID string, files []PhotoUpload) (*SessionView, error) {
	sess, err := s.session(sessionID)
	if err != nil {
		return nil, err
	}

	sess.mu.Lock()
	_, ok := sess.wc.Room(roomID)
	sess.mu.Unlock()
	if !ok {
		return nil, domain.ErrRoomNotFound
	}

	photos, err := s.photos.UploadBatch(ctx, sess.JobID, roomID, files)
	if err != nil {
		return nil, err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	// 上传期间房间可能已被删除；已上传对象不回收
	if err := sess.wc.AttachPhotos(roomID, photos); err != nil {
		s.logger.Warn("Room removed during photo upload; uploaded objects left unreferenced",
			zap.String("job_id", sess.JobID),
			zap.String("room_id", roomID),
			zap.Int("count", len(photos)),
		)
		return nil, err
	}
	return sess.view(), nil
}

// Save 校验照片 -> 构建投影 -> 一次原子写入
// 写入失败返回 PersistenceError，工作副本不变，可直接重试
func (s *RemediationService) Save(ctx context.Context, sessionID string, complete bool) (*SaveResult, error) {
	sess, err := s.session(sessionID)
	if err != nil {
		return nil, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()

	rooms := sess.wc.Rooms()
	if err := CheckPhotos(rooms); err != nil {
		s.logger.Info("Save blocked by photo validation",
			zap.String("job_id", sess.JobID),
			zap.String("session_id", sess.ID),
			zap.Error(err),
		)
		return nil, err
	}

	update := BuildRemediationUpdate(rooms, sess.status, complete, s.now())
	if err := s.jobs.UpdateRemediation(ctx, sess.JobID, update); err != nil {
		s.logger.Error("Failed to save remediation",
			zap.String("job_id", sess.JobID),
			zap.String("session_id", sess.ID),
			zap.Error(err),
		)
		return nil, &domain.PersistenceError{JobID: sess.JobID, Err: err}
	}
	sess.status = update.Status

	s.logger.Info("Remediation saved",
		zap.String("job_id", sess.JobID),
		zap.String("status", string(update.Status)),
		zap.Int("rooms", len(rooms)),
	)

	if err := s.events.Publish(ctx, EventRemediationSaved, RemediationSavedEvent{
		JobID:     sess.JobID,
		Status:    string(update.Status),
		RoomCount: len(rooms),
		UpdatedAt: update.Data.UpdatedAt.Unix(),
	}); err != nil {
		s.logger.Warn("Failed to publish remediation.saved", zap.String("job_id", sess.JobID), zap.Error(err))
	}

	return &SaveResult{
		JobID:     sess.JobID,
		Status:    update.Status,
		UpdatedAt: update.Data.UpdatedAt,
		RoomCount: len(rooms),
	}, nil
}

func (s *RemediationService) session(sessionID string) (*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	sess.lastUsed.Store(s.now().UnixNano())
	return sess, nil
}

// catalogItems 调用方需持有 sess.mu；加载失败不缓存
func (s *RemediationService) catalogItems(ctx context.Context, sess *Session) ([]domain.CatalogItem, error) {
	if sess.catalogLoaded {
		return sess.catalog, nil
	}
	items, err := s.catalog.Load(ctx)
	if err != nil {
		return nil, err
	}
	sess.catalog = items
	sess.catalogLoaded = true
	return items, nil
}

func (sess *Session) view() *SessionView {
	return &SessionView{
		SessionID: sess.ID,
		JobID:     sess.JobID,
		Status:    sess.status,
		Rooms:     sess.wc.Rooms(),
	}
}
