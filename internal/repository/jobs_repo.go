package repository

import (
	"context"
	"time"

	"remediation-engine/internal/domain"
)

// JobsRepository 工单文档 Repository 接口
// 只包含本引擎依赖的读写契约：整体读取 + 一次原子更新
type JobsRepository interface {
	GetJob(ctx context.Context, jobID string) (*domain.Job, error)
	// UpdateRemediation 单次原子更新 remediation_data / remediation_required / remediation_status
	// 没有版本检查（last-write-wins）
	UpdateRemediation(ctx context.Context, jobID string, update domain.RemediationUpdate) error
	MarkInvoiced(ctx context.Context, jobID, invoiceID string, at time.Time) error
	// ListJobsWithRemediation 运维检查工具使用
	ListJobsWithRemediation(ctx context.Context, limit int) ([]*domain.Job, error)
}

// CatalogRepository 计费目录（只读）
type CatalogRepository interface {
	ListCatalogItems(ctx context.Context) ([]domain.CatalogItem, error)
}
