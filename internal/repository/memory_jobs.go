package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"remediation-engine/internal/domain"
)

// MemoryJobsRepo: 用于 DB 未就绪时的联测
// - 读写都做拷贝，调用方拿到的 job 与内部状态不共享
// - 与 Postgres 实现一样没有版本检查（last-write-wins）
type MemoryJobsRepo struct {
	mu        sync.RWMutex
	jobs      map[string]*domain.Job
	updatedAt map[string]time.Time
}

func NewMemoryJobsRepo() *MemoryJobsRepo {
	return &MemoryJobsRepo{
		jobs:      map[string]*domain.Job{},
		updatedAt: map[string]time.Time{},
	}
}

var _ JobsRepository = (*MemoryJobsRepo)(nil)

// PutJob 写入 / 覆盖整个 job（seed 使用）
func (r *MemoryJobsRepo) PutJob(job domain.Job) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs[job.JobID] = cloneJob(&job)
	r.updatedAt[job.JobID] = time.Now()
}

func (r *MemoryJobsRepo) GetJob(_ context.Context, jobID string) (*domain.Job, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	job, ok := r.jobs[jobID]
	if !ok {
		return nil, domain.ErrJobNotFound
	}
	return cloneJob(job), nil
}

func (r *MemoryJobsRepo) UpdateRemediation(_ context.Context, jobID string, update domain.RemediationUpdate) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[jobID]
	if !ok {
		return domain.ErrJobNotFound
	}
	next := cloneJob(job)
	next.RemediationData = cloneData(update.Data)
	next.RemediationRequired = update.Required
	next.RemediationStatus = update.Status
	r.jobs[jobID] = next
	r.updatedAt[jobID] = time.Now()
	return nil
}

func (r *MemoryJobsRepo) MarkInvoiced(_ context.Context, jobID, invoiceID string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[jobID]
	if !ok {
		return domain.ErrJobNotFound
	}
	job.InvoiceID = invoiceID
	t := at
	job.InvoicedAt = &t
	r.updatedAt[jobID] = time.Now()
	return nil
}

func (r *MemoryJobsRepo) ListJobsWithRemediation(_ context.Context, limit int) ([]*domain.Job, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*domain.Job, 0, len(r.jobs))
	for _, job := range r.jobs {
		if len(job.RemediationData.Rooms) == 0 {
			continue
		}
		out = append(out, cloneJob(job))
	}
	sort.Slice(out, func(i, j int) bool {
		return r.updatedAt[out[i].JobID].After(r.updatedAt[out[j].JobID])
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func cloneData(d domain.RemediationData) domain.RemediationData {
	rooms := make([]domain.Room, 0, len(d.Rooms))
	for _, room := range d.Rooms {
		rooms = append(rooms, room.Clone())
	}
	return domain.RemediationData{Rooms: rooms, UpdatedAt: d.UpdatedAt}
}

func cloneJob(j *domain.Job) *domain.Job {
	out := *j
	out.RemediationData = cloneData(j.RemediationData)
	if j.InvoicedAt != nil {
		t := *j.InvoicedAt
		out.InvoicedAt = &t
	}
	return &out
}
