package service

import (
	"time"

	"remediation-engine/internal/domain"
)

// BuildProjection 持久化投影：每个房间的测量项前插入房间名标记行
// 不修改入参
func BuildProjection(rooms []domain.Room) []domain.Room {
	out := make([]domain.Room, 0, len(rooms))
	for _, r := range rooms {
		p := r.Clone()
		ms := make([]domain.Measurement, 0, len(r.Measurements)+1)
		ms = append(ms, domain.NewRoomLabel(r.ID+"-label", r.Title))
		ms = append(ms, r.Measurements...)
		p.Measurements = ms
		if p.Photos == nil {
			p.Photos = []domain.Photo{}
		}
		out = append(out, p)
	}
	return out
}

// BuildRemediationUpdate 一次保存写入 job 文档的全部字段
func BuildRemediationUpdate(rooms []domain.Room, current domain.RemediationStatus, complete bool, now time.Time) domain.RemediationUpdate {
	return domain.RemediationUpdate{
		Data: domain.RemediationData{
			Rooms:     BuildProjection(rooms),
			UpdatedAt: now.UTC(),
		},
		Required: false,
		Status:   current.AfterSave(complete),
	}
}
