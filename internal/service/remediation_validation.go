package service

import (
	"fmt"
	"unicode/utf8"

	"remediation-engine/internal/domain"
)

// RoomsMissingPhotos 没有任何照片的房间（纯函数）
func RoomsMissingPhotos(rooms []domain.Room) []domain.Room {
	out := []domain.Room{}
	for _, r := range rooms {
		if len(r.Photos) == 0 {
			out = append(out, r)
		}
	}
	return out
}

// CheckPhotos 保存前的照片完整性校验：全部房间都有照片才允许保存
// 返回的 ValidationError.Rooms 为缺少照片的房间标题
func CheckPhotos(rooms []domain.Room) error {
	missing := RoomsMissingPhotos(rooms)
	if len(missing) == 0 {
		return nil
	}
	titles := make([]string, 0, len(missing))
	for _, r := range missing {
		titles = append(titles, r.Title)
	}
	return &domain.ValidationError{
		Field:   "photos",
		Message: "every room needs at least one photo before saving; missing",
		Rooms:   titles,
	}
}

// RoomInvariantViolations 检查单个工作副本房间的不变量，返回违反项描述
func RoomInvariantViolations(r domain.Room) []string {
	var out []string
	if r.NumberOfFans < 0 || r.NumberOfFans > domain.MaxNumberOfFans {
		out = append(out, fmt.Sprintf("numberOfFans %d out of range [0,%d]", r.NumberOfFans, domain.MaxNumberOfFans))
	}
	if n := utf8.RuneCountInString(r.Notes); n > domain.MaxNotesLength {
		out = append(out, fmt.Sprintf("notes length %d exceeds %d", n, domain.MaxNotesLength))
	}

	equipment := 0
	for _, m := range r.Measurements {
		switch {
		case m.Kind == domain.KindRoomLabel:
			out = append(out, fmt.Sprintf("room label line %s present in working copy", m.ID))
		case isEquipmentLine(m):
			equipment++
			if m.Quantity != float64(r.NumberOfFans) {
				out = append(out, fmt.Sprintf("equipment quantity %v does not match numberOfFans %d", m.Quantity, r.NumberOfFans))
			}
		}
	}
	switch {
	case equipment > 1:
		out = append(out, fmt.Sprintf("%d equipment lines, expected at most one", equipment))
	case r.NumberOfFans > 0 && equipment == 0:
		out = append(out, "numberOfFans > 0 but equipment line missing")
	case r.NumberOfFans == 0 && equipment > 0:
		out = append(out, "equipment line present but numberOfFans is 0")
	}
	return out
}

// RoomFinding 持久化房间的检查结果
type RoomFinding struct {
	RoomID     string   `json:"room_id"`
	RoomTitle  string   `json:"room_title"`
	Violations []string `json:"violations"`
}

// AuditPersistedRooms 检查已持久化的 rooms（运维检查工具使用）
// 每个房间应以一条标记行开头，去掉标记行后满足工作副本的不变量，并且至少有一张照片
func AuditPersistedRooms(rooms []domain.Room) []RoomFinding {
	out := []RoomFinding{}
	for _, r := range rooms {
		var violations []string
		labels := 0
		stripped := r.Clone()
		stripped.Measurements = stripped.Measurements[:0:0]
		for i, m := range r.Measurements {
			if m.Kind == domain.KindRoomLabel {
				labels++
				if i != 0 {
					violations = append(violations, fmt.Sprintf("room label line %s at position %d", m.ID, i))
				}
				continue
			}
			stripped.Measurements = append(stripped.Measurements, m)
		}
		if labels != 1 {
			violations = append(violations, fmt.Sprintf("%d room label lines, expected 1", labels))
		}
		violations = append(violations, RoomInvariantViolations(stripped)...)
		if len(r.Photos) == 0 {
			violations = append(violations, "no photos")
		}
		if len(violations) > 0 {
			out = append(out, RoomFinding{RoomID: r.ID, RoomTitle: r.Title, Violations: violations})
		}
	}
	return out
}
