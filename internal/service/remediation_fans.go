package service

import (
	"math"
	"strconv"
	"strings"

	"remediation-engine/internal/domain"
)

// SetNumberOfFans 设置风机数量并同步设备行
//   - 无法解析按 0 处理
//   - 超出 [0,20] 返回 ValidationError，状态不变
//   - >0: 不存在则创建设备行（固定标识 / 单价），存在则只更新数量
//   - =0: 删除设备行
func (wc *WorkingCopy) SetNumberOfFans(roomID, raw string) error {
	n := parseFanCount(raw)
	if n < 0 || n > domain.MaxNumberOfFans {
		return domain.NewValidationError("numberOfFans", "number of fans must be between 0 and %d", domain.MaxNumberOfFans)
	}
	return wc.updateRoom(roomID, func(r domain.Room) (domain.Room, error) {
		return wc.syncEquipment(r, n), nil
	})
}

// syncEquipment 返回 numberOfFans=n 且设备行与之一致的房间
// r 必须是调用方独占的副本
func (wc *WorkingCopy) syncEquipment(r domain.Room, n int) domain.Room {
	r.NumberOfFans = n

	idx := -1
	kept := make([]domain.Measurement, 0, len(r.Measurements)+1)
	for _, m := range r.Measurements {
		if isEquipmentLine(m) {
			// 只保留第一条设备行
			if idx >= 0 {
				continue
			}
			idx = len(kept)
		}
		kept = append(kept, m)
	}

	switch {
	case n > 0 && idx >= 0:
		kept[idx].Quantity = float64(n)
	case n > 0:
		kept = append(kept, domain.NewEquipmentMeasurement(wc.newID(), r.Title, n))
	case idx >= 0:
		kept = append(kept[:idx], kept[idx+1:]...)
	}
	r.Measurements = kept
	return r
}

// parseFanCount 解析整数；"3.7" 取 3，无法解析返回 0
func parseFanCount(raw string) int {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	if f > math.MaxInt32 || f < math.MinInt32 {
		// 明显越界，交给范围校验拒绝
		if f > 0 {
			return math.MaxInt32
		}
		return math.MinInt32
	}
	return int(f)
}
