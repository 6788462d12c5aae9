package service

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"

	"remediation-engine/internal/domain"

	"github.com/google/uuid"
)

// MeasurementField 可通过通用更新路径修改的字段
type MeasurementField string

const (
	FieldQuantity    MeasurementField = "quantity"
	FieldUnitPrice   MeasurementField = "unitPrice"
	FieldName        MeasurementField = "name"
	FieldDescription MeasurementField = "description"
)

// WorkingCopy 一个 job 的 remediation 工作副本
//   - 每次修改都生成新的 rooms 切片（copy-on-write），之前 Rooms() 返回的快照保持不变
//   - 不包含房间名标记行（只在持久化投影中注入）
//   - 不加锁：由 Session 串行化访问
type WorkingCopy struct {
	rooms []domain.Room
	newID func() string
}

// NewWorkingCopy 由持久化的 rooms 构建工作副本
// 去掉房间名标记行，并按 numberOfFans 校正设备行
func NewWorkingCopy(persisted []domain.Room) *WorkingCopy {
	wc := &WorkingCopy{newID: uuid.NewString}
	rooms := make([]domain.Room, 0, len(persisted))
	for _, room := range persisted {
		r := room.Clone()
		kept := make([]domain.Measurement, 0, len(r.Measurements))
		for _, m := range r.Measurements {
			if m.Kind == domain.KindRoomLabel {
				continue
			}
			kept = append(kept, m)
		}
		r.Measurements = kept
		if r.Photos == nil {
			r.Photos = []domain.Photo{}
		}
		if r.ID == "" {
			r.ID = wc.newID()
		}
		if r.NumberOfFans < 0 {
			r.NumberOfFans = 0
		}
		if r.NumberOfFans > domain.MaxNumberOfFans {
			r.NumberOfFans = domain.MaxNumberOfFans
		}
		rooms = append(rooms, wc.syncEquipment(r, r.NumberOfFans))
	}
	wc.rooms = rooms
	return wc
}

// Rooms 当前快照（只读）
func (wc *WorkingCopy) Rooms() []domain.Room {
	return wc.rooms
}

// Room 按 id 查找房间
func (wc *WorkingCopy) Room(roomID string) (domain.Room, bool) {
	i := wc.indexOf(roomID)
	if i < 0 {
		return domain.Room{}, false
	}
	return wc.rooms[i], true
}

// AddRoom 新建空房间；命名优先级: 预设 > 去空格的自定义名 > "Room {当前数量+1}"
func (wc *WorkingCopy) AddRoom(hint domain.RoomNameHint) domain.Room {
	title := strings.TrimSpace(hint.Preset)
	if title == "" {
		title = strings.TrimSpace(hint.Custom)
	}
	if title == "" {
		title = fmt.Sprintf("Room %d", len(wc.rooms)+1)
	}

	room := domain.Room{
		ID:           wc.newID(),
		Title:        title,
		Measurements: []domain.Measurement{},
		Photos:       []domain.Photo{},
	}
	next := make([]domain.Room, 0, len(wc.rooms)+1)
	next = append(next, wc.rooms...)
	wc.rooms = append(next, room)
	return room
}

// DeleteRoom 删除房间（直接过滤，无墓碑）
func (wc *WorkingCopy) DeleteRoom(roomID string) error {
	i := wc.indexOf(roomID)
	if i < 0 {
		return domain.ErrRoomNotFound
	}
	next := make([]domain.Room, 0, len(wc.rooms)-1)
	next = append(next, wc.rooms[:i]...)
	wc.rooms = append(next, wc.rooms[i+1:]...)
	return nil
}

// AddMeasurement 新增空白目录行占位，返回其 id；随后由 ApplyCatalogItem 完成目录选择
func (wc *WorkingCopy) AddMeasurement(roomID string) (string, error) {
	id := wc.newID()
	err := wc.updateRoom(roomID, func(r domain.Room) (domain.Room, error) {
		r.Measurements = append(r.Measurements, domain.NewCatalogMeasurement(id, r.Title, nil))
		return r, nil
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

// ApplyCatalogItem 把目录项填入占位行（保留已输入的数量）
func (wc *WorkingCopy) ApplyCatalogItem(roomID, measurementID string, item domain.CatalogItem) error {
	if item.ID == domain.EquipmentItemID {
		return domain.NewValidationError("itemId", "%s is managed by the fan count", domain.EquipmentName)
	}
	return wc.updateMeasurement(roomID, measurementID, func(m domain.Measurement) (domain.Measurement, error) {
		m.ItemID = item.ID
		m.Name = item.Name
		m.Description = item.Description
		m.UnitPrice = item.UnitPrice
		return m, nil
	})
}

// UpdateMeasurementField 通用字段更新；设备行整行只读
func (wc *WorkingCopy) UpdateMeasurementField(roomID, measurementID string, field MeasurementField, value string) error {
	return wc.updateMeasurement(roomID, measurementID, func(m domain.Measurement) (domain.Measurement, error) {
		switch field {
		case FieldQuantity:
			v, err := parseNonNegative(string(field), value)
			if err != nil {
				return m, err
			}
			m.Quantity = v
		case FieldUnitPrice:
			v, err := parseNonNegative(string(field), value)
			if err != nil {
				return m, err
			}
			m.UnitPrice = v
		case FieldName:
			m.Name = value
		case FieldDescription:
			m.Description = value
		default:
			return m, domain.NewValidationError("field", "unknown measurement field %q", field)
		}
		return m, nil
	})
}

// DeleteMeasurement 删除测量项；设备行只能通过把风机数量设为 0 删除
func (wc *WorkingCopy) DeleteMeasurement(roomID, measurementID string) error {
	return wc.updateRoom(roomID, func(r domain.Room) (domain.Room, error) {
		i := r.FindMeasurement(measurementID)
		if i < 0 {
			return r, domain.ErrMeasurementNotFound
		}
		if isEquipmentLine(r.Measurements[i]) {
			return r, equipmentLocked()
		}
		next := make([]domain.Measurement, 0, len(r.Measurements)-1)
		next = append(next, r.Measurements[:i]...)
		r.Measurements = append(next, r.Measurements[i+1:]...)
		return r, nil
	})
}

// SetNotes 设置房间备注（超过 1000 字符拒绝，不修改状态）
func (wc *WorkingCopy) SetNotes(roomID, text string) error {
	if n := utf8.RuneCountInString(text); n > domain.MaxNotesLength {
		return domain.NewValidationError("notes", "notes must be at most %d characters (got %d)", domain.MaxNotesLength, n)
	}
	return wc.updateRoom(roomID, func(r domain.Room) (domain.Room, error) {
		r.Notes = text
		return r, nil
	})
}

// AttachPhotos 追加一批已上传成功的照片
func (wc *WorkingCopy) AttachPhotos(roomID string, photos []domain.Photo) error {
	return wc.updateRoom(roomID, func(r domain.Room) (domain.Room, error) {
		r.Photos = append(r.Photos, photos...)
		return r, nil
	})
}

// RemovePhoto 按 storagePath 移除照片引用（不删除存储对象）
func (wc *WorkingCopy) RemovePhoto(roomID, storagePath string) error {
	return wc.updateRoom(roomID, func(r domain.Room) (domain.Room, error) {
		next := make([]domain.Photo, 0, len(r.Photos))
		for _, p := range r.Photos {
			if p.StoragePath != storagePath {
				next = append(next, p)
			}
		}
		if len(next) == len(r.Photos) {
			return r, fmt.Errorf("%w: %s", domain.ErrPhotoNotFound, storagePath)
		}
		r.Photos = next
		return r, nil
	})
}

func (wc *WorkingCopy) indexOf(roomID string) int {
	for i, r := range wc.rooms {
		if r.ID == roomID {
			return i
		}
	}
	return -1
}

// updateRoom 在房间副本上执行 fn，成功后替换整个 rooms 切片
func (wc *WorkingCopy) updateRoom(roomID string, fn func(domain.Room) (domain.Room, error)) error {
	i := wc.indexOf(roomID)
	if i < 0 {
		return domain.ErrRoomNotFound
	}
	updated, err := fn(wc.rooms[i].Clone())
	if err != nil {
		return err
	}
	next := make([]domain.Room, len(wc.rooms))
	copy(next, wc.rooms)
	next[i] = updated
	wc.rooms = next
	return nil
}

func (wc *WorkingCopy) updateMeasurement(roomID, measurementID string, fn func(domain.Measurement) (domain.Measurement, error)) error {
	return wc.updateRoom(roomID, func(r domain.Room) (domain.Room, error) {
		i := r.FindMeasurement(measurementID)
		if i < 0 {
			return r, domain.ErrMeasurementNotFound
		}
		if isEquipmentLine(r.Measurements[i]) {
			return r, equipmentLocked()
		}
		m, err := fn(r.Measurements[i])
		if err != nil {
			return r, err
		}
		r.Measurements[i] = m
		return r, nil
	})
}

func isEquipmentLine(m domain.Measurement) bool {
	return m.Kind == domain.KindEquipment || m.ItemID == domain.EquipmentItemID
}

func equipmentLocked() error {
	return domain.NewValidationError("measurement", "%s is managed by the fan count and cannot be edited", domain.EquipmentName)
}

func parseNonNegative(field, value string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, domain.NewValidationError(field, "%s must be a number", field)
	}
	if v < 0 {
		return 0, domain.NewValidationError(field, "%s must be zero or greater", field)
	}
	if v > domain.MaxLineValue {
		return 0, domain.NewValidationError(field, "%s must be at most %d", field, domain.MaxLineValue)
	}
	return v, nil
}
