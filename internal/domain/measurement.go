package domain

import (
	"encoding/json"
	"math"
)

// 风机设备行（由 numberOfFans 派生）的固定目录标识
// 所有创建 / 判断 / 禁止编辑设备行的地方都只使用这些常量
const (
	EquipmentItemID      = "equipment-air-mover"
	EquipmentName        = "Air Mover"
	EquipmentDescription = "Air mover / drying fan, per unit per day"
	EquipmentUnitPrice   = 35.00
)

const (
	// MaxLineValue quantity / unitPrice 单个字段上限
	MaxLineValue = 1_000_000
	// MaxOverrideAmount 覆盖金额上限
	MaxOverrideAmount = 1_000_000_000
	// MaxAmountCents 单个金额（分）上限，ToCents 超出时截断
	MaxAmountCents int64 = 1_000_000_000_000_000
)

// MeasurementKind 测量项类型
type MeasurementKind string

const (
	KindCatalog   MeasurementKind = "catalog"   // 目录计费行
	KindEquipment MeasurementKind = "equipment" // 由风机数量派生的设备行
	KindRoomLabel MeasurementKind = "roomLabel" // 仅持久化时注入的房间名标记行
)

// Measurement 房间内的计费行 / 标记行
type Measurement struct {
	ID          string          `json:"id"`
	Kind        MeasurementKind `json:"kind"`
	ItemID      string          `json:"itemId,omitempty"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Quantity    float64         `json:"quantity"`
	UnitPrice   float64         `json:"unitPrice"`
	RoomName    string          `json:"roomName,omitempty"`
	IsRoomName  bool            `json:"isRoomName,omitempty"`
	Tax         bool            `json:"tax,omitempty"`
}

// NewCatalogMeasurement 目录计费行；item 为空时生成待选择的占位行
func NewCatalogMeasurement(id, roomName string, item *CatalogItem) Measurement {
	m := Measurement{
		ID:       id,
		Kind:     KindCatalog,
		RoomName: roomName,
	}
	if item != nil {
		m.ItemID = item.ID
		m.Name = item.Name
		m.Description = item.Description
		m.UnitPrice = item.UnitPrice
	}
	return m
}

// NewEquipmentMeasurement 风机设备行（名称 / 描述 / 单价固定）
func NewEquipmentMeasurement(id, roomName string, fans int) Measurement {
	return Measurement{
		ID:          id,
		Kind:        KindEquipment,
		ItemID:      EquipmentItemID,
		Name:        EquipmentName,
		Description: EquipmentDescription,
		Quantity:    float64(fans),
		UnitPrice:   EquipmentUnitPrice,
		RoomName:    roomName,
	}
}

// NewRoomLabel 房间名标记行（金额恒为 0）
func NewRoomLabel(id, roomTitle string) Measurement {
	return Measurement{
		ID:         id,
		Kind:       KindRoomLabel,
		Name:       roomTitle,
		IsRoomName: true,
		Tax:        true,
	}
}

// IsBillable 是否参与计费
func (m Measurement) IsBillable() bool {
	return m.Kind != KindRoomLabel
}

// IsInvoiceable 可以开票：计费行且已选择目录项
// 预览合计与提交的发票行都按这一条规则取舍
func (m Measurement) IsInvoiceable() bool {
	return m.IsBillable() && m.ItemID != ""
}

// AmountCents 计算金额（分）；房间名标记行恒为 0
func (m Measurement) AmountCents() int64 {
	if !m.IsBillable() {
		return 0
	}
	return ToCents(m.Quantity * m.UnitPrice)
}

// Amount 计算金额
func (m Measurement) Amount() float64 {
	return FromCents(m.AmountCents())
}

// InferKind 旧文档没有 kind 字段时按字段推断类型
func (m Measurement) InferKind() MeasurementKind {
	switch {
	case m.Kind == KindCatalog || m.Kind == KindEquipment || m.Kind == KindRoomLabel:
		return m.Kind
	case m.IsRoomName:
		return KindRoomLabel
	case m.ItemID == EquipmentItemID:
		return KindEquipment
	default:
		return KindCatalog
	}
}

// MarshalJSON 房间名标记行不输出 quantity / unitPrice
func (m Measurement) MarshalJSON() ([]byte, error) {
	type alias Measurement
	if m.Kind == KindRoomLabel {
		return json.Marshal(struct {
			ID         string          `json:"id"`
			Kind       MeasurementKind `json:"kind"`
			Name       string          `json:"name"`
			IsRoomName bool            `json:"isRoomName"`
			Tax        bool            `json:"tax"`
		}{m.ID, m.Kind, m.Name, m.IsRoomName, m.Tax})
	}
	return json.Marshal(alias(m))
}

// UnmarshalJSON 解码后补全 kind
func (m *Measurement) UnmarshalJSON(data []byte) error {
	type alias Measurement
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	*m = Measurement(a)
	m.Kind = m.InferKind()
	return nil
}

// ToCents 金额转分（四舍五入），截断到 ±MaxAmountCents；NaN 视为 0
func ToCents(v float64) int64 {
	if math.IsNaN(v) {
		return 0
	}
	c := math.Round(v * 100)
	if c > float64(MaxAmountCents) {
		return MaxAmountCents
	}
	if c < -float64(MaxAmountCents) {
		return -MaxAmountCents
	}
	return int64(c)
}

// FromCents 分转金额
func FromCents(c int64) float64 {
	return float64(c) / 100
}
