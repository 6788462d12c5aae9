package domain

const (
	// MaxNotesLength 房间备注最大字符数（按 rune 计）
	MaxNotesLength = 1000
	// MaxNumberOfFans 单个房间风机数量上限
	MaxNumberOfFans = 20
)

// PresetRoomNames 新建房间时可选的预设名称
var PresetRoomNames = []string{
	"Kitchen",
	"Living Room",
	"Dining Room",
	"Bedroom",
	"Master Bedroom",
	"Bathroom",
	"Laundry Room",
	"Hallway",
	"Basement",
	"Garage",
	"Office",
	"Attic",
	"Crawlspace",
}

// Room 房间（一个 job 的空间单元：备注、风机数量、测量项、照片）
type Room struct {
	ID           string        `json:"id"`
	Title        string        `json:"title"`
	Notes        string        `json:"notes"`
	NumberOfFans int           `json:"numberOfFans"`
	Measurements []Measurement `json:"measurements"`
	Photos       []Photo       `json:"photos"`
}

// RoomNameHint 新建房间时的命名输入
// 优先级: Preset > 去空格后的 Custom > "Room N"
type RoomNameHint struct {
	Preset string `json:"preset,omitempty"`
	Custom string `json:"custom,omitempty"`
}

// Clone 深拷贝房间（measurements / photos 不共享底层数组）
func (r Room) Clone() Room {
	out := r
	out.Measurements = make([]Measurement, len(r.Measurements))
	copy(out.Measurements, r.Measurements)
	out.Photos = make([]Photo, len(r.Photos))
	copy(out.Photos, r.Photos)
	return out
}

// FindMeasurement 按 id 查找测量项下标，不存在返回 -1
func (r Room) FindMeasurement(id string) int {
	for i, m := range r.Measurements {
		if m.ID == id {
			return i
		}
	}
	return -1
}

// EquipmentLine 返回房间内的风机设备行（如果存在）
func (r Room) EquipmentLine() (Measurement, bool) {
	for _, m := range r.Measurements {
		if m.Kind == KindEquipment {
			return m, true
		}
	}
	return Measurement{}, false
}
