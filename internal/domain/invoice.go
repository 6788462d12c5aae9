package domain

// Overrides 手工金额覆盖：measurementID -> amount
// 仅用于开票展示，不回写 quantity / unitPrice，也不持久化
type Overrides map[string]float64

// RoomGroup 按房间分组的持久化测量项
type RoomGroup struct {
	RoomName     string        `json:"roomName"`
	Measurements []Measurement `json:"measurements"`
}

// InvoiceLineItem 可提交的开票行
type InvoiceLineItem struct {
	MeasurementID string  `json:"measurementId"`
	Description   string  `json:"description"`
	Quantity      float64 `json:"quantity"`
	Amount        float64 `json:"amount"`
	ItemID        string  `json:"itemId"`
	UnitPrice     float64 `json:"unitPrice"`
	Room          string  `json:"room"`
	Name          string  `json:"name"`
	Overridden    bool    `json:"overridden,omitempty"`
}

// Invoice 会计系统返回的已创建发票
type Invoice struct {
	ID        string  `json:"Id"`
	DocNumber string  `json:"DocNumber,omitempty"`
	SyncToken string  `json:"SyncToken,omitempty"`
	TxnDate   string  `json:"TxnDate,omitempty"`
	TotalAmt  float64 `json:"TotalAmt"`
	Balance   float64 `json:"Balance,omitempty"`
	// EmailStatus: NotSet / NeedToSend / EmailSent
	EmailStatus string `json:"EmailStatus,omitempty"`
}

// AccountingCredentials 会计系统凭证
type AccountingCredentials struct {
	AccessToken string
	RealmID     string
}

// Complete 凭证是否齐全
func (c AccountingCredentials) Complete() bool {
	return c.AccessToken != "" && c.RealmID != ""
}
