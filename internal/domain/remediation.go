package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// RemediationStatus job 级别的修复状态（封闭枚举）
type RemediationStatus string

const (
	StatusNotStarted RemediationStatus = "notStarted"
	StatusInProgress RemediationStatus = "inProgress"
	StatusComplete   RemediationStatus = "complete"
)

// ParseRemediationStatus 解析状态字符串；空字符串视为 notStarted
func ParseRemediationStatus(s string) (RemediationStatus, error) {
	switch RemediationStatus(s) {
	case "", StatusNotStarted:
		return StatusNotStarted, nil
	case StatusInProgress:
		return StatusInProgress, nil
	case StatusComplete:
		return StatusComplete, nil
	}
	return "", fmt.Errorf("unknown remediation status %q", s)
}

// AfterSave 显式保存后的状态
//   - complete=true:  notStarted / inProgress -> complete
//   - complete=false: notStarted -> inProgress
//
// 状态不会自动回退：complete 保存为草稿时仍为 complete
func (s RemediationStatus) AfterSave(complete bool) RemediationStatus {
	if complete || s == StatusComplete {
		return StatusComplete
	}
	return StatusInProgress
}

func (s *RemediationStatus) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := ParseRemediationStatus(raw)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// RemediationData jobs.remediation_data（JSONB）
type RemediationData struct {
	Rooms     []Room    `json:"rooms"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// RemediationUpdate 一次保存写入 job 文档的全部字段（整体替换，原子更新）
type RemediationUpdate struct {
	Data     RemediationData
	Required bool
	Status   RemediationStatus
}

// Customer 开票客户（CustomerRef 为会计系统中的客户 id）
type Customer struct {
	Name  string `json:"name"`
	Ref   string `json:"ref"`
	Email string `json:"email"`
}

// Job 工单文档中本引擎关心的字段
type Job struct {
	JobID               string            `json:"job_id"`
	Customer            Customer          `json:"customer"`
	RemediationData     RemediationData   `json:"remediation_data"`
	RemediationRequired bool              `json:"remediation_required"`
	RemediationStatus   RemediationStatus `json:"remediation_status"`
	InvoiceID           string            `json:"invoice_id,omitempty"`
	InvoicedAt          *time.Time        `json:"invoiced_at,omitempty"`
}
