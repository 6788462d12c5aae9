package service

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"remediation-engine/internal/domain"
	"remediation-engine/internal/repository"

	"go.uber.org/zap"
)

// GroupByRoom 按房间分组持久化的测量项；房间名标记行不参与计费，直接排除
func GroupByRoom(persisted []domain.Room) []domain.RoomGroup {
	groups := make([]domain.RoomGroup, 0, len(persisted))
	for _, r := range persisted {
		ms := make([]domain.Measurement, 0, len(r.Measurements))
		for _, m := range r.Measurements {
			if m.IsBillable() {
				ms = append(ms, m)
			}
		}
		groups = append(groups, domain.RoomGroup{RoomName: r.Title, Measurements: ms})
	}
	return groups
}

// LineAmountCents overrides[m.ID] 优先，否则 quantity * unitPrice
// 标记行和未选择目录项的占位行恒为 0（不会出现在发票上）
func LineAmountCents(m domain.Measurement, overrides domain.Overrides) int64 {
	if !m.IsInvoiceable() {
		return 0
	}
	if v, ok := overrides[m.ID]; ok {
		return domain.ToCents(v)
	}
	return m.AmountCents()
}

// LineAmount 单行金额
func LineAmount(m domain.Measurement, overrides domain.Overrides) float64 {
	return domain.FromCents(LineAmountCents(m, overrides))
}

// GrandTotalCents 全部房间全部行的金额之和（整数分，与顺序无关）
func GrandTotalCents(groups []domain.RoomGroup, overrides domain.Overrides) int64 {
	var total int64
	for _, g := range groups {
		for _, m := range g.Measurements {
			total += LineAmountCents(m, overrides)
		}
	}
	return total
}

// GrandTotal 合计金额
func GrandTotal(groups []domain.RoomGroup, overrides domain.Overrides) float64 {
	return domain.FromCents(GrandTotalCents(groups, overrides))
}

// BuildLineItems 可提交的开票行
// 未选择目录项的占位行没有 ItemRef，无法开票，跳过（合计中同样为 0）
// 覆盖金额时按 amount/qty 反推展示单价，底层 quantity / unitPrice 不变
func BuildLineItems(groups []domain.RoomGroup, overrides domain.Overrides) []domain.InvoiceLineItem {
	out := []domain.InvoiceLineItem{}
	for _, g := range groups {
		for _, m := range g.Measurements {
			if !m.IsInvoiceable() {
				continue
			}
			_, overridden := overrides[m.ID]
			amount := LineAmount(m, overrides)
			unitPrice := m.UnitPrice
			if overridden && m.Quantity > 0 {
				unitPrice = amount / m.Quantity
			}
			out = append(out, domain.InvoiceLineItem{
				MeasurementID: m.ID,
				Description:   lineDescription(g.RoomName, m),
				Quantity:      m.Quantity,
				Amount:        amount,
				ItemID:        m.ItemID,
				UnitPrice:     unitPrice,
				Room:          g.RoomName,
				Name:          m.Name,
				Overridden:    overridden,
			})
		}
	}
	return out
}

// ValidateOverrides 覆盖金额必须在 [0, MaxOverrideAmount] 内
func ValidateOverrides(overrides domain.Overrides) error {
	for id, v := range overrides {
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 || v > domain.MaxOverrideAmount {
			return domain.NewValidationError("overrides", "override for %s must be between 0 and %d", id, domain.MaxOverrideAmount)
		}
	}
	return nil
}

func lineDescription(room string, m domain.Measurement) string {
	desc := strings.TrimSpace(m.Description)
	if desc == "" {
		desc = m.Name
	}
	if room == "" {
		return desc
	}
	return room + " - " + desc
}

// InvoicePreview 开票预览
type InvoicePreview struct {
	JobID     string                   `json:"job_id"`
	Customer  domain.Customer          `json:"customer"`
	Groups    []domain.RoomGroup       `json:"groups"`
	LineItems []domain.InvoiceLineItem `json:"line_items"`
	Total     float64                  `json:"total"`
	InvoiceID string                   `json:"invoice_id,omitempty"`
}

// SubmitInvoiceRequest 提交发票请求
type SubmitInvoiceRequest struct {
	JobID       string
	Overrides   domain.Overrides
	TxnDate     time.Time // 零值时使用当天
	BillEmail   string    // 为空时使用客户邮箱
	Credentials domain.AccountingCredentials
}

// InvoiceService 汇总持久化数据并提交到会计系统
// 覆盖金额只用于本次预览 / 提交，不写回 job 文档
type InvoiceService struct {
	jobs   repository.JobsRepository
	client *AccountingClient
	events EventPublisher
	logger *zap.Logger
	now    func() time.Time
}

func NewInvoiceService(jobs repository.JobsRepository, client *AccountingClient, events EventPublisher, logger *zap.Logger) *InvoiceService {
	if events == nil {
		events = NopEventPublisher{}
	}
	return &InvoiceService{
		jobs:   jobs,
		client: client,
		events: events,
		logger: logger,
		now:    time.Now,
	}
}

// Preview 读取持久化数据并计算分组 / 行 / 合计
func (s *InvoiceService) Preview(ctx context.Context, jobID string, overrides domain.Overrides) (*InvoicePreview, error) {
	if jobID == "" {
		return nil, fmt.Errorf("job_id is required")
	}
	if err := ValidateOverrides(overrides); err != nil {
		return nil, err
	}
	job, err := s.jobs.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	return buildPreview(job, overrides), nil
}

func buildPreview(job *domain.Job, overrides domain.Overrides) *InvoicePreview {
	groups := GroupByRoom(job.RemediationData.Rooms)
	return &InvoicePreview{
		JobID:     job.JobID,
		Customer:  job.Customer,
		Groups:    groups,
		LineItems: BuildLineItems(groups, overrides),
		Total:     GrandTotal(groups, overrides),
		InvoiceID: job.InvoiceID,
	}
}

// Submit 组装并提交发票；成功后记录发票号（失败只记录日志）
func (s *InvoiceService) Submit(ctx context.Context, req SubmitInvoiceRequest) (*domain.Invoice, error) {
	if !req.Credentials.Complete() {
		return nil, &domain.AccountingError{Kind: domain.ErrMissingCredentials}
	}
	preview, err := s.Preview(ctx, req.JobID, req.Overrides)
	if err != nil {
		return nil, err
	}
	if len(preview.LineItems) == 0 {
		return nil, domain.NewValidationError("line_items", "job %s has no billable line items", req.JobID)
	}

	customer := preview.Customer
	if req.BillEmail != "" {
		customer.Email = req.BillEmail
	}
	if customer.Ref == "" {
		return nil, domain.NewValidationError("customer", "job %s has no accounting customer reference", req.JobID)
	}
	date := req.TxnDate
	if date.IsZero() {
		date = s.now()
	}

	payload := ComposeInvoicePayload(customer, date, preview.LineItems)
	invoice, err := s.client.Submit(ctx, payload, req.Credentials)
	if err != nil {
		return nil, err
	}

	if err := s.jobs.MarkInvoiced(ctx, req.JobID, invoice.ID, s.now()); err != nil {
		s.logger.Warn("Invoice created but job not marked invoiced",
			zap.String("job_id", req.JobID),
			zap.String("invoice_id", invoice.ID),
			zap.Error(err),
		)
	}
	if err := s.events.Publish(ctx, EventInvoiceSubmitted, InvoiceSubmittedEvent{
		JobID:     req.JobID,
		InvoiceID: invoice.ID,
		DocNumber: invoice.DocNumber,
		TotalAmt:  payload.TotalAmt,
	}); err != nil {
		s.logger.Warn("Failed to publish invoice.submitted", zap.String("job_id", req.JobID), zap.Error(err))
	}
	return invoice, nil
}

// SendEmail 发送已创建发票的邮件
func (s *InvoiceService) SendEmail(ctx context.Context, invoiceID, address string, creds domain.AccountingCredentials) (*domain.Invoice, error) {
	return s.client.SendEmail(ctx, invoiceID, address, creds)
}
