package service

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"remediation-engine/internal/domain"

	"github.com/go-resty/resty/v2"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"
)

// 会计系统发票请求体
type InvoicePayload struct {
	AutoDocNumber bool          `json:"AutoDocNumber"`
	CustomerRef   Ref           `json:"CustomerRef"`
	BillEmail     *EmailAddress `json:"BillEmail,omitempty"`
	TxnDate       string        `json:"TxnDate"`
	CurrencyRef   Ref           `json:"CurrencyRef"`
	Line          []InvoiceLine `json:"Line"`
	TotalAmt      float64       `json:"TotalAmt"`
}

type Ref struct {
	Value string `json:"value"`
	Name  string `json:"name,omitempty"`
}

type EmailAddress struct {
	Address string `json:"Address"`
}

type InvoiceLine struct {
	DetailType          string              `json:"DetailType"`
	Amount              float64             `json:"Amount"`
	Description         string              `json:"Description,omitempty"`
	SalesItemLineDetail SalesItemLineDetail `json:"SalesItemLineDetail"`
}

type SalesItemLineDetail struct {
	ItemRef   Ref     `json:"ItemRef"`
	UnitPrice float64 `json:"UnitPrice"`
	Qty       float64 `json:"Qty"`
}

const (
	salesItemLineDetail = "SalesItemLineDetail"
	currencyUSD         = "USD"
	txnDateLayout       = "2006-01-02"
)

// faultMessagePaths 依次尝试的错误信息路径（大小写两种写法）
var faultMessagePaths = []string{
	"Fault.Error.0.Message",
	"fault.error.0.message",
	"Fault.Error.0.Detail",
	"fault.error.0.detail",
}

// ComposeInvoicePayload 组装发票请求体；TotalAmt 为各行金额（按分）之和
func ComposeInvoicePayload(customer domain.Customer, date time.Time, lines []domain.InvoiceLineItem) InvoicePayload {
	payload := InvoicePayload{
		AutoDocNumber: true,
		CustomerRef:   Ref{Value: customer.Ref, Name: customer.Name},
		TxnDate:       date.Format(txnDateLayout),
		CurrencyRef:   Ref{Value: currencyUSD},
		Line:          make([]InvoiceLine, 0, len(lines)),
	}
	if customer.Email != "" {
		payload.BillEmail = &EmailAddress{Address: customer.Email}
	}

	var total int64
	for _, l := range lines {
		total += domain.ToCents(l.Amount)
		payload.Line = append(payload.Line, InvoiceLine{
			DetailType:  salesItemLineDetail,
			Amount:      l.Amount,
			Description: l.Description,
			SalesItemLineDetail: SalesItemLineDetail{
				ItemRef:   Ref{Value: l.ItemID, Name: l.Name},
				UnitPrice: l.UnitPrice,
				Qty:       l.Quantity,
			},
		})
	}
	payload.TotalAmt = domain.FromCents(total)
	return payload
}

// AccountingClient 外部会计系统 API 客户端
// 不重试；超时为 0 时只受 ctx 控制
type AccountingClient struct {
	httpClient   *resty.Client
	minorVersion string
	logger       *zap.Logger
}

// NewAccountingClient 创建会计系统客户端
func NewAccountingClient(baseURL, minorVersion string, timeout time.Duration, logger *zap.Logger) *AccountingClient {
	client := resty.New().
		SetBaseURL(baseURL).
		SetRetryCount(0).
		SetHeader("Accept", "application/json")
	if timeout > 0 {
		client.SetTimeout(timeout)
	}

	return &AccountingClient{
		httpClient:   client,
		minorVersion: minorVersion,
		logger:       logger,
	}
}

// Submit 创建发票
func (c *AccountingClient) Submit(ctx context.Context, payload InvoicePayload, creds domain.AccountingCredentials) (*domain.Invoice, error) {
	if !creds.Complete() {
		return nil, &domain.AccountingError{Kind: domain.ErrMissingCredentials}
	}

	c.logger.Info("Calling accounting API: create invoice",
		zap.String("realm_id", creds.RealmID),
		zap.String("customer_ref", payload.CustomerRef.Value),
		zap.Int("lines", len(payload.Line)),
		zap.Float64("total_amt", payload.TotalAmt),
	)

	resp, err := c.request(ctx, creds).
		SetHeader("Content-Type", "application/json").
		SetBody(payload).
		Post("/v3/company/{realmId}/invoice")
	if err != nil {
		c.logger.Error("Accounting API call failed", zap.String("op", "create_invoice"), zap.Error(err))
		return nil, &domain.AccountingError{Kind: domain.ErrTransport, Err: err}
	}
	return c.decodeInvoice("create_invoice", resp)
}

// SendEmail 发送发票邮件；与 Submit 相互独立，失败不影响已创建的发票
func (c *AccountingClient) SendEmail(ctx context.Context, invoiceID, address string, creds domain.AccountingCredentials) (*domain.Invoice, error) {
	if !creds.Complete() {
		return nil, &domain.AccountingError{Kind: domain.ErrMissingCredentials}
	}
	if invoiceID == "" {
		return nil, domain.NewValidationError("invoice_id", "invoice_id is required")
	}

	c.logger.Info("Calling accounting API: send invoice",
		zap.String("realm_id", creds.RealmID),
		zap.String("invoice_id", invoiceID),
	)

	req := c.request(ctx, creds).
		SetHeader("Content-Type", "application/octet-stream").
		SetPathParam("invoiceId", invoiceID)
	if address != "" {
		req.SetQueryParam("sendTo", address)
	}
	resp, err := req.Post("/v3/company/{realmId}/invoice/{invoiceId}/send")
	if err != nil {
		c.logger.Error("Accounting API call failed", zap.String("op", "send_invoice"), zap.Error(err))
		return nil, &domain.AccountingError{Kind: domain.ErrTransport, Err: err}
	}
	return c.decodeInvoice("send_invoice", resp)
}

func (c *AccountingClient) request(ctx context.Context, creds domain.AccountingCredentials) *resty.Request {
	req := c.httpClient.R().
		SetContext(ctx).
		SetAuthToken(creds.AccessToken).
		SetPathParam("realmId", creds.RealmID)
	if c.minorVersion != "" {
		req.SetQueryParam("minorversion", c.minorVersion)
	}
	return req
}

// decodeInvoice 响应 -> 发票 / 错误分类
//   - body 不是 JSON:                 MalformedResponse
//   - 非 2xx 或包含 Fault:            APIRejection(第一条错误信息)
//   - 2xx 但没有 Invoice 对象:        MalformedResponse
func (c *AccountingClient) decodeInvoice(op string, resp *resty.Response) (*domain.Invoice, error) {
	body := resp.Body()
	status := resp.StatusCode()

	if !gjson.ValidBytes(body) {
		c.logger.Error("Accounting API returned unparseable body",
			zap.String("op", op),
			zap.Int("status_code", status),
			zap.Int("body_bytes", len(body)),
		)
		return nil, &domain.AccountingError{
			Kind:       domain.ErrMalformedResponse,
			Message:    fmt.Sprintf("unparseable response (HTTP %d)", status),
			StatusCode: status,
		}
	}

	fault := gjson.GetBytes(body, "Fault")
	if !fault.Exists() {
		fault = gjson.GetBytes(body, "fault")
	}
	if !resp.IsSuccess() || fault.Exists() {
		msg := firstFaultMessage(body)
		if msg == "" {
			msg = fmt.Sprintf("HTTP %d %s", status, http.StatusText(status))
		}
		c.logger.Error("Accounting API rejected request",
			zap.String("op", op),
			zap.Int("status_code", status),
			zap.String("message", msg),
		)
		return nil, &domain.AccountingError{Kind: domain.ErrAPIRejection, Message: msg, StatusCode: status}
	}

	raw := gjson.GetBytes(body, "Invoice")
	if !raw.IsObject() {
		return nil, &domain.AccountingError{
			Kind:       domain.ErrMalformedResponse,
			Message:    "response has no Invoice object",
			StatusCode: status,
		}
	}
	var invoice domain.Invoice
	if err := json.Unmarshal([]byte(raw.Raw), &invoice); err != nil || invoice.ID == "" {
		return nil, &domain.AccountingError{
			Kind:       domain.ErrMalformedResponse,
			Message:    "invoice object missing Id",
			StatusCode: status,
			Err:        err,
		}
	}

	c.logger.Info("Accounting API call succeeded",
		zap.String("op", op),
		zap.String("invoice_id", invoice.ID),
		zap.String("doc_number", invoice.DocNumber),
	)
	return &invoice, nil
}

func firstFaultMessage(body []byte) string {
	for _, p := range faultMessagePaths {
		if v := gjson.GetBytes(body, p); v.Exists() && v.String() != "" {
			return v.String()
		}
	}
	return ""
}
