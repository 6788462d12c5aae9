package httpapi

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"remediation-engine/internal/domain"
	"remediation-engine/internal/service"

	"go.uber.org/zap"
)

const (
	headerAccountingToken = "X-Accounting-Token"
	headerAccountingRealm = "X-Accounting-Realm-Id"
	xlsxContentType       = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// InvoiceHandler 开票 API
// 凭证: 请求头优先，缺省时使用配置中的默认值
type InvoiceHandler struct {
	svc      *service.InvoiceService
	defaults domain.AccountingCredentials
	logger   *zap.Logger
}

func NewInvoiceHandler(svc *service.InvoiceService, defaults domain.AccountingCredentials, logger *zap.Logger) *InvoiceHandler {
	return &InvoiceHandler{svc: svc, defaults: defaults, logger: logger}
}

type invoiceRequest struct {
	Overrides domain.Overrides `json:"overrides"`
	TxnDate   string           `json:"txn_date"`   // YYYY-MM-DD，可选
	BillEmail string           `json:"bill_email"` // 可选
}

// POST /invoice/api/v1/jobs/{jobId}/preview
// body: { overrides? }
func (h *InvoiceHandler) Preview(w http.ResponseWriter, r *http.Request) {
	var body invoiceRequest
	if err := readBodyJSON(r, maxJSONBody, &body); err != nil {
		writeJSON(w, http.StatusBadRequest, Fail("invalid body"))
		return
	}
	preview, err := h.svc.Preview(r.Context(), r.PathValue("jobId"), body.Overrides)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(preview))
}

// POST /invoice/api/v1/jobs/{jobId}/export
// body: { overrides? }，返回 xlsx
func (h *InvoiceHandler) Export(w http.ResponseWriter, r *http.Request) {
	var body invoiceRequest
	if err := readBodyJSON(r, maxJSONBody, &body); err != nil {
		writeJSON(w, http.StatusBadRequest, Fail("invalid body"))
		return
	}
	jobID := r.PathValue("jobId")
	preview, err := h.svc.Preview(r.Context(), jobID, body.Overrides)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	data, err := GenerateInvoicePreviewExport(preview)
	if err != nil {
		h.logger.Error("Failed to generate invoice export", zap.String("job_id", jobID), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, Fail("failed to generate export"))
		return
	}
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="invoice-%s.xlsx"`, jobID))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// POST /invoice/api/v1/jobs/{jobId}/submit
// body: { overrides?, txn_date?, bill_email? }
// headers: X-Accounting-Token, X-Accounting-Realm-Id
func (h *InvoiceHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var body invoiceRequest
	if err := readBodyJSON(r, maxJSONBody, &body); err != nil {
		writeJSON(w, http.StatusBadRequest, Fail("invalid body"))
		return
	}
	var txnDate time.Time
	if body.TxnDate != "" {
		t, err := time.Parse("2006-01-02", body.TxnDate)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, Fail("txn_date must be YYYY-MM-DD"))
			return
		}
		txnDate = t
	}

	invoice, err := h.svc.Submit(r.Context(), service.SubmitInvoiceRequest{
		JobID:       r.PathValue("jobId"),
		Overrides:   body.Overrides,
		TxnDate:     txnDate,
		BillEmail:   strings.TrimSpace(body.BillEmail),
		Credentials: h.credentials(r),
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(invoice))
}

// POST /invoice/api/v1/invoices/{invoiceId}/send
// body: { send_to? }
func (h *InvoiceHandler) SendEmail(w http.ResponseWriter, r *http.Request) {
	var body struct {
		SendTo string `json:"send_to"`
	}
	if err := readBodyJSON(r, maxJSONBody, &body); err != nil {
		writeJSON(w, http.StatusBadRequest, Fail("invalid body"))
		return
	}
	invoice, err := h.svc.SendEmail(r.Context(), r.PathValue("invoiceId"), strings.TrimSpace(body.SendTo), h.credentials(r))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(invoice))
}

func (h *InvoiceHandler) credentials(r *http.Request) domain.AccountingCredentials {
	creds := h.defaults
	if v := strings.TrimSpace(r.Header.Get(headerAccountingToken)); v != "" {
		creds.AccessToken = v
	}
	if v := strings.TrimSpace(r.Header.Get(headerAccountingRealm)); v != "" {
		creds.RealmID = v
	}
	return creds
}
