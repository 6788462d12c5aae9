package httpapi

import (
	"net/http"

	"go.uber.org/zap"
)

// Router 使用标准库 http.ServeMux（方法 + 路径通配符）
type Router struct {
	mux    *http.ServeMux
	logger *zap.Logger
}

func NewRouter(logger *zap.Logger) *Router {
	return &Router{
		mux:    http.NewServeMux(),
		logger: logger,
	}
}

func (r *Router) Handle(pattern string, h http.HandlerFunc) {
	r.mux.HandleFunc(pattern, h)
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

// RegisterHealthRoutes 健康检查
func (r *Router) RegisterHealthRoutes() {
	r.Handle("GET /health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, Ok(map[string]string{"status": "ok"}))
	})
}

// RegisterRemediationRoutes 编辑会话（工作副本）相关路由
func (r *Router) RegisterRemediationRoutes(h *RemediationHandler) {
	const base = "/remediation/api/v1"

	r.Handle("GET "+base+"/room-presets", h.ListRoomPresets)

	r.Handle("POST "+base+"/sessions", h.OpenSession)
	r.Handle("GET "+base+"/sessions/{sessionId}", h.GetSession)
	r.Handle("DELETE "+base+"/sessions/{sessionId}", h.CloseSession)
	r.Handle("POST "+base+"/sessions/{sessionId}/save", h.Save)
	r.Handle("GET "+base+"/sessions/{sessionId}/catalog", h.SearchCatalog)

	// rooms
	r.Handle("POST "+base+"/sessions/{sessionId}/rooms", h.AddRoom)
	r.Handle("DELETE "+base+"/sessions/{sessionId}/rooms/{roomId}", h.DeleteRoom)
	r.Handle("PUT "+base+"/sessions/{sessionId}/rooms/{roomId}/notes", h.SetNotes)
	r.Handle("PUT "+base+"/sessions/{sessionId}/rooms/{roomId}/fans", h.SetNumberOfFans)

	// measurements
	r.Handle("POST "+base+"/sessions/{sessionId}/rooms/{roomId}/measurements", h.AddMeasurement)
	r.Handle("PUT "+base+"/sessions/{sessionId}/rooms/{roomId}/measurements/{measurementId}", h.UpdateMeasurement)
	r.Handle("PUT "+base+"/sessions/{sessionId}/rooms/{roomId}/measurements/{measurementId}/catalog-item", h.ApplyCatalogItem)
	r.Handle("DELETE "+base+"/sessions/{sessionId}/rooms/{roomId}/measurements/{measurementId}", h.DeleteMeasurement)

	// photos
	r.Handle("POST "+base+"/sessions/{sessionId}/rooms/{roomId}/photos", h.UploadPhotos)
	r.Handle("DELETE "+base+"/sessions/{sessionId}/rooms/{roomId}/photos", h.RemovePhoto)
}

// RegisterInvoiceRoutes 开票相关路由
func (r *Router) RegisterInvoiceRoutes(h *InvoiceHandler) {
	const base = "/invoice/api/v1"

	r.Handle("POST "+base+"/jobs/{jobId}/preview", h.Preview)
	r.Handle("POST "+base+"/jobs/{jobId}/export", h.Export)
	r.Handle("POST "+base+"/jobs/{jobId}/submit", h.Submit)
	r.Handle("POST "+base+"/invoices/{invoiceId}/send", h.SendEmail)
}
