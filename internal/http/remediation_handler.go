package httpapi

import (
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"remediation-engine/internal/domain"
	"remediation-engine/internal/service"

	"go.uber.org/zap"
)

// RemediationHandler 编辑会话 API
type RemediationHandler struct {
	svc            *service.RemediationService
	maxUploadBytes int64
	logger         *zap.Logger
}

func NewRemediationHandler(svc *service.RemediationService, maxUploadBytes int64, logger *zap.Logger) *RemediationHandler {
	if maxUploadBytes <= 0 {
		maxUploadBytes = 32 << 20
	}
	return &RemediationHandler{svc: svc, maxUploadBytes: maxUploadBytes, logger: logger}
}

// GET /remediation/api/v1/room-presets
func (h *RemediationHandler) ListRoomPresets(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, Ok(domain.PresetRoomNames))
}

// POST /remediation/api/v1/sessions
// body: { job_id }
func (h *RemediationHandler) OpenSession(w http.ResponseWriter, r *http.Request) {
	var body struct {
		JobID string `json:"job_id"`
	}
	if err := readBodyJSON(r, maxJSONBody, &body); err != nil {
		writeJSON(w, http.StatusBadRequest, Fail("invalid body"))
		return
	}
	if strings.TrimSpace(body.JobID) == "" {
		writeJSON(w, http.StatusBadRequest, Fail("job_id is required"))
		return
	}
	view, err := h.svc.Open(r.Context(), body.JobID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, Ok(view))
}

// GET /remediation/api/v1/sessions/{sessionId}
func (h *RemediationHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	view, err := h.svc.Get(r.PathValue("sessionId"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(view))
}

// DELETE /remediation/api/v1/sessions/{sessionId}
func (h *RemediationHandler) CloseSession(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Close(r.PathValue("sessionId")); err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok[any](nil))
}

// POST /remediation/api/v1/sessions/{sessionId}/rooms
// body: { preset?, custom? }
func (h *RemediationHandler) AddRoom(w http.ResponseWriter, r *http.Request) {
	var hint domain.RoomNameHint
	if err := readBodyJSON(r, maxJSONBody, &hint); err != nil {
		writeJSON(w, http.StatusBadRequest, Fail("invalid body"))
		return
	}
	var room domain.Room
	view, err := h.svc.Edit(r.PathValue("sessionId"), func(wc *service.WorkingCopy) error {
		room = wc.AddRoom(hint)
		return nil
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, Ok(map[string]any{"room": room, "session": view}))
}

// DELETE /remediation/api/v1/sessions/{sessionId}/rooms/{roomId}
func (h *RemediationHandler) DeleteRoom(w http.ResponseWriter, r *http.Request) {
	roomID := r.PathValue("roomId")
	h.edit(w, r, func(wc *service.WorkingCopy) error {
		return wc.DeleteRoom(roomID)
	})
}

// PUT /remediation/api/v1/sessions/{sessionId}/rooms/{roomId}/notes
// body: { notes }
func (h *RemediationHandler) SetNotes(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Notes string `json:"notes"`
	}
	if err := readBodyJSON(r, maxJSONBody, &body); err != nil {
		writeJSON(w, http.StatusBadRequest, Fail("invalid body"))
		return
	}
	roomID := r.PathValue("roomId")
	h.edit(w, r, func(wc *service.WorkingCopy) error {
		return wc.SetNotes(roomID, body.Notes)
	})
}

// PUT /remediation/api/v1/sessions/{sessionId}/rooms/{roomId}/fans
// body: { value } 原始输入（字符串或数字）
func (h *RemediationHandler) SetNumberOfFans(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Value json.RawMessage `json:"value"`
	}
	if err := readBodyJSON(r, maxJSONBody, &body); err != nil {
		writeJSON(w, http.StatusBadRequest, Fail("invalid body"))
		return
	}
	roomID := r.PathValue("roomId")
	raw := rawInput(body.Value)
	h.edit(w, r, func(wc *service.WorkingCopy) error {
		return wc.SetNumberOfFans(roomID, raw)
	})
}

// POST /remediation/api/v1/sessions/{sessionId}/rooms/{roomId}/measurements
func (h *RemediationHandler) AddMeasurement(w http.ResponseWriter, r *http.Request) {
	roomID := r.PathValue("roomId")
	var id string
	view, err := h.svc.Edit(r.PathValue("sessionId"), func(wc *service.WorkingCopy) error {
		var err error
		id, err = wc.AddMeasurement(roomID)
		return err
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, Ok(map[string]any{"measurement_id": id, "session": view}))
}

// PUT /remediation/api/v1/sessions/{sessionId}/rooms/{roomId}/measurements/{measurementId}
// body: { field, value }
func (h *RemediationHandler) UpdateMeasurement(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Field string          `json:"field"`
		Value json.RawMessage `json:"value"`
	}
	if err := readBodyJSON(r, maxJSONBody, &body); err != nil {
		writeJSON(w, http.StatusBadRequest, Fail("invalid body"))
		return
	}
	roomID, measurementID := r.PathValue("roomId"), r.PathValue("measurementId")
	value := rawInput(body.Value)
	h.edit(w, r, func(wc *service.WorkingCopy) error {
		return wc.UpdateMeasurementField(roomID, measurementID, service.MeasurementField(body.Field), value)
	})
}

// PUT /remediation/api/v1/sessions/{sessionId}/rooms/{roomId}/measurements/{measurementId}/catalog-item
// body: { item_id }
func (h *RemediationHandler) ApplyCatalogItem(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ItemID string `json:"item_id"`
	}
	if err := readBodyJSON(r, maxJSONBody, &body); err != nil {
		writeJSON(w, http.StatusBadRequest, Fail("invalid body"))
		return
	}
	view, err := h.svc.ApplyCatalogItem(r.Context(), r.PathValue("sessionId"), r.PathValue("roomId"), r.PathValue("measurementId"), body.ItemID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(view))
}

// DELETE /remediation/api/v1/sessions/{sessionId}/rooms/{roomId}/measurements/{measurementId}
func (h *RemediationHandler) DeleteMeasurement(w http.ResponseWriter, r *http.Request) {
	roomID, measurementID := r.PathValue("roomId"), r.PathValue("measurementId")
	h.edit(w, r, func(wc *service.WorkingCopy) error {
		return wc.DeleteMeasurement(roomID, measurementID)
	})
}

// POST /remediation/api/v1/sessions/{sessionId}/rooms/{roomId}/photos
// multipart: photos (多个文件), label?
func (h *RemediationHandler) UploadPhotos(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	if err := r.ParseMultipartForm(h.maxUploadBytes); err != nil {
		writeJSON(w, http.StatusBadRequest, Fail("invalid multipart body"))
		return
	}
	defer r.MultipartForm.RemoveAll()

	label := r.FormValue("label")
	headers := r.MultipartForm.File["photos"]
	files := make([]service.PhotoUpload, 0, len(headers))
	for _, fh := range headers {
		data, err := readFormFile(fh)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, Fail(fmt.Sprintf("failed to read %s", fh.Filename)))
			return
		}
		files = append(files, service.PhotoUpload{
			Filename:    fh.Filename,
			ContentType: fh.Header.Get("Content-Type"),
			Label:       label,
			Data:        data,
		})
	}

	view, err := h.svc.UploadPhotos(r.Context(), r.PathValue("sessionId"), r.PathValue("roomId"), files)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(view))
}

// DELETE /remediation/api/v1/sessions/{sessionId}/rooms/{roomId}/photos?path=
func (h *RemediationHandler) RemovePhoto(w http.ResponseWriter, r *http.Request) {
	roomID := r.PathValue("roomId")
	storagePath := r.URL.Query().Get("path")
	if storagePath == "" {
		writeJSON(w, http.StatusBadRequest, Fail("path is required"))
		return
	}
	h.edit(w, r, func(wc *service.WorkingCopy) error {
		return wc.RemovePhoto(roomID, storagePath)
	})
}

// GET /remediation/api/v1/sessions/{sessionId}/catalog?q=
func (h *RemediationHandler) SearchCatalog(w http.ResponseWriter, r *http.Request) {
	items, err := h.svc.SearchCatalog(r.Context(), r.PathValue("sessionId"), r.URL.Query().Get("q"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(items))
}

// POST /remediation/api/v1/sessions/{sessionId}/save
// body: { complete } 或 ?complete=true
func (h *RemediationHandler) Save(w http.ResponseWriter, r *http.Request) {
	body := struct {
		Complete bool `json:"complete"`
	}{Complete: parseBool(r.URL.Query().Get("complete"), false)}
	if err := readBodyJSON(r, maxJSONBody, &body); err != nil {
		writeJSON(w, http.StatusBadRequest, Fail("invalid body"))
		return
	}
	res, err := h.svc.Save(r.Context(), r.PathValue("sessionId"), body.Complete)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(res))
}

// edit 执行一次工作副本编辑并返回最新会话视图
func (h *RemediationHandler) edit(w http.ResponseWriter, r *http.Request, fn func(wc *service.WorkingCopy) error) {
	view, err := h.svc.Edit(r.PathValue("sessionId"), fn)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(view))
}

func readFormFile(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}
