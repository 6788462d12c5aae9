package domain

// Photo 房间照片（上传成功后由存储返回 storagePath / downloadURL）
type Photo struct {
	StoragePath string `json:"storagePath"`
	DownloadURL string `json:"downloadURL"`
	Label       string `json:"label,omitempty"`
}
