package models

import "mime/multipart"

// UploadForm binds the multipart body of POST /upload.
type UploadForm struct {
	Files        []*multipart.FileHeader `form:"files[]"`
	OutputFormat string                  `form:"output_format,default=obj"`
}

type ConvertedFile struct {
	OriginalName  string `json:"original_name"`
	ConvertedName string `json:"converted_name"`
	DownloadURL   string `json:"download_url"`
}

type UploadResponse struct {
	Success        bool            `json:"success"`
	ConvertedFiles []ConvertedFile `json:"converted_files"`
	Errors         []string        `json:"errors"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

type CleanupResponse struct {
	Success      bool   `json:"success"`
	Message      string `json:"message"`
	RemovedFiles int    `json:"removed_files"`
}

type HealthResponse struct {
	Status               string  `json:"status"`
	Service              string  `json:"service"`
	MeshLibraryAvailable bool    `json:"mesh_library_available"`
	MemoryUsageMB        float64 `json:"memory_usage_mb"`
	MemoryPercent        float64 `json:"memory_percent"`
}
