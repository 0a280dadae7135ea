package cloud

import (
	"os"
	"runtime"
	"time"

	"github.com/fieldpost/fieldpost/internal/models"
)

// Source identifies this collector class to the cloud
const Source = "raspberry_pi"

// SubmissionData is the data object inside the signed envelope.
type SubmissionData struct {
	Source       string          `json:"source"`
	SubmissionID int64           `json:"submission_id"`
	Timestamp    string          `json:"timestamp"`
	FormType     string          `json:"form_type"`
	Data         models.FormData `json:"data"`
	IPAddress    string          `json:"ip_address"`
	DeviceInfo   DeviceInfo      `json:"device_info"`
	Files        []FileMeta      `json:"files"`
}

// DeviceInfo describes the sending device.
type DeviceInfo struct {
	Hostname string `json:"hostname"`
	Platform string `json:"platform"`
}

// FileMeta is attachment metadata. Only the stored name, byte size and
// extension travel to the cloud; file bytes stay on the device.
type FileMeta struct {
	Name string `json:"name"`
	Size int64  `json:"size"`
	Type string `json:"type"`
}

// BuildPayload maps a stored submission to the cloud payload.
func BuildPayload(sub *models.Submission) SubmissionData {
	files := make([]FileMeta, 0, len(sub.Files))
	for _, f := range sub.Files {
		files = append(files, FileMeta{
			Name: f.StoredName,
			Size: f.SizeBytes,
			Type: f.Ext(),
		})
	}

	return SubmissionData{
		Source:       Source,
		SubmissionID: sub.ID,
		Timestamp:    sub.CreatedAt.UTC().Format(time.RFC3339),
		FormType:     sub.FormType,
		Data:         sub.Data,
		IPAddress:    sub.SourceIP,
		DeviceInfo:   LocalDeviceInfo(),
		Files:        files,
	}
}

// LocalDeviceInfo describes this device for sync payloads.
func LocalDeviceInfo() DeviceInfo {
	host, err := os.Hostname()
	if err != nil {
		host = "unknown"
	}
	return DeviceInfo{
		Hostname: host,
		Platform: runtime.GOOS + "/" + runtime.GOARCH,
	}
}
