package entity

type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

type Job struct {
	ID               int64  `json:"id"`
	Title            string `json:"title"`
	Type             string `json:"type"`
	AssignedWorkerID *int64 `json:"assigned_worker_id,omitempty"`
	Location         LatLng `json:"location"`
}

// JobMode is the per-job edit mode: viewing -> editing -> viewing.
type JobMode string

const (
	ModeViewing JobMode = "viewing"
	ModeEditing JobMode = "editing"
)
