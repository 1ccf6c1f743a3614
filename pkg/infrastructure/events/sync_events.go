package events

const (
	PodSyncedEvent      = "pod.synced"
	SyncCompletedEvent  = "sync.completed"
	PodCreatedEvent     = "pod.created"
	FeedReconciledEvent = "feed.reconciled"
)

// SyncStream is the stream that carries batch-level synchronization events
const SyncStream = "sync"

type PodSynced struct {
	Barcode        string `json:"podBarcode"`
	ItemsSynced    int    `json:"itemsSynced"`
	BinsProcessed  int    `json:"binsProcessed"`
	FacesProcessed int    `json:"facesProcessed"`
	Version        int64  `json:"version"`
}

type SyncCompleted struct {
	RunID            string `json:"runId"`
	TotalPods        int    `json:"totalPods"`
	TotalItemsSynced int    `json:"totalItemsSynced"`
	TotalErrors      int    `json:"totalErrors"`
}

type PodCreated struct {
	Barcode string `json:"podBarcode"`
	PodType string `json:"podType"`
	Bins    int    `json:"bins"`
}

type FeedReconciled struct {
	Processed int `json:"processed"`
	Skipped   int `json:"skipped"`
	Inserted  int `json:"inserted"`
	Updated   int `json:"updated"`
}
