package relay

import (
	"sync"
	"time"
)

// ProgressRecord is the pollable state of a background download-format
// request. Mutated by the classifier as progress edits arrive, retained
// briefly after completion so a final poll can observe the terminal
// state, then purged.
type ProgressRecord struct {
	mu       sync.Mutex
	percent  int
	status   string
	complete bool
	success  bool
	file     *SavedFile
	errMsg   string
}

// ProgressSnapshot is the JSON shape returned by the progress endpoint.
type ProgressSnapshot struct {
	Progress int    `json:"progress"`
	Status   string `json:"status"`
	Complete bool   `json:"complete"`
	Success  bool   `json:"success"`
	FileName string `json:"fileName,omitempty"`
	VideoURL string `json:"videoUrl,omitempty"`
	Error    string `json:"error,omitempty"`
}

func (p *ProgressRecord) snapshot() ProgressSnapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	snap := ProgressSnapshot{
		Progress: p.percent,
		Status:   p.status,
		Complete: p.complete,
		Success:  p.success,
		Error:    p.errMsg,
	}
	if p.file != nil {
		snap.FileName = p.file.Name
		snap.VideoURL = "/downloads/" + p.file.Name
	}
	return snap
}

// NewProgress creates a record for a request id.
func (c *Correlator) NewProgress(id string) {
	rec := &ProgressRecord{status: "waiting for bot"}
	c.muProgress.Lock()
	c.progress[id] = rec
	c.muProgress.Unlock()
}

// Progress returns a snapshot, or nil if the id is unknown or purged.
func (c *Correlator) Progress(id string) *ProgressSnapshot {
	c.muProgress.Lock()
	rec := c.progress[id]
	c.muProgress.Unlock()
	if rec == nil {
		return nil
	}
	snap := rec.snapshot()
	return &snap
}

// ApplyProgress broadcasts a percentage to every still-incomplete record.
// Progress texts from the bot carry nothing that would identify a single
// request, and only one download is in flight per deployment.
func (c *Correlator) ApplyProgress(percent int, status string) {
	c.muProgress.Lock()
	defer c.muProgress.Unlock()
	for _, rec := range c.progress {
		rec.mu.Lock()
		if !rec.complete {
			rec.percent = percent
			if status != "" {
				rec.status = status
			}
		}
		rec.mu.Unlock()
	}
}

// CompleteProgress marks a record terminal and schedules its purge.
func (c *Correlator) CompleteProgress(id string, success bool, file *SavedFile, errMsg string) {
	c.muProgress.Lock()
	rec := c.progress[id]
	c.muProgress.Unlock()
	if rec == nil {
		return
	}

	rec.mu.Lock()
	rec.complete = true
	rec.success = success
	rec.file = file
	rec.errMsg = errMsg
	if success {
		rec.percent = 100
		rec.status = "complete"
	} else {
		rec.status = "failed"
	}
	rec.mu.Unlock()

	time.AfterFunc(c.progressTTL, func() {
		c.muProgress.Lock()
		delete(c.progress, id)
		c.muProgress.Unlock()
	})
}
