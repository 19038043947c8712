package relay

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"

	"botrelay/internal/chat"
	"botrelay/internal/config"
)

// Transfer persists confirmed terminal payloads to local storage. The
// whole payload is buffered in memory via bounded-parallelism ranged
// fetches, then written in one pass; the write goes to a .part file that
// is renamed into place, so the HTTP layer never sees a partial file.
type Transfer struct {
	client    *http.Client
	dir       string
	workers   int
	chunkSize int64
}

func NewTransfer(dir string) *Transfer {
	return &Transfer{
		client:    &http.Client{Timeout: config.PayloadTimeout},
		dir:       dir,
		workers:   config.TransferWorkers,
		chunkSize: config.TransferChunkSize,
	}
}

// Fetch downloads a payload and saves it. Any error leaves no file
// behind.
func (t *Transfer) Fetch(ctx context.Context, media *chat.MediaPayload) (*SavedFile, error) {
	data, err := t.fetch(ctx, media.URL)
	if err != nil {
		return nil, err
	}

	name := FileName(media.Kind, media.MIME, time.Now())
	partPath := filepath.Join(t.dir, name+".part")
	finalPath := filepath.Join(t.dir, name)

	if err := os.WriteFile(partPath, data, 0644); err != nil {
		os.Remove(partPath)
		return nil, fmt.Errorf("write payload: %w", err)
	}
	if err := os.Rename(partPath, finalPath); err != nil {
		os.Remove(partPath)
		return nil, fmt.Errorf("finalize payload: %w", err)
	}

	log.Printf("[Transfer] Saved %s (%d bytes)", name, len(data))
	return &SavedFile{
		Path: finalPath,
		Name: name,
		Size: int64(len(data)),
		Kind: media.Kind,
		MIME: media.MIME,
	}, nil
}

func (t *Transfer) fetch(ctx context.Context, url string) ([]byte, error) {
	size, ranged, err := t.probe(ctx, url)
	if err != nil {
		return nil, err
	}
	if !ranged || size <= t.chunkSize {
		return t.fetchSingle(ctx, url)
	}
	return t.fetchChunked(ctx, url, size)
}

// probe asks the origin for the payload size and range support.
func (t *Transfer) probe(ctx context.Context, url string) (int64, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return 0, false, err
	}
	resp, err := t.client.Do(req)
	if err != nil {
		return 0, false, err
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return 0, false, nil
	}
	ranged := resp.Header.Get("Accept-Ranges") == "bytes"
	return resp.ContentLength, ranged && resp.ContentLength > 0, nil
}

func (t *Transfer) fetchSingle(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := t.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("payload fetch failed: HTTP %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

func (t *Transfer) fetchChunked(ctx context.Context, url string, size int64) ([]byte, error) {
	buf := make([]byte, size)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(t.workers)
	for off := int64(0); off < size; off += t.chunkSize {
		start := off
		end := start + t.chunkSize - 1
		if end >= size {
			end = size - 1
		}
		g.Go(func() error {
			return t.fetchRange(ctx, url, buf[start:end+1], start, end)
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return buf, nil
}

func (t *Transfer) fetchRange(ctx context.Context, url string, dst []byte, start, end int64) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Range", fmt.Sprintf("bytes=%d-%d", start, end))
	resp, err := t.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusPartialContent {
		return fmt.Errorf("range fetch failed: HTTP %d", resp.StatusCode)
	}
	if _, err := io.ReadFull(resp.Body, dst); err != nil {
		return fmt.Errorf("range %d-%d: %w", start, end, err)
	}
	return nil
}

var kindDefaultExts = map[chat.PayloadKind]string{
	chat.KindVideo: "mp4",
	chat.KindAudio: "mp3",
	chat.KindImage: "jpg",
}

// FileName builds the deterministic kind-plus-issue-time name, with the
// extension looked up from the MIME tables and a sane per-kind default.
func FileName(kind chat.PayloadKind, mimeType string, ts time.Time) string {
	ext := kindDefaultExts[kind]
	var table map[string]string
	switch kind {
	case chat.KindVideo:
		table = config.VideoExts
	case chat.KindAudio:
		table = config.AudioExts
	case chat.KindImage:
		table = config.ImageExts
	}
	if e, ok := table[mimeType]; ok {
		ext = e
	}
	return fmt.Sprintf("%s-%s.%s", kind, ts.Format("20060102-150405"), ext)
}
