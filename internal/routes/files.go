package routes

import (
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"botrelay/internal/config"
)

func FileRoutes(r chi.Router) {
	r.Get("/downloads/{filename}", handleServeFile)
}

// extMIME inverts the config extension tables; the system mime registry
// does not reliably know media extensions.
var extMIME = map[string]string{}

func init() {
	for _, table := range []map[string]string{config.VideoExts, config.AudioExts, config.ImageExts} {
		for mt, ext := range table {
			if _, ok := extMIME[ext]; !ok {
				extMIME[ext] = mt
			}
		}
	}
}

func contentTypeFor(path string) string {
	ext := strings.TrimPrefix(filepath.Ext(path), ".")
	if mt, ok := extMIME[ext]; ok {
		return mt
	}
	if mt := mime.TypeByExtension(filepath.Ext(path)); mt != "" {
		return mt
	}
	return "application/octet-stream"
}

// handleServeFile re-serves persisted payloads with partial-content
// support. A `bytes=start-end` range yields a 206 with a matching
// Content-Range; no range yields the full file. ?dl=1 forces a download
// instead of inline playback.
func handleServeFile(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "filename")

	cleaned := filepath.Clean(filepath.Join(config.DownloadDir, name))
	if !strings.HasPrefix(cleaned, config.DownloadDir+string(os.PathSeparator)) {
		http.NotFound(w, r)
		return
	}

	f, err := os.Open(cleaned)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil || info.IsDir() {
		http.NotFound(w, r)
		return
	}
	size := info.Size()

	w.Header().Set("Content-Type", contentTypeFor(cleaned))
	w.Header().Set("Accept-Ranges", "bytes")

	disposition := "inline"
	if r.URL.Query().Get("dl") == "1" {
		disposition = "attachment"
	}
	w.Header().Set("Content-Disposition", fmt.Sprintf(`%s; filename="%s"`, disposition, filepath.Base(cleaned)))

	rangeHdr := r.Header.Get("Range")
	if rangeHdr == "" {
		w.Header().Set("Content-Length", strconv.FormatInt(size, 10))
		w.WriteHeader(200)
		io.Copy(w, f)
		return
	}

	start, end, ok := parseRange(rangeHdr, size)
	if !ok {
		w.Header().Set("Content-Range", fmt.Sprintf("bytes */%d", size))
		w.WriteHeader(416)
		return
	}

	w.Header().Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", start, end, size))
	w.Header().Set("Content-Length", strconv.FormatInt(end-start+1, 10))
	w.WriteHeader(206)
	if _, err := f.Seek(start, io.SeekStart); err != nil {
		return
	}
	io.CopyN(w, f, end-start+1)
}

// parseRange handles the single-range forms bytes=a-b, bytes=a-, and
// bytes=-n against a file of the given size.
func parseRange(header string, size int64) (start, end int64, ok bool) {
	rng, found := strings.CutPrefix(header, "bytes=")
	if !found || strings.Contains(rng, ",") {
		return 0, 0, false
	}

	left, right, found := strings.Cut(rng, "-")
	if !found {
		return 0, 0, false
	}
	left = strings.TrimSpace(left)
	right = strings.TrimSpace(right)

	if left == "" {
		// suffix form: last n bytes
		n, err := strconv.ParseInt(right, 10, 64)
		if err != nil || n <= 0 {
			return 0, 0, false
		}
		if n > size {
			n = size
		}
		return size - n, size - 1, true
	}

	start, err := strconv.ParseInt(left, 10, 64)
	if err != nil || start < 0 || start >= size {
		return 0, 0, false
	}

	if right == "" {
		return start, size - 1, true
	}
	end, err = strconv.ParseInt(right, 10, 64)
	if err != nil || end < start {
		return 0, 0, false
	}
	if end >= size {
		end = size - 1
	}
	return start, end, true
}
