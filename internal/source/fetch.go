package source

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"productprep/internal/metrics"
)

type fetchRequest struct {
	url      string
	dir      string
	name     string
	username string
	password string
	force    bool
}

var zipMagic = []byte("PK\x03\x04")

// fetch downloads req.url into req.dir/req.name and, when the body is a zip
// archive, extracts it into req.dir and removes the archive. A non-empty
// req.dir is reused as-is unless req.force is set.
func (l *Loader) fetch(ctx context.Context, req fetchRequest) error {
	if !req.force {
		if entries, err := os.ReadDir(req.dir); err == nil && len(entries) > 0 {
			l.Logger.Info("dataset cache hit", zap.String("dir", req.dir))
			return nil
		}
	}
	if req.force {
		if err := os.RemoveAll(req.dir); err != nil {
			return fmt.Errorf("source: clear cache %s: %w", req.dir, err)
		}
	}
	if err := os.MkdirAll(req.dir, 0o755); err != nil {
		return fmt.Errorf("source: create cache dir: %w", err)
	}

	dest := filepath.Join(req.dir, req.name)
	start := time.Now()
	n, status, err := l.download(ctx, req, dest)
	metrics.RecordHTTP(status, err, n)
	if err != nil {
		return err
	}
	l.Logger.Info("dataset downloaded",
		zap.String("url", redact(req.url)),
		zap.Int("status", status),
		zap.Int64("bytes", n),
		zap.Duration("took", time.Since(start).Truncate(time.Millisecond)),
	)

	isZip, err := hasPrefix(dest, zipMagic)
	if err != nil {
		return err
	}
	if !isZip {
		return nil
	}
	if err := extractZip(dest, req.dir); err != nil {
		return err
	}
	return os.Remove(dest)
}

func (l *Loader) download(ctx context.Context, req fetchRequest, dest string) (int64, int, error) {
	hreq, err := http.NewRequestWithContext(ctx, http.MethodGet, req.url, nil)
	if err != nil {
		return 0, 0, fmt.Errorf("source: build request: %w", err)
	}
	if req.username != "" || req.password != "" {
		hreq.SetBasicAuth(req.username, req.password)
	}
	hreq.Header.Set("User-Agent", "productprep/1")

	resp, err := l.Client.Do(hreq)
	if err != nil {
		return 0, 0, fmt.Errorf("source: GET %s: %w", redact(req.url), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		n, _ := io.Copy(io.Discard, resp.Body)
		return n, resp.StatusCode, fmt.Errorf("source: GET %s: unexpected status %s", redact(req.url), resp.Status)
	}

	n, err := writeBodyToFile(dest, resp.Body)
	if err != nil {
		return n, resp.StatusCode, fmt.Errorf("source: write %s: %w", dest, err)
	}
	return n, resp.StatusCode, nil
}

// writeBodyToFile streams r into a temp file next to outputPath and renames
// it into place, so an interrupted download never looks complete.
func writeBodyToFile(outputPath string, r io.Reader) (int64, error) {
	tmp, err := os.CreateTemp(filepath.Dir(outputPath), ".download-*")
	if err != nil {
		return 0, err
	}
	tmpName := tmp.Name()

	n, copyErr := io.Copy(tmp, r)
	closeErr := tmp.Close()
	if copyErr != nil {
		_ = os.Remove(tmpName)
		return n, copyErr
	}
	if closeErr != nil {
		_ = os.Remove(tmpName)
		return n, closeErr
	}
	if err := os.Rename(tmpName, outputPath); err != nil {
		_ = os.Remove(tmpName)
		return n, err
	}
	return n, nil
}

func hasPrefix(p string, prefix []byte) (bool, error) {
	f, err := os.Open(p)
	if err != nil {
		return false, err
	}
	defer f.Close()

	buf := make([]byte, len(prefix))
	if _, err := io.ReadFull(f, buf); err != nil {
		return false, nil
	}
	return bytes.Equal(buf, prefix), nil
}

// extractZip unpacks archive into dir. Entries that would escape dir are
// rejected.
func extractZip(archive, dir string) error {
	zr, err := zip.OpenReader(archive)
	if err != nil {
		return fmt.Errorf("source: open zip: %w", err)
	}
	defer zr.Close()

	root, err := filepath.Abs(dir)
	if err != nil {
		return err
	}
	for _, f := range zr.File {
		target := filepath.Join(root, filepath.FromSlash(f.Name))
		if target != root && !strings.HasPrefix(target, root+string(os.PathSeparator)) {
			return fmt.Errorf("source: zip entry %q escapes %s", f.Name, dir)
		}
		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return err
			}
			continue
		}
		if err := extractOne(f, target); err != nil {
			return fmt.Errorf("source: extract %s: %w", f.Name, err)
		}
	}
	return nil
}

func extractOne(f *zip.File, target string) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}
	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer rc.Close()
	_, err = writeBodyToFile(target, rc)
	return err
}

func fileNameFromURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "download"
	}
	base := path.Base(u.Path)
	if base == "" || base == "/" || base == "." {
		return "download"
	}
	return base
}

// redact drops credentials and the query string from a URL for logging.
func redact(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	u.User = nil
	u.RawQuery = ""
	return u.String()
}
