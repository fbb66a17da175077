// Package source resolves the configured dataset source to a local CSV file.
//
// Three kinds are supported:
//   - file:   a local CSV, or a directory that contains the configured CSV name
//   - http:   a URL to a CSV or a zip archive, downloaded into the cache dir
//   - kaggle: a Kaggle dataset ("<owner>/<name>") fetched from the public API
//
// Downloads land in the cache directory and are reused on later runs unless
// Force is set. Nothing is retried: a failed download is returned to the
// caller.
package source

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"productprep/internal/config"
)

// ErrNotFound is returned when the dataset CSV cannot be located.
var ErrNotFound = errors.New("dataset file not found")

const defaultKaggleBaseURL = "https://www.kaggle.com/api/v1"

type Loader struct {
	Client *http.Client
	Logger *zap.Logger
}

// NewLoader returns a Loader whose HTTP client gives up after timeout.
func NewLoader(timeout time.Duration, logger *zap.Logger) *Loader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loader{
		Client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				Proxy:           http.ProxyFromEnvironment,
				IdleConnTimeout: 90 * time.Second,
			},
		},
		Logger: logger,
	}
}

// Resolve returns the path of the dataset CSV described by src.
func (l *Loader) Resolve(ctx context.Context, src config.Source) (string, error) {
	switch src.Kind {
	case "file":
		if src.File == nil || src.File.Path == "" {
			return "", fmt.Errorf("source: file.path is empty")
		}
		return l.resolveLocal(src.File.Path, src.CSVFile)

	case "http":
		if src.HTTP == nil || src.HTTP.URL == "" {
			return "", fmt.Errorf("source: http.url is empty")
		}
		dir := filepath.Join(src.CacheDir, "http", shortHash(src.HTTP.URL))
		if err := l.fetch(ctx, fetchRequest{
			url:   src.HTTP.URL,
			dir:   dir,
			name:  fileNameFromURL(src.HTTP.URL),
			force: src.Force,
		}); err != nil {
			return "", err
		}
		return l.resolveLocal(dir, src.CSVFile)

	case "kaggle":
		k := src.Kaggle
		if k == nil || k.Dataset == "" {
			return "", fmt.Errorf("source: kaggle.dataset is empty")
		}
		owner, name, ok := strings.Cut(k.Dataset, "/")
		if !ok || owner == "" || name == "" {
			return "", fmt.Errorf("source: kaggle.dataset %q must be <owner>/<name>", k.Dataset)
		}
		base := strings.TrimRight(k.BaseURL, "/")
		if base == "" {
			base = defaultKaggleBaseURL
		}
		user, key := k.Username, k.Key
		if user == "" {
			user = os.Getenv("KAGGLE_USERNAME")
		}
		if key == "" {
			key = os.Getenv("KAGGLE_KEY")
		}
		dir := filepath.Join(src.CacheDir, owner, name)
		if err := l.fetch(ctx, fetchRequest{
			url:      base + "/datasets/download/" + owner + "/" + name,
			dir:      dir,
			name:     name + ".zip",
			username: user,
			password: key,
			force:    src.Force,
		}); err != nil {
			return "", err
		}
		return l.resolveLocal(dir, src.CSVFile)

	default:
		return "", fmt.Errorf("source: unsupported kind %q", src.Kind)
	}
}

func (l *Loader) resolveLocal(path, csvFile string) (string, error) {
	fi, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("source: %s: %w", path, ErrNotFound)
		}
		return "", fmt.Errorf("source: %w", err)
	}
	if !fi.IsDir() {
		return path, nil
	}

	files, err := ListFiles(path)
	if err != nil {
		return "", err
	}
	l.Logger.Info("dataset directory resolved", zap.String("dir", path), zap.Strings("files", files))

	found, err := Locate(path, csvFile)
	if err != nil {
		return "", err
	}
	return found, nil
}

// Locate finds a file named name anywhere under dir. An empty name selects
// the first .csv file in lexical order.
func Locate(dir, name string) (string, error) {
	var matches []string
	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		base := d.Name()
		if name != "" && base == name {
			matches = append(matches, p)
		}
		if name == "" && strings.EqualFold(filepath.Ext(base), ".csv") {
			matches = append(matches, p)
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("source: walk %s: %w", dir, err)
	}
	if len(matches) == 0 {
		want := name
		if want == "" {
			want = "*.csv"
		}
		return "", fmt.Errorf("source: %s in %s: %w", want, dir, ErrNotFound)
	}
	sort.Strings(matches)
	return matches[0], nil
}

// ListFiles returns the paths of every regular file under dir, relative to
// dir and sorted.
func ListFiles(dir string) ([]string, error) {
	var out []string
	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}
		out = append(out, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("source: list %s: %w", dir, err)
	}
	sort.Strings(out)
	return out, nil
}

func shortHash(s string) string {
	h := sha1.Sum([]byte(s))
	return hex.EncodeToString(h[:])[:12]
}
