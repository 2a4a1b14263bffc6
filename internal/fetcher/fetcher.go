// Package fetcher opens the monthly licensing workbooks and corporate
// registry extracts from local paths, ZIP archives or HTTP URLs, and writes
// tables back out as XLSX or CSV.
package fetcher

import (
	"context"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Downloader fetches a remote file to a local path.
type Downloader interface {
	DownloadToFile(ctx context.Context, url string, path string) (int64, error)
}

// Locate turns an input location into a readable local table file. URLs
// are downloaded and ZIP archives are unpacked into a fresh subdirectory of
// workDir, so concurrent calls never share an output path. Local table
// files are returned unchanged.
func Locate(ctx context.Context, location, workDir string, dl Downloader) (string, error) {
	path := location
	isZIP := strings.EqualFold(filepath.Ext(location), ".zip")
	if !isURL(location) && !isZIP {
		return path, nil
	}

	dir, err := os.MkdirTemp(workDir, "input-*")
	if err != nil {
		return "", eris.Wrap(err, "fetcher: create input dir")
	}

	if isURL(location) {
		if dl == nil {
			return "", eris.Errorf("fetcher: no downloader for %s", location)
		}
		u, _ := url.Parse(location)
		name := filepath.Base(u.Path)
		if name == "" || name == "/" || name == "." {
			name = "download.xlsx"
		}
		path = filepath.Join(dir, name)
		n, err := dl.DownloadToFile(ctx, location, path)
		if err != nil {
			return "", eris.Wrapf(err, "fetcher: download %s", location)
		}
		zap.L().Info("fetcher: downloaded input",
			zap.String("url", location),
			zap.Int64("bytes", n),
		)
	}

	if strings.EqualFold(filepath.Ext(path), ".zip") {
		return ExtractTable(path, dir)
	}
	return path, nil
}

func isURL(s string) bool {
	u, err := url.Parse(s)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// ReadTable reads every row of an XLSX or CSV file, header first.
func ReadTable(path string) ([][]string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		return ReadXLSX(path, XLSXOptions{})
	case ".csv":
		return ReadCSV(path, CSVOptions{TrimSpace: true})
	default:
		return nil, eris.Errorf("fetcher: unsupported table format %q", filepath.Ext(path))
	}
}

// WriteTable writes header and rows to an XLSX or CSV file chosen by the
// path's extension. sheet names the worksheet for XLSX output.
func WriteTable(path, sheet string, header []string, rows [][]string) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		return WriteXLSX(path, sheet, header, rows)
	case ".csv":
		return WriteCSV(path, header, rows)
	default:
		return eris.Errorf("fetcher: unsupported table format %q", filepath.Ext(path))
	}
}
