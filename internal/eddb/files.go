package eddb

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"elite-trader/internal/logger"
)

// DefaultBaseURL is where the nightly dumps were published.
const DefaultBaseURL = "https://eddb.io/archive/v5"

// Dump file names, relative to the data directory.
const (
	SystemsFile     = "systems_populated.json"
	StationsFile    = "stations.json"
	CommoditiesFile = "commodities.json"
	ListingsFile    = "listings.csv"
)

// DumpFiles lists every file an import reads.
var DumpFiles = []string{SystemsFile, StationsFile, CommoditiesFile, ListingsFile}

// EnsureFiles checks that every dump file exists in dir. Missing files are downloaded
// from baseURL when it is non-empty; otherwise they are reported as an error.
func EnsureFiles(ctx context.Context, client *http.Client, dir, baseURL string) error {
	if client == nil {
		client = http.DefaultClient
	}
	for _, name := range DumpFiles {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			continue
		} else if !os.IsNotExist(err) {
			return fmt.Errorf("stat %s: %w", path, err)
		}
		if baseURL == "" {
			return fmt.Errorf("missing dump file %s (run with -download to fetch it)", path)
		}
		logger.Info("EDDB", fmt.Sprintf("Downloading %s...", name))
		if err := downloadFile(ctx, client, path, baseURL+"/"+name); err != nil {
			return fmt.Errorf("download %s: %w", name, err)
		}
		logger.Success("EDDB", fmt.Sprintf("%s complete", name))
	}
	return nil
}

// downloadFile writes url to dst via a temporary file, so an interrupted download
// never leaves a truncated dump behind.
func downloadFile(ctx context.Context, client *http.Client, dst, url string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("HTTP %d", resp.StatusCode)
	}

	tmp := dst + ".new"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, resp.Body); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, dst)
}
