// SPDX-License-Identifier: MIT
// Copyright (c) 2026 Henrik Olsson

package firmware

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const releaseURL = "https://api.github.com/repos/henols/firestarter/releases/latest"

// Release describes a published firmware release.
type Release struct {
	Tag    string
	Assets []ReleaseAsset
}

// ReleaseAsset is one downloadable file of a release.
type ReleaseAsset struct {
	Name        string
	DownloadURL string
	Size        int64
}

// Version returns the release version without the leading "v".
func (r *Release) Version() string {
	return strings.TrimPrefix(r.Tag, "v")
}

// Asset returns the hex image asset for the given board, or nil.
func (r *Release) Asset(board string) *ReleaseAsset {
	for i := range r.Assets {
		name := strings.ToLower(r.Assets[i].Name)
		if strings.Contains(name, board) && strings.HasSuffix(name, ".hex") {
			return &r.Assets[i]
		}
	}
	return nil
}

var httpClient = &http.Client{Timeout: 30 * time.Second}

// LatestRelease fetches the newest published firmware release.
func LatestRelease(ctx context.Context) (*Release, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, releaseURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching latest release: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetching latest release: %s", resp.Status)
	}

	var body struct {
		TagName string `json:"tag_name"`
		Assets  []struct {
			Name               string `json:"name"`
			BrowserDownloadURL string `json:"browser_download_url"`
			Size               int64  `json:"size"`
		} `json:"assets"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decoding release: %w", err)
	}

	rel := &Release{Tag: body.TagName}
	for _, a := range body.Assets {
		rel.Assets = append(rel.Assets, ReleaseAsset{
			Name:        a.Name,
			DownloadURL: a.BrowserDownloadURL,
			Size:        a.Size,
		})
	}
	return rel, nil
}

// Download fetches the asset into dir and returns the local path.
func Download(ctx context.Context, asset *ReleaseAsset, dir string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, asset.DownloadURL, nil)
	if err != nil {
		return "", err
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("downloading %s: %w", asset.Name, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("downloading %s: %s", asset.Name, resp.Status)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(dir, asset.Name)
	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(f, resp.Body); err != nil {
		f.Close()
		os.Remove(path)
		return "", fmt.Errorf("downloading %s: %w", asset.Name, err)
	}
	if err := f.Close(); err != nil {
		return "", err
	}
	return path, nil
}
