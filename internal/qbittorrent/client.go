// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package qbittorrent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	qbt "github.com/autobrr/go-qbittorrent"

	"github.com/autobrr/streambrr/internal/buildinfo"
)

// StatusError reports a non-2xx response from the torrent Web API. The
// status code is preserved so callers can distinguish, say, a 404 from a
// refused request.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("qbittorrent api returned status %d: %s", e.Code, e.Body)
}

// ErrAddTorrentRejected means the add call returned a body other than the
// literal "Ok." acknowledgement.
var ErrAddTorrentRejected = errors.New("qbittorrent did not accept the torrent")

// Client is a minimal wrapper over the Web API of the supervised
// qbittorrent-nox subprocess. The profile disables localhost auth, so there
// is no login round-trip. The WebUI port changes across respawns, which is
// why every call takes the current port.
type Client struct {
	httpClient *http.Client
	userAgent  string
}

func NewClient() *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		userAgent:  buildinfo.UserAgent,
	}
}

// AddTorrent submits a torrent URL or magnet link under the given category.
func (c *Client) AddTorrent(ctx context.Context, port int, uri, category string) error {
	form := url.Values{}
	form.Set("urls", uri)
	form.Set("category", category)
	form.Set("root_folder", "true")

	body, err := c.postForm(ctx, port, "add", form)
	if err != nil {
		return err
	}
	if body != "Ok." {
		return fmt.Errorf("%w: api returned body %q", ErrAddTorrentRejected, body)
	}
	return nil
}

// DeleteTorrent removes a torrent together with its downloaded files.
func (c *Client) DeleteTorrent(ctx context.Context, port int, hash string) error {
	form := url.Values{}
	form.Set("hashes", hash)
	form.Set("deleteFiles", "true")

	_, err := c.postForm(ctx, port, "delete", form)
	return err
}

// TorrentList fetches every torrent known to the subprocess.
func (c *Client) TorrentList(ctx context.Context, port int) ([]qbt.Torrent, error) {
	var torrents []qbt.Torrent
	if err := c.getJSON(ctx, port, "info", nil, &torrents); err != nil {
		return nil, err
	}
	return torrents, nil
}

// TorrentFiles fetches the file list of a single torrent.
func (c *Client) TorrentFiles(ctx context.Context, port int, hash string) (qbt.TorrentFiles, error) {
	query := url.Values{}
	query.Set("hash", hash)

	var files qbt.TorrentFiles
	if err := c.getJSON(ctx, port, "files", query, &files); err != nil {
		return nil, err
	}
	return files, nil
}

// CreateCategory registers a category. A category that already exists is
// not an error.
func (c *Client) CreateCategory(ctx context.Context, port int, category string) error {
	form := url.Values{}
	form.Set("category", category)

	_, err := c.postForm(ctx, port, "createCategory", form)

	var statusErr *StatusError
	if errors.As(err, &statusErr) && statusErr.Code == http.StatusConflict {
		// 409 means the category is already registered
		return nil
	}
	return err
}

// SetCategory moves an existing torrent into the given category.
func (c *Client) SetCategory(ctx context.Context, port int, hash, category string) error {
	form := url.Values{}
	form.Set("hashes", hash)
	form.Set("category", category)

	_, err := c.postForm(ctx, port, "setCategory", form)
	return err
}

func (c *Client) endpoint(port int, apiPath string) string {
	return fmt.Sprintf("http://127.0.0.1:%d/api/v2/torrents/%s", port, apiPath)
}

func (c *Client) postForm(ctx context.Context, port int, apiPath string, form url.Values) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(port, apiPath), strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("failed to build qbittorrent request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("qbittorrent api request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read qbittorrent response: %w", err)
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return "", &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	return string(body), nil
}

func (c *Client) getJSON(ctx context.Context, port int, apiPath string, query url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint(port, apiPath), nil)
	if err != nil {
		return fmt.Errorf("failed to build qbittorrent request: %w", err)
	}
	if len(query) > 0 {
		req.URL.RawQuery = query.Encode()
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("qbittorrent api request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read qbittorrent response: %w", err)
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to decode qbittorrent response: %w", err)
	}

	return nil
}
