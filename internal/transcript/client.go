// Package transcript 调用外部字幕接口，返回按时间排序的字幕片段。
package transcript

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"time"

	apperrors "github.com/Corphon/TubeDigest/internal/errors"
	"github.com/Corphon/TubeDigest/internal/models"
)

const (
	DefaultMaxBytes  = 10_000_000
	DefaultUserAgent = "TubeDigest/1.0"
)

// Client 字幕接口客户端
type Client struct {
	endpoint   string
	password   string
	httpClient *http.Client
	maxBytes   int64
}

// NewClient 创建客户端；timeout<=0 时不设置超时
func NewClient(endpoint, password string, timeout time.Duration) *Client {
	return &Client{
		endpoint:   endpoint,
		password:   password,
		httpClient: &http.Client{Timeout: timeout},
		maxBytes:   DefaultMaxBytes,
	}
}

// WithHTTPClient 替换底层 http.Client，测试中注入 httptest 客户端
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	if hc != nil {
		c.httpClient = hc
	}
	return c
}

type transcriptPayload struct {
	Transcript []struct {
		Text     string  `json:"text"`
		Start    float64 `json:"start"`
		Duration float64 `json:"duration"`
	} `json:"transcript"`
}

// Fetch 拉取字幕。不可达、非2xx、响应过大或 JSON 无法解析都返回 FetchError。
func (c *Client) Fetch(ctx context.Context, videoID string) (*models.Transcript, error) {
	u, err := url.Parse(c.endpoint)
	if err != nil {
		return nil, apperrors.NewFetchError("invalid transcript endpoint", err)
	}
	q := u.Query()
	q.Set("password", c.password)
	q.Set("video_id", videoID)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, apperrors.NewFetchError("build transcript request", err)
	}
	req.Header.Set("User-Agent", DefaultUserAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, apperrors.NewFetchError("transcript endpoint unreachable", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, apperrors.NewFetchError(fmt.Sprintf("transcript endpoint returned %s", resp.Status), nil)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBytes+1))
	if err != nil {
		return nil, apperrors.NewFetchError("read transcript body", err)
	}
	if int64(len(data)) > c.maxBytes {
		return nil, apperrors.NewFetchError(fmt.Sprintf("transcript body exceeds %d bytes", c.maxBytes), nil)
	}

	var payload transcriptPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, apperrors.NewFetchError("decode transcript", err)
	}

	fragments := make([]models.TranscriptFragment, 0, len(payload.Transcript))
	for _, item := range payload.Transcript {
		start := item.Start
		if start < 0 {
			start = 0
		}
		fragments = append(fragments, models.TranscriptFragment{
			Start:    start,
			Duration: item.Duration,
			Text:     item.Text,
		})
	}
	// 接口约定升序，这里再稳定排序一次
	sort.SliceStable(fragments, func(i, j int) bool {
		return fragments[i].Start < fragments[j].Start
	})

	return models.NewTranscript(videoID, fragments), nil
}
