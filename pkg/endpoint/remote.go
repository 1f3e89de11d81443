package endpoint

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"dbxmirror/pkg/retry"
)

const (
	defaultAPIURL     = "https://api.dropboxapi.com"
	defaultContentURL = "https://content.dropboxapi.com"
	dropboxTokenURL   = "https://api.dropboxapi.com/oauth2/token"
)

// DropboxConfig 对应 Dropbox 客户端的连接参数
type DropboxConfig struct {
	// AccessToken 为长期令牌；设置了 RefreshToken 时会自动换取短期令牌
	AccessToken  string
	RefreshToken string
	AppKey       string
	AppSecret    string
	Timeout      time.Duration
	RetryConfig  retry.Config
	// APIURL / ContentURL / TokenURL 可在测试中指向 httptest 服务
	APIURL     string
	ContentURL string
	TokenURL   string
}

// DropboxClient 通过 Dropbox HTTP API v2 实现 RemoteClient，可被多个 worker 并发使用
type DropboxClient struct {
	httpClient  *http.Client
	apiURL      string
	contentURL  string
	timeout     time.Duration
	retryConfig retry.Config
}

// APIError 表示 Dropbox 返回的非 2xx 响应
type APIError struct {
	Endpoint string
	Status   int
	Summary  string
}

func (e *APIError) Error() string {
	if e.Summary == "" {
		return fmt.Sprintf("dropbox %s: status %d", e.Endpoint, e.Status)
	}
	return fmt.Sprintf("dropbox %s: status %d: %s", e.Endpoint, e.Status, e.Summary)
}

// NewDropboxClient 创建客户端。ctx 用于刷新令牌的请求
func NewDropboxClient(ctx context.Context, cfg DropboxConfig) (*DropboxClient, error) {
	if cfg.AccessToken == "" && cfg.RefreshToken == "" {
		return nil, fmt.Errorf("dropbox 凭证为空")
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.RetryConfig.MaxAttempts == 0 {
		cfg.RetryConfig = retry.DefaultConfig()
	}
	if cfg.APIURL == "" {
		cfg.APIURL = defaultAPIURL
	}
	if cfg.ContentURL == "" {
		cfg.ContentURL = defaultContentURL
	}
	if cfg.TokenURL == "" {
		cfg.TokenURL = dropboxTokenURL
	}

	// Timeout 只约束建立连接与等待响应头；列举请求另由 context 限时，下载不限总时长
	base := &http.Client{
		Transport: &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout:   10 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			MaxIdleConns:          100,
			MaxIdleConnsPerHost:   16,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   10 * time.Second,
			ResponseHeaderTimeout: cfg.Timeout,
		},
	}
	ctx = context.WithValue(ctx, oauth2.HTTPClient, base)

	var src oauth2.TokenSource
	if cfg.RefreshToken != "" {
		oc := &oauth2.Config{
			ClientID:     cfg.AppKey,
			ClientSecret: cfg.AppSecret,
			Endpoint:     oauth2.Endpoint{TokenURL: cfg.TokenURL},
		}
		src = oc.TokenSource(ctx, &oauth2.Token{RefreshToken: cfg.RefreshToken})
	} else {
		src = oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.AccessToken, TokenType: "Bearer"})
	}
	return &DropboxClient{
		httpClient:  oauth2.NewClient(ctx, src),
		apiURL:      strings.TrimRight(cfg.APIURL, "/"),
		contentURL:  strings.TrimRight(cfg.ContentURL, "/"),
		timeout:     cfg.Timeout,
		retryConfig: cfg.RetryConfig,
	}, nil
}

type listFolderArg struct {
	Path string `json:"path"`
}

type listFolderContinueArg struct {
	Cursor string `json:"cursor"`
}

type listFolderResult struct {
	Entries []json.RawMessage `json:"entries"`
	Cursor  string            `json:"cursor"`
	HasMore bool              `json:"has_more"`
}

type entryMetadata struct {
	Tag       string `json:".tag"`
	ID        string `json:"id"`
	Name      string `json:"name"`
	PathLower string `json:"path_lower"`
	Size      int64  `json:"size"`
}

type apiErrorBody struct {
	Summary string `json:"error_summary"`
}

// ListFolder 列出 path 下的全部条目，自动跟随 has_more 分页
func (c *DropboxClient) ListFolder(ctx context.Context, path string) ([]Entry, error) {
	page, err := c.listPage(ctx, "/2/files/list_folder", listFolderArg{Path: path})
	if err != nil {
		return nil, err
	}
	entries, err := decodeEntries(page.Entries)
	if err != nil {
		return nil, err
	}
	for page.HasMore {
		page, err = c.listPage(ctx, "/2/files/list_folder/continue", listFolderContinueArg{Cursor: page.Cursor})
		if err != nil {
			return nil, err
		}
		more, err := decodeEntries(page.Entries)
		if err != nil {
			return nil, err
		}
		entries = append(entries, more...)
	}
	return entries, nil
}

func (c *DropboxClient) listPage(ctx context.Context, endpoint string, arg any) (listFolderResult, error) {
	body, err := json.Marshal(arg)
	if err != nil {
		return listFolderResult{}, err
	}
	return retry.Do(ctx, c.retryConfig, func() (listFolderResult, error) {
		reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
		defer cancel()
		req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, c.apiURL+endpoint, bytes.NewReader(body))
		if err != nil {
			return listFolderResult{}, err
		}
		req.Header.Set("Content-Type", "application/json")
		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return listFolderResult{}, ctx.Err()
			}
			return listFolderResult{}, retry.Retryable(err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return listFolderResult{}, classify(apiError(endpoint, resp), resp)
		}
		var page listFolderResult
		if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
			return listFolderResult{}, fmt.Errorf("decode %s response: %w", endpoint, err)
		}
		return page, nil
	})
}

// Download 下载完整文件内容到内存，单次请求，不重试。
// 超时只作用于等待响应头，响应体持续到达时不受总时长限制，仍可通过 ctx 取消
func (c *DropboxClient) Download(ctx context.Context, path string) ([]byte, error) {
	arg, err := headerSafeJSON(listFolderArg{Path: path})
	if err != nil {
		return nil, err
	}
	const endpoint = "/2/files/download"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.contentURL+endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Dropbox-API-Arg", arg)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, apiError(endpoint, resp)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s body: %w", path, err)
	}
	return data, nil
}

func decodeEntries(raws []json.RawMessage) ([]Entry, error) {
	entries := make([]Entry, 0, len(raws))
	for _, raw := range raws {
		var md entryMetadata
		if err := json.Unmarshal(raw, &md); err != nil {
			return nil, fmt.Errorf("decode entry: %w", err)
		}
		e := Entry{ID: md.ID, Name: md.Name, Path: md.PathLower}
		switch md.Tag {
		case "folder":
			e.Kind = KindFolder
		case "file":
			e.Kind = KindFile
			e.Size = md.Size
		default:
			e.Kind = KindUnknown
			e.Raw = append(json.RawMessage(nil), raw...)
		}
		entries = append(entries, e)
	}
	return entries, nil
}

func apiError(endpoint string, resp *http.Response) *APIError {
	apiErr := &APIError{Endpoint: endpoint, Status: resp.StatusCode}
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var body apiErrorBody
	if json.Unmarshal(data, &body) == nil && body.Summary != "" {
		apiErr.Summary = body.Summary
	} else {
		apiErr.Summary = strings.TrimSpace(string(data))
	}
	return apiErr
}

// classify 将限流与服务端错误标记为可重试
func classify(apiErr *APIError, resp *http.Response) error {
	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		var after time.Duration
		if secs, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil {
			after = time.Duration(secs) * time.Second
		}
		return retry.RetryableAfter(apiErr, after)
	case resp.StatusCode >= 500:
		return retry.Retryable(apiErr)
	default:
		return apiErr
	}
}

// headerSafeJSON 序列化 Dropbox-API-Arg，非 ASCII 字符必须转义为 \uXXXX
func headerSafeJSON(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	for _, r := range string(data) {
		switch {
		case r < 0x7f:
			b.WriteRune(r)
		case r > 0xffff:
			r -= 0x10000
			fmt.Fprintf(&b, `\u%04x\u%04x`, 0xd800+(r>>10), 0xdc00+(r&0x3ff))
		default:
			fmt.Fprintf(&b, `\u%04x`, r)
		}
	}
	return b.String(), nil
}
