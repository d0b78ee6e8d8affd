package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/paeinovis/RETRHO-administrative/config"
	"github.com/paeinovis/RETRHO-administrative/internal/sheet"
)

const (
	defaultFetchTimeout    = 30 * time.Second
	defaultMaxWorkbookSize = 10 * 1024 * 1024
)

var (
	ErrWorkbookTooLarge = errors.New("提交的表格超出大小限制")
	ErrLinkNotAllowed   = errors.New("表格链接不在允许的地址范围内")
)

// WorkbookFetcher 按提交中的链接取回目标表格
type WorkbookFetcher interface {
	Fetch(ctx context.Context, link string) (*sheet.Workbook, error)
}

// ── HTTP 获取 ──

// HTTPFetcher 通过 HTTPS 下载 xlsx，Google Sheets 链接改写为导出地址。
// 只访问 allowedHosts 中的主机（含重定向），以 "." 开头的条目按后缀匹配。
type HTTPFetcher struct {
	client       *http.Client
	maxSize      int64
	allowedHosts []string
}

// NewHTTPFetcher 创建 HTTP 表格获取器
func NewHTTPFetcher(cfg *config.IntakeConfig) *HTTPFetcher {
	timeout := cfg.FetchTimeout
	if timeout <= 0 {
		timeout = defaultFetchTimeout
	}
	maxSize := cfg.MaxWorkbookSize
	if maxSize <= 0 {
		maxSize = defaultMaxWorkbookSize
	}
	hosts := cfg.AllowedHosts
	if len(hosts) == 0 {
		hosts = config.DefaultAllowedHosts
	}

	f := &HTTPFetcher{maxSize: maxSize, allowedHosts: hosts}
	f.client = &http.Client{
		Timeout: timeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 5 {
				return errors.New("重定向次数过多")
			}
			return f.checkURL(req.URL)
		},
	}
	return f
}

// checkURL 仅放行 https 且主机在白名单内的地址
func (f *HTTPFetcher) checkURL(u *url.URL) error {
	if u.Scheme != "https" {
		return ErrLinkNotAllowed
	}
	host := strings.ToLower(u.Hostname())
	for _, allowed := range f.allowedHosts {
		allowed = strings.ToLower(allowed)
		if host == allowed || (strings.HasPrefix(allowed, ".") && strings.HasSuffix(host, allowed)) {
			return nil
		}
	}
	return ErrLinkNotAllowed
}

func (f *HTTPFetcher) Fetch(ctx context.Context, link string) (*sheet.Workbook, error) {
	target, err := url.Parse(ExportURL(link))
	if err != nil {
		return nil, fmt.Errorf("无效的表格链接: %w", err)
	}
	if err := f.checkURL(target); err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("无效的表格链接: %w", err)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("获取表格失败: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("获取表格失败: HTTP %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, f.maxSize+1))
	if err != nil {
		return nil, fmt.Errorf("读取表格失败: %w", err)
	}
	if int64(len(data)) > f.maxSize {
		return nil, ErrWorkbookTooLarge
	}
	return sheet.Open(bytes.NewReader(data))
}

var sheetIDPattern = regexp.MustCompile(`/spreadsheets/d/([A-Za-z0-9_-]+)`)

// ExportURL 将 Google Sheets / Drive 链接改写为 xlsx 导出地址，其他链接原样返回
func ExportURL(link string) string {
	id := ""
	if m := sheetIDPattern.FindStringSubmatch(link); m != nil {
		id = m[1]
	} else if u, err := url.Parse(link); err == nil && u.Host == "drive.google.com" {
		id = u.Query().Get("id")
	}
	if id == "" {
		return link
	}
	return "https://docs.google.com/spreadsheets/d/" + id + "/export?format=xlsx"
}

// ── 本地文件 ──

// FileFetcher 把链接当作本地 xlsx 路径打开（命令行导入使用）
type FileFetcher struct{}

func (FileFetcher) Fetch(_ context.Context, path string) (*sheet.Workbook, error) {
	return sheet.OpenFile(path)
}
