package builtin

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"golang.org/x/net/html"
	"golang.org/x/net/html/charset"

	"github.com/maeum-ai/maeum/internal/tool"
)

const (
	webTimeout      = 15 * time.Second
	webMaxBody      = 2 << 20 // 2 MiB
	webMaxRunes     = 8000
	webUserAgent    = "Maeum/1.0 (Web Tool)"
	webMaxRedirects = 10
)

// webClient bounds every outbound request: explicit timeout plus a
// redirect limit, unlike http.DefaultClient.
var webClient = &http.Client{
	Timeout: webTimeout,
	CheckRedirect: func(req *http.Request, via []*http.Request) error {
		if len(via) >= webMaxRedirects {
			return fmt.Errorf("리다이렉트 횟수 초과 (%d)", webMaxRedirects)
		}
		return nil
	},
}

// WebSearchTool delegates a search query to the LLM backend's web
// endpoint; results come back as-is from the backend.
type WebSearchTool struct {
	backendURL string
	client     *http.Client
}

// NewWebSearchTool creates the web_search tool.
func NewWebSearchTool(backendURL string) *WebSearchTool {
	return &WebSearchTool{backendURL: strings.TrimRight(backendURL, "/"), client: webClient}
}

func (t *WebSearchTool) Name() string { return "web_search" }
func (t *WebSearchTool) Description() string {
	return "웹을 검색합니다. 최신 정보나 외부 문서가 필요할 때 사용하세요."
}
func (t *WebSearchTool) Kind() tool.Kind { return tool.KindReadOnly }

func (t *WebSearchTool) InputSchema() json.RawMessage {
	return tool.BuildSchema(
		tool.SchemaParam{Name: "query", Type: "string", Description: "검색어", Required: true},
		tool.SchemaParam{Name: "max_results", Type: "integer", Description: "최대 결과 수 (기본 5)"},
		tool.SchemaParam{Name: "search_type", Type: "string", Description: "검색 종류",
			Enum: []string{"general", "news", "code"}},
	)
}

func (t *WebSearchTool) Init(_ context.Context) error { return nil }
func (t *WebSearchTool) Close() error                 { return nil }

func (t *WebSearchTool) Execute(ctx context.Context, args json.RawMessage) (tool.Result, error) {
	var a struct {
		Query      string `json:"query"`
		MaxResults int    `json:"max_results"`
		SearchType string `json:"search_type"`
	}
	if err := json.Unmarshal(args, &a); err != nil {
		return tool.Failf("인자 파싱 실패: %v", err), nil
	}
	if strings.TrimSpace(a.Query) == "" {
		return tool.Failf("query가 비어 있습니다"), nil
	}
	if a.MaxResults <= 0 || a.MaxResults > 20 {
		a.MaxResults = 5
	}
	if a.SearchType == "" {
		a.SearchType = "general"
	}

	body, err := json.Marshal(map[string]any{
		"query":       a.Query,
		"max_results": a.MaxResults,
		"search_type": a.SearchType,
	})
	if err != nil {
		return tool.Failf("요청 직렬화 실패: %v", err), nil
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.backendURL+"/api/web/search", bytes.NewReader(body))
	if err != nil {
		return tool.Failf("요청 생성 실패: %v", err), nil
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return tool.Failf("웹 검색 백엔드에 연결할 수 없습니다: %v", err), nil
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, webMaxBody))
	if err != nil {
		return tool.Failf("응답 읽기 실패: %v", err), nil
	}
	if resp.StatusCode != http.StatusOK {
		return tool.Failf("웹 검색 실패: HTTP %d: %s", resp.StatusCode, truncateChars(string(raw), 300)), nil
	}

	var payload any
	if err := json.Unmarshal(raw, &payload); err != nil {
		payload = truncateChars(string(raw), webMaxRunes)
	}
	return tool.Ok(map[string]any{
		"query":   a.Query,
		"results": payload,
	}), nil
}

// WebFetchTool reads one web page through the reader service, falling
// back to a direct fetch with local HTML text extraction.
type WebFetchTool struct {
	readerURL string
	client    *http.Client
}

// NewWebFetchTool creates the web_fetch tool.
func NewWebFetchTool(readerURL string) *WebFetchTool {
	return &WebFetchTool{readerURL: strings.TrimRight(readerURL, "/"), client: webClient}
}

func (t *WebFetchTool) Name() string { return "web_fetch" }
func (t *WebFetchTool) Description() string {
	return "웹 페이지 본문을 가져옵니다. extract_code=true면 코드 블록만 추출합니다."
}
func (t *WebFetchTool) Kind() tool.Kind { return tool.KindReadOnly }

func (t *WebFetchTool) InputSchema() json.RawMessage {
	return tool.BuildSchema(
		tool.SchemaParam{Name: "url", Type: "string", Description: "가져올 페이지 URL (http:// 또는 https://)", Required: true},
		tool.SchemaParam{Name: "extract_code", Type: "boolean", Description: "코드 블록만 추출"},
	)
}

func (t *WebFetchTool) Init(_ context.Context) error { return nil }
func (t *WebFetchTool) Close() error                 { return nil }

func (t *WebFetchTool) Execute(ctx context.Context, args json.RawMessage) (tool.Result, error) {
	var a struct {
		URL         string `json:"url"`
		ExtractCode bool   `json:"extract_code"`
	}
	if err := json.Unmarshal(args, &a); err != nil {
		return tool.Failf("인자 파싱 실패: %v", err), nil
	}
	pageURL := strings.TrimSpace(a.URL)
	if !strings.HasPrefix(pageURL, "http://") && !strings.HasPrefix(pageURL, "https://") {
		return tool.Failf("URL은 http:// 또는 https://로 시작해야 합니다"), nil
	}

	title, content, source, err := t.fetch(ctx, pageURL)
	if err != nil {
		return tool.Failf("페이지를 가져올 수 없습니다: %v", err), nil
	}

	if a.ExtractCode {
		blocks := extractCodeBlocks(content)
		if len(blocks) == 0 {
			return tool.Failf("코드 블록을 찾을 수 없습니다"), nil
		}
		return tool.Ok(map[string]any{
			"url":         pageURL,
			"title":       title,
			"code_blocks": blocks,
			"count":       len(blocks),
			"source":      source,
		}), nil
	}

	if runes := []rune(content); len(runes) > webMaxRunes {
		content = string(runes[:webMaxRunes]) + "\n\n...(내용 잘림)"
	}
	return tool.Ok(map[string]any{
		"url":     pageURL,
		"title":   title,
		"content": content,
		"source":  source,
	}), nil
}

// fetch tries the reader service first, then falls back to fetching
// the page directly and extracting text locally.
func (t *WebFetchTool) fetch(ctx context.Context, pageURL string) (title, content, source string, err error) {
	if t.readerURL != "" {
		if body, rerr := t.get(ctx, t.readerURL+"/"+pageURL, "text/plain"); rerr == nil {
			return readerTitle(body), body, "reader", nil
		}
	}

	body, err := t.get(ctx, pageURL, "text/html,application/xhtml+xml")
	if err != nil {
		return "", "", "", err
	}
	title, content, err = extractPageText(strings.NewReader(body))
	if err != nil {
		return "", "", "", fmt.Errorf("본문 추출 실패: %w", err)
	}
	return title, content, "direct", nil
}

// get performs one bounded GET, transcoding the body to UTF-8 based on
// the Content-Type charset.
func (t *WebFetchTool) get(ctx context.Context, url, accept string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", webUserAgent)
	req.Header.Set("Accept", accept)

	resp, err := t.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("HTTP %d", resp.StatusCode)
	}

	limited := io.LimitReader(resp.Body, webMaxBody)
	utf8Reader, err := charset.NewReaderLabel(contentTypeCharset(resp.Header.Get("Content-Type")), limited)
	if err != nil {
		utf8Reader = limited
	}
	raw, err := io.ReadAll(utf8Reader)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

// readerTitle pulls the "Title:" line the reader service prepends, if
// present.
func readerTitle(body string) string {
	for _, line := range strings.SplitN(body, "\n", 5) {
		if rest, ok := strings.CutPrefix(line, "Title:"); ok {
			return strings.TrimSpace(rest)
		}
	}
	return ""
}

var fencedCodeRe = regexp.MustCompile("(?s)```[a-zA-Z0-9_+-]*\n(.*?)```")

// extractCodeBlocks pulls fenced code blocks out of markdown-ish text;
// when none exist, indented runs are not considered.
func extractCodeBlocks(text string) []string {
	var blocks []string
	for _, m := range fencedCodeRe.FindAllStringSubmatch(text, 20) {
		block := strings.TrimRight(m[1], "\n")
		if strings.TrimSpace(block) != "" {
			blocks = append(blocks, block)
		}
	}
	return blocks
}

// contentTypeCharset extracts the charset parameter of a Content-Type
// header; empty means UTF-8 to charset.NewReaderLabel.
func contentTypeCharset(contentType string) string {
	for _, part := range strings.Split(contentType, ";") {
		part = strings.ToLower(strings.TrimSpace(part))
		if rest, ok := strings.CutPrefix(part, "charset="); ok {
			return rest
		}
	}
	return ""
}

// skipTags are non-content elements dropped during text extraction.
var skipTags = map[string]bool{
	"script": true, "style": true, "noscript": true,
	"nav": true, "footer": true, "header": true,
	"aside": true, "iframe": true, "svg": true,
}

// extractPageText tokenizes HTML and collects the <title> plus visible
// body text, with newlines at block boundaries.
func extractPageText(r io.Reader) (title, content string, err error) {
	tokenizer := html.NewTokenizer(r)

	var sb strings.Builder
	var inTitle bool
	skipDepth := 0

	for {
		switch tokenizer.Next() {
		case html.ErrorToken:
			err := tokenizer.Err()
			result := collapseBlankLines(strings.TrimSpace(sb.String()))
			if err == io.EOF {
				return title, result, nil
			}
			return title, result, err

		case html.StartTagToken:
			tn, _ := tokenizer.TagName()
			tag := string(tn)
			if tag == "title" {
				inTitle = true
			}
			if skipTags[tag] {
				skipDepth++
			}
			if isBlockElement(tag) && sb.Len() > 0 && !strings.HasSuffix(sb.String(), "\n") {
				sb.WriteString("\n")
			}

		case html.EndTagToken:
			tn, _ := tokenizer.TagName()
			tag := string(tn)
			if tag == "title" {
				inTitle = false
			}
			if skipTags[tag] && skipDepth > 0 {
				skipDepth--
			}

		case html.TextToken:
			text := strings.TrimSpace(string(tokenizer.Text()))
			if text == "" {
				continue
			}
			if inTitle {
				if title == "" {
					title = text
				}
				continue
			}
			if skipDepth == 0 {
				sb.WriteString(text)
				sb.WriteString(" ")
			}
		}
	}
}

// collapseBlankLines reduces runs of blank lines down to one.
func collapseBlankLines(s string) string {
	var out []string
	blank := 0
	for _, line := range strings.Split(s, "\n") {
		if strings.TrimSpace(line) == "" {
			blank++
			if blank <= 1 {
				out = append(out, line)
			}
			continue
		}
		blank = 0
		out = append(out, line)
	}
	return strings.Join(out, "\n")
}

func isBlockElement(tag string) bool {
	switch tag {
	case "p", "div", "h1", "h2", "h3", "h4", "h5", "h6",
		"li", "tr", "br", "hr", "blockquote", "pre",
		"article", "section", "main",
		"table", "thead", "tbody", "tfoot":
		return true
	}
	return false
}
