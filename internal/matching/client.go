package matching

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"talent-mirror/internal/apperr"
	"talent-mirror/internal/logger"

	"go.uber.org/zap"
)

const (
	defaultTimeout = 60 * time.Second
	defaultBackoff = 500 * time.Millisecond
	maxLogBody     = 512
)

// Config 解析/匹配服务客户端配置。
type Config struct {
	BaseURL      string `yaml:"base_url" json:"base_url"`
	Timeout      string `yaml:"timeout" json:"timeout"`
	ReadRetries  int    `yaml:"read_retries" json:"read_retries"`
	RetryBackoff string `yaml:"retry_backoff" json:"retry_backoff"`
}

// Client 调用外部解析/匹配服务。
// 读操作（列表、查询解析结果、匹配）按 ReadRetries 重试；写操作只发送一次。
type Client struct {
	baseURL string
	http    *http.Client
	retries int
	backoff time.Duration
	log     *zap.Logger
}

var sleep = func(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// NewClient 创建客户端。hc 为空时按配置超时创建。
func NewClient(cfg Config, hc *http.Client, log *zap.Logger) *Client {
	timeout := defaultTimeout
	if cfg.Timeout != "" {
		if d, err := time.ParseDuration(cfg.Timeout); err == nil && d > 0 {
			timeout = d
		}
	}
	backoff := defaultBackoff
	if cfg.RetryBackoff != "" {
		if d, err := time.ParseDuration(cfg.RetryBackoff); err == nil && d >= 0 {
			backoff = d
		}
	}
	retries := cfg.ReadRetries
	if retries < 0 {
		retries = 0
	}

	var client http.Client
	if hc != nil {
		client = *hc
	}
	if client.Timeout <= 0 {
		client.Timeout = timeout
	}

	return &Client{
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		http:    &client,
		retries: retries,
		backoff: backoff,
		log:     logger.Named(log, "matching"),
	}
}

// ParseCV 上传简历，表单字段 user_id + file。
func (c *Client) ParseCV(ctx context.Context, ownerID, fileName string, content []byte) (*ParseResult, error) {
	const op = "matching.ParseCV"
	body, err := c.upload(ctx, op, "/parse_cv/", "user_id", ownerID, fileName, content)
	if err != nil {
		return nil, err
	}
	res, err := decodeParse(body)
	if err != nil {
		return nil, apperr.Remote(op, err)
	}
	if res.CV == nil {
		res.CV = &ParsedCV{}
	}
	return res, nil
}

// ParseJob 上传职位描述，表单字段 company_id + file。
func (c *Client) ParseJob(ctx context.Context, companyID, fileName string, content []byte) (*ParseResult, error) {
	const op = "matching.ParseJob"
	body, err := c.upload(ctx, op, "/parse_job/", "company_id", companyID, fileName, content)
	if err != nil {
		return nil, err
	}
	res, err := decodeParse(body)
	if err != nil {
		return nil, apperr.Remote(op, err)
	}
	if res.Job == nil {
		res.Job = &ParsedJob{}
	}
	return res, nil
}

// GetParsedJob 按职位 hash 查询已有解析结果。
func (c *Client) GetParsedJob(ctx context.Context, jobHash string) (*ParseResult, error) {
	const op = "matching.GetParsedJob"
	body, err := c.read(ctx, op, http.MethodGet, "/parse_job", url.Values{"job_hash": {jobHash}})
	if err != nil {
		return nil, err
	}
	res, err := decodeParse(body)
	if err != nil {
		return nil, apperr.Remote(op, err)
	}
	return res, nil
}

// MatchCandidateToJobs 返回与简历最匹配的职位。
func (c *Client) MatchCandidateToJobs(ctx context.Context, cvHash string, topN int) ([]JobMatch, error) {
	const op = "matching.MatchCandidateToJobs"
	q := url.Values{"cv_hash": {cvHash}, "top_n": {strconv.Itoa(topN)}}
	body, err := c.read(ctx, op, http.MethodPost, "/match_cv_to_jobs/", q)
	if err != nil {
		return nil, err
	}
	matches, err := decodeJobMatches(body)
	if err != nil {
		return nil, apperr.Remote(op, err)
	}
	return matches, nil
}

// MatchJobToCandidates 返回与职位最匹配的候选人。
func (c *Client) MatchJobToCandidates(ctx context.Context, jobHash string, topN int) ([]CandidateMatch, error) {
	const op = "matching.MatchJobToCandidates"
	q := url.Values{"job_hash": {jobHash}, "top_n": {strconv.Itoa(topN)}}
	body, err := c.read(ctx, op, http.MethodPost, "/match_job_to_cvs/", q)
	if err != nil {
		return nil, err
	}
	matches, err := decodeCandidateMatches(body)
	if err != nil {
		return nil, apperr.Remote(op, err)
	}
	return matches, nil
}

// ListJobsForCompany 分页获取公司职位。
func (c *Client) ListJobsForCompany(ctx context.Context, companyID string, limit, offset int) (JobPage, error) {
	const op = "matching.ListJobsForCompany"
	q := url.Values{"limit": {strconv.Itoa(limit)}, "offset": {strconv.Itoa(offset)}}
	body, err := c.read(ctx, op, http.MethodGet, "/jobs/company/"+url.PathEscape(companyID), q)
	if err != nil {
		return JobPage{}, err
	}
	page, err := decodeJobPage(body)
	if err != nil {
		return JobPage{}, apperr.Remote(op, err)
	}
	for i := range page.Jobs {
		if page.Jobs[i].CompanyID == "" {
			page.Jobs[i].CompanyID = companyID
		}
	}
	return page, nil
}

// DeleteJob 删除外部职位，404 返回 NOT_FOUND。
func (c *Client) DeleteJob(ctx context.Context, jobID string) error {
	const op = "matching.DeleteJob"
	status, body, err := c.do(ctx, op, http.MethodDelete, "/delete_job/"+url.PathEscape(jobID), nil, nil, "")
	if err != nil {
		return err
	}
	return checkStatus(op, status, body)
}

type applyRequest struct {
	CandidateID string `json:"candidate_id"`
	JobID       string `json:"job_id"`
}

// Apply 提交申请。409 表示已申请，作为结果而非错误返回。
func (c *Client) Apply(ctx context.Context, candidateID, jobID string) (ApplyStatus, error) {
	const op = "matching.Apply"
	payload, err := json.Marshal(applyRequest{CandidateID: candidateID, JobID: jobID})
	if err != nil {
		return 0, apperr.E(apperr.CodeInternal, op, "encode request", err)
	}
	status, body, err := c.do(ctx, op, http.MethodPost, "/applications/", nil, bytes.NewReader(payload), "application/json")
	if err != nil {
		return 0, err
	}
	if status == http.StatusConflict {
		return ApplyExists, nil
	}
	if err := checkStatus(op, status, body); err != nil {
		return 0, err
	}
	return ApplyCreated, nil
}

// Withdraw 撤回申请，返回远端是否存在该申请。
func (c *Client) Withdraw(ctx context.Context, candidateID, jobID string) (bool, error) {
	const op = "matching.Withdraw"
	path := "/applications/" + url.PathEscape(candidateID) + "/" + url.PathEscape(jobID)
	status, body, err := c.do(ctx, op, http.MethodDelete, path, nil, nil, "")
	if err != nil {
		return false, err
	}
	if status == http.StatusNotFound {
		return false, nil
	}
	if err := checkStatus(op, status, body); err != nil {
		return false, err
	}
	return true, nil
}

func (c *Client) upload(ctx context.Context, op, path, ownerField, ownerID, fileName string, content []byte) ([]byte, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if err := mw.WriteField(ownerField, ownerID); err != nil {
		return nil, apperr.E(apperr.CodeInternal, op, "write form", err)
	}
	part, err := mw.CreateFormFile("file", fileName)
	if err != nil {
		return nil, apperr.E(apperr.CodeInternal, op, "write form", err)
	}
	if _, err := part.Write(content); err != nil {
		return nil, apperr.E(apperr.CodeInternal, op, "write form", err)
	}
	if err := mw.Close(); err != nil {
		return nil, apperr.E(apperr.CodeInternal, op, "write form", err)
	}

	status, body, err := c.do(ctx, op, http.MethodPost, path, nil, &buf, mw.FormDataContentType())
	if err != nil {
		return nil, err
	}
	if err := checkStatus(op, status, body); err != nil {
		return nil, err
	}
	return body, nil
}

// read 执行幂等读请求，传输错误、5xx 与 429 会退避重试。
func (c *Client) read(ctx context.Context, op, method, path string, query url.Values) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt <= c.retries; attempt++ {
		if attempt > 0 {
			if err := sleep(ctx, c.backoff*time.Duration(attempt)); err != nil {
				return nil, apperr.Remote(op, err)
			}
			c.log.Debug("retry read", zap.String("op", op), zap.Int("attempt", attempt), zap.Error(lastErr))
		}

		status, body, err := c.do(ctx, op, method, path, query, nil, "")
		if err != nil {
			lastErr = err
			if ctx.Err() != nil {
				break
			}
			continue
		}
		if status >= http.StatusInternalServerError || status == http.StatusTooManyRequests {
			lastErr = checkStatus(op, status, body)
			continue
		}
		if err := checkStatus(op, status, body); err != nil {
			return nil, err
		}
		return body, nil
	}
	return nil, lastErr
}

func (c *Client) do(ctx context.Context, op, method, path string, query url.Values, body io.Reader, contentType string) (int, []byte, error) {
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return 0, nil, apperr.E(apperr.CodeInternal, op, "new request", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Warn("remote call failed", zap.String("op", op), zap.String("url", target), zap.Error(err))
		return 0, nil, apperr.Remote(op, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, apperr.Remote(op, fmt.Errorf("read body: %w", err))
	}
	c.log.Debug("remote call",
		zap.String("op", op),
		zap.String("method", method),
		zap.String("url", target),
		zap.Int("status", resp.StatusCode))
	return resp.StatusCode, data, nil
}

type errorBody struct {
	Detail any `json:"detail"`
}

func checkStatus(op string, status int, body []byte) error {
	if status >= 200 && status < 300 {
		return nil
	}
	msg := fmt.Sprintf("unexpected status %d", status)
	if detail := detailOf(body); detail != "" {
		msg += ": " + detail
	}
	switch status {
	case http.StatusNotFound:
		return apperr.E(apperr.CodeNotFound, op, msg, nil)
	case http.StatusConflict:
		return apperr.E(apperr.CodeConflict, op, msg, nil)
	default:
		return apperr.E(apperr.CodeRemote, op, msg, nil)
	}
}

func detailOf(body []byte) string {
	var eb errorBody
	if err := json.Unmarshal(body, &eb); err == nil && eb.Detail != nil {
		if s, ok := eb.Detail.(string); ok {
			return s
		}
		if data, err := json.Marshal(eb.Detail); err == nil {
			return string(data)
		}
	}
	return logger.Truncate(string(body), maxLogBody)
}
