package tencent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/reckless-huang/dfirewall/pkg/metrics"
	"github.com/reckless-huang/dfirewall/pkg/types"
)

const (
	DefaultEndpoint = "https://lighthouse.tencentcloudapi.com"
	DefaultRegion   = "ap-shanghai"
	APIVersion      = "2020-03-24"
	Service         = "lighthouse"
	ContentType     = "application/json"

	ActionDescribeFirewallRules = "DescribeFirewallRules"
	ActionCreateFirewallRules   = "CreateFirewallRules"
	ActionDeleteFirewallRules   = "DeleteFirewallRules"

	maxResponseBytes = 4 << 20
)

// Doer 发送 HTTP 请求，便于测试时替换
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Clock 时间源，签名时间戳取自这里
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// Option 客户端配置项
type Option func(*Client)

// WithHTTPClient 替换默认的 HTTP 客户端
func WithHTTPClient(d Doer) Option {
	return func(c *Client) { c.httpClient = d }
}

// WithClock 替换时间源
func WithClock(clk Clock) Option {
	return func(c *Client) { c.clock = clk }
}

// WithMetrics 记录每次调用的结果和耗时
func WithMetrics(m *metrics.Registry) Option {
	return func(c *Client) { c.metrics = m }
}

// Client 带 TC3 签名的腾讯云 API 客户端
type Client struct {
	endpoint   string
	host       string
	region     string
	cred       types.Credentials
	httpClient Doer
	clock      Clock
	metrics    *metrics.Registry
}

// NewClient 创建客户端，endpoint 为空时使用默认地址
func NewClient(endpoint, region string, cred types.Credentials, opts ...Option) (*Client, error) {
	if cred.SecretID == "" || cred.SecretKey == "" {
		return nil, fmt.Errorf("secret id and secret key are required: %w", types.ErrInvalidConfig)
	}
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	u, err := url.Parse(endpoint)
	if err != nil || u.Host == "" {
		return nil, fmt.Errorf("invalid endpoint %q: %w", endpoint, types.ErrInvalidConfig)
	}
	if region == "" {
		region = DefaultRegion
	}

	c := &Client{
		endpoint:   u.Scheme + "://" + u.Host + "/",
		host:       u.Host,
		region:     region,
		cred:       cred,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		clock:      realClock{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Host 返回参与签名的 Host
func (c *Client) Host() string { return c.host }

// Region 返回请求使用的地域
func (c *Client) Region() string { return c.region }

type apiError struct {
	Code    string `json:"Code"`
	Message string `json:"Message"`
}

type baseResponse struct {
	Error     *apiError `json:"Error,omitempty"`
	RequestID string    `json:"RequestId"`
}

type responseEnvelope struct {
	Response json.RawMessage `json:"Response"`
}

// do 序列化一次请求体，对这份字节签名并原样发送，之后不能再改动请求体
func (c *Client) do(ctx context.Context, action string, body any, out any) (err error) {
	start := time.Now()
	defer func() {
		result := "ok"
		if err != nil {
			result = "error"
		}
		c.metrics.ObserveRequest(action, result, time.Since(start))
	}()

	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal %s request: %w", action, err)
	}

	now := c.clock.Now()
	sc := types.NewSigningContext(c.host, ContentType, string(payload), Service, c.cred, now)
	authorization, err := Sign(sc)
	if err != nil {
		return fmt.Errorf("sign %s request: %w", action, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build %s request: %w", action, err)
	}
	req.Host = c.host
	req.Header.Set("Authorization", authorization)
	req.Header.Set("Content-Type", ContentType)
	req.Header.Set("X-TC-Action", action)
	req.Header.Set("X-TC-Timestamp", strconv.FormatInt(sc.Timestamp, 10))
	req.Header.Set("X-TC-Version", APIVersion)
	req.Header.Set("X-TC-Region", c.region)

	slog.Debug("Calling tencent cloud api", "action", action, "host", c.host, "region", c.region, "payload", string(payload))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &types.NetworkError{Op: action, Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return &types.NetworkError{Op: action, Err: fmt.Errorf("read response: %w", err)}
	}
	slog.Debug("Tencent cloud api response", "action", action, "status", resp.StatusCode, "body", string(respBody))

	var env responseEnvelope
	if err := json.Unmarshal(respBody, &env); err != nil || len(env.Response) == 0 {
		if err == nil {
			err = fmt.Errorf("missing Response field")
		}
		return &types.NetworkError{Op: action, Err: fmt.Errorf("decode response (status %d): %w", resp.StatusCode, err)}
	}

	var base baseResponse
	if err := json.Unmarshal(env.Response, &base); err != nil {
		return &types.NetworkError{Op: action, Err: fmt.Errorf("decode response: %w", err)}
	}
	if base.Error != nil {
		return &types.ProviderError{
			Action:    action,
			Code:      base.Error.Code,
			Message:   base.Error.Message,
			RequestID: base.RequestID,
		}
	}

	if out != nil {
		if err := json.Unmarshal(env.Response, out); err != nil {
			return &types.NetworkError{Op: action, Err: fmt.Errorf("decode response: %w", err)}
		}
	}
	return nil
}
