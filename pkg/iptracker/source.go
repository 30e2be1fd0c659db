package iptracker

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/miekg/dns"
)

const (
	SourceHTTP      = "http"
	SourceDNS       = "dns"
	SourceInterface = "interface"

	DefaultURL       = "https://setb.cn/ip.json"
	DefaultField     = "publicip"
	DefaultDNSServer = "resolver1.opendns.com:53"
	DefaultDNSName   = "myip.opendns.com"
)

// Source 公网 IP 来源
type Source interface {
	PublicIP(ctx context.Context) (string, error)
	Name() string
}

// Doer 发送 HTTP 请求
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// SourceConfig IP 来源配置
type SourceConfig struct {
	Type      string `yaml:"type"`
	URL       string `yaml:"url,omitempty"`
	Field     string `yaml:"field,omitempty"`
	DNSServer string `yaml:"dns_server,omitempty"`
	DNSName   string `yaml:"dns_name,omitempty"`
	Interface string `yaml:"interface,omitempty"`
}

// NewSource 根据配置创建 IP 来源
func NewSource(cfg SourceConfig) (Source, error) {
	switch strings.ToLower(cfg.Type) {
	case "", SourceHTTP:
		s := &HTTPSource{URL: cfg.URL, Field: cfg.Field}
		if s.URL == "" {
			s.URL = DefaultURL
			if s.Field == "" {
				s.Field = DefaultField
			}
		}
		return s, nil
	case SourceDNS:
		s := &DNSSource{Server: cfg.DNSServer, Query: cfg.DNSName}
		if s.Server == "" {
			s.Server = DefaultDNSServer
		}
		if s.Query == "" {
			s.Query = DefaultDNSName
		}
		return s, nil
	case SourceInterface:
		if cfg.Interface == "" {
			return nil, fmt.Errorf("interface name is required for interface ip source")
		}
		return &InterfaceSource{Interface: cfg.Interface}, nil
	default:
		return nil, fmt.Errorf("unknown ip source: %s", cfg.Type)
	}
}

func validIP(s string) (string, error) {
	ip := strings.TrimSpace(s)
	if net.ParseIP(ip) == nil {
		return "", fmt.Errorf("invalid IP address received: %q", ip)
	}
	return ip, nil
}

// HTTPSource 通过 HTTP 查询公网 IP，Field 为空时把响应体当作纯文本 IP
type HTTPSource struct {
	URL    string
	Field  string
	Client Doer
}

func (s *HTTPSource) Name() string { return "http " + s.URL }

func (s *HTTPSource) PublicIP(ctx context.Context) (string, error) {
	body, err := httpGet(ctx, s.Client, s.URL)
	if err != nil {
		return "", err
	}

	if s.Field == "" {
		return validIP(string(body))
	}

	var doc map[string]any
	if err := json.Unmarshal(body, &doc); err != nil {
		return "", fmt.Errorf("parse ip response failed: %w", err)
	}
	v, ok := doc[s.Field].(string)
	if !ok {
		return "", fmt.Errorf("field %q not found in ip response", s.Field)
	}
	return validIP(v)
}

func httpGet(ctx context.Context, client Doer, url string) ([]byte, error) {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "curl/7.68.0")
	req.Header.Set("Accept", "*/*")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("get public IP failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read IP failed: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("ip lookup returned status %d", resp.StatusCode)
	}
	return body, nil
}

// DNSSource 通过 DNS 查询公网 IP，例如 OpenDNS 的 myip.opendns.com
type DNSSource struct {
	Server  string
	Query   string
	Timeout time.Duration
}

func (s *DNSSource) Name() string { return "dns " + s.Query + "@" + s.Server }

func (s *DNSSource) PublicIP(ctx context.Context) (string, error) {
	timeout := s.Timeout
	if timeout == 0 {
		timeout = 5 * time.Second
	}

	m := new(dns.Msg)
	m.SetQuestion(dns.Fqdn(s.Query), dns.TypeA)
	client := &dns.Client{Timeout: timeout}

	in, _, err := client.ExchangeContext(ctx, m, s.Server)
	if err != nil {
		return "", fmt.Errorf("dns query %s failed: %w", s.Query, err)
	}
	if in.Rcode != dns.RcodeSuccess {
		return "", fmt.Errorf("dns query %s failed: %s", s.Query, dns.RcodeToString[in.Rcode])
	}

	for _, rr := range in.Answer {
		switch a := rr.(type) {
		case *dns.A:
			return a.A.String(), nil
		case *dns.AAAA:
			return a.AAAA.String(), nil
		case *dns.TXT:
			for _, txt := range a.Txt {
				if ip, err := validIP(txt); err == nil {
					return ip, nil
				}
			}
		}
	}
	return "", fmt.Errorf("dns query %s returned no address", s.Query)
}

// InterfaceSource 读取本机网卡上的 IPv4 地址，适用于公网 IP 直接落在网卡上的场景
type InterfaceSource struct {
	Interface string
}

func (s *InterfaceSource) Name() string { return "interface " + s.Interface }

func (s *InterfaceSource) PublicIP(ctx context.Context) (string, error) {
	iface, err := net.InterfaceByName(s.Interface)
	if err != nil {
		return "", err
	}

	addrs, err := iface.Addrs()
	if err != nil {
		return "", err
	}

	for _, addr := range addrs {
		if ipNet, ok := addr.(*net.IPNet); ok && ipNet.IP.To4() != nil {
			return ipNet.IP.String(), nil
		}
	}
	return "", fmt.Errorf("no IPv4 address found on %s", s.Interface)
}
