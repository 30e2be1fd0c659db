package iptracker

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/miekg/dns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPSource_JSONField(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "curl/7.68.0", r.Header.Get("User-Agent"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"publicip":"203.0.113.7","area":"shanghai"}`))
	}))
	defer srv.Close()

	src := &HTTPSource{URL: srv.URL, Field: "publicip"}
	ip, err := src.PublicIP(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "203.0.113.7", ip)
}

func TestHTTPSource_PlainText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("198.51.100.23\n"))
	}))
	defer srv.Close()

	ip, err := (&HTTPSource{URL: srv.URL}).PublicIP(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "198.51.100.23", ip)
}

func TestHTTPSource_Errors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		field  string
	}{
		{name: "missing field", status: http.StatusOK, body: `{"ip":"1.2.3.4"}`, field: "publicip"},
		{name: "not json", status: http.StatusOK, body: `<html>`, field: "publicip"},
		{name: "invalid ip", status: http.StatusOK, body: `{"publicip":"not-an-ip"}`, field: "publicip"},
		{name: "bad status", status: http.StatusBadGateway, body: `{"publicip":"1.2.3.4"}`, field: "publicip"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := (&HTTPSource{URL: srv.URL, Field: tt.field}).PublicIP(context.Background())
			assert.Error(t, err)
		})
	}
}

func startDNSServer(t *testing.T, handler dns.HandlerFunc) string {
	t.Helper()
	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)

	started := make(chan struct{})
	srv := &dns.Server{PacketConn: pc, Handler: handler, NotifyStartedFunc: func() { close(started) }}
	go func() { _ = srv.ActivateAndServe() }()
	<-started
	t.Cleanup(func() { _ = srv.Shutdown() })

	return pc.LocalAddr().String()
}

func TestDNSSource_ARecord(t *testing.T) {
	addr := startDNSServer(t, func(w dns.ResponseWriter, r *dns.Msg) {
		m := new(dns.Msg)
		m.SetReply(r)
		rr, err := dns.NewRR(r.Question[0].Name + " 0 IN A 203.0.113.9")
		if assert.NoError(t, err) {
			m.Answer = append(m.Answer, rr)
		}
		_ = w.WriteMsg(m)
	})

	src := &DNSSource{Server: addr, Query: DefaultDNSName}
	ip, err := src.PublicIP(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "203.0.113.9", ip)
}

func TestDNSSource_TXTRecord(t *testing.T) {
	addr := startDNSServer(t, func(w dns.ResponseWriter, r *dns.Msg) {
		m := new(dns.Msg)
		m.SetReply(r)
		rr, err := dns.NewRR(r.Question[0].Name + ` 0 IN TXT "198.51.100.4"`)
		if assert.NoError(t, err) {
			m.Answer = append(m.Answer, rr)
		}
		_ = w.WriteMsg(m)
	})

	ip, err := (&DNSSource{Server: addr, Query: "o-o.myaddr.l.google.com"}).PublicIP(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "198.51.100.4", ip)
}

func TestDNSSource_Failures(t *testing.T) {
	t.Run("nxdomain", func(t *testing.T) {
		addr := startDNSServer(t, func(w dns.ResponseWriter, r *dns.Msg) {
			m := new(dns.Msg)
			m.SetRcode(r, dns.RcodeNameError)
			_ = w.WriteMsg(m)
		})
		_, err := (&DNSSource{Server: addr, Query: "nowhere.example"}).PublicIP(context.Background())
		assert.ErrorContains(t, err, "NXDOMAIN")
	})

	t.Run("empty answer", func(t *testing.T) {
		addr := startDNSServer(t, func(w dns.ResponseWriter, r *dns.Msg) {
			m := new(dns.Msg)
			m.SetReply(r)
			_ = w.WriteMsg(m)
		})
		_, err := (&DNSSource{Server: addr, Query: DefaultDNSName}).PublicIP(context.Background())
		assert.ErrorContains(t, err, "no address")
	})
}

func TestInterfaceSource_Loopback(t *testing.T) {
	ifaces, err := net.Interfaces()
	require.NoError(t, err)

	var name string
	for _, iface := range ifaces {
		if iface.Flags&net.FlagLoopback != 0 {
			name = iface.Name
			break
		}
	}
	if name == "" {
		t.Skip("no loopback interface")
	}

	ip, err := (&InterfaceSource{Interface: name}).PublicIP(context.Background())
	require.NoError(t, err)
	assert.True(t, net.ParseIP(ip).IsLoopback())
}

func TestInterfaceSource_Unknown(t *testing.T) {
	_, err := (&InterfaceSource{Interface: "does-not-exist0"}).PublicIP(context.Background())
	assert.Error(t, err)
}

func TestNewSource(t *testing.T) {
	src, err := NewSource(SourceConfig{})
	require.NoError(t, err)
	httpSrc, ok := src.(*HTTPSource)
	require.True(t, ok)
	assert.Equal(t, DefaultURL, httpSrc.URL)
	assert.Equal(t, DefaultField, httpSrc.Field)

	src, err = NewSource(SourceConfig{Type: "http", URL: "https://ifconfig.co/ip"})
	require.NoError(t, err)
	assert.Empty(t, src.(*HTTPSource).Field)

	src, err = NewSource(SourceConfig{Type: "DNS"})
	require.NoError(t, err)
	dnsSrc := src.(*DNSSource)
	assert.Equal(t, DefaultDNSServer, dnsSrc.Server)
	assert.Equal(t, DefaultDNSName, dnsSrc.Query)

	_, err = NewSource(SourceConfig{Type: "interface"})
	assert.Error(t, err)

	src, err = NewSource(SourceConfig{Type: "interface", Interface: "eth0"})
	require.NoError(t, err)
	assert.Equal(t, "interface eth0", src.Name())

	_, err = NewSource(SourceConfig{Type: "carrier-pigeon"})
	assert.Error(t, err)
}

func TestLookupInfo(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"ip":"203.0.113.7","country":"China","country_iso":"CN","city":"Shanghai","time_zone":"Asia/Shanghai","asn":"AS4812","asn_org":"China Telecom","user_agent":{"product":"curl","version":"7.68.0","raw_value":"curl/7.68.0"}}`))
	}))
	defer srv.Close()

	info, err := LookupInfo(context.Background(), srv.Client(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "203.0.113.7", info.IP)
	assert.Equal(t, "CN", info.CountryISO)
	assert.Equal(t, "AS4812", info.ASN)
	assert.Equal(t, "curl/7.68.0", info.UserAgent.RawValue)
}
