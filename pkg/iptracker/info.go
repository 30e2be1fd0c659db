package iptracker

import (
	"context"
	"encoding/json"
	"fmt"
)

const DefaultInfoURL = "https://ifconfig.co/json"

// IPInfo ifconfig.co 返回的出口 IP 信息
type IPInfo struct {
	IP         string  `json:"ip"`
	Country    string  `json:"country,omitempty"`
	CountryISO string  `json:"country_iso,omitempty"`
	Region     string  `json:"region_name,omitempty"`
	City       string  `json:"city,omitempty"`
	Latitude   float64 `json:"latitude,omitempty"`
	Longitude  float64 `json:"longitude,omitempty"`
	TimeZone   string  `json:"time_zone,omitempty"`
	ASN        string  `json:"asn,omitempty"`
	ASNOrg     string  `json:"asn_org,omitempty"`
	UserAgent  struct {
		Product  string `json:"product,omitempty"`
		Version  string `json:"version,omitempty"`
		RawValue string `json:"raw_value,omitempty"`
	} `json:"user_agent"`
}

// LookupInfo 查询出口 IP 的地理位置与运营商信息，url 为空时使用 ifconfig.co
func LookupInfo(ctx context.Context, client Doer, url string) (*IPInfo, error) {
	if url == "" {
		url = DefaultInfoURL
	}
	body, err := httpGet(ctx, client, url)
	if err != nil {
		return nil, err
	}

	var info IPInfo
	if err := json.Unmarshal(body, &info); err != nil {
		return nil, fmt.Errorf("parse ip info failed: %w", err)
	}
	if _, err := validIP(info.IP); err != nil {
		return nil, err
	}
	return &info, nil
}
