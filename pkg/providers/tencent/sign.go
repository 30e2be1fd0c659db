package tencent

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/reckless-huang/dfirewall/pkg/types"
)

const (
	// Algorithm 腾讯云 API 3.0 签名算法
	Algorithm     = "TC3-HMAC-SHA256"
	signedHeaders = "content-type;host"
	terminator    = "tc3_request"
)

func sha256Hex(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

func hmacSHA256(key []byte, msg string) []byte {
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(msg))
	return mac.Sum(nil)
}

func credentialScope(date, service string) string {
	return date + "/" + service + "/" + terminator
}

// CanonicalRequest 拼接规范请求串，字段顺序和换行必须与服务端一致
func CanonicalRequest(host, contentType, payload string) string {
	canonicalHeaders := "content-type:" + contentType + "\n" + "host:" + host + "\n"
	return "POST\n" +
		"/\n" +
		"\n" +
		canonicalHeaders + "\n" +
		signedHeaders + "\n" +
		sha256Hex(payload)
}

// StringToSign 拼接待签名字符串
func StringToSign(canonicalRequest string, timestamp int64, date, service string) string {
	return fmt.Sprintf("%s\n%d\n%s\n%s",
		Algorithm,
		timestamp,
		credentialScope(date, service),
		sha256Hex(canonicalRequest),
	)
}

// Signature 派生签名密钥并计算签名，中间步骤使用原始字节
func Signature(secretKey, stringToSign, date, service string) (string, error) {
	if secretKey == "" {
		return "", types.ErrEmptySecretKey
	}
	secretDate := hmacSHA256([]byte("TC3"+secretKey), date)
	secretService := hmacSHA256(secretDate, service)
	secretSigning := hmacSHA256(secretService, terminator)
	return hex.EncodeToString(hmacSHA256(secretSigning, stringToSign)), nil
}

// AuthorizationHeader 拼接 Authorization 头
func AuthorizationHeader(secretID, date, service, signature string) string {
	return fmt.Sprintf("%s Credential=%s/%s, SignedHeaders=%s, Signature=%s",
		Algorithm, secretID, credentialScope(date, service), signedHeaders, signature)
}

// Sign 根据签名上下文生成 Authorization 头
func Sign(sc types.SigningContext) (string, error) {
	if sc.Credentials.SecretID == "" {
		return "", fmt.Errorf("secret id is empty: %w", types.ErrInvalidConfig)
	}
	if sc.Date == "" || sc.Service == "" {
		return "", fmt.Errorf("signing date and service are required: %w", types.ErrInvalidConfig)
	}

	canonical := CanonicalRequest(sc.Host, sc.ContentType, sc.Payload)
	sts := StringToSign(canonical, sc.Timestamp, sc.Date, sc.Service)
	signature, err := Signature(sc.Credentials.SecretKey, sts, sc.Date, sc.Service)
	if err != nil {
		return "", err
	}
	return AuthorizationHeader(sc.Credentials.SecretID, sc.Date, sc.Service, signature), nil
}
