// Package webhook 校验支付平台回调的 HMAC-SHA256 签名。
//
// 签名头格式为 "t=<timestamp>;h1=<hex>[;h1=<hex>...]"，签名内容为 "<timestamp>:<raw body>"，
// 任意一个 h1 匹配即视为通过。
package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
)

var (
	ErrMalformedHeader  = errors.New("malformed signature header")
	ErrInvalidSignature = errors.New("invalid signature")
	ErrMissingSignature = errors.New("missing signature or secret")
)

// Signature 解析后的签名头
type Signature struct {
	Timestamp  string
	Signatures []string
}

// ParseHeader 解析签名头，未知字段忽略
func ParseHeader(header string) (*Signature, error) {
	sig := &Signature{}
	for _, part := range strings.Split(header, ";") {
		key, value, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch key {
		case "t", "ts":
			sig.Timestamp = value
		case "h1":
			if value != "" {
				sig.Signatures = append(sig.Signatures, value)
			}
		}
	}
	if sig.Timestamp == "" || len(sig.Signatures) == 0 {
		return nil, ErrMalformedHeader
	}
	return sig, nil
}

// Sign 计算 "<ts>:<body>" 的十六进制 HMAC
func Sign(timestamp string, body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(timestamp))
	mac.Write([]byte{':'})
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify 常量时间比较每个候选签名
func Verify(body []byte, header, secret string) error {
	sig, err := ParseHeader(header)
	if err != nil {
		return err
	}
	expected := []byte(Sign(sig.Timestamp, body, secret))
	for _, candidate := range sig.Signatures {
		if hmac.Equal([]byte(strings.ToLower(candidate)), expected) {
			return nil
		}
	}
	return ErrInvalidSignature
}

// Outcome 校验结果
type Outcome int

const (
	Verified Outcome = iota
	Skipped          // 缺少签名头或密钥，宽松模式下放行
)

// Policy 缺少签名头或密钥时的处理方式。签名不匹配始终拒绝
type Policy struct {
	Secret string
	Strict bool
}

func (p Policy) Check(body []byte, header string) (Outcome, error) {
	if header == "" || p.Secret == "" {
		if p.Strict {
			return Skipped, ErrMissingSignature
		}
		return Skipped, nil
	}
	if err := Verify(body, header, p.Secret); err != nil {
		return Verified, err
	}
	return Verified, nil
}
