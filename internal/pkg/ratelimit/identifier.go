package ratelimit

import "strings"

const anonymous = "anonymous"

// Identifier 限流标识：登录用户优先，其次代理链第一跳 IP，再次直连 IP
func Identifier(userID, forwardedFor, realIP string) string {
	if userID != "" {
		return "user:" + userID
	}
	if forwardedFor != "" {
		first, _, _ := strings.Cut(forwardedFor, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return "ip:" + ip
		}
	}
	if ip := strings.TrimSpace(realIP); ip != "" {
		return "ip:" + ip
	}
	return anonymous
}
