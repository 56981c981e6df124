package dto

// SendOTPRequest 请求发送登录验证码
type SendOTPRequest struct {
	Email string `json:"email" binding:"required,email"`
	Name  string `json:"name" binding:"omitempty,min=2,max=100"`
}

// SendOTPResponse 发送验证码响应
type SendOTPResponse struct {
	Email     string `json:"email"`
	IsNewUser bool   `json:"is_new_user"`
	ExpiresIn int    `json:"expires_in"` // 秒
}

// VerifyOTPRequest 验证码登录请求
type VerifyOTPRequest struct {
	Email string `json:"email" binding:"required,email"`
	Code  string `json:"code" binding:"required,otpcode"`
}

// CheckEmailRequest 检查邮箱是否已注册
type CheckEmailRequest struct {
	Email string `json:"email" binding:"required,email"`
}

// CheckEmailResponse 检查邮箱响应
type CheckEmailResponse struct {
	Exists bool   `json:"exists"`
	Name   string `json:"name,omitempty"`
}

// SignupRequest 密码注册请求
type SignupRequest struct {
	Name     string `json:"name" binding:"required,min=2,max=100"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8,max=72"`
}

// SigninRequest 密码登录请求
type SigninRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// UserInfo 用户信息（返回给前端）
type UserInfo struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// SessionResponse 当前会话
type SessionResponse struct {
	Authenticated bool      `json:"authenticated"`
	User          *UserInfo `json:"user,omitempty"`
}
