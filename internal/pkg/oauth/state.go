package oauth

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

const (
	stateKeyPrefix = "oauth:state:"
	stateTTL       = 10 * time.Minute
)

// googleState Google 回调携带的 state，只包含用户 ID
type googleState struct {
	UserID string `json:"userId"`
}

func encodeGoogleState(userID string) (string, error) {
	if userID == "" {
		return "", ErrInvalidState
	}
	b, err := json.Marshal(googleState{UserID: userID})
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func decodeGoogleState(raw string) (string, error) {
	var st googleState
	if err := json.Unmarshal([]byte(raw), &st); err != nil || st.UserID == "" {
		return "", ErrInvalidState
	}
	return st.UserID, nil
}

// OneDriveState OneDrive 回调携带的 state，base64(JSON)
type OneDriveState struct {
	UserID    string `json:"userId"`
	Timestamp int64  `json:"timestamp"` // 毫秒
	Random    string `json:"random"`
}

func encodeOneDriveState(st OneDriveState) (string, error) {
	if st.UserID == "" {
		return "", ErrInvalidState
	}
	b, err := json.Marshal(st)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(b), nil
}

// decodeOneDriveState 解码并检查是否超过 10 分钟
func decodeOneDriveState(raw string, now time.Time) (*OneDriveState, error) {
	b, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		// 部分客户端会把 + / 改写成 URL 安全字符
		if b, err = base64.URLEncoding.DecodeString(raw); err != nil {
			return nil, ErrInvalidState
		}
	}
	var st OneDriveState
	if err := json.Unmarshal(b, &st); err != nil || st.UserID == "" {
		return nil, ErrInvalidState
	}
	if now.Sub(time.UnixMilli(st.Timestamp)) > stateTTL {
		return nil, ErrStateExpired
	}
	return &st, nil
}

// NonceStore 把 state 中的随机串登记到 Redis，回调时一次性消费，防止重放
type NonceStore struct {
	rdb *redis.Client
}

func NewNonceStore(rdb *redis.Client) *NonceStore {
	return &NonceStore{rdb: rdb}
}

// Register 登记 nonce 及其所属用户
func (s *NonceStore) Register(ctx context.Context, nonce, userID string) error {
	if err := s.rdb.Set(ctx, stateKeyPrefix+nonce, userID, stateTTL).Err(); err != nil {
		return fmt.Errorf("failed to store state: %w", err)
	}
	return nil
}

// Consume 校验并删除 nonce，返回登记时的用户 ID
func (s *NonceStore) Consume(ctx context.Context, nonce string) (string, error) {
	if nonce == "" {
		return "", ErrInvalidState
	}

	key := stateKeyPrefix + nonce
	var userID string
	err := s.rdb.Watch(ctx, func(tx *redis.Tx) error {
		val, err := tx.Get(ctx, key).Result()
		if err == redis.Nil {
			return ErrInvalidState
		}
		if err != nil {
			return fmt.Errorf("failed to get state: %w", err)
		}
		userID = val

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, key)
			return nil
		})
		return err
	}, key)
	if err != nil {
		return "", err
	}
	return userID, nil
}
