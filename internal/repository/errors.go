package repository

import "errors"

// 通用的存储库错误
var (
	// ErrNotFound 表示请求的记录未找到 (缓存未命中)。
	// 调用方应把它翻译成 "unknown"/空对象，而不是失败。
	ErrNotFound = errors.New("repository: record not found")
)

// 特定资源的错误 (基于通用错误创建，方便 errors.Is 判断)
var (
	ErrUserNotFound = ErrNotFound
	ErrRoomNotFound = ErrNotFound
)
