// Package notify 定义通知投递通道。
// 对核心而言 sink 是黑盒：接受 title+message，返回 成功/失败。
// false 也可能只是 "通道被禁用"，是合法的非错误结果。
package notify

// Sink 是通知投递接口。
type Sink interface {
	Send(message, title string) bool
}

// Disabled 是永远不投递的空通道。
type Disabled struct{}

// Send 恒返回 false。
func (Disabled) Send(message, title string) bool {
	return false
}
