package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/fflughiraeth/srpusher/internal/repository"
)

// PacingConfig 是自适应轮询控制器的系数。
type PacingConfig struct {
	BaseWaitSec  float64 // 首次运行时平滑值的种子
	Multiplier   float64 // 每个在线成员贡献的秒数
	InterceptSec float64 // 线性项的截距
	MinWaitSec   float64 // 绝对下限
	JitterMu     float64 // 抖动均值
	JitterSigma  float64 // 抖动标准差
	TimeConstant float64 // 低通滤波时间常数 T，越大对负载变化响应越慢
}

// PacingController 根据在线人数计算下一次睡眠时长：
// 线性估计 + 高斯抖动，再和上一个值做单极点低通平滑。
// `previous_wait_sec` 是唯一显式跨周期传递的状态。
type PacingController struct {
	state repository.StateRepository
	cfg   PacingConfig
	rng   *rand.Rand
	log   *logrus.Entry
}

// NewPacingController 创建控制器。
func NewPacingController(state repository.StateRepository, cfg PacingConfig, logger *logrus.Logger) *PacingController {
	if state == nil {
		panic("StateRepository cannot be nil for PacingController")
	}
	return &PacingController{
		state: state,
		cfg:   cfg,
		rng:   rand.New(rand.NewSource(time.Now().UnixNano())),
		log:   logger.WithField("component", "pacing"),
	}
}

// SetRandSource 替换抖动的随机源 (测试用)。
func (c *PacingController) SetRandSource(src rand.Source) {
	c.rng = rand.New(src)
}

// ComputeWait 计算 (wait, jitter, raw)。
// raw 是不含抖动的纯估计，只用于可观测性；wait 是抖动后的值，
// 线性项不超过下限时落在 minWait+jitter 上。
func (c *PacingController) ComputeWait(onlineCount int) (wait, jitter, raw float64) {
	linear := float64(onlineCount)*c.cfg.Multiplier + c.cfg.InterceptSec
	raw = math.Max(linear, c.cfg.MinWaitSec)
	jitter = c.rng.NormFloat64()*c.cfg.JitterSigma + c.cfg.JitterMu
	wait = linear + jitter
	if wait <= c.cfg.MinWaitSec {
		wait = c.cfg.MinWaitSec + jitter
	}
	return wait, jitter, raw
}

// Smooth 对 wait 做单极点低通：smoothed = prev + (wait − prev)·alpha，
// alpha = 0.1/(2π·T)，收紧到 (0,1]。T 越大 alpha 越小，响应越慢，
// 且一步之内永不越过目标值。
func (c *PacingController) Smooth(previous, wait float64) float64 {
	alpha := 1.0
	if c.cfg.TimeConstant > 0 {
		alpha = 0.1 / (2 * math.Pi * c.cfg.TimeConstant)
	}
	if alpha <= 0 || alpha > 1 {
		alpha = 1.0
	}
	return previous + (wait-previous)*alpha
}

// NextWait 计算并持久化下一次睡眠时长。
// 平滑的 previous 来自上个周期的持久化值，首次运行用 BaseWaitSec 播种。
func (c *PacingController) NextWait(ctx context.Context, onlineCount int) (smoothed, jitter, raw float64, err error) {
	previous, err := c.state.PreviousWait(ctx)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			return 0, 0, 0, fmt.Errorf("pacing: load previous wait: %w", err)
		}
		previous = c.cfg.BaseWaitSec
	}
	wait, jitter, raw := c.ComputeWait(onlineCount)
	smoothed = c.Smooth(previous, wait)
	if err := c.state.SavePreviousWait(ctx, smoothed); err != nil {
		return 0, 0, 0, fmt.Errorf("pacing: persist wait: %w", err)
	}
	c.log.WithFields(logrus.Fields{
		"online":   onlineCount,
		"raw":      raw,
		"jitter":   jitter,
		"previous": previous,
		"wait":     smoothed,
	}).Debug("Next wait computed")
	return smoothed, jitter, raw, nil
}
