package bootstrap

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Rules 是 YAML 规则文件的根结构，对应 settings.yml。
// 基础设施参数 (Redis/MySQL/NATS 地址等) 走环境变量，不放在这里。
type Rules struct {
	SR     SRRules     `yaml:"sr"`
	Global GlobalRules `yaml:"global"`
}

// SRRules 是上游 API 与监视行为的配置。
type SRRules struct {
	APIURL        string `yaml:"api_url"`
	OptionAPIURL  string `yaml:"option_api_url"`
	HTTPUserAgent string `yaml:"http_user_agent"`

	// 轮询节奏系数。
	BaseWaitSec           float64 `yaml:"base_wait_sec"`
	WaitMultiplier        float64 `yaml:"wait_multiplier"`
	WaitIntercept         float64 `yaml:"wait_intercept"`
	MinWaitSec            float64 `yaml:"min_wait_sec"`
	JitterMu              float64 `yaml:"jitter_mu"`
	JitterSigma           float64 `yaml:"jitter_sigma"`
	SmoothingTimeConstant float64 `yaml:"smoothing_time_constant"`

	// 监视目标与关键词。
	Targets               []string `yaml:"targets"`
	TargetsExclude        []string `yaml:"targets_exclude"`
	TargetKeywords        []string `yaml:"target_keywords"`
	TargetKeywordsExclude []string `yaml:"target_keywords_exclude"`
}

// GlobalRules 是全局开关。
type GlobalRules struct {
	Debug bool `yaml:"debug"`

	// 保留 current 集合用于排查 (diff 推进改为复制而非重命名)。
	RetainCurrentSets bool `yaml:"retain_current_sets"`
}

// LoadRules 从 YAML 文件读取规则并填充默认值。
func LoadRules(path string) (*Rules, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: read rules file %s: %w", path, err)
	}
	var rules Rules
	if err := yaml.Unmarshal(data, &rules); err != nil {
		return nil, fmt.Errorf("bootstrap: parse rules file %s: %w", path, err)
	}
	rules.applyDefaults()
	if rules.SR.APIURL == "" {
		return nil, fmt.Errorf("bootstrap: rules file %s: sr.api_url is required", path)
	}
	return &rules, nil
}

func (r *Rules) applyDefaults() {
	if r.SR.BaseWaitSec <= 0 {
		r.SR.BaseWaitSec = 30
	}
	if r.SR.WaitMultiplier <= 0 {
		r.SR.WaitMultiplier = 0.07
	}
	if r.SR.WaitIntercept == 0 {
		r.SR.WaitIntercept = 10
	}
	if r.SR.MinWaitSec <= 0 {
		r.SR.MinWaitSec = 20
	}
	if r.SR.JitterSigma <= 0 {
		r.SR.JitterSigma = 1
	}
	if r.SR.SmoothingTimeConstant <= 0 {
		r.SR.SmoothingTimeConstant = 1
	}
}
