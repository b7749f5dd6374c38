package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/fflughiraeth/srpusher/internal/domain"
	"github.com/fflughiraeth/srpusher/internal/repository"
)

// KeywordRules 是匹配器的允许/排除清单。
type KeywordRules struct {
	Keywords        []string // 允许列表：候选串包含其一才可能命中
	KeywordsExclude []string // 排除列表：候选串包含其一则否决
	MembersExclude  []string // 成员排除列表：房间里有这些用户则整体否决
}

// KeywordMatcher 扫描房间/成员文本并做时间窗口去重。
// Match 的 "检查" 同时就是 "记录"：同一候选串在窗口内第二次调用
// 会因去重返回 false。调用方不得投机性地调用它。
type KeywordMatcher struct {
	state repository.StateRepository
	rules KeywordRules
	log   *logrus.Entry
}

// NewKeywordMatcher 创建匹配器。
func NewKeywordMatcher(state repository.StateRepository, rules KeywordRules, logger *logrus.Logger) *KeywordMatcher {
	if state == nil {
		panic("StateRepository cannot be nil for KeywordMatcher")
	}
	return &KeywordMatcher{
		state: state,
		rules: rules,
		log:   logger.WithField("component", "keyword"),
	}
}

// Match 报告候选串是否应触发通知：
// 至少一个候选串包含允许关键词、不包含任何排除关键词、
// 给定成员里没有被排除的用户、且该候选串未在去重窗口内触发过。
func (m *KeywordMatcher) Match(ctx context.Context, members []domain.Member, candidates ...string) (bool, error) {
	if len(m.rules.Keywords) == 0 {
		return false, nil
	}
	if m.hasExcludedMember(members) {
		return false, nil
	}
	for _, candidate := range candidates {
		if candidate == "" {
			continue
		}
		if !containsAny(candidate, m.rules.Keywords) {
			continue
		}
		if containsAny(candidate, m.rules.KeywordsExclude) {
			continue
		}
		seen, err := m.state.MarkKeyword(ctx, candidate)
		if err != nil {
			return false, fmt.Errorf("keyword: dedup check: %w", err)
		}
		if !seen {
			m.log.WithField("candidate", candidate).Debug("Keyword hit")
			return true, nil
		}
	}
	return false, nil
}

func (m *KeywordMatcher) hasExcludedMember(members []domain.Member) bool {
	if len(m.rules.MembersExclude) == 0 {
		return false
	}
	for _, member := range members {
		for _, excluded := range m.rules.MembersExclude {
			if excluded != "" && strings.EqualFold(member.UserID, excluded) {
				return true
			}
		}
	}
	return false
}

func containsAny(s string, needles []string) bool {
	for _, needle := range needles {
		if needle != "" && strings.Contains(s, needle) {
			return true
		}
	}
	return false
}
