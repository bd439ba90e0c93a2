package service

import (
	"math"

	"scholar-rank-go/internal/model"
)

// 打分权重和接受阈值
const (
	WeightCoverageAlias  = 0.6
	WeightCoverageTarget = 0.2
	WeightSequence       = 0.3

	MinCoverageAlias = 0.5
	MinFuzzyScore    = 0.55
)

// ComputeScore 计算别名token与目标token的模糊匹配分数
// score = min(1, 0.6*coverageAlias + 0.2*coverageTarget + 0.3*sequenceScore)
func ComputeScore(alias model.AliasEntry, target []string) model.ScoreBreakdown {
	aliasTokens := alias.Tokens
	if len(aliasTokens) == 0 || len(target) == 0 {
		return model.ScoreBreakdown{}
	}

	// 单token别名必须是缩写，否则普通单词会匹配一切
	if len(aliasTokens) == 1 && !isLetterAcronym(aliasTokens[0], alias) {
		return model.ScoreBreakdown{}
	}

	targetSet := make(map[string]bool, len(target))
	for _, t := range target {
		targetSet[t] = true
	}

	var overlap []string
	for _, t := range aliasTokens {
		if targetSet[t] {
			overlap = append(overlap, t)
		}
	}
	if len(overlap) == 0 {
		return model.ScoreBreakdown{}
	}

	coverageAlias := float64(len(overlap)) / float64(len(aliasTokens))
	coverageTarget := float64(len(overlap)) / float64(len(target))
	sequence := float64(longestCommonRun(aliasTokens, target)) / float64(min(len(aliasTokens), len(target)))

	score := WeightCoverageAlias*coverageAlias + WeightCoverageTarget*coverageTarget + WeightSequence*sequence

	return model.ScoreBreakdown{
		Score:          math.Min(1, score),
		Overlap:        overlap,
		SequenceScore:  sequence,
		CoverageAlias:  coverageAlias,
		CoverageTarget: coverageTarget,
	}
}

// Accepted 判断模糊匹配是否达到接受阈值
func Accepted(b model.ScoreBreakdown) bool {
	return b.CoverageAlias >= MinCoverageAlias && b.Score >= MinFuzzyScore
}

// longestCommonRun 两个序列中最长的连续相同token段长度
func longestCommonRun(a, b []string) int {
	best := 0
	for i := range a {
		for j := range b {
			k := 0
			for i+k < len(a) && j+k < len(b) && a[i+k] == b[j+k] {
				k++
			}
			if k > best {
				best = k
			}
		}
	}
	return best
}

func isLetterAcronym(token string, alias model.AliasEntry) bool {
	if len(token) < 2 || !alias.IsAcronym(token) {
		return false
	}
	for i := 0; i < len(token); i++ {
		if token[i] < 'a' || token[i] > 'z' {
			return false
		}
	}
	return true
}
