package models

import (
	"strings"
	"time"
)

// Difficulty 难度等级
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// Challenge 会话内的题目（flag）
type Challenge struct {
	ID         string     `json:"id"`
	SessionID  string     `json:"session_id"`
	Title      string     `json:"title"`
	Clue       string     `json:"clue"`
	Answer     string     `json:"answer"`
	Hints      []string   `json:"hints"`
	Difficulty Difficulty `json:"difficulty"`
	Points     int        `json:"points"`
	Active     bool       `json:"is_active"`
	CreatedAt  time.Time  `json:"created_at"`
}

// Matches 答案比较不区分大小写
func (c *Challenge) Matches(answer string) bool {
	return strings.EqualFold(c.Answer, answer)
}

// Public 去掉答案和提示后发给玩家
func (c *Challenge) Public() PublicChallenge {
	return PublicChallenge{
		ID:         c.ID,
		Title:      c.Title,
		Clue:       c.Clue,
		Difficulty: c.Difficulty,
		Points:     c.Points,
		HintCount:  len(c.Hints),
	}
}

// PublicChallenge 玩家可见的题目信息
type PublicChallenge struct {
	ID         string     `json:"id"`
	Title      string     `json:"title"`
	Clue       string     `json:"clue"`
	Difficulty Difficulty `json:"difficulty"`
	Points     int        `json:"points"`
	HintCount  int        `json:"hint_count"`
}

// TemplateChallenge 模板题目，用于初始化新会话的题库
type TemplateChallenge struct {
	ID         string     `json:"id"`
	Title      string     `json:"title"`
	Clue       string     `json:"clue"`
	Answer     string     `json:"answer"`
	Hints      []string   `json:"hints"`
	Difficulty Difficulty `json:"difficulty"`
	Points     int        `json:"points"`
	Active     bool       `json:"is_active"`
	CreatedAt  time.Time  `json:"created_at"`
}

// Input 转换为创建会话题目的输入
func (t *TemplateChallenge) Input() ChallengeInput {
	return ChallengeInput{
		Title:      t.Title,
		Clue:       t.Clue,
		Answer:     t.Answer,
		Hints:      append([]string(nil), t.Hints...),
		Difficulty: t.Difficulty,
		Points:     t.Points,
	}
}

// ChallengeInput 管理员创建或修改题目的输入
type ChallengeInput struct {
	Title      string     `json:"title"`
	Clue       string     `json:"clue"`
	Answer     string     `json:"answer"`
	Hints      []string   `json:"hints"`
	Difficulty Difficulty `json:"difficulty"`
	Points     int        `json:"points"`
}

// Normalize 填充默认值
func (in *ChallengeInput) Normalize() {
	in.Title = strings.TrimSpace(in.Title)
	in.Answer = strings.TrimSpace(in.Answer)
	if in.Difficulty == "" {
		in.Difficulty = DifficultyMedium
	}
	if in.Points == 0 {
		in.Points = 100
	}
	if in.Hints == nil {
		in.Hints = []string{}
	}
}

// Validate 返回第一个不合法字段的描述，合法时返回空串
func (in *ChallengeInput) Validate() string {
	switch {
	case in.Title == "":
		return "标题不能为空"
	case strings.TrimSpace(in.Clue) == "":
		return "线索不能为空"
	case in.Answer == "":
		return "答案不能为空"
	case in.Points < 0:
		return "分值不能为负数"
	}
	switch in.Difficulty {
	case DifficultyEasy, DifficultyMedium, DifficultyHard:
	default:
		return "无效的难度等级"
	}
	return ""
}
