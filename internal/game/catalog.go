package game

import (
	"github.com/jacl-coder/FlagStorm-Server/internal/models"
)

// DefaultChallenges 没有模板题目时新会话使用的题目
func DefaultChallenges() []models.ChallengeInput {
	return []models.ChallengeInput{
		{
			Title:      "Welcome Challenge",
			Clue:       "What is the answer to life, the universe, and everything?",
			Answer:     "42",
			Hints:      []string{"Think Douglas Adams", "Hitchhiker's Guide to the Galaxy", "The ultimate answer"},
			Difficulty: models.DifficultyEasy,
			Points:     100,
		},
		{
			Title:      "Base64 Basics",
			Clue:       "SEFDS19NWV9CT1g=",
			Answer:     "HACK_MY_BOX",
			Hints:      []string{"This looks encoded", "Try base64 decoding", "Online decoder tools exist"},
			Difficulty: models.DifficultyMedium,
			Points:     200,
		},
	}
}

// catalog 会话的题目缓存，包含已停用的题目以便查询分值
type catalog struct {
	order []string
	byID  map[string]*models.Challenge
}

func newCatalog(list []*models.Challenge) *catalog {
	c := &catalog{byID: make(map[string]*models.Challenge, len(list))}
	for _, ch := range list {
		c.order = append(c.order, ch.ID)
		c.byID[ch.ID] = ch
	}
	return c
}

func (c *catalog) get(id string) (*models.Challenge, bool) {
	ch, ok := c.byID[id]
	return ch, ok
}

// active 返回可答题的题目
func (c *catalog) active(id string) (*models.Challenge, bool) {
	ch, ok := c.byID[id]
	if !ok || !ch.Active {
		return nil, false
	}
	return ch, true
}

// points 题目分值，未知题目为0
func (c *catalog) points(id string) int {
	if ch, ok := c.byID[id]; ok {
		return ch.Points
	}
	return 0
}

func (c *catalog) public() []models.PublicChallenge {
	list := make([]models.PublicChallenge, 0, len(c.order))
	for _, id := range c.order {
		if ch := c.byID[id]; ch.Active {
			list = append(list, ch.Public())
		}
	}
	return list
}
