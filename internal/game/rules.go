package game

import (
	"time"

	"github.com/jacl-coder/FlagStorm-Server/config"
	"github.com/jacl-coder/FlagStorm-Server/internal/models"
)

// Rules 游戏规则常量
type Rules struct {
	StartingCoins      int
	HintCost           int
	AttackCooldown     time.Duration
	AllTargetSurcharge int
	StealMaxItems      int
	ActivityLimit      int
	DefaultMaxPlayers  int
	StoreTimeout       time.Duration
	Attacks            map[models.AttackKind]models.AttackSpec
}

// DefaultRules 默认规则
func DefaultRules() Rules {
	return Rules{
		StartingCoins:      models.DefaultStartingCoins,
		HintCost:           10,
		AttackCooldown:     30 * time.Second,
		AllTargetSurcharge: 20,
		StealMaxItems:      2,
		ActivityLimit:      10,
		DefaultMaxPlayers:  50,
		StoreTimeout:       5 * time.Second,
		Attacks:            models.DefaultAttackSpecs(),
	}
}

// RulesFromConfig 从配置生成规则，未配置的项使用默认值
func RulesFromConfig(cfg config.GameConfig) Rules {
	r := DefaultRules()
	if cfg.StartingCoins > 0 {
		r.StartingCoins = cfg.StartingCoins
	}
	if cfg.HintCost > 0 {
		r.HintCost = cfg.HintCost
	}
	if cfg.AttackCooldown > 0 {
		r.AttackCooldown = cfg.AttackCooldown
	}
	if cfg.AllTargetSurcharge >= 0 {
		r.AllTargetSurcharge = cfg.AllTargetSurcharge
	}
	if cfg.StealMaxItems > 0 {
		r.StealMaxItems = cfg.StealMaxItems
	}
	if cfg.ActivityLimit > 0 {
		r.ActivityLimit = cfg.ActivityLimit
	}
	if cfg.DefaultMaxPlayers > 0 {
		r.DefaultMaxPlayers = cfg.DefaultMaxPlayers
	}
	if cfg.StoreTimeout > 0 {
		r.StoreTimeout = cfg.StoreTimeout
	}
	for name, ac := range cfg.Attacks {
		kind := models.AttackKind(name)
		spec, ok := r.Attacks[kind]
		if !ok {
			spec = models.AttackSpec{Kind: kind}
		}
		if ac.Cost > 0 {
			spec.Cost = ac.Cost
		}
		if ac.Duration > 0 {
			spec.Duration = ac.Duration
		}
		if spec.Cost > 0 && spec.Duration > 0 {
			r.Attacks[kind] = spec
		}
	}
	return r
}

// AttackCost 攻击花费，目标为 all 时加收附加费
func (r Rules) AttackCost(kind models.AttackKind, all bool) (int, bool) {
	spec, ok := r.Attacks[kind]
	if !ok {
		return 0, false
	}
	if all {
		return spec.Cost + r.AllTargetSurcharge, true
	}
	return spec.Cost, true
}

// attackCosts 发给客户端展示的单目标价格表
func (r Rules) attackCosts() map[models.AttackKind]int {
	costs := make(map[models.AttackKind]int, len(r.Attacks))
	for kind, spec := range r.Attacks {
		costs[kind] = spec.Cost
	}
	return costs
}
