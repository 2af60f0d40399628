// schema.go

package db

// 统一的数据库表结构定义

// CreateAllTablesSQL 创建所有表的SQL语句
const CreateAllTablesSQL = `
-- 游戏会话表
CREATE TABLE IF NOT EXISTS game_sessions (
    id VARCHAR(36) PRIMARY KEY,
    session_code VARCHAR(32) UNIQUE NOT NULL,
    session_name VARCHAR(100) NOT NULL,
    admin_password VARCHAR(100) NOT NULL,
    status VARCHAR(20) NOT NULL DEFAULT 'waiting',
    max_players INT NOT NULL DEFAULT 50,
    created_at TIMESTAMP WITH TIME ZONE DEFAULT CURRENT_TIMESTAMP,
    started_at TIMESTAMP WITH TIME ZONE,
    ended_at TIMESTAMP WITH TIME ZONE
);

-- 玩家表，用户名在会话内不区分大小写唯一
CREATE TABLE IF NOT EXISTS players (
    id VARCHAR(36) PRIMARY KEY,
    session_id VARCHAR(36) NOT NULL REFERENCES game_sessions(id) ON DELETE CASCADE,
    username VARCHAR(50) NOT NULL,
    socket_id VARCHAR(64),
    score INT NOT NULL DEFAULT 0,
    coins INT NOT NULL DEFAULT 100,
    joined_at TIMESTAMP WITH TIME ZONE DEFAULT CURRENT_TIMESTAMP,
    last_activity TIMESTAMP WITH TIME ZONE DEFAULT CURRENT_TIMESTAMP,
    is_active BOOLEAN NOT NULL DEFAULT true
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_players_session_username ON players(session_id, LOWER(username));

-- 会话题目表
CREATE TABLE IF NOT EXISTS challenges (
    id VARCHAR(36) PRIMARY KEY,
    session_id VARCHAR(36) NOT NULL REFERENCES game_sessions(id) ON DELETE CASCADE,
    title VARCHAR(200) NOT NULL,
    clue TEXT NOT NULL,
    answer VARCHAR(200) NOT NULL,
    hints TEXT[] NOT NULL DEFAULT '{}',
    difficulty VARCHAR(20) NOT NULL DEFAULT 'medium',
    points INT NOT NULL DEFAULT 100,
    is_active BOOLEAN NOT NULL DEFAULT true,
    created_at TIMESTAMP WITH TIME ZONE DEFAULT CURRENT_TIMESTAMP
);

-- 模板题目表
CREATE TABLE IF NOT EXISTS template_challenges (
    id VARCHAR(36) PRIMARY KEY,
    title VARCHAR(200) NOT NULL,
    clue TEXT NOT NULL,
    answer VARCHAR(200) NOT NULL,
    hints TEXT[] NOT NULL DEFAULT '{}',
    difficulty VARCHAR(20) NOT NULL DEFAULT 'medium',
    points INT NOT NULL DEFAULT 100,
    is_active BOOLEAN NOT NULL DEFAULT true,
    created_at TIMESTAMP WITH TIME ZONE DEFAULT CURRENT_TIMESTAMP
);

-- 解题记录表
CREATE TABLE IF NOT EXISTS player_solutions (
    player_id VARCHAR(36) NOT NULL REFERENCES players(id) ON DELETE CASCADE,
    challenge_id VARCHAR(36) NOT NULL REFERENCES challenges(id) ON DELETE CASCADE,
    solved_at TIMESTAMP WITH TIME ZONE DEFAULT CURRENT_TIMESTAMP,
    PRIMARY KEY (player_id, challenge_id)
);

-- 攻击记录表
CREATE TABLE IF NOT EXISTS attacks (
    id VARCHAR(36) PRIMARY KEY,
    session_id VARCHAR(36) NOT NULL REFERENCES game_sessions(id) ON DELETE CASCADE,
    attacker_id VARCHAR(36) NOT NULL REFERENCES players(id) ON DELETE CASCADE,
    attack_type VARCHAR(20) NOT NULL,
    target_ids TEXT[] NOT NULL DEFAULT '{}',
    target_all BOOLEAN NOT NULL DEFAULT false,
    cost INT NOT NULL,
    duration_ms BIGINT NOT NULL,
    outcomes JSONB,
    launched_at TIMESTAMP WITH TIME ZONE DEFAULT CURRENT_TIMESTAMP
);

-- 事件日志表
CREATE TABLE IF NOT EXISTS game_events (
    id VARCHAR(36) PRIMARY KEY,
    session_id VARCHAR(36) NOT NULL REFERENCES game_sessions(id) ON DELETE CASCADE,
    player_id VARCHAR(36) REFERENCES players(id) ON DELETE SET NULL,
    event_type VARCHAR(50) NOT NULL,
    event_data JSONB NOT NULL DEFAULT '{}',
    timestamp TIMESTAMP WITH TIME ZONE DEFAULT CURRENT_TIMESTAMP
);

-- 创建索引以提高查询性能
CREATE INDEX IF NOT EXISTS idx_players_session_id ON players(session_id);
CREATE INDEX IF NOT EXISTS idx_challenges_session_id ON challenges(session_id);
CREATE INDEX IF NOT EXISTS idx_player_solutions_challenge_id ON player_solutions(challenge_id);
CREATE INDEX IF NOT EXISTS idx_attacks_session_id ON attacks(session_id);
CREATE INDEX IF NOT EXISTS idx_game_events_session_id ON game_events(session_id, timestamp DESC);
`

// DropAllTablesSQL 删除所有表（按依赖关系顺序）
const DropAllTablesSQL = `
DROP TABLE IF EXISTS game_events CASCADE;
DROP TABLE IF EXISTS attacks CASCADE;
DROP TABLE IF EXISTS player_solutions CASCADE;
DROP TABLE IF EXISTS template_challenges CASCADE;
DROP TABLE IF EXISTS challenges CASCADE;
DROP TABLE IF EXISTS players CASCADE;
DROP TABLE IF EXISTS game_sessions CASCADE;
`

// InitAllTables 初始化所有数据库表
func InitAllTables() error {
	_, err := DB.Exec(CreateAllTablesSQL)
	return err
}

// DropAllTables 删除所有表和数据
func DropAllTables() error {
	_, err := DB.Exec(DropAllTablesSQL)
	return err
}
