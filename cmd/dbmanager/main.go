// main.go

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/jacl-coder/FlagStorm-Server/config"
	"github.com/jacl-coder/FlagStorm-Server/internal/common"
	"github.com/jacl-coder/FlagStorm-Server/internal/models"
	"github.com/jacl-coder/FlagStorm-Server/internal/store"
	"github.com/jacl-coder/FlagStorm-Server/pkg/db"
	"github.com/lmittmann/tint"
	"golang.org/x/crypto/bcrypt"
)

const (
	demoSessionCode = "DEMO2024"
	demoSessionName = "Demo CTF Session"
	demoAdminSecret = "admin123"
)

// demoChallenges 演示会话和模板题库
var demoChallenges = []models.ChallengeInput{
	{
		Title:      "Social Media Ethics",
		Clue:       "Kalau jumpa berita sahih nak buat apa?",
		Answer:     "TAPAK_TAJUK",
		Hints:      []string{"Think about social media responsibility", "What do you do when you find real news?", "The answer is about sharing - TAPAK TAJUK"},
		Difficulty: models.DifficultyEasy,
		Points:     100,
	},
	{
		Title:      "Base64 Decoder",
		Clue:       "SGFjayBNeSBCb3g=",
		Answer:     "HACK_MY_BOX",
		Hints:      []string{"This looks like encoded text", "Try base64 decoding", "The answer is the decoded text with spaces as underscores"},
		Difficulty: models.DifficultyMedium,
		Points:     200,
	},
	{
		Title:      "Caesar Cipher",
		Clue:       "FDHVDU FLSKHU - shift by 3",
		Answer:     "CAESAR_CIPHER",
		Hints:      []string{"This is a substitution cipher", "Each letter is shifted by a fixed number", "Try shifting each letter back by 3 positions"},
		Difficulty: models.DifficultyMedium,
		Points:     250,
	},
	{
		Title:      "Network Security",
		Clue:       "Default port for HTTPS secure web traffic",
		Answer:     "443",
		Hints:      []string{"HTTP uses port 80", "HTTPS uses a different port", "It's a 3-digit number starting with 4"},
		Difficulty: models.DifficultyEasy,
		Points:     150,
	},
}

func main() {
	// 解析命令行参数
	configPath := flag.String("config", "config/config.yaml", "配置文件路径")
	action := flag.String("action", "help", "操作类型: reset, init, seed, setup, help")
	flag.Parse()

	slog.SetDefault(slog.New(tint.NewHandler(os.Stderr, &tint.Options{TimeFormat: time.Kitchen})))

	if *action == "help" {
		showHelp()
		return
	}

	if err := config.LoadConfig(*configPath); err != nil {
		slog.Error("加载配置失败", "error", err)
		os.Exit(1)
	}
	if err := db.InitPostgres(); err != nil {
		slog.Error("初始化PostgreSQL失败", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	var err error
	switch *action {
	case "reset":
		err = resetDatabase()
	case "init":
		err = initDatabase()
	case "seed":
		err = seedDemoData(ctx, store.NewPostgresStore(db.DB))
	case "setup":
		err = setup(ctx)
	default:
		err = fmt.Errorf("未知操作: %s", *action)
	}
	if err != nil {
		slog.Error("操作失败", "action", *action, "error", err)
		os.Exit(1)
	}
}

// showHelp 显示帮助信息
func showHelp() {
	fmt.Println("FlagStorm 数据库管理工具")
	fmt.Println("")
	fmt.Println("用法:")
	fmt.Println("  go run ./cmd/dbmanager -action=<操作> [-config=<配置文件>]")
	fmt.Println("")
	fmt.Println("操作:")
	fmt.Println("  reset  - 重置数据库（删除所有表和数据）")
	fmt.Println("  init   - 初始化数据库（创建表结构）")
	fmt.Println("  seed   - 写入模板题目和演示会话")
	fmt.Println("  setup  - 依次执行 reset、init、seed")
	fmt.Println("  help   - 显示此帮助信息")
}

func resetDatabase() error {
	slog.Warn("正在重置数据库，这将删除所有表和数据")
	if err := db.DropAllTables(); err != nil {
		return fmt.Errorf("重置数据库失败: %w", err)
	}
	slog.Info("数据库重置完成")
	return nil
}

func initDatabase() error {
	if err := db.InitAllTables(); err != nil {
		return fmt.Errorf("初始化数据库表失败: %w", err)
	}
	slog.Info("数据库初始化完成")
	return nil
}

// seedDemoData 模板为空时写入模板，演示会话不存在时创建
func seedDemoData(ctx context.Context, st store.Store) error {
	templates, err := st.ListTemplates(ctx)
	if err != nil {
		return err
	}
	if len(templates) > 0 {
		slog.Info("模板已存在，跳过", "count", len(templates))
	} else {
		for _, in := range demoChallenges {
			if _, err := st.AddTemplate(ctx, in); err != nil {
				return fmt.Errorf("写入模板 %q 失败: %w", in.Title, err)
			}
		}
		slog.Info("模板题目已写入", "count", len(demoChallenges))
	}

	_, err = st.GetSessionByCode(ctx, demoSessionCode)
	switch {
	case err == nil:
		slog.Info("演示会话已存在，跳过", "code", demoSessionCode)
		return nil
	case !errors.Is(err, common.ErrNotFound):
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(demoAdminSecret), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	session, err := st.CreateSession(ctx, demoSessionName, demoSessionCode, string(hash), config.GlobalConfig.Game.DefaultMaxPlayers)
	if err != nil {
		return err
	}
	if err := st.SeedSessionChallenges(ctx, session.ID, demoChallenges); err != nil {
		return err
	}
	if err := st.SetSessionStatus(ctx, demoSessionCode, models.SessionActive); err != nil {
		return err
	}

	slog.Info("演示会话已创建", "code", demoSessionCode, "admin_password", demoAdminSecret)
	return nil
}

func setup(ctx context.Context) error {
	if err := resetDatabase(); err != nil {
		return err
	}
	if err := initDatabase(); err != nil {
		return err
	}
	return seedDemoData(ctx, store.NewPostgresStore(db.DB))
}
