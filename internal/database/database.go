package database

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/moxigua/diange/internal/logger"
	_ "modernc.org/sqlite"
)

// DB 是统一的 SQLite 数据库连接，歌单和播放历史共用一个文件。
type DB struct {
	*sql.DB
	path string
}

// Open 打开或创建数据库。
func Open(dbPath string) (*DB, error) {
	if dbPath == "" {
		return nil, fmt.Errorf("数据库路径不能为空")
	}

	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("创建数据库目录失败: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("打开数据库失败: %w", err)
	}

	// WAL 模式，读写并发更友好
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("设置 WAL 模式失败: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("启用外键约束失败: %w", err)
	}

	logger.Infof("[database] 数据库已打开: %s", dbPath)
	return &DB{DB: db, path: dbPath}, nil
}

// Path 返回数据库文件路径。
func (db *DB) Path() string {
	return db.path
}

// Migrate 运行数据库迁移。
func (db *DB) Migrate() error {
	migrations := []string{
		// 用户歌单表，(用户, 平台, 歌曲) 唯一
		`CREATE TABLE IF NOT EXISTS playlist_songs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id TEXT NOT NULL,
			platform TEXT NOT NULL,
			song_id TEXT NOT NULL,
			name TEXT NOT NULL,
			artists TEXT DEFAULT '',
			duration_ms INTEGER DEFAULT 0,
			cover_url TEXT DEFAULT '',
			added_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			UNIQUE(user_id, platform, song_id)
		)`,
		// 播放历史表
		`CREATE TABLE IF NOT EXISTS play_history (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id TEXT NOT NULL,
			platform TEXT NOT NULL,
			song_id TEXT NOT NULL,
			name TEXT NOT NULL,
			artists TEXT DEFAULT '',
			play_count INTEGER DEFAULT 1,
			played_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			UNIQUE(user_id, platform, song_id)
		)`,
	}

	for _, m := range migrations {
		if _, err := db.Exec(m); err != nil {
			return fmt.Errorf("数据库迁移失败: %w", err)
		}
	}

	indexes := []string{
		`CREATE INDEX IF NOT EXISTS idx_playlist_songs_user ON playlist_songs(user_id)`,
		`CREATE INDEX IF NOT EXISTS idx_play_history_user ON play_history(user_id, played_at)`,
	}
	for _, idx := range indexes {
		if _, err := db.Exec(idx); err != nil {
			logger.Warnf("[database] 创建索引失败: %v", err)
		}
	}

	logger.Infof("[database] 数据库迁移完成")
	return nil
}

// Close 关闭数据库连接。
func (db *DB) Close() error {
	if db.DB != nil {
		return db.DB.Close()
	}
	return nil
}
