// Package playlist 基于 SQLite 的用户歌单与播放历史。
// 歌曲身份始终是 (平台, 歌曲ID) 二元组，不做跨平台等价。
package playlist

import (
	"context"
	"fmt"

	"github.com/moxigua/diange/internal/database"
	"github.com/moxigua/diange/internal/music"
)

// Entry 歌单中的一项。
type Entry struct {
	Song     music.Song
	Platform string
}

// Store 歌单存储。
type Store struct {
	db *database.DB
}

// NewStore 创建歌单存储。
func NewStore(db *database.DB) *Store {
	return &Store{db: db}
}

// Add 把歌曲加入用户歌单。已存在时返回 false。
func (s *Store) Add(ctx context.Context, userID string, song music.Song, platform string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO playlist_songs (user_id, platform, song_id, name, artists, duration_ms, cover_url)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		userID, platform, song.ID, song.Name, song.Artists, song.DurationMs, song.CoverURL)
	if err != nil {
		return false, fmt.Errorf("收藏歌曲失败: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("收藏歌曲失败: %w", err)
	}
	return n > 0, nil
}

// Remove 从用户歌单移除歌曲。不存在时返回 false。
func (s *Store) Remove(ctx context.Context, userID, songID, platform string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM playlist_songs WHERE user_id = ? AND platform = ? AND song_id = ?`,
		userID, platform, songID)
	if err != nil {
		return false, fmt.Errorf("取消收藏失败: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("取消收藏失败: %w", err)
	}
	return n > 0, nil
}

// List 按收藏顺序返回用户歌单。
func (s *Store) List(ctx context.Context, userID string) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT platform, song_id, name, artists, duration_ms, cover_url
		 FROM playlist_songs WHERE user_id = ? ORDER BY added_at, id`,
		userID)
	if err != nil {
		return nil, fmt.Errorf("读取歌单失败: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.Platform, &e.Song.ID, &e.Song.Name, &e.Song.Artists, &e.Song.DurationMs, &e.Song.CoverURL); err != nil {
			return nil, fmt.Errorf("读取歌单失败: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// IsEmpty 用户歌单是否为空。
func (s *Store) IsEmpty(ctx context.Context, userID string) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM playlist_songs WHERE user_id = ?`, userID).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("读取歌单失败: %w", err)
	}
	return count == 0, nil
}

// RecordPlay 记录一次成功投递，同曲重复播放累加次数。
func (s *Store) RecordPlay(ctx context.Context, userID string, song music.Song, platform string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO play_history (user_id, platform, song_id, name, artists)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(user_id, platform, song_id)
		 DO UPDATE SET play_count = play_count + 1, played_at = CURRENT_TIMESTAMP`,
		userID, platform, song.ID, song.Name, song.Artists)
	if err != nil {
		return fmt.Errorf("记录播放历史失败: %w", err)
	}
	return nil
}

// RecentPlays 返回用户最近播放的歌曲。
func (s *Store) RecentPlays(ctx context.Context, userID string, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT platform, song_id, name, artists FROM play_history
		 WHERE user_id = ? ORDER BY played_at DESC LIMIT ?`,
		userID, limit)
	if err != nil {
		return nil, fmt.Errorf("读取播放历史失败: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.Platform, &e.Song.ID, &e.Song.Name, &e.Song.Artists); err != nil {
			return nil, fmt.Errorf("读取播放历史失败: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
