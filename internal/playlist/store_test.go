package playlist

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/moxigua/diange/internal/database"
	"github.com/moxigua/diange/internal/music"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("打开数据库失败: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := db.Migrate(); err != nil {
		t.Fatalf("迁移失败: %v", err)
	}
	return NewStore(db)
}

func TestStore_AddAndList(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	song := music.Song{ID: "123", Name: "晴天", Artists: "周杰伦", DurationMs: 269000}
	added, err := store.Add(ctx, "user1", song, "netease")
	if err != nil {
		t.Fatalf("Add 失败: %v", err)
	}
	if !added {
		t.Fatal("首次收藏应返回 true")
	}

	// 重复收藏
	added, err = store.Add(ctx, "user1", song, "netease")
	if err != nil {
		t.Fatalf("重复 Add 失败: %v", err)
	}
	if added {
		t.Error("重复收藏应返回 false")
	}

	// 同曲不同平台是不同身份
	added, err = store.Add(ctx, "user1", song, "qq")
	if err != nil {
		t.Fatalf("跨平台 Add 失败: %v", err)
	}
	if !added {
		t.Error("不同平台的同名歌曲应可分别收藏")
	}

	entries, err := store.List(ctx, "user1")
	if err != nil {
		t.Fatalf("List 失败: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("歌单长度: got %d, want 2", len(entries))
	}
	if entries[0].Song.Name != "晴天" || entries[0].Platform != "netease" {
		t.Errorf("第一项: %+v", entries[0])
	}
	if entries[0].Song.DurationMs != 269000 {
		t.Errorf("时长应被保存: got %d", entries[0].Song.DurationMs)
	}
}

func TestStore_Remove(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	song := music.Song{ID: "123", Name: "晴天", Artists: "周杰伦"}
	if _, err := store.Add(ctx, "user1", song, "netease"); err != nil {
		t.Fatalf("Add 失败: %v", err)
	}

	removed, err := store.Remove(ctx, "user1", "123", "netease")
	if err != nil {
		t.Fatalf("Remove 失败: %v", err)
	}
	if !removed {
		t.Fatal("存在的歌曲应移除成功")
	}

	removed, err = store.Remove(ctx, "user1", "123", "netease")
	if err != nil {
		t.Fatalf("重复 Remove 失败: %v", err)
	}
	if removed {
		t.Error("已移除的歌曲再次移除应返回 false")
	}
}

func TestStore_IsEmpty(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	empty, err := store.IsEmpty(ctx, "user1")
	if err != nil {
		t.Fatalf("IsEmpty 失败: %v", err)
	}
	if !empty {
		t.Fatal("新用户歌单应为空")
	}

	if _, err := store.Add(ctx, "user1", music.Song{ID: "1", Name: "歌"}, "netease"); err != nil {
		t.Fatalf("Add 失败: %v", err)
	}

	empty, err = store.IsEmpty(ctx, "user1")
	if err != nil {
		t.Fatalf("IsEmpty 失败: %v", err)
	}
	if empty {
		t.Error("收藏后歌单不应为空")
	}

	// 歌单按用户隔离
	empty, err = store.IsEmpty(ctx, "user2")
	if err != nil {
		t.Fatalf("IsEmpty 失败: %v", err)
	}
	if !empty {
		t.Error("其他用户的歌单应为空")
	}
}

func TestStore_PlayHistory(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	song := music.Song{ID: "123", Name: "晴天", Artists: "周杰伦"}
	for i := 0; i < 3; i++ {
		if err := store.RecordPlay(ctx, "user1", song, "netease"); err != nil {
			t.Fatalf("RecordPlay 失败: %v", err)
		}
	}
	if err := store.RecordPlay(ctx, "user1", music.Song{ID: "456", Name: "夜曲"}, "netease"); err != nil {
		t.Fatalf("RecordPlay 失败: %v", err)
	}

	entries, err := store.RecentPlays(ctx, "user1", 10)
	if err != nil {
		t.Fatalf("RecentPlays 失败: %v", err)
	}
	// 同曲重复播放只占一条记录
	if len(entries) != 2 {
		t.Fatalf("历史记录数: got %d, want 2", len(entries))
	}

	entries, err = store.RecentPlays(ctx, "user1", 1)
	if err != nil {
		t.Fatalf("RecentPlays 失败: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("limit 应生效: got %d", len(entries))
	}
}
