package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"promai/pkg/types"
)

type repairLog struct {
	mu      sync.Mutex
	notices []*RepairError
}

func (r *repairLog) add(e *RepairError) {
	r.mu.Lock()
	r.notices = append(r.notices, e)
	r.mu.Unlock()
}

func (r *repairLog) all() []*RepairError {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*RepairError(nil), r.notices...)
}

func newTestStore(t *testing.T) (*Store, *repairLog) {
	t.Helper()
	rl := &repairLog{}
	s, err := Open(t.TempDir(), Options{OnRepair: rl.add})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s, rl
}

func turn(i int) types.Turn {
	role := types.RoleUser
	if i%2 == 1 {
		role = types.RoleAssistant
	}
	return types.Turn{
		Role:      role,
		Content:   fmt.Sprintf("message %d", i),
		Timestamp: time.Date(2025, 1, 1, 0, 0, i, 0, time.UTC),
	}
}

func TestOpen_CreatesDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "a", "b")
	s, err := Open(dir, Options{NoIndex: true})
	require.NoError(t, err)
	fi, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, fi.IsDir())
	assert.Equal(t, dir, s.Dir())
}

func TestLoad_MissingIsEmptyAndNotPersisted(t *testing.T) {
	s, rl := newTestStore(t)
	conv, err := s.Load("c1")
	require.NoError(t, err)
	assert.Equal(t, "c1", conv.ID)
	assert.Empty(t, conv.Turns)
	assert.Equal(t, DefaultTitle, conv.Title)

	ids, err := s.List()
	require.NoError(t, err)
	assert.Empty(t, ids)
	assert.Empty(t, rl.all())
}

func TestAppend_RoundTrip(t *testing.T) {
	for _, n := range []int{0, 1, 2, 7, 100} {
		t.Run(fmt.Sprintf("%d_turns", n), func(t *testing.T) {
			s, rl := newTestStore(t)
			var want []types.Turn
			for i := 0; i < n; i++ {
				tr := turn(i)
				require.NoError(t, s.Append("c1", tr))
				want = append(want, tr)
			}
			conv, err := s.Load("c1")
			require.NoError(t, err)
			require.Len(t, conv.Turns, n)
			for i := range want {
				assert.Equal(t, want[i].Role, conv.Turns[i].Role)
				assert.Equal(t, want[i].Content, conv.Turns[i].Content)
				assert.True(t, want[i].Timestamp.Equal(conv.Turns[i].Timestamp))
			}
			if n > 0 {
				assert.Equal(t, "message 0", conv.Title)
			}
			assert.Empty(t, rl.all())
		})
	}
}

func TestAppend_FileIsIndentedWithFixedKeyOrder(t *testing.T) {
	s, _ := newTestStore(t)
	require.NoError(t, s.Append("c1", turn(0)))
	data, err := os.ReadFile(filepath.Join(s.Dir(), "c1.json"))
	require.NoError(t, err)
	text := string(data)
	order := []string{`"id"`, `"title"`, `"created_at"`, `"updated_at"`, `"turns"`, `"role"`, `"content"`, `"timestamp"`}
	last := -1
	for _, k := range order {
		i := strings.Index(text, k)
		require.Greater(t, i, last, "key %s out of order", k)
		last = i
	}
	assert.Contains(t, text, "\n  \"id\"")
}

func TestAppend_RejectsUnknownRole(t *testing.T) {
	s, _ := newTestStore(t)
	err := s.Append("c1", types.Turn{Role: "system", Content: "x"})
	assert.Error(t, err)
}

// damaged writes a record with n well-formed turns followed by a turn cut
// off mid-content.
func damaged(t *testing.T, path string, n int) {
	t.Helper()
	conv := types.Conversation{ID: "c1", Title: "message 0"}
	for i := 0; i <= n; i++ {
		conv.Turns = append(conv.Turns, turn(i))
	}
	b, err := json.MarshalIndent(conv, "", "  ")
	require.NoError(t, err)
	cut := strings.Index(string(b), fmt.Sprintf("message %d", n))
	require.Positive(t, cut)
	require.NoError(t, os.WriteFile(path, b[:cut+3], 0o644))
}

func TestLoad_RepairsToLongestValidPrefix(t *testing.T) {
	s, rl := newTestStore(t)
	path := filepath.Join(s.Dir(), "c1.json")
	damaged(t, path, 3)

	conv, err := s.Load("c1")
	require.NoError(t, err)
	require.Len(t, conv.Turns, 3)
	for i := 0; i < 3; i++ {
		assert.Equal(t, fmt.Sprintf("message %d", i), conv.Turns[i].Content)
	}
	notices := rl.all()
	require.Len(t, notices, 1)
	assert.Equal(t, RepairCorrupt, notices[0].Kind)
	assert.Equal(t, 3, notices[0].Recovered)

	// The repaired record is persisted; a second load is clean and identical.
	again, err := s.Load("c1")
	require.NoError(t, err)
	assert.Equal(t, conv.Turns, again.Turns)
	assert.Equal(t, conv.Title, again.Title)
	assert.Len(t, rl.all(), 1)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, json.Valid(data))
}

func TestLoad_TrailingGarbageKeepsAllTurns(t *testing.T) {
	s, rl := newTestStore(t)
	require.NoError(t, s.Append("c1", turn(0)))
	require.NoError(t, s.Append("c1", turn(1)))
	path := filepath.Join(s.Dir(), "c1.json")
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = f.WriteString("}\x00\x00garbage")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	conv, err := s.Load("c1")
	require.NoError(t, err)
	assert.Len(t, conv.Turns, 2)
	require.Len(t, rl.all(), 1)
	assert.Equal(t, RepairCorrupt, rl.all()[0].Kind)
}

func TestLoad_UnreadableIsBackedUp(t *testing.T) {
	now := time.Unix(1700000000, 0)
	rl := &repairLog{}
	s, err := Open(t.TempDir(), Options{OnRepair: rl.add, Now: func() time.Time { return now }, NoIndex: true})
	require.NoError(t, err)
	path := filepath.Join(s.Dir(), "c1.json")
	garbage := []byte("\x00\x01 this is not json")
	require.NoError(t, os.WriteFile(path, garbage, 0o644))

	conv, err := s.Load("c1")
	require.NoError(t, err)
	assert.Empty(t, conv.Turns)

	backup := path + ".backup_1700000000"
	got, err := os.ReadFile(backup)
	require.NoError(t, err)
	assert.Equal(t, garbage, got)

	notices := rl.all()
	require.Len(t, notices, 1)
	assert.Equal(t, RepairUnreadable, notices[0].Kind)
	assert.Equal(t, backup, notices[0].BackupPath)
	assert.Contains(t, notices[0].Error(), backup)

	// The fresh record replaces the original and accepts appends.
	require.NoError(t, s.Append("c1", turn(0)))
	conv, err = s.Load("c1")
	require.NoError(t, err)
	assert.Len(t, conv.Turns, 1)
	assert.Len(t, rl.all(), 1)
}

func TestLoad_MalformedFirstTurnIsUnreadable(t *testing.T) {
	s, rl := newTestStore(t)
	path := filepath.Join(s.Dir(), "c1.json")
	doc := `{"id":"c1","title":"t","turns":[{"role":"user","content":"hi","timestamp":"yesterday"}]}`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	conv, err := s.Load("c1")
	require.NoError(t, err)
	assert.Empty(t, conv.Turns)
	require.Len(t, rl.all(), 1)
	assert.Equal(t, RepairUnreadable, rl.all()[0].Kind)
}

func TestDecodeConversation_StopsAtUnknownRole(t *testing.T) {
	doc := `{"id":"c1","turns":[
		{"role":"user","content":"a","timestamp":"2025-01-01T00:00:00Z"},
		{"role":"wizard","content":"b","timestamp":"2025-01-01T00:00:01Z"},
		{"role":"assistant","content":"c","timestamp":"2025-01-01T00:00:02Z"}]}`
	conv, err := decodeConversation(strings.NewReader(doc))
	assert.Error(t, err)
	require.Len(t, conv.Turns, 1)
	assert.Equal(t, "a", conv.Turns[0].Content)
}

func TestDecodeConversation_IgnoresUnknownFields(t *testing.T) {
	doc := `{"id":"c1","model":{"name":"x"},"turns":[],"extra":[1,2,3]}`
	conv, err := decodeConversation(strings.NewReader(doc))
	require.NoError(t, err)
	assert.Equal(t, "c1", conv.ID)
}

func TestAppend_ConcurrentSameID(t *testing.T) {
	s, _ := newTestStore(t)
	const writers, each = 8, 10
	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < each; i++ {
				tr := types.Turn{Role: types.RoleUser, Content: fmt.Sprintf("w%d-%d", w, i)}
				assert.NoError(t, s.Append("shared", tr))
			}
		}(w)
	}
	wg.Wait()
	conv, err := s.Load("shared")
	require.NoError(t, err)
	assert.Len(t, conv.Turns, writers*each)

	// Each writer's turns keep their relative order.
	next := make(map[string]int)
	for _, tr := range conv.Turns {
		var w, i int
		_, err := fmt.Sscanf(tr.Content, "w%d-%d", &w, &i)
		require.NoError(t, err)
		key := fmt.Sprint(w)
		assert.Equal(t, next[key], i)
		next[key] = i + 1
	}
}

func TestAppend_ConcurrentDifferentIDs(t *testing.T) {
	s, _ := newTestStore(t)
	var wg sync.WaitGroup
	for c := 0; c < 5; c++ {
		wg.Add(1)
		go func(c int) {
			defer wg.Done()
			id := fmt.Sprintf("conv-%d", c)
			for i := 0; i < 5; i++ {
				assert.NoError(t, s.Append(id, turn(i)))
			}
		}(c)
	}
	wg.Wait()
	ids, err := s.List()
	require.NoError(t, err)
	assert.Len(t, ids, 5)
	for _, id := range ids {
		conv, err := s.Load(id)
		require.NoError(t, err)
		assert.Len(t, conv.Turns, 5)
	}
}

func TestValidateID(t *testing.T) {
	for _, id := range []string{"c1", "conv_123", NewID(), "a.b-c_d"} {
		assert.NoError(t, ValidateID(id), id)
	}
	for _, id := range []string{"", "../etc/passwd", "a/b", `a\b`, ".hidden", "a..b", strings.Repeat("x", 200)} {
		assert.ErrorIs(t, ValidateID(id), ErrInvalidID, id)
	}
	s, _ := newTestStore(t)
	_, err := s.Load("../x")
	assert.ErrorIs(t, err, ErrInvalidID)
	assert.ErrorIs(t, s.Append("a/b", turn(0)), ErrInvalidID)
}

func TestCreateDeleteList(t *testing.T) {
	s, _ := newTestStore(t)
	a, err := s.Create("")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(a.ID, "conv_"))
	assert.Equal(t, DefaultTitle, a.Title)
	time.Sleep(10 * time.Millisecond)
	b, err := s.Create("Second")
	require.NoError(t, err)

	ids, err := s.List()
	require.NoError(t, err)
	assert.Equal(t, []string{b.ID, a.ID}, ids)

	// Appending to a moves it to the front.
	time.Sleep(10 * time.Millisecond)
	require.NoError(t, s.Append(a.ID, turn(0)))
	ids, err = s.List()
	require.NoError(t, err)
	assert.Equal(t, []string{a.ID, b.ID}, ids)

	require.NoError(t, s.Delete(a.ID))
	assert.ErrorIs(t, s.Delete(a.ID), ErrNotFound)
	ids, err = s.List()
	require.NoError(t, err)
	assert.Equal(t, []string{b.ID}, ids)
}

func TestMetas_ReflectsAppends(t *testing.T) {
	s, _ := newTestStore(t)
	require.NoError(t, s.Append("c1", types.Turn{Role: types.RoleUser, Content: "What is the capital of France, and why?"}))
	metas, err := s.Metas()
	require.NoError(t, err)
	require.Len(t, metas, 1)
	assert.Equal(t, 1, metas[0].TurnCount)
	assert.Equal(t, "What is the capital of Fran...", metas[0].Title)

	require.NoError(t, s.Append("c1", types.Turn{Role: types.RoleAssistant, Content: "Paris."}))
	metas, err = s.Metas()
	require.NoError(t, err)
	require.Len(t, metas, 1)
	assert.Equal(t, 2, metas[0].TurnCount)
	assert.Equal(t, "Paris.", metas[0].Preview)
}

func TestTitle(t *testing.T) {
	assert.Equal(t, DefaultTitle, Title("  \n "))
	assert.Equal(t, "hello world", Title("hello\n  world"))
	long := Title(strings.Repeat("日本語", 20))
	assert.LessOrEqual(t, len([]rune(long)), 30)
	assert.True(t, strings.HasSuffix(long, "..."))
}

func TestWatch_ReportsWrites(t *testing.T) {
	s, _ := newTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	changes, err := s.Watch(ctx)
	require.NoError(t, err)

	require.NoError(t, s.Append("c1", turn(0)))
	select {
	case c := <-changes:
		assert.Equal(t, "c1", c.ID)
	case <-time.After(2 * time.Second):
		t.Fatal("no change reported")
	}
	cancel()
	for range changes {
	}
}

func TestRepairError_Unwrap(t *testing.T) {
	cause := errors.New("unexpected EOF")
	e := &RepairError{Kind: RepairCorrupt, ID: "c1", Recovered: 2, Err: cause}
	assert.ErrorIs(t, e, cause)
	assert.Contains(t, e.Error(), "recovered 2")
}
