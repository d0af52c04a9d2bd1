package store

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-runewidth"
	"github.com/rs/zerolog"

	"promai/internal/common/fsutil"
	"promai/internal/metrics"
	"promai/pkg/types"
)

const (
	fileExt      = ".json"
	idPrefix     = "conv_"
	titleWidth   = 30
	previewWidth = 60
	// DefaultTitle names a conversation before its first user turn.
	DefaultTitle = "New conversation"
)

var (
	// ErrInvalidID is returned for ids that cannot name a file in the store.
	ErrInvalidID = errors.New("invalid conversation id")
	// ErrNotFound is returned when deleting a conversation that does not exist.
	ErrNotFound = errors.New("conversation not found")

	idPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.-]{0,127}$`)
)

// Options tune a Store.
type Options struct {
	// OnRepair receives a notice whenever a damaged record is repaired.
	OnRepair func(*RepairError)
	Logger   *zerolog.Logger
	// NoIndex disables the metadata index used by Metas.
	NoIndex bool
	// Now overrides the clock; used by tests.
	Now func() time.Time
}

// Store keeps one JSON document per conversation under a directory.
// Appends to one id are serialized; different ids proceed independently.
type Store struct {
	dir      string
	onRepair func(*RepairError)
	log      zerolog.Logger
	now      func() time.Time
	index    *metaIndex

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// Open prepares dir (creating it if absent) and returns a Store over it.
func Open(dir string, opts Options) (*Store, error) {
	dir, err := fsutil.ExpandHome(dir)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create conversations dir: %w", err)
	}
	s := &Store{
		dir:      dir,
		onRepair: opts.OnRepair,
		log:      zerolog.Nop(),
		now:      opts.Now,
		locks:    make(map[string]*sync.Mutex),
	}
	if opts.Logger != nil {
		s.log = opts.Logger.With().Str("component", "store").Logger()
	}
	if s.now == nil {
		s.now = time.Now
	}
	if !opts.NoIndex {
		ix, err := openIndex(filepath.Join(dir, indexFile))
		if err != nil {
			s.log.Warn().Err(err).Msg("metadata index unavailable; listing reads every record")
		} else {
			s.index = ix
		}
	}
	return s, nil
}

// Close releases the metadata index.
func (s *Store) Close() error {
	if s.index == nil {
		return nil
	}
	return s.index.Close()
}

// Dir returns the directory holding the records.
func (s *Store) Dir() string { return s.dir }

// ValidateID rejects ids that are empty, contain path separators or would
// escape the store directory.
func ValidateID(id string) error {
	if !idPattern.MatchString(id) || strings.Contains(id, "..") {
		return fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	return nil
}

// NewID returns a fresh conversation id.
func NewID() string {
	return idPrefix + uuid.NewString()
}

// Title derives a conversation title from a user message: whitespace is
// collapsed and the result truncated to 30 display cells.
func Title(content string) string {
	line := strings.Join(strings.Fields(content), " ")
	if line == "" {
		return DefaultTitle
	}
	return runewidth.Truncate(line, titleWidth, "...")
}

func (s *Store) path(id string) string {
	return filepath.Join(s.dir, id+fileExt)
}

func (s *Store) lock(id string) func() {
	s.mu.Lock()
	l, ok := s.locks[id]
	if !ok {
		l = &sync.Mutex{}
		s.locks[id] = l
	}
	s.mu.Unlock()
	l.Lock()
	return l.Unlock
}

// Load returns the conversation stored under id. A missing record yields a
// new empty conversation that is not persisted until the first Append.
// Damaged records are repaired and reported through Options.OnRepair.
func (s *Store) Load(id string) (*types.Conversation, error) {
	if err := ValidateID(id); err != nil {
		return nil, err
	}
	unlock := s.lock(id)
	defer unlock()
	return s.loadLocked(id)
}

func (s *Store) loadLocked(id string) (*types.Conversation, error) {
	p := s.path(id)
	data, err := os.ReadFile(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return s.newConversation(id, ""), nil
		}
		return nil, fmt.Errorf("read conversation %s: %w", id, err)
	}
	conv, derr := decodeConversation(bytes.NewReader(data))
	if derr == nil {
		s.fillDefaults(id, conv)
		return conv, nil
	}
	if len(conv.Turns) > 0 {
		s.fillDefaults(id, conv)
		if err := s.writeLocked(conv); err != nil {
			return nil, fmt.Errorf("persist repaired conversation %s: %w", id, err)
		}
		s.notify(&RepairError{Kind: RepairCorrupt, ID: id, Recovered: len(conv.Turns), Err: derr})
		return conv, nil
	}

	backup := s.backupPath(p)
	if err := os.Rename(p, backup); err != nil {
		return nil, fmt.Errorf("back up unreadable conversation %s: %w", id, err)
	}
	fresh := s.newConversation(id, "")
	if err := s.writeLocked(fresh); err != nil {
		return nil, fmt.Errorf("recreate conversation %s: %w", id, err)
	}
	s.notify(&RepairError{Kind: RepairUnreadable, ID: id, BackupPath: backup, Err: derr})
	return fresh, nil
}

func (s *Store) backupPath(p string) string {
	now := s.now()
	b := p + ".backup_" + strconv.FormatInt(now.Unix(), 10)
	if fsutil.PathExists(b) {
		b = p + ".backup_" + strconv.FormatInt(now.UnixNano(), 10)
	}
	return b
}

func (s *Store) notify(r *RepairError) {
	metrics.IncRepair(string(r.Kind))
	s.log.Warn().Str("event", "repair").Str("kind", string(r.Kind)).Str("id", r.ID).
		Int("recovered", r.Recovered).Str("backup", r.BackupPath).Err(r.Err).Msg("conversation repaired")
	if s.onRepair != nil {
		s.onRepair(r)
	}
}

func (s *Store) newConversation(id, title string) *types.Conversation {
	now := s.now().UTC()
	if title == "" {
		title = DefaultTitle
	}
	return &types.Conversation{ID: id, Title: title, CreatedAt: now, UpdatedAt: now, Turns: []types.Turn{}}
}

// fillDefaults makes a recovered record self-consistent.
func (s *Store) fillDefaults(id string, conv *types.Conversation) {
	conv.ID = id
	if conv.Turns == nil {
		conv.Turns = []types.Turn{}
	}
	if conv.Title == "" {
		conv.Title = DefaultTitle
		for _, t := range conv.Turns {
			if t.Role == types.RoleUser {
				conv.Title = Title(t.Content)
				break
			}
		}
	}
	if conv.CreatedAt.IsZero() {
		if len(conv.Turns) > 0 {
			conv.CreatedAt = conv.Turns[0].Timestamp
		} else {
			conv.CreatedAt = s.now().UTC()
		}
	}
	if conv.UpdatedAt.IsZero() {
		conv.UpdatedAt = conv.CreatedAt
	}
}

// Append adds turn to the conversation id, creating it if needed. The
// record is rewritten through a temp file and rename, so readers see
// either the old or the new record.
func (s *Store) Append(id string, turn types.Turn) error {
	if err := ValidateID(id); err != nil {
		return err
	}
	if !turn.Role.Valid() {
		return fmt.Errorf("append to %s: unknown role %q", id, turn.Role)
	}
	unlock := s.lock(id)
	defer unlock()
	conv, err := s.loadLocked(id)
	if err != nil {
		return err
	}
	now := s.now().UTC()
	if turn.Timestamp.IsZero() {
		turn.Timestamp = now
	}
	if turn.Role == types.RoleUser && conv.Title == DefaultTitle {
		conv.Title = Title(turn.Content)
	}
	conv.Turns = append(conv.Turns, turn)
	conv.UpdatedAt = now
	if err := s.writeLocked(conv); err != nil {
		return fmt.Errorf("append to %s: %w", id, err)
	}
	return nil
}

// Create persists a new empty conversation and returns it.
func (s *Store) Create(title string) (*types.Conversation, error) {
	id := NewID()
	unlock := s.lock(id)
	defer unlock()
	conv := s.newConversation(id, strings.TrimSpace(title))
	if err := s.writeLocked(conv); err != nil {
		return nil, fmt.Errorf("create conversation: %w", err)
	}
	return conv, nil
}

// Delete removes the record for id.
func (s *Store) Delete(id string) error {
	if err := ValidateID(id); err != nil {
		return err
	}
	unlock := s.lock(id)
	defer unlock()
	if err := os.Remove(s.path(id)); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return err
	}
	if s.index != nil {
		s.index.delete(id)
	}
	s.log.Info().Str("event", "delete").Str("id", id).Msg("conversation deleted")
	return nil
}

// List returns the ids of stored conversations, most recently modified first.
func (s *Store) List() ([]string, error) {
	entries, err := s.scan()
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(entries))
	for i, e := range entries {
		ids[i] = e.id
	}
	return ids, nil
}

type dirEntry struct {
	id   string
	info fs.FileInfo
}

func (s *Store) scan() ([]dirEntry, error) {
	des, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	out := make([]dirEntry, 0, len(des))
	for _, de := range des {
		name := de.Name()
		if de.IsDir() || strings.HasPrefix(name, ".") || !strings.HasSuffix(name, fileExt) {
			continue
		}
		id := strings.TrimSuffix(name, fileExt)
		if ValidateID(id) != nil {
			continue
		}
		fi, err := de.Info()
		if err != nil {
			continue
		}
		out = append(out, dirEntry{id: id, info: fi})
	}
	sort.SliceStable(out, func(i, j int) bool {
		mi, mj := out[i].info.ModTime(), out[j].info.ModTime()
		if mi.Equal(mj) {
			return out[i].id < out[j].id
		}
		return mi.After(mj)
	})
	return out, nil
}

func (s *Store) writeLocked(conv *types.Conversation) error {
	if conv.Turns == nil {
		conv.Turns = []types.Turn{}
	}
	b, err := json.MarshalIndent(conv, "", "  ")
	if err != nil {
		return err
	}
	b = append(b, '\n')
	return fsutil.WriteFileAtomic(s.path(conv.ID), b, 0o644)
}

// metaOf summarizes conv for listings.
func metaOf(conv *types.Conversation) types.ConversationMeta {
	m := types.ConversationMeta{
		ID:        conv.ID,
		Title:     conv.Title,
		UpdatedAt: conv.UpdatedAt,
		TurnCount: len(conv.Turns),
	}
	if n := len(conv.Turns); n > 0 {
		line := strings.Join(strings.Fields(conv.Turns[n-1].Content), " ")
		m.Preview = runewidth.Truncate(line, previewWidth, "...")
	}
	return m
}
