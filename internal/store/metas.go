package store

import (
	"os"

	"golang.org/x/sync/errgroup"

	"promai/pkg/types"
)

// metaWorkers bounds concurrent record reads in Metas.
const metaWorkers = 4

// Metas returns listing metadata for every stored conversation, most
// recently modified first. Records are read (and repaired if needed) only
// when the index has no up to date entry.
func (s *Store) Metas() ([]types.ConversationMeta, error) {
	entries, err := s.scan()
	if err != nil {
		return nil, err
	}
	out := make([]types.ConversationMeta, len(entries))
	keep := make([]bool, len(entries))
	var g errgroup.Group
	g.SetLimit(metaWorkers)
	for i, e := range entries {
		g.Go(func() error {
			meta, ok := s.metaFor(e)
			out[i], keep[i] = meta, ok
			return nil
		})
	}
	_ = g.Wait()
	metas := out[:0]
	for i, m := range out {
		if keep[i] {
			metas = append(metas, m)
		}
	}
	return metas, nil
}

func (s *Store) metaFor(e dirEntry) (types.ConversationMeta, bool) {
	if s.index != nil {
		if m, ok := s.index.get(e.id, e.info); ok {
			return m, true
		}
	}
	conv, err := s.Load(e.id)
	if err != nil {
		s.log.Debug().Err(err).Str("id", e.id).Msg("skipping unreadable conversation")
		return types.ConversationMeta{}, false
	}
	meta := metaOf(conv)
	if s.index != nil {
		if fi, err := os.Stat(s.path(e.id)); err == nil {
			if err := s.index.put(e.id, fi, meta); err != nil {
				s.log.Debug().Err(err).Str("id", e.id).Msg("updating metadata index")
			}
		}
	}
	return meta, true
}
