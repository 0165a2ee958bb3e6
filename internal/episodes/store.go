// Package episodes reads and writes the on-disk episode store:
//
//	<root>/episodes/<uuid>/
//	  episode.json
//	  step_0.png, step_1.png, ...
//
// The recorder writes episodes; the trainer and tooling read them back.
package episodes

import (
	"encoding/json"
	"fmt"
	"iter"
	"os"
	"path/filepath"
	"sort"

	"go.uber.org/zap"

	"github.com/xkilldash9x/sherpa-cli/api/schemas"
)

// EpisodeFile is the index file inside each episode directory.
const EpisodeFile = "episode.json"

// Store reads episodes from a root data directory.
type Store struct {
	root string
	log  *zap.Logger
}

// NewStore creates a store rooted at the data directory that contains (or
// will contain) the "episodes" subdirectory.
func NewStore(root string, logger *zap.Logger) *Store {
	return &Store{
		root: root,
		log:  logger.Named("episode_store"),
	}
}

// Root returns the store's data directory.
func (s *Store) Root() string { return s.root }

func (s *Store) episodesDir() string {
	return filepath.Join(s.root, "episodes")
}

// Episodes returns a lazy, restartable sequence over every well-formed
// episode in the store. Each range re-walks the directory, so the sequence
// can be consumed more than once. Directories are visited in sorted order.
//
// A malformed episode (unreadable, invalid JSON, missing required fields, or
// non-monotonic step indices) is skipped with a warning; it never aborts the
// walk. A missing episodes directory yields an empty sequence.
func (s *Store) Episodes() iter.Seq[schemas.Episode] {
	return func(yield func(schemas.Episode) bool) {
		dir := s.episodesDir()
		entries, err := os.ReadDir(dir)
		if err != nil {
			if !os.IsNotExist(err) {
				s.log.Warn("Failed to read episodes directory", zap.String("dir", dir), zap.Error(err))
			}
			return
		}
		sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

		for _, entry := range entries {
			if !entry.IsDir() {
				continue
			}
			ep, err := s.readEpisode(entry.Name())
			if err != nil {
				s.log.Warn("Skipping malformed episode",
					zap.String("episode", entry.Name()),
					zap.Error(err))
				continue
			}
			if !yield(ep) {
				return
			}
		}
	}
}

// Filtered wraps Episodes with a domain allowlist derived from each
// episode's initial URL. An empty allowlist passes everything through.
func (s *Store) Filtered(allowlist []string) iter.Seq[schemas.Episode] {
	if len(allowlist) == 0 {
		return s.Episodes()
	}
	return func(yield func(schemas.Episode) bool) {
		for ep := range s.Episodes() {
			if !schemas.HostAllowed(ep.Host(), allowlist) {
				s.log.Debug("Episode excluded by domain allowlist",
					zap.String("episode", ep.ID),
					zap.String("host", ep.Host()))
				continue
			}
			if !yield(ep) {
				return
			}
		}
	}
}

// readEpisode loads and validates a single episode directory.
func (s *Store) readEpisode(id string) (schemas.Episode, error) {
	path := filepath.Join(s.episodesDir(), id, EpisodeFile)
	data, err := os.ReadFile(path)
	if err != nil {
		return schemas.Episode{}, fmt.Errorf("reading %s: %w", EpisodeFile, err)
	}

	var ep schemas.Episode
	if err := json.Unmarshal(data, &ep); err != nil {
		return schemas.Episode{}, fmt.Errorf("parsing %s: %w", EpisodeFile, err)
	}
	ep.ID = id
	if err := ep.Validate(); err != nil {
		return schemas.Episode{}, err
	}
	return ep, nil
}
