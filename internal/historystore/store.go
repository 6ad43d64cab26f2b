// Package historystore implements the append-only, shard-based record
// log that backs every session's conversation history. Records are
// never mutated or deleted: each shard is a JSON-Lines file named by
// its base global index, and a record's global index is permanent once
// assigned.
package historystore

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/jurriaanhof/aico-go/internal/aicoerr"
	"github.com/jurriaanhof/aico-go/internal/models"
)

// ShardSize is the number of records held per shard file before a new
// one is started.
const ShardSize = 10_000

type state struct {
	lastBase int
	count    int
}

// Store is an append-only, sharded record log rooted at a directory.
// It is not safe for concurrent use from multiple goroutines without
// external synchronization (matching the single-writer assumption of
// the session it backs).
type Store struct {
	root      string
	shardSize int
	state     *state
}

// New creates a Store rooted at dir using the default shard size.
func New(dir string) *Store {
	return &Store{root: dir, shardSize: ShardSize}
}

// NewWithShardSize allows tests to exercise shard-boundary behavior
// without writing 10,000 records.
func NewWithShardSize(dir string, shardSize int) *Store {
	return &Store{root: dir, shardSize: shardSize}
}

// Append writes record to the log and returns its global index.
func (s *Store) Append(record models.HistoryRecord) (int, error) {
	if s.state == nil {
		if err := s.refreshState(); err != nil {
			return 0, err
		}
	}

	st := *s.state
	if st.count >= s.shardSize {
		st.lastBase += s.shardSize
		st.count = 0
	}

	index := st.lastBase + st.count
	shardPath := s.shardPath(st.lastBase)

	if err := os.MkdirAll(filepath.Dir(shardPath), 0o700); err != nil {
		return 0, aicoerr.IO("create shard dir", err)
	}

	f, err := os.OpenFile(shardPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return 0, aicoerr.IO("open shard", err)
	}
	defer f.Close()

	line, err := json.Marshal(record)
	if err != nil {
		return 0, aicoerr.Serialization("marshal history record", err)
	}
	line = append(line, '\n')
	if _, err := f.Write(line); err != nil {
		return 0, aicoerr.IO("append to shard", err)
	}

	st.count++
	s.state = &st

	return index, nil
}

// AppendMany appends records in order, returning their assigned indices.
func (s *Store) AppendMany(records []models.HistoryRecord) ([]int, error) {
	indices := make([]int, 0, len(records))
	for _, r := range records {
		idx, err := s.Append(r)
		if err != nil {
			return indices, err
		}
		indices = append(indices, idx)
	}
	return indices, nil
}

// ReadMany returns the records at the given global indices, in the
// order requested. Duplicate indices are allowed and resolved
// independently.
func (s *Store) ReadMany(indices []int) ([]models.HistoryRecord, error) {
	if len(indices) == 0 {
		return nil, nil
	}

	byShard := make(map[int]map[int]bool)
	for _, idx := range indices {
		base := (idx / s.shardSize) * s.shardSize
		offset := idx % s.shardSize
		if byShard[base] == nil {
			byShard[base] = make(map[int]bool)
		}
		byShard[base][offset] = true
	}

	recordsByIndex := make(map[int]models.HistoryRecord)

	bases := make([]int, 0, len(byShard))
	for base := range byShard {
		bases = append(bases, base)
	}
	sort.Ints(bases)

	for _, base := range bases {
		offsets := byShard[base]
		path := s.shardPath(base)
		if _, err := os.Stat(path); err != nil {
			return nil, aicoerr.Session(fmt.Sprintf("shard missing: %s", path), err)
		}

		f, err := os.Open(path)
		if err != nil {
			return nil, aicoerr.IO("open shard", err)
		}

		maxNeeded := 0
		for off := range offsets {
			if off > maxNeeded {
				maxNeeded = off
			}
		}

		reader := bufio.NewReaderSize(f, 64*1024)
		currentLine := 0
		for {
			lineBytes, readErr := reader.ReadBytes('\n')
			if len(lineBytes) > 0 && offsets[currentLine] {
				var rec models.HistoryRecord
				if err := json.Unmarshal(trimNewline(lineBytes), &rec); err != nil {
					f.Close()
					return nil, aicoerr.Serialization("unmarshal history record", err)
				}
				recordsByIndex[base+currentLine] = rec
			}
			if readErr != nil {
				break
			}
			if currentLine >= maxNeeded {
				break
			}
			currentLine++
		}
		f.Close()
	}

	results := make([]models.HistoryRecord, 0, len(indices))
	for _, idx := range indices {
		rec, ok := recordsByIndex[idx]
		if !ok {
			return nil, aicoerr.Session(fmt.Sprintf("record id %d not found", idx), nil)
		}
		results = append(results, rec)
	}

	return results, nil
}

func trimNewline(b []byte) []byte {
	return []byte(strings.TrimRight(string(b), "\n"))
}

func (s *Store) shardPath(base int) string {
	return filepath.Join(s.root, strconv.Itoa(base)+".jsonl")
}

func (s *Store) refreshState() error {
	if _, err := os.Stat(s.root); os.IsNotExist(err) {
		s.state = &state{}
		return nil
	} else if err != nil {
		return aicoerr.IO("stat store root", err)
	}

	entries, err := os.ReadDir(s.root)
	if err != nil {
		return aicoerr.IO("read store root", err)
	}

	maxBase := -1
	for _, e := range entries {
		name := e.Name()
		if !strings.HasSuffix(name, ".jsonl") {
			continue
		}
		stem := strings.TrimSuffix(name, ".jsonl")
		base, err := strconv.Atoi(stem)
		if err != nil {
			continue
		}
		if base > maxBase {
			maxBase = base
		}
	}

	base := 0
	if maxBase >= 0 {
		base = maxBase
	}
	path := s.shardPath(base)

	count := 0
	if _, err := os.Stat(path); err == nil {
		f, err := os.Open(path)
		if err != nil {
			return aicoerr.IO("open shard", err)
		}
		defer f.Close()
		reader := bufio.NewReaderSize(f, 64*1024)
		for {
			_, err := reader.ReadBytes('\n')
			if err != nil {
				break
			}
			count++
		}
	}

	s.state = &state{lastBase: base, count: count}
	return nil
}
