package fsops

import (
	"strconv"
	"strings"

	"github.com/coldfront/dfs/internal/dfserr"
)

// decodeDir parses the directory extent format of spec.md §3/§6: one
// line per entry, "<name> <decimal-inum>\n", order irrelevant, names
// unique. A malformed line is skipped rather than failing the whole
// read — the original format has no escaping, so a stray blank line
// at EOF is the only expected irregularity.
func decodeDir(b []byte) map[string]uint64 {
	entries := make(map[string]uint64)
	for _, line := range strings.Split(string(b), "\n") {
		line = strings.TrimRight(line, "\r")
		if line == "" {
			continue
		}
		sp := strings.LastIndexByte(line, ' ')
		if sp < 0 {
			continue
		}
		name := line[:sp]
		inum, err := strconv.ParseUint(line[sp+1:], 10, 64)
		if err != nil {
			continue
		}
		entries[name] = inum
	}
	return entries
}

// encodeDir renders entries back to the directory extent format.
func encodeDir(entries map[string]uint64) []byte {
	var b strings.Builder
	for name, inum := range entries {
		b.WriteString(name)
		b.WriteByte(' ')
		b.WriteString(strconv.FormatUint(inum, 10))
		b.WriteByte('\n')
	}
	return []byte(b.String())
}

// readDir fetches and decodes the directory extent at ino. Caller
// must hold the lock for ino.
func (fs *FS) readDir(ino uint64) (map[string]uint64, error) {
	b, err := fs.extents.Get(ino)
	if err != nil {
		return nil, err
	}
	return decodeDir(b), nil
}

// writeDir encodes and writes back entries as ino's directory extent,
// deferring the actual server put to the next Flush(ino). Caller must
// hold the lock for ino.
func (fs *FS) writeDir(ino uint64, entries map[string]uint64) {
	fs.extents.Put(ino, encodeDir(entries))
}

// requireDir is a guard used by ops that need ino to actually be a
// directory inum (not merely that its extent parses as one).
func requireDir(ino uint64) error {
	if IsFile(ino) {
		return dfserr.New(dfserr.IOERR, "not a directory")
	}
	return nil
}

// requireFile mirrors requireDir for file-only ops.
func requireFile(ino uint64) error {
	if IsDir(ino) {
		return dfserr.New(dfserr.IOERR, "not a file")
	}
	return nil
}
