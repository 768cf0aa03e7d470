package fsops

import (
	"encoding/binary"

	"github.com/google/uuid"

	"github.com/coldfront/dfs/internal/logger"
)

// maxInumAttempts bounds how many times newInum re-picks on a
// collision before giving up; a collision on a 63-bit random space is
// astronomically unlikely, so this only guards against a pathological
// Check implementation.
const maxInumAttempts = 16

// newInum generates a fresh, currently-unused inum in the file or
// directory range (spec.md §4.4: "pick a random id in the respective
// range; consult the extent server's check operation and re-pick on
// collision"). Randomness is sourced from uuid.New() rather than
// math/rand, mirroring the teacher's convention of minting resource
// ids via google/uuid (pkg/metadata/lock_types.go, file.go) rather
// than a bespoke RNG.
func (fs *FS) newInum(isFile bool) (uint64, error) {
	for attempt := 0; attempt < maxInumAttempts; attempt++ {
		id := randomID() &^ FileBit
		if isFile {
			id |= FileBit
		}
		if id == RootInum {
			continue
		}

		exists, err := fs.check.Check(id)
		if err != nil {
			return 0, err
		}
		if !exists {
			return id, nil
		}
		logger.Debug("inum collision, re-picking", logger.Inum(id))
	}
	return 0, errTooManyCollisions
}

// randomID draws 64 bits of randomness from a fresh UUID's leading
// bytes.
func randomID() uint64 {
	u := uuid.New()
	return binary.BigEndian.Uint64(u[:8])
}
