package logger

import (
	"log/slog"
)

// Standard field keys for structured logging across the lock, extent,
// and paxos services.
const (
	KeyComponent = "component" // extentd, lockd, paxos, client

	KeyClientID = "client_id"
	KeyLockID   = "lock_id"
	KeyXid      = "xid"
	KeyXxid     = "xxid"
	KeyState    = "state"
	KeyFrom     = "from_state"
	KeyTo       = "to_state"

	KeyExtentID = "extent_id"
	KeyInum     = "inum"
	KeySize     = "size"
	KeyOffset   = "offset"
	KeyDirty    = "dirty"

	KeyInstance = "instance"
	KeyBallotN  = "ballot_n"
	KeyBallotM  = "ballot_m"
	KeyMember   = "member"

	KeyDurationMs = "duration_ms"
	KeyError      = "error"
	KeyResult     = "result"
)

// ClientID returns a slog.Attr for a lock/extent client identifier.
func ClientID(id string) slog.Attr { return slog.String(KeyClientID, id) }

// LockID returns a slog.Attr for a 64-bit lock identifier.
func LockID(id uint64) slog.Attr { return slog.Uint64(KeyLockID, id) }

// Xid returns a slog.Attr for the per-lock acquire sequence counter.
func Xid(xid uint64) slog.Attr { return slog.Uint64(KeyXid, xid) }

// Xxid returns a slog.Attr for the revoke/retry ordering counter.
func Xxid(xxid uint64) slog.Attr { return slog.Uint64(KeyXxid, xxid) }

// State returns a slog.Attr naming a state machine's current state.
func State(s string) slog.Attr { return slog.String(KeyState, s) }

// Transition returns attrs describing a state machine transition.
func Transition(from, to string) []slog.Attr {
	return []slog.Attr{slog.String(KeyFrom, from), slog.String(KeyTo, to)}
}

// ExtentID returns a slog.Attr for a 64-bit extent identifier, hex-formatted.
func ExtentID(id uint64) slog.Attr { return slog.String(KeyExtentID, formatHex(id)) }

// Inum returns a slog.Attr for an inode number.
func Inum(ino uint64) slog.Attr { return slog.Uint64(KeyInum, ino) }

// Size returns a slog.Attr for a byte size.
func Size(n int) slog.Attr { return slog.Int(KeySize, n) }

// Offset returns a slog.Attr for an I/O offset.
func Offset(off uint64) slog.Attr { return slog.Uint64(KeyOffset, off) }

// Dirty returns a slog.Attr for a cache entry's dirty flag.
func Dirty(dirty bool) slog.Attr { return slog.Bool(KeyDirty, dirty) }

// Instance returns a slog.Attr for a Paxos instance number.
func Instance(i uint64) slog.Attr { return slog.Uint64(KeyInstance, i) }

// BallotN returns a slog.Attr for a ballot's numeric component.
func BallotN(n uint64) slog.Attr { return slog.Uint64(KeyBallotN, n) }

// BallotM returns a slog.Attr for a ballot's node-id component.
func BallotM(m string) slog.Attr { return slog.String(KeyBallotM, m) }

// Member returns a slog.Attr for a view/roster member address.
func Member(addr string) slog.Attr { return slog.String(KeyMember, addr) }

// DurationMs returns a slog.Attr for an elapsed duration in milliseconds.
func DurationMs(ms float64) slog.Attr { return slog.Float64(KeyDurationMs, ms) }

// Err returns a slog.Attr for an error, or a zero Attr if err is nil.
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String(KeyError, err.Error())
}

// Result returns a slog.Attr for an RPC result code (OK, RETRY, NOENT, ...).
func Result(r string) slog.Attr { return slog.String(KeyResult, r) }

func formatHex(id uint64) string {
	const hexDigits = "0123456789abcdef"
	buf := make([]byte, 16)
	for i := 15; i >= 0; i-- {
		buf[i] = hexDigits[id&0xf]
		id >>= 4
	}
	return string(buf)
}
