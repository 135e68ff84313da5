package session

import (
	"encoding/binary"
	"fmt"
	"time"
)

// Wire layout, version 1. The fixed-size header comes first so the Redis
// rotation script can address fields by offset.
//
//	off  size  field
//	0    1     format version
//	1    1     flags (bit 0: revoked)
//	2    8     rotation counter
//	10   8     issued at (unix ms)
//	18   8     last refreshed at (unix ms)
//	26   8     expires at (unix ms)
//	34   8     revoked at (unix ms, 0 if active)
//	42   32    current token hash
//	74   32    previous token hash
//	106  1+n   revoke reason
//	...  1+n   subject id
//	...  1+n   client label
const (
	formatVersion = 1
	headerSize    = 106

	offFlags     = 1
	offCounter   = 2
	offIssued    = 10
	offRefreshed = 18
	offExpires   = 26
	offRevokedAt = 34
	offCurrent   = 42
	offPrevious  = 74

	flagRevoked = 1 << 0
)

// Encode serializes r. The session id is the storage key and is not encoded.
func Encode(r *Record) ([]byte, error) {
	for name, v := range map[string]string{
		"subject id":    r.SubjectID,
		"client label":  r.ClientLabel,
		"revoke reason": string(r.RevokeReason),
	} {
		if len(v) > 255 {
			return nil, fmt.Errorf("%w: %s longer than 255 bytes", ErrCorrupt, name)
		}
	}

	buf := make([]byte, headerSize, headerSize+3+len(r.RevokeReason)+len(r.SubjectID)+len(r.ClientLabel))
	buf[0] = formatVersion
	if r.Revoked {
		buf[offFlags] |= flagRevoked
	}
	binary.BigEndian.PutUint64(buf[offCounter:], r.RotationCounter)
	binary.BigEndian.PutUint64(buf[offIssued:], unixMilli(r.IssuedAt))
	binary.BigEndian.PutUint64(buf[offRefreshed:], unixMilli(r.LastRefreshedAt))
	binary.BigEndian.PutUint64(buf[offExpires:], unixMilli(r.ExpiresAt))
	binary.BigEndian.PutUint64(buf[offRevokedAt:], unixMilli(r.RevokedAt))
	copy(buf[offCurrent:], r.CurrentTokenHash[:])
	copy(buf[offPrevious:], r.PreviousTokenHash[:])

	buf = appendString(buf, string(r.RevokeReason))
	buf = appendString(buf, r.SubjectID)
	buf = appendString(buf, r.ClientLabel)
	return buf, nil
}

// Decode parses a record produced by Encode (or rewritten by the rotation
// script) and assigns sessionID.
func Decode(sessionID string, data []byte) (*Record, error) {
	if len(data) < headerSize {
		return nil, fmt.Errorf("%w: short record (%d bytes)", ErrCorrupt, len(data))
	}
	if data[0] != formatVersion {
		return nil, fmt.Errorf("%w: unknown format version %d", ErrCorrupt, data[0])
	}

	r := &Record{
		SessionID:       sessionID,
		Revoked:         data[offFlags]&flagRevoked != 0,
		RotationCounter: binary.BigEndian.Uint64(data[offCounter:]),
		IssuedAt:        fromUnixMilli(binary.BigEndian.Uint64(data[offIssued:])),
		LastRefreshedAt: fromUnixMilli(binary.BigEndian.Uint64(data[offRefreshed:])),
		ExpiresAt:       fromUnixMilli(binary.BigEndian.Uint64(data[offExpires:])),
		RevokedAt:       fromUnixMilli(binary.BigEndian.Uint64(data[offRevokedAt:])),
	}
	copy(r.CurrentTokenHash[:], data[offCurrent:offCurrent+32])
	copy(r.PreviousTokenHash[:], data[offPrevious:offPrevious+32])

	rest := data[headerSize:]
	var (
		reason string
		err    error
	)
	if reason, rest, err = readString(rest); err != nil {
		return nil, err
	}
	r.RevokeReason = RevokeReason(reason)
	if r.SubjectID, rest, err = readString(rest); err != nil {
		return nil, err
	}
	if r.ClientLabel, rest, err = readString(rest); err != nil {
		return nil, err
	}
	if len(rest) != 0 {
		return nil, fmt.Errorf("%w: %d trailing bytes", ErrCorrupt, len(rest))
	}
	return r, nil
}

func appendString(buf []byte, s string) []byte {
	buf = append(buf, byte(len(s)))
	return append(buf, s...)
}

func readString(b []byte) (string, []byte, error) {
	if len(b) < 1 {
		return "", nil, fmt.Errorf("%w: truncated string length", ErrCorrupt)
	}
	n := int(b[0])
	if len(b) < 1+n {
		return "", nil, fmt.Errorf("%w: truncated string", ErrCorrupt)
	}
	return string(b[1 : 1+n]), b[1+n:], nil
}

func unixMilli(t time.Time) uint64 {
	if t.IsZero() || t.UnixMilli() < 0 {
		return 0
	}
	return uint64(t.UnixMilli())
}

func fromUnixMilli(ms uint64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(int64(ms)).UTC()
}
