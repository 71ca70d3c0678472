package session

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"time"
)

const (
	sessionFormatVersionCurrent = 1

	flagRevoked byte = 1 << 0
)

// Encode serializes s into the compact blob stored by [RedisStore].
//
//	version(1) id(8) user(8) hash(32) created(8) expires(8) flags(1) [revoked(8)]
//
// Timestamps are Unix nanoseconds, big endian.
func Encode(s *Session) ([]byte, error) {
	if s == nil {
		return nil, errors.New("nil session")
	}

	var buf bytes.Buffer
	buf.Grow(66 + 8)

	buf.WriteByte(sessionFormatVersionCurrent)

	if err := binary.Write(&buf, binary.BigEndian, s.ID); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, s.UserID); err != nil {
		return nil, err
	}
	buf.Write(s.TokenHash[:])

	if err := binary.Write(&buf, binary.BigEndian, s.CreatedAt.UnixNano()); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, s.ExpiresAt.UnixNano()); err != nil {
		return nil, err
	}

	var flags byte
	if s.RevokedAt != nil {
		flags |= flagRevoked
	}
	buf.WriteByte(flags)

	if s.RevokedAt != nil {
		if err := binary.Write(&buf, binary.BigEndian, s.RevokedAt.UnixNano()); err != nil {
			return nil, err
		}
	}

	return buf.Bytes(), nil
}

// Decode parses a blob produced by [Encode].
func Decode(data []byte) (*Session, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	if version != sessionFormatVersionCurrent {
		return nil, errors.New("unsupported session format version")
	}

	s := &Session{}

	if err := binary.Read(reader, binary.BigEndian, &s.ID); err != nil {
		return nil, err
	}
	if err := binary.Read(reader, binary.BigEndian, &s.UserID); err != nil {
		return nil, err
	}
	if _, err := io.ReadFull(reader, s.TokenHash[:]); err != nil {
		return nil, err
	}

	var created, expires int64
	if err := binary.Read(reader, binary.BigEndian, &created); err != nil {
		return nil, err
	}
	if err := binary.Read(reader, binary.BigEndian, &expires); err != nil {
		return nil, err
	}
	s.CreatedAt = time.Unix(0, created).UTC()
	s.ExpiresAt = time.Unix(0, expires).UTC()

	flags, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	if flags&^flagRevoked != 0 {
		return nil, errors.New("unknown session flags")
	}
	if flags&flagRevoked != 0 {
		var revoked int64
		if err := binary.Read(reader, binary.BigEndian, &revoked); err != nil {
			return nil, err
		}
		at := time.Unix(0, revoked).UTC()
		s.RevokedAt = &at
	}

	if reader.Len() != 0 {
		return nil, errors.New("trailing session bytes")
	}

	return s, nil
}
