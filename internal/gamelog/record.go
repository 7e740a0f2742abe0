// Package gamelog records the input timeline of a game to a compressed file
// of length-delimited protobuf records.
package gamelog

import (
	"errors"
	"fmt"
	"math"
	"time"

	"google.golang.org/protobuf/encoding/protowire"
)

var ErrRecordFormat = errors.New("record_format")

type Kind uint8

const (
	KindStart    Kind = 1
	KindReceived Kind = 2
	KindFanOut   Kind = 3
	KindLagstat  Kind = 4
)

func (k Kind) String() string {
	switch k {
	case KindStart:
		return "start"
	case KindReceived:
		return "received"
	case KindFanOut:
		return "fan_out"
	case KindLagstat:
		return "lagstat"
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// Record is one entry of a game log. Fields not used by a kind are zero.
type Record struct {
	Kind         Kind
	At           time.Time
	GameID       uint16
	PlayerNumber int
	Players      []Player
	Window       time.Duration
	GameLag      time.Duration
}

type Player struct {
	UserID     uint16
	Name       string
	Number     int
	FrameDelay int
	PingMS     int64
	LagMS      float64
}

// Record field numbers.
const (
	fieldKind         protowire.Number = 1
	fieldAt           protowire.Number = 2
	fieldGameID       protowire.Number = 3
	fieldPlayerNumber protowire.Number = 4
	fieldPlayer       protowire.Number = 5
	fieldWindow       protowire.Number = 6
	fieldGameLag      protowire.Number = 7
)

// Player field numbers.
const (
	fieldUserID     protowire.Number = 1
	fieldName       protowire.Number = 2
	fieldNumber     protowire.Number = 3
	fieldFrameDelay protowire.Number = 4
	fieldPingMS     protowire.Number = 5
	fieldLagMS      protowire.Number = 6
)

func appendVarintField(b []byte, n protowire.Number, v uint64) []byte {
	if v == 0 {
		return b
	}
	b = protowire.AppendTag(b, n, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

// AppendRecord appends the wire encoding of r to b.
func AppendRecord(b []byte, r Record) []byte {
	b = appendVarintField(b, fieldKind, uint64(r.Kind))
	if !r.At.IsZero() {
		b = protowire.AppendTag(b, fieldAt, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(r.At.UnixNano()))
	}
	b = appendVarintField(b, fieldGameID, uint64(r.GameID))
	b = appendVarintField(b, fieldPlayerNumber, uint64(r.PlayerNumber))
	for _, p := range r.Players {
		b = protowire.AppendTag(b, fieldPlayer, protowire.BytesType)
		b = protowire.AppendBytes(b, appendPlayer(nil, p))
	}
	b = appendVarintField(b, fieldWindow, uint64(r.Window))
	b = appendVarintField(b, fieldGameLag, uint64(r.GameLag))
	return b
}

func appendPlayer(b []byte, p Player) []byte {
	b = appendVarintField(b, fieldUserID, uint64(p.UserID))
	if p.Name != "" {
		b = protowire.AppendTag(b, fieldName, protowire.BytesType)
		b = protowire.AppendString(b, p.Name)
	}
	b = appendVarintField(b, fieldNumber, uint64(p.Number))
	b = appendVarintField(b, fieldFrameDelay, uint64(p.FrameDelay))
	b = appendVarintField(b, fieldPingMS, uint64(p.PingMS))
	if p.LagMS != 0 {
		b = protowire.AppendTag(b, fieldLagMS, protowire.Fixed64Type)
		b = protowire.AppendFixed64(b, math.Float64bits(p.LagMS))
	}
	return b
}

// ParseRecord decodes one record body. Unknown fields are skipped.
func ParseRecord(b []byte) (Record, error) {
	var r Record
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return Record{}, fmt.Errorf("%w: tag: %v", ErrRecordFormat, protowire.ParseError(n))
		}
		b = b[n:]
		switch {
		case num == fieldPlayer && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return Record{}, fmt.Errorf("%w: player: %v", ErrRecordFormat, protowire.ParseError(n))
			}
			p, err := parsePlayer(v)
			if err != nil {
				return Record{}, err
			}
			r.Players = append(r.Players, p)
			b = b[n:]
		case typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return Record{}, fmt.Errorf("%w: field %d: %v", ErrRecordFormat, num, protowire.ParseError(n))
			}
			switch num {
			case fieldKind:
				r.Kind = Kind(v)
			case fieldAt:
				r.At = time.Unix(0, int64(v))
			case fieldGameID:
				r.GameID = uint16(v)
			case fieldPlayerNumber:
				r.PlayerNumber = int(v)
			case fieldWindow:
				r.Window = time.Duration(v)
			case fieldGameLag:
				r.GameLag = time.Duration(v)
			}
			b = b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return Record{}, fmt.Errorf("%w: field %d: %v", ErrRecordFormat, num, protowire.ParseError(n))
			}
			b = b[n:]
		}
	}
	return r, nil
}

func parsePlayer(b []byte) (Player, error) {
	var p Player
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return Player{}, fmt.Errorf("%w: player tag: %v", ErrRecordFormat, protowire.ParseError(n))
		}
		b = b[n:]
		switch {
		case num == fieldName && typ == protowire.BytesType:
			v, n := protowire.ConsumeString(b)
			if n < 0 {
				return Player{}, fmt.Errorf("%w: name: %v", ErrRecordFormat, protowire.ParseError(n))
			}
			p.Name = v
			b = b[n:]
		case num == fieldLagMS && typ == protowire.Fixed64Type:
			v, n := protowire.ConsumeFixed64(b)
			if n < 0 {
				return Player{}, fmt.Errorf("%w: lag: %v", ErrRecordFormat, protowire.ParseError(n))
			}
			p.LagMS = math.Float64frombits(v)
			b = b[n:]
		case typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return Player{}, fmt.Errorf("%w: player field %d: %v", ErrRecordFormat, num, protowire.ParseError(n))
			}
			switch num {
			case fieldUserID:
				p.UserID = uint16(v)
			case fieldNumber:
				p.Number = int(v)
			case fieldFrameDelay:
				p.FrameDelay = int(v)
			case fieldPingMS:
				p.PingMS = int64(v)
			}
			b = b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return Player{}, fmt.Errorf("%w: player field %d: %v", ErrRecordFormat, num, protowire.ParseError(n))
			}
			b = b[n:]
		}
	}
	return p, nil
}
