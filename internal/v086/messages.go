package v086

import "strings"

// Message type ids.
const (
	TypeQuit               byte = 0x01
	TypeUserJoined         byte = 0x02
	TypeUserInformation    byte = 0x03
	TypeServerStatus       byte = 0x04
	TypeServerAck          byte = 0x05
	TypeClientAck          byte = 0x06
	TypeChat               byte = 0x07
	TypeGameChat           byte = 0x08
	TypeKeepAlive          byte = 0x09
	TypeCreateGame         byte = 0x0A
	TypeQuitGame           byte = 0x0B
	TypeJoinGame           byte = 0x0C
	TypePlayerInformation  byte = 0x0D
	TypeGameStatus         byte = 0x0E
	TypeGameKick           byte = 0x0F
	TypeCloseGame          byte = 0x10
	TypeStartGame          byte = 0x11
	TypeGameData           byte = 0x12
	TypeCachedGameData     byte = 0x13
	TypePlayerDrop         byte = 0x14
	TypeAllReady           byte = 0x15
	TypeConnectionRejected byte = 0x16
	TypeInformationMessage byte = 0x17
)

const (
	requestUserID uint16 = 0xFFFF
	requestGameID uint16 = 0xFFFF
	requestVal1   uint16 = 0xFFFF
)

// Message is one v086 protocol message body. Request and notification
// variants of the same type id are separate Go types.
type Message interface {
	TypeID() byte
	writeBody(w *writer)
}

type QuitRequest struct {
	Message string
}

type QuitNotification struct {
	Username string
	UserID   uint16
	Message  string
}

type UserJoined struct {
	Username       string
	UserID         uint16
	Ping           uint32
	ConnectionType ConnectionType
}

type UserInformation struct {
	Username       string
	ClientType     string
	ConnectionType ConnectionType
}

type ServerStatusUser struct {
	Username       string
	Ping           uint32
	Status         UserStatus
	UserID         uint16
	ConnectionType ConnectionType
}

type ServerStatusGame struct {
	RomName    string
	GameID     uint32
	ClientType string
	Owner      string
	Players    string
	Status     GameStatus
}

type ServerStatus struct {
	Users []ServerStatusUser
	Games []ServerStatusGame
}

type ServerAck struct{}

type ClientAck struct{}

type ChatRequest struct {
	Message string
}

type ChatNotification struct {
	Username string
	Message  string
}

type GameChatRequest struct {
	Message string
}

type GameChatNotification struct {
	Username string
	Message  string
}

type KeepAlive struct {
	Value uint8
}

type CreateGameRequest struct {
	RomName string
}

type CreateGameNotification struct {
	Username   string
	RomName    string
	ClientType string
	GameID     uint16
	Val1       uint16
}

type QuitGameRequest struct{}

type QuitGameNotification struct {
	Username string
	UserID   uint16
}

type JoinGameRequest struct {
	GameID         uint16
	ConnectionType ConnectionType
}

type JoinGameNotification struct {
	GameID         uint16
	Val1           uint16
	Username       string
	Ping           uint32
	UserID         uint16
	ConnectionType ConnectionType
}

type PlayerInfo struct {
	Username       string
	Ping           uint32
	UserID         uint16
	ConnectionType ConnectionType
}

type PlayerInformation struct {
	Players []PlayerInfo
}

type GameStatusUpdate struct {
	GameID     uint16
	Val1       uint16
	Status     GameStatus
	NumPlayers uint8
	MaxPlayers uint8
}

type GameKick struct {
	UserID uint16
}

type CloseGame struct {
	GameID uint16
	Val1   uint16
}

type StartGameRequest struct{}

type StartGameNotification struct {
	Val1         uint16
	PlayerNumber uint8
	NumPlayers   uint8
}

type GameData struct {
	Data []byte
}

type CachedGameData struct {
	Key uint8
}

type PlayerDropRequest struct{}

type PlayerDropNotification struct {
	Username     string
	PlayerNumber uint8
}

type AllReady struct{}

type ConnectionRejected struct {
	Username string
	UserID   uint16
	Message  string
}

type InformationMessage struct {
	Source  string
	Message string
}

func (QuitRequest) TypeID() byte            { return TypeQuit }
func (QuitNotification) TypeID() byte       { return TypeQuit }
func (UserJoined) TypeID() byte             { return TypeUserJoined }
func (UserInformation) TypeID() byte        { return TypeUserInformation }
func (ServerStatus) TypeID() byte           { return TypeServerStatus }
func (ServerAck) TypeID() byte              { return TypeServerAck }
func (ClientAck) TypeID() byte              { return TypeClientAck }
func (ChatRequest) TypeID() byte            { return TypeChat }
func (ChatNotification) TypeID() byte       { return TypeChat }
func (GameChatRequest) TypeID() byte        { return TypeGameChat }
func (GameChatNotification) TypeID() byte   { return TypeGameChat }
func (KeepAlive) TypeID() byte              { return TypeKeepAlive }
func (CreateGameRequest) TypeID() byte      { return TypeCreateGame }
func (CreateGameNotification) TypeID() byte { return TypeCreateGame }
func (QuitGameRequest) TypeID() byte        { return TypeQuitGame }
func (QuitGameNotification) TypeID() byte   { return TypeQuitGame }
func (JoinGameRequest) TypeID() byte        { return TypeJoinGame }
func (JoinGameNotification) TypeID() byte   { return TypeJoinGame }
func (PlayerInformation) TypeID() byte      { return TypePlayerInformation }
func (GameStatusUpdate) TypeID() byte       { return TypeGameStatus }
func (GameKick) TypeID() byte               { return TypeGameKick }
func (CloseGame) TypeID() byte              { return TypeCloseGame }
func (StartGameRequest) TypeID() byte       { return TypeStartGame }
func (StartGameNotification) TypeID() byte  { return TypeStartGame }
func (GameData) TypeID() byte               { return TypeGameData }
func (CachedGameData) TypeID() byte         { return TypeCachedGameData }
func (PlayerDropRequest) TypeID() byte      { return TypePlayerDrop }
func (PlayerDropNotification) TypeID() byte { return TypePlayerDrop }
func (AllReady) TypeID() byte               { return TypeAllReady }
func (ConnectionRejected) TypeID() byte     { return TypeConnectionRejected }
func (InformationMessage) TypeID() byte     { return TypeInformationMessage }

func (m QuitRequest) writeBody(w *writer) {
	w.str("")
	w.u16(requestUserID)
	w.str(m.Message)
}

func (m QuitNotification) writeBody(w *writer) {
	w.str(m.Username)
	w.u16(m.UserID)
	w.str(m.Message)
}

func (m UserJoined) writeBody(w *writer) {
	w.str(m.Username)
	w.u16(m.UserID)
	w.u32(m.Ping)
	w.u8(uint8(m.ConnectionType))
}

func (m UserInformation) writeBody(w *writer) {
	w.str(m.Username)
	w.str(m.ClientType)
	w.u8(uint8(m.ConnectionType))
}

func (m ServerStatus) writeBody(w *writer) {
	w.u8(0)
	w.u32(uint32(len(m.Users)))
	w.u32(uint32(len(m.Games)))
	for _, u := range m.Users {
		w.str(u.Username)
		w.u32(u.Ping)
		w.u8(uint8(u.Status))
		w.u16(u.UserID)
		w.u8(uint8(u.ConnectionType))
	}
	for _, g := range m.Games {
		w.str(g.RomName)
		w.u32(g.GameID)
		w.str(g.ClientType)
		w.str(g.Owner)
		w.str(g.Players)
		w.u8(uint8(g.Status))
	}
}

func writeAck(w *writer) {
	w.u8(0)
	for i := uint32(0); i < 4; i++ {
		w.u32(i)
	}
}

func (ServerAck) writeBody(w *writer) { writeAck(w) }

func (ClientAck) writeBody(w *writer) { writeAck(w) }

func (m ChatRequest) writeBody(w *writer) {
	w.str("")
	w.str(m.Message)
}

func (m ChatNotification) writeBody(w *writer) {
	w.str(m.Username)
	w.str(m.Message)
}

func (m GameChatRequest) writeBody(w *writer) {
	w.str("")
	w.str(m.Message)
}

func (m GameChatNotification) writeBody(w *writer) {
	w.str(m.Username)
	w.str(m.Message)
}

func (m KeepAlive) writeBody(w *writer) { w.u8(m.Value) }

func (m CreateGameRequest) writeBody(w *writer) {
	w.str("")
	w.str(m.RomName)
	w.str("")
	w.u16(requestGameID)
	w.u16(requestVal1)
}

func (m CreateGameNotification) writeBody(w *writer) {
	w.str(m.Username)
	w.str(m.RomName)
	w.str(m.ClientType)
	w.u16(m.GameID)
	w.u16(m.Val1)
}

func (QuitGameRequest) writeBody(w *writer) {
	w.str("")
	w.u16(requestUserID)
}

func (m QuitGameNotification) writeBody(w *writer) {
	w.str(m.Username)
	w.u16(m.UserID)
}

func (m JoinGameRequest) writeBody(w *writer) {
	w.u8(0)
	w.u16(m.GameID)
	w.u16(0)
	w.str("")
	w.u32(0)
	w.u16(requestUserID)
	w.u8(uint8(m.ConnectionType))
}

func (m JoinGameNotification) writeBody(w *writer) {
	w.u8(0)
	w.u16(m.GameID)
	w.u16(m.Val1)
	w.str(m.Username)
	w.u32(m.Ping)
	w.u16(m.UserID)
	w.u8(uint8(m.ConnectionType))
}

func (m PlayerInformation) writeBody(w *writer) {
	w.u8(0)
	w.u32(uint32(len(m.Players)))
	for _, p := range m.Players {
		w.str(p.Username)
		w.u32(p.Ping)
		w.u16(p.UserID)
		w.u8(uint8(p.ConnectionType))
	}
}

func (m GameStatusUpdate) writeBody(w *writer) {
	w.u8(0)
	w.u16(m.GameID)
	w.u16(m.Val1)
	w.u8(uint8(m.Status))
	w.u8(m.NumPlayers)
	w.u8(m.MaxPlayers)
}

func (m GameKick) writeBody(w *writer) {
	w.u8(0)
	w.u16(m.UserID)
}

func (m CloseGame) writeBody(w *writer) {
	w.u8(0)
	w.u16(m.GameID)
	w.u16(m.Val1)
}

func (StartGameRequest) writeBody(w *writer) {
	w.u8(0)
	w.u16(requestVal1)
	w.u8(0xFF)
	w.u8(0xFF)
}

func (m StartGameNotification) writeBody(w *writer) {
	w.u8(0)
	w.u16(m.Val1)
	w.u8(m.PlayerNumber)
	w.u8(m.NumPlayers)
}

func (m GameData) writeBody(w *writer) {
	w.u8(0)
	w.u16(uint16(len(m.Data)))
	w.bytes(m.Data)
}

func (m CachedGameData) writeBody(w *writer) {
	w.u8(0)
	w.u8(m.Key)
}

func (PlayerDropRequest) writeBody(w *writer) {
	w.str("")
	w.u8(0)
}

func (m PlayerDropNotification) writeBody(w *writer) {
	w.str(m.Username)
	w.u8(m.PlayerNumber)
}

func (AllReady) writeBody(w *writer) { w.u8(0) }

func (m ConnectionRejected) writeBody(w *writer) {
	w.str(m.Username)
	w.u16(m.UserID)
	w.str(m.Message)
}

func (m InformationMessage) writeBody(w *writer) {
	w.str(m.Source)
	w.str(m.Message)
}

type decodeFunc func(r *reader) (Message, error)

var decoders = map[byte]decodeFunc{
	TypeQuit:               decodeQuit,
	TypeUserJoined:         decodeUserJoined,
	TypeUserInformation:    decodeUserInformation,
	TypeServerStatus:       decodeServerStatus,
	TypeServerAck:          func(r *reader) (Message, error) { return ServerAck{}, readAck(r) },
	TypeClientAck:          func(r *reader) (Message, error) { return ClientAck{}, readAck(r) },
	TypeChat:               decodeChat,
	TypeGameChat:           decodeGameChat,
	TypeKeepAlive:          decodeKeepAlive,
	TypeCreateGame:         decodeCreateGame,
	TypeQuitGame:           decodeQuitGame,
	TypeJoinGame:           decodeJoinGame,
	TypePlayerInformation:  decodePlayerInformation,
	TypeGameStatus:         decodeGameStatus,
	TypeGameKick:           decodeGameKick,
	TypeCloseGame:          decodeCloseGame,
	TypeStartGame:          decodeStartGame,
	TypeGameData:           decodeGameData,
	TypeCachedGameData:     decodeCachedGameData,
	TypePlayerDrop:         decodePlayerDrop,
	TypeAllReady:           decodeAllReady,
	TypeConnectionRejected: decodeConnectionRejected,
	TypeInformationMessage: decodeInformationMessage,
}

func decodeQuit(r *reader) (Message, error) {
	user, err := r.str()
	if err != nil {
		return nil, err
	}
	id, err := r.u16()
	if err != nil {
		return nil, err
	}
	msg, err := r.str()
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(user) == "" && id == requestUserID {
		return QuitRequest{Message: msg}, nil
	}
	return QuitNotification{Username: user, UserID: id, Message: msg}, nil
}

func decodeUserJoined(r *reader) (Message, error) {
	var m UserJoined
	var err error
	if m.Username, err = r.str(); err != nil {
		return nil, err
	}
	if m.UserID, err = r.u16(); err != nil {
		return nil, err
	}
	if m.Ping, err = r.u32(); err != nil {
		return nil, err
	}
	if m.ConnectionType, err = readConnectionType(r); err != nil {
		return nil, err
	}
	return m, nil
}

func decodeUserInformation(r *reader) (Message, error) {
	var m UserInformation
	var err error
	if m.Username, err = r.str(); err != nil {
		return nil, err
	}
	if m.ClientType, err = r.str(); err != nil {
		return nil, err
	}
	if m.ConnectionType, err = readConnectionType(r); err != nil {
		return nil, err
	}
	return m, nil
}

func decodeServerStatus(r *reader) (Message, error) {
	if err := r.zero(); err != nil {
		return nil, err
	}
	nUsers, err := r.u32()
	if err != nil {
		return nil, err
	}
	nGames, err := r.u32()
	if err != nil {
		return nil, err
	}
	if uint64(nUsers)*10+uint64(nGames)*13 > uint64(r.remaining()) {
		return nil, ErrInsufficientBytes
	}
	m := ServerStatus{
		Users: make([]ServerStatusUser, 0, nUsers),
		Games: make([]ServerStatusGame, 0, nGames),
	}
	for i := uint32(0); i < nUsers; i++ {
		var u ServerStatusUser
		if u.Username, err = r.str(); err != nil {
			return nil, err
		}
		if u.Ping, err = r.u32(); err != nil {
			return nil, err
		}
		status, err := r.u8()
		if err != nil {
			return nil, err
		}
		u.Status = UserStatus(status)
		if u.UserID, err = r.u16(); err != nil {
			return nil, err
		}
		if u.ConnectionType, err = readConnectionType(r); err != nil {
			return nil, err
		}
		m.Users = append(m.Users, u)
	}
	for i := uint32(0); i < nGames; i++ {
		var g ServerStatusGame
		if g.RomName, err = r.str(); err != nil {
			return nil, err
		}
		if g.GameID, err = r.u32(); err != nil {
			return nil, err
		}
		if g.ClientType, err = r.str(); err != nil {
			return nil, err
		}
		if g.Owner, err = r.str(); err != nil {
			return nil, err
		}
		if g.Players, err = r.str(); err != nil {
			return nil, err
		}
		status, err := r.u8()
		if err != nil {
			return nil, err
		}
		g.Status = GameStatus(status)
		m.Games = append(m.Games, g)
	}
	return m, nil
}

func readAck(r *reader) error {
	if r.remaining() < 17 {
		return ErrInsufficientBytes
	}
	if err := r.zero(); err != nil {
		return err
	}
	for want := uint32(0); want < 4; want++ {
		v, _ := r.u32()
		if v != want {
			return formatErr("ack value %d = %d", want, v)
		}
	}
	return nil
}

func readChat(r *reader) (string, string, error) {
	user, err := r.str()
	if err != nil {
		return "", "", err
	}
	msg, err := r.str()
	if err != nil {
		return "", "", err
	}
	return user, msg, nil
}

func decodeChat(r *reader) (Message, error) {
	user, msg, err := readChat(r)
	if err != nil {
		return nil, err
	}
	if user == "" {
		return ChatRequest{Message: msg}, nil
	}
	return ChatNotification{Username: user, Message: msg}, nil
}

func decodeGameChat(r *reader) (Message, error) {
	user, msg, err := readChat(r)
	if err != nil {
		return nil, err
	}
	if user == "" {
		return GameChatRequest{Message: msg}, nil
	}
	return GameChatNotification{Username: user, Message: msg}, nil
}

func decodeKeepAlive(r *reader) (Message, error) {
	v, err := r.u8()
	if err != nil {
		return nil, err
	}
	return KeepAlive{Value: v}, nil
}

func decodeCreateGame(r *reader) (Message, error) {
	var m CreateGameNotification
	var err error
	if m.Username, err = r.str(); err != nil {
		return nil, err
	}
	if m.RomName, err = r.str(); err != nil {
		return nil, err
	}
	if m.ClientType, err = r.str(); err != nil {
		return nil, err
	}
	if m.GameID, err = r.u16(); err != nil {
		return nil, err
	}
	if m.Val1, err = r.u16(); err != nil {
		return nil, err
	}
	if m.Username == "" && m.GameID == requestGameID && m.Val1 == requestVal1 {
		return CreateGameRequest{RomName: m.RomName}, nil
	}
	return m, nil
}

func decodeQuitGame(r *reader) (Message, error) {
	user, err := r.str()
	if err != nil {
		return nil, err
	}
	id, err := r.u16()
	if err != nil {
		return nil, err
	}
	if user == "" && id == requestUserID {
		return QuitGameRequest{}, nil
	}
	return QuitGameNotification{Username: user, UserID: id}, nil
}

func decodeJoinGame(r *reader) (Message, error) {
	if r.remaining() < 13 {
		return nil, ErrInsufficientBytes
	}
	if err := r.zero(); err != nil {
		return nil, err
	}
	var m JoinGameNotification
	var err error
	m.GameID, _ = r.u16()
	m.Val1, _ = r.u16()
	if m.Username, err = r.str(); err != nil {
		return nil, err
	}
	if r.remaining() < 7 {
		return nil, ErrInsufficientBytes
	}
	m.Ping, _ = r.u32()
	m.UserID, _ = r.u16()
	if m.ConnectionType, err = readConnectionType(r); err != nil {
		return nil, err
	}
	if strings.TrimSpace(m.Username) == "" && m.Ping == 0 && m.UserID == requestUserID {
		return JoinGameRequest{GameID: m.GameID, ConnectionType: m.ConnectionType}, nil
	}
	return m, nil
}

func decodePlayerInformation(r *reader) (Message, error) {
	if err := r.zero(); err != nil {
		return nil, err
	}
	n, err := r.u32()
	if err != nil {
		return nil, err
	}
	if uint64(n)*8 > uint64(r.remaining()) {
		return nil, ErrInsufficientBytes
	}
	m := PlayerInformation{Players: make([]PlayerInfo, 0, n)}
	for i := uint32(0); i < n; i++ {
		var p PlayerInfo
		if p.Username, err = r.str(); err != nil {
			return nil, err
		}
		if p.Ping, err = r.u32(); err != nil {
			return nil, err
		}
		if p.UserID, err = r.u16(); err != nil {
			return nil, err
		}
		if p.ConnectionType, err = readConnectionType(r); err != nil {
			return nil, err
		}
		m.Players = append(m.Players, p)
	}
	return m, nil
}

func decodeGameStatus(r *reader) (Message, error) {
	if r.remaining() < 8 {
		return nil, ErrInsufficientBytes
	}
	if err := r.zero(); err != nil {
		return nil, err
	}
	var m GameStatusUpdate
	m.GameID, _ = r.u16()
	m.Val1, _ = r.u16()
	status, _ := r.u8()
	m.Status = GameStatus(status)
	m.NumPlayers, _ = r.u8()
	m.MaxPlayers, _ = r.u8()
	return m, nil
}

func decodeGameKick(r *reader) (Message, error) {
	if r.remaining() < 3 {
		return nil, ErrInsufficientBytes
	}
	if err := r.zero(); err != nil {
		return nil, err
	}
	id, _ := r.u16()
	return GameKick{UserID: id}, nil
}

func decodeCloseGame(r *reader) (Message, error) {
	if r.remaining() < 5 {
		return nil, ErrInsufficientBytes
	}
	if err := r.zero(); err != nil {
		return nil, err
	}
	var m CloseGame
	m.GameID, _ = r.u16()
	m.Val1, _ = r.u16()
	return m, nil
}

func decodeStartGame(r *reader) (Message, error) {
	if r.remaining() < 5 {
		return nil, ErrInsufficientBytes
	}
	if err := r.zero(); err != nil {
		return nil, err
	}
	var m StartGameNotification
	m.Val1, _ = r.u16()
	m.PlayerNumber, _ = r.u8()
	m.NumPlayers, _ = r.u8()
	if m.Val1 == requestVal1 && m.PlayerNumber == 0xFF && m.NumPlayers == 0xFF {
		return StartGameRequest{}, nil
	}
	return m, nil
}

// The leading byte of GameData and CachedGameData is not checked; some
// clients send garbage there.
func decodeGameData(r *reader) (Message, error) {
	if r.remaining() < 4 {
		return nil, ErrInsufficientBytes
	}
	r.pos++
	size, _ := r.u16()
	if size == 0 || int(size) > r.remaining() {
		return nil, formatErr("game data size = %d, remaining %d", size, r.remaining())
	}
	data, _ := r.bytes(int(size))
	return GameData{Data: data}, nil
}

func decodeCachedGameData(r *reader) (Message, error) {
	if r.remaining() < 2 {
		return nil, ErrInsufficientBytes
	}
	r.pos++
	key, _ := r.u8()
	return CachedGameData{Key: key}, nil
}

func decodePlayerDrop(r *reader) (Message, error) {
	user, err := r.str()
	if err != nil {
		return nil, err
	}
	n, err := r.u8()
	if err != nil {
		return nil, err
	}
	if user == "" && n == 0 {
		return PlayerDropRequest{}, nil
	}
	return PlayerDropNotification{Username: user, PlayerNumber: n}, nil
}

func decodeAllReady(r *reader) (Message, error) {
	if err := r.zero(); err != nil {
		return nil, err
	}
	return AllReady{}, nil
}

func decodeConnectionRejected(r *reader) (Message, error) {
	var m ConnectionRejected
	var err error
	if m.Username, err = r.str(); err != nil {
		return nil, err
	}
	if m.UserID, err = r.u16(); err != nil {
		return nil, err
	}
	if m.Message, err = r.str(); err != nil {
		return nil, err
	}
	return m, nil
}

func decodeInformationMessage(r *reader) (Message, error) {
	source, msg, err := readChat(r)
	if err != nil {
		return nil, err
	}
	return InformationMessage{Source: source, Message: msg}, nil
}

func readConnectionType(r *reader) (ConnectionType, error) {
	b, err := r.u8()
	if err != nil {
		return 0, err
	}
	return ParseConnectionType(b)
}
