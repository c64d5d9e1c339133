package dueldto

// Inbound websocket frame types.
const (
	FrameEnter        = "enter"
	FrameReady        = "ready"
	FrameAttack       = "attack"
	FrameHeal         = "heal"
	FrameRequestMatch = "request_match"
	FrameForfeit      = "forfeit"
)

// Outbound websocket frame types.
const (
	FrameEntered    = "entered"
	FrameStartGame  = "start_game"
	FrameInGame     = "in_game"
	FrameMovePlayed = "move_played"
	FrameGameOver   = "game_over"
	FrameInvalid    = "invalid"
)

// ClientFrame is sent by a connected client.
type ClientFrame struct {
	Type     string `json:"type"`
	PlayerID string `json:"player_id,omitempty"`
	Player1  string `json:"player1,omitempty"`
	Player2  string `json:"player2,omitempty"`
}

// ServerFrame is pushed to clients. Only the fields relevant to Type are set.
type ServerFrame struct {
	Type    string  `json:"type"`
	Player  *Player `json:"player,omitempty"`
	Match   *Match  `json:"match,omitempty"`
	Move    *Move   `json:"move,omitempty"`
	Winner  string  `json:"winner,omitempty"`
	Code    string  `json:"code,omitempty"`
	Message string  `json:"message,omitempty"`
}
