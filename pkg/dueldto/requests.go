package dueldto

type StartMatchRequest struct {
	Player1 string `json:"player1,omitempty"`
	Player2 string `json:"player2,omitempty"`
}

type MoveRequest struct {
	Action string `json:"action"`
}

type MoveResponse struct {
	Move  Move  `json:"move"`
	Match Match `json:"match"`
}

type Health struct {
	Status      string `json:"status"`
	Players     int    `json:"players"`
	Free        int    `json:"free"`
	LiveMatches int    `json:"live_matches"`
}
