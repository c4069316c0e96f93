package domain

// GameState is what the detector believes is currently on screen
type GameState string

const (
	StateInGame   GameState = "ALREADY_IN_GAME"
	StateMainMenu GameState = "MAIN_MENU"
	StateUnknown  GameState = "UNKNOWN_STATE"
)
