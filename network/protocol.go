package network

// Client -> server events.
const (
	EvtAuthenticate    = "authenticate"
	EvtRequestRoomList = "requestRoomList"
	EvtCreateRoom      = "createRoom"
	EvtJoinRoom        = "joinRoom"
	EvtPlayerAction    = "playerAction"
	EvtLeaveRoom       = "leaveRoom"
)

// Server -> client events.
const (
	EvtAuthenticated       = "authenticated"
	EvtAuthError           = "authError"
	EvtUpdateRoomList      = "updateRoomList"
	EvtRoomJoined          = "roomJoined"
	EvtGameStateUpdate     = "gameStateUpdate"
	EvtShowChoices         = "showChoices"
	EvtVisualizeMovements  = "visualizeMovements"
	EvtForceReselect       = "forceReselect"
	EvtGameOver            = "gameOver"
	EvtError               = "error"
)
