package game

// Canonical frame bodies (spec.md §6 message catalogue). Centralizing these
// as constants follows the teacher's node/p2p/messages.go convention of
// naming wire-visible strings once instead of scattering literals.
const (
	MsgGameLimitReached    = "game limit reached"
	MsgCommandNotAllowed   = "command not allowed"
	MsgWaitForSecondClient = "Wait for second client to connect"
	MsgSecondClientGone    = "\nSecond client disconnected ):\n"
	MsgYouWon              = "\nyou won!\n"
	MsgYouLost             = "\nyou lost ):\n"
	FlagDirPrompt          = "FLG_DIR"
	FlagSetupOK            = "okay"
	FlagSetupError         = "error"
)
