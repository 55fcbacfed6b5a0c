// ABOUTME: States and outcomes of the login state machine
// ABOUTME: String forms are used in traces, logs and metric labels

package auth

// State is a step of a login attempt.
type State int

const (
	StateStart State = iota
	StateTryRemote
	StateRemoteSuccess
	StateRemoteFail
	StateTryLocal
	StateLocalSuccess
	StateLocalFail
	StateTerminal
)

var stateNames = [...]string{
	StateStart:         "start",
	StateTryRemote:     "tryRemote",
	StateRemoteSuccess: "remoteSuccess",
	StateRemoteFail:    "remoteFail",
	StateTryLocal:      "tryLocal",
	StateLocalSuccess:  "localSuccess",
	StateLocalFail:     "localFail",
	StateTerminal:      "terminal",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// Outcome is how a login attempt ended.
type Outcome int

const (
	Success Outcome = iota
	SelectTeam
	EnterCode
	NoOfflineData
	InvalidCredentials
	Error
)

var outcomeNames = [...]string{
	Success:            "success",
	SelectTeam:         "selectTeam",
	EnterCode:          "enterCode",
	NoOfflineData:      "noOfflineData",
	InvalidCredentials: "invalidCredentials",
	Error:              "error",
}

func (o Outcome) String() string {
	if o < 0 || int(o) >= len(outcomeNames) {
		return "unknown"
	}
	return outcomeNames[o]
}

// User-facing messages.
const (
	MsgSelectTeam         = "Please select a team."
	MsgEnterCode          = "Please enter the representative code."
	MsgNoOfflineData      = "You are offline and no data is saved. Log in online at least once."
	MsgInvalidCredentials = "Invalid representative code or team."
	MsgError              = "Something went wrong while logging in. Try again."
)

var outcomeMessages = map[Outcome]string{
	SelectTeam:         MsgSelectTeam,
	EnterCode:          MsgEnterCode,
	NoOfflineData:      MsgNoOfflineData,
	InvalidCredentials: MsgInvalidCredentials,
	Error:              MsgError,
}
