package supervisor

import (
	"time"

	"github.com/kbukum/primepos-supervisor/process"
	"github.com/kbukum/primepos-supervisor/resilience"
	"github.com/kbukum/primepos-supervisor/util"
)

// State is the lifecycle state of one instance.
type State string

const (
	StateStopped   State = "stopped"
	StateLaunching State = "launching"
	StateOnline    State = "online"
	StateStopping  State = "stopping"
	StateErrored   State = "errored"
)

// Exponential restart delays grow by this factor and stop growing at the cap.
const (
	backoffFactor = 1.5
	backoffCap    = 15 * time.Second
)

// Restart reasons reported in logs and metrics.
const (
	ReasonStopRequested = "stop requested"
	ReasonStopExitCode  = "stop exit code"
	ReasonNoAutoRestart = "autorestart disabled"
	ReasonCrashLoop     = "too many unstable restarts"
	ReasonCrash         = "crash"
	ReasonExit          = "exit"
)

// RestartPolicy decides what happens after an instance exits.
type RestartPolicy struct {
	AutoRestart            bool
	MaxRestarts            int
	MinUptime              time.Duration
	RestartDelay           time.Duration
	ExpBackoffRestartDelay time.Duration
	StopExitCodes          []int
}

// RunState is what the policy knows about an instance besides its last exit.
type RunState struct {
	// Unstable counts consecutive exits that happened before MinUptime.
	Unstable int
	// StopRequested is set when the exit was caused by a stop.
	StopRequested bool
}

// Decision is the outcome of RestartPolicy.Decide.
type Decision struct {
	Restart bool
	// State is the state the instance enters when it is not restarted.
	State State
	Delay time.Duration
	// Unstable is the updated consecutive unstable exit count.
	Unstable  int
	CrashLoop bool
	Reason    string
}

// Decide applies the policy to an exit. It has no side effects.
func (p RestartPolicy) Decide(exit process.Exit, st RunState) Decision {
	if st.StopRequested {
		return Decision{State: StateStopped, Unstable: st.Unstable, Reason: ReasonStopRequested}
	}
	if exit.Signal == "" && util.Contains(p.StopExitCodes, exit.Code) {
		return Decision{State: StateStopped, Unstable: st.Unstable, Reason: ReasonStopExitCode}
	}
	if !p.AutoRestart {
		state := StateStopped
		if !exit.Success() {
			state = StateErrored
		}
		return Decision{State: state, Unstable: st.Unstable, Reason: ReasonNoAutoRestart}
	}

	unstable := 0
	if exit.Uptime < p.MinUptime {
		unstable = st.Unstable + 1
	}
	if p.MaxRestarts > 0 && unstable >= p.MaxRestarts {
		return Decision{State: StateErrored, Unstable: unstable, CrashLoop: true, Reason: ReasonCrashLoop}
	}

	reason := ReasonExit
	if !exit.Success() {
		reason = ReasonCrash
	}
	return Decision{
		Restart:  true,
		State:    StateLaunching,
		Delay:    p.delay(unstable),
		Unstable: unstable,
		Reason:   reason,
	}
}

// delay returns the wait before the next launch. The exponential delay
// restarts from its initial value after a stable run.
func (p RestartPolicy) delay(unstable int) time.Duration {
	if p.ExpBackoffRestartDelay <= 0 {
		return p.RestartDelay
	}
	return resilience.Backoff(unstable, resilience.RetryConfig{
		InitialBackoff: p.ExpBackoffRestartDelay,
		MaxBackoff:     backoffCap,
		BackoffFactor:  backoffFactor,
	})
}
