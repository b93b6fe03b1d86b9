package supervisor

import (
	"errors"
	"testing"
	"time"

	"github.com/kbukum/primepos-supervisor/process"
)

func basePolicy() RestartPolicy {
	return RestartPolicy{
		AutoRestart: true,
		MaxRestarts: 3,
		MinUptime:   time.Second,
	}
}

func TestDecide(t *testing.T) {
	crash := process.Exit{Code: 1, Uptime: 10 * time.Millisecond, Err: errors.New("exit status 1")}
	stableCrash := process.Exit{Code: 1, Uptime: time.Minute, Err: errors.New("exit status 1")}
	clean := process.Exit{Code: 0, Uptime: time.Minute}

	tests := []struct {
		name   string
		policy func(*RestartPolicy)
		exit   process.Exit
		st     RunState
		want   Decision
	}{
		{
			name: "quick crash counts as unstable",
			exit: crash,
			want: Decision{Restart: true, State: StateLaunching, Unstable: 1, Reason: ReasonCrash},
		},
		{
			name: "stable run resets the count",
			exit: stableCrash,
			st:   RunState{Unstable: 2},
			want: Decision{Restart: true, State: StateLaunching, Unstable: 0, Reason: ReasonCrash},
		},
		{
			name: "clean exit restarts too",
			exit: clean,
			want: Decision{Restart: true, State: StateLaunching, Reason: ReasonExit},
		},
		{
			name: "crash loop at max restarts",
			exit: crash,
			st:   RunState{Unstable: 2},
			want: Decision{State: StateErrored, Unstable: 3, CrashLoop: true, Reason: ReasonCrashLoop},
		},
		{
			name:   "zero max restarts never gives up",
			policy: func(p *RestartPolicy) { p.MaxRestarts = 0 },
			exit:   crash,
			st:     RunState{Unstable: 100},
			want:   Decision{Restart: true, State: StateLaunching, Unstable: 101, Reason: ReasonCrash},
		},
		{
			name:   "negative max restarts never gives up",
			policy: func(p *RestartPolicy) { p.MaxRestarts = -1 },
			exit:   crash,
			st:     RunState{Unstable: 100},
			want:   Decision{Restart: true, State: StateLaunching, Unstable: 101, Reason: ReasonCrash},
		},
		{
			name: "stop requested",
			exit: crash,
			st:   RunState{Unstable: 1, StopRequested: true},
			want: Decision{State: StateStopped, Unstable: 1, Reason: ReasonStopRequested},
		},
		{
			name:   "stop exit code",
			policy: func(p *RestartPolicy) { p.StopExitCodes = []int{0, 3} },
			exit:   process.Exit{Code: 3, Uptime: time.Millisecond},
			want:   Decision{State: StateStopped, Reason: ReasonStopExitCode},
		},
		{
			name:   "autorestart off and clean exit",
			policy: func(p *RestartPolicy) { p.AutoRestart = false },
			exit:   clean,
			want:   Decision{State: StateStopped, Reason: ReasonNoAutoRestart},
		},
		{
			name:   "autorestart off and crash",
			policy: func(p *RestartPolicy) { p.AutoRestart = false },
			exit:   crash,
			want:   Decision{State: StateErrored, Reason: ReasonNoAutoRestart},
		},
		{
			name:   "fixed delay",
			policy: func(p *RestartPolicy) { p.RestartDelay = 250 * time.Millisecond },
			exit:   clean,
			want:   Decision{Restart: true, State: StateLaunching, Delay: 250 * time.Millisecond, Reason: ReasonExit},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			p := basePolicy()
			if tc.policy != nil {
				tc.policy(&p)
			}
			got := p.Decide(tc.exit, tc.st)
			if got != tc.want {
				t.Errorf("Decide() = %+v, want %+v", got, tc.want)
			}
		})
	}
}

func TestDecideExponentialDelay(t *testing.T) {
	p := basePolicy()
	p.MaxRestarts = 0
	p.RestartDelay = time.Hour
	p.ExpBackoffRestartDelay = 100 * time.Millisecond
	crash := process.Exit{Code: 1, Uptime: time.Millisecond}

	var delays []time.Duration
	st := RunState{}
	for i := 0; i < 16; i++ {
		d := p.Decide(crash, st)
		delays = append(delays, d.Delay)
		st.Unstable = d.Unstable
	}

	if delays[0] != 100*time.Millisecond {
		t.Errorf("expected initial delay 100ms, got %s", delays[0])
	}
	if delays[1] != 150*time.Millisecond {
		t.Errorf("expected second delay 150ms, got %s", delays[1])
	}
	for i := 1; i < len(delays); i++ {
		if delays[i] < delays[i-1] {
			t.Fatalf("delay shrank at %d: %v", i, delays)
		}
	}
	if last := delays[len(delays)-1]; last != backoffCap {
		t.Errorf("expected delay capped at %s, got %s", backoffCap, last)
	}

	stable := p.Decide(process.Exit{Code: 1, Uptime: time.Minute}, st)
	if stable.Delay != 100*time.Millisecond {
		t.Errorf("expected delay reset after a stable run, got %s", stable.Delay)
	}
}
