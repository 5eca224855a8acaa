package leadership

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.ElectionKey != "bob:leader:scheduler" {
		t.Fatalf("election key = %q", cfg.ElectionKey)
	}
	if cfg.RenewalInterval >= cfg.LeaseDuration {
		t.Fatalf("renewal %v must be shorter than lease %v", cfg.RenewalInterval, cfg.LeaseDuration)
	}
	if cfg.InstanceID == "" {
		t.Fatal("expected a generated instance id")
	}
}

func TestNewElectionFailsWithoutRedis(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RedisAddr = "127.0.0.1:1"
	if _, err := NewElection(cfg, zerolog.Nop()); err == nil {
		t.Fatal("expected connection error")
	}
}

func TestUpdateLeadershipStatusNotifiesOnChange(t *testing.T) {
	e := &Election{
		logger:     zerolog.Nop(),
		instanceID: "node-a",
		stopCh:     make(chan struct{}),
		leaderCh:   make(chan bool, 1),
	}

	e.updateLeadershipStatus(true)
	if !e.IsLeader() {
		t.Fatal("expected leader after acquiring")
	}
	if got := <-e.LeaderCh(); !got {
		t.Fatal("expected true on leader channel")
	}

	// Repeating the same state is not a transition.
	e.updateLeadershipStatus(true)
	select {
	case v := <-e.LeaderCh():
		t.Fatalf("unexpected notification %v", v)
	default:
	}

	e.updateLeadershipStatus(false)
	if e.IsLeader() {
		t.Fatal("expected follower after losing")
	}
	if got := <-e.LeaderCh(); got {
		t.Fatal("expected false on leader channel")
	}
}

func TestConfigDefaultsKeepRenewalInsideLease(t *testing.T) {
	tests := []struct {
		name        string
		in          ElectionConfig
		wantRenewal time.Duration
	}{
		{"zero values", ElectionConfig{}, defaultLeaseDuration / 3},
		{"renewal longer than lease", ElectionConfig{LeaseDuration: 6 * time.Second, RenewalInterval: 10 * time.Second}, 2 * time.Second},
		{"explicit", ElectionConfig{LeaseDuration: 30 * time.Second, RenewalInterval: 10 * time.Second}, 10 * time.Second},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.in.withDefaults()
			if got.RenewalInterval != tt.wantRenewal {
				t.Fatalf("renewal = %v, want %v", got.RenewalInterval, tt.wantRenewal)
			}
			if got.ElectionKey != defaultElectionKey || got.InstanceID == "" || got.RetryInterval != defaultRetryInterval {
				t.Fatalf("defaults not applied: %+v", got)
			}
		})
	}
}
