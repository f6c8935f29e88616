package bridge

import "testing"

func TestTopicBuilders(t *testing.T) {
	topics := Topics{Prefix: "am43"}
	id := "02:69:32:f0:c5:1d"

	tests := []struct {
		name string
		got  string
		want string
	}{
		{"availability", topics.Availability(id), "am43/02:69:32:f0:c5:1d/available"},
		{"position", topics.Metric(id, MetricPosition), "am43/02:69:32:f0:c5:1d/position"},
		{"battery", topics.Metric(id, MetricBattery), "am43/02:69:32:f0:c5:1d/battery"},
		{"light", topics.Metric(id, MetricLight), "am43/02:69:32:f0:c5:1d/light"},
		{"rssi", topics.Metric(id, MetricRSSI), "am43/02:69:32:f0:c5:1d/rssi"},
		{"set", topics.Set(id), "am43/02:69:32:f0:c5:1d/set"},
		{"set_position", topics.SetPosition(id), "am43/02:69:32:f0:c5:1d/set_position"},
		{"all set", topics.AllSet(), "am43/all/set"},
		{"all set_position", topics.AllSetPosition(), "am43/all/set_position"},
		{"restart", topics.Restart(), "am43/restart"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %s, want %s", tt.got, tt.want)
			}
		})
	}
}

func TestStateString(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{StateDiscovered, "discovered"},
		{StateConnecting, "connecting"},
		{StateConnected, "connected"},
		{StateDisconnected, "disconnected"},
		{State(99), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("State(%d).String() = %s, want %s", tt.state, got, tt.want)
		}
	}
}
