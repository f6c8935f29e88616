package bridge

import (
	"errors"
	"testing"
)

// newTestRouter builds a router over a registry pre-populated with two
// connected devices.
func newTestRouter(t *testing.T) (*Router, *MockSession, *MockSession, *bool) {
	t.Helper()

	reg := NewRegistry()
	first := NewMockSession("02:69:32:f0:c5:1d")
	second := NewMockSession("aa:bb:cc:dd:ee:ff")
	reg.Insert(&Record{Identifier: "02:69:32:f0:c5:1d", Session: first, State: StateConnected})
	reg.Insert(&Record{Identifier: "aa:bb:cc:dd:ee:ff", Session: second, State: StateConnected})

	restarted := false
	router := NewRouter(reg, Topics{Prefix: "am43"}, func() { restarted = true }, nil)
	return router, first, second, &restarted
}

func TestRouterSetCommands(t *testing.T) {
	tests := []struct {
		payload string
		check   func(t *testing.T, s *MockSession)
	}{
		{"open", func(t *testing.T, s *MockSession) {
			if opens, _, _, _ := s.Commands(); opens != 1 {
				t.Errorf("opens = %d, want 1", opens)
			}
		}},
		{"CLOSE", func(t *testing.T, s *MockSession) {
			if _, closes, _, _ := s.Commands(); closes != 1 {
				t.Errorf("closes = %d, want 1", closes)
			}
		}},
		{"  stop \n", func(t *testing.T, s *MockSession) {
			if _, _, stops, _ := s.Commands(); stops != 1 {
				t.Errorf("stops = %d, want 1", stops)
			}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.payload, func(t *testing.T) {
			router, first, second, _ := newTestRouter(t)

			err := router.HandleMessage("am43/02:69:32:f0:c5:1d/set", []byte(tt.payload))
			if err != nil {
				t.Fatalf("HandleMessage: %v", err)
			}

			tt.check(t, first)
			if opens, closes, stops, _ := second.Commands(); opens+closes+stops != 0 {
				t.Error("command leaked to untargeted device")
			}
		})
	}
}

func TestRouterUnknownPayloadSilentlyIgnored(t *testing.T) {
	router, first, _, _ := newTestRouter(t)

	if err := router.HandleMessage("am43/02:69:32:f0:c5:1d/set", []byte("levitate")); err != nil {
		t.Fatalf("unknown payload should not error: %v", err)
	}
	if opens, closes, stops, _ := first.Commands(); opens+closes+stops != 0 {
		t.Error("unknown payload dispatched a command")
	}
}

func TestRouterSetPositionTargetsExactlyOneDevice(t *testing.T) {
	router, first, second, _ := newTestRouter(t)

	err := router.HandleMessage("am43/02:69:32:f0:c5:1d/set_position", []byte("30"))
	if err != nil {
		t.Fatalf("HandleMessage: %v", err)
	}

	_, _, _, positions := first.Commands()
	if len(positions) != 1 || positions[0] != 30 {
		t.Errorf("positions = %v, want [30]", positions)
	}
	if _, _, _, other := second.Commands(); len(other) != 0 {
		t.Error("set_position leaked to untargeted device")
	}
}

func TestRouterSetPositionInvalidPayload(t *testing.T) {
	router, first, _, _ := newTestRouter(t)

	err := router.HandleMessage("am43/02:69:32:f0:c5:1d/set_position", []byte("half"))
	if !errors.Is(err, ErrInvalidPayload) {
		t.Fatalf("err = %v, want ErrInvalidPayload", err)
	}
	if _, _, _, positions := first.Commands(); len(positions) != 0 {
		t.Error("invalid payload dispatched a command")
	}
}

func TestRouterWildcardDispatchesToConnectedDevices(t *testing.T) {
	router, first, second, _ := newTestRouter(t)

	if err := router.HandleMessage("am43/all/set", []byte("OPEN")); err != nil {
		t.Fatalf("HandleMessage: %v", err)
	}

	for name, s := range map[string]*MockSession{"first": first, "second": second} {
		if opens, _, _, _ := s.Commands(); opens != 1 {
			t.Errorf("%s opens = %d, want 1", name, opens)
		}
	}
}

func TestRouterWildcardSkipsUnconnectedDevices(t *testing.T) {
	reg := NewRegistry()
	connected := NewMockSession("aa:aa")
	discovered := NewMockSession("bb:bb")
	connecting := NewMockSession("cc:cc")
	reg.Insert(&Record{Identifier: "aa:aa", Session: connected, State: StateConnected})
	reg.Insert(&Record{Identifier: "bb:bb", Session: discovered, State: StateDiscovered})
	reg.Insert(&Record{Identifier: "cc:cc", Session: connecting, State: StateConnecting})

	router := NewRouter(reg, Topics{Prefix: "am43"}, nil, nil)
	if err := router.HandleMessage("am43/all/set", []byte("open")); err != nil {
		t.Fatalf("HandleMessage: %v", err)
	}

	if opens, _, _, _ := connected.Commands(); opens != 1 {
		t.Errorf("connected opens = %d, want 1", opens)
	}
	for name, s := range map[string]*MockSession{"discovered": discovered, "connecting": connecting} {
		if opens, _, _, _ := s.Commands(); opens != 0 {
			t.Errorf("%s device received broadcast command", name)
		}
	}
}

func TestRouterUnknownDevice(t *testing.T) {
	router, _, _, _ := newTestRouter(t)

	err := router.HandleMessage("am43/11:22:33:44:55:66/set", []byte("open"))
	if !errors.Is(err, ErrUnknownDevice) {
		t.Fatalf("err = %v, want ErrUnknownDevice", err)
	}
}

func TestRouterInvalidTopics(t *testing.T) {
	router, _, _, _ := newTestRouter(t)

	for _, topic := range []string{
		"other/02:69:32:f0:c5:1d/set",
		"am43/02:69:32:f0:c5:1d/reboot",
		"am43/02:69:32:f0:c5:1d",
		"am43/a/b/c",
	} {
		if err := router.HandleMessage(topic, []byte("open")); !errors.Is(err, ErrInvalidTopic) {
			t.Errorf("topic %s: err = %v, want ErrInvalidTopic", topic, err)
		}
	}
}

func TestRouterRestartHandledBeforeDispatch(t *testing.T) {
	// Any payload triggers restart, including one that parses as a command.
	for _, payload := range []string{"", "open", "now please", "42"} {
		router, first, second, restarted := newTestRouter(t)

		if err := router.HandleMessage("am43/restart", []byte(payload)); err != nil {
			t.Fatalf("payload %q: %v", payload, err)
		}
		if !*restarted {
			t.Errorf("payload %q: restart callback not invoked", payload)
		}
		for _, s := range []*MockSession{first, second} {
			if opens, closes, stops, positions := s.Commands(); opens+closes+stops+len(positions) != 0 {
				t.Errorf("payload %q: restart dispatched a device command", payload)
			}
		}
	}
}
