package bridge

import (
	"fmt"
	"strconv"
	"strings"
)

// Movement command payloads accepted on the set topic.
const (
	commandOpen  = "open"
	commandClose = "close"
	commandStop  = "stop"
)

// Router parses inbound bus messages into (target, command) pairs and
// dispatches them to device sessions.
//
// Topic scheme: <prefix>/<target>/<verb> where target is a device
// identifier or the literal "all", and verb is "set" or "set_position".
// The reserved two-segment topic <prefix>/restart triggers orderly
// shutdown and a process restart before any per-device dispatch.
//
// Dispatch holds the registry lock only while collecting session handles,
// never across the session call itself.
type Router struct {
	registry *Registry
	topics   Topics
	logger   Logger

	// restart triggers orderly shutdown of every device followed by a
	// process restart signal. Wired to Manager.RequestRestart.
	restart func()
}

// NewRouter creates a command router.
//
// Parameters:
//   - registry: Device registry for target resolution
//   - topics: Topic builder (supplies the configured prefix)
//   - restart: Callback invoked on the restart command
//   - logger: Optional logger; nil discards output
func NewRouter(registry *Registry, topics Topics, restart func(), logger Logger) *Router {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Router{
		registry: registry,
		topics:   topics,
		logger:   logger,
		restart:  restart,
	}
}

// HandleMessage processes one inbound bus message. It matches the
// MessageHandler signature expected by the bus client.
//
// Unrecognized movement payloads are silently ignored for forward
// compatibility; malformed topics and non-integer positions return an
// error for the caller to log.
func (r *Router) HandleMessage(topic string, payload []byte) error {
	parts := strings.Split(topic, "/")

	// <prefix>/restart is a router-level special case, handled before any
	// per-device dispatch and regardless of payload content.
	if len(parts) == 2 && parts[0] == r.topics.Prefix && parts[1] == targetRestart {
		r.logger.Info("restart command received")
		if r.restart != nil {
			r.restart()
		}
		return nil
	}

	if len(parts) != 3 || parts[0] != r.topics.Prefix {
		return fmt.Errorf("%w: %s", ErrInvalidTopic, topic)
	}
	target, verb := parts[1], parts[2]

	switch verb {
	case verbSet:
		return r.dispatchSet(target, payload)
	case verbSetPosition:
		return r.dispatchSetPosition(target, payload)
	default:
		return fmt.Errorf("%w: %s", ErrInvalidTopic, topic)
	}
}

// dispatchSet applies an open/close/stop command to the targeted sessions.
func (r *Router) dispatchSet(target string, payload []byte) error {
	command := strings.ToLower(strings.TrimSpace(string(payload)))

	var op func(Session) error
	switch command {
	case commandOpen:
		op = Session.SendOpen
	case commandClose:
		op = Session.SendClose
	case commandStop:
		op = Session.SendStop
	default:
		// Unknown command payloads are not an error.
		r.logger.Debug("ignoring unrecognized command", "target", target, "payload", command)
		return nil
	}

	return r.apply(target, command, op)
}

// dispatchSetPosition parses the payload as an integer and applies a
// set-position command. Range clamping is the session layer's job.
func (r *Router) dispatchSetPosition(target string, payload []byte) error {
	position, err := strconv.Atoi(strings.TrimSpace(string(payload)))
	if err != nil {
		return fmt.Errorf("%w: %q is not an integer", ErrInvalidPayload, string(payload))
	}

	return r.apply(target, verbSetPosition, func(s Session) error {
		return s.SendSetPosition(position)
	})
}

// apply resolves the target to session handles under the registry lock,
// then invokes op on each session outside the lock. Session errors are
// logged per device and do not abort the remaining dispatches.
func (r *Router) apply(target, command string, op func(Session) error) error {
	type dispatch struct {
		id      string
		session Session
	}
	var targets []dispatch

	if target == targetAll {
		// Broadcast reaches connected devices only; records still waiting
		// to connect have nothing to receive the command.
		for _, id := range r.registry.Snapshot() {
			r.registry.WithRecord(id, func(rec *Record) {
				if rec.Session != nil && rec.State == StateConnected {
					targets = append(targets, dispatch{id: rec.Identifier, session: rec.Session})
				}
			})
		}
	} else {
		found := r.registry.WithRecord(target, func(rec *Record) {
			if rec.Session != nil {
				targets = append(targets, dispatch{id: rec.Identifier, session: rec.Session})
			}
		})
		if !found {
			return fmt.Errorf("%w: %s", ErrUnknownDevice, target)
		}
	}

	for _, t := range targets {
		if err := op(t.session); err != nil {
			r.logger.Warn("command dispatch failed",
				"device", t.id, "command", command, "error", err)
		}
	}
	return nil
}
