package main

import "testing"

func TestEventsCommand(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"events"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("events on idle daemon: %v", err)
	}
	requireContains(t, out, "No session events buffered")

	if _, _, err := runCLI(t, []string{"record", "start", "--title", "Events Demo"}, env.socketPath, env.configPath); err != nil {
		t.Fatalf("record start: %v", err)
	}
	if _, _, err := runCLI(t, []string{"record", "stop"}, env.socketPath, env.configPath); err != nil {
		t.Fatalf("record stop: %v", err)
	}

	out, _, err = runCLI(t, []string{"events"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("events after lifecycle: %v", err)
	}
	requireContains(t, out, "state_changed")
	requireContains(t, out, "saved")

	out, _, err = runCLI(t, []string{"events", "--json"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("events --json: %v", err)
	}
	requireContains(t, out, `"type":"saved"`)
}
