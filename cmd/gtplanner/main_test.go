package main

import "testing"

func TestBuildRootCmd_IncludesSubcommands(t *testing.T) {
	cmd := buildRootCmd()
	names := map[string]bool{}
	for _, sub := range cmd.Commands() {
		names[sub.Name()] = true
	}

	required := []string{"chat", "serve", "sessions"}
	for _, name := range required {
		if !names[name] {
			t.Errorf("expected subcommand %q to be registered", name)
		}
	}
}

func TestBuildSessionsCmd_IncludesSearchAndStats(t *testing.T) {
	var configPath string
	cmd := buildSessionsCmd(&configPath)
	names := map[string]bool{}
	for _, sub := range cmd.Commands() {
		names[sub.Name()] = true
	}
	for _, name := range []string{"search", "stats"} {
		if !names[name] {
			t.Errorf("expected sessions subcommand %q to be registered", name)
		}
	}
}
