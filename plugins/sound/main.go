// Package main provides an audio playback plugin.
// "play" starts a detached player and reports its pid; "stop" kills it.
package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
)

// Request represents the input from the plugin executor.
type Request struct {
	Action string          `json:"action"`
	Event  string          `json:"event"`
	Config json.RawMessage `json:"config"`
	Params json.RawMessage `json:"params"`
}

// Response represents the output to the plugin executor.
type Response struct {
	Success bool            `json:"success"`
	Error   string          `json:"error,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Config holds optional plugin configuration.
type Config struct {
	Player string `json:"player"`
}

// PlayParams defines parameters for the play action.
type PlayParams struct {
	File string `json:"file"`
}

// StopParams defines parameters for the stop action.
type StopParams struct {
	PID int `json:"pid"`
}

// players lists candidate commands per platform, most preferred first.
var players = map[string][][]string{
	"darwin":  {{"afplay"}},
	"linux":   {{"ffplay", "-nodisp", "-autoexit", "-loglevel", "quiet"}, {"mpg123", "-q"}, {"paplay"}},
	"windows": {{"ffplay", "-nodisp", "-autoexit", "-loglevel", "quiet"}},
}

func main() {
	var req Request
	if err := json.NewDecoder(os.Stdin).Decode(&req); err != nil {
		writeErrorResponse(fmt.Sprintf("failed to decode request: %v", err))
		return
	}

	var cfg Config
	if len(req.Config) > 0 {
		if err := json.Unmarshal(req.Config, &cfg); err != nil {
			writeErrorResponse(fmt.Sprintf("invalid config: %v", err))
			return
		}
	}

	switch req.Action {
	case "play":
		pid, err := handlePlay(cfg, req.Params)
		if err != nil {
			writeErrorResponse(fmt.Sprintf("action play failed: %v", err))
			return
		}
		data, _ := json.Marshal(StopParams{PID: pid})
		writeSuccessResponse(data)
	case "stop":
		if err := handleStop(req.Params); err != nil {
			writeErrorResponse(fmt.Sprintf("action stop failed: %v", err))
			return
		}
		writeSuccessResponse(nil)
	default:
		writeErrorResponse(fmt.Sprintf("unknown action: %s", req.Action))
	}
}

// handlePlay starts the player without waiting for it and returns its pid.
func handlePlay(cfg Config, raw json.RawMessage) (int, error) {
	var params PlayParams
	if err := json.Unmarshal(raw, &params); err != nil {
		return 0, fmt.Errorf("invalid params: %w", err)
	}
	if params.File == "" {
		return 0, errors.New("file is required")
	}

	file, err := filepath.Abs(params.File)
	if err != nil {
		return 0, err
	}
	if _, err := os.Stat(file); err != nil {
		return 0, err
	}

	argv, err := playerCommand(cfg)
	if err != nil {
		return 0, err
	}

	cmd := exec.Command(argv[0], append(argv[1:], file)...)
	if err := cmd.Start(); err != nil {
		return 0, fmt.Errorf("failed to start %s: %w", argv[0], err)
	}

	pid := cmd.Process.Pid
	cmd.Process.Release()
	return pid, nil
}

// handleStop kills a player started by handlePlay.
func handleStop(raw json.RawMessage) error {
	var params StopParams
	if err := json.Unmarshal(raw, &params); err != nil {
		return fmt.Errorf("invalid params: %w", err)
	}
	if params.PID <= 0 {
		return errors.New("pid is required")
	}

	proc, err := os.FindProcess(params.PID)
	if err != nil {
		return err
	}
	if err := proc.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return err
	}
	return nil
}

// playerCommand returns the configured player or the first one found on PATH.
func playerCommand(cfg Config) ([]string, error) {
	if argv := strings.Fields(cfg.Player); len(argv) > 0 {
		return argv, nil
	}

	for _, argv := range players[runtime.GOOS] {
		if _, err := exec.LookPath(argv[0]); err == nil {
			return argv, nil
		}
	}
	return nil, fmt.Errorf("no audio player found for %s", runtime.GOOS)
}

// writeErrorResponse writes an error response to stdout.
func writeErrorResponse(errMsg string) {
	json.NewEncoder(os.Stdout).Encode(Response{
		Success: false,
		Error:   errMsg,
	})
}

// writeSuccessResponse writes a success response to stdout.
func writeSuccessResponse(data json.RawMessage) {
	json.NewEncoder(os.Stdout).Encode(Response{
		Success: true,
		Data:    data,
	})
}
