package app

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ayusman/magiccandle/internal/blow"
	"github.com/ayusman/magiccandle/internal/plugin"
	"github.com/ayusman/magiccandle/internal/store"
)

// Sound plugin actions.
const (
	ActionPlay = "play"
	ActionStop = "stop"
)

// dispatch runs the reaction for each event in order, then notifies
// subscribers. Failures are logged and never stop the loop.
func (a *App) dispatch(events []blow.Event) {
	for _, ev := range events {
		log := a.log.WithFields(logrus.Fields{
			"event": ev.Kind,
			"count": ev.Count,
		})

		switch ev.Kind {
		case blow.EventBlowDetected:
			log.WithFields(logrus.Fields{
				"mouth_open":  ev.Sample.MouthOpen,
				"cheek_width": ev.Sample.CheekWidth,
			}).Info("Blow detected")
			a.scene.Blown(ev.Count)

		case blow.EventTriggerReaction:
			log.Info("Triggering reaction")
			a.scene.Celebrate()
			a.playSong(ev)
			a.startEpisode(ev)

		case blow.EventResetRequested:
			a.stopSong(ev)
			a.scene.Reset()
			a.endEpisode(ev)
			log.Info("Auto reset complete")
		}

		a.mu.Lock()
		last := ev
		a.lastEvent = &last
		callbacks := a.eventCallbacks
		a.mu.Unlock()

		for _, fn := range callbacks {
			fn(ev)
		}
	}
}

// soundPlugin returns the configured sound plugin if it declares action.
func (a *App) soundPlugin(action string) *plugin.Plugin {
	if a.config.SoundPlugin == "" {
		return nil
	}

	p, err := a.pluginMgr.Get(a.config.SoundPlugin)
	if err != nil {
		a.log.WithError(err).WithField("plugin", a.config.SoundPlugin).Warn("Sound plugin unavailable")
		return nil
	}
	if !p.Supports(action) {
		a.log.WithFields(logrus.Fields{"plugin": p.Manifest.Name, "action": action}).Warn("Sound plugin does not support action")
		return nil
	}
	return p
}

// playSong starts the song in the background and records the player pid.
func (a *App) playSong(ev blow.Event) {
	if a.config.Song == "" {
		return
	}
	p := a.soundPlugin(ActionPlay)
	if p == nil {
		return
	}

	params, err := json.Marshal(map[string]string{"file": a.config.Song})
	if err != nil {
		a.log.WithError(err).Error("Failed to encode play params")
		return
	}

	var config json.RawMessage
	if a.config.Player != "" {
		config, err = json.Marshal(map[string]string{"player": a.config.Player})
		if err != nil {
			a.log.WithError(err).Error("Failed to encode sound plugin config")
			return
		}
	}

	a.reactions.Add(1)
	go func() {
		defer a.reactions.Done()

		resp, err := a.pluginExec.Execute(context.Background(), p, &plugin.Request{
			Action: ActionPlay,
			Event:  string(ev.Kind),
			Config: config,
			Params: params,
		})
		if err != nil {
			a.log.WithError(err).Error("Failed to play song")
			return
		}
		if !resp.Success {
			a.log.WithField("error", resp.Error).Error("Sound plugin refused to play")
			return
		}

		var data struct {
			PID int `json:"pid"`
		}
		if len(resp.Data) > 0 {
			if err := json.Unmarshal(resp.Data, &data); err != nil {
				a.log.WithError(err).Warn("Sound plugin returned malformed data")
			}
		}

		a.mu.Lock()
		a.playerPID = data.PID
		a.mu.Unlock()

		a.log.WithField("pid", data.PID).Debug("Song started")
	}()
}

// stopSong stops the player started by playSong, if any.
func (a *App) stopSong(ev blow.Event) {
	// The play call may still be in flight.
	a.WaitReactions()

	a.mu.Lock()
	pid := a.playerPID
	a.playerPID = 0
	a.mu.Unlock()

	if pid == 0 {
		return
	}
	p := a.soundPlugin(ActionStop)
	if p == nil {
		return
	}

	params, err := json.Marshal(map[string]int{"pid": pid})
	if err != nil {
		a.log.WithError(err).Error("Failed to encode stop params")
		return
	}

	a.reactions.Add(1)
	go func() {
		defer a.reactions.Done()

		resp, err := a.pluginExec.Execute(context.Background(), p, &plugin.Request{
			Action: ActionStop,
			Event:  string(ev.Kind),
			Params: params,
		})
		if err != nil {
			a.log.WithError(err).Error("Failed to stop song")
			return
		}
		if !resp.Success {
			a.log.WithField("error", resp.Error).Warn("Sound plugin failed to stop")
		}
	}()
}

// startEpisode records the triggering blow.
func (a *App) startEpisode(ev blow.Event) {
	if a.config.Store == nil {
		return
	}

	e := &store.Episode{
		ID:         uuid.New().String(),
		StartedAt:  ev.At,
		BlowCount:  ev.Count,
		MouthOpen:  ev.Sample.MouthOpen,
		CheekWidth: ev.Sample.CheekWidth,
		MaxCheek:   a.blow.State().MaxCheek,
	}
	if err := a.config.Store.Episodes().Create(e); err != nil {
		a.log.WithError(err).Error("Failed to record episode")
		return
	}
	a.episodeID = e.ID
}

// endEpisode marks the open episode as reset.
func (a *App) endEpisode(ev blow.Event) {
	if a.config.Store == nil || a.episodeID == "" {
		return
	}

	id := a.episodeID
	a.episodeID = ""

	at := ev.At
	if at.IsZero() {
		at = time.Now()
	}
	if err := a.config.Store.Episodes().MarkReset(id, at); err != nil {
		a.log.WithError(err).WithField("episode", id).Error("Failed to mark episode reset")
	}
}

// interrupt ends an episode cut short by shutdown: the song stops, the open
// episode is marked reset at now and the detector starts over. The frame
// loop must not be running.
func (a *App) interrupt(now time.Time) {
	a.WaitReactions()

	ev := blow.Event{Kind: blow.EventResetRequested, Count: a.blow.State().BlowCount, At: now}
	a.stopSong(ev)
	a.endEpisode(ev)
	a.WaitReactions()

	a.blow.Reset()
	a.scene.Reset()

	a.mu.Lock()
	a.state = a.blow.State()
	a.mu.Unlock()
}
