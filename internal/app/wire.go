package app

import (
	"net/http"

	"github.com/sirupsen/logrus"

	"parrhesia/internal/relay"
	"parrhesia/internal/store"
)

// Wire bundles the stores and clients for the CLI.
type Wire struct {
	Identity *store.IdentityStore
	Tofu     *store.TofuStore
	History  *store.HistoryStore
	Rooms    *relay.Rooms
	Log      *logrus.Logger
	Config   Config
}

// NewWire constructs the dependency graph from cfg. historyPassword
// seals message history when non-empty and history retention is on.
func NewWire(cfg Config, historyPassword string) (*Wire, error) {
	log := logrus.New()
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = logrus.WarnLevel
	}
	log.SetLevel(level)

	var history *store.HistoryStore
	if cfg.History {
		history = store.NewHistoryStore(cfg.Home, historyPassword)
	}

	return &Wire{
		Identity: store.NewIdentityStore(cfg.Home),
		Tofu:     store.NewTofuStore(cfg.Home),
		History:  history,
		Rooms:    relay.NewRooms(cfg.RelayURL, http.DefaultClient),
		Log:      log,
		Config:   cfg,
	}, nil
}
