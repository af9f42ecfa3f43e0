package main

import (
	"flag"
	"net/http"

	"github.com/sirupsen/logrus"

	"parrhesia/internal/relay/server"
)

func main() {
	addr := flag.String("addr", ":8080", "listen address")
	ttl := flag.Duration("ttl", server.DefaultTTL, "room lifetime")
	level := flag.String("log-level", "info", "log level")
	flag.Parse()

	log := logrus.New()
	if lvl, err := logrus.ParseLevel(*level); err == nil {
		log.SetLevel(lvl)
	}

	srv := server.New(*ttl, log.WithField("component", "relay"))
	log.WithFields(logrus.Fields{"addr": *addr, "ttl": (*ttl).String()}).Info("relay listening")
	if err := http.ListenAndServe(*addr, srv.Handler()); err != nil {
		log.WithError(err).Fatal("listen failed")
	}
}
