// Command zoneserve loads a zone master file into a zonedb.DB and
// answers queries for it over UDP and TCP, the way the teacher's own
// server_test.go wires dns.HandleFunc and dns.ListenAndServe together,
// generalized from a single canned handler to the zone_find query
// engine.
package main

import (
	"flag"
	"log/slog"
	"os"

	"github.com/miekg/dns"

	"github.com/dnsauth/qpzone/masterfile"
	"github.com/dnsauth/qpzone/zonedb"
)

func main() {
	origin := flag.String("origin", "", "zone origin, e.g. example.com.")
	file := flag.String("file", "", "master file path")
	addr := flag.String("addr", ":8053", "listen address")
	flag.Parse()

	log := slog.Default()
	if *origin == "" || *file == "" {
		log.Error("zoneserve: -origin and -file are required")
		os.Exit(2)
	}

	db, err := zonedb.New(zonedb.Options{Origin: *origin})
	if err != nil {
		log.Error("zoneserve: new db", "err", err)
		os.Exit(1)
	}

	f, err := os.Open(*file)
	if err != nil {
		log.Error("zoneserve: open master file", "err", err)
		os.Exit(1)
	}
	defer f.Close()

	if err := masterfile.Load(db, *origin, f); err != nil {
		log.Error("zoneserve: load", "err", err)
		os.Exit(1)
	}
	log.Info("zoneserve: loaded", "origin", *origin, "nodes", db.NodeCount())

	h := &handler{db: db, log: log}
	dns.HandleFunc(dns.Fqdn(*origin), h.serve)

	udp := &dns.Server{Addr: *addr, Net: "udp"}
	tcp := &dns.Server{Addr: *addr, Net: "tcp"}

	errc := make(chan error, 2)
	go func() { errc <- udp.ListenAndServe() }()
	go func() { errc <- tcp.ListenAndServe() }()

	log.Info("zoneserve: listening", "addr", *addr)
	if err := <-errc; err != nil {
		log.Error("zoneserve: serve", "err", err)
		os.Exit(1)
	}
}
