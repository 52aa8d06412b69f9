package main

import (
	"log/slog"

	"github.com/miekg/dns"

	"github.com/dnsauth/qpzone/zonedb"
)

// handler adapts zonedb's Find results to wire responses. The DO-bit
// detection below is the one piece of edns.go's concerns this command
// actually needs -- everything else about OPT encoding/decoding is
// handled by the real dns.OPT/dns.SetEdns0 the teacher's own fork of
// the library grew into.
type handler struct {
	db  *zonedb.DB
	log *slog.Logger
}

func (h *handler) serve(w dns.ResponseWriter, req *dns.Msg) {
	m := new(dns.Msg)
	m.SetReply(req)
	m.Authoritative = true

	do := false
	if opt := req.IsEdns0(); opt != nil {
		do = opt.Do()
		m.SetEdns0(4096, do)
	}

	if len(req.Question) != 1 {
		m.Rcode = dns.RcodeFormatError
		_ = w.WriteMsg(m)
		return
	}
	q := req.Question[0]

	res, n, found, sig, foundName := h.db.Find(q.Name, nil, q.Qtype, zonedb.FindOptions{})

	switch res {
	case zonedb.ResultSuccess:
		appendRRset(m, &m.Answer, found, sig, do)
		h.addAuthority(m, do)

	case zonedb.ResultCNAME:
		appendRRset(m, &m.Answer, found, sig, do)

	case zonedb.ResultDNAME:
		appendRRset(m, &m.Answer, found, sig, do)

	case zonedb.ResultDelegation:
		m.Authoritative = false
		appendRRset(m, &m.Ns, found, sig, do)
		if n != nil {
			h.addGlue(m, found, foundName)
		}

	case zonedb.ResultNXDomain:
		m.Rcode = dns.RcodeNameError
		if found != nil {
			appendRRset(m, &m.Ns, found, sig, do)
		}
		h.addAuthority(m, do)

	case zonedb.ResultNXRRset, zonedb.ResultEmptyName, zonedb.ResultEmptyWild:
		h.addAuthority(m, do)

	case zonedb.ResultNotFound, zonedb.ResultBadDB:
		m.Rcode = dns.RcodeServerFailure

	default:
		m.Rcode = dns.RcodeServerFailure
	}

	if err := w.WriteMsg(m); err != nil {
		h.log.Warn("zoneserve: write response", "err", err)
	}
}

func appendRRset(_ *dns.Msg, section *[]dns.RR, found, sig *zonedb.Header, do bool) {
	if found == nil {
		return
	}
	*section = append(*section, found.RRs()...)
	if do && sig != nil {
		*section = append(*section, sig.RRs()...)
	}
}

// addAuthority attaches the zone's SOA to the authority section, as
// every negative or nodata answer must (RFC 1035 section 4.3.4).
func (h *handler) addAuthority(m *dns.Msg, do bool) {
	res, _, soa, sig, _ := h.db.Find(h.db.GetOriginNode().Name(), nil, dns.TypeSOA, zonedb.FindOptions{})
	if res != zonedb.ResultSuccess {
		return
	}
	appendRRset(m, &m.Ns, soa, sig, do)
}

// addGlue fills the additional section for a delegation using the glue
// cache (spec section 4.8).
func (h *handler) addGlue(m *dns.Msg, nsHeader *zonedb.Header, owner string) {
	v := h.db.CurrentVersion()
	if err := h.db.AddGlue(v, nsHeader, owner, m); err != nil {
		h.log.Warn("zoneserve: add glue", "err", err)
	}
}
