// Package netmon watches a network interface for link-state changes
// and, when the kernel provides the nl80211 generic-netlink family,
// reports the interface's link-down transitions as wireless-specific
// notifications. It exists to give auth.Handle.Event a real
// source of connect/disconnect/reconnect/transport-specific events
// when a reference transport runs over a monitored link, rather than
// requiring every transport to invent its own link-watching code.
package netmon

import (
	"fmt"
	"syscall"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
	"github.com/mdlayher/genetlink"
	"github.com/mdlayher/netlink"
	"github.com/mdlayher/netlink/nlenc"

	"github.com/goldenbitssoftware/authlink/auth"
)

// Constants below are the small slice of the rtnetlink ABI this
// package needs; they are not exposed by mdlayher/netlink itself.
const (
	unixAFNetlinkRoute = syscall.NETLINK_ROUTE
	rtmGrpLink         = 0x1 // RTMGRP_LINK

	rtmNewlink = 16 // RTM_NEWLINK
	rtmDellink = 17 // RTM_DELLINK

	ifInfomsgLen = 16 // sizeof(struct ifinfomsg)
	iflaIfname   = 3  // IFLA_IFNAME
)

// nl80211FamilyName is the generic-netlink family used for wireless
// interface introspection. Monitor treats the link as wireless when
// this family resolves on the host; whether the monitored interface
// itself is an nl80211 device is not checked. For a wireless link, a
// link-down transition is reported as
// Event{Type: auth.EventTransportSpecific}, otherwise as
// Event{Type: auth.EventDisconnect}; a link-up transition is always
// Event{Type: auth.EventReconnect}. Every event's Ctx is the interface
// name.
const nl80211FamilyName = "nl80211"

// Sink receives events this monitor observes.
type Sink interface {
	Event(evt auth.Event) error
}

// Monitor subscribes to RTM_NEWLINK/RTM_DELLINK notifications for one
// named interface and forwards state transitions to a Sink, typically
// a transport such as xport/udp.Transport.
type Monitor struct {
	logger    log.Logger
	ifaceName string
	sink      Sink

	conn       *netlink.Conn
	genl       *genetlink.Conn
	wireless   bool
	wirelessID uint16

	stopCh chan struct{}
	doneCh chan struct{}
}

// New looks up the nl80211 family, treating ifaceName as wireless when
// the lookup succeeds (the interface itself is not queried), and
// prepares a Monitor. It does not start watching until Run is called.
func New(logger log.Logger, ifaceName string, sink Sink) (*Monitor, error) {
	if logger == nil {
		logger = log.NewNopLogger()
	}

	genl, err := genetlink.Dial(nil)
	if err != nil {
		return nil, fmt.Errorf("netmon: genetlink dial: %v", err)
	}

	wireless := false
	var familyID uint16
	if fam, err := genl.GetFamily(nl80211FamilyName); err == nil {
		wireless = true
		familyID = fam.ID
	} else {
		level.Debug(logger).Log("msg", "nl80211 family not available, treating link as wired", "err", err)
	}

	conn, err := netlink.Dial(unixAFNetlinkRoute, &netlink.Config{Groups: rtmGrpLink})
	if err != nil {
		genl.Close()
		return nil, fmt.Errorf("netmon: rtnetlink dial: %v", err)
	}

	return &Monitor{
		logger:     log.With(logger, "component", "netmon", "iface", ifaceName),
		ifaceName:  ifaceName,
		sink:       sink,
		conn:       conn,
		genl:       genl,
		wireless:   wireless,
		wirelessID: familyID,
		stopCh:     make(chan struct{}),
		doneCh:     make(chan struct{}),
	}, nil
}

// Run watches for link-state notifications until Close is called. It
// is intended to be run in its own goroutine.
func (m *Monitor) Run() {
	defer close(m.doneCh)

	up := true
	for {
		select {
		case <-m.stopCh:
			return
		default:
		}

		msgs, err := m.conn.Receive()
		if err != nil {
			select {
			case <-m.stopCh:
				return
			default:
			}
			level.Error(m.logger).Log("msg", "rtnetlink receive failed", "err", err)
			continue
		}

		for _, msg := range msgs {
			nowUp, ifname, ok := parseLinkMessage(msg)
			if !ok || ifname != m.ifaceName {
				continue
			}

			switch {
			case nowUp && !up:
				up = true
				m.notify(auth.EventReconnect)
			case !nowUp && up:
				up = false
				if m.wireless {
					m.notify(auth.EventTransportSpecific)
				} else {
					m.notify(auth.EventDisconnect)
				}
			}
		}
	}
}

func (m *Monitor) notify(t auth.EventType) {
	level.Debug(m.logger).Log("msg", "link state notification", "type", t)
	if err := m.sink.Event(auth.Event{Type: t, Ctx: m.ifaceName}); err != nil {
		level.Error(m.logger).Log("msg", "sink rejected event", "err", err)
	}
}

// Close stops the monitor and releases its netlink sockets.
func (m *Monitor) Close() error {
	close(m.stopCh)
	m.conn.Close()
	<-m.doneCh
	return m.genl.Close()
}

// parseLinkMessage extracts whether a RTM_NEWLINK/RTM_DELLINK message
// reports the link as up, and the interface name it names, using the
// IFLA_IFNAME attribute.
func parseLinkMessage(msg netlink.Message) (up bool, ifname string, ok bool) {
	if msg.Header.Type != rtmNewlink && msg.Header.Type != rtmDellink {
		return false, "", false
	}

	attrs, err := netlink.UnmarshalAttributes(msg.Data[ifInfomsgLen:])
	if err != nil {
		return false, "", false
	}

	for _, a := range attrs {
		if a.Type == iflaIfname {
			ifname = nlenc.String(a.Data)
		}
	}
	if ifname == "" {
		return false, "", false
	}

	up = msg.Header.Type == rtmNewlink
	return up, ifname, true
}
