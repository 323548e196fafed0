/*
The authd command runs one mutual challenge-response authentication
session, as either the challenging client or the responding server,
over the reference UDP transport.

authd is driven by a TOML configuration file naming one or more links
(see package auth's documentation for the file format); -link selects
which one this invocation of authd plays. On completion authd exits 0
for StatusSuccessful and 1 for any other terminal status.
*/
package main

import (
	"flag"
	"fmt"
	stdlog "log"
	"os"
	"os/signal"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
	"golang.org/x/sys/unix"

	"github.com/goldenbitssoftware/authlink/auth"
	"github.com/goldenbitssoftware/authlink/internal/netmon"
	"github.com/goldenbitssoftware/authlink/xport/udp"
)

type application struct {
	logger  log.Logger
	session *auth.Session
	xport   *udp.Transport
	mon     *netmon.Monitor

	doneCh chan auth.Status
	sigCh  chan os.Signal
}

func newApplication(logger log.Logger, link *auth.LinkConfig, ifaceName string) (*application, error) {
	app := &application{
		logger: logger,
		doneCh: make(chan auth.Status, 1),
		sigCh:  make(chan os.Signal, 1),
	}
	signal.Notify(app.sigCh, unix.SIGINT, unix.SIGTERM)

	xp, err := udp.New(logger, udp.Params{
		RecvPort: link.RecvPort,
		SendPort: link.SendPort,
		RecvIP:   link.RecvIP,
		SendIP:   link.SendIP,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create transport: %v", err)
	}
	app.xport = xp

	if ifaceName != "" {
		mon, err := netmon.New(logger, ifaceName, xp)
		if err != nil {
			level.Error(logger).Log("message", "link monitor unavailable, continuing without it", "error", err)
		} else {
			app.mon = mon
			go mon.Run()
		}
	}

	cfg := auth.Config{
		Instance: 0,
		Role:     link.Role,
		Method:   auth.MethodChalResp,
		StatusCB: func(status auth.Status, _ interface{}) {
			level.Info(logger).Log("message", "session status", "status", status)
			if status.IsTerminal() {
				app.doneCh <- status
			}
		},
	}
	if link.SharedKey != nil {
		cfg.SetSharedKey(*link.SharedKey)
	}

	session, err := auth.NewSession(logger, xp, cfg)
	if err != nil {
		xp.Close()
		return nil, fmt.Errorf("failed to create session: %v", err)
	}
	app.session = session

	return app, nil
}

func (app *application) close() {
	if app.mon != nil {
		app.mon.Close()
	}
	app.session.Close()
}

func (app *application) run() int {
	app.session.Start()

	select {
	case status := <-app.doneCh:
		app.close()
		if status == auth.StatusSuccessful {
			return 0
		}
		return 1

	case <-app.sigCh:
		level.Info(app.logger).Log("message", "received signal, canceling session")
		app.session.Cancel()
		<-app.doneCh
		app.close()
		return 1
	}
}

func main() {
	cfgPathPtr := flag.String("config", "/etc/authd/authd.toml", "specify configuration file path")
	linkPtr := flag.String("link", "", "specify the link instance to run, as named in the configuration file")
	ifacePtr := flag.String("iface", "", "watch this network interface for link-state changes")
	verbosePtr := flag.Bool("verbose", false, "toggle verbose log output")
	flag.Parse()

	if *linkPtr == "" {
		stdlog.Fatal("-link is required")
	}

	baseLogger := log.NewLogfmtLogger(os.Stderr)
	var logger log.Logger
	if *verbosePtr {
		logger = level.NewFilter(baseLogger, level.AllowDebug())
	} else {
		logger = level.NewFilter(baseLogger, level.AllowInfo())
	}

	cfg, err := auth.LoadFile(*cfgPathPtr)
	if err != nil {
		stdlog.Fatalf("failed to load configuration: %v", err)
	}

	link, ok := cfg.GetLinks()[*linkPtr]
	if !ok {
		stdlog.Fatalf("no link named %q in configuration file %s", *linkPtr, *cfgPathPtr)
	}

	app, err := newApplication(logger, link, *ifacePtr)
	if err != nil {
		stdlog.Fatalf("failed to instantiate application: %v", err)
	}

	os.Exit(app.run())
}
